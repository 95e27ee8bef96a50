package fetcher

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Pacer spaces requests shared by every worker of a harvest. It starts at
// the configured rate, halves on each 429 down to a quarter of it, and
// creeps back by a tenth per success. It never exceeds the configured rate.
type Pacer struct {
	limiter *rate.Limiter

	mu      sync.Mutex
	ceiling rate.Limit
	floor   rate.Limit
	current rate.Limit
}

// NewPacer returns a pacer for perSec requests per second. perSec <= 0
// disables pacing.
func NewPacer(perSec float64, burst int) *Pacer {
	limit := rate.Limit(perSec)
	if perSec <= 0 {
		limit = rate.Inf
	}
	return &Pacer{
		limiter: rate.NewLimiter(limit, max(burst, 1)),
		ceiling: limit,
		floor:   limit / 4,
		current: limit,
	}
}

// Wait blocks until a request may be sent.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// Throttled records a 429.
func (p *Pacer) Throttled() {
	p.adjust(0.5)
}

// Succeeded records a 2xx.
func (p *Pacer) Succeeded() {
	p.adjust(1.1)
}

func (p *Pacer) adjust(factor float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ceiling == rate.Inf {
		return
	}

	next := min(max(p.current*rate.Limit(factor), p.floor), p.ceiling)
	if next == p.current {
		return
	}
	if next < p.current {
		zap.L().Warn("fetcher: slowing down after 429",
			zap.Float64("from", float64(p.current)),
			zap.Float64("to", float64(next)),
		)
	}
	p.current = next
	p.limiter.SetLimit(next)
}

// Limit returns the current rate.
func (p *Pacer) Limit() rate.Limit {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}
