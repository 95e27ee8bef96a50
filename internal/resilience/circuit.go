// Package resilience classifies failures and provides the retry and circuit
// breaker policies used around calls to the leaderboard API.
package resilience

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
)

// BreakerState is the position of a Breaker.
type BreakerState int

const (
	// BreakerClosed lets requests through.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects requests until the cool-down ends.
	BreakerOpen
	// BreakerHalfOpen admits a single probe.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// ErrBreakerOpen is returned for calls rejected without reaching the API.
var ErrBreakerOpen = eris.New("circuit breaker is open")

// BreakerConfig controls a Breaker.
type BreakerConfig struct {
	// FailureThreshold consecutive tripping failures open the breaker.
	FailureThreshold int
	// ResetTimeout is the cool-down before a probe is admitted.
	ResetTimeout time.Duration
	// ShouldTrip defaults to IsTransient, so 404s never open the breaker.
	ShouldTrip func(err error) bool
	// OnStateChange runs under the breaker lock; keep it short.
	OnStateChange func(from, to BreakerState)
}

// Breaker stops a harvest from hammering an API that is already failing.
// All workers of a harvest share one Breaker.
type Breaker struct {
	cfg BreakerConfig
	now func() time.Time

	mu        sync.Mutex
	state     BreakerState
	failures  int
	openUntil time.Time
	probing   bool

	rejected atomic.Int64
}

// NewBreaker creates a closed breaker. Zero values default to five
// failures and a thirty second cool-down.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.ShouldTrip == nil {
		cfg.ShouldTrip = IsTransient
	}
	return &Breaker{cfg: cfg, now: time.Now}
}

// Execute runs fn unless b rejects the call with ErrBreakerOpen.
func Execute[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	if !b.admit() {
		b.rejected.Add(1)
		var zero T
		return zero, ErrBreakerOpen
	}
	val, err := fn(ctx)
	b.observe(err)
	return val, err
}

// State reports the current state, treating an expired cool-down as
// half-open.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && !b.now().Before(b.openUntil) {
		return BreakerHalfOpen
	}
	return b.state
}

// Rejected is the number of calls refused so far.
func (b *Breaker) Rejected() int64 {
	return b.rejected.Load()
}

func (b *Breaker) admit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerOpen {
		if b.now().Before(b.openUntil) {
			return false
		}
		b.setState(BreakerHalfOpen)
	}
	if b.state == BreakerHalfOpen {
		if b.probing {
			return false
		}
		b.probing = true
	}
	return true
}

func (b *Breaker) observe(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	wasProbe := b.state == BreakerHalfOpen
	b.probing = false

	if err == nil || !b.cfg.ShouldTrip(err) {
		b.failures = 0
		if wasProbe {
			b.setState(BreakerClosed)
		}
		return
	}

	b.failures++
	if wasProbe || b.failures >= b.cfg.FailureThreshold {
		b.openUntil = b.now().Add(b.cfg.ResetTimeout)
		b.setState(BreakerOpen)
	}
}

func (b *Breaker) setState(to BreakerState) {
	from := b.state
	b.state = to
	if from != to && b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(from, to)
	}
}
