package harvest

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/mindshare-cli/internal/model"
)

// Stats counts task outcomes seen by an Accumulator.
type Stats struct {
	Succeeded int `json:"succeeded"`
	Empty     int `json:"empty"`
	Failed    int `json:"failed"`
	Records   int `json:"records"`
	Dropped   int `json:"dropped"`
}

// Completed is the number of results consumed.
func (s Stats) Completed() int {
	return s.Succeeded + s.Empty + s.Failed
}

// Accumulator is the single consumer of a result stream. It owns the
// buffer of new records; nothing else appends to it.
type Accumulator struct {
	buf      []model.Record
	stats    Stats
	failures []model.TaskResult
	drained  bool
	log      *zap.Logger
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{log: zap.L().With(zap.String("component", "harvest.accumulator"))}
}

// Consume reads results until the stream closes or ctx is cancelled, and
// reports whether it stopped because of cancellation. Each result is
// appended whole, so the buffer never holds part of a task.
func (a *Accumulator) Consume(ctx context.Context, results <-chan model.TaskResult) (interrupted bool) {
	for {
		if ctx.Err() != nil {
			return true
		}
		select {
		case <-ctx.Done():
			return true
		case r, ok := <-results:
			if !ok {
				return false
			}
			a.Add(r)
		}
	}
}

// Add records one result.
func (a *Accumulator) Add(r model.TaskResult) {
	switch r.Status {
	case model.TaskSucceeded:
		a.stats.Succeeded++
		a.stats.Dropped += r.Dropped
		a.stats.Records += len(r.Records)
		a.buf = append(a.buf, r.Records...)
	case model.TaskEmpty:
		a.stats.Empty++
	default:
		a.stats.Failed++
		a.failures = append(a.failures, r)
	}

	if n := a.stats.Completed(); n%500 == 0 {
		a.log.Info("harvest progress",
			zap.Int("completed", n),
			zap.Int("records", a.stats.Records),
			zap.Int("failed", a.stats.Failed),
		)
	}
}

// Stats returns the counts so far.
func (a *Accumulator) Stats() Stats {
	return a.stats
}

// Failures returns the failed results in the order they arrived.
func (a *Accumulator) Failures() []model.TaskResult {
	return a.failures
}

// Drain hands the buffer to the caller. Only the first call returns records.
func (a *Accumulator) Drain() []model.Record {
	if a.drained {
		return nil
	}
	a.drained = true
	buf := a.buf
	a.buf = nil
	return buf
}
