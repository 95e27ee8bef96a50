// Package monitoring watches harvest run history and raises alerts when
// runs or their tasks start failing.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/mindshare-cli/internal/model"
	"github.com/sells-group/mindshare-cli/internal/store"
)

// MetricsSnapshot holds a point-in-time view of harvest health.
type MetricsSnapshot struct {
	// Run metrics (within lookback window).
	RunsTotal       int     `json:"runs_total"`
	RunsComplete    int     `json:"runs_complete"`
	RunsInterrupted int     `json:"runs_interrupted"`
	RunsFailed      int     `json:"runs_failed"`
	RunsRunning     int     `json:"runs_running"`
	RunFailRate     float64 `json:"run_fail_rate"`

	// Task metrics summed over finished runs.
	TasksSubmitted int     `json:"tasks_submitted"`
	TasksFailed    int     `json:"tasks_failed"`
	TaskFailRate   float64 `json:"task_fail_rate"`
	RecordsNew     int     `json:"records_new"`

	LastCompleteAt *time.Time `json:"last_complete_at,omitempty"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// RunLister abstracts the run log query needed by the collector.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
}

// Collector gathers metrics from the run log.
type Collector struct {
	runs RunLister
	now  func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(runs RunLister) *Collector {
	return &Collector{runs: runs, now: time.Now}
}

// Collect gathers a snapshot of harvest metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	runs, err := c.runs.ListRuns(ctx, store.RunFilter{
		StartedAfter: now.Add(-time.Duration(lookbackHours) * time.Hour),
		Limit:        10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	snap.RunsTotal = len(runs)
	for _, r := range runs {
		switch r.Status {
		case model.RunStatusComplete:
			snap.RunsComplete++
			if r.CompletedAt != nil && (snap.LastCompleteAt == nil || r.CompletedAt.After(*snap.LastCompleteAt)) {
				at := *r.CompletedAt
				snap.LastCompleteAt = &at
			}
		case model.RunStatusInterrupted:
			snap.RunsInterrupted++
		case model.RunStatusFailed:
			snap.RunsFailed++
		case model.RunStatusRunning:
			snap.RunsRunning++
			continue
		}
		snap.TasksSubmitted += r.Submitted
		snap.TasksFailed += r.Failed
		snap.RecordsNew += r.RecordsNew
	}

	// Interrupted runs flushed what they had; only failed runs count against the rate.
	if finished := snap.RunsComplete + snap.RunsInterrupted + snap.RunsFailed; finished > 0 {
		snap.RunFailRate = float64(snap.RunsFailed) / float64(finished)
	}
	if snap.TasksSubmitted > 0 {
		snap.TaskFailRate = float64(snap.TasksFailed) / float64(snap.TasksSubmitted)
	}

	return snap, nil
}
