// Package store persists harvested leaderboard records and the history of
// harvest runs.
package store

import (
	"context"
	"time"

	"github.com/sells-group/mindshare-cli/internal/model"
)

// RecordStore is the durable record table. Load returns records in stored
// order; an absent store loads as empty. Replace swaps the full contents
// in one step.
type RecordStore interface {
	Load(ctx context.Context) ([]model.Record, error)
	Replace(ctx context.Context, records []model.Record) error
	Close() error
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status       model.RunStatus `json:"status,omitempty"`
	StartedAfter time.Time       `json:"started_after,omitempty"`
	Limit        int             `json:"limit,omitempty"`
}

// RunLog records harvest runs and the tasks that failed in them.
type RunLog interface {
	// StartRun inserts a running entry and assigns run.ID.
	StartRun(ctx context.Context, run *model.Run) error
	// FinishRun stores final counts, status and failures.
	FinishRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)
	Close() error
}
