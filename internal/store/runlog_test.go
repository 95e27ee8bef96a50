package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/mindshare-cli/internal/model"
)

func newTestRunLog(t *testing.T) *SQLiteRunLog {
	t.Helper()
	l, err := NewSQLiteRunLog(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() }) //nolint:errcheck
	require.NoError(t, l.Migrate(context.Background()))
	return l
}

func TestRunLog_StartAndGet(t *testing.T) {
	l := newTestRunLog(t)
	ctx := context.Background()

	run := &model.Run{Companies: 2, TasksTotal: 16}
	require.NoError(t, l.StartRun(ctx, run))
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	got, err := l.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, model.RunStatusRunning, got.Status)
	assert.Equal(t, 2, got.Companies)
	assert.Equal(t, 16, got.TasksTotal)
	assert.Nil(t, got.CompletedAt)
	assert.Empty(t, got.Failures)
}

func TestRunLog_FinishRunWithFailures(t *testing.T) {
	l := newTestRunLog(t)
	ctx := context.Background()

	run := &model.Run{Companies: 1, TasksTotal: 4}
	require.NoError(t, l.StartRun(ctx, run))

	failed := model.Task{Company: "acme", Period: model.Period7d, Page: 3, Ascending: true}
	run.Status = model.RunStatusInterrupted
	run.Submitted = 3
	run.Succeeded = 1
	run.Empty = 1
	run.Failed = 1
	run.RecordsNew = 20
	run.RecordsTotal = 120
	run.Failures = []model.TaskFailure{{
		Task:       failed,
		StatusCode: 503,
		ErrorType:  "transient",
		Reason:     "http status 503",
	}}
	require.NoError(t, l.FinishRun(ctx, run))
	require.NotNil(t, run.CompletedAt)

	got, err := l.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusInterrupted, got.Status)
	assert.Equal(t, 3, got.Submitted)
	assert.Equal(t, 20, got.RecordsNew)
	assert.Equal(t, 120, got.RecordsTotal)
	require.NotNil(t, got.CompletedAt)
	require.Len(t, got.Failures, 1)
	assert.Equal(t, failed, got.Failures[0].Task)
	assert.Equal(t, 503, got.Failures[0].StatusCode)
	assert.Equal(t, "http status 503", got.Failures[0].Reason)
}

func TestRunLog_FinishUnknownRun(t *testing.T) {
	l := newTestRunLog(t)

	err := l.FinishRun(context.Background(), &model.Run{ID: "missing", Status: model.RunStatusComplete})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found: missing")
}

func TestRunLog_GetRunNotFound(t *testing.T) {
	l := newTestRunLog(t)

	_, err := l.GetRun(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}

func TestRunLog_ListRuns(t *testing.T) {
	l := newTestRunLog(t)
	ctx := context.Background()

	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	for i, status := range []model.RunStatus{model.RunStatusComplete, model.RunStatusInterrupted, model.RunStatusComplete} {
		run := &model.Run{StartedAt: base.Add(time.Duration(i) * time.Hour)}
		require.NoError(t, l.StartRun(ctx, run))
		run.Status = status
		require.NoError(t, l.FinishRun(ctx, run))
	}

	all, err := l.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].StartedAt.After(all[1].StartedAt))

	complete, err := l.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	assert.Len(t, complete, 2)

	limited, err := l.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	recent, err := l.ListRuns(ctx, RunFilter{StartedAfter: base.Add(90 * time.Minute)})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, model.RunStatusComplete, recent[0].Status)
}

func TestRunLog_StartRunKeepsGivenID(t *testing.T) {
	l := newTestRunLog(t)
	ctx := context.Background()

	run := &model.Run{ID: "fixed-id"}
	require.NoError(t, l.StartRun(ctx, run))
	assert.Equal(t, "fixed-id", run.ID)

	err := l.StartRun(ctx, &model.Run{ID: "fixed-id"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert run")
}
