package harvest

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/mindshare-cli/internal/model"
	"github.com/sells-group/mindshare-cli/internal/resilience"
	"github.com/sells-group/mindshare-cli/internal/wallchain"
)

// Source fetches one leaderboard page. A non-2xx status is reported via the
// status code with a nil page and nil error.
type Source interface {
	Leaderboard(ctx context.Context, task model.Task) (*wallchain.Page, int, error)
}

// Worker executes a single task: one request, validation, record
// extraction and snapshot filtering.
type Worker struct {
	source   Source
	snapshot *Snapshot
	breaker  *resilience.Breaker
	log      *zap.Logger
}

// NewWorker creates a worker. breaker may be nil.
func NewWorker(source Source, snapshot *Snapshot, breaker *resilience.Breaker) *Worker {
	return &Worker{
		source:   source,
		snapshot: snapshot,
		breaker:  breaker,
		log:      zap.L().With(zap.String("component", "harvest.worker")),
	}
}

type fetchedPage struct {
	page   *wallchain.Page
	status int
}

// Fetch runs task and never returns an error: every outcome is folded into
// the result. A task's records are all-or-nothing; one malformed entry
// fails the whole task.
func (w *Worker) Fetch(ctx context.Context, task model.Task) model.TaskResult {
	fetched, err := w.fetch(ctx, task)
	if err != nil {
		w.log.Warn("task failed",
			zap.String("task", task.String()),
			zap.Int("status", fetched.status),
			zap.String("error_type", string(resilience.Classify(err))),
			zap.Error(err),
		)
		return model.Failed(task, fetched.status, err)
	}

	if fetched.page == nil || len(fetched.page.Entries) == 0 {
		w.log.Debug("task empty", zap.String("task", task.String()))
		return model.Empty(task)
	}

	records := make([]model.Record, 0, len(fetched.page.Entries))
	dropped := 0
	for i, entry := range fetched.page.Entries {
		rec, err := entry.Record(task)
		if err != nil {
			err = eris.Wrapf(err, "entry %d", i)
			w.log.Warn("task failed", zap.String("task", task.String()), zap.Error(err))
			return model.Failed(task, fetched.status, err)
		}
		if w.snapshot.Contains(rec) {
			dropped++
			continue
		}
		records = append(records, rec)
	}

	w.log.Debug("task succeeded",
		zap.String("task", task.String()),
		zap.Int("records", len(records)),
		zap.Int("dropped", dropped),
	)
	return model.Succeeded(task, records, dropped)
}

func (w *Worker) fetch(ctx context.Context, task model.Task) (fetchedPage, error) {
	call := func(ctx context.Context) (fetchedPage, error) {
		page, status, err := w.source.Leaderboard(ctx, task)
		if err != nil {
			return fetchedPage{status: status}, err
		}
		if status < 200 || status >= 300 {
			return fetchedPage{status: status}, resilience.NewStatusError("", status)
		}
		return fetchedPage{page: page, status: status}, nil
	}
	if w.breaker == nil {
		return call(ctx)
	}
	return resilience.Execute(ctx, w.breaker, call)
}
