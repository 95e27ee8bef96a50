package harvest

import (
	"context"
	"iter"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/mindshare-cli/internal/model"
)

// WorkFunc executes one task.
type WorkFunc func(ctx context.Context, task model.Task) model.TaskResult

// Dispatcher runs tasks with at most limit in flight and streams their
// results in completion order.
type Dispatcher struct {
	limit     int
	submitted atomic.Int64
	log       *zap.Logger
}

// NewDispatcher creates a dispatcher. A limit below 1 is treated as 1.
func NewDispatcher(limit int) *Dispatcher {
	if limit < 1 {
		limit = 1
	}
	return &Dispatcher{
		limit: limit,
		log:   zap.L().With(zap.String("component", "harvest.dispatcher")),
	}
}

// Run starts submitting tasks and returns the result stream. The channel is
// unbuffered: a result counts as delivered only once the consumer has
// received it. After ctx is cancelled no further tasks are submitted and
// workers drop their results instead of blocking. The channel is closed
// once every started worker has returned.
func (d *Dispatcher) Run(ctx context.Context, tasks iter.Seq[model.Task], fn WorkFunc) <-chan model.TaskResult {
	out := make(chan model.TaskResult)

	go func() {
		defer close(out)

		var g errgroup.Group
		g.SetLimit(d.limit)

		for task := range tasks {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}
				d.submitted.Add(1)

				r := d.execute(ctx, task, fn)
				select {
				case out <- r:
				case <-ctx.Done():
				}
				return nil
			})
		}

		_ = g.Wait()
		d.log.Debug("dispatch finished", zap.Int64("submitted", d.submitted.Load()))
	}()

	return out
}

// Submitted is the number of tasks handed to workers so far.
func (d *Dispatcher) Submitted() int {
	return int(d.submitted.Load())
}

// execute runs fn, converting a panic into a failed result so one bad task
// cannot take down the batch.
func (d *Dispatcher) execute(ctx context.Context, task model.Task, fn WorkFunc) (r model.TaskResult) {
	defer func() {
		if p := recover(); p != nil {
			d.log.Error("worker panicked", zap.String("task", task.String()), zap.Any("panic", p))
			r = model.Failed(task, 0, eris.Errorf("worker panic: %v", p))
		}
	}()
	return fn(ctx, task)
}
