package harvest

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/mindshare-cli/internal/model"
	"github.com/sells-group/mindshare-cli/internal/resilience"
	"github.com/sells-group/mindshare-cli/internal/store"
	"github.com/sells-group/mindshare-cli/internal/wallchain"
)

// Discoverer lists the company identifiers to harvest.
type Discoverer interface {
	Companies(ctx context.Context) ([]string, error)
}

// Config holds the parameters of one harvest.
type Config struct {
	// Companies, when non-empty, replaces the discovery call.
	Companies    []string
	Periods      []model.Period
	MaxPage      int
	Concurrency  int
	FlushTimeout time.Duration
	Discovery    resilience.RetryConfig
}

// Summary describes a finished harvest.
type Summary struct {
	RunID        string          `json:"run_id,omitempty"`
	Status       model.RunStatus `json:"status"`
	Companies    int             `json:"companies"`
	TasksTotal   int             `json:"tasks_total"`
	Submitted    int             `json:"submitted"`
	Stats        Stats           `json:"stats"`
	RecordsPrior int             `json:"records_prior"`
	RecordsTotal int             `json:"records_total"`
	Written      bool            `json:"written"`
	Elapsed      time.Duration   `json:"elapsed"`
}

// Option configures a Harvester.
type Option func(*Harvester)

// WithRunLog records every run in rl.
func WithRunLog(rl store.RunLog) Option {
	return func(h *Harvester) { h.runs = rl }
}

// WithCircuitBreaker routes every leaderboard request through cb.
func WithCircuitBreaker(cb *resilience.Breaker) Option {
	return func(h *Harvester) { h.breaker = cb }
}

// Harvester wires loader, enumerator, dispatcher, accumulator and
// persistence into one run.
type Harvester struct {
	cfg        Config
	store      store.RecordStore
	source     Source
	discoverer Discoverer
	runs       store.RunLog
	breaker    *resilience.Breaker
	log        *zap.Logger
}

// New creates a Harvester.
func New(cfg Config, st store.RecordStore, source Source, discoverer Discoverer, opts ...Option) *Harvester {
	if len(cfg.Periods) == 0 {
		cfg.Periods = model.DefaultPeriods
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = 30 * time.Second
	}
	h := &Harvester{
		cfg:        cfg,
		store:      st,
		source:     source,
		discoverer: discoverer,
		log:        zap.L().With(zap.String("component", "harvest")),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run performs one harvest. Cancelling ctx stops new requests; the records
// accumulated up to that point are still merged and written. Errors are
// returned only for a failed load, a failed discovery, or a failed write.
func (h *Harvester) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()

	prior, err := h.store.Load(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "harvest: load existing records")
	}
	snapshot := NewSnapshot(prior)
	h.log.Info("loaded existing records",
		zap.Int("records", len(prior)),
		zap.Int("keys", snapshot.Len()),
	)

	companies, err := h.companies(ctx)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Companies:    len(companies),
		TasksTotal:   TaskCount(companies, h.cfg.Periods, h.cfg.MaxPage),
		RecordsPrior: len(prior),
		RecordsTotal: len(prior),
	}
	run := &model.Run{Companies: summary.Companies, TasksTotal: summary.TasksTotal}
	h.startRun(ctx, run)
	summary.RunID = run.ID

	h.log.Info("harvest started",
		zap.String("run_id", run.ID),
		zap.Int("companies", summary.Companies),
		zap.Int("tasks", summary.TasksTotal),
		zap.Int("concurrency", h.cfg.Concurrency),
	)

	worker := NewWorker(h.source, snapshot, h.breaker)
	dispatcher := NewDispatcher(h.cfg.Concurrency)
	results := dispatcher.Run(ctx, Enumerate(companies, h.cfg.Periods, h.cfg.MaxPage), worker.Fetch)

	acc := NewAccumulator()
	interrupted := acc.Consume(ctx, results)
	if interrupted {
		h.log.Warn("harvest interrupted, flushing accumulated records",
			zap.Int("records", acc.Stats().Records),
		)
	}

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.cfg.FlushTimeout)
	defer cancel()

	fresh := acc.Drain()
	written, persistErr := Persist(flushCtx, h.store, prior, fresh)

	// Wait for abandoned workers; they observe the cancelled context.
	for range results {
	}

	summary.Submitted = dispatcher.Submitted()
	summary.Stats = acc.Stats()
	summary.Written = written
	if written {
		summary.RecordsTotal = len(prior) + len(fresh)
	}
	summary.Elapsed = time.Since(start)
	switch {
	case persistErr != nil:
		summary.Status = model.RunStatusFailed
	case interrupted:
		summary.Status = model.RunStatusInterrupted
	default:
		summary.Status = model.RunStatusComplete
	}

	h.finishRun(flushCtx, run, summary, acc.Failures(), persistErr)

	if h.breaker != nil && h.breaker.Rejected() > 0 {
		h.log.Warn("circuit breaker rejected requests",
			zap.Int64("rejected", h.breaker.Rejected()),
			zap.String("state", h.breaker.State().String()),
		)
	}

	h.log.Info("harvest finished",
		zap.String("run_id", run.ID),
		zap.String("status", string(summary.Status)),
		zap.Int("submitted", summary.Submitted),
		zap.Int("succeeded", summary.Stats.Succeeded),
		zap.Int("empty", summary.Stats.Empty),
		zap.Int("failed", summary.Stats.Failed),
		zap.Int("new_records", summary.Stats.Records),
		zap.Int("dropped", summary.Stats.Dropped),
		zap.Int("total_records", summary.RecordsTotal),
		zap.Bool("written", written),
		zap.Duration("elapsed", summary.Elapsed),
	)

	if persistErr != nil {
		return summary, persistErr
	}
	return summary, nil
}

// companies returns the static list when configured, otherwise calls
// discovery. A discovery failure is fatal.
func (h *Harvester) companies(ctx context.Context) ([]string, error) {
	if len(h.cfg.Companies) > 0 {
		return wallchain.Unique(h.cfg.Companies), nil
	}
	if h.discoverer == nil {
		return nil, eris.New("harvest: no companies configured and no discovery source")
	}

	retry := h.cfg.Discovery
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("discover companies")
	}
	ids, err := resilience.DoVal(ctx, retry, h.discoverer.Companies)
	if err != nil {
		return nil, eris.Wrap(err, "harvest: discover companies")
	}
	return wallchain.Unique(ids), nil
}

func (h *Harvester) startRun(ctx context.Context, run *model.Run) {
	if h.runs == nil {
		return
	}
	if err := h.runs.StartRun(ctx, run); err != nil {
		h.log.Warn("run log: start failed", zap.Error(err))
	}
}

func (h *Harvester) finishRun(ctx context.Context, run *model.Run, s *Summary, failed []model.TaskResult, persistErr error) {
	if h.runs == nil || run.ID == "" {
		return
	}
	run.Status = s.Status
	run.Submitted = s.Submitted
	run.Succeeded = s.Stats.Succeeded
	run.Empty = s.Stats.Empty
	run.Failed = s.Stats.Failed
	run.RecordsNew = s.Stats.Records
	run.RecordsTotal = s.RecordsTotal
	if persistErr != nil {
		run.Error = persistErr.Error()
	}
	run.Failures = make([]model.TaskFailure, 0, len(failed))
	for _, r := range failed {
		run.Failures = append(run.Failures, model.TaskFailure{
			Task:       r.Task,
			StatusCode: r.StatusCode,
			ErrorType:  string(resilience.Classify(r.Err)),
			Reason:     r.Reason(),
		})
	}
	if err := h.runs.FinishRun(ctx, run); err != nil {
		h.log.Warn("run log: finish failed", zap.String("run_id", run.ID), zap.Error(err))
	}
}
