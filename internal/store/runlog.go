package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/mindshare-cli/internal/model"
)

// SQLiteRunLog implements RunLog on a SQLite database.
type SQLiteRunLog struct {
	db *sql.DB
}

// NewSQLiteRunLog opens the run log database at dsn.
func NewSQLiteRunLog(dsn string) (*SQLiteRunLog, error) {
	db, err := openSQLite(dsn)
	if err != nil {
		return nil, err
	}
	return &SQLiteRunLog{db: db}, nil
}

const runLogMigration = `
CREATE TABLE IF NOT EXISTS harvest_runs (
	id            TEXT PRIMARY KEY,
	status        TEXT NOT NULL DEFAULT 'running',
	companies     INTEGER NOT NULL DEFAULT 0,
	tasks_total   INTEGER NOT NULL DEFAULT 0,
	submitted     INTEGER NOT NULL DEFAULT 0,
	succeeded     INTEGER NOT NULL DEFAULT 0,
	empty         INTEGER NOT NULL DEFAULT 0,
	failed        INTEGER NOT NULL DEFAULT 0,
	records_new   INTEGER NOT NULL DEFAULT 0,
	records_total INTEGER NOT NULL DEFAULT 0,
	error         TEXT NOT NULL DEFAULT '',
	started_at    DATETIME NOT NULL,
	completed_at  DATETIME
);

CREATE TABLE IF NOT EXISTS harvest_failures (
	run_id      TEXT NOT NULL REFERENCES harvest_runs(id),
	company     TEXT NOT NULL,
	period      TEXT NOT NULL,
	page        INTEGER NOT NULL,
	ascending   INTEGER NOT NULL,
	status_code INTEGER NOT NULL DEFAULT 0,
	error_type  TEXT NOT NULL,
	reason      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_harvest_runs_status ON harvest_runs(status);
CREATE INDEX IF NOT EXISTS idx_harvest_failures_run ON harvest_failures(run_id);
`

const runColumns = `id, status, companies, tasks_total, submitted, succeeded, empty, failed,
	records_new, records_total, error, started_at, completed_at`

// Migrate creates the run log tables.
func (l *SQLiteRunLog) Migrate(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, runLogMigration)
	return eris.Wrap(err, "sqlite: migrate run log")
}

// Close closes the database.
func (l *SQLiteRunLog) Close() error {
	return l.db.Close()
}

// StartRun inserts a running entry. A missing ID or start time is filled in.
func (l *SQLiteRunLog) StartRun(ctx context.Context, run *model.Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	run.Status = model.RunStatusRunning

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO harvest_runs (id, status, companies, tasks_total, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, string(run.Status), run.Companies, run.TasksTotal, run.StartedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: insert run")
}

// FinishRun stores the final counts and failed tasks of run.
func (l *SQLiteRunLog) FinishRun(ctx context.Context, run *model.Run) error {
	if run.CompletedAt == nil {
		now := time.Now().UTC()
		run.CompletedAt = &now
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin finish run")
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`UPDATE harvest_runs SET status = ?, companies = ?, tasks_total = ?, submitted = ?, succeeded = ?,
		 empty = ?, failed = ?, records_new = ?, records_total = ?, error = ?, completed_at = ? WHERE id = ?`,
		string(run.Status), run.Companies, run.TasksTotal, run.Submitted, run.Succeeded,
		run.Empty, run.Failed, run.RecordsNew, run.RecordsTotal, run.Error, *run.CompletedAt, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run %s", run.ID)
	}
	if err := checkRowsAffected(res, "run", run.ID); err != nil {
		return err
	}

	for _, f := range run.Failures {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO harvest_failures (run_id, company, period, page, ascending, status_code, error_type, reason)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, f.Task.Company, string(f.Task.Period), f.Task.Page, f.Task.Ascending,
			f.StatusCode, f.ErrorType, f.Reason,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert failure for run %s", run.ID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit finish run")
}

// GetRun returns a run with its failed tasks.
func (l *SQLiteRunLog) GetRun(ctx context.Context, id string) (*model.Run, error) {
	row := l.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM harvest_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err != nil {
		return nil, err
	}

	rows, err := l.db.QueryContext(ctx,
		`SELECT company, period, page, ascending, status_code, error_type, reason
		 FROM harvest_failures WHERE run_id = ? ORDER BY rowid`, id)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list failures for run %s", id)
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var (
			f      model.TaskFailure
			period string
		)
		if err := rows.Scan(&f.Task.Company, &period, &f.Task.Page, &f.Task.Ascending,
			&f.StatusCode, &f.ErrorType, &f.Reason); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan failure")
		}
		f.Task.Period = model.Period(period)
		run.Failures = append(run.Failures, f)
	}
	return run, eris.Wrap(rows.Err(), "sqlite: iterate failures")
}

// ListRuns returns runs newest first. Failures are not loaded.
func (l *SQLiteRunLog) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM harvest_runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if !filter.StartedAfter.IsZero() {
		query += ` AND started_at >= ?`
		args = append(args, filter.StartedAfter.UTC())
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var (
		r         model.Run
		status    string
		completed sql.NullTime
	)
	err := row.Scan(&r.ID, &status, &r.Companies, &r.TasksTotal, &r.Submitted, &r.Succeeded, &r.Empty,
		&r.Failed, &r.RecordsNew, &r.RecordsTotal, &r.Error, &r.StartedAt, &completed)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	r.Status = model.RunStatus(status)
	if completed.Valid {
		t := completed.Time
		r.CompletedAt = &t
	}
	return &r, nil
}
