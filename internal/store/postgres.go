package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/mindshare-cli/internal/db"
	"github.com/sells-group/mindshare-cli/internal/model"
)

const recordsTable = "leaderboard_records"

// copyColumns is the COPY column order used by Replace.
var copyColumns = []string{
	"seq", "project", "period", "position", "position_change", "mindshare_percentage", "relative_mindshare",
	"x_id", "name", "rank", "score", "score_percentile", "score_quantile", "username",
}

// PostgresStore implements RecordStore on a pgx pool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pgxCfg.MaxConns = 4
	pgxCfg.MinConns = 1
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			pgxCfg.MaxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			pgxCfg.MinConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leaderboard_records (
	seq                  BIGINT PRIMARY KEY,
	project              TEXT NOT NULL,
	period               TEXT NOT NULL,
	position             BIGINT,
	position_change      BIGINT,
	mindshare_percentage DOUBLE PRECISION,
	relative_mindshare   DOUBLE PRECISION,
	x_id                 TEXT,
	name                 TEXT,
	rank                 TEXT,
	score                TEXT,
	score_percentile     TEXT,
	score_quantile       TEXT,
	username             TEXT
);

CREATE INDEX IF NOT EXISTS idx_leaderboard_records_key ON leaderboard_records(project, username);
`

// Migrate creates the records table.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Load returns every record ordered by seq.
func (s *PostgresStore) Load(ctx context.Context) ([]model.Record, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+recordColumnList+` FROM leaderboard_records ORDER BY seq`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load records")
	}
	defer rows.Close()

	var records []model.Record
	for rows.Next() {
		var (
			r      model.Record
			period string
		)
		if err := rows.Scan(&r.Project, &period, &r.Position, &r.PositionChange, &r.MindsharePercentage,
			&r.RelativeMindshare, &r.ID, &r.Name, &r.Rank, &r.Score, &r.ScorePercentile, &r.ScoreQuantile,
			&r.Username); err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		r.Period = model.Period(period)
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "postgres: iterate records")
}

// Replace truncates the table and COPYs records inside one transaction,
// so readers see either the old or the new contents.
func (s *PostgresStore) Replace(ctx context.Context, records []model.Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin replace")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM leaderboard_records`); err != nil {
		return eris.Wrap(err, "postgres: clear records")
	}

	seqRow := func(i int, r model.Record) []any {
		return append([]any{int64(i + 1)}, recordArgs(r)...)
	}
	if _, err := db.CopyRows(ctx, tx, recordsTable, copyColumns, records, seqRow); err != nil {
		return eris.Wrap(err, "postgres: copy records")
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit replace")
}
