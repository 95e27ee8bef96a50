package store

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/mindshare-cli/internal/model"
)

// openSQLite opens a SQLite database at the given path and configures WAL mode.
func openSQLite(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return db, nil
}

// SQLiteStore implements RecordStore using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens the record database at dsn.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := openSQLite(dsn)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteRecordsMigration = `
CREATE TABLE IF NOT EXISTS leaderboard_records (
	seq                  INTEGER PRIMARY KEY,
	project              TEXT NOT NULL,
	period               TEXT NOT NULL,
	position             INTEGER,
	position_change      INTEGER,
	mindshare_percentage REAL,
	relative_mindshare   REAL,
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

const recordColumnList = `project, period, position, position_change, mindshare_percentage, relative_mindshare,
	x_id, name, rank, score, score_percentile, score_quantile, username`

// Migrate creates the records table.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteRecordsMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load returns every record in insertion order.
func (s *SQLiteStore) Load(ctx context.Context) ([]model.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumnList+` FROM leaderboard_records ORDER BY seq`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load records")
	}
	defer rows.Close() //nolint:errcheck

	var records []model.Record
	for rows.Next() {
		var (
			r                                 model.Record
			period                            string
			position, positionChange          sql.NullInt64
			mindshare, relative               sql.NullFloat64
			id, name, rank, score, pct, quant sql.NullString
			username                          sql.NullString
		)
		if err := rows.Scan(&r.Project, &period, &position, &positionChange, &mindshare, &relative,
			&id, &name, &rank, &score, &pct, &quant, &username); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		r.Period = model.Period(period)
		r.Position = nullInt(position)
		r.PositionChange = nullInt(positionChange)
		r.MindsharePercentage = nullFloat(mindshare)
		r.RelativeMindshare = nullFloat(relative)
		r.ID = nullString(id)
		r.Name = nullString(name)
		r.Rank = nullString(rank)
		r.Score = nullString(score)
		r.ScorePercentile = nullString(pct)
		r.ScoreQuantile = nullString(quant)
		r.Username = nullString(username)
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: iterate records")
}

// Replace deletes all rows and inserts records in one transaction.
func (s *SQLiteStore) Replace(ctx context.Context, records []model.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin replace")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM leaderboard_records`); err != nil {
		return eris.Wrap(err, "sqlite: clear records")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO leaderboard_records (seq, `+recordColumnList+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close() //nolint:errcheck

	for i, r := range records {
		if _, err := stmt.ExecContext(ctx, append([]any{i + 1}, recordArgs(r)...)...); err != nil {
			return eris.Wrapf(err, "sqlite: insert record %d", i+1)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit replace")
}

// recordArgs returns the column values for recordColumnList. Nil pointers
// bind as NULL.
func recordArgs(r model.Record) []any {
	return []any{
		r.Project, string(r.Period), r.Position, r.PositionChange, r.MindsharePercentage, r.RelativeMindshare,
		r.ID, r.Name, r.Rank, r.Score, r.ScorePercentile, r.ScoreQuantile, r.Username,
	}
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}
