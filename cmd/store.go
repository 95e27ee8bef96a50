package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/mindshare-cli/internal/config"
	"github.com/sells-group/mindshare-cli/internal/store"
)

// openRecordStore opens and migrates the configured record store.
func openRecordStore(ctx context.Context, sc config.StoreConfig) (store.RecordStore, error) {
	switch sc.Driver {
	case "", "csv":
		return store.NewCSV(sc.Path), nil
	case "sqlite":
		st, err := store.NewSQLite(sc.Path)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close() //nolint:errcheck
			return nil, err
		}
		return st, nil
	case "postgres":
		st, err := store.NewPostgres(ctx, sc.DatabaseURL, &store.PoolConfig{MaxConns: sc.MaxConns})
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close() //nolint:errcheck
			return nil, err
		}
		return st, nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", sc.Driver)
	}
}

// openRunLog opens and migrates the run history database.
func openRunLog(ctx context.Context, rc config.RunLogConfig) (*store.SQLiteRunLog, error) {
	rl, err := store.NewSQLiteRunLog(rc.Path)
	if err != nil {
		return nil, err
	}
	if err := rl.Migrate(ctx); err != nil {
		rl.Close() //nolint:errcheck
		return nil, err
	}
	return rl, nil
}
