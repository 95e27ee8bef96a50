package harvest

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/mindshare-cli/internal/model"
	"github.com/sells-group/mindshare-cli/internal/store"
)

// Merge returns prior records in their stored order followed by fresh ones.
func Merge(prior, fresh []model.Record) []model.Record {
	merged := make([]model.Record, 0, len(prior)+len(fresh))
	merged = append(merged, prior...)
	return append(merged, fresh...)
}

// Persist writes prior+fresh to st and reports whether it wrote. With no
// fresh records the store is left untouched.
func Persist(ctx context.Context, st store.RecordStore, prior, fresh []model.Record) (bool, error) {
	if len(fresh) == 0 {
		return false, nil
	}
	if err := st.Replace(ctx, Merge(prior, fresh)); err != nil {
		return false, eris.Wrap(err, "harvest: persist records")
	}
	return true, nil
}
