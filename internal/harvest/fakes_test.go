package harvest

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"

	"github.com/sells-group/mindshare-cli/internal/model"
	"github.com/sells-group/mindshare-cli/internal/wallchain"
)

// fakeSource answers leaderboard requests from fn and records each call.
type fakeSource struct {
	mu    sync.Mutex
	calls []model.Task
	fn    func(ctx context.Context, task model.Task, call int) (*wallchain.Page, int, error)
}

func (f *fakeSource) Leaderboard(ctx context.Context, task model.Task) (*wallchain.Page, int, error) {
	f.mu.Lock()
	f.calls = append(f.calls, task)
	n := len(f.calls)
	f.mu.Unlock()
	return f.fn(ctx, task, n)
}

func (f *fakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// emptySource returns an empty page for every task.
func emptySource() *fakeSource {
	return &fakeSource{fn: func(context.Context, model.Task, int) (*wallchain.Page, int, error) {
		return &wallchain.Page{}, 200, nil
	}}
}

type staticDiscoverer struct {
	ids   []string
	err   error
	calls int
}

func (d *staticDiscoverer) Companies(context.Context) ([]string, error) {
	d.calls++
	return d.ids, d.err
}

// memStore is an in-memory RecordStore that counts writes.
type memStore struct {
	records  []model.Record
	replaces int
	err      error
}

func (m *memStore) Load(context.Context) ([]model.Record, error) {
	return append([]model.Record(nil), m.records...), nil
}

func (m *memStore) Replace(_ context.Context, records []model.Record) error {
	if m.err != nil {
		return m.err
	}
	m.replaces++
	m.records = append([]model.Record(nil), records...)
	return nil
}

func (m *memStore) Close() error { return nil }

func entry(username string, position int64) wallchain.Entry {
	pos := json.Number(strconv.FormatInt(position, 10))
	return wallchain.Entry{
		Position: &pos,
		XInfo:    &wallchain.XInfo{Username: wallchain.Scalar{Text: username, Valid: true}},
	}
}

func nullUserEntry(position int64) wallchain.Entry {
	pos := json.Number(strconv.FormatInt(position, 10))
	return wallchain.Entry{Position: &pos, XInfo: &wallchain.XInfo{}}
}

func page(entries ...wallchain.Entry) *wallchain.Page {
	return &wallchain.Page{Entries: entries}
}

func stored(project, username string) model.Record {
	return model.Record{Project: project, Period: model.Period7d, Username: &username}
}

func usernames(records []model.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		if r.Username == nil {
			out = append(out, "<null>")
			continue
		}
		out = append(out, r.Project+"/"+*r.Username)
	}
	return out
}
