// Package harvest fans leaderboard page requests out over a bounded worker
// pool, filters entries already in the durable store, and flushes whatever
// was accumulated, including after an interrupt.
package harvest

import "github.com/sells-group/mindshare-cli/internal/model"

// Snapshot is the read-only set of (project, username) keys present in
// the store when the run started. It is never mutated after construction,
// so workers share it without locking.
type Snapshot struct {
	keys map[model.Key]struct{}
}

// NewSnapshot indexes records. Records with a null username add no key.
func NewSnapshot(records []model.Record) *Snapshot {
	keys := make(map[model.Key]struct{}, len(records))
	for _, r := range records {
		if k, ok := r.Key(); ok {
			keys[k] = struct{}{}
		}
	}
	return &Snapshot{keys: keys}
}

// Contains reports whether r's key was already stored. A record with a
// null username is never contained.
func (s *Snapshot) Contains(r model.Record) bool {
	k, ok := r.Key()
	if !ok {
		return false
	}
	_, found := s.keys[k]
	return found
}

// Len is the number of distinct keys.
func (s *Snapshot) Len() int {
	return len(s.keys)
}
