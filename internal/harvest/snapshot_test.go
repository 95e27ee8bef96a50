package harvest

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/mindshare-cli/internal/model"
)

func TestSnapshot_Contains(t *testing.T) {
	s := NewSnapshot([]model.Record{stored("acme", "alice"), stored("acme", "alice"), stored("beta", "bob")})

	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Contains(stored("acme", "alice")))
	assert.True(t, s.Contains(stored("beta", "bob")))
	assert.False(t, s.Contains(stored("acme", "bob")))
	assert.False(t, s.Contains(stored("beta", "alice")))
}

func TestSnapshot_KeyIgnoresPeriod(t *testing.T) {
	s := NewSnapshot([]model.Record{stored("acme", "alice")})

	other := stored("acme", "alice")
	other.Period = model.PeriodEpoch2
	assert.True(t, s.Contains(other))
}

func TestSnapshot_NullUsernameNeverMatches(t *testing.T) {
	s := NewSnapshot([]model.Record{{Project: "acme", Period: model.Period7d}})

	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Contains(model.Record{Project: "acme", Period: model.Period7d}))
}

func TestSnapshot_Empty(t *testing.T) {
	s := NewSnapshot(nil)
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Contains(stored("acme", "alice")))
}
