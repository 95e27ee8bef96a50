package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestRecordKey(t *testing.T) {
	r := Record{Project: "acme", Username: ptr("alice")}
	key, ok := r.Key()
	require.True(t, ok)
	assert.Equal(t, Key{Project: "acme", Username: "alice"}, key)

	_, ok = Record{Project: "acme"}.Key()
	assert.False(t, ok, "null username has no key")
}

func TestRecordRow_ColumnOrder(t *testing.T) {
	r := Record{
		Project:             "acme",
		Period:              Period7d,
		Position:            ptr(int64(3)),
		MindsharePercentage: ptr(1.25),
		ID:                  ptr("42"),
		Username:            ptr("alice"),
	}
	row := r.Row()
	require.Len(t, row, len(Columns))
	assert.Equal(t, []string{"acme", "7d", "3", "", "1.25", "", "42", "", "", "", "", "", "alice"}, row)
}

func TestRecordFromRow_RoundTripsRow(t *testing.T) {
	r := Record{
		Project:        "acme",
		Period:         PeriodEpoch1,
		Position:       ptr(int64(1)),
		PositionChange: ptr(int64(-2)),
		Score:          ptr("98.5"),
		Username:       ptr("bob"),
	}
	got, err := RecordFromRow(NewHeaderIndex(Columns), r.Row())
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestRecordFromRow_ReorderedHeaderAndBOM(t *testing.T) {
	header := []string{"\ufeffusername", "project", "period", "position"}
	got, err := RecordFromRow(NewHeaderIndex(header), []string{"carol", "acme", "30d", "7.0"})
	require.NoError(t, err)
	assert.Equal(t, "acme", got.Project)
	assert.Equal(t, Period30d, got.Period)
	require.NotNil(t, got.Position)
	assert.Equal(t, int64(7), *got.Position)
	require.NotNil(t, got.Username)
	assert.Equal(t, "carol", *got.Username)
	assert.Nil(t, got.RelativeMindshare)
}

func TestRecordFromRow_BadNumber(t *testing.T) {
	_, err := RecordFromRow(NewHeaderIndex(Columns), []string{"acme", "7d", "abc"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "position")
}

func TestParseInt(t *testing.T) {
	tests := []struct {
		in      string
		want    *int64
		wantErr bool
	}{
		{"", nil, false},
		{"12", ptr(int64(12)), false},
		{"-4", ptr(int64(-4)), false},
		{"3.0", ptr(int64(3)), false},
		{"NaN", nil, false},
		{"3.5", nil, true},
		{"x", nil, true},
	}
	for _, tt := range tests {
		got, err := ParseInt(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseFloat(t *testing.T) {
	got, err := ParseFloat("0.125")
	require.NoError(t, err)
	assert.InDelta(t, 0.125, *got, 1e-9)

	got, err = ParseFloat("nan")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = ParseFloat("pct")
	assert.Error(t, err)
}

func TestPeriodValid(t *testing.T) {
	for _, p := range DefaultPeriods {
		assert.True(t, p.Valid(), p)
	}
	assert.False(t, Period("90d").Valid())
}

func TestTaskString(t *testing.T) {
	task := Task{Company: "acme", Period: Period7d, Page: 2, Ascending: true}
	assert.Equal(t, "acme|7d|2|true", task.String())
	assert.Equal(t, "false", Task{}.AscendingParam())
}
