// Package model defines the leaderboard records, harvest tasks, and run
// bookkeeping types shared across the harvester.
package model

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Columns is the durable store header, in order.
var Columns = []string{
	"project",
	"period",
	"position",
	"positionChange",
	"mindsharePercentage",
	"relativeMindshare",
	"id",
	"name",
	"rank",
	"score",
	"scorePercentile",
	"scoreQuantile",
	"username",
}

// Record is one leaderboard entry for a project and period.
// Nil pointers are nulls. The xInfo scalars keep the text the API sent,
// since their JSON types vary between numbers and strings.
type Record struct {
	Project             string   `json:"project"`
	Period              Period   `json:"period"`
	Position            *int64   `json:"position"`
	PositionChange      *int64   `json:"positionChange"`
	MindsharePercentage *float64 `json:"mindsharePercentage"`
	RelativeMindshare   *float64 `json:"relativeMindshare"`
	ID                  *string  `json:"id"`
	Name                *string  `json:"name"`
	Rank                *string  `json:"rank"`
	Score               *string  `json:"score"`
	ScorePercentile     *string  `json:"scorePercentile"`
	ScoreQuantile       *string  `json:"scoreQuantile"`
	Username            *string  `json:"username"`
}

// Key identifies a record for dedup purposes. Period is deliberately not
// part of it.
type Key struct {
	Project  string
	Username string
}

// Key returns the dedup key and false when the username is null.
func (r Record) Key() (Key, bool) {
	if r.Username == nil {
		return Key{}, false
	}
	return Key{Project: r.Project, Username: *r.Username}, true
}

// Row renders the record in Columns order. Nulls become empty cells.
func (r Record) Row() []string {
	return []string{
		r.Project,
		string(r.Period),
		formatInt(r.Position),
		formatInt(r.PositionChange),
		formatFloat(r.MindsharePercentage),
		formatFloat(r.RelativeMindshare),
		formatText(r.ID),
		formatText(r.Name),
		formatText(r.Rank),
		formatText(r.Score),
		formatText(r.ScorePercentile),
		formatText(r.ScoreQuantile),
		formatText(r.Username),
	}
}

// HeaderIndex maps column names to positions in a header row. Unknown
// columns are ignored; missing ones read as null.
type HeaderIndex map[string]int

// NewHeaderIndex builds an index from a header row.
func NewHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	return idx
}

// RecordFromRow parses a row laid out according to idx.
func RecordFromRow(idx HeaderIndex, row []string) (Record, error) {
	cell := func(col string) string {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	rec := Record{
		Project:         cell("project"),
		Period:          Period(cell("period")),
		ID:              ParseText(cell("id")),
		Name:            ParseText(cell("name")),
		Rank:            ParseText(cell("rank")),
		Score:           ParseText(cell("score")),
		ScorePercentile: ParseText(cell("scorePercentile")),
		ScoreQuantile:   ParseText(cell("scoreQuantile")),
		Username:        ParseText(cell("username")),
	}

	var err error
	if rec.Position, err = ParseInt(cell("position")); err != nil {
		return Record{}, eris.Wrap(err, "model: position")
	}
	if rec.PositionChange, err = ParseInt(cell("positionChange")); err != nil {
		return Record{}, eris.Wrap(err, "model: positionChange")
	}
	if rec.MindsharePercentage, err = ParseFloat(cell("mindsharePercentage")); err != nil {
		return Record{}, eris.Wrap(err, "model: mindsharePercentage")
	}
	if rec.RelativeMindshare, err = ParseFloat(cell("relativeMindshare")); err != nil {
		return Record{}, eris.Wrap(err, "model: relativeMindshare")
	}
	return rec, nil
}

// ParseInt parses a nullable integer. Integral floats such as "3.0" are
// accepted because pandas writes integer columns containing nulls that way.
func ParseInt(s string) (*int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return &n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "model: parse int %q", s)
	}
	if math.IsNaN(f) {
		return nil, nil
	}
	if f != math.Trunc(f) {
		return nil, eris.Errorf("model: parse int %q: not integral", s)
	}
	n := int64(f)
	return &n, nil
}

// ParseFloat parses a nullable float. "NaN" reads as null.
func ParseFloat(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "model: parse float %q", s)
	}
	if math.IsNaN(f) {
		return nil, nil
	}
	return &f, nil
}

// ParseText returns nil for an empty cell.
func ParseText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func formatInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatText(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
