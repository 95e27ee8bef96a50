package wallchain

import (
	"bytes"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/mindshare-cli/internal/model"
)

// ErrMalformedEntry marks an entry that cannot be turned into a record.
var ErrMalformedEntry = eris.New("wallchain: malformed leaderboard entry")

// Page is the leaderboard response body.
type Page struct {
	Entries []Entry `json:"entries"`
}

// Entry is one leaderboard row as the API returns it.
type Entry struct {
	Position            *json.Number `json:"position"`
	PositionChange      *json.Number `json:"positionChange"`
	MindsharePercentage *json.Number `json:"mindsharePercentage"`
	RelativeMindshare   *json.Number `json:"relativeMindshare"`
	XInfo               *XInfo       `json:"xInfo"`
}

// XInfo is the nested account block of an entry.
type XInfo struct {
	ID              Scalar `json:"id"`
	Name            Scalar `json:"name"`
	Rank            Scalar `json:"rank"`
	Score           Scalar `json:"score"`
	ScorePercentile Scalar `json:"scorePercentile"`
	ScoreQuantile   Scalar `json:"scoreQuantile"`
	Username        Scalar `json:"username"`
}

// Scalar holds any JSON scalar as text. Strings are unquoted, numbers and
// booleans keep their literal form, null leaves it unset.
type Scalar struct {
	Text  string
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Scalar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*s = Scalar{}
	case len(data) > 0 && data[0] == '"':
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return eris.Wrap(err, "wallchain: decode string scalar")
		}
		*s = Scalar{Text: str, Valid: true}
	case len(data) > 0 && (data[0] == '{' || data[0] == '['):
		return eris.Errorf("wallchain: expected scalar, got %s", data)
	default:
		*s = Scalar{Text: string(data), Valid: true}
	}
	return nil
}

// Ptr returns nil for null.
func (s Scalar) Ptr() *string {
	if !s.Valid {
		return nil
	}
	text := s.Text
	return &text
}

// Record converts the entry into a record for the given task.
func (e Entry) Record(task model.Task) (model.Record, error) {
	if e.XInfo == nil {
		return model.Record{}, eris.Wrap(ErrMalformedEntry, "entry without xInfo")
	}

	rec := model.Record{
		Project:         task.Company,
		Period:          task.Period,
		ID:              e.XInfo.ID.Ptr(),
		Name:            e.XInfo.Name.Ptr(),
		Rank:            e.XInfo.Rank.Ptr(),
		Score:           e.XInfo.Score.Ptr(),
		ScorePercentile: e.XInfo.ScorePercentile.Ptr(),
		ScoreQuantile:   e.XInfo.ScoreQuantile.Ptr(),
		Username:        e.XInfo.Username.Ptr(),
	}

	var err error
	if rec.Position, err = model.ParseInt(numberText(e.Position)); err != nil {
		return model.Record{}, eris.Wrap(ErrMalformedEntry, err.Error())
	}
	if rec.PositionChange, err = model.ParseInt(numberText(e.PositionChange)); err != nil {
		return model.Record{}, eris.Wrap(ErrMalformedEntry, err.Error())
	}
	if rec.MindsharePercentage, err = model.ParseFloat(numberText(e.MindsharePercentage)); err != nil {
		return model.Record{}, eris.Wrap(ErrMalformedEntry, err.Error())
	}
	if rec.RelativeMindshare, err = model.ParseFloat(numberText(e.RelativeMindshare)); err != nil {
		return model.Record{}, eris.Wrap(ErrMalformedEntry, err.Error())
	}
	return rec, nil
}

func numberText(n *json.Number) string {
	if n == nil {
		return ""
	}
	return n.String()
}
