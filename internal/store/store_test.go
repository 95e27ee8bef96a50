package store

import "github.com/sells-group/mindshare-cli/internal/model"

func ptr[T any](v T) *T { return &v }

// testRecord returns a fully populated record for project/username.
func testRecord(project, username string, position int64) model.Record {
	return model.Record{
		Project:             project,
		Period:              model.Period7d,
		Position:            ptr(position),
		PositionChange:      ptr(int64(-2)),
		MindsharePercentage: ptr(1.25),
		RelativeMindshare:   ptr(0.5),
		ID:                  ptr("x-" + username),
		Name:                ptr("Name " + username),
		Rank:                ptr("gold"),
		Score:               ptr("812"),
		ScorePercentile:     ptr("97"),
		ScoreQuantile:       ptr("top1"),
		Username:            ptr(username),
	}
}
