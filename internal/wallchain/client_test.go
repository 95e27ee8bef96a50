package wallchain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/mindshare-cli/internal/fetcher"
	"github.com/sells-group/mindshare-cli/internal/model"
	"github.com/sells-group/mindshare-cli/internal/resilience"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{Timeout: 5 * time.Second})
	return NewClient(f, Options{BaseURL: srv.URL, Headers: map[string]string{"sec-ch-ua-platform": "Linux"}})
}

func TestCompanies(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/companies/cards", r.URL.Path)
		assert.Equal(t, "Linux", r.Header.Get("Sec-Ch-Ua-Platform"))
		assert.Contains(t, r.Header.Get("Accept"), "application/json")
		w.Write([]byte(`[{"companyId":"acme","name":"Acme"},{"companyId":""},{"companyId":"globex"}]`))
	})

	ids, err := c.Companies(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"acme", "globex"}, ids)
}

func TestCompanies_BadStatusIsError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := c.Companies(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http status 403")
}

func TestCompanies_ServerErrorIsTransient(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.Companies(context.Background())
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestCompanies_BadBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>`))
	})

	_, err := c.Companies(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode discovery")
}

func TestCompanies_TruncatedBodyIsError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"companyId":"acme"},{"companyId":"globex"}`))
	})

	ids, err := c.Companies(context.Background())
	require.Error(t, err)
	assert.Nil(t, ids)
	assert.Contains(t, err.Error(), "read closing token")
}

func TestLeaderboardURL(t *testing.T) {
	c := NewClient(nil, Options{BaseURL: "https://api.example.com/voices/"})
	got := c.LeaderboardURL(model.Task{Company: "acme", Period: model.PeriodEpoch2, Page: 3, Ascending: true})
	assert.Equal(t,
		"https://api.example.com/voices/companies/acme/leaderboard?ascending=true&orderBy=position&page=3&pageSize=20&period=epoch-2",
		got)
}

func TestLeaderboard_DecodesPage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/companies/acme/leaderboard", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "1", q.Get("page"))
		assert.Equal(t, "20", q.Get("pageSize"))
		assert.Equal(t, "position", q.Get("orderBy"))
		assert.Equal(t, "false", q.Get("ascending"))
		assert.Equal(t, "7d", q.Get("period"))
		w.Write([]byte(`{"entries":[{"position":1,"positionChange":null,"mindsharePercentage":2.5,"relativeMindshare":0.75,
			"xInfo":{"id":123,"name":"Alice","rank":"7","score":99.5,"scorePercentile":0.99,"scoreQuantile":null,"username":"alice"}}]}`))
	})

	task := model.Task{Company: "acme", Period: model.Period7d, Page: 1}
	page, status, err := c.Leaderboard(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, page.Entries, 1)

	rec, err := page.Entries[0].Record(task)
	require.NoError(t, err)
	assert.Equal(t, "acme", rec.Project)
	assert.Equal(t, model.Period7d, rec.Period)
	assert.Equal(t, int64(1), *rec.Position)
	assert.Nil(t, rec.PositionChange)
	assert.InDelta(t, 2.5, *rec.MindsharePercentage, 1e-9)
	assert.Equal(t, "123", *rec.ID)
	assert.Equal(t, "7", *rec.Rank)
	assert.Equal(t, "99.5", *rec.Score)
	assert.Nil(t, rec.ScoreQuantile)
	assert.Equal(t, "alice", *rec.Username)
}

func TestLeaderboard_NonSuccessStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	page, status, err := c.Leaderboard(context.Background(), model.Task{Company: "acme", Period: model.Period30d, Page: 1})
	require.NoError(t, err)
	assert.Nil(t, page)
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestLeaderboard_MissingEntries(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"total":0}`))
	})

	page, _, err := c.Leaderboard(context.Background(), model.Task{Company: "acme", Period: model.Period30d, Page: 50})
	require.NoError(t, err)
	assert.Empty(t, page.Entries)
}

func TestLeaderboard_InvalidJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"entries":[`))
	})

	_, status, err := c.Leaderboard(context.Background(), model.Task{Company: "acme", Period: model.Period30d, Page: 1})
	require.Error(t, err)
	assert.Equal(t, http.StatusOK, status)
}

func TestEntryRecord_MissingXInfo(t *testing.T) {
	_, err := Entry{}.Record(model.Task{Company: "acme"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xInfo")
}

func TestScalar_Unmarshal(t *testing.T) {
	var x XInfo
	err := json.Unmarshal([]byte(`{"id":"abc","rank":12,"score":true,"name":null}`), &x)
	require.NoError(t, err)
	assert.Equal(t, Scalar{Text: "abc", Valid: true}, x.ID)
	assert.Equal(t, Scalar{Text: "12", Valid: true}, x.Rank)
	assert.Equal(t, Scalar{Text: "true", Valid: true}, x.Score)
	assert.False(t, x.Name.Valid)
	assert.False(t, x.Username.Valid, "absent field is null")
	assert.Nil(t, x.Name.Ptr())

	err = json.Unmarshal([]byte(`{"id":{"nested":1}}`), &x)
	assert.Error(t, err)
}

func TestLoadCompaniesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "companies.yaml")
	require.NoError(t, os.WriteFile(path, []byte("companies:\n  - acme\n  - ' globex '\n  - acme\n  - ''\n"), 0o644))

	ids, err := LoadCompaniesFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme", "globex"}, ids)
}

func TestLoadCompaniesFile_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "companies.yaml")
	require.NoError(t, os.WriteFile(path, []byte("companies: []\n"), 0o644))

	_, err := LoadCompaniesFile(path)
	require.Error(t, err)

	_, err = LoadCompaniesFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
