// Package wallchain talks to the Wallchain voices API: company discovery
// and per-company mindshare leaderboard pages.
package wallchain

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/mindshare-cli/internal/fetcher"
	"github.com/sells-group/mindshare-cli/internal/model"
	"github.com/sells-group/mindshare-cli/internal/resilience"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://api.wallchain.xyz/voices"

// Options configures the client.
type Options struct {
	BaseURL  string
	PageSize int
	OrderBy  string
	Headers  map[string]string
}

// Client builds requests for the voices API on top of a Fetcher.
type Client struct {
	fetcher fetcher.Fetcher
	baseURL string
	opts    Options
	header  http.Header
}

// NewClient creates a client. Zero options fall back to the values the
// leaderboard UI uses (pageSize 20, orderBy position).
func NewClient(f fetcher.Fetcher, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 20
	}
	if opts.OrderBy == "" {
		opts.OrderBy = "position"
	}
	header := http.Header{}
	header.Set("Accept", "application/json, text/plain, */*")
	for k, v := range opts.Headers {
		header.Set(k, v)
	}
	return &Client{
		fetcher: f,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		opts:    opts,
		header:  header,
	}
}

type companyCard struct {
	CompanyID string `json:"companyId"`
}

// Companies lists every company id from the discovery endpoint. Any
// failure here is fatal to a harvest.
func (c *Client) Companies(ctx context.Context) ([]string, error) {
	rawURL := c.baseURL + "/companies/cards"
	resp, err := c.fetcher.Get(ctx, rawURL, c.header)
	if err != nil {
		return nil, eris.Wrap(err, "wallchain: discovery")
	}
	if !resp.OK() {
		return nil, resilience.NewStatusError("wallchain: discovery", resp.StatusCode)
	}

	cards, err := fetcher.DecodeArray[companyCard](ctx, bytes.NewReader(resp.Body))
	if err != nil {
		return nil, eris.Wrap(err, "wallchain: decode discovery")
	}

	ids := make([]string, 0, len(cards))
	for _, card := range cards {
		if card.CompanyID == "" {
			continue
		}
		ids = append(ids, card.CompanyID)
	}
	return ids, nil
}

// LeaderboardURL builds the page URL for a task.
func (c *Client) LeaderboardURL(task model.Task) string {
	q := url.Values{}
	q.Set("page", strconv.Itoa(task.Page))
	q.Set("pageSize", strconv.Itoa(c.opts.PageSize))
	q.Set("orderBy", c.opts.OrderBy)
	q.Set("ascending", task.AscendingParam())
	q.Set("period", string(task.Period))
	return c.baseURL + "/companies/" + url.PathEscape(task.Company) + "/leaderboard?" + q.Encode()
}

// Leaderboard issues exactly one request for the task's page. A non-2xx
// status is reported through the returned status code with a nil page and
// nil error; err is only set when no usable response was obtained.
func (c *Client) Leaderboard(ctx context.Context, task model.Task) (*Page, int, error) {
	resp, err := c.fetcher.Get(ctx, c.LeaderboardURL(task), c.header)
	if err != nil {
		return nil, 0, eris.Wrapf(err, "wallchain: leaderboard %s", task)
	}
	if !resp.OK() {
		return nil, resp.StatusCode, nil
	}

	page, err := fetcher.DecodeObject[Page](bytes.NewReader(resp.Body))
	if err != nil {
		return nil, resp.StatusCode, eris.Wrapf(err, "wallchain: decode leaderboard %s", task)
	}
	return page, resp.StatusCode, nil
}
