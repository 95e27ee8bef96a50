// Package fetcher is the rate-limited HTTP transport used to talk to the
// leaderboard API, plus JSON decoding helpers for its payloads.
package fetcher

import (
	"context"
	"net/http"
)

// Response is a fully read HTTP response. Non-2xx statuses are returned
// as responses, not errors; callers decide what a status means.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Fetcher issues GET requests.
type Fetcher interface {
	// Get fetches the URL with the given extra headers. An error means no
	// response was obtained (transport failure or cancellation).
	Get(ctx context.Context, url string, header http.Header) (*Response, error)
}
