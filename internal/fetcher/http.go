package fetcher

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/mindshare-cli/internal/resilience"
)

const maxBodyBytes = 16 << 20

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent string
	Timeout   time.Duration
	// MaxAttempts counts the first request. The default of 1 sends each
	// request exactly once.
	MaxAttempts int
	// RatePerSec paces requests across all goroutines. Zero disables pacing.
	RatePerSec  float64
	Burst       int
	BackoffBase time.Duration
	MaxConns    int
}

// HTTPFetcher implements Fetcher over net/http with shared pacing.
type HTTPFetcher struct {
	client *http.Client
	ua     string
	retry  resilience.RetryConfig
	pacer  *Pacer
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "mindshare-cli/1.0"
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = time.Second
	}
	if opts.MaxConns <= 0 {
		opts.MaxConns = 64
	}

	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: opts.MaxConns,
				MaxConnsPerHost:     opts.MaxConns,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		ua: opts.UserAgent,
		retry: resilience.RetryConfig{
			MaxAttempts:    max(opts.MaxAttempts, 1),
			InitialBackoff: opts.BackoffBase,
			MaxBackoff:     30 * time.Second,
			Multiplier:     2,
			JitterFraction: 0.5,
			OnRetry: func(attempt int, delay time.Duration, err error) {
				zap.L().Warn("fetcher: retrying request",
					zap.Int("attempt", attempt),
					zap.Duration("delay", delay),
					zap.Error(err),
				)
			},
		},
		pacer: NewPacer(opts.RatePerSec, opts.Burst),
	}
}

// Pacer exposes the shared pacer for observability.
func (f *HTTPFetcher) Pacer() *Pacer {
	return f.pacer
}

// Get fetches rawURL. With MaxAttempts > 1, retryable statuses and
// transient transport errors are tried again; once attempts run out the
// last response is returned whatever its status.
func (f *HTTPFetcher) Get(ctx context.Context, rawURL string, header http.Header) (*Response, error) {
	var last *Response
	resp, err := resilience.DoVal(ctx, f.retry, func(ctx context.Context) (*Response, error) {
		r, err := f.once(ctx, rawURL, header)
		if err != nil {
			return nil, err
		}
		last = r
		if resilience.RetryableStatus(r.StatusCode) {
			return nil, resilience.NewStatusError("", r.StatusCode)
		}
		return r, nil
	})
	switch {
	case err == nil:
		return resp, nil
	case last != nil && resilience.StatusCode(err) == last.StatusCode:
		return last, nil
	default:
		return nil, eris.Wrapf(err, "fetcher: get %s", rawURL)
	}
}

// once sends a single paced request and reads the whole body.
func (f *HTTPFetcher) once(ctx context.Context, rawURL string, header http.Header) (*Response, error) {
	if err := f.pacer.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "fetcher: pacer wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: create request")
	}
	req.Header = header.Clone()
	if req.Header == nil {
		req.Header = http.Header{}
	}
	req.Header.Set("User-Agent", f.ua)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		f.pacer.Throttled()
	case resp.StatusCode < 300:
		f.pacer.Succeeded()
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: read body from %s", rawURL)
	}
	if body, err = toUTF8(resp.Header.Get("Content-Type"), body); err != nil {
		return nil, err
	}
	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}
