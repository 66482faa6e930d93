package store

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fuxihub/fuxiquant-go/internal/infra"
)

// HTTPFetcher implements Fetcher against a remote archive mirror, with the
// retry policy named in §5: a 30s per-request timeout, retrying once with
// a 500ms backoff on any non-404 failure (a 404 means the archive does not
// exist for that month and is not retried). Requests are throttled through
// a RateLimiter so a backtest spanning many codes/months cannot hammer the
// mirror faster than it tolerates.
type HTTPFetcher struct {
	BaseURL    string
	MaxRetries int
	Limiter    *infra.RateLimiter
}

// NewHTTPFetcher returns a fetcher with the §5 defaults: bursts of up to 5
// requests, then one request per 200ms, and one retry on transient failure. It shares infra.HTTPClient (a 30s
// timeout client) for the underlying requests.
func NewHTTPFetcher(baseURL string) *HTTPFetcher {
	return &HTTPFetcher{
		BaseURL:    baseURL,
		MaxRetries: 1,
		Limiter:    infra.NewRateLimiter(5, 200*time.Millisecond),
	}
}

// Fetch downloads {CODE}USDT-1m-YYYY-MM.zip from the configured mirror.
func (f *HTTPFetcher) Fetch(code string, year int, month int) (io.ReadCloser, error) {
	url := fmt.Sprintf("%s/%sUSDT-1m-%04d-%02d.zip", f.BaseURL, code, year, month)
	ctx := context.Background()

	var lastErr error
	for attempt := 0; attempt <= f.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(500 * time.Millisecond)
		}
		if f.Limiter != nil {
			if err := f.Limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("store: rate limiter: %w", err)
			}
		}

		body, status, err := infra.DoGet(ctx, url, nil)
		if err != nil {
			if status == http.StatusNotFound {
				return nil, fmt.Errorf("store: archive not found: %s", url)
			}
			lastErr = err
			continue
		}
		return body, nil
	}
	return nil, fmt.Errorf("store: fetch %s failed after retries: %w", url, lastErr)
}
