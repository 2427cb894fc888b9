// Package livefeed fetches small live datasets (current weather, coin prices)
// from public JSON APIs and serves them from a TTL cache that keeps the last
// good value when the upstream fails.
package livefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// UserAgent identifies this service to the public APIs it polls.
const UserAgent = "pandemic-data-etl/1.0"

// ErrRateLimited is matched by errors.Is when an upstream answered 429.
var ErrRateLimited = errors.New("rate limited")

// RateLimitError carries the upstream's Retry-After hint.
type RateLimitError struct {
	RetryAfter string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter == "" {
		return "429 too many requests"
	}
	return fmt.Sprintf("429 too many requests, retry after %ss", e.RetryAfter)
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

// RetryAfterOf returns the Retry-After hint from a rate-limit error, or "".
func RetryAfterOf(err error) string {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter
	}
	return ""
}

// httpGetter performs JSON GETs with the service's timeout and headers.
type httpGetter struct {
	client *http.Client
}

func newHTTPGetter(timeout time.Duration) httpGetter {
	return httpGetter{client: &http.Client{Timeout: timeout}}
}

func (g httpGetter) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{RetryAfter: resp.Header.Get("Retry-After")}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("upstream status %d: %s", resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
