// Package fetcher retrieves curriculum documents from their upstream
// locations. Each curriculum has an ordered list of candidate URLs; the
// fetcher walks the list and returns the first document that loads, so a
// renamed default branch costs one failed attempt instead of a sync.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/corpix/uarand"
	"github.com/garyellow/ossu-tracker-go/internal/config"
	apperrors "github.com/garyellow/ossu-tracker-go/internal/errors"
	"github.com/garyellow/ossu-tracker-go/internal/logger"
	"github.com/garyellow/ossu-tracker-go/internal/metrics"
)

// DefaultMaxRetries is the in-location retry count callers use when no
// override applies. The ordered location list is the outer retry policy,
// so the inner count stays small.
const DefaultMaxRetries = 2

// Fetcher downloads curriculum documents with pacing, per-location
// timeouts, and concurrent-fetch deduplication.
type Fetcher struct {
	httpClient  *http.Client
	rateLimiter *RateLimiter
	group       *Group
	log         *logger.Logger
	metrics     *metrics.Metrics
	timeout     time.Duration
	maxRetries  int
}

// New creates a fetcher. timeout bounds one location attempt including
// in-location retries; minDelay/maxDelay pace consecutive fetches;
// maxRetries is the in-location retry count for transient failures.
func New(timeout, minDelay, maxDelay time.Duration, maxRetries int, log *logger.Logger, m *metrics.Metrics) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		rateLimiter: NewRateLimiter(minDelay, maxDelay),
		group:       NewGroup(),
		log:         log.WithModule("fetcher"),
		metrics:     m,
		timeout:     timeout,
		maxRetries:  maxRetries,
	}
}

// Fetch returns the raw document text for the named curriculum, trying
// each location in order. Concurrent calls for the same name share one
// upstream fetch. When every location fails, the returned error is a
// *errors.FetchError carrying all attempts.
func (f *Fetcher) Fetch(ctx context.Context, name string, locations []string) (string, error) {
	start := time.Now()

	result, shared, err := f.group.Do(ctx, name, func() (interface{}, error) {
		return f.fetchDocument(ctx, name, locations)
	})
	if shared {
		f.metrics.RecordSingleflightDedup("fetch")
	}

	duration := time.Since(start).Seconds()
	if err != nil {
		f.metrics.RecordFetchRequest(name, statusLabel(err), duration)
		return "", err
	}

	f.metrics.RecordFetchRequest(name, "success", duration)
	return result.(string), nil
}

// fetchDocument walks the source locations in order.
func (f *Fetcher) fetchDocument(ctx context.Context, name string, locations []string) (string, error) {
	log := f.log.WithField("curriculum", name)

	var attempts []apperrors.FetchAttempt
	for _, location := range locations {
		text, statusCode, err := f.fetchLocation(ctx, location)
		if err == nil {
			log.Debugf("fetched document from %s (%d bytes)", location, len(text))
			return text, nil
		}

		attempts = append(attempts, apperrors.FetchAttempt{
			URL:        location,
			StatusCode: statusCode,
			Err:        err,
		})
		log.Warnf("document location failed: %s: %v", location, err)

		// The parent context is gone, later locations would fail the same way
		if ctx.Err() != nil {
			break
		}
	}

	return "", apperrors.NewFetchError(name, attempts)
}

// fetchLocation performs one bounded attempt against a single location,
// retrying transient failures inside the location's time budget.
func (f *Fetcher) fetchLocation(ctx context.Context, url string) (string, int, error) {
	locCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	var text string
	var statusCode int

	err := RetryWithBackoff(locCtx, f.maxRetries, config.RetryInitial, func() error {
		// Wait for rate limiter
		if err := f.rateLimiter.Wait(locCtx); err != nil {
			return permanent(err)
		}

		req, err := http.NewRequestWithContext(locCtx, http.MethodGet, url, nil)
		if err != nil {
			return permanent(fmt.Errorf("failed to create request: %w", err))
		}

		req.Header.Set("User-Agent", uarand.GetRandom())
		req.Header.Set("Accept", "text/markdown,text/plain;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Encoding", "gzip")

		resp, err := f.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()
		statusCode = resp.StatusCode

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			switch resp.StatusCode {
			case http.StatusTooManyRequests: // Rate limited - retry with backoff
				return fmt.Errorf("rate limited for %s: status %d", url, resp.StatusCode)
			case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
				return fmt.Errorf("server error for %s: status %d", url, resp.StatusCode)
			case http.StatusNotFound, http.StatusForbidden, http.StatusUnauthorized:
				// The location does not exist, move on to the next one
				return permanent(fmt.Errorf("client error for %s: status %d", url, resp.StatusCode))
			default:
				return fmt.Errorf("unexpected status for %s: %d", url, resp.StatusCode)
			}
		}

		text, err = readDocument(resp)
		if err != nil {
			return err
		}
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("empty document from %s", url)
		}
		return nil
	})
	if err != nil {
		return "", statusCode, err
	}

	return text, statusCode, nil
}

// statusLabel maps a fetch error to its metric label.
func statusLabel(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "error"
}
