// Fallback chain across models and providers.
// Each tagger in the chain gets retries for transient errors; permanent
// errors stop the whole chain, everything else moves to the next tagger.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/garyellow/ossu-tracker-go/internal/metrics"
)

// FallbackTagger tries an ordered chain of taggers.
type FallbackTagger struct {
	chain       []Tagger
	retryConfig RetryConfig
	metrics     *metrics.Metrics
}

// NewFallbackTagger builds a fallback chain from the given taggers.
// Nil taggers are skipped. Zero retry fields take defaults.
func NewFallbackTagger(cfg RetryConfig, taggers ...Tagger) *FallbackTagger {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxRetryAttempts
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = DefaultInitialRetryDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultMaxRetryDelay
	}

	chain := make([]Tagger, 0, len(taggers))
	for _, t := range taggers {
		if t != nil {
			chain = append(chain, t)
		}
	}
	return &FallbackTagger{chain: chain, retryConfig: cfg}
}

// SetMetrics attaches a metrics sink for per-provider call recording.
func (f *FallbackTagger) SetMetrics(m *metrics.Metrics) {
	f.metrics = m
}

// Tag implements Tagger. It walks the chain until one tagger succeeds.
func (f *FallbackTagger) Tag(ctx context.Context, course CourseInfo) ([]string, error) {
	if f == nil || len(f.chain) == 0 {
		return nil, errors.New("no tagger configured")
	}

	var lastErr error
	for i, tagger := range f.chain {
		start := time.Now()
		topics, err := f.tagWithRetry(ctx, tagger, course)
		if err == nil {
			f.record(tagger.Provider(), "success")
			if i > 0 {
				slog.DebugContext(ctx, "tagging served by fallback",
					"provider", tagger.Provider(),
					"position", i)
			}
			return topics, nil
		}

		lastErr = err
		f.record(tagger.Provider(), errorStatus(err))

		action := ClassifyError(err)
		if action == ActionFail {
			// Permanent errors (bad key, canceled context) won't improve downstream.
			return nil, err
		}

		if i < len(f.chain)-1 {
			slog.WarnContext(ctx, "tagger failed, trying next",
				"provider", tagger.Provider(),
				"action", action.String(),
				"duration_ms", time.Since(start).Milliseconds(),
				"error", err)
		}
	}

	return nil, fmt.Errorf("all taggers failed: %w", lastErr)
}

// tagWithRetry calls one tagger with exponential backoff on transient errors.
func (f *FallbackTagger) tagWithRetry(ctx context.Context, tagger Tagger, course CourseInfo) ([]string, error) {
	var lastErr error
	for attempt := range f.retryConfig.MaxAttempts {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		topics, err := tagger.Tag(ctx, course)
		if err == nil {
			return topics, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return nil, err
		}
		if attempt == f.retryConfig.MaxAttempts-1 {
			break
		}

		backoff := CalculateBackoff(attempt+1, f.retryConfig.InitialDelay, f.retryConfig.MaxDelay)
		if !HasSufficientBudget(ctx, backoff) {
			break
		}
		slog.DebugContext(ctx, "retrying tagging call",
			"provider", tagger.Provider(),
			"attempt", attempt+1,
			"backoff_ms", backoff.Milliseconds(),
			"error", err)
		if err := Sleep(ctx, backoff); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// Provider implements Tagger. Reports the primary provider.
func (f *FallbackTagger) Provider() Provider {
	if f == nil || len(f.chain) == 0 {
		return ""
	}
	return f.chain[0].Provider()
}

// Close implements Tagger. Closes every tagger in the chain.
func (f *FallbackTagger) Close() error {
	if f == nil {
		return nil
	}
	var errs []error
	for _, t := range f.chain {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *FallbackTagger) record(provider Provider, status string) {
	if f.metrics == nil {
		return
	}
	f.metrics.RecordEnrichRequest(provider.String(), status)
}

// errorStatus maps an error to a metric status label.
func errorStatus(err error) string {
	if err == nil {
		return "success"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case containsAny(errStr, "quota", "billing"):
		return "quota_exhausted"
	case containsAny(errStr, "rate limit", "rate_limit", "429", "too many requests"):
		return "rate_limit"
	case containsAny(errStr, "500", "502", "503", "504", "internal server",
		"bad gateway", "service unavailable", "overloaded"):
		return "server_error"
	case containsAny(errStr, "401", "403", "invalid api key", "unauthorized", "permission denied"):
		return "auth_error"
	case containsAny(errStr, "400", "404", "422", "invalid request", "unprocessable"):
		return "invalid_request"
	case containsAny(errStr, "timeout", "deadline"):
		return "timeout"
	case containsAny(errStr, "no usable topics", "no json array", "invalid topics"):
		return "bad_output"
	default:
		return "error"
	}
}
