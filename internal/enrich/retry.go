// Retry backoff for LLM API calls.
// Implements AWS-recommended Full Jitter exponential backoff to avoid
// thundering-herd retries against rate-limited providers.
package enrich

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"
)

// CalculateBackoff returns the delay before the given retry attempt.
//
// Uses Full Jitter: delay = random(0, min(maxDelay, initialDelay * 2^(attempt-1))).
// Attempt 1 is the first retry.
func CalculateBackoff(attempt int, initialDelay, maxDelay time.Duration) time.Duration {
	if attempt <= 0 {
		return 0
	}

	// Exponential: initialDelay * 2^(attempt-1), capped at maxDelay.
	delay := initialDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxDelay {
			delay = maxDelay
			break
		}
	}
	if delay > maxDelay {
		delay = maxDelay
	}
	if delay <= 0 {
		return 0
	}

	// Full jitter: uniform random in [0, delay).
	n, err := rand.Int(rand.Reader, big.NewInt(int64(delay)))
	if err != nil {
		// crypto/rand failure is effectively impossible; degrade to half delay.
		return delay / 2
	}
	return time.Duration(n.Int64())
}

// Sleep waits for the given duration or until the context is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// HasSufficientBudget reports whether the context deadline leaves at least
// the required duration. Contexts without a deadline always have budget.
func HasSufficientBudget(ctx context.Context, required time.Duration) bool {
	deadline, ok := ctx.Deadline()
	if !ok {
		return true
	}
	return time.Until(deadline) >= required
}
