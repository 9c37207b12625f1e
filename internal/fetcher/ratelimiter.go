package fetcher

import (
	"context"
	"crypto/rand"
	"math/big"
	"sync"
	"time"
)

// RateLimiter paces outgoing document fetches. Consecutive fetches are
// separated by a randomized delay in [minDelay, maxDelay) so the service
// stays a polite client even when several curricula sync back to back.
type RateLimiter struct {
	mu       sync.Mutex
	next     time.Time
	minDelay time.Duration
	maxDelay time.Duration
}

// NewRateLimiter creates a rate limiter with the given delay window.
// maxDelay values at or below minDelay disable the jitter.
func NewRateLimiter(minDelay, maxDelay time.Duration) *RateLimiter {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &RateLimiter{
		minDelay: minDelay,
		maxDelay: maxDelay,
	}
}

// Wait blocks until the next fetch slot opens or the context is done.
// Slots are reserved under lock, so concurrent callers queue up instead
// of bursting when the lock releases.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	now := time.Now()
	var wait time.Duration
	if r.next.After(now) {
		wait = r.next.Sub(now)
	}
	r.next = now.Add(wait + r.randomDelay())
	r.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// randomDelay returns a delay in [minDelay, maxDelay).
func (r *RateLimiter) randomDelay() time.Duration {
	window := int64(r.maxDelay - r.minDelay)
	if window <= 0 {
		return r.minDelay
	}
	jitterBig, err := rand.Int(rand.Reader, big.NewInt(window))
	if err != nil {
		return r.minDelay
	}
	return r.minDelay + time.Duration(jitterBig.Int64())
}
