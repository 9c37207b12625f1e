// Package ratelimit provides the rate limiting primitives behind the API
// middleware: a token bucket for request pacing and a sliding window
// counter for rolling quotas, composed per caller by KeyedLimiter.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a token bucket. Tokens refill continuously at refillRate
// per second up to the burst ceiling; each admitted request costs one
// token. Safe for concurrent use.
type Limiter struct {
	mu         sync.Mutex
	tokens     float64
	burst      float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

// New creates a limiter holding at most burst tokens, refilled at
// refillRate tokens per second. The bucket starts full.
func New(burst, refillRate float64) *Limiter {
	return &Limiter{
		tokens:     burst,
		burst:      burst,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// credit advances the bucket to now. Callers hold mu.
func (l *Limiter) credit() {
	now := time.Now()
	l.tokens += now.Sub(l.lastRefill).Seconds() * l.refillRate
	if l.tokens > l.burst {
		l.tokens = l.burst
	}
	l.lastRefill = now
}

// Allow consumes a token when one is available. Non-blocking.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.credit()
	if l.tokens < 1 {
		return false
	}
	l.tokens--
	return true
}

// Check reports whether a token is available without consuming one.
// When admission depends on more than one limiter, the caller must hold
// an external lock across Check and Consume; separate calls race.
func (l *Limiter) Check() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.credit()
	return l.tokens >= 1
}

// Consume takes a token after a passing Check, under the same external
// lock as the Check.
func (l *Limiter) Consume() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.credit()
	if l.tokens >= 1 {
		l.tokens--
	}
}

// Available returns the token count after crediting elapsed time.
func (l *Limiter) Available() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.credit()
	return l.tokens
}

// IsFull reports whether the bucket is back at burst capacity, meaning
// the owner has been idle for at least a full refill cycle.
func (l *Limiter) IsFull() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.credit()
	return l.tokens >= l.burst
}

// Reset refills the bucket to capacity.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.tokens = l.burst
	l.lastRefill = time.Now()
}
