// Sliding window counter for rolling-window quotas.
package ratelimit

import (
	"sync"
	"time"
)

// SlidingWindowCounter enforces a quota over a rolling window in O(1)
// space. It keeps exact counts for the current and previous fixed
// windows and weights the previous one by its remaining overlap:
//
//	effective = curr + prev × (window - elapsed) / window
//
// A client that spent its daily sync quota yesterday evening therefore
// regains it gradually through today instead of all at once at the
// window boundary.
type SlidingWindowCounter struct {
	mu          sync.Mutex
	curr        int
	prev        int
	windowStart time.Time
	window      time.Duration
	limit       int
}

// NewSlidingWindowCounter enforces limit requests per window.
// Returns nil when limit <= 0; a nil counter admits everything.
func NewSlidingWindowCounter(limit int, window time.Duration) *SlidingWindowCounter {
	if limit <= 0 {
		return nil
	}
	return &SlidingWindowCounter{
		windowStart: time.Now(),
		window:      window,
		limit:       limit,
	}
}

// Allow admits and counts a request when the quota has room.
func (swc *SlidingWindowCounter) Allow() bool {
	if swc == nil {
		return true
	}

	swc.mu.Lock()
	defer swc.mu.Unlock()

	swc.rotate()
	if swc.weighted() >= float64(swc.limit) {
		return false
	}
	swc.curr++
	return true
}

// Check reports whether a request would be admitted, without counting
// it. Pair with Consume under an external lock.
func (swc *SlidingWindowCounter) Check() bool {
	if swc == nil {
		return true
	}

	swc.mu.Lock()
	defer swc.mu.Unlock()

	swc.rotate()
	return swc.weighted() < float64(swc.limit)
}

// Consume counts a request after a passing Check. The quota re-check
// keeps a racing caller from pushing the count past limit.
func (swc *SlidingWindowCounter) Consume() {
	if swc == nil {
		return
	}

	swc.mu.Lock()
	defer swc.mu.Unlock()

	swc.rotate()
	if swc.weighted() < float64(swc.limit) {
		swc.curr++
	}
}

// rotate advances the window pair once the current window has expired.
// Callers hold mu.
func (swc *SlidingWindowCounter) rotate() {
	elapsed := time.Since(swc.windowStart)
	if elapsed < swc.window {
		return
	}

	if passed := int(elapsed / swc.window); passed == 1 {
		swc.prev = swc.curr
		swc.windowStart = swc.windowStart.Add(swc.window)
	} else {
		// A gap of several windows means no overlap survives.
		swc.prev = 0
		swc.windowStart = swc.windowStart.Add(time.Duration(passed) * swc.window)
	}
	swc.curr = 0
}

// weighted returns the overlap-weighted count. Callers hold mu.
func (swc *SlidingWindowCounter) weighted() float64 {
	elapsed := time.Since(swc.windowStart)

	overlap := float64(swc.window-elapsed) / float64(swc.window)
	if overlap < 0 {
		overlap = 0
	}
	if overlap > 1 {
		overlap = 1
	}
	return float64(swc.curr) + float64(swc.prev)*overlap
}

// GetEffectiveCount returns the weighted count, for monitoring.
func (swc *SlidingWindowCounter) GetEffectiveCount() float64 {
	if swc == nil {
		return 0
	}

	swc.mu.Lock()
	defer swc.mu.Unlock()

	swc.rotate()
	return swc.weighted()
}

// GetRemaining returns the quota left in the window; -1 means unlimited.
func (swc *SlidingWindowCounter) GetRemaining() int {
	if swc == nil {
		return -1
	}

	swc.mu.Lock()
	defer swc.mu.Unlock()

	swc.rotate()
	remaining := float64(swc.limit) - swc.weighted()
	if remaining < 0 {
		return 0
	}
	return int(remaining)
}

// IsFull reports whether the quota is currently exhausted.
func (swc *SlidingWindowCounter) IsFull() bool {
	if swc == nil {
		return false
	}

	swc.mu.Lock()
	defer swc.mu.Unlock()

	swc.rotate()
	return swc.weighted() >= float64(swc.limit)
}
