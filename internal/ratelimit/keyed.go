// Per-client rate limiting for the HTTP API.
package ratelimit

import (
	"sync"
	"time"

	"github.com/garyellow/ossu-tracker-go/internal/metrics"
)

// DefaultCleanupPeriod is used when KeyedConfig.CleanupPeriod is unset.
const DefaultCleanupPeriod = 5 * time.Minute

// KeyedConfig configures a KeyedLimiter instance.
type KeyedConfig struct {
	// Name identifies this limiter in metrics (e.g., "client", "sync").
	Name string

	// Burst and RefillRate parameterize each key's token bucket.
	Burst      float64
	RefillRate float64

	// DailyLimit adds a rolling 24h quota on top of the bucket.
	// Zero disables it.
	DailyLimit int

	// CleanupPeriod sets how often idle keys are evicted.
	CleanupPeriod time.Duration

	// Metrics receives drop counts and active-key gauges when non-nil.
	Metrics *metrics.Metrics
}

// KeyedLimiter meters requests per key (client IP). Each key gets its
// own token bucket, plus a rolling daily counter when DailyLimit is set,
// and idle keys are evicted in the background.
type KeyedLimiter struct {
	mu       sync.RWMutex
	entries  map[string]*keyedEntry
	config   KeyedConfig
	onDrop   func()
	onUpdate func(count int)
	stopCh   chan struct{}
}

// keyedEntry is one key's state. Its mutex spans the Check/Consume pair
// across both layers so two racing requests cannot both pass on the
// same last token.
type keyedEntry struct {
	mu      sync.Mutex
	limiter *Limiter
	daily   *SlidingWindowCounter
}

// NewKeyedLimiter creates a per-key limiter and starts its cleanup
// goroutine. Callers own the returned limiter and must Stop it.
func NewKeyedLimiter(cfg KeyedConfig) *KeyedLimiter {
	if cfg.CleanupPeriod <= 0 {
		cfg.CleanupPeriod = DefaultCleanupPeriod
	}

	kl := &KeyedLimiter{
		entries: make(map[string]*keyedEntry),
		config:  cfg,
		stopCh:  make(chan struct{}),
	}

	if cfg.Metrics != nil {
		kl.onDrop = func() {
			cfg.Metrics.RecordRateLimiterDrop(cfg.Name)
		}
		kl.onUpdate = func(count int) {
			cfg.Metrics.SetRateLimiterActiveKeys(cfg.Name, count)
		}
	}

	go kl.cleanupLoop()

	return kl
}

// Allow reports whether a request for key is admitted, consuming from
// both the bucket and the daily quota when it is. An empty key is
// always admitted.
func (kl *KeyedLimiter) Allow(key string) bool {
	if key == "" {
		return true
	}

	entry := kl.getOrCreateEntry(key)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	// Both layers must pass before either consumes.
	if entry.daily != nil && !entry.daily.Check() {
		if kl.onDrop != nil {
			kl.onDrop()
		}
		return false
	}
	if !entry.limiter.Check() {
		if kl.onDrop != nil {
			kl.onDrop()
		}
		return false
	}

	if entry.daily != nil {
		entry.daily.Consume()
	}
	entry.limiter.Consume()

	return true
}

// getOrCreateEntry returns the entry for a key, creating it if needed.
func (kl *KeyedLimiter) getOrCreateEntry(key string) *keyedEntry {
	kl.mu.RLock()
	entry, exists := kl.entries[key]
	kl.mu.RUnlock()
	if exists {
		return entry
	}

	kl.mu.Lock()
	defer kl.mu.Unlock()

	// Another request may have created it between the locks.
	if entry, exists = kl.entries[key]; exists {
		return entry
	}

	entry = &keyedEntry{
		limiter: New(kl.config.Burst, kl.config.RefillRate),
		daily:   NewSlidingWindowCounter(kl.config.DailyLimit, 24*time.Hour),
	}
	kl.entries[key] = entry
	return entry
}

// GetAvailable returns the number of bucket tokens left for a key.
// A key with no entry yet reports full burst capacity.
func (kl *KeyedLimiter) GetAvailable(key string) float64 {
	if key == "" {
		return kl.config.Burst
	}

	kl.mu.RLock()
	entry, exists := kl.entries[key]
	kl.mu.RUnlock()
	if !exists {
		return kl.config.Burst
	}

	return entry.limiter.Available()
}

// GetDailyRemaining returns the rolling daily quota left for a key.
// Returns -1 when no daily limit is configured.
func (kl *KeyedLimiter) GetDailyRemaining(key string) int {
	if kl.config.DailyLimit <= 0 {
		return -1
	}

	kl.mu.RLock()
	entry, exists := kl.entries[key]
	kl.mu.RUnlock()
	if !exists {
		return kl.config.DailyLimit
	}

	return entry.daily.GetRemaining()
}

// GetActiveCount returns the number of keys currently tracked.
func (kl *KeyedLimiter) GetActiveCount() int {
	kl.mu.RLock()
	defer kl.mu.RUnlock()
	return len(kl.entries)
}

// cleanupLoop periodically evicts idle keys.
func (kl *KeyedLimiter) cleanupLoop() {
	ticker := time.NewTicker(kl.config.CleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-kl.stopCh:
			return
		case <-ticker.C:
			kl.mu.Lock()
			for key, entry := range kl.entries {
				// Evict only when the bucket is full AND the daily window is
				// clear: deleting an entry with live daily usage would reset
				// the client's rolling quota.
				if entry.limiter.IsFull() && (entry.daily == nil || entry.daily.GetEffectiveCount() == 0) {
					delete(kl.entries, key)
				}
			}
			activeCount := len(kl.entries)
			kl.mu.Unlock()

			if kl.onUpdate != nil {
				kl.onUpdate(activeCount)
			}
		}
	}
}

// Stop ends the cleanup goroutine. Safe to call multiple times.
func (kl *KeyedLimiter) Stop() {
	select {
	case <-kl.stopCh:
	default:
		close(kl.stopCh)
	}
}
