package config

import (
	"testing"
	"time"
)

// TestServerTimeouts verifies HTTP server timeout constants
func TestServerTimeouts(t *testing.T) {
	tests := []struct {
		name     string
		got      time.Duration
		expected time.Duration
	}{
		{"ServerHTTPRead", ServerHTTPRead, 10 * time.Second},
		{"ServerHTTPWrite", ServerHTTPWrite, 120 * time.Second},
		{"ServerHTTPIdle", ServerHTTPIdle, 120 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.expected)
			}
		})
	}
}

// TestFetchTimeouts verifies document fetch timeout constants
func TestFetchTimeouts(t *testing.T) {
	tests := []struct {
		name     string
		got      time.Duration
		expected time.Duration
	}{
		{"FetchRequest", FetchRequest, 30 * time.Second},
		{"FetchRateLimit", FetchRateLimit, 500 * time.Millisecond},
		{"RetryInitial", RetryInitial, 2 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.expected)
			}
		})
	}
}

// TestDatabaseTimeouts verifies database-related timeout constants
func TestDatabaseTimeouts(t *testing.T) {
	tests := []struct {
		name     string
		got      time.Duration
		expected time.Duration
	}{
		{"DatabaseBusyTimeout", DatabaseBusyTimeout, 30 * time.Second},
		{"DatabaseConnMaxLifetime", DatabaseConnMaxLifetime, time.Hour},
		{"ReadinessCheckTimeout", ReadinessCheckTimeout, 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.expected)
			}
		})
	}
}

// TestBackgroundJobIntervals verifies background job intervals
func TestBackgroundJobIntervals(t *testing.T) {
	tests := []struct {
		name     string
		got      time.Duration
		expected time.Duration
	}{
		{"CatalogRefreshInterval", CatalogRefreshInterval, 24 * time.Hour},
		{"SnapshotInterval", SnapshotInterval, 6 * time.Hour},
		{"MetricsUpdateInterval", MetricsUpdateInterval, 5 * time.Minute},
		{"RateLimiterCleanupInterval", RateLimiterCleanupInterval, 5 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.expected)
			}
		})
	}
}

// TestTimeoutRelationships verifies that timeouts have proper relationships
func TestTimeoutRelationships(t *testing.T) {
	// FetchRequest must leave room for several failover locations within one
	// curriculum sync
	if 3*FetchRequest >= SyncCurriculumTimeout {
		t.Errorf("SyncCurriculumTimeout (%v) should cover at least 3 location attempts (%v each)",
			SyncCurriculumTimeout, FetchRequest)
	}

	// A full warmup runs every curriculum, so it needs more than one sync budget
	if WarmupDefault <= SyncCurriculumTimeout {
		t.Errorf("WarmupDefault (%v) should be > SyncCurriculumTimeout (%v)",
			WarmupDefault, SyncCurriculumTimeout)
	}

	// Enrichment calls happen inside a curriculum sync
	if EnrichRequest >= SyncCurriculumTimeout {
		t.Errorf("EnrichRequest (%v) should be < SyncCurriculumTimeout (%v)",
			EnrichRequest, SyncCurriculumTimeout)
	}

	// The server write timeout must cover a synchronous sync trigger
	if ServerHTTPWrite <= SyncCurriculumTimeout/2 {
		t.Errorf("ServerHTTPWrite (%v) should cover a synchronous sync (%v)",
			ServerHTTPWrite, SyncCurriculumTimeout)
	}

	// Initial delays precede their intervals
	if CatalogRefreshInitialDelay >= CatalogRefreshInterval {
		t.Errorf("CatalogRefreshInitialDelay (%v) should be < CatalogRefreshInterval (%v)",
			CatalogRefreshInitialDelay, CatalogRefreshInterval)
	}
	if SnapshotInitialDelay >= SnapshotInterval {
		t.Errorf("SnapshotInitialDelay (%v) should be < SnapshotInterval (%v)",
			SnapshotInitialDelay, SnapshotInterval)
	}
}
