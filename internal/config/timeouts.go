// Package config provides centralized timeout constants for the application.
//
// These values are tuned based on:
//   - raw.githubusercontent.com response behavior (fast on cache hits, slow
//     on cold fetches of large curriculum READMEs)
//   - SQLite performance characteristics (WAL mode, busy timeout)
//   - The cost of a full five-curriculum extraction run
//
// # Document fetch constraints
//
// A curriculum README lives at several candidate locations (branch-name
// variants of the same logical document). Each location gets its own bounded
// attempt and the ordered list is the retry policy, so per-location budgets
// stay tight: a dead location should cost one timeout, not a backoff ladder.
package config

import "time"

// HTTP server timeouts
const (
	// ServerHTTPRead is the HTTP server read timeout.
	// Short, since API requests carry small JSON payloads.
	ServerHTTPRead = 10 * time.Second

	// ServerHTTPWrite is the HTTP server write timeout.
	// Accommodates a synchronous sync trigger plus response serialization.
	ServerHTTPWrite = 120 * time.Second

	// ServerHTTPIdle is the HTTP server idle timeout for keep-alive connections.
	ServerHTTPIdle = 120 * time.Second
)

// Document fetch timeouts
const (
	// FetchRequest is the timeout for one HTTP request to a single source
	// location. The next location in the failover list is tried on timeout
	// or error.
	FetchRequest = 30 * time.Second

	// FetchRateLimit is the minimum delay between consecutive document
	// fetches. Keeps the service a polite raw.githubusercontent client.
	FetchRateLimit = 500 * time.Millisecond

	// RetryInitial is the initial delay before retrying a transient
	// object-storage or enrichment call. Exponential backoff doubles it.
	RetryInitial = 2 * time.Second
)

// Database timeouts
const (
	// DatabaseBusyTimeout is SQLite busy_timeout pragma value.
	// Handles concurrent write contention during catalog replacement.
	DatabaseBusyTimeout = 30 * time.Second

	// DatabaseConnMaxLifetime is the maximum lifetime of database connections.
	// Prevents stale connections and allows connection pool refresh.
	DatabaseConnMaxLifetime = time.Hour

	// ReadinessCheckTimeout bounds the dependency probes behind /ready.
	ReadinessCheckTimeout = 5 * time.Second

	// ObjectStoreRequest bounds one object-storage request (schedule state
	// reads, lock writes). Small JSON objects, so a tight budget.
	ObjectStoreRequest = 10 * time.Second
)

// Background job intervals
const (
	// CatalogRefreshInterval is how often the catalog is re-synced from the
	// upstream curriculum documents.
	CatalogRefreshInterval = 24 * time.Hour

	// CatalogRefreshInitialDelay is the delay before the first scheduled
	// refresh. Warmup performs the startup sync, so the job waits.
	CatalogRefreshInitialDelay = 1 * time.Hour

	// SnapshotInterval is how often a catalog snapshot is uploaded when
	// object storage is configured.
	SnapshotInterval = 6 * time.Hour

	// SnapshotInitialDelay is the delay before the first snapshot upload.
	// Allows warmup to finish so the first snapshot is complete.
	SnapshotInitialDelay = 15 * time.Minute

	// MetricsUpdateInterval is how often catalog size metrics are updated.
	MetricsUpdateInterval = 5 * time.Minute

	// ProgressReconcileInterval is how often recorded study time is
	// reconciled against stored percentages. A re-sync can change a
	// course's effort or duration, which shifts the time-derived estimate.
	ProgressReconcileInterval = 12 * time.Hour

	// RateLimiterCleanupInterval is how often inactive client rate limiters are cleaned.
	RateLimiterCleanupInterval = 5 * time.Minute
)

// Sync and warmup timeouts
const (
	// SyncCurriculumTimeout bounds one curriculum's fetch-extract-persist run.
	SyncCurriculumTimeout = 2 * time.Minute

	// WarmupDefault is the default timeout for the entire warmup process:
	// snapshot restore, delta replay, and the initial full sync.
	WarmupDefault = 10 * time.Minute

	// EnrichRequest is the timeout for one topic-enrichment call to an LLM
	// provider. Includes retry logic with exponential backoff.
	EnrichRequest = 20 * time.Second
)

// Graceful shutdown
const (
	// GracefulShutdown is the timeout for graceful server shutdown.
	// Allows in-flight requests to complete before forceful termination.
	GracefulShutdown = 30 * time.Second
)
