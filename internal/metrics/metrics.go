package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Document fetch metrics
	FetchRequestsTotal   *prometheus.CounterVec
	FetchDurationSeconds *prometheus.HistogramVec

	// Extraction metrics
	ExtractedCoursesTotal *prometheus.CounterVec
	ExtractionErrorsTotal *prometheus.CounterVec
	DuplicatesDropped     *prometheus.CounterVec
	FallbackMergesTotal   *prometheus.CounterVec

	// Data integrity metrics
	CourseIntegrityIssues *prometheus.CounterVec

	// Sync metrics
	SyncRunsTotal       *prometheus.CounterVec
	SyncDurationSeconds *prometheus.HistogramVec
	CatalogCourses      *prometheus.GaugeVec

	// HTTP metrics
	HTTPErrorsTotal *prometheus.CounterVec

	// Progress metrics
	ProgressUpdatesTotal *prometheus.CounterVec

	// Search metrics
	SearchQueriesTotal    *prometheus.CounterVec
	SearchDurationSeconds prometheus.Histogram

	// Enrichment metrics
	EnrichRequestsTotal *prometheus.CounterVec

	// Snapshot metrics
	SnapshotOperationsTotal *prometheus.CounterVec

	// Rate limiter metrics
	RateLimiterDropped    *prometheus.CounterVec
	RateLimiterActiveKeys *prometheus.GaugeVec

	// Singleflight metrics
	SingleflightDedupTotal *prometheus.CounterVec

	// Warmup metrics
	WarmupTasksTotal *prometheus.CounterVec
	WarmupDuration   prometheus.Histogram
}

// New creates a new Metrics instance with all metrics registered
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		// Document fetch metrics
		FetchRequestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ossu_fetch_requests_total",
				Help: "Total number of curriculum document fetches by curriculum and status",
			},
			[]string{"curriculum", "status"}, // status: success, error, timeout
		),

		FetchDurationSeconds: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ossu_fetch_duration_seconds",
				Help:    "Curriculum document fetch duration in seconds by curriculum",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60}, // Matches 30s per-location timeout
			},
			[]string{"curriculum"},
		),

		// Extraction metrics
		ExtractedCoursesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ossu_extracted_courses_total",
				Help: "Total number of course records extracted by curriculum and strategy",
			},
			[]string{"curriculum", "strategy"}, // strategy: table, inline_link, bullet, numbered, blockquote, multiline
		),

		ExtractionErrorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ossu_extraction_errors_total",
				Help: "Total number of recovered per-line extraction errors by curriculum and kind",
			},
			[]string{"curriculum", "kind"}, // kind: line_parse, record_validation
		),

		DuplicatesDropped: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ossu_duplicates_dropped_total",
				Help: "Total number of near-duplicate course records dropped by curriculum",
			},
			[]string{"curriculum"},
		),

		FallbackMergesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ossu_fallback_merges_total",
				Help: "Total number of reference-catalog merges by curriculum and trigger",
			},
			[]string{"curriculum", "trigger"}, // trigger: below_min, below_total, fetch_failed
		),

		// Data integrity metrics
		CourseIntegrityIssues: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ossu_course_data_integrity_issues_total",
				Help: "Total number of course data integrity issues detected",
			},
			[]string{"issue_type"}, // issue_type: bad_topics_json, empty_name, orphan_progress
		),

		// Sync metrics
		SyncRunsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ossu_sync_runs_total",
				Help: "Total number of catalog sync runs by trigger and status",
			},
			[]string{"trigger", "status"}, // trigger: warmup, scheduled, manual; status: success, partial, error
		),

		SyncDurationSeconds: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ossu_sync_duration_seconds",
				Help:    "Curriculum sync duration in seconds by curriculum",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300}, // Matches 2min per-curriculum budget
			},
			[]string{"curriculum"},
		),

		CatalogCourses: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ossu_catalog_courses",
				Help: "Current number of courses in the catalog by curriculum",
			},
			[]string{"curriculum"},
		),

		// HTTP metrics
		HTTPErrorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ossu_http_errors_total",
				Help: "Total HTTP errors by type and module",
			},
			[]string{"error_type", "module"}, // error_type: timeout, rate_limit, not_found, etc.
		),

		// Progress metrics
		ProgressUpdatesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ossu_progress_updates_total",
				Help: "Total number of course progress updates by curriculum",
			},
			[]string{"curriculum"},
		),

		// Search metrics
		SearchQueriesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ossu_search_queries_total",
				Help: "Total number of catalog search queries by status",
			},
			[]string{"status"}, // status: success, empty, error
		),

		SearchDurationSeconds: promauto.With(registry).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ossu_search_duration_seconds",
				Help:    "Catalog search duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1}, // In-memory index, sub-second expected
			},
		),

		// Enrichment metrics
		EnrichRequestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ossu_enrich_requests_total",
				Help: "Total number of topic enrichment requests by provider and status",
			},
			[]string{"provider", "status"}, // provider: gemini, groq, cerebras; status: success, error, rate_limited
		),

		// Snapshot metrics
		SnapshotOperationsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ossu_snapshot_operations_total",
				Help: "Total number of catalog snapshot operations by operation and status",
			},
			[]string{"operation", "status"}, // operation: upload, restore, replay; status: success, error, skipped
		),

		// Rate limiter metrics
		RateLimiterDropped: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ossu_rate_limiter_dropped_total",
				Help: "Total number of requests dropped by rate limiter",
			},
			[]string{"limiter_type"}, // limiter_type: client, global
		),

		RateLimiterActiveKeys: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ossu_rate_limiter_active_keys",
				Help: "Number of clients currently tracked by keyed rate limiter",
			},
			[]string{"limiter_type"},
		),

		// Singleflight metrics
		SingleflightDedupTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ossu_singleflight_dedup_total",
				Help: "Total number of deduplicated requests (requests that waited instead of executing)",
			},
			[]string{"operation"}, // operation: sync, fetch
		),

		// Warmup metrics
		WarmupTasksTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ossu_warmup_tasks_total",
				Help: "Total number of warmup tasks by curriculum and status",
			},
			[]string{"curriculum", "status"}, // status: success, error
		),

		WarmupDuration: promauto.With(registry).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ossu_warmup_duration_seconds",
				Help:    "Total duration of warmup process",
				Buckets: []float64{5, 15, 30, 60, 120, 300, 600}, // 5s to 10min
			},
		),
	}

	return m
}

// RecordFetchRequest records a document fetch with status
func (m *Metrics) RecordFetchRequest(curriculum, status string, duration float64) {
	m.FetchRequestsTotal.WithLabelValues(curriculum, status).Inc()
	m.FetchDurationSeconds.WithLabelValues(curriculum).Observe(duration)
}

// RecordExtractedCourse records one extracted course by strategy
func (m *Metrics) RecordExtractedCourse(curriculum, strategy string) {
	m.ExtractedCoursesTotal.WithLabelValues(curriculum, strategy).Inc()
}

// RecordExtractionError records a recovered per-line extraction error
func (m *Metrics) RecordExtractionError(curriculum, kind string) {
	m.ExtractionErrorsTotal.WithLabelValues(curriculum, kind).Inc()
}

// RecordDuplicateDropped records a near-duplicate record dropped during deduplication
func (m *Metrics) RecordDuplicateDropped(curriculum string) {
	m.DuplicatesDropped.WithLabelValues(curriculum).Inc()
}

// RecordFallbackMerge records a reference-catalog merge
func (m *Metrics) RecordFallbackMerge(curriculum, trigger string) {
	m.FallbackMergesTotal.WithLabelValues(curriculum, trigger).Inc()
}

// RecordCourseIntegrityIssue records a course data integrity issue
func (m *Metrics) RecordCourseIntegrityIssue(issueType string) {
	m.CourseIntegrityIssues.WithLabelValues(issueType).Inc()
}

// RecordSyncRun records a catalog sync run
func (m *Metrics) RecordSyncRun(trigger, status string) {
	m.SyncRunsTotal.WithLabelValues(trigger, status).Inc()
}

// RecordSyncDuration records one curriculum's sync duration
func (m *Metrics) RecordSyncDuration(curriculum string, duration float64) {
	m.SyncDurationSeconds.WithLabelValues(curriculum).Observe(duration)
}

// SetCatalogCourses sets the current catalog size for a curriculum
func (m *Metrics) SetCatalogCourses(curriculum string, count float64) {
	m.CatalogCourses.WithLabelValues(curriculum).Set(count)
}

// RecordHTTPError records HTTP error metrics
func (m *Metrics) RecordHTTPError(errorType, module string) {
	m.HTTPErrorsTotal.WithLabelValues(errorType, module).Inc()
}

// RecordProgressUpdate records a course progress update
func (m *Metrics) RecordProgressUpdate(curriculum string) {
	m.ProgressUpdatesTotal.WithLabelValues(curriculum).Inc()
}

// RecordSearchQuery records a catalog search query
func (m *Metrics) RecordSearchQuery(status string, duration float64) {
	m.SearchQueriesTotal.WithLabelValues(status).Inc()
	m.SearchDurationSeconds.Observe(duration)
}

// RecordEnrichRequest records a topic enrichment request
func (m *Metrics) RecordEnrichRequest(provider, status string) {
	m.EnrichRequestsTotal.WithLabelValues(provider, status).Inc()
}

// RecordSnapshotOperation records a snapshot upload, restore, or replay
func (m *Metrics) RecordSnapshotOperation(operation, status string) {
	m.SnapshotOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordRateLimiterDrop records a request dropped by rate limiter
func (m *Metrics) RecordRateLimiterDrop(limiterType string) {
	m.RateLimiterDropped.WithLabelValues(limiterType).Inc()
}

// SetRateLimiterActiveKeys updates the tracked-client gauge for a keyed limiter
func (m *Metrics) SetRateLimiterActiveKeys(limiterType string, count int) {
	m.RateLimiterActiveKeys.WithLabelValues(limiterType).Set(float64(count))
}

// RecordSingleflightDedup records a deduplicated request
func (m *Metrics) RecordSingleflightDedup(operation string) {
	m.SingleflightDedupTotal.WithLabelValues(operation).Inc()
}

// RecordWarmupTask records a warmup task completion
func (m *Metrics) RecordWarmupTask(curriculum, status string) {
	m.WarmupTasksTotal.WithLabelValues(curriculum, status).Inc()
}

// RecordWarmupDuration records total warmup duration
func (m *Metrics) RecordWarmupDuration(duration float64) {
	m.WarmupDuration.Observe(duration)
}
