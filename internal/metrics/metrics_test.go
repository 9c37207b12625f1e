package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNew(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	if m == nil {
		t.Fatal("New() returned nil")
	}

	// Verify all metric fields are initialized
	if m.FetchRequestsTotal == nil {
		t.Error("FetchRequestsTotal is nil")
	}
	if m.FetchDurationSeconds == nil {
		t.Error("FetchDurationSeconds is nil")
	}
	if m.ExtractedCoursesTotal == nil {
		t.Error("ExtractedCoursesTotal is nil")
	}
	if m.ExtractionErrorsTotal == nil {
		t.Error("ExtractionErrorsTotal is nil")
	}
	if m.DuplicatesDropped == nil {
		t.Error("DuplicatesDropped is nil")
	}
	if m.FallbackMergesTotal == nil {
		t.Error("FallbackMergesTotal is nil")
	}
	if m.SyncRunsTotal == nil {
		t.Error("SyncRunsTotal is nil")
	}
	if m.SyncDurationSeconds == nil {
		t.Error("SyncDurationSeconds is nil")
	}
	if m.CatalogCourses == nil {
		t.Error("CatalogCourses is nil")
	}
	if m.HTTPErrorsTotal == nil {
		t.Error("HTTPErrorsTotal is nil")
	}
	if m.ProgressUpdatesTotal == nil {
		t.Error("ProgressUpdatesTotal is nil")
	}
	if m.SearchQueriesTotal == nil {
		t.Error("SearchQueriesTotal is nil")
	}
	if m.EnrichRequestsTotal == nil {
		t.Error("EnrichRequestsTotal is nil")
	}
	if m.SnapshotOperationsTotal == nil {
		t.Error("SnapshotOperationsTotal is nil")
	}
	if m.RateLimiterDropped == nil {
		t.Error("RateLimiterDropped is nil")
	}
	if m.WarmupTasksTotal == nil {
		t.Error("WarmupTasksTotal is nil")
	}
	if m.WarmupDuration == nil {
		t.Error("WarmupDuration is nil")
	}
}

func TestRecordFetchRequest(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	// Should not panic
	m.RecordFetchRequest("computer-science", "success", 1.5)
	m.RecordFetchRequest("data-science", "error", 2.0)
	m.RecordFetchRequest("math", "timeout", 30.0)
}

func TestRecordExtractedCourse(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	// Should not panic
	m.RecordExtractedCourse("computer-science", "table")
	m.RecordExtractedCourse("computer-science", "inline_link")
	m.RecordExtractedCourse("math", "multiline")
}

func TestRecordExtractionError(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	// Should not panic
	m.RecordExtractionError("computer-science", "line_parse")
	m.RecordExtractionError("data-science", "record_validation")
}

func TestRecordFallbackMerge(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	// Should not panic
	m.RecordFallbackMerge("computer-science", "below_min")
	m.RecordFallbackMerge("math", "fetch_failed")
}

func TestRecordSyncRun(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	// Should not panic
	m.RecordSyncRun("warmup", "success")
	m.RecordSyncRun("scheduled", "partial")
	m.RecordSyncRun("manual", "error")
}

func TestSetCatalogCourses(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	// Should not panic, and gauges may go down
	m.SetCatalogCourses("computer-science", 42)
	m.SetCatalogCourses("computer-science", 38)
}

func TestRecordHTTPError(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	// Should not panic
	m.RecordHTTPError("timeout", "sync")
	m.RecordHTTPError("rate_limit", "catalog")
	m.RecordHTTPError("not_found", "progress")
}

func TestRecordSearchQuery(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	// Should not panic
	m.RecordSearchQuery("success", 0.002)
	m.RecordSearchQuery("empty", 0.001)
}

func TestRecordEnrichRequest(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	// Should not panic
	m.RecordEnrichRequest("gemini", "success")
	m.RecordEnrichRequest("groq", "rate_limited")
	m.RecordEnrichRequest("cerebras", "error")
}

func TestRecordSnapshotOperation(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	// Should not panic
	m.RecordSnapshotOperation("upload", "success")
	m.RecordSnapshotOperation("restore", "skipped")
	m.RecordSnapshotOperation("replay", "error")
}

func TestRecordRateLimiterDrop(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	// Should not panic
	m.RecordRateLimiterDrop("client")
	m.RecordRateLimiterDrop("global")
}

func TestRecordWarmupTask(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	// Should not panic
	m.RecordWarmupTask("computer-science", "success")
	m.RecordWarmupTask("data-science", "error")
	m.RecordWarmupTask("precollege-math", "success")
}

func TestRecordWarmupDuration(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	// Should not panic
	m.RecordWarmupDuration(60.0)
	m.RecordWarmupDuration(300.0)
}

func TestMetrics_WithDefaultRegistry(t *testing.T) {
	// Test that metrics can be created with a new registry
	// without conflicting with default registry
	registry := prometheus.NewRegistry()
	m := New(registry)

	// Record some metrics
	m.RecordFetchRequest("computer-science", "success", 1.0)
	m.RecordExtractedCourse("computer-science", "table")
	m.RecordSyncRun("manual", "success")

	// Gather metrics to verify they were recorded
	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	// Should have metrics registered
	if len(metricFamilies) == 0 {
		t.Error("No metrics were gathered")
	}

	// Check for specific metric names
	expectedMetrics := map[string]bool{
		"ossu_fetch_requests_total":    false,
		"ossu_fetch_duration_seconds":  false,
		"ossu_extracted_courses_total": false,
		"ossu_sync_runs_total":         false,
	}

	for _, mf := range metricFamilies {
		if _, ok := expectedMetrics[mf.GetName()]; ok {
			expectedMetrics[mf.GetName()] = true
		}
	}

	for name, found := range expectedMetrics {
		if !found {
			t.Errorf("Expected metric %q not found", name)
		}
	}
}
