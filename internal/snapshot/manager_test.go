package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/garyellow/ossu-tracker-go/internal/r2client"
	"github.com/garyellow/ossu-tracker-go/internal/storage"
)

func newTestDB(t *testing.T) *storage.DB {
	t.Helper()

	db, err := storage.NewTestDB()
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedCatalog(t *testing.T, db *storage.DB) {
	t.Helper()
	ctx := context.Background()

	err := db.UpsertCurriculum(ctx, &storage.Curriculum{
		Name:         "computer-science",
		DisplayName:  "Computer Science",
		Description:  "Path to a free self-taught education in Computer Science",
		GitHubURL:    "https://github.com/ossu/computer-science",
		TotalCourses: 3,
	})
	if err != nil {
		t.Fatalf("Failed to seed curriculum: %v", err)
	}

	created := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	updated := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	courses := []*storage.Course{
		{
			ID:         "snap-1",
			Name:       "Systematic Program Design",
			Curriculum: "computer-science",
			Category:   "Core CS",
			URL:        "https://courses.example/spd",
			Duration:   "13 weeks",
			Effort:     "8-10 hours/week",
			Topics:     []string{"design recipes", "recursion"},
			CreatedAt:  created,
			UpdatedAt:  updated,
		},
		{
			ID:         "snap-2",
			Name:       "Computer Systems",
			Curriculum: "computer-science",
			Category:   "Core Systems",
			Topics:     []string{},
			CreatedAt:  created,
			UpdatedAt:  updated,
		},
		{
			ID:         "snap-3",
			Name:       "Databases",
			Curriculum: "computer-science",
			Category:   "Core Applications",
			Topics:     []string{},
			CreatedAt:  created,
			UpdatedAt:  updated,
		},
	}
	if err := db.SaveCoursesBatch(ctx, courses); err != nil {
		t.Fatalf("Failed to seed courses: %v", err)
	}

	progressUpdated := time.Date(2026, 6, 10, 9, 30, 0, 0, time.UTC)
	startedAt := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	err = db.UpdateProgress(ctx, &storage.Progress{
		CourseID:       "snap-1",
		Status:         "in_progress",
		Percentage:     40,
		TimeSpentHours: 12.5,
		Notes:          "halfway through the templates",
		StartedAt:      &startedAt,
		UpdatedAt:      progressUpdated,
	})
	if err != nil {
		t.Fatalf("Failed to seed progress: %v", err)
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	source := newTestDB(t)
	seedCatalog(t, source)

	doc, err := buildDocument(ctx, source)
	if err != nil {
		t.Fatalf("buildDocument failed: %v", err)
	}
	if doc.Version != formatVersion {
		t.Errorf("Version = %d, want %d", doc.Version, formatVersion)
	}
	if doc.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
	if len(doc.Courses) != 3 {
		t.Fatalf("Courses = %d, want 3", len(doc.Courses))
	}

	// The wire trip: encode, compress, decompress, decode
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	compressed, err := r2client.CompressBytes(data)
	if err != nil {
		t.Fatalf("CompressBytes failed: %v", err)
	}
	restored, err := r2client.DecompressAll(bytes.NewReader(compressed))
	if err != nil {
		t.Fatalf("DecompressAll failed: %v", err)
	}
	decoded, err := decodeDocument(restored)
	if err != nil {
		t.Fatalf("decodeDocument failed: %v", err)
	}

	target := newTestDB(t)
	stats, err := applyDocument(ctx, target, decoded)
	if err != nil {
		t.Fatalf("applyDocument failed: %v", err)
	}
	if stats.Curricula != 1 || stats.Courses != 3 || stats.Progress != 1 {
		t.Errorf("stats = %+v, want 1 curriculum, 3 courses, 1 progress", stats)
	}

	cur, err := target.GetCurriculum(ctx, "computer-science")
	if err != nil {
		t.Fatalf("GetCurriculum failed: %v", err)
	}
	if cur == nil || cur.DisplayName != "Computer Science" {
		t.Errorf("restored curriculum = %+v, want Computer Science", cur)
	}

	course, err := target.GetCourseByID(ctx, "snap-1")
	if err != nil {
		t.Fatalf("GetCourseByID failed: %v", err)
	}
	if course == nil {
		t.Fatal("course snap-1 missing after restore")
	}
	if course.Name != "Systematic Program Design" {
		t.Errorf("Name = %q, want %q", course.Name, "Systematic Program Design")
	}
	if len(course.Topics) != 2 || course.Topics[0] != "design recipes" {
		t.Errorf("Topics = %v, want [design recipes recursion]", course.Topics)
	}
	wantUpdated := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	if !course.UpdatedAt.Equal(wantUpdated) {
		t.Errorf("UpdatedAt = %v, want %v (restore must not refresh timestamps)", course.UpdatedAt, wantUpdated)
	}

	progress, err := target.GetProgress(ctx, "snap-1")
	if err != nil {
		t.Fatalf("GetProgress failed: %v", err)
	}
	if progress == nil {
		t.Fatal("progress for snap-1 missing after restore")
	}
	if progress.Status != "in_progress" || progress.Percentage != 40 {
		t.Errorf("progress = %+v, want in_progress at 40%%", progress)
	}
	wantProgressUpdated := time.Date(2026, 6, 10, 9, 30, 0, 0, time.UTC)
	if !progress.UpdatedAt.Equal(wantProgressUpdated) {
		t.Errorf("progress UpdatedAt = %v, want %v", progress.UpdatedAt, wantProgressUpdated)
	}
}

func TestDecodeDocument_RejectsNewerVersion(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(Document{Version: formatVersion + 1})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	if _, err := decodeDocument(data); err == nil {
		t.Error("expected error for snapshot from a newer binary")
	}
}

func TestDecodeDocument_InvalidJSON(t *testing.T) {
	t.Parallel()

	if _, err := decodeDocument([]byte("{not json")); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestApplyDocument_SkipsOrphanProgress(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	db := newTestDB(t)
	doc := &Document{
		Version: formatVersion,
		Courses: []storage.Course{
			{ID: "kept", Name: "Kept Course", Curriculum: "computer-science", Category: "Core CS"},
		},
		Progress: []storage.Progress{
			{CourseID: "kept", Status: "completed", Percentage: 100, UpdatedAt: time.Now()},
			{CourseID: "removed", Status: "in_progress", Percentage: 10, UpdatedAt: time.Now()},
		},
	}

	stats, err := applyDocument(ctx, db, doc)
	if err != nil {
		t.Fatalf("applyDocument failed: %v", err)
	}
	if stats.Progress != 1 {
		t.Errorf("Progress = %d, want 1 (orphan row skipped)", stats.Progress)
	}
}

func TestApplyDocument_ChunksLargeCatalog(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	db := newTestDB(t)
	doc := &Document{Version: formatVersion}
	for i := range 250 {
		doc.Courses = append(doc.Courses, storage.Course{
			ID:         fmt.Sprintf("bulk-%03d", i),
			Name:       fmt.Sprintf("Course %03d", i),
			Curriculum: "data-science",
			Category:   "Core",
		})
	}

	stats, err := applyDocument(ctx, db, doc)
	if err != nil {
		t.Fatalf("applyDocument failed: %v", err)
	}
	if stats.Courses != 250 {
		t.Errorf("Courses = %d, want 250", stats.Courses)
	}

	count, err := db.CountCourses(ctx)
	if err != nil {
		t.Fatalf("CountCourses failed: %v", err)
	}
	if count != 250 {
		t.Errorf("CountCourses = %d, want 250", count)
	}
}

func TestManager_ETagTracking(t *testing.T) {
	t.Parallel()

	m := New(nil, Config{SnapshotKey: "snapshots/catalog.json.zst"})
	if m.CurrentETag() != "" {
		t.Errorf("CurrentETag = %q, want empty", m.CurrentETag())
	}

	m.SetCurrentETag("etag-42")
	if m.CurrentETag() != "etag-42" {
		t.Errorf("CurrentETag = %q, want %q", m.CurrentETag(), "etag-42")
	}
}
