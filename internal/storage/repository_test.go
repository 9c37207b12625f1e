package storage

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewTestDB()
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testCourse(id, name, curriculum, category string) *Course {
	return &Course{
		ID:            id,
		Name:          name,
		Curriculum:    curriculum,
		Category:      category,
		URL:           "https://courses.example/" + id,
		Duration:      "10 weeks",
		Effort:        "5 hours/week",
		Prerequisites: "none",
		Description:   "Part of " + curriculum + " curriculum - " + category,
		Topics:        []string{},
	}
}

func TestSaveCourse_RoundTrip(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	course := testCourse("rt-1", "Systematic Program Design", "computer-science", "Intro CS")
	if err := db.SaveCourse(ctx, course); err != nil {
		t.Fatalf("SaveCourse failed: %v", err)
	}

	first, err := db.GetCourseByID(ctx, "rt-1")
	if err != nil {
		t.Fatalf("GetCourseByID failed: %v", err)
	}
	if first == nil {
		t.Fatal("Expected course, got nil")
	}

	if first.Name != course.Name {
		t.Errorf("Name = %q, want %q", first.Name, course.Name)
	}
	if first.Curriculum != course.Curriculum {
		t.Errorf("Curriculum = %q, want %q", first.Curriculum, course.Curriculum)
	}
	if first.Category != course.Category {
		t.Errorf("Category = %q, want %q", first.Category, course.Category)
	}
	if first.URL != course.URL {
		t.Errorf("URL = %q, want %q", first.URL, course.URL)
	}
	if first.Duration != "10 weeks" || first.Effort != "5 hours/week" {
		t.Errorf("Duration/Effort = %q/%q, want %q/%q", first.Duration, first.Effort, "10 weeks", "5 hours/week")
	}
	if first.Prerequisites != "none" {
		t.Errorf("Prerequisites = %q, want %q", first.Prerequisites, "none")
	}
	if !reflect.DeepEqual(first.Topics, []string{}) {
		t.Errorf("Topics = %#v, want empty slice", first.Topics)
	}
	if first.CreatedAt.IsZero() || first.UpdatedAt.IsZero() {
		t.Error("Expected timestamps to be stamped on save")
	}

	// Updating through the same id keeps created_at
	course.Category = "Core Programming"
	if err := db.SaveCourse(ctx, course); err != nil {
		t.Fatalf("SaveCourse update failed: %v", err)
	}

	second, err := db.GetCourseByID(ctx, "rt-1")
	if err != nil {
		t.Fatalf("GetCourseByID after update failed: %v", err)
	}
	if second.Category != "Core Programming" {
		t.Errorf("Category after update = %q, want %q", second.Category, "Core Programming")
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("CreatedAt changed on update: %v -> %v", first.CreatedAt, second.CreatedAt)
	}
}

func TestGetCourseByID_Missing(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)

	course, err := db.GetCourseByID(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetCourseByID failed: %v", err)
	}
	if course != nil {
		t.Errorf("Expected nil for missing course, got %#v", course)
	}
}

func TestSaveCourse_MintsID(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	course := testCourse("", "Effective Thinking Through Mathematics", "math", "Introduction")
	if err := db.SaveCourse(ctx, course); err != nil {
		t.Fatalf("SaveCourse failed: %v", err)
	}
	if course.ID == "" {
		t.Fatal("Expected SaveCourse to mint an id")
	}

	retrieved, err := db.GetCourseByID(ctx, course.ID)
	if err != nil {
		t.Fatalf("GetCourseByID failed: %v", err)
	}
	if retrieved == nil {
		t.Fatal("Expected course under minted id, got nil")
	}
}

func TestSaveCoursesBatch_PreservesTimestamps(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	exported := time.Unix(1700000000, 0).UTC()
	course := testCourse("snap-1", "Databases: Modeling and Theory", "data-science", "Databases")
	course.CreatedAt = exported
	course.UpdatedAt = exported

	if err := db.SaveCoursesBatch(ctx, []*Course{course}); err != nil {
		t.Fatalf("SaveCoursesBatch failed: %v", err)
	}

	retrieved, err := db.GetCourseByID(ctx, "snap-1")
	if err != nil {
		t.Fatalf("GetCourseByID failed: %v", err)
	}
	if retrieved == nil {
		t.Fatal("Expected course, got nil")
	}
	if !retrieved.CreatedAt.Equal(exported) {
		t.Errorf("CreatedAt = %v, want %v", retrieved.CreatedAt, exported)
	}
	if !retrieved.UpdatedAt.Equal(exported) {
		t.Errorf("UpdatedAt = %v, want %v", retrieved.UpdatedAt, exported)
	}
}

func TestSaveCoursesBatch_Empty(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)

	if err := db.SaveCoursesBatch(context.Background(), nil); err != nil {
		t.Errorf("SaveCoursesBatch with empty input failed: %v", err)
	}
}

func TestReplaceCurriculumCourses(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	seed := []*Course{
		testCourse("cs-old-1", "Old Intro Course", "computer-science", "Intro CS"),
		testCourse("cs-old-2", "Old Math Course", "computer-science", "Core Math"),
	}
	if err := db.SaveCoursesBatch(ctx, seed); err != nil {
		t.Fatalf("Seeding failed: %v", err)
	}
	other := testCourse("ds-1", "Data Science Intro", "data-science", "Introduction")
	if err := db.SaveCourse(ctx, other); err != nil {
		t.Fatalf("Seeding other curriculum failed: %v", err)
	}

	// Give an old course some study state so the cascade is observable
	if _, err := db.GetOrCreateProgress(ctx, "cs-old-1"); err != nil {
		t.Fatalf("GetOrCreateProgress failed: %v", err)
	}

	replacement := []*Course{
		testCourse("cs-new-1", "Fresh Intro Course", "computer-science", "Intro CS"),
		testCourse("cs-new-2", "Fresh Systems Course", "computer-science", "Core Systems"),
	}
	if err := db.ReplaceCurriculumCourses(ctx, "computer-science", replacement); err != nil {
		t.Fatalf("ReplaceCurriculumCourses failed: %v", err)
	}

	courses, err := db.GetCourses(ctx, "computer-science", "", 0, 0)
	if err != nil {
		t.Fatalf("GetCourses failed: %v", err)
	}
	if len(courses) != 2 {
		t.Fatalf("Expected 2 courses after replace, got %d", len(courses))
	}
	for _, c := range courses {
		if c.ID == "cs-old-1" || c.ID == "cs-old-2" {
			t.Errorf("Old course %s survived replace", c.ID)
		}
	}

	// Other curricula untouched
	kept, err := db.GetCourseByID(ctx, "ds-1")
	if err != nil {
		t.Fatalf("GetCourseByID failed: %v", err)
	}
	if kept == nil {
		t.Error("Replace removed a course from another curriculum")
	}

	// Progress rows cascade with their courses
	orphan, err := db.GetProgress(ctx, "cs-old-1")
	if err != nil {
		t.Fatalf("GetProgress failed: %v", err)
	}
	if orphan != nil {
		t.Errorf("Expected progress to cascade away, got %#v", orphan)
	}

	// Curriculum stats updated inside the same transaction
	curriculum, err := db.GetCurriculum(ctx, "computer-science")
	if err != nil {
		t.Fatalf("GetCurriculum failed: %v", err)
	}
	if curriculum == nil {
		t.Fatal("Expected curriculum stats row, got nil")
	}
	if curriculum.TotalCourses != 2 {
		t.Errorf("TotalCourses = %d, want 2", curriculum.TotalCourses)
	}
	if curriculum.LastSynced == nil {
		t.Error("Expected LastSynced to be set")
	}
}

func TestUpsertCourses_CreatesAndUpdates(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	first, err := db.UpsertCourses(ctx, "computer-science", []*Course{
		testCourse("", "Intro to Programming", "computer-science", "Intro CS"),
		testCourse("", "Build a Modern Computer", "computer-science", "Core Systems"),
	})
	if err != nil {
		t.Fatalf("UpsertCourses failed: %v", err)
	}
	if first.Created != 2 || first.Updated != 0 || first.Removed != 0 {
		t.Errorf("First merge = %+v, want 2 created", *first)
	}

	courses, err := db.GetCourses(ctx, "computer-science", "", 0, 0)
	if err != nil {
		t.Fatalf("GetCourses failed: %v", err)
	}
	idsByName := make(map[string]string)
	for _, c := range courses {
		idsByName[c.Name] = c.ID
	}

	// Same names in a different case merge onto the existing rows
	incoming := testCourse("", "INTRO TO PROGRAMMING", "computer-science", "Intro CS")
	incoming.URL = "https://moved.example/intro"
	second, err := db.UpsertCourses(ctx, "computer-science", []*Course{
		incoming,
		testCourse("", "Build a Modern Computer", "computer-science", "Core Systems"),
	})
	if err != nil {
		t.Fatalf("Second UpsertCourses failed: %v", err)
	}
	if second.Created != 0 || second.Updated != 2 || second.Removed != 0 {
		t.Errorf("Second merge = %+v, want 2 updated", *second)
	}

	merged, err := db.GetCourseByID(ctx, idsByName["Intro to Programming"])
	if err != nil {
		t.Fatalf("GetCourseByID failed: %v", err)
	}
	if merged == nil {
		t.Fatal("Expected merged course under original id")
	}
	if merged.Name != "INTRO TO PROGRAMMING" {
		t.Errorf("Name = %q, want incoming casing", merged.Name)
	}
	if merged.URL != "https://moved.example/intro" {
		t.Errorf("URL = %q, want updated URL", merged.URL)
	}
}

func TestUpsertCourses_PreservesProgress(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := db.UpsertCourses(ctx, "computer-science", []*Course{
		testCourse("", "Machine Learning", "computer-science", "Core Applications"),
	}); err != nil {
		t.Fatalf("UpsertCourses failed: %v", err)
	}

	courses, err := db.GetCourses(ctx, "computer-science", "", 0, 0)
	if err != nil {
		t.Fatalf("GetCourses failed: %v", err)
	}
	courseID := courses[0].ID

	started := time.Unix(1700000000, 0).UTC()
	if err := db.UpdateProgress(ctx, &Progress{
		CourseID:       courseID,
		Status:         "in_progress",
		Percentage:     50,
		TimeSpentHours: 12,
		Notes:          "halfway through the lectures",
		StartedAt:      &started,
	}); err != nil {
		t.Fatalf("UpdateProgress failed: %v", err)
	}

	// Re-sync with the same course name plus a new one
	result, err := db.UpsertCourses(ctx, "computer-science", []*Course{
		testCourse("", "machine learning", "computer-science", "Core Applications"),
		testCourse("", "Software Architecture", "computer-science", "Advanced Programming"),
	})
	if err != nil {
		t.Fatalf("Re-sync UpsertCourses failed: %v", err)
	}
	if result.Created != 1 || result.Updated != 1 || result.Removed != 0 {
		t.Errorf("Re-sync merge = %+v, want 1 created 1 updated", *result)
	}

	progress, err := db.GetProgress(ctx, courseID)
	if err != nil {
		t.Fatalf("GetProgress failed: %v", err)
	}
	if progress == nil {
		t.Fatal("Progress did not survive the re-sync")
	}
	if progress.Percentage != 50 || progress.Status != "in_progress" {
		t.Errorf("Progress = %v%% %q, want 50%% in_progress", progress.Percentage, progress.Status)
	}
	if progress.StartedAt == nil || !progress.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", progress.StartedAt, started)
	}
	if progress.Notes != "halfway through the lectures" {
		t.Errorf("Notes = %q, want original notes", progress.Notes)
	}
}

func TestUpsertCourses_RemovesStale(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := db.UpsertCourses(ctx, "math", []*Course{
		testCourse("", "Calculus 1A", "math", "Core Math"),
		testCourse("", "Linear Algebra", "math", "Core Math"),
	}); err != nil {
		t.Fatalf("UpsertCourses failed: %v", err)
	}

	courses, err := db.GetCourses(ctx, "math", "", 0, 0)
	if err != nil {
		t.Fatalf("GetCourses failed: %v", err)
	}
	var staleID string
	for _, c := range courses {
		if c.Name == "Linear Algebra" {
			staleID = c.ID
		}
	}
	if _, err := db.GetOrCreateProgress(ctx, staleID); err != nil {
		t.Fatalf("GetOrCreateProgress failed: %v", err)
	}

	result, err := db.UpsertCourses(ctx, "math", []*Course{
		testCourse("", "Calculus 1A", "math", "Core Math"),
	})
	if err != nil {
		t.Fatalf("Second UpsertCourses failed: %v", err)
	}
	if result.Removed != 1 {
		t.Errorf("Removed = %d, want 1", result.Removed)
	}

	gone, err := db.GetCourseByID(ctx, staleID)
	if err != nil {
		t.Fatalf("GetCourseByID failed: %v", err)
	}
	if gone != nil {
		t.Error("Stale course survived the merge")
	}

	orphan, err := db.GetProgress(ctx, staleID)
	if err != nil {
		t.Fatalf("GetProgress failed: %v", err)
	}
	if orphan != nil {
		t.Error("Expected stale course's progress to cascade away")
	}

	curriculum, err := db.GetCurriculum(ctx, "math")
	if err != nil {
		t.Fatalf("GetCurriculum failed: %v", err)
	}
	if curriculum.TotalCourses != 1 {
		t.Errorf("TotalCourses = %d, want 1", curriculum.TotalCourses)
	}
}

func TestUpsertCourses_KeepsEnrichedTopics(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := db.UpsertCourses(ctx, "computer-science", []*Course{
		testCourse("", "Compilers", "computer-science", "Advanced Programming"),
	}); err != nil {
		t.Fatalf("UpsertCourses failed: %v", err)
	}
	courses, err := db.GetCourses(ctx, "computer-science", "", 0, 0)
	if err != nil {
		t.Fatalf("GetCourses failed: %v", err)
	}
	courseID := courses[0].ID

	if err := db.UpdateCourseTopics(ctx, courseID, []string{"parsing", "code generation"}); err != nil {
		t.Fatalf("UpdateCourseTopics failed: %v", err)
	}

	// A re-sync without topics keeps the enriched ones
	if _, err := db.UpsertCourses(ctx, "computer-science", []*Course{
		testCourse("", "Compilers", "computer-science", "Advanced Programming"),
	}); err != nil {
		t.Fatalf("Re-sync failed: %v", err)
	}
	after, err := db.GetCourseByID(ctx, courseID)
	if err != nil {
		t.Fatalf("GetCourseByID failed: %v", err)
	}
	if !reflect.DeepEqual(after.Topics, []string{"parsing", "code generation"}) {
		t.Errorf("Topics = %#v, want enriched topics preserved", after.Topics)
	}

	// An incoming non-empty topics list wins
	enriched := testCourse("", "Compilers", "computer-science", "Advanced Programming")
	enriched.Topics = []string{"compilers"}
	if _, err := db.UpsertCourses(ctx, "computer-science", []*Course{enriched}); err != nil {
		t.Fatalf("Topic overwrite merge failed: %v", err)
	}
	final, err := db.GetCourseByID(ctx, courseID)
	if err != nil {
		t.Fatalf("GetCourseByID failed: %v", err)
	}
	if !reflect.DeepEqual(final.Topics, []string{"compilers"}) {
		t.Errorf("Topics = %#v, want %#v", final.Topics, []string{"compilers"})
	}
}

func TestUpdateCourseTopics_MissingCourse(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)

	err := db.UpdateCourseTopics(context.Background(), "ghost", []string{"nothing"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestGetCourses_FiltersAndPagination(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	seed := []*Course{
		testCourse("f-1", "Algorithms", "computer-science", "Core Theory"),
		testCourse("f-2", "Biology of Computation", "computer-science", "Core Theory"),
		testCourse("f-3", "Calculus", "computer-science", "Core Math"),
		testCourse("f-4", "Data Wrangling", "data-science", "Data Science Tools"),
		testCourse("f-5", "Estimation Theory", "data-science", "Statistics"),
	}
	if err := db.SaveCoursesBatch(ctx, seed); err != nil {
		t.Fatalf("Seeding failed: %v", err)
	}

	all, err := db.GetAllCourses(ctx)
	if err != nil {
		t.Fatalf("GetAllCourses failed: %v", err)
	}
	if len(all) != 5 {
		t.Errorf("GetAllCourses returned %d courses, want 5", len(all))
	}

	cs, err := db.GetCourses(ctx, "computer-science", "", 0, 0)
	if err != nil {
		t.Fatalf("GetCourses by curriculum failed: %v", err)
	}
	if len(cs) != 3 {
		t.Errorf("Curriculum filter returned %d courses, want 3", len(cs))
	}

	theory, err := db.GetCourses(ctx, "computer-science", "Core Theory", 0, 0)
	if err != nil {
		t.Fatalf("GetCourses by category failed: %v", err)
	}
	if len(theory) != 2 {
		t.Errorf("Category filter returned %d courses, want 2", len(theory))
	}

	// Rows order by curriculum, category, name: Core Math/Calculus,
	// then Core Theory/Algorithms, then Core Theory/Biology.
	page, err := db.GetCourses(ctx, "computer-science", "", 2, 2)
	if err != nil {
		t.Fatalf("GetCourses with pagination failed: %v", err)
	}
	if len(page) != 1 {
		t.Fatalf("Expected 1 course on final page, got %d", len(page))
	}
	if page[0].Name != "Biology of Computation" {
		t.Errorf("Final page course = %q, want %q", page[0].Name, "Biology of Computation")
	}
}

func TestSearchCoursesByName(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	seed := []*Course{
		testCourse("s-1", "Introduction to Machine Learning", "computer-science", "Core Applications"),
		testCourse("s-2", "Deep Learning Specialization", "data-science", "Tools"),
		testCourse("s-3", "Mastering 100% Test Coverage", "computer-science", "CS Tools"),
		testCourse("s-4", "100 Days of Code", "computer-science", "Intro CS"),
	}
	seed[1].Description = "Neural networks from scratch"
	if err := db.SaveCoursesBatch(ctx, seed); err != nil {
		t.Fatalf("Seeding failed: %v", err)
	}

	byName, err := db.SearchCoursesByName(ctx, "machine learning")
	if err != nil {
		t.Fatalf("SearchCoursesByName failed: %v", err)
	}
	if len(byName) != 1 || byName[0].ID != "s-1" {
		t.Errorf("Name search returned %d results, want exactly s-1", len(byName))
	}

	byDescription, err := db.SearchCoursesByName(ctx, "neural networks")
	if err != nil {
		t.Fatalf("Description search failed: %v", err)
	}
	if len(byDescription) != 1 || byDescription[0].ID != "s-2" {
		t.Errorf("Description search returned %d results, want exactly s-2", len(byDescription))
	}

	// LIKE wildcards in the term match literally
	literal, err := db.SearchCoursesByName(ctx, "100%")
	if err != nil {
		t.Fatalf("Wildcard search failed: %v", err)
	}
	if len(literal) != 1 || literal[0].ID != "s-3" {
		t.Errorf("Wildcard search returned %d results, want exactly s-3", len(literal))
	}

	if _, err := db.SearchCoursesByName(ctx, strings.Repeat("x", 101)); err == nil {
		t.Error("Expected error for over-long search term")
	}
}

func TestCountCoursesByCurriculum(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	seed := []*Course{
		testCourse("c-1", "Course One", "computer-science", "Intro CS"),
		testCourse("c-2", "Course Two", "computer-science", "Core Math"),
		testCourse("c-3", "Course Three", "bioinformatics", "Biology"),
	}
	if err := db.SaveCoursesBatch(ctx, seed); err != nil {
		t.Fatalf("Seeding failed: %v", err)
	}

	counts, err := db.CountCoursesByCurriculum(ctx)
	if err != nil {
		t.Fatalf("CountCoursesByCurriculum failed: %v", err)
	}

	want := map[string]int{"computer-science": 2, "bioinformatics": 1}
	if !reflect.DeepEqual(counts, want) {
		t.Errorf("Counts = %#v, want %#v", counts, want)
	}

	total, err := db.CountCourses(ctx)
	if err != nil {
		t.Fatalf("CountCourses failed: %v", err)
	}
	if total != 3 {
		t.Errorf("CountCourses = %d, want 3", total)
	}
}

func TestUpsertCurriculum_Identity(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	curriculum := &Curriculum{
		Name:        "computer-science",
		DisplayName: "Computer Science",
		Description: "Path to a free self-taught education in Computer Science!",
		GitHubURL:   "https://github.com/ossu/computer-science",
	}
	if err := db.UpsertCurriculum(ctx, curriculum); err != nil {
		t.Fatalf("UpsertCurriculum failed: %v", err)
	}

	// Catalog writes own the stats columns
	if err := db.ReplaceCurriculumCourses(ctx, "computer-science", []*Course{
		testCourse("", "Intro CS", "computer-science", "Intro CS"),
	}); err != nil {
		t.Fatalf("ReplaceCurriculumCourses failed: %v", err)
	}

	// A registry refresh must not clobber sync stats
	curriculum.Description = "Updated description"
	if err := db.UpsertCurriculum(ctx, curriculum); err != nil {
		t.Fatalf("Second UpsertCurriculum failed: %v", err)
	}

	stored, err := db.GetCurriculum(ctx, "computer-science")
	if err != nil {
		t.Fatalf("GetCurriculum failed: %v", err)
	}
	if stored == nil {
		t.Fatal("Expected curriculum, got nil")
	}
	if stored.Description != "Updated description" {
		t.Errorf("Description = %q, want refreshed value", stored.Description)
	}
	if stored.DisplayName != "Computer Science" {
		t.Errorf("DisplayName = %q, want %q", stored.DisplayName, "Computer Science")
	}
	if stored.TotalCourses != 1 {
		t.Errorf("TotalCourses = %d, want stats from catalog write", stored.TotalCourses)
	}
	if stored.LastSynced == nil {
		t.Error("Expected LastSynced from catalog write")
	}
}

func TestGetCurriculum_Missing(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)

	curriculum, err := db.GetCurriculum(context.Background(), "underwater-basket-weaving")
	if err != nil {
		t.Fatalf("GetCurriculum failed: %v", err)
	}
	if curriculum != nil {
		t.Errorf("Expected nil for missing curriculum, got %#v", curriculum)
	}
}

func TestGetAllCurricula_Ordering(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	for _, name := range []string{"math", "bioinformatics", "computer-science"} {
		if err := db.UpsertCurriculum(ctx, &Curriculum{Name: name, DisplayName: name}); err != nil {
			t.Fatalf("UpsertCurriculum failed: %v", err)
		}
	}

	curricula, err := db.GetAllCurricula(ctx)
	if err != nil {
		t.Fatalf("GetAllCurricula failed: %v", err)
	}

	var names []string
	for _, c := range curricula {
		names = append(names, c.Name)
	}
	want := []string{"bioinformatics", "computer-science", "math"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("Order = %v, want %v", names, want)
	}
}

func TestGetOrCreateProgress(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	// Missing course has no progress to create
	progress, err := db.GetOrCreateProgress(ctx, "ghost")
	if err != nil {
		t.Fatalf("GetOrCreateProgress failed: %v", err)
	}
	if progress != nil {
		t.Errorf("Expected nil for missing course, got %#v", progress)
	}

	course := testCourse("p-1", "Operating Systems", "computer-science", "Core Systems")
	if err := db.SaveCourse(ctx, course); err != nil {
		t.Fatalf("SaveCourse failed: %v", err)
	}

	created, err := db.GetOrCreateProgress(ctx, "p-1")
	if err != nil {
		t.Fatalf("GetOrCreateProgress failed: %v", err)
	}
	if created == nil {
		t.Fatal("Expected default progress row, got nil")
	}
	if created.Status != "not_started" || created.Percentage != 0 || created.TimeSpentHours != 0 {
		t.Errorf("Default row = %q %v%% %vh, want not_started 0%% 0h",
			created.Status, created.Percentage, created.TimeSpentHours)
	}
	if created.StartedAt != nil || created.CompletedAt != nil {
		t.Error("Expected default row without timestamps")
	}
	if created.UpdatedAt.IsZero() {
		t.Error("Expected UpdatedAt to be stamped")
	}

	// Subsequent reads return the stored row, not a fresh default
	created.Status = "in_progress"
	created.Percentage = 25
	if err := db.UpdateProgress(ctx, created); err != nil {
		t.Fatalf("UpdateProgress failed: %v", err)
	}
	again, err := db.GetOrCreateProgress(ctx, "p-1")
	if err != nil {
		t.Fatalf("Second GetOrCreateProgress failed: %v", err)
	}
	if again.Percentage != 25 || again.Status != "in_progress" {
		t.Errorf("Got %q %v%%, want stored in_progress 25%%", again.Status, again.Percentage)
	}
}

func TestUpdateProgress_RoundTrip(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.SaveCourse(ctx, testCourse("p-2", "Networking", "computer-science", "Core Systems")); err != nil {
		t.Fatalf("SaveCourse failed: %v", err)
	}

	started := time.Unix(1699900000, 0).UTC()
	completed := time.Unix(1700000000, 0).UTC()
	progress := &Progress{
		CourseID:       "p-2",
		Status:         "completed",
		Percentage:     100,
		TimeSpentHours: 64.5,
		Notes:          "finished with the optional labs",
		StartedAt:      &started,
		CompletedAt:    &completed,
	}
	if err := db.UpdateProgress(ctx, progress); err != nil {
		t.Fatalf("UpdateProgress failed: %v", err)
	}

	stored, err := db.GetProgress(ctx, "p-2")
	if err != nil {
		t.Fatalf("GetProgress failed: %v", err)
	}
	if stored == nil {
		t.Fatal("Expected progress, got nil")
	}
	if stored.Status != "completed" || stored.Percentage != 100 {
		t.Errorf("Got %q %v%%, want completed 100%%", stored.Status, stored.Percentage)
	}
	if stored.TimeSpentHours != 64.5 {
		t.Errorf("TimeSpentHours = %v, want 64.5", stored.TimeSpentHours)
	}
	if stored.Notes != "finished with the optional labs" {
		t.Errorf("Notes = %q", stored.Notes)
	}
	if stored.StartedAt == nil || !stored.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", stored.StartedAt, started)
	}
	if stored.CompletedAt == nil || !stored.CompletedAt.Equal(completed) {
		t.Errorf("CompletedAt = %v, want %v", stored.CompletedAt, completed)
	}
}

func TestUpdateProgress_MissingCourse(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)

	err := db.UpdateProgress(context.Background(), &Progress{
		CourseID: "ghost",
		Status:   "in_progress",
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestUpdateProgress_RejectsUnknownStatus(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.SaveCourse(ctx, testCourse("p-3", "Databases", "computer-science", "Core Applications")); err != nil {
		t.Fatalf("SaveCourse failed: %v", err)
	}

	err := db.UpdateProgress(ctx, &Progress{CourseID: "p-3", Status: "paused"})
	if err == nil {
		t.Error("Expected status constraint to reject unknown status")
	}
}

func TestUpdateProgress_PreservesExplicitUpdatedAt(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.SaveCourse(ctx, testCourse("p-4", "Cryptography", "computer-science", "Core Security")); err != nil {
		t.Fatalf("SaveCourse failed: %v", err)
	}

	replayed := time.Unix(1700000100, 0).UTC()
	if err := db.UpdateProgress(ctx, &Progress{
		CourseID:  "p-4",
		Status:    "in_progress",
		UpdatedAt: replayed,
	}); err != nil {
		t.Fatalf("UpdateProgress failed: %v", err)
	}

	stored, err := db.GetProgress(ctx, "p-4")
	if err != nil {
		t.Fatalf("GetProgress failed: %v", err)
	}
	if !stored.UpdatedAt.Equal(replayed) {
		t.Errorf("UpdatedAt = %v, want replayed timestamp %v", stored.UpdatedAt, replayed)
	}
}

func TestGetAllProgress(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	seed := []*Course{
		testCourse("pa-2", "Second Course", "math", "Core Math"),
		testCourse("pa-1", "First Course", "math", "Core Math"),
	}
	if err := db.SaveCoursesBatch(ctx, seed); err != nil {
		t.Fatalf("Seeding failed: %v", err)
	}
	for _, id := range []string{"pa-2", "pa-1"} {
		if _, err := db.GetOrCreateProgress(ctx, id); err != nil {
			t.Fatalf("GetOrCreateProgress failed: %v", err)
		}
	}

	entries, err := db.GetAllProgress(ctx)
	if err != nil {
		t.Fatalf("GetAllProgress failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 progress rows, got %d", len(entries))
	}
	if entries[0].CourseID != "pa-1" || entries[1].CourseID != "pa-2" {
		t.Errorf("Order = [%s, %s], want [pa-1, pa-2]", entries[0].CourseID, entries[1].CourseID)
	}
}
