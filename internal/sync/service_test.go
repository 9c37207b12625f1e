package sync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/garyellow/ossu-tracker-go/internal/data"
	apperrors "github.com/garyellow/ossu-tracker-go/internal/errors"
	"github.com/garyellow/ossu-tracker-go/internal/extract"
	"github.com/garyellow/ossu-tracker-go/internal/logger"
	"github.com/garyellow/ossu-tracker-go/internal/metrics"
	"github.com/garyellow/ossu-tracker-go/internal/storage"
)

// fakeExtractor serves canned candidates per curriculum. When blockOn is
// set, runs for that curriculum close started and wait for release, which
// lets tests hold a sync in flight.
type fakeExtractor struct {
	mu        sync.Mutex
	calls     int
	perName   map[string]int
	results   map[string][]extract.Candidate
	fetchFail map[string]bool
	runErr    error

	blockOn   string
	startOnce sync.Once
	started   chan struct{}
	release   chan struct{}
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{
		perName:   make(map[string]int),
		results:   make(map[string][]extract.Candidate),
		fetchFail: make(map[string]bool),
		started:   make(chan struct{}),
		release:   make(chan struct{}),
	}
}

func (f *fakeExtractor) Run(ctx context.Context, cur data.CurriculumInfo) (*extract.Result, error) {
	f.mu.Lock()
	f.calls++
	f.perName[cur.Name]++
	f.mu.Unlock()

	if f.runErr != nil {
		return nil, f.runErr
	}

	if f.blockOn == cur.Name {
		f.startOnce.Do(func() { close(f.started) })
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	cands := make([]extract.Candidate, len(f.results[cur.Name]))
	copy(cands, f.results[cur.Name])
	result := &extract.Result{
		Curriculum: cur.Name,
		Candidates: cands,
		Stats: extract.Stats{
			Extracted:    len(cands),
			StrategyHits: make(map[string]int),
		},
	}
	if f.fetchFail[cur.Name] {
		result.FetchFailed = true
		result.Stats.FallbackUsed = true
	}
	return result, nil
}

func (f *fakeExtractor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeExtractor) callsFor(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.perName[name]
}

// fakeCatalogStore records writes in memory. failOn injects a write
// failure for one curriculum.
type fakeCatalogStore struct {
	mu        sync.Mutex
	curricula []*storage.Curriculum
	saved     map[string][]*storage.Course
	replaces  map[string]int
	merges    map[string]int
	failOn    string
}

func newFakeCatalogStore() *fakeCatalogStore {
	return &fakeCatalogStore{
		saved:    make(map[string][]*storage.Course),
		replaces: make(map[string]int),
		merges:   make(map[string]int),
	}
}

func (f *fakeCatalogStore) UpsertCurriculum(_ context.Context, c *storage.Curriculum) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.curricula = append(f.curricula, c)
	return nil
}

func (f *fakeCatalogStore) UpsertCourses(_ context.Context, curriculum string, courses []*storage.Course) (*storage.UpsertResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn == curriculum {
		return nil, errors.New("disk I/O error")
	}
	f.merges[curriculum]++
	f.saved[curriculum] = courses
	return &storage.UpsertResult{Created: len(courses)}, nil
}

func (f *fakeCatalogStore) ReplaceCurriculumCourses(_ context.Context, curriculum string, courses []*storage.Course) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn == curriculum {
		return errors.New("disk I/O error")
	}
	f.replaces[curriculum]++
	f.saved[curriculum] = courses
	return nil
}

func (f *fakeCatalogStore) CountCoursesByCurriculum(_ context.Context) (map[string]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[string]int, len(f.saved))
	for name, courses := range f.saved {
		counts[name] = len(courses)
	}
	return counts, nil
}

// writes reports how many times each persistence path ran for a curriculum.
func (f *fakeCatalogStore) writes(curriculum string) (replaced, merged int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.replaces[curriculum], f.merges[curriculum]
}

func candidateList(names ...string) []extract.Candidate {
	cands := make([]extract.Candidate, 0, len(names))
	for _, name := range names {
		cands = append(cands, extract.Candidate{
			Name:          name,
			Category:      "Core Programming",
			Prerequisites: "none",
		})
	}
	return cands
}

func staticRefs(refs []data.ReferenceCourse) extract.ReferenceFunc {
	return func(string) ([]data.ReferenceCourse, error) {
		return refs, nil
	}
}

func newTestService(extractor Extractor, refs extract.ReferenceFunc, store CatalogStore, cfg ServiceConfig) *Service {
	log := logger.New("error")
	m := metrics.New(prometheus.NewRegistry())
	return NewService(extractor, refs, store, cfg, log, m)
}

func waitSync(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for sync to finish")
		return nil
	}
}

func TestSyncCurriculum_PersistsCatalog(t *testing.T) {
	t.Parallel()
	extractor := newFakeExtractor()
	extractor.results["computer-science"] = candidateList("Operating Systems Deep Dive", "Computer Networks Basics")
	store := newFakeCatalogStore()
	svc := newTestService(extractor, staticRefs(nil), store, ServiceConfig{})

	summary, err := svc.SyncCurriculum(context.Background(), "computer-science")
	if err != nil {
		t.Fatalf("SyncCurriculum() error = %v", err)
	}

	if len(summary.Curricula) != 1 {
		t.Fatalf("summary has %d curricula, want 1", len(summary.Curricula))
	}
	res := summary.Curricula[0]
	if res.Curriculum != "computer-science" || res.Courses != 2 || res.Created != 2 {
		t.Errorf("result = %+v, want 2 created courses for computer-science", res)
	}
	if summary.TotalCourses != 2 {
		t.Errorf("TotalCourses = %d, want 2", summary.TotalCourses)
	}
	if summary.StartedAt.IsZero() {
		t.Error("StartedAt is zero")
	}

	if len(store.curricula) != 1 {
		t.Fatalf("store received %d curriculum upserts, want 1", len(store.curricula))
	}
	cur := store.curricula[0]
	if cur.DisplayName != "Computer Science" || cur.GitHubURL != "https://github.com/ossu/computer-science" {
		t.Errorf("curriculum upsert = %+v, missing registry identity", cur)
	}

	saved := store.saved["computer-science"]
	if len(saved) != 2 {
		t.Fatalf("store received %d courses, want 2", len(saved))
	}
	for _, course := range saved {
		if course.Curriculum != "computer-science" {
			t.Errorf("course %q curriculum = %q, want computer-science", course.Name, course.Curriculum)
		}
	}
}

func TestSyncCurriculum_FreshSyncReplacesThenMerges(t *testing.T) {
	t.Parallel()
	extractor := newFakeExtractor()
	extractor.results["computer-science"] = candidateList("Operating Systems Deep Dive")
	store := newFakeCatalogStore()
	svc := newTestService(extractor, staticRefs(nil), store, ServiceConfig{})

	// Nothing stored yet: the whole catalog is written fresh.
	if _, err := svc.SyncCurriculum(context.Background(), "computer-science"); err != nil {
		t.Fatalf("first SyncCurriculum() error = %v", err)
	}
	replaced, merged := store.writes("computer-science")
	if replaced != 1 || merged != 0 {
		t.Errorf("first sync: replaced=%d merged=%d, want 1 and 0", replaced, merged)
	}

	// Rows exist now, so the re-sync must merge by name instead.
	if _, err := svc.SyncCurriculum(context.Background(), "computer-science"); err != nil {
		t.Fatalf("second SyncCurriculum() error = %v", err)
	}
	replaced, merged = store.writes("computer-science")
	if replaced != 1 || merged != 1 {
		t.Errorf("re-sync: replaced=%d merged=%d, want 1 and 1", replaced, merged)
	}
}

func TestSyncCurriculum_UnknownName(t *testing.T) {
	t.Parallel()
	svc := newTestService(newFakeExtractor(), staticRefs(nil), newFakeCatalogStore(), ServiceConfig{})

	_, err := svc.SyncCurriculum(context.Background(), "astrology")
	if !errors.Is(err, apperrors.ErrUnknownCurriculum) {
		t.Errorf("SyncCurriculum(astrology) error = %v, want ErrUnknownCurriculum", err)
	}
}

func TestSyncAll_CoversRegistry(t *testing.T) {
	t.Parallel()
	extractor := newFakeExtractor()
	for _, cur := range data.AllCurricula {
		extractor.results[cur.Name] = candidateList("Course One Intro", "Course Two Intro", "Course Three Intro")
	}
	store := newFakeCatalogStore()
	svc := newTestService(extractor, staticRefs(nil), store, ServiceConfig{})

	summary, err := svc.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("SyncAll() error = %v", err)
	}

	if len(summary.Curricula) != len(data.AllCurricula) {
		t.Fatalf("summary has %d curricula, want %d", len(summary.Curricula), len(data.AllCurricula))
	}
	for i, cur := range data.AllCurricula {
		res := summary.Curricula[i]
		if res.Curriculum != cur.Name {
			t.Errorf("curricula[%d] = %q, want %q (registry order)", i, res.Curriculum, cur.Name)
		}
		if res.Courses != 3 {
			t.Errorf("curricula[%d] courses = %d, want 3", i, res.Courses)
		}
		if len(store.saved[cur.Name]) != 3 {
			t.Errorf("store has %d courses for %q, want 3", len(store.saved[cur.Name]), cur.Name)
		}
	}
	if want := 3 * len(data.AllCurricula); summary.TotalCourses != want {
		t.Errorf("TotalCourses = %d, want %d", summary.TotalCourses, want)
	}
	if summary.FallbackMerged != 0 || summary.FetchFailures != 0 {
		t.Errorf("clean run reported fallback=%d fetch failures=%d", summary.FallbackMerged, summary.FetchFailures)
	}
}

func TestSyncAll_AggregateFloorTopUp(t *testing.T) {
	t.Parallel()
	extractor := newFakeExtractor()
	for _, cur := range data.AllCurricula {
		extractor.results[cur.Name] = candidateList("Intro Programming Alpha", "Databases Beta")
	}
	store := newFakeCatalogStore()

	// One reference entry duplicates an extracted name, so each
	// curriculum gains three.
	refs := []data.ReferenceCourse{
		{Name: "Intro Programming Alpha", Category: "Core Programming"},
		{Name: "Linear Algebra Basics", Category: "Core Math"},
		{Name: "Graph Theory Primer", Category: "Core Math"},
		{Name: "Signals and Systems", Category: "Core Systems"},
	}
	cfg := ServiceConfig{Options: extract.Options{
		SimilarityThreshold: 0.85,
		ContainmentMinLen:   10,
		MinAggregate:        30,
	}}
	svc := newTestService(extractor, staticRefs(refs), store, cfg)

	summary, err := svc.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("SyncAll() error = %v", err)
	}

	perCurriculum := 5
	if want := 3 * len(data.AllCurricula); summary.FallbackMerged != want {
		t.Errorf("FallbackMerged = %d, want %d", summary.FallbackMerged, want)
	}
	if want := perCurriculum * len(data.AllCurricula); summary.TotalCourses != want {
		t.Errorf("TotalCourses = %d, want %d", summary.TotalCourses, want)
	}
	// 25 courses still misses the floor of 30.
	if !summary.BelowThreshold {
		t.Error("BelowThreshold = false, want true")
	}
	for _, res := range summary.Curricula {
		if !res.FallbackUsed {
			t.Errorf("curriculum %q FallbackUsed = false, want true", res.Curriculum)
		}
		if res.Courses != perCurriculum {
			t.Errorf("curriculum %q courses = %d, want %d", res.Curriculum, res.Courses, perCurriculum)
		}
	}
}

func TestSyncAll_AggregateFloorSatisfied(t *testing.T) {
	t.Parallel()
	extractor := newFakeExtractor()
	for _, cur := range data.AllCurricula {
		extractor.results[cur.Name] = candidateList(
			"Course One Intro", "Course Two Intro", "Course Three Intro",
			"Course Four Intro", "Course Five Intro", "Course Six Intro",
		)
	}
	cfg := ServiceConfig{Options: extract.Options{
		SimilarityThreshold: 0.85,
		ContainmentMinLen:   10,
		MinAggregate:        30,
	}}
	refs := []data.ReferenceCourse{{Name: "Linear Algebra Basics", Category: "Core Math"}}
	svc := newTestService(extractor, staticRefs(refs), newFakeCatalogStore(), cfg)

	summary, err := svc.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("SyncAll() error = %v", err)
	}
	if summary.FallbackMerged != 0 {
		t.Errorf("FallbackMerged = %d, want 0 when the floor is met", summary.FallbackMerged)
	}
	if summary.BelowThreshold {
		t.Error("BelowThreshold = true, want false")
	}
}

func TestSyncCurriculum_SkipsAggregateFloor(t *testing.T) {
	t.Parallel()
	extractor := newFakeExtractor()
	extractor.results["math"] = candidateList("Calculus One Basics", "Calculus Two Basics")
	refs := []data.ReferenceCourse{{Name: "Linear Algebra Basics", Category: "Core Math"}}
	cfg := ServiceConfig{Options: extract.Options{
		SimilarityThreshold: 0.85,
		ContainmentMinLen:   10,
		MinAggregate:        30,
	}}
	svc := newTestService(extractor, staticRefs(refs), newFakeCatalogStore(), cfg)

	summary, err := svc.SyncCurriculum(context.Background(), "math")
	if err != nil {
		t.Fatalf("SyncCurriculum() error = %v", err)
	}
	if summary.FallbackMerged != 0 {
		t.Errorf("FallbackMerged = %d, want 0 for a single-curriculum run", summary.FallbackMerged)
	}
	if summary.BelowThreshold {
		t.Error("BelowThreshold = true for a single-curriculum run")
	}
}

func TestSyncAll_PersistenceFailureAborts(t *testing.T) {
	t.Parallel()
	extractor := newFakeExtractor()
	for _, cur := range data.AllCurricula {
		extractor.results[cur.Name] = candidateList("Course One Intro")
	}
	store := newFakeCatalogStore()
	store.failOn = data.AllCurricula[1].Name
	svc := newTestService(extractor, staticRefs(nil), store, ServiceConfig{})

	summary, err := svc.SyncAll(context.Background())
	if err == nil {
		t.Fatal("SyncAll() error = nil, want persistence failure")
	}
	if summary != nil {
		t.Errorf("SyncAll() summary = %+v, want nil on hard failure", summary)
	}

	var pe *apperrors.PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *PersistenceError", err)
	}
	if pe.Curriculum != data.AllCurricula[1].Name {
		t.Errorf("PersistenceError.Curriculum = %q, want %q", pe.Curriculum, data.AllCurricula[1].Name)
	}

	// Curricula ahead of the failure were already committed; each merge
	// is its own transaction.
	if len(store.saved[data.AllCurricula[0].Name]) != 1 {
		t.Errorf("store has %d courses for %q, want 1", len(store.saved[data.AllCurricula[0].Name]), data.AllCurricula[0].Name)
	}
}

func TestSyncAll_FetchFailureNeverAborts(t *testing.T) {
	t.Parallel()
	extractor := newFakeExtractor()
	for _, cur := range data.AllCurricula {
		extractor.results[cur.Name] = candidateList("Course One Intro")
	}
	extractor.fetchFail["data-science"] = true
	store := newFakeCatalogStore()
	svc := newTestService(extractor, staticRefs(nil), store, ServiceConfig{})

	summary, err := svc.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("SyncAll() error = %v, fetch failures must not abort", err)
	}
	if summary.FetchFailures != 1 {
		t.Errorf("FetchFailures = %d, want 1", summary.FetchFailures)
	}
	for _, res := range summary.Curricula {
		wantFailed := res.Curriculum == "data-science"
		if res.FetchFailed != wantFailed {
			t.Errorf("curriculum %q FetchFailed = %v, want %v", res.Curriculum, res.FetchFailed, wantFailed)
		}
	}
}

func TestSync_ConcurrentCallsCollapse(t *testing.T) {
	t.Parallel()
	extractor := newFakeExtractor()
	extractor.results["computer-science"] = candidateList("Course One Intro")
	extractor.blockOn = "computer-science"
	svc := newTestService(extractor, staticRefs(nil), newFakeCatalogStore(), ServiceConfig{})

	type outcome struct {
		summary *Summary
		err     error
	}
	outcomes := make(chan outcome, 2)
	for range 2 {
		go func() {
			summary, err := svc.SyncCurriculum(context.Background(), "computer-science")
			outcomes <- outcome{summary, err}
		}()
	}

	<-extractor.started
	// Give the second caller time to join the in-flight run.
	time.Sleep(50 * time.Millisecond)
	close(extractor.release)

	first := <-outcomes
	second := <-outcomes
	if first.err != nil || second.err != nil {
		t.Fatalf("concurrent syncs failed: %v, %v", first.err, second.err)
	}
	if first.summary != second.summary {
		t.Error("concurrent callers received different summaries, want one shared run")
	}
	if got := extractor.callCount(); got != 1 {
		t.Errorf("pipeline ran %d times, want 1", got)
	}
}

func TestSyncAll_RejectsDuringSingleCurriculumRun(t *testing.T) {
	t.Parallel()
	extractor := newFakeExtractor()
	extractor.results["math"] = candidateList("Calculus One Basics")
	extractor.results["computer-science"] = candidateList("Course One Intro")
	extractor.blockOn = "math"
	svc := newTestService(extractor, staticRefs(nil), newFakeCatalogStore(), ServiceConfig{})

	done := make(chan error, 1)
	go func() {
		_, err := svc.SyncCurriculum(context.Background(), "math")
		done <- err
	}()
	<-extractor.started

	// A different single curriculum may run alongside.
	if _, err := svc.SyncCurriculum(context.Background(), "computer-science"); err != nil {
		t.Errorf("SyncCurriculum(computer-science) error = %v, want concurrent single runs allowed", err)
	}

	// The whole registry overlaps the in-flight curriculum.
	if _, err := svc.SyncAll(context.Background()); !errors.Is(err, apperrors.ErrSyncInProgress) {
		t.Errorf("SyncAll() error = %v, want ErrSyncInProgress", err)
	}

	close(extractor.release)
	if err := waitSync(t, done); err != nil {
		t.Errorf("blocked sync finished with error: %v", err)
	}
}

func TestSyncCurriculum_RejectsDuringFullRun(t *testing.T) {
	t.Parallel()
	extractor := newFakeExtractor()
	for _, cur := range data.AllCurricula {
		extractor.results[cur.Name] = candidateList("Course One Intro")
	}
	extractor.blockOn = "computer-science"
	svc := newTestService(extractor, staticRefs(nil), newFakeCatalogStore(), ServiceConfig{})

	done := make(chan error, 1)
	go func() {
		_, err := svc.SyncAll(context.Background())
		done <- err
	}()
	<-extractor.started

	if _, err := svc.SyncCurriculum(context.Background(), "math"); !errors.Is(err, apperrors.ErrSyncInProgress) {
		t.Errorf("SyncCurriculum() error = %v, want ErrSyncInProgress", err)
	}

	close(extractor.release)
	if err := waitSync(t, done); err != nil {
		t.Errorf("full sync finished with error: %v", err)
	}
}

func TestSync_HooksRunAfterPersist(t *testing.T) {
	t.Parallel()
	extractor := newFakeExtractor()
	extractor.results["computer-science"] = candidateList("Course One Intro")
	store := newFakeCatalogStore()

	var mu sync.Mutex
	var order []string
	record := func(name string, err error) Hook {
		return func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return err
		}
	}
	cfg := ServiceConfig{Hooks: Hooks{
		Reindex:  record("reindex", errors.New("index rebuild failed")),
		Enrich:   record("enrich", nil),
		Snapshot: record("snapshot", nil),
	}}
	svc := newTestService(extractor, staticRefs(nil), store, cfg)

	if _, err := svc.SyncCurriculum(context.Background(), "computer-science"); err != nil {
		t.Fatalf("SyncCurriculum() error = %v, hook failures must not surface", err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"reindex", "enrich", "snapshot"}
	if len(order) != len(want) {
		t.Fatalf("hooks ran %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("hooks ran %v, want %v", order, want)
		}
	}
}

func TestSync_HooksStopOnCanceledContext(t *testing.T) {
	t.Parallel()
	extractor := newFakeExtractor()
	extractor.results["computer-science"] = candidateList("Course One Intro")

	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	var order []string
	cfg := ServiceConfig{Hooks: Hooks{
		Reindex: func(context.Context) error {
			mu.Lock()
			order = append(order, "reindex")
			mu.Unlock()
			cancel()
			return ctx.Err()
		},
		Enrich: func(context.Context) error {
			mu.Lock()
			order = append(order, "enrich")
			mu.Unlock()
			return nil
		},
	}}
	svc := newTestService(extractor, staticRefs(nil), newFakeCatalogStore(), cfg)

	if _, err := svc.SyncCurriculum(ctx, "computer-science"); err != nil {
		t.Fatalf("SyncCurriculum() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 1 || order[0] != "reindex" {
		t.Errorf("hooks ran %v, want chain to stop after cancellation", order)
	}
}

func TestSync_RealStorageRoundTrip(t *testing.T) {
	t.Parallel()
	db, err := storage.NewTestDB()
	if err != nil {
		t.Fatalf("NewTestDB failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()

	extractor := newFakeExtractor()
	extractor.results["computer-science"] = candidateList("Operating Systems Deep Dive", "Computer Networks Basics")
	svc := newTestService(extractor, staticRefs(nil), db, ServiceConfig{})

	first, err := svc.SyncCurriculum(ctx, "computer-science")
	if err != nil {
		t.Fatalf("first SyncCurriculum() error = %v", err)
	}
	if first.Curricula[0].Created != 2 {
		t.Fatalf("first run created %d, want 2", first.Curricula[0].Created)
	}

	courses, err := db.GetCourses(ctx, "computer-science", "", 0, 0)
	if err != nil {
		t.Fatalf("GetCourses failed: %v", err)
	}
	var osID string
	for _, course := range courses {
		if course.Name == "Operating Systems Deep Dive" {
			osID = course.ID
		}
	}
	if osID == "" {
		t.Fatal("synced course not found in storage")
	}

	progress, err := db.GetOrCreateProgress(ctx, osID)
	if err != nil || progress == nil {
		t.Fatalf("GetOrCreateProgress failed: %v", err)
	}
	progress.Status = "in_progress"
	progress.Percentage = 40
	if err := db.UpdateProgress(ctx, progress); err != nil {
		t.Fatalf("UpdateProgress failed: %v", err)
	}

	// Re-sync with one course kept, one dropped, one added.
	extractor.results["computer-science"] = candidateList("Operating Systems Deep Dive", "Database Systems Intro")
	second, err := svc.SyncCurriculum(ctx, "computer-science")
	if err != nil {
		t.Fatalf("second SyncCurriculum() error = %v", err)
	}
	res := second.Curricula[0]
	if res.Created != 1 || res.Updated != 1 || res.Removed != 1 {
		t.Errorf("second run = created %d updated %d removed %d, want 1/1/1", res.Created, res.Updated, res.Removed)
	}

	courses, err = db.GetCourses(ctx, "computer-science", "", 0, 0)
	if err != nil {
		t.Fatalf("GetCourses after re-sync failed: %v", err)
	}
	if len(courses) != 2 {
		t.Fatalf("catalog has %d courses after re-sync, want 2", len(courses))
	}
	for _, course := range courses {
		if course.Name == "Operating Systems Deep Dive" && course.ID != osID {
			t.Errorf("course id changed across re-sync: %q -> %q", osID, course.ID)
		}
	}

	kept, err := db.GetProgress(ctx, osID)
	if err != nil {
		t.Fatalf("GetProgress failed: %v", err)
	}
	if kept == nil {
		t.Fatal("progress row vanished across re-sync")
	}
	if kept.Status != "in_progress" || kept.Percentage != 40 {
		t.Errorf("progress = %s/%.0f%%, want in_progress/40%%", kept.Status, kept.Percentage)
	}
}

func TestCoursesFromCandidates(t *testing.T) {
	t.Parallel()
	cands := []extract.Candidate{{
		Name:          "Operating Systems Deep Dive",
		URL:           "https://example.org/os",
		Curriculum:    "stale-value",
		Category:      "Core Systems",
		Duration:      "10 weeks",
		Effort:        "6 hours/week",
		Prerequisites: "Intro CS",
		Description:   "Kernels and schedulers",
		Topics:        []string{"kernels"},
	}}

	courses := coursesFromCandidates("computer-science", cands)
	if len(courses) != 1 {
		t.Fatalf("got %d courses, want 1", len(courses))
	}
	course := courses[0]
	if course.Curriculum != "computer-science" {
		t.Errorf("Curriculum = %q, want the sync scope, not the candidate value", course.Curriculum)
	}
	if course.Name != "Operating Systems Deep Dive" || course.URL != "https://example.org/os" {
		t.Errorf("identity fields lost: %+v", course)
	}
	if course.Duration != "10 weeks" || course.Effort != "6 hours/week" {
		t.Errorf("schedule fields lost: %+v", course)
	}
	if course.Prerequisites != "Intro CS" || course.Description != "Kernels and schedulers" {
		t.Errorf("detail fields lost: %+v", course)
	}
	if len(course.Topics) != 1 || course.Topics[0] != "kernels" {
		t.Errorf("Topics = %v, want [kernels]", course.Topics)
	}
	if course.ID != "" || !course.CreatedAt.IsZero() {
		t.Errorf("id/timestamps should stay zero for the upsert to assign: %+v", course)
	}
}
