// Package sync orchestrates catalog refreshes. A refresh runs the
// extraction pipeline for every requested curriculum, reconciles the
// combined result against the aggregate floor, and merges each curriculum
// into storage in its own transaction. Concurrent requests for the same
// scope collapse into a single run; overlapping scopes are rejected.
package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/garyellow/ossu-tracker-go/internal/data"
	apperrors "github.com/garyellow/ossu-tracker-go/internal/errors"
	"github.com/garyellow/ossu-tracker-go/internal/extract"
	"github.com/garyellow/ossu-tracker-go/internal/logger"
	"github.com/garyellow/ossu-tracker-go/internal/metrics"
	"github.com/garyellow/ossu-tracker-go/internal/storage"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// scopeAll is the singleflight key for whole-registry runs.
const scopeAll = "all"

// DefaultConcurrency bounds parallel pipeline runs when the config
// leaves it unset.
const DefaultConcurrency = 3

// Extractor runs the document pipeline for one curriculum.
// *extract.Pipeline is the production implementation.
type Extractor interface {
	Run(ctx context.Context, cur data.CurriculumInfo) (*extract.Result, error)
}

// CatalogStore is the slice of storage a sync run writes through.
// *storage.DB is the production implementation.
type CatalogStore interface {
	UpsertCurriculum(ctx context.Context, curriculum *storage.Curriculum) error
	UpsertCourses(ctx context.Context, curriculum string, courses []*storage.Course) (*storage.UpsertResult, error)
	ReplaceCurriculumCourses(ctx context.Context, curriculum string, courses []*storage.Course) error
	CountCoursesByCurriculum(ctx context.Context) (map[string]int, error)
}

// Hook is a post-sync callback.
type Hook func(ctx context.Context) error

// Hooks run after every successful sync in declaration order: reindex,
// enrich, snapshot. A nil hook is skipped; a hook failure is logged and
// never fails the sync, since the catalog is already persisted.
type Hooks struct {
	Reindex  Hook
	Enrich   Hook
	Snapshot Hook
}

// ServiceConfig tunes a sync service. Zero fields take defaults.
type ServiceConfig struct {
	// Concurrency bounds parallel pipeline runs in a whole-registry sync.
	Concurrency int
	// Options carries the extraction and fallback thresholds.
	Options extract.Options
	// Hooks are the optional post-sync callbacks.
	Hooks Hooks
}

// CurriculumResult reports one curriculum's share of a sync run.
type CurriculumResult struct {
	Curriculum   string `json:"curriculum"`
	Courses      int    `json:"courses"`
	Created      int    `json:"created"`
	Updated      int    `json:"updated"`
	Removed      int    `json:"removed"`
	FallbackUsed bool   `json:"fallback_used,omitempty"`
	FetchFailed  bool   `json:"fetch_failed,omitempty"`
	DurationMS   int64  `json:"duration_ms"`
}

// Summary reports a whole sync run. BelowThreshold marks full runs whose
// combined total stayed under the aggregate floor even after the
// reference catalog was merged in.
type Summary struct {
	Curricula      []CurriculumResult `json:"curricula"`
	TotalCourses   int                `json:"total_courses"`
	FetchFailures  int                `json:"fetch_failures"`
	FallbackMerged int                `json:"fallback_merged"`
	BelowThreshold bool               `json:"below_threshold,omitempty"`
	StartedAt      time.Time          `json:"started_at"`
	DurationMS     int64              `json:"duration_ms"`
}

// Service coordinates catalog syncs between the extraction pipeline and
// storage.
type Service struct {
	pipeline    Extractor
	references  extract.ReferenceFunc
	store       CatalogStore
	opts        extract.Options
	hooks       Hooks
	concurrency int
	logger      *logger.Logger
	metrics     *metrics.Metrics

	group singleflight.Group

	mu       sync.Mutex
	inflight map[string]bool
}

// NewService creates a sync service. A nil references func falls back to
// the built-in reference catalog.
func NewService(pipeline Extractor, references extract.ReferenceFunc, store CatalogStore, cfg ServiceConfig, log *logger.Logger, m *metrics.Metrics) *Service {
	if references == nil {
		references = data.ReferenceCourses
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	return &Service{
		pipeline:    pipeline,
		references:  references,
		store:       store,
		opts:        cfg.Options,
		hooks:       cfg.Hooks,
		concurrency: cfg.Concurrency,
		logger:      log.WithModule("sync"),
		metrics:     m,
		inflight:    make(map[string]bool),
	}
}

// SyncAll refreshes every tracked curriculum. Concurrent calls share one
// run and receive the same summary.
func (s *Service) SyncAll(ctx context.Context) (*Summary, error) {
	return s.collapse(ctx, scopeAll, func(ctx context.Context) (*Summary, error) {
		return s.run(ctx, data.AllCurricula)
	})
}

// SyncCurriculum refreshes one curriculum by registry name.
func (s *Service) SyncCurriculum(ctx context.Context, name string) (*Summary, error) {
	cur, ok := data.GetCurriculum(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownCurriculum, name)
	}
	return s.collapse(ctx, cur.Name, func(ctx context.Context) (*Summary, error) {
		return s.run(ctx, []data.CurriculumInfo{cur})
	})
}

// collapse funnels concurrent calls for one scope into a single run.
func (s *Service) collapse(ctx context.Context, key string, run func(context.Context) (*Summary, error)) (*Summary, error) {
	v, err, shared := s.group.Do(key, func() (any, error) {
		if err := s.begin(key); err != nil {
			return nil, err
		}
		defer s.end(key)
		return run(ctx)
	})
	if shared {
		s.metrics.RecordSingleflightDedup("sync")
		s.logger.WithField("scope", key).Debug("Joined in-flight sync")
	}
	if err != nil {
		return nil, err
	}
	return v.(*Summary), nil
}

// begin claims a scope. A whole-registry run conflicts with everything;
// single-curriculum runs conflict only with a whole-registry run, so two
// different curricula may sync at the same time.
func (s *Service) begin(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[scopeAll] || (key == scopeAll && len(s.inflight) > 0) {
		return apperrors.ErrSyncInProgress
	}
	s.inflight[key] = true
	return nil
}

func (s *Service) end(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, key)
}

// run executes a complete sync: extract every curriculum, reconcile the
// combined result against the aggregate floor, persist, then fire the
// hooks. Fetch failures are absorbed inside each pipeline run; the errors
// that surface here are context cancellation and storage failures.
func (s *Service) run(ctx context.Context, curricula []data.CurriculumInfo) (*Summary, error) {
	start := time.Now()
	s.logger.WithField("curricula", len(curricula)).Info("Starting catalog sync")

	results, err := s.extractAll(ctx, curricula)
	if err != nil {
		return nil, err
	}

	// The aggregate floor is a whole-registry property; a single
	// curriculum legitimately carries fewer courses than the floor.
	if len(curricula) > 1 {
		s.reconcileAggregate(results, curricula)
	}

	summary := &Summary{
		Curricula: make([]CurriculumResult, 0, len(curricula)),
		StartedAt: start.UTC(),
	}
	for i, cur := range curricula {
		res, err := s.persist(ctx, cur, results[i])
		if err != nil {
			return nil, err
		}
		summary.Curricula = append(summary.Curricula, res)
		summary.TotalCourses += res.Courses
		summary.FallbackMerged += results[i].Stats.FallbackAdded
		if res.FetchFailed {
			summary.FetchFailures++
		}
	}
	summary.BelowThreshold = len(curricula) > 1 &&
		s.opts.MinAggregate > 0 && summary.TotalCourses < s.opts.MinAggregate
	summary.DurationMS = time.Since(start).Milliseconds()

	if summary.BelowThreshold {
		s.logger.WithFields(map[string]any{
			"total":     summary.TotalCourses,
			"threshold": s.opts.MinAggregate,
		}).Warn("Catalog still below aggregate floor after fallback merge")
	}

	s.logger.WithFields(map[string]any{
		"curricula":       len(summary.Curricula),
		"total_courses":   summary.TotalCourses,
		"fetch_failures":  summary.FetchFailures,
		"fallback_merged": summary.FallbackMerged,
		"duration_ms":     summary.DurationMS,
	}).Info("Catalog sync finished")

	s.runHooks(ctx)
	return summary, nil
}

// extractAll runs the pipeline for each curriculum with bounded
// concurrency. Results keep registry order.
func (s *Service) extractAll(ctx context.Context, curricula []data.CurriculumInfo) ([]*extract.Result, error) {
	results := make([]*extract.Result, len(curricula))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, cur := range curricula {
		g.Go(func() error {
			result, err := s.pipeline.Run(ctx, cur)
			if err != nil {
				return fmt.Errorf("curriculum %s: %w", cur.Name, err)
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

// reconcileAggregate tops curricula up from the reference catalog when
// the combined extraction stays under the aggregate floor. Per-curriculum
// floors were already applied inside each pipeline run, so this only
// fires when several documents degraded at once.
func (s *Service) reconcileAggregate(results []*extract.Result, curricula []data.CurriculumInfo) {
	total := 0
	for _, result := range results {
		total += len(result.Candidates)
	}
	if s.opts.MinAggregate <= 0 || total >= s.opts.MinAggregate {
		return
	}

	s.logger.WithFields(map[string]any{
		"total":     total,
		"threshold": s.opts.MinAggregate,
	}).Warn("Combined extraction below aggregate floor, merging reference catalog")

	for i, cur := range curricula {
		refs, err := s.references(cur.Name)
		if err != nil {
			s.logger.WithError(err).WithField("curriculum", cur.Name).Error("Cannot load reference catalog")
			continue
		}
		merged, added := extract.MergeFallback(results[i].Candidates, refs, cur, s.opts)
		if added == 0 {
			continue
		}
		results[i].Candidates = merged
		results[i].Stats.FallbackAdded += added
		results[i].Stats.FallbackUsed = true
		s.metrics.RecordFallbackMerge(cur.Name, "below_total")
	}
}

// persist writes one curriculum's candidates to storage. The first sync
// of a curriculum replaces wholesale; re-syncs merge by name within the
// curriculum, so course ids and progress rows survive.
func (s *Service) persist(ctx context.Context, cur data.CurriculumInfo, result *extract.Result) (CurriculumResult, error) {
	start := time.Now()

	if err := s.store.UpsertCurriculum(ctx, &storage.Curriculum{
		Name:        cur.Name,
		DisplayName: cur.DisplayName,
		Description: cur.Description,
		GitHubURL:   cur.RepoURL,
	}); err != nil {
		return CurriculumResult{}, apperrors.NewPersistenceError(cur.Name, err)
	}

	courses := coursesFromCandidates(cur.Name, result.Candidates)
	upsert, err := s.writeCatalog(ctx, cur.Name, courses)
	if err != nil {
		return CurriculumResult{}, apperrors.NewPersistenceError(cur.Name, err)
	}

	duration := time.Since(start)
	s.metrics.RecordSyncDuration(cur.Name, duration.Seconds())
	s.metrics.SetCatalogCourses(cur.Name, float64(len(courses)))

	s.logger.WithFields(map[string]any{
		"curriculum": cur.Name,
		"courses":    len(courses),
		"created":    upsert.Created,
		"updated":    upsert.Updated,
		"removed":    upsert.Removed,
	}).Info("Curriculum synced")

	return CurriculumResult{
		Curriculum:   cur.Name,
		Courses:      len(courses),
		Created:      upsert.Created,
		Updated:      upsert.Updated,
		Removed:      upsert.Removed,
		FallbackUsed: result.Stats.FallbackUsed,
		FetchFailed:  result.FetchFailed,
		DurationMS:   duration.Milliseconds(),
	}, nil
}

// writeCatalog routes one curriculum's courses to storage. A curriculum
// with no stored rows has no ids or study state to preserve, so it takes
// the single-transaction replace path; after that every write is the
// name-keyed merge.
func (s *Service) writeCatalog(ctx context.Context, curriculum string, courses []*storage.Course) (*storage.UpsertResult, error) {
	counts, err := s.store.CountCoursesByCurriculum(ctx)
	if err != nil {
		return nil, err
	}
	if counts[curriculum] > 0 {
		return s.store.UpsertCourses(ctx, curriculum, courses)
	}
	if err := s.store.ReplaceCurriculumCourses(ctx, curriculum, courses); err != nil {
		return nil, err
	}
	return &storage.UpsertResult{Created: len(courses)}, nil
}

// runHooks fires the post-sync callbacks. A canceled context stops the
// chain; any other failure is logged and the next hook still runs.
func (s *Service) runHooks(ctx context.Context) {
	hooks := []struct {
		name string
		fn   Hook
	}{
		{"reindex", s.hooks.Reindex},
		{"enrich", s.hooks.Enrich},
		{"snapshot", s.hooks.Snapshot},
	}
	for _, hook := range hooks {
		if hook.fn == nil {
			continue
		}
		if err := hook.fn(ctx); err != nil {
			if ctx.Err() != nil {
				s.logger.WithField("hook", hook.name).Debug("Post-sync hooks canceled")
				return
			}
			s.logger.WithError(err).WithField("hook", hook.name).Warn("Post-sync hook failed")
		}
	}
}

// coursesFromCandidates converts pipeline output into storage rows.
// Ids and timestamps stay zero; the upsert assigns them.
func coursesFromCandidates(curriculum string, candidates []extract.Candidate) []*storage.Course {
	courses := make([]*storage.Course, 0, len(candidates))
	for _, candidate := range candidates {
		courses = append(courses, &storage.Course{
			Name:          candidate.Name,
			Curriculum:    curriculum,
			Category:      candidate.Category,
			URL:           candidate.URL,
			Duration:      candidate.Duration,
			Effort:        candidate.Effort,
			Prerequisites: candidate.Prerequisites,
			Description:   candidate.Description,
			Topics:        candidate.Topics,
		})
	}
	return courses
}
