package search

import (
	"context"
	"fmt"

	"github.com/garyellow/ossu-tracker-go/internal/logger"
	"github.com/garyellow/ossu-tracker-go/internal/storage"
)

// Service answers catalog search queries. It prefers the BM25 index and
// falls back to a sanitized SQL LIKE search while the index has not been
// built yet (cold start before the first sync or restore).
type Service struct {
	index   *Index
	courses storage.CourseRepository
	logger  *logger.Logger
}

// NewService creates a search service backed by the given index and
// course repository.
func NewService(index *Index, courses storage.CourseRepository, log *logger.Logger) *Service {
	return &Service{
		index:   index,
		courses: courses,
		logger:  log.WithModule("search"),
	}
}

// Search returns up to limit courses matching the query. Fallback hits
// carry zero confidence: a LIKE match has no rank to derive one from.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if s.index.IsEnabled() {
		return s.index.Search(query, limit)
	}

	courses, err := s.courses.SearchCoursesByName(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("fallback search: %w", err)
	}

	if limit > 0 && len(courses) > limit {
		courses = courses[:limit]
	}

	results := make([]Result, 0, len(courses))
	for _, course := range courses {
		results = append(results, Result{
			CourseID:   course.ID,
			Name:       course.Name,
			Curriculum: course.Curriculum,
			Category:   course.Category,
		})
	}

	s.logger.WithFields(map[string]any{
		"query":   query,
		"results": len(results),
	}).Debug("Served search from SQL fallback")

	return results, nil
}

// Reindex rebuilds the BM25 index from the full catalog. Called after
// every sync and after a snapshot restore.
func (s *Service) Reindex(ctx context.Context) error {
	courses, err := s.courses.GetAllCourses(ctx)
	if err != nil {
		return fmt.Errorf("failed to load courses for indexing: %w", err)
	}
	return s.index.Rebuild(courses)
}

// Enabled reports whether queries are served from the BM25 index.
func (s *Service) Enabled() bool {
	return s.index.IsEnabled()
}
