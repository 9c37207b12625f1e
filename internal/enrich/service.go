// Enrichment pass over the catalog.
// Runs after sync: finds courses without topics, asks the tagger chain
// for tags, and stores them. A failed course is logged and skipped so
// one bad call never blocks the rest of the pass; a spent quota ends
// the pass instead of burning it course by course.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyellow/ossu-tracker-go/internal/logger"
	"github.com/garyellow/ossu-tracker-go/internal/storage"
)

// Service pacing defaults.
const (
	// DefaultMaxPerRun bounds how many courses one pass tags.
	DefaultMaxPerRun = 25
	// DefaultPause spaces out provider calls within a pass.
	DefaultPause = time.Second
	// DefaultRequestTimeout bounds a single provider call.
	DefaultRequestTimeout = 20 * time.Second
)

// ServiceConfig tunes the enrichment pass. Zero fields take defaults.
type ServiceConfig struct {
	// MaxPerRun is the most courses tagged in one pass.
	MaxPerRun int
	// RequestTimeout bounds each provider call.
	RequestTimeout time.Duration
	// Pause is the delay between provider calls.
	Pause time.Duration
}

// Service tags catalog courses that have no topics yet.
type Service struct {
	tagger         Tagger
	courses        storage.CourseRepository
	logger         *logger.Logger
	maxPerRun      int
	requestTimeout time.Duration
	pause          time.Duration
}

// NewService creates the enrichment service. A nil tagger disables
// enrichment; EnrichMissing becomes a no-op.
func NewService(tagger Tagger, courses storage.CourseRepository, cfg ServiceConfig, log *logger.Logger) *Service {
	if cfg.MaxPerRun <= 0 {
		cfg.MaxPerRun = DefaultMaxPerRun
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Pause <= 0 {
		cfg.Pause = DefaultPause
	}
	return &Service{
		tagger:         tagger,
		courses:        courses,
		logger:         log.WithModule("enrich"),
		maxPerRun:      cfg.MaxPerRun,
		requestTimeout: cfg.RequestTimeout,
		pause:          cfg.Pause,
	}
}

// Enabled reports whether a tagger is configured.
func (s *Service) Enabled() bool {
	return s != nil && s.tagger != nil
}

// EnrichMissing tags up to MaxPerRun courses that have no topics.
// Returns how many courses were tagged. A failed course is logged and
// skipped, except quota exhaustion, which ends the pass early; only
// storage failures and context cancellation abort with an error.
func (s *Service) EnrichMissing(ctx context.Context) (int, error) {
	if !s.Enabled() {
		return 0, nil
	}

	courses, err := s.courses.GetAllCourses(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load courses: %w", err)
	}

	var missing []storage.Course
	for _, course := range courses {
		if len(course.Topics) == 0 {
			missing = append(missing, course)
		}
	}
	if len(missing) == 0 {
		return 0, nil
	}
	if len(missing) > s.maxPerRun {
		missing = missing[:s.maxPerRun]
	}

	tagged := 0
	for i, course := range missing {
		if i > 0 {
			if err := Sleep(ctx, s.pause); err != nil {
				return tagged, err
			}
		}

		topics, err := s.tagCourse(ctx, course)
		if err != nil {
			if ctx.Err() != nil {
				return tagged, ctx.Err()
			}
			s.logger.WithError(err).WithField("course", course.Name).Warn("Topic tagging failed")
			if ShouldFallback(err) {
				// Quota exhaustion is account-level, not course-level:
				// the rest of the pass would hit the same wall. The next
				// pass retries once the quota window resets.
				s.logger.Warn("Provider quota exhausted, ending enrichment pass early")
				break
			}
			continue
		}

		if err := s.courses.UpdateCourseTopics(ctx, course.ID, topics); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				// Course was removed by a concurrent re-sync.
				s.logger.WithField("course", course.Name).Debug("Course vanished before topics landed")
				continue
			}
			return tagged, fmt.Errorf("failed to store topics: %w", err)
		}
		tagged++
	}

	s.logger.WithFields(map[string]any{
		"tagged":  tagged,
		"missing": len(missing),
	}).Info("Topic enrichment pass completed")
	return tagged, nil
}

func (s *Service) tagCourse(ctx context.Context, course storage.Course) ([]string, error) {
	cctx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()
	return s.tagger.Tag(cctx, CourseInfo{
		Name:        course.Name,
		Curriculum:  course.Curriculum,
		Category:    course.Category,
		Description: course.Description,
	})
}

// Close releases the tagger chain.
func (s *Service) Close() error {
	if s == nil || s.tagger == nil {
		return nil
	}
	return s.tagger.Close()
}
