// Package storage provides repository interfaces for data access abstraction.
// These interfaces enable dependency inversion and facilitate testing by
// decoupling HTTP handlers and the sync service from concrete storage
// implementations.
package storage

import (
	"context"
)

// CourseRepository defines the interface for catalog data operations.
type CourseRepository interface {
	SaveCourse(ctx context.Context, course *Course) error
	SaveCoursesBatch(ctx context.Context, courses []*Course) error
	ReplaceCurriculumCourses(ctx context.Context, curriculum string, courses []*Course) error
	UpsertCourses(ctx context.Context, curriculum string, courses []*Course) (*UpsertResult, error)
	UpdateCourseTopics(ctx context.Context, id string, topics []string) error
	GetCourseByID(ctx context.Context, id string) (*Course, error)
	GetCourses(ctx context.Context, curriculum, category string, limit, offset int) ([]Course, error)
	GetAllCourses(ctx context.Context) ([]Course, error)
	SearchCoursesByName(ctx context.Context, term string) ([]Course, error)
	CountCourses(ctx context.Context) (int, error)
	CountCoursesByCurriculum(ctx context.Context) (map[string]int, error)
}

// CurriculumRepository defines the interface for curriculum registry operations.
type CurriculumRepository interface {
	UpsertCurriculum(ctx context.Context, curriculum *Curriculum) error
	GetCurriculum(ctx context.Context, name string) (*Curriculum, error)
	GetAllCurricula(ctx context.Context) ([]Curriculum, error)
}

// ProgressRepository defines the interface for study state operations.
type ProgressRepository interface {
	GetProgress(ctx context.Context, courseID string) (*Progress, error)
	GetOrCreateProgress(ctx context.Context, courseID string) (*Progress, error)
	UpdateProgress(ctx context.Context, progress *Progress) error
	GetAllProgress(ctx context.Context) ([]Progress, error)
}

// StatsRepository defines the interface for aggregate statistics queries.
type StatsRepository interface {
	GetStats(ctx context.Context) (*Stats, error)
	GetCurriculumProgress(ctx context.Context) ([]CurriculumProgress, error)
	GetCategoryCounts(ctx context.Context, curriculum string) ([]CategoryCount, error)
}

// HealthRepository defines the interface for health check operations.
type HealthRepository interface {
	// Ping verifies database connections are alive.
	Ping(ctx context.Context) error

	// Ready checks if the database is ready to serve queries.
	// Performs a more thorough check than Ping.
	Ready(ctx context.Context) error
}

// Repository is the aggregate interface that combines all repository interfaces.
// The DB type implements this interface, providing a single entry point for
// all data operations.
type Repository interface {
	CourseRepository
	CurriculumRepository
	ProgressRepository
	StatsRepository
	HealthRepository
	Close() error
}

// Ensure DB implements all repository interfaces at compile time.
// This provides early detection of interface implementation issues.
var (
	_ CourseRepository     = (*DB)(nil)
	_ CurriculumRepository = (*DB)(nil)
	_ ProgressRepository   = (*DB)(nil)
	_ StatsRepository      = (*DB)(nil)
	_ HealthRepository     = (*DB)(nil)
	_ Repository           = (*DB)(nil)
)
