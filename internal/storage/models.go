package storage

import (
	"errors"
	"time"
)

// Common errors
var (
	// ErrNotFound is returned when a write references a resource that does not exist
	ErrNotFound = errors.New("resource not found")
)

// Course represents one catalog entry reconciled from a curriculum document
type Course struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Curriculum    string    `json:"curriculum"`
	Category      string    `json:"category"`
	URL           string    `json:"url,omitempty"`
	Duration      string    `json:"duration,omitempty"`
	Effort        string    `json:"effort,omitempty"`
	Prerequisites string    `json:"prerequisites,omitempty"`
	Description   string    `json:"description,omitempty"`
	Topics        []string  `json:"topics"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Curriculum represents one tracked curriculum and its sync state
type Curriculum struct {
	Name         string     `json:"name"`
	DisplayName  string     `json:"display_name"`
	Description  string     `json:"description,omitempty"`
	GitHubURL    string     `json:"github_url,omitempty"`
	TotalCourses int        `json:"total_courses"`
	LastSynced   *time.Time `json:"last_synced,omitempty"`
}

// Progress represents the study state recorded for one course
type Progress struct {
	CourseID       string     `json:"course_id"`
	Status         string     `json:"status"` // "not_started", "in_progress", or "completed"
	Percentage     float64    `json:"percentage"`
	TimeSpentHours float64    `json:"time_spent_hours"`
	Notes          string     `json:"notes,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// CategoryCount holds the number of courses in one category of a curriculum
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// CurriculumProgress aggregates study state across one curriculum.
// AveragePercentage counts courses without a progress row as zero, so it
// reflects completion of the whole curriculum rather than of started courses.
type CurriculumProgress struct {
	Curriculum        string  `json:"curriculum"`
	TotalCourses      int     `json:"total_courses"`
	Completed         int     `json:"completed"`
	InProgress        int     `json:"in_progress"`
	AveragePercentage float64 `json:"average_percentage"`
}

// Stats aggregates catalog and progress counts for the stats endpoint.
// AverageProgress averages only courses that have a progress row.
type Stats struct {
	TotalCourses         int            `json:"total_courses"`
	CoursesWithProgress  int            `json:"courses_with_progress"`
	CompletedCourses     int            `json:"completed_courses"`
	InProgressCourses    int            `json:"in_progress_courses"`
	AverageProgress      float64        `json:"average_progress"`
	CoursesPerCurriculum map[string]int `json:"courses_per_curriculum"`
}

// UpsertResult reports what a catalog merge changed
type UpsertResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Removed int `json:"removed"`
}
