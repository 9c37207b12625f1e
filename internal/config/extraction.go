// Package config provides extraction and reconciliation constants.
// The similarity threshold and substring cutoff existed in several slightly
// different copies before being consolidated here; extraction logic must
// read them from configuration, never hardcode them.
package config

// Deduplication constants
const (
	// DefaultDedupeSimilarity is the character-level sequence similarity
	// ratio above which two course names are considered duplicates.
	DefaultDedupeSimilarity = 0.85

	// DefaultDedupeContainmentMinLen is the minimum length both names must
	// exceed for the case-insensitive substring rule to apply
	// ("Intro to X" vs "Introduction to X").
	DefaultDedupeContainmentMinLen = 10
)

// Extraction constants
const (
	// MinCourseNameLength is the minimum course-name length after markup
	// cleanup. Shorter candidates are dropped, not emitted.
	MinCourseNameLength = 5

	// MinCourseLineLength is the minimum raw line length worth parsing at
	// all. Anything shorter cannot carry a valid name plus markup.
	MinCourseLineLength = 10

	// MinTableNameLength is the minimum first-cell length for a table row
	// to count as a course row rather than a stray fragment.
	MinTableNameLength = 3

	// MinHeadingLength is the minimum heading length for a heading to count
	// as a category change. Shorter headings (section glyphs, emoji) are
	// ignored.
	MinHeadingLength = 3

	// LookaheadWindow is how many lines the multi-line strategy considers:
	// the keyword-density gate reads this many lines ahead, and once the
	// block looks course-like the same window is scanned for the first
	// inline link.
	LookaheadWindow = 10

	// DefaultCategory is the category assigned before any heading is seen.
	DefaultCategory = "General"

	// MaxTableNameHyphens is the separator-row heuristic: a first table
	// cell with more hyphens than this is a divider, not a course name.
	MaxTableNameHyphens = 3
)

// Fallback thresholds
const (
	// DefaultSyncMinCourses is the per-curriculum extraction floor below
	// which the reference catalog supplements the result.
	DefaultSyncMinCourses = 5

	// DefaultSyncMinTotalCourses is the whole-run floor: when an entire
	// sync yields fewer records than this, every curriculum below its
	// reference size is topped up.
	DefaultSyncMinTotalCourses = 30
)

// Persistence constants
const (
	// InsertBatchSize is how many course rows are written per batch during
	// catalog replacement.
	InsertBatchSize = 100
)
