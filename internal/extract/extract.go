// Package extract turns loosely structured curriculum markdown into
// deduplicated course records. Source documents mix tables, bullet lists,
// numbered lists, blockquotes, bold pseudo-headings and HTML-embedded
// links, so extraction is line-oriented and best-effort: a malformed line
// yields no record, never an aborted scan.
package extract

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/garyellow/ossu-tracker-go/internal/config"
	apperrors "github.com/garyellow/ossu-tracker-go/internal/errors"
)

// Strategy labels in priority order. Each scanned line is handled by the
// first strategy whose shape matches; a matched shape that fails to parse
// does not fall through to later strategies.
const (
	StrategyTable      = "table"
	StrategyInlineLink = "inline_link"
	StrategyBullet     = "bullet"
	StrategyNumbered   = "numbered"
	StrategyBlockquote = "blockquote"
	StrategyMultiline  = "multiline"
)

// Candidate is a provisionally extracted course record. Candidates are
// owned by the pipeline run that produced them and handed to the caller by
// value; the pipeline keeps no reference after returning.
type Candidate struct {
	Name          string
	URL           string
	Curriculum    string
	Category      string
	Duration      string
	Effort        string
	Prerequisites string
	Description   string
	Topics        []string
}

// Validate reports whether the candidate satisfies the record schema.
// Invalid candidates are skipped by callers, never persisted.
func (c *Candidate) Validate() error {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return apperrors.NewRecordValidationError(c.Name, "empty name")
	}
	if utf8.RuneCountInString(name) < config.MinCourseNameLength {
		return apperrors.NewRecordValidationError(c.Name,
			fmt.Sprintf("name shorter than %d characters", config.MinCourseNameLength))
	}
	if c.Curriculum == "" {
		return apperrors.NewRecordValidationError(c.Name, "empty curriculum")
	}
	if strings.TrimSpace(c.Category) == "" {
		return apperrors.NewRecordValidationError(c.Name, "empty category")
	}
	if strings.TrimSpace(c.Prerequisites) == "" {
		return apperrors.NewRecordValidationError(c.Name, "empty prerequisites")
	}
	return nil
}

// Options holds the tunable thresholds of a pipeline run. The duplicate
// heuristic drifted across earlier revisions of this logic; these values
// are the single place to adjust it.
type Options struct {
	// SimilarityThreshold is the character-level similarity ratio above
	// which two names are duplicates.
	SimilarityThreshold float64

	// ContainmentMinLen is the length both names must exceed for the
	// case-insensitive substring rule to apply.
	ContainmentMinLen int

	// MinPerCurriculum is the extraction floor below which a curriculum's
	// result is supplemented from the reference catalog.
	MinPerCurriculum int

	// MinAggregate is the whole-run floor checked across all curricula.
	MinAggregate int
}

// DefaultOptions returns the thresholds used in production.
func DefaultOptions() Options {
	return Options{
		SimilarityThreshold: config.DefaultDedupeSimilarity,
		ContainmentMinLen:   config.DefaultDedupeContainmentMinLen,
		MinPerCurriculum:    config.DefaultSyncMinCourses,
		MinAggregate:        config.DefaultSyncMinTotalCourses,
	}
}

// Stats summarizes one extraction run.
type Stats struct {
	LinesScanned      int
	Extracted         int
	DuplicatesDropped int
	LineFailures      int
	FallbackAdded     int
	FallbackUsed      bool
	Categories        int
	StrategyHits      map[string]int
}

// Result is the outcome of one curriculum extraction run. FetchFailed
// marks results built entirely from the reference catalog because every
// source location failed.
type Result struct {
	Curriculum  string
	Candidates  []Candidate
	Stats       Stats
	FetchFailed bool
}
