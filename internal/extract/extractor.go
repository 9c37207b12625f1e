package extract

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/garyellow/ossu-tracker-go/internal/config"
	apperrors "github.com/garyellow/ossu-tracker-go/internal/errors"
	"github.com/garyellow/ossu-tracker-go/internal/stringutil"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Extractor applies the strategy chain to individual lines of one
// curriculum document. It carries no scan state; the category comes in
// per call from the tracker.
type Extractor struct {
	curriculum string
	title      string
}

// NewExtractor creates an extractor for a curriculum. title is the human
// name used in description templates; when empty it is derived from the
// curriculum slug.
func NewExtractor(curriculum, title string) *Extractor {
	if title == "" {
		title = titleFromSlug(curriculum)
	}
	return &Extractor{
		curriculum: curriculum,
		title:      title,
	}
}

// titleFromSlug turns a registry slug into a display title
// ("computer-science" becomes "Computer Science").
func titleFromSlug(slug string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(slug, "-", " "))
}

// ExtractAt attempts extraction at line index i. It returns the candidate
// and the label of the strategy that matched. A panic while parsing one
// line is converted into a LineParseError so the scan of the remaining
// document continues.
func (e *Extractor) ExtractAt(lines []string, i int, category string) (cand *Candidate, strategy string, err error) {
	defer func() {
		if r := recover(); r != nil {
			cand = nil
			strategy = ""
			err = apperrors.NewLineParseError(i+1, lines[i], fmt.Errorf("%v", r))
		}
	}()

	cand, strategy = e.extractLine(lines[i], category)
	if strategy != "" {
		return cand, strategy, nil
	}

	// No single-line shape matched. If the surrounding block reads like a
	// course section, a bounded forward scan may find the course link on a
	// nearby line.
	if courseLikeBlock(lines, i) {
		if cand := e.lookahead(lines, i, category); cand != nil {
			return cand, StrategyMultiline, nil
		}
	}

	return nil, "", nil
}

// extractLine runs the single-line strategy chain. The returned label is
// non-empty whenever a strategy's shape matched the line, even if that
// strategy then produced no candidate: a matched shape never falls through
// to later strategies.
func (e *Extractor) extractLine(line, category string) (*Candidate, string) {
	text := strings.TrimSpace(line)
	if e.skipLine(text) {
		return nil, ""
	}

	switch {
	case strings.Count(text, "|") >= 2:
		return e.extractTableRow(text, category), StrategyTable
	case inlineLinkRegex.MatchString(text):
		return e.extractLinked(text, category), StrategyInlineLink
	case bulletRegex.MatchString(text):
		return e.extractListItem(bulletRegex, text, category), StrategyBullet
	case numberedRegex.MatchString(text):
		return e.extractListItem(numberedRegex, text, category), StrategyNumbered
	case strings.HasPrefix(text, ">"):
		cand, _ := e.extractLine(blockquoteRegex.ReplaceAllString(text, ""), category)
		return cand, StrategyBlockquote
	}

	return nil, ""
}

// skipLine filters lines that cannot carry a course: too short, headings,
// separator rows, bare column headers.
func (e *Extractor) skipLine(text string) bool {
	if utf8.RuneCountInString(text) < config.MinCourseLineLength {
		return true
	}

	lower := strings.ToLower(text)
	for _, re := range skipLineRegexes {
		if re.MatchString(lower) {
			return true
		}
	}
	return false
}

// finish cleans and validates the extracted fields and builds the
// candidate. Duration and effort fall back to numeric-range patterns found
// in the source text when the strategy supplied none. Returns nil when the
// cleaned name is too short to be a course.
func (e *Extractor) finish(name, url, category, duration, effort, prerequisites, sourceText string) *Candidate {
	name = stringutil.NormalizeWhitespace(stripEmphasis(name))
	if utf8.RuneCountInString(name) < config.MinCourseNameLength {
		return nil
	}

	// The week pattern cannot fire inside an "N hours/week" phrase: it
	// requires digits directly before the word.
	if duration == "" {
		duration = durationWeeksRegex.FindString(sourceText)
	}
	if effort == "" {
		effort = effortHoursRegex.FindString(sourceText)
	}

	return &Candidate{
		Name:          name,
		URL:           url,
		Curriculum:    e.curriculum,
		Category:      category,
		Duration:      strings.TrimSpace(duration),
		Effort:        strings.TrimSpace(effort),
		Prerequisites: normalizePrerequisites(prerequisites),
		Description:   fmt.Sprintf("Part of %s curriculum - %s", e.title, category),
		Topics:        []string{},
	}
}

// normalizePrerequisites maps blank and placeholder values to the "none"
// sentinel so the field is never empty.
func normalizePrerequisites(s string) string {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "-", "none", "n/a":
		return "none"
	}
	return s
}

// ParseEffortHours parses an effort string like "6-10 hours/week" into its
// weekly hour bounds. Single-value efforts report the same minimum and
// maximum.
func ParseEffortHours(effort string) (minHours, maxHours int, ok bool) {
	m := effortHoursRegex.FindStringSubmatch(effort)
	if m == nil {
		return 0, 0, false
	}

	minHours, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, 0, false
	}

	maxHours = minHours
	if m[2] != "" {
		if parsed, err := strconv.Atoi(m[2]); err == nil {
			maxHours = parsed
		}
	}
	return minHours, maxHours, true
}

// ParseDurationWeeks parses a duration string like "13 weeks" into a week
// count.
func ParseDurationWeeks(duration string) (weeks int, ok bool) {
	m := durationWeeksRegex.FindStringSubmatch(duration)
	if m == nil {
		return 0, false
	}

	weeks, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return weeks, true
}
