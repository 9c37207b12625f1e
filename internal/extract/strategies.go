package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/garyellow/ossu-tracker-go/internal/config"
)

// Regex patterns for line extraction
var (
	inlineLinkRegex = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	bulletRegex     = regexp.MustCompile(`^\s*[-*+]\s+`)
	numberedRegex   = regexp.MustCompile(`^\s*\d+\.\s+`)
	blockquoteRegex = regexp.MustCompile(`^\s*>\s?`)

	boldMarkRegex   = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	italicMarkRegex = regexp.MustCompile(`\*([^*]+)\*`)
	codeMarkRegex   = regexp.MustCompile("`([^`]+)`")

	effortHoursRegex   = regexp.MustCompile(`(?i)(\d+)\s*(?:-\s*(\d+)\s*)?hours?/week`)
	durationWeeksRegex = regexp.MustCompile(`(?i)(\d+)\s*weeks?`)
)

// skipLineRegexes match lines that are document structure rather than
// course content: headings, table separator rows, bare column headers.
// Applied to the lowercased, trimmed line.
var skipLineRegexes = []*regexp.Regexp{
	regexp.MustCompile(`^#+\s*`),
	regexp.MustCompile(`^[|\-:\s]+$`),
	regexp.MustCompile(`^course\s*$`),
	regexp.MustCompile(`^courses\s*$`),
	regexp.MustCompile(`^name\s*$`),
	regexp.MustCompile(`^duration\s*$`),
	regexp.MustCompile(`^effort\s*$`),
	regexp.MustCompile(`^prerequisite`),
}

// placeholderNames are labels that survive markup stripping but are column
// headers, never course names.
var placeholderNames = map[string]struct{}{
	"course":   {},
	"courses":  {},
	"name":     {},
	"duration": {},
	"effort":   {},
}

// extractTableRow parses a markdown table row. The first cell names the
// course; cells two through four map to duration, effort and
// prerequisites. Header rows, separator rows and fragment cells yield
// nothing.
func (e *Extractor) extractTableRow(text, category string) *Candidate {
	cells := splitTableRow(text)

	nonEmpty := 0
	for _, cell := range cells {
		if cell != "" {
			nonEmpty++
		}
	}
	if nonEmpty < 2 {
		return nil
	}

	first := cells[0]
	if isHeaderCell(first) {
		return nil
	}
	if utf8.RuneCountInString(first) < config.MinTableNameLength {
		return nil
	}
	if strings.Count(first, "-") > config.MaxTableNameHyphens {
		return nil
	}

	name, url := nameFromCell(first)

	var duration, effort, prerequisites string
	if len(cells) > 1 {
		duration = cells[1]
	}
	if len(cells) > 2 {
		effort = cells[2]
	}
	if len(cells) > 3 {
		prerequisites = cells[3]
	}

	return e.finish(name, url, category, duration, effort, prerequisites, text)
}

// splitTableRow splits on the column separator, trims every cell, and
// discards empty edge cells. Interior empty cells stay so positions hold.
func splitTableRow(text string) []string {
	cells := strings.Split(text, "|")
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}

	start, end := 0, len(cells)
	for start < end && cells[start] == "" {
		start++
	}
	for end > start && cells[end-1] == "" {
		end--
	}

	return cells[start:end]
}

// isHeaderCell reports whether a first cell marks a header or separator
// row rather than a course row.
func isHeaderCell(cell string) bool {
	lower := strings.ToLower(cell)
	if _, ok := placeholderNames[lower]; ok {
		return true
	}
	if strings.HasPrefix(lower, "prerequisite") {
		return true
	}
	if strings.Trim(lower, "-: ") == "" {
		return true
	}
	return false
}

// nameFromCell extracts the course name from a table cell, preferring the
// text and target of an inline link when the cell carries one.
func nameFromCell(cell string) (name, url string) {
	if m := inlineLinkRegex.FindStringSubmatch(cell); m != nil {
		return m[1], strings.TrimSpace(m[2])
	}
	return cell, ""
}

// extractLinked extracts from the first inline link on the line. Emphasis
// wrappers around the link do not matter; the bracketed text names the
// course.
func (e *Extractor) extractLinked(text, category string) *Candidate {
	m := inlineLinkRegex.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return e.finish(m[1], strings.TrimSpace(m[2]), category, "", "", "", text)
}

// extractListItem strips the bullet or numbering marker and treats the
// remainder as a course name. Bare column labels are rejected.
func (e *Extractor) extractListItem(marker *regexp.Regexp, text, category string) *Candidate {
	rest := strings.TrimSpace(marker.ReplaceAllString(text, ""))

	cleaned := stripEmphasis(rest)
	if _, ok := placeholderNames[strings.ToLower(cleaned)]; ok {
		return nil
	}

	return e.finish(cleaned, "", category, "", "", "", text)
}

// stripEmphasis removes bold, italic and code markers, keeping the inner
// text. Bold runs first so a ** pair is not consumed as two italics.
func stripEmphasis(s string) string {
	s = boldMarkRegex.ReplaceAllString(s, "$1")
	s = italicMarkRegex.ReplaceAllString(s, "$1")
	s = codeMarkRegex.ReplaceAllString(s, "$1")
	return strings.TrimSpace(s)
}

// courseKeywords gate the multi-line strategy: a window containing none of
// these is prose, not a course block.
var courseKeywords = []string{
	"course", "class", "learn", "study", "edx", "coursera", "mit", "university",
	"week", "hour", "duration", "effort", "prerequisite", "introduction",
	"specialization", "program", "curriculum", "subject",
}

// courseLikeBlock reports whether the window starting at start reads like
// a course block by keyword density.
func courseLikeBlock(lines []string, start int) bool {
	end := min(start+config.LookaheadWindow, len(lines))
	window := strings.ToLower(strings.Join(lines[start:end], " "))

	for _, keyword := range courseKeywords {
		if strings.Contains(window, keyword) {
			return true
		}
	}
	return false
}

// lookahead scans forward from start for the first line carrying an inline
// link and extracts from that line. The first link line decides the
// outcome either way; later link lines are that line's own business when
// the scan reaches it.
func (e *Extractor) lookahead(lines []string, start int, category string) *Candidate {
	end := min(start+config.LookaheadWindow, len(lines))

	for j := start; j < end; j++ {
		if !inlineLinkRegex.MatchString(lines[j]) {
			continue
		}
		cand, _ := e.extractLine(lines[j], category)
		return cand
	}
	return nil
}
