package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/garyellow/ossu-tracker-go/internal/config"
)

// categoryBlocklist lists headings that are document structure, not course
// categories. Matched case-insensitively against the trimmed heading text.
var categoryBlocklist = []string{"ossu", "faq", "about", "table of contents"}

var (
	headingMarkRegex = regexp.MustCompile(`^#+\s*`)
	boldLineRegex    = regexp.MustCompile(`^\*\*([^*]+)\*\*$`)
)

// CategoryTracker threads the running category through one document scan.
// Heading lines and whole-line bold text update it; every other line is
// tagged with the category in effect when it is reached, so a change never
// applies retroactively.
type CategoryTracker struct {
	current string
	blocked map[string]struct{}
}

// NewCategoryTracker creates a tracker starting at the default category.
// Extra blocked names (the document's own titles) are matched the same way
// as the built-in blocklist.
func NewCategoryTracker(extraBlocked ...string) *CategoryTracker {
	blocked := make(map[string]struct{}, len(categoryBlocklist)+len(extraBlocked))
	for _, name := range categoryBlocklist {
		blocked[name] = struct{}{}
	}
	for _, name := range extraBlocked {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			blocked[name] = struct{}{}
		}
	}

	return &CategoryTracker{
		current: config.DefaultCategory,
		blocked: blocked,
	}
}

// Current returns the category in effect.
func (t *CategoryTracker) Current() string {
	return t.current
}

// Observe inspects one line and reports whether it is a category line
// (heading or whole-line bold). Category lines update the running category
// unless blocklisted or too short; either way they never yield a course
// record themselves.
func (t *CategoryTracker) Observe(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}

	if strings.HasPrefix(trimmed, "#") {
		heading := strings.TrimSpace(headingMarkRegex.ReplaceAllString(trimmed, ""))
		t.maybeUpdate(heading)
		return true
	}

	if m := boldLineRegex.FindStringSubmatch(trimmed); m != nil {
		inner := strings.TrimSpace(m[1])
		// Bold-wrapped links are course entries, not category headings.
		if inlineLinkRegex.MatchString(inner) {
			return false
		}
		t.maybeUpdate(inner)
		return true
	}

	return false
}

func (t *CategoryTracker) maybeUpdate(name string) {
	if utf8.RuneCountInString(name) < config.MinHeadingLength {
		return
	}
	if _, ok := t.blocked[strings.ToLower(name)]; ok {
		return
	}
	t.current = name
}
