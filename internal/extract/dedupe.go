package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/garyellow/ossu-tracker-go/internal/stringutil"
)

// DedupeState tracks accepted course names for one pipeline run. First
// seen wins: once a name is accepted, later near-duplicates are dropped,
// never merged.
type DedupeState struct {
	similarity        float64
	containmentMinLen int
	exact             map[string]struct{}
	accepted          []string
}

// NewDedupeState creates an empty dedup scope with the given thresholds.
func NewDedupeState(similarity float64, containmentMinLen int) *DedupeState {
	return &DedupeState{
		similarity:        similarity,
		containmentMinLen: containmentMinLen,
		exact:             make(map[string]struct{}),
	}
}

// IsDuplicate reports whether name near-matches an accepted name: the
// character-level similarity ratio exceeds the threshold, or both names
// are long enough and one contains the other case-insensitively. The
// containment rule is what catches "Intro to X" against
// "Introduction to X".
func (d *DedupeState) IsDuplicate(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	if _, ok := d.exact[lower]; ok {
		return true
	}

	length := utf8.RuneCountInString(lower)
	for _, seen := range d.accepted {
		if stringutil.Similarity(lower, seen) > d.similarity {
			return true
		}
		if length > d.containmentMinLen && utf8.RuneCountInString(seen) > d.containmentMinLen &&
			(strings.Contains(lower, seen) || strings.Contains(seen, lower)) {
			return true
		}
	}
	return false
}

// Accept records name as seen. Callers check IsDuplicate first.
func (d *DedupeState) Accept(name string) {
	lower := strings.ToLower(strings.TrimSpace(name))
	if _, ok := d.exact[lower]; ok {
		return
	}
	d.exact[lower] = struct{}{}
	d.accepted = append(d.accepted, lower)
}

// Len returns how many distinct names have been accepted.
func (d *DedupeState) Len() int {
	return len(d.accepted)
}
