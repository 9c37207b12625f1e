// Package stringutil provides common string manipulation utilities.
package stringutil

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// ContainsFold reports whether substr is within s, ignoring case.
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// NormalizeWhitespace collapses runs of whitespace into single spaces and
// trims the result. Tabs and newlines count as whitespace.
//
// Example:
//
//	NormalizeWhitespace("  Intro   to\tCS  ") returns "Intro to CS"
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Similarity returns the character-level sequence similarity of two strings
// in [0, 1], ignoring case. It uses difflib's SequenceMatcher ratio, so
// "Introduction to CS" and "introduction to cs!" score near 1.0 while
// unrelated names score near 0.
func Similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}
	left := strings.Split(strings.ToLower(a), "")
	right := strings.Split(strings.ToLower(b), "")
	return difflib.NewMatcher(left, right).Ratio()
}
