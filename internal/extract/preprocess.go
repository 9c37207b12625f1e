package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/garyellow/ossu-tracker-go/internal/stringutil"
	"golang.org/x/text/unicode/norm"
)

// Regex patterns for document normalization
var (
	anchorTagRegex = regexp.MustCompile(`(?is)<a\s[^>]*>.*?</a>`)
	spaceLineRegex = regexp.MustCompile(`(?m)^[ \t]+$`)
	blankRunRegex  = regexp.MustCompile(`\n{4,}`)
)

// Normalize prepares raw document text for line scanning. HTML anchor tags
// collapse into markdown link notation so the extractor understands a
// single link syntax, line endings become LF, runs of three or more blank
// lines collapse to one, and the text is NFC-normalized.
func Normalize(raw string) string {
	text := norm.NFC.String(raw)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = rewriteAnchors(text)
	text = spaceLineRegex.ReplaceAllString(text, "")
	text = blankRunRegex.ReplaceAllString(text, "\n\n")
	return text
}

// rewriteAnchors replaces each <a href="U">T</a> fragment with [T](U).
// Fragments without an href, with empty text, or that fail to parse pass
// through unchanged.
func rewriteAnchors(text string) string {
	if !stringutil.ContainsFold(text, "<a") {
		return text
	}

	return anchorTagRegex.ReplaceAllStringFunc(text, func(fragment string) string {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
		if err != nil {
			return fragment
		}

		anchor := doc.Find("a").First()
		href, ok := anchor.Attr("href")
		label := stringutil.NormalizeWhitespace(anchor.Text())
		if !ok || href == "" || label == "" {
			return fragment
		}

		return "[" + label + "](" + href + ")"
	})
}

// newItemRegex recognizes lines that begin a new logical item: bullet
// markers, digit-dot numbering, or markdown headings.
var newItemRegex = regexp.MustCompile(`^\s*(?:[-*+]\s+|\d+\.\s+|#)`)

// MergeWrappedLines reconstructs list items that wrapped across physical
// lines. A marker line opens a buffer; following non-empty, non-marker
// lines join it space-separated; blank lines flush. Lines arriving outside
// any buffer pass through unchanged, so each output element is one
// semantic item.
func MergeWrappedLines(lines []string) []string {
	merged := make([]string, 0, len(lines))
	var buffer string

	flush := func() {
		if buffer != "" {
			merged = append(merged, buffer)
			buffer = ""
		}
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "":
			flush()
			merged = append(merged, line)
		case newItemRegex.MatchString(line):
			flush()
			buffer = strings.TrimRight(line, " \t")
		case buffer != "":
			buffer += " " + trimmed
		default:
			merged = append(merged, line)
		}
	}
	flush()

	return merged
}
