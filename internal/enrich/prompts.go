// Tagging prompt and output contract.
// The contract is strict: the model answers with a bare JSON array of
// 3-5 short lowercase tags. parseTopics rejects anything else so a
// rambling model never pollutes the catalog.
package enrich

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const topicSystemPrompt = `You label self-study courses with topic tags.

Rules:
- Answer with ONLY a JSON array of 3 to 5 tags, nothing else.
- Tags are lowercase English, 1-3 words each.
- Tags name what the course teaches, never the provider, format, or difficulty.

Examples:
Course: "Introduction to Computer Science and Programming using Python" (Intro CS)
["python", "programming basics", "computational thinking"]

Course: "Divide and Conquer, Sorting and Searching, and Randomized Algorithms" (Core Theory)
["algorithms", "sorting", "divide and conquer", "randomized algorithms"]`

// topicPrompt builds the tagging prompt for one course.
func topicPrompt(course CourseInfo) string {
	var sb strings.Builder
	sb.WriteString(topicSystemPrompt)
	sb.WriteString("\n\nCourse: ")
	sb.WriteString(strconv.Quote(course.Name))
	if course.Category != "" {
		fmt.Fprintf(&sb, " (%s)", course.Category)
	}
	if course.Curriculum != "" {
		fmt.Fprintf(&sb, " from the %s curriculum", course.Curriculum)
	}
	if course.Description != "" {
		sb.WriteString("\nAbout: ")
		sb.WriteString(course.Description)
	}
	sb.WriteString("\n")
	return sb.String()
}

// parseTopics validates model output against the tagging contract.
// Code fences and surrounding prose are tolerated as long as a JSON
// array is present; tags are lowercased, deduplicated, and capped at
// MaxTopics.
func parseTopics(raw string) ([]string, error) {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start == -1 || end <= start {
		return nil, errors.New("no JSON array in model output")
	}

	var tags []string
	if err := json.Unmarshal([]byte(raw[start:end+1]), &tags); err != nil {
		return nil, fmt.Errorf("invalid topics JSON: %w", err)
	}

	cleaned := make([]string, 0, MaxTopics)
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] || len(tag) > maxTopicLength {
			continue
		}
		seen[tag] = true
		cleaned = append(cleaned, tag)
		if len(cleaned) == MaxTopics {
			break
		}
	}
	if len(cleaned) == 0 {
		return nil, errors.New("model returned no usable topics")
	}
	return cleaned, nil
}
