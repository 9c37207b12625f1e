// Package search provides BM25 keyword search over the course catalog.
// The index is rebuilt after every sync and queried by the search module;
// when it is unavailable the service falls back to a plain SQL search.
package search

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/crawlab-team/bm25"

	"github.com/garyellow/ossu-tracker-go/internal/logger"
	"github.com/garyellow/ossu-tracker-go/internal/storage"
)

// Result is a scored search hit. Confidence is derived from BM25 rank
// position, not semantic similarity.
type Result struct {
	CourseID   string  `json:"course_id"`
	Name       string  `json:"name"`
	Curriculum string  `json:"curriculum"`
	Category   string  `json:"category"`
	Score      float64 `json:"score"`
	Rank       int     `json:"rank"`
	Confidence float32 `json:"confidence"`
}

// courseSummary stores the fields a search hit reports, captured at
// index-build time.
type courseSummary struct {
	ID         string
	Name       string
	Curriculum string
	Category   string
}

// Index provides keyword-based course search using the BM25 algorithm.
// One document per course, built from name, category, description, and
// topic tags.
type Index struct {
	bm25Okapi   *bm25.BM25Okapi
	corpus      []string        // document text per course
	summaries   []courseSummary // docID -> reported fields
	logger      *logger.Logger
	mu          sync.RWMutex
	initialized bool
}

// NewIndex creates an empty BM25 index.
func NewIndex(log *logger.Logger) *Index {
	return &Index{logger: log}
}

// Rebuild replaces the index contents with the given courses. BM25
// needs the whole corpus for IDF calculation, so updates are always
// full rebuilds.
func (idx *Index) Rebuild(courses []*storage.Course) error {
	if idx == nil {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.corpus = nil
	idx.summaries = nil
	idx.bm25Okapi = nil

	for _, course := range courses {
		doc := courseDocument(course)
		if strings.TrimSpace(doc) == "" {
			continue
		}
		idx.corpus = append(idx.corpus, doc)
		idx.summaries = append(idx.summaries, courseSummary{
			ID:         course.ID,
			Name:       course.Name,
			Curriculum: course.Curriculum,
			Category:   course.Category,
		})
	}

	if len(idx.corpus) == 0 {
		idx.initialized = true
		return nil
	}

	// k1=1.5, b=0.75 are standard BM25 parameters
	bm25Okapi, err := bm25.NewBM25Okapi(idx.corpus, tokenize, 1.5, 0.75, nil)
	if err != nil {
		return fmt.Errorf("failed to create BM25 index: %w", err)
	}
	idx.bm25Okapi = bm25Okapi
	idx.initialized = true

	idx.logger.WithField("docs", len(idx.corpus)).Info("Search index rebuilt")
	return nil
}

// Search returns courses matching the query, sorted by BM25 score
// descending. A nil result with nil error means the index cannot serve
// the query (not initialized, or nothing matched).
func (idx *Index) Search(query string, topN int) ([]Result, error) {
	if idx == nil {
		return nil, nil
	}

	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !idx.initialized || idx.bm25Okapi == nil {
		return nil, nil
	}

	tokenizedQuery := tokenize(query)
	if len(tokenizedQuery) == 0 {
		return nil, nil
	}

	scores, err := idx.bm25Okapi.GetScores(tokenizedQuery)
	if err != nil {
		return nil, fmt.Errorf("BM25 scoring failed: %w", err)
	}

	type scoredDoc struct {
		docID int
		score float64
	}
	var scoredDocs []scoredDoc
	for docID, score := range scores {
		if score > 0 {
			scoredDocs = append(scoredDocs, scoredDoc{docID: docID, score: score})
		}
	}

	sort.Slice(scoredDocs, func(i, j int) bool {
		return scoredDocs[i].score > scoredDocs[j].score
	})

	if topN > 0 && len(scoredDocs) > topN {
		scoredDocs = scoredDocs[:topN]
	}

	results := make([]Result, 0, len(scoredDocs))
	for rank, sd := range scoredDocs {
		summary := idx.summaries[sd.docID]
		results = append(results, Result{
			CourseID:   summary.ID,
			Name:       summary.Name,
			Curriculum: summary.Curriculum,
			Category:   summary.Category,
			Score:      sd.score,
			Rank:       rank + 1,
			Confidence: computeRankConfidence(rank + 1),
		})
	}

	return results, nil
}

// computeRankConfidence calculates confidence score from BM25 rank.
// BM25 scores are unbounded and query-dependent, so rank position is
// used as a proxy.
//
// Formula: 1 / (1 + 0.05 * rank)
//   - rank 1 → 0.95
//   - rank 5 → 0.80
//   - rank 10 → 0.67
//   - rank 20 → 0.50
func computeRankConfidence(rank int) float32 {
	if rank <= 0 {
		return 0
	}
	return float32(1.0 / (1.0 + 0.05*float64(rank)))
}

// IsEnabled returns true if the index has been built and can score queries.
func (idx *Index) IsEnabled() bool {
	if idx == nil {
		return false
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.initialized && idx.bm25Okapi != nil
}

// Count returns the number of indexed courses.
func (idx *Index) Count() int {
	if idx == nil {
		return 0
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.corpus)
}

// courseDocument builds the indexable text for one course.
func courseDocument(c *storage.Course) string {
	parts := make([]string, 0, 3+len(c.Topics))
	parts = append(parts, c.Name, c.Category, c.Description)
	parts = append(parts, c.Topics...)
	return strings.Join(parts, " ")
}

// tokenize lowercases the text and splits it into alphanumeric words.
// The catalog is English markdown, so a plain word tokenizer is enough.
func tokenize(text string) []string {
	text = strings.ToLower(text)

	var tokens []string
	var currentWord strings.Builder
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			currentWord.WriteRune(r)
			continue
		}
		if currentWord.Len() > 0 {
			tokens = append(tokens, currentWord.String())
			currentWord.Reset()
		}
	}
	if currentWord.Len() > 0 {
		tokens = append(tokens, currentWord.String())
	}

	return tokens
}
