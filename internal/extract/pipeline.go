package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyellow/ossu-tracker-go/internal/config"
	"github.com/garyellow/ossu-tracker-go/internal/data"
	"github.com/garyellow/ossu-tracker-go/internal/logger"
	"github.com/garyellow/ossu-tracker-go/internal/metrics"
)

// DocumentFetcher retrieves a curriculum document from its ordered source
// locations.
type DocumentFetcher interface {
	Fetch(ctx context.Context, name string, locations []string) (string, error)
}

// ReferenceFunc supplies the fallback catalog for a curriculum. Injected
// so the pipeline can run against synthetic or empty reference sets.
type ReferenceFunc func(curriculum string) ([]data.ReferenceCourse, error)

// Pipeline runs the full extraction flow for one curriculum: fetch,
// normalize, merge wrapped lines, per-line classify and extract, dedupe,
// fallback merge. All scan state is local to one Run call, so runs for
// different curricula may proceed concurrently.
type Pipeline struct {
	fetcher    DocumentFetcher
	references ReferenceFunc
	opts       Options
	log        *logger.Logger
	metrics    *metrics.Metrics
}

// NewPipeline creates a pipeline. A nil references falls back to the
// embedded reference catalog.
func NewPipeline(fetcher DocumentFetcher, references ReferenceFunc, opts Options, log *logger.Logger, m *metrics.Metrics) *Pipeline {
	if references == nil {
		references = data.ReferenceCourses
	}
	return &Pipeline{
		fetcher:    fetcher,
		references: references,
		opts:       opts,
		log:        log.WithModule("extract"),
		metrics:    m,
	}
}

// Run executes the pipeline for one curriculum. A fetch failure is
// recovered locally by building the result from the reference catalog;
// the only error Run returns is context cancellation.
func (p *Pipeline) Run(ctx context.Context, cur data.CurriculumInfo) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context canceled before extraction: %w", err)
	}

	result := &Result{
		Curriculum: cur.Name,
		Stats:      Stats{StrategyHits: make(map[string]int)},
	}

	text, err := p.fetcher.Fetch(ctx, cur.Name, cur.SourceURLs())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("context canceled during fetch: %w", ctxErr)
		}
		p.log.WithError(err).Warn("All source locations failed, using reference catalog",
			"curriculum", cur.Name)
		result.FetchFailed = true
		p.mergeFallback(result, cur, "fetch_failed")
		return result, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context canceled before scan: %w", err)
	}

	result.Candidates, result.Stats = p.scan(text, cur)

	if len(result.Candidates) < p.opts.MinPerCurriculum {
		p.mergeFallback(result, cur, "below_min")
	}

	p.log.Info("Extraction finished",
		"curriculum", cur.Name,
		"extracted", result.Stats.Extracted,
		"duplicates_dropped", result.Stats.DuplicatesDropped,
		"line_failures", result.Stats.LineFailures,
		"fallback_added", result.Stats.FallbackAdded,
		"categories", result.Stats.Categories,
		"total", len(result.Candidates))

	return result, nil
}

// scan folds the classifier, extractor and dedup scope over the
// preprocessed document lines.
func (p *Pipeline) scan(text string, cur data.CurriculumInfo) ([]Candidate, Stats) {
	lines := MergeWrappedLines(strings.Split(Normalize(text), "\n"))
	tracker := NewCategoryTracker(cur.DisplayName)
	extractor := NewExtractor(cur.Name, displayTitle(cur))
	dedupe := NewDedupeState(p.opts.SimilarityThreshold, p.opts.ContainmentMinLen)

	stats := Stats{StrategyHits: make(map[string]int)}
	categories := make(map[string]struct{})
	candidates := make([]Candidate, 0, 64)

	for i, line := range lines {
		stats.LinesScanned++

		if tracker.Observe(line) {
			continue
		}

		cand, strategy, err := extractor.ExtractAt(lines, i, tracker.Current())
		if err != nil {
			stats.LineFailures++
			p.metrics.RecordExtractionError(cur.Name, "line_parse")
			p.log.WithError(err).Debug("Line extraction failed",
				"curriculum", cur.Name, "line", i+1)
			continue
		}
		if cand == nil {
			continue
		}

		if dedupe.IsDuplicate(cand.Name) {
			stats.DuplicatesDropped++
			p.metrics.RecordDuplicateDropped(cur.Name)
			continue
		}
		dedupe.Accept(cand.Name)

		candidates = append(candidates, *cand)
		stats.Extracted++
		stats.StrategyHits[strategy]++
		categories[cand.Category] = struct{}{}
		p.metrics.RecordExtractedCourse(cur.Name, strategy)
	}

	stats.Categories = len(categories)
	return candidates, stats
}

// mergeFallback supplements the result from the reference catalog,
// recording why the merge fired.
func (p *Pipeline) mergeFallback(result *Result, cur data.CurriculumInfo, trigger string) {
	refs, err := p.references(cur.Name)
	if err != nil {
		p.log.WithError(err).Error("Cannot load reference catalog", "curriculum", cur.Name)
		return
	}
	if len(refs) == 0 {
		return
	}

	merged, added := MergeFallback(result.Candidates, refs, cur, p.opts)
	result.Candidates = merged
	result.Stats.FallbackAdded += added
	if added > 0 {
		result.Stats.FallbackUsed = true
		p.metrics.RecordFallbackMerge(cur.Name, trigger)
		p.log.Info("Merged reference catalog entries",
			"curriculum", cur.Name, "added", added, "trigger", trigger)
	}
}

// MergeFallback appends reference entries whose names do not duplicate an
// already accepted name, under the same duplicate rule the scan used.
// Extracted records are never overwritten. Returns the merged slice and
// how many entries were added. Exported so whole-run reconciliation can
// top up curricula after all pipelines finish.
func MergeFallback(candidates []Candidate, refs []data.ReferenceCourse, cur data.CurriculumInfo, opts Options) ([]Candidate, int) {
	dedupe := NewDedupeState(opts.SimilarityThreshold, opts.ContainmentMinLen)
	for i := range candidates {
		dedupe.Accept(candidates[i].Name)
	}

	added := 0
	for _, ref := range refs {
		if dedupe.IsDuplicate(ref.Name) {
			continue
		}
		dedupe.Accept(ref.Name)
		candidates = append(candidates, referenceCandidate(ref, cur))
		added++
	}

	return candidates, added
}

// referenceCandidate converts a reference catalog entry into a candidate
// carrying the same derived fields extraction would produce.
func referenceCandidate(ref data.ReferenceCourse, cur data.CurriculumInfo) Candidate {
	category := strings.TrimSpace(ref.Category)
	if category == "" {
		category = config.DefaultCategory
	}

	return Candidate{
		Name:          ref.Name,
		URL:           ref.URL,
		Curriculum:    cur.Name,
		Category:      category,
		Duration:      ref.Duration,
		Effort:        ref.Effort,
		Prerequisites: normalizePrerequisites(ref.Prerequisites),
		Description:   fmt.Sprintf("Part of %s curriculum - %s", displayTitle(cur), category),
		Topics:        []string{},
	}
}

// displayTitle returns the human title used in description templates.
func displayTitle(cur data.CurriculumInfo) string {
	if cur.DisplayName != "" {
		return cur.DisplayName
	}
	return titleFromSlug(cur.Name)
}
