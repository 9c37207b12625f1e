// Package warmup bootstraps the catalog on startup: restore the latest
// snapshot from object storage, replay pending progress deltas, then
// refresh stale curricula from upstream before the instance reports ready.
package warmup

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/garyellow/ossu-tracker-go/internal/data"
	"github.com/garyellow/ossu-tracker-go/internal/delta"
	"github.com/garyellow/ossu-tracker-go/internal/logger"
	"github.com/garyellow/ossu-tracker-go/internal/metrics"
	"github.com/garyellow/ossu-tracker-go/internal/snapshot"
	"github.com/garyellow/ossu-tracker-go/internal/storage"
	syncsvc "github.com/garyellow/ossu-tracker-go/internal/sync"
)

// Restorer loads the newest catalog snapshot into the database.
type Restorer interface {
	Restore(ctx context.Context, db *storage.DB) (*snapshot.RestoreStats, error)
}

// Replayer applies progress deltas that accumulated since the snapshot.
type Replayer interface {
	Replay(ctx context.Context, db *storage.DB) (delta.ReplayStats, error)
}

// Syncer refreshes a single curriculum from upstream.
type Syncer interface {
	SyncCurriculum(ctx context.Context, name string) (*syncsvc.Summary, error)
}

// Reindexer rebuilds the search index from storage.
type Reindexer interface {
	Reindex(ctx context.Context) error
}

// Stats tracks what a warmup run accomplished
// All fields use atomic operations for concurrent access
type Stats struct {
	RestoredCourses  atomic.Int64
	RestoredProgress atomic.Int64
	ReplayedDeltas   atomic.Int64
	SyncedCurricula  atomic.Int64
	SkippedCurricula atomic.Int64
	SyncedCourses    atomic.Int64
}

// Options configures warmup behavior
type Options struct {
	Snapshots   Restorer         // Optional snapshot source; nil skips the restore phase
	Deltas      Replayer         // Optional delta log; nil skips the replay phase
	Sync        Syncer           // Refreshes stale curricula from upstream
	Search      Reindexer        // Optional search index rebuilt after restore
	Concurrency int              // Max concurrent curriculum syncs (defaults to 1)
	MaxAge      time.Duration    // Curricula synced within MaxAge are skipped; <= 0 refreshes everything
	Force       bool             // Refresh every curriculum regardless of age
	Metrics     *metrics.Metrics // Optional metrics recorder
}

// Run executes startup warmup with the given options. Phases run in
// order: snapshot restore, delta replay, search reindex, upstream sync
// of stale curricula. Restore and replay failures degrade to a full
// upstream sync rather than failing the run; a sync failure is returned
// after the group winds down. state records the current phase for the
// readiness endpoint; marking ready is the caller's decision.
func Run(ctx context.Context, db *storage.DB, state *ReadinessState, log *logger.Logger, opts Options) (*Stats, error) {
	stats := &Stats{}
	startTime := time.Now()

	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}

	if opts.Snapshots != nil {
		state.SetPhase(PhaseRestoring)
		restoreSnapshot(ctx, db, log, stats, opts.Snapshots)
		if ctx.Err() != nil {
			return stats, fmt.Errorf("warmup canceled: %w", ctx.Err())
		}
	}

	if opts.Deltas != nil {
		state.SetPhase(PhaseReplaying)
		replayDeltas(ctx, db, log, stats, opts.Deltas)
		if ctx.Err() != nil {
			return stats, fmt.Errorf("warmup canceled: %w", ctx.Err())
		}
	}

	// Rebuild the index now so restored data is searchable even when the
	// sync phase skips or fails.
	if opts.Search != nil {
		if err := opts.Search.Reindex(ctx); err != nil {
			log.WithError(err).Warn("Search reindex after restore failed")
		}
	}

	state.SetPhase(PhaseSyncing)
	err := syncStale(ctx, db, log, stats, opts)

	duration := time.Since(startTime)
	if opts.Metrics != nil {
		opts.Metrics.RecordWarmupDuration(duration.Seconds())
	}

	log.WithField("duration", duration).
		WithField("restored_courses", stats.RestoredCourses.Load()).
		WithField("restored_progress", stats.RestoredProgress.Load()).
		WithField("replayed_deltas", stats.ReplayedDeltas.Load()).
		WithField("synced_curricula", stats.SyncedCurricula.Load()).
		WithField("skipped_curricula", stats.SkippedCurricula.Load()).
		Info("Warmup complete")

	if err != nil {
		log.WithError(err).Warn("Some curricula failed during warmup")
		return stats, err
	}

	return stats, nil
}

// restoreSnapshot loads the newest snapshot into the database. Failures
// are logged, not returned: the sync phase rebuilds from upstream.
func restoreSnapshot(ctx context.Context, db *storage.DB, log *logger.Logger, stats *Stats, src Restorer) {
	restored, err := src.Restore(ctx, db)
	if err != nil {
		if errors.Is(err, snapshot.ErrNotFound) {
			log.Info("No snapshot in object storage, cold start from upstream")
			return
		}
		log.WithError(err).Warn("Snapshot restore failed, continuing with upstream sync")
		return
	}

	stats.RestoredCourses.Store(int64(restored.Courses))
	stats.RestoredProgress.Store(int64(restored.Progress))
	log.WithField("curricula", restored.Curricula).
		WithField("courses", restored.Courses).
		WithField("progress", restored.Progress).
		Info("Catalog restored from snapshot")
}

// replayDeltas applies progress writes recorded after the snapshot was
// taken. Failures are logged, not returned: deltas stay in place for the
// next compaction pass.
func replayDeltas(ctx context.Context, db *storage.DB, log *logger.Logger, stats *Stats, src Replayer) {
	replayed, err := src.Replay(ctx, db)
	if err != nil {
		log.WithError(err).Warn("Delta replay failed, progress may lag until the next snapshot")
		return
	}

	stats.ReplayedDeltas.Store(int64(replayed.ObjectsApplied))
	if replayed.ObjectsProcessed > 0 {
		log.WithField("applied", replayed.ObjectsApplied).
			WithField("skipped", replayed.ObjectsSkipped).
			WithField("failed", replayed.ObjectsFailed).
			Info("Progress deltas replayed")
	}
}

// syncStale refreshes every curriculum whose catalog is missing or older
// than MaxAge. Syncs run concurrently, bounded by Concurrency.
func syncStale(ctx context.Context, db *storage.DB, log *logger.Logger, stats *Stats, opts Options) error {
	names := data.CurriculumNames()

	if !opts.Force {
		stale, err := staleCurricula(ctx, db, opts.MaxAge)
		if err != nil {
			log.WithError(err).Warn("Cannot determine catalog freshness, refreshing everything")
		} else {
			stats.SkippedCurricula.Store(int64(len(names) - len(stale)))
			names = stale
		}
	}

	if len(names) == 0 {
		log.Info("Catalog is fresh, skipping upstream sync")
		return nil
	}

	log.WithField("curricula", len(names)).
		WithField("concurrency", opts.Concurrency).
		Info("Refreshing stale curricula")

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	for _, name := range names {
		g.Go(func() error {
			summary, err := opts.Sync.SyncCurriculum(ctx, name)
			if err != nil {
				if opts.Metrics != nil {
					opts.Metrics.RecordWarmupTask(name, "error")
				}
				return fmt.Errorf("curriculum %s: %w", name, err)
			}

			stats.SyncedCurricula.Add(1)
			stats.SyncedCourses.Add(int64(summary.TotalCourses))
			if opts.Metrics != nil {
				opts.Metrics.RecordWarmupTask(name, "success")
			}
			return nil
		})
	}

	return g.Wait()
}

// staleCurricula returns the registry curricula that need an upstream
// refresh. A curriculum is fresh when it was synced within maxAge and
// still has courses, which holds after a snapshot restore because the
// restore keeps sync timestamps intact.
func staleCurricula(ctx context.Context, db *storage.DB, maxAge time.Duration) ([]string, error) {
	if maxAge <= 0 {
		return data.CurriculumNames(), nil
	}

	curricula, err := db.GetAllCurricula(ctx)
	if err != nil {
		return nil, fmt.Errorf("load curricula: %w", err)
	}
	counts, err := db.CountCoursesByCurriculum(ctx)
	if err != nil {
		return nil, fmt.Errorf("count courses: %w", err)
	}

	lastSynced := make(map[string]*time.Time, len(curricula))
	for _, c := range curricula {
		lastSynced[c.Name] = c.LastSynced
	}

	var stale []string
	for _, name := range data.CurriculumNames() {
		synced := lastSynced[name]
		if synced == nil || counts[name] == 0 || time.Since(*synced) > maxAge {
			stale = append(stale, name)
		}
	}
	return stale, nil
}
