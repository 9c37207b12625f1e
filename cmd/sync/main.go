// Command sync refreshes the course catalog once and exits. It is the
// cron companion to the server's periodic refresh: fetch the curriculum
// documents, run extraction, persist the result, and optionally publish
// a fresh snapshot for other instances to warm from.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/garyellow/ossu-tracker-go/internal/config"
	"github.com/garyellow/ossu-tracker-go/internal/data"
	"github.com/garyellow/ossu-tracker-go/internal/extract"
	"github.com/garyellow/ossu-tracker-go/internal/fetcher"
	"github.com/garyellow/ossu-tracker-go/internal/logger"
	"github.com/garyellow/ossu-tracker-go/internal/metrics"
	"github.com/garyellow/ossu-tracker-go/internal/r2client"
	"github.com/garyellow/ossu-tracker-go/internal/snapshot"
	"github.com/garyellow/ossu-tracker-go/internal/storage"
	syncsvc "github.com/garyellow/ossu-tracker-go/internal/sync"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

// CLI flags
var (
	curriculumFlag = flag.String("curriculum", "", "Sync a single curriculum by name (empty = whole registry)")
	workersFlag    = flag.Int("workers", 0, "Parallel pipeline runs (0 = default)")
	timeoutFlag    = flag.Duration("timeout", 15*time.Minute, "Overall run deadline")
	jsonFlag       = flag.Bool("json", false, "Print the run summary as JSON on stdout")
	uploadFlag     = flag.Bool("upload", true, "Upload a catalog snapshot after a successful sync (needs object storage config)")
)

func main() {
	// Parse command-line flags
	flag.Parse()

	// Try to load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Logs go to stderr so -json output on stdout stays parseable.
	log := logger.NewWithWriter(cfg.LogLevel, os.Stderr)
	log.Info("Starting catalog sync tool")

	if *curriculumFlag != "" {
		if _, ok := data.GetCurriculum(*curriculumFlag); !ok {
			_, _ = fmt.Fprintf(os.Stderr, "Unknown curriculum %q (valid: %s)\n",
				*curriculumFlag, strings.Join(data.CurriculumNames(), ", "))
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeoutFlag)
	defer cancel()

	db, err := storage.New(ctx, cfg.SQLitePath())
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer func() { _ = db.Close() }()
	log.WithField("path", cfg.SQLitePath()).Info("Database connected")

	// The registry is never scraped here; the services still need a recorder.
	m := metrics.New(prometheus.NewRegistry())
	db.SetMetrics(m)

	workers := *workersFlag
	if workers <= 0 {
		workers = syncsvc.DefaultConcurrency
	}
	log.WithField("workers", workers).Info("Pipeline concurrency")

	docFetcher := fetcher.New(cfg.FetchTimeout, cfg.FetchRateLimit, 2*cfg.FetchRateLimit,
		fetcher.DefaultMaxRetries, log, m)
	extractOpts := extract.Options{
		SimilarityThreshold: cfg.DedupeSimilarity,
		ContainmentMinLen:   cfg.DedupeContainmentMinLen,
		MinPerCurriculum:    cfg.SyncMinCourses,
		MinAggregate:        cfg.SyncMinTotalCourses,
	}
	pipeline := extract.NewPipeline(docFetcher, nil, extractOpts, log, m)
	service := syncsvc.NewService(pipeline, nil, db, syncsvc.ServiceConfig{
		Concurrency: workers,
		Options:     extractOpts,
	}, log, m)

	var snapshots *snapshot.Manager
	if *uploadFlag && cfg.HasObjectStorage() {
		r2, err := r2client.New(ctx, r2client.Config{
			Endpoint:    cfg.R2Endpoint,
			AccessKeyID: cfg.R2AccessKeyID,
			SecretKey:   cfg.R2SecretAccessKey,
			BucketName:  cfg.R2BucketName,
		})
		if err != nil {
			log.WithError(err).Fatal("Failed to initialize object storage")
		}
		snapshots = snapshot.New(r2, snapshot.Config{
			SnapshotKey: cfg.R2SnapshotKey,
			LockKey:     cfg.R2LockKey,
			LockTTL:     cfg.R2LockTTL,
		})
	}

	startTime := time.Now()

	var summary *syncsvc.Summary
	if *curriculumFlag == "" {
		summary, err = service.SyncAll(ctx)
	} else {
		summary, err = service.SyncCurriculum(ctx, *curriculumFlag)
	}
	if err != nil {
		m.RecordSyncRun("cli", "error")
		log.WithError(err).Error("Catalog sync failed")
		_, _ = fmt.Fprintf(os.Stderr, "\n❌ Sync failed: %v\n", err)
		os.Exit(1)
	}
	m.RecordSyncRun("cli", "success")

	if *jsonFlag {
		printJSONSummary(summary)
	} else {
		printSummary(summary)
	}

	var hasError bool
	if snapshots != nil {
		if err := uploadSnapshot(ctx, snapshots, db, log); err != nil {
			log.WithError(err).Error("Snapshot upload failed")
			_, _ = fmt.Fprintf(os.Stderr, "❌ Snapshot upload failed: %v\n", err)
			hasError = true
		} else if !*jsonFlag {
			fmt.Println("✓ Catalog snapshot published")
		}
	}

	duration := time.Since(startTime)
	if hasError {
		log.WithField("duration", duration).Error("Sync completed with errors")
		_, _ = fmt.Fprintf(os.Stderr, "Total time: %v\n", duration.Round(time.Second))
		os.Exit(1)
	}

	log.WithField("duration", duration).Info("Sync complete")
	if !*jsonFlag {
		fmt.Printf("\n✅ Sync complete: %d courses across %d curricula\n",
			summary.TotalCourses, len(summary.Curricula))
		fmt.Printf("Total time: %v\n", duration.Round(time.Second))
	}
}

// printSummary writes per-curriculum result lines for humans.
func printSummary(summary *syncsvc.Summary) {
	for _, res := range summary.Curricula {
		marker := "✓"
		note := ""
		if res.FetchFailed {
			marker = "⚠"
			note = " (document fetch failed)"
		}
		if res.FallbackUsed {
			note += " (reference fallback merged)"
		}
		fmt.Printf("%s %s: %d courses (%d created, %d updated, %d removed)%s\n",
			marker, res.Curriculum, res.Courses, res.Created, res.Updated, res.Removed, note)
	}
	if summary.BelowThreshold {
		fmt.Println("⚠ Catalog still below the aggregate floor after fallback merge")
	}
}

// printJSONSummary writes the machine-readable summary to stdout.
func printJSONSummary(summary *syncsvc.Summary) {
	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to encode summary: %v\n", err)
		return
	}
	fmt.Println(string(out))
}

// uploadSnapshot publishes the freshly synced catalog. The leader lock
// keeps a concurrently running server instance from racing on the same
// object; losing the race is fine, the other holder uploads the same data.
func uploadSnapshot(ctx context.Context, snapshots *snapshot.Manager, db *storage.DB, log *logger.Logger) error {
	acquired, err := snapshots.AcquireLeaderLock(ctx)
	if err != nil {
		return fmt.Errorf("acquire snapshot lock: %w", err)
	}
	if !acquired {
		log.Info("Snapshot upload skipped: another instance holds the lock")
		return nil
	}
	defer func() {
		if err := snapshots.ReleaseLeaderLock(ctx); err != nil {
			log.WithError(err).Warn("Snapshot lock release failed")
		}
	}()

	etag, err := snapshots.Upload(ctx, db)
	if err != nil {
		return fmt.Errorf("upload snapshot: %w", err)
	}
	log.WithField("etag", etag).Info("Catalog snapshot uploaded")
	return nil
}
