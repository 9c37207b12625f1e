// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/garyellow/ossu-tracker-go/internal/buildinfo"
	"github.com/garyellow/ossu-tracker-go/internal/config"
	"github.com/garyellow/ossu-tracker-go/internal/ctxutil"
	"github.com/garyellow/ossu-tracker-go/internal/data"
	"github.com/garyellow/ossu-tracker-go/internal/delta"
	"github.com/garyellow/ossu-tracker-go/internal/enrich"
	"github.com/garyellow/ossu-tracker-go/internal/extract"
	"github.com/garyellow/ossu-tracker-go/internal/fetcher"
	"github.com/garyellow/ossu-tracker-go/internal/logger"
	"github.com/garyellow/ossu-tracker-go/internal/maintenance"
	"github.com/garyellow/ossu-tracker-go/internal/metrics"
	"github.com/garyellow/ossu-tracker-go/internal/modules/course"
	"github.com/garyellow/ossu-tracker-go/internal/modules/curriculum"
	searchmod "github.com/garyellow/ossu-tracker-go/internal/modules/search"
	"github.com/garyellow/ossu-tracker-go/internal/modules/stats"
	syncmod "github.com/garyellow/ossu-tracker-go/internal/modules/sync"
	"github.com/garyellow/ossu-tracker-go/internal/progress"
	"github.com/garyellow/ossu-tracker-go/internal/r2client"
	"github.com/garyellow/ossu-tracker-go/internal/ratelimit"
	"github.com/garyellow/ossu-tracker-go/internal/search"
	"github.com/garyellow/ossu-tracker-go/internal/sentry"
	"github.com/garyellow/ossu-tracker-go/internal/snapshot"
	"github.com/garyellow/ossu-tracker-go/internal/storage"
	syncsvc "github.com/garyellow/ossu-tracker-go/internal/sync"
	"github.com/garyellow/ossu-tracker-go/internal/warmup"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manual sync triggers walk every upstream document, so the keyed limiter
// carries a rolling daily cap on top of the burst bucket.
const (
	syncTriggerBurst      = 2.0
	syncTriggerRefill     = 1.0 / 300 // one token per five minutes
	syncTriggerDailyLimit = 20
)

// Application manages the application lifecycle and dependencies.
type Application struct {
	cfg           *config.Config
	logger        *logger.Logger
	db            *storage.DB
	metrics       *metrics.Metrics
	registry      *prometheus.Registry
	fetcher       *fetcher.Fetcher
	syncService   *syncsvc.Service
	searchIndex   *search.Index
	searchService *search.Service
	enrichService *enrich.Service

	// Object storage subsystem; all nil when R2 is not configured.
	r2        *r2client.Client
	snapshots *snapshot.Manager
	deltas    *delta.Log
	schedule  *maintenance.ScheduleStore

	globalLimiter *ratelimit.Limiter // nil when the valve is disabled
	clientLimiter *ratelimit.KeyedLimiter
	syncLimiter   *ratelimit.KeyedLimiter

	server         *http.Server
	readinessState *warmup.ReadinessState // Tracks initial warmup completion for readiness
	wg             sync.WaitGroup         // Track background goroutines for graceful shutdown
}

// Initialize creates and initializes a new application with all dependencies.
func Initialize(ctx context.Context, cfg *config.Config) (*Application, error) {
	log := logger.NewWithOptions(cfg.LogLevel, os.Stdout, logger.Options{
		BetterStackToken:    cfg.BetterStackToken,
		BetterStackEndpoint: cfg.BetterStackEndpoint,
	})

	log = log.WithField("service", "ossu-tracker")
	if cfg.InstanceID != "" {
		log = log.WithField("instance_id", cfg.InstanceID)
	}

	// Set as default logger to enable context value extraction (requestID,
	// clientKey, curriculum) via ContextHandler in package-level
	// slog.*Context() calls.
	slog.SetDefault(log.Logger)

	log.Info("Initializing application...")
	if cfg.BetterStackToken != "" {
		log.WithField("endpoint", cfg.BetterStackEndpoint).Info("Better Stack logging enabled")
	}

	if err := sentry.Initialize(sentry.Config{
		Token:       cfg.SentryToken,
		Host:        cfg.SentryHost,
		Environment: cfg.SentryEnvironment,
		Release:     buildinfo.Version,
		SampleRate:  cfg.SentrySampleRate,
	}); err != nil {
		log.WithError(err).Warn("Sentry initialization failed")
	} else if sentry.IsEnabled() {
		log.WithField("environment", cfg.SentryEnvironment).Info("Sentry error tracking enabled")
	}

	db, err := storage.New(ctx, cfg.SQLitePath())
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	log.WithField("path", cfg.SQLitePath()).Info("Database connected")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
	)
	m := metrics.New(registry)
	db.SetMetrics(m)

	docFetcher := fetcher.New(cfg.FetchTimeout, cfg.FetchRateLimit, 2*cfg.FetchRateLimit,
		fetcher.DefaultMaxRetries, log, m)

	searchIndex := search.NewIndex(log)
	searchService := search.NewService(searchIndex, db, log)

	var enrichService *enrich.Service
	if cfg.EnrichEnabled && cfg.HasLLMProvider() {
		tagger, err := enrich.CreateTagger(ctx, buildEnrichConfig(cfg))
		if err != nil {
			log.WithError(err).Warn("Topic tagger initialization failed")
		} else if tagger != nil {
			enrichService = enrich.NewService(tagger, db, enrich.ServiceConfig{
				RequestTimeout: config.EnrichRequest,
			}, log)
		}
	}

	var (
		r2 *r2client.Client

		snapshots *snapshot.Manager
		deltas    *delta.Log
		schedule  *maintenance.ScheduleStore
	)
	if cfg.HasObjectStorage() {
		r2, err = r2client.New(ctx, r2client.Config{
			Endpoint:    cfg.R2Endpoint,
			AccessKeyID: cfg.R2AccessKeyID,
			SecretKey:   cfg.R2SecretAccessKey,
			BucketName:  cfg.R2BucketName,
		})
		if err != nil {
			return nil, fmt.Errorf("object storage: %w", err)
		}

		snapshots = snapshot.New(r2, snapshot.Config{
			SnapshotKey: cfg.R2SnapshotKey,
			LockKey:     cfg.R2LockKey,
			LockTTL:     cfg.R2LockTTL,
		})
		deltas, err = delta.NewLog(r2, cfg.R2DeltaPrefix, cfg.InstanceID)
		if err != nil {
			return nil, fmt.Errorf("delta log: %w", err)
		}
		schedule, err = maintenance.NewScheduleStore(r2, cfg.R2ScheduleKey, config.ObjectStoreRequest)
		if err != nil {
			return nil, fmt.Errorf("schedule store: %w", err)
		}
		log.WithField("bucket", cfg.R2BucketName).Info("Object storage enabled")
	} else {
		log.Info("Object storage not configured; snapshots and delta log disabled")
	}

	var globalLimiter *ratelimit.Limiter
	if cfg.GlobalRateRPS > 0 {
		globalLimiter = ratelimit.New(cfg.GlobalRateRPS, cfg.GlobalRateRPS)
	}
	clientLimiter := ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{
		Name:          "client",
		Burst:         cfg.ClientRateBurst,
		RefillRate:    cfg.ClientRateRefill,
		CleanupPeriod: config.RateLimiterCleanupInterval,
		Metrics:       m,
	})
	syncLimiter := ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{
		Name:          "sync",
		Burst:         syncTriggerBurst,
		RefillRate:    syncTriggerRefill,
		DailyLimit:    syncTriggerDailyLimit,
		CleanupPeriod: config.RateLimiterCleanupInterval,
		Metrics:       m,
	})

	app := &Application{
		cfg:            cfg,
		logger:         log,
		db:             db,
		metrics:        m,
		registry:       registry,
		fetcher:        docFetcher,
		searchIndex:    searchIndex,
		searchService:  searchService,
		enrichService:  enrichService,
		r2:             r2,
		snapshots:      snapshots,
		deltas:         deltas,
		schedule:       schedule,
		globalLimiter:  globalLimiter,
		clientLimiter:  clientLimiter,
		syncLimiter:    syncLimiter,
		readinessState: warmup.NewReadinessState(cfg.WarmupGracePeriod),
	}

	extractOpts := extract.Options{
		SimilarityThreshold: cfg.DedupeSimilarity,
		ContainmentMinLen:   cfg.DedupeContainmentMinLen,
		MinPerCurriculum:    cfg.SyncMinCourses,
		MinAggregate:        cfg.SyncMinTotalCourses,
	}
	pipeline := extract.NewPipeline(docFetcher, nil, extractOpts, log, m)

	hooks := syncsvc.Hooks{Reindex: searchService.Reindex}
	if enrichService.Enabled() {
		hooks.Enrich = func(ctx context.Context) error {
			_, err := enrichService.EnrichMissing(ctx)
			return err
		}
	}
	if snapshots != nil {
		hooks.Snapshot = app.uploadSnapshot
	}
	app.syncService = syncsvc.NewService(pipeline, nil, db, syncsvc.ServiceConfig{
		Options: extractOpts,
		Hooks:   hooks,
	}, log, m)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if sentry.IsEnabled() {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(securityHeadersMiddleware())
	router.Use(loggingMiddleware(log))

	router.GET("/", app.serviceInfo)
	router.GET("/healthz", app.livenessCheck)
	router.HEAD("/healthz", app.livenessCheck)
	router.GET("/ready", app.readinessCheck)
	router.HEAD("/ready", app.readinessCheck)
	router.GET("/metrics",
		metricsAuthMiddleware(cfg.MetricsPassword != "", cfg.MetricsUsername, cfg.MetricsPassword),
		gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	api := router.Group("/api")
	api.Use(app.readinessMiddleware(), app.globalRateLimitMiddleware(), app.clientRateLimitMiddleware())

	curriculum.NewHandler(db, m, log).RegisterRoutes(api)
	stats.NewHandler(db, m, log).RegisterRoutes(api)
	searchmod.NewHandler(searchService, m, log).RegisterRoutes(api)

	// A typed nil inside the interface would defeat the handler's nil
	// check, so the recorder is only assigned when the log exists.
	var recorder course.ProgressRecorder
	if deltas != nil {
		recorder = deltas
	}
	course.NewHandler(db, recorder, m, log).RegisterRoutes(api)

	syncRoutes := api.Group("", app.syncRateLimitMiddleware())
	syncmod.NewHandler(app.syncService, m, log).RegisterRoutes(syncRoutes)

	app.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: config.ServerHTTPRead,
		ReadTimeout:       config.ServerHTTPRead,
		WriteTimeout:      config.ServerHTTPWrite,
		IdleTimeout:       config.ServerHTTPIdle,
	}

	log.Info("Initialization complete")
	return app, nil
}

// buildEnrichConfig creates an enrichment config from the application config.
func buildEnrichConfig(cfg *config.Config) enrich.Config {
	return enrich.Config{
		Providers: enrich.ParseProviders(cfg.LLMProviders),
		Gemini: enrich.ProviderConfig{
			APIKey: cfg.GeminiAPIKey,
			Models: cfg.GeminiEnrichModels,
		},
		Groq: enrich.ProviderConfig{
			APIKey: cfg.GroqAPIKey,
			Models: cfg.GroqEnrichModels,
		},
		Cerebras: enrich.ProviderConfig{
			APIKey: cfg.CerebrasAPIKey,
			Models: cfg.CerebrasEnrichModels,
		},
		Retry: enrich.DefaultRetryConfig(),
	}
}

// serviceInfo answers the root path with a short self-description so the
// bare host URL is useful without separate docs.
func (a *Application) serviceInfo(c *gin.Context) {
	version := buildinfo.Version
	if version == "" {
		version = "dev"
	}
	c.JSON(http.StatusOK, gin.H{
		"service":   "ossu-tracker",
		"version":   version,
		"curricula": data.CurriculumNames(),
		"endpoints": gin.H{
			"curricula": "/api/curricula",
			"courses":   "/api/courses",
			"search":    "/api/search",
			"stats":     "/api/stats",
			"sync":      "/api/sync",
			"liveness":  "/healthz",
			"readiness": "/ready",
			"metrics":   "/metrics",
		},
	})
}

func (a *Application) livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (a *Application) getFeatures() map[string]bool {
	return map[string]bool{
		"search":         a.searchIndex.IsEnabled(),
		"enrichment":     a.enrichService.Enabled(),
		"object_storage": a.snapshots != nil,
	}
}

// readinessCheck reports whether this instance should receive traffic:
// warmup must have completed (or timed out into degraded mode) and the
// database must answer a ping.
func (a *Application) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), config.ReadinessCheckTimeout)
	defer cancel()

	if a.cfg.WaitForWarmup && !a.readinessState.IsReady() {
		status := a.readinessState.Status()
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": status.Reason,
			"phase":  status.Phase,
			"progress": gin.H{
				"elapsed_seconds": status.ElapsedSeconds,
				"timeout_seconds": status.TimeoutSeconds,
			},
		})
		return
	}

	if err := a.db.Ping(ctx); err != nil {
		a.logger.WithError(err).Error("Readiness check: database ping failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "database unavailable",
		})
		return
	}

	courses, err := a.db.CountCourses(ctx)
	if err != nil {
		a.logger.WithError(err).Warn("Readiness check: course count failed")
	}

	resp := gin.H{
		"status":   "ready",
		"database": "connected",
		"courses":  courses,
		"features": a.getFeatures(),
	}
	if a.searchIndex.IsEnabled() {
		resp["indexed"] = a.searchIndex.Count()
	}
	c.JSON(http.StatusOK, resp)
}

// Run starts the HTTP server and background jobs.
//
// Graceful shutdown sequence (critical for data integrity):
//  1. Receive shutdown signal (SIGINT/SIGTERM)
//  2. Cancel context so background jobs stop
//  3. Wait for background jobs to complete (warmup, refresh, snapshots)
//  4. Close resources in order (HTTP server, snapshot upload, database, rate limiters)
//
// Closing the database before jobs finish causes "sql: database is
// closed" failures inside warmup and refresh, so the order matters.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel() // Ensure context is always canceled

	a.startBackgroundJobs(ctx)
	a.startHTTPServer()

	sig := a.waitForShutdownSignal()
	a.logger.WithField("signal", sig.String()).Info("Received shutdown signal")

	cancel()

	a.logger.Info("Waiting for background jobs to finish...")
	start := time.Now()
	a.wg.Wait()
	a.logger.WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("All background jobs completed")

	return a.shutdown()
}

// startBackgroundJobs starts all background goroutines tracked by WaitGroup.
func (a *Application) startBackgroundJobs(ctx context.Context) {
	a.wg.Go(func() {
		a.initialWarmup(ctx)
	})
	a.wg.Go(func() {
		a.catalogRefresh(ctx)
	})
	a.wg.Go(func() {
		a.snapshotMaintenance(ctx)
	})
	a.wg.Go(func() {
		a.updateCatalogMetrics(ctx)
	})
	a.wg.Go(func() {
		a.progressReconcile(ctx)
	})
}

// startHTTPServer starts the HTTP server in a goroutine.
func (a *Application) startHTTPServer() {
	go func() {
		a.logger.WithField("port", a.cfg.Port).Info("Starting HTTP server")
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.WithError(err).Error("HTTP server error")
		}
	}()
}

// waitForShutdownSignal blocks until SIGINT/SIGTERM is received.
func (a *Application) waitForShutdownSignal() os.Signal {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	return <-quit
}

// shutdown performs graceful shutdown of the HTTP server and resources.
// Called after background jobs have stopped. The final snapshot upload
// runs before the database closes and only once warmup finished, so a
// boot-interrupted instance never overwrites a good snapshot with an
// empty catalog.
func (a *Application) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	a.logger.Info("Stopping HTTP server...")
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Error("HTTP server shutdown error")
	}

	if a.snapshots != nil && a.readinessState.WarmupCompleted() {
		if err := a.uploadSnapshot(shutdownCtx); err != nil {
			a.logger.WithError(err).Warn("Final snapshot upload failed")
		}
	}

	a.logger.Info("Closing resources...")

	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).WithField("component", "database").Error("Component close error")
	}

	if a.clientLimiter != nil {
		a.clientLimiter.Stop()
	}
	if a.syncLimiter != nil {
		a.syncLimiter.Stop()
	}

	if sentry.IsEnabled() {
		sentry.Flush(2 * time.Second)
	}

	if err := a.logger.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("Logger shutdown timed out")
	}

	a.logger.Info("Shutdown complete")
	return nil
}

// initialWarmup bootstraps the catalog (snapshot restore, delta replay,
// stale-curriculum sync) and marks the instance ready. Failures degrade:
// readiness still flips so a stale catalog serves instead of holding the
// instance out of rotation forever.
func (a *Application) initialWarmup(ctx context.Context) {
	warmupCtx, cancel := context.WithTimeout(ctx, a.cfg.WarmupGracePeriod)
	defer cancel()

	opts := warmup.Options{
		Sync:        a.syncService,
		Search:      a.searchService,
		Concurrency: a.cfg.WarmupConcurrency,
		MaxAge:      a.cfg.SyncRefreshInterval,
		Metrics:     a.metrics,
	}
	// Assigning a nil *Manager to the interface field would make it
	// non-nil; only set the phases that actually exist.
	if a.snapshots != nil {
		opts.Snapshots = a.snapshots
	}
	if a.deltas != nil {
		opts.Deltas = a.deltas
	}

	stats, err := warmup.Run(warmupCtx, a.db, a.readinessState, a.logger, opts)
	if ctx.Err() != nil {
		a.logger.Debug("Warmup aborted by shutdown")
		return
	}

	a.readinessState.MarkReady()
	if err != nil {
		a.logger.WithError(err).Warn("Initial warmup finished with errors")
		return
	}
	a.logger.WithField("synced_curricula", stats.SyncedCurricula.Load()).
		WithField("synced_courses", stats.SyncedCourses.Load()).
		Info("Service marked as ready after initial warmup")
}

// catalogRefresh re-syncs every curriculum on a fixed cadence so renamed
// and added courses show up without a manual trigger.
func (a *Application) catalogRefresh(ctx context.Context) {
	a.logger.Debug("Catalog refresh job started")
	defer a.logger.Debug("Catalog refresh job stopped")

	// Warmup performs the startup sync; the first scheduled run can wait.
	select {
	case <-ctx.Done():
		return
	case <-time.After(config.CatalogRefreshInitialDelay):
	}

	a.runCatalogRefresh(ctx)

	ticker := time.NewTicker(a.cfg.SyncRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			a.logger.Debug("Catalog refresh received shutdown signal")
			return
		case <-ticker.C:
			a.runCatalogRefresh(ctx)
		}
	}
}

func (a *Application) runCatalogRefresh(ctx context.Context) {
	if a.schedule != nil {
		claimed, err := a.schedule.Claim(ctx, maintenance.JobSync, a.cfg.SyncRefreshInterval)
		if err != nil {
			// A broken schedule store must not leave the local catalog
			// stale; duplicate fetches are the cheaper failure.
			a.logger.WithError(err).Warn("Sync schedule claim failed; refreshing anyway")
		} else if !claimed {
			a.logger.Debug("Catalog refresh already claimed for this interval")
			return
		}
	}

	start := time.Now()
	summary, err := a.syncService.SyncAll(ctx)
	if err != nil {
		a.metrics.RecordSyncRun("periodic", "error")
		a.logger.WithError(err).Error("Periodic catalog refresh failed")
		sentry.CaptureError(ctx, err)
		return
	}
	a.metrics.RecordSyncRun("periodic", "success")
	a.logger.WithField("courses", summary.TotalCourses).
		WithField("fetch_failures", summary.FetchFailures).
		WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("Periodic catalog refresh complete")
}

// snapshotMaintenance periodically replays foreign deltas, uploads a
// snapshot, and compacts the delta log even when no sync ran, so
// progress-only mutations reach object storage before an instance is
// recycled. No-op without object storage.
func (a *Application) snapshotMaintenance(ctx context.Context) {
	if a.snapshots == nil {
		return
	}
	a.logger.Debug("Snapshot maintenance job started")
	defer a.logger.Debug("Snapshot maintenance job stopped")

	select {
	case <-ctx.Done():
		return
	case <-time.After(config.SnapshotInitialDelay):
	}

	a.runSnapshotMaintenance(ctx)

	ticker := time.NewTicker(config.SnapshotInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			a.logger.Debug("Snapshot maintenance received shutdown signal")
			return
		case <-ticker.C:
			a.runSnapshotMaintenance(ctx)
		}
	}
}

func (a *Application) runSnapshotMaintenance(ctx context.Context) {
	if a.schedule != nil {
		claimed, err := a.schedule.Claim(ctx, maintenance.JobSnapshot, config.SnapshotInterval)
		if err != nil {
			a.logger.WithError(err).Warn("Snapshot schedule claim failed; running anyway")
		} else if !claimed {
			a.logger.Debug("Snapshot maintenance already claimed for this interval")
			return
		}
	}

	should, err := a.snapshots.ShouldUpload(ctx)
	if err != nil {
		a.logger.WithError(err).Warn("Snapshot staleness check failed")
		return
	}
	if !should {
		a.logger.Debug("Snapshot maintenance skipped: newer remote snapshot adopted")
		return
	}

	acquired, err := a.snapshots.AcquireLeaderLock(ctx)
	if err != nil {
		a.metrics.RecordSnapshotOperation("upload", "error")
		a.logger.WithError(err).Warn("Snapshot leader lock failed")
		return
	}
	if !acquired {
		a.logger.Debug("Snapshot maintenance skipped: another instance holds the lock")
		return
	}
	defer func() {
		if err := a.snapshots.ReleaseLeaderLock(ctx); err != nil {
			a.logger.WithError(err).Warn("Snapshot lock release failed")
		}
	}()

	// Apply deltas from other instances first so the snapshot covers
	// them; the log is only pruned after the upload lands.
	if a.deltas != nil {
		if stats, err := a.deltas.Replay(ctx, a.db); err != nil {
			a.logger.WithError(err).Warn("Delta replay before snapshot failed")
		} else if stats.ObjectsApplied > 0 {
			a.logger.WithField("applied", stats.ObjectsApplied).Info("Replayed deltas before snapshot")
		}
	}

	etag, err := a.snapshots.Upload(ctx, a.db)
	if err != nil {
		a.metrics.RecordSnapshotOperation("upload", "error")
		a.logger.WithError(err).Error("Snapshot upload failed")
		sentry.CaptureError(ctx, err)
		return
	}
	a.metrics.RecordSnapshotOperation("upload", "success")
	a.logger.WithField("etag", etag).Info("Catalog snapshot uploaded")

	if a.deltas != nil {
		if stats, err := a.deltas.Compact(ctx, a.db); err != nil {
			a.logger.WithError(err).Warn("Delta compaction failed")
		} else if stats.ObjectsProcessed > 0 {
			a.logger.WithField("objects", stats.ObjectsProcessed).Info("Delta log compacted")
		}
	}
}

// uploadSnapshot is the post-sync hook: once a sync lands, a fresh
// snapshot means a replacement instance cold-starts from today's catalog
// instead of yesterday's. The leader lock keeps concurrent instances
// from racing on the same object.
func (a *Application) uploadSnapshot(ctx context.Context) error {
	acquired, err := a.snapshots.AcquireLeaderLock(ctx)
	if err != nil {
		a.metrics.RecordSnapshotOperation("upload", "error")
		return fmt.Errorf("acquire snapshot lock: %w", err)
	}
	if !acquired {
		a.logger.Debug("Snapshot upload skipped: another instance holds the lock")
		return nil
	}
	defer func() {
		if err := a.snapshots.ReleaseLeaderLock(ctx); err != nil {
			a.logger.WithError(err).Warn("Snapshot lock release failed")
		}
	}()

	etag, err := a.snapshots.Upload(ctx, a.db)
	if err != nil {
		a.metrics.RecordSnapshotOperation("upload", "error")
		return fmt.Errorf("upload snapshot: %w", err)
	}
	a.metrics.RecordSnapshotOperation("upload", "success")
	a.logger.WithField("etag", etag).Info("Catalog snapshot uploaded")
	return nil
}

// updateCatalogMetrics keeps the per-curriculum course gauges current.
func (a *Application) updateCatalogMetrics(ctx context.Context) {
	a.logger.Debug("Catalog metrics job started")
	defer a.logger.Debug("Catalog metrics job stopped")

	ticker := time.NewTicker(config.MetricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Debug("Catalog metrics received shutdown signal")
			return
		case <-ticker.C:
			a.recordCatalogMetrics(ctx)
		}
	}
}

func (a *Application) recordCatalogMetrics(ctx context.Context) {
	counts, err := a.db.CountCoursesByCurriculum(ctx)
	if err != nil {
		a.logger.WithError(err).Debug("Catalog metrics refresh failed")
		return
	}
	// Walk the registry rather than the result so curricula that lost all
	// rows drop their gauge to zero instead of freezing.
	for _, cur := range data.AllCurricula {
		a.metrics.SetCatalogCourses(cur.Name, float64(counts[cur.Name]))
	}
}

// progressReconcile periodically re-derives percentages from recorded
// study time. A catalog re-sync can change a course's effort or duration
// strings, which shifts the time-derived estimate; rows whose fresh
// suggestion beats the stored percentage by the configured margin are
// rewritten.
func (a *Application) progressReconcile(ctx context.Context) {
	a.logger.Debug("Progress reconciliation job started")
	defer a.logger.Debug("Progress reconciliation job stopped")

	ticker := time.NewTicker(config.ProgressReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Debug("Progress reconciliation received shutdown signal")
			return
		case <-ticker.C:
			a.runProgressReconcile(ctx)
		}
	}
}

func (a *Application) runProgressReconcile(ctx context.Context) {
	if a.schedule != nil {
		claimed, err := a.schedule.Claim(ctx, maintenance.JobReconcile, config.ProgressReconcileInterval)
		if err != nil {
			// Reconciliation is idempotent, so a duplicate run across
			// instances is the cheaper failure.
			a.logger.WithError(err).Warn("Reconcile schedule claim failed; running anyway")
		} else if !claimed {
			a.logger.Debug("Progress reconciliation already claimed for this interval")
			return
		}
	}

	rows, err := a.db.GetAllProgress(ctx)
	if err != nil {
		a.logger.WithError(err).Warn("Progress reconciliation load failed")
		return
	}

	updated := 0
	for i := range rows {
		p := &rows[i]
		if p.TimeSpentHours <= 0 || p.Status == progress.StatusCompleted {
			continue
		}
		if ctx.Err() != nil {
			return
		}

		courseRow, err := a.db.GetCourseByID(ctx, p.CourseID)
		if err != nil || courseRow == nil {
			continue
		}

		estimated, _ := progress.EstimateTotalHours(courseRow.Effort, courseRow.Duration)
		suggested := progress.SuggestedPercentage(p.TimeSpentHours, estimated)
		if !progress.WorthBulkUpdate(suggested, p.Percentage) {
			continue
		}

		st := progress.State{
			Status:         p.Status,
			Percentage:     p.Percentage,
			TimeSpentHours: p.TimeSpentHours,
			Notes:          p.Notes,
			StartedAt:      p.StartedAt,
			CompletedAt:    p.CompletedAt,
		}
		now := time.Now().UTC()
		if err := progress.Apply(&st, progress.Update{Percentage: &suggested}, estimated, now); err != nil {
			continue
		}

		row := &storage.Progress{
			CourseID:       p.CourseID,
			Status:         st.Status,
			Percentage:     st.Percentage,
			TimeSpentHours: st.TimeSpentHours,
			Notes:          st.Notes,
			StartedAt:      st.StartedAt,
			CompletedAt:    st.CompletedAt,
			UpdatedAt:      now,
		}
		if err := a.db.UpdateProgress(ctx, row); err != nil {
			a.logger.WithError(err).Warnf("Progress reconciliation write failed: %s", p.CourseID)
			continue
		}
		a.metrics.RecordProgressUpdate(courseRow.Curriculum)
		if a.deltas != nil {
			if err := a.deltas.RecordProgress(ctx, row); err != nil {
				a.logger.WithError(err).Warnf("Failed to append progress delta: %s", p.CourseID)
			}
		}
		updated++
	}

	if updated > 0 {
		a.logger.WithField("updated", updated).Info("Reconciled percentages with recorded study time")
	}
}

// readinessMiddleware rejects API requests with 503 until initial warmup
// completes. Callers retry with backoff, so a cold instance fills its
// catalog before serving empty responses.
func (a *Application) readinessMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.cfg.WaitForWarmup && !a.readinessState.IsReady() {
			status := a.readinessState.Status()
			a.logger.WithField("elapsed_seconds", status.ElapsedSeconds).
				Debug("API request rejected: warmup in progress")
			c.Header("Retry-After", "60")
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":       "service warming up",
				"retry_after": 60,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// globalRateLimitMiddleware is the whole-service valve in front of the
// per-client metering: one bucket shared by every caller. An exhausted
// bucket means the instance is saturated, not that this client
// misbehaved, so the reply is 503. A request rejected downstream still
// consumed a global token, since it arrived and took capacity.
func (a *Application) globalRateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.globalLimiter != nil && !a.globalLimiter.Allow() {
			a.metrics.RecordRateLimiterDrop("global")
			c.Header("Retry-After", "1")
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service overloaded"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// clientRateLimitMiddleware enforces the per-client token bucket on
// mutating API routes. Reads stay unmetered; the client key also lands in
// the request context for log correlation.
func (a *Application) clientRateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		c.Request = c.Request.WithContext(ctxutil.WithClientKey(c.Request.Context(), key))

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		if !a.clientLimiter.Allow(key) {
			c.Header("Retry-After", "2")
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// syncRateLimitMiddleware adds the sync-trigger budget on top of the
// client bucket: small burst, slow refill, rolling daily cap.
func (a *Application) syncRateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.syncLimiter.Allow(c.ClientIP()) {
			c.Header("Retry-After", "300")
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "sync rate limit exceeded"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// securityHeadersMiddleware adds security headers to responses.
func securityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'none'")
		c.Header("X-Permitted-Cross-Domain-Policies", "none")
		c.Next()
	}
}

// loggingMiddleware logs HTTP requests with status-based log levels:
// 5xx=Error, 4xx=Warn, 404=Debug, 3xx/2xx=Debug.
func loggingMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		requestID := c.GetHeader("X-Request-Id")
		if requestID == "" {
			requestID = c.GetHeader("X-Request-ID")
		}
		if requestID == "" {
			requestID = c.GetHeader("X-Correlation-Id")
		}
		if requestID == "" {
			requestID = c.GetHeader("X-Correlation-ID")
		}
		if requestID != "" {
			ctx := ctxutil.WithRequestID(c.Request.Context(), requestID)
			c.Request = c.Request.WithContext(ctx)
		}

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		entry := log.WithField("http_method", method).
			WithField("http_path", path).
			WithField("http_status", status).
			WithField("duration_ms", duration.Milliseconds()).
			WithField("client_ip", c.ClientIP())

		if requestID != "" {
			entry = entry.WithRequestID(requestID)
		}

		if status >= 500 {
			entry.Error("HTTP request failed")
		} else if status >= 400 && status != 404 {
			entry.Warn("HTTP request rejected")
		} else if status == 404 {
			entry.Debug("HTTP request not found")
		} else {
			entry.Debug("HTTP request completed")
		}
	}
}
