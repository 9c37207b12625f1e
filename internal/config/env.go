// Package config defines environment variable keys for configuration.
package config

//nolint:gosec,revive // Environment variable keys are not credentials and do not need per-const comments.
const (
	// Server
	EnvPort            = "OSSU_PORT"
	EnvLogLevel        = "OSSU_LOG_LEVEL"
	EnvShutdownTimeout = "OSSU_SHUTDOWN_TIMEOUT"
	EnvInstanceID      = "OSSU_INSTANCE_ID"

	// Metrics
	EnvMetricsUsername = "OSSU_METRICS_USERNAME"
	EnvMetricsPassword = "OSSU_METRICS_PASSWORD"

	// Data
	EnvDataDir = "OSSU_DATA_DIR"

	// Document fetch
	EnvFetchTimeout   = "OSSU_FETCH_TIMEOUT"
	EnvFetchRateLimit = "OSSU_FETCH_RATE_LIMIT"

	// Sync
	EnvSyncMinCourses      = "OSSU_SYNC_MIN_COURSES"
	EnvSyncMinTotalCourses = "OSSU_SYNC_MIN_TOTAL_COURSES"
	EnvSyncRefreshInterval = "OSSU_SYNC_REFRESH_INTERVAL"
	EnvWarmupWait          = "OSSU_WARMUP_WAIT"
	EnvWarmupGracePeriod   = "OSSU_WARMUP_GRACE_PERIOD"
	EnvWarmupConcurrency   = "OSSU_WARMUP_CONCURRENCY"

	// Deduplication
	EnvDedupeSimilarity        = "OSSU_DEDUPE_SIMILARITY"
	EnvDedupeContainmentMinLen = "OSSU_DEDUPE_CONTAINMENT_MIN_LEN"

	// Rate Limits
	EnvGlobalRateRPS    = "OSSU_GLOBAL_RATE_RPS"
	EnvClientRateBurst  = "OSSU_CLIENT_RATE_BURST"
	EnvClientRateRefill = "OSSU_CLIENT_RATE_REFILL"

	// Topic enrichment (LLM)
	EnvEnrichEnabled        = "OSSU_ENRICH_ENABLED"
	EnvLLMProviders         = "OSSU_LLM_PROVIDERS"
	EnvGeminiAPIKey         = "OSSU_GEMINI_API_KEY"
	EnvGroqAPIKey           = "OSSU_GROQ_API_KEY"
	EnvCerebrasAPIKey       = "OSSU_CEREBRAS_API_KEY"
	EnvGeminiEnrichModels   = "OSSU_GEMINI_ENRICH_MODELS"
	EnvGroqEnrichModels     = "OSSU_GROQ_ENRICH_MODELS"
	EnvCerebrasEnrichModels = "OSSU_CEREBRAS_ENRICH_MODELS"

	// R2 Snapshot Feature
	EnvR2Enabled         = "OSSU_R2_ENABLED"
	EnvR2Endpoint        = "OSSU_R2_ENDPOINT"
	EnvR2AccessKeyID     = "OSSU_R2_ACCESS_KEY_ID"
	EnvR2SecretAccessKey = "OSSU_R2_SECRET_ACCESS_KEY"
	EnvR2BucketName      = "OSSU_R2_BUCKET_NAME"
	EnvR2SnapshotKey     = "OSSU_R2_SNAPSHOT_KEY"
	EnvR2LockKey         = "OSSU_R2_LOCK_KEY"
	EnvR2LockTTL         = "OSSU_R2_LOCK_TTL"
	EnvR2DeltaPrefix     = "OSSU_R2_DELTA_PREFIX"
	EnvR2ScheduleKey     = "OSSU_R2_SCHEDULE_KEY"

	// Sentry Feature
	EnvSentryToken       = "OSSU_SENTRY_TOKEN"
	EnvSentryHost        = "OSSU_SENTRY_HOST"
	EnvSentryEnvironment = "OSSU_SENTRY_ENVIRONMENT"
	EnvSentrySampleRate  = "OSSU_SENTRY_SAMPLE_RATE"

	// Better Stack Feature
	EnvBetterStackToken    = "OSSU_BETTERSTACK_TOKEN"
	EnvBetterStackEndpoint = "OSSU_BETTERSTACK_ENDPOINT"
)
