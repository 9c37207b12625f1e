// Package config provides application configuration management.
// It loads settings from environment variables and provides defaults for
// server mode, sync thresholds, fetch timeouts, and optional integrations.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Server Configuration
	Port            string
	LogLevel        string
	ShutdownTimeout time.Duration
	InstanceID      string // Identifies this instance in delta logs and locks (default: hostname)

	// Metrics Authentication
	MetricsUsername string // Username for /metrics endpoint Basic Auth (default: "prometheus")
	MetricsPassword string // Password for /metrics endpoint Basic Auth (empty = no auth)

	// Data Configuration
	DataDir string // Data directory for SQLite database

	// Document Fetch Configuration
	FetchTimeout   time.Duration // Per-location request bound (default 30s)
	FetchRateLimit time.Duration // Minimum delay between document fetches

	// Sync Configuration
	SyncMinCourses      int           // Per-curriculum fallback threshold
	SyncMinTotalCourses int           // Whole-run fallback threshold
	SyncRefreshInterval time.Duration // Background catalog refresh cadence
	WaitForWarmup       bool          // /ready reports not-ready until warmup completes
	WarmupGracePeriod   time.Duration // Warmup readiness grace timeout
	WarmupConcurrency   int           // Concurrent curriculum syncs during warmup

	// Deduplication Configuration
	DedupeSimilarity        float64 // Sequence similarity ratio threshold
	DedupeContainmentMinLen int     // Substring-rule minimum name length

	// Rate Limits (Token Bucket Algorithm)
	GlobalRateRPS    float64 // Global rate limit in requests per second (0 disables the valve)
	ClientRateBurst  float64 // Maximum burst tokens per client key
	ClientRateRefill float64 // Tokens refilled per second per client key

	// Topic Enrichment (LLM) Configuration
	EnrichEnabled        bool
	LLMProviders         []string // Ordered provider preference: gemini, groq, cerebras
	GeminiAPIKey         string
	GroqAPIKey           string
	CerebrasAPIKey       string
	GeminiEnrichModels   []string
	GroqEnrichModels     []string
	CerebrasEnrichModels []string

	// Object Storage (R2) Configuration
	R2Enabled         bool
	R2Endpoint        string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2SnapshotKey     string
	R2LockKey         string
	R2LockTTL         time.Duration
	R2DeltaPrefix     string
	R2ScheduleKey     string

	// Error Tracking Configuration
	SentryToken       string
	SentryHost        string
	SentryEnvironment string
	SentrySampleRate  float64

	// Log Shipping Configuration
	BetterStackToken    string
	BetterStackEndpoint string
}

// Load reads configuration from environment variables.
// The caller is responsible for loading any .env file beforehand
// (cmd binaries run godotenv.Load at startup).
func Load() (*Config, error) {
	cfg := &Config{
		// Server Configuration
		Port:            getEnv(EnvPort, "10000"),
		LogLevel:        getEnv(EnvLogLevel, "info"),
		ShutdownTimeout: getDurationEnv(EnvShutdownTimeout, GracefulShutdown),
		InstanceID:      getEnv(EnvInstanceID, defaultInstanceID()),

		// Metrics Authentication
		MetricsUsername: getEnv(EnvMetricsUsername, "prometheus"),
		MetricsPassword: getEnv(EnvMetricsPassword, ""),

		// Data Configuration
		DataDir: getEnv(EnvDataDir, getDefaultDataDir()),

		// Document Fetch Configuration
		FetchTimeout:   getDurationEnv(EnvFetchTimeout, FetchRequest),
		FetchRateLimit: getDurationEnv(EnvFetchRateLimit, FetchRateLimit),

		// Sync Configuration
		SyncMinCourses:      getIntEnv(EnvSyncMinCourses, DefaultSyncMinCourses),
		SyncMinTotalCourses: getIntEnv(EnvSyncMinTotalCourses, DefaultSyncMinTotalCourses),
		SyncRefreshInterval: getDurationEnv(EnvSyncRefreshInterval, CatalogRefreshInterval),
		WaitForWarmup:       getBoolEnv(EnvWarmupWait, true),
		WarmupGracePeriod:   getDurationEnv(EnvWarmupGracePeriod, WarmupDefault),
		WarmupConcurrency:   getIntEnv(EnvWarmupConcurrency, 3),

		// Deduplication Configuration
		DedupeSimilarity:        getFloatEnv(EnvDedupeSimilarity, DefaultDedupeSimilarity),
		DedupeContainmentMinLen: getIntEnv(EnvDedupeContainmentMinLen, DefaultDedupeContainmentMinLen),

		// Rate Limits
		GlobalRateRPS:    getFloatEnv(EnvGlobalRateRPS, 100.0),
		ClientRateBurst:  getFloatEnv(EnvClientRateBurst, 10.0),
		ClientRateRefill: getFloatEnv(EnvClientRateRefill, 0.5), // 1 per 2s

		// Topic Enrichment Configuration
		EnrichEnabled:        getBoolEnv(EnvEnrichEnabled, true),
		LLMProviders:         getListEnv(EnvLLMProviders),
		GeminiAPIKey:         getEnv(EnvGeminiAPIKey, ""),
		GroqAPIKey:           getEnv(EnvGroqAPIKey, ""),
		CerebrasAPIKey:       getEnv(EnvCerebrasAPIKey, ""),
		GeminiEnrichModels:   getListEnv(EnvGeminiEnrichModels),
		GroqEnrichModels:     getListEnv(EnvGroqEnrichModels),
		CerebrasEnrichModels: getListEnv(EnvCerebrasEnrichModels),

		// Object Storage Configuration
		R2Enabled:         getBoolEnv(EnvR2Enabled, false),
		R2Endpoint:        getEnv(EnvR2Endpoint, ""),
		R2AccessKeyID:     getEnv(EnvR2AccessKeyID, ""),
		R2SecretAccessKey: getEnv(EnvR2SecretAccessKey, ""),
		R2BucketName:      getEnv(EnvR2BucketName, ""),
		R2SnapshotKey:     getEnv(EnvR2SnapshotKey, "snapshots/catalog.json.zst"),
		R2LockKey:         getEnv(EnvR2LockKey, "locks/sync.json"),
		R2LockTTL:         getDurationEnv(EnvR2LockTTL, 10*time.Minute),
		R2DeltaPrefix:     getEnv(EnvR2DeltaPrefix, "deltas/"),
		R2ScheduleKey:     getEnv(EnvR2ScheduleKey, "schedule/state.json"),

		// Error Tracking Configuration
		SentryToken:       getEnv(EnvSentryToken, ""),
		SentryHost:        getEnv(EnvSentryHost, "errors.betterstack.com"),
		SentryEnvironment: getEnv(EnvSentryEnvironment, "production"),
		SentrySampleRate:  getFloatEnv(EnvSentrySampleRate, 1.0),

		// Log Shipping Configuration
		BetterStackToken:    getEnv(EnvBetterStackToken, ""),
		BetterStackEndpoint: getEnv(EnvBetterStackEndpoint, ""),
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if required configuration values are set
func (c *Config) Validate() error {
	var errs []error

	if c.Port == "" {
		errs = append(errs, errors.New(EnvPort+" is required"))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New(EnvDataDir+" is required"))
	}
	if c.FetchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvFetchTimeout, c.FetchTimeout))
	}
	if c.SyncMinCourses < 0 {
		errs = append(errs, fmt.Errorf("%s cannot be negative, got %d", EnvSyncMinCourses, c.SyncMinCourses))
	}
	if c.SyncMinTotalCourses < 0 {
		errs = append(errs, fmt.Errorf("%s cannot be negative, got %d", EnvSyncMinTotalCourses, c.SyncMinTotalCourses))
	}
	if c.DedupeSimilarity <= 0 || c.DedupeSimilarity > 1 {
		errs = append(errs, fmt.Errorf("%s must be in (0, 1], got %v", EnvDedupeSimilarity, c.DedupeSimilarity))
	}
	if c.DedupeContainmentMinLen < 0 {
		errs = append(errs, fmt.Errorf("%s cannot be negative, got %d", EnvDedupeContainmentMinLen, c.DedupeContainmentMinLen))
	}
	if c.WarmupConcurrency < 1 {
		errs = append(errs, fmt.Errorf("%s must be at least 1, got %d", EnvWarmupConcurrency, c.WarmupConcurrency))
	}
	if c.R2Enabled {
		if c.R2Endpoint == "" || c.R2AccessKeyID == "" || c.R2SecretAccessKey == "" || c.R2BucketName == "" {
			errs = append(errs, errors.New("R2 is enabled but endpoint/credentials/bucket are incomplete"))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// getEnv retrieves environment variable with fallback to default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv retrieves integer environment variable with fallback to default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getDurationEnv retrieves duration environment variable with fallback to default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getFloatEnv retrieves float64 environment variable with fallback to default value
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getBoolEnv retrieves boolean environment variable with fallback to default value
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getListEnv retrieves a comma-separated environment variable as a slice.
// Returns nil when unset so callers can distinguish "not configured".
func getListEnv(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// getDefaultDataDir returns platform-specific default data directory
func getDefaultDataDir() string {
	if runtime.GOOS == "windows" {
		return "./data"
	}
	return "/data"
}

func defaultInstanceID() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "unknown"
}

// SQLitePath returns the full path to the SQLite database file
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "tracker.db")
}

// HasLLMProvider returns true if at least one LLM provider is configured.
func (c *Config) HasLLMProvider() bool {
	return c.GeminiAPIKey != "" || c.GroqAPIKey != "" || c.CerebrasAPIKey != ""
}

// HasObjectStorage returns true if the R2 subsystem is enabled and complete.
func (c *Config) HasObjectStorage() bool {
	return c.R2Enabled && c.R2Endpoint != "" && c.R2AccessKeyID != "" &&
		c.R2SecretAccessKey != "" && c.R2BucketName != ""
}
