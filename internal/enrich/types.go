// Package enrich tags catalog courses with topic keywords using LLM APIs
// (Gemini, Groq, and Cerebras). This file contains shared types, interfaces,
// and configuration for multi-provider fallback support.
//
// Architecture:
// - Gemini: Uses google.golang.org/genai (official SDK)
// - Groq/Cerebras: Uses github.com/openai/openai-go/v3 (OpenAI-compatible API)
//
// Fallback Strategy (3-layer):
// 1. Model Retry: Same model retried with exponential backoff
// 2. Model Chain: Next model in same provider's model list
// 3. Provider Chain: Next provider in the configured provider order
package enrich

import (
	"context"
	"time"
)

// Provider represents an LLM provider.
type Provider string

const (
	// ProviderGemini represents Google's Gemini API (non-OpenAI-compatible).
	ProviderGemini Provider = "gemini"
	// ProviderGroq represents Groq's API (OpenAI-compatible, fast inference).
	ProviderGroq Provider = "groq"
	// ProviderCerebras represents Cerebras's API (OpenAI-compatible, ultra-fast inference).
	ProviderCerebras Provider = "cerebras"
)

// ProviderEndpoint defines the base URL for OpenAI-compatible providers.
// Gemini is not included as it uses a different SDK.
var ProviderEndpoint = map[Provider]string{
	ProviderGroq:     "https://api.groq.com/openai/v1/",
	ProviderCerebras: "https://api.cerebras.ai/v1/",
}

// String returns the string representation of the provider.
func (p Provider) String() string {
	return string(p)
}

// CourseInfo is the course identity handed to a tagger.
type CourseInfo struct {
	Name        string
	Curriculum  string
	Category    string
	Description string
}

// Tagger produces topic tags for a course.
// Implementations include Gemini (native) and OpenAI-compatible providers
// (Groq, Cerebras), plus the fallback chain that wraps them.
type Tagger interface {
	// Tag returns 1-5 lowercase topic tags for the course.
	Tag(ctx context.Context, course CourseInfo) ([]string, error)
	// Provider returns the provider type for metrics.
	Provider() Provider
	// Close releases any resources held by the tagger.
	Close() error
}

// RetryConfig defines retry behavior for LLM API calls.
// Uses AWS-recommended Full Jitter exponential backoff.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including initial).
	MaxAttempts int
	// InitialDelay is the base delay before first retry.
	InitialDelay time.Duration
	// MaxDelay is the maximum delay between retries.
	MaxDelay time.Duration
}

// ProviderConfig holds one provider's API key and ordered model chain.
type ProviderConfig struct {
	APIKey string
	// Models is the ordered list of models to try.
	// First model is primary, rest are fallbacks tried in order.
	Models []string
}

// Config selects providers and retry behavior for topic tagging.
type Config struct {
	// Providers is the ordered list of providers to try.
	// Empty means DefaultProviders (only those with API keys are used).
	Providers []Provider

	Gemini   ProviderConfig
	Groq     ProviderConfig
	Cerebras ProviderConfig

	Retry RetryConfig
}

// providerConfig returns the configuration for a specific provider.
func (c *Config) providerConfig(p Provider) *ProviderConfig {
	switch p {
	case ProviderGemini:
		return &c.Gemini
	case ProviderGroq:
		return &c.Groq
	case ProviderCerebras:
		return &c.Cerebras
	default:
		return nil
	}
}

// Tagging contract limits.
const (
	// MaxTopics is the most tags a course can carry.
	MaxTopics = 5
	// maxTopicLength rejects "tags" that are really sentences.
	maxTopicLength = 40
)

// Default model configurations.
// First element is primary model, subsequent elements are fallbacks.
var (
	// DefaultGeminiModels is the default model chain for Gemini tagging.
	DefaultGeminiModels = []string{"gemini-2.5-flash", "gemini-2.5-flash-lite"}

	// DefaultGroqModels is the default model chain for Groq tagging.
	DefaultGroqModels = []string{"llama-3.3-70b-versatile", "llama-3.1-8b-instant"}

	// DefaultCerebrasModels is the default model chain for Cerebras tagging.
	DefaultCerebrasModels = []string{"llama-3.3-70b", "llama-3.1-8b"}

	// DefaultProviders is the default provider order for fallback.
	DefaultProviders = []Provider{ProviderGemini, ProviderGroq, ProviderCerebras}
)

// defaultModels returns the default model chain for a provider.
func defaultModels(p Provider) []string {
	switch p {
	case ProviderGemini:
		return DefaultGeminiModels
	case ProviderGroq:
		return DefaultGroqModels
	case ProviderCerebras:
		return DefaultCerebrasModels
	default:
		return nil
	}
}

// Retry configuration defaults.
const (
	DefaultMaxRetryAttempts  = 2
	DefaultInitialRetryDelay = 500 * time.Millisecond
	DefaultMaxRetryDelay     = 3 * time.Second
)

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  DefaultMaxRetryAttempts,
		InitialDelay: DefaultInitialRetryDelay,
		MaxDelay:     DefaultMaxRetryDelay,
	}
}

// ParseProviders maps provider names to Provider values, dropping
// unknown names. Used to read the ordered provider list from config.
func ParseProviders(names []string) []Provider {
	providers := make([]Provider, 0, len(names))
	for _, name := range names {
		switch Provider(name) {
		case ProviderGemini, ProviderGroq, ProviderCerebras:
			providers = append(providers, Provider(name))
		}
	}
	return providers
}
