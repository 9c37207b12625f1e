// Package sentry provides Sentry SDK initialization for Better Stack
// error tracking. HTTP panics reach it through the gin middleware;
// background jobs report failures through CaptureError. With no token
// configured every helper is a no-op.
package sentry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

// Config holds the Better Stack Errors connection settings.
type Config struct {
	// Token is the Better Stack Errors application token.
	// Empty disables error tracking.
	Token string

	// Host is the ingesting host (e.g., "errors.betterstack.com").
	Host string

	// Environment identifies the deployment environment (e.g., "production").
	Environment string

	// Release ties captured events to an application version.
	Release string

	// SampleRate controls error sampling (0.0-1.0, default 1.0).
	SampleRate float64

	// Debug enables Sentry SDK debug logging.
	Debug bool
}

// Initialize sets up the Sentry SDK. A missing token disables tracking
// and returns nil; a token without a host is a configuration error.
func Initialize(cfg Config) error {
	if cfg.Token == "" {
		return nil
	}
	if cfg.Host == "" {
		return fmt.Errorf("sentry host is required when token is provided")
	}

	// Better Stack ignores the project ID, but the SDK requires one in the DSN.
	dsn := fmt.Sprintf("https://%s@%s/1", cfg.Token, cfg.Host)

	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = 1.0
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		SampleRate:       sampleRate,
		Debug:            cfg.Debug,
		AttachStacktrace: true,
	})
}

// IsEnabled reports whether a Sentry client is active.
func IsEnabled() bool {
	return sentry.CurrentHub().Client() != nil
}

// CaptureError reports err to Sentry, preferring the hub bound to ctx so
// request-scoped tags survive. Context cancellation is not reported;
// shutdown tears background jobs down by cancel.
func CaptureError(ctx context.Context, err error) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.CaptureException(err)
}

// Flush waits for buffered events to reach the server, up to timeout.
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}
