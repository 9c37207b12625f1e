package sentry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// Runs before TestInitialize installs a process-global client, so every
// call here must be a no-op.
func TestCaptureError_Disabled(t *testing.T) {
	if IsEnabled() {
		t.Fatal("expected no client before initialization")
	}

	ctx := context.Background()
	CaptureError(ctx, nil)
	CaptureError(ctx, errors.New("sync failed"))
	CaptureError(ctx, context.Canceled)
	CaptureError(ctx, fmt.Errorf("catalog refresh: %w", context.Canceled))
}

func TestFlush_NoEvents(t *testing.T) {
	if !Flush(100 * time.Millisecond) {
		t.Error("Flush() = false with no events pending, want true")
	}
}

func TestInitialize(t *testing.T) {
	// The SDK keeps a process-global client; subtests run in order so the
	// disabled checks come before any subtest installs one.

	t.Run("empty token disables tracking", func(t *testing.T) {
		if err := Initialize(Config{Token: ""}); err != nil {
			t.Errorf("Initialize() error = %v, want nil", err)
		}
		if IsEnabled() {
			t.Error("IsEnabled() = true with empty token, want false")
		}
	})

	t.Run("token without host", func(t *testing.T) {
		if err := Initialize(Config{Token: "test-token", Host: ""}); err == nil {
			t.Error("Initialize() error = nil, want error when host is missing")
		}
	})

	t.Run("valid config", func(t *testing.T) {
		err := Initialize(Config{
			Token:       "test-token",
			Host:        "errors.betterstack.com",
			Environment: "test",
			Release:     "0.0.0-test",
			SampleRate:  1.0,
		})
		if err != nil {
			t.Fatalf("Initialize() error = %v, want nil", err)
		}
		if !IsEnabled() {
			t.Error("IsEnabled() = false after initialization, want true")
		}
		Flush(time.Second)
	})

	t.Run("zero sample rate defaults to full sampling", func(t *testing.T) {
		err := Initialize(Config{
			Token:      "test-token-2",
			Host:       "errors.betterstack.com",
			SampleRate: 0,
		})
		if err != nil {
			t.Errorf("Initialize() error = %v, want nil", err)
		}
		Flush(time.Second)
	})
}
