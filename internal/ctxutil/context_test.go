package ctxutil

import (
	"context"
	"testing"
)

func TestRequestIDContext(t *testing.T) {
	t.Parallel()

	t.Run("empty context", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		if requestID := GetRequestID(ctx); requestID != "" {
			t.Errorf("Expected empty string, got %s", requestID)
		}
	})

	t.Run("with request ID", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		expectedRequestID := "8f14e45f-ceea-4e52-a1bb-2c9f6c1f7a44"
		ctx = WithRequestID(ctx, expectedRequestID)
		requestID := GetRequestID(ctx)
		if requestID != expectedRequestID {
			t.Errorf("Expected requestID %s, got %s", expectedRequestID, requestID)
		}
	})

	t.Run("non-string value ignored", func(t *testing.T) {
		t.Parallel()
		ctx := context.WithValue(context.Background(), requestIDKey, 42)
		if requestID := GetRequestID(ctx); requestID != "" {
			t.Errorf("Expected empty string for non-string value, got %s", requestID)
		}
	})
}

func TestClientKeyContext(t *testing.T) {
	t.Parallel()

	t.Run("empty context", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		if clientKey := GetClientKey(ctx); clientKey != "" {
			t.Errorf("Expected empty string, got %s", clientKey)
		}
	})

	t.Run("with client key", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		expectedClientKey := "203.0.113.9"
		ctx = WithClientKey(ctx, expectedClientKey)
		clientKey := GetClientKey(ctx)
		if clientKey != expectedClientKey {
			t.Errorf("Expected clientKey %s, got %s", expectedClientKey, clientKey)
		}
	})

	t.Run("non-string value ignored", func(t *testing.T) {
		t.Parallel()
		ctx := context.WithValue(context.Background(), clientKeyKey, 42)
		if clientKey := GetClientKey(ctx); clientKey != "" {
			t.Errorf("Expected empty string for non-string value, got %s", clientKey)
		}
	})
}

func TestCurriculumContext(t *testing.T) {
	t.Parallel()

	t.Run("empty context", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		if curriculum := GetCurriculum(ctx); curriculum != "" {
			t.Errorf("Expected empty string, got %s", curriculum)
		}
	})

	t.Run("with curriculum", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		ctx = WithCurriculum(ctx, "computer-science")
		if curriculum := GetCurriculum(ctx); curriculum != "computer-science" {
			t.Errorf("Expected curriculum computer-science, got %s", curriculum)
		}
	})

	t.Run("values are independent", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		ctx = WithRequestID(ctx, "req-1")
		ctx = WithCurriculum(ctx, "math")
		if GetRequestID(ctx) != "req-1" {
			t.Error("request ID lost after adding curriculum")
		}
		if GetCurriculum(ctx) != "math" {
			t.Error("curriculum not stored")
		}
	})
}
