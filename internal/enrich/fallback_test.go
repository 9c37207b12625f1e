package enrich

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/garyellow/ossu-tracker-go/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// mockTagger is a test mock for the Tagger interface.
type mockTagger struct {
	tagFunc     func(ctx context.Context, course CourseInfo) ([]string, error)
	provider    Provider
	closeCalled bool
}

func (m *mockTagger) Tag(ctx context.Context, course CourseInfo) ([]string, error) {
	if m.tagFunc != nil {
		return m.tagFunc(ctx, course)
	}
	return nil, errors.New("not implemented")
}

func (m *mockTagger) Provider() Provider {
	return m.provider
}

func (m *mockTagger) Close() error {
	m.closeCalled = true
	return nil
}

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  2,
		InitialDelay: time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
	}
}

func TestFallbackTagger_Tag_PrimarySuccess(t *testing.T) {
	t.Parallel()
	fallbackCalled := false
	primary := &mockTagger{
		tagFunc: func(_ context.Context, _ CourseInfo) ([]string, error) {
			return []string{"python", "algorithms"}, nil
		},
		provider: ProviderGemini,
	}
	fallback := &mockTagger{
		tagFunc: func(_ context.Context, _ CourseInfo) ([]string, error) {
			fallbackCalled = true
			return []string{"wrong"}, nil
		},
		provider: ProviderGroq,
	}

	tagger := NewFallbackTagger(fastRetryConfig(), primary, fallback)

	topics, err := tagger.Tag(context.Background(), CourseInfo{Name: "Test"})
	if err != nil {
		t.Fatalf("Tag() error = %v, want nil", err)
	}
	if len(topics) != 2 || topics[0] != "python" {
		t.Errorf("Tag() = %v, want [python algorithms]", topics)
	}
	if fallbackCalled {
		t.Error("fallback should not be called when primary succeeds")
	}
}

func TestFallbackTagger_Tag_RetryThenFallback(t *testing.T) {
	t.Parallel()
	cfg := fastRetryConfig()

	primaryCalls := 0
	primary := &mockTagger{
		tagFunc: func(_ context.Context, _ CourseInfo) ([]string, error) {
			primaryCalls++
			return nil, errors.New("service unavailable") // retryable
		},
		provider: ProviderGemini,
	}
	fallback := &mockTagger{
		tagFunc: func(_ context.Context, _ CourseInfo) ([]string, error) {
			return []string{"statistics"}, nil
		},
		provider: ProviderGroq,
	}

	tagger := NewFallbackTagger(cfg, primary, fallback)

	topics, err := tagger.Tag(context.Background(), CourseInfo{Name: "Test"})
	if err != nil {
		t.Fatalf("Tag() error = %v, want nil (fallback should succeed)", err)
	}
	if len(topics) != 1 || topics[0] != "statistics" {
		t.Errorf("Tag() = %v, want [statistics]", topics)
	}
	// Primary gets MaxAttempts tries before the chain moves on.
	if primaryCalls != cfg.MaxAttempts {
		t.Errorf("primary called %d times, want %d", primaryCalls, cfg.MaxAttempts)
	}
}

func TestFallbackTagger_Tag_QuotaSkipsRetry(t *testing.T) {
	t.Parallel()
	primaryCalls := 0
	primary := &mockTagger{
		tagFunc: func(_ context.Context, _ CourseInfo) ([]string, error) {
			primaryCalls++
			return nil, errors.New("quota exceeded") // fallback, not retry
		},
		provider: ProviderGemini,
	}
	fallback := &mockTagger{
		tagFunc: func(_ context.Context, _ CourseInfo) ([]string, error) {
			return []string{"databases"}, nil
		},
		provider: ProviderCerebras,
	}

	tagger := NewFallbackTagger(fastRetryConfig(), primary, fallback)

	topics, err := tagger.Tag(context.Background(), CourseInfo{Name: "Test"})
	if err != nil {
		t.Fatalf("Tag() error = %v, want nil", err)
	}
	if len(topics) != 1 || topics[0] != "databases" {
		t.Errorf("Tag() = %v, want [databases]", topics)
	}
	if primaryCalls != 1 {
		t.Errorf("primary called %d times, want 1 (quota errors skip retry)", primaryCalls)
	}
}

func TestFallbackTagger_Tag_PermanentErrorStopsChain(t *testing.T) {
	t.Parallel()
	primary := &mockTagger{
		tagFunc: func(_ context.Context, _ CourseInfo) ([]string, error) {
			return nil, errors.New("invalid api key") // permanent
		},
		provider: ProviderGemini,
	}

	fallbackCalled := false
	fallback := &mockTagger{
		tagFunc: func(_ context.Context, _ CourseInfo) ([]string, error) {
			fallbackCalled = true
			return []string{"never"}, nil
		},
		provider: ProviderGroq,
	}

	tagger := NewFallbackTagger(fastRetryConfig(), primary, fallback)

	_, err := tagger.Tag(context.Background(), CourseInfo{Name: "Test"})
	if err == nil {
		t.Error("Tag() should return error for permanent failure")
	}
	if fallbackCalled {
		t.Error("fallback should not be called for permanent errors")
	}
}

func TestFallbackTagger_Tag_AllFail(t *testing.T) {
	t.Parallel()
	primary := &mockTagger{
		tagFunc: func(_ context.Context, _ CourseInfo) ([]string, error) {
			return nil, errors.New("service unavailable")
		},
		provider: ProviderGemini,
	}
	fallback := &mockTagger{
		tagFunc: func(_ context.Context, _ CourseInfo) ([]string, error) {
			return nil, errors.New("bad gateway")
		},
		provider: ProviderGroq,
	}

	tagger := NewFallbackTagger(fastRetryConfig(), primary, fallback)

	_, err := tagger.Tag(context.Background(), CourseInfo{Name: "Test"})
	if err == nil {
		t.Fatal("Tag() should return error when every tagger fails")
	}
	if !strings.Contains(err.Error(), "all taggers failed") {
		t.Errorf("Tag() error = %v, want wrapped chain failure", err)
	}
}

func TestFallbackTagger_Tag_NilAndEmpty(t *testing.T) {
	t.Parallel()
	var tagger *FallbackTagger
	if _, err := tagger.Tag(context.Background(), CourseInfo{Name: "Test"}); err == nil {
		t.Error("Tag() should return error for nil tagger")
	}

	tagger = NewFallbackTagger(fastRetryConfig())
	if _, err := tagger.Tag(context.Background(), CourseInfo{Name: "Test"}); err == nil {
		t.Error("Tag() should return error for empty chain")
	}
}

func TestFallbackTagger_Tag_ContextCancellation(t *testing.T) {
	t.Parallel()
	primary := &mockTagger{
		tagFunc: func(ctx context.Context, _ CourseInfo) ([]string, error) {
			return nil, ctx.Err()
		},
		provider: ProviderGemini,
	}

	tagger := NewFallbackTagger(fastRetryConfig(), primary)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tagger.Tag(ctx, CourseInfo{Name: "Test"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Tag() error = %v, want context.Canceled", err)
	}
}

func TestFallbackTagger_SkipsNilTaggers(t *testing.T) {
	t.Parallel()
	real := &mockTagger{
		tagFunc: func(_ context.Context, _ CourseInfo) ([]string, error) {
			return []string{"networks"}, nil
		},
		provider: ProviderGroq,
	}

	tagger := NewFallbackTagger(fastRetryConfig(), nil, real, nil)

	topics, err := tagger.Tag(context.Background(), CourseInfo{Name: "Test"})
	if err != nil {
		t.Fatalf("Tag() error = %v, want nil", err)
	}
	if len(topics) != 1 || topics[0] != "networks" {
		t.Errorf("Tag() = %v, want [networks]", topics)
	}
	if got := tagger.Provider(); got != ProviderGroq {
		t.Errorf("Provider() = %v, want %v", got, ProviderGroq)
	}
}

func TestFallbackTagger_Close(t *testing.T) {
	t.Parallel()
	primary := &mockTagger{provider: ProviderGemini}
	fallback := &mockTagger{provider: ProviderGroq}

	tagger := NewFallbackTagger(fastRetryConfig(), primary, fallback)
	if err := tagger.Close(); err != nil {
		t.Errorf("Close() error = %v, want nil", err)
	}
	if !primary.closeCalled {
		t.Error("primary.Close() was not called")
	}
	if !fallback.closeCalled {
		t.Error("fallback.Close() was not called")
	}
}

func TestFallbackTagger_RecordsMetrics(t *testing.T) {
	t.Parallel()
	primary := &mockTagger{
		tagFunc: func(_ context.Context, _ CourseInfo) ([]string, error) {
			return []string{"graphs"}, nil
		},
		provider: ProviderGemini,
	}

	tagger := NewFallbackTagger(fastRetryConfig(), primary)
	tagger.SetMetrics(metrics.New(prometheus.NewRegistry()))

	if _, err := tagger.Tag(context.Background(), CourseInfo{Name: "Test"}); err != nil {
		t.Fatalf("Tag() error = %v, want nil", err)
	}
}
