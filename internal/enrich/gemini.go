// Gemini tagger using the official google.golang.org/genai SDK.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"
)

// geminiTagger tags courses using Google's Gemini API.
type geminiTagger struct {
	client *genai.Client
	model  string
}

// newGeminiTagger creates a Gemini-backed tagger.
// Returns nil (no error) if the API key is empty.
func newGeminiTagger(ctx context.Context, apiKey, model string) (*geminiTagger, error) {
	if apiKey == "" {
		return nil, nil
	}
	if model == "" {
		model = DefaultGeminiModels[0]
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &geminiTagger{client: client, model: model}, nil
}

// Tag implements Tagger.
func (t *geminiTagger) Tag(ctx context.Context, course CourseInfo) ([]string, error) {
	if t == nil || t.client == nil {
		return nil, errors.New("gemini tagger not configured")
	}

	config := &genai.GenerateContentConfig{
		// Low temperature keeps tags stable across runs.
		Temperature:      genai.Ptr[float32](0.2),
		MaxOutputTokens:  120,
		ResponseMIMEType: "application/json",
	}

	start := time.Now()
	resp, err := t.client.Models.GenerateContent(ctx, t.model, genai.Text(topicPrompt(course)), config)
	duration := time.Since(start)

	if err != nil {
		slog.WarnContext(ctx, "Gemini tagging call failed",
			"model", t.model,
			"course", course.Name,
			"duration_ms", duration.Milliseconds(),
			"error", err)
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return nil, WrapError(err, ProviderGemini, apiErr.Code)
		}
		return nil, WrapError(err, ProviderGemini, 0)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errors.New("empty response from model")
	}

	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			out.WriteString(part.Text)
		}
	}

	topics, err := parseTopics(out.String())
	if err != nil {
		return nil, err
	}

	if resp.UsageMetadata != nil {
		slog.DebugContext(ctx, "Gemini tagging completed",
			"model", t.model,
			"course", course.Name,
			"topics", len(topics),
			"total_tokens", resp.UsageMetadata.TotalTokenCount,
			"duration_ms", duration.Milliseconds())
	}

	return topics, nil
}

// Provider implements Tagger.
func (t *geminiTagger) Provider() Provider {
	return ProviderGemini
}

// Close implements Tagger. The genai client holds no connections to release.
func (t *geminiTagger) Close() error {
	return nil
}
