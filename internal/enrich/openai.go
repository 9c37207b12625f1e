// OpenAI-compatible tagger for Groq and Cerebras.
// Both providers expose the Chat Completions API, so one implementation
// parameterized by base URL covers them.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// openAITagger tags courses through an OpenAI-compatible endpoint.
type openAITagger struct {
	client   openai.Client
	provider Provider
	model    string
}

// newOpenAITagger creates a tagger for an OpenAI-compatible provider.
// Returns nil (no error) if the API key is empty.
func newOpenAITagger(provider Provider, apiKey, model string) (*openAITagger, error) {
	if apiKey == "" {
		return nil, nil
	}

	baseURL, ok := ProviderEndpoint[provider]
	if !ok {
		return nil, fmt.Errorf("provider %s has no OpenAI-compatible endpoint", provider)
	}
	if model == "" {
		models := defaultModels(provider)
		if len(models) == 0 {
			return nil, fmt.Errorf("provider %s has no default models", provider)
		}
		model = models[0]
	}

	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	)

	return &openAITagger{client: client, provider: provider, model: model}, nil
}

// Tag implements Tagger.
func (t *openAITagger) Tag(ctx context.Context, course CourseInfo) ([]string, error) {
	if t == nil {
		return nil, errors.New("tagger not configured")
	}

	params := openai.ChatCompletionNewParams{
		Model: t.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(topicPrompt(course)),
		},
		Temperature: openai.Float(0.2),
		MaxTokens:   openai.Int(120),
	}

	start := time.Now()
	resp, err := t.client.Chat.Completions.New(ctx, params)
	duration := time.Since(start)

	if err != nil {
		slog.WarnContext(ctx, "tagging call failed",
			"provider", t.provider,
			"model", t.model,
			"course", course.Name,
			"duration_ms", duration.Milliseconds(),
			"error", err)
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, WrapError(err, t.provider, apiErr.StatusCode)
		}
		return nil, WrapError(err, t.provider, 0)
	}

	if resp == nil || len(resp.Choices) == 0 {
		return nil, errors.New("empty response from model")
	}

	topics, err := parseTopics(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	slog.DebugContext(ctx, "tagging completed",
		"provider", t.provider,
		"model", t.model,
		"course", course.Name,
		"topics", len(topics),
		"total_tokens", resp.Usage.TotalTokens,
		"duration_ms", duration.Milliseconds())

	return topics, nil
}

// Provider implements Tagger.
func (t *openAITagger) Provider() Provider {
	return t.provider
}

// Close implements Tagger.
func (t *openAITagger) Close() error {
	return nil
}
