// Tagger construction from configuration.
// Builds the full fallback chain: every configured provider contributes
// one tagger per model, in provider order then model order.
package enrich

import (
	"context"
	"log/slog"

	"github.com/garyellow/ossu-tracker-go/internal/sliceutil"
)

// CreateTagger builds a tagger chain from the configuration.
// Returns (nil, nil) when no provider has an API key; topic enrichment
// is simply disabled in that case.
func CreateTagger(ctx context.Context, cfg Config) (Tagger, error) {
	providers := cfg.Providers
	if len(providers) == 0 {
		providers = DefaultProviders
	}
	// A provider listed twice still contributes its models once.
	providers = sliceutil.Deduplicate(providers, func(p Provider) Provider { return p })

	var chain []Tagger
	for _, provider := range providers {
		pc := cfg.providerConfig(provider)
		if pc == nil || pc.APIKey == "" {
			continue
		}

		models := pc.Models
		if len(models) == 0 {
			models = defaultModels(provider)
		}

		for _, model := range models {
			switch provider {
			case ProviderGemini:
				tagger, err := newGeminiTagger(ctx, pc.APIKey, model)
				if err != nil {
					slog.WarnContext(ctx, "failed to create tagger",
						"provider", provider, "model", model, "error", err)
					continue
				}
				if tagger != nil {
					chain = append(chain, tagger)
				}
			default:
				tagger, err := newOpenAITagger(provider, pc.APIKey, model)
				if err != nil {
					slog.WarnContext(ctx, "failed to create tagger",
						"provider", provider, "model", model, "error", err)
					continue
				}
				if tagger != nil {
					chain = append(chain, tagger)
				}
			}
		}
	}

	if len(chain) == 0 {
		slog.InfoContext(ctx, "no LLM provider configured, topic enrichment disabled")
		return nil, nil
	}

	slog.InfoContext(ctx, "topic tagger configured",
		"primary", chain[0].Provider().String(),
		"chain_size", len(chain))
	return NewFallbackTagger(cfg.Retry, chain...), nil
}
