package llm

import (
	"fmt"

	"go.uber.org/zap"
)

// Providers accepted by NewClient.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config selects and configures a model provider.
type Config struct {
	Provider       string
	Endpoint       string
	Model          string
	EmbeddingModel string
	APIKey         string
	MaxTokens      int
}

// NewClient creates the client for the configured provider. An empty
// provider defaults to OpenAI, which also covers local OpenAI-compatible
// servers via Endpoint.
func NewClient(cfg *Config, logger *zap.Logger) (LLMClient, error) {
	switch cfg.Provider {
	case "", ProviderOpenAI:
		return NewOpenAIClient(&OpenAIConfig{
			Endpoint:       cfg.Endpoint,
			Model:          cfg.Model,
			EmbeddingModel: cfg.EmbeddingModel,
			APIKey:         cfg.APIKey,
		}, logger)
	case ProviderAnthropic:
		return NewAnthropicClient(&AnthropicConfig{
			Model:     cfg.Model,
			APIKey:    cfg.APIKey,
			MaxTokens: cfg.MaxTokens,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
