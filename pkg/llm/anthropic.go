package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"

	"github.com/alesierraalta/SQLAgent/pkg/retry"
)

// AnthropicClient provides access to the Anthropic Messages API. Anthropic
// has no embedding endpoint, so Embed always fails; pair this client with
// an OpenAI-compatible embedding provider when semantic caching is wanted.
type AnthropicClient struct {
	client    *anthropic.Client
	model     string
	maxTokens int
	retryCfg  *retry.Config
	logger    *zap.Logger
}

// AnthropicConfig holds configuration for creating an Anthropic client.
type AnthropicConfig struct {
	Model     string
	APIKey    string
	MaxTokens int // Defaults to 2000
}

// NewAnthropicClient creates a new Anthropic Messages API client.
func NewAnthropicClient(cfg *AnthropicConfig, logger *zap.Logger) (*AnthropicClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2000
	}

	return &AnthropicClient{
		client:    anthropic.NewClient(cfg.APIKey),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		retryCfg:  retry.DefaultConfig(),
		logger:    logger.Named("anthropic"),
	}, nil
}

// Complete generates a chat completion for the prompt.
func (c *AnthropicClient) Complete(ctx context.Context, prompt string, systemMessage string, temperature float64) (string, error) {
	c.logger.Debug("LLM request",
		zap.String("model", c.model),
		zap.Int("prompt_len", len(prompt)))

	start := time.Now()
	temp := float32(temperature)

	req := anthropic.MessagesRequest{
		Model:       anthropic.Model(c.model),
		MaxTokens:   c.maxTokens,
		System:      systemMessage,
		Temperature: &temp,
		Messages: []anthropic.Message{
			anthropic.NewUserTextMessage(prompt),
		},
	}
	resp, err := retry.DoWithResult(ctx, c.retryCfg, func() (anthropic.MessagesResponse, error) {
		return c.client.CreateMessages(ctx, req)
	})
	if err != nil {
		c.logger.Error("LLM request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", fmt.Errorf("create messages: %w", err)
	}

	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			c.logger.Info("LLM request completed",
				zap.Duration("elapsed", time.Since(start)))
			return *block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in response")
}

// Embed is unsupported for Anthropic.
func (c *AnthropicClient) Embed(ctx context.Context, input string) ([]float64, error) {
	return nil, fmt.Errorf("anthropic does not provide an embedding endpoint")
}

// Model returns the configured model name.
func (c *AnthropicClient) Model() string {
	return c.model
}
