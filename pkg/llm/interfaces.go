// Package llm provides clients for SQL generation, correction, and
// question embedding against OpenAI-compatible and Anthropic endpoints.
package llm

import (
	"context"
)

// LLMClient defines the interface for model operations.
// Use this interface for dependency injection to enable mocking in tests.
type LLMClient interface {
	// Complete generates a chat completion for the prompt.
	Complete(ctx context.Context, prompt string, systemMessage string, temperature float64) (string, error)

	// Embed generates an embedding vector for the input text.
	Embed(ctx context.Context, input string) ([]float64, error)

	// Model returns the configured model name.
	Model() string
}

// Ensure implementations satisfy LLMClient at compile time.
var (
	_ LLMClient = (*OpenAIClient)(nil)
	_ LLMClient = (*AnthropicClient)(nil)
	_ LLMClient = (*MockClient)(nil)
)
