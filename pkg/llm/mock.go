package llm

import (
	"context"
)

// MockClient is a configurable mock for testing model interactions.
// Set the function fields to control behavior in tests.
type MockClient struct {
	// CompleteFunc is called when Complete is invoked.
	// If nil, returns empty string and nil error.
	CompleteFunc func(ctx context.Context, prompt string, systemMessage string, temperature float64) (string, error)

	// EmbedFunc is called when Embed is invoked.
	// If nil, returns nil slice and nil error.
	EmbedFunc func(ctx context.Context, input string) ([]float64, error)

	// ModelName is returned by Model. Defaults to "mock-model".
	ModelName string

	// Call tracking for verification
	CompleteCalls int
	EmbedCalls    int
}

// NewMockClient creates a new mock with sensible defaults.
func NewMockClient() *MockClient {
	return &MockClient{ModelName: "mock-model"}
}

// Complete implements LLMClient.
func (m *MockClient) Complete(ctx context.Context, prompt string, systemMessage string, temperature float64) (string, error) {
	m.CompleteCalls++
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, prompt, systemMessage, temperature)
	}
	return "", nil
}

// Embed implements LLMClient.
func (m *MockClient) Embed(ctx context.Context, input string) ([]float64, error) {
	m.EmbedCalls++
	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, input)
	}
	return nil, nil
}

// Model implements LLMClient.
func (m *MockClient) Model() string {
	if m.ModelName == "" {
		return "mock-model"
	}
	return m.ModelName
}

// Reset clears call tracking counters.
func (m *MockClient) Reset() {
	m.CompleteCalls = 0
	m.EmbedCalls = 0
}
