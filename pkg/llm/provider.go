// Package llm abstracts the language-model services behind the planning,
// review, and reporting decision calls.
package llm

import (
	"context"
	"fmt"
)

// Request contains the parameters for a single completion call.
type Request struct {
	Model        string
	SystemPrompt string
	Prompt       string
	Temperature  float64
	MaxTokens    int
}

// Response contains the model's text output.
type Response struct {
	Content string
}

// Provider is an interface for LLM API providers.
type Provider interface {
	// Complete makes a single-turn completion call.
	Complete(ctx context.Context, request Request) (*Response, error)

	// Name returns the provider name.
	Name() string
}

// NewProvider creates an LLM provider by name.
func NewProvider(provider, apiKey string) (Provider, error) {
	switch provider {
	case "anthropic":
		return NewAnthropicProvider(apiKey), nil
	case "openai":
		return NewOpenAIProvider(apiKey), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}
