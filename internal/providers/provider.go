package providers

import (
	"context"
	"fmt"
)

// Request is one completion request to an LLM.
type Request struct {
	Model     string
	System    string
	Prompt    string
	MaxTokens int
}

// Response is the raw model output. Refused marks a refusal or
// content-filtered completion, which callers treat as a clean zero-finding
// result rather than an error.
type Response struct {
	Content    string
	Refused    bool
	TokensUsed int
}

// Provider is the LLM transport abstraction. Implementations handle
// authentication, retries, and provider-specific error classification;
// they must be safe for concurrent use.
type Provider interface {
	Complete(ctx context.Context, req Request) (Response, error)
	Name() string
}

// New creates a provider by name.
func New(provider string) (Provider, error) {
	switch provider {
	case "anthropic":
		return NewAnthropic()
	case "openai":
		return NewOpenAI()
	case "gemini", "google":
		return NewGemini()
	case "ollama", "lmstudio":
		return NewOllama()
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
}

// DefaultModel returns the default model for a provider.
func DefaultModel(provider string) string {
	switch provider {
	case "anthropic":
		return "claude-sonnet-4-5"
	case "openai":
		return "gpt-4o"
	case "gemini", "google":
		return "gemini-2.0-flash"
	case "ollama", "lmstudio":
		return "qwen2.5-coder:14b"
	}
	return ""
}
