// Package llm provides a unified interface for LLM providers.
package llm

import (
	"context"
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a chat message.
type Message struct {
	Role    Role
	Content string
}

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// CompletionRequest represents a request to the LLM.
type CompletionRequest struct {
	Messages    []Message
	MaxTokens   int
	Temperature float64
	Stream      bool           // providers may stream internally; the reply is still one string
	JSONSchema  map[string]any // for providers with native structured output
}

// CompletionResponse represents the LLM response.
type CompletionResponse struct {
	Content      string
	FinishReason string
	Usage        Usage
	Model        string
}

// Provider is the core abstraction over LLM backends.
type Provider interface {
	// Complete sends a completion request and returns the full reply.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

	// Name returns the provider identifier.
	Name() string

	// SupportsJSONSchema returns true if provider has native JSON mode.
	SupportsJSONSchema() bool
}

// ProviderConfig holds common configuration for providers.
type ProviderConfig struct {
	APIKey     string
	BaseURL    string // for OpenRouter or custom endpoints
	Model      string
	MaxRetries int
	Timeout    time.Duration
}

// DefaultProviderConfig returns sensible defaults.
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		MaxRetries: 3,
		Timeout:    120 * time.Second,
	}
}

// ProcessText sends an optional system prompt plus a user prompt and
// returns the model's full textual reply as a single string, even when
// streaming was requested internally.
func ProcessText(ctx context.Context, p Provider, systemPrompt, userPrompt string, streaming bool) (string, error) {
	messages := make([]Message, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: systemPrompt})
	}
	messages = append(messages, Message{Role: RoleUser, Content: userPrompt})

	resp, err := p.Complete(ctx, CompletionRequest{
		Messages: messages,
		Stream:   streaming,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
