// Package llm is the chat-completion collaborator used to generate query
// fixes. Clients are composed: a provider client wrapped with retry and
// circuit breaking, then rate limiting.
package llm

import "context"

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is a provider-neutral chat request.
type CompletionRequest struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
	// JSONMode asks the provider for a JSON object response when supported.
	JSONMode bool
}

// TokenUsage reports provider token accounting.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionResponse is the provider's answer.
type CompletionResponse struct {
	Content    string
	StopReason string
	Usage      TokenUsage
}

// Client completes chat requests.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	Model() string
}
