package fixgen

import (
	"context"
	"fmt"
	"time"

	"giftprobe/internal/domain/catalog"
	"giftprobe/internal/llm"
	jsonx "giftprobe/internal/shared/json"
)

// LLMConfig tunes the delegated generator.
type LLMConfig struct {
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
}

// DefaultLLMConfig returns a 60s timeout, temperature 0.2, 800 tokens.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{Timeout: 60 * time.Second, Temperature: 0.2, MaxTokens: 800}
}

// LLMGenerator asks a chat model for the fix.
type LLMGenerator struct {
	client llm.Client
	config LLMConfig
}

// NewLLMGenerator wraps client. The client is expected to carry its own
// retry and rate limiting.
func NewLLMGenerator(client llm.Client, config LLMConfig) *LLMGenerator {
	return &LLMGenerator{client: client, config: config}
}

func (g *LLMGenerator) Name() string { return SourceLLM }

func (g *LLMGenerator) Propose(ctx context.Context, req Request) (catalog.Fix, error) {
	payload, err := jsonx.Marshal(BuildPayload(req))
	if err != nil {
		return catalog.Fix{}, fmt.Errorf("encode prompt payload: %w", err)
	}

	if g.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.config.Timeout)
		defer cancel()
	}

	resp, err := g.client.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: string(payload)},
		},
		Temperature: g.config.Temperature,
		MaxTokens:   g.config.MaxTokens,
		JSONMode:    true,
	})
	if err != nil {
		return catalog.Fix{}, fmt.Errorf("llm completion: %w", err)
	}

	fix, err := ParseFix(resp.Content)
	if err != nil {
		return catalog.Fix{}, fmt.Errorf("parse llm fix: %w", err)
	}
	return fix, nil
}
