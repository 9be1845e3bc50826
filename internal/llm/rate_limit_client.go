package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// rateLimitedClient makes every call wait for a token from a shared limiter.
type rateLimitedClient struct {
	base    Client
	limiter *rate.Limiter
}

// WrapWithRateLimit returns client unchanged when limiter is nil.
func WrapWithRateLimit(client Client, limiter *rate.Limiter) Client {
	if limiter == nil {
		return client
	}
	return &rateLimitedClient{base: client, limiter: limiter}
}

func (c *rateLimitedClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("llm rate limit wait: %w", err)
	}
	return c.base.Complete(ctx, req)
}

func (c *rateLimitedClient) Model() string {
	return c.base.Model()
}
