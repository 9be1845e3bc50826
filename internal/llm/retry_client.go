package llm

import (
	"context"
	"fmt"
	"time"

	gperrors "giftprobe/internal/errors"
	"giftprobe/internal/logging"
)

// retryClient wraps a client with retry and circuit breaker logic.
type retryClient struct {
	underlying     Client
	retryConfig    gperrors.RetryConfig
	circuitBreaker *gperrors.CircuitBreaker
	logger         logging.Logger
}

// NewRetryClient retries transient failures inside the circuit breaker. An
// open breaker fails fast with a degraded error.
func NewRetryClient(client Client, retryConfig gperrors.RetryConfig, breaker *gperrors.CircuitBreaker, logger logging.Logger) Client {
	logger = logging.OrNop(logger)
	if breaker == nil {
		breaker = gperrors.NewCircuitBreaker("llm-"+client.Model(), gperrors.DefaultCircuitBreakerConfig(), logger)
	}
	return &retryClient{
		underlying:     client,
		retryConfig:    retryConfig,
		circuitBreaker: breaker,
		logger:         logger,
	}
}

func (c *retryClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()
	resp, err := gperrors.RetryWithResult(ctx, c.retryConfig, func(ctx context.Context) (*CompletionResponse, error) {
		return gperrors.ExecuteFunc(c.circuitBreaker, ctx, func(ctx context.Context) (*CompletionResponse, error) {
			return c.underlying.Complete(ctx, req)
		})
	}, c.logger)
	if err != nil {
		c.logger.Warn("LLM request failed after %v: %v", time.Since(start).Round(time.Millisecond), err)
		return nil, fmt.Errorf("llm %s: %w", c.underlying.Model(), err)
	}
	return resp, nil
}

func (c *retryClient) Model() string {
	return c.underlying.Model()
}
