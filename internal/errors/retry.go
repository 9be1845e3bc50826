package errors

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"giftprobe/internal/logging"
)

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts  int           // total attempts including the first (default: 3)
	BaseDelay    time.Duration // base delay for exponential backoff (default: 500ms)
	MaxDelay     time.Duration // cap between attempts (default: 8s)
	JitterFactor float64       // ±fraction randomisation (default: 0.25)

	// OnRetry, when set, is called before each backoff wait.
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig returns the search client's defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		BaseDelay:    500 * time.Millisecond,
		MaxDelay:     8 * time.Second,
		JitterFactor: 0.25,
	}
}

func (c RetryConfig) attempts() int {
	if c.MaxAttempts < 1 {
		return 1
	}
	return c.MaxAttempts
}

// Retry executes fn with exponential backoff while it returns transient errors.
func Retry(ctx context.Context, config RetryConfig, fn func(ctx context.Context) error, logger logging.Logger) error {
	_, err := RetryWithResult(ctx, config, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, logger)
	return err
}

// RetryWithResult executes a function that returns a result with retry logic.
// Non-transient errors are returned unwrapped on the attempt that produced them.
func RetryWithResult[T any](ctx context.Context, config RetryConfig, fn func(ctx context.Context) (T, error), logger logging.Logger) (T, error) {
	logger = logging.OrNop(logger)
	maxAttempts := config.attempts()

	var lastErr error
	var zeroValue T

	for attempt := 0; attempt < maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return zeroValue, fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		result, err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				logger.Info("Retry succeeded after %d attempts", attempt+1)
			}
			return result, nil
		}

		lastErr = err
		logger.Debug("Attempt %d/%d failed: %v", attempt+1, maxAttempts, err)

		if !IsTransient(err) {
			return zeroValue, err
		}

		if attempt == maxAttempts-1 {
			logger.Warn("Max attempts (%d) exhausted: %v", maxAttempts, err)
			break
		}

		if config.OnRetry != nil {
			config.OnRetry(attempt+1, err)
		}

		delay := calculateBackoff(attempt, config)
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return zeroValue, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		}
	}

	return zeroValue, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// calculateBackoff returns baseDelay * 2^attempt with jitter, capped at MaxDelay.
func calculateBackoff(attempt int, config RetryConfig) time.Duration {
	multiplier := math.Pow(2, float64(attempt))
	delay := time.Duration(float64(config.BaseDelay) * multiplier)

	if config.MaxDelay > 0 && delay > config.MaxDelay {
		delay = config.MaxDelay
	}

	if config.JitterFactor > 0 {
		jitter := float64(delay) * config.JitterFactor
		delay = time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)
		if delay < 0 {
			delay = config.BaseDelay
		}
		if config.MaxDelay > 0 && delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}

	return delay
}
