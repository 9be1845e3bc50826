package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTransientClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"explicit transient", NewTransientError(errors.New("x"), ""), true},
		{"explicit permanent", NewPermanentError(errors.New("timeout"), ""), false},
		{"rate limited", &HTTPStatusError{StatusCode: http.StatusTooManyRequests}, true},
		{"server error", fmt.Errorf("search: %w", &HTTPStatusError{StatusCode: 503}), true},
		{"not found", &HTTPStatusError{StatusCode: 404}, false},
		{"deadline", fmt.Errorf("attempt: %w", context.DeadlineExceeded), true},
		{"cancelled", context.Canceled, false},
		{"degraded", NewDegradedError(errors.New("open"), ""), false},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"plain", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsTransient(tc.err))
		})
	}
}

func TestStatusCodeUnwraps(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &HTTPStatusError{StatusCode: 502, Body: "bad gateway"})
	assert.Equal(t, 502, StatusCode(err))
	assert.Equal(t, 0, StatusCode(errors.New("x")))
	assert.Equal(t, ErrorTypeTransient, GetErrorType(err))
	assert.Contains(t, err.Error(), "http status 502: bad gateway")
}

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestRetryWithResultSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	retries := 0
	cfg := fastRetry(3)
	cfg.OnRetry = func(int, error) { retries++ }

	got, err := RetryWithResult(context.Background(), cfg, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", &HTTPStatusError{StatusCode: 503}
		}
		return "ok", nil
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, retries)
}

func TestRetryWithResultStopsAtMaxAttempts(t *testing.T) {
	calls := 0
	_, err := RetryWithResult(context.Background(), fastRetry(3), func(context.Context) (int, error) {
		calls++
		return 0, &HTTPStatusError{StatusCode: 500}
	}, nil)

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.Equal(t, 500, StatusCode(err))
}

func TestRetryWithResultDoesNotRetryPermanentErrors(t *testing.T) {
	calls := 0
	_, err := RetryWithResult(context.Background(), fastRetry(5), func(context.Context) (int, error) {
		calls++
		return 0, &HTTPStatusError{StatusCode: 401}
	}, nil)

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Retry(ctx, fastRetry(3), func(context.Context) error {
		calls++
		return nil
	}, nil)

	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestCalculateBackoffIsCapped(t *testing.T) {
	cfg := RetryConfig{BaseDelay: time.Second, MaxDelay: 3 * time.Second}
	assert.Equal(t, time.Second, calculateBackoff(0, cfg))
	assert.Equal(t, 2*time.Second, calculateBackoff(1, cfg))
	assert.Equal(t, 3*time.Second, calculateBackoff(4, cfg))
}

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	now := time.Unix(0, 0)
	cb := NewCircuitBreaker("llm", CircuitBreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Minute}, nil)
	cb.now = func() time.Time { return now }

	failing := func(context.Context) error { return errors.New("boom") }
	require.Error(t, cb.Execute(context.Background(), failing))
	require.Error(t, cb.Execute(context.Background(), failing))
	assert.Equal(t, StateOpen, cb.State())

	err := cb.Allow()
	require.Error(t, err)
	assert.True(t, IsDegraded(err))
	assert.False(t, IsTransient(err))

	now = now.Add(2 * time.Minute)
	value, err := ExecuteFunc(cb, context.Background(), func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, value)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerIgnoresCancellation(t *testing.T) {
	cb := NewCircuitBreaker("search", CircuitBreakerConfig{FailureThreshold: 1}, nil)
	cb.Mark(fmt.Errorf("call: %w", context.Canceled))
	assert.Equal(t, StateClosed, cb.State())
}
