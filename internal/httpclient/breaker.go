package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	gperrors "giftprobe/internal/errors"
)

type circuitBreakerRoundTripper struct {
	base    http.RoundTripper
	breaker *gperrors.CircuitBreaker
}

// WrapTransportWithCircuitBreaker guards base with breaker. 5xx and 429
// responses count as failures even though they are not transport errors.
func WrapTransportWithCircuitBreaker(base http.RoundTripper, breaker *gperrors.CircuitBreaker) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if breaker == nil {
		return base
	}
	return &circuitBreakerRoundTripper{base: base, breaker: breaker}
}

func (t *circuitBreakerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}
	if err := t.breaker.Allow(); err != nil {
		return nil, err
	}
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			t.breaker.Mark(nil)
			return nil, err
		}
		t.breaker.Mark(err)
		return nil, err
	}
	if isBreakerFailureStatus(resp.StatusCode) {
		t.breaker.Mark(fmt.Errorf("http status %d", resp.StatusCode))
	} else {
		t.breaker.Mark(nil)
	}
	return resp, nil
}

func isBreakerFailureStatus(status int) bool {
	return status >= http.StatusInternalServerError || status == http.StatusTooManyRequests
}
