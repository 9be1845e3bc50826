package httpclient

import (
	"fmt"
	"net/http"

	"golang.org/x/time/rate"
)

type rateLimitedRoundTripper struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

// WrapTransportWithRateLimit makes every request wait for a token from limiter.
// The limiter may be shared by many clients and goroutines.
func WrapTransportWithRateLimit(base http.RoundTripper, limiter *rate.Limiter) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if limiter == nil {
		return base
	}
	return &rateLimitedRoundTripper{base: base, limiter: limiter}
}

func (t *rateLimitedRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return t.base.RoundTrip(req)
}

// NewLimiter returns a token bucket allowing rps requests per second, or nil
// (unlimited) when rps <= 0.
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}
