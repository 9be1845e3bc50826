package httpclient

import (
	"net/http"
	"time"

	"giftprobe/internal/logging"
)

// DefaultUserAgent identifies outbound requests.
const DefaultUserAgent = "giftprobe/1.0"

// New returns an http.Client for outbound API calls. The timeout bounds each
// individual request, including reading the body.
func New(timeout time.Duration, logger logging.Logger) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: &userAgentRoundTripper{base: Transport(), agent: DefaultUserAgent, logger: logging.OrNop(logger)},
	}
}

// Transport returns a clone of the default transport so per-client tuning
// never leaks into http.DefaultTransport.
func Transport() *http.Transport {
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return &http.Transport{Proxy: http.ProxyFromEnvironment}
	}
	transport := base.Clone()
	transport.MaxIdleConnsPerHost = 16
	return transport
}

type userAgentRoundTripper struct {
	base   http.RoundTripper
	agent  string
	logger logging.Logger
}

func (t *userAgentRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.agent)
	}
	t.logger.Debug("%s %s", req.Method, req.URL.Redacted())
	return t.base.RoundTrip(req)
}
