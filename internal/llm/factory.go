package llm

import (
	"fmt"
	"strings"
	"time"

	gperrors "giftprobe/internal/errors"
	"giftprobe/internal/httpclient"
	"giftprobe/internal/logging"
)

// Provider base URLs for OpenAI-compatible endpoints.
var providerBaseURLs = map[string]string{
	"openai":     "https://api.openai.com/v1",
	"openrouter": "https://openrouter.ai/api/v1",
	"deepseek":   "https://api.deepseek.com/v1",
}

// ProviderConfig selects and tunes the LLM used for fix generation.
type ProviderConfig struct {
	Provider  string
	Model     string
	APIKey    string
	BaseURL   string
	Timeout   time.Duration
	Retry     gperrors.RetryConfig
	Breaker   gperrors.CircuitBreakerConfig
	RateLimit float64
	Burst     int
}

// NewClient builds the decorated client for cfg. An empty provider means no
// LLM is configured and yields (nil, nil).
func NewClient(cfg ProviderConfig, logger logging.Logger) (Client, error) {
	logger = logging.OrNop(logger)
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))

	var base Client
	switch provider {
	case "", "none":
		return nil, nil
	case "mock":
		base = NewMockClient()
	default:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			known, ok := providerBaseURLs[provider]
			if !ok {
				return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
			}
			baseURL = known
		}
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("llm: provider %s requires an API key", provider)
		}
		var headers map[string]string
		if provider == "openrouter" {
			headers = map[string]string{"X-Title": "giftprobe"}
		}
		client, err := NewOpenAIClient(cfg.Model, Config{
			APIKey:  cfg.APIKey,
			BaseURL: baseURL,
			Timeout: cfg.Timeout,
			Headers: headers,
		}, logger)
		if err != nil {
			return nil, err
		}
		base = client
	}

	retryCfg := cfg.Retry
	if retryCfg.MaxAttempts == 0 {
		retryCfg = gperrors.DefaultRetryConfig()
	}
	breakerCfg := cfg.Breaker
	if breakerCfg.FailureThreshold == 0 {
		breakerCfg = gperrors.DefaultCircuitBreakerConfig()
	}
	breaker := gperrors.NewCircuitBreaker("llm-"+provider, breakerCfg, logger)
	wrapped := NewRetryClient(base, retryCfg, breaker, logger)
	return WrapWithRateLimit(wrapped, httpclient.NewLimiter(cfg.RateLimit, cfg.Burst)), nil
}
