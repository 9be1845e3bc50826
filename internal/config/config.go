// Package config loads giftprobe settings from giftprobe.yaml, GIFTPROBE_*
// environment variables and bound command flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	gperrors "giftprobe/internal/errors"
	"giftprobe/internal/fixgen"
	"giftprobe/internal/llm"
	"giftprobe/internal/observability"
	"giftprobe/internal/refine"
	"giftprobe/internal/search"
	"giftprobe/internal/sheet"
)

const (
	// EnvPrefix prefixes every environment override, e.g. GIFTPROBE_REFINE_MAX_ROUNDS.
	EnvPrefix = "GIFTPROBE"
	// FileName is the config file base name searched in . and $HOME.
	FileName = "giftprobe"
)

// DefaultProductURL resolves relative product links in search responses.
const DefaultProductURL = "https://www.kmart.com.au"

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the full runtime configuration.
type Config struct {
	OutputDir   string        `mapstructure:"output_dir" yaml:"output_dir"`
	PolicyFile  string        `mapstructure:"policy_file" yaml:"policy_file"`
	GroupedURLs bool          `mapstructure:"grouped_urls" yaml:"grouped_urls"`
	Columns     sheet.Columns `mapstructure:"columns" yaml:"columns"`
	Refine      RefineConfig  `mapstructure:"refine" yaml:"refine"`
	Search      SearchConfig  `mapstructure:"search" yaml:"search"`
	LLM         LLMConfig     `mapstructure:"llm" yaml:"llm"`
	Log         LogConfig     `mapstructure:"log" yaml:"log"`
	Server      ServerConfig  `mapstructure:"server" yaml:"server"`

	Tracing observability.TracingConfig `mapstructure:"tracing" yaml:"tracing"`
}

// RefineConfig bounds the refinement loop.
type RefineConfig struct {
	GoodThreshold float64       `mapstructure:"good_threshold" yaml:"good_threshold"`
	MaxRounds     int           `mapstructure:"max_rounds" yaml:"max_rounds"`
	TopK          int           `mapstructure:"top_k" yaml:"top_k"`
	Concurrency   int           `mapstructure:"concurrency" yaml:"concurrency"`
	QueryTimeout  time.Duration `mapstructure:"query_timeout" yaml:"query_timeout"`
}

// SearchConfig points at the retail search API.
type SearchConfig struct {
	BaseURL       string        `mapstructure:"base_url" yaml:"base_url"`
	APIKey        string        `mapstructure:"api_key" yaml:"api_key"`
	ClientTag     string        `mapstructure:"client_tag" yaml:"client_tag"`
	CategoryField string        `mapstructure:"category_field" yaml:"category_field"`
	PerPage       int           `mapstructure:"per_page" yaml:"per_page"`
	ProductURL    string        `mapstructure:"product_url" yaml:"product_url"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RateLimit     float64       `mapstructure:"rate_limit" yaml:"rate_limit"`
	Burst         int           `mapstructure:"burst" yaml:"burst"`
	MaxAttempts   int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	CacheSize     int           `mapstructure:"cache_size" yaml:"cache_size"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	NoPrefilter   bool          `mapstructure:"no_prefilter" yaml:"no_prefilter"`
}

// LLMConfig selects the model behind the LLM fix generator. An empty
// provider disables it and fixes come from the heuristic generator only.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider" yaml:"provider"`
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	RateLimit   float64       `mapstructure:"rate_limit" yaml:"rate_limit"`
	Burst       int           `mapstructure:"burst" yaml:"burst"`
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// ServerConfig configures `giftprobe serve`.
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	opts := refine.DefaultOptions()
	llmDefaults := fixgen.DefaultLLMConfig()
	return Config{
		OutputDir: "out",
		Columns:   sheet.DefaultColumns(),
		Refine: RefineConfig{
			GoodThreshold: opts.GoodThreshold,
			MaxRounds:     opts.MaxRounds,
			TopK:          opts.TopK,
			Concurrency:   opts.Concurrency,
			QueryTimeout:  opts.QueryTimeout,
		},
		Search: SearchConfig{
			BaseURL:       search.DefaultBaseURL,
			ClientTag:     search.DefaultClientTag,
			CategoryField: "Category",
			PerPage:       50,
			ProductURL:    DefaultProductURL,
			Timeout:       30 * time.Second,
			RateLimit:     4,
			Burst:         2,
			MaxAttempts:   gperrors.DefaultRetryConfig().MaxAttempts,
			CacheSize:     256,
			CacheTTL:      10 * time.Minute,
		},
		LLM: LLMConfig{
			Model:       "gpt-4o-mini",
			Timeout:     llmDefaults.Timeout,
			Temperature: llmDefaults.Temperature,
			MaxTokens:   llmDefaults.MaxTokens,
			RateLimit:   1,
			Burst:       1,
			MaxAttempts: gperrors.DefaultRetryConfig().MaxAttempts,
		},
		Log:     LogConfig{Level: "info", Format: "text"},
		Server:  ServerConfig{Addr: ":8088"},
		Tracing: observability.TracingConfig{Exporter: "otlp", SampleRate: 1.0, ServiceName: "giftprobe"},
	}
}

// Load reads configuration into a Default() base. file, when set, must
// exist; otherwise giftprobe.yaml is looked up in . and $HOME and may be
// absent. Flags already bound to v take precedence over env and file.
func Load(v *viper.Viper, file string) (Config, error) {
	if v == nil {
		v = viper.New()
	}
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("llm.api_key", EnvPrefix+"_LLM_API_KEY", "OPENAI_API_KEY")

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can resolve nested values.
func setDefaults(v *viper.Viper, cfg Config) {
	defaults := map[string]any{
		"output_dir":   cfg.OutputDir,
		"policy_file":  cfg.PolicyFile,
		"grouped_urls": cfg.GroupedURLs,

		"columns.test_id":       cfg.Columns.TestID,
		"columns.query":         cfg.Columns.Query,
		"columns.encoded_query": cfg.Columns.EncodedQuery,
		"columns.url":           cfg.Columns.URL,
		"columns.budget":        cfg.Columns.Budget,
		"columns.audience":      cfg.Columns.Audience,
		"columns.occasion":      cfg.Columns.Occasion,
		"columns.profile":       cfg.Columns.Profile,
		"columns.persona":       cfg.Columns.Persona,
		"columns.filters":       cfg.Columns.Filters,
		"columns.price_lock":    cfg.Columns.PriceLock,
		"columns.category_lock": cfg.Columns.CategoryLock,

		"refine.good_threshold": cfg.Refine.GoodThreshold,
		"refine.max_rounds":     cfg.Refine.MaxRounds,
		"refine.top_k":          cfg.Refine.TopK,
		"refine.concurrency":    cfg.Refine.Concurrency,
		"refine.query_timeout":  cfg.Refine.QueryTimeout,

		"search.base_url":       cfg.Search.BaseURL,
		"search.api_key":        cfg.Search.APIKey,
		"search.client_tag":     cfg.Search.ClientTag,
		"search.category_field": cfg.Search.CategoryField,
		"search.per_page":       cfg.Search.PerPage,
		"search.product_url":    cfg.Search.ProductURL,
		"search.timeout":        cfg.Search.Timeout,
		"search.rate_limit":     cfg.Search.RateLimit,
		"search.burst":          cfg.Search.Burst,
		"search.max_attempts":   cfg.Search.MaxAttempts,
		"search.cache_size":     cfg.Search.CacheSize,
		"search.cache_ttl":      cfg.Search.CacheTTL,
		"search.no_prefilter":   cfg.Search.NoPrefilter,

		"llm.provider":     cfg.LLM.Provider,
		"llm.model":        cfg.LLM.Model,
		"llm.api_key":      cfg.LLM.APIKey,
		"llm.base_url":     cfg.LLM.BaseURL,
		"llm.timeout":      cfg.LLM.Timeout,
		"llm.temperature":  cfg.LLM.Temperature,
		"llm.max_tokens":   cfg.LLM.MaxTokens,
		"llm.rate_limit":   cfg.LLM.RateLimit,
		"llm.burst":        cfg.LLM.Burst,
		"llm.max_attempts": cfg.LLM.MaxAttempts,

		"log.level":   cfg.Log.Level,
		"log.format":  cfg.Log.Format,
		"server.addr": cfg.Server.Addr,

		"tracing.enabled":         cfg.Tracing.Enabled,
		"tracing.exporter":        cfg.Tracing.Exporter,
		"tracing.otlp_endpoint":   cfg.Tracing.OTLPEndpoint,
		"tracing.zipkin_endpoint": cfg.Tracing.ZipkinEndpoint,
		"tracing.sample_rate":     cfg.Tracing.SampleRate,
		"tracing.service_name":    cfg.Tracing.ServiceName,
		"tracing.service_version": cfg.Tracing.ServiceVersion,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c Config) Validate() error {
	if err := c.RefineOptions().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	var problems []string
	if c.Refine.Concurrency < 1 {
		problems = append(problems, fmt.Sprintf("refine.concurrency must be at least 1, got %d", c.Refine.Concurrency))
	}
	if c.Refine.QueryTimeout <= 0 {
		problems = append(problems, "refine.query_timeout must be positive")
	}
	if c.Search.RateLimit < 0 {
		problems = append(problems, "search.rate_limit must not be negative")
	}
	if c.LLM.RateLimit < 0 {
		problems = append(problems, "llm.rate_limit must not be negative")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		problems = append(problems, fmt.Sprintf("llm.temperature %.2f outside [0,2]", c.LLM.Temperature))
	}
	if strings.TrimSpace(c.Columns.TestID) == "" {
		problems = append(problems, "columns.test_id must not be empty")
	}
	switch c.Tracing.Exporter {
	case "", "otlp", "zipkin":
	default:
		problems = append(problems, fmt.Sprintf("tracing.exporter %q must be otlp or zipkin", c.Tracing.Exporter))
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		problems = append(problems, "output_dir must not be empty")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// RefineOptions maps the refine section onto loop options.
func (c Config) RefineOptions() refine.Options {
	return refine.Options{
		GoodThreshold: c.Refine.GoodThreshold,
		MaxRounds:     c.Refine.MaxRounds,
		TopK:          c.Refine.TopK,
		QueryTimeout:  c.Refine.QueryTimeout,
		Concurrency:   c.Refine.Concurrency,
	}
}

// URLBuilder returns the search URL builder for the search section.
func (c Config) URLBuilder() search.URLBuilder {
	b := search.NewURLBuilder(c.Search.APIKey)
	if c.Search.BaseURL != "" {
		b.BaseURL = c.Search.BaseURL
	}
	if c.Search.ClientTag != "" {
		b.ClientTag = c.Search.ClientTag
	}
	if c.Search.CategoryField != "" {
		b.CategoryField = c.Search.CategoryField
	}
	if c.Search.PerPage > 0 {
		b.PerPage = c.Search.PerPage
	}
	if c.Search.NoPrefilter {
		b.PrefilterNot = nil
	}
	return b
}

// SearchRunner returns the runner configuration for the search section.
func (c Config) SearchRunner() search.Config {
	retry := gperrors.DefaultRetryConfig()
	retry.MaxAttempts = c.Search.MaxAttempts
	return search.Config{
		Builder:   c.URLBuilder(),
		Retry:     retry,
		URLBase:   c.Search.ProductURL,
		CacheSize: c.Search.CacheSize,
		CacheTTL:  c.Search.CacheTTL,
	}
}

// Provider returns the LLM client configuration.
func (c Config) Provider() llm.ProviderConfig {
	retry := gperrors.DefaultRetryConfig()
	retry.MaxAttempts = c.LLM.MaxAttempts
	return llm.ProviderConfig{
		Provider:  c.LLM.Provider,
		Model:     c.LLM.Model,
		APIKey:    c.LLM.APIKey,
		BaseURL:   c.LLM.BaseURL,
		Timeout:   c.LLM.Timeout,
		Retry:     retry,
		Breaker:   gperrors.DefaultCircuitBreakerConfig(),
		RateLimit: c.LLM.RateLimit,
		Burst:     c.LLM.Burst,
	}
}

// Generation returns the LLM fix generator settings.
func (c Config) Generation() fixgen.LLMConfig {
	return fixgen.LLMConfig{
		Timeout:     c.LLM.Timeout,
		Temperature: c.LLM.Temperature,
		MaxTokens:   c.LLM.MaxTokens,
	}
}
