package main

import (
	"fmt"
	"path/filepath"

	"giftprobe/internal/config"
	"giftprobe/internal/domain/catalog"
	gperrors "giftprobe/internal/errors"
	"giftprobe/internal/fixgen"
	"giftprobe/internal/httpclient"
	"giftprobe/internal/llm"
	"giftprobe/internal/logging"
	"giftprobe/internal/observability"
	"giftprobe/internal/refine"
	"giftprobe/internal/report"
	"giftprobe/internal/search"
	"giftprobe/internal/sheet"
)

const (
	promptsDir = "prompts"
	fixesDir   = "fixes"
)

// app holds the collaborators built from a loaded config. Everything here is
// immutable after construction and shared by the workers.
type app struct {
	cfg     config.Config
	policy  config.Policy
	metrics *observability.Metrics
	logger  logging.Logger
}

func newApp(cfg config.Config) (*app, error) {
	policy, err := config.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:     cfg,
		policy:  policy,
		metrics: observability.DefaultMetrics(),
		logger:  logging.NewComponentLogger("giftprobe"),
	}, nil
}

func (a *app) loadCases(path string) ([]catalog.TestCase, error) {
	if path == "" {
		return nil, fmt.Errorf("--input is required")
	}
	cases, err := sheet.LoadFile(path, a.cfg.Columns, logging.NewComponentLogger("sheet"))
	if err != nil {
		return nil, err
	}
	if len(cases) == 0 {
		return nil, fmt.Errorf("%s: no test cases", path)
	}
	return cases, nil
}

// searcher builds the search runner. Its HTTP client is rate limited and
// guarded by a circuit breaker shared by all workers.
func (a *app) searcher() *search.Runner {
	logger := logging.NewComponentLogger("search")
	client := httpclient.New(a.cfg.Search.Timeout, logger)
	limiter := httpclient.NewLimiter(a.cfg.Search.RateLimit, a.cfg.Search.Burst)
	breaker := gperrors.NewCircuitBreaker("search", gperrors.DefaultCircuitBreakerConfig(), logger)
	client.Transport = httpclient.WrapTransportWithCircuitBreaker(
		httpclient.WrapTransportWithRateLimit(client.Transport, limiter), breaker)
	return search.NewRunner(client, a.cfg.SearchRunner(), logger, a.metrics)
}

// generator returns the LLM generator when a provider is configured.
func (a *app) generator() (fixgen.Generator, error) {
	client, err := llm.NewClient(a.cfg.Provider(), logging.NewComponentLogger("llm"))
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, nil
	}
	a.logger.Info("fix generation: %s (%s) with heuristic fallback", a.cfg.LLM.Provider, client.Model())
	return fixgen.NewLLMGenerator(client, a.cfg.Generation()), nil
}

func (a *app) chain() (*fixgen.Chain, error) {
	primary, err := a.generator()
	if err != nil {
		return nil, err
	}
	heuristic := fixgen.NewHeuristicGenerator(fixgen.DefaultHeuristicConfig())
	return fixgen.NewChain(primary, heuristic, logging.NewComponentLogger("fixgen"), a.metrics), nil
}

func (a *app) loop(resolver refine.Resolver, opts refine.Options) *refine.Loop {
	return refine.NewLoop(a.searcher(), resolver, a.policy.Categories, a.policy.Anchors, opts,
		logging.NewComponentLogger("refine"), a.metrics)
}

func (a *app) writer() *report.Writer {
	return report.NewWriter(a.cfg.OutputDir, a.cfg.GroupedURLs, logging.NewComponentLogger("report"))
}

func (a *app) promptsPath() string { return filepath.Join(a.cfg.OutputDir, promptsDir) }

func (a *app) fixesPath() string { return filepath.Join(a.cfg.OutputDir, fixesDir) }
