package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"giftprobe/internal/domain/catalog"
	gperrors "giftprobe/internal/errors"
	"giftprobe/internal/httpclient"
	"giftprobe/internal/logging"
	"giftprobe/internal/observability"
)

const defaultMaxResponseBytes = 8 << 20

// Config tunes the HTTP runner.
type Config struct {
	Builder          URLBuilder
	Retry            gperrors.RetryConfig
	URLBase          string
	MaxResponseBytes int64
	CacheSize        int
	CacheTTL         time.Duration
}

// Runner issues search queries. The zero value is not usable; call NewRunner.
type Runner struct {
	client  *http.Client
	cfg     Config
	cache   *pageCache
	logger  logging.Logger
	metrics *observability.Metrics
}

// NewRunner returns a runner using client for HTTP calls. client should carry
// the per-request timeout, rate limiting and circuit breaking.
func NewRunner(client *http.Client, cfg Config, logger logging.Logger, metrics *observability.Metrics) *Runner {
	if client == nil {
		client = httpclient.New(30*time.Second, logger)
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = defaultMaxResponseBytes
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = gperrors.DefaultRetryConfig()
	}
	if metrics != nil && cfg.Retry.OnRetry == nil {
		cfg.Retry.OnRetry = func(int, error) { metrics.IncQueryRetry() }
	}
	return &Runner{
		client:  client,
		cfg:     cfg,
		cache:   newPageCache(cfg.CacheSize, cfg.CacheTTL),
		logger:  logging.OrNop(logger),
		metrics: metrics,
	}
}

// Target returns the URL or fixture path a query would be fetched from.
// A case that came with its own search URL uses it verbatim on round 0 and
// a revised copy afterwards. Fixture files cannot be revised and are reused.
func (r *Runner) Target(q catalog.Query) (string, error) {
	if q.SourceURL == "" {
		return r.cfg.Builder.Build(q)
	}
	if q.Revision == 0 {
		return q.SourceURL, nil
	}
	revised, err := r.cfg.Builder.Revise(q.SourceURL, q)
	if err == nil {
		return revised, nil
	}
	if !errors.Is(err, ErrNotRevisable) {
		return "", err
	}
	if built, buildErr := r.cfg.Builder.Build(q); buildErr == nil {
		return built, nil
	}
	return q.SourceURL, nil
}

// Run fetches the first page for q and returns at most topK results.
// Transient failures are retried; a response that cannot be decoded is an
// empty page rather than an error.
func (r *Runner) Run(ctx context.Context, q catalog.Query, topK int) (catalog.ResultPage, error) {
	target, err := r.Target(q)
	if err != nil {
		return catalog.ResultPage{}, err
	}

	if page, ok := r.cache.get(target); ok {
		r.logger.Debug("Search cache hit for %s", redact(target))
		return truncate(page, topK), nil
	}

	start := time.Now()
	body, err := gperrors.RetryWithResult(ctx, r.cfg.Retry, func(ctx context.Context) ([]byte, error) {
		return r.fetch(ctx, target)
	}, r.logger)
	if err != nil {
		// Failures are labelled transient, permanent or degraded.
		r.metrics.ObserveQuery(gperrors.GetErrorType(err).String(), time.Since(start))
		if gperrors.IsPermanent(err) {
			r.logger.Warn("Search %s failed without retry: %v", redact(target), err)
		}
		return catalog.ResultPage{RequestURL: target}, fmt.Errorf("search %s: %w", redact(target), err)
	}

	page, err := ParsePage(body, r.cfg.URLBase)
	if err != nil {
		r.logger.Warn("Malformed search response from %s: %v", redact(target), err)
		page = catalog.ResultPage{}
	}
	page.RequestURL = target
	r.metrics.ObserveQuery("ok", time.Since(start))
	r.cache.add(target, page)
	return truncate(page, topK), nil
}

func (r *Runner) fetch(ctx context.Context, target string) ([]byte, error) {
	if path, ok := localPath(target); ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, gperrors.NewPermanentError(err, fmt.Sprintf("read fixture %s: %v", path, err))
		}
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, gperrors.NewPermanentError(err, fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpclient.DrainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := httpclient.ReadAllWithLimit(resp.Body, 2048)
		return nil, &gperrors.HTTPStatusError{StatusCode: resp.StatusCode, Body: string(snippet), URL: redact(target)}
	}
	return httpclient.ReadAllWithLimit(resp.Body, r.cfg.MaxResponseBytes)
}

// localPath reports whether target names a local fixture file.
func localPath(target string) (string, bool) {
	if strings.HasPrefix(target, "file://") {
		u, err := url.Parse(target)
		if err != nil {
			return strings.TrimPrefix(target, "file://"), true
		}
		return u.Path, true
	}
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return "", false
	}
	return target, true
}

func truncate(page catalog.ResultPage, topK int) catalog.ResultPage {
	if topK > 0 && len(page.Results) > topK {
		results := make([]catalog.ProductResult, topK)
		copy(results, page.Results[:topK])
		page.Results = results
	}
	return page
}

// redact hides the API key in URLs written to logs and errors.
func redact(target string) string {
	u, err := url.Parse(target)
	if err != nil || u.RawQuery == "" {
		return target
	}
	q := u.Query()
	if key := q.Get("key"); key != "" {
		q.Set("key", observability.SanitizeAPIKey(key))
		u.RawQuery = q.Encode()
	}
	return u.String()
}
