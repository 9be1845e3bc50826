package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"giftprobe/internal/domain/catalog"
	gperrors "giftprobe/internal/errors"
	"giftprobe/internal/observability"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const threeResults = `{"response": {"results": [
  {"data": {"id": "1", "title": "Earbuds", "price": 129, "categories": ["Electronics"]}},
  {"data": {"id": "2", "title": "Speaker", "price": 119, "categories": ["Tech"]}},
  {"data": {"id": "3", "title": "Watch", "price": 149, "categories": ["Gadgets"]}},
  {"data": {"id": "4", "title": "Drone", "price": 199, "categories": ["Gadgets"]}}
]}}`

func testConfig(baseURL string) Config {
	b := NewURLBuilder("test-key")
	b.BaseURL = baseURL + "/v1/search/natural_language/"
	return Config{
		Builder: b,
		Retry:   gperrors.RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
	}
}

func TestRunRetriesTransientFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(threeResults))
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	runner := NewRunner(srv.Client(), testConfig(srv.URL), nil, observability.MustNewMetrics(reg))

	page, err := runner.Run(context.Background(), catalog.Query{Text: "tech gift"}, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 3, hits.Load())
	require.Len(t, page.Results, 3)
	assert.Equal(t, "Earbuds", page.Results[0].Title)
	assert.Contains(t, page.RequestURL, "/natural_language/tech%20gift")
}

func TestRunReturnsErrorAfterExhaustingRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	runner := NewRunner(srv.Client(), testConfig(srv.URL), nil, nil)
	_, err := runner.Run(context.Background(), catalog.Query{Text: "gift"}, 3)

	require.Error(t, err)
	assert.EqualValues(t, 3, hits.Load())
	assert.Equal(t, http.StatusBadGateway, gperrors.StatusCode(err))
	assert.NotContains(t, err.Error(), "test-key")
}

func TestRunDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	_, err := NewRunner(srv.Client(), testConfig(srv.URL), nil, observability.MustNewMetrics(reg)).Run(context.Background(), catalog.Query{Text: "gift"}, 3)
	require.Error(t, err)
	assert.EqualValues(t, 1, hits.Load())
	assert.True(t, gperrors.IsPermanent(err))
	count, gatherErr := testutil.GatherAndCount(reg, "giftprobe_search_query_duration_seconds")
	require.NoError(t, gatherErr)
	assert.Equal(t, 1, count)
}

func TestRunLabelsExhaustedRetriesAsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	_, err := NewRunner(srv.Client(), testConfig(srv.URL), nil, observability.MustNewMetrics(reg)).Run(context.Background(), catalog.Query{Text: "gift"}, 3)
	require.Error(t, err)
	assert.Equal(t, gperrors.ErrorTypeTransient, gperrors.GetErrorType(err))

	families, gatherErr := reg.Gather()
	require.NoError(t, gatherErr)
	var labels []string
	for _, family := range families {
		if family.GetName() != "giftprobe_search_query_duration_seconds" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, pair := range metric.GetLabel() {
				labels = append(labels, pair.GetValue())
			}
		}
	}
	assert.Equal(t, []string{"transient"}, labels)
}

func TestRunTreatsMalformedBodyAsEmptyPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	}))
	defer srv.Close()

	page, err := NewRunner(srv.Client(), testConfig(srv.URL), nil, nil).Run(context.Background(), catalog.Query{Text: "gift"}, 3)
	require.NoError(t, err)
	assert.Empty(t, page.Results)
}

func TestRunCachesByRequestURL(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(threeResults))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.CacheSize = 8
	runner := NewRunner(srv.Client(), cfg, nil, nil)

	first, err := runner.Run(context.Background(), catalog.Query{Text: "gift"}, 2)
	require.NoError(t, err)
	second, err := runner.Run(context.Background(), catalog.Query{Text: "gift"}, 4)
	require.NoError(t, err)

	assert.EqualValues(t, 1, hits.Load())
	assert.Len(t, first.Results, 2)
	assert.Len(t, second.Results, 4)
}

func TestRunReadsLocalFixtures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "case.json")
	require.NoError(t, os.WriteFile(path, []byte(threeResults), 0o600))

	runner := NewRunner(nil, Config{Builder: NewURLBuilder("")}, nil, nil)

	page, err := runner.Run(context.Background(), catalog.Query{Text: "gift", SourceURL: path}, 3)
	require.NoError(t, err)
	assert.Len(t, page.Results, 3)

	// Later rounds reuse the fixture because it cannot be revised.
	page, err = runner.Run(context.Background(), catalog.Query{Text: "better gift", SourceURL: "file://" + path, Revision: 2}, 3)
	require.NoError(t, err)
	assert.Len(t, page.Results, 3)
}

func TestTargetRevisesSourceURLAfterFirstRound(t *testing.T) {
	runner := NewRunner(nil, Config{Builder: NewURLBuilder("")}, nil, nil)
	source := "https://ac.cnstrc.com/v1/search/natural_language/gift?key=k"

	target, err := runner.Target(catalog.Query{Text: "gift", SourceURL: source})
	require.NoError(t, err)
	assert.Equal(t, source, target)

	target, err = runner.Target(catalog.Query{Text: "retro gift", SourceURL: source, Revision: 1})
	require.NoError(t, err)
	assert.Equal(t, "https://ac.cnstrc.com/v1/search/natural_language/retro%20gift?key=k", target)
}
