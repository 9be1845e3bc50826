package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"giftprobe/internal/domain/catalog"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.InDelta(t, 0.67, cfg.Refine.GoodThreshold, 1e-9)
	assert.Equal(t, 5, cfg.Refine.MaxRounds)
	assert.Equal(t, 3, cfg.Refine.TopK)
	assert.Equal(t, "Test_ID", cfg.Columns.TestID)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeFile(t, "giftprobe.yaml", `
output_dir: results
refine:
  good_threshold: 0.5
  max_rounds: 2
  query_timeout: 10s
columns:
  query: Prompt
search:
  api_key: key-123
  cache_ttl: 1m
`)
	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "results", cfg.OutputDir)
	assert.InDelta(t, 0.5, cfg.Refine.GoodThreshold, 1e-9)
	assert.Equal(t, 2, cfg.Refine.MaxRounds)
	assert.Equal(t, 3, cfg.Refine.TopK)
	assert.Equal(t, 10*time.Second, cfg.Refine.QueryTimeout)
	assert.Equal(t, "Prompt", cfg.Columns.Query)
	assert.Equal(t, "Budget", cfg.Columns.Budget)
	assert.Equal(t, time.Minute, cfg.Search.CacheTTL)
	assert.Equal(t, "key-123", cfg.URLBuilder().APIKey)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "giftprobe.yaml", "refine:\n  max_rounds: 2\n")
	t.Setenv("GIFTPROBE_REFINE_MAX_ROUNDS", "4")
	t.Setenv("GIFTPROBE_LLM_PROVIDER", "mock")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Refine.MaxRounds)
	assert.Equal(t, "mock", cfg.Provider().Provider)
}

func TestLoadFallsBackToOpenAIKey(t *testing.T) {
	path := writeFile(t, "giftprobe.yaml", "llm:\n  provider: openai\n")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
}

func TestLoadExplicitFileMustExist(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := writeFile(t, "giftprobe.yaml", "refine:\n  good_threshold: 1.5\n")
	_, err := Load(viper.New(), path)
	require.ErrorIs(t, err, ErrInvalidConfig)

	cfg := Default()
	cfg.Refine.Concurrency = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = Default()
	cfg.Columns.TestID = " "
	assert.ErrorContains(t, cfg.Validate(), "columns.test_id")
}

func TestTracingSection(t *testing.T) {
	path := writeFile(t, "giftprobe.yaml", "tracing:\n  enabled: true\n  exporter: zipkin\n  sample_rate: 0.25\n")
	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, "zipkin", cfg.Tracing.Exporter)
	assert.InDelta(t, 0.25, cfg.Tracing.SampleRate, 1e-9)

	cfg.Tracing.Exporter = "jaeger"
	assert.ErrorContains(t, cfg.Validate(), "tracing.exporter")
}

func TestNoPrefilterClearsBuilderTerms(t *testing.T) {
	cfg := Default()
	assert.NotEmpty(t, cfg.URLBuilder().PrefilterNot)
	cfg.Search.NoPrefilter = true
	assert.Empty(t, cfg.URLBuilder().PrefilterNot)
}

func TestParsePolicy(t *testing.T) {
	policy, err := ParsePolicy([]byte(`
whitelist: [Stationery, Toys]
blocklist: [Chocolate]
style_anchors:
  - name: space
    triggers: [astronomy, space]
    motifs: [planet, rocket]
`))
	require.NoError(t, err)
	assert.True(t, policy.Categories.Known("Toys"))
	assert.False(t, policy.Categories.Known("Gaming"))
	require.Len(t, policy.Anchors, 1)
	assert.Equal(t, "space", policy.Anchors[0].Name)
}

func TestParsePolicyDefaultsAndErrors(t *testing.T) {
	policy, err := ParsePolicy(nil)
	require.NoError(t, err)
	assert.Equal(t, len(catalog.DefaultStyleAnchors()), len(policy.Anchors))

	_, err = ParsePolicy([]byte("whitelist: [Beauty]\nblocklist: [beauty]\n"))
	assert.ErrorIs(t, err, catalog.ErrPolicyOverlap)

	_, err = ParsePolicy([]byte("style_anchors:\n  - name: empty\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = ParsePolicy([]byte("whitelists: [Toys]\n"))
	assert.Error(t, err)
}

func TestLoadPolicyEmptyPath(t *testing.T) {
	policy, err := LoadPolicy("")
	require.NoError(t, err)
	assert.True(t, policy.Categories.Known("Stationery"))
}
