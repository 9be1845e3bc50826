package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecordRefinementActivity(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := MustNewMetrics(reg)

	m.IncRound("scored")
	m.IncRound("scored")
	m.IncRound("degraded")
	m.IncFix("heuristic", "accepted")
	m.IncQueryRetry()
	m.ObserveQuery("ok", 120*time.Millisecond)
	m.CaseStarted()
	m.CaseStarted()
	m.CaseFinished("ok", 1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.rounds.WithLabelValues("scored")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rounds.WithLabelValues("degraded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fixes.WithLabelValues("heuristic", "accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.queryRetries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.casesActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cases.WithLabelValues("ok")))
}

func TestMustNewMetricsReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := MustNewMetrics(reg)
	second := MustNewMetrics(reg)

	first.IncRound("scored")
	second.IncRound("scored")

	require.Same(t, first.rounds, second.rounds)
	assert.Equal(t, 2.0, testutil.ToFloat64(second.rounds.WithLabelValues("scored")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncRound("scored")
		m.IncFix("llm", "failed")
		m.ObserveQuery("error", time.Second)
		m.CaseStarted()
		m.CaseFinished("degraded", 0)
	})
}
