package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "giftprobe"

// Metrics exposes Prometheus collectors that report refinement activity.
type Metrics struct {
	queryDuration *prometheus.HistogramVec
	queryRetries  prometheus.Counter
	rounds        *prometheus.CounterVec
	fixes         *prometheus.CounterVec
	cases         *prometheus.CounterVec
	casesActive   prometheus.Gauge
	bestScore     prometheus.Histogram
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// DefaultMetrics returns the instance registered with the global Prometheus
// registry. Collectors are created once so repeated wiring does not panic on
// duplicate registration.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics constructs a Metrics instance using the provided registerer.
// Tests should pass a fresh registry. Registration errors other than an
// identical collector already being present panic.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		queryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "search",
				Name:      "query_duration_seconds",
				Help:      "Latency of search API queries including retries.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"status"},
		),
		queryRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "search",
			Name:      "query_retries_total",
			Help:      "Number of search attempts that were retried after a transient failure.",
		}),
		rounds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "refine",
				Name:      "rounds_total",
				Help:      "Refinement rounds executed, by outcome.",
			},
			[]string{"outcome"},
		),
		fixes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "refine",
				Name:      "fixes_total",
				Help:      "Fix proposals, by generator and result.",
			},
			[]string{"source", "result"},
		),
		cases: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "refine",
				Name:      "cases_total",
				Help:      "Completed test cases, by final status.",
			},
			[]string{"status"},
		),
		casesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "refine",
			Name:      "cases_active",
			Help:      "Number of test cases currently being refined.",
		}),
		bestScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "refine",
			Name:      "best_score",
			Help:      "Distribution of best-round autocheck scores.",
			Buckets:   []float64{0, 0.34, 0.67, 1},
		}),
	}

	m.queryDuration = register(reg, m.queryDuration)
	m.queryRetries = register(reg, m.queryRetries)
	m.rounds = register(reg, m.rounds)
	m.fixes = register(reg, m.fixes)
	m.cases = register(reg, m.cases)
	m.casesActive = register(reg, m.casesActive)
	m.bestScore = register(reg, m.bestScore)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, collector C) C {
	if err := reg.Register(collector); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return collector
}

// ObserveQuery records one search call with its final status label.
func (m *Metrics) ObserveQuery(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.queryDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// IncQueryRetry counts a retried search attempt.
func (m *Metrics) IncQueryRetry() {
	if m == nil {
		return
	}
	m.queryRetries.Inc()
}

// IncRound counts a scored round; outcome is "scored" or "degraded".
func (m *Metrics) IncRound(outcome string) {
	if m == nil {
		return
	}
	m.rounds.WithLabelValues(outcome).Inc()
}

// IncFix counts a fix proposal from source with result "accepted", "rejected" or "failed".
func (m *Metrics) IncFix(source, result string) {
	if m == nil {
		return
	}
	m.fixes.WithLabelValues(source, result).Inc()
}

// CaseStarted marks a test case as in flight.
func (m *Metrics) CaseStarted() {
	if m == nil {
		return
	}
	m.casesActive.Inc()
}

// CaseFinished records the final status and best score of a test case.
func (m *Metrics) CaseFinished(status string, bestScore float64) {
	if m == nil {
		return
	}
	m.casesActive.Dec()
	m.cases.WithLabelValues(status).Inc()
	m.bestScore.Observe(bestScore)
}
