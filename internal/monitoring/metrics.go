package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sells-group/account-intel/internal/model"
	"github.com/sells-group/account-intel/internal/resilience"
)

const metricsNamespace = "account_intel"

// Metrics holds the Prometheus collectors for pipeline runs.
type Metrics struct {
	RunsTotal        *prometheus.CounterVec
	RunDuration      *prometheus.HistogramVec
	UnitsProcessed   *prometheus.CounterVec
	EmbeddingBacklog prometheus.Gauge
	CircuitState     *prometheus.GaugeVec

	gatherer prometheus.Gatherer
}

// NewMetrics creates and registers the pipeline metrics on reg. A nil reg
// gets a fresh private registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "pipeline_runs_total",
			Help:      "Unit-operation runs by kind and terminal status.",
		}, []string{"kind", "status"}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "pipeline_run_duration_seconds",
			Help:      "Duration of unit-operation runs.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14),
		}, []string{"kind"}),
		UnitsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "pipeline_units_processed_total",
			Help:      "Documents created, classified or embedded, by kind.",
		}, []string{"kind"}),
		EmbeddingBacklog: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "embedding_backlog",
			Help:      "Documents without an embedding at the last health check.",
		}),
		CircuitState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit state per service: 0 closed, 1 open, 2 half-open.",
		}, []string{"service"}),
		gatherer: reg,
	}
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(run *model.PipelineRun) {
	kind := string(run.Kind)
	m.RunsTotal.WithLabelValues(kind, string(run.Status)).Inc()
	m.RunDuration.WithLabelValues(kind).Observe(float64(run.DurationMs) / 1000)
	if run.Processed > 0 {
		m.UnitsProcessed.WithLabelValues(kind).Add(float64(run.Processed))
	}
}

// ObserveBreaker records a circuit transition. Its signature matches
// resilience.CircuitBreakerConfig.OnStateChange.
func (m *Metrics) ObserveBreaker(name string, _, to resilience.CircuitState) {
	m.CircuitState.WithLabelValues(name).Set(float64(to))
}

// ObserveSnapshot publishes gauges from a health snapshot.
func (m *Metrics) ObserveSnapshot(snap *Snapshot) {
	m.EmbeddingBacklog.Set(float64(snap.EmbeddingBacklog))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
