// Package metrics provides Prometheus metrics collection for the prediction
// service: per-domain prediction counters, failure counters by error kind,
// end-to-end pipeline latency, model load state, and history sink activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"medpredict/internal/domain"
)

// Metrics holds all Prometheus metrics for the prediction service.
type Metrics struct {
	Predictions     *prometheus.CounterVec   // successful predictions by domain
	Failures        *prometheus.CounterVec   // failed predictions by domain and error kind
	Latency         *prometheus.HistogramVec // end-to-end pipeline latency by domain
	ModelLoaded     *prometheus.GaugeVec     // 1 when a domain's model is in memory
	HistoryWrites   prometheus.Counter       // history records written
	HistoryFailures prometheus.Counter       // history writes that failed and were swallowed
}

// New creates and registers all metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry, useful for
// isolated metric collection in tests.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		Predictions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Total number of successful predictions",
		}, []string{"domain"}),
		Failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "prediction_failures_total",
			Help: "Total number of failed prediction requests",
		}, []string{"domain", "kind"}),
		Latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "prediction_latency_seconds",
			Help:    "End-to-end prediction pipeline latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"domain"}),
		ModelLoaded: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "model_loaded",
			Help: "Whether a domain's model artifacts are currently loaded (1) or not (0)",
		}, []string{"domain"}),
		HistoryWrites: factory.NewCounter(prometheus.CounterOpts{
			Name: "history_writes_total",
			Help: "Total number of history records written",
		}),
		HistoryFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "history_failures_total",
			Help: "Total number of history writes that failed",
		}),
	}
}

// PredictionInc counts one successful prediction for a domain.
func (m *Metrics) PredictionInc(d domain.Domain) {
	m.Predictions.WithLabelValues(string(d)).Inc()
}

// FailureInc counts one failed prediction for a domain by error kind.
func (m *Metrics) FailureInc(d domain.Domain, kind string) {
	m.Failures.WithLabelValues(string(d), kind).Inc()
}

// LatencyObserve records one end-to-end pipeline duration.
func (m *Metrics) LatencyObserve(d domain.Domain, seconds float64) {
	m.Latency.WithLabelValues(string(d)).Observe(seconds)
}

// HistoryWriteInc counts one persisted history record.
func (m *Metrics) HistoryWriteInc() {
	m.HistoryWrites.Inc()
}

// HistoryFailureInc counts one swallowed history write failure.
func (m *Metrics) HistoryFailureInc() {
	m.HistoryFailures.Inc()
}

// ModelLoadedSet records one domain's load state.
func (m *Metrics) ModelLoadedSet(d domain.Domain, loaded bool) {
	v := 0.0
	if loaded {
		v = 1.0
	}
	m.ModelLoaded.WithLabelValues(string(d)).Set(v)
}

// SetModelLoaded mirrors the cache's load state into the gauge.
func (m *Metrics) SetModelLoaded(loaded map[domain.Domain]bool) {
	for d, ok := range loaded {
		m.ModelLoadedSet(d, ok)
	}
}
