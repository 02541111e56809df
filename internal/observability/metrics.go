// Package observability exposes Prometheus metrics for inference and the
// HTTP surface. Verdict counts are aggregate only; no request contents are
// recorded.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/danielpatrickdp/potability/internal/ensemble"
)

const metricsNamespace = "potability"

// Metrics holds every collector the service exports.
type Metrics struct {
	// InferenceRequests counts Infer calls. Labels: outcome.
	InferenceRequests *prometheus.CounterVec

	// InferenceDuration measures Infer latency in seconds.
	InferenceDuration prometheus.Histogram

	// BaseVotes counts base and meta outputs. Labels: model, label.
	BaseVotes *prometheus.CounterVec

	// HTTPRequests counts API requests. Labels: route, status.
	HTTPRequests *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		InferenceRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "inference",
				Name:      "requests_total",
				Help:      "Inference requests by outcome",
			},
			[]string{"outcome"},
		),
		InferenceDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "inference",
				Name:      "duration_seconds",
				Help:      "Inference latency in seconds",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
		),
		BaseVotes: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "base_votes_total",
				Help:      "Predicted labels by model",
			},
			[]string{"model", "label"},
		),
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests by route and status",
			},
			[]string{"route", "status"},
		),
	}
}

// ObserveInference implements ensemble.Observer.
func (m *Metrics) ObserveInference(outcome ensemble.Outcome, elapsed time.Duration) {
	m.InferenceRequests.WithLabelValues(string(outcome)).Inc()
	m.InferenceDuration.Observe(elapsed.Seconds())
}

// ObserveVotes implements ensemble.Observer.
func (m *Metrics) ObserveVotes(votes ensemble.Votes, meta ensemble.Label) {
	for _, s := range ensemble.Slots() {
		m.BaseVotes.WithLabelValues(s.ArtifactName(), strconv.Itoa(int(votes[s]))).Inc()
	}
	m.BaseVotes.WithLabelValues(ensemble.MetaArtifact, strconv.Itoa(int(meta))).Inc()
}

// ObserveHTTP records one API response.
func (m *Metrics) ObserveHTTP(route string, status int) {
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}
