// Package metrics exposes Prometheus instrumentation for the analyzer.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "eventanalyzer"

// Metrics holds every collector the service records into
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
	TrainingRuns    *prometheus.CounterVec
	TrainingLatency *prometheus.HistogramVec
	FitIterations   *prometheus.HistogramVec
	Predictions     *prometheus.CounterVec
	SkippedModels   *prometheus.CounterVec
	PublishFailures *prometheus.CounterVec
}

// New creates and registers the collectors on a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"route", "status"}, // status: ok or an error code
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
			},
			[]string{"route"},
		),
		TrainingRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "training_runs_total",
				Help:      "Model writes per event, by operation kind",
			},
			[]string{"kind", "status"}, // kind: init|train|random_train
		),
		TrainingLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "training_duration_seconds",
				Help:      "Per-event training latency in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"kind"},
		),
		FitIterations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fit_iterations",
				Help:      "EM iterations per fit",
				Buckets:   []float64{1, 2, 5, 10, 20, 50, 100},
			},
			[]string{"algorithm", "converged"},
		),
		Predictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "predictions_total",
				Help:      "Total number of classifications",
			},
			[]string{"algorithm", "status"},
		),
		SkippedModels: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "prediction_skipped_models_total",
				Help:      "Candidate models that failed to score during classification",
			},
			[]string{"algorithm"},
		),
		PublishFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "publish_failures_total",
				Help:      "Side-channel writes (Kafka, ClickHouse) that failed",
			},
			[]string{"sink"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequests,
		m.HTTPDuration,
		m.TrainingRuns,
		m.TrainingLatency,
		m.FitIterations,
		m.Predictions,
		m.SkippedModels,
		m.PublishFailures,
	)
	return m
}

// Register adds an extra collector, such as RegistryCollector
func (m *Metrics) Register(c prometheus.Collector) error {
	return m.registry.Register(c)
}

// Gatherer exposes the registry, mainly for tests
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// Handler returns the HTTP handler for /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records one served request
func (m *Metrics) RecordHTTPRequest(route, status string, duration time.Duration) {
	m.HTTPRequests.WithLabelValues(route, status).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordTraining records one per-event model write
func (m *Metrics) RecordTraining(kind string, duration time.Duration, err error) {
	m.TrainingRuns.WithLabelValues(kind, statusOf(err)).Inc()
	m.TrainingLatency.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordFit records EM iteration counts
func (m *Metrics) RecordFit(algorithm string, iterations int, converged bool) {
	label := "false"
	if converged {
		label = "true"
	}
	m.FitIterations.WithLabelValues(algorithm, label).Observe(float64(iterations))
}

// RecordPrediction records one classification and how many candidates it skipped
func (m *Metrics) RecordPrediction(algorithm string, skipped int, err error) {
	m.Predictions.WithLabelValues(algorithm, statusOf(err)).Inc()
	if skipped > 0 {
		m.SkippedModels.WithLabelValues(algorithm).Add(float64(skipped))
	}
}

// RecordPublishFailure counts a failed side-channel write
func (m *Metrics) RecordPublishFailure(sink string) {
	m.PublishFailures.WithLabelValues(sink).Inc()
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
