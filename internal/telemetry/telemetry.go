// Package telemetry holds the Prometheus metrics for pipeline stages and the
// prediction endpoint.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/KaramelBytes/reservo/internal/failure"
)

const namespace = "reservo"

// Metrics is a set of collectors registered on one registry.
type Metrics struct {
	reg *prometheus.Registry

	// StageDuration measures pipeline stage wall time.
	// Labels: stage (ingest, process, train), status (ok, error)
	StageDuration *prometheus.HistogramVec

	// StageFailures counts failed stages by error kind.
	// Labels: stage, kind
	StageFailures *prometheus.CounterVec

	// Predictions counts served predictions.
	// Labels: outcome (cancel, keep)
	Predictions *prometheus.CounterVec

	// PredictionLatency measures time spent scoring one form.
	PredictionLatency prometheus.Histogram

	// FormRejections counts submissions that failed validation.
	FormRejections prometheus.Counter
}

// New registers a fresh set of metrics, plus Go and process collectors, on
// a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"stage", "status"}),
		StageFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_failures_total",
			Help:      "Total failed pipeline stages by error kind",
		}, []string{"stage", "kind"}),
		Predictions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "serving",
			Name:      "predictions_total",
			Help:      "Total predictions served by outcome",
		}, []string{"outcome"}),
		PredictionLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "serving",
			Name:      "prediction_latency_seconds",
			Help:      "Time to score one submitted form",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		FormRejections: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "serving",
			Name:      "form_rejections_total",
			Help:      "Total form submissions rejected by validation",
		}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// ObserveStage runs fn and records its duration and, on error, its kind.
func (m *Metrics) ObserveStage(stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	status := "ok"
	if err != nil {
		status = "error"
		kind := failure.KindOf(err).String()
		m.StageFailures.WithLabelValues(stage, kind).Inc()
	}
	m.StageDuration.WithLabelValues(stage, status).Observe(time.Since(start).Seconds())
	return err
}

// ObservePrediction records one scored form.
func (m *Metrics) ObservePrediction(cancel bool, elapsed time.Duration) {
	outcome := "keep"
	if cancel {
		outcome = "cancel"
	}
	m.Predictions.WithLabelValues(outcome).Inc()
	m.PredictionLatency.Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// WriteTextfile dumps the registry for the node exporter textfile
// collector, for batch runs that exit before anything scrapes them.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.reg)
}
