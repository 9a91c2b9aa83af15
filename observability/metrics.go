// Package observability exposes Prometheus metrics for generations, stages,
// completion calls and HTTP requests. Tracing lives in the tracing
// subpackage.
package observability

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GoCodeAlone/wfgen/ai"
)

// MetricsConfig holds the metric naming options.
type MetricsConfig struct {
	Namespace string `yaml:"namespace" json:"namespace"`
	Path      string `yaml:"path" json:"path"`
	// RuntimeMetrics adds the Go runtime and process collectors.
	RuntimeMetrics bool `yaml:"runtime_metrics" json:"runtimeMetrics"`
}

// DefaultMetricsConfig returns the default configuration.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace:      "wfgen",
		Path:           "/metrics",
		RuntimeMetrics: true,
	}
}

// Metrics holds the generator's Prometheus collectors in a private registry.
// It implements compiler.Observer and ai.CompletionObserver.
type Metrics struct {
	config   MetricsConfig
	registry *prometheus.Registry

	Generations         *prometheus.CounterVec
	GenerationDuration  *prometheus.HistogramVec
	StageDuration       *prometheus.HistogramVec
	StageFallbacks      *prometheus.CounterVec
	CompletionCalls     *prometheus.CounterVec
	CompletionDuration  *prometheus.HistogramVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates Metrics with the default configuration.
func NewMetrics() *Metrics {
	return NewMetricsWithConfig(DefaultMetricsConfig())
}

// NewMetricsWithConfig creates Metrics with its own Prometheus registry.
func NewMetricsWithConfig(cfg MetricsConfig) *Metrics {
	if cfg.Namespace == "" {
		cfg.Namespace = "wfgen"
	}
	if cfg.Path == "" {
		cfg.Path = "/metrics"
	}
	ns := cfg.Namespace
	reg := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: reg,
		Generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "generations_total",
			Help:      "Total number of workflow generations by outcome",
		}, []string{"status"}),
		GenerationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "generation_duration_seconds",
			Help:      "Duration of workflow generations in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		}, []string{"status"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages in seconds",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		StageFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "stage_fallbacks_total",
			Help:      "Total number of stages that used their deterministic fallback",
		}, []string{"stage"}),
		CompletionCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "completion_calls_total",
			Help:      "Total number of completion provider calls by outcome",
		}, []string{"provider", "status"}),
		CompletionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "completion_duration_seconds",
			Help:      "Duration of completion provider calls in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"provider"}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status_code"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(
		m.Generations, m.GenerationDuration,
		m.StageDuration, m.StageFallbacks,
		m.CompletionCalls, m.CompletionDuration,
		m.HTTPRequestsTotal, m.HTTPRequestDuration,
	)
	if cfg.RuntimeMetrics {
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	return m
}

// Registry returns the private Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Path returns the HTTP path the metrics handler should be mounted on.
func (m *Metrics) Path() string { return m.config.Path }

// Handler returns an HTTP handler that serves the registry in the
// Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveStage records one stage run.
func (m *Metrics) ObserveStage(stage string, elapsed time.Duration, fellBack bool) {
	m.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	if fellBack {
		m.StageFallbacks.WithLabelValues(stage).Inc()
	}
}

// ObserveGeneration records one finished generation.
func (m *Metrics) ObserveGeneration(status string, elapsed time.Duration) {
	m.Generations.WithLabelValues(status).Inc()
	m.GenerationDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}

// ObserveCompletion records one completion attempt.
func (m *Metrics) ObserveCompletion(provider string, elapsed time.Duration, err error) {
	m.CompletionCalls.WithLabelValues(provider, completionStatus(err)).Inc()
	m.CompletionDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

func completionStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ai.ErrCircuitOpen):
		return "circuit_open"
	}
	return "error"
}

// RecordHTTPRequest records an HTTP request metric.
func (m *Metrics) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
