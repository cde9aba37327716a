package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the StarForge loader.
type Metrics struct {
	config MetricsConfig

	// Evaluation metrics
	evalsStarted   prometheus.Counter
	evalsCompleted *prometheus.CounterVec
	evalDuration   *prometheus.HistogramVec

	// Attribute conversion metrics
	conversions      *prometheus.CounterVec
	conversionErrors *prometheus.CounterVec

	// Rule metrics
	rulesLoaded *prometheus.CounterVec

	// Label cache metrics
	labelCacheHits   prometheus.Gauge
	labelCacheMisses prometheus.Gauge

	registry *prometheus.Registry
	server   *http.Server
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		evalsStarted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evals_started_total",
				Help:      "Total number of build file evaluations started",
			},
		),
		evalsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evals_completed_total",
				Help:      "Total number of build file evaluations completed",
			},
			[]string{"status"},
		),
		evalDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "eval_duration_seconds",
				Help:      "Build file evaluation duration in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),
		conversions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "attribute_conversions_total",
				Help:      "Total number of attribute conversions by declared type",
			},
			[]string{"type"},
		),
		conversionErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "attribute_conversion_errors_total",
				Help:      "Total number of failed attribute conversions by declared type",
			},
			[]string{"type"},
		),
		rulesLoaded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rules_loaded_total",
				Help:      "Total number of rules loaded by kind",
			},
			[]string{"kind"},
		),
		labelCacheHits: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "label_cache_hits",
				Help:      "Cumulative label intern cache hits",
			},
		),
		labelCacheMisses: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "label_cache_misses",
				Help:      "Cumulative label intern cache misses",
			},
		),
	}

	collectors := []prometheus.Collector{
		m.evalsStarted,
		m.evalsCompleted,
		m.evalDuration,
		m.conversions,
		m.conversionErrors,
		m.rulesLoaded,
		m.labelCacheHits,
		m.labelCacheMisses,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}

	return m, nil
}

// RecordEvalStarted records the start of a build file evaluation.
func (m *Metrics) RecordEvalStarted() {
	if m.registry == nil {
		return
	}
	m.evalsStarted.Inc()
}

// RecordEvalCompleted records the completion of a build file evaluation.
func (m *Metrics) RecordEvalCompleted(status string, duration time.Duration) {
	if m.registry == nil {
		return
	}
	m.evalsCompleted.WithLabelValues(status).Inc()
	m.evalDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordConversion records one successful attribute conversion.
func (m *Metrics) RecordConversion(typeName string) {
	if m.registry == nil {
		return
	}
	m.conversions.WithLabelValues(typeName).Inc()
}

// RecordConversionError records one failed attribute conversion.
func (m *Metrics) RecordConversionError(typeName string) {
	if m.registry == nil {
		return
	}
	m.conversionErrors.WithLabelValues(typeName).Inc()
}

// RecordRuleLoaded records one loaded rule of the given kind.
func (m *Metrics) RecordRuleLoaded(kind string) {
	if m.registry == nil {
		return
	}
	m.rulesLoaded.WithLabelValues(kind).Inc()
}

// SetLabelCacheStats publishes the label interner's cumulative counters.
func (m *Metrics) SetLabelCacheStats(hits, misses uint64) {
	if m.registry == nil {
		return
	}
	m.labelCacheHits.Set(float64(hits))
	m.labelCacheMisses.Set(float64(misses))
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartMetricsServer starts the metrics HTTP server in the background.
func (m *Metrics) StartMetricsServer() error {
	if m.registry == nil {
		return nil
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	m.server = &http.Server{
		Addr:    m.config.ListenAddress,
		Handler: mux,
	}

	go func() {
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			FromContext(context.Background()).Errorf("metrics server failed: %v", err)
		}
	}()

	return nil
}

// Shutdown stops the metrics HTTP server, if one is running.
func (m *Metrics) Shutdown() error {
	if m.server == nil {
		return nil
	}
	return m.server.Close()
}
