package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector provides Prometheus metrics collection for knograph operations
type MetricsCollector struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	errorsTotal       *prometheus.CounterVec
	cacheEventsTotal  *prometheus.CounterVec
	residentBytes     *prometheus.GaugeVec
	registry          *prometheus.Registry
}

// NewCollector creates a new Prometheus metrics collector
func NewCollector() *MetricsCollector {
	registry := prometheus.NewRegistry()

	operationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "knograph_operations_total",
			Help: "Total number of knograph operations by type and status",
		},
		[]string{"operation", "status"},
	)

	operationDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "knograph_operation_duration_seconds",
			Help:    "Duration of knograph operations by type and stage",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"operation", "stage"},
	)

	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "knograph_errors_total",
			Help: "Total number of errors by operation and error type",
		},
		[]string{"operation", "error_type"},
	)

	cacheEventsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "knograph_cache_events_total",
			Help: "Cache events (hit, miss, evict, promote, reject) by tier",
		},
		[]string{"tier", "event"},
	)

	residentBytes := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "knograph_cache_resident_bytes",
			Help: "Bytes currently resident in each cache tier",
		},
		[]string{"tier"},
	)

	registry.MustRegister(operationsTotal)
	registry.MustRegister(operationDuration)
	registry.MustRegister(errorsTotal)
	registry.MustRegister(cacheEventsTotal)
	registry.MustRegister(residentBytes)

	return &MetricsCollector{
		operationsTotal:   operationsTotal,
		operationDuration: operationDuration,
		errorsTotal:       errorsTotal,
		cacheEventsTotal:  cacheEventsTotal,
		residentBytes:     residentBytes,
		registry:          registry,
	}
}

// RecordOperation records the completion of an operation
func (m *MetricsCollector) RecordOperation(ctx context.Context, operation string, status string, durationMs int64) {
	m.operationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordStage records the duration of a specific stage within an operation
func (m *MetricsCollector) RecordStage(ctx context.Context, operation string, stage string, durationMs int64) {
	m.operationDuration.WithLabelValues(operation, stage).Observe(float64(durationMs) / 1000.0)
}

// RecordError records an error occurrence
func (m *MetricsCollector) RecordError(ctx context.Context, operation string, errorType string) {
	m.errorsTotal.WithLabelValues(operation, errorType).Inc()
}

// RecordCacheEvent records a cache event for a tier
func (m *MetricsCollector) RecordCacheEvent(ctx context.Context, tier string, event string) {
	m.cacheEventsTotal.WithLabelValues(tier, event).Inc()
}

// SetResidentBytes sets the resident byte gauge for a tier
func (m *MetricsCollector) SetResidentBytes(ctx context.Context, tier string, bytes int64) {
	m.residentBytes.WithLabelValues(tier).Set(float64(bytes))
}

// Registry returns the Prometheus registry for HTTP exposure
func (m *MetricsCollector) Registry() *prometheus.Registry {
	return m.registry
}
