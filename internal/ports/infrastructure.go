package ports

import (
	"context"
	"time"

	"github.com/ahrav/go-postfactum/internal/domain"
)

// ResultCache stores finished adjustments keyed by a scenario fingerprint.
// Implementations must be safe for concurrent use.
type ResultCache interface {
	// Get returns the cached adjustment for key, if present.
	Get(ctx context.Context, key string) (*domain.Adjustment, bool, error)

	// Set stores adj under key.
	Set(ctx context.Context, key string, adj *domain.Adjustment) error

	// Len returns the number of cached entries.
	Len() int
}

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations should integrate with observability platforms like
// Prometheus, OpenTelemetry, or custom monitoring solutions.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	// This is useful for tracking events like cache hits/misses, errors, etc.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	// This is useful for tracking distributions like achieved closeness.
	RecordHistogram(metric string, value float64, labels map[string]string)
}
