// Package metrics exports engine and solver measurements to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/go-postfactum/internal/ports"
)

// Namespace prefixes every exported metric.
const Namespace = "postfactum"

const unknownLabel = "unknown"

// PrometheusMetrics implements ports.MetricsCollector on top of Prometheus.
// Metric names recorded by the engine and the solver middleware map onto
// dedicated collectors; anything else lands in generic vectors labeled by
// the metric name.
type PrometheusMetrics struct {
	solveDuration     *prometheus.HistogramVec
	solvesTotal       *prometheus.CounterVec
	solveFailures     *prometheus.CounterVec
	achievedCloseness prometheus.Histogram
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	cacheEntries      prometheus.Gauge

	sessionsTotal   *prometheus.CounterVec
	optimizeSeconds *prometheus.HistogramVec
	outerIterations *prometheus.HistogramVec
	sessionErrors   *prometheus.CounterVec

	operationLatency *prometheus.HistogramVec
	operationCounter *prometheus.CounterVec
	systemGauges     *prometheus.GaugeVec
	observations     *prometheus.HistogramVec
}

// NewPrometheusMetrics creates the collectors and registers them with reg.
// A nil reg uses the default Prometheus registry. Registering twice with
// the same registry panics.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &PrometheusMetrics{
		// Engine metrics.
		solveDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "solve_duration_seconds",
				Help:      "Wall-clock time of post-factum computations, including cache lookups.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
			},
			[]string{"outcome"},
		),
		solvesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "solves_total",
				Help:      "Post-factum computations by outcome.",
			},
			[]string{"outcome"},
		),
		solveFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "solve_failures_total",
				Help:      "Solver sessions that produced no solution, by failure kind and solver status.",
			},
			[]string{"kind", "status"},
		),
		achievedCloseness: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "achieved_closeness",
				Help:      "Closeness coefficient reached by successful computations.",
				Buckets:   prometheus.LinearBuckets(0.05, 0.05, 20),
			},
		),
		cacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "cache_hits_total",
			Help:      "Computations served from the adjustment cache.",
		}),
		cacheMisses: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "cache_misses_total",
			Help:      "Cache lookups that required a solver session.",
		}),
		cacheEntries: f.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "cache_entries",
			Help:      "Adjustments currently held by the result cache.",
		}),

		// Solver session metrics.
		sessionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "solver_sessions_total",
				Help:      "Finished Optimize calls by solver and terminal status.",
			},
			[]string{"solver", "status"},
		),
		optimizeSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "solver_optimize_seconds",
				Help:      "Duration of Optimize calls.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
			},
			[]string{"solver", "status"},
		),
		outerIterations: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "solver_outer_iterations",
				Help:      "Multiplier updates per Optimize call.",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
			},
			[]string{"solver"},
		),
		sessionErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "solver_session_errors_total",
				Help:      "Solver sessions that could not be opened or run.",
			},
			[]string{"solver", "operation"},
		),

		// Generic fallbacks.
		operationLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "operation_duration_seconds",
				Help:      "Latency of operations without a dedicated metric.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		operationCounter: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "operations_total",
				Help:      "Counters without a dedicated metric.",
			},
			[]string{"metric"},
		),
		systemGauges: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "system_state",
				Help:      "Current values reported as gauges.",
			},
			[]string{"metric"},
		),
		observations: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "observations",
				Help:      "Histogram values without a dedicated metric.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"metric"},
		),
	}
}

// label returns labels[key], or "unknown" when it is missing or empty.
func label(labels map[string]string, key string) string {
	if v := labels[key]; v != "" {
		return v
	}
	return unknownLabel
}

// RecordLatency implements ports.MetricsCollector.
func (pm *PrometheusMetrics) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	switch operation {
	case "solve_duration_seconds":
		pm.solveDuration.WithLabelValues(label(labels, "outcome")).Observe(duration.Seconds())
	case "solver_optimize_seconds":
		pm.optimizeSeconds.WithLabelValues(label(labels, "solver"), label(labels, "status")).
			Observe(duration.Seconds())
	default:
		pm.operationLatency.WithLabelValues(operation).Observe(duration.Seconds())
	}
}

// RecordCounter implements ports.MetricsCollector.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	switch metric {
	case "solves_total":
		pm.solvesTotal.WithLabelValues(label(labels, "outcome")).Add(value)
	case "solve_failures_total":
		pm.solveFailures.WithLabelValues(label(labels, "kind"), label(labels, "status")).Add(value)
	case "cache_hits_total":
		pm.cacheHits.Add(value)
	case "cache_misses_total":
		pm.cacheMisses.Add(value)
	case "solver_sessions_total":
		pm.sessionsTotal.WithLabelValues(label(labels, "solver"), label(labels, "status")).Add(value)
	case "solver_session_errors_total":
		pm.sessionErrors.WithLabelValues(label(labels, "solver"), label(labels, "operation")).Add(value)
	default:
		pm.operationCounter.WithLabelValues(metric).Add(value)
	}
}

// RecordGauge implements ports.MetricsCollector.
func (pm *PrometheusMetrics) RecordGauge(metric string, value float64, _ map[string]string) {
	switch metric {
	case "cache_size":
		pm.cacheEntries.Set(value)
	default:
		pm.systemGauges.WithLabelValues(metric).Set(value)
	}
}

// RecordHistogram implements ports.MetricsCollector.
func (pm *PrometheusMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	switch metric {
	case "achieved_closeness":
		pm.achievedCloseness.Observe(value)
	case "solver_outer_iterations":
		pm.outerIterations.WithLabelValues(label(labels, "solver")).Observe(value)
	default:
		pm.observations.WithLabelValues(metric).Observe(value)
	}
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
