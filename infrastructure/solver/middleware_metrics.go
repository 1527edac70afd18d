package solver

import (
	"context"
	"time"

	"github.com/ahrav/go-postfactum/internal/ports"
)

// Metric names recorded by MetricsMiddleware.
const (
	MetricSessionsTotal    = "solver_sessions_total"
	MetricOptimizeSeconds  = "solver_optimize_seconds"
	MetricOuterIterations  = "solver_outer_iterations"
	MetricSessionErrors    = "solver_session_errors_total"
	statusLabelSessionFail = "session_error"
)

// metricsSolver records session outcomes for every model it hands out.
type metricsSolver struct {
	next      ports.Solver
	collector ports.MetricsCollector
}

// MetricsMiddleware creates middleware that reports optimize latency, terminal
// status counts and iteration counts to collector.
func MetricsMiddleware(collector ports.MetricsCollector) ports.SolverMiddleware {
	return func(next ports.Solver) ports.Solver {
		return &metricsSolver{
			next:      next,
			collector: collector,
		}
	}
}

// NewModel opens a session on the wrapped solver and instruments it.
func (m *metricsSolver) NewModel(ctx context.Context, name string) (ports.Model, error) {
	model, err := m.next.NewModel(ctx, name)
	if err != nil {
		if m.collector != nil {
			m.collector.RecordCounter(MetricSessionErrors, 1, map[string]string{
				"solver":    m.next.Name(),
				"operation": "new_model",
			})
		}
		return nil, err
	}
	return &metricsModel{Model: model, solver: m.next.Name(), collector: m.collector}, nil
}

// Name returns the wrapped solver's name.
func (m *metricsSolver) Name() string { return m.next.Name() }

// metricsModel overrides Optimize; every other call goes straight to the
// embedded model.
type metricsModel struct {
	ports.Model
	solver    string
	collector ports.MetricsCollector
}

// Optimize runs the wrapped model and records its outcome.
func (m *metricsModel) Optimize(ctx context.Context) error {
	start := time.Now()
	err := m.Model.Optimize(ctx)
	if m.collector == nil {
		return err
	}

	status := m.Model.Status().String()
	if err != nil {
		status = statusLabelSessionFail
	}
	labels := map[string]string{
		"solver": m.solver,
		"status": status,
	}
	m.collector.RecordLatency(MetricOptimizeSeconds, time.Since(start), labels)
	m.collector.RecordCounter(MetricSessionsTotal, 1, labels)
	if err == nil {
		m.collector.RecordHistogram(MetricOuterIterations,
			float64(m.Model.Stats().OuterIterations), map[string]string{"solver": m.solver})
	}
	return err
}
