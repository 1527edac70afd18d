package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/ahrav/go-postfactum/internal/domain"
	"github.com/ahrav/go-postfactum/internal/ports"
)

// ModelName is the name given to every post-factum solver session.
const ModelName = "Euclidean_Distance_Optimization"

// MetricSolveFailures counts failed solver sessions by failure kind and status.
const MetricSolveFailures = "solve_failures_total"

// SolveReport is the raw outcome of an optimal solver session.
type SolveReport struct {
	// Weighted is the optimal point in VS.
	Weighted []float64
	// SquaredDistance is the epigraph value at the optimum.
	SquaredDistance float64
	// Stats describes the session.
	Stats domain.SolveStats
}

// SolverAdapter owns the lifecycle of one solver session per call: it opens
// the model, builds the problem, optimizes, extracts values and always
// closes the session. Every failure is classified into a *domain.SolveError.
type SolverAdapter struct {
	solver  ports.Solver
	builder *ProblemBuilder
	logger  *slog.Logger
	metrics ports.MetricsCollector
}

// NewSolverAdapter creates an adapter. logger and metrics may be nil.
func NewSolverAdapter(
	solver ports.Solver,
	builder *ProblemBuilder,
	logger *slog.Logger,
	metrics ports.MetricsCollector,
) *SolverAdapter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &SolverAdapter{solver: solver, builder: builder, logger: logger, metrics: metrics}
}

// Solve runs one session for a validated scenario. On success the report
// holds a complete VS vector; on failure the error is a *domain.SolveError
// and the report is nil.
func (a *SolverAdapter) Solve(ctx context.Context, scn domain.Scenario) (*SolveReport, error) {
	logger := a.logger.With("run_id", RunIDFromContext(ctx), "scenario_id", scn.ID)

	model, err := a.solver.NewModel(ctx, ModelName)
	if err != nil {
		return nil, a.fail(ctx, logger, domain.FailureModelConstruction, domain.StatusUnknown,
			fmt.Errorf("open model: %w", err))
	}
	defer func() {
		if cerr := model.Close(); cerr != nil {
			logger.Warn("closing solver model failed", "error", cerr)
		}
	}()

	problem, err := a.build(ctx, model, scn)
	if err != nil {
		return nil, a.fail(ctx, logger, domain.FailureModelConstruction, domain.StatusUnknown, err)
	}

	if err := optimize(ctx, model); err != nil {
		return nil, a.fail(ctx, logger, domain.FailureRuntime, model.Status(), err)
	}

	status := model.Status()
	if !status.IsOptimal() {
		return nil, a.fail(ctx, logger, domain.FailureSolve, status, nil)
	}

	report := &SolveReport{Weighted: make([]float64, len(problem.X)), Stats: model.Stats()}
	for i, v := range problem.X {
		val, err := model.Value(v)
		if err != nil {
			return nil, a.fail(ctx, logger, domain.FailureRuntime, status, fmt.Errorf("read x_%d: %w", i, err))
		}
		report.Weighted[i] = val
	}
	if report.SquaredDistance, err = model.Value(problem.T); err != nil {
		return nil, a.fail(ctx, logger, domain.FailureRuntime, status, fmt.Errorf("read objective: %w", err))
	}

	logger.Debug("solver session finished",
		"status", status.String(),
		"outer_iterations", report.Stats.OuterIterations,
		"runtime", report.Stats.Runtime,
	)
	return report, nil
}

// build runs the problem builder, turning a panic inside the model into an error.
func (a *SolverAdapter) build(ctx context.Context, model ports.Model, scn domain.Scenario) (p *Problem, err error) {
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, fmt.Errorf("panic during model construction: %v", r)
		}
	}()
	return a.builder.Build(ctx, model, scn)
}

// optimize calls model.Optimize, turning a panic into an error.
func optimize(ctx context.Context, model ports.Model) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during optimize: %v", r)
		}
	}()
	return model.Optimize(ctx)
}

// fail logs and counts one failure path and returns its SolveError.
// Each kind logs its own message so operators can tell them apart.
// When the caller's context has ended, the context error is returned
// instead: the session was abandoned, not solved.
func (a *SolverAdapter) fail(ctx context.Context, logger *slog.Logger, kind domain.FailureKind, status domain.SolveStatus, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		logger.Info("solver session canceled", "status", status.String(), "error", cerr)
		return cerr
	}

	attrs := []any{"kind", string(kind), "status", status.String()}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	switch kind {
	case domain.FailureModelConstruction:
		logger.Error("building optimization model failed", attrs...)
	case domain.FailureRuntime:
		logger.Error("solver raised a runtime fault", attrs...)
	default:
		logger.Warn("solver finished without an optimal solution", attrs...)
	}

	if a.metrics != nil {
		a.metrics.RecordCounter(MetricSolveFailures, 1, map[string]string{
			"kind":   string(kind),
			"status": status.String(),
		})
	}
	return domain.NewSolveError(kind, status, err)
}

type runIDKey struct{}

// WithRunID returns a context carrying id for log correlation.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunIDFromContext returns the run ID stored by WithRunID, or "".
func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
