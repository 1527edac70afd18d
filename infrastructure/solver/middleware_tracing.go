package solver

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-postfactum/internal/ports"
)

// tracedSolver opens an OpenTelemetry span around each Optimize call.
type tracedSolver struct {
	next   ports.Solver
	tracer trace.Tracer
}

// TracingMiddleware creates middleware that traces solver sessions with the
// global tracer provider under serviceName.
func TracingMiddleware(serviceName string) ports.SolverMiddleware {
	tracer := otel.Tracer(serviceName)
	return func(next ports.Solver) ports.Solver {
		return &tracedSolver{next: next, tracer: tracer}
	}
}

// NewModel opens a session on the wrapped solver and traces it.
func (t *tracedSolver) NewModel(ctx context.Context, name string) (ports.Model, error) {
	model, err := t.next.NewModel(ctx, name)
	if err != nil {
		return nil, err
	}
	return &tracedModel{Model: model, name: name, solver: t.next.Name(), tracer: t.tracer}, nil
}

// Name returns the wrapped solver's name.
func (t *tracedSolver) Name() string { return t.next.Name() }

type tracedModel struct {
	ports.Model
	name   string
	solver string
	tracer trace.Tracer
}

// Optimize runs the wrapped model inside a "solver.optimize" span.
func (t *tracedModel) Optimize(ctx context.Context) error {
	ctx, span := t.tracer.Start(ctx, "solver.optimize",
		trace.WithAttributes(
			attribute.String("solver.name", t.solver),
			attribute.String("model.name", t.name),
		),
	)
	defer span.End()

	err := t.Model.Optimize(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	stats := t.Model.Stats()
	span.SetAttributes(
		attribute.String("solver.status", stats.Status.String()),
		attribute.Int("solver.outer_iterations", stats.OuterIterations),
		attribute.Int("solver.func_evaluations", stats.FuncEvaluations),
		attribute.Int("solver.fixed_variables", stats.FixedVariables),
		attribute.Float64("solver.max_violation", stats.MaxViolation),
	)
	if !stats.Status.IsOptimal() {
		span.SetStatus(codes.Error, "solver status "+stats.Status.String())
		return nil
	}
	span.SetStatus(codes.Ok, "")
	return nil
}
