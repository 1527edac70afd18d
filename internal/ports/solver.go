// Package ports defines the core interfaces that form the contract between
// the domain/application layers and the infrastructure layer.
// These interfaces enable dependency inversion and make the system testable.
package ports

import (
	"context"
	"time"

	"github.com/ahrav/go-postfactum/internal/domain"
)

// Solver is the external nonlinear-programming capability. It hands out
// independent model sessions; sessions share no mutable state, so a Solver
// must be safe for concurrent NewModel calls.
type Solver interface {
	// NewModel opens a fresh model session. Callers own the session and
	// must Close it on every exit path.
	NewModel(ctx context.Context, name string) (Model, error)

	// Name identifies the solver implementation for logs and metrics.
	Name() string
}

// Model is one optimization instance: continuous bounded variables,
// algebraic constraints, a linear objective and a time budget.
// A Model is not safe for concurrent use.
type Model interface {
	// AddVar declares a continuous variable with bounds lb ≤ x ≤ ub.
	// Infinite bounds are allowed; lb > ub or NaN bounds are rejected.
	AddVar(name string, lb, ub float64) (domain.Var, error)

	// SetInitial suggests a starting value for v. Solvers may ignore it.
	SetInitial(v domain.Var, value float64) error

	// AddConstraint adds Expr <sense> RHS. The expression may only
	// reference variables issued by this model.
	AddConstraint(c domain.Constraint) error

	// SetObjective sets a linear objective.
	SetObjective(obj domain.LinExpr, sense domain.ObjectiveSense) error

	// SetTimeLimit bounds the wall-clock time of Optimize.
	SetTimeLimit(d time.Duration)

	// SetVerbose toggles solver progress output. Output is off by default.
	SetVerbose(verbose bool)

	// Optimize runs the solver. A nil error means the solver reached a
	// terminal status, which may still be non-optimal; inspect Status.
	Optimize(ctx context.Context) error

	// Status returns the terminal status of the last Optimize call.
	Status() domain.SolveStatus

	// Value returns the solution value of v. It fails unless Status is optimal.
	Value(v domain.Var) (float64, error)

	// Stats returns counters describing the last Optimize call.
	Stats() domain.SolveStats

	// Close releases the session. It is safe to call more than once.
	Close() error
}

// SolverMiddleware wraps a Solver with a cross-cutting concern such as
// rate limiting, metrics or tracing.
type SolverMiddleware func(next Solver) Solver
