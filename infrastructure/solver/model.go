package solver

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/ahrav/go-postfactum/internal/domain"
	"github.com/ahrav/go-postfactum/internal/ports"
)

var _ ports.Model = (*model)(nil)

// variable is one declared decision variable.
type variable struct {
	name    string
	lb, ub  float64
	initial float64
	hasInit bool
}

// model is a single augmented-Lagrangian session. It is not safe for
// concurrent use; the Solver hands out one model per caller.
type model struct {
	name   string
	config Config
	logger *slog.Logger

	vars        []variable
	constraints []domain.Constraint
	objective   domain.LinExpr
	sense       domain.ObjectiveSense

	timeLimit time.Duration
	verbose   bool

	status   domain.SolveStatus
	solution []float64
	stats    domain.SolveStats
	closed   bool
}

func newModel(name string, config Config, logger *slog.Logger) *model {
	return &model{
		name:   name,
		config: config,
		logger: logger.With("model", name),
	}
}

// AddVar implements ports.Model.
func (m *model) AddVar(name string, lb, ub float64) (domain.Var, error) {
	if m.closed {
		return 0, ports.NewSolverError(m.name, "AddVar", ports.ErrModelClosed)
	}
	if math.IsNaN(lb) || math.IsNaN(ub) || lb > ub || math.IsInf(lb, 1) || math.IsInf(ub, -1) {
		return 0, ports.NewSolverError(m.name, "AddVar",
			fmt.Errorf("%w: %s in [%v, %v]", ports.ErrInvalidBounds, name, lb, ub))
	}
	m.vars = append(m.vars, variable{name: name, lb: lb, ub: ub})
	return domain.Var(len(m.vars) - 1), nil
}

// SetInitial implements ports.Model.
func (m *model) SetInitial(v domain.Var, value float64) error {
	if m.closed {
		return ports.NewSolverError(m.name, "SetInitial", ports.ErrModelClosed)
	}
	if !m.known(v) {
		return ports.NewSolverError(m.name, "SetInitial", fmt.Errorf("%w: %d", ports.ErrUnknownVariable, v))
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return ports.NewSolverError(m.name, "SetInitial", fmt.Errorf("non-finite initial value %v", value))
	}
	m.vars[v].initial = value
	m.vars[v].hasInit = true
	return nil
}

// AddConstraint implements ports.Model.
func (m *model) AddConstraint(c domain.Constraint) error {
	if m.closed {
		return ports.NewSolverError(m.name, "AddConstraint", ports.ErrModelClosed)
	}
	if c.Expr == nil {
		return ports.NewSolverError(m.name, "AddConstraint",
			fmt.Errorf("%w: %s has no expression", ports.ErrInvalidConstraint, c.Name))
	}
	if math.IsNaN(c.RHS) || math.IsInf(c.RHS, 0) {
		return ports.NewSolverError(m.name, "AddConstraint",
			fmt.Errorf("%w: %s has right-hand side %v", ports.ErrInvalidConstraint, c.Name, c.RHS))
	}
	if c.Sense != domain.LessEqual && c.Sense != domain.GreaterEqual && c.Sense != domain.Equal {
		return ports.NewSolverError(m.name, "AddConstraint",
			fmt.Errorf("%w: %s has sense %d", ports.ErrInvalidConstraint, c.Name, c.Sense))
	}
	for _, v := range c.Expr.Vars() {
		if !m.known(v) {
			return ports.NewSolverError(m.name, "AddConstraint",
				fmt.Errorf("%w: %s references %d", ports.ErrUnknownVariable, c.Name, v))
		}
	}
	m.constraints = append(m.constraints, c)
	return nil
}

// SetObjective implements ports.Model.
func (m *model) SetObjective(obj domain.LinExpr, sense domain.ObjectiveSense) error {
	if m.closed {
		return ports.NewSolverError(m.name, "SetObjective", ports.ErrModelClosed)
	}
	if sense != domain.Minimize && sense != domain.Maximize {
		return ports.NewSolverError(m.name, "SetObjective",
			fmt.Errorf("%w: objective sense %d", ports.ErrInvalidConstraint, sense))
	}
	for _, t := range obj.Terms {
		if !m.known(t.Var) {
			return ports.NewSolverError(m.name, "SetObjective",
				fmt.Errorf("%w: objective references %d", ports.ErrUnknownVariable, t.Var))
		}
		if math.IsNaN(t.Coef) || math.IsInf(t.Coef, 0) {
			return ports.NewSolverError(m.name, "SetObjective",
				fmt.Errorf("%w: non-finite objective coefficient", ports.ErrInvalidConstraint))
		}
	}
	m.objective = obj
	m.sense = sense
	return nil
}

// SetTimeLimit implements ports.Model. A non-positive limit disables it.
func (m *model) SetTimeLimit(d time.Duration) { m.timeLimit = d }

// SetVerbose implements ports.Model.
func (m *model) SetVerbose(verbose bool) { m.verbose = verbose }

// Optimize implements ports.Model.
func (m *model) Optimize(ctx context.Context) error {
	if m.closed {
		return ports.NewSolverError(m.name, "Optimize", ports.ErrModelClosed)
	}
	if len(m.vars) == 0 {
		return ports.NewSolverError(m.name, "Optimize",
			fmt.Errorf("%w: model has no variables", ports.ErrInvalidConstraint))
	}

	start := time.Now()
	if m.timeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeLimit)
		defer cancel()
	}

	m.solution = nil
	run := newRun(m, ctx)
	status, x := run.solve()

	m.status = status
	m.stats = run.stats
	m.stats.Status = status
	m.stats.Runtime = time.Since(start)
	if status.IsOptimal() {
		m.solution = x
	}

	if m.verbose {
		m.logger.Info("optimize finished",
			"status", status.String(),
			"outer_iterations", m.stats.OuterIterations,
			"func_evaluations", m.stats.FuncEvaluations,
			"fixed_variables", m.stats.FixedVariables,
			"max_violation", m.stats.MaxViolation,
			"runtime", m.stats.Runtime,
		)
	}
	return nil
}

// Status implements ports.Model.
func (m *model) Status() domain.SolveStatus { return m.status }

// Value implements ports.Model.
func (m *model) Value(v domain.Var) (float64, error) {
	if !m.known(v) {
		return 0, ports.NewSolverError(m.name, "Value", fmt.Errorf("%w: %d", ports.ErrUnknownVariable, v))
	}
	if m.solution == nil {
		return 0, ports.NewSolverError(m.name, "Value", ports.ErrNotSolved)
	}
	return m.solution[v], nil
}

// Stats implements ports.Model.
func (m *model) Stats() domain.SolveStats { return m.stats }

// Close implements ports.Model.
func (m *model) Close() error {
	m.closed = true
	m.vars = nil
	m.constraints = nil
	return nil
}

func (m *model) known(v domain.Var) bool { return v >= 0 && int(v) < len(m.vars) }
