package testutils

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ahrav/go-postfactum/internal/domain"
	"github.com/ahrav/go-postfactum/internal/ports"
)

// ErrFakeNotSolved is returned by FakeModel.Value when the scripted status
// is not optimal or no solution value was scripted.
var ErrFakeNotSolved = errors.New("fake model: no solution")

// FakeSolver implements ports.Solver with scripted behavior for testing the
// application layer without running a numerical engine.
// All fields must be set before the first NewModel call.
type FakeSolver struct {
	// Status is the terminal status every model reports after Optimize.
	Status domain.SolveStatus
	// Solution holds the value returned for each Var when Status is optimal.
	Solution []float64
	// NewModelErr makes NewModel fail.
	NewModelErr error
	// OptimizeErr makes Optimize fail.
	OptimizeErr error
	// ConstructionPanic is raised from AddConstraint when non-nil.
	ConstructionPanic any
	// OptimizePanic is raised from Optimize when non-nil.
	OptimizePanic any
	// OptimizeDelay makes Optimize block until it elapses or ctx ends.
	OptimizeDelay time.Duration

	mu     sync.Mutex
	models []*FakeModel
}

var _ ports.Solver = (*FakeSolver)(nil)

// NewFakeSolver returns a FakeSolver that reports status with solution.
func NewFakeSolver(status domain.SolveStatus, solution []float64) *FakeSolver {
	return &FakeSolver{Status: status, Solution: solution}
}

// Name implements ports.Solver.
func (f *FakeSolver) Name() string { return "fake" }

// NewModel implements ports.Solver.
func (f *FakeSolver) NewModel(ctx context.Context, name string) (ports.Model, error) {
	if f.NewModelErr != nil {
		return nil, f.NewModelErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m := &FakeModel{Name: name, solver: f}
	f.mu.Lock()
	f.models = append(f.models, m)
	f.mu.Unlock()
	return m, nil
}

// Models returns every model handed out so far.
func (f *FakeSolver) Models() []*FakeModel {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*FakeModel, len(f.models))
	copy(out, f.models)
	return out
}

// LastModel returns the most recently created model, or nil.
func (f *FakeSolver) LastModel() *FakeModel {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.models) == 0 {
		return nil
	}
	return f.models[len(f.models)-1]
}

// FakeVar records one AddVar call.
type FakeVar struct {
	Name    string
	LB, UB  float64
	Initial float64
}

// FakeModel records everything the caller builds so tests can inspect the
// formulation.
type FakeModel struct {
	Name        string
	Vars        []FakeVar
	Constraints []domain.Constraint
	Objective   domain.LinExpr
	Sense       domain.ObjectiveSense
	TimeLimit   time.Duration
	Verbose     bool
	Optimized   bool
	Closed      bool

	solver *FakeSolver
	status domain.SolveStatus
}

var _ ports.Model = (*FakeModel)(nil)

// AddVar implements ports.Model.
func (m *FakeModel) AddVar(name string, lb, ub float64) (domain.Var, error) {
	m.Vars = append(m.Vars, FakeVar{Name: name, LB: lb, UB: ub})
	return domain.Var(len(m.Vars) - 1), nil
}

// SetInitial implements ports.Model.
func (m *FakeModel) SetInitial(v domain.Var, value float64) error {
	if int(v) >= len(m.Vars) || v < 0 {
		return ports.ErrUnknownVariable
	}
	m.Vars[v].Initial = value
	return nil
}

// AddConstraint implements ports.Model.
func (m *FakeModel) AddConstraint(c domain.Constraint) error {
	if m.solver.ConstructionPanic != nil {
		panic(m.solver.ConstructionPanic)
	}
	m.Constraints = append(m.Constraints, c)
	return nil
}

// SetObjective implements ports.Model.
func (m *FakeModel) SetObjective(obj domain.LinExpr, sense domain.ObjectiveSense) error {
	m.Objective = obj
	m.Sense = sense
	return nil
}

// SetTimeLimit implements ports.Model.
func (m *FakeModel) SetTimeLimit(d time.Duration) { m.TimeLimit = d }

// SetVerbose implements ports.Model.
func (m *FakeModel) SetVerbose(verbose bool) { m.Verbose = verbose }

// Optimize implements ports.Model.
func (m *FakeModel) Optimize(ctx context.Context) error {
	m.Optimized = true
	if m.solver.OptimizePanic != nil {
		panic(m.solver.OptimizePanic)
	}
	if d := m.solver.OptimizeDelay; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			m.status = domain.StatusTimeLimit
			return nil
		}
	}
	if m.solver.OptimizeErr != nil {
		return m.solver.OptimizeErr
	}
	m.status = m.solver.Status
	return nil
}

// Status implements ports.Model.
func (m *FakeModel) Status() domain.SolveStatus { return m.status }

// Value implements ports.Model.
func (m *FakeModel) Value(v domain.Var) (float64, error) {
	if !m.status.IsOptimal() || int(v) >= len(m.solver.Solution) || v < 0 {
		return 0, ErrFakeNotSolved
	}
	return m.solver.Solution[v], nil
}

// Stats implements ports.Model.
func (m *FakeModel) Stats() domain.SolveStats {
	return domain.SolveStats{Status: m.status, OuterIterations: 1}
}

// Close implements ports.Model.
func (m *FakeModel) Close() error {
	m.Closed = true
	return nil
}

// Constraint returns the constraint with the given name.
func (m *FakeModel) Constraint(name string) (domain.Constraint, bool) {
	for _, c := range m.Constraints {
		if c.Name == name {
			return c, true
		}
	}
	return domain.Constraint{}, false
}
