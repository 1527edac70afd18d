package application

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-postfactum/internal/domain"
	"github.com/ahrav/go-postfactum/internal/testutils"
)

func buildFake(t *testing.T, cfg SolverConfig, scn domain.Scenario) (*testutils.FakeModel, *Problem) {
	t.Helper()
	fs := testutils.NewFakeSolver(domain.StatusOptimal, nil)
	m, err := fs.NewModel(context.Background(), ModelName)
	require.NoError(t, err)
	p, err := NewProblemBuilder(cfg).Build(context.Background(), m, scn)
	require.NoError(t, err)
	return fs.LastModel(), p
}

func TestProblemBuilder_BaseFormulation(t *testing.T) {
	scn := domain.Scenario{Performances: []float64{0.8, 0.5}, Weights: []float64{1, 0.6}, TargetR: 0.9}
	m, p := buildFake(t, DefaultConfig().Solver, scn)

	require.Len(t, m.Vars, 3, "one variable per criterion plus the epigraph variable")
	assert.Equal(t, testutils.FakeVar{Name: "x_0", LB: 0, UB: 1, Initial: 0.8}, m.Vars[0])
	assert.Equal(t, "x_1", m.Vars[1].Name)
	assert.InDelta(t, 0.6, m.Vars[1].UB, 1e-15)
	assert.InDelta(t, 0.3, m.Vars[1].Initial, 1e-15)
	assert.Equal(t, 0.0, m.Vars[2].LB)
	assert.True(t, math.IsInf(m.Vars[2].UB, 1))

	assert.Equal(t, []float64{1, 0.6}, p.PIS)
	assert.Equal(t, []float64{0, 0}, p.NIS)
	assert.Equal(t, domain.Var(2), p.T)

	require.Len(t, m.Constraints, 2)
	target, ok := m.Constraint(TargetConstraintName)
	require.True(t, ok)
	assert.Equal(t, domain.LessEqual, target.Sense)
	assert.Zero(t, target.RHS)

	// At the input point R ≈ 0.7032 < 0.9, so the target row is violated.
	x := []float64{0.8, 0.3, 0}
	r, err := domain.ClosenessCoefficient(x[:2], p.PIS, p.NIS)
	require.NoError(t, err)
	assert.InDelta(t, 0.9-r, target.Expr.Eval(x)/(math.Sqrt(0.13)+math.Sqrt(0.73)), 1e-12)

	epi, ok := m.Constraint(EpigraphConstraintName)
	require.True(t, ok)
	assert.InDelta(t, 0.01-0.5, epi.Expr.Eval([]float64{0.9, 0.3, 0.5}), 1e-12)

	assert.Equal(t, domain.Minimize, m.Sense)
	assert.Equal(t, []domain.Term{{Var: p.T, Coef: 1}}, m.Objective.Terms)
	assert.Equal(t, DefaultTimeLimit, m.TimeLimit)
	assert.False(t, m.Verbose)
}

func TestProblemBuilder_Exclusions(t *testing.T) {
	scn := domain.Scenario{
		Performances: []float64{0.8, 0.5, 0.2},
		Weights:      []float64{1, 0.6, 0.5},
		TargetR:      0.7,
		Excluded:     []int{2, 0, 2},
	}
	m, p := buildFake(t, DefaultConfig().Solver, scn)

	var names []string
	for _, c := range m.Constraints {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{
		TargetConstraintName,
		"Exclude_Criterion_0_Constraint", "Exclude_Criterion_0_Constraint",
		"Exclude_Criterion_2_Constraint", "Exclude_Criterion_2_Constraint",
		EpigraphConstraintName,
	}, names, "excluded indices are a sorted set")

	for _, c := range m.Constraints[1:5] {
		require.True(t, c.IsLinear())
		assert.Equal(t, ExclusionBand, c.RHS)
	}

	// Both rows hold at the input value and one fails just outside the band.
	at := []float64{0.8, 0.3, 0.1, 0}
	for _, c := range m.Constraints[3:5] {
		assert.LessOrEqual(t, c.Expr.Eval(at), c.RHS)
	}
	moved := []float64{0.8, 0.3, 0.1 + 1e-9, 0}
	assert.Greater(t, m.Constraints[3].Expr.Eval(moved), m.Constraints[3].RHS)
	assert.InDelta(t, 0.1, p.PerfVS[2], 1e-15)
}

func TestProblemBuilder_ConstantMean(t *testing.T) {
	scn := domain.Scenario{
		Performances: []float64{0.5, 1.0},
		Weights:      []float64{1, 0.2},
		TargetR:      0.6,
		ConstantWM:   true,
	}
	m, _ := buildFake(t, DefaultConfig().Solver, scn)

	c, ok := m.Constraint(ConstantWMConstraintName)
	require.True(t, ok)
	assert.Equal(t, domain.Equal, c.Sense)
	assert.InDelta(t, 0.35, c.RHS, 1e-15)
	assert.InDelta(t, 0.35, c.Expr.Eval([]float64{0.6, 0.1, 0}), 1e-15)
}

func TestProblemBuilder_AppliesSolverSettings(t *testing.T) {
	cfg := DefaultConfig().Solver
	cfg.TimeLimit = 1500 * time.Millisecond
	cfg.Verbose = true
	m, _ := buildFake(t, cfg, domain.Scenario{Performances: []float64{0.5}, Weights: []float64{1}, TargetR: 0.9})

	assert.Equal(t, 1500*time.Millisecond, m.TimeLimit)
	assert.True(t, m.Verbose)

	cfg.TimeLimit = 0
	m, _ = buildFake(t, cfg, domain.Scenario{Performances: []float64{0.5}, Weights: []float64{1}, TargetR: 0.9})
	assert.Equal(t, DefaultTimeLimit, m.TimeLimit)
}

func TestProblemBuilder_CancelledContext(t *testing.T) {
	fs := testutils.NewFakeSolver(domain.StatusOptimal, nil)
	m, err := fs.NewModel(context.Background(), ModelName)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewProblemBuilder(DefaultConfig().Solver).Build(ctx, m,
		domain.Scenario{Performances: []float64{0.5}, Weights: []float64{1}, TargetR: 0.9})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fs.LastModel().Vars)
}
