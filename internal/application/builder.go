package application

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ahrav/go-postfactum/internal/domain"
	"github.com/ahrav/go-postfactum/internal/ports"
)

// Constraint names added to every post-factum model.
const (
	TargetConstraintName     = "Target_Constraint"
	ConstantWMConstraintName = "Constant_WM_Constraint"
	EpigraphConstraintName   = "Objective_Epigraph"
)

// ExclusionBand is the half-width of the band an excluded criterion may
// move within. It is below the solver's fix tolerance, so the criterion is
// held at its original value.
const ExclusionBand = 1e-15

// ExcludeConstraintName names the pair of rows pinning criterion i.
func ExcludeConstraintName(i int) string {
	return fmt.Sprintf("Exclude_Criterion_%d_Constraint", i)
}

// Problem records the variables and derived vectors of a built model.
type Problem struct {
	// X holds one weighted-space variable per criterion.
	X []domain.Var
	// T is the epigraph variable carrying the squared distance.
	T domain.Var
	// PIS and NIS are the ideal solutions in weighted space.
	PIS, NIS []float64
	// PerfVS is the input performance vector in weighted space.
	PerfVS []float64
}

// ProblemBuilder turns a validated scenario into a minimal-change model:
// minimize the squared weighted-space distance to the input subject to
// reaching the target closeness coefficient.
type ProblemBuilder struct {
	config SolverConfig
}

// NewProblemBuilder creates a builder that applies cfg's time limit and
// verbosity to every model it builds.
func NewProblemBuilder(cfg SolverConfig) *ProblemBuilder {
	return &ProblemBuilder{config: cfg}
}

// Build adds variables, constraints and the objective for scn to model.
// scn must already be validated. Any model error is returned as is; the
// caller classifies it.
func (b *ProblemBuilder) Build(ctx context.Context, model ports.Model, scn domain.Scenario) (*Problem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pis, nis := domain.IdealSolutions(scn.Weights)
	perfVS, err := domain.ToWeighted(scn.Performances, scn.Weights)
	if err != nil {
		return nil, err
	}
	p := &Problem{PIS: pis, NIS: nis, PerfVS: perfVS, X: make([]domain.Var, len(perfVS))}

	for i := range perfVS {
		v, err := model.AddVar(fmt.Sprintf("x_%d", i), nis[i], pis[i])
		if err != nil {
			return nil, fmt.Errorf("add variable x_%d: %w", i, err)
		}
		if err := model.SetInitial(v, perfVS[i]); err != nil {
			return nil, fmt.Errorf("set initial x_%d: %w", i, err)
		}
		p.X[i] = v
	}

	if err := b.addTarget(model, p, scn.TargetR); err != nil {
		return nil, err
	}
	for _, i := range scn.ExcludedSet() {
		if err := addExclusion(model, p, i); err != nil {
			return nil, err
		}
	}
	if scn.ConstantWM {
		if err := addConstantMean(model, p); err != nil {
			return nil, err
		}
	}
	if err := addEpigraph(model, p); err != nil {
		return nil, err
	}

	model.SetTimeLimit(b.timeLimit())
	model.SetVerbose(b.config.Verbose)
	return p, nil
}

func (b *ProblemBuilder) timeLimit() time.Duration {
	if b.config.TimeLimit <= 0 {
		return DefaultTimeLimit
	}
	return b.config.TimeLimit
}

// addTarget adds R·(√d⁺ + √d⁻) − √d⁻ ≤ 0, the division-free form of
// √d⁻/(√d⁺ + √d⁻) ≥ R.
func (b *ProblemBuilder) addTarget(model ports.Model, p *Problem, targetR float64) error {
	dPos, dNeg, err := domain.SymbolicTOPSISDistances(p.X, p.PIS, p.NIS)
	if err != nil {
		return err
	}
	expr := domain.Sum{
		domain.Scale{Coef: targetR, Arg: domain.Sum{domain.Sqrt{Arg: dPos}, domain.Sqrt{Arg: dNeg}}},
		domain.Scale{Coef: -1, Arg: domain.Sqrt{Arg: dNeg}},
	}
	if err := model.AddConstraint(domain.Constraint{
		Name:  TargetConstraintName,
		Expr:  expr,
		Sense: domain.LessEqual,
	}); err != nil {
		return fmt.Errorf("add %s: %w", TargetConstraintName, err)
	}
	return nil
}

// addExclusion pins x[i] within ExclusionBand of its input value with two
// linear rows, |x[i] − perfVS[i]| ≤ ExclusionBand.
func addExclusion(model ports.Model, p *Problem, i int) error {
	name := ExcludeConstraintName(i)
	rows := []domain.Constraint{
		{Name: name, Expr: domain.NewLinExpr(-p.PerfVS[i], domain.Term{Var: p.X[i], Coef: 1}), Sense: domain.LessEqual, RHS: ExclusionBand},
		{Name: name, Expr: domain.NewLinExpr(p.PerfVS[i], domain.Term{Var: p.X[i], Coef: -1}), Sense: domain.LessEqual, RHS: ExclusionBand},
	}
	for _, c := range rows {
		if err := model.AddConstraint(c); err != nil {
			return fmt.Errorf("add %s: %w", name, err)
		}
	}
	return nil
}

// addConstantMean holds the weighted mean: (1/n)·Σx = mean(perfVS).
func addConstantMean(model ports.Model, p *Problem) error {
	mean, _, ok := domain.MeanAndVariance(p.PerfVS)
	if !ok {
		return fmt.Errorf("add %s: %w", ConstantWMConstraintName, domain.ErrShapeMismatch)
	}
	n := float64(len(p.X))
	terms := make([]domain.Term, len(p.X))
	for i, v := range p.X {
		terms[i] = domain.Term{Var: v, Coef: 1 / n}
	}
	if err := model.AddConstraint(domain.Constraint{
		Name:  ConstantWMConstraintName,
		Expr:  domain.NewLinExpr(0, terms...),
		Sense: domain.Equal,
		RHS:   mean,
	}); err != nil {
		return fmt.Errorf("add %s: %w", ConstantWMConstraintName, err)
	}
	return nil
}

// addEpigraph adds t ≥ Σ(x − perfVS)² and minimizes t.
func addEpigraph(model ports.Model, p *Problem) error {
	t, err := model.AddVar("objective", 0, math.Inf(1))
	if err != nil {
		return fmt.Errorf("add objective variable: %w", err)
	}
	if err := model.SetInitial(t, 0); err != nil {
		return fmt.Errorf("set initial objective: %w", err)
	}
	p.T = t

	dist, err := domain.NewSquaredDistance(p.X, p.PerfVS)
	if err != nil {
		return err
	}
	if err := model.AddConstraint(domain.Constraint{
		Name:  EpigraphConstraintName,
		Expr:  domain.Sum{dist, domain.NewLinExpr(0, domain.Term{Var: t, Coef: -1})},
		Sense: domain.LessEqual,
	}); err != nil {
		return fmt.Errorf("add %s: %w", EpigraphConstraintName, err)
	}
	if err := model.SetObjective(domain.NewLinExpr(0, domain.Term{Var: t, Coef: 1}), domain.Minimize); err != nil {
		return fmt.Errorf("set objective: %w", err)
	}
	return nil
}
