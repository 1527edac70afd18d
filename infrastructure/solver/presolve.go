package solver

import (
	"errors"
	"math"

	"github.com/ahrav/go-postfactum/internal/domain"
)

// errPresolveInfeasible reports bounds or constant rows that no point can satisfy.
var errPresolveInfeasible = errors.New("presolve: infeasible")

// bounds is the working box after presolve.
type bounds struct {
	lb, ub   []float64
	fixed    []bool
	fixedVal []float64
}

// mergeTerms collapses repeated variables of a linear expression and drops
// zero coefficients.
func mergeTerms(e domain.LinExpr) []domain.Term {
	idx := make(map[domain.Var]int, len(e.Terms))
	merged := make([]domain.Term, 0, len(e.Terms))
	for _, t := range e.Terms {
		if i, ok := idx[t.Var]; ok {
			merged[i].Coef += t.Coef
			continue
		}
		idx[t.Var] = len(merged)
		merged = append(merged, t)
	}
	out := merged[:0]
	for _, t := range merged {
		if t.Coef != 0 {
			out = append(out, t)
		}
	}
	return out
}

// presolve tightens bounds with every linear row that touches at most one
// variable and fixes variables whose box collapses. It returns the rows
// still needed by the main solve.
func presolve(vars []variable, cons []domain.Constraint, cfg Config) (*bounds, []domain.Constraint, error) {
	n := len(vars)
	b := &bounds{
		lb:       make([]float64, n),
		ub:       make([]float64, n),
		fixed:    make([]bool, n),
		fixedVal: make([]float64, n),
	}
	for i, v := range vars {
		b.lb[i], b.ub[i] = v.lb, v.ub
	}

	rest := make([]domain.Constraint, 0, len(cons))
	for _, c := range cons {
		lin, ok := c.Expr.(domain.LinExpr)
		if !ok {
			rest = append(rest, c)
			continue
		}
		terms := mergeTerms(lin)
		rhs := c.RHS - lin.Constant

		switch len(terms) {
		case 0:
			if violation(0, c.Sense, rhs) > cfg.FeasibilityTolerance {
				return nil, nil, errPresolveInfeasible
			}
		case 1:
			t := terms[0]
			bound := rhs / t.Coef
			sense := c.Sense
			if t.Coef < 0 {
				sense = flip(sense)
			}
			switch sense {
			case domain.LessEqual:
				b.ub[t.Var] = math.Min(b.ub[t.Var], bound)
			case domain.GreaterEqual:
				b.lb[t.Var] = math.Max(b.lb[t.Var], bound)
			case domain.Equal:
				b.lb[t.Var] = math.Max(b.lb[t.Var], bound)
				b.ub[t.Var] = math.Min(b.ub[t.Var], bound)
			}
		default:
			rest = append(rest, domain.Constraint{
				Name:  c.Name,
				Expr:  domain.LinExpr{Terms: terms},
				Sense: c.Sense,
				RHS:   rhs,
			})
		}
	}

	for i := range b.lb {
		width := b.ub[i] - b.lb[i]
		if width < -cfg.FeasibilityTolerance {
			return nil, nil, errPresolveInfeasible
		}
		if width <= cfg.FixTolerance {
			mid := b.lb[i] + width/2
			b.fixed[i] = true
			b.fixedVal[i] = clamp(mid, vars[i].lb, vars[i].ub)
			b.lb[i], b.ub[i] = b.fixedVal[i], b.fixedVal[i]
		}
	}
	return b, rest, nil
}

// flip mirrors an inequality after multiplying both sides by a negative number.
func flip(s domain.Sense) domain.Sense {
	switch s {
	case domain.LessEqual:
		return domain.GreaterEqual
	case domain.GreaterEqual:
		return domain.LessEqual
	default:
		return s
	}
}

// violation is how far lhs <sense> rhs is from holding.
func violation(lhs float64, sense domain.Sense, rhs float64) float64 {
	switch sense {
	case domain.LessEqual:
		return math.Max(0, lhs-rhs)
	case domain.GreaterEqual:
		return math.Max(0, rhs-lhs)
	default:
		return math.Abs(lhs - rhs)
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
