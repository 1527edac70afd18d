package solver

import (
	"math"

	"github.com/ahrav/go-postfactum/internal/domain"
)

// epigraph is an objective of the form minimize c·t where t is bounded
// below by exactly one constraint, E(x) − a·t ≤ rhs. Such a t never needs
// to be searched: the engine minimizes E directly and sets t afterwards
// to the smallest value the constraint and its bounds allow.
type epigraph struct {
	t    int
	row  int
	expr domain.Expr
	rhs  float64
	// scale turns expr into the lower bound of t: t ≥ scale·(expr(x) − rhs),
	// with expr evaluated at t = 0.
	scale float64
	lb    float64
	// objScale maps the lower bound of t to the search objective.
	objScale float64
}

// findEpigraph detects an epigraph objective among the presolved rows.
// sign is −1 for maximization.
func findEpigraph(obj domain.LinExpr, b *bounds, rows []domain.Constraint, sign float64) *epigraph {
	if len(obj.Terms) != 1 {
		return nil
	}
	term := obj.Terms[0]
	t := int(term.Var)
	if b.fixed[t] || !math.IsInf(b.ub[t], 1) || sign*term.Coef <= 0 {
		return nil
	}

	found := -1
	for i, c := range rows {
		if !mentions(c.Expr, term.Var) {
			continue
		}
		if found >= 0 {
			return nil
		}
		found = i
	}
	if found < 0 || rows[found].Sense == domain.Equal {
		return nil
	}

	c := rows[found]
	coef, ok := linearCoef(c.Expr, term.Var)
	if !ok {
		return nil
	}
	s := 1.0
	if c.Sense == domain.GreaterEqual {
		s = -1
	}
	a := -s * coef
	if a <= 0 {
		return nil
	}
	return &epigraph{
		t:        t,
		row:      found,
		expr:     c.Expr,
		rhs:      c.RHS,
		scale:    s / a,
		lb:       b.lb[t],
		objScale: sign * term.Coef * s / a,
	}
}

// value returns t for point x, which must hold t = 0.
func (e *epigraph) value(x []float64) float64 {
	return math.Max(e.lb, e.scale*(e.expr.Eval(x)-e.rhs))
}

// mentions reports whether e references v.
func mentions(e domain.Expr, v domain.Var) bool {
	for _, u := range e.Vars() {
		if u == v {
			return true
		}
	}
	return false
}

// linearCoef returns the coefficient of v in e when v enters e only
// through linear terms.
func linearCoef(e domain.Expr, v domain.Var) (float64, bool) {
	switch e := e.(type) {
	case domain.LinExpr:
		coef := 0.0
		for _, t := range e.Terms {
			if t.Var == v {
				coef += t.Coef
			}
		}
		return coef, true
	case domain.Sum:
		total := 0.0
		for _, part := range e {
			c, ok := linearCoef(part, v)
			if !ok {
				return 0, false
			}
			total += c
		}
		return total, true
	case domain.Scale:
		c, ok := linearCoef(e.Arg, v)
		return e.Coef * c, ok
	default:
		return 0, !mentions(e, v)
	}
}
