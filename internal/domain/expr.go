package domain

import (
	"fmt"
	"math"
)

// Var is a handle to a decision variable inside one optimization model.
// Handles are dense indices assigned in creation order and are meaningless
// outside the model that issued them.
type Var int

// Expr is an algebraic expression over model variables. Implementations must
// be pure: Eval and AddGradient may be called concurrently on distinct points.
type Expr interface {
	// Eval returns the expression value at point x, indexed by Var.
	Eval(x []float64) float64

	// AddGradient accumulates scale·∇expr(x) into grad.
	AddGradient(x []float64, scale float64, grad []float64)

	// Vars returns every variable the expression references.
	Vars() []Var
}

// Term is one coefficient·variable product of a linear expression.
type Term struct {
	Var  Var
	Coef float64
}

// LinExpr is Σ coef·x + Constant.
type LinExpr struct {
	Terms    []Term
	Constant float64
}

// NewLinExpr returns the linear expression constant + Σ terms.
func NewLinExpr(constant float64, terms ...Term) LinExpr {
	return LinExpr{Terms: terms, Constant: constant}
}

// Eval implements Expr.
func (e LinExpr) Eval(x []float64) float64 {
	v := e.Constant
	for _, t := range e.Terms {
		v += t.Coef * x[t.Var]
	}
	return v
}

// AddGradient implements Expr.
func (e LinExpr) AddGradient(_ []float64, scale float64, grad []float64) {
	for _, t := range e.Terms {
		grad[t.Var] += scale * t.Coef
	}
}

// Vars implements Expr.
func (e LinExpr) Vars() []Var {
	vars := make([]Var, len(e.Terms))
	for i, t := range e.Terms {
		vars[i] = t.Var
	}
	return vars
}

// SquaredDistance is Σ (x[Variables[i]] − Center[i])².
type SquaredDistance struct {
	Variables []Var
	Center    []float64
}

// NewSquaredDistance returns Σ (vars[i] − center[i])². The slices must have
// equal length.
func NewSquaredDistance(vars []Var, center []float64) (SquaredDistance, error) {
	if len(vars) != len(center) {
		return SquaredDistance{}, fmt.Errorf("%w: vars=%d, center=%d", ErrShapeMismatch, len(vars), len(center))
	}
	return SquaredDistance{Variables: vars, Center: center}, nil
}

// Eval implements Expr.
func (e SquaredDistance) Eval(x []float64) float64 {
	var s float64
	for i, v := range e.Variables {
		d := x[v] - e.Center[i]
		s += d * d
	}
	return s
}

// AddGradient implements Expr.
func (e SquaredDistance) AddGradient(x []float64, scale float64, grad []float64) {
	for i, v := range e.Variables {
		grad[v] += scale * 2 * (x[v] - e.Center[i])
	}
}

// Vars implements Expr.
func (e SquaredDistance) Vars() []Var { return e.Variables }

// Sqrt is the square root of a non-negative expression.
type Sqrt struct {
	Arg Expr
}

// Eval implements Expr. Negative round-off in Arg is clamped to zero.
func (e Sqrt) Eval(x []float64) float64 {
	return math.Sqrt(math.Max(e.Arg.Eval(x), 0))
}

// AddGradient implements Expr. At Arg = 0 the derivative is unbounded and the
// zero subgradient is used instead.
func (e Sqrt) AddGradient(x []float64, scale float64, grad []float64) {
	a := e.Arg.Eval(x)
	if a <= 0 {
		return
	}
	e.Arg.AddGradient(x, scale/(2*math.Sqrt(a)), grad)
}

// Vars implements Expr.
func (e Sqrt) Vars() []Var { return e.Arg.Vars() }

// Sum is the sum of its terms.
type Sum []Expr

// Eval implements Expr.
func (e Sum) Eval(x []float64) float64 {
	var s float64
	for _, t := range e {
		s += t.Eval(x)
	}
	return s
}

// AddGradient implements Expr.
func (e Sum) AddGradient(x []float64, scale float64, grad []float64) {
	for _, t := range e {
		t.AddGradient(x, scale, grad)
	}
}

// Vars implements Expr.
func (e Sum) Vars() []Var {
	var vars []Var
	for _, t := range e {
		vars = append(vars, t.Vars()...)
	}
	return vars
}

// Scale is Coef·Arg.
type Scale struct {
	Coef float64
	Arg  Expr
}

// Eval implements Expr.
func (e Scale) Eval(x []float64) float64 { return e.Coef * e.Arg.Eval(x) }

// AddGradient implements Expr.
func (e Scale) AddGradient(x []float64, scale float64, grad []float64) {
	e.Arg.AddGradient(x, scale*e.Coef, grad)
}

// Vars implements Expr.
func (e Scale) Vars() []Var { return e.Arg.Vars() }

// Sense is the relation of a constraint expression to its right-hand side.
type Sense int

// Constraint senses.
const (
	LessEqual Sense = iota
	GreaterEqual
	Equal
)

// String returns the relational operator.
func (s Sense) String() string {
	switch s {
	case LessEqual:
		return "<="
	case GreaterEqual:
		return ">="
	case Equal:
		return "=="
	default:
		return "?"
	}
}

// Constraint is Expr <sense> RHS.
type Constraint struct {
	Name  string
	Expr  Expr
	Sense Sense
	RHS   float64
}

// IsLinear reports whether the constraint expression is a LinExpr.
func (c Constraint) IsLinear() bool {
	_, ok := c.Expr.(LinExpr)
	return ok
}

// ObjectiveSense selects minimization or maximization.
type ObjectiveSense int

// Objective senses.
const (
	Minimize ObjectiveSense = iota
	Maximize
)
