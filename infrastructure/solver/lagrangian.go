package solver

import (
	"context"
	"errors"
	"math"
	"os"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"

	"github.com/ahrav/go-postfactum/internal/domain"
)

const (
	// unboundedObjective is the objective magnitude treated as divergence.
	unboundedObjective = 1e15

	// innerGradientShare is the fraction of the optimality tolerance an
	// inner solve aims for.
	innerGradientShare = 0.1

	// stallRatio is the violation decrease below which a run at the largest
	// penalty counts as locally infeasible.
	stallRatio = 0.99
)

// row is one smooth constraint handled by the merit function:
// g(x) = sign·(expr(x) − rhs), with g ≤ 0 for inequalities and g = 0 for
// equalities.
type row struct {
	expr domain.Expr
	rhs  float64
	sign float64
}

func (r row) eval(x []float64) float64 { return r.sign * (r.expr.Eval(x) - r.rhs) }

func (r row) addGradient(x []float64, scale float64, grad []float64) {
	r.expr.AddGradient(x, scale*r.sign, grad)
}

// run holds the state of one Optimize call.
type run struct {
	m     *model
	ctx   context.Context
	cfg   Config
	stats domain.SolveStats

	b      *bounds
	red    *reduction
	epi    *epigraph
	ineq   []row
	eq     []row
	lambda []float64
	mu     []float64
	rho    float64
	sign   float64

	x  []float64
	gx []float64
}

func newRun(m *model, ctx context.Context) *run {
	sign := 1.0
	if m.sense == domain.Maximize {
		sign = -1
	}
	return &run{m: m, ctx: ctx, cfg: m.config, sign: sign}
}

// solve returns the terminal status and, when optimal, the full solution.
// Infeasible is reported only when presolve proves it, when no variable is
// left to move, or when the violation stalls at the largest penalty.
func (r *run) solve() (domain.SolveStatus, []float64) {
	b, rest, err := presolve(r.m.vars, r.m.constraints, r.cfg)
	if err != nil {
		return domain.StatusInfeasible, nil
	}
	r.b = b
	for _, f := range b.fixed {
		if f {
			r.stats.FixedVariables++
		}
	}

	if r.epi = findEpigraph(r.m.objective, b, rest, r.sign); r.epi != nil {
		rest = append(rest[:r.epi.row:r.epi.row], rest[r.epi.row+1:]...)
		b.fixed[r.epi.t] = true
		b.fixedVal[r.epi.t] = 0
	}

	var linEq []domain.Constraint
	for _, c := range rest {
		switch {
		case c.Sense == domain.Equal && c.IsLinear():
			linEq = append(linEq, c)
		case c.Sense == domain.Equal:
			r.eq = append(r.eq, row{expr: c.Expr, rhs: c.RHS, sign: 1})
		case c.Sense == domain.LessEqual:
			r.ineq = append(r.ineq, row{expr: c.Expr, rhs: c.RHS, sign: 1})
		default:
			r.ineq = append(r.ineq, row{expr: c.Expr, rhs: c.RHS, sign: -1})
		}
	}

	n := len(r.m.vars)
	r.x = make([]float64, n)
	r.gx = make([]float64, n)

	red, err := newReduction(b, linEq, r.startPoint(), r.cfg.FeasibilityTolerance)
	switch {
	case errors.Is(err, errPresolveInfeasible):
		return domain.StatusInfeasible, nil
	case err != nil:
		return domain.StatusNumericalError, nil
	}
	r.red = red

	for _, i := range red.free {
		v := domain.Var(i)
		if !math.IsInf(b.lb[i], -1) {
			r.ineq = append(r.ineq, row{expr: domain.NewLinExpr(0, domain.Term{Var: v, Coef: 1}), rhs: b.lb[i], sign: -1})
		}
		if !math.IsInf(b.ub[i], 1) {
			r.ineq = append(r.ineq, row{expr: domain.NewLinExpr(0, domain.Term{Var: v, Coef: 1}), rhs: b.ub[i], sign: 1})
		}
	}

	y := make([]float64, red.k)
	status := domain.StatusOptimal
	if red.k > 0 {
		status, y = r.outerLoop(y)
	} else if r.ctx.Err() != nil {
		status = domain.StatusTimeLimit
	}

	x := make([]float64, n)
	r.point(y, x)
	for _, f := range x {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return domain.StatusNumericalError, nil
		}
	}
	r.stats.MaxViolation = r.maxViolation(x)

	if status != domain.StatusOptimal {
		return status, nil
	}
	if r.stats.MaxViolation > r.cfg.FeasibilityTolerance {
		// Only reachable with nothing left to search: the fixed point is the
		// whole feasible set.
		return domain.StatusInfeasible, nil
	}
	return domain.StatusOptimal, x
}

// startPoint picks the caller's initial values, falling back to the
// nearest finite point of each box.
func (r *run) startPoint() []float64 {
	s := make([]float64, len(r.m.vars))
	for i, v := range r.m.vars {
		lb, ub := r.b.lb[i], r.b.ub[i]
		switch {
		case r.b.fixed[i]:
			s[i] = r.b.fixedVal[i]
			continue
		case v.hasInit:
			s[i] = v.initial
		case !math.IsInf(lb, 0) && !math.IsInf(ub, 0):
			s[i] = lb + (ub-lb)/2
		case !math.IsInf(lb, 0):
			s[i] = lb
		case !math.IsInf(ub, 0):
			s[i] = ub
		}
		s[i] = clamp(s[i], lb, ub)
	}
	return s
}

// point maps search point y to the reported solution: free variables are
// clamped into their boxes and an eliminated epigraph variable is restored.
// Every feasibility decision is made on this point.
func (r *run) point(y, x []float64) {
	r.red.expand(y, x)
	for _, i := range r.red.free {
		x[i] = clamp(x[i], r.b.lb[i], r.b.ub[i])
	}
	if r.epi != nil {
		x[r.epi.t] = r.epi.value(x)
	}
}

// outerLoop runs multiplier updates until the reported point is feasible
// and satisfies the first-order optimality conditions, the violation
// stalls at the largest penalty, the iteration budget runs out or time is
// up.
func (r *run) outerLoop(y []float64) (domain.SolveStatus, []float64) {
	r.lambda = make([]float64, len(r.ineq))
	r.mu = make([]float64, len(r.eq))
	r.rho = r.cfg.InitialPenalty

	grad := make([]float64, r.red.k)
	objGrad := make([]float64, r.red.k)
	x := make([]float64, len(r.m.vars))
	method := r.cfg.InnerMethod

	prevViol := math.Inf(1)
	prevInfeas := math.Inf(1)
	for iter := 1; iter <= r.cfg.MaxOuterIterations; iter++ {
		r.stats.OuterIterations = iter
		if r.ctx.Err() != nil {
			return domain.StatusTimeLimit, y
		}

		next, moved, status := r.inner(y, method)
		if status != domain.StatusUnknown {
			return status, y
		}
		y = next

		r.red.expand(y, r.x)
		obj := r.objective(r.x)
		if math.IsNaN(obj) {
			return domain.StatusNumericalError, y
		}
		if math.Abs(obj) > unboundedObjective {
			return domain.StatusUnbounded, y
		}

		// With the current multipliers the merit gradient equals the
		// Lagrangian gradient at the updated multipliers.
		r.gradient(grad, y)
		r.objectiveGradient(objGrad, y)
		stationarity := floats.Norm(grad, math.Inf(1)) / (1 + floats.Norm(objGrad, math.Inf(1)))

		r.red.expand(y, r.x)
		viol, comp := 0.0, 0.0
		for i, c := range r.ineq {
			g := c.eval(r.x)
			l := math.Max(0, r.lambda[i]+r.rho*g)
			viol = math.Max(viol, math.Max(g, -r.lambda[i]/r.rho))
			if g <= 0 {
				comp = math.Max(comp, math.Min(l, -g))
			}
			r.lambda[i] = l
		}
		for j, c := range r.eq {
			h := c.eval(r.x)
			viol = math.Max(viol, math.Abs(h))
			r.mu[j] += r.rho * h
		}

		r.point(y, x)
		infeas := r.maxViolation(x)
		kkt := math.Max(stationarity, comp)

		if r.m.verbose {
			r.m.logger.Info("outer iteration",
				"iteration", iter,
				"objective", obj,
				"violation", infeas,
				"kkt_residual", kkt,
				"penalty", r.rho,
				"method", method,
			)
		}

		if infeas <= r.cfg.FeasibilityTolerance && kkt <= r.cfg.OptimalityTolerance {
			return domain.StatusOptimal, y
		}
		if r.rho >= r.cfg.MaxPenalty && infeas > r.cfg.FeasibilityTolerance && infeas > stallRatio*prevInfeas {
			return domain.StatusInfeasible, y
		}
		if !moved {
			method = fallbackMethod(method)
		}
		if viol > 0.25*prevViol {
			r.rho = math.Min(r.rho*r.cfg.PenaltyGrowth, r.cfg.MaxPenalty)
		}
		prevViol = viol
		prevInfeas = infeas
	}
	return domain.StatusIterationLimit, y
}

// fallbackMethod picks the minimizer for the next inner solve after one
// made no progress.
func fallbackMethod(name string) string {
	if name == MethodBFGS {
		return MethodLBFGS
	}
	return MethodBFGS
}

// inner minimizes the augmented Lagrangian from y with the named method.
// moved reports whether the merit decreased. A status other than
// StatusUnknown ends the outer loop.
func (r *run) inner(y []float64, name string) (next []float64, moved bool, status domain.SolveStatus) {
	var remaining time.Duration
	if deadline, ok := r.ctx.Deadline(); ok {
		remaining = time.Until(deadline)
		if remaining <= 0 {
			return y, false, domain.StatusTimeLimit
		}
	}

	method, err := innerMethod(name)
	if err != nil {
		return y, false, domain.StatusNumericalError
	}

	problem := optimize.Problem{
		Func: r.merit,
		Grad: r.gradient,
		Status: func() (optimize.Status, error) {
			if r.ctx.Err() != nil {
				return optimize.RuntimeLimit, nil
			}
			return optimize.NotTerminated, nil
		},
	}
	settings := &optimize.Settings{
		GradientThreshold: innerGradientShare * r.cfg.OptimalityTolerance,
		MajorIterations:   r.cfg.InnerIterations,
		Runtime:           remaining,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-16,
			Relative:   1e-16,
			Iterations: 25,
		},
	}
	if r.m.verbose {
		printer := optimize.NewPrinter()
		printer.Writer = os.Stderr
		settings.Recorder = printer
	}

	start := r.merit(y)
	res, err := optimize.Minimize(problem, y, settings, method)
	if res == nil {
		return y, false, domain.StatusNumericalError
	}
	r.stats.FuncEvaluations += res.Stats.FuncEvaluations
	if res.Status == optimize.RuntimeLimit || r.ctx.Err() != nil {
		return y, false, domain.StatusTimeLimit
	}
	if res.Status == optimize.FunctionNegativeInfinity {
		return y, false, domain.StatusUnbounded
	}
	if floats.HasNaN(res.X) || math.IsNaN(res.F) {
		return y, false, domain.StatusNumericalError
	}
	// A failed line search still leaves the best location found; keep it
	// unless it is worse than the start.
	if err != nil && res.F > start {
		return y, false, domain.StatusUnknown
	}
	return res.X, res.F < start, domain.StatusUnknown
}

// objective is the minimized objective at full point x.
func (r *run) objective(x []float64) float64 {
	if r.epi != nil {
		return r.epi.objScale * (r.epi.expr.Eval(x) - r.epi.rhs)
	}
	return r.sign * r.m.objective.Eval(x)
}

// objectiveGradient writes the objective gradient at y in search coordinates.
func (r *run) objectiveGradient(grad, y []float64) {
	r.red.expand(y, r.x)
	for i := range r.gx {
		r.gx[i] = 0
	}
	r.addObjectiveGradient(r.x)
	r.red.project(r.gx, grad)
}

func (r *run) addObjectiveGradient(x []float64) {
	if r.epi != nil {
		r.epi.expr.AddGradient(x, r.epi.objScale, r.gx)
		return
	}
	r.m.objective.AddGradient(x, r.sign, r.gx)
}

// merit is the augmented Lagrangian in search coordinates.
func (r *run) merit(y []float64) float64 {
	r.red.expand(y, r.x)
	f := r.objective(r.x)
	for i, c := range r.ineq {
		g := c.eval(r.x)
		l := r.lambda[i]
		if v := l + r.rho*g; v > 0 {
			f += (v*v - l*l) / (2 * r.rho)
		} else {
			f -= l * l / (2 * r.rho)
		}
	}
	for j, c := range r.eq {
		h := c.eval(r.x)
		f += r.mu[j]*h + r.rho/2*h*h
	}
	return f
}

// gradient is ∇merit in search coordinates.
func (r *run) gradient(grad, y []float64) {
	r.red.expand(y, r.x)
	for i := range r.gx {
		r.gx[i] = 0
	}
	r.addObjectiveGradient(r.x)
	for i, c := range r.ineq {
		if v := r.lambda[i] + r.rho*c.eval(r.x); v > 0 {
			c.addGradient(r.x, v, r.gx)
		}
	}
	for j, c := range r.eq {
		c.addGradient(r.x, r.mu[j]+r.rho*c.eval(r.x), r.gx)
	}
	r.red.project(r.gx, grad)
}

// maxViolation measures every constraint the caller added, plus the
// original bounds, at x.
func (r *run) maxViolation(x []float64) float64 {
	worst := 0.0
	for _, c := range r.m.constraints {
		worst = math.Max(worst, violation(c.Expr.Eval(x), c.Sense, c.RHS))
	}
	for i, v := range r.m.vars {
		worst = math.Max(worst, math.Max(v.lb-x[i], x[i]-v.ub))
	}
	return worst
}
