package solver

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/ahrav/go-postfactum/internal/domain"
)

// errSingular reports a failed factorization of the equality system.
var errSingular = errors.New("reduce: SVD factorization failed")

// reduction maps the search vector y to the full variable vector:
// fixed variables keep their presolved value and the free ones follow
// x_free = x0 + Z·y, which satisfies every linear equality exactly.
// A nil z stands for the identity.
type reduction struct {
	n        int
	free     []int
	fixed    []bool
	fixedVal []float64
	x0       []float64
	z        *mat.Dense
	k        int
}

// newReduction eliminates the linear equalities in eqs over the free
// variables. start is the full-length starting point; x0 is its minimum-norm
// correction onto the equality set.
func newReduction(b *bounds, eqs []domain.Constraint, start []float64, tol float64) (*reduction, error) {
	n := len(b.lb)
	r := &reduction{n: n, fixed: b.fixed, fixedVal: b.fixedVal}

	col := make(map[int]int, n)
	for i := 0; i < n; i++ {
		if !b.fixed[i] {
			col[i] = len(r.free)
			r.free = append(r.free, i)
		}
	}
	nf := len(r.free)

	r.x0 = make([]float64, nf)
	for j, i := range r.free {
		r.x0[j] = start[i]
	}

	// Rows that mention no free variable are checked later against the
	// full constraint list; they cannot be moved by the search.
	var rows [][]float64
	var rhs []float64
	for _, c := range eqs {
		lin := c.Expr.(domain.LinExpr)
		row := make([]float64, nf)
		b0 := c.RHS - lin.Constant
		touches := false
		for _, t := range lin.Terms {
			if b.fixed[t.Var] {
				b0 -= t.Coef * b.fixedVal[t.Var]
				continue
			}
			row[col[int(t.Var)]] += t.Coef
			touches = true
		}
		if touches {
			rows = append(rows, row)
			rhs = append(rhs, b0)
		}
	}

	if len(rows) == 0 || nf == 0 {
		r.k = nf
		return r, nil
	}

	me := len(rows)
	a := mat.NewDense(me, nf, nil)
	for i, row := range rows {
		a.SetRow(i, row)
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDFull); !ok {
		return nil, errSingular
	}
	values := svd.Values(nil)
	cut := 1e-12 * math.Max(1, values[0])
	rank := 0
	for _, s := range values {
		if s > cut {
			rank++
		}
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	// x0 ← x0 + V_r Σ_r⁻¹ U_rᵀ (b − A x0)
	resid := make([]float64, me)
	for i := range rows {
		resid[i] = rhs[i] - floats.Dot(rows[i], r.x0)
	}
	for c := 0; c < rank; c++ {
		coef := 0.0
		for i := 0; i < me; i++ {
			coef += u.At(i, c) * resid[i]
		}
		coef /= values[c]
		for j := 0; j < nf; j++ {
			r.x0[j] += coef * v.At(j, c)
		}
	}

	for i := range rows {
		if math.Abs(floats.Dot(rows[i], r.x0)-rhs[i]) > tol {
			return nil, errPresolveInfeasible
		}
	}

	r.k = nf - rank
	if r.k > 0 {
		r.z = mat.DenseCopyOf(v.Slice(0, nf, rank, nf))
	}
	return r, nil
}

// identity reports whether Z is the identity map.
func (r *reduction) identity() bool { return r.z == nil && r.k == len(r.free) }

// expand writes the full variable vector for search point y into x.
func (r *reduction) expand(y, x []float64) {
	for i := 0; i < r.n; i++ {
		if r.fixed[i] {
			x[i] = r.fixedVal[i]
		}
	}
	if r.identity() {
		for j, i := range r.free {
			x[i] = r.x0[j] + y[j]
		}
		return
	}
	for j, i := range r.free {
		v := r.x0[j]
		for c := 0; c < r.k; c++ {
			v += r.z.At(j, c) * y[c]
		}
		x[i] = v
	}
}

// project maps a full-space gradient gx onto the search space: gy = Zᵀ gx_free.
func (r *reduction) project(gx, gy []float64) {
	if r.identity() {
		for j, i := range r.free {
			gy[j] = gx[i]
		}
		return
	}
	for c := 0; c < r.k; c++ {
		var s float64
		for j, i := range r.free {
			s += r.z.At(j, c) * gx[i]
		}
		gy[c] = s
	}
}
