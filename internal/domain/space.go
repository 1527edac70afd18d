package domain

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// ToWeighted maps a performance vector from the utility space (US) into the
// weighted utility space (VS): vs[i] = us[i]·weights[i].
func ToWeighted(us, weights []float64) ([]float64, error) {
	if len(us) != len(weights) {
		return nil, fmt.Errorf("%w: performances=%d, weights=%d", ErrShapeMismatch, len(us), len(weights))
	}
	vs := make([]float64, len(us))
	floats.MulTo(vs, us, weights)
	return vs, nil
}

// ToUtility maps a weighted performance vector back into US:
// us[i] = vs[i]/weights[i]. A zero weight makes the mapping undefined.
func ToUtility(vs, weights []float64) ([]float64, error) {
	if len(vs) != len(weights) {
		return nil, fmt.Errorf("%w: performances=%d, weights=%d", ErrShapeMismatch, len(vs), len(weights))
	}
	for i, w := range weights {
		if w == 0 {
			return nil, fmt.Errorf("%w: criterion %d", ErrZeroWeight, i)
		}
	}
	us := make([]float64, len(vs))
	floats.DivTo(us, vs, weights)
	return us, nil
}
