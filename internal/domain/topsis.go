package domain

import (
	"fmt"
	"math"
)

// IdealSolutions returns the positive and negative ideal solutions in the
// weighted utility space. Because US is max-scaled to 1, the best attainable
// weighted score of a criterion is its weight and the worst is zero.
func IdealSolutions(weights []float64) (pis, nis []float64) {
	pis = make([]float64, len(weights))
	copy(pis, weights)
	return pis, make([]float64, len(weights))
}

// TOPSISDistances returns the squared Euclidean distances from point to the
// positive (dPos) and negative (dNeg) ideal solutions. Square roots are left
// to callers that need true distances.
func TOPSISDistances(point, pis, nis []float64) (dPos, dNeg float64, err error) {
	if len(point) != len(pis) || len(point) != len(nis) {
		return 0, 0, fmt.Errorf("%w: point=%d, pis=%d, nis=%d", ErrShapeMismatch, len(point), len(pis), len(nis))
	}
	for i, p := range point {
		dp := p - pis[i]
		dn := p - nis[i]
		dPos += dp * dp
		dNeg += dn * dn
	}
	return dPos, dNeg, nil
}

// SymbolicTOPSISDistances is TOPSISDistances over model variables: it returns
// the squared-distance expressions Σ(x−pis)² and Σ(x−nis)².
func SymbolicTOPSISDistances(x []Var, pis, nis []float64) (dPos, dNeg Expr, err error) {
	if len(x) != len(pis) || len(x) != len(nis) {
		return nil, nil, fmt.Errorf("%w: vars=%d, pis=%d, nis=%d", ErrShapeMismatch, len(x), len(pis), len(nis))
	}
	pos, err := NewSquaredDistance(x, pis)
	if err != nil {
		return nil, nil, err
	}
	neg, err := NewSquaredDistance(x, nis)
	if err != nil {
		return nil, nil, err
	}
	return pos, neg, nil
}

// ClosenessCoefficient returns the TOPSIS score √dNeg / (√dPos + √dNeg) of
// point. A point that coincides with both ideals scores zero.
func ClosenessCoefficient(point, pis, nis []float64) (float64, error) {
	dPos, dNeg, err := TOPSISDistances(point, pis, nis)
	if err != nil {
		return 0, err
	}
	pos, neg := math.Sqrt(dPos), math.Sqrt(dNeg)
	if pos+neg == 0 {
		return 0, nil
	}
	return neg / (pos + neg), nil
}
