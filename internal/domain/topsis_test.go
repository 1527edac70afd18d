package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdealSolutions(t *testing.T) {
	weights := []float64{1, 0.6}
	pis, nis := IdealSolutions(weights)

	assert.Equal(t, []float64{1, 0.6}, pis)
	assert.Equal(t, []float64{0, 0}, nis)

	pis[0] = 5
	assert.Equal(t, 1.0, weights[0], "pis must not alias weights")
}

func TestClosenessCoefficient(t *testing.T) {
	tests := []struct {
		name    string
		point   []float64
		weights []float64
		want    float64
	}{
		{"at positive ideal", []float64{1, 0.6}, []float64{1, 0.6}, 1},
		{"at negative ideal", []float64{0, 0}, []float64{1, 0.6}, 0},
		{"midpoint", []float64{0.5, 0.3}, []float64{1, 0.6}, 0.5},
		{
			"reference alternative",
			[]float64{0.8, 0.3},
			[]float64{1, 0.6},
			math.Sqrt(0.73) / (math.Sqrt(0.13) + math.Sqrt(0.73)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pis, nis := IdealSolutions(tt.weights)
			got, err := ClosenessCoefficient(tt.point, pis, nis)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestClosenessCoefficient_Degenerate(t *testing.T) {
	got, err := ClosenessCoefficient([]float64{0}, []float64{0}, []float64{0})
	require.NoError(t, err)
	assert.Zero(t, got)

	_, err = ClosenessCoefficient([]float64{0.1, 0.2}, []float64{1}, []float64{0})
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestTOPSISDistances(t *testing.T) {
	dPos, dNeg, err := TOPSISDistances([]float64{0.8, 0.3}, []float64{1, 0.6}, []float64{0, 0})
	require.NoError(t, err)
	assert.InDelta(t, 0.13, dPos, 1e-12)
	assert.InDelta(t, 0.73, dNeg, 1e-12)
}

func TestSymbolicTOPSISDistances(t *testing.T) {
	x := []Var{0, 1}
	pis, nis := IdealSolutions([]float64{1, 0.6})
	pos, neg, err := SymbolicTOPSISDistances(x, pis, nis)
	require.NoError(t, err)

	point := []float64{0.8, 0.3}
	dPos, dNeg, err := TOPSISDistances(point, pis, nis)
	require.NoError(t, err)
	assert.InDelta(t, dPos, pos.Eval(point), 1e-15)
	assert.InDelta(t, dNeg, neg.Eval(point), 1e-15)

	_, _, err = SymbolicTOPSISDistances(x, []float64{1}, nis)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}
