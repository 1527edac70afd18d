package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMeanAndVariance(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		wantMean float64
		wantVar  float64
		wantOK   bool
	}{
		{"empty", nil, 0, 0, false},
		{"single", []float64{5}, 5, 0, true},
		{"population variance", []float64{2, 4, 6}, 4, 8.0 / 3, true},
		{"constant", []float64{0.3, 0.3, 0.3, 0.3}, 0.3, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mean, variance, ok := MeanAndVariance(tt.values)
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.wantMean, mean, 1e-12)
			assert.InDelta(t, tt.wantVar, variance, 1e-12)
		})
	}
}
