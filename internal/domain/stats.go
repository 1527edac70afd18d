package domain

import "gonum.org/v1/gonum/stat"

// MeanAndVariance returns the arithmetic mean and the population variance
// (divisor n) of values. ok is false for an empty input, which callers treat
// as "not computable" rather than as an error. A single value has variance
// exactly zero.
func MeanAndVariance(values []float64) (mean, variance float64, ok bool) {
	switch len(values) {
	case 0:
		return 0, 0, false
	case 1:
		return values[0], 0, true
	}
	mean, variance = stat.PopMeanVariance(values, nil)
	return mean, variance, true
}
