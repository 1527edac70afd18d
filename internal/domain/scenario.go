package domain

import (
	"fmt"
	"math"
	"slices"
)

// WeightNormTolerance is the slack allowed when checking max(weights) == 1.
const WeightNormTolerance = 1e-12

// Scenario is one post-factum question: which minimal change of this
// alternative's performances reaches TargetR?
type Scenario struct {
	// ID identifies the alternative in batch runs and logs. Optional.
	ID string `json:"id,omitempty"`

	// Performances is the performance vector in US: one gain-type score in
	// [0, 1] per criterion.
	Performances []float64 `json:"performances"`

	// Weights holds one positive weight per criterion, normalized so that
	// the largest weight is 1.
	Weights []float64 `json:"weights"`

	// TargetR is the desired closeness coefficient, in (0, 1).
	TargetR float64 `json:"target_r"`

	// Excluded lists criteria whose weighted performance must not change.
	// Duplicates are ignored.
	Excluded []int `json:"excluded,omitempty"`

	// ConstantWM keeps the mean of the weighted performances unchanged
	// ("Retaining WM").
	ConstantWM bool `json:"constant_wm,omitempty"`
}

// Criteria returns the number of criteria.
func (s Scenario) Criteria() int { return len(s.Performances) }

// ExcludedSet returns the excluded indices sorted and de-duplicated.
func (s Scenario) ExcludedSet() []int {
	set := slices.Clone(s.Excluded)
	slices.Sort(set)
	return slices.Compact(set)
}

// IsExcluded reports whether criterion i is held fixed.
func (s Scenario) IsExcluded(i int) bool { return slices.Contains(s.Excluded, i) }

// Validate checks every invariant that must hold before a problem is built.
// The returned *ValidationError unwraps to the sentinel of the first failure
// class found (ErrShapeMismatch, ErrInvalidIndex, ...).
func (s Scenario) Validate() error {
	verr := NewValidationError("scenario")

	n := len(s.Performances)
	switch {
	case n == 0:
		verr.AddCause(ErrShapeMismatch, "performance vector is empty")
	case len(s.Weights) != n:
		verr.AddCause(ErrShapeMismatch, fmt.Sprintf("performances=%d, weights=%d", n, len(s.Weights)))
	}
	if verr.HasErrors() {
		return verr
	}

	for i, p := range s.Performances {
		if math.IsNaN(p) || p < 0 || p > 1 {
			verr.AddCause(ErrInvalidPerformance, fmt.Sprintf("performance %d = %v is outside [0, 1]", i, p))
		}
	}

	maxWeight := math.Inf(-1)
	for i, w := range s.Weights {
		if math.IsNaN(w) || math.IsInf(w, 0) || w <= 0 {
			verr.AddCause(ErrInvalidWeights, fmt.Sprintf("weight %d = %v is not positive", i, w))
			continue
		}
		maxWeight = math.Max(maxWeight, w)
	}
	if !math.IsInf(maxWeight, -1) && math.Abs(maxWeight-1) > WeightNormTolerance {
		verr.AddCause(ErrInvalidWeights, fmt.Sprintf("max weight is %v, expected 1", maxWeight))
	}

	if math.IsNaN(s.TargetR) || s.TargetR <= 0 || s.TargetR >= 1 {
		verr.AddCause(ErrInvalidTarget, fmt.Sprintf("target R = %v is outside (0, 1)", s.TargetR))
	}

	for _, idx := range s.Excluded {
		if idx < 0 || idx >= n {
			verr.AddCause(ErrInvalidIndex, fmt.Sprintf("excluded index %d is outside [0, %d)", idx, n))
		}
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}
