package domain

import (
	"slices"
	"time"
)

// SolveStats summarizes the work a solver session performed.
type SolveStats struct {
	// Status is the terminal solver status.
	Status SolveStatus `json:"status"`

	// OuterIterations counts multiplier updates of the constrained solve.
	OuterIterations int `json:"outer_iterations"`

	// FuncEvaluations counts objective/merit evaluations across inner solves.
	FuncEvaluations int `json:"func_evaluations"`

	// FixedVariables counts variables eliminated by presolve.
	FixedVariables int `json:"fixed_variables"`

	// MaxViolation is the largest constraint violation at the reported point.
	MaxViolation float64 `json:"max_violation"`

	// Runtime is the wall-clock time spent in Optimize.
	Runtime time.Duration `json:"runtime"`
}

// Adjustment is the outcome of a successful post-factum computation.
type Adjustment struct {
	// ScenarioID echoes Scenario.ID.
	ScenarioID string `json:"scenario_id,omitempty"`

	// Performances is the target performance vector in US.
	Performances []float64 `json:"performances"`

	// Weighted is the same vector in VS.
	Weighted []float64 `json:"weighted"`

	// OriginalCloseness is R of the input performances.
	OriginalCloseness float64 `json:"original_closeness"`

	// AchievedCloseness is R of the target performances.
	AchievedCloseness float64 `json:"achieved_closeness"`

	// SquaredDistance is Σ(target−original)² in VS, the minimized objective.
	SquaredDistance float64 `json:"squared_distance"`

	// Changed lists criteria whose weighted performance moved by more than
	// ChangeTolerance.
	Changed []int `json:"changed"`

	// AlreadySatisfied is true when the input already reached the target.
	AlreadySatisfied bool `json:"already_satisfied"`

	// Stats describes the solver session.
	Stats SolveStats `json:"stats"`
}

// ChangeTolerance is the VS movement below which a criterion counts as unchanged.
const ChangeTolerance = 1e-9

// Clone returns a deep copy of a, so cached results can be handed out
// without sharing slices.
func (a *Adjustment) Clone() *Adjustment {
	if a == nil {
		return nil
	}
	c := *a
	c.Performances = slices.Clone(a.Performances)
	c.Weighted = slices.Clone(a.Weighted)
	c.Changed = slices.Clone(a.Changed)
	return &c
}
