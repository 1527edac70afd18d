package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	t.Run("single error", func(t *testing.T) {
		err := NewValidationError("scenario")
		err.AddError("missing weights")

		assert.Equal(t, "validation error for scenario: missing weights", err.Error())
		assert.True(t, err.HasErrors(), "Should have errors")
		assert.Len(t, err.Errors, 1, "Should have one error")
	})

	t.Run("multiple errors", func(t *testing.T) {
		err := NewValidationError("scenario")
		err.AddError("negative weight")
		err.AddError("target out of range")

		assert.Contains(t, err.Error(), "validation errors for scenario")
		assert.Len(t, err.Errors, 2, "Should have two errors")
	})

	t.Run("no errors", func(t *testing.T) {
		err := NewValidationError("scenario")

		assert.False(t, err.HasErrors(), "Should not have errors")
		assert.Empty(t, err.Errors, "Errors slice should be empty")
		assert.NoError(t, errors.Unwrap(err))
	})
}

func TestValidationError_FirstCauseWins(t *testing.T) {
	err := NewValidationError("scenario")
	err.AddCause(ErrInvalidPerformance, "performance 0 = 2 is outside [0, 1]")
	err.AddCause(ErrInvalidTarget, "target R = 0 is outside (0, 1)")

	assert.ErrorIs(t, err, ErrInvalidPerformance)
	assert.NotErrorIs(t, err, ErrInvalidTarget)
	assert.Equal(t, "invalid performance: performance 0 = 2 is outside [0, 1]", err.Errors[0])
	assert.Len(t, err.Errors, 2)
}

func TestCommonDomainErrors(t *testing.T) {
	tests := []struct {
		err     error
		message string
	}{
		{ErrShapeMismatch, "shape mismatch"},
		{ErrInvalidIndex, "invalid criterion index"},
		{ErrInvalidTarget, "invalid target closeness coefficient"},
		{ErrInvalidWeights, "invalid weights"},
		{ErrInvalidPerformance, "invalid performance"},
		{ErrZeroWeight, "zero weight"},
		{ErrNoSolution, "no solution found"},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.message, tt.err.Error(), "Error message mismatch")
		})
	}
}

func TestSolveError(t *testing.T) {
	tests := []struct {
		name    string
		kind    FailureKind
		status  SolveStatus
		err     error
		wantMsg string
	}{
		{
			name:    "infeasible",
			kind:    FailureSolve,
			status:  StatusInfeasible,
			wantMsg: "no solution found: kind=solve_failure, status=infeasible",
		},
		{
			name:    "runtime fault",
			kind:    FailureRuntime,
			status:  StatusUnknown,
			err:     errors.New("nan in gradient"),
			wantMsg: "no solution found: kind=runtime_fault, status=unknown, err=nan in gradient",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewSolveError(tt.kind, tt.status, tt.err)

			assert.Equal(t, tt.wantMsg, err.Error())
			assert.ErrorIs(t, err, ErrNoSolution)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
			}

			var serr *SolveError
			assert.ErrorAs(t, errors.Join(errors.New("ctx"), err), &serr)
			assert.Equal(t, tt.kind, serr.Kind)
		})
	}
}
