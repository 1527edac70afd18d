package domain

import (
	"errors"
	"fmt"
)

// Validation errors detected locally, before any solver interaction.
var (
	// ErrShapeMismatch indicates input vectors of unequal or zero length.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrInvalidIndex indicates an excluded-criterion index outside [0, n).
	ErrInvalidIndex = errors.New("invalid criterion index")

	// ErrInvalidTarget indicates a target closeness coefficient outside (0, 1).
	ErrInvalidTarget = errors.New("invalid target closeness coefficient")

	// ErrInvalidWeights indicates a weight vector that is not max-normalized
	// or holds a non-positive component.
	ErrInvalidWeights = errors.New("invalid weights")

	// ErrInvalidPerformance indicates a performance outside the utility space [0, 1].
	ErrInvalidPerformance = errors.New("invalid performance")

	// ErrZeroWeight indicates a conversion from VS to US with a zero weight.
	ErrZeroWeight = errors.New("zero weight")
)

// ErrNoSolution is the uniform signal returned to callers when the solver
// did not produce an optimal point. Every *SolveError matches it with errors.Is.
var ErrNoSolution = errors.New("no solution found")

// ValidationError represents an error that occurred during validation.
// It can contain multiple validation failures.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the list of validation error messages.
	Errors []string

	// Cause is the sentinel describing the first failure class, if any.
	Cause error
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %v", e.Entity, e.Errors)
}

// Unwrap returns the sentinel cause so callers can use errors.Is.
func (e *ValidationError) Unwrap() error { return e.Cause }

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// AddCause records msg under the sentinel cause. The first cause wins.
func (e *ValidationError) AddCause(cause error, msg string) {
	if e.Cause == nil {
		e.Cause = cause
	}
	e.AddError(fmt.Sprintf("%v: %s", cause, msg))
}

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// NewValidationError creates a new ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}

// FailureKind classifies why a solve produced no result.
type FailureKind string

const (
	// FailureModelConstruction means the solver rejected a variable,
	// constraint or objective while the problem was being assembled.
	FailureModelConstruction FailureKind = "model_construction"

	// FailureSolve means the solve finished with a status other than optimal.
	FailureSolve FailureKind = "solve_failure"

	// FailureRuntime means the solver faulted while optimizing.
	FailureRuntime FailureKind = "runtime_fault"
)

// SolveError carries the diagnostic detail behind a "no solution" result.
// The public contract treats all kinds alike; the kind, status and cause are
// for logs, metrics and callers that opt in through errors.As.
type SolveError struct {
	// Kind is the failure class.
	Kind FailureKind

	// Status is the terminal solver status. It is StatusUnknown for failures
	// that happened before the solver reported one.
	Status SolveStatus

	// Err is the underlying fault, if any.
	Err error
}

// Error implements the error interface for SolveError.
func (e *SolveError) Error() string {
	msg := fmt.Sprintf("%v: kind=%s, status=%s", ErrNoSolution, e.Kind, e.Status)
	if e.Err != nil {
		msg += fmt.Sprintf(", err=%v", e.Err)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *SolveError) Unwrap() error { return e.Err }

// Is reports whether target is ErrNoSolution.
func (e *SolveError) Is(target error) bool { return target == ErrNoSolution }

// NewSolveError creates a new SolveError with the given details.
func NewSolveError(kind FailureKind, status SolveStatus, err error) *SolveError {
	return &SolveError{
		Kind:   kind,
		Status: status,
		Err:    err,
	}
}
