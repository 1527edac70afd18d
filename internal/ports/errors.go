package ports

import (
	"errors"
	"fmt"
)

// Common infrastructure errors that can occur while talking to a solver or
// its supporting services.
var (
	// ErrModelClosed indicates an operation on a closed model session.
	ErrModelClosed = errors.New("model closed")

	// ErrUnknownVariable indicates an expression that references a variable
	// the model never issued.
	ErrUnknownVariable = errors.New("unknown variable")

	// ErrInvalidBounds indicates lb > ub or a NaN bound.
	ErrInvalidBounds = errors.New("invalid bounds")

	// ErrInvalidConstraint indicates a malformed constraint or objective.
	ErrInvalidConstraint = errors.New("invalid constraint")

	// ErrNotSolved indicates a value query without an optimal solution.
	ErrNotSolved = errors.New("model has no optimal solution")

	// ErrConfigNotFound indicates that required configuration is missing.
	ErrConfigNotFound = errors.New("configuration not found")
)

// SolverError represents an error raised by a solver session.
// It includes the model and operation that failed.
type SolverError struct {
	// Model is the name of the model session.
	Model string

	// Operation is the name of the operation that failed.
	Operation string

	// Err is the underlying error that occurred.
	Err error
}

// Error implements the error interface for SolverError.
func (e *SolverError) Error() string {
	return fmt.Sprintf("solver error: model=%s, operation=%s, err=%v", e.Model, e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *SolverError) Unwrap() error { return e.Err }

// NewSolverError creates a new SolverError with the given details.
func NewSolverError(model, operation string, err error) *SolverError {
	return &SolverError{
		Model:     model,
		Operation: operation,
		Err:       err,
	}
}

// CacheError represents an error from cache operations.
// It includes the key and operation that failed.
type CacheError struct {
	// Key is the cache key that was involved in the failed operation.
	Key string

	// Operation is the name of the cache operation that failed.
	Operation string

	// Err is the underlying error that caused the cache operation to fail.
	Err error
}

// Error implements the error interface for CacheError.
func (e *CacheError) Error() string {
	return fmt.Sprintf("cache error: operation=%s, key=%s, err=%v", e.Operation, e.Key, e.Err)
}

// Unwrap returns the underlying error.
func (e *CacheError) Unwrap() error { return e.Err }

// NewCacheError creates a new CacheError with the given details.
func NewCacheError(key, operation string, err error) *CacheError {
	return &CacheError{
		Key:       key,
		Operation: operation,
		Err:       err,
	}
}

// ConfigError represents an error from configuration operations.
type ConfigError struct {
	// ConfigKey is the configuration key that was involved in the failed
	// operation.
	ConfigKey string

	// Err is the underlying error that caused the configuration operation
	// to fail.
	Err error
}

// Error implements the error interface for ConfigError.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: key=%s, err=%v", e.ConfigKey, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError creates a new ConfigError with the given details.
func NewConfigError(key string, err error) *ConfigError {
	return &ConfigError{
		ConfigKey: key,
		Err:       err,
	}
}
