package application

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-postfactum/infrastructure/solver"
)

var (
	validatorOnce sync.Once
	sharedValid   *validator.Validate
	validatorErr  error
)

// newValidator returns the package validator with the custom tags
// registered. The instance caches struct metadata and is safe for
// concurrent use, so it is built once.
func newValidator() (*validator.Validate, error) {
	validatorOnce.Do(func() {
		v := validator.New()
		if err := registerCustomValidators(v); err != nil {
			validatorErr = fmt.Errorf("failed to register validators: %w", err)
			return
		}
		sharedValid = v
	})
	return sharedValid, validatorErr
}

// registerCustomValidators registers the domain-specific tags used by the
// configuration and scenario file structs.
// registerCustomValidators returns an error if any validator registration fails.
func registerCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("innermethod", validateInnerMethod); err != nil {
		return fmt.Errorf("failed to register innermethod validator: %w", err)
	}
	if err := v.RegisterValidation("unitinterval", validateUnitInterval); err != nil {
		return fmt.Errorf("failed to register unitinterval validator: %w", err)
	}
	if err := v.RegisterValidation("openunit", validateOpenUnit); err != nil {
		return fmt.Errorf("failed to register openunit validator: %w", err)
	}
	return nil
}

// validateInnerMethod accepts the minimizer names the solver engine knows,
// in any letter case. An empty value selects the engine default.
func validateInnerMethod(fl validator.FieldLevel) bool {
	switch strings.ToLower(fl.Field().String()) {
	case "", solver.MethodLBFGS, solver.MethodBFGS, solver.MethodCG:
		return true
	default:
		return false
	}
}

// validateUnitInterval accepts finite floats in [0, 1].
func validateUnitInterval(fl validator.FieldLevel) bool {
	f := fl.Field().Float()
	return !math.IsNaN(f) && f >= 0 && f <= 1
}

// validateOpenUnit accepts floats strictly between 0 and 1.
func validateOpenUnit(fl validator.FieldLevel) bool {
	f := fl.Field().Float()
	return f > 0 && f < 1
}
