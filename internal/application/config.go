// Package application builds post-factum optimization problems, drives a
// solver through them and orchestrates single, cached and batch
// computations on top of the domain layer.
package application

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-postfactum/infrastructure/solver"
	"github.com/ahrav/go-postfactum/internal/ports"
)

// DefaultTimeLimit bounds a single solver session when no limit is configured.
const DefaultTimeLimit = 6 * time.Second

// Config is the complete runtime configuration of the post-factum engine,
// its batch runner, result cache and HTTP surface.
// Use LoadConfig to read it from YAML; fields missing from the file keep
// the values from DefaultConfig.
type Config struct {
	// Solver tunes every solver session the engine opens.
	Solver SolverConfig `yaml:"solver"`
	// Sweep bounds batch computations.
	Sweep SweepConfig `yaml:"sweep"`
	// Cache controls memoization of finished adjustments.
	Cache CacheConfig `yaml:"cache"`
	// Server configures the HTTP API.
	Server ServerConfig `yaml:"server"`
}

// SolverConfig holds per-session solver settings. TimeLimit and Verbose
// are applied by the problem builder; the remaining fields tune the
// augmented-Lagrangian engine.
type SolverConfig struct {
	// TimeLimit is the wall-clock budget of one Optimize call.
	TimeLimit time.Duration `yaml:"time_limit" validate:"gt=0"`
	// Verbose enables solver progress output.
	Verbose bool `yaml:"verbose"`
	// FeasibilityTolerance is the largest constraint violation accepted.
	FeasibilityTolerance float64 `yaml:"feasibility_tolerance" validate:"gt=0,lt=1"`
	// OptimalityTolerance bounds the scaled first-order optimality residual.
	OptimalityTolerance float64 `yaml:"optimality_tolerance" validate:"gt=0,lt=1"`
	// MaxOuterIterations caps multiplier updates.
	MaxOuterIterations int `yaml:"max_outer_iterations" validate:"min=1,max=10000"`
	// InnerIterations caps iterations of each inner minimization.
	InnerIterations int `yaml:"inner_iterations" validate:"min=1,max=1000000"`
	// InitialPenalty is the starting penalty parameter.
	InitialPenalty float64 `yaml:"initial_penalty" validate:"gt=0"`
	// PenaltyGrowth multiplies the penalty when violation stalls.
	PenaltyGrowth float64 `yaml:"penalty_growth" validate:"gt=1"`
	// MaxPenalty caps the penalty parameter.
	MaxPenalty float64 `yaml:"max_penalty" validate:"gtefield=InitialPenalty"`
	// InnerMethod selects the unconstrained minimizer: lbfgs, bfgs or cg.
	InnerMethod string `yaml:"inner_method" validate:"innermethod"`
}

// SweepConfig bounds concurrent batch computations.
type SweepConfig struct {
	// MaxConcurrency is the number of scenarios solved at once.
	MaxConcurrency int `yaml:"max_concurrency" validate:"min=1,max=1024"`
	// SessionsPerSecond limits new solver sessions; 0 disables the limit.
	SessionsPerSecond float64 `yaml:"sessions_per_second" validate:"min=0"`
	// Burst is the token-bucket burst when SessionsPerSecond is set.
	Burst int `yaml:"burst" validate:"min=0"`
	// MaxScenarios rejects batches larger than this.
	MaxScenarios int `yaml:"max_scenarios" validate:"min=1"`
}

// CacheConfig controls the adjustment cache.
type CacheConfig struct {
	// Enabled turns memoization on.
	Enabled bool `yaml:"enabled"`
	// Size is the maximum number of cached adjustments.
	Size int `yaml:"size" validate:"required_if=Enabled true,max=10000000"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	// Addr is the listen address of the API, for example ":8080".
	Addr string `yaml:"addr" validate:"required,hostname_port"`
	// ReadTimeout bounds reading a request.
	ReadTimeout time.Duration `yaml:"read_timeout" validate:"gt=0"`
	// WriteTimeout bounds writing a response; it must exceed the solver time limit.
	WriteTimeout time.Duration `yaml:"write_timeout" validate:"gt=0"`
	// MaxBodyBytes limits request bodies.
	MaxBodyBytes int64 `yaml:"max_body_bytes" validate:"min=1024"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	engine := solver.DefaultConfig()
	return Config{
		Solver: SolverConfig{
			TimeLimit:            DefaultTimeLimit,
			FeasibilityTolerance: engine.FeasibilityTolerance,
			OptimalityTolerance:  engine.OptimalityTolerance,
			MaxOuterIterations:   engine.MaxOuterIterations,
			InnerIterations:      engine.InnerIterations,
			InitialPenalty:       engine.InitialPenalty,
			PenaltyGrowth:        engine.PenaltyGrowth,
			MaxPenalty:           engine.MaxPenalty,
			InnerMethod:          engine.InnerMethod,
		},
		Sweep: SweepConfig{
			MaxConcurrency: 4,
			Burst:          1,
			MaxScenarios:   1000,
		},
		Cache: CacheConfig{
			Enabled: true,
			Size:    256,
		},
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 2 * time.Minute,
			MaxBodyBytes: 1 << 20,
		},
	}
}

// EngineConfig converts the solver settings into the engine's own config.
func (c SolverConfig) EngineConfig() solver.Config {
	cfg := solver.DefaultConfig()
	cfg.FeasibilityTolerance = c.FeasibilityTolerance
	cfg.OptimalityTolerance = c.OptimalityTolerance
	cfg.MaxOuterIterations = c.MaxOuterIterations
	cfg.InnerIterations = c.InnerIterations
	cfg.InitialPenalty = c.InitialPenalty
	cfg.PenaltyGrowth = c.PenaltyGrowth
	cfg.MaxPenalty = c.MaxPenalty
	cfg.InnerMethod = c.InnerMethod
	return cfg
}

// Validate checks c against its struct tags and the custom validators.
func (c Config) Validate() error {
	v, err := newValidator()
	if err != nil {
		return err
	}
	if err := v.Struct(c); err != nil {
		return configValidationError(err)
	}
	return nil
}

// LoadConfig reads a YAML configuration file on top of DefaultConfig.
// Unknown keys are rejected so typos do not silently fall back to defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, ports.NewConfigError(path, fmt.Errorf("%w: %v", ports.ErrConfigNotFound, err))
		}
		return cfg, ports.NewConfigError(path, err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML bytes on top of DefaultConfig and validates the result.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, ports.NewConfigError("yaml", fmt.Errorf("YAML decode failed: %w", err))
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// configValidationError reports the first failing field as a ConfigError.
func configValidationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return ports.NewConfigError(fe.Namespace(),
			fmt.Errorf("failed %q validation with value %v", fe.Tag(), fe.Value()))
	}
	return ports.NewConfigError("config", err)
}
