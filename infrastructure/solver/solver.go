// Package solver provides a pure-Go nonlinear programming engine that
// implements ports.Solver, plus middleware that adds rate limiting, metrics
// and tracing around solver sessions.
//
// The engine accepts continuous bounded variables, linear and nonlinear
// constraints and a linear objective. It solves in three stages:
//
//   - Presolve: single-variable linear rows become bound changes; variables
//     whose bounds collapse are fixed and removed from the search.
//   - Reduction: linear equalities over the remaining variables are
//     eliminated exactly through an SVD null-space basis, x = x0 + Z·y.
//   - Epigraph substitution: an objective "minimize t" whose t is bounded
//     below by a single constraint E(x) − t ≤ 0 is replaced by minimizing
//     E directly; t is recovered from the solution.
//   - Augmented Lagrangian: inequalities, nonlinear equalities and finite
//     bounds enter a smooth merit function that gonum/optimize minimizes
//     in y; multipliers and the penalty are updated between inner solves.
//
// Only a point that satisfies every original constraint within the
// feasibility tolerance and the first-order optimality conditions within
// the optimality tolerance is reported as optimal. Non-convex problems may
// converge to a local optimum.
//
// Basic usage:
//
//	s := solver.New(solver.DefaultConfig(), logger)
//	m, err := s.NewModel(ctx, "example")
//	defer m.Close()
//	x, _ := m.AddVar("x", 0, 1)
//	...
//	err = m.Optimize(ctx)
package solver

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"gonum.org/v1/gonum/optimize"

	"github.com/ahrav/go-postfactum/internal/ports"
)

// Name is the identifier reported by the augmented-Lagrangian engine.
const Name = "augmented_lagrangian"

// Supported inner minimizers.
const (
	MethodLBFGS = "lbfgs"
	MethodBFGS  = "bfgs"
	MethodCG    = "cg"
)

// Config tunes the augmented-Lagrangian engine. The zero value is not
// usable; start from DefaultConfig.
type Config struct {
	// FeasibilityTolerance is the largest constraint violation accepted at
	// a reported optimum.
	FeasibilityTolerance float64

	// OptimalityTolerance bounds the first-order optimality residual at a
	// reported optimum: the Lagrangian gradient in the search space, scaled
	// by 1 + ‖∇f‖∞, and the complementarity of every inequality.
	OptimalityTolerance float64

	// MaxOuterIterations caps multiplier updates.
	MaxOuterIterations int

	// InnerIterations caps major iterations of each inner solve.
	InnerIterations int

	// InitialPenalty is the starting penalty parameter ρ.
	InitialPenalty float64

	// PenaltyGrowth multiplies ρ when violation stalls.
	PenaltyGrowth float64

	// MaxPenalty caps ρ.
	MaxPenalty float64

	// FixTolerance is the bound width at or below which presolve fixes a variable.
	FixTolerance float64

	// InnerMethod selects the gonum minimizer: lbfgs, bfgs or cg.
	InnerMethod string
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		FeasibilityTolerance: 1e-9,
		OptimalityTolerance:  1e-7,
		MaxOuterIterations:   100,
		InnerIterations:      2000,
		InitialPenalty:       10,
		PenaltyGrowth:        10,
		MaxPenalty:           1e12,
		FixTolerance:         1e-12,
		InnerMethod:          MethodLBFGS,
	}
}

// Validate reports configuration values the engine cannot work with.
func (c Config) Validate() error {
	switch {
	case c.FeasibilityTolerance <= 0:
		return fmt.Errorf("feasibility tolerance must be positive, got %v", c.FeasibilityTolerance)
	case c.OptimalityTolerance <= 0:
		return fmt.Errorf("optimality tolerance must be positive, got %v", c.OptimalityTolerance)
	case c.MaxOuterIterations < 1:
		return fmt.Errorf("max outer iterations must be at least 1, got %d", c.MaxOuterIterations)
	case c.InnerIterations < 1:
		return fmt.Errorf("inner iterations must be at least 1, got %d", c.InnerIterations)
	case c.InitialPenalty <= 0:
		return fmt.Errorf("initial penalty must be positive, got %v", c.InitialPenalty)
	case c.PenaltyGrowth <= 1:
		return fmt.Errorf("penalty growth must exceed 1, got %v", c.PenaltyGrowth)
	case c.MaxPenalty < c.InitialPenalty:
		return fmt.Errorf("max penalty %v is below initial penalty %v", c.MaxPenalty, c.InitialPenalty)
	case c.FixTolerance < 0:
		return fmt.Errorf("fix tolerance must be non-negative, got %v", c.FixTolerance)
	}
	if _, err := innerMethod(c.InnerMethod); err != nil {
		return err
	}
	return nil
}

// innerMethod maps a configured method name to a fresh gonum method.
// Methods carry per-run state, so every inner solve gets its own instance.
func innerMethod(name string) (optimize.Method, error) {
	switch strings.ToLower(name) {
	case "", MethodLBFGS:
		return &optimize.LBFGS{}, nil
	case MethodBFGS:
		return &optimize.BFGS{}, nil
	case MethodCG:
		return &optimize.CG{}, nil
	default:
		return nil, fmt.Errorf("unknown inner method %q", name)
	}
}

var _ ports.Solver = (*Solver)(nil)

// Solver hands out independent augmented-Lagrangian model sessions.
// It holds only immutable configuration and is safe for concurrent use.
type Solver struct {
	config Config
	logger *slog.Logger
}

// New creates a Solver. A nil logger discards output.
func New(config Config, logger *slog.Logger) *Solver {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Solver{config: config, logger: logger}
}

// Name implements ports.Solver.
func (s *Solver) Name() string { return Name }

// NewModel implements ports.Solver.
func (s *Solver) NewModel(ctx context.Context, name string) (ports.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, ports.NewSolverError(name, "NewModel", err)
	}
	if err := s.config.Validate(); err != nil {
		return nil, ports.NewSolverError(name, "NewModel", err)
	}
	return newModel(name, s.config, s.logger), nil
}
