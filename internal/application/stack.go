package application

import (
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/ahrav/go-postfactum/infrastructure/solver"
	"github.com/ahrav/go-postfactum/internal/ports"
)

// NewSolverStack builds the production solver: the augmented-Lagrangian
// engine wrapped with tracing, metrics and, when configured, a session
// rate limit. metrics may be nil.
func NewSolverStack(cfg Config, logger *slog.Logger, metrics ports.MetricsCollector) ports.Solver {
	middleware := []ports.SolverMiddleware{solver.TracingMiddleware("postfactum-solver")}
	if metrics != nil {
		middleware = append(middleware, solver.MetricsMiddleware(metrics))
	}
	if cfg.Sweep.SessionsPerSecond > 0 {
		burst := max(cfg.Sweep.Burst, 1)
		middleware = append(middleware, solver.RateLimitMiddleware(rate.Limit(cfg.Sweep.SessionsPerSecond), burst))
	}
	return solver.Chain(solver.New(cfg.Solver.EngineConfig(), logger), middleware...)
}
