package solver

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/ahrav/go-postfactum/internal/ports"
)

// rateLimitedSolver paces session creation with a token bucket shared by
// every caller of the wrapped Solver.
type rateLimitedSolver struct {
	next    ports.Solver
	limiter *rate.Limiter
}

// RateLimitMiddleware creates middleware that admits at most limit new model
// sessions per second, with burst allowing short spikes. A sweep uses it to
// keep many concurrent scenarios from saturating the host.
func RateLimitMiddleware(limit rate.Limit, burst int) ports.SolverMiddleware {
	limiter := rate.NewLimiter(limit, burst)

	return func(next ports.Solver) ports.Solver {
		return &rateLimitedSolver{
			next:    next,
			limiter: limiter,
		}
	}
}

// NewModel blocks until the limiter grants a token or ctx ends.
func (r *rateLimitedSolver) NewModel(ctx context.Context, name string) (ports.Model, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return r.next.NewModel(ctx, name)
}

// Name returns the wrapped solver's name.
func (r *rateLimitedSolver) Name() string { return r.next.Name() }
