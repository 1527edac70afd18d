package solver

import (
	"github.com/ahrav/go-postfactum/internal/ports"
)

// Chain wraps base with the given middleware. The first middleware is the
// outermost, so Chain(s, a, b) calls a, then b, then s.
func Chain(base ports.Solver, middleware ...ports.SolverMiddleware) ports.Solver {
	s := base
	// Apply middleware in reverse order so the first middleware is the outermost.
	for i := len(middleware) - 1; i >= 0; i-- {
		if middleware[i] == nil {
			continue
		}
		s = middleware[i](s)
	}
	return s
}
