package application

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-postfactum/internal/domain"
)

// ErrSweepTooLarge indicates a batch above SweepConfig.MaxScenarios.
var ErrSweepTooLarge = errors.New("sweep exceeds the configured scenario limit")

// SweepResult is the outcome of one scenario in a batch. Exactly one of
// Adjustment and Err is set.
type SweepResult struct {
	Index      int                `json:"index"`
	ScenarioID string             `json:"scenario_id,omitempty"`
	Adjustment *domain.Adjustment `json:"adjustment,omitempty"`
	Err        error              `json:"-"`
}

// Sweep computes independent adjustments for every scenario, running up to
// SweepConfig.MaxConcurrency solver sessions at once. A failing scenario
// never aborts the batch; its error is reported in its result. Results keep
// the input order.
func (e *Engine) Sweep(ctx context.Context, scenarios []domain.Scenario) ([]SweepResult, error) {
	if n := e.sweep.MaxScenarios; n > 0 && len(scenarios) > n {
		return nil, fmt.Errorf("%w: %d > %d", ErrSweepTooLarge, len(scenarios), n)
	}

	results := make([]SweepResult, len(scenarios))
	limit := e.sweep.MaxConcurrency
	if limit < 1 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, scn := range scenarios {
		g.Go(func() error {
			res := SweepResult{Index: i, ScenarioID: scn.ID}
			if err := ctx.Err(); err != nil {
				res.Err = err
			} else {
				res.Adjustment, res.Err = e.Adjust(ctx, scn)
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	succeeded := 0
	for _, r := range results {
		if r.Err == nil {
			succeeded++
		}
	}
	e.logger.Info("sweep finished",
		"scenarios", len(scenarios),
		"succeeded", succeeded,
		"failed", len(scenarios)-succeeded,
	)
	return results, nil
}
