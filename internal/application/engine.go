package application

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-postfactum/internal/domain"
	"github.com/ahrav/go-postfactum/internal/ports"
)

// Metric names recorded by the engine.
const (
	MetricSolveDuration     = "solve_duration_seconds"
	MetricSolvesTotal       = "solves_total"
	MetricAchievedCloseness = "achieved_closeness"
	MetricCacheHits         = "cache_hits_total"
	MetricCacheMisses       = "cache_misses_total"
	MetricCacheSize         = "cache_size"
)

// Outcome labels of MetricSolvesTotal.
const (
	OutcomeSuccess    = "success"
	OutcomeInvalid    = "invalid"
	OutcomeNoSolution = "no_solution"
	OutcomeCanceled   = "canceled"
	OutcomeError      = "error"
)

// Engine answers post-factum questions: the minimal weighted-space change
// of an alternative's performances that reaches a target TOPSIS closeness
// coefficient. Engine is safe for concurrent use; each computation opens
// its own solver session.
type Engine struct {
	adapter *SolverAdapter
	cache   ports.ResultCache
	sf      singleflight.Group
	logger  *slog.Logger
	metrics ports.MetricsCollector
	tracer  trace.Tracer
	sweep   SweepConfig
}

// EngineOption configures optional Engine collaborators.
type EngineOption func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(metrics ports.MetricsCollector) EngineOption {
	return func(e *Engine) { e.metrics = metrics }
}

// WithCache enables memoization of finished adjustments.
func WithCache(cache ports.ResultCache) EngineOption {
	return func(e *Engine) { e.cache = cache }
}

// NewEngine creates an engine that solves with solver using cfg.
func NewEngine(solver ports.Solver, cfg Config, opts ...EngineOption) *Engine {
	e := &Engine{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer: otel.Tracer("postfactum-engine"),
		sweep:  cfg.Sweep,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.adapter = NewSolverAdapter(solver, NewProblemBuilder(cfg.Solver), e.logger, e.metrics)
	return e
}

// ComputeTargetPerformance returns the target performance vector in US for
// one alternative, or nil and an error.
//
// Validation failures wrap domain.ErrShapeMismatch, domain.ErrInvalidIndex,
// domain.ErrInvalidTarget, domain.ErrInvalidWeights or
// domain.ErrInvalidPerformance and are returned before any solver work.
// Every solver-side failure matches domain.ErrNoSolution; errors.As with a
// *domain.SolveError reveals which kind occurred.
func (e *Engine) ComputeTargetPerformance(
	ctx context.Context,
	performances, weights []float64,
	targetR float64,
	excluded []int,
	constantWM bool,
) ([]float64, error) {
	adj, err := e.Adjust(ctx, domain.Scenario{
		Performances: performances,
		Weights:      weights,
		TargetR:      targetR,
		Excluded:     excluded,
		ConstantWM:   constantWM,
	})
	if err != nil {
		return nil, err
	}
	return adj.Performances, nil
}

// Adjust is the detailed form of ComputeTargetPerformance. Besides the
// target vector it reports the original and achieved closeness, the
// minimized squared distance, the criteria that changed and solver stats.
func (e *Engine) Adjust(ctx context.Context, scn domain.Scenario) (*domain.Adjustment, error) {
	start := time.Now()
	runID := uuid.NewString()
	ctx = WithRunID(ctx, runID)
	ctx, span := e.tracer.Start(ctx, "postfactum.adjust",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("scenario.id", scn.ID),
			attribute.Int("scenario.criteria", scn.Criteria()),
			attribute.Float64("scenario.target_r", scn.TargetR),
			attribute.Int("scenario.excluded", len(scn.Excluded)),
			attribute.Bool("scenario.constant_wm", scn.ConstantWM),
		),
	)
	defer span.End()

	adj, err := e.adjust(ctx, scn)
	outcome := outcomeOf(err)
	e.record(outcome, time.Since(start), adj)

	logger := e.logger.With("run_id", runID, "scenario_id", scn.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Info("post-factum computation failed", "outcome", outcome, "error", err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Float64("result.original_closeness", adj.OriginalCloseness),
		attribute.Float64("result.achieved_closeness", adj.AchievedCloseness),
		attribute.Float64("result.squared_distance", adj.SquaredDistance),
	)
	span.SetStatus(codes.Ok, "")
	logger.Info("post-factum computation finished",
		"original_closeness", adj.OriginalCloseness,
		"achieved_closeness", adj.AchievedCloseness,
		"squared_distance", adj.SquaredDistance,
		"changed", adj.Changed,
		"duration", time.Since(start),
	)
	return adj, nil
}

// adjust validates scn and serves it from the cache or the solver.
func (e *Engine) adjust(ctx context.Context, scn domain.Scenario) (*domain.Adjustment, error) {
	if err := scn.Validate(); err != nil {
		return nil, err
	}
	if e.cache == nil {
		return e.compute(ctx, scn)
	}

	key, err := ScenarioKey(scn)
	if err != nil {
		return nil, err
	}
	if adj, ok := e.cached(ctx, key); ok {
		return withID(adj, scn.ID), nil
	}
	e.count(MetricCacheMisses)

	// Concurrent requests for the same scenario share one solver session.
	// The session outlives any single caller; the model's time limit bounds
	// it, and each caller stops waiting when its own context ends.
	ch := e.sf.DoChan(key, func() (any, error) {
		shared := context.WithoutCancel(ctx)
		if adj, ok := e.cached(shared, key); ok {
			return adj, nil
		}
		adj, err := e.compute(shared, scn)
		if err != nil {
			return nil, err
		}
		if err := e.cache.Set(shared, key, adj); err != nil {
			e.logger.Warn("caching adjustment failed", "run_id", RunIDFromContext(ctx), "error", err)
		}
		e.gauge(MetricCacheSize, float64(e.cache.Len()))
		return adj, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return withID(res.Val.(*domain.Adjustment), scn.ID), nil
	}
}

func (e *Engine) cached(ctx context.Context, key string) (*domain.Adjustment, bool) {
	adj, ok, err := e.cache.Get(ctx, key)
	if err != nil {
		e.logger.Warn("reading adjustment cache failed", "run_id", RunIDFromContext(ctx), "error", err)
		return nil, false
	}
	if ok {
		e.count(MetricCacheHits)
	}
	return adj, ok
}

// withID hands out a private copy of a possibly shared adjustment.
func withID(adj *domain.Adjustment, id string) *domain.Adjustment {
	c := adj.Clone()
	c.ScenarioID = id
	return c
}

// compute runs one solver session and derives the adjustment from it.
func (e *Engine) compute(ctx context.Context, scn domain.Scenario) (*domain.Adjustment, error) {
	report, err := e.adapter.Solve(ctx, scn)
	if err != nil {
		return nil, err
	}

	us, err := domain.ToUtility(report.Weighted, scn.Weights)
	if err != nil {
		return nil, domain.NewSolveError(domain.FailureRuntime, report.Stats.Status, err)
	}
	perfVS, err := domain.ToWeighted(scn.Performances, scn.Weights)
	if err != nil {
		return nil, err
	}
	pis, nis := domain.IdealSolutions(scn.Weights)
	original, err := domain.ClosenessCoefficient(perfVS, pis, nis)
	if err != nil {
		return nil, err
	}
	achieved, err := domain.ClosenessCoefficient(report.Weighted, pis, nis)
	if err != nil {
		return nil, err
	}

	adj := &domain.Adjustment{
		ScenarioID:        scn.ID,
		Performances:      us,
		Weighted:          report.Weighted,
		OriginalCloseness: original,
		AchievedCloseness: achieved,
		AlreadySatisfied:  original >= scn.TargetR,
		Changed:           []int{},
		Stats:             report.Stats,
	}
	for i := range perfVS {
		d := report.Weighted[i] - perfVS[i]
		adj.SquaredDistance += d * d
		if math.Abs(d) > domain.ChangeTolerance {
			adj.Changed = append(adj.Changed, i)
		}
	}
	return adj, nil
}

func outcomeOf(err error) string {
	var verr *domain.ValidationError
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.As(err, &verr):
		return OutcomeInvalid
	case errors.Is(err, domain.ErrNoSolution):
		return OutcomeNoSolution
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	default:
		return OutcomeError
	}
}

func (e *Engine) record(outcome string, d time.Duration, adj *domain.Adjustment) {
	if e.metrics == nil {
		return
	}
	labels := map[string]string{"outcome": outcome}
	e.metrics.RecordLatency(MetricSolveDuration, d, labels)
	e.metrics.RecordCounter(MetricSolvesTotal, 1, labels)
	if adj != nil {
		e.metrics.RecordHistogram(MetricAchievedCloseness, adj.AchievedCloseness, nil)
	}
}

func (e *Engine) gauge(metric string, value float64) {
	if e.metrics != nil {
		e.metrics.RecordGauge(metric, value, nil)
	}
}

func (e *Engine) count(metric string) {
	if e.metrics != nil {
		e.metrics.RecordCounter(metric, 1, nil)
	}
}

// canonicalScenario is the hashed form of a scenario: the ID is dropped
// and excluded indices are a sorted set, so equivalent questions share a key.
type canonicalScenario struct {
	Performances []float64 `yaml:"performances"`
	Weights      []float64 `yaml:"weights"`
	TargetR      float64   `yaml:"target_r"`
	Excluded     []int     `yaml:"excluded"`
	ConstantWM   bool      `yaml:"constant_wm"`
}

// ScenarioKey computes the SHA-256 cache key of scn's canonical form.
func ScenarioKey(scn domain.Scenario) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(canonicalScenario{
		Performances: scn.Performances,
		Weights:      scn.Weights,
		TargetR:      scn.TargetR,
		Excluded:     scn.ExcludedSet(),
		ConstantWM:   scn.ConstantWM,
	}); err != nil {
		return "", fmt.Errorf("failed to encode scenario for hashing: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to encode scenario for hashing: %w", err)
	}
	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:]), nil
}
