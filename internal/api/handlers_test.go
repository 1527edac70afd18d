package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-postfactum/infrastructure/metrics"
	"github.com/ahrav/go-postfactum/internal/application"
	"github.com/ahrav/go-postfactum/internal/domain"
	"github.com/ahrav/go-postfactum/internal/testutils"
)

type stubEngine struct {
	adj      *domain.Adjustment
	err      error
	sweep    []application.SweepResult
	sweepErr error

	got      domain.Scenario
	gotSweep []domain.Scenario
}

func (s *stubEngine) Adjust(_ context.Context, scn domain.Scenario) (*domain.Adjustment, error) {
	s.got = scn
	return s.adj, s.err
}

func (s *stubEngine) Sweep(_ context.Context, scns []domain.Scenario) ([]application.SweepResult, error) {
	s.gotSweep = scns
	return s.sweep, s.sweepErr
}

func newTestRouter(engine Engine) http.Handler {
	return NewRouter(engine, application.DefaultConfig().Server, prometheus.NewRegistry(), testutils.DiscardLogger())
}

func do(t *testing.T, h http.Handler, method, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestTargetPerformance_OK(t *testing.T) {
	engine := &stubEngine{adj: &domain.Adjustment{
		ScenarioID:        "a1",
		Performances:      []float64{0.9, 0.8},
		AchievedCloseness: 0.9,
		Changed:           []int{0},
		Stats:             domain.SolveStats{Status: domain.StatusOptimal},
	}}
	rec := do(t, newTestRouter(engine), http.MethodPost, "/api/v1/target-performance", "application/json",
		`{"id":"a1","performances":[0.8,0.5],"weights":[1,0.6],"target_r":0.9,"excluded":[1]}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, domain.Scenario{
		ID:           "a1",
		Performances: []float64{0.8, 0.5},
		Weights:      []float64{1, 0.6},
		TargetR:      0.9,
		Excluded:     []int{1},
	}, engine.got)

	body := decodeBody[map[string]any](t, rec)
	assert.Equal(t, []any{0.9, 0.8}, body["performances"])
	assert.Equal(t, "optimal", body["stats"].(map[string]any)["status"])
}

func TestTargetPerformance_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
		wantBody ErrorResponse
	}{
		{
			name:     "malformed json",
			body:     `{"performances":`,
			wantCode: http.StatusBadRequest,
			wantBody: ErrorResponse{Code: CodeInvalidRequest},
		},
		{
			name:     "unknown field",
			body:     `{"performances":[0.5],"weights":[1],"target_r":0.5,"tolerance":1}`,
			wantCode: http.StatusBadRequest,
			wantBody: ErrorResponse{Code: CodeInvalidRequest},
		},
		{
			name:     "trailing data",
			body:     `{"performances":[0.5],"weights":[1],"target_r":0.5} {}`,
			wantCode: http.StatusBadRequest,
			wantBody: ErrorResponse{Code: CodeInvalidRequest},
		},
		{
			name: "validation",
			body: `{"performances":[0.5],"weights":[1],"target_r":1.5}`,
			err: func() error {
				v := domain.NewValidationError("scenario")
				v.AddCause(domain.ErrInvalidTarget, "target R = 1.5 is outside (0, 1)")
				return v
			}(),
			wantCode: http.StatusBadRequest,
			wantBody: ErrorResponse{Code: CodeInvalidInput},
		},
		{
			name:     "no solution",
			body:     `{"performances":[0.5],"weights":[1],"target_r":0.9}`,
			err:      domain.NewSolveError(domain.FailureSolve, domain.StatusInfeasible, nil),
			wantCode: http.StatusUnprocessableEntity,
			wantBody: ErrorResponse{Code: CodeNoSolution, Kind: "solve_failure", Status: "infeasible"},
		},
		{
			name:     "canceled",
			body:     `{"performances":[0.5],"weights":[1],"target_r":0.9}`,
			err:      context.Canceled,
			wantCode: http.StatusServiceUnavailable,
			wantBody: ErrorResponse{Code: CodeCanceled},
		},
		{
			name:     "internal",
			body:     `{"performances":[0.5],"weights":[1],"target_r":0.9}`,
			err:      errors.New("disk on fire"),
			wantCode: http.StatusInternalServerError,
			wantBody: ErrorResponse{Code: CodeInternal, Message: "internal error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newTestRouter(&stubEngine{err: tt.err}), http.MethodPost,
				"/api/v1/target-performance", "application/json", tt.body)

			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			got := decodeBody[ErrorResponse](t, rec)
			assert.Equal(t, tt.wantBody.Code, got.Code)
			assert.Equal(t, tt.wantBody.Kind, got.Kind)
			assert.Equal(t, tt.wantBody.Status, got.Status)
			if tt.wantBody.Message != "" {
				assert.Equal(t, tt.wantBody.Message, got.Message)
			} else {
				assert.NotEmpty(t, got.Message)
			}
		})
	}
}

func TestTargetPerformance_BodyLimit(t *testing.T) {
	cfg := application.DefaultConfig().Server
	cfg.MaxBodyBytes = 32
	h := NewRouter(&stubEngine{}, cfg, prometheus.NewRegistry(), testutils.DiscardLogger())

	body := `{"performances":[` + strings.Repeat("0.5,", 20) + `0.5],"weights":[1],"target_r":0.5}`
	rec := do(t, h, http.MethodPost, "/api/v1/target-performance", "application/json", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, CodeTooLarge, decodeBody[ErrorResponse](t, rec).Code)
}

func TestSweep_JSON(t *testing.T) {
	engine := &stubEngine{sweep: []application.SweepResult{
		{Index: 0, ScenarioID: "a", Adjustment: &domain.Adjustment{Performances: []float64{0.9}}},
		{Index: 1, ScenarioID: "b", Err: domain.NewSolveError(domain.FailureSolve, domain.StatusTimeLimit, nil)},
	}}
	rec := do(t, newTestRouter(engine), http.MethodPost, "/api/v1/sweep", "application/json",
		`{"scenarios":[
			{"id":"a","performances":[0.5],"weights":[1],"target_r":0.9},
			{"id":"b","performances":[0.4],"weights":[1],"target_r":0.9,"constant_wm":true}
		]}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, engine.gotSweep, 2)
	assert.True(t, engine.gotSweep[1].ConstantWM)

	resp := decodeBody[SweepResponse](t, rec)
	assert.Equal(t, 1, resp.Succeeded)
	assert.Equal(t, 1, resp.Failed)
	require.Len(t, resp.Results, 2)
	assert.Nil(t, resp.Results[0].Error)
	assert.Equal(t, []float64{0.9}, resp.Results[0].Adjustment.Performances)
	require.NotNil(t, resp.Results[1].Error)
	assert.Equal(t, CodeNoSolution, resp.Results[1].Error.Code)
	assert.Equal(t, "timelimit", resp.Results[1].Error.Status)
}

func TestSweep_YAML(t *testing.T) {
	engine := &stubEngine{sweep: []application.SweepResult{}}
	yamlBody := `
target_r: 0.8
criteria:
  - {name: Price, weight: 2}
  - {name: Quality, weight: 1}
alternatives:
  - id: acme
    performances: {Price: 0.8, Quality: 0.5}
`
	rec := do(t, newTestRouter(engine), http.MethodPost, "/api/v1/sweep", "application/yaml; charset=utf-8", yamlBody)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, engine.gotSweep, 1)
	assert.Equal(t, []float64{1, 0.5}, engine.gotSweep[0].Weights)

	rec = do(t, newTestRouter(engine), http.MethodPost, "/api/v1/sweep", "application/yaml", "criteria: 3")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSweep_TooLarge(t *testing.T) {
	engine := &stubEngine{sweepErr: application.ErrSweepTooLarge}
	rec := do(t, newTestRouter(engine), http.MethodPost, "/api/v1/sweep", "application/json", `{"scenarios":[]}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	pm := metrics.NewPrometheusMetrics(reg)
	pm.RecordCounter("solves_total", 1, map[string]string{"outcome": "success"})
	h := NewRouter(&stubEngine{}, application.DefaultConfig().Server, reg, testutils.DiscardLogger())

	rec := do(t, h, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `postfactum_solves_total{outcome="success"} 1`)
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	rec := do(t, newTestRouter(&stubEngine{}), http.MethodGet, "/api/v1/target-performance", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouter_EndToEnd(t *testing.T) {
	fs := testutils.NewFakeSolver(domain.StatusOptimal, []float64{0.9, 0.3, 0.01})
	cfg := application.DefaultConfig()
	engine := application.NewEngine(fs, cfg, application.WithLogger(testutils.DiscardLogger()))
	srv := httptest.NewServer(NewRouter(engine, cfg.Server, prometheus.NewRegistry(), testutils.DiscardLogger()))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/target-performance", "application/json",
		bytes.NewBufferString(`{"id":"x","performances":[0.8,0.5],"weights":[1,0.6],"target_r":0.9}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	var adj domain.Adjustment
	require.NoError(t, json.Unmarshal(raw, &adj))
	assert.Equal(t, "x", adj.ScenarioID)
	assert.InDeltaSlice(t, []float64{0.9, 0.5}, adj.Performances, 1e-12)
	assert.Equal(t, domain.StatusOptimal, adj.Stats.Status)
	assert.NotEmpty(t, resp.Header.Get("Content-Type"))
}
