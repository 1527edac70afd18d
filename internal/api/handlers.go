package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/ahrav/go-postfactum/internal/application"
	"github.com/ahrav/go-postfactum/internal/domain"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeInvalidRequest = "invalid_request"
	CodeInvalidInput   = "invalid_input"
	CodeNoSolution     = "no_solution"
	CodeTooLarge       = "too_large"
	CodeCanceled       = "canceled"
	CodeInternal       = "internal"
)

// TargetPerformanceRequest asks for the minimal change of one alternative.
type TargetPerformanceRequest struct {
	ID           string    `json:"id,omitempty"`
	Performances []float64 `json:"performances"`
	Weights      []float64 `json:"weights"`
	TargetR      float64   `json:"target_r"`
	Excluded     []int     `json:"excluded,omitempty"`
	ConstantWM   bool      `json:"constant_wm,omitempty"`
}

func (r TargetPerformanceRequest) scenario() domain.Scenario {
	return domain.Scenario{
		ID:           r.ID,
		Performances: r.Performances,
		Weights:      r.Weights,
		TargetR:      r.TargetR,
		Excluded:     r.Excluded,
		ConstantWM:   r.ConstantWM,
	}
}

// SweepRequest is the JSON form of a batch. A YAML scenario file posted
// with Content-Type application/yaml is accepted as well.
type SweepRequest struct {
	Scenarios []TargetPerformanceRequest `json:"scenarios"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Kind and Status describe solver failures.
	Kind   string `json:"kind,omitempty"`
	Status string `json:"status,omitempty"`
}

// SweepItem is one scenario outcome in a SweepResponse.
type SweepItem struct {
	Index      int                `json:"index"`
	ScenarioID string             `json:"scenario_id,omitempty"`
	Adjustment *domain.Adjustment `json:"adjustment,omitempty"`
	Error      *ErrorResponse     `json:"error,omitempty"`
}

// SweepResponse reports a batch in input order.
type SweepResponse struct {
	Results   []SweepItem `json:"results"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
}

// Handler serves the post-factum endpoints.
type Handler struct {
	engine Engine
	logger *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(engine Engine, logger *slog.Logger) *Handler {
	return &Handler{engine: engine, logger: logger}
}

// TargetPerformance computes the adjustment for one alternative.
// POST /api/v1/target-performance
func (h *Handler) TargetPerformance(w http.ResponseWriter, r *http.Request) {
	var req TargetPerformanceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeRequestError(w, err)
		return
	}

	adj, err := h.engine.Adjust(r.Context(), req.scenario())
	if err != nil {
		status, body := errorResponse(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("target performance failed", "error", err)
		}
		writeJSON(w, status, body)
		return
	}
	writeJSON(w, http.StatusOK, adj)
}

// Sweep computes independent adjustments for a batch.
// POST /api/v1/sweep
func (h *Handler) Sweep(w http.ResponseWriter, r *http.Request) {
	scenarios, err := decodeSweep(r)
	if err != nil {
		writeRequestError(w, err)
		return
	}

	results, err := h.engine.Sweep(r.Context(), scenarios)
	if err != nil {
		status, body := errorResponse(err)
		writeJSON(w, status, body)
		return
	}

	writeJSON(w, http.StatusOK, NewSweepResponse(results))
}

// NewSweepResponse converts engine results into their wire form.
func NewSweepResponse(results []application.SweepResult) SweepResponse {
	resp := SweepResponse{Results: make([]SweepItem, len(results))}
	for i, res := range results {
		item := SweepItem{Index: res.Index, ScenarioID: res.ScenarioID, Adjustment: res.Adjustment}
		if res.Err != nil {
			_, body := errorResponse(res.Err)
			item.Error = &body
			resp.Failed++
		} else {
			resp.Succeeded++
		}
		resp.Results[i] = item
	}
	return resp
}

func decodeSweep(r *http.Request) ([]domain.Scenario, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/yaml", "application/x-yaml", "text/yaml":
		scns, err := application.LoadScenarios(r.Body)
		if err != nil {
			return nil, requestError{err}
		}
		return scns, nil
	}

	var req SweepRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	scns := make([]domain.Scenario, len(req.Scenarios))
	for i, s := range req.Scenarios {
		scns[i] = s.scenario()
	}
	return scns, nil
}

// requestError marks a body that could not be read or decoded.
type requestError struct{ err error }

func (e requestError) Error() string { return e.err.Error() }
func (e requestError) Unwrap() error { return e.err }

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return requestError{fmt.Errorf("invalid JSON body: %w", err)}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return requestError{errors.New("invalid JSON body: trailing data")}
	}
	return nil
}

func writeRequestError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Code: CodeTooLarge, Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Code: CodeInvalidRequest, Message: err.Error()})
}

// errorResponse maps an engine error to an HTTP status and body.
func errorResponse(err error) (int, ErrorResponse) {
	var (
		verr *domain.ValidationError
		serr *domain.SolveError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, ErrorResponse{Code: CodeInvalidInput, Message: err.Error()}
	case errors.As(err, &serr):
		return http.StatusUnprocessableEntity, ErrorResponse{
			Code:    CodeNoSolution,
			Message: err.Error(),
			Kind:    string(serr.Kind),
			Status:  serr.Status.String(),
		}
	case errors.Is(err, application.ErrSweepTooLarge):
		return http.StatusRequestEntityTooLarge, ErrorResponse{Code: CodeTooLarge, Message: err.Error()}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, ErrorResponse{Code: CodeCanceled, Message: err.Error()}
	default:
		return http.StatusInternalServerError, ErrorResponse{Code: CodeInternal, Message: "internal error"}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
