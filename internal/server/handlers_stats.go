package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/ashita-ai/hakari/internal/model"
)

// HandleAggregate handles POST /preview/evaluations/metrics/aggregate.
// It aggregates caller-supplied entries and stores nothing.
func (h *Handlers) HandleAggregate(w http.ResponseWriter, r *http.Request) {
	var req model.AggregateRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if !h.checkBatch(w, r, len(req.Entries)) {
		return
	}
	if err := req.Validate(); err != nil {
		writeValidationError(w, r, err)
		return
	}
	writeBody(w, http.StatusOK, model.AggregateResponse{Metrics: h.runStats.Aggregate(req.Entries)})
}

// HandleRunStats handles GET /preview/evaluations/runs/{run_id}/stats.
func (h *Handlers) HandleRunStats(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.projectID(w, r)
	if !ok {
		return
	}
	runID := r.PathValue("run_id")
	if err := model.ValidateIdentifier("run_id", runID); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	out, err := h.runStats.Compute(r.Context(), projectID, runID)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		h.writeInternalError(w, r, "failed to compute run stats", err)
		return
	}
	writeBody(w, http.StatusOK, out)
}
