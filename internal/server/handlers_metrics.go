package server

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/ashita-ai/hakari/internal/model"
	"github.com/ashita-ai/hakari/internal/storage"
)

// HandleCreateMetrics handles POST /preview/evaluations/metrics/.
// Records whose identity already exists have their data merged.
func (h *Handlers) HandleCreateMetrics(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.projectID(w, r)
	if !ok {
		return
	}

	var req model.CreateMetricsRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if !h.checkBatch(w, r, len(req.Metrics)) {
		return
	}
	if err := req.Validate(); err != nil {
		writeValidationError(w, r, err)
		return
	}

	metrics, err := h.store.CreateMetrics(r.Context(), projectID, req.Metrics)
	if err != nil {
		h.writeInternalError(w, r, "failed to create metrics", err)
		return
	}
	writeBody(w, http.StatusCreated, model.MetricsResponse{Metrics: metrics})
}

// HandleListMetrics handles GET /preview/evaluations/metrics/.
//
// Query parameters: run_ids, scenario_ids (comma separated or repeated),
// run_level (restricts to run-level records), limit, offset.
func (h *Handlers) HandleListMetrics(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.projectID(w, r)
	if !ok {
		return
	}

	runLevel, err := queryBool(r, "run_level")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}
	runIDs, err := queryIDs(r, "run_ids")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}
	scenarioIDs, err := queryIDs(r, "scenario_ids")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}
	filter := model.MetricFilter{
		RunIDs:      runIDs,
		ScenarioIDs: scenarioIDs,
		RunLevel:    runLevel,
		Limit:       queryLimit(r, 100),
		Offset:      queryOffset(r),
	}
	if filter.RunLevel && len(filter.ScenarioIDs) > 0 {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "run_level and scenario_ids are mutually exclusive")
		return
	}

	metrics, err := h.store.ListMetrics(r.Context(), projectID, filter)
	if err != nil {
		h.writeInternalError(w, r, "failed to list metrics", err)
		return
	}
	writeBody(w, http.StatusOK, model.MetricsResponse{Metrics: metrics})
}

// HandleGetMetric handles GET /preview/evaluations/metrics/{metric_id}.
func (h *Handlers) HandleGetMetric(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.projectID(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(r.PathValue("metric_id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid metric_id")
		return
	}

	m, err := h.store.GetMetric(r.Context(), projectID, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "metric not found")
			return
		}
		h.writeInternalError(w, r, "failed to get metric", err)
		return
	}
	writeBody(w, http.StatusOK, model.MetricResponse{Metric: m})
}

// HandleUpdateMetric handles PATCH /preview/evaluations/metrics/{metric_id}.
// The body's id may be omitted; when present it must match the path.
func (h *Handlers) HandleUpdateMetric(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.projectID(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(r.PathValue("metric_id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid metric_id")
		return
	}

	var req model.UpdateMetricRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	switch req.Metric.ID {
	case uuid.Nil:
		req.Metric.ID = id
	case id:
	default:
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "metric.id does not match the path")
		return
	}
	if err := req.Validate(); err != nil {
		writeValidationError(w, r, err)
		return
	}

	m, err := h.store.UpdateMetric(r.Context(), projectID, req.Metric)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "metric not found")
			return
		}
		h.writeInternalError(w, r, "failed to update metric", err)
		return
	}
	writeBody(w, http.StatusOK, model.MetricResponse{Metric: m})
}

// HandleUpdateMetrics handles PATCH /preview/evaluations/metrics/.
// The batch is applied atomically: one missing id fails all of it.
func (h *Handlers) HandleUpdateMetrics(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.projectID(w, r)
	if !ok {
		return
	}

	var req model.UpdateMetricsRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if !h.checkBatch(w, r, len(req.Metrics)) {
		return
	}
	if err := req.Validate(); err != nil {
		writeValidationError(w, r, err)
		return
	}

	metrics, err := h.store.UpdateMetrics(r.Context(), projectID, req.Metrics)
	if err != nil {
		var nf *storage.NotFoundError
		if errors.As(err, &nf) {
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "metric "+nf.ID.String()+" not found")
			return
		}
		h.writeInternalError(w, r, "failed to update metrics", err)
		return
	}
	writeBody(w, http.StatusOK, model.MetricsResponse{Metrics: metrics})
}
