package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ashita-ai/hakari/internal/model"
	"github.com/ashita-ai/hakari/internal/service/runstats"
)

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	store               MetricStore
	runStats            *runstats.Service
	logger              *slog.Logger
	startedAt           time.Time
	version             string
	maxRequestBodyBytes int64
	maxBatchSize        int
}

// HandlersDeps holds all dependencies for constructing Handlers.
type HandlersDeps struct {
	Store               MetricStore
	RunStats            *runstats.Service
	Logger              *slog.Logger
	Version             string
	MaxRequestBodyBytes int64
	MaxBatchSize        int
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	maxBody := d.MaxRequestBodyBytes
	if maxBody <= 0 {
		maxBody = 4 * 1024 * 1024
	}
	maxBatch := d.MaxBatchSize
	if maxBatch <= 0 {
		maxBatch = 1000
	}
	return &Handlers{
		store:               d.Store,
		runStats:            d.RunStats,
		logger:              d.Logger,
		startedAt:           time.Now(),
		version:             d.Version,
		maxRequestBodyBytes: maxBody,
		maxBatchSize:        maxBatch,
	}
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	pgStatus := "connected"
	status := "healthy"
	httpStatus := http.StatusOK

	if err := h.store.Ping(r.Context()); err != nil {
		pgStatus = "disconnected"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, r, httpStatus, model.HealthResponse{
		Status:   status,
		Version:  h.version,
		Postgres: pgStatus,
		Uptime:   int64(time.Since(h.startedAt).Seconds()),
	})
}

// projectID reads and authorizes the project_id query parameter. On failure
// it writes the response and returns ok=false.
func (h *Handlers) projectID(w http.ResponseWriter, r *http.Request) (string, bool) {
	projectID := r.URL.Query().Get("project_id")
	if projectID == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "project_id is required")
		return "", false
	}
	if err := model.ValidateIdentifier("project_id", projectID); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return "", false
	}
	claims := ClaimsFromContext(r.Context())
	if claims == nil || !claims.CanAccess(projectID) {
		writeError(w, r, http.StatusForbidden, model.ErrCodeForbidden, "token does not grant access to this project")
		return "", false
	}
	return projectID, true
}

// checkBatch rejects batches larger than the configured maximum.
func (h *Handlers) checkBatch(w http.ResponseWriter, r *http.Request, n int) bool {
	if n > h.maxBatchSize {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput,
			"batch of "+strconv.Itoa(n)+" records exceeds the maximum of "+strconv.Itoa(h.maxBatchSize))
		return false
	}
	return true
}

func (h *Handlers) writeInternalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.Error(msg, "error", err, "request_id", RequestIDFromContext(r.Context()))
	writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, msg)
}

func writeValidationError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, model.ValidationMessage(err))
}

const (
	maxQueryLimit  = 1000
	maxQueryOffset = 100000
)

func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

// queryOffset returns a bounded offset value from query params.
func queryOffset(r *http.Request) int {
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		return 0
	}
	if offset > maxQueryOffset {
		return maxQueryOffset
	}
	return offset
}

// queryLimit returns a bounded limit value from query params.
// Values are clamped to [1, maxQueryLimit].
func queryLimit(r *http.Request, defaultVal int) int {
	limit := queryInt(r, "limit", defaultVal)
	if limit < 1 {
		return 1
	}
	if limit > maxQueryLimit {
		return maxQueryLimit
	}
	return limit
}

// queryList collects a list parameter given either comma separated or
// repeated (?run_ids=a&run_ids=b). Blank items are dropped.
func queryList(r *http.Request, key string) []string {
	var out []string
	for _, raw := range r.URL.Query()[key] {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

// queryIDs reads an identifier list parameter. A parameter that is present
// but names no identifier is an error rather than "no filter", and every
// identifier must pass model.ValidateIdentifier.
func queryIDs(r *http.Request, key string) ([]string, error) {
	ids := queryList(r, key)
	if len(ids) == 0 {
		if r.URL.Query().Has(key) {
			return nil, errors.New(key + " must name at least one identifier")
		}
		return nil, nil
	}
	for _, id := range ids {
		if err := model.ValidateIdentifier(key, id); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

func queryBool(r *http.Request, key string) (bool, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.New("invalid " + key + ": expected true or false")
	}
	return b, nil
}
