package model

import (
	"time"

	"github.com/google/uuid"
)

// Metric is a stored metric record. Identity is (ProjectID, RunID,
// ScenarioID); a nil ScenarioID marks the run-level record. Data accumulates
// keys across writers and is merged, never replaced, by the upsert protocol.
type Metric struct {
	ID         uuid.UUID      `json:"id"`
	ProjectID  string         `json:"-"`
	RunID      string         `json:"run_id"`
	ScenarioID *string        `json:"scenario_id,omitempty"`
	Data       MetricData     `json:"data"`
	Status     *string        `json:"status,omitempty"`
	Tags       []string       `json:"tags,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// IsRunLevel reports whether m is the run-level record.
func (m Metric) IsRunLevel() bool { return m.ScenarioID == nil }

// MetricFilter selects stored records for list queries.
type MetricFilter struct {
	RunIDs      []string
	ScenarioIDs []string
	// RunLevel restricts results to run-level records.
	RunLevel bool
	Limit    int
	Offset   int
}

// CreateMetricInput is one record in a create request.
type CreateMetricInput struct {
	RunID      string         `json:"run_id" validate:"required,max=255"`
	ScenarioID *string        `json:"scenario_id,omitempty" validate:"omitempty,min=1,max=255"`
	Data       MetricData     `json:"data"`
	Status     *string        `json:"status,omitempty" validate:"omitempty,max=64"`
	Tags       []string       `json:"tags,omitempty" validate:"omitempty,max=64,dive,min=1,max=64"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// CreateMetricsRequest is the body of POST /preview/evaluations/metrics/.
type CreateMetricsRequest struct {
	Metrics []CreateMetricInput `json:"metrics" validate:"required,min=1,dive"`
}

// UpdateMetricInput is one record in an update request. Nil fields are left
// untouched; present fields replace the stored value.
type UpdateMetricInput struct {
	ID     uuid.UUID      `json:"id" validate:"required"`
	Data   MetricData     `json:"data,omitempty"`
	Status *string        `json:"status,omitempty" validate:"omitempty,max=64"`
	Tags   []string       `json:"tags,omitempty" validate:"omitempty,max=64,dive,min=1,max=64"`
	Meta   map[string]any `json:"meta,omitempty"`
}

// UpdateMetricRequest is the body of PATCH /preview/evaluations/metrics/{id}.
type UpdateMetricRequest struct {
	Metric UpdateMetricInput `json:"metric"`
}

// UpdateMetricsRequest is the body of PATCH /preview/evaluations/metrics/.
type UpdateMetricsRequest struct {
	Metrics []UpdateMetricInput `json:"metrics" validate:"required,min=1,dive"`
}

// AggregateRequest is the body of POST /preview/evaluations/metrics/aggregate.
type AggregateRequest struct {
	Entries []MetricEntry `json:"entries" validate:"required,min=1"`
}

// MetricsResponse wraps a list of records.
type MetricsResponse struct {
	Metrics []Metric `json:"metrics"`
}

// MetricResponse wraps a single record.
type MetricResponse struct {
	Metric Metric `json:"metric"`
}

// AggregateResponse carries per-key statistics.
type AggregateResponse struct {
	Metrics map[string]BasicStats `json:"metrics"`
}

// RunStatsResponse is the server-side aggregation of every scenario record
// of a run.
type RunStatsResponse struct {
	RunID         string                `json:"run_id"`
	ScenarioCount int                   `json:"scenario_count"`
	Metrics       map[string]BasicStats `json:"metrics"`
}
