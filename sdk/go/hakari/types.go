package hakari

import (
	"time"

	"github.com/google/uuid"
)

// Metric mirrors a stored metric record. A nil ScenarioID marks the
// run-level record.
type Metric struct {
	ID         uuid.UUID      `json:"id"`
	RunID      string         `json:"run_id"`
	ScenarioID *string        `json:"scenario_id,omitempty"`
	Data       map[string]any `json:"data"`
	Status     *string        `json:"status,omitempty"`
	Tags       []string       `json:"tags,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// CreateMetric is one record of a create call. Run-level records leave
// ScenarioID nil.
type CreateMetric struct {
	RunID      string         `json:"run_id"`
	ScenarioID *string        `json:"scenario_id,omitempty"`
	Data       map[string]any `json:"data"`
	Status     *string        `json:"status,omitempty"`
	Tags       []string       `json:"tags,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// MetricUpdate is one record of an update call. Nil fields are left
// untouched by the server; Data, when set, replaces the stored data
// wholesale.
type MetricUpdate struct {
	ID     uuid.UUID      `json:"id"`
	Data   map[string]any `json:"data,omitempty"`
	Status *string        `json:"status,omitempty"`
	Tags   []string       `json:"tags,omitempty"`
	Meta   map[string]any `json:"meta,omitempty"`
}

// ListOptions filters ListMetrics. RunLevel takes precedence over
// ScenarioIDs.
type ListOptions struct {
	RunIDs      []string
	ScenarioIDs []string
	RunLevel    bool
	Limit       int
	Offset      int
}

// EntityData is the new metric data computed for one scenario.
type EntityData struct {
	EntityID string         `json:"entity_id"`
	Data     map[string]any `json:"data"`
}

// BasicStats is the aggregation result for one metric key. Numeric keys
// fill Sum through BinSize; binary, categorical and label keys fill
// Frequency, Unique and Rank.
type BasicStats struct {
	Count int    `json:"count"`
	Kind  string `json:"kind"`

	Sum          float64              `json:"sum,omitempty"`
	Mean         float64              `json:"mean,omitempty"`
	Min          float64              `json:"min,omitempty"`
	Max          float64              `json:"max,omitempty"`
	Range        float64              `json:"range,omitempty"`
	Distribution []DistributionBucket `json:"distribution,omitempty"`
	Percentiles  map[string]float64   `json:"percentiles,omitempty"`
	IQRs         map[string]float64   `json:"iqrs,omitempty"`
	BinSize      float64              `json:"bin_size,omitempty"`

	Frequency []FrequencyItem `json:"frequency,omitempty"`
	Unique    []any           `json:"unique,omitempty"`
	Rank      []FrequencyItem `json:"rank,omitempty"`
}

// DistributionBucket is one histogram interval starting at Value.
type DistributionBucket struct {
	Value float64 `json:"value"`
	Count int     `json:"count"`
}

// FrequencyItem counts one discrete value.
type FrequencyItem struct {
	Value any `json:"value"`
	Count int `json:"count"`
}

// RunStats is the server-side aggregation of a run's scenario records.
type RunStats struct {
	RunID         string                `json:"run_id"`
	ScenarioCount int                   `json:"scenario_count"`
	Metrics       map[string]BasicStats `json:"metrics"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Postgres string `json:"postgres"`
	Uptime   int64  `json:"uptime_seconds"`
}

type metricsBody struct {
	Metrics []Metric `json:"metrics"`
}

type metricBody struct {
	Metric Metric `json:"metric"`
}

type aggregateBody struct {
	Metrics map[string]BasicStats `json:"metrics"`
}
