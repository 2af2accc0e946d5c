package stats

import (
	"fmt"

	"github.com/ashita-ai/hakari/internal/model"
)

// Aggregator computes statistics with a fixed Config. It holds no mutable
// state.
type Aggregator struct {
	cfg Config
}

// New returns an Aggregator for cfg.
func New(cfg Config) (*Aggregator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Aggregator{cfg: cfg}, nil
}

// Default uses DefaultConfig.
var Default = &Aggregator{cfg: DefaultConfig()}

// Config returns a copy of the aggregator's configuration.
func (a *Aggregator) Config() Config { return a.cfg }

// ComputeRunMetrics aggregates with the default configuration.
func ComputeRunMetrics(entries []model.MetricEntry) map[string]model.BasicStats {
	return Default.ComputeRunMetrics(entries)
}

// ComputeStats summarises a numeric sample with the default configuration.
func ComputeStats(values []float64) model.BasicStats {
	return Default.ComputeStats(values)
}

// Classify picks the aggregator for one metric key by inspecting every
// value: all finite numbers are numeric; all booleans or nulls are binary;
// all arrays or nulls, with at least one array, are labels; anything else
// is categorical. An empty bucket is numeric.
func Classify(values []model.Value) model.StatsKind {
	numeric, binary, labels := true, true, true
	sawLabels := false
	for _, v := range values {
		if _, ok := v.FiniteNumber(); !ok {
			numeric = false
		}
		switch v.Kind() {
		case model.KindBool, model.KindNull:
		default:
			binary = false
		}
		switch v.Kind() {
		case model.KindLabels:
			sawLabels = true
		case model.KindNull:
		default:
			labels = false
		}
	}
	switch {
	case numeric:
		return model.StatsNumeric
	case binary:
		return model.StatsBinary
	case labels && sawLabels:
		return model.StatsLabels
	default:
		return model.StatsCategorical
	}
}

// ComputeRunMetrics groups values by metric key across entries and
// summarises each key with the aggregator its values classify into.
// Undefined values are skipped like absent keys. The result is never nil.
func (a *Aggregator) ComputeRunMetrics(entries []model.MetricEntry) map[string]model.BasicStats {
	buckets := make(map[string][]model.Value)
	for _, e := range entries {
		for key, v := range e.Data {
			if v.IsUndefined() {
				continue
			}
			buckets[key] = append(buckets[key], v)
		}
	}

	out := make(map[string]model.BasicStats, len(buckets))
	for key, values := range buckets {
		out[key] = a.ComputeValues(values)
	}
	return out
}

// ComputeValues summarises one metric key's values.
func (a *Aggregator) ComputeValues(values []model.Value) model.BasicStats {
	switch kind := Classify(values); kind {
	case model.StatsNumeric:
		nums := make([]float64, len(values))
		for i, v := range values {
			nums[i], _ = v.FiniteNumber()
		}
		return a.ComputeStats(nums)
	case model.StatsBinary:
		return a.ComputeBinary(values)
	case model.StatsLabels:
		return a.ComputeLabels(values)
	case model.StatsCategorical:
		return a.ComputeCategorical(values)
	default:
		panic(fmt.Sprintf("stats: unhandled kind %q", kind))
	}
}
