package model

// StatsKind names the aggregator that produced a BasicStats value.
type StatsKind string

const (
	StatsNumeric     StatsKind = "numeric"
	StatsBinary      StatsKind = "binary"
	StatsCategorical StatsKind = "categorical"
	StatsLabels      StatsKind = "labels"
)

// IsNumeric reports whether k carries the numeric field group.
func (k StatsKind) IsNumeric() bool { return k == StatsNumeric }

// BasicStats is the aggregation result for one metric key. Exactly one of
// the embedded groups is set, selected by the kind; the other is omitted
// from JSON entirely.
type BasicStats struct {
	Count int       `json:"count"`
	Kind  StatsKind `json:"kind"`

	*NumericStats
	*DiscreteStats
}

// NumericStats is the numeric field group. Every field is always present,
// including for an empty input.
type NumericStats struct {
	Sum          float64              `json:"sum"`
	Mean         float64              `json:"mean"`
	Min          float64              `json:"min"`
	Max          float64              `json:"max"`
	Range        float64              `json:"range"`
	Distribution []DistributionBucket `json:"distribution"`
	Percentiles  map[string]float64   `json:"percentiles"`
	IQRs         map[string]float64   `json:"iqrs"`
	BinSize      float64              `json:"bin_size"`
}

// DistributionBucket is one histogram interval [Value, Value+BinSize).
type DistributionBucket struct {
	Value float64 `json:"value"`
	Count int     `json:"count"`
}

// DiscreteStats is the field group shared by binary, categorical and label
// metrics.
type DiscreteStats struct {
	Frequency []FrequencyItem `json:"frequency"`
	Unique    []Scalar        `json:"unique"`
	Rank      []FrequencyItem `json:"rank"`
}

// FrequencyItem counts the occurrences of one discrete value.
type FrequencyItem struct {
	Value Scalar `json:"value"`
	Count int    `json:"count"`
}

// FrequencyOf returns the count recorded for v, or 0.
func (d *DiscreteStats) FrequencyOf(v Scalar) int {
	if d == nil {
		return 0
	}
	key := v.Key()
	for _, f := range d.Frequency {
		if f.Value.Key() == key {
			return f.Count
		}
	}
	return 0
}
