package stats

import (
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ashita-ai/hakari/internal/model"
)

// ComputeStats summarises a numeric sample. An empty sample yields a
// zero-valued result whose distribution, percentiles and iqrs are empty but
// present. The input is not modified.
func (a *Aggregator) ComputeStats(values []float64) model.BasicStats {
	if len(values) == 0 {
		return model.BasicStats{
			Kind: model.StatsNumeric,
			NumericStats: &model.NumericStats{
				Distribution: []model.DistributionBucket{},
				Percentiles:  map[string]float64{},
				IQRs:         map[string]float64{},
			},
		}
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	lo, hi := sorted[0], sorted[len(sorted)-1]
	hist := distribution(sorted)

	return model.BasicStats{
		Count: len(sorted),
		Kind:  model.StatsNumeric,
		NumericStats: &model.NumericStats{
			Sum:          Round(floats.Sum(sorted)),
			Mean:         Round(stat.Mean(sorted, nil)),
			Min:          Round(lo),
			Max:          Round(hi),
			Range:        Round(hi - lo),
			Distribution: hist.Buckets,
			Percentiles:  percentiles(sorted, a.cfg.Percentiles),
			IQRs:         iqrs(sorted, a.cfg.Percentiles, a.cfg.IQRs),
			BinSize:      Round(hist.BinSize),
		},
	}
}
