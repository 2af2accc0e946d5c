package stats

import (
	"math"
	"slices"

	"github.com/ashita-ai/hakari/internal/model"
)

// Histogram is a bucketed numeric distribution. BinSize is the width every
// bucket was cut with; NumericStats.BinSize reports the same value.
type Histogram struct {
	Buckets []model.DistributionBucket `json:"buckets"`
	BinSize float64                    `json:"bin_size"`
}

// histogramShape derives the bin count and width of a sorted, non-empty
// sample. bins = ceil(sqrt(n)); the width falls back to 1 when the sample
// has no spread. A spread that overflows float64 is divided term by term,
// which keeps the width finite for any two finite bounds.
func histogramShape(sorted []float64) (bins int, binSize float64) {
	bins = int(math.Ceil(math.Sqrt(float64(len(sorted)))))
	lo, hi := sorted[0], sorted[len(sorted)-1]
	spread := hi - lo
	switch {
	case bins == 0 || spread == 0:
		return bins, 1
	case math.IsInf(spread, 0):
		return bins, hi/float64(bins) - lo/float64(bins)
	}
	return bins, spread / float64(bins)
}

// binIndex places v relative to lo. The offset is rescaled before the
// subtraction when v-lo itself overflows.
func binIndex(v, lo, binSize float64, bins int) int {
	offset := (v - lo) / binSize
	if math.IsInf(offset, 0) {
		offset = v/binSize - lo/binSize
	}
	return max(0, min(bins-1, int(math.Floor(offset))))
}

// ComputeDistribution buckets values into a histogram. The input is not
// modified.
func ComputeDistribution(values []float64) Histogram {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return distribution(sorted)
}

// distribution expects sorted input.
//
// Buckets are seeded for every bin index so the sequence is contiguous
// even where a bin holds no value. Bucket starts are rounded to
// max(0, -floor(log10(binSize))) decimals and then through Round, whose
// six decimal budget can fold neighbouring starts together when binSize is
// below 1e-6. Starts that collide share one bucket.
func distribution(sorted []float64) Histogram {
	n := len(sorted)
	if n == 0 {
		return Histogram{Buckets: []model.DistributionBucket{}}
	}
	bins, binSize := histogramShape(sorted)
	lo, hi := sorted[0], sorted[n-1]
	if lo == hi {
		return Histogram{
			Buckets: []model.DistributionBucket{{Value: Round(lo), Count: n}},
			BinSize: binSize,
		}
	}

	places := max(0, -int(math.Floor(math.Log10(binSize))))
	starts := make([]float64, bins)
	for i := range starts {
		starts[i] = Round(roundFixed(lo+float64(i)*binSize, places))
	}

	counts := make([]int, bins)
	for _, v := range sorted {
		counts[binIndex(v, lo, binSize, bins)]++
	}

	buckets := make([]model.DistributionBucket, 0, bins)
	for i, start := range starts {
		if last := len(buckets) - 1; last >= 0 && buckets[last].Value == start {
			buckets[last].Count += counts[i]
			continue
		}
		buckets = append(buckets, model.DistributionBucket{Value: start, Count: counts[i]})
	}
	return Histogram{Buckets: buckets, BinSize: Round(binSize)}
}
