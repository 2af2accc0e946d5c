package stats

import "math"

// Percentile returns the p-th percentile (0..100) of an ascending slice by
// linear interpolation between the order statistics around the fractional
// index (p/100)*(n-1). It does not sort; callers sort once and query many
// stops. An empty slice yields 0 and p is clamped into [0, 100].
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	p = max(0, min(100, p))
	if math.IsNaN(p) {
		p = 0
	}

	idx := (p / 100) * float64(n-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if hi >= n {
		hi = n - 1
	}
	if lo == hi {
		return sorted[lo]
	}

	frac := idx - float64(lo)
	v := sorted[lo] + (sorted[hi]-sorted[lo])*frac
	// Keep the interpolated value inside its interval despite float error
	// so results stay monotone in p.
	return max(sorted[lo], min(sorted[hi], v))
}

// percentiles evaluates every configured stop over sorted, rounded.
func percentiles(sorted []float64, stops []PercentileStop) map[string]float64 {
	out := make(map[string]float64, len(stops))
	if len(sorted) == 0 {
		return out
	}
	for _, s := range stops {
		out[s.Name] = Round(Percentile(sorted, s.P))
	}
	return out
}

// iqrs derives each configured range from unrounded percentiles so the
// difference is rounded once.
func iqrs(sorted []float64, stops []PercentileStop, levels []IQRLevel) map[string]float64 {
	out := make(map[string]float64, len(levels))
	if len(sorted) == 0 {
		return out
	}
	byName := make(map[string]float64, len(stops))
	for _, s := range stops {
		byName[s.Name] = s.P
	}
	for _, l := range levels {
		lo, okLo := byName[l.Low]
		hi, okHi := byName[l.High]
		if !okLo || !okHi {
			continue
		}
		out[l.Name] = Round(Percentile(sorted, hi) - Percentile(sorted, lo))
	}
	return out
}
