// Package stats turns raw per-entity metric values into statistical
// summaries: percentiles, inter-quartile ranges, histograms and frequency
// tables. Everything here is pure: no I/O, no logging and no shared mutable
// state, so an Aggregator may be used from any number of goroutines.
package stats

import (
	"math"

	"github.com/shopspring/decimal"
)

const (
	// DefaultDecimalPlaces is the fixed-point budget for emitted statistics.
	DefaultDecimalPlaces = 6
	// DefaultSignificantDigits applies to non-zero magnitudes below
	// SmallMagnitude.
	DefaultSignificantDigits = 6
	// SmallMagnitude is the threshold under which values are rounded to
	// significant digits instead of decimal places.
	SmallMagnitude = 0.001
)

// Round applies the default rounding rule used for every emitted statistic.
func Round(v float64) float64 {
	return RoundTo(v, DefaultDecimalPlaces, DefaultSignificantDigits)
}

// RoundTo rounds v half away from zero. Non-zero values with |v| below
// SmallMagnitude keep sigDigits significant digits; everything else keeps
// places decimal places. NaN and infinities are returned unchanged.
func RoundTo(v float64, places, sigDigits int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	if v == 0 {
		return 0
	}
	d := decimal.NewFromFloat(v)
	if math.Abs(v) < SmallMagnitude {
		// Order of magnitude of the leading digit: d = coef * 10^exp.
		magnitude := d.NumDigits() + int(d.Exponent()) - 1
		places = sigDigits - 1 - magnitude
	}
	return d.Round(int32(places)).InexactFloat64()
}

// roundFixed rounds v to exactly places decimal places regardless of its
// magnitude.
func roundFixed(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(int32(places)).InexactFloat64()
}
