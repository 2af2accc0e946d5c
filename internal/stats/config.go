package stats

import (
	"errors"
	"fmt"
)

// DefaultRankLimit is the number of entries kept in a discrete rank.
const DefaultRankLimit = 10

// PercentileStop is one named percentile to report, e.g. {"p50", 50}.
type PercentileStop struct {
	Name string
	P    float64
}

// IQRLevel names the difference between two percentile stops.
type IQRLevel struct {
	Name string
	Low  string
	High string
}

// Config controls which percentiles and ranges are reported and how many
// entries a rank keeps.
type Config struct {
	Percentiles []PercentileStop
	IQRs        []IQRLevel
	RankLimit   int
}

// DefaultConfig reports p5 through p95 and the 50/80/90 percent ranges.
func DefaultConfig() Config {
	return Config{
		Percentiles: []PercentileStop{
			{Name: "p5", P: 5},
			{Name: "p10", P: 10},
			{Name: "p25", P: 25},
			{Name: "p50", P: 50},
			{Name: "p75", P: 75},
			{Name: "p90", P: 90},
			{Name: "p95", P: 95},
		},
		IQRs: []IQRLevel{
			{Name: "iqr50", Low: "p25", High: "p75"},
			{Name: "iqr80", Low: "p10", High: "p90"},
			{Name: "iqr90", Low: "p5", High: "p95"},
		},
		RankLimit: DefaultRankLimit,
	}
}

// Validate checks that stops are unique and in range and that every IQR
// level references configured stops.
func (c Config) Validate() error {
	var errs []error
	names := make(map[string]struct{}, len(c.Percentiles))
	for _, s := range c.Percentiles {
		if s.Name == "" {
			errs = append(errs, errors.New("stats: percentile stop name must not be empty"))
		}
		if _, dup := names[s.Name]; dup {
			errs = append(errs, fmt.Errorf("stats: duplicate percentile stop %q", s.Name))
		}
		names[s.Name] = struct{}{}
		if !(s.P >= 0 && s.P <= 100) {
			errs = append(errs, fmt.Errorf("stats: percentile stop %q must be within [0, 100], got %v", s.Name, s.P))
		}
	}
	for _, l := range c.IQRs {
		if l.Name == "" {
			errs = append(errs, errors.New("stats: iqr level name must not be empty"))
		}
		if _, ok := names[l.Low]; !ok {
			errs = append(errs, fmt.Errorf("stats: iqr level %q references unknown stop %q", l.Name, l.Low))
		}
		if _, ok := names[l.High]; !ok {
			errs = append(errs, fmt.Errorf("stats: iqr level %q references unknown stop %q", l.Name, l.High))
		}
	}
	if c.RankLimit < 1 {
		errs = append(errs, fmt.Errorf("stats: rank limit must be positive, got %d", c.RankLimit))
	}
	return errors.Join(errs...)
}
