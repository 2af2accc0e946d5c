package stats_test

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ashita-ai/hakari/internal/stats"
)

func TestRound(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"fixed places", 0.1234567, 0.123457},
		{"half away from zero", 1.0000005, 1.000001},
		{"negative half away from zero", -1.0000005, -1.000001},
		{"integer untouched", 42, 42},
		{"small keeps significant digits", 0.000123456789, 0.000123457},
		{"small negative", -0.0000123456789, -0.0000123457},
		{"tiny exact", 2.5e-10, 2.5e-10},
		{"threshold uses fixed places", 0.0010000004, 0.001},
		{"zero", 0, 0},
		{"large", 123456789.123456789, 123456789.123457},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stats.Round(tt.in))
		})
	}
}

func TestRound_NonFinitePassThrough(t *testing.T) {
	assert.True(t, math.IsNaN(stats.Round(math.NaN())))
	assert.True(t, math.IsInf(stats.Round(math.Inf(1)), 1))
	assert.True(t, math.IsInf(stats.Round(math.Inf(-1)), -1))
}

func TestRoundTo_CustomBudget(t *testing.T) {
	assert.Equal(t, 3.14, stats.RoundTo(3.14159, 2, 6))
	assert.Equal(t, 0.00012, stats.RoundTo(0.000123456, 6, 2))
}

func TestRound_Idempotent(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for range 5000 {
		exp := rng.IntN(24) - 12
		x := (rng.Float64()*2 - 1) * math.Pow(10, float64(exp))
		once := stats.Round(x)
		assert.Equal(t, once, stats.Round(once), "x=%v", x)
	}
}
