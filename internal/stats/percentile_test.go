package stats_test

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/hakari/internal/stats"
)

func TestPercentile(t *testing.T) {
	s := []float64{10, 20, 30, 40}
	assert.Equal(t, 0.0, stats.Percentile(nil, 50))
	assert.Equal(t, 10.0, stats.Percentile(s, 0))
	assert.Equal(t, 40.0, stats.Percentile(s, 100))
	assert.Equal(t, 25.0, stats.Percentile(s, 50))
	assert.InDelta(t, 13.0, stats.Percentile(s, 10), 1e-9)
	assert.Equal(t, 7.0, stats.Percentile([]float64{7}, 95))
}

func TestPercentile_ClampsP(t *testing.T) {
	s := []float64{1, 2, 3}
	assert.Equal(t, 1.0, stats.Percentile(s, -5))
	assert.Equal(t, 3.0, stats.Percentile(s, 250))
}

func TestPercentile_Properties(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for range 200 {
		n := 1 + rng.IntN(60)
		s := make([]float64, n)
		for i := range s {
			s[i] = rng.NormFloat64() * 1000
		}
		slices.Sort(s)

		require.Equal(t, s[0], stats.Percentile(s, 0))
		require.Equal(t, s[n-1], stats.Percentile(s, 100))

		prev := stats.Percentile(s, 0)
		for p := 0.5; p <= 100; p += 0.5 {
			cur := stats.Percentile(s, p)
			require.LessOrEqual(t, prev, cur, "p=%v n=%d", p, n)
			prev = cur
		}
	}
}
