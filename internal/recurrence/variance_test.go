package recurrence

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"indstream/internal/model"
)

func popVariance(x []float64) float64 {
	n := float64(len(x))
	if n < 2 {
		return 0
	}
	return stat.Variance(x, nil) * (n - 1) / n
}

func TestVariance_Constructor(t *testing.T) {
	_, err := NewVariance(-1)
	assert.ErrorIs(t, err, model.ErrConfig)
}

func TestVariance_MatchesGonum(t *testing.T) {
	in := series(500)
	for _, n := range []int{2, 5, 20, 100} {
		v, _ := NewVariance(n)
		for i, x := range in {
			got, ok := v.Update(x)
			if i < n-1 {
				assert.False(t, ok)
				continue
			}
			require.True(t, ok)
			win := in[i-n+1 : i+1]
			assert.InDelta(t, popVariance(win), got, 1e-7, "n=%d i=%d", n, i)
			assert.InDelta(t, stat.Mean(win, nil), v.Mean(), 1e-9)
		}
	}
}

func TestVariance_FlatSeriesIsZero(t *testing.T) {
	v, _ := NewVariance(5)
	for i := 0; i < 12; i++ {
		v.Update(100)
	}
	sd, ok := v.Stdev()
	require.True(t, ok)
	assert.Equal(t, 0.0, sd)
	assert.False(t, math.IsNaN(sd))
}

func TestVariance_LargeOffsetIsStable(t *testing.T) {
	v, _ := NewVariance(4)
	base := 1e9
	for _, d := range []float64{4, 7, 13, 16, 4, 7, 13, 16} {
		v.Update(base + d)
	}
	got, _ := v.Variance()
	assert.InDelta(t, 22.5, got, 1e-4)
}

func TestVariance_RecoversAfterRegimeChange(t *testing.T) {
	v, _ := NewVariance(14)
	for i := 0; i < 14; i++ {
		v.Update(1e9 + 0.3*float64(i))
	}
	var got float64
	for i := 0; i < 14; i++ {
		got, _ = v.Update(1.5)
	}
	assert.Equal(t, 0.0, got)
	assert.Equal(t, 1.5, v.Mean())
}
