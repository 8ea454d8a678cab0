package recurrence

import (
	"testing"

	"github.com/markcheno/go-talib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indstream/internal/model"
)

func TestExp_AlphaBounds(t *testing.T) {
	for _, a := range []float64{0, -0.1, 1.0001} {
		_, err := NewEWMA(a)
		assert.ErrorIs(t, err, model.ErrConfig, "alpha=%v", a)
	}
	_, err := NewEWMA(1)
	assert.NoError(t, err)

	_, err = NewEMA(0)
	assert.ErrorIs(t, err, model.ErrConfig)
	_, err = NewWilder(-1)
	assert.ErrorIs(t, err, model.ErrConfig)
}

func TestEWMA_SeedsWithFirstInput(t *testing.T) {
	e, _ := NewEWMA(0.5)
	v, ok := e.Update(10)
	require.True(t, ok)
	assert.Equal(t, 10.0, v)

	v, _ = e.Update(20)
	assert.Equal(t, 15.0, v)
}

func TestEMA_MatchesTalib(t *testing.T) {
	in := series(300)
	for _, n := range []int{3, 12, 26} {
		want := talib.Ema(in, n)
		e, _ := NewEMA(n)
		for i, x := range in {
			v, ok := e.Update(x)
			if i < n-1 {
				assert.False(t, ok)
				continue
			}
			require.True(t, ok)
			assert.InDelta(t, want[i], v, 1e-9, "n=%d i=%d", n, i)
		}
	}
}

func TestWilder_Recurrence(t *testing.T) {
	w, _ := NewWilder(4)
	for _, x := range []float64{1, 2, 3} {
		_, ok := w.Update(x)
		assert.False(t, ok)
	}
	v, ok := w.Update(4)
	require.True(t, ok)
	assert.Equal(t, 2.5, v)

	v, _ = w.Update(6.5)
	assert.InDelta(t, (2.5*3+6.5)/4, v, 1e-12)
}

func TestExp_PeekDoesNotMutate(t *testing.T) {
	e, _ := NewEWMA(0.25)
	e.Update(8)
	p, _ := e.Peek(16)
	v, _ := e.Value()
	assert.Equal(t, 10.0, p)
	assert.Equal(t, 8.0, v)
}
