package ringbuf

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indstream/internal/model"
)

func TestNewWindow_RejectsZeroCapacity(t *testing.T) {
	for _, c := range []int{0, -3} {
		_, err := NewWindow(c)
		require.Error(t, err)
		assert.True(t, errors.Is(err, model.ErrConfig))
	}
}

func TestWindow_NotPaddedBeforeFull(t *testing.T) {
	w, err := NewWindow(3)
	require.NoError(t, err)

	assert.Empty(t, w.Values())
	assert.False(t, w.Full())

	w.Push(1)
	w.Push(2)
	assert.Equal(t, []float64{1, 2}, w.Values())
	assert.False(t, w.Full())
	assert.Equal(t, 2, w.Len())
}

func TestWindow_EvictsOldestFirst(t *testing.T) {
	w, err := NewWindow(3)
	require.NoError(t, err)

	for _, v := range []float64{1, 2, 3} {
		_, ok := w.Push(v)
		assert.False(t, ok)
	}
	assert.True(t, w.Full())

	evicted, ok := w.Push(4)
	assert.True(t, ok)
	assert.Equal(t, 1.0, evicted)

	evicted, ok = w.Push(5)
	assert.True(t, ok)
	assert.Equal(t, 2.0, evicted)

	assert.Equal(t, []float64{3, 4, 5}, w.Values())
	assert.Equal(t, 3.0, w.Oldest())
	assert.Equal(t, 5.0, w.Newest())
	assert.Equal(t, 4.0, w.At(1))
}

func TestWindow_CapacityOne(t *testing.T) {
	w, err := NewWindow(1)
	require.NoError(t, err)

	w.Push(7)
	evicted, ok := w.Push(8)
	assert.True(t, ok)
	assert.Equal(t, 7.0, evicted)
	assert.Equal(t, []float64{8}, w.Values())
}

func TestWindow_CloneIsIndependent(t *testing.T) {
	w, _ := NewWindow(2)
	w.Push(1)
	c := w.Clone()
	c.Push(2)
	c.Push(3)

	assert.Equal(t, []float64{1}, w.Values())
	assert.Equal(t, []float64{2, 3}, c.Values())
}

func TestWindow_Each(t *testing.T) {
	w, _ := NewWindow(3)
	for _, v := range []float64{1, 2, 3, 4} {
		w.Push(v)
	}
	var got []float64
	w.Each(func(v float64) { got = append(got, v) })
	assert.Equal(t, []float64{2, 3, 4}, got)
}
