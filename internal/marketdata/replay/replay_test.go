package replay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indstream/internal/model"
)

var t0 = time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)

type memReader struct {
	bars map[string][]model.Bar
	err  error
}

func (m *memReader) ReadBars(_ context.Context, symbol string, after time.Time) ([]model.Bar, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []model.Bar
	for _, b := range m.bars[symbol] {
		if b.TS.After(after) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memReader) Symbols(context.Context) ([]string, error) { return []string{"A", "B"}, nil }
func (m *memReader) Close() error                              { return nil }

func at(symbol string, minute int) model.Bar {
	return model.Bar{Symbol: symbol, TS: t0.Add(time.Duration(minute) * time.Minute), Close: float64(minute)}
}

func newReader() *memReader {
	return &memReader{bars: map[string][]model.Bar{
		"A": {at("A", 0), at("A", 2), at("A", 4)},
		"B": {at("B", 1), at("B", 2)},
	}}
}

func drain(ch chan model.Bar) []string {
	close(ch)
	var out []string
	for b := range ch {
		out = append(out, b.Symbol+b.TS.Format("04"))
	}
	return out
}

func TestReplayer_InterleavesByTimestamp(t *testing.T) {
	r := New(newReader())
	out := make(chan model.Bar, 10)
	n, err := r.Run(context.Background(), nil, time.Time{}, 0, out)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []string{"A00", "B01", "A02", "B02", "A04"}, drain(out))
}

func TestReplayer_FromAndSymbols(t *testing.T) {
	r := New(newReader())
	out := make(chan model.Bar, 10)
	n, err := r.Run(context.Background(), []string{"A"}, t0.Add(time.Minute), 0, out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"A02", "A04"}, drain(out))
}

func TestReplayer_ScalesGaps(t *testing.T) {
	r := New(newReader())
	var slept []time.Duration
	r.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	out := make(chan model.Bar, 10)
	_, err := r.Run(context.Background(), []string{"A"}, time.Time{}, 60, out)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, slept)

	slept = nil
	_, err = r.Run(context.Background(), []string{"A"}, time.Time{}, 1, make(chan model.Bar, 10))
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{maxGap, maxGap}, slept)
}

func TestReplayer_ClearsForming(t *testing.T) {
	rd := &memReader{bars: map[string][]model.Bar{"A": {{Symbol: "A", TS: t0, Forming: true}}}}
	out := make(chan model.Bar, 1)
	_, err := New(rd).Run(context.Background(), []string{"A"}, time.Time{}, 0, out)
	require.NoError(t, err)
	assert.False(t, (<-out).Forming)
}

func TestReplayer_Errors(t *testing.T) {
	boom := errors.New("boom")
	_, err := New(&memReader{err: boom}).Run(context.Background(), []string{"A"}, time.Time{}, 0, make(chan model.Bar))
	assert.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n, err := New(newReader()).Run(ctx, nil, time.Time{}, 0, make(chan model.Bar))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
}
