package tfbuilder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indstream/internal/model"
)

// base is aligned to the hour.
var base = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func minuteBar(symbol string, minute int, o, h, l, c, v float64) model.Bar {
	return model.Bar{
		Symbol: symbol,
		TS:     base.Add(time.Duration(minute) * time.Minute),
		Open:   o, High: h, Low: l, Close: c, Volume: v,
	}
}

type recorder struct{ bars []model.Bar }

func (r *recorder) emit(b model.Bar) { r.bars = append(r.bars, b) }

func (r *recorder) confirmed() []model.Bar {
	var out []model.Bar
	for _, b := range r.bars {
		if !b.Forming {
			out = append(out, b)
		}
	}
	return out
}

func TestBuilder_FiveMinuteResampling(t *testing.T) {
	b := New([]time.Duration{5 * time.Minute})
	rec := &recorder{}

	for i := 0; i < 5; i++ {
		f := float64(i)
		b.Process(minuteBar("BTC", i, 100+f, 110+f, 90+f, 105+f, 10), rec.emit)
	}
	require.Len(t, rec.bars, 5)
	assert.Empty(t, rec.confirmed(), "bucket still open")

	last := rec.bars[4]
	assert.True(t, last.Forming)
	assert.Equal(t, "BTC@5m", last.Symbol)
	assert.Equal(t, base, last.TS)
	assert.Equal(t, 100.0, last.Open)
	assert.Equal(t, 114.0, last.High)
	assert.Equal(t, 90.0, last.Low)
	assert.Equal(t, 109.0, last.Close)
	assert.Equal(t, 50.0, last.Volume)

	// first bar of the next bucket closes the previous one
	b.Process(minuteBar("BTC", 5, 200, 210, 190, 205, 1), rec.emit)
	done := rec.confirmed()
	require.Len(t, done, 1)
	assert.Equal(t, base, done[0].TS)
	assert.Equal(t, 109.0, done[0].Close)
	assert.Equal(t, 50.0, done[0].Volume)

	next := rec.bars[len(rec.bars)-1]
	assert.True(t, next.Forming)
	assert.Equal(t, base.Add(5*time.Minute), next.TS)
	assert.Equal(t, 200.0, next.Open)
}

func TestBuilder_MultipleTimeframesAndStreams(t *testing.T) {
	b := New([]time.Duration{2 * time.Minute, time.Hour})
	rec := &recorder{}

	for i := 0; i < 4; i++ {
		b.Process(minuteBar("BTC", i, 1, 2, 0.5, 1, 1), rec.emit)
		b.Process(minuteBar("ETH", i, 3, 4, 2.5, 3, 1), rec.emit)
	}

	var got []string
	for _, c := range rec.confirmed() {
		got = append(got, c.Symbol+" "+c.TS.Format("15:04"))
	}
	assert.Equal(t, []string{"BTC@2m 10:00", "ETH@2m 10:00"}, got)
	assert.Len(t, rec.bars, 18) // 16 forming snapshots + 2 finalized
}

func TestBuilder_GapsSkipEmptyBuckets(t *testing.T) {
	b := New([]time.Duration{5 * time.Minute})
	rec := &recorder{}

	b.Process(minuteBar("BTC", 1, 1, 1, 1, 1, 1), rec.emit)
	b.Process(minuteBar("BTC", 17, 2, 2, 2, 2, 1), rec.emit)

	done := rec.confirmed()
	require.Len(t, done, 1)
	assert.Equal(t, base, done[0].TS)
	assert.Equal(t, base.Add(15*time.Minute), rec.bars[len(rec.bars)-1].TS)
}

func TestBuilder_RejectsBarsForEmittedBuckets(t *testing.T) {
	b := New([]time.Duration{5 * time.Minute})
	var stale []string
	b.OnStale = func(stream string, tf time.Duration) { stale = append(stale, StreamKey(stream, tf)) }
	rec := &recorder{}

	b.Process(minuteBar("BTC", 6, 1, 1, 1, 1, 1), rec.emit)
	b.Process(minuteBar("BTC", 2, 9, 9, 9, 9, 1), rec.emit)

	assert.Equal(t, []string{"BTC@5m"}, stale)
	assert.Len(t, rec.bars, 1)
}

func TestBuilder_IgnoresFormingInput(t *testing.T) {
	b := New([]time.Duration{5 * time.Minute})
	rec := &recorder{}
	bar := minuteBar("BTC", 0, 1, 1, 1, 1, 1)
	bar.Forming = true
	b.Process(bar, rec.emit)
	assert.Empty(t, rec.bars)
}

func TestLabel(t *testing.T) {
	tests := []struct {
		tf   time.Duration
		want string
	}{
		{90 * time.Second, "90s"},
		{5 * time.Minute, "5m"},
		{90 * time.Minute, "90m"},
		{4 * time.Hour, "4h"},
		{24 * time.Hour, "24h"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Label(tt.tf))
	}
	assert.True(t, IsResampled(StreamKey("BTC", time.Minute)))
	assert.False(t, IsResampled("BTC"))
}
