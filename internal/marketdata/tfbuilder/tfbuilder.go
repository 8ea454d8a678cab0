// Package tfbuilder provides an incremental timeframe resampler.
// It consumes confirmed bars and maintains "forming" bars for every
// configured timeframe, updated in O(1) per bar per timeframe. When a bar
// arrives in a new bucket, the previous bucket is finalized and emitted.
package tfbuilder

import (
	"strconv"
	"strings"
	"time"

	"indstream/internal/model"
)

// tfState holds the forming bar for one (stream, timeframe) pair.
type tfState struct {
	bucket int64 // bucket start, Unix seconds
	bar    model.Bar
}

// Builder resamples confirmed bars into multiple timeframes.
// Designed for single-goroutine usage, no locks needed.
type Builder struct {
	tfs []time.Duration

	// Per-timeframe per-stream state: states[tfIdx][stream]
	states []map[string]*tfState

	// OnStale is called when a bar belongs to a bucket that was already
	// emitted (optional).
	OnStale func(stream string, tf time.Duration)
}

// New creates a builder for the given timeframes. Timeframes are aligned to
// the Unix epoch and must be whole seconds.
func New(tfs []time.Duration) *Builder {
	states := make([]map[string]*tfState, len(tfs))
	for i := range states {
		states[i] = make(map[string]*tfState, 64)
	}
	return &Builder{tfs: append([]time.Duration(nil), tfs...), states: states}
}

// TFs returns the configured timeframes.
func (b *Builder) TFs() []time.Duration { return append([]time.Duration(nil), b.tfs...) }

// Process folds a confirmed bar into every timeframe. For each timeframe,
// emit receives the finalized bar of a bucket the input closed (if any),
// followed by a forming snapshot of the current bucket. Forming inputs are
// ignored.
func (b *Builder) Process(bar model.Bar, emit func(model.Bar)) {
	if bar.Forming {
		return
	}
	ts := bar.TS.Unix()
	key := bar.Key()

	for i, tf := range b.tfs {
		secs := int64(tf / time.Second)
		bucket := ts - mod(ts, secs)

		st, exists := b.states[i][key]
		if exists && bucket < st.bucket {
			if b.OnStale != nil {
				b.OnStale(key, tf)
			}
			continue
		}

		if exists && bucket > st.bucket {
			done := st.bar
			done.Forming = false
			emit(done)
			exists = false
		}

		if !exists {
			st = &tfState{
				bucket: bucket,
				bar: model.Bar{
					Symbol:  StreamKey(key, tf),
					TS:      time.Unix(bucket, 0).UTC(),
					Open:    bar.Open,
					High:    bar.High,
					Low:     bar.Low,
					Close:   bar.Close,
					Volume:  bar.Volume,
					Forming: true,
				},
			}
			b.states[i][key] = st
			emit(st.bar)
			continue
		}

		// Same bucket: merge OHLCV
		fb := &st.bar
		if bar.High > fb.High {
			fb.High = bar.High
		}
		if bar.Low < fb.Low {
			fb.Low = bar.Low
		}
		fb.Close = bar.Close
		fb.Volume += bar.Volume
		emit(*fb)
	}
}

// StreamKey names the resampled stream of symbol for tf, e.g. "BTCUSDT@5m".
func StreamKey(symbol string, tf time.Duration) string {
	return symbol + "@" + Label(tf)
}

// IsResampled reports whether stream was produced by a Builder.
func IsResampled(stream string) bool {
	return strings.Contains(stream, "@")
}

// Label renders tf in its largest whole unit: 90s, 5m, 4h.
func Label(tf time.Duration) string {
	switch {
	case tf%time.Hour == 0:
		return strconv.FormatInt(int64(tf/time.Hour), 10) + "h"
	case tf%time.Minute == 0:
		return strconv.FormatInt(int64(tf/time.Minute), 10) + "m"
	default:
		return strconv.FormatInt(int64(tf/time.Second), 10) + "s"
	}
}

// mod is a floor modulo so pre-1970 timestamps align like later ones.
func mod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
