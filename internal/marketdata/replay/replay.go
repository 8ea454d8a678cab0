// Package replay re-emits stored bars at a configurable speed, for backtests
// and for rebuilding indicator values from history.
package replay

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"indstream/internal/model"
)

// maxGap caps the simulated wait between two bars.
const maxGap = 5 * time.Second

// Replayer reads stored bars and replays them in timestamp order.
type Replayer struct {
	reader model.BarReader
	sleep  func(ctx context.Context, d time.Duration) error
	log    *slog.Logger
}

// New creates a Replayer backed by reader.
func New(reader model.BarReader) *Replayer {
	return &Replayer{reader: reader, sleep: sleepCtx, log: slog.With("component", "replay")}
}

// Run replays the bars of symbols (all stored symbols when empty) with TS
// after `from` into out and returns how many were sent. speed controls the
// playback rate: 1.0 = real time, 10.0 = 10x, 0 = as fast as possible.
// Bars of different symbols are interleaved by timestamp; ties keep the
// symbol order.
func (r *Replayer) Run(ctx context.Context, symbols []string, from time.Time, speed float64, out chan<- model.Bar) (int, error) {
	if len(symbols) == 0 {
		var err error
		if symbols, err = r.reader.Symbols(ctx); err != nil {
			return 0, err
		}
	}

	var bars []model.Bar
	for _, s := range symbols {
		bs, err := r.reader.ReadBars(ctx, s, from)
		if err != nil {
			return 0, err
		}
		bars = append(bars, bs...)
	}
	if len(bars) == 0 {
		r.log.Info("no bars found", "symbols", symbols)
		return 0, nil
	}
	slices.SortStableFunc(bars, func(a, b model.Bar) int { return a.TS.Compare(b.TS) })
	r.log.Info("replaying", "bars", len(bars), "symbols", len(symbols), "speed", speed)

	var prevTS time.Time
	emitted := 0
	for _, b := range bars {
		if speed > 0 && !prevTS.IsZero() {
			if gap := b.TS.Sub(prevTS); gap > 0 {
				if err := r.sleep(ctx, min(time.Duration(float64(gap)/speed), maxGap)); err != nil {
					return emitted, err
				}
			}
		}
		prevTS = b.TS

		b.Forming = false
		select {
		case out <- b:
			emitted++
		case <-ctx.Done():
			r.log.Info("cancelled", "emitted", emitted)
			return emitted, ctx.Err()
		}
	}
	r.log.Info("completed", "emitted", emitted)
	return emitted, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
