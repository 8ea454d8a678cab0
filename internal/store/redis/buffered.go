package redis

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"indstream/internal/model"
)

const defaultMaxBuffered = 10000

// BufferedWriter guards a frame sink with a Breaker. While the breaker is
// open, confirmed frames are held in memory (oldest dropped beyond the
// limit) and written once a later call succeeds. Live frames are not
// buffered; they are stale by the time the sink recovers.
type BufferedWriter struct {
	sink model.FrameWriter
	cb   *Breaker
	max  int
	log  *slog.Logger

	mu      sync.Mutex
	pending []model.Frame

	OnBuffer func(n int) // frames added to the buffer
	OnDrop   func(n int) // frames discarded (buffer full or live)
	OnFlush  func(n int) // buffered frames written after recovery
}

// NewBufferedWriter wraps sink. maxBuffered <= 0 selects the default.
func NewBufferedWriter(sink model.FrameWriter, cb *Breaker, maxBuffered int) *BufferedWriter {
	if maxBuffered <= 0 {
		maxBuffered = defaultMaxBuffered
	}
	return &BufferedWriter{
		sink: sink,
		cb:   cb,
		max:  maxBuffered,
		log:  slog.With("component", "redis-buffer"),
	}
}

// WriteFrames writes frames through the breaker, first flushing anything
// buffered. Frames that cannot be written are buffered; the sink's error is
// still returned unless the breaker rejected the call.
func (bw *BufferedWriter) WriteFrames(ctx context.Context, frames []model.Frame) error {
	if err := bw.flush(ctx); err != nil {
		bw.buffer(frames)
		return nil
	}
	err := bw.cb.Do(func() error { return bw.sink.WriteFrames(ctx, frames) })
	if err == nil {
		return nil
	}
	bw.buffer(frames)
	if errors.Is(err, ErrCircuitOpen) {
		return nil
	}
	return err
}

func (bw *BufferedWriter) buffer(frames []model.Frame) {
	bw.mu.Lock()
	defer bw.mu.Unlock()

	added, dropped := 0, 0
	for _, f := range frames {
		if f.Live {
			dropped++
			continue
		}
		if len(bw.pending) >= bw.max {
			bw.pending = bw.pending[1:]
			dropped++
		}
		bw.pending = append(bw.pending, f)
		added++
	}
	if added > 0 && bw.OnBuffer != nil {
		bw.OnBuffer(added)
	}
	if dropped > 0 && bw.OnDrop != nil {
		bw.OnDrop(dropped)
	}
}

// flush writes the buffered frames through the breaker. On failure they
// stay buffered.
func (bw *BufferedWriter) flush(ctx context.Context) error {
	bw.mu.Lock()
	if len(bw.pending) == 0 {
		bw.mu.Unlock()
		return nil
	}
	batch := bw.pending
	bw.pending = nil
	bw.mu.Unlock()

	if err := bw.cb.Do(func() error { return bw.sink.WriteFrames(ctx, batch) }); err != nil {
		bw.mu.Lock()
		bw.pending = append(batch, bw.pending...)
		if over := len(bw.pending) - bw.max; over > 0 {
			bw.pending = bw.pending[over:]
			if bw.OnDrop != nil {
				bw.OnDrop(over)
			}
		}
		bw.mu.Unlock()
		return err
	}
	bw.log.Info("flushed buffered frames", "n", len(batch))
	if bw.OnFlush != nil {
		bw.OnFlush(len(batch))
	}
	return nil
}

// Pending returns the number of buffered frames.
func (bw *BufferedWriter) Pending() int {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return len(bw.pending)
}

// Close tries a last flush and closes the sink.
func (bw *BufferedWriter) Close() error {
	if err := bw.flush(context.Background()); err != nil {
		bw.log.Warn("frames lost on close", "n", bw.Pending(), "error", err)
	}
	return bw.sink.Close()
}
