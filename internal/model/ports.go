package model

import (
	"context"
	"time"
)

// ── Storage Port Interfaces ──
// These decouple the engine service from concrete stores (Redis, SQLite,
// fixture files). Each implementation satisfies one or more of them.

// BarWriter persists bars so a stream can be replayed deterministically.
type BarWriter interface {
	WriteBars(ctx context.Context, bars []Bar) error
	Close() error
}

// BarReader reads stored bars in timestamp order for replay and restore.
type BarReader interface {
	// ReadBars returns bars of symbol with TS strictly after `after`
	// (zero time = from the beginning), oldest first.
	ReadBars(ctx context.Context, symbol string, after time.Time) ([]Bar, error)

	// Symbols lists the streams that have stored bars.
	Symbols(ctx context.Context) ([]string, error)

	Close() error
}

// FrameWriter is a sink for per-bar indicator frames.
type FrameWriter interface {
	WriteFrames(ctx context.Context, frames []Frame) error
	Close() error
}

// CheckpointStore reads and writes engine checkpoints as raw JSON.
// Using []byte avoids a model→indicator import cycle.
type CheckpointStore interface {
	SaveCheckpointJSON(ctx context.Context, data []byte) error

	// ReadLatestCheckpointJSON returns nil, nil if no checkpoint exists.
	ReadLatestCheckpointJSON(ctx context.Context) ([]byte, error)
}

// BarConsumer consumes live bars from a stream transport.
type BarConsumer interface {
	// ConsumeBars blocks until ctx is cancelled, sending bars to out.
	ConsumeBars(ctx context.Context, symbols []string, out chan<- Bar) error
	Close() error
}
