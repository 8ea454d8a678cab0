package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"indstream/internal/model"
)

const (
	defaultStreamMaxLen  = 10000
	defaultLatestTTL     = 30 * time.Minute
	defaultCheckpointTTL = 24 * time.Hour

	// CheckpointKey holds the newest engine checkpoint.
	CheckpointKey = "indstream:checkpoint"
)

// WriterConfig configures the Redis writer.
type WriterConfig struct {
	Config
	StreamMaxLen int64 // approximate MAXLEN of every XADD; 0 = default
}

// Writer publishes bars and indicator values to Redis.
//
// Confirmed values go to the stream ind:{name}:{stream} (XADD), the latest
// key (SET with TTL) and pub:ind:{name}:{stream} (PUBLISH). Live values
// computed from forming bars are only PUBLISHed.
type Writer struct {
	client *goredis.Client
	maxLen int64
	log    *slog.Logger
}

// Client returns the underlying Redis client for health checks.
func (w *Writer) Client() *goredis.Client { return w.client }

// New creates a Writer and pings the server.
func New(cfg WriterConfig) (*Writer, error) {
	client, err := connect(cfg.Config)
	if err != nil {
		return nil, err
	}
	l := slog.With("component", "redis")
	l.Info("connected", "addr", cfg.Addr)
	return newWriter(client, cfg.StreamMaxLen, l), nil
}

func newWriter(client *goredis.Client, maxLen int64, l *slog.Logger) *Writer {
	if maxLen <= 0 {
		maxLen = defaultStreamMaxLen
	}
	return &Writer{client: client, maxLen: maxLen, log: l}
}

// WriteFrames writes every record of frames in a single pipeline.
// Confirmed records still warming up are skipped.
func (w *Writer) WriteFrames(ctx context.Context, frames []model.Frame) error {
	pipe := w.client.Pipeline()
	queued := 0
	for i := range frames {
		for _, rec := range frames[i].Records() {
			if !rec.Live && !rec.Ready {
				continue
			}
			data := string(rec.JSON())
			queued++
			if rec.Live {
				pipe.Publish(ctx, rec.PubSubChannel(), data)
				continue
			}
			pipe.XAdd(ctx, &goredis.XAddArgs{
				Stream: rec.StreamKey(),
				MaxLen: w.maxLen,
				Approx: true,
				Values: map[string]interface{}{"data": data},
			})
			pipe.Set(ctx, rec.LatestKey(), data, defaultLatestTTL)
			pipe.Publish(ctx, rec.PubSubChannel(), data)
		}
	}
	if queued == 0 {
		return nil
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis frame pipeline (%d records): %w", queued, err)
	}
	return nil
}

// WriteBars appends closed bars to their bar:{symbol} streams, the input
// the Reader consumes.
func (w *Writer) WriteBars(ctx context.Context, bars []model.Bar) error {
	pipe := w.client.Pipeline()
	queued := 0
	for i := range bars {
		b := &bars[i]
		if b.Forming {
			continue
		}
		queued++
		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: model.BarStreamKey(b.Key()),
			MaxLen: w.maxLen,
			Approx: true,
			Values: map[string]interface{}{"data": string(b.JSON())},
		})
	}
	if queued == 0 {
		return nil
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis bar pipeline (%d bars): %w", queued, err)
	}
	return nil
}

// Run reads frames from frameCh and writes them one by one, logging errors.
// Blocks until ctx is cancelled or frameCh is closed.
func (w *Writer) Run(ctx context.Context, frameCh <-chan model.Frame) {
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-frameCh:
			if !ok {
				return
			}
			if err := w.WriteFrames(ctx, []model.Frame{f}); err != nil {
				w.log.Error("write frame failed", "stream", f.Stream, "seq", f.Seq, "error", err)
			}
		}
	}
}

// SaveCheckpointJSON stores the checkpoint under CheckpointKey. SQLite keeps
// the durable history; the Redis copy expires.
func (w *Writer) SaveCheckpointJSON(ctx context.Context, data []byte) error {
	if err := w.client.Set(ctx, CheckpointKey, string(data), defaultCheckpointTTL).Err(); err != nil {
		return fmt.Errorf("redis set checkpoint: %w", err)
	}
	return nil
}

// ReadLatestCheckpointJSON returns the stored checkpoint, or nil, nil.
func (w *Writer) ReadLatestCheckpointJSON(ctx context.Context) ([]byte, error) {
	return readCheckpoint(ctx, w.client)
}

func readCheckpoint(ctx context.Context, client *goredis.Client) ([]byte, error) {
	data, err := client.Get(ctx, CheckpointKey).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get checkpoint: %w", err)
	}
	return data, nil
}

// Close closes the Redis client.
func (w *Writer) Close() error {
	return w.client.Close()
}
