package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"indstream/internal/model"
)

const (
	readCount  = 100
	readBlock  = 2 * time.Second
	replayPage = 1000
)

// ReaderConfig configures the Redis reader.
type ReaderConfig struct {
	Config
	ConsumerGroup string // consumer group name, e.g. "indstream"
	ConsumerName  string // unique consumer name within the group
}

// Reader consumes bars from bar:{symbol} streams through a consumer group.
type Reader struct {
	client   *goredis.Client
	group    string
	consumer string
	log      *slog.Logger
}

// NewReader creates a Reader and pings the server.
func NewReader(cfg ReaderConfig) (*Reader, error) {
	client, err := connect(cfg.Config)
	if err != nil {
		return nil, err
	}
	group := cfg.ConsumerGroup
	if group == "" {
		group = "indstream"
	}
	consumer := cfg.ConsumerName
	if consumer == "" {
		consumer = "worker-1"
	}
	l := slog.With("component", "redis-reader", "group", group, "consumer", consumer)
	l.Info("connected", "addr", cfg.Addr)
	return &Reader{client: client, group: group, consumer: consumer, log: l}, nil
}

// Client returns the underlying Redis client for health checks.
func (r *Reader) Client() *goredis.Client { return r.client }

// EnsureConsumerGroup creates the consumer group on each stream if missing.
// New groups start at "$" (only new messages).
func (r *Reader) EnsureConsumerGroup(ctx context.Context, streams []string) error {
	for _, stream := range streams {
		err := r.client.XGroupCreateMkStream(ctx, stream, r.group, "$").Err()
		if err != nil && !isBusyGroup(err) {
			return fmt.Errorf("xgroup create %s: %w", stream, err)
		}
	}
	return nil
}

// ConsumeBars reads closed bars of symbols via XREADGROUP and sends them to
// out, acknowledging each after hand-off. Pending messages from a previous
// run are delivered first. Blocks until ctx is cancelled.
func (r *Reader) ConsumeBars(ctx context.Context, symbols []string, out chan<- model.Bar) error {
	streams := make([]string, len(symbols))
	for i, s := range symbols {
		streams[i] = model.BarStreamKey(s)
	}
	if err := r.EnsureConsumerGroup(ctx, streams); err != nil {
		return err
	}
	if err := r.recoverPending(ctx, streams, out); err != nil {
		return err
	}

	// [stream1, stream2, ..., ">", ">", ...]
	args := make([]string, len(streams)*2)
	for i, s := range streams {
		args[i] = s
		args[len(streams)+i] = ">"
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		results, err := r.client.XReadGroup(ctx, &goredis.XReadGroupArgs{
			Group:    r.group,
			Consumer: r.consumer,
			Streams:  args,
			Count:    readCount,
			Block:    readBlock,
		}).Result()
		if err != nil {
			if err == goredis.Nil || ctx.Err() != nil {
				continue
			}
			r.log.Error("xreadgroup failed", "error", err)
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range results {
			if err := r.deliver(ctx, stream.Stream, stream.Messages, out); err != nil {
				return err
			}
		}
	}
}

// recoverPending claims and re-delivers messages this group never
// acknowledged, so bars survive a crash between read and ACK.
func (r *Reader) recoverPending(ctx context.Context, streams []string, out chan<- model.Bar) error {
	for _, stream := range streams {
		for {
			pending, err := r.client.XPendingExt(ctx, &goredis.XPendingExtArgs{
				Stream: stream,
				Group:  r.group,
				Start:  "-",
				End:    "+",
				Count:  readCount,
			}).Result()
			if err != nil || len(pending) == 0 {
				break
			}
			ids := make([]string, len(pending))
			for i, p := range pending {
				ids[i] = p.ID
			}
			claimed, err := r.client.XClaim(ctx, &goredis.XClaimArgs{
				Stream:   stream,
				Group:    r.group,
				Consumer: r.consumer,
				Messages: ids,
			}).Result()
			if err != nil {
				r.log.Error("xclaim failed", "stream", stream, "error", err)
				break
			}
			if err := r.deliver(ctx, stream, claimed, out); err != nil {
				return err
			}
			r.log.Info("recovered pending bars", "stream", stream, "n", len(claimed))
			if len(claimed) < len(ids) {
				break
			}
		}
	}
	return nil
}

func (r *Reader) deliver(ctx context.Context, stream string, msgs []goredis.XMessage, out chan<- model.Bar) error {
	for _, msg := range msgs {
		bar, err := decodeBar(stream, msg)
		if err != nil {
			// ACK malformed messages so they are not redelivered forever.
			r.log.Warn("dropping malformed bar", "stream", stream, "id", msg.ID, "error", err)
			r.client.XAck(ctx, stream, r.group, msg.ID)
			continue
		}
		select {
		case out <- bar:
		case <-ctx.Done():
			return ctx.Err()
		}
		r.client.XAck(ctx, stream, r.group, msg.ID)
	}
	return nil
}

// ReplayFromID reads every message of stream after startID ("0" = from the
// beginning) and sends the bars to out. It returns the last ID read.
func (r *Reader) ReplayFromID(ctx context.Context, stream, startID string, out chan<- model.Bar) (string, error) {
	lastID := startID
	for {
		msgs, err := r.client.XRangeN(ctx, stream, "("+lastID, "+", replayPage).Result()
		if err != nil {
			return lastID, fmt.Errorf("xrange %s from %s: %w", stream, lastID, err)
		}
		for _, msg := range msgs {
			lastID = msg.ID
			bar, err := decodeBar(stream, msg)
			if err != nil {
				continue
			}
			select {
			case out <- bar:
			case <-ctx.Done():
				return lastID, ctx.Err()
			}
		}
		if len(msgs) < replayPage {
			return lastID, nil
		}
	}
}

// ReadLatestCheckpointJSON returns the stored checkpoint, or nil, nil.
func (r *Reader) ReadLatestCheckpointJSON(ctx context.Context) ([]byte, error) {
	return readCheckpoint(ctx, r.client)
}

// Close closes the Redis client.
func (r *Reader) Close() error {
	return r.client.Close()
}

// decodeBar parses the "data" field of a bar stream message. Bars without a
// symbol take it from the stream key.
func decodeBar(stream string, msg goredis.XMessage) (model.Bar, error) {
	data, ok := msg.Values["data"].(string)
	if !ok {
		return model.Bar{}, fmt.Errorf("message %s has no data field", msg.ID)
	}
	var bar model.Bar
	if err := json.Unmarshal([]byte(data), &bar); err != nil {
		return model.Bar{}, fmt.Errorf("decode bar %s: %w", msg.ID, err)
	}
	if bar.Symbol == "" {
		bar.Symbol = strings.TrimPrefix(stream, "bar:")
	}
	return bar, nil
}
