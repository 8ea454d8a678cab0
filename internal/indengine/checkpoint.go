package indengine

import (
	"context"
	"strconv"
	"time"

	"indstream/internal/indicator"
)

// checkpoint saves the engine position to every checkpoint store.
func (svc *Service) checkpoint(ctx context.Context) {
	if len(svc.deps.Checkpoints) == 0 {
		return
	}
	now := time.Now()
	pos := svc.engine.Position(streamMarker(now), now)
	data, err := indicator.MarshalPosition(pos)
	if err != nil {
		svc.log.Error("checkpoint encode failed", "error", err)
		return
	}
	for _, cs := range svc.deps.Checkpoints {
		if err := cs.Store.SaveCheckpointJSON(ctx, data); err != nil {
			svc.prom.CheckpointsTotal.WithLabelValues(cs.Name, "error").Inc()
			svc.log.Warn("checkpoint write failed", "store", cs.Name, "error", err)
			continue
		}
		svc.prom.CheckpointsTotal.WithLabelValues(cs.Name, "ok").Inc()
	}
	svc.log.Info("checkpoint saved", "streams", len(pos.Streams), "stream_id", pos.StreamID)
}

// readCheckpoint returns the first position found in store order, or nil.
// Unreadable checkpoints fall through to the next store.
func (svc *Service) readCheckpoint(ctx context.Context) *indicator.Position {
	for _, cs := range svc.deps.Checkpoints {
		data, err := cs.Store.ReadLatestCheckpointJSON(ctx)
		if err != nil {
			svc.log.Warn("checkpoint read failed", "store", cs.Name, "error", err)
			continue
		}
		if data == nil {
			continue
		}
		pos, err := indicator.UnmarshalPosition(data)
		if err != nil {
			svc.log.Warn("discarding unreadable checkpoint", "store", cs.Name, "error", err)
			continue
		}
		svc.log.Info("found checkpoint", "store", cs.Name, "created_at", pos.CreatedAt)
		return pos
	}
	return nil
}

// streamMarker is a Redis stream ID for wall-clock time now.
func streamMarker(now time.Time) string {
	return strconv.FormatInt(now.UnixMilli(), 10) + "-0"
}
