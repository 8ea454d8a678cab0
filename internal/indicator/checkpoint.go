package indicator

import (
	"encoding/json"
	"fmt"
	"time"
)

// PositionVersion is the schema version written into Position.
const PositionVersion = 1

// Position is the persistent form of an engine checkpoint. Indicator state
// is fully determined by the bars a stream has seen, so a position records
// how far each stream got instead of serializing every accumulator; the
// Restorer rebuilds state by replaying stored bars up to that point.
type Position struct {
	Version   int              `json:"version"`
	StreamID  string           `json:"stream_id,omitempty"` // transport cursor at checkpoint time
	Specs     string           `json:"specs"`
	Streams   []StreamPosition `json:"streams"`
	CreatedAt time.Time        `json:"created_at"`
}

// StreamPosition is how far one stream had been processed.
type StreamPosition struct {
	Stream string    `json:"stream"`
	Bars   int       `json:"bars"`
	LastTS time.Time `json:"last_ts"`
}

// Position captures the engine's stream positions. streamID is the bar
// transport's cursor (e.g. a Redis stream ID), stored as-is.
func (e *Engine) Position(streamID string, now time.Time) *Position {
	pos := &Position{
		Version:   PositionVersion,
		StreamID:  streamID,
		Specs:     FormatSpecs(e.specs),
		CreatedAt: now.UTC(),
	}
	for _, k := range e.Streams() {
		p := e.streams[k]
		pos.Streams = append(pos.Streams, StreamPosition{Stream: k, Bars: p.seq, LastTS: p.lastTS})
	}
	return pos
}

// Stream returns the position of stream, if recorded.
func (p *Position) Stream(stream string) (StreamPosition, bool) {
	for _, sp := range p.Streams {
		if sp.Stream == stream {
			return sp, true
		}
	}
	return StreamPosition{}, false
}

// MarshalPosition serializes a position to JSON.
func MarshalPosition(p *Position) ([]byte, error) {
	return json.Marshal(p)
}

// UnmarshalPosition parses a position, rejecting unknown schema versions.
func UnmarshalPosition(data []byte) (*Position, error) {
	var p Position
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal position: %w", err)
	}
	if p.Version != PositionVersion {
		return nil, fmt.Errorf("unmarshal position: unsupported version %d", p.Version)
	}
	return &p, nil
}
