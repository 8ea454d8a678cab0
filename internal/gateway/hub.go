// Package gateway pushes indicator values to WebSocket clients. A Hub is a
// frame sink: every record it receives is wrapped in an envelope, kept as
// the channel's latest value and in a per-channel replay buffer, and sent
// to the clients subscribed to its stream.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"indstream/internal/model"
)

const (
	clientSendBuffer = 256
	replayCapacity   = 500
)

// Hub manages WebSocket clients and fans frames out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	latest  map[string]latestEntry
	seq     int64

	// Per-channel monotonic sequence numbers for gap detection
	channelSeqs map[string]int64

	// Per-channel replay buffers for gap backfill
	replayBufs map[string]*ReplayBuffer

	log *slog.Logger

	// OnDrop is called when a slow client misses an envelope (optional).
	OnDrop func()
	now    func() time.Time
}

type latestEntry struct {
	Stream string
	Data   json.RawMessage
	TS     time.Time
	Seq    int64
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		latest:      make(map[string]latestEntry),
		channelSeqs: make(map[string]int64),
		replayBufs:  make(map[string]*ReplayBuffer),
		log:         slog.Default().With("component", "gateway"),
		now:         time.Now,
	}
}

// WriteFrames broadcasts the bar and every indicator record of each frame.
func (h *Hub) WriteFrames(_ context.Context, frames []model.Frame) error {
	for i := range frames {
		f := &frames[i]
		h.Broadcast(BarChannel(f.Stream), f.Stream, f.Bar.JSON())
		for _, rec := range f.Records() {
			h.Broadcast(rec.PubSubChannel(), f.Stream, rec.JSON())
		}
	}
	return nil
}

// Close disconnects every client.
func (h *Hub) Close() error {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		c.conn.Close()
	}
	return nil
}

// register adds a client for conn and starts its pumps.
func (h *Hub) register(conn *websocket.Conn, since time.Time) *Client {
	c := &Client{
		conn:    conn,
		send:    make(chan []byte, clientSendBuffer),
		hub:     h,
		streams: make(map[string]bool),
	}
	conn.EnableWriteCompression(true)

	h.mu.Lock()
	h.clients[c] = true
	count := len(h.clients)
	h.mu.Unlock()
	h.log.Info("ws client connected", "clients", count)

	c.sendInitialState(since)
	go c.writePump()
	go c.readPump()
	return c
}

// RemoveClient removes a client from the hub.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// LatestAll returns the newest payload of every channel.
func (h *Hub) LatestAll() map[string]json.RawMessage {
	h.mu.RLock()
	defer h.mu.RUnlock()
	cp := make(map[string]json.RawMessage, len(h.latest))
	for k, v := range h.latest {
		cp[k] = v.Data
	}
	return cp
}

// ReplayRange returns buffered envelopes for a channel in [fromSeq, toSeq].
func (h *Hub) ReplayRange(channel string, fromSeq, toSeq int64) [][]byte {
	h.mu.RLock()
	rb, exists := h.replayBufs[channel]
	h.mu.RUnlock()
	if !exists {
		return nil
	}
	return rb.Range(fromSeq, toSeq)
}

// ChannelSeq returns the current sequence number for a channel.
func (h *Hub) ChannelSeq(channel string) int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.channelSeqs[channel]
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BarChannel is the channel bars of stream are broadcast on.
func BarChannel(stream string) string {
	return "pub:bar:" + stream
}
