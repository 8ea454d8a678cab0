package gateway

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	maxReadBytes = 4096
)

// Client represents a single WebSocket peer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	// Subscribed streams; empty receives everything.
	subMu   sync.RWMutex
	streams map[string]bool
}

// clientMsg is a control message from a client:
//
//	{"type":"SUBSCRIBE","streams":["BTCUSDT","BTCUSDT@5m"]}
//	{"type":"UNSUBSCRIBE","streams":["BTCUSDT"]}
//	{"ping":1712345678901}
type clientMsg struct {
	Type    string   `json:"type"`
	Streams []string `json:"streams"`
	Ping    int64    `json:"ping"`
}

// sendInitialState queues the latest value of every channel updated after
// since (all channels for the zero time).
func (c *Client) sendInitialState(since time.Time) {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()

	for channel, entry := range c.hub.latest {
		if !since.IsZero() && !entry.TS.After(since) {
			continue
		}
		select {
		case c.send <- envelope(channel, entry.Data, entry.TS, c.hub.seq, entry.Seq, true):
		default:
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// Coalesce queued messages into one frame, newline separated
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
		c.hub.log.Info("ws client disconnected")
	}()

	c.conn.SetReadLimit(maxReadBytes)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMsg
		if json.Unmarshal(raw, &msg) != nil {
			c.sendError("invalid message")
			continue
		}
		switch msg.Type {
		case "SUBSCRIBE":
			c.subscribe(msg.Streams)
			c.sendJSON(map[string]any{"type": "subscribed", "streams": c.subscriptions()})
		case "UNSUBSCRIBE":
			c.unsubscribe(msg.Streams)
			c.sendJSON(map[string]any{"type": "subscribed", "streams": c.subscriptions()})
		default:
			if msg.Ping > 0 {
				c.sendJSON(map[string]any{"type": "pong", "ping": msg.Ping, "server_ts": time.Now().UnixMilli()})
				continue
			}
			c.sendError("unknown message type " + msg.Type)
		}
	}
}

func (c *Client) subscribe(streams []string) {
	c.subMu.Lock()
	for _, s := range streams {
		c.streams[s] = true
	}
	c.subMu.Unlock()
}

func (c *Client) unsubscribe(streams []string) {
	c.subMu.Lock()
	for _, s := range streams {
		delete(c.streams, s)
	}
	c.subMu.Unlock()
}

func (c *Client) subscriptions() []string {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	out := make([]string, 0, len(c.streams))
	for s := range c.streams {
		out = append(out, s)
	}
	return out
}

// wants reports whether the client receives envelopes of stream.
func (c *Client) wants(stream string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.streams) == 0 || c.streams[stream]
}

// sendJSON queues v unless the client is gone or too slow.
func (c *Client) sendJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) sendError(msg string) {
	c.sendJSON(map[string]any{"type": "error", "error": msg})
}
