// Package ws consumes bars from a plain-JSON WebSocket feed.
//
// Each text message is one bar or an array of bars in the model.Bar JSON
// form:
//
//	{"symbol":"BTCUSDT","ts":"2024-01-02T09:15:00Z","open":1,"high":2,"low":0.5,"close":1.5,"volume":10}
//
// After connecting, the feed sends {"action":"subscribe","symbols":[...]}
// when symbols were requested.
package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"indstream/internal/model"
)

// Config holds configuration for the WebSocket feed.
type Config struct {
	// URL of the bar WebSocket server, e.g. "ws://localhost:9001/bars".
	URL string

	// ReconnectDelay is the initial delay before reconnecting. Defaults to 2s.
	ReconnectDelay time.Duration

	// MaxReconnectDelay caps the exponential backoff. Defaults to 30s.
	MaxReconnectDelay time.Duration
}

func (c *Config) defaults() {
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 2 * time.Second
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = 30 * time.Second
	}
}

type subscribeMsg struct {
	Action  string   `json:"action"`
	Symbols []string `json:"symbols"`
}

// Feed reconnects on disconnect with exponential backoff and forwards bars
// in arrival order.
type Feed struct {
	cfg Config
	log *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	// Optional hooks.
	OnReconnect func()
	OnMalformed func(err error)
}

// New creates a Feed. Returns an error if the URL is not a ws/wss URL.
func New(cfg Config) (*Feed, error) {
	cfg.defaults()
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("ws feed url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("ws feed url %q: scheme must be ws or wss", cfg.URL)
	}
	return &Feed{cfg: cfg, log: slog.With("component", "ws", "url", cfg.URL)}, nil
}

// ConsumeBars connects and sends bars of symbols (all when empty) to out.
// Blocks until ctx is cancelled or Close is called; reconnects otherwise.
func (f *Feed) ConsumeBars(ctx context.Context, symbols []string, out chan<- model.Bar) error {
	delay := f.cfg.ReconnectDelay
	want := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		want[s] = true
	}

	for {
		if ctx.Err() != nil || f.isClosed() {
			return nil
		}
		received, err := f.runOnce(ctx, symbols, want, out)
		if err == nil {
			return nil
		}
		if received {
			delay = f.cfg.ReconnectDelay
		}

		f.log.Warn("disconnected, reconnecting", "error", err, "delay", delay)
		if f.OnReconnect != nil {
			f.OnReconnect()
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay = min(delay*2, f.cfg.MaxReconnectDelay)
	}
}

// runOnce makes one connection and reads until disconnect or ctx cancel.
// A nil error means a clean shutdown.
func (f *Feed) runOnce(ctx context.Context, symbols []string, want map[string]bool, out chan<- model.Bar) (bool, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.cfg.URL, nil)
	if err != nil {
		return false, err
	}
	if !f.setConn(conn) {
		conn.Close()
		return false, nil
	}
	defer f.setConn(nil)
	defer conn.Close()
	f.log.Info("connected")

	if len(symbols) > 0 {
		if err := conn.WriteJSON(subscribeMsg{Action: "subscribe", Symbols: symbols}); err != nil {
			return false, fmt.Errorf("subscribe: %w", err)
		}
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"), time.Now().Add(time.Second))
			conn.Close()
		case <-stop:
		}
	}()

	received := false
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || f.isClosed() {
				return received, nil
			}
			return received, err
		}
		received = true

		bars, err := decode(raw)
		if err != nil {
			f.log.Warn("malformed message", "error", err)
			if f.OnMalformed != nil {
				f.OnMalformed(err)
			}
			continue
		}
		for _, b := range bars {
			if len(want) > 0 && !want[b.Symbol] {
				continue
			}
			select {
			case out <- b:
			case <-ctx.Done():
				return received, nil
			}
		}
	}
}

func decode(raw []byte) ([]model.Bar, error) {
	raw = bytes.TrimSpace(raw)
	var bars []model.Bar
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &bars); err != nil {
			return nil, err
		}
	} else {
		var b model.Bar
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		bars = []model.Bar{b}
	}
	for i := range bars {
		if bars[i].TS.IsZero() {
			return nil, fmt.Errorf("bar %d without ts", i)
		}
	}
	return bars, nil
}

func (f *Feed) setConn(c *websocket.Conn) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed && c != nil {
		return false
	}
	f.conn = c
	return true
}

func (f *Feed) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Close stops the feed and closes the current connection.
func (f *Feed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}
