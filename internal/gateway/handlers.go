package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// RegisterRoutes registers the WebSocket endpoint and the REST helpers:
//
//	/ws                   WebSocket, ?last_ts=RFC3339 limits the initial state
//	/api/values/latest    latest payload per channel
//	/api/missed           ?channel=&from=&to= replays buffered envelopes
func (h *Hub) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.ServeWS)
	mux.HandleFunc("/api/values/latest", h.handleLatest)
	mux.HandleFunc("/api/missed", h.handleMissed)
}

// ServeWS upgrades the request and registers the client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	if v := r.URL.Query().Get("last_ts"); v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			http.Error(w, "invalid last_ts", http.StatusBadRequest)
			return
		}
		since = t
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "error", err)
		return
	}
	h.register(conn, since)
}

func (h *Hub) handleLatest(w http.ResponseWriter, _ *http.Request) {
	setCORS(w)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.LatestAll())
}

// handleMissed returns the envelopes of a channel with channel_seq in
// [from, to]; to defaults to the current seq.
func (h *Hub) handleMissed(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	q := r.URL.Query()
	channel := q.Get("channel")
	if channel == "" {
		http.Error(w, "channel is required", http.StatusBadRequest)
		return
	}
	from, err := strconv.ParseInt(q.Get("from"), 10, 64)
	if err != nil {
		http.Error(w, "invalid from", http.StatusBadRequest)
		return
	}
	to := h.ChannelSeq(channel)
	if v := q.Get("to"); v != "" {
		if to, err = strconv.ParseInt(v, 10, 64); err != nil {
			http.Error(w, "invalid to", http.StatusBadRequest)
			return
		}
	}

	envs := h.ReplayRange(channel, from, to)
	out := make([]json.RawMessage, len(envs))
	for i, e := range envs {
		out[i] = e
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}
