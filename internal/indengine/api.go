package indengine

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"indstream/internal/indicator"
)

// ReloadChannel is the Redis pub/sub channel carrying indicator spec lists
// for live reloads.
const ReloadChannel = "config:indicators"

const (
	reloadTimeout  = 5 * time.Second
	maxReloadBytes = 64 << 10
)

// ReloadResult reports the outcome of a reload.
type ReloadResult struct {
	Status     string `json:"status"`
	Indicators string `json:"indicators"`
	Preserved  int    `json:"preserved"`
	Created    int    `json:"created"`
}

type reloadRequest struct {
	specs []indicator.Spec
	reply chan reloadReply
}

type reloadReply struct {
	result ReloadResult
	err    error
}

// Reload switches the running engine to specs. It waits for the engine
// goroutine, so it only succeeds while Run is active.
func (svc *Service) Reload(ctx context.Context, specs []indicator.Spec) (ReloadResult, error) {
	req := reloadRequest{specs: specs, reply: make(chan reloadReply, 1)}
	select {
	case svc.reloads <- req:
	case <-ctx.Done():
		return ReloadResult{}, ctx.Err()
	}
	select {
	case r := <-req.reply:
		return r.result, r.err
	case <-ctx.Done():
		return ReloadResult{}, ctx.Err()
	}
}

// applyReload runs on the engine goroutine.
func (svc *Service) applyReload(specs []indicator.Spec) reloadReply {
	preserved, created, err := svc.engine.Reload(specs)
	if err != nil {
		svc.prom.ReloadsTotal.WithLabelValues("error").Inc()
		return reloadReply{err: err}
	}
	svc.prom.ReloadsTotal.WithLabelValues("ok").Inc()
	svc.specsMu.Lock()
	svc.specs = append([]indicator.Spec(nil), specs...)
	svc.specsMu.Unlock()
	svc.health.SetIndicators(specKeys(specs))
	svc.updateActive()
	return reloadReply{result: ReloadResult{
		Status:     "ok",
		Indicators: indicator.FormatSpecs(specs),
		Preserved:  preserved,
		Created:    created,
	}}
}

// Handler returns the service HTTP API: POST /reload, GET /indicators,
// /healthz and, with a gateway, the WebSocket routes.
func (svc *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/reload", svc.handleReload)
	mux.HandleFunc("/indicators", svc.handleIndicators)
	mux.Handle("/healthz", svc.health)
	if svc.deps.Gateway != nil {
		svc.deps.Gateway.RegisterRoutes(mux)
	}
	return mux
}

// handleReload accepts a spec list either as a plain-text body or as JSON
// {"indicators": "sma:20,rsi:14"}.
func (svc *Service) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxReloadBytes))
	if err != nil {
		http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
		return
	}
	list := strings.TrimSpace(string(body))
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "application/json" {
		var req struct {
			Indicators string `json:"indicators"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
		list = req.Indicators
	}

	specs, err := ParseIndicators(list, svc.reg)
	if err != nil {
		svc.prom.ReloadsTotal.WithLabelValues("invalid").Inc()
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), reloadTimeout)
	defer cancel()
	res, err := svc.Reload(ctx, specs)
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		http.Error(w, "engine busy", http.StatusServiceUnavailable)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	svc.log.Info("indicators reloaded via HTTP", "indicators", res.Indicators, "preserved", res.Preserved, "created", res.Created)
	writeJSON(w, http.StatusOK, res)
}

// handleIndicators lists the active specs and every registered name.
func (svc *Service) handleIndicators(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"indicators": indicator.FormatSpecs(svc.Specs()),
		"available":  svc.reg.Names(),
	})
}

// startConfigSubscriber listens on ReloadChannel for spec lists.
func (svc *Service) startConfigSubscriber(ctx context.Context) {
	if svc.deps.Redis == nil {
		return
	}
	pubsub := svc.deps.Redis.Subscribe(ctx, ReloadChannel)
	go func() {
		defer pubsub.Close()
		svc.log.Info("subscribed for dynamic reload", "channel", ReloadChannel)

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				specs, err := ParseIndicators(msg.Payload, svc.reg)
				if err != nil {
					svc.prom.ReloadsTotal.WithLabelValues("invalid").Inc()
					svc.log.Warn("ignoring invalid indicator config", "payload", msg.Payload, "error", err)
					continue
				}
				rctx, cancel := context.WithTimeout(ctx, reloadTimeout)
				res, err := svc.Reload(rctx, specs)
				cancel()
				if err != nil {
					svc.log.Warn("reload failed", "error", err)
					continue
				}
				svc.log.Info("indicators reloaded via pub/sub", "indicators", res.Indicators, "preserved", res.Preserved, "created", res.Created)
			}
		}
	}()
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
