package indengine

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indstream/config"
	"indstream/internal/gateway"
	"indstream/internal/indicator"
	"indstream/internal/metrics"
	"indstream/internal/model"
)

// ── fakes ──

type chanSource struct{ bars chan model.Bar }

func newChanSource() *chanSource { return &chanSource{bars: make(chan model.Bar, 64)} }

func (s *chanSource) ConsumeBars(ctx context.Context, _ []string, out chan<- model.Bar) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b := <-s.bars:
			select {
			case out <- b:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (s *chanSource) Close() error { return nil }

type memSink struct {
	mu     sync.Mutex
	frames []model.Frame
}

func (s *memSink) WriteFrames(_ context.Context, frames []model.Frame) error {
	s.mu.Lock()
	s.frames = append(s.frames, frames...)
	s.mu.Unlock()
	return nil
}

func (s *memSink) Close() error { return nil }

func (s *memSink) snapshot() []model.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Frame(nil), s.frames...)
}

func (s *memSink) count() int { return len(s.snapshot()) }

type memCheckpoints struct {
	mu   sync.Mutex
	data [][]byte
}

func (m *memCheckpoints) SaveCheckpointJSON(_ context.Context, data []byte) error {
	m.mu.Lock()
	m.data = append(m.data, append([]byte(nil), data...))
	m.mu.Unlock()
	return nil
}

func (m *memCheckpoints) ReadLatestCheckpointJSON(context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.data) == 0 {
		return nil, nil
	}
	return m.data[len(m.data)-1], nil
}

func (m *memCheckpoints) latest(t *testing.T) *indicator.Position {
	data, err := m.ReadLatestCheckpointJSON(context.Background())
	require.NoError(t, err)
	require.NotNil(t, data)
	pos, err := indicator.UnmarshalPosition(data)
	require.NoError(t, err)
	return pos
}

type memBars struct {
	mu   sync.Mutex
	bars map[string][]model.Bar
}

func newMemBars() *memBars { return &memBars{bars: make(map[string][]model.Bar)} }

func (m *memBars) WriteBars(_ context.Context, bars []model.Bar) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range bars {
		m.bars[b.Key()] = append(m.bars[b.Key()], b)
	}
	return nil
}

func (m *memBars) ReadBars(_ context.Context, symbol string, after time.Time) ([]model.Bar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Bar
	for _, b := range m.bars[symbol] {
		if b.TS.After(after) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memBars) Symbols(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for s := range m.bars {
		out = append(out, s)
	}
	return out, nil
}

func (m *memBars) Close() error { return nil }

func (m *memBars) count(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bars[symbol])
}

// ── helpers ──

var t0 = time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)

func bar(symbol string, minute int, c float64) model.Bar {
	return model.Bar{
		Symbol: symbol,
		TS:     t0.Add(time.Duration(minute) * time.Minute),
		Open:   c, High: c + 1, Low: c - 1, Close: c, Volume: 10,
	}
}

type harness struct {
	svc    *Service
	src    *chanSource
	sink   *memSink
	cps    *memCheckpoints
	store  *memBars
	cancel context.CancelFunc
	done   chan error
}

func newHarness(t *testing.T, indicators string, store *memBars, cps *memCheckpoints, opts ...func(*config.Config)) *harness {
	t.Helper()
	specs, err := ParseIndicators(indicators, nil)
	require.NoError(t, err)
	if store == nil {
		store = newMemBars()
	}
	if cps == nil {
		cps = &memCheckpoints{}
	}
	h := &harness{src: newChanSource(), sink: &memSink{}, cps: cps, store: store}

	cfg := Config{
		Config: &config.Config{
			BarSource:          "test",
			Symbols:            []string{"BTC"},
			CheckpointInterval: time.Hour,
			RingSize:           16,
		},
		Specs: specs,
	}
	for _, opt := range opts {
		opt(cfg.Config)
	}
	h.svc, err = NewService(cfg, Deps{
		Source:      h.src,
		Bars:        store,
		History:     store,
		CatchUp:     true,
		Sinks:       []Sink{{Name: "mem", Writer: h.sink}},
		Checkpoints: []CheckpointStore{{Name: "mem", Store: cps}},
		Metrics:     metrics.NewMetrics(prometheus.NewRegistry()),
	})
	require.NoError(t, err)
	return h
}

func (h *harness) start() {
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.done = make(chan error, 1)
	go func() { h.done <- h.svc.Run(ctx) }()
}

func (h *harness) stop(t *testing.T) {
	t.Helper()
	h.cancel()
	select {
	case err := <-h.done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("service did not stop")
	}
}

func (h *harness) send(bars ...model.Bar) {
	for _, b := range bars {
		h.src.bars <- b
	}
}

func (h *harness) waitFrames(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.sink.count() >= n },
		3*time.Second, 5*time.Millisecond, "want %d frames", n)
}

// ── tests ──

func TestService_ProcessesBarsAndCheckpointsOnShutdown(t *testing.T) {
	h := newHarness(t, "sma:3", nil, nil)
	h.start()

	h.send(bar("BTC", 0, 10), bar("BTC", 1, 11), bar("BTC", 2, 12), bar("BTC", 3, 13))
	h.waitFrames(t, 4)
	h.stop(t)

	frames := h.sink.snapshot()
	require.Len(t, frames, 4)
	for i, f := range frames {
		assert.Equal(t, i+1, f.Seq)
		assert.Equal(t, "BTC", f.Stream)
		assert.False(t, f.Live)
		r, ok := f.Get("sma:3")
		require.True(t, ok)
		assert.Equal(t, i >= 2, r.Output.Ready, "frame %d", i)
	}
	r, _ := frames[3].Get("sma:3")
	assert.InDelta(t, 12.0, r.Output.Value(), 1e-9)

	assert.Equal(t, 4, h.store.count("BTC"))

	pos := h.cps.latest(t)
	sp, ok := pos.Stream("BTC")
	require.True(t, ok)
	assert.Equal(t, 4, sp.Bars)
	assert.True(t, sp.LastTS.Equal(t0.Add(3*time.Minute)))
	assert.Equal(t, "sma:3", pos.Specs)
}

func TestService_DropsStaleBars(t *testing.T) {
	h := newHarness(t, "sma:2", nil, nil)
	h.start()

	h.send(bar("BTC", 0, 1), bar("BTC", 1, 2), bar("BTC", 1, 99), bar("BTC", 0, 99), bar("BTC", 2, 3))
	h.waitFrames(t, 3)
	h.stop(t)

	frames := h.sink.snapshot()
	require.Len(t, frames, 3)
	r, _ := frames[2].Get("sma:2")
	assert.InDelta(t, 2.5, r.Output.Value(), 1e-9)
	assert.Equal(t, 3, h.store.count("BTC"))
}

func TestService_CorrectedBarAfterRejectedOne(t *testing.T) {
	h := newHarness(t, "sma:2", nil, nil)
	h.start()

	bad := bar("BTC", 1, 2)
	bad.Close = math.NaN()
	h.send(bar("BTC", 0, 1), bad, bar("BTC", 1, 2))
	h.waitFrames(t, 3)
	h.stop(t)

	frames := h.sink.snapshot()
	require.Len(t, frames, 3)
	assert.True(t, frames[1].Rejected())
	assert.False(t, frames[2].Rejected())
	assert.Equal(t, 2, frames[2].Seq)
	r, _ := frames[2].Get("sma:2")
	assert.InDelta(t, 1.5, r.Output.Value(), 1e-9)
	assert.Equal(t, 2, h.store.count("BTC"))

	pos := h.cps.latest(t)
	sp, ok := pos.Stream("BTC")
	require.True(t, ok)
	assert.Equal(t, 2, sp.Bars)
}

func TestService_LiveFramesForFormingBars(t *testing.T) {
	h := newHarness(t, "sma:2", nil, nil)
	h.start()

	forming := bar("BTC", 0, 5)
	forming.Forming = true
	h.send(forming) // no confirmed bar yet: ignored
	h.send(bar("BTC", 0, 1), bar("BTC", 1, 3))
	forming = bar("BTC", 2, 7)
	forming.Forming = true
	h.send(forming)
	h.waitFrames(t, 3)
	h.stop(t)

	frames := h.sink.snapshot()
	require.Len(t, frames, 3)
	live := frames[2]
	assert.True(t, live.Live)
	assert.Equal(t, 3, live.Seq)
	r, _ := live.Get("sma:2")
	assert.InDelta(t, 5.0, r.Output.Value(), 1e-9)

	// forming bars are neither stored nor counted in the position
	assert.Equal(t, 2, h.store.count("BTC"))
	sp, _ := h.cps.latest(t).Stream("BTC")
	assert.Equal(t, 2, sp.Bars)
}

func TestService_RestoresFromCheckpointAndCatchesUp(t *testing.T) {
	store := newMemBars()
	require.NoError(t, store.WriteBars(context.Background(), []model.Bar{
		bar("BTC", 0, 10), bar("BTC", 1, 20), bar("BTC", 2, 30), bar("BTC", 3, 40),
	}))

	// checkpoint taken after the first two bars
	specs, err := ParseIndicators("sma:2", nil)
	require.NoError(t, err)
	e, err := indicator.NewEngine(nil, specs)
	require.NoError(t, err)
	e.Process(bar("BTC", 0, 10))
	e.Process(bar("BTC", 1, 20))
	data, err := indicator.MarshalPosition(e.Position("", t0))
	require.NoError(t, err)
	cps := &memCheckpoints{}
	require.NoError(t, cps.SaveCheckpointJSON(context.Background(), data))

	h := newHarness(t, "sma:2", store, cps)
	h.start()
	h.waitFrames(t, 2) // bars 3 and 4 replayed from the store

	h.send(bar("BTC", 3, 99), bar("BTC", 4, 50))
	h.waitFrames(t, 3)
	h.stop(t)

	frames := h.sink.snapshot()
	require.Len(t, frames, 3)
	assert.Equal(t, []int{3, 4, 5}, []int{frames[0].Seq, frames[1].Seq, frames[2].Seq})
	r, _ := frames[0].Get("sma:2")
	assert.InDelta(t, 25.0, r.Output.Value(), 1e-9)
	r, _ = frames[2].Get("sma:2")
	assert.InDelta(t, 45.0, r.Output.Value(), 1e-9)

	sp, _ := h.cps.latest(t).Stream("BTC")
	assert.Equal(t, 5, sp.Bars)
}

func TestService_ResamplesTimeframes(t *testing.T) {
	h := newHarness(t, "sma:2", nil, nil, func(c *config.Config) {
		c.Timeframes = []time.Duration{2 * time.Minute}
	})
	h.start()

	for m := 0; m < 5; m++ {
		h.send(bar("BTC", m, float64(m+1)))
	}
	// 5 base frames, 2 finalized 2m bars, 3 live 2m previews
	h.waitFrames(t, 10)
	h.stop(t)

	var confirmed, live []model.Frame
	for _, f := range h.sink.snapshot() {
		if f.Stream != "BTC@2m" {
			continue
		}
		if f.Live {
			live = append(live, f)
		} else {
			confirmed = append(confirmed, f)
		}
	}
	require.Len(t, confirmed, 2)
	assert.Len(t, live, 3)
	assert.Equal(t, t0, confirmed[0].Bar.TS)
	assert.Equal(t, 2.0, confirmed[0].Bar.Close)
	assert.Equal(t, 3.0, confirmed[0].Bar.High)
	r, _ := confirmed[1].Get("sma:2")
	assert.InDelta(t, 3.0, r.Output.Value(), 1e-9)

	assert.Equal(t, 5, h.store.count("BTC"))
	assert.Equal(t, 2, h.store.count("BTC@2m"))
}

func TestService_ReloadOverHTTP(t *testing.T) {
	h := newHarness(t, "sma:2", nil, nil)
	h.start()
	defer h.stop(t)

	h.send(bar("BTC", 0, 1))
	h.waitFrames(t, 1)

	srv := httptest.NewServer(h.svc.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/reload", "text/plain", strings.NewReader("sma:2,ema:3"))
	require.NoError(t, err)
	var res ReloadResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, ReloadResult{Status: "ok", Indicators: "sma:2,ema:3", Preserved: 1, Created: 1}, res)

	resp, err = http.Post(srv.URL+"/reload", "application/json", strings.NewReader(`{"indicators":"rsi:3"}`))
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "rsi:3", res.Indicators)

	resp, err = http.Get(srv.URL + "/indicators")
	require.NoError(t, err)
	var listing struct {
		Indicators string   `json:"indicators"`
		Available  []string `json:"available"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listing))
	resp.Body.Close()
	assert.Equal(t, "rsi:3", listing.Indicators)
	assert.Contains(t, listing.Available, "sma")

	h.send(bar("BTC", 1, 2))
	h.waitFrames(t, 2)
	last := h.sink.snapshot()[1]
	_, ok := last.Get("rsi:3")
	assert.True(t, ok)
	_, ok = last.Get("sma:2")
	assert.False(t, ok)
}

func TestService_GatewayRoutes(t *testing.T) {
	h := newHarness(t, "sma:2", nil, nil)
	hub := gateway.NewHub()
	h.svc.deps.Gateway = hub
	h.svc.deps.Sinks = append(h.svc.deps.Sinks, Sink{Name: "gateway", Writer: hub})
	h.start()
	defer h.stop(t)

	h.send(bar("BTC", 0, 1), bar("BTC", 1, 3))
	h.waitFrames(t, 2)

	require.Eventually(t, func() bool { return hub.ChannelSeq("pub:ind:sma:2:BTC") == 2 },
		3*time.Second, 5*time.Millisecond)

	srv := httptest.NewServer(h.svc.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/values/latest")
	require.NoError(t, err)
	defer resp.Body.Close()
	var latest map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&latest))
	assert.Len(t, latest, 2)

	var rec model.IndicatorRecord
	require.NoError(t, json.Unmarshal(latest["pub:ind:sma:2:BTC"], &rec))
	assert.True(t, rec.Ready)
	assert.Equal(t, 2.0, rec.Value)
}

func TestService_ReloadRejectsBadInput(t *testing.T) {
	h := newHarness(t, "sma:2", nil, nil)
	srv := httptest.NewServer(h.svc.Handler())
	defer srv.Close()

	tests := []struct {
		name   string
		method string
		ctype  string
		body   string
		code   int
	}{
		{"unknown indicator", http.MethodPost, "text/plain", "nosuch:3", http.StatusBadRequest},
		{"empty list", http.MethodPost, "text/plain", " ", http.StatusBadRequest},
		{"bad json", http.MethodPost, "application/json", "{", http.StatusBadRequest},
		{"wrong method", http.MethodGet, "", "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, srv.URL+"/reload", strings.NewReader(tt.body))
			require.NoError(t, err)
			if tt.ctype != "" {
				req.Header.Set("Content-Type", tt.ctype)
			}
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tt.code, resp.StatusCode)
		})
	}
}

func TestService_ReloadNeedsRunningEngine(t *testing.T) {
	h := newHarness(t, "sma:2", nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := h.svc.Reload(ctx, h.svc.Specs())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewService_Validation(t *testing.T) {
	cfg := Config{Config: &config.Config{RingSize: 8, CheckpointInterval: time.Second}}
	_, err := NewService(cfg, Deps{})
	assert.Error(t, err)

	_, err = NewService(Config{}, Deps{Source: newChanSource()})
	assert.Error(t, err)
}

func TestParseIndicators(t *testing.T) {
	specs, err := ParseIndicators("sma:20, macd:12:26:9@macd ,rsi", nil)
	require.NoError(t, err)
	assert.Equal(t, "sma:20,macd:12:26:9@macd,rsi", indicator.FormatSpecs(specs))

	for _, bad := range []string{"", "nosuch", "sma:20,sma:20", "sma:abc"} {
		_, err := ParseIndicators(bad, nil)
		assert.Error(t, err, bad)
	}
}

func TestCollect(t *testing.T) {
	ch := make(chan int, 10)
	for i := 2; i <= 6; i++ {
		ch <- i
	}
	got := collect([]int{1}, ch, 4)
	assert.Equal(t, []int{1, 2, 3, 4}, got)

	close(ch)
	got = collect(nil, ch, 10)
	assert.Equal(t, []int{5, 6}, got)
}
