// Package indengine runs the indicator service: bars from a source go
// through a ring buffer into the indicator engine, and the resulting frames
// fan out to the configured sinks.
package indengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"

	"indstream/config"
	"indstream/internal/gateway"
	"indstream/internal/indicator"
	"indstream/internal/marketdata/bus"
	"indstream/internal/marketdata/replay"
	"indstream/internal/marketdata/tfbuilder"
	"indstream/internal/marketdata/ws"
	"indstream/internal/metrics"
	"indstream/internal/model"
	"indstream/internal/ringbuf"
	redisstore "indstream/internal/store/redis"
	sqlitestore "indstream/internal/store/sqlite"
)

const (
	sinkBatchSize      = 256
	redisBufferedLimit = 10000
	breakerMaxFailures = 5
	breakerCoolDown    = 10 * time.Second
	livenessInterval   = 10 * time.Second
	statsInterval      = 5 * time.Second
	shutdownTimeout    = 5 * time.Second
)

// Sink is a named frame destination.
type Sink struct {
	Name   string
	Writer model.FrameWriter
}

// CheckpointStore is a named checkpoint destination.
type CheckpointStore struct {
	Name  string
	Store model.CheckpointStore
}

// Deps are the collaborators of a Service. Everything except Source is
// optional.
type Deps struct {
	Source     model.BarConsumer
	SourceName string

	Bars        model.BarWriter // confirmed bars, for replay on restore
	History     model.BarReader // restore and catch-up
	CatchUp     bool            // replay History newer than the checkpoint before going live
	Sinks       []Sink
	Checkpoints []CheckpointStore // read in order on restore, all written

	Registry *indicator.Registry
	Metrics  *metrics.Metrics
	Health   *metrics.HealthStatus
	Gatherer prometheus.Gatherer

	Redis  *goredis.Client // reload subscription and liveness
	SQLite *sql.DB         // liveness

	Gateway *gateway.Hub // WebSocket push, served on the HTTP API

	Closers []io.Closer // closed in order on shutdown
}

// Service is the top-level orchestrator for the indicator engine.
// It wires all dependencies, manages lifecycle, and coordinates goroutines.
type Service struct {
	cfg    Config
	deps   Deps
	reg    *indicator.Registry
	prom   *metrics.Metrics
	health *metrics.HealthStatus
	log    *slog.Logger

	// owned by the engine goroutine once Run starts
	engine *indicator.Engine

	ring    *ringbuf.Ring
	wake    chan struct{}
	barCh   chan model.Bar
	frameCh chan model.Frame
	fan     *bus.FanOut[model.Frame]
	tf      *tfbuilder.Builder // nil without timeframes
	reloads chan reloadRequest

	specsMu sync.RWMutex
	specs   []indicator.Spec
}

// New connects the stores and the bar source described by cfg.
func New(cfg Config) (*Service, error) {
	deps, err := connect(cfg)
	if err != nil {
		return nil, err
	}
	return NewService(cfg, deps)
}

// NewService creates a service from explicit dependencies.
func NewService(cfg Config, deps Deps) (*Service, error) {
	if cfg.Config == nil {
		return nil, errors.New("indengine: nil config")
	}
	if deps.Source == nil {
		return nil, errors.New("indengine: no bar source")
	}
	if deps.Registry == nil {
		deps.Registry = indicator.DefaultRegistry()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewMetrics(nil)
	}
	if deps.Health == nil {
		deps.Health = metrics.NewHealthStatus()
	}
	if deps.SourceName == "" {
		deps.SourceName = cfg.BarSource
	}
	if err := deps.Registry.Validate(cfg.Specs); err != nil {
		return nil, err
	}

	svc := &Service{
		cfg:     cfg,
		deps:    deps,
		reg:     deps.Registry,
		prom:    deps.Metrics,
		health:  deps.Health,
		log:     slog.Default().With("component", "indengine"),
		ring:    ringbuf.New(cfg.RingSize),
		wake:    make(chan struct{}, 1),
		reloads: make(chan reloadRequest),
		specs:   append([]indicator.Spec(nil), cfg.Specs...),
	}
	svc.frameCh = make(chan model.Frame, svc.ring.Cap())
	svc.fan = bus.New[model.Frame](svc.ring.Cap())
	svc.fan.OnDrop = func(name string) { svc.prom.FanoutDropsTotal.WithLabelValues(name).Inc() }
	if deps.Bars != nil {
		svc.barCh = make(chan model.Bar, svc.ring.Cap())
	}
	if len(cfg.Timeframes) > 0 {
		svc.tf = tfbuilder.New(cfg.Timeframes)
		svc.tf.OnStale = func(stream string, tf time.Duration) {
			svc.prom.RejectedBars.Inc()
			svc.log.Debug("dropping bar for closed bucket", "stream", stream, "timeframe", tfbuilder.Label(tf))
		}
	}
	return svc, nil
}

// connect opens every store the configuration enables. Stores that are
// optional for the chosen source only log on failure.
func connect(cfg Config) (Deps, error) {
	deps := Deps{SourceName: cfg.BarSource, CatchUp: cfg.BarSource != config.SourceSQLite}
	var opened []io.Closer
	fail := func(err error) (Deps, error) {
		closeAll(opened)
		return Deps{}, err
	}
	prom := metrics.NewMetrics(nil)
	deps.Metrics = prom

	redisCfg := redisstore.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}

	var sqlWriter *sqlitestore.Writer
	var sqlReader *sqlitestore.Reader
	if cfg.SQLitePath != "" {
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			_ = os.MkdirAll(dir, 0o755)
		}
		w, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath})
		if err == nil {
			var r *sqlitestore.Reader
			if r, err = sqlitestore.NewReader(cfg.SQLitePath); err != nil {
				w.Close()
			} else {
				sqlWriter, sqlReader = w, r
				opened = append(opened, w, r)
			}
		}
		if err != nil {
			if cfg.BarSource == config.SourceSQLite {
				return fail(fmt.Errorf("open sqlite: %w", err))
			}
			slog.Warn("sqlite unavailable, continuing without history", "component", "indengine", "error", err)
		}
	}

	var redisWriter *redisstore.Writer
	w, err := redisstore.New(redisstore.WriterConfig{Config: redisCfg})
	if err != nil {
		if cfg.BarSource == config.SourceRedis {
			return fail(fmt.Errorf("connect redis: %w", err))
		}
		slog.Warn("redis unavailable, continuing without redis sink", "component", "indengine", "error", err)
	} else {
		redisWriter = w
		opened = append(opened, w)
	}

	switch cfg.BarSource {
	case config.SourceRedis:
		r, err := redisstore.NewReader(redisstore.ReaderConfig{
			Config:        redisCfg,
			ConsumerGroup: cfg.ConsumerGroup,
			ConsumerName:  cfg.ConsumerName,
		})
		if err != nil {
			return fail(fmt.Errorf("connect redis reader: %w", err))
		}
		deps.Source = r
	case config.SourceWS:
		f, err := ws.New(ws.Config{URL: cfg.WSURL})
		if err != nil {
			return fail(err)
		}
		f.OnReconnect = func() { prom.WSReconnects.Inc() }
		f.OnMalformed = func(error) { prom.MalformedInputs.Inc() }
		deps.Source = f
	case config.SourceSQLite:
		deps.Source = &replaySource{replayer: replay.New(sqlReader), speed: cfg.ReplaySpeed, prom: prom}
	default:
		return fail(fmt.Errorf("unknown bar source %q", cfg.BarSource))
	}
	deps.Closers = append(deps.Closers, deps.Source)

	if redisWriter != nil {
		cb := redisstore.NewBreaker(breakerMaxFailures, breakerCoolDown)
		cb.OnStateChange = func(_, to redisstore.BreakerState) {
			prom.RedisCircuitBreakerState.Set(float64(to))
			if to == redisstore.StateOpen {
				prom.RedisCircuitBreakerTrips.Inc()
			}
		}
		bw := redisstore.NewBufferedWriter(redisWriter, cb, redisBufferedLimit)
		bw.OnBuffer = func(n int) { prom.RedisBufferedFrames.Add(float64(n)) }
		bw.OnDrop = func(n int) { prom.FanoutDropsTotal.WithLabelValues("redis").Add(float64(n)) }
		deps.Sinks = append(deps.Sinks, Sink{Name: "redis", Writer: bw})
		deps.Checkpoints = append(deps.Checkpoints, CheckpointStore{Name: "redis", Store: redisWriter})
		deps.Redis = redisWriter.Client()
		// bw closes redisWriter
		deps.Closers = append(deps.Closers, bw)
	}
	if sqlWriter != nil {
		if cfg.BarSource != config.SourceSQLite {
			deps.Bars = sqlWriter
		}
		deps.History = sqlReader
		deps.Sinks = append(deps.Sinks, Sink{Name: "sqlite", Writer: sqlWriter})
		deps.Checkpoints = append(deps.Checkpoints, CheckpointStore{Name: "sqlite", Store: sqlWriter})
		deps.SQLite = sqlWriter.DB()
		deps.Closers = append(deps.Closers, sqlWriter, sqlReader)
	}
	if cfg.HTTPAddr != "" {
		hub := gateway.NewHub()
		hub.OnDrop = func() { prom.FanoutDropsTotal.WithLabelValues("gateway").Inc() }
		deps.Gateway = hub
		deps.Sinks = append(deps.Sinks, Sink{Name: "gateway", Writer: hub})
		deps.Closers = append(deps.Closers, hub)
	}
	return deps, nil
}

// Run restores the engine, starts all subsystems and blocks until ctx is
// cancelled. Bars already taken from the source are processed and a final
// checkpoint is written before Run returns.
func (svc *Service) Run(ctx context.Context) error {
	svc.log.Info("starting indicator service",
		"source", svc.deps.SourceName,
		"symbols", svc.cfg.Symbols,
		"indicators", indicator.FormatSpecs(svc.cfg.Specs),
		"sinks", len(svc.deps.Sinks),
	)

	var sinks sync.WaitGroup
	for _, s := range svc.deps.Sinks {
		ch := svc.fan.Subscribe(s.Name)
		sinks.Add(1)
		go func(s Sink) {
			defer sinks.Done()
			svc.sinkLoop(s, ch)
		}(s)
	}
	go svc.fan.Run(context.Background(), svc.frameCh)

	var persisted sync.WaitGroup
	if svc.barCh != nil {
		persisted.Add(1)
		go func() {
			defer persisted.Done()
			svc.persistLoop(svc.barCh)
		}()
	}

	err := svc.restore(ctx)
	if err == nil {
		svc.health.SetIndicators(specKeys(svc.cfg.Specs))
		if svc.deps.Redis != nil || svc.deps.SQLite != nil {
			svc.health.StartLivenessChecker(ctx, svc.deps.Redis, svc.deps.SQLite, livenessInterval)
		}
		go svc.statsLoop(ctx)
		svc.startConfigSubscriber(ctx)
		stopHTTP := svc.startHTTP()

		srcCh := make(chan model.Bar, sinkBatchSize)
		go svc.consume(ctx, srcCh)
		pumpDone := make(chan struct{})
		go func() {
			defer close(pumpDone)
			svc.pump(ctx, srcCh)
		}()

		svc.log.Info("indicator service running")
		svc.engineLoop(ctx, pumpDone)
		stopHTTP()
	}

	// engineLoop has returned, nothing else writes to these channels
	close(svc.frameCh)
	if svc.barCh != nil {
		close(svc.barCh)
	}
	sinks.Wait()
	persisted.Wait()
	closeAll(svc.deps.Closers)
	svc.log.Info("shutdown complete")
	return err
}

// restore builds the engine from the newest checkpoint and, when enabled,
// replays stored bars the checkpoint does not cover.
func (svc *Service) restore(ctx context.Context) error {
	pos := svc.readCheckpoint(ctx)
	restorer := indicator.NewRestorer(svc.reg, svc.cfg.Specs, svc.deps.History)
	engine, err := restorer.Restore(ctx, pos)
	if err != nil {
		return fmt.Errorf("restore engine: %w", err)
	}
	svc.engine = engine
	defer svc.updateActive()
	if svc.deps.CatchUp {
		n, err := restorer.CatchUp(ctx, engine, svc.cfg.Symbols, func(f model.Frame) {
			svc.prom.ReplayedBars.Inc()
			svc.frameCh <- f
		})
		if err != nil {
			return fmt.Errorf("catch up: %w", err)
		}
		if n > 0 {
			svc.log.Info("caught up from stored bars", "bars", n)
		}
	}
	return svc.seedTimeframes(ctx)
}

// seedTimeframes rebuilds the forming buckets of resampled streams from
// stored base bars. Finalized buckets the engine has already seen are
// dropped by the stale check in process; missed ones are computed.
func (svc *Service) seedTimeframes(ctx context.Context) error {
	if svc.tf == nil || svc.deps.History == nil {
		return nil
	}
	streams := make([]string, 0, len(svc.cfg.Symbols))
	seen := make(map[string]bool)
	for _, s := range append(svc.engine.Streams(), svc.cfg.Symbols...) {
		if !seen[s] && !tfbuilder.IsResampled(s) {
			seen[s] = true
			streams = append(streams, s)
		}
	}
	for _, stream := range streams {
		bars, err := svc.deps.History.ReadBars(ctx, stream, svc.seedFrom(stream))
		if err != nil {
			return fmt.Errorf("seed timeframes %s: %w", stream, err)
		}
		for _, b := range bars {
			b.Forming = false
			svc.tf.Process(b, func(d model.Bar) {
				if !d.Forming {
					svc.process(ctx, d)
				}
			})
		}
	}
	return nil
}

// seedFrom is the oldest last-bar timestamp over the resampled streams of
// stream, or the zero time when one of them has no bars yet.
func (svc *Service) seedFrom(stream string) time.Time {
	var from time.Time
	for i, tf := range svc.tf.TFs() {
		p, ok := svc.engine.Pipeline(tfbuilder.StreamKey(stream, tf))
		if !ok {
			return time.Time{}
		}
		if i == 0 || p.LastTS().Before(from) {
			from = p.LastTS()
		}
	}
	return from
}

// consume runs the source until ctx is cancelled.
func (svc *Service) consume(ctx context.Context, out chan<- model.Bar) {
	svc.health.SetSourceConnected(true)
	defer svc.health.SetSourceConnected(false)
	if err := svc.deps.Source.ConsumeBars(ctx, svc.cfg.Symbols, out); err != nil && !errors.Is(err, context.Canceled) {
		svc.log.Error("bar source stopped", "source", svc.deps.SourceName, "error", err)
	}
}

// statsLoop publishes channel saturation gauges.
func (svc *Service) statsLoop(ctx context.Context) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svc.prom.ChannelSaturationPct.WithLabelValues("ring").Set(percent(svc.ring.Len(), svc.ring.Cap()))
			for _, st := range svc.fan.ChannelStats() {
				svc.prom.ChannelSaturationPct.WithLabelValues(st.Name).Set(percent(st.Len, st.Cap))
			}
		}
	}
}

// Specs returns the active indicator specs.
func (svc *Service) Specs() []indicator.Spec {
	svc.specsMu.RLock()
	defer svc.specsMu.RUnlock()
	return append([]indicator.Spec(nil), svc.specs...)
}

func percent(n, capacity int) float64 {
	if capacity == 0 {
		return 0
	}
	return float64(n) / float64(capacity) * 100
}

func specKeys(specs []indicator.Spec) []string {
	keys := make([]string, len(specs))
	for i, s := range specs {
		keys[i] = s.Key()
	}
	return keys
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			slog.Warn("close failed", "component", "indengine", "error", err)
		}
	}
}

// startHTTP serves /reload, /indicators and /healthz on HTTPAddr and the
// metrics server on MetricsAddr. Empty addresses disable a server. The
// returned func stops both.
func (svc *Service) startHTTP() func() {
	var stops []func(context.Context) error
	if svc.cfg.MetricsAddr != "" {
		ms := metrics.NewServer(svc.cfg.MetricsAddr, svc.health, svc.deps.Gatherer)
		ms.Start()
		stops = append(stops, ms.Stop)
	}
	if svc.cfg.HTTPAddr != "" {
		srv := &http.Server{Addr: svc.cfg.HTTPAddr, Handler: svc.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			svc.log.Info("HTTP server listening", "addr", svc.cfg.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				svc.log.Error("HTTP server error", "error", err)
			}
		}()
		stops = append(stops, srv.Shutdown)
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		for _, stop := range stops {
			_ = stop(ctx)
		}
	}
}
