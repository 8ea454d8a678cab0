package indengine

import (
	"context"
	"time"

	"indstream/internal/logger"
	"indstream/internal/marketdata/replay"
	"indstream/internal/metrics"
	"indstream/internal/model"
)

const (
	ringRetryDelay = 200 * time.Microsecond
	sinkTimeout    = 5 * time.Second
)

// pump moves bars from the source channel into the ring. A full ring
// blocks the source instead of dropping bars. Bars still buffered in in
// when ctx is cancelled are pushed before pump returns.
func (svc *Service) pump(ctx context.Context, in <-chan model.Bar) {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case b := <-in:
					svc.push(b)
				default:
					return
				}
			}
		case b := <-in:
			svc.push(b)
		}
	}
}

func (svc *Service) push(b model.Bar) {
	if !svc.ring.Push(b) {
		svc.prom.RingBufOverflow.Inc()
		for !svc.ring.Push(b) {
			svc.signal()
			time.Sleep(ringRetryDelay)
		}
	}
	svc.signal()
}

// signal wakes the engine goroutine without blocking.
func (svc *Service) signal() {
	select {
	case svc.wake <- struct{}{}:
	default:
	}
}

// engineLoop is the only goroutine that touches the engine once Run is
// live: bars, checkpoints and reloads are serialized here.
func (svc *Service) engineLoop(ctx context.Context, pumpDone <-chan struct{}) {
	ticker := time.NewTicker(svc.cfg.CheckpointInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			<-pumpDone
			svc.drain(ctx)
			svc.log.Info("shutdown signal received, saving final checkpoint")
			shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			svc.checkpoint(shutCtx)
			cancel()
			return
		case <-svc.wake:
			svc.drain(ctx)
		case <-ticker.C:
			svc.checkpoint(ctx)
		case req := <-svc.reloads:
			req.reply <- svc.applyReload(req.specs)
		}
	}
}

// drain processes every bar currently in the ring.
func (svc *Service) drain(ctx context.Context) {
	for {
		b, ok := svc.ring.Pop()
		if !ok {
			return
		}
		svc.handleBar(ctx, b)
	}
}

// handleBar runs one bar from the source through the engine and, when
// timeframes are configured, through the resampler.
func (svc *Service) handleBar(ctx context.Context, b model.Bar) {
	if !svc.process(ctx, b) || svc.tf == nil || b.Forming {
		return
	}
	svc.tf.Process(b, func(d model.Bar) { svc.process(ctx, d) })
}

// process computes one bar and hands the frame to the sinks. Confirmed bars
// at or before the stream's last timestamp are redeliveries: they are
// dropped and process returns false. A bar every indicator rejected is
// reported but neither stored nor resampled, and process returns false.
func (svc *Service) process(ctx context.Context, b model.Bar) bool {
	if b.Forming {
		svc.peek(b)
		return true
	}
	stream := b.Key()
	p, known := svc.engine.Pipeline(stream)
	if known && !b.TS.After(p.LastTS()) {
		svc.prom.RejectedBars.Inc()
		svc.log.Debug("dropping stale bar", "stream", stream, "ts", b.TS, "last_ts", p.LastTS())
		return false
	}
	start := time.Now()
	frame := svc.engine.Process(b)
	svc.prom.IndicatorComputeDur.Observe(time.Since(start).Seconds())
	rejected := frame.Rejected()
	if svc.barCh != nil && !rejected {
		svc.barCh <- b
	}
	svc.prom.BarsTotal.WithLabelValues(svc.deps.SourceName).Inc()
	svc.prom.BarLag.Set(time.Since(b.TS).Seconds())
	svc.prom.ObserveFrame(&frame)
	svc.health.SetLastBarTime(b.TS)
	if !known {
		svc.updateActive()
	}

	if errs := frame.Errors(); len(errs) > 0 {
		tctx := logger.WithTraceID(ctx, logger.GenerateTraceID(stream, b.TS))
		l := logger.FromContext(tctx, svc.log)
		for name, err := range errs {
			l.Warn("indicator rejected bar", "indicator", name, "seq", frame.Seq, "kind", metrics.ErrorKind(err), "error", err)
		}
	}
	svc.frameCh <- frame
	return !rejected
}

// updateActive sets the active indicator instance gauge.
func (svc *Service) updateActive() {
	svc.prom.IndicatorsActive.Set(float64(len(svc.engine.Streams()) * len(svc.engine.Specs())))
}

// sinkLoop writes frames to one sink in batches until ch is closed.
func (svc *Service) sinkLoop(s Sink, ch <-chan model.Frame) {
	batch := make([]model.Frame, 0, sinkBatchSize)
	for f := range ch {
		batch = collect(append(batch[:0], f), ch, sinkBatchSize)

		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		start := time.Now()
		err := s.Writer.WriteFrames(ctx, batch)
		cancel()
		svc.prom.SinkWriteDur.WithLabelValues(s.Name).Observe(time.Since(start).Seconds())
		if err != nil {
			svc.prom.SinkErrors.WithLabelValues(s.Name).Inc()
			svc.log.Warn("sink write failed", "sink", s.Name, "frames", len(batch), "error", err)
		}
	}
}

// persistLoop stores confirmed bars until ch is closed.
func (svc *Service) persistLoop(ch <-chan model.Bar) {
	batch := make([]model.Bar, 0, sinkBatchSize)
	for b := range ch {
		batch = collect(append(batch[:0], b), ch, sinkBatchSize)

		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		start := time.Now()
		err := svc.deps.Bars.WriteBars(ctx, batch)
		cancel()
		svc.prom.SinkWriteDur.WithLabelValues("bars").Observe(time.Since(start).Seconds())
		if err != nil {
			svc.prom.SinkErrors.WithLabelValues("bars").Inc()
			svc.log.Warn("bar persist failed", "bars", len(batch), "error", err)
		}
	}
}

// collect appends values already waiting in ch, up to limit in total.
func collect[T any](batch []T, ch <-chan T, limit int) []T {
	for len(batch) < limit {
		select {
		case v, ok := <-ch:
			if !ok {
				return batch
			}
			batch = append(batch, v)
		default:
			return batch
		}
	}
	return batch
}

// replaySource serves stored bars as a bar source, then idles until ctx
// is cancelled.
type replaySource struct {
	replayer *replay.Replayer
	speed    float64
	prom     *metrics.Metrics
}

func (s *replaySource) ConsumeBars(ctx context.Context, symbols []string, out chan<- model.Bar) error {
	n, err := s.replayer.Run(ctx, symbols, time.Time{}, s.speed, out)
	if s.prom != nil {
		s.prom.ReplayedBars.Add(float64(n))
	}
	if err != nil {
		return err
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *replaySource) Close() error { return nil }
