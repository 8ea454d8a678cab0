// Package metrics exposes the engine's Prometheus metrics and the /healthz
// endpoint.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"indstream/internal/model"
)

// Metrics holds all Prometheus metrics of the indicator service.
type Metrics struct {
	BarsTotal       *prometheus.CounterVec // labels: source
	LiveBarsTotal   prometheus.Counter
	RejectedBars    prometheus.Counter
	BarLag          prometheus.Gauge
	WSReconnects    prometheus.Counter
	ReplayedBars    prometheus.Counter
	MalformedInputs prometheus.Counter

	// Engine
	IndicatorComputeDur prometheus.Histogram
	IndicatorsTotal     prometheus.Counter
	IndicatorErrors     *prometheus.CounterVec // labels: indicator, kind
	IndicatorsActive    prometheus.Gauge
	ReloadsTotal        *prometheus.CounterVec // labels: result

	// Ring buffer and fan-out backpressure
	RingBufOverflow      prometheus.Counter
	FanoutDropsTotal     *prometheus.CounterVec // labels: subscriber
	ChannelSaturationPct *prometheus.GaugeVec   // labels: channel_name

	// Sinks
	SinkWriteDur     *prometheus.HistogramVec // labels: sink
	SinkErrors       *prometheus.CounterVec   // labels: sink
	CheckpointsTotal *prometheus.CounterVec   // labels: store, result

	// Redis circuit breaker
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter
	RedisBufferedFrames      prometheus.Counter
}

var computeBuckets = []float64{0.000001, 0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005}

// NewMetrics creates the metrics and registers them with reg
// (prometheus.DefaultRegisterer when nil).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		BarsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indstream_bars_total",
			Help: "Closed bars processed, by source",
		}, []string{"source"}),
		LiveBarsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indstream_live_bars_total",
			Help: "Forming bars peeked without advancing state",
		}),
		RejectedBars: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indstream_rejected_bars_total",
			Help: "Bars rejected before reaching the engine (out of order or duplicate)",
		}),
		BarLag: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "indstream_bar_lag_seconds",
			Help: "Lag between the last bar timestamp and its processing time",
		}),
		WSReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indstream_ws_reconnects_total",
			Help: "WebSocket feed reconnections",
		}),
		ReplayedBars: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indstream_replayed_bars_total",
			Help: "Stored bars replayed during restore and catch-up",
		}),
		MalformedInputs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indstream_malformed_inputs_total",
			Help: "Source messages that could not be decoded",
		}),

		IndicatorComputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "indstream_indicator_compute_duration_seconds",
			Help:    "Engine compute latency per bar (all subscribed indicators)",
			Buckets: computeBuckets,
		}),
		IndicatorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indstream_indicators_total",
			Help: "Indicator values computed",
		}),
		IndicatorErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indstream_indicator_errors_total",
			Help: "Per-bar indicator errors, by indicator and kind",
		}, []string{"indicator", "kind"}),
		IndicatorsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "indstream_indicators_active",
			Help: "Subscribed indicators per stream",
		}),
		ReloadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indstream_reloads_total",
			Help: "Indicator set reloads, by result",
		}, []string{"result"}),

		RingBufOverflow: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indstream_ringbuf_overflow_total",
			Help: "Ring buffer push overflows (source blocked on a full ring)",
		}),
		FanoutDropsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indstream_fanout_drops_total",
			Help: "Frames dropped by the fan-out bus per subscriber",
		}, []string{"subscriber"}),
		ChannelSaturationPct: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "indstream_channel_saturation_pct",
			Help: "Channel fill percentage (len/cap * 100)",
		}, []string{"channel_name"}),

		SinkWriteDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "indstream_sink_write_duration_seconds",
			Help:    "Frame sink write latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"sink"}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indstream_sink_errors_total",
			Help: "Frame sink write failures",
		}, []string{"sink"}),
		CheckpointsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indstream_checkpoints_total",
			Help: "Checkpoint saves, by store and result",
		}, []string{"store", "result"}),

		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "indstream_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indstream_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
		RedisBufferedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indstream_redis_buffered_frames_total",
			Help: "Frames buffered locally while the Redis circuit breaker was open",
		}),
	}

	reg.MustRegister(
		m.BarsTotal,
		m.LiveBarsTotal,
		m.RejectedBars,
		m.BarLag,
		m.WSReconnects,
		m.ReplayedBars,
		m.MalformedInputs,
		m.IndicatorComputeDur,
		m.IndicatorsTotal,
		m.IndicatorErrors,
		m.IndicatorsActive,
		m.ReloadsTotal,
		m.RingBufOverflow,
		m.FanoutDropsTotal,
		m.ChannelSaturationPct,
		m.SinkWriteDur,
		m.SinkErrors,
		m.CheckpointsTotal,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
		m.RedisBufferedFrames,
	)
	return m
}

// ObserveFrame counts the values and errors of one confirmed frame.
func (m *Metrics) ObserveFrame(f *model.Frame) {
	for i := range f.Results {
		r := &f.Results[i]
		if r.Err != nil {
			m.IndicatorErrors.WithLabelValues(r.Name, ErrorKind(r.Err)).Inc()
			continue
		}
		if r.Output.Ready {
			m.IndicatorsTotal.Inc()
		}
	}
}

// ErrorKind classifies an engine error for the "kind" label.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, model.ErrData):
		return "data"
	case errors.Is(err, model.ErrConfig):
		return "config"
	case errors.Is(err, model.ErrUnknownIndicator):
		return "unknown"
	default:
		return "other"
	}
}
