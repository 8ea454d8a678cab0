package indicator

import (
	"math"

	"indstream/internal/model"
	"indstream/internal/recurrence"
)

// neutralK is emitted for raw %K when the lookback range is zero.
const neutralK = 50

// stochSmoother turns raw %K into smoothed %K (SMA k) and %D (SMA d).
type stochSmoother struct {
	k *recurrence.SMA
	d *recurrence.SMA
}

func newStochSmoother(name string, k, d int) (stochSmoother, error) {
	if err := periodErr(name, "k", k); err != nil {
		return stochSmoother{}, err
	}
	if err := periodErr(name, "d", d); err != nil {
		return stochSmoother{}, err
	}
	ks, _ := recurrence.NewSMA(k)
	ds, _ := recurrence.NewSMA(d)
	return stochSmoother{k: ks, d: ds}, nil
}

func (s stochSmoother) update(raw float64) (k, d float64, ok bool) {
	k, ok = s.k.Update(clampPct(raw))
	if !ok {
		return 0, 0, false
	}
	k = clampPct(k)
	d, ok = s.d.Update(k)
	return k, clampPct(d), ok
}

// clampPct keeps averaged percentages inside [0, 100].
func clampPct(v float64) float64 {
	return math.Min(100, math.Max(0, v))
}

func (s stochSmoother) clone() stochSmoother {
	return stochSmoother{k: s.k.Clone(), d: s.d.Clone()}
}

func rawK(x, lo, hi float64) float64 {
	if hi == lo {
		return neutralK
	}
	return 100 * (x - lo) / (hi - lo)
}

// Stochastic is the slow stochastic oscillator: raw %K over period bars,
// smoothed %K = SMA(raw, k), %D = SMA(%K, d).
type Stochastic struct {
	meta
	highs  *recurrence.MinMax
	lows   *recurrence.MinMax
	smooth stochSmoother
}

// NewStochastic creates a stochastic oscillator (typically 14, 3, 3).
func NewStochastic(period, k, d int) (*Stochastic, error) {
	if err := periodErr("stochastic", "period", period); err != nil {
		return nil, err
	}
	smooth, err := newStochSmoother("stochastic", k, d)
	if err != nil {
		return nil, err
	}
	highs, _ := recurrence.NewMinMax(period)
	lows, _ := recurrence.NewMinMax(period)
	return &Stochastic{
		meta:   newMeta("stochastic", model.HLC, period+k+d-2, "k", "d"),
		highs:  highs,
		lows:   lows,
		smooth: smooth,
	}, nil
}

func (s *Stochastic) Next(bar model.Bar) (model.Output, error) {
	if err := s.accept(bar); err != nil {
		return model.Unavailable(), err
	}
	s.highs.Update(bar.High)
	s.lows.Update(bar.Low)
	if !s.highs.Ready() {
		return model.Unavailable(), nil
	}
	hi, _ := s.highs.Max()
	lo, _ := s.lows.Min()
	k, d, ok := s.smooth.update(rawK(bar.Close, lo, hi))
	if !ok {
		return model.Unavailable(), nil
	}
	return s.emit(model.Tuple(k, d)), nil
}

func (s *Stochastic) Clone() Indicator {
	c := *s
	c.highs = s.highs.Clone()
	c.lows = s.lows.Clone()
	c.smooth = s.smooth.clone()
	return &c
}

// StochRSI applies the stochastic oscillator to RSI values instead of price.
type StochRSI struct {
	meta
	rsi    *rsiCore
	window *recurrence.MinMax
	smooth stochSmoother
}

// NewStochRSI creates a stochastic RSI (typically 14, 14, 3, 3).
func NewStochRSI(rsiPeriod, stochPeriod, k, d int) (*StochRSI, error) {
	if err := periodErr("stochrsi", "rsi", rsiPeriod); err != nil {
		return nil, err
	}
	if err := periodErr("stochrsi", "stoch", stochPeriod); err != nil {
		return nil, err
	}
	smooth, err := newStochSmoother("stochrsi", k, d)
	if err != nil {
		return nil, err
	}
	rsi, _ := newRSICore(rsiPeriod)
	window, _ := recurrence.NewMinMax(stochPeriod)
	return &StochRSI{
		meta:   newMeta("stochrsi", model.Close, rsiPeriod+stochPeriod+k+d-2, "k", "d"),
		rsi:    rsi,
		window: window,
		smooth: smooth,
	}, nil
}

func (s *StochRSI) Next(bar model.Bar) (model.Output, error) {
	if err := s.accept(bar); err != nil {
		return model.Unavailable(), err
	}
	r, ok := s.rsi.update(bar.Close)
	if !ok {
		return model.Unavailable(), nil
	}
	s.window.Update(r)
	if !s.window.Ready() {
		return model.Unavailable(), nil
	}
	hi, _ := s.window.Max()
	lo, _ := s.window.Min()
	k, d, ok := s.smooth.update(rawK(r, lo, hi))
	if !ok {
		return model.Unavailable(), nil
	}
	return s.emit(model.Tuple(k, d)), nil
}

func (s *StochRSI) Clone() Indicator {
	c := *s
	c.rsi = s.rsi.clone()
	c.window = s.window.Clone()
	c.smooth = s.smooth.clone()
	return &c
}
