package indicator

import (
	"math"
	"strings"

	"indstream/internal/model"
	"indstream/internal/recurrence"
)

// Smoothing selects how SuperTrend averages the true range.
type Smoothing string

const (
	SmoothSMA    Smoothing = "sma"
	SmoothWilder Smoothing = "wilder"
	SmoothEMA    Smoothing = "ema"
)

// ParseSmoothing accepts sma, ema and wilder (also rma or smma), in any case.
func ParseSmoothing(s string) (Smoothing, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sma", "":
		return SmoothSMA, true
	case "ema":
		return SmoothEMA, true
	case "wilder", "rma", "smma":
		return SmoothWilder, true
	}
	return "", false
}

// SuperTrend is an ATR band trailing stop. Basic bands sit at
// hl2 +- multiplier*ATR; the final upper band only ever moves down and the
// final lower band only up while price stays inside them. The trend flips
// when close crosses the active final band.
type SuperTrend struct {
	meta
	mult float64
	tr   trueRange
	sma  *recurrence.SMA
	exp  *recurrence.Exp

	upper, lower float64
	prevClose    float64
	dir          float64
}

// NewSuperTrend creates a SuperTrend (typically 14, 3, "sma").
func NewSuperTrend(period int, mult float64, smoothing Smoothing) (*SuperTrend, error) {
	if err := periodErr("supertrend", "period", period); err != nil {
		return nil, err
	}
	if !(mult > 0) || math.IsInf(mult, 0) {
		return nil, configErr("supertrend", "multiplier", mult, "must be > 0")
	}
	st := &SuperTrend{meta: newMeta("supertrend", model.HLC, period, "supertrend", "direction"), mult: mult}
	switch smoothing {
	case SmoothSMA:
		st.sma, _ = recurrence.NewSMA(period)
	case SmoothEMA:
		st.exp, _ = recurrence.NewEMA(period)
	case SmoothWilder:
		st.exp, _ = recurrence.NewWilder(period)
	default:
		return nil, configErr("supertrend", "smoothing", string(smoothing), "must be sma, ema or wilder")
	}
	return st, nil
}

func (s *SuperTrend) Next(bar model.Bar) (model.Output, error) {
	if err := s.accept(bar); err != nil {
		return model.Unavailable(), err
	}
	tr := s.tr.update(bar)
	var atr float64
	var ok bool
	if s.sma != nil {
		atr, ok = s.sma.Update(tr)
	} else {
		atr, ok = s.exp.Update(tr)
	}
	if !ok {
		s.prevClose = bar.Close
		return model.Unavailable(), nil
	}

	hl2 := (bar.High + bar.Low) / 2
	basicUpper := hl2 + s.mult*atr
	basicLower := hl2 - s.mult*atr

	if s.dir == 0 {
		s.upper, s.lower = basicUpper, basicLower
		s.dir = -1
		if bar.Close > hl2 {
			s.dir = 1
		}
	} else {
		if basicUpper < s.upper || s.prevClose > s.upper {
			s.upper = basicUpper
		}
		if basicLower > s.lower || s.prevClose < s.lower {
			s.lower = basicLower
		}
		switch {
		case s.dir < 0 && bar.Close > s.upper:
			s.dir = 1
		case s.dir > 0 && bar.Close < s.lower:
			s.dir = -1
		}
	}
	s.prevClose = bar.Close

	line := s.upper
	if s.dir > 0 {
		line = s.lower
	}
	return s.emit(model.Tuple(line, s.dir)), nil
}

func (s *SuperTrend) Clone() Indicator {
	c := *s
	if s.sma != nil {
		c.sma = s.sma.Clone()
	}
	if s.exp != nil {
		c.exp = s.exp.Clone()
	}
	return &c
}
