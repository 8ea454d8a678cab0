package indicator

import (
	"math"

	"indstream/internal/model"
	"indstream/internal/recurrence"
)

// cciScale is Lambert's constant, putting most values within +-100.
const cciScale = 0.015

// CCI is the Commodity Channel Index of the typical price (H+L+C)/3.
// The mean deviation needs a pass over the window, so Next is O(period).
// A zero mean deviation yields 0.
type CCI struct {
	meta
	tp *recurrence.SMA
}

// NewCCI creates a CCI (typically 20).
func NewCCI(period int) (*CCI, error) {
	tp, err := recurrence.NewSMA(period)
	if err != nil {
		return nil, err
	}
	return &CCI{meta: newMeta("cci", model.HLC, period), tp: tp}, nil
}

func (c *CCI) Next(bar model.Bar) (model.Output, error) {
	if err := c.accept(bar); err != nil {
		return model.Unavailable(), err
	}
	tp := (bar.High + bar.Low + bar.Close) / 3
	mean, ok := c.tp.Update(tp)
	if !ok {
		return model.Unavailable(), nil
	}
	var dev float64
	c.tp.Window().Each(func(v float64) { dev += math.Abs(v - mean) })
	dev /= float64(c.tp.Period())
	if dev == 0 {
		return c.emit(model.Scalar(0)), nil
	}
	return c.emit(model.Scalar((tp - mean) / (cciScale * dev))), nil
}

func (c *CCI) Clone() Indicator {
	cp := *c
	cp.tp = c.tp.Clone()
	return &cp
}
