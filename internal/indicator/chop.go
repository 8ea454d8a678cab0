package indicator

import (
	"math"

	"indstream/internal/model"
	"indstream/internal/recurrence"
)

// Choppiness is the Choppiness Index:
//
//	100 * log10(sum(TR, n) / (highest high - lowest low)) / log10(n)
//
// A flat window has no range; that bar is Unavailable.
type Choppiness struct {
	meta
	tr     trueRange
	sum    *recurrence.SMA
	highs  *recurrence.MinMax
	lows   *recurrence.MinMax
	logN   float64
	policy undefined
}

// NewChoppiness creates a Choppiness Index (typically 14). The period must
// be at least 2.
func NewChoppiness(period int) (*Choppiness, error) {
	if period < 2 {
		return nil, configErr("chop", "period", period, "must be >= 2")
	}
	sum, _ := recurrence.NewSMA(period)
	highs, _ := recurrence.NewMinMax(period)
	lows, _ := recurrence.NewMinMax(period)
	return &Choppiness{
		meta:   newMeta("chop", model.HLC, period),
		sum:    sum,
		highs:  highs,
		lows:   lows,
		logN:   math.Log10(float64(period)),
		policy: undefined{policy: EmitUnavailable},
	}, nil
}

func (c *Choppiness) Next(bar model.Bar) (model.Output, error) {
	if err := c.accept(bar); err != nil {
		return model.Unavailable(), err
	}
	c.sum.Update(c.tr.update(bar))
	c.highs.Update(bar.High)
	c.lows.Update(bar.Low)
	if c.warming() {
		return model.Unavailable(), nil
	}
	hi, _ := c.highs.Max()
	lo, _ := c.lows.Min()
	if hi == lo {
		return c.policy.resolve(model.Output{}, false), nil
	}
	v := 100 * math.Log10(c.sum.Sum()/(hi-lo)) / c.logN
	return c.policy.resolve(model.Scalar(v), true), nil
}

func (c *Choppiness) Clone() Indicator {
	cp := *c
	cp.sum = c.sum.Clone()
	cp.highs = c.highs.Clone()
	cp.lows = c.lows.Clone()
	cp.policy = c.policy.clone()
	return &cp
}
