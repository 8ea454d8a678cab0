package indicator

import (
	"indstream/internal/model"
	"indstream/internal/recurrence"
)

// Chaikin is the Chaikin oscillator: EMA(fast) - EMA(slow) of the
// accumulation/distribution line. A bar with high == low adds no flow.
type Chaikin struct {
	meta
	adl  float64
	fast *recurrence.Exp
	slow *recurrence.Exp
}

// NewChaikin creates a Chaikin oscillator (typically 3, 10).
func NewChaikin(fast, slow int) (*Chaikin, error) {
	if err := periodErr("chaikin", "fast", fast); err != nil {
		return nil, err
	}
	if slow <= fast {
		return nil, configErr("chaikin", "slow", slow, "must be greater than fast")
	}
	f, _ := recurrence.NewEMA(fast)
	s, _ := recurrence.NewEMA(slow)
	return &Chaikin{meta: newMeta("chaikin", model.HLCV, slow), fast: f, slow: s}, nil
}

func (c *Chaikin) Next(bar model.Bar) (model.Output, error) {
	if err := c.accept(bar); err != nil {
		return model.Unavailable(), err
	}
	if rng := bar.High - bar.Low; rng != 0 {
		c.adl += ((bar.Close - bar.Low) - (bar.High - bar.Close)) / rng * bar.Volume
	}
	f, _ := c.fast.Update(c.adl)
	s, ok := c.slow.Update(c.adl)
	if !ok {
		return model.Unavailable(), nil
	}
	return c.emit(model.Scalar(f - s)), nil
}

// ADL returns the accumulation/distribution line so far.
func (c *Chaikin) ADL() float64 { return c.adl }

func (c *Chaikin) Clone() Indicator {
	cp := *c
	cp.fast = c.fast.Clone()
	cp.slow = c.slow.Clone()
	return &cp
}
