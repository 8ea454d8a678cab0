package indicator

import (
	"indstream/internal/model"
	"indstream/internal/recurrence"
)

// EMA is the exponential moving average, alpha = 2/(period+1), seeded with
// the SMA of the first period closes.
type EMA struct {
	meta
	e *recurrence.Exp
}

// NewEMA creates a new EMA indicator with the given period.
func NewEMA(period int) (*EMA, error) {
	e, err := recurrence.NewEMA(period)
	if err != nil {
		return nil, err
	}
	return &EMA{meta: newMeta("ema", model.Close, period), e: e}, nil
}

// NewEWMA creates an exponentially weighted moving average with an explicit
// alpha. The first close seeds it, so it is ready from the first bar.
func NewEWMA(alpha float64) (*EMA, error) {
	e, err := recurrence.NewEWMA(alpha)
	if err != nil {
		return nil, &model.ConfigError{Indicator: "ewma", Param: "alpha", Value: alpha, Reason: "must be in (0,1]"}
	}
	return &EMA{meta: newMeta("ewma", model.Close, 1), e: e}, nil
}

func (e *EMA) Next(bar model.Bar) (model.Output, error) {
	if err := e.accept(bar); err != nil {
		return model.Unavailable(), err
	}
	v, ok := e.e.Update(bar.Close)
	if !ok {
		return model.Unavailable(), nil
	}
	return e.emit(model.Scalar(v)), nil
}

func (e *EMA) Clone() Indicator {
	c := *e
	c.e = e.e.Clone()
	return &c
}
