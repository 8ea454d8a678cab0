package indicator

import (
	"indstream/internal/model"
	"indstream/internal/ringbuf"
)

// ROC is the percentage rate of change of close over period bars. A zero
// base close leaves the value undefined.
type ROC struct {
	meta
	closes *ringbuf.Window
	policy undefined
}

// NewROC creates a new ROC indicator with the given period.
func NewROC(period int) (*ROC, error) {
	if err := periodErr("roc", "period", period); err != nil {
		return nil, err
	}
	w, err := ringbuf.NewWindow(period + 1)
	if err != nil {
		return nil, err
	}
	return &ROC{
		meta:   newMeta("roc", model.Close, period+1),
		closes: w,
		policy: undefined{policy: EmitUnavailable},
	}, nil
}

func (r *ROC) Next(bar model.Bar) (model.Output, error) {
	if err := r.accept(bar); err != nil {
		return model.Unavailable(), err
	}
	r.closes.Push(bar.Close)
	if !r.closes.Full() {
		return model.Unavailable(), nil
	}
	base := r.closes.Oldest()
	if base == 0 {
		return r.policy.resolve(model.Output{}, false), nil
	}
	return r.policy.resolve(model.Scalar((bar.Close-base)/base*100), true), nil
}

func (r *ROC) Clone() Indicator {
	c := *r
	c.closes = r.closes.Clone()
	c.policy = r.policy.clone()
	return &c
}
