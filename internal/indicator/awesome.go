package indicator

import (
	"indstream/internal/model"
	"indstream/internal/recurrence"
)

// Awesome is Bill Williams' Awesome Oscillator: SMA(fast) - SMA(slow) of the
// bar midpoint (H+L)/2.
type Awesome struct {
	meta
	fast *recurrence.SMA
	slow *recurrence.SMA
}

// NewAwesome creates an Awesome Oscillator (typically 5, 34).
func NewAwesome(fast, slow int) (*Awesome, error) {
	f, s, err := awesomeSMAs("ao", fast, slow)
	if err != nil {
		return nil, err
	}
	return &Awesome{meta: newMeta("ao", model.HL, slow), fast: f, slow: s}, nil
}

func awesomeSMAs(name string, fast, slow int) (*recurrence.SMA, *recurrence.SMA, error) {
	if err := periodErr(name, "fast", fast); err != nil {
		return nil, nil, err
	}
	if slow <= fast {
		return nil, nil, configErr(name, "slow", slow, "must be greater than fast")
	}
	f, _ := recurrence.NewSMA(fast)
	s, _ := recurrence.NewSMA(slow)
	return f, s, nil
}

func (a *Awesome) update(bar model.Bar) (float64, bool) {
	mid := (bar.High + bar.Low) / 2
	f, _ := a.fast.Update(mid)
	s, ok := a.slow.Update(mid)
	return f - s, ok
}

func (a *Awesome) Next(bar model.Bar) (model.Output, error) {
	if err := a.accept(bar); err != nil {
		return model.Unavailable(), err
	}
	v, ok := a.update(bar)
	if !ok {
		return model.Unavailable(), nil
	}
	return a.emit(model.Scalar(v)), nil
}

func (a *Awesome) Clone() Indicator {
	c := *a
	c.fast = a.fast.Clone()
	c.slow = a.slow.Clone()
	return &c
}

// Accelerator is the Accelerator Oscillator: AO - SMA(AO, signal).
type Accelerator struct {
	meta
	ao     *Awesome
	signal *recurrence.SMA
}

// NewAccelerator creates an Accelerator Oscillator (typically 5, 34, 5).
func NewAccelerator(fast, slow, signal int) (*Accelerator, error) {
	f, s, err := awesomeSMAs("ac", fast, slow)
	if err != nil {
		return nil, err
	}
	sig, err := recurrence.NewSMA(signal)
	if err != nil {
		return nil, configErr("ac", "signal", signal, "must be > 0")
	}
	return &Accelerator{
		meta:   newMeta("ac", model.HL, slow+signal-1),
		ao:     &Awesome{meta: newMeta("ao", model.HL, slow), fast: f, slow: s},
		signal: sig,
	}, nil
}

func (a *Accelerator) Next(bar model.Bar) (model.Output, error) {
	if err := a.accept(bar); err != nil {
		return model.Unavailable(), err
	}
	ao, ok := a.ao.update(bar)
	if !ok {
		return model.Unavailable(), nil
	}
	sig, ok := a.signal.Update(ao)
	if !ok {
		return model.Unavailable(), nil
	}
	return a.emit(model.Scalar(ao - sig)), nil
}

func (a *Accelerator) Clone() Indicator {
	c := *a
	c.ao = a.ao.Clone().(*Awesome)
	c.signal = a.signal.Clone()
	return &c
}
