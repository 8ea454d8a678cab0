package recurrence

import "indstream/internal/model"

// Exp is exponential smoothing, next = alpha*x + (1-alpha)*prev.
//
// With seedN <= 1 the first input seeds prev and a value is available
// immediately. Otherwise the first value is the SMA of the first seedN
// inputs and nothing is emitted before that.
type Exp struct {
	alpha float64
	seedN int
	count int
	sum   float64
	value float64
}

// NewExp creates an exponential smoother. alpha must lie in (0, 1].
func NewExp(alpha float64, seedN int) (*Exp, error) {
	if !(alpha > 0 && alpha <= 1) {
		return nil, &model.ConfigError{Indicator: "exp", Param: "alpha", Value: alpha, Reason: "must be in (0,1]"}
	}
	if seedN < 1 {
		seedN = 1
	}
	return &Exp{alpha: alpha, seedN: seedN}, nil
}

// NewEWMA seeds with the first input.
func NewEWMA(alpha float64) (*Exp, error) { return NewExp(alpha, 1) }

// NewEMA uses alpha = 2/(n+1) seeded by SMA(n).
func NewEMA(n int) (*Exp, error) {
	if err := checkPeriod("ema", "n", n); err != nil {
		return nil, err
	}
	return NewExp(2/float64(n+1), n)
}

// NewWilder uses alpha = 1/n seeded by SMA(n) (SMMA, RMA).
func NewWilder(n int) (*Exp, error) {
	if err := checkPeriod("wilder", "n", n); err != nil {
		return nil, err
	}
	return NewExp(1/float64(n), n)
}

// Update feeds x and returns the smoothed value once seeded.
func (e *Exp) Update(x float64) (float64, bool) {
	e.count++
	if e.count < e.seedN {
		e.sum += x
		return 0, false
	}
	if e.count == e.seedN {
		e.sum += x
		e.value = e.sum / float64(e.seedN)
		return e.value, true
	}
	e.value = e.alpha*x + (1-e.alpha)*e.value
	return e.value, true
}

// Peek returns what Update(x) would return without changing state.
func (e *Exp) Peek(x float64) (float64, bool) {
	c := *e
	return c.Update(x)
}

// Value returns the current smoothed value.
func (e *Exp) Value() (float64, bool) { return e.value, e.Ready() }

// Ready reports whether the seed period has completed.
func (e *Exp) Ready() bool { return e.count >= e.seedN }

// Alpha returns the smoothing factor.
func (e *Exp) Alpha() float64 { return e.alpha }

func (e *Exp) Clone() *Exp {
	c := *e
	return &c
}
