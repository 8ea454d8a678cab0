package indicator

import (
	"math"

	"indstream/internal/model"
	"indstream/internal/recurrence"
)

// trueRange tracks the previous close needed for the true range. The first
// bar has no previous close, so its range is high - low.
type trueRange struct {
	prevClose float64
	hasPrev   bool
}

func (t *trueRange) update(bar model.Bar) float64 {
	tr := bar.High - bar.Low
	if t.hasPrev {
		tr = math.Max(tr, math.Max(math.Abs(bar.High-t.prevClose), math.Abs(bar.Low-t.prevClose)))
	}
	t.prevClose, t.hasPrev = bar.Close, true
	return tr
}

// ATR is the Average True Range, Wilder smoothed and seeded with the SMA of
// the first period true ranges.
type ATR struct {
	meta
	tr trueRange
	w  *recurrence.Exp
}

// NewATR creates a new ATR indicator with the given period.
func NewATR(period int) (*ATR, error) {
	w, err := recurrence.NewWilder(period)
	if err != nil {
		return nil, err
	}
	return &ATR{meta: newMeta("atr", model.HLC, period), w: w}, nil
}

func (a *ATR) Next(bar model.Bar) (model.Output, error) {
	if err := a.accept(bar); err != nil {
		return model.Unavailable(), err
	}
	v, ok := a.w.Update(a.tr.update(bar))
	if !ok {
		return model.Unavailable(), nil
	}
	return a.emit(model.Scalar(v)), nil
}

func (a *ATR) Clone() Indicator {
	c := *a
	c.w = a.w.Clone()
	return &c
}
