package indicator

import (
	"indstream/internal/model"
	"indstream/internal/recurrence"
)

// SMMA is the smoothed moving average (Wilder's moving average, RMA, WEMA):
// alpha = 1/period seeded with the SMA of the first period closes.
type SMMA struct {
	meta
	e *recurrence.Exp
}

// NewSMMA creates a new SMMA indicator with the given period.
func NewSMMA(period int) (*SMMA, error) {
	e, err := recurrence.NewWilder(period)
	if err != nil {
		return nil, err
	}
	return &SMMA{meta: newMeta("smma", model.Close, period), e: e}, nil
}

func (s *SMMA) Next(bar model.Bar) (model.Output, error) {
	if err := s.accept(bar); err != nil {
		return model.Unavailable(), err
	}
	v, ok := s.e.Update(bar.Close)
	if !ok {
		return model.Unavailable(), nil
	}
	return s.emit(model.Scalar(v)), nil
}

func (s *SMMA) Clone() Indicator {
	c := *s
	c.e = s.e.Clone()
	return &c
}

// WWS is Welles Wilder's running-sum smoothing of closes.
type WWS struct {
	meta
	w *recurrence.WWS
}

// NewWWS creates a new WWS indicator with the given period.
func NewWWS(period int) (*WWS, error) {
	w, err := recurrence.NewWWS(period)
	if err != nil {
		return nil, err
	}
	return &WWS{meta: newMeta("wws", model.Close, period), w: w}, nil
}

func (w *WWS) Next(bar model.Bar) (model.Output, error) {
	if err := w.accept(bar); err != nil {
		return model.Unavailable(), err
	}
	v, ok := w.w.Update(bar.Close)
	if !ok {
		return model.Unavailable(), nil
	}
	return w.emit(model.Scalar(v)), nil
}

func (w *WWS) Clone() Indicator {
	c := *w
	c.w = w.w.Clone()
	return &c
}
