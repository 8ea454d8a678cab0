package indicator

import (
	"indstream/internal/model"
	"indstream/internal/recurrence"
)

// SMA is the simple moving average of closes over a rolling window.
type SMA struct {
	meta
	s *recurrence.SMA
}

// NewSMA creates a new SMA indicator with the given period.
func NewSMA(period int) (*SMA, error) {
	s, err := recurrence.NewSMA(period)
	if err != nil {
		return nil, err
	}
	return &SMA{meta: newMeta("sma", model.Close, period), s: s}, nil
}

func (s *SMA) Next(bar model.Bar) (model.Output, error) {
	if err := s.accept(bar); err != nil {
		return model.Unavailable(), err
	}
	v, ok := s.s.Update(bar.Close)
	if !ok {
		return model.Unavailable(), nil
	}
	return s.emit(model.Scalar(v)), nil
}

func (s *SMA) Clone() Indicator {
	c := *s
	c.s = s.s.Clone()
	return &c
}

// WMA is the linearly weighted moving average (LWMA).
type WMA struct {
	meta
	w *recurrence.WMA
}

// NewWMA creates a new WMA indicator with the given period.
func NewWMA(period int) (*WMA, error) {
	w, err := recurrence.NewWMA(period)
	if err != nil {
		return nil, err
	}
	return &WMA{meta: newMeta("wma", model.Close, period), w: w}, nil
}

func (w *WMA) Next(bar model.Bar) (model.Output, error) {
	if err := w.accept(bar); err != nil {
		return model.Unavailable(), err
	}
	v, ok := w.w.Update(bar.Close)
	if !ok {
		return model.Unavailable(), nil
	}
	return w.emit(model.Scalar(v)), nil
}

func (w *WMA) Clone() Indicator {
	c := *w
	c.w = w.w.Clone()
	return &c
}
