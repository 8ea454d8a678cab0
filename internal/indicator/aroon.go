package indicator

import (
	"indstream/internal/model"
	"indstream/internal/recurrence"
)

// Aroon measures how many bars have passed since the highest high and the
// lowest low of the last period+1 bars:
//
//	up   = 100 * (period - bars since high) / period
//	down = 100 * (period - bars since low) / period
type Aroon struct {
	meta
	period int
	highs  *recurrence.MinMax
	lows   *recurrence.MinMax
}

// NewAroon creates an Aroon indicator (typically 25).
func NewAroon(period int) (*Aroon, error) {
	if err := periodErr("aroon", "period", period); err != nil {
		return nil, err
	}
	highs, _ := recurrence.NewMinMax(period + 1)
	lows, _ := recurrence.NewMinMax(period + 1)
	return &Aroon{
		meta:   newMeta("aroon", model.HL, period+1, "up", "down"),
		period: period,
		highs:  highs,
		lows:   lows,
	}, nil
}

func (a *Aroon) Next(bar model.Bar) (model.Output, error) {
	if err := a.accept(bar); err != nil {
		return model.Unavailable(), err
	}
	a.highs.Update(bar.High)
	a.lows.Update(bar.Low)
	if a.warming() {
		return model.Unavailable(), nil
	}
	_, hiAge := a.highs.Max()
	_, loAge := a.lows.Min()
	n := float64(a.period)
	return model.Tuple(100*(n-float64(hiAge))/n, 100*(n-float64(loAge))/n), nil
}

func (a *Aroon) Clone() Indicator {
	c := *a
	c.highs = a.highs.Clone()
	c.lows = a.lows.Clone()
	return &c
}
