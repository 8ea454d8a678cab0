package indicator

import (
	"indstream/internal/model"
	"indstream/internal/recurrence"
)

// Donchian is the price channel of the highest high and lowest low over
// period bars, with their midpoint.
type Donchian struct {
	meta
	highs *recurrence.MinMax
	lows  *recurrence.MinMax
}

// NewDonchian creates a Donchian channel (typically 20).
func NewDonchian(period int) (*Donchian, error) {
	highs, err := recurrence.NewMinMax(period)
	if err != nil {
		return nil, err
	}
	lows, _ := recurrence.NewMinMax(period)
	return &Donchian{
		meta:  newMeta("donchian", model.HL, period, "upper", "middle", "lower"),
		highs: highs,
		lows:  lows,
	}, nil
}

func (d *Donchian) Next(bar model.Bar) (model.Output, error) {
	if err := d.accept(bar); err != nil {
		return model.Unavailable(), err
	}
	d.highs.Update(bar.High)
	d.lows.Update(bar.Low)
	hi, _ := d.highs.Max()
	lo, _ := d.lows.Min()
	return d.emit(model.Tuple(hi, (hi+lo)/2, lo)), nil
}

func (d *Donchian) Clone() Indicator {
	c := *d
	c.highs = d.highs.Clone()
	c.lows = d.lows.Clone()
	return &c
}
