package indicator

import (
	"math"

	"indstream/internal/model"
	"indstream/internal/recurrence"
)

// Bollinger emits middle = SMA(period) and upper/lower = middle +- k*stdev,
// with the population standard deviation of the same window. Mean and
// deviation come from one running window.
type Bollinger struct {
	meta
	k      float64
	window *recurrence.Variance
}

// NewBollinger creates Bollinger Bands with the given period and width k
// (typically 20, 2).
func NewBollinger(period int, k float64) (*Bollinger, error) {
	if err := periodErr("bb", "period", period); err != nil {
		return nil, err
	}
	if math.IsNaN(k) || math.IsInf(k, 0) || k < 0 {
		return nil, configErr("bb", "k", k, "must be a finite value >= 0")
	}
	v, _ := recurrence.NewVariance(period)
	return &Bollinger{
		meta:   newMeta("bb", model.Close, period, "upper", "middle", "lower"),
		k:      k,
		window: v,
	}, nil
}

func (b *Bollinger) Next(bar model.Bar) (model.Output, error) {
	if err := b.accept(bar); err != nil {
		return model.Unavailable(), err
	}
	if _, ok := b.window.Update(bar.Close); !ok {
		return model.Unavailable(), nil
	}
	mid := b.window.Mean()
	sd, _ := b.window.Stdev()
	return b.emit(model.Tuple(mid+b.k*sd, mid, mid-b.k*sd)), nil
}

func (b *Bollinger) Clone() Indicator {
	c := *b
	c.window = b.window.Clone()
	return &c
}
