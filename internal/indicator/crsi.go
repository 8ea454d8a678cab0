package indicator

import (
	"indstream/internal/model"
	"indstream/internal/ringbuf"
)

// ConnorsRSI averages three components: RSI of close, RSI of the up/down
// streak length and the percent rank of the latest one-bar ROC among the
// previous rank ROCs. An undefined component after the first composite
// carries the previous composite forward.
type ConnorsRSI struct {
	meta
	price  *rsiCore
	streak *rsiCore
	rocs   *ringbuf.Window

	prevClose float64
	run       float64
	policy    undefined
}

// NewConnorsRSI creates a cRSI with the given RSI, streak and rank periods
// (typically 3, 2, 100).
func NewConnorsRSI(rsiPeriod, streakPeriod, rankPeriod int) (*ConnorsRSI, error) {
	for _, p := range []struct {
		name string
		v    int
	}{{"rsi", rsiPeriod}, {"streak", streakPeriod}, {"rank", rankPeriod}} {
		if err := periodErr("crsi", p.name, p.v); err != nil {
			return nil, err
		}
	}
	price, err := newRSICore(rsiPeriod)
	if err != nil {
		return nil, err
	}
	streak, err := newRSICore(streakPeriod)
	if err != nil {
		return nil, err
	}
	rocs, err := ringbuf.NewWindow(rankPeriod)
	if err != nil {
		return nil, err
	}
	lookback := max(rsiPeriod+1, streakPeriod+2, rankPeriod+2)
	return &ConnorsRSI{
		meta:   newMeta("crsi", model.Close, lookback),
		price:  price,
		streak: streak,
		rocs:   rocs,
		policy: undefined{policy: CarryPrevious},
	}, nil
}

func (c *ConnorsRSI) Next(bar model.Bar) (model.Output, error) {
	if err := c.accept(bar); err != nil {
		return model.Unavailable(), err
	}
	x := bar.Close
	priceRSI, priceOK := c.price.update(x)
	if c.count == 1 {
		c.prevClose = x
		return model.Unavailable(), nil
	}

	switch {
	case x > c.prevClose:
		if c.run > 0 {
			c.run++
		} else {
			c.run = 1
		}
	case x < c.prevClose:
		if c.run < 0 {
			c.run--
		} else {
			c.run = -1
		}
	default:
		c.run = 0
	}
	streakRSI, streakOK := c.streak.update(c.run)

	rank, rankOK := 0.0, false
	if c.prevClose != 0 {
		roc := (x - c.prevClose) / c.prevClose * 100
		if c.rocs.Full() {
			below := 0
			c.rocs.Each(func(v float64) {
				if v < roc {
					below++
				}
			})
			rank, rankOK = 100*float64(below)/float64(c.rocs.Cap()), true
		}
		c.rocs.Push(roc)
	}
	c.prevClose = x

	if c.warming() {
		return model.Unavailable(), nil
	}
	defined := priceOK && streakOK && rankOK
	return c.policy.resolve(model.Scalar((priceRSI+streakRSI+rank)/3), defined), nil
}

func (c *ConnorsRSI) Clone() Indicator {
	cp := *c
	cp.price = c.price.clone()
	cp.streak = c.streak.clone()
	cp.rocs = c.rocs.Clone()
	cp.policy = c.policy.clone()
	return &cp
}
