package indicator

import (
	"indstream/internal/model"
	"indstream/internal/recurrence"
)

// rsiCore is Wilder's RSI over an arbitrary input series. It becomes ready
// after period+1 inputs (period deltas).
type rsiCore struct {
	prev    float64
	hasPrev bool
	gain    *recurrence.Exp
	loss    *recurrence.Exp
}

func newRSICore(period int) (*rsiCore, error) {
	gain, err := recurrence.NewWilder(period)
	if err != nil {
		return nil, err
	}
	loss, _ := recurrence.NewWilder(period)
	return &rsiCore{gain: gain, loss: loss}, nil
}

func (r *rsiCore) update(x float64) (float64, bool) {
	if !r.hasPrev {
		r.prev, r.hasPrev = x, true
		return 0, false
	}
	delta := x - r.prev
	r.prev = x

	gain, loss := 0.0, 0.0
	if delta > 0 {
		gain = delta
	} else {
		loss = -delta
	}
	avgGain, ok := r.gain.Update(gain)
	avgLoss, _ := r.loss.Update(loss)
	if !ok {
		return 0, false
	}
	return rsiValue(avgGain, avgLoss), true
}

// rsiValue is 100 - 100/(1+RS). No losses at all reads as 100.
func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

func (r *rsiCore) clone() *rsiCore {
	return &rsiCore{prev: r.prev, hasPrev: r.hasPrev, gain: r.gain.Clone(), loss: r.loss.Clone()}
}

// RSI calculates the Relative Strength Index using Wilder's smoothing method.
// Update is O(1) per bar, no history scans.
type RSI struct {
	meta
	core *rsiCore
}

// NewRSI creates a new RSI indicator with the given period (typically 14).
func NewRSI(period int) (*RSI, error) {
	if err := periodErr("rsi", "period", period); err != nil {
		return nil, err
	}
	core, err := newRSICore(period)
	if err != nil {
		return nil, err
	}
	return &RSI{meta: newMeta("rsi", model.Close, period+1), core: core}, nil
}

func (r *RSI) Next(bar model.Bar) (model.Output, error) {
	if err := r.accept(bar); err != nil {
		return model.Unavailable(), err
	}
	v, ok := r.core.update(bar.Close)
	if !ok {
		return model.Unavailable(), nil
	}
	return r.emit(model.Scalar(v)), nil
}

func (r *RSI) Clone() Indicator {
	c := *r
	c.core = r.core.clone()
	return &c
}
