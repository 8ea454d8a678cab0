package indicator

import (
	"math"

	"indstream/internal/model"
)

// HeikenAshi emits synthetic candles:
//
//	close = (O+H+L+C)/4
//	open  = (prevOpen+prevClose)/2, (O+C)/2 on the first bar
//	high  = max(H, open, close), low = min(L, open, close)
type HeikenAshi struct {
	meta
	open, close float64
}

// NewHeikenAshi creates a Heiken-Ashi transformer.
func NewHeikenAshi() *HeikenAshi {
	return &HeikenAshi{meta: newMeta("heikenashi", model.OHLC, 1, "open", "high", "low", "close")}
}

func (h *HeikenAshi) Next(bar model.Bar) (model.Output, error) {
	if err := h.accept(bar); err != nil {
		return model.Unavailable(), err
	}
	c := (bar.Open + bar.High + bar.Low + bar.Close) / 4
	o := (bar.Open + bar.Close) / 2
	if h.count > 1 {
		o = (h.open + h.close) / 2
	}
	h.open, h.close = o, c
	hi := math.Max(bar.High, math.Max(o, c))
	lo := math.Min(bar.Low, math.Min(o, c))
	return model.Tuple(o, hi, lo, c), nil
}

func (h *HeikenAshi) Clone() Indicator {
	c := *h
	return &c
}
