package indicator

import (
	"math"

	"indstream/internal/model"
)

// PSAR is Wilder's Parabolic Stop and Reverse.
//
// The second bar picks the initial direction from directional movement and
// places the SAR at the first bar's low (long) or high (short). From then on
// SAR moves towards the extreme point by the acceleration factor, is clamped
// to the prior two bars on the entry side and flips to the extreme point when
// price penetrates it.
type PSAR struct {
	meta
	step, maxAF float64

	long   bool
	sar    float64
	ep     float64
	af     float64
	h1, l1 float64 // previous bar
	h2, l2 float64 // bar before previous
}

// NewPSAR creates a Parabolic SAR with the given acceleration step and cap
// (typically 0.02, 0.2).
func NewPSAR(step, maxAF float64) (*PSAR, error) {
	if !(step > 0) || math.IsInf(step, 0) {
		return nil, configErr("psar", "step", step, "must be > 0")
	}
	if !(maxAF >= step) || math.IsInf(maxAF, 0) {
		return nil, configErr("psar", "max", maxAF, "must be >= step")
	}
	return &PSAR{meta: newMeta("psar", model.HL, 2), step: step, maxAF: maxAF}, nil
}

func (p *PSAR) Next(bar model.Bar) (model.Output, error) {
	if err := p.accept(bar); err != nil {
		return model.Unavailable(), err
	}
	h, l := bar.High, bar.Low

	switch p.count {
	case 1:
		p.h1, p.l1 = h, l
		return model.Unavailable(), nil
	case 2:
		plusDM := math.Max(h-p.h1, 0)
		minusDM := math.Max(p.l1-l, 0)
		p.long = plusDM >= minusDM
		if p.long {
			p.sar = p.l1
			p.ep = math.Max(p.h1, h)
		} else {
			p.sar = p.h1
			p.ep = math.Min(p.l1, l)
		}
		p.af = p.step
		p.shift(h, l)
		return model.Scalar(p.sar), nil
	}

	sar := p.sar + p.af*(p.ep-p.sar)
	if p.long {
		sar = math.Min(sar, math.Min(p.l1, p.l2))
		if l <= sar {
			p.long = false
			sar = p.ep
			p.ep = l
			p.af = p.step
		} else if h > p.ep {
			p.ep = h
			p.af = math.Min(p.af+p.step, p.maxAF)
		}
	} else {
		sar = math.Max(sar, math.Max(p.h1, p.h2))
		if h >= sar {
			p.long = true
			sar = p.ep
			p.ep = h
			p.af = p.step
		} else if l < p.ep {
			p.ep = l
			p.af = math.Min(p.af+p.step, p.maxAF)
		}
	}
	p.sar = sar
	p.shift(h, l)
	return model.Scalar(sar), nil
}

func (p *PSAR) shift(h, l float64) {
	p.h2, p.l2 = p.h1, p.l1
	p.h1, p.l1 = h, l
}

// Long reports whether the current trend is up.
func (p *PSAR) Long() bool { return p.long }

func (p *PSAR) Clone() Indicator {
	c := *p
	return &c
}
