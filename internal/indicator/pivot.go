package indicator

import (
	"strings"

	"indstream/internal/model"
)

// PivotMode selects the pivot point formula.
type PivotMode string

const (
	PivotClassic   PivotMode = "classic"
	PivotFibonacci PivotMode = "fibonacci"
	PivotWoodie    PivotMode = "woodie"
	PivotCamarilla PivotMode = "camarilla"
)

// Pivot computes pivot points from each bar on its own. It keeps no history.
type Pivot struct {
	meta
	mode PivotMode
}

// NewPivot creates a pivot point calculator. An empty mode means classic.
func NewPivot(mode string) (*Pivot, error) {
	m := PivotMode(strings.ToLower(strings.TrimSpace(mode)))
	switch m {
	case "":
		m = PivotClassic
	case PivotClassic, PivotFibonacci, PivotWoodie, PivotCamarilla:
	default:
		return nil, configErr("pivot", "mode", mode, "must be classic, fibonacci, woodie or camarilla")
	}
	return &Pivot{meta: newMeta("pivot", model.HLC, 1, "pp", "r1", "r2", "r3", "s1", "s2", "s3"), mode: m}, nil
}

func (p *Pivot) Next(bar model.Bar) (model.Output, error) {
	if err := p.accept(bar); err != nil {
		return model.Unavailable(), err
	}
	h, l, c := bar.High, bar.Low, bar.Close
	rng := h - l
	pp := (h + l + c) / 3

	var r1, r2, r3, s1, s2, s3 float64
	switch p.mode {
	case PivotFibonacci:
		r1, r2, r3 = pp+0.382*rng, pp+0.618*rng, pp+rng
		s1, s2, s3 = pp-0.382*rng, pp-0.618*rng, pp-rng
	case PivotWoodie:
		pp = (h + l + 2*c) / 4
		r1, r2, r3 = 2*pp-l, pp+rng, h+2*(pp-l)
		s1, s2, s3 = 2*pp-h, pp-rng, l-2*(h-pp)
	case PivotCamarilla:
		r1, r2, r3 = c+rng*1.1/12, c+rng*1.1/6, c+rng*1.1/4
		s1, s2, s3 = c-rng*1.1/12, c-rng*1.1/6, c-rng*1.1/4
	default:
		r1, r2, r3 = 2*pp-l, pp+rng, h+2*(pp-l)
		s1, s2, s3 = 2*pp-h, pp-rng, l-2*(h-pp)
	}
	return model.Tuple(pp, r1, r2, r3, s1, s2, s3), nil
}

func (p *Pivot) Clone() Indicator {
	c := *p
	return &c
}
