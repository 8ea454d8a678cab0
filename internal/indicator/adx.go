package indicator

import (
	"math"

	"indstream/internal/model"
	"indstream/internal/recurrence"
)

// ADX emits the Average Directional Index with the +DI and -DI lines.
// TR, +DM and -DM are Wilder running sums over period deltas; DX is Wilder
// smoothed into ADX, so the first value lands on bar 2*period.
type ADX struct {
	meta
	tr, pdm, mdm *recurrence.WWS
	dx           *recurrence.Exp

	prevHigh, prevLow, prevClose float64
}

// NewADX creates a new ADX indicator with the given period.
func NewADX(period int) (*ADX, error) {
	if err := periodErr("adx", "period", period); err != nil {
		return nil, err
	}
	tr, _ := recurrence.NewWWS(period)
	pdm, _ := recurrence.NewWWS(period)
	mdm, _ := recurrence.NewWWS(period)
	dx, _ := recurrence.NewWilder(period)
	return &ADX{
		meta: newMeta("adx", model.HLC, 2*period, "adx", "pdi", "mdi"),
		tr:   tr,
		pdm:  pdm,
		mdm:  mdm,
		dx:   dx,
	}, nil
}

func (a *ADX) Next(bar model.Bar) (model.Output, error) {
	if err := a.accept(bar); err != nil {
		return model.Unavailable(), err
	}
	if a.count == 1 {
		a.prevHigh, a.prevLow, a.prevClose = bar.High, bar.Low, bar.Close
		return model.Unavailable(), nil
	}

	up := bar.High - a.prevHigh
	down := a.prevLow - bar.Low
	plusDM, minusDM := 0.0, 0.0
	if up > down && up > 0 {
		plusDM = up
	}
	if down > up && down > 0 {
		minusDM = down
	}
	tr := math.Max(bar.High-bar.Low, math.Max(math.Abs(bar.High-a.prevClose), math.Abs(bar.Low-a.prevClose)))
	a.prevHigh, a.prevLow, a.prevClose = bar.High, bar.Low, bar.Close

	str, ok := a.tr.Update(tr)
	spdm, _ := a.pdm.Update(plusDM)
	smdm, _ := a.mdm.Update(minusDM)
	if !ok {
		return model.Unavailable(), nil
	}

	pdi, mdi := 0.0, 0.0
	if str != 0 {
		pdi = 100 * spdm / str
		mdi = 100 * smdm / str
	}
	dx := 0.0
	if sum := pdi + mdi; sum != 0 {
		dx = 100 * math.Abs(pdi-mdi) / sum
	}
	adx, ok := a.dx.Update(dx)
	if !ok {
		return model.Unavailable(), nil
	}
	return a.emit(model.Tuple(adx, pdi, mdi)), nil
}

func (a *ADX) Clone() Indicator {
	c := *a
	c.tr = a.tr.Clone()
	c.pdm = a.pdm.Clone()
	c.mdm = a.mdm.Clone()
	c.dx = a.dx.Clone()
	return &c
}
