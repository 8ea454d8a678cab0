package indicator

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"indstream/internal/model"
)

var t0 = time.Date(2024, 1, 2, 9, 15, 0, 0, time.UTC)

// closeBar builds a bar whose OHLC all equal c.
func closeBar(c float64) model.Bar {
	return model.Bar{Open: c, High: c, Low: c, Close: c, Volume: 1}
}

func closeBars(cs ...float64) []model.Bar {
	out := make([]model.Bar, len(cs))
	for i, c := range cs {
		out[i] = closeBar(c)
		out[i].TS = t0.Add(time.Duration(i) * time.Minute)
	}
	return out
}

// genBars returns a deterministic, well-formed bar series with non-zero
// ranges and alternating trends.
func genBars(symbol string, n int) []model.Bar {
	out := make([]model.Bar, n)
	price := 100.0
	for i := range out {
		f := float64(i)
		open := price
		price += 2.3*math.Sin(f*0.21) + 1.1*math.Cos(f*0.77) + 0.05
		cl := price
		hi := math.Max(open, cl) + 0.4 + 0.3*math.Abs(math.Sin(f*1.3))
		lo := math.Min(open, cl) - 0.35 - 0.25*math.Abs(math.Cos(f*0.9))
		out[i] = model.Bar{
			Symbol: symbol,
			TS:     t0.Add(time.Duration(i) * time.Minute),
			Open:   open,
			High:   hi,
			Low:    lo,
			Close:  cl,
			Volume: 1000 + 250*math.Abs(math.Sin(f*0.5)),
		}
	}
	return out
}

func closesOf(bars []model.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// feed runs bars through ind and returns every output.
func feed(t *testing.T, ind Indicator, bars []model.Bar) []model.Output {
	t.Helper()
	out := make([]model.Output, len(bars))
	for i, b := range bars {
		o, err := ind.Next(b)
		require.NoError(t, err, "bar %d", i)
		out[i] = o
	}
	return out
}

func mustCreate(t *testing.T, name string, params ...any) Indicator {
	t.Helper()
	ind, err := Create(name, params...)
	require.NoError(t, err)
	return ind
}
