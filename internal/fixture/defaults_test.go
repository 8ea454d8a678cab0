package fixture

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indstream/internal/indicator"
	"indstream/internal/model"
)

func TestDefaultSpecs_GenerateFiles(t *testing.T) {
	specs, err := indicator.ParseSpecs(DefaultSpecs)
	require.NoError(t, err)
	eng, err := indicator.NewEngine(nil, specs)
	require.NoError(t, err)

	dir := t.TempDir()
	w := NewWriter(dir)
	price := 100.0
	for i := 0; i < 120; i++ {
		open := price
		price += 1.5*math.Sin(float64(i)*0.3) + 0.1
		w.Add(eng.Process(model.Bar{
			Symbol: "FIX",
			TS:     time.Unix(int64(i)*60, 0).UTC(),
			Open:   open,
			High:   math.Max(open, price) + 0.5,
			Low:    math.Min(open, price) - 0.5,
			Close:  price,
			Volume: 100 + float64(i%7),
		}))
	}
	paths, err := w.Flush()
	require.NoError(t, err)
	assert.Len(t, paths, len(specs))

	for _, name := range []string{"adx", "crsi", "bollingerBands", "heikenAshi", "stochasticRSI", "wws"} {
		_, err := os.Stat(filepath.Join(dir, name+"_values.json"))
		assert.NoError(t, err, name)
	}
	for _, s := range w.Summary() {
		assert.Equal(t, 120, s.Total, s.Name)
		assert.Positive(t, s.Ready, s.Name)
	}
}

func TestDefaultSpecs_Names(t *testing.T) {
	specs, err := indicator.ParseSpecs(DefaultSpecs)
	require.NoError(t, err)
	keys := make(map[string]bool, len(specs))
	for _, s := range specs {
		keys[s.Key()] = true
	}
	assert.Len(t, keys, 27)
	for _, name := range []string{"ac", "ewma", "lwma", "pivot", "psar", "rma", "supertrend", "wema"} {
		assert.True(t, keys[name], name)
	}
	// imported by the generator but never instantiated
	assert.False(t, keys["move"])
	assert.False(t, keys["wave"])
}
