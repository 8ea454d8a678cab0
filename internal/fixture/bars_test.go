package fixture

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBars_NumbersAndStrings(t *testing.T) {
	in := `[
		{"o": 10, "h": 12.5, "l": 9.75, "c": 11, "v": 1000},
		{"o": "11", "h": "13.1", "l": "10.2", "c": "12.3", "v": "250.5"}
	]`
	bars, err := DecodeBars(strings.NewReader(in), "BTC")
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.Equal(t, "BTC", bars[0].Symbol)
	assert.Equal(t, 10.0, bars[0].Open)
	assert.Equal(t, 12.5, bars[0].High)
	assert.Equal(t, 9.75, bars[0].Low)
	assert.Equal(t, 11.0, bars[0].Close)
	assert.Equal(t, 1000.0, bars[0].Volume)

	assert.Equal(t, 13.1, bars[1].High)
	assert.Equal(t, 12.3, bars[1].Close)
	assert.Equal(t, 250.5, bars[1].Volume)
}

func TestDecodeBars_SyntheticTimestampsKeepOrder(t *testing.T) {
	bars, err := DecodeBars(strings.NewReader(`[{"o":1,"h":1,"l":1,"c":1,"v":0},{"o":1,"h":1,"l":1,"c":1,"v":0}]`), "")
	require.NoError(t, err)
	assert.Equal(t, time.Unix(0, 0).UTC(), bars[0].TS)
	assert.Equal(t, time.Unix(60, 0).UTC(), bars[1].TS)
}

func TestDecodeBars_Timestamps(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{"unix seconds", `1700000000`, time.Unix(1700000000, 0).UTC()},
		{"unix millis", `1700000000123`, time.UnixMilli(1700000000123).UTC()},
		{"quoted seconds", `"1700000000"`, time.Unix(1700000000, 0).UTC()},
		{"rfc3339", `"2024-01-02T03:04:05Z"`, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := `[{"o":1,"h":1,"l":1,"c":1,"v":0,"t":` + tt.raw + `}]`
			bars, err := DecodeBars(strings.NewReader(in), "X")
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(bars[0].TS), "got %v", bars[0].TS)
		})
	}
}

func TestDecodeBars_Errors(t *testing.T) {
	_, err := DecodeBars(strings.NewReader(`{"o":1}`), "X")
	assert.Error(t, err)

	_, err = DecodeBars(strings.NewReader(`[{"o":"abc","h":1,"l":1,"c":1,"v":0}]`), "X")
	assert.Error(t, err)

	_, err = DecodeBars(strings.NewReader(`[{"o":1,"h":1,"l":1,"c":1,"v":0,"t":"yesterday"}]`), "X")
	assert.Error(t, err)
}

func TestLoadBars(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ohlcv.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"o":1,"h":2,"l":0.5,"c":1.5,"v":10}]`), 0o644))

	bars, err := LoadBars(path, "ETH")
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 1.5, bars[0].Close)

	_, err = LoadBars(filepath.Join(t.TempDir(), "missing.json"), "ETH")
	assert.Error(t, err)
}
