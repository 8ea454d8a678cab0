package model

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBar_Project(t *testing.T) {
	ts := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	b := Bar{Symbol: "X", TS: ts, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10}

	assert.Equal(t, Bar{Symbol: "X", TS: ts, Close: 1.5}, b.Project(Close))
	assert.Equal(t, Bar{Symbol: "X", TS: ts, High: 2, Low: 0.5}, b.Project(HL))
	assert.Equal(t, b, b.Project(OHLCV))
}

func TestBar_Validate(t *testing.T) {
	good := Bar{Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10}
	require.NoError(t, good.Validate(OHLCV))

	cases := []struct {
		name   string
		bar    Bar
		fields Fields
		field  string
	}{
		{"nan close", Bar{Close: math.NaN()}, Close, "close"},
		{"inf high", Bar{High: math.Inf(1), Low: 1, Close: 1}, HLC, "high"},
		{"high below low", Bar{High: 1, Low: 2, Close: 1.5}, HLC, "high"},
		{"negative volume", Bar{High: 2, Low: 1, Close: 1, Volume: -1}, HLCV, "volume"},
		{"nan open", Bar{Open: math.NaN(), High: 2, Low: 1, Close: 1}, OHLC, "open"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.bar.Validate(tc.fields)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrData))
			var de *DataError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, tc.field, de.Field)
		})
	}
}

func TestBar_ValidateIgnoresUnreadFields(t *testing.T) {
	b := Bar{Open: math.NaN(), High: 1, Low: 2, Close: 3, Volume: -5}
	assert.NoError(t, b.Validate(Close))
}

func TestBar_Key(t *testing.T) {
	b := Bar{}
	assert.Equal(t, "default", b.Key())
	b.Symbol = "NIFTY"
	assert.Equal(t, "NIFTY", b.Key())
}

func TestFields_String(t *testing.T) {
	assert.Equal(t, "high|low|close", HLC.String())
	assert.Equal(t, "none", Fields(0).String())
	assert.True(t, OHLCV.Has(HL))
	assert.False(t, HL.Has(Close))
}

func TestErrors(t *testing.T) {
	var err error = &ConfigError{Indicator: "sma", Param: "period", Value: 0, Reason: "must be > 0"}
	assert.True(t, errors.Is(err, ErrConfig))
	assert.False(t, errors.Is(err, ErrData))
	assert.Equal(t, "sma: period=0: must be > 0", err.Error())

	err = &UnknownIndicatorError{Name: "vwap"}
	assert.True(t, errors.Is(err, ErrUnknownIndicator))
}
