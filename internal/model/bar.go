package model

import (
	"encoding/json"
	"math"
	"time"
)

// Bar is one OHLCV observation for a fixed interval.
// The engine borrows bars by value and never mutates them.
type Bar struct {
	Symbol  string    `json:"symbol,omitempty"`
	TS      time.Time `json:"ts"`
	Open    float64   `json:"open"`
	High    float64   `json:"high"`
	Low     float64   `json:"low"`
	Close   float64   `json:"close"`
	Volume  float64   `json:"volume"`
	Forming bool      `json:"forming,omitempty"` // true while the interval is still open
}

// Key returns the stream key of the bar. Bars without a symbol share the "default" stream.
func (b *Bar) Key() string {
	if b.Symbol == "" {
		return "default"
	}
	return b.Symbol
}

// JSON returns the JSON-encoded bar (ignoring errors for hot-path usage).
func (b *Bar) JSON() []byte {
	out, _ := json.Marshal(b)
	return out
}

// Project returns a copy of the bar carrying only the requested fields.
// Symbol, TS and Forming are always kept.
func (b Bar) Project(f Fields) Bar {
	p := Bar{Symbol: b.Symbol, TS: b.TS, Forming: b.Forming}
	if f.Has(FieldOpen) {
		p.Open = b.Open
	}
	if f.Has(FieldHigh) {
		p.High = b.High
	}
	if f.Has(FieldLow) {
		p.Low = b.Low
	}
	if f.Has(FieldClose) {
		p.Close = b.Close
	}
	if f.Has(FieldVolume) {
		p.Volume = b.Volume
	}
	return p
}

// Validate checks the fields in f and reports the first malformed one.
// The high/low ordering is only checked when both are requested.
func (b Bar) Validate(f Fields) error {
	for _, fv := range [...]struct {
		field Fields
		v     float64
	}{
		{FieldOpen, b.Open},
		{FieldHigh, b.High},
		{FieldLow, b.Low},
		{FieldClose, b.Close},
		{FieldVolume, b.Volume},
	} {
		if !f.Has(fv.field) {
			continue
		}
		if math.IsNaN(fv.v) {
			return &DataError{Field: fv.field.String(), Value: fv.v, Reason: "NaN"}
		}
		if math.IsInf(fv.v, 0) {
			return &DataError{Field: fv.field.String(), Value: fv.v, Reason: "infinite"}
		}
	}
	if f.Has(FieldHigh|FieldLow) && b.High < b.Low {
		return &DataError{Field: FieldHigh.String(), Value: b.High, Reason: "high below low"}
	}
	if f.Has(FieldVolume) && b.Volume < 0 {
		return &DataError{Field: FieldVolume.String(), Value: b.Volume, Reason: "negative volume"}
	}
	return nil
}
