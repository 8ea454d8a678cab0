package model

import "strings"

// Fields is the set of bar fields an indicator reads.
type Fields uint8

const (
	FieldOpen Fields = 1 << iota
	FieldHigh
	FieldLow
	FieldClose
	FieldVolume
)

// Input shapes used by the indicator families.
const (
	Close = FieldClose
	HL    = FieldHigh | FieldLow
	HLC   = FieldHigh | FieldLow | FieldClose
	HLCV  = HLC | FieldVolume
	OHLC  = FieldOpen | HLC
	OHLCV = OHLC | FieldVolume
)

// Has reports whether every field in o is present in f.
func (f Fields) Has(o Fields) bool { return f&o == o }

func (f Fields) String() string {
	names := make([]string, 0, 5)
	for _, n := range [...]struct {
		f    Fields
		name string
	}{
		{FieldOpen, "open"},
		{FieldHigh, "high"},
		{FieldLow, "low"},
		{FieldClose, "close"},
		{FieldVolume, "volume"},
	} {
		if f&n.f != 0 {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}
