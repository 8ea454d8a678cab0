// Package fixture reads OHLCV fixture files and writes per-indicator value
// sequences, the file formats of the fixture generator.
package fixture

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"indstream/internal/model"
)

// rawBar is one element of an ohlcv.json file. Prices may be JSON numbers or
// quoted decimal strings; t is optional (unix seconds/millis or RFC 3339).
type rawBar struct {
	O decimal.Decimal `json:"o"`
	H decimal.Decimal `json:"h"`
	L decimal.Decimal `json:"l"`
	C decimal.Decimal `json:"c"`
	V decimal.Decimal `json:"v"`
	T json.RawMessage `json:"t,omitempty"`
}

// LoadBars reads a fixture bar file from path.
func LoadBars(path, symbol string) ([]model.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bars: %w", err)
	}
	defer f.Close()
	return DecodeBars(f, symbol)
}

// DecodeBars decodes a JSON array of {o,h,l,c,v,t?} objects. Bars without a
// timestamp are stamped one minute apart from the unix epoch so they keep
// their order.
func DecodeBars(r io.Reader, symbol string) ([]model.Bar, error) {
	var raw []rawBar
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode bars: %w", err)
	}
	bars := make([]model.Bar, len(raw))
	for i, rb := range raw {
		ts, err := parseTS(rb.T)
		if err != nil {
			return nil, fmt.Errorf("bar %d: %w", i, err)
		}
		if ts.IsZero() {
			ts = time.Unix(int64(i)*60, 0).UTC()
		}
		bars[i] = model.Bar{
			Symbol: symbol,
			TS:     ts,
			Open:   rb.O.InexactFloat64(),
			High:   rb.H.InexactFloat64(),
			Low:    rb.L.InexactFloat64(),
			Close:  rb.C.InexactFloat64(),
			Volume: rb.V.InexactFloat64(),
		}
	}
	return bars, nil
}

func parseTS(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, err
		}
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			return ts.UTC(), nil
		}
		raw = []byte(s)
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %s: %w", raw, err)
	}
	if n > 1e12 {
		return time.UnixMilli(n).UTC(), nil
	}
	return time.Unix(n, 0).UTC(), nil
}
