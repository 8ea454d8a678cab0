package indicator

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"indstream/internal/model"
)

// Args gives a factory typed access to positional parameters. Missing,
// nil or empty parameters take the default. The first conversion error is
// kept and reported by Err, which also rejects unread extra parameters.
type Args struct {
	name string
	vals []any
	used int
	err  error
}

// NewArgs wraps params for the indicator name.
func NewArgs(name string, params ...any) *Args {
	return &Args{name: name, vals: params}
}

// Len returns the number of parameters given.
func (a *Args) Len() int { return len(a.vals) }

// Err returns the first conversion error, or a config error when more
// parameters were given than the factory read.
func (a *Args) Err() error {
	if a.err != nil {
		return a.err
	}
	if len(a.vals) > a.used {
		return &model.ConfigError{Indicator: a.name, Param: "params", Value: len(a.vals), Reason: "too many parameters, expected at most " + strconv.Itoa(a.used)}
	}
	return nil
}

func (a *Args) raw(i int) (any, bool) {
	if i+1 > a.used {
		a.used = i + 1
	}
	if i >= len(a.vals) || a.vals[i] == nil {
		return nil, false
	}
	if s, ok := a.vals[i].(string); ok && strings.TrimSpace(s) == "" {
		return nil, false
	}
	return a.vals[i], true
}

func (a *Args) fail(param string, v any, reason string) {
	if a.err == nil {
		a.err = &model.ConfigError{Indicator: a.name, Param: param, Value: v, Reason: reason}
	}
}

// Int returns parameter i as an int. Floats must be integral.
func (a *Args) Int(i int, param string, def int) int {
	v, ok := a.raw(i)
	if !ok {
		return def
	}
	f, ok := toFloat(v)
	if !ok || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		a.fail(param, v, "not an integer")
		return def
	}
	return int(f)
}

// Float returns parameter i as a float64.
func (a *Args) Float(i int, param string, def float64) float64 {
	v, ok := a.raw(i)
	if !ok {
		return def
	}
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		a.fail(param, v, "not a number")
		return def
	}
	return f
}

// String returns parameter i as a string.
func (a *Args) String(i int, param string, def string) string {
	v, ok := a.raw(i)
	if !ok {
		return def
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case Smoothing:
		return string(s)
	case PivotMode:
		return string(s)
	case fmt.Stringer:
		return s.String()
	}
	a.fail(param, v, "not a string")
	return def
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}
