// Package indicator provides streaming technical indicators over bars.
//
// Every indicator is a small state machine: it is Warming until it has seen
// Lookback() bars, then Ready for the rest of its life. While warming Next
// returns model.Unavailable(). A malformed bar is rejected with a
// *model.DataError before any state is touched, so the caller may skip the
// bar and continue.
package indicator

import "indstream/internal/model"

// Indicator is the capability set shared by all indicator families.
type Indicator interface {
	// Name returns the registry name of the indicator family (e.g. "rsi").
	Name() string

	// Inputs declares which bar fields Next reads.
	Inputs() model.Fields

	// Columns names the output values. Scalars have a single column.
	Columns() []string

	// Lookback is the number of bars after which Next emits a value.
	Lookback() int

	// Count is the number of accepted bars so far.
	Count() int

	// Next feeds one bar and returns the output for it.
	Next(bar model.Bar) (model.Output, error)

	// Clone returns a deep copy sharing no mutable state.
	Clone() Indicator
}

// UndefinedPolicy decides what an indicator emits when one of its
// intermediate values is undefined after warm-up (e.g. a zero divisor).
type UndefinedPolicy int

const (
	// EmitUnavailable emits model.Unavailable() for that bar.
	EmitUnavailable UndefinedPolicy = iota
	// CarryPrevious repeats the last defined output. Before the first
	// defined output it behaves like EmitUnavailable.
	CarryPrevious
)

func (p UndefinedPolicy) String() string {
	switch p {
	case CarryPrevious:
		return "carry_previous"
	default:
		return "emit_unavailable"
	}
}

// meta carries the identity and bar counter every indicator shares.
type meta struct {
	name     string
	inputs   model.Fields
	columns  []string
	lookback int
	count    int
}

func newMeta(name string, inputs model.Fields, lookback int, columns ...string) meta {
	if len(columns) == 0 {
		columns = []string{"value"}
	}
	return meta{name: name, inputs: inputs, columns: columns, lookback: lookback}
}

func (m *meta) Name() string         { return m.name }
func (m *meta) Inputs() model.Fields { return m.inputs }
func (m *meta) Columns() []string    { return m.columns }
func (m *meta) Lookback() int        { return m.lookback }
func (m *meta) Count() int           { return m.count }
func (m *meta) warming() bool        { return m.count < m.lookback }

// accept validates bar and advances the counter. Indicators call it before
// touching any of their own state.
func (m *meta) accept(bar model.Bar) error {
	if err := bar.Validate(m.inputs); err != nil {
		return err
	}
	m.count++
	return nil
}

// emit gates a computed output on the warm-up counter.
func (m *meta) emit(out model.Output) model.Output {
	if m.warming() {
		return model.Unavailable()
	}
	return out
}

// undefined applies an UndefinedPolicy to a stream of outputs.
type undefined struct {
	policy UndefinedPolicy
	last   model.Output
}

func (u *undefined) resolve(out model.Output, defined bool) model.Output {
	if defined {
		u.last = out
		return out
	}
	if u.policy == CarryPrevious && u.last.Ready {
		return u.last
	}
	return model.Unavailable()
}

func (u undefined) clone() undefined {
	c := u
	c.last.Values = append([]float64(nil), u.last.Values...)
	return c
}

func configErr(name, param string, value any, reason string) error {
	return &model.ConfigError{Indicator: name, Param: param, Value: value, Reason: reason}
}

func periodErr(name, param string, n int) error {
	if n <= 0 {
		return configErr(name, param, n, "must be > 0")
	}
	return nil
}
