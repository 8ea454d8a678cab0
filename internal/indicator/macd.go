package indicator

import (
	"indstream/internal/model"
	"indstream/internal/recurrence"
)

// MACD emits the macd line (fast EMA - slow EMA), its signal EMA and the
// histogram (macd - signal). It is ready once the signal EMA is seeded.
type MACD struct {
	meta
	fast   *recurrence.Exp
	slow   *recurrence.Exp
	signal *recurrence.Exp
}

// NewMACD creates a MACD with the given fast, slow and signal periods
// (typically 12, 26, 9).
func NewMACD(fast, slow, signal int) (*MACD, error) {
	if err := periodErr("macd", "fast", fast); err != nil {
		return nil, err
	}
	if err := periodErr("macd", "signal", signal); err != nil {
		return nil, err
	}
	if slow <= fast {
		return nil, configErr("macd", "slow", slow, "must be greater than fast")
	}
	f, _ := recurrence.NewEMA(fast)
	s, _ := recurrence.NewEMA(slow)
	sig, _ := recurrence.NewEMA(signal)
	return &MACD{
		meta:   newMeta("macd", model.Close, slow+signal-1, "macd", "signal", "histogram"),
		fast:   f,
		slow:   s,
		signal: sig,
	}, nil
}

func (m *MACD) Next(bar model.Bar) (model.Output, error) {
	if err := m.accept(bar); err != nil {
		return model.Unavailable(), err
	}
	f, _ := m.fast.Update(bar.Close)
	s, ok := m.slow.Update(bar.Close)
	if !ok {
		return model.Unavailable(), nil
	}
	line := f - s
	sig, ok := m.signal.Update(line)
	if !ok {
		return model.Unavailable(), nil
	}
	return m.emit(model.Tuple(line, sig, line-sig)), nil
}

func (m *MACD) Clone() Indicator {
	c := *m
	c.fast = m.fast.Clone()
	c.slow = m.slow.Clone()
	c.signal = m.signal.Clone()
	return &c
}
