// Package recurrence holds the incremental smoothers indicators are built
// from. Every primitive is O(1) per update (amortized for MinMax and for the
// windows that periodically rebuild their sums), validates its configuration
// at construction and never fails afterwards.
package recurrence

import (
	"indstream/internal/model"
	"indstream/internal/ringbuf"
)

// SMA is the arithmetic mean of the last n inputs. The mean is updated
// incrementally and rebuilt from the window every n replacements, so
// rounding error never outlives one window and a run of identical inputs
// yields exactly that input.
type SMA struct {
	n     int
	buf   *ringbuf.Window
	mean  float64
	since int // replacements since the last rebuild
}

// NewSMA creates an SMA over n inputs.
func NewSMA(n int) (*SMA, error) {
	if err := checkPeriod("sma", "n", n); err != nil {
		return nil, err
	}
	buf, err := ringbuf.NewWindow(n)
	if err != nil {
		return nil, err
	}
	return &SMA{n: n, buf: buf}, nil
}

// Update adds x and returns the mean once n inputs have been seen.
func (s *SMA) Update(x float64) (float64, bool) {
	evicted, replaced := s.buf.Push(x)
	switch {
	case !replaced:
		s.mean += (x - s.mean) / float64(s.buf.Len())
	case s.since+1 == s.n:
		s.rebuild()
	default:
		s.since++
		s.mean += (x - evicted) / float64(s.n)
	}
	return s.Value()
}

// rebuild recomputes the mean from the window with the same per-element
// update used while filling.
func (s *SMA) rebuild() {
	s.mean, s.since = 0, 0
	k := 0
	s.buf.Each(func(v float64) {
		k++
		s.mean += (v - s.mean) / float64(k)
	})
}

// Value returns the current mean without updating.
func (s *SMA) Value() (float64, bool) {
	if !s.buf.Full() {
		return 0, false
	}
	return s.mean, true
}

// Ready reports whether n inputs have been seen.
func (s *SMA) Ready() bool { return s.buf.Full() }

// Sum returns the sum of the window.
func (s *SMA) Sum() float64 { return s.mean * float64(s.buf.Len()) }

// Window exposes the underlying window (read-only use).
func (s *SMA) Window() *ringbuf.Window { return s.buf }

// Period returns n.
func (s *SMA) Period() int { return s.n }

func (s *SMA) Clone() *SMA {
	c := *s
	c.buf = s.buf.Clone()
	return &c
}

func checkPeriod(name, param string, n int) error {
	if n <= 0 {
		return &model.ConfigError{Indicator: name, Param: param, Value: n, Reason: "must be > 0"}
	}
	return nil
}
