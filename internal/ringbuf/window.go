package ringbuf

import "indstream/internal/model"

// Window is a fixed-capacity sliding window over a scalar series.
// Push is O(1); once full, every push evicts the oldest value (FIFO).
// Window is not safe for concurrent use.
type Window struct {
	buf   []float64
	start int // index of the oldest value
	n     int // values currently held
}

// NewWindow creates a window holding at most capacity values.
func NewWindow(capacity int) (*Window, error) {
	if capacity < 1 {
		return nil, &model.ConfigError{Indicator: "window", Param: "capacity", Value: capacity, Reason: "must be >= 1"}
	}
	return &Window{buf: make([]float64, capacity)}, nil
}

// Push appends v. When the window was already full the oldest value is
// evicted and returned with ok=true.
func (w *Window) Push(v float64) (evicted float64, ok bool) {
	c := len(w.buf)
	if w.n < c {
		w.buf[(w.start+w.n)%c] = v
		w.n++
		return 0, false
	}
	evicted = w.buf[w.start]
	w.buf[w.start] = v
	w.start = (w.start + 1) % c
	return evicted, true
}

// Full reports whether the window holds Cap() values.
func (w *Window) Full() bool { return w.n == len(w.buf) }

// Len returns the number of values held.
func (w *Window) Len() int { return w.n }

// Cap returns the window capacity.
func (w *Window) Cap() int { return len(w.buf) }

// At returns the i-th value, 0 being the oldest. It panics when i is out of range.
func (w *Window) At(i int) float64 {
	if i < 0 || i >= w.n {
		panic("ringbuf: window index out of range")
	}
	return w.buf[(w.start+i)%len(w.buf)]
}

// Oldest returns the oldest value held, or 0 for an empty window.
func (w *Window) Oldest() float64 {
	if w.n == 0 {
		return 0
	}
	return w.buf[w.start]
}

// Newest returns the most recently pushed value, or 0 for an empty window.
func (w *Window) Newest() float64 {
	if w.n == 0 {
		return 0
	}
	return w.buf[(w.start+w.n-1)%len(w.buf)]
}

// Values returns the held values oldest first. Before the window is full
// only the values seen so far are returned; nothing is zero padded.
func (w *Window) Values() []float64 {
	out := make([]float64, w.n)
	for i := range out {
		out[i] = w.buf[(w.start+i)%len(w.buf)]
	}
	return out
}

// Each calls fn for every held value, oldest first, without allocating.
func (w *Window) Each(fn func(v float64)) {
	for i := 0; i < w.n; i++ {
		fn(w.buf[(w.start+i)%len(w.buf)])
	}
}

// Clone returns an independent copy of the window.
func (w *Window) Clone() *Window {
	c := *w
	c.buf = make([]float64, len(w.buf))
	copy(c.buf, w.buf)
	return &c
}
