package recurrence

import "indstream/internal/ringbuf"

// WMA is the linearly weighted moving average: the newest input has weight
// n, the oldest weight 1.
type WMA struct {
	n     int
	buf   *ringbuf.Window
	num   float64 // sum of weight*value
	total float64 // plain sum of the window
	denom float64
	since int // replacements since the last rebuild
}

// NewWMA creates a WMA over n inputs.
func NewWMA(n int) (*WMA, error) {
	if err := checkPeriod("wma", "n", n); err != nil {
		return nil, err
	}
	buf, err := ringbuf.NewWindow(n)
	if err != nil {
		return nil, err
	}
	return &WMA{n: n, buf: buf, denom: float64(n*(n+1)) / 2}, nil
}

// Update feeds x and returns the weighted mean once n inputs have been seen.
func (w *WMA) Update(x float64) (float64, bool) {
	if !w.buf.Full() {
		w.buf.Push(x)
		w.num += float64(w.buf.Len()) * x
		w.total += x
	} else {
		evicted, _ := w.buf.Push(x)
		if w.since++; w.since == w.n {
			w.rebuild()
		} else {
			// every held weight drops by one, x enters with weight n
			w.num = w.num - w.total + float64(w.n)*x
			w.total += x - evicted
		}
	}
	if !w.buf.Full() {
		return 0, false
	}
	return w.num / w.denom, true
}

// rebuild recomputes both sums from the window, dropping accumulated
// rounding error.
func (w *WMA) rebuild() {
	w.num, w.total, w.since = 0, 0, 0
	weight := 0
	w.buf.Each(func(v float64) {
		weight++
		w.num += float64(weight) * v
		w.total += v
	})
}

// Ready reports whether n inputs have been seen.
func (w *WMA) Ready() bool { return w.buf.Full() }

func (w *WMA) Clone() *WMA {
	c := *w
	c.buf = w.buf.Clone()
	return &c
}
