package recurrence

// WWS is Welles Wilder's running-sum smoothing as used for the ADX true
// range and directional movement totals: the first value is the plain sum of
// n inputs, then s = s - s/n + x.
type WWS struct {
	n     int
	count int
	value float64
}

// NewWWS creates a Wilder sum over n inputs.
func NewWWS(n int) (*WWS, error) {
	if err := checkPeriod("wws", "n", n); err != nil {
		return nil, err
	}
	return &WWS{n: n}, nil
}

// Update feeds x and returns the smoothed sum once n inputs have been seen.
func (w *WWS) Update(x float64) (float64, bool) {
	w.count++
	if w.count <= w.n {
		w.value += x
		return w.value, w.count == w.n
	}
	w.value = w.value - w.value/float64(w.n) + x
	return w.value, true
}

// Ready reports whether n inputs have been seen.
func (w *WWS) Ready() bool { return w.count >= w.n }

func (w *WWS) Clone() *WWS {
	c := *w
	return &c
}
