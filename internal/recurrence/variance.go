package recurrence

import (
	"math"

	"indstream/internal/ringbuf"
)

// Variance is a sliding-window population variance using Welford's update
// for additions and the paired remove/add form for replacements, so it never
// subtracts large sums of squares. Mean and m2 are rebuilt from the window
// every n replacements.
type Variance struct {
	buf   *ringbuf.Window
	mean  float64
	m2    float64
	since int
}

// NewVariance creates a running variance over n inputs.
func NewVariance(n int) (*Variance, error) {
	if err := checkPeriod("variance", "n", n); err != nil {
		return nil, err
	}
	buf, err := ringbuf.NewWindow(n)
	if err != nil {
		return nil, err
	}
	return &Variance{buf: buf}, nil
}

// Update pushes x and returns the population variance once the window is full.
func (v *Variance) Update(x float64) (float64, bool) {
	evicted, replaced := v.buf.Push(x)
	switch {
	case !replaced:
		v.add(x, v.buf.Len())
	case v.since+1 == v.buf.Cap():
		v.mean, v.m2, v.since = 0, 0, 0
		k := 0
		v.buf.Each(func(y float64) {
			k++
			v.add(y, k)
		})
	default:
		v.since++
		n := float64(v.buf.Cap())
		old := v.mean
		v.mean += (x - evicted) / n
		v.m2 += (x - evicted) * (x - v.mean + evicted - old)
	}
	if v.m2 < 0 {
		v.m2 = 0
	}
	return v.Variance()
}

// add is Welford's update for the k-th value of the window.
func (v *Variance) add(x float64, k int) {
	delta := x - v.mean
	v.mean += delta / float64(k)
	v.m2 += delta * (x - v.mean)
}

// Mean returns the window mean.
func (v *Variance) Mean() float64 { return v.mean }

// Variance returns the population variance once the window is full.
func (v *Variance) Variance() (float64, bool) {
	if !v.buf.Full() {
		return 0, false
	}
	return v.m2 / float64(v.buf.Len()), true
}

// Stdev returns the population standard deviation once the window is full.
func (v *Variance) Stdev() (float64, bool) {
	vr, ok := v.Variance()
	if !ok {
		return 0, false
	}
	return math.Sqrt(vr), true
}

// Ready reports whether the window is full.
func (v *Variance) Ready() bool { return v.buf.Full() }

func (v *Variance) Clone() *Variance {
	c := *v
	c.buf = v.buf.Clone()
	return &c
}
