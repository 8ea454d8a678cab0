package model

// Output is one indicator reading for one bar.
// The zero Output is the Unavailable marker used during warm-up; a Ready
// output always carries at least one value, so a real zero is never confused
// with "no value yet".
type Output struct {
	Ready  bool      `json:"ready"`
	Values []float64 `json:"values,omitempty"`
}

// Unavailable returns the warm-up marker.
func Unavailable() Output { return Output{} }

// Scalar returns a ready single-value output.
func Scalar(v float64) Output { return Output{Ready: true, Values: []float64{v}} }

// Tuple returns a ready multi-value output in column order.
func Tuple(vs ...float64) Output { return Output{Ready: true, Values: vs} }

// Value returns the first value, or 0 when unavailable.
func (o Output) Value() float64 {
	if !o.Ready || len(o.Values) == 0 {
		return 0
	}
	return o.Values[0]
}

// At returns the i-th value and whether it exists.
func (o Output) At(i int) (float64, bool) {
	if !o.Ready || i < 0 || i >= len(o.Values) {
		return 0, false
	}
	return o.Values[i], true
}

// Equal reports whether two outputs are identical bit for bit.
func (o Output) Equal(other Output) bool {
	if o.Ready != other.Ready || len(o.Values) != len(other.Values) {
		return false
	}
	for i := range o.Values {
		if o.Values[i] != other.Values[i] {
			return false
		}
	}
	return true
}
