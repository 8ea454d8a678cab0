package model

import (
	"encoding/json"
	"strconv"
	"time"
)

// Result is one indicator's contribution to a Frame.
type Result struct {
	Name    string
	Columns []string
	Output  Output
	Err     error
}

// Payload renders the output the way fixture files store it: nil while
// unavailable, a bare number for single-column indicators, and a
// column→value object for tuples.
func (r *Result) Payload() any {
	if r.Err != nil || !r.Output.Ready {
		return nil
	}
	if len(r.Columns) <= 1 && len(r.Output.Values) == 1 {
		return r.Output.Values[0]
	}
	m := make(map[string]float64, len(r.Output.Values))
	for i, v := range r.Output.Values {
		name := "v" + strconv.Itoa(i)
		if i < len(r.Columns) {
			name = r.Columns[i]
		}
		m[name] = v
	}
	return m
}

// Frame holds every subscribed indicator's result for one bar, in
// subscription order.
type Frame struct {
	Stream  string
	Seq     int // 1-based bar index within the stream
	Bar     Bar
	Live    bool // computed by a non-mutating peek of a forming bar
	Results []Result
}

// Get returns the result for name.
func (f *Frame) Get(name string) (Result, bool) {
	for _, r := range f.Results {
		if r.Name == name {
			return r, true
		}
	}
	return Result{}, false
}

// Outputs returns a name→output mapping of the frame.
func (f *Frame) Outputs() map[string]Output {
	m := make(map[string]Output, len(f.Results))
	for _, r := range f.Results {
		m[r.Name] = r.Output
	}
	return m
}

// Errors returns the per-indicator errors of the frame keyed by name.
func (f *Frame) Errors() map[string]error {
	var m map[string]error
	for _, r := range f.Results {
		if r.Err == nil {
			continue
		}
		if m == nil {
			m = make(map[string]error)
		}
		m[r.Name] = r.Err
	}
	return m
}

// Rejected reports whether every indicator of the frame failed on its bar.
// Such a bar did not advance the stream.
func (f *Frame) Rejected() bool {
	if len(f.Results) == 0 {
		return false
	}
	for _, r := range f.Results {
		if r.Err == nil {
			return false
		}
	}
	return true
}

// Records flattens the frame into persistable indicator records.
func (f *Frame) Records() []IndicatorRecord {
	recs := make([]IndicatorRecord, 0, len(f.Results))
	for i := range f.Results {
		r := &f.Results[i]
		rec := IndicatorRecord{
			Name:   r.Name,
			Stream: f.Stream,
			Seq:    f.Seq,
			TS:     f.Bar.TS,
			Ready:  r.Output.Ready && r.Err == nil,
			Live:   f.Live,
			Value:  r.Payload(),
		}
		if r.Err != nil {
			rec.Error = r.Err.Error()
		}
		recs = append(recs, rec)
	}
	return recs
}

// IndicatorRecord is the persisted/published form of one indicator value.
type IndicatorRecord struct {
	Name   string    `json:"name"`
	Stream string    `json:"stream"`
	Seq    int       `json:"seq"`
	TS     time.Time `json:"ts"`
	Ready  bool      `json:"ready"`
	Live   bool      `json:"live,omitempty"`
	Value  any       `json:"value"`
	Error  string    `json:"error,omitempty"`
}

// StreamKey returns the Redis stream key: "ind:{name}:{stream}".
func (r *IndicatorRecord) StreamKey() string {
	return "ind:" + r.Name + ":" + r.Stream
}

// LatestKey returns the Redis key holding the latest confirmed value.
func (r *IndicatorRecord) LatestKey() string {
	return "ind:latest:" + r.Name + ":" + r.Stream
}

// PubSubChannel returns the channel live and confirmed values are published on.
func (r *IndicatorRecord) PubSubChannel() string {
	return "pub:ind:" + r.Name + ":" + r.Stream
}

// JSON returns the JSON-encoded record.
func (r *IndicatorRecord) JSON() []byte {
	b, _ := json.Marshal(r)
	return b
}

// BarStreamKey returns the Redis stream bars for symbol are read from.
func BarStreamKey(symbol string) string {
	return "bar:" + symbol
}
