package indicator

import (
	"fmt"
	"time"

	"indstream/internal/model"
)

type subscription struct {
	name string
	ind  Indicator
}

// Pipeline feeds one ordered bar stream to a set of subscribed indicators.
// Subscribers are updated in subscription order and every one of them sees
// the same bar before OnBar returns. A Pipeline is not safe for concurrent
// use; callers own one per stream and serialize OnBar.
type Pipeline struct {
	stream string
	subs   []subscription
	index  map[string]int
	seq    int
	lastTS time.Time
}

// NewPipeline creates an empty pipeline for stream.
func NewPipeline(stream string) *Pipeline {
	return &Pipeline{stream: stream, index: make(map[string]int)}
}

// Stream returns the stream name frames are stamped with.
func (p *Pipeline) Stream() string { return p.stream }

// Seq returns the number of bars processed.
func (p *Pipeline) Seq() int { return p.seq }

// LastTS returns the timestamp of the last processed bar.
func (p *Pipeline) LastTS() time.Time { return p.lastTS }

// Len returns the number of subscribers.
func (p *Pipeline) Len() int { return len(p.subs) }

// Subscribe appends ind under name. Names must be unique.
func (p *Pipeline) Subscribe(name string, ind Indicator) error {
	if name == "" {
		return fmt.Errorf("subscribe: empty name")
	}
	if ind == nil {
		return fmt.Errorf("subscribe %q: nil indicator", name)
	}
	if _, dup := p.index[name]; dup {
		return fmt.Errorf("subscribe %q: already subscribed", name)
	}
	p.index[name] = len(p.subs)
	p.subs = append(p.subs, subscription{name: name, ind: ind})
	return nil
}

// Unsubscribe removes name, keeping the order of the rest.
func (p *Pipeline) Unsubscribe(name string) bool {
	i, ok := p.index[name]
	if !ok {
		return false
	}
	p.subs = append(p.subs[:i], p.subs[i+1:]...)
	p.reindex()
	return true
}

func (p *Pipeline) reindex() {
	p.index = make(map[string]int, len(p.subs))
	for i, s := range p.subs {
		p.index[s.name] = i
	}
}

// Names returns subscriber names in subscription order.
func (p *Pipeline) Names() []string {
	out := make([]string, len(p.subs))
	for i, s := range p.subs {
		out[i] = s.name
	}
	return out
}

// Indicator returns the instance subscribed under name.
func (p *Pipeline) Indicator(name string) (Indicator, bool) {
	i, ok := p.index[name]
	if !ok {
		return nil, false
	}
	return p.subs[i].ind, true
}

// OnBar updates every subscriber with bar, projected to the fields each one
// declares, and returns their outputs in subscription order. An indicator
// error lands in that indicator's Result only. A bar every subscriber
// rejected does not move the stream position, so a corrected bar with the
// same timestamp can follow.
func (p *Pipeline) OnBar(bar model.Bar) model.Frame {
	frame := p.run(bar, p.seq+1, false, func(s subscription) Indicator { return s.ind })
	if !frame.Rejected() {
		p.seq = frame.Seq
		p.lastTS = bar.TS
	}
	return frame
}

// Peek computes what OnBar would return for bar on clones of the current
// state. Nothing in the pipeline changes.
func (p *Pipeline) Peek(bar model.Bar) model.Frame {
	return p.run(bar, p.seq+1, true, func(s subscription) Indicator { return s.ind.Clone() })
}

func (p *Pipeline) run(bar model.Bar, seq int, live bool, pick func(subscription) Indicator) model.Frame {
	frame := model.Frame{
		Stream:  p.stream,
		Seq:     seq,
		Bar:     bar,
		Live:    live,
		Results: make([]model.Result, len(p.subs)),
	}
	for i, s := range p.subs {
		ind := pick(s)
		out, err := ind.Next(bar.Project(ind.Inputs()))
		frame.Results[i] = model.Result{Name: s.name, Columns: ind.Columns(), Output: out, Err: err}
	}
	return frame
}

// PipelineCheckpoint is an in-memory deep copy of a pipeline's state.
type PipelineCheckpoint struct {
	stream string
	subs   []subscription
	seq    int
	lastTS time.Time
}

// Seq returns the bar count at checkpoint time.
func (c *PipelineCheckpoint) Seq() int { return c.seq }

// Checkpoint captures the current state of every subscriber.
func (p *Pipeline) Checkpoint() *PipelineCheckpoint {
	return &PipelineCheckpoint{stream: p.stream, subs: cloneSubs(p.subs), seq: p.seq, lastTS: p.lastTS}
}

// Restore rewinds the pipeline to cp. The checkpoint stays reusable.
func (p *Pipeline) Restore(cp *PipelineCheckpoint) {
	p.stream = cp.stream
	p.subs = cloneSubs(cp.subs)
	p.seq = cp.seq
	p.lastTS = cp.lastTS
	p.reindex()
}

func cloneSubs(subs []subscription) []subscription {
	out := make([]subscription, len(subs))
	for i, s := range subs {
		out[i] = subscription{name: s.name, ind: s.ind.Clone()}
	}
	return out
}
