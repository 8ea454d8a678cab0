package indicator

import (
	"context"
	"fmt"
	"sort"

	"indstream/internal/model"
)

// Engine computes the same indicator set for many bar streams (one per
// symbol). Each stream gets its own Pipeline, created on the first bar.
// Designed for single-goroutine usage, no locks needed.
type Engine struct {
	reg     *Registry
	specs   []Spec
	streams map[string]*Pipeline
}

// NewEngine creates an engine for specs. Every spec is built once up front
// so configuration errors surface here rather than on the first bar.
func NewEngine(reg *Registry, specs []Spec) (*Engine, error) {
	if reg == nil {
		reg = defaultRegistry
	}
	if err := validateSpecs(reg, specs); err != nil {
		return nil, err
	}
	return &Engine{
		reg:     reg,
		specs:   append([]Spec(nil), specs...),
		streams: make(map[string]*Pipeline, 64),
	}, nil
}

// Specs returns the configured specs.
func (e *Engine) Specs() []Spec { return append([]Spec(nil), e.specs...) }

// Streams returns the known stream names, sorted.
func (e *Engine) Streams() []string {
	out := make([]string, 0, len(e.streams))
	for k := range e.streams {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Pipeline returns the pipeline of stream, if it has seen a bar.
func (e *Engine) Pipeline(stream string) (*Pipeline, bool) {
	p, ok := e.streams[stream]
	return p, ok
}

// Process feeds a completed bar to its stream's pipeline.
func (e *Engine) Process(bar model.Bar) model.Frame {
	key := bar.Key()
	p, exists := e.streams[key]
	if !exists {
		// First bar for this stream: create indicator instances
		p = e.newPipeline(key)
		e.streams[key] = p
	}
	return p.OnBar(bar)
}

// ProcessPeek computes live values for a forming bar without mutating
// state. It returns false for a stream that has not seen a completed bar.
func (e *Engine) ProcessPeek(bar model.Bar) (model.Frame, bool) {
	p, exists := e.streams[bar.Key()]
	if !exists {
		return model.Frame{}, false
	}
	return p.Peek(bar), true
}

// Run consumes bars and emits frames until ctx is done or in is closed.
// Forming bars produce live (peeked) frames.
func (e *Engine) Run(ctx context.Context, in <-chan model.Bar, out chan<- model.Frame) {
	for {
		select {
		case <-ctx.Done():
			return
		case bar, ok := <-in:
			if !ok {
				return
			}
			var frame model.Frame
			if bar.Forming {
				if frame, ok = e.ProcessPeek(bar); !ok {
					continue
				}
			} else {
				frame = e.Process(bar)
			}
			select {
			case out <- frame:
			case <-ctx.Done():
				return
			}
		}
	}
}

// newPipeline creates fresh indicator instances for every spec. Specs were
// validated by NewEngine/Reload, so a build failure is a programming error.
func (e *Engine) newPipeline(stream string) *Pipeline {
	p := NewPipeline(stream)
	for _, s := range e.specs {
		ind, err := e.reg.Build(s)
		if err != nil {
			panic(fmt.Sprintf("indicator engine: validated spec %s failed: %v", s, err))
		}
		if err := p.Subscribe(s.Key(), ind); err != nil {
			panic(fmt.Sprintf("indicator engine: %v", err))
		}
	}
	return p
}

// Checkpoint is an in-memory copy of every stream's state.
type Checkpoint struct {
	specs   []Spec
	streams map[string]*PipelineCheckpoint
}

// Checkpoint deep-copies the state of all streams.
func (e *Engine) Checkpoint() *Checkpoint {
	cp := &Checkpoint{specs: e.Specs(), streams: make(map[string]*PipelineCheckpoint, len(e.streams))}
	for k, p := range e.streams {
		cp.streams[k] = p.Checkpoint()
	}
	return cp
}

// Restore rewinds the engine to cp, including its spec set.
func (e *Engine) Restore(cp *Checkpoint) {
	e.specs = append([]Spec(nil), cp.specs...)
	e.streams = make(map[string]*Pipeline, len(cp.streams))
	for k, pc := range cp.streams {
		p := NewPipeline(k)
		p.Restore(pc)
		e.streams[k] = p
	}
}
