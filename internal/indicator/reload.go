package indicator

import (
	"fmt"
	"log/slog"
)

// Reload switches the engine to a new spec set. Instances whose spec is
// unchanged keep their accumulated state (warm-up history); new specs start
// cold on every known stream. Returns the number of preserved and created
// indicator instances.
func (e *Engine) Reload(specs []Spec) (preserved, created int, err error) {
	if err := validateSpecs(e.reg, specs); err != nil {
		return 0, 0, err
	}

	for stream, old := range e.streams {
		p := NewPipeline(stream)
		p.seq, p.lastTS = old.seq, old.lastTS
		for _, s := range specs {
			if ind, ok := reusable(old, e.specs, s); ok {
				preserved++
				_ = p.Subscribe(s.Key(), ind)
				continue
			}
			ind, _ := e.reg.Build(s)
			_ = p.Subscribe(s.Key(), ind)
			created++
		}
		e.streams[stream] = p
	}

	slog.Info("indicator config reloaded",
		"component", "indicator",
		"specs", FormatSpecs(specs),
		"streams", len(e.streams),
		"preserved", preserved,
		"created", created,
	)
	e.specs = append([]Spec(nil), specs...)
	return preserved, created, nil
}

// reusable finds the old instance for s when its key maps to the same
// indicator and parameters as before.
func reusable(old *Pipeline, oldSpecs []Spec, s Spec) (Indicator, bool) {
	for _, prev := range oldSpecs {
		if prev.Key() == s.Key() && prev.base() == s.base() {
			return old.Indicator(s.Key())
		}
	}
	return nil, false
}

// SpecSetsEqual checks if two spec lists hold the same specs, ignoring order.
func SpecSetsEqual(a, b []Spec) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, s := range a {
		set[s.String()] = true
	}
	for _, s := range b {
		if !set[s.String()] {
			return false
		}
	}
	return true
}

// validateSpecs checks that every spec builds and that keys are unique.
func validateSpecs(reg *Registry, specs []Spec) error {
	seen := make(map[string]bool, len(specs))
	for _, s := range specs {
		if seen[s.Key()] {
			return fmt.Errorf("duplicate indicator %q", s.Key())
		}
		seen[s.Key()] = true
	}
	return reg.Validate(specs)
}
