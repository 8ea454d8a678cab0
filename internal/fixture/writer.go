package fixture

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"indstream/internal/model"
)

// Writer collects one value sequence per indicator and writes each to
// <dir>/<name>_values.json: null while unavailable, a number for scalar
// indicators, an object keyed by column for tuples. Writer implements
// model.FrameWriter; Close flushes.
type Writer struct {
	dir    string
	order  []string
	values map[string][]any
	firsts map[string][]float64
}

// NewWriter creates a writer for dir. The directory is created on flush.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir, values: make(map[string][]any), firsts: make(map[string][]float64)}
}

// Add appends every result of frame to its indicator's sequence.
func (w *Writer) Add(frame model.Frame) {
	for i := range frame.Results {
		r := &frame.Results[i]
		if _, ok := w.values[r.Name]; !ok {
			w.order = append(w.order, r.Name)
		}
		w.values[r.Name] = append(w.values[r.Name], r.Payload())
		if r.Err == nil && r.Output.Ready {
			w.firsts[r.Name] = append(w.firsts[r.Name], r.Output.Values[0])
		}
	}
}

// WriteFrames adds frames in order.
func (w *Writer) WriteFrames(_ context.Context, frames []model.Frame) error {
	for _, f := range frames {
		w.Add(f)
	}
	return nil
}

// Names returns the indicator names seen so far in first-seen order.
func (w *Writer) Names() []string { return append([]string(nil), w.order...) }

// Flush writes one file per indicator and returns the paths written.
func (w *Writer) Flush() ([]string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create fixture dir: %w", err)
	}
	paths := make([]string, 0, len(w.order))
	for _, name := range w.order {
		data, err := json.MarshalIndent(w.values[name], "", "  ")
		if err != nil {
			return paths, fmt.Errorf("encode %s: %w", name, err)
		}
		path := filepath.Join(w.dir, FileName(name))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return paths, fmt.Errorf("write %s: %w", name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Close flushes the collected sequences.
func (w *Writer) Close() error {
	_, err := w.Flush()
	return err
}

// Stats summarizes the first column of one indicator's ready values.
type Stats struct {
	Name  string
	Total int
	Ready int
	Min   float64
	Max   float64
	Mean  float64
}

// Summary returns per-indicator statistics in first-seen order.
func (w *Writer) Summary() []Stats {
	out := make([]Stats, 0, len(w.order))
	for _, name := range w.order {
		s := Stats{Name: name, Total: len(w.values[name])}
		if vs := w.firsts[name]; len(vs) > 0 {
			s.Ready = len(vs)
			s.Min = floats.Min(vs)
			s.Max = floats.Max(vs)
			s.Mean = stat.Mean(vs, nil)
		}
		out = append(out, s)
	}
	return out
}

// FileName maps an indicator key to its fixture file name. Characters that
// are awkward in file names (":" in "rsi:14") become "_".
func FileName(name string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		}
		return '_'
	}, name)
	return safe + "_values.json"
}
