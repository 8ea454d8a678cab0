package fixture

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indstream/internal/model"
)

func frame(seq int, results ...model.Result) model.Frame {
	return model.Frame{Stream: "X", Seq: seq, Results: results}
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "sma_values.json", FileName("sma"))
	assert.Equal(t, "rsi_14_values.json", FileName("rsi:14"))
	assert.Equal(t, "bollingerBands_values.json", FileName("bollingerBands"))
	assert.Equal(t, "ewma_0_1_values.json", FileName("ewma:0.1"))
}

func TestWriter_WritesSequences(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	w := NewWriter(dir)

	cols := []string{"upper", "middle", "lower"}
	require.NoError(t, w.WriteFrames(context.Background(), []model.Frame{
		frame(1,
			model.Result{Name: "sma", Columns: []string{"value"}, Output: model.Unavailable()},
			model.Result{Name: "bb", Columns: cols, Output: model.Unavailable()},
		),
		frame(2,
			model.Result{Name: "sma", Columns: []string{"value"}, Output: model.Scalar(1.5)},
			model.Result{Name: "bb", Columns: cols, Output: model.Tuple(3, 2, 1)},
		),
	}))
	require.NoError(t, w.Close())

	assert.Equal(t, []string{"sma", "bb"}, w.Names())

	raw, err := os.ReadFile(filepath.Join(dir, "sma_values.json"))
	require.NoError(t, err)
	assert.Equal(t, "[\n  null,\n  1.5\n]", string(raw))

	raw, err = os.ReadFile(filepath.Join(dir, "bb_values.json"))
	require.NoError(t, err)
	var got []map[string]float64
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Len(t, got, 2)
	assert.Nil(t, got[0])
	assert.Equal(t, map[string]float64{"upper": 3, "middle": 2, "lower": 1}, got[1])
}

func TestWriter_ErrorsBecomeNull(t *testing.T) {
	w := NewWriter(t.TempDir())
	w.Add(frame(1, model.Result{Name: "roc", Output: model.Scalar(1), Err: errors.New("boom")}))
	paths, err := w.Flush()
	require.NoError(t, err)
	require.Len(t, paths, 1)

	raw, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, "[\n  null\n]", string(raw))
}

func TestWriter_Summary(t *testing.T) {
	w := NewWriter(t.TempDir())
	w.Add(frame(1, model.Result{Name: "sma", Output: model.Unavailable()}))
	w.Add(frame(2, model.Result{Name: "sma", Output: model.Scalar(2)}))
	w.Add(frame(3, model.Result{Name: "sma", Output: model.Scalar(4)}))

	s := w.Summary()
	require.Len(t, s, 1)
	assert.Equal(t, Stats{Name: "sma", Total: 3, Ready: 2, Min: 2, Max: 4, Mean: 3}, s[0])
}
