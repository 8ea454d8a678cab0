package indicator

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indstream/internal/model"
)

// memBars is an in-memory model.BarReader.
type memBars map[string][]model.Bar

func (m memBars) ReadBars(_ context.Context, symbol string, after time.Time) ([]model.Bar, error) {
	var out []model.Bar
	for _, b := range m[symbol] {
		if b.TS.After(after) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m memBars) Symbols(context.Context) ([]string, error) {
	var out []string
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

func (m memBars) Close() error { return nil }

func TestPosition_RoundTrip(t *testing.T) {
	engine, _ := NewEngine(nil, mustSpecs(t, "sma:3,macd"))
	bars := genBars("X", 12)
	for _, b := range bars {
		engine.Process(b)
	}
	pos := engine.Position("1700000000000-0", t0)
	data, err := MarshalPosition(pos)
	require.NoError(t, err)

	got, err := UnmarshalPosition(data)
	require.NoError(t, err)
	assert.Equal(t, "sma:3,macd", got.Specs)
	assert.Equal(t, "1700000000000-0", got.StreamID)
	sp, ok := got.Stream("X")
	require.True(t, ok)
	assert.Equal(t, 12, sp.Bars)
	assert.True(t, sp.LastTS.Equal(bars[11].TS))

	_, err = UnmarshalPosition([]byte(`{"version":99}`))
	assert.Error(t, err)
	_, err = UnmarshalPosition([]byte(`{`))
	assert.Error(t, err)
}

// Restoring from a position and catching up reproduces the uninterrupted run.
func TestRestorer_ReplayMatchesLiveRun(t *testing.T) {
	specs := mustSpecs(t, "rsi,macd,psar,supertrend,crsi:3:2:20")
	store := memBars{"X": genBars("X", 150), "Y": genBars("Y", 90)}

	live, _ := NewEngine(nil, specs)
	for _, b := range store["X"][:100] {
		live.Process(b)
	}
	for _, b := range store["Y"][:40] {
		live.Process(b)
	}
	pos := live.Position("", t0)

	var liveFrames []model.Frame
	for _, b := range store["X"][100:] {
		liveFrames = append(liveFrames, live.Process(b))
	}

	r := NewRestorer(nil, specs, store)
	restored, err := r.Restore(context.Background(), pos)
	require.NoError(t, err)
	px, _ := restored.Pipeline("X")
	assert.Equal(t, 100, px.Seq())

	var caught []model.Frame
	n, err := r.CatchUp(context.Background(), restored, nil, func(f model.Frame) {
		if f.Stream == "X" {
			caught = append(caught, f)
		}
	})
	require.NoError(t, err)
	assert.Equal(t, 50+50, n)
	require.Len(t, caught, len(liveFrames))
	for i := range caught {
		assert.Equal(t, liveFrames[i].Seq, caught[i].Seq)
		for j := range caught[i].Results {
			require.True(t, liveFrames[i].Results[j].Output.Equal(caught[i].Results[j].Output))
		}
	}
}

func TestRestorer_ColdStart(t *testing.T) {
	store := memBars{"X": genBars("X", 30)}
	r := NewRestorer(nil, mustSpecs(t, "sma:5"), store)
	engine, err := r.Restore(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, engine.Streams())

	n, err := r.CatchUp(context.Background(), engine, []string{"X", "Z"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 30, n)
	p, ok := engine.Pipeline("X")
	require.True(t, ok)
	assert.Equal(t, 30, p.Seq())
}

func TestRestorer_NoReader(t *testing.T) {
	r := NewRestorer(nil, mustSpecs(t, "sma:5"), nil)
	engine, err := r.Restore(context.Background(), &Position{Version: PositionVersion})
	require.NoError(t, err)
	n, err := r.CatchUp(context.Background(), engine, []string{"X"}, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}
