package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indstream/internal/model"
)

func TestDecodeBar(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	b := model.Bar{Symbol: "ETH", TS: ts, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 3}

	got, err := decodeBar("bar:ETH", goredis.XMessage{ID: "1-0", Values: map[string]interface{}{"data": string(b.JSON())}})
	require.NoError(t, err)
	assert.Equal(t, b, got)

	b.Symbol = ""
	got, err = decodeBar("bar:SOL", goredis.XMessage{ID: "2-0", Values: map[string]interface{}{"data": string(b.JSON())}})
	require.NoError(t, err)
	assert.Equal(t, "SOL", got.Symbol)

	_, err = decodeBar("bar:SOL", goredis.XMessage{ID: "3-0", Values: map[string]interface{}{}})
	assert.Error(t, err)

	_, err = decodeBar("bar:SOL", goredis.XMessage{ID: "4-0", Values: map[string]interface{}{"data": "{"}})
	assert.Error(t, err)
}

func TestIsBusyGroup(t *testing.T) {
	assert.True(t, isBusyGroup(errors.New("BUSYGROUP Consumer Group name already exists")))
	assert.False(t, isBusyGroup(errors.New("ERR no such key")))
	assert.False(t, isBusyGroup(nil))
}

// liveRedis returns a connection config for REDIS_TEST_ADDR or skips.
func liveRedis(t *testing.T) Config {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	return Config{Addr: addr}
}

func TestLive_BarsRoundTrip(t *testing.T) {
	cfg := liveRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	symbol := "test-" + uuid.NewString()
	w, err := New(WriterConfig{Config: cfg})
	require.NoError(t, err)
	defer w.Close()
	defer w.Client().Del(context.Background(), model.BarStreamKey(symbol))

	r, err := NewReader(ReaderConfig{Config: cfg, ConsumerGroup: "test", ConsumerName: uuid.NewString()})
	require.NoError(t, err)
	defer r.Close()
	require.NoError(t, r.EnsureConsumerGroup(ctx, []string{model.BarStreamKey(symbol)}))

	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	bars := []model.Bar{
		{Symbol: symbol, TS: t0, Close: 1},
		{Symbol: symbol, TS: t0.Add(time.Minute), Close: 2},
		{Symbol: symbol, TS: t0.Add(2 * time.Minute), Close: 3, Forming: true},
	}
	require.NoError(t, w.WriteBars(ctx, bars))

	out := make(chan model.Bar, 4)
	consumeCtx, stop := context.WithCancel(ctx)
	go r.ConsumeBars(consumeCtx, []string{symbol}, out)
	defer stop()

	replayed := make(chan model.Bar, 4)
	_, err = r.ReplayFromID(ctx, model.BarStreamKey(symbol), "0", replayed)
	require.NoError(t, err)
	close(replayed)
	var closes []float64
	for b := range replayed {
		closes = append(closes, b.Close)
	}
	assert.Equal(t, []float64{1, 2}, closes, "forming bars are not published")

	require.NoError(t, w.WriteBars(ctx, []model.Bar{{Symbol: symbol, TS: t0.Add(3 * time.Minute), Close: 4}}))
	var consumed []float64
	for len(consumed) < 3 {
		select {
		case b := <-out:
			consumed = append(consumed, b.Close)
		case <-ctx.Done():
			t.Fatalf("consumed only %v", consumed)
		}
	}
	assert.Equal(t, []float64{1, 2, 4}, consumed)
}

func TestLive_Checkpoint(t *testing.T) {
	cfg := liveRedis(t)
	ctx := context.Background()
	w, err := New(WriterConfig{Config: cfg})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.SaveCheckpointJSON(ctx, []byte(`{"version":1}`)))
	data, err := w.ReadLatestCheckpointJSON(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":1}`, string(data))
}
