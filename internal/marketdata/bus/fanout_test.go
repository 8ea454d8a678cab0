package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indstream/internal/model"
)

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for value")
	}
	var zero T
	return zero
}

func TestFanOut_BroadcastsToAll(t *testing.T) {
	fo := New[model.Frame](10)
	out1 := fo.Subscribe("redis")
	out2 := fo.Subscribe("sqlite")

	input := make(chan model.Frame, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fo.Run(ctx, input)

	input <- model.Frame{Stream: "BTC", Seq: 1}
	input <- model.Frame{Stream: "BTC", Seq: 2}

	assert.Equal(t, 1, recv(t, out1).Seq)
	assert.Equal(t, 2, recv(t, out1).Seq)
	assert.Equal(t, 1, recv(t, out2).Seq)
	assert.Equal(t, 2, recv(t, out2).Seq)
}

func TestFanOut_DropsForSlowSubscriber(t *testing.T) {
	fo := New[int](1)
	fast := fo.Subscribe("fast")
	slow := fo.Subscribe("slow")
	var dropped []string
	fo.OnDrop = func(name string) { dropped = append(dropped, name) }

	fo.Publish(1)
	assert.Equal(t, 1, <-fast)
	fo.Publish(2)

	assert.Equal(t, []string{"slow"}, dropped)
	assert.Equal(t, 1, <-slow)
	assert.Equal(t, 2, <-fast)
}

func TestFanOut_ClosesOutputsWhenInputCloses(t *testing.T) {
	fo := New[int](4)
	out := fo.Subscribe("a")
	input := make(chan int, 1)
	input <- 7
	close(input)

	done := make(chan struct{})
	go func() {
		fo.Run(context.Background(), input)
		close(done)
	}()
	<-done

	assert.Equal(t, 7, <-out)
	_, ok := <-out
	assert.False(t, ok)
}

func TestFanOut_ChannelStats(t *testing.T) {
	fo := New[int](3)
	fo.Subscribe("a")
	fo.Subscribe("b")
	fo.Publish(1)

	stats := fo.ChannelStats()
	require.Len(t, stats, 2)
	assert.Equal(t, ChannelStat{Name: "a", Len: 1, Cap: 3}, stats[0])
	assert.Equal(t, ChannelStat{Name: "b", Len: 1, Cap: 3}, stats[1])
}
