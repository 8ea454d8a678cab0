package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	l := Init("test-service", slog.LevelInfo)
	require.NotNil(t, l)
	assert.Same(t, l, slog.Default())
}

func TestNew_WritesJSONWithService(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "indstream", slog.LevelInfo)
	l.Debug("hidden")
	l.Info("bar processed", "stream", "BTC")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "indstream", rec["service"])
	assert.Equal(t, "bar processed", rec["msg"])
	assert.Equal(t, "BTC", rec["stream"])
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		" warn ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestTraceID_RoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, TraceID(ctx))

	ctx = WithTraceID(ctx, "test-trace-123")
	assert.Equal(t, "test-trace-123", TraceID(ctx))
}

func TestGenerateTraceID(t *testing.T) {
	ts := time.Date(2024, 1, 15, 10, 30, 0, 123456789, time.UTC)
	assert.Equal(t, "BTCUSDT-1705314600123456789", GenerateTraceID("BTCUSDT", ts))
}

func TestLogWithTrace(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, LogWithTrace(ctx))

	ctx = WithTraceID(ctx, "abc-123")
	assert.Len(t, LogWithTrace(ctx), 1)
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "svc", slog.LevelInfo)

	FromContext(WithTraceID(context.Background(), "t-1"), l).Info("x")
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "t-1", rec["trace_id"])

	assert.Same(t, l, FromContext(context.Background(), l))
}
