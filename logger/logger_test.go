package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type traceKey struct{}

func traceAttr(ctx context.Context) (slog.Attr, bool) {
	id, ok := ctx.Value(traceKey{}).(string)
	if !ok {
		return slog.Attr{}, false
	}
	return slog.String("trace_id", id), true
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
		err  bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"WARN", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew(t *testing.T) {
	t.Run("json with extractor", func(t *testing.T) {
		var buf bytes.Buffer
		log, err := New(Config{Output: &buf}, traceAttr, nil)
		require.NoError(t, err)

		ctx := context.WithValue(context.Background(), traceKey{}, "t-1")
		log.InfoContext(ctx, "hello", slog.Int("n", 1))
		log.Debug("hidden")

		var rec map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
		assert.Equal(t, "hello", rec["msg"])
		assert.Equal(t, "t-1", rec["trace_id"])
		assert.EqualValues(t, 1, rec["n"])
		assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
	})

	t.Run("text format and level", func(t *testing.T) {
		var buf bytes.Buffer
		log, err := New(Config{Output: &buf, Format: "text", Level: "debug"})
		require.NoError(t, err)

		log.Debug("visible")
		assert.Contains(t, buf.String(), "level=DEBUG msg=visible")
	})

	t.Run("extractors survive With", func(t *testing.T) {
		var buf bytes.Buffer
		log, err := New(Config{Output: &buf}, traceAttr)
		require.NoError(t, err)

		ctx := context.WithValue(context.Background(), traceKey{}, "t-2")
		log.With("component", "db").WithGroup("g").InfoContext(ctx, "grouped")
		assert.Contains(t, buf.String(), `"component":"db"`)
		assert.Contains(t, buf.String(), `"trace_id":"t-2"`)
	})

	t.Run("invalid config", func(t *testing.T) {
		_, err := New(Config{Format: "xml"})
		assert.Error(t, err)

		_, err = New(Config{Level: "loud"})
		assert.Error(t, err)

		_, err = New(Config{SentryDSN: "https://key@example.com/1", SentryLevel: "loud"})
		assert.Error(t, err)
	})
}

func TestFanout(t *testing.T) {
	var info, errs bytes.Buffer
	h := fanout{
		slog.NewJSONHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewJSONHandler(&errs, &slog.HandlerOptions{Level: slog.LevelError}),
	}
	log := slog.New(h)

	assert.False(t, h.Enabled(context.Background(), slog.LevelDebug))
	log.Info("one")
	log.Error("two")

	assert.Equal(t, 2, strings.Count(info.String(), "\n"))
	assert.Equal(t, 1, strings.Count(errs.String(), "\n"))
}

func TestLevelsFrom(t *testing.T) {
	assert.Equal(t, []slog.Level{slog.LevelWarn, slog.LevelError}, levelsFrom(slog.LevelWarn))
	assert.Equal(t, []slog.Level{slog.LevelError}, levelsFrom(slog.LevelError))
}

func TestDiscard(t *testing.T) {
	assert.False(t, Discard().Enabled(context.Background(), slog.LevelError))

	l := slog.Default()
	assert.Same(t, l, OrDiscard(l))
	assert.NotNil(t, OrDiscard(nil))
	assert.True(t, Flush(0))
}
