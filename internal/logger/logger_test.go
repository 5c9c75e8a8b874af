package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDefault(t *testing.T) {
	t.Parallel()
	log := Default()
	require.NotNil(t, log)
	log.Debug("debug message")
}

func TestNewFormats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format string
		want   string
	}{
		{"json", `"key":"value"`},
		{"JSON", `"key":"value"`},
		{"text", "key=value"},
		{"pretty", "key=value"},
		{"", "key=value"},
	}
	for _, tc := range tests {
		var buf bytes.Buffer
		log, err := New(&buf, tc.format, slog.LevelInfo)
		require.NoError(t, err, tc.format)
		log.Info("hello", "key", "value")
		assert.Contains(t, buf.String(), tc.want, "format %q", tc.format)
	}
}

func TestNewUnknownFormat(t *testing.T) {
	t.Parallel()
	_, err := New(&bytes.Buffer{}, "xml", slog.LevelInfo)
	assert.Error(t, err)
}

func TestLevelFiltering(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log, err := New(&buf, "json", slog.LevelWarn)
	require.NoError(t, err)

	log.Info("should not appear")
	log.Debug("also should not appear")
	assert.Zero(t, buf.Len(), buf.String())

	log.Warn("should appear")
	assert.Contains(t, buf.String(), `"level":"WARN"`)
}

func TestCriticalLevelName(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	h := slog.NewJSONHandler(&buf, &slog.HandlerOptions{ReplaceAttr: replaceLevel})
	slog.New(h).Log(context.Background(), LevelCritical, "fatal thing")
	assert.Contains(t, buf.String(), `"level":"CRITICAL"`)

	buf.Reset()
	slog.New(NewPrettyHandler(&buf, nil)).Log(context.Background(), LevelCritical, "fatal thing")
	assert.Contains(t, buf.String(), "CRITICAL")
}

func TestWith(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log, err := New(&buf, "json", slog.LevelInfo)
	require.NoError(t, err)
	log.With("component", "fetch").Info("child message")
	assert.Contains(t, buf.String(), `"component":"fetch"`)
}

func TestContextRoundTrip(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log, err := New(&buf, "json", slog.LevelInfo)
	require.NoError(t, err)

	ctx := WithContext(context.Background(), log)
	FromContext(ctx).Info("roundtrip test")
	assert.Contains(t, buf.String(), "roundtrip test")
}

func TestFromContextDefault(t *testing.T) {
	t.Parallel()
	assert.NotNil(t, FromContext(context.Background()))
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected slog.Level
		wantErr  bool
	}{
		{"debug", slog.LevelDebug, false},
		{"DEBUG", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"WARNING", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"Critical", LevelCritical, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tc := range tests {
		got, err := ParseLevel(tc.input)
		if tc.wantErr {
			assert.Error(t, err, tc.input)
		} else {
			assert.NoError(t, err, tc.input)
		}
		assert.Equal(t, tc.expected, got, tc.input)
	}
}

func TestPrettyHandlerEnabled(t *testing.T) {
	t.Parallel()
	h := NewPrettyHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn})
	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))
}

func TestPrettyHandlerGroups(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	h := NewPrettyHandler(&buf, nil)
	assert.Equal(t, slog.Handler(h), h.WithGroup(""), "empty group returns the same handler")

	logger := slog.New(h.WithAttrs([]slog.Attr{slog.String("cmd", "infer")}).WithGroup("a").WithGroup("b"))
	logger.Info("nested", "key", "val")

	assert.Contains(t, buf.String(), "cmd=infer")
	assert.Contains(t, buf.String(), "a.b.key=val")
}

func TestPrettyQuoting(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := slog.New(NewPrettyHandler(&buf, nil))
	logger.Info("test", "msg", "hello world", "path", "/tmp/x.yaml")

	assert.Contains(t, buf.String(), `msg="hello world"`)
	assert.Contains(t, buf.String(), "path=/tmp/x.yaml")
}
