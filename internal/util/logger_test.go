package util

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func newBufferLogger(level string, format LogFormat) (*Logger, *bytes.Buffer) {
	logger, _ := NewLogger(level, "", false)
	buf := &bytes.Buffer{}
	logger.AddOutput(NewConsoleOutput(buf, format))
	return logger, buf
}

func TestLoggerLevelFiltering(t *testing.T) {
	logger, buf := newBufferLogger("warn", FormatText)

	logger.Debug("hidden debug")
	logger.Info("hidden info")
	logger.Warn("shown warn")
	logger.Errorf("shown %s", "error")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] shown warn")
	assert.Contains(t, out, "[ERROR] shown error")
}

func TestLoggerTextFieldsSorted(t *testing.T) {
	logger, buf := newBufferLogger("debug", FormatText)

	logger.With(F("zeta", 1)).Info("state change", F("alpha", "x"), F("mid", true))

	line := strings.TrimSpace(buf.String())
	assert.True(t, strings.HasSuffix(line, "[INFO] state change alpha=x mid=true zeta=1"), line)
}

func TestLoggerJSONFormat(t *testing.T) {
	logger, buf := newBufferLogger("info", FormatJSON)

	logger.Info("connected", F("attempt", 2))

	var entry map[string]interface{}
	require.NoError(t, sonic.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "connected", entry["message"])
	fields := entry["fields"].(map[string]interface{})
	assert.EqualValues(t, 2, fields["attempt"])
}

func TestLoggerWithSharesLevel(t *testing.T) {
	logger, buf := newBufferLogger("info", FormatText)
	child := logger.With(F("component", "stream"))

	logger.SetLevel(LevelError)
	child.Info("suppressed")
	assert.Empty(t, buf.String())

	child.Error("kept")
	assert.Contains(t, buf.String(), "component=stream")
}

func TestLoggerWithContextAddsTraceIDs(t *testing.T) {
	logger, buf := newBufferLogger("info", FormatText)

	traceID, _ := trace.TraceIDFromHex("0123456789abcdef0123456789abcdef")
	spanID, _ := trace.SpanIDFromHex("0123456789abcdef")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	logger.WithContext(ctx).Info("probe")
	assert.Contains(t, buf.String(), "trace_id=0123456789abcdef0123456789abcdef")

	buf.Reset()
	logger.WithContext(context.Background()).Info("plain")
	assert.NotContains(t, buf.String(), "trace_id")
}

func TestNewLoggerFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	logger, err := NewLogger("info", path, false)
	require.NoError(t, err)

	logger.Info("to file")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[INFO] to file")
}

func TestNewLoggerBadPath(t *testing.T) {
	_, err := NewLogger("info", filepath.Join(t.TempDir(), "missing", "dir", "app.log"), false)
	assert.Error(t, err)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLogLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLogLevel("warning"))
	assert.Equal(t, LevelError, ParseLogLevel("error"))
	assert.Equal(t, LevelInfo, ParseLogLevel("bogus"))
}
