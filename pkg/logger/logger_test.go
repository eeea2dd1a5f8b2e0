package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/runes-ledger/pkg/logger/slogx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line), buf.String())
	buf.Reset()
	return line
}

func TestReplaceLevel(t *testing.T) {
	testCases := []struct {
		level    slog.Level
		expected any
	}{
		{slog.LevelError, "ERROR"},
		{LevelCritical, "CRITICAL"},
		{LevelCritical + 1, "CRITICAL+1"},
		{LevelPanic, "PANIC"},
		{LevelFatal, "FATAL"},
		{LevelFatal + 2, "FATAL+2"},
	}
	for _, tc := range testCases {
		t.Run(tc.level.String(), func(t *testing.T) {
			var buf bytes.Buffer
			l := newLogger(&buf, Config{Output: "json"})
			l.Log(context.Background(), tc.level, "block indexed")
			assert.Equal(t, tc.expected, decodeLine(t, &buf)["level"])
		})
	}
}

func TestNewLoggerAttrs(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, Config{Output: "json"})

	l.Info("block indexed", slogx.Duration("latency", 1500*time.Millisecond), slogx.Error(errors.New("boom")))
	line := decodeLine(t, &buf)
	assert.EqualValues(t, 1500, line["latency"])
	assert.Equal(t, "boom", line[ErrorKey])
	assert.NotContains(t, line, ErrorVerboseKey)

	l.Debug("hidden")
	assert.Zero(t, buf.Len(), "debug is disabled by default")
}

func TestNewLoggerDebugExpandsErrors(t *testing.T) {
	defer SetLevel(slog.LevelInfo)
	var buf bytes.Buffer
	l := newLogger(&buf, Config{Output: "json", Debug: true})

	l.With("height", 840000).Error("failed to process block", slogx.Error(errors.New("boom")))
	line := decodeLine(t, &buf)
	assert.Equal(t, "boom", line[ErrorKey])
	assert.Contains(t, line[ErrorVerboseKey], "boom")
	assert.NotEmpty(t, line[ErrorStackTraceKey])
	assert.Contains(t, line, slog.SourceKey)
	assert.EqualValues(t, 840000, line["height"])
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	ctx := NewContext(context.Background(), newLogger(&buf, Config{Output: "json"}))
	ctx = WithContext(ctx, slogx.String("requestId", "req-1"))

	InfoContext(ctx, "Request Completed")
	assert.Equal(t, "req-1", decodeLine(t, &buf)["requestId"])

	assert.NotPanics(t, func() { FromContext(nil) })
}
