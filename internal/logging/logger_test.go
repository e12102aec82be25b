package logging

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferedLogger(level LogLevel, format LogFormat) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := NewLogger(level, format)
	l.SetOutput(&buf)
	return l, &buf
}

func TestLogger_JSONEntry(t *testing.T) {
	l, buf := newBufferedLogger(LevelInfo, FormatJSON)

	l.WithField("accountId", 3).WithError(errors.New("boom")).Error("Scan failed")

	var entry LogEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "error", entry.Level)
	assert.Equal(t, "Scan failed", entry.Message)
	assert.Equal(t, float64(3), entry.Fields["accountId"])
	assert.Equal(t, "boom", entry.Fields["error"])
	assert.Contains(t, entry.Caller, "logger_test.go")
}

func TestLogger_LevelFiltering(t *testing.T) {
	l, buf := newBufferedLogger(LevelWarn, FormatText)

	l.Debug("hidden")
	l.Infof("hidden %d", 1)
	l.Warnf("shown %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "warn: shown 2")

	l.SetLevel(LevelDebug)
	l.Debugf("now %s", "visible")
	assert.Contains(t, buf.String(), "debug: now visible")
}

func TestLogger_DerivedLoggersDoNotShareFields(t *testing.T) {
	l, buf := newBufferedLogger(LevelInfo, FormatText)

	child := l.WithFields(map[string]interface{}{"scanId": "abc"})
	l.Info("parent")
	child.Info("child")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.NotContains(t, lines[0], "scanId")
	assert.Contains(t, lines[1], `fields={"scanId":"abc"}`)
}

func TestContextLogger(t *testing.T) {
	l, buf := newBufferedLogger(LevelInfo, FormatText)
	ctx := WithLogger(context.Background(), l.WithField("requestId", "r-1"))

	FromContext(ctx).Info("handled")
	assert.Contains(t, buf.String(), "r-1")

	assert.Same(t, GetGlobalLogger(), FromContext(context.Background()))
}

func TestGlobalLogger(t *testing.T) {
	prev := GetGlobalLogger()
	t.Cleanup(func() { SetGlobalLogger(prev) })

	l, buf := newBufferedLogger(LevelInfo, FormatJSON)
	SetGlobalLogger(l)

	WithFields(map[string]interface{}{"a": 1}).Info("one")
	Warn("two")
	assert.Contains(t, buf.String(), `"message":"one"`)
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestParse(t *testing.T) {
	assert.Equal(t, LevelWarn, ParseLogLevel("warning"))
	assert.Equal(t, LevelInfo, ParseLogLevel("verbose"))
	assert.Equal(t, FormatText, ParseLogFormat("text"))
	assert.Equal(t, FormatJSON, ParseLogFormat("yaml"))
}
