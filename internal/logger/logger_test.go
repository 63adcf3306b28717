package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capture redirects the package logger into a buffer for the duration
// of a test.
func capture(t *testing.T, level, format string) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	InitWithWriter(buf, level, format, false)
	t.Cleanup(func() {
		InitWithWriter(&bytes.Buffer{}, "INFO", "text", false)
	})
	return buf
}

func TestTextFormatContainsLevelAndFields(t *testing.T) {
	buf := capture(t, "DEBUG", "text")

	Info("server provisioned", "server", "srv-1", "port", 25565)

	line := buf.String()
	assert.Contains(t, line, "[INFO]")
	assert.Contains(t, line, "server provisioned")
	assert.Contains(t, line, "server=srv-1")
	assert.Contains(t, line, "port=25565")
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t, "WARN", "text")

	Debug("debug message")
	Info("info message")
	Warn("warn message")
	Error("error message")

	out := buf.String()
	assert.NotContains(t, out, "debug message")
	assert.NotContains(t, out, "info message")
	assert.Contains(t, out, "warn message")
	assert.Contains(t, out, "error message")
}

func TestSetLevelAtRuntime(t *testing.T) {
	buf := capture(t, "INFO", "text")

	Debug("before")
	SetLevel("DEBUG")
	Debug("after")

	out := buf.String()
	assert.NotContains(t, out, "before")
	assert.Contains(t, out, "after")
}

func TestSetLevelIgnoresUnknown(t *testing.T) {
	buf := capture(t, "INFO", "text")

	SetLevel("LOUD")
	Info("still info")

	assert.Contains(t, buf.String(), "still info")
}

func TestJSONFormat(t *testing.T) {
	buf := capture(t, "INFO", "json")

	Info("node registered", "node", "node-a", "port", 8080)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "INFO", record["level"])
	assert.Equal(t, "node registered", record["msg"])
	assert.Equal(t, "node-a", record["node"])
	assert.Equal(t, float64(8080), record["port"])
}

func TestContextFieldsPrepended(t *testing.T) {
	buf := capture(t, "INFO", "text")

	lc := NewLogContext("req-123", "10.0.0.7").WithUser("usr-9", "admin")
	ctx := WithContext(t.Context(), lc)

	InfoCtx(ctx, "request handled", "status", 200)

	line := buf.String()
	assert.Contains(t, line, "request_id=req-123")
	assert.Contains(t, line, "client_ip=10.0.0.7")
	assert.Contains(t, line, "user=usr-9")
	assert.Contains(t, line, "role=admin")
	// Correlation fields render before call-site fields.
	assert.Less(t, strings.Index(line, "request_id"), strings.Index(line, "status"))
}

func TestCtxWithoutLogContext(t *testing.T) {
	buf := capture(t, "INFO", "text")

	InfoCtx(t.Context(), "plain", "key", "value")

	line := buf.String()
	assert.Contains(t, line, "plain")
	assert.Contains(t, line, "key=value")
	assert.NotContains(t, line, "request_id")
}

func TestWithBindsAttributes(t *testing.T) {
	buf := capture(t, "INFO", "text")

	l := With("component", "engine")
	l.Info("starting")

	assert.Contains(t, buf.String(), "component=engine")
}

func TestLogContextClone(t *testing.T) {
	lc := NewLogContext("req-1", "127.0.0.1")
	clone := lc.WithUser("usr-1", "user")

	assert.Empty(t, lc.UserID)
	assert.Equal(t, "usr-1", clone.UserID)
	assert.Equal(t, "req-1", clone.RequestID)

	var nilCtx *LogContext
	assert.Nil(t, nilCtx.Clone())
	assert.Nil(t, nilCtx.WithUser("x", "y"))
}

func TestLogContextDurationMs(t *testing.T) {
	lc := NewLogContext("req-1", "127.0.0.1")
	lc.StartTime = time.Now().Add(-50 * time.Millisecond)

	assert.GreaterOrEqual(t, lc.DurationMs(), 50.0)

	var nilCtx *LogContext
	assert.Zero(t, nilCtx.DurationMs())
}

func TestFromContextMissing(t *testing.T) {
	assert.Nil(t, FromContext(t.Context()))
	assert.Nil(t, FromContext(nil)) //nolint:staticcheck
}

func TestErrAttr(t *testing.T) {
	buf := capture(t, "INFO", "text")

	Info("failed", Err(assert.AnError))
	assert.Contains(t, buf.String(), "error="+assert.AnError.Error())

	buf.Reset()
	Info("ok", Err(nil))
	assert.NotContains(t, buf.String(), "error=")
}
