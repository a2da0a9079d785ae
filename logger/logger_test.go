package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelInfo, ParseLevel("bogus"))
}

func TestConsoleLoggerLevelGate(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsole(&buf, LevelWarn)
	l.Info("hidden")
	l.Error("shown %d", 1)
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown 1")
}

func TestConsoleLoggerWithFieldsAndPrefix(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsole(&buf, LevelTrace).WithPrefix("engine").With(map[string]interface{}{"layer": "l1"})
	l.Debug("hit")
	out := buf.String()
	assert.True(t, strings.Contains(out, "[engine]"))
	assert.True(t, strings.Contains(out, "layer=l1"))
}

func TestConsoleLoggerSetSinkRebinds(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	l := NewConsole(&buf1, LevelInfo)
	l.Info("to buf1")
	l.SetSink(&buf2, LevelInfo)
	l.Info("to buf2")
	assert.Contains(t, buf1.String(), "to buf1")
	assert.NotContains(t, buf1.String(), "to buf2")
	assert.Contains(t, buf2.String(), "to buf2")
}

func TestJSONLoggerEmitsOneObjectPerLine(t *testing.T) {
	var buf bytes.Buffer
	l := NewJSON(&buf, LevelInfo).With(map[string]interface{}{"key": "user:1"})
	l.Info("cache miss")
	var line jsonLine
	assert.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "info", line.Level)
	assert.Equal(t, "cache miss", line.Msg)
	assert.Equal(t, "user:1", line.Fields["key"])
}

func TestJSONLoggerLevelGate(t *testing.T) {
	var buf bytes.Buffer
	l := NewJSON(&buf, LevelError)
	l.Warn("suppressed")
	assert.Empty(t, buf.String())
}

func TestNoopLoggerDiscards(t *testing.T) {
	l := Noop()
	l.Info("anything")
	assert.False(t, l.IsLevelEnabled(LevelTrace))
}
