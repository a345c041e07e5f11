package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.wantErr, err != nil, tt.in)
	}
}

func restoreDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
}

func TestInit_SimpleFormat(t *testing.T) {
	restoreDefault(t)
	var buf bytes.Buffer

	l := Init(slog.LevelInfo, &buf, FormatSimple)
	l.With("task_id", "t-1").Info("task completed", "steps", 3, "note", "two words")
	l.Debug("hidden")

	assert.Equal(t, "INFO task completed task_id=t-1 steps=3 note=\"two words\"\n", buf.String())
}

func TestInit_JSONFormat(t *testing.T) {
	restoreDefault(t)
	var buf bytes.Buffer

	Init(slog.LevelDebug, &buf, FormatJSON)
	GetLogger("server").Debug("listening", "port", 8080)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "listening", rec["msg"])
	assert.Equal(t, "server", rec["component"])
	assert.Equal(t, float64(8080), rec["port"])
}

func TestCompactHandler_Groups(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(newCompactHandler(&buf, slog.LevelInfo, false))

	l.WithGroup("http").Warn("slow", slog.Group("req", "method", "POST"), "ms", 900)

	assert.Equal(t, "WARN slow http.req.method=POST http.ms=900\n", buf.String())
}

func TestOpenLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parley.log")

	f, cleanup, err := OpenLogFile(path)
	require.NoError(t, err)
	_, err = f.WriteString("first\n")
	require.NoError(t, err)
	cleanup()

	f, cleanup, err = OpenLogFile(path)
	require.NoError(t, err)
	_, err = f.WriteString("second\n")
	require.NoError(t, err)
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", string(data))

	_, _, err = OpenLogFile(filepath.Join(t.TempDir(), "missing", "x.log"))
	assert.Error(t, err)
}

func TestHCLog_BridgesLevels(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(newCompactHandler(&buf, slog.LevelInfo, false))

	hl := HCLog("plugin", l)
	hl.Debug("dropped")
	hl.Warn("plugin restarted", "pid", 42)

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "WARN plugin: plugin restarted")
	assert.Contains(t, out, "pid=42")
}
