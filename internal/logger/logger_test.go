package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in          string
		development bool
		want        zapcore.Level
		wantErr     bool
	}{
		{in: "", want: zapcore.InfoLevel},
		{in: "", development: true, want: zapcore.DebugLevel},
		{in: "warn", want: zapcore.WarnLevel},
		{in: "ERROR", want: zapcore.ErrorLevel},
		{in: "loud", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in, tt.development)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestLoggerWritesConsoleAndJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "router.log")
	var console bytes.Buffer

	l, err := newWithConsole(&Config{Level: "debug", File: path, MaxSize: 1}, &console)
	require.NoError(t, err)

	l.WithComponent("router").Info("Route executed", zap.Uint64("fee", 3))
	require.NoError(t, l.Close())

	assert.Contains(t, console.String(), "Route executed")
	assert.Contains(t, console.String(), "INFO")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(string(raw))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "Route executed", entry["msg"])
	assert.Equal(t, "router", entry["component"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Contains(t, entry, "timestamp")
	assert.EqualValues(t, 3, entry["fee"])
}

func TestLoggerRespectsLevel(t *testing.T) {
	var console bytes.Buffer
	l, err := newWithConsole(&Config{Level: "warn"}, &console)
	require.NoError(t, err)

	l.Info("hidden")
	l.Warn("shown")
	require.NoError(t, l.Close())

	assert.NotContains(t, console.String(), "hidden")
	assert.Contains(t, console.String(), "shown")
}

func TestWithOperationAddsCorrelationID(t *testing.T) {
	var console bytes.Buffer
	l, err := newWithConsole(&Config{Level: "debug"}, &console)
	require.NoError(t, err)

	end := l.TrackPerformance("route")
	end()
	require.NoError(t, l.Sync())

	out := console.String()
	assert.Contains(t, out, "Starting operation")
	assert.Contains(t, out, "Operation completed")
	assert.Contains(t, out, "correlation_id")
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(&Config{Level: "chatty"})
	assert.Error(t, err)
}
