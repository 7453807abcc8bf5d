// ABOUTME: Tests for logger construction and the colorized handler
// ABOUTME: Disables color so assertions can match plain text

package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noColor(t *testing.T) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for name, want := range tests {
		assert.Equal(t, want, ParseLevel(name), name)
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "info", "json")

	logger.With("component", "store").Info("opened", "path", "/tmp/x.db")
	logger.Debug("hidden")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "opened", rec["msg"])
	assert.Equal(t, "store", rec["component"])
	assert.Equal(t, "/tmp/x.db", rec["path"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestColorHandler_Format(t *testing.T) {
	noColor(t)
	var buf bytes.Buffer
	logger := New(&buf, "debug", "text")

	logger.With("component", "devserver").Warn("slow request", "status", 200)
	out := buf.String()
	assert.Contains(t, out, "WRN slow request")
	assert.Contains(t, out, " component=devserver")
	assert.Contains(t, out, " status=200")

	buf.Reset()
	logger.Debug("trace")
	assert.Contains(t, buf.String(), "DBG trace")
}

func TestColorHandler_LevelFilter(t *testing.T) {
	noColor(t)
	var buf bytes.Buffer
	logger := New(&buf, "warn", "")

	logger.Info("skipped")
	assert.Empty(t, buf.String())

	logger.Error("kept")
	assert.Contains(t, buf.String(), "ERR kept")
}

func TestColorHandler_Groups(t *testing.T) {
	noColor(t)
	var buf bytes.Buffer
	logger := New(&buf, "info", "text")

	logger.WithGroup("http").Info("served", "status", 404)
	assert.Contains(t, buf.String(), " http.status=404")

	buf.Reset()
	logger.Info("nested", slog.Group("req", "id", "abc"))
	assert.Contains(t, buf.String(), " req.id=abc")
}

func TestSetup_InstallsDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	Setup(&buf, "info", "json")
	slog.Default().With("component", "cli").Info("hello")
	assert.Contains(t, buf.String(), `"component":"cli"`)
}
