// ABOUTME: Tests for logger construction and the color handler.
// ABOUTME: Color is disabled so output can be compared as plain text.

package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("loud"))
}

func TestColorHandler(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "info", "text").With("component", "faces")

	logger.Debug("hidden")
	logger.Info("face created", "face_id", "abc")
	logger.WithGroup("req").Warn("slow", "ms", 900)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "INF face created component=faces face_id=abc")
	assert.Contains(t, lines[1], "WRN slow component=faces req.ms=900")
}

func TestJSONHandler(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter(&buf, "debug", "json").Debug("hello", "n", 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, "DEBUG", rec["level"])
}

func TestColorHandlerGroupsAndQuoting(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "debug", "text")

	logger.WithGroup("rpc").With("method", "ListFaces").Debug("call",
		slog.Group("peer", "addr", "127.0.0.1"),
		"note", "two words",
	)

	line := strings.TrimSpace(buf.String())
	assert.Contains(t, line, "DBG call rpc.method=ListFaces rpc.peer.addr=127.0.0.1")
	assert.Contains(t, line, `rpc.note="two words"`)
}
