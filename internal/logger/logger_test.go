package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T, level, format string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Configure(level, format, &buf))
	t.Cleanup(func() {
		_ = Configure("info", "text", os.Stdout)
	})
	return &buf
}

func TestTaggedHelpers_JSON(t *testing.T) {
	buf := capture(t, "info", "json")
	Info("SIM", "starting")
	Success("OUT", "written")
	Warn("NET", "slow")
	Error("HTTP", "failed")
	Debug("SIM", "hidden")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "SIM", first["tag"])
	assert.Equal(t, "starting", first["msg"])
	assert.Equal(t, "info", first["level"])

	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, true, second["ok"])
}

func TestSectionStatsBanner(t *testing.T) {
	buf := capture(t, "debug", "text")
	Section("Simulation")
	Stats("steps", 42)
	Banner("")
	out := buf.String()
	assert.Contains(t, out, "== Simulation ==")
	assert.Contains(t, out, "steps=42")
	assert.Contains(t, out, "version=dev")
}

func TestConfigure_Rejects(t *testing.T) {
	assert.Error(t, Configure("loud", "text", nil))
	assert.Error(t, Configure("info", "xml", nil))
}
