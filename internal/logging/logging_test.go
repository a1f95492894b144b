package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestInitJSON(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	logger := InitWriter(&buf, "info", "json")
	logger.Debug("hidden")
	slog.Info("cycle complete", "tenant", "t-1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "cycle complete", entry["msg"])
	assert.Equal(t, "t-1", entry["tenant"])
}

func TestInitText(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	InitWriter(&buf, "debug", "text").Debug("fetch", "source", "ec2")

	assert.Contains(t, buf.String(), "source=ec2")
	assert.Contains(t, buf.String(), "level=DEBUG")
}
