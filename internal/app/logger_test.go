package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loanledger/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestNewLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(config.LogConfig{Level: "warn", Format: "json"}, &buf)

	log.Info("dropped")
	log.Warn("kept", slog.String("isbn", "111"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "111", entry["isbn"])
}

func TestNewLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(config.LogConfig{Level: "debug", Format: "text"}, &buf)

	log.Debug("reconciled", slog.Int("created", 2))
	assert.Contains(t, buf.String(), "msg=reconciled")
	assert.Contains(t, buf.String(), "created=2")
	assert.Contains(t, buf.String(), "source=")
}
