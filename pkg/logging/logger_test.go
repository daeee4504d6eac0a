// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Level Tests
// =============================================================================

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{" error ", LevelError, false},
		{"trace", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLevel_String(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", Level(42).String())
}

func TestLevel_YAML(t *testing.T) {
	var cfg Config
	require.NoError(t, yaml.Unmarshal([]byte("level: warn\nservice: pathforge\njson: true\n"), &cfg))
	assert.Equal(t, LevelWarn, cfg.Level)
	assert.True(t, cfg.JSON)

	assert.Error(t, yaml.Unmarshal([]byte("level: loud\n"), &cfg))
}

// =============================================================================
// Logger Tests
// =============================================================================

func TestNew_ConsoleText(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: LevelInfo, Service: "pathforge", Output: &buf})
	require.NoError(t, err)
	defer logger.Close()

	logger.Slog().Debug("hidden")
	logger.Slog().Info("path generated", "level_id", 3)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "path generated")
	assert.Contains(t, out, "service=pathforge")
	assert.Contains(t, out, "level_id=3")
	assert.Empty(t, logger.FilePath())
}

func TestNew_ConsoleJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: LevelDebug, Service: "pathforge", JSON: true, Output: &buf})
	require.NoError(t, err)

	logger.Slog().With(slog.String("component", "engine")).Debug("retry", "attempt", 2)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "retry", rec["msg"])
	assert.Equal(t, "engine", rec["component"])
	assert.Equal(t, "pathforge", rec["service"])
}

func TestNew_FileAndConsole(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	var buf bytes.Buffer
	logger, err := New(Config{Level: LevelInfo, LogDir: dir, Service: "pfd", Output: &buf})
	require.NoError(t, err)

	logger.Slog().With("request_id", "r-1").Warn("fallback used", "tier", "simple")
	path := logger.FilePath()
	require.NoError(t, logger.Close())
	require.NoError(t, logger.Close())

	assert.True(t, strings.HasPrefix(filepath.Base(path), "pfd_"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &rec))
	assert.Equal(t, "fallback used", rec["msg"])
	assert.Equal(t, "r-1", rec["request_id"])
	assert.Contains(t, buf.String(), "fallback used")
}

func TestNew_QuietWithoutFileDiscards(t *testing.T) {
	logger, err := New(Config{Quiet: true})
	require.NoError(t, err)
	assert.False(t, logger.Slog().Enabled(context.Background(), slog.LevelError))
}

func TestNew_BadLogDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	_, err := New(Config{LogDir: filepath.Join(file, "logs")})
	assert.Error(t, err)
}

func TestMultiHandler_Levels(t *testing.T) {
	var lo, hi bytes.Buffer
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&lo, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&hi, &slog.HandlerOptions{Level: slog.LevelError}),
	}}
	logger := slog.New(h).WithGroup("gen")
	logger.Info("checkpoint", "stage", "validation")

	assert.Contains(t, lo.String(), "gen.stage=validation")
	assert.Empty(t, hi.String())
	assert.True(t, h.Enabled(context.Background(), slog.LevelDebug))
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".pathforge"), expandPath("~/.pathforge"))
	assert.Equal(t, "/var/log", expandPath("/var/log"))
}
