// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/AleutianAI/pathforge/pkg/ux"
	"github.com/AleutianAI/pathforge/services/pathgen/engine"
	"github.com/AleutianAI/pathforge/services/pathgen/errtrack"
	"github.com/AleutianAI/pathforge/services/pathgen/geom"
	"github.com/AleutianAI/pathforge/services/pathgen/levels"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the CLI with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd(&stdout, &stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), err
}

func generateJSON(t *testing.T, args ...string) *engine.Path {
	t.Helper()
	out, err := execute(t, append([]string{"generate", "--json"}, args...)...)
	require.NoError(t, err)
	var p engine.Path
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	return &p
}

// =============================================================================
// generate
// =============================================================================

func TestGenerate_Level1IsDeterministic(t *testing.T) {
	first := generateJSON(t, "--level", "1", "--seed", "12345")
	second := generateJSON(t, "--level", "1", "--seed", "12345")

	require.GreaterOrEqual(t, len(first.Points), 2)
	assert.Equal(t, geom.Pt(0, 300), first.Points[0])
	assert.Equal(t, geom.Pt(800, 300), first.Points[len(first.Points)-1])
	assert.Equal(t, int64(12345), first.Metadata.Seed)
	assert.True(t, first.Metadata.Deterministic)
	assert.Equal(t, "cyber", first.Metadata.ThemeName)
	assert.Equal(t, first.Points, second.Points)
}

func TestGenerate_AdHocEndpoints(t *testing.T) {
	p := generateJSON(t, "--level", "0", "--seed", "3",
		"--entry", "0,100", "--exit", "640,380", "--width", "640", "--height", "480")

	require.GreaterOrEqual(t, len(p.Points), 2)
	assert.InDelta(t, 0, p.Points[0].X, geom.Epsilon)
	assert.InDelta(t, 100, p.Points[0].Y, geom.Epsilon)
	last := p.Points[len(p.Points)-1]
	assert.InDelta(t, 640, last.X, geom.Epsilon)
	assert.InDelta(t, 380, last.Y, geom.Epsilon)
	for _, pt := range p.Points {
		assert.True(t, geom.Bounds{Width: 640, Height: 480}.Contains(pt), "%s outside canvas", pt)
	}
}

func TestGenerate_InvalidSeedIsReported(t *testing.T) {
	p := generateJSON(t, "--level", "1", "--seed", "not-a-number")
	assert.False(t, p.Metadata.Deterministic)
	assert.NotEmpty(t, p.Metadata.Warnings)
	assert.GreaterOrEqual(t, len(p.Points), 2)
}

func TestGenerate_TriggerAndMode(t *testing.T) {
	p := generateJSON(t, "--level", "2", "--seed", "9", "--mode", "dynamic", "--trigger", "wave-2")
	assert.Equal(t, "wave-2", p.Metadata.Trigger)
	assert.Equal(t, engine.ModeDynamic, p.Metadata.PathMode)
}

func TestGenerate_MachineOutput(t *testing.T) {
	out, err := execute(t, "generate", "--level", "1", "--seed", "12345", "--output", "machine")
	require.NoError(t, err)
	assert.Contains(t, out, "seed=12345")
	assert.Contains(t, out, "fallback_tier=")
}

func TestGenerate_PlainOutputWithProgress(t *testing.T) {
	out, err := execute(t, "generate", "--level", "1", "--seed", "1", "--output", "plain", "--progress")
	require.NoError(t, err)
	assert.Contains(t, out, "initialization")
	assert.Contains(t, out, "[100%] completion")
	assert.Contains(t, out, "Level 1 path")
	assert.Contains(t, out, "E")
	assert.Contains(t, out, "X")
}

func TestGenerate_BadEndpoint(t *testing.T) {
	_, err := execute(t, "generate", "--entry", "12")
	assert.Error(t, err)

	_, err = execute(t, "generate", "--exit", "1,y")
	assert.Error(t, err)
}

func TestGenerate_ProductionConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pathforge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  simple_fallback_enabled: false\n"), 0o644))

	p := generateJSON(t, "--config", path, "--production", "--level", "1", "--seed", "8")
	assert.GreaterOrEqual(t, len(p.Points), 2)

	_, err := execute(t, "generate", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

// =============================================================================
// preview / levels / diagnostics
// =============================================================================

func TestPreview_JSON(t *testing.T) {
	out, err := execute(t, "preview", "--level", "1", "--themes", "classic,forest", "--modes", "hybrid", "--seed", "5", "--json")
	require.NoError(t, err)

	var cands []engine.Candidate
	require.NoError(t, json.Unmarshal([]byte(out), &cands))
	require.Len(t, cands, 2)
	assert.Equal(t, "classic", cands[0].Theme)
	assert.Equal(t, "forest", cands[1].Theme)
	for _, c := range cands {
		assert.Equal(t, int64(5), c.Path.Metadata.Seed)
	}
}

func TestPreview_Errors(t *testing.T) {
	_, err := execute(t, "preview", "--modes", "chaotic")
	assert.Error(t, err)

	_, err = execute(t, "preview", "--level", "42", "--json")
	assert.ErrorIs(t, err, levels.ErrLevelNotFound)
}

func TestLevels_BuiltinAndFile(t *testing.T) {
	out, err := execute(t, "levels", "--json")
	require.NoError(t, err)
	var builtin []levels.LevelConfig
	require.NoError(t, json.Unmarshal([]byte(out), &builtin))
	assert.Len(t, builtin, 5)

	dir := t.TempDir()
	good := filepath.Join(dir, "levels.yaml")
	require.NoError(t, os.WriteFile(good, []byte(`
version: v1.0.0
canvas: {width: 400, height: 300}
levels:
  - id: 7
    name: canyon
    theme: forest
    entry: {x: 0, y: 150}
    exit: {x: 400, y: 150}
`), 0o644))

	out, err = execute(t, "levels", "--levels", good, "--output", "machine")
	require.NoError(t, err)
	assert.Contains(t, out, "canyon")
	assert.Equal(t, 1, strings.Count(out, "\n"))

	out, err = execute(t, "levels", "check", good, "--output", "machine")
	require.NoError(t, err)
	assert.Contains(t, out, "OK: ")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("version: v9.0.0\nlevels: []\n"), 0o644))
	out, err = execute(t, "levels", "check", bad, "--output", "machine")
	assert.Error(t, err)
	assert.Contains(t, out, "ERROR: ")
}

func TestDiagnostics_Production(t *testing.T) {
	out, err := execute(t, "diagnostics", "--runs", "10", "--production", "--json")
	require.NoError(t, err)

	var d engine.Diagnostics
	require.NoError(t, json.Unmarshal([]byte(out), &d))
	assert.Equal(t, 1, d.Config.MaxPathGenerationRetries)
	assert.Equal(t, errtrack.ModeProduction, d.Stats.Mode)
	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5}, d.Levels)

	out, err = execute(t, "diagnostics", "--runs", "3", "--level", "1", "--output", "machine")
	require.NoError(t, err)
	assert.Contains(t, out, "runs=3")

	_, err = execute(t, "diagnostics", "--runs", "0")
	assert.Error(t, err)
	_, err = execute(t, "diagnostics", "--level", "42")
	assert.Error(t, err)
}

// =============================================================================
// serve
// =============================================================================

func TestServe_HealthAndShutdown(t *testing.T) {
	g := &globalOptions{logLevel: "error", output: "machine"}
	var stdout, stderr bytes.Buffer
	a, err := g.load(&stdout, &stderr)
	require.NoError(t, err)
	defer a.Close()
	a.cfg.Telemetry.MetricExporter = "none"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	started := make(chan net.Addr, 1)
	opts := &serveOptions{
		listen:    "127.0.0.1:0",
		inMemory:  true,
		onStarted: func(addr net.Addr) { started <- addr },
	}

	done := make(chan error, 1)
	go func() { done <- runServe(ctx, a, opts) }()

	var addr net.Addr
	select {
	case addr = <-started:
	case err := <-done:
		t.Fatalf("server exited early: %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get(fmt.Sprintf("http://%s/v1/pathforge/levels/1/path", addr))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("server did not shut down")
	}
}

// =============================================================================
// helpers
// =============================================================================

func TestParseSeed(t *testing.T) {
	assert.False(t, parseSeed("").IsSet())

	s := parseSeed(" 42 ")
	v, ok := s.Value()
	assert.True(t, ok)
	assert.Equal(t, int64(42), v)

	bad := parseSeed("forty-two")
	assert.True(t, bad.IsSet())
	assert.False(t, bad.IsValid())
}

func TestParsePoint(t *testing.T) {
	p, err := parsePoint("12.5, 40")
	require.NoError(t, err)
	assert.Equal(t, geom.Pt(12.5, 40), *p)

	p, err = parsePoint("")
	assert.NoError(t, err)
	assert.Nil(t, p)

	for _, raw := range []string{"12", "x,1", "1,y"} {
		_, err := parsePoint(raw)
		assert.Error(t, err, raw)
	}
}

func TestSketch_Endpoints(t *testing.T) {
	pr := ux.NewPrinter(&bytes.Buffer{}, ux.ModePlain)
	out := sketch(pr, []geom.Point{geom.Pt(0, 0), geom.Pt(50, 50), geom.Pt(100, 100)},
		geom.Bounds{Width: 100, Height: 100}, 11, 11)

	rows := strings.Split(out, "\n")
	require.Len(t, rows, 11)
	assert.Equal(t, 'E', []rune(rows[0])[0])
	assert.Equal(t, 'o', []rune(rows[5])[5])
	assert.Equal(t, 'X', []rune(rows[10])[10])
	assert.Equal(t, '.', []rune(rows[3])[3])

	assert.Empty(t, sketch(pr, nil, geom.Bounds{Width: 1, Height: 1}, 4, 4))
}
