// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package levels

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/AleutianAI/pathforge/services/pathgen/geom"
	"github.com/AleutianAI/pathforge/services/pathgen/theme"
	"github.com/AleutianAI/pathforge/services/pathgen/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFile = `
version: v1.0.0
canvas: {width: 1000, height: 700}
levels:
  - id: 1
    theme: cyber
    entry: {x: 0, y: 350}
    exit: {x: 1000, y: 350}
  - id: 2
    path_mode: static
    allow_generation: false
    theme:
      straight_bias: 0.5
      curve_complexity: 0.5
      segment_length: {min: 30, max: 60}
    entry: {x: 0, y: 0}
    exit: {x: 300, y: 0}
    static_path:
      - {x: 0, y: 0}
      - {x: 150, y: 0}
      - {x: 300, y: 0}
    constraints:
      max_sharp_turns: 4
    balance:
      complexity: 0.3
`

func TestBuiltin(t *testing.T) {
	tbl := Builtin()

	l, ok := tbl.Level(1)
	require.True(t, ok)
	assert.Equal(t, geom.Pt(0, 300), l.Entry)
	assert.Equal(t, geom.Pt(800, 300), l.Exit)
	assert.Equal(t, "cyber", l.Theme.Name())
	assert.Equal(t, ModeHybrid, l.PathMode)
	assert.False(t, l.UsesStaticPath())

	static, ok := tbl.Level(4)
	require.True(t, ok)
	assert.True(t, static.UsesStaticPath())

	_, ok = tbl.Level(99)
	assert.False(t, ok)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, tbl.IDs())
}

func TestStaticTable_LevelReturnsCopy(t *testing.T) {
	tbl := Builtin()
	l, _ := tbl.Level(4)
	l.StaticPath[0] = geom.Pt(1, 1)

	again, _ := tbl.Level(4)
	assert.Equal(t, geom.Pt(0, 50), again.StaticPath[0])
}

func TestNewStaticTable_Rejects(t *testing.T) {
	good := LevelConfig{
		ID: 1, PathMode: ModeHybrid, AllowGeneration: true,
		Canvas: geom.Bounds{Width: 100, Height: 100}, Entry: geom.Pt(0, 0), Exit: geom.Pt(100, 100),
	}

	tests := []struct {
		name   string
		mutate func(*LevelConfig)
	}{
		{"bad mode", func(l *LevelConfig) { l.PathMode = "random" }},
		{"zero id", func(l *LevelConfig) { l.ID = 0 }},
		{"entry outside", func(l *LevelConfig) { l.Entry = geom.Pt(-5, 0) }},
		{"no canvas", func(l *LevelConfig) { l.Canvas = geom.Bounds{} }},
		{"locked without static path", func(l *LevelConfig) { l.AllowGeneration = false }},
		{"segment bounds inverted", func(l *LevelConfig) {
			minSeg := 500.0
			l.Constraints = &validate.Overrides{MinSegmentLength: &minSeg}
		}},
		{"sharp turn above max turn", func(l *LevelConfig) {
			sharp := 170.0
			l.Constraints = &validate.Overrides{SharpTurnAngle: &sharp}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := good
			tt.mutate(&l)
			_, err := NewStaticTable(l)
			assert.Error(t, err)
		})
	}

	_, err := NewStaticTable(good, good)
	assert.Error(t, err, "duplicate ids")
}

func TestParse(t *testing.T) {
	tbl, err := Parse([]byte(sampleFile))
	require.NoError(t, err)

	l1, ok := tbl.Level(1)
	require.True(t, ok)
	assert.Equal(t, ModeHybrid, l1.PathMode)
	assert.True(t, l1.AllowGeneration)
	assert.Equal(t, geom.Bounds{Width: 1000, Height: 700}, l1.Canvas)

	l2, ok := tbl.Level(2)
	require.True(t, ok)
	assert.True(t, l2.Theme.IsCustom())
	assert.False(t, l2.AllowGeneration)
	assert.True(t, l2.UsesStaticPath())
	require.NotNil(t, l2.Constraints)
	require.NotNil(t, l2.Constraints.MaxSharpTurns)
	assert.Equal(t, 4, *l2.Constraints.MaxSharpTurns)
	assert.InDelta(t, 0.3, l2.Balance.Complexity, 1e-9)

	_, err = theme.NewRegistry().Resolve(l2.Theme)
	assert.NoError(t, err)
}

func TestParse_Version(t *testing.T) {
	tests := []struct {
		version string
		ok      bool
	}{
		{"v1.0.0", true},
		{"1.1.0", true},
		{"v1.2.0", false},
		{"v2.0.0", false},
		{"latest", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			_, err := Parse([]byte("version: \"" + tt.version + "\"\nlevels: []\n"))
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestParse_RejectsIncoherentConstraints(t *testing.T) {
	doc := `
version: v1.0.0
canvas: {width: 800, height: 600}
levels:
  - id: 1
    entry: {x: 0, y: 300}
    exit: {x: 800, y: 300}
    constraints:
      min_segment_length: 500
`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "level 1: constraints")
	assert.Contains(t, err.Error(), "MaxSegmentLength")
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "levels.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleFile), 0o644))

	reloaded := make(chan error, 4)
	w, err := NewWatcher(path, WatcherOptions{
		Debounce: 20 * time.Millisecond,
		OnReload: func(_ *StaticTable, err error) { reloaded <- err },
	})
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	assert.Equal(t, []int{1, 2}, w.IDs())

	updated := sampleFile + `
  - id: 3
    theme: maze
    entry: {x: 0, y: 0}
    exit: {x: 500, y: 500}
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	select {
	case err := <-reloaded:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not reload")
	}
	assert.Equal(t, []int{1, 2, 3}, w.IDs())
	assert.GreaterOrEqual(t, w.Reloads(), int64(1))

	// A broken file keeps the previous table.
	require.NoError(t, os.WriteFile(path, []byte("version: v9.0.0\n"), 0o644))
	select {
	case err := <-reloaded:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not attempt reload")
	}
	_, ok := w.Level(3)
	assert.True(t, ok)
}
