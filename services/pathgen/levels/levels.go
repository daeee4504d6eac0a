// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package levels supplies per-level path configuration.
//
// A Table maps level ids to a LevelConfig: endpoints, canvas, path mode,
// theme, whether generation is allowed, an optional authored static path,
// structural overrides and balance targets. The engine only reads through
// the Table interface; the built-in table, a YAML file, or a hot-reloading
// Watcher can all back it.
package levels

import (
	"errors"
	"fmt"
	"sort"

	"github.com/AleutianAI/pathforge/services/pathgen/geom"
	"github.com/AleutianAI/pathforge/services/pathgen/theme"
	"github.com/AleutianAI/pathforge/services/pathgen/validate"
)

// =============================================================================
// Path Mode
// =============================================================================

// PathMode selects how a level obtains its path.
type PathMode string

const (
	// ModeStatic always uses the authored path when one exists.
	ModeStatic PathMode = "static"

	// ModeHybrid generates, falling back to the authored path on demand.
	ModeHybrid PathMode = "hybrid"

	// ModeDynamic generates and folds regeneration triggers into the seed.
	ModeDynamic PathMode = "dynamic"
)

// Modes lists every PathMode.
var Modes = []PathMode{ModeStatic, ModeHybrid, ModeDynamic}

// IsValid reports whether m is a known mode.
func (m PathMode) IsValid() bool {
	switch m {
	case ModeStatic, ModeHybrid, ModeDynamic:
		return true
	}
	return false
}

// =============================================================================
// Level Config
// =============================================================================

// ErrLevelNotFound is returned for ids missing from a Table.
var ErrLevelNotFound = errors.New("level not found")

// LevelConfig is the per-level collaborator record.
type LevelConfig struct {
	ID              int                 `json:"id" yaml:"id" validate:"gte=1"`
	Name            string              `json:"name,omitempty" yaml:"name,omitempty"`
	PathMode        PathMode            `json:"path_mode" yaml:"path_mode" validate:"oneof=static hybrid dynamic"`
	Theme           theme.Spec          `json:"theme" yaml:"theme"`
	AllowGeneration bool                `json:"allow_generation" yaml:"allow_generation"`
	Canvas          geom.Bounds         `json:"canvas" yaml:"canvas"`
	Entry           geom.Point          `json:"entry" yaml:"entry"`
	Exit            geom.Point          `json:"exit" yaml:"exit"`
	StaticPath      []geom.Point        `json:"static_path,omitempty" yaml:"static_path,omitempty"`
	Constraints     *validate.Overrides `json:"constraints,omitempty" yaml:"constraints,omitempty"`
	Balance         validate.Targets    `json:"balance,omitempty" yaml:"balance,omitempty"`
}

// UsesStaticPath reports whether the engine should skip generation.
func (l LevelConfig) UsesStaticPath() bool {
	if len(l.StaticPath) < 2 {
		return false
	}
	return !l.AllowGeneration || l.PathMode == ModeStatic
}

// Check validates the record beyond its struct tags.
func (l LevelConfig) Check() error {
	if err := levelValidate.Struct(l); err != nil {
		return fmt.Errorf("level %d: %w", l.ID, err)
	}
	if l.Canvas.Width <= 0 || l.Canvas.Height <= 0 {
		return fmt.Errorf("level %d: canvas %vx%v must be positive", l.ID, l.Canvas.Width, l.Canvas.Height)
	}
	for name, p := range map[string]geom.Point{"entry": l.Entry, "exit": l.Exit} {
		if !l.Canvas.Contains(p) {
			return fmt.Errorf("level %d: %s %s outside canvas", l.ID, name, p)
		}
	}
	if !l.AllowGeneration && len(l.StaticPath) < 2 {
		return fmt.Errorf("level %d: generation disabled but no static path", l.ID)
	}
	// Overrides are checked against the default rules here; the engine
	// re-checks them against its own base rules per request.
	if err := validate.DefaultRules().Apply(l.Constraints).Validate(); err != nil {
		return fmt.Errorf("level %d: constraints: %w", l.ID, err)
	}
	return nil
}

// =============================================================================
// Table
// =============================================================================

// Table looks up level configuration by id.
type Table interface {
	Level(id int) (LevelConfig, bool)
	IDs() []int
}

// StaticTable is an immutable in-memory Table.
type StaticTable struct {
	levels map[int]LevelConfig
}

// NewStaticTable builds a table, rejecting duplicates and invalid records.
func NewStaticTable(levels ...LevelConfig) (*StaticTable, error) {
	t := &StaticTable{levels: make(map[int]LevelConfig, len(levels))}
	for _, l := range levels {
		if err := l.Check(); err != nil {
			return nil, err
		}
		if _, dup := t.levels[l.ID]; dup {
			return nil, fmt.Errorf("level %d defined twice", l.ID)
		}
		l.StaticPath = geom.Clone(l.StaticPath)
		t.levels[l.ID] = l
	}
	return t, nil
}

// Level returns the record for id.
func (t *StaticTable) Level(id int) (LevelConfig, bool) {
	l, ok := t.levels[id]
	if ok {
		l.StaticPath = geom.Clone(l.StaticPath)
	}
	return l, ok
}

// IDs returns the level ids in ascending order.
func (t *StaticTable) IDs() []int {
	ids := make([]int, 0, len(t.levels))
	for id := range t.levels {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Builtin returns the table shipped with the engine.
func Builtin() *StaticTable {
	canvas := geom.Bounds{Width: 800, Height: 600}
	t, err := NewStaticTable(
		LevelConfig{
			ID: 1, Name: "Outskirts", PathMode: ModeHybrid, Theme: theme.Named("cyber"),
			AllowGeneration: true, Canvas: canvas,
			Entry: geom.Pt(0, 300), Exit: geom.Pt(800, 300),
		},
		LevelConfig{
			ID: 2, Name: "Old Growth", PathMode: ModeHybrid, Theme: theme.Named("forest"),
			AllowGeneration: true, Canvas: canvas,
			Entry: geom.Pt(0, 100), Exit: geom.Pt(800, 500),
		},
		LevelConfig{
			ID: 3, Name: "Dunes", PathMode: ModeDynamic, Theme: theme.Named("desert"),
			AllowGeneration: true, Canvas: canvas,
			Entry: geom.Pt(400, 0), Exit: geom.Pt(400, 600),
		},
		LevelConfig{
			ID: 4, Name: "Fortress", PathMode: ModeStatic, Theme: theme.Named("classic"),
			AllowGeneration: false, Canvas: canvas,
			Entry: geom.Pt(0, 50), Exit: geom.Pt(800, 550),
			StaticPath: []geom.Point{
				{X: 0, Y: 50}, {X: 250, Y: 50}, {X: 250, Y: 300}, {X: 550, Y: 300}, {X: 550, Y: 550}, {X: 800, Y: 550},
			},
		},
		LevelConfig{
			ID: 5, Name: "Caldera", PathMode: ModeDynamic, Theme: theme.Named("volcanic"),
			AllowGeneration: true, Canvas: canvas,
			Entry: geom.Pt(0, 550), Exit: geom.Pt(800, 50),
			Balance: validate.Targets{Complexity: 0.45},
		},
	)
	if err != nil {
		panic(fmt.Sprintf("builtin level table: %v", err))
	}
	return t
}
