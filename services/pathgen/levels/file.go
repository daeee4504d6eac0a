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
	"fmt"
	"os"

	"github.com/AleutianAI/pathforge/services/pathgen/geom"
	"github.com/AleutianAI/pathforge/services/pathgen/theme"
	"github.com/AleutianAI/pathforge/services/pathgen/validate"
	"github.com/go-playground/validator/v10"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

// SchemaVersion is the newest level file schema this package reads.
// Files with the same major version and an equal or older minor load.
const SchemaVersion = "v1.1.0"

var levelValidate = validator.New()

// fileLevel mirrors LevelConfig with an optional AllowGeneration so an
// omitted key defaults to true.
type fileLevel struct {
	ID              int                 `yaml:"id"`
	Name            string              `yaml:"name"`
	PathMode        PathMode            `yaml:"path_mode"`
	Theme           theme.Spec          `yaml:"theme"`
	AllowGeneration *bool               `yaml:"allow_generation"`
	Canvas          *geom.Bounds        `yaml:"canvas"`
	Entry           geom.Point          `yaml:"entry"`
	Exit            geom.Point          `yaml:"exit"`
	StaticPath      []geom.Point        `yaml:"static_path"`
	Constraints     *validate.Overrides `yaml:"constraints"`
	Balance         validate.Targets    `yaml:"balance"`
}

// levelFile is the on-disk document.
//
//	version: v1.1.0
//	canvas: {width: 800, height: 600}
//	levels:
//	  - id: 1
//	    path_mode: hybrid
//	    theme: cyber
//	    entry: {x: 0, y: 300}
//	    exit: {x: 800, y: 300}
type levelFile struct {
	Version string      `yaml:"version"`
	Canvas  geom.Bounds `yaml:"canvas"`
	Levels  []fileLevel `yaml:"levels"`
}

// LoadFile reads and validates a level file.
func LoadFile(path string) (*StaticTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading level file: %w", err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Parse decodes a level document.
//
// # Description
//
// Checks the schema version with semantic-version rules, applies the
// document canvas to levels that omit their own, defaults path_mode to
// hybrid and allow_generation to true, then validates every level.
func Parse(data []byte) (*StaticTable, error) {
	var doc levelFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing level file: %w", err)
	}
	if err := checkVersion(doc.Version); err != nil {
		return nil, err
	}
	if doc.Canvas.Width == 0 && doc.Canvas.Height == 0 {
		doc.Canvas = geom.Bounds{Width: 800, Height: 600}
	}

	out := make([]LevelConfig, 0, len(doc.Levels))
	for _, fl := range doc.Levels {
		l := LevelConfig{
			ID:              fl.ID,
			Name:            fl.Name,
			PathMode:        fl.PathMode,
			Theme:           fl.Theme,
			AllowGeneration: true,
			Canvas:          doc.Canvas,
			Entry:           fl.Entry,
			Exit:            fl.Exit,
			StaticPath:      fl.StaticPath,
			Constraints:     fl.Constraints,
			Balance:         fl.Balance,
		}
		if fl.AllowGeneration != nil {
			l.AllowGeneration = *fl.AllowGeneration
		}
		if fl.Canvas != nil {
			l.Canvas = *fl.Canvas
		}
		if l.PathMode == "" {
			l.PathMode = ModeHybrid
		}
		out = append(out, l)
	}
	return NewStaticTable(out...)
}

func checkVersion(v string) error {
	if v == "" {
		return fmt.Errorf("level file has no version")
	}
	if v[0] != 'v' {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return fmt.Errorf("level file version %q is not a semantic version", v)
	}
	if semver.Major(v) != semver.Major(SchemaVersion) {
		return fmt.Errorf("level file version %s incompatible with %s", v, SchemaVersion)
	}
	if semver.Compare(v, SchemaVersion) > 0 {
		return fmt.Errorf("level file version %s is newer than supported %s", v, SchemaVersion)
	}
	return nil
}
