// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validate checks points, endpoint pairs and whole paths.
//
// Three layers live here:
//
//   - Point and reachability checks on request endpoints.
//   - The structural validator (length, turns, segment sizing).
//   - The balance checker (coverage, variety, progression fit).
//
// Structural errors block acceptance. Warnings and balance findings are
// reported but never block on their own.
package validate

import (
	"github.com/go-playground/validator/v10"
)

var rulesValidate = validator.New()

// =============================================================================
// Structural Rules
// =============================================================================

// Rules holds the structural thresholds. Angles are in degrees.
type Rules struct {
	// MinPathLength is the shortest acceptable total length. Default: 200.
	MinPathLength float64 `yaml:"min_path_length" json:"min_path_length" validate:"gte=0"`

	// MaxPathLength is the longest acceptable total length. Default: 5000.
	MaxPathLength float64 `yaml:"max_path_length" json:"max_path_length" validate:"gtfield=MinPathLength"`

	// MaxTurnAngle is the largest allowed single turn. Default: 150.
	MaxTurnAngle float64 `yaml:"max_turn_angle" json:"max_turn_angle" validate:"gt=0,lte=180"`

	// SharpTurnAngle is the threshold above which a turn counts as sharp. Default: 100.
	SharpTurnAngle float64 `yaml:"sharp_turn_angle" json:"sharp_turn_angle" validate:"gt=0,ltefield=MaxTurnAngle"`

	// MaxSharpTurns is how many sharp turns a path may have. Default: 2.
	MaxSharpTurns int `yaml:"max_sharp_turns" json:"max_sharp_turns" validate:"gte=0"`

	// MinSegmentLength is the shortest allowed segment. Default: 15.
	MinSegmentLength float64 `yaml:"min_segment_length" json:"min_segment_length" validate:"gt=0"`

	// MaxSegmentLength is the longest allowed segment. Default: 300.
	MaxSegmentLength float64 `yaml:"max_segment_length" json:"max_segment_length" validate:"gtfield=MinSegmentLength"`

	// SegmentConsistencyRatio is the longest/shortest segment ratio above
	// which a warning is raised. Default: 8.
	SegmentConsistencyRatio float64 `yaml:"segment_consistency_ratio" json:"segment_consistency_ratio" validate:"gte=1"`

	// MaxComplexity raises a warning above this complexity score. Default: 0.95.
	MaxComplexity float64 `yaml:"max_complexity" json:"max_complexity" validate:"gte=0,lte=1"`

	// MaxDistance is the largest endpoint separation. Zero or negative
	// means the canvas diagonal.
	MaxDistance float64 `yaml:"max_distance" json:"max_distance"`
}

// DefaultRules returns the default structural thresholds.
func DefaultRules() Rules {
	return Rules{
		MinPathLength:           200,
		MaxPathLength:           5000,
		MaxTurnAngle:            150,
		SharpTurnAngle:          100,
		MaxSharpTurns:           2,
		MinSegmentLength:        15,
		MaxSegmentLength:        300,
		SegmentConsistencyRatio: 8,
		MaxComplexity:           0.95,
	}
}

// Validate checks the thresholds are coherent.
func (r Rules) Validate() error {
	return rulesValidate.Struct(r)
}

// Overrides are per-level partial replacements for Rules. Nil fields keep
// the base value.
type Overrides struct {
	MinPathLength           *float64 `yaml:"min_path_length,omitempty" json:"min_path_length,omitempty"`
	MaxPathLength           *float64 `yaml:"max_path_length,omitempty" json:"max_path_length,omitempty"`
	MaxTurnAngle            *float64 `yaml:"max_turn_angle,omitempty" json:"max_turn_angle,omitempty"`
	SharpTurnAngle          *float64 `yaml:"sharp_turn_angle,omitempty" json:"sharp_turn_angle,omitempty"`
	MaxSharpTurns           *int     `yaml:"max_sharp_turns,omitempty" json:"max_sharp_turns,omitempty"`
	MinSegmentLength        *float64 `yaml:"min_segment_length,omitempty" json:"min_segment_length,omitempty"`
	MaxSegmentLength        *float64 `yaml:"max_segment_length,omitempty" json:"max_segment_length,omitempty"`
	SegmentConsistencyRatio *float64 `yaml:"segment_consistency_ratio,omitempty" json:"segment_consistency_ratio,omitempty"`
	MaxComplexity           *float64 `yaml:"max_complexity,omitempty" json:"max_complexity,omitempty"`
	MaxDistance             *float64 `yaml:"max_distance,omitempty" json:"max_distance,omitempty"`
}

// Apply returns r with every non-nil override applied.
func (r Rules) Apply(o *Overrides) Rules {
	if o == nil {
		return r
	}
	setF := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	setF(&r.MinPathLength, o.MinPathLength)
	setF(&r.MaxPathLength, o.MaxPathLength)
	setF(&r.MaxTurnAngle, o.MaxTurnAngle)
	setF(&r.SharpTurnAngle, o.SharpTurnAngle)
	setF(&r.MinSegmentLength, o.MinSegmentLength)
	setF(&r.MaxSegmentLength, o.MaxSegmentLength)
	setF(&r.SegmentConsistencyRatio, o.SegmentConsistencyRatio)
	setF(&r.MaxComplexity, o.MaxComplexity)
	setF(&r.MaxDistance, o.MaxDistance)
	if o.MaxSharpTurns != nil {
		r.MaxSharpTurns = *o.MaxSharpTurns
	}
	return r
}
