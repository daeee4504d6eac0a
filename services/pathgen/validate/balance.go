// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validate

import (
	"fmt"
	"math"

	"github.com/AleutianAI/pathforge/services/pathgen/geom"
)

// =============================================================================
// Balance Configuration
// =============================================================================

// BalanceConfig holds the balance heuristics. None of these numbers are
// load-bearing; tune them against play sessions.
type BalanceConfig struct {
	// Score weights. They are normalised, so only their ratio matters.
	CoverageWeight    float64 `yaml:"coverage_weight" json:"coverage_weight" validate:"gte=0"`
	VarietyWeight     float64 `yaml:"variety_weight" json:"variety_weight" validate:"gte=0"`
	ProgressionWeight float64 `yaml:"progression_weight" json:"progression_weight" validate:"gte=0"`

	// CurvatureShare is the part of coverage from curvature; the rest
	// comes from segment spacing.
	CurvatureShare float64 `yaml:"curvature_share" json:"curvature_share" validate:"gte=0,lte=1"`

	// DefensiveSpacingMin/Max bound the segment lengths that leave room for
	// tower placements on both sides.
	DefensiveSpacingMin float64 `yaml:"defensive_spacing_min" json:"defensive_spacing_min" validate:"gte=0"`
	DefensiveSpacingMax float64 `yaml:"defensive_spacing_max" json:"defensive_spacing_max" validate:"gtefield=DefensiveSpacingMin"`

	// OrientationSectors is how many heading sectors variety is counted over.
	OrientationSectors int `yaml:"orientation_sectors" json:"orientation_sectors" validate:"gte=1"`

	// Progression curve: expected complexity = Base + Slope*(level-1), capped at 1.
	BaseComplexity      float64 `yaml:"base_complexity" json:"base_complexity" validate:"gte=0,lte=1"`
	ComplexitySlope     float64 `yaml:"complexity_slope" json:"complexity_slope" validate:"gte=0"`
	ComplexityTolerance float64 `yaml:"complexity_tolerance" json:"complexity_tolerance" validate:"gt=0"`

	// WarningPenalty is subtracted from the score per structural warning.
	WarningPenalty float64 `yaml:"warning_penalty" json:"warning_penalty" validate:"gte=0"`

	// LowScore triggers a recommendation when the final score is below it.
	LowScore float64 `yaml:"low_score" json:"low_score" validate:"gte=0,lte=1"`
}

// DefaultBalanceConfig returns the default heuristics.
func DefaultBalanceConfig() BalanceConfig {
	return BalanceConfig{
		CoverageWeight:      0.4,
		VarietyWeight:       0.3,
		ProgressionWeight:   0.3,
		CurvatureShare:      0.5,
		DefensiveSpacingMin: 40,
		DefensiveSpacingMax: 160,
		OrientationSectors:  8,
		BaseComplexity:      0.15,
		ComplexitySlope:     0.05,
		ComplexityTolerance: 0.2,
		WarningPenalty:      0.05,
		LowScore:            0.4,
	}
}

// Validate checks the heuristics are coherent.
func (c BalanceConfig) Validate() error {
	return rulesValidate.Struct(c)
}

// ExpectedComplexity is the target complexity for a 1-based level index.
func (c BalanceConfig) ExpectedComplexity(level int) float64 {
	if level < 1 {
		level = 1
	}
	return math.Min(1, c.BaseComplexity+c.ComplexitySlope*float64(level-1))
}

// Targets are per-level balance goals. Zero values use the curve.
type Targets struct {
	// Complexity overrides ExpectedComplexity for this level.
	Complexity float64 `yaml:"complexity,omitempty" json:"complexity,omitempty" validate:"gte=0,lte=1"`

	// MinScore raises a recommendation when the score is below it.
	MinScore float64 `yaml:"min_score,omitempty" json:"min_score,omitempty" validate:"gte=0,lte=1"`
}

// =============================================================================
// Balance Checker
// =============================================================================

// Balance is the outcome of the balance heuristics.
type Balance struct {
	Score           float64          `json:"score"`
	Coverage        float64          `json:"coverage"`
	Variety         float64          `json:"variety"`
	Progression     float64          `json:"progression"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`
}

// Recommendation is a human-readable balance hint.
type Recommendation struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Recommendation codes.
const (
	RecLowCoverage     = "low_coverage"
	RecLowVariety      = "low_variety"
	RecTooSimple       = "too_simple"
	RecTooComplex      = "too_complex"
	RecBelowTarget     = "below_target"
	RecStructuralNoise = "structural_warnings"
)

// CheckBalance scores pts for a level position.
//
// # Description
//
// coverage blends mean curvature (turn angle relative to 90°) with the
// fraction of segments inside the defensive spacing band. variety is the
// number of distinct orientation sectors used over the number available
// to a path of this many segments. progression is 1 when complexity
// matches the level target and falls off linearly over the tolerance.
// The weighted score loses WarningPenalty per structural warning and is
// clamped to [0, 1].
//
// Never blocks acceptance.
func CheckBalance(pts []geom.Point, level int, complexity float64, warnings int, targets Targets, cfg BalanceConfig) Balance {
	var b Balance
	segs := geom.SegmentLengths(pts)
	if len(segs) == 0 {
		return b
	}

	// coverage
	var curvature float64
	if turns := geom.TurnAngles(pts); len(turns) > 0 {
		var sum float64
		for _, a := range turns {
			sum += a
		}
		curvature = math.Min(1, (sum/float64(len(turns)))/(math.Pi/2))
	}
	inBand := 0
	for _, l := range segs {
		if l >= cfg.DefensiveSpacingMin && l <= cfg.DefensiveSpacingMax {
			inBand++
		}
	}
	spacing := float64(inBand) / float64(len(segs))
	b.Coverage = clamp01(cfg.CurvatureShare*curvature + (1-cfg.CurvatureShare)*spacing)

	// variety
	sectors := cfg.OrientationSectors
	if sectors < 1 {
		sectors = 1
	}
	seen := make(map[int]struct{}, sectors)
	width := 2 * math.Pi / float64(sectors)
	for i := 1; i < len(pts); i++ {
		if pts[i-1].Equal(pts[i]) {
			continue
		}
		h := geom.Heading(pts[i-1], pts[i])
		if h < 0 {
			h += 2 * math.Pi
		}
		seen[int(h/width)%sectors] = struct{}{}
	}
	possible := math.Min(float64(sectors), float64(len(segs)))
	b.Variety = clamp01(float64(len(seen)) / possible)
	if len(segs) == 1 {
		b.Variety = 0
	}

	// progression
	expected := cfg.ExpectedComplexity(level)
	if targets.Complexity > 0 {
		expected = targets.Complexity
	}
	tol := cfg.ComplexityTolerance
	if tol <= 0 {
		tol = 0.2
	}
	b.Progression = clamp01(1 - math.Abs(complexity-expected)/tol)

	total := cfg.CoverageWeight + cfg.VarietyWeight + cfg.ProgressionWeight
	if total <= 0 {
		total = 1
	}
	score := (cfg.CoverageWeight*b.Coverage + cfg.VarietyWeight*b.Variety + cfg.ProgressionWeight*b.Progression) / total
	score -= cfg.WarningPenalty * float64(warnings)
	b.Score = clamp01(score)

	rec := func(code, format string, args ...any) {
		b.Recommendations = append(b.Recommendations, Recommendation{Code: code, Message: fmt.Sprintf(format, args...)})
	}
	if b.Coverage < 0.3 {
		rec(RecLowCoverage, "few bends or spaced segments for tower placement (coverage %.2f)", b.Coverage)
	}
	if b.Variety < 0.4 && len(segs) > 1 {
		rec(RecLowVariety, "segments share %d orientation(s); vary direction", len(seen))
	}
	switch {
	case complexity < expected-tol:
		rec(RecTooSimple, "complexity %.2f below level %d target %.2f", complexity, level, expected)
	case complexity > expected+tol:
		rec(RecTooComplex, "complexity %.2f above level %d target %.2f", complexity, level, expected)
	}
	if warnings > 0 {
		rec(RecStructuralNoise, "%d structural warning(s) reduced the score", warnings)
	}
	floor := cfg.LowScore
	if targets.MinScore > floor {
		floor = targets.MinScore
	}
	if b.Score < floor {
		rec(RecBelowTarget, "balance score %.2f below %.2f", b.Score, floor)
	}
	return b
}
