// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/AleutianAI/pathforge/services/pathgen/errtrack"
	"github.com/AleutianAI/pathforge/services/pathgen/geom"
	"github.com/AleutianAI/pathforge/services/pathgen/levels"
	"github.com/AleutianAI/pathforge/services/pathgen/sampler"
	"github.com/AleutianAI/pathforge/services/pathgen/theme"
	"github.com/AleutianAI/pathforge/services/pathgen/validate"
)

// =============================================================================
// Fallback Tier
// =============================================================================

// FallbackTier records which stage of the chain produced a path.
type FallbackTier int

const (
	// TierNone is a path from the raw builder (or an authored static path).
	TierNone FallbackTier = iota

	// TierSimple is an interpolated path with lateral jitter.
	TierSimple

	// TierMinimal is the straight two-point path.
	TierMinimal
)

// String returns "none", "simple" or "minimal".
func (t FallbackTier) String() string {
	switch t {
	case TierNone:
		return "none"
	case TierSimple:
		return "simple"
	case TierMinimal:
		return "minimal"
	default:
		return fmt.Sprintf("FallbackTier(%d)", int(t))
	}
}

// MarshalJSON encodes the tier as its name.
func (t FallbackTier) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes a tier name.
func (t *FallbackTier) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "none", "":
		*t = TierNone
	case "simple":
		*t = TierSimple
	case "minimal":
		*t = TierMinimal
	default:
		return fmt.Errorf("unknown fallback tier %q", s)
	}
	return nil
}

// =============================================================================
// Path Mode
// =============================================================================

// PathMode is re-exported from levels so callers need only this package.
type PathMode = levels.PathMode

const (
	ModeStatic  = levels.ModeStatic
	ModeHybrid  = levels.ModeHybrid
	ModeDynamic = levels.ModeDynamic
)

// =============================================================================
// Request
// =============================================================================

// Request asks for one path.
//
// # Fields
//
//   - LevelID: level table key. Zero means "no level": Entry and Exit must
//     then be given explicitly.
//   - Seed: optional; absent derives from wall-clock time, invalid falls
//     back to a non-deterministic sampler with a warning.
//   - Theme: named or custom; zero uses the level's theme.
//   - PathMode: empty uses the level's mode.
//   - CanvasWidth/CanvasHeight: zero uses the level's canvas.
//   - Entry/Exit: override the level endpoints.
//   - Trigger: free-form reason for event-driven regeneration.
type Request struct {
	LevelID      int          `json:"level_id" validate:"gte=0"`
	Seed         sampler.Seed `json:"seed"`
	Theme        theme.Spec   `json:"theme"`
	PathMode     PathMode     `json:"path_mode,omitempty" validate:"omitempty,oneof=static hybrid dynamic"`
	CanvasWidth  float64      `json:"canvas_width,omitempty" validate:"gte=0"`
	CanvasHeight float64      `json:"canvas_height,omitempty" validate:"gte=0"`
	Entry        *geom.Point  `json:"entry,omitempty"`
	Exit         *geom.Point  `json:"exit,omitempty"`
	Trigger      string       `json:"trigger,omitempty" validate:"max=128"`
}

// =============================================================================
// Path
// =============================================================================

// Metadata describes how a path was produced.
type Metadata struct {
	RequestID       string        `json:"request_id"`
	LevelID         int           `json:"level_id"`
	GeneratedAt     time.Time     `json:"generated_at"`
	GenerationTime  time.Duration `json:"generation_time_ns"`
	RetryCount      int           `json:"retry_count"`
	Seed            int64         `json:"seed"`
	Deterministic   bool          `json:"deterministic"`
	ThemeName       string        `json:"theme_name"`
	PathMode        PathMode      `json:"path_mode"`
	FallbackTier    FallbackTier  `json:"fallback_tier"`
	Static          bool          `json:"static,omitempty"`
	BoundingBox     geom.Rect     `json:"bounding_box"`
	TotalLength     float64       `json:"total_length"`
	ComplexityScore float64       `json:"complexity_score"`
	BalanceScore    float64       `json:"balance_score"`
	Trigger         string        `json:"trigger,omitempty"`
	Warnings        []string      `json:"warnings,omitempty"`
}

// Path is an ordered waypoint list with its metadata. The first point is
// the entry, the last the exit; there are always at least two.
type Path struct {
	Points   []geom.Point `json:"points"`
	Metadata Metadata     `json:"metadata"`
}

// IsFallback reports whether a fallback tier produced p.
func (p *Path) IsFallback() bool {
	return p.Metadata.FallbackTier != TierNone
}

// Clone returns a deep copy of p.
func (p *Path) Clone() *Path {
	if p == nil {
		return nil
	}
	c := *p
	c.Points = geom.Clone(p.Points)
	c.Metadata.Warnings = append([]string(nil), p.Metadata.Warnings...)
	return &c
}

// =============================================================================
// Async Progress
// =============================================================================

// Stage names an async checkpoint.
type Stage string

const (
	StageInitialization Stage = "initialization"
	StageBuild          Stage = "build"
	StageValidation     Stage = "validation"
	StageCompletion     Stage = "completion"
)

// Progress is reported at every async checkpoint.
type Progress struct {
	Stage   Stage  `json:"stage"`
	Percent int    `json:"percent"`
	Message string `json:"message"`
}

// ProgressFunc receives async progress. It runs on the generation
// goroutine and must not block.
type ProgressFunc func(Progress)

// =============================================================================
// Preview
// =============================================================================

// PreviewOptions selects preview combinations. Empty slices mean "all".
type PreviewOptions struct {
	Themes []string
	Modes  []PathMode
	Seed   sampler.Seed
}

// Candidate is one preview path with its validation verdict.
type Candidate struct {
	Theme      string          `json:"theme"`
	Mode       PathMode        `json:"mode"`
	Path       *Path           `json:"path"`
	Validation validate.Result `json:"validation"`
}

// =============================================================================
// Diagnostics
// =============================================================================

// Diagnostics is a serialisable snapshot of engine state.
type Diagnostics struct {
	Stats        errtrack.Stats     `json:"stats"`
	RecentErrors []errtrack.Record  `json:"recent_errors"`
	SamplerCache sampler.CacheStats `json:"sampler_cache"`
	StaticPaths  int                `json:"static_paths_cached"`
	InFlight     bool               `json:"async_in_flight"`
	Config       Config             `json:"config"`
	Themes       []string           `json:"themes"`
	Levels       []int              `json:"levels"`
}
