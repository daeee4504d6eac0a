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

	"github.com/AleutianAI/pathforge/services/pathgen/errtrack"
	"github.com/AleutianAI/pathforge/services/pathgen/geom"
)

// Structure is the outcome of the structural checks.
type Structure struct {
	Errors      []errtrack.Record
	Warnings    []errtrack.Record
	TotalLength float64
	Complexity  float64
	SharpTurns  int
}

// OK reports whether no blocking error was found.
func (s Structure) OK() bool { return len(s.Errors) == 0 }

// CheckStructure runs the structural checks against pts.
//
// # Description
//
// Checks, in order:
//
//  1. At least two points, none coincident with its predecessor, all
//     inside bounds.
//  2. Total length within [MinPathLength, MaxPathLength].
//  3. No turn above MaxTurnAngle, at most MaxSharpTurns turns above
//     SharpTurnAngle, and no two sharp turns back to back.
//  4. Every segment within [MinSegmentLength, MaxSegmentLength].
//
// Violations of 1-4 are errors. A longest/shortest segment ratio above
// SegmentConsistencyRatio and a complexity score above MaxComplexity are
// warnings.
//
// # Inputs
//
//   - pts: path waypoints, entry first
//   - bounds: canvas; a zero Bounds skips the containment check
//   - rules: thresholds
//   - context: stamped on every record
func CheckStructure(pts []geom.Point, bounds geom.Bounds, rules Rules, context string) Structure {
	var s Structure
	fail := func(format string, args ...any) {
		s.Errors = append(s.Errors, errtrack.NewRecord(errtrack.KindGeneration, errtrack.SeverityError,
			context, fmt.Sprintf(format, args...)))
	}
	warn := func(format string, args ...any) {
		s.Warnings = append(s.Warnings, errtrack.NewRecord(errtrack.KindGeneration, errtrack.SeverityWarning,
			context, fmt.Sprintf(format, args...)))
	}

	if len(pts) < 2 {
		fail("path has %d points, need at least 2", len(pts))
		return s
	}
	if geom.HasCoincident(pts) {
		fail("path has coincident consecutive points")
	}
	if bounds.Width > 0 && bounds.Height > 0 {
		for i, p := range pts {
			if !bounds.Contains(p) {
				fail("point %d %s outside canvas", i, p)
				break
			}
		}
	}

	// (a) total length
	s.TotalLength = geom.PathLength(pts)
	if s.TotalLength < rules.MinPathLength || s.TotalLength > rules.MaxPathLength {
		fail("path length %.1f outside [%.1f, %.1f]", s.TotalLength, rules.MinPathLength, rules.MaxPathLength)
	}

	// (b) turns
	turns := geom.TurnAngles(pts)
	maxTurn := geom.Radians(rules.MaxTurnAngle)
	sharp := geom.Radians(rules.SharpTurnAngle)
	prevSharp := false
	consecutive := false
	for i, a := range turns {
		if a > maxTurn+geom.Epsilon {
			fail("turn %d is %.1f°, limit %.1f°", i+1, geom.Degrees(a), rules.MaxTurnAngle)
		}
		isSharp := a > sharp
		if isSharp {
			s.SharpTurns++
			if prevSharp {
				consecutive = true
			}
		}
		prevSharp = isSharp
	}
	if s.SharpTurns > rules.MaxSharpTurns {
		fail("%d sharp turns, limit %d", s.SharpTurns, rules.MaxSharpTurns)
	}
	if consecutive {
		fail("consecutive sharp turns")
	}

	// (c) segments
	segs := geom.SegmentLengths(pts)
	shortest, longest := math.Inf(1), 0.0
	for i, l := range segs {
		if l < rules.MinSegmentLength-geom.Epsilon || l > rules.MaxSegmentLength+geom.Epsilon {
			fail("segment %d length %.1f outside [%.1f, %.1f]", i+1, l, rules.MinSegmentLength, rules.MaxSegmentLength)
		}
		shortest = math.Min(shortest, l)
		longest = math.Max(longest, l)
	}
	if shortest > 0 && rules.SegmentConsistencyRatio > 0 && longest/shortest > rules.SegmentConsistencyRatio {
		warn("segment length ratio %.1f above %.1f", longest/shortest, rules.SegmentConsistencyRatio)
	}

	s.Complexity = Complexity(pts)
	if s.Complexity > rules.MaxComplexity {
		warn("complexity %.2f above %.2f", s.Complexity, rules.MaxComplexity)
	}
	return s
}

// Complexity scores how winding a path is, in [0, 1].
//
// Half of the score is the mean turn angle relative to 60°, the other half
// is the excess of path length over the straight-line distance (a path
// twice as long as the direct route saturates it). A straight line scores 0.
func Complexity(pts []geom.Point) float64 {
	if len(pts) < 2 {
		return 0
	}
	var turnScore float64
	if turns := geom.TurnAngles(pts); len(turns) > 0 {
		var sum float64
		for _, a := range turns {
			sum += a
		}
		turnScore = math.Min(1, (sum/float64(len(turns)))/(math.Pi/3))
	}

	var windScore float64
	direct := geom.Distance(pts[0], pts[len(pts)-1])
	if direct > geom.Epsilon {
		windScore = math.Min(1, math.Max(0, geom.PathLength(pts)/direct-1))
	}
	return clamp01(0.5*turnScore + 0.5*windScore)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
