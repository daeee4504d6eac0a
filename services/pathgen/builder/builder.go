// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package builder walks a raw path from entry to exit.
//
// The walk is a biased random heading walk: every step turns the previous
// heading partly toward the exit and partly by a memoized jitter, then
// advances by a step length drawn from the theme's segment range. Two hard
// stops bound it: an iteration cap and a wall-clock budget checked every
// CheckInterval iterations. A stopped walk returns what it has so far,
// marked incomplete, together with a Generation warning.
package builder

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/AleutianAI/pathforge/services/pathgen/errtrack"
	"github.com/AleutianAI/pathforge/services/pathgen/geom"
	"github.com/AleutianAI/pathforge/services/pathgen/sampler"
	"github.com/AleutianAI/pathforge/services/pathgen/theme"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// DefaultMaxIterations caps walk steps when Input.MaxIterations is unset.
	DefaultMaxIterations = 1000

	// DefaultTimeBudget caps walk time when Input.TimeBudget is unset.
	DefaultTimeBudget = 250 * time.Millisecond

	// CheckInterval is how often (in iterations) the clock and ctx are read.
	CheckInterval = 50

	// maxStepTurn bounds the heading change of one step.
	maxStepTurn = math.Pi / 3

	// maxMargin is the largest inset from the canvas edge for walk points.
	maxMargin = 10.0
)

// Stop reasons reported in Result.StopReason.
const (
	StopNone          = ""
	StopMaxIterations = "max_iterations"
	StopTimeBudget    = "time_budget"
	StopCancelled     = "cancelled"
)

// Memo call sites.
const (
	siteHeading = "walk.heading"
)

// =============================================================================
// Types
// =============================================================================

// Input is everything one walk needs.
type Input struct {
	Start  geom.Point
	End    geom.Point
	Bounds geom.Bounds
	Theme  theme.Config

	// Sampler supplies every random draw. Required.
	Sampler *sampler.Sampler

	// MinSegment/MaxSegment are the structural segment limits; step
	// lengths are kept inside them as well as inside the theme range.
	MinSegment float64
	MaxSegment float64

	MaxIterations int
	TimeBudget    time.Duration

	// Context labels warnings (usually the level id).
	Context string
}

// Result is a walk outcome.
type Result struct {
	Points     []geom.Point
	Iterations int
	Complete   bool
	StopReason string
	Elapsed    time.Duration
}

// Builder produces a raw path. Implementations must be deterministic for
// a deterministic Sampler.
type Builder interface {
	Build(ctx context.Context, in Input) (Result, error)
}

// Walker is the default Builder.
//
// # Thread Safety
//
// Walker holds no per-call state and is safe for concurrent use, but the
// Sampler passed in Input is not.
type Walker struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewWalker creates a Walker. A nil logger discards output.
func NewWalker(logger *slog.Logger) *Walker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Walker{logger: logger.With(slog.String("component", "builder")), now: time.Now}
}

// =============================================================================
// Walk
// =============================================================================

// Build walks from in.Start toward in.End.
//
// # Description
//
// Each iteration:
//
//  1. Pulls the heading toward the exit by 0.35+0.5*StraightBias of the
//     angular gap, adds jitter of up to (1-StraightBias)*(0.2+0.8*CurveComplexity)*60°,
//     and clamps the change to ±60°.
//  2. Draws a step length from the theme range, narrowed to the
//     structural segment limits.
//  3. Clamps the proposed point inside the canvas margin. A step that the
//     clamp shrinks below the minimum segment is discarded and the heading
//     is turned toward the exit instead.
//
// The loop ends once the exit is closer than twice the nominal segment
// length. The closing segment is split at its midpoint when longer than
// the theme maximum, or merged into the previous point when shorter than
// the structural minimum.
//
// # Outputs
//
//   - Result: always carries the points built so far
//   - error: *errtrack.Error (KindGeneration, warning) when a hard stop
//     fired; Result.Complete is then false
//
// # Limitations
//
// The walk does not avoid its own earlier segments; self-crossing paths
// are possible with high CurveComplexity.
func (w *Walker) Build(ctx context.Context, in Input) (Result, error) {
	if in.Sampler == nil {
		return Result{}, errtrack.New(errtrack.KindCritical, errtrack.SeverityCritical, in.Context, "builder called without sampler")
	}
	maxIter := in.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	budget := in.TimeBudget
	if budget <= 0 {
		budget = DefaultTimeBudget
	}

	segMin, segMax := stepRange(in)
	nominal := (segMin + segMax) / 2
	margin := math.Min(maxMargin, math.Min(in.Bounds.Width, in.Bounds.Height)/10)
	bias := in.Theme.StraightBias
	pull := 0.35 + 0.5*bias
	jitterAmp := (1 - bias) * (0.2 + 0.8*in.Theme.CurveComplexity) * maxStepTurn

	started := w.now()
	points := []geom.Point{in.Start}
	current := in.Start
	heading := geom.Heading(in.Start, in.End)
	res := Result{}

	for {
		remaining := geom.Distance(current, in.End)
		if remaining < 2*nominal {
			points = closePath(points, in.End, segMax, in.MinSegment)
			res.Complete = true
			break
		}

		if res.Iterations >= maxIter {
			res.StopReason = StopMaxIterations
			break
		}
		if res.Iterations > 0 && res.Iterations%CheckInterval == 0 {
			if ctx.Err() != nil {
				res.StopReason = StopCancelled
				break
			}
			if w.now().Sub(started) > budget {
				res.StopReason = StopTimeBudget
				break
			}
		}
		res.Iterations++

		toExit := geom.Heading(current, in.End)
		delta := pull*geom.WrapAngle(toExit-heading) + jitterAmp*in.Sampler.Memo(siteHeading, res.Iterations)
		delta = math.Max(-maxStepTurn, math.Min(maxStepTurn, delta))
		proposed := geom.WrapAngle(heading + delta)

		step := in.Sampler.Range(segMin, segMax)
		next := in.Bounds.Clamp(current.Offset(proposed, step), margin)
		moved := geom.Distance(current, next)
		if moved < segMin {
			// Pressed against an edge: swing toward the exit and try again.
			gap := geom.WrapAngle(toExit - heading)
			heading = geom.WrapAngle(heading + math.Max(-maxStepTurn, math.Min(maxStepTurn, gap)))
			continue
		}

		points = append(points, next)
		heading = geom.Heading(current, next)
		current = next
	}

	res.Points = points
	res.Elapsed = w.now().Sub(started)
	if !res.Complete {
		msg := fmt.Sprintf("walk stopped (%s) after %d iterations, %d points", res.StopReason, res.Iterations, len(points))
		w.logger.Warn("raw path incomplete",
			slog.String("context", in.Context),
			slog.String("reason", res.StopReason),
			slog.Int("iterations", res.Iterations))
		return res, errtrack.New(errtrack.KindGeneration, errtrack.SeverityWarning, in.Context, msg)
	}
	return res, nil
}

// stepRange intersects the theme segment range with the structural limits.
func stepRange(in Input) (float64, float64) {
	lo, hi := in.Theme.SegmentLength.Min, in.Theme.SegmentLength.Max
	if in.MinSegment > 0 && lo < in.MinSegment {
		lo = in.MinSegment
	}
	if in.MaxSegment > 0 && hi > in.MaxSegment {
		hi = in.MaxSegment
	}
	if hi < lo {
		hi = lo
	}
	if lo <= 0 {
		lo, hi = theme.MinSegmentLength, math.Max(hi, theme.MinSegmentLength)
	}
	return lo, hi
}

// closePath appends the exit, splitting or merging the closing segment.
func closePath(points []geom.Point, end geom.Point, segMax, minSegment float64) []geom.Point {
	last := points[len(points)-1]
	remaining := geom.Distance(last, end)

	switch {
	case remaining < geom.Epsilon:
		if len(points) > 1 {
			points[len(points)-1] = end
		}
	case remaining < minSegment && len(points) > 1:
		points[len(points)-1] = end
	case remaining > segMax && remaining/2 >= minSegment:
		points = append(points, geom.Lerp(last, end, 0.5), end)
	default:
		points = append(points, end)
	}
	return points
}
