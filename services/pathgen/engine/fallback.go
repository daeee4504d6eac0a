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
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/AleutianAI/pathforge/services/pathgen/errtrack"
	"github.com/AleutianAI/pathforge/services/pathgen/geom"
	"github.com/AleutianAI/pathforge/services/pathgen/sampler"
)

// =============================================================================
// Fallback Chain
// =============================================================================

// fallback escalates through the simple and minimal tiers after the
// primary pipeline gave up with cause.
func (e *Engine) fallback(ctx context.Context, p *plan, cause error) (*Path, error) {
	logger := loggerWithTrace(ctx, e.logger)

	if e.cfg.SimpleFallbackEnabled {
		points, err := e.simplePoints(p)
		if err == nil {
			e.tracker.RecordFallback(TierSimple.String())
			logger.Warn("using simple fallback path",
				slog.String("request_id", p.requestID),
				slog.String("context", p.context),
				slog.String("cause", errString(cause)),
				slog.Int("points", len(points)))
			return e.finish(p, points, TierSimple, e.retriesUsed(cause), nil), nil
		}
		e.tracker.TrackError(p.context, err)
		p.warn(err.Error())
	}

	logger.Warn("using minimal fallback path",
		slog.String("request_id", p.requestID),
		slog.String("context", p.context),
		slog.String("cause", errString(cause)))
	return e.minimalFallback(p), nil
}

// criticalFallback skips straight to the minimal tier. StrictMode hands
// the failure back to the caller as well.
func (e *Engine) criticalFallback(p *plan, crit error) (*Path, error) {
	e.logger.Error("critical failure, using minimal fallback",
		slog.String("request_id", p.requestID),
		slog.String("context", p.context),
		slog.String("error", crit.Error()))
	path := e.minimalFallback(p)
	if e.cfg.StrictMode {
		return path, crit
	}
	return path, nil
}

// minimalFallback returns the straight two-point path. It cannot fail:
// unusable endpoints are replaced or clamped until the pair is valid.
func (e *Engine) minimalFallback(p *plan) *Path {
	bounds := p.bounds
	if bounds.Width <= 0 || bounds.Height <= 0 {
		bounds = e.cfg.DefaultCanvas
		p.bounds = bounds
	}
	start, end := usableEndpoints(p.entry, p.exit, bounds)
	if start.Equal(end) {
		end = nudge(start, bounds)
	}
	e.tracker.RecordFallback(TierMinimal.String())
	return e.finish(p, []geom.Point{start, end}, TierMinimal, 0, nil)
}

// simplePoints interpolates between the endpoints with lateral jitter.
//
// # Description
//
// The segment count follows the theme's nominal segment length so the
// path has roughly the density of a generated one. Each interior point is
// pushed sideways by up to FallbackJitter of a segment, using a sampler
// derived from the request seed so the fallback is itself reproducible.
//
// # Outputs
//
//   - []geom.Point: endpoints plus interior points, all inside the canvas
//   - error: Generation error when the endpoints coincide or the jittered
//     path fails its checks
func (e *Engine) simplePoints(p *plan) ([]geom.Point, error) {
	start, end := usableEndpoints(p.entry, p.exit, p.bounds)
	if start.Equal(end) {
		return nil, errtrack.New(errtrack.KindGeneration, errtrack.SeverityWarning, p.context,
			"simple fallback: endpoints coincide")
	}

	dist := geom.Distance(start, end)
	segments := int(math.Ceil(dist / nominalSegment(p.theme)))
	segments = max(segments, 1)
	segLen := dist / float64(segments)

	base := p.effective
	if v, ok := p.seed.Value(); ok {
		base = v
	}
	smp := sampler.New(sampler.SeedOf(sampler.DeriveSeed(base, "fallback")), e.cache, nil)

	heading := geom.Heading(start, end)
	lateral := heading + math.Pi/2
	points := make([]geom.Point, 0, segments+1)
	points = append(points, start)
	for i := 1; i < segments; i++ {
		pt := geom.Lerp(start, end, float64(i)/float64(segments))
		pt = pt.Offset(lateral, e.cfg.FallbackJitter*segLen*smp.Signed())
		points = append(points, p.bounds.Clamp(pt, 0))
	}
	points = append(points, end)

	if err := checkFallbackPoints(points, p.bounds); err != nil {
		return nil, errtrack.Wrap(errtrack.KindGeneration, errtrack.SeverityWarning, p.context, err)
	}
	return points, nil
}

// checkFallbackPoints is the acceptance test for fallback tiers: at least
// two points, all inside the canvas, no coincident neighbours.
func checkFallbackPoints(points []geom.Point, bounds geom.Bounds) error {
	if len(points) < 2 {
		return fmt.Errorf("simple fallback: %d points", len(points))
	}
	for i, pt := range points {
		if !pt.IsFinite() || !bounds.Contains(pt) {
			return fmt.Errorf("simple fallback: point %d %s outside canvas", i, pt)
		}
	}
	if geom.HasCoincident(points) {
		return fmt.Errorf("simple fallback: coincident points")
	}
	return nil
}

// usableEndpoints replaces non-numeric endpoints with the canvas
// mid-edges and clamps the rest into bounds.
func usableEndpoints(entry, exit geom.Point, bounds geom.Bounds) (geom.Point, geom.Point) {
	if !entry.IsFinite() {
		entry = geom.Pt(0, bounds.Height/2)
	}
	if !exit.IsFinite() {
		exit = geom.Pt(bounds.Width, bounds.Height/2)
	}
	return bounds.Clamp(entry, 0), bounds.Clamp(exit, 0)
}

// nudge moves a point one unit toward the canvas centre so a degenerate
// endpoint pair becomes a valid two-point path.
func nudge(pt geom.Point, bounds geom.Bounds) geom.Point {
	center := geom.Pt(bounds.Width/2, bounds.Height/2)
	if pt.Equal(center) {
		return bounds.Clamp(pt.Add(1, 0), 0)
	}
	return pt.Offset(geom.Heading(pt, center), math.Min(1, geom.Distance(pt, center)))
}

// retriesUsed is the retry count reported by a fallback path: the full
// budget when the retry loop ran out, zero when a pre-build stage failed.
func (e *Engine) retriesUsed(cause error) int {
	switch errtrack.KindOf(cause) {
	case errtrack.KindGeneration:
		return e.cfg.MaxPathGenerationRetries
	default:
		return 0
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
