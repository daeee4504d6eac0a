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
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/AleutianAI/pathforge/pkg/ux"
	"github.com/AleutianAI/pathforge/services/pathgen/engine"
	"github.com/AleutianAI/pathforge/services/pathgen/errtrack"
	"github.com/AleutianAI/pathforge/services/pathgen/geom"
)

const (
	sketchCols = 64
	sketchRows = 20
)

// renderPath prints the metadata summary of p.
func renderPath(pr *ux.Printer, p *engine.Path) {
	m := p.Metadata
	pr.Title(fmt.Sprintf("Level %d path (%s, %s)", m.LevelID, m.ThemeName, m.PathMode))
	pr.Fields(
		ux.F("request_id", m.RequestID),
		ux.F("points", len(p.Points)),
		ux.F("seed", m.Seed),
		ux.F("deterministic", m.Deterministic),
		ux.F("fallback_tier", m.FallbackTier),
		ux.F("retries", m.RetryCount),
		ux.F("length", fmt.Sprintf("%.1f", m.TotalLength)),
		ux.F("complexity", fmt.Sprintf("%.3f", m.ComplexityScore)),
		ux.F("balance", fmt.Sprintf("%.3f", m.BalanceScore)),
		ux.F("generation_time", m.GenerationTime),
	)
	if m.Trigger != "" {
		pr.Fields(ux.F("trigger", m.Trigger))
	}
	switch {
	case m.FallbackTier == engine.TierMinimal:
		pr.Warning("minimal fallback path (entry to exit)")
	case p.IsFallback():
		pr.Warning("simple fallback path")
	case m.Static:
		pr.Success("authored static path")
	default:
		pr.Success("generated path")
	}
	for _, w := range m.Warnings {
		pr.Warning(w)
	}
}

// sketch rasterises points onto a cols x rows character grid covering
// bounds. Segments are drawn with '.', waypoints with 'o', the entry with
// 'E' and the exit with 'X'.
func sketch(pr *ux.Printer, points []geom.Point, bounds geom.Bounds, cols, rows int) string {
	if len(points) == 0 || cols < 2 || rows < 2 || bounds.Width <= 0 || bounds.Height <= 0 {
		return ""
	}
	grid := make([][]rune, rows)
	for r := range grid {
		grid[r] = []rune(strings.Repeat(" ", cols))
	}
	cell := func(p geom.Point) (int, int) {
		c := int(math.Round(p.X / bounds.Width * float64(cols-1)))
		r := int(math.Round(p.Y / bounds.Height * float64(rows-1)))
		return min(max(c, 0), cols-1), min(max(r, 0), rows-1)
	}

	for i := 1; i < len(points); i++ {
		c0, r0 := cell(points[i-1])
		c1, r1 := cell(points[i])
		steps := max(abs(c1-c0), abs(r1-r0))
		for s := 0; s <= steps; s++ {
			t := 0.0
			if steps > 0 {
				t = float64(s) / float64(steps)
			}
			c := int(math.Round(float64(c0) + t*float64(c1-c0)))
			r := int(math.Round(float64(r0) + t*float64(r1-r0)))
			grid[r][c] = '.'
		}
	}
	for _, p := range points[1 : len(points)-1] {
		c, r := cell(p)
		grid[r][c] = 'o'
	}
	c, r := cell(points[0])
	grid[r][c] = 'E'
	c, r = cell(points[len(points)-1])
	grid[r][c] = 'X'

	styles := pr.Styles()
	var b strings.Builder
	for i, row := range grid {
		for _, ch := range row {
			switch ch {
			case '.':
				b.WriteString(styles.Path.Render(string(ch)))
			case 'E', 'X', 'o':
				b.WriteString(styles.Marker.Render(string(ch)))
			default:
				b.WriteRune(ch)
			}
		}
		if i < len(grid)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// canvasFor picks the canvas the sketch is drawn on: request override,
// then the level's canvas, then the engine default.
func canvasFor(a *app, req engine.Request) geom.Bounds {
	b := a.cfg.Engine.DefaultCanvas
	if l, ok := a.levels.Level(req.LevelID); ok && l.Canvas.Width > 0 && l.Canvas.Height > 0 {
		b = l.Canvas
	}
	if req.CanvasWidth > 0 {
		b.Width = req.CanvasWidth
	}
	if req.CanvasHeight > 0 {
		b.Height = req.CanvasHeight
	}
	return b
}

// renderCandidates prints one line per preview candidate.
func renderCandidates(pr *ux.Printer, levelID int, cands []engine.Candidate) {
	pr.Title(fmt.Sprintf("Level %d preview: %d candidates", levelID, len(cands)))
	for _, c := range cands {
		m := c.Path.Metadata
		line := fmt.Sprintf("%-8s %-8s points=%-3d length=%-7.1f balance=%.3f tier=%s",
			c.Theme, c.Mode, len(c.Path.Points), m.TotalLength, c.Validation.BalanceScore, m.FallbackTier)
		if pr.Mode() == ux.ModeMachine {
			pr.Line("%s valid=%t", line, c.Validation.IsValid)
			continue
		}
		if c.Validation.IsValid {
			pr.Success(line)
		} else {
			pr.Warning(fmt.Sprintf("%s (%d violations)", line, len(c.Validation.Errors)))
		}
	}
}

// renderDiagnostics prints a diagnostics snapshot.
func renderDiagnostics(pr *ux.Printer, d engine.Diagnostics) {
	pr.Title("Engine diagnostics")
	pr.Fields(
		ux.F("tracker_mode", d.Stats.Mode),
		ux.F("errors_total", d.Stats.Total),
		ux.F("critical_errors", d.Stats.CriticalErrors),
		ux.F("fallbacks_used", d.Stats.FallbacksUsed),
		ux.F("history", fmt.Sprintf("%d/%d", d.Stats.HistoryLen, d.Stats.HistoryCap)),
		ux.F("overwritten", d.Stats.Overwritten),
		ux.F("batches_flushed", d.Stats.BatchesFlushed),
		ux.F("sampler_cache", fmt.Sprintf("%d entries, %d hits, %d misses",
			d.SamplerCache.Len, d.SamplerCache.Hits, d.SamplerCache.Misses)),
		ux.F("static_paths_cached", d.StaticPaths),
		ux.F("max_retries", d.Config.MaxPathGenerationRetries),
	)

	kinds := make([]string, 0, len(d.Stats.Counts))
	for k := range d.Stats.Counts {
		kinds = append(kinds, string(k))
	}
	slices.Sort(kinds)
	if len(kinds) == 0 {
		pr.Success("no errors recorded")
		return
	}
	lines := make([]string, 0, len(kinds))
	for _, k := range kinds {
		lines = append(lines, fmt.Sprintf("%s: %d", k, d.Stats.Counts[errtrack.Kind(k)]))
	}
	pr.List(lines)
}
