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
	"slices"

	"github.com/AleutianAI/pathforge/services/pathgen/levels"
	"github.com/AleutianAI/pathforge/services/pathgen/sampler"
	"github.com/AleutianAI/pathforge/services/pathgen/theme"
	"github.com/AleutianAI/pathforge/services/pathgen/validate"
	"golang.org/x/sync/errgroup"
)

// previewParallelism bounds concurrent preview generations.
const previewParallelism = 4

// Preview generates one candidate per (theme, mode) combination for a
// level so a designer can compare them.
//
// # Description
//
// Each combination runs on its own child engine sharing this engine's
// configuration, level table, theme registry and builder, so previews
// never touch this engine's tracker or caches. Candidates come back in
// theme-major order regardless of completion order.
//
// # Inputs
//
//   - levelID: must exist in the level table
//   - opts: theme names and modes to try (empty means all); seed defaults
//     to the level id so repeated previews are stable
//
// # Outputs
//
//   - []Candidate: one per combination, each with its validation result
//   - error: ErrLevelNotFound (wrapped), or ctx cancellation
func (e *Engine) Preview(ctx context.Context, levelID int, opts PreviewOptions) ([]Candidate, error) {
	level, ok := e.levels.Level(levelID)
	if !ok {
		return nil, fmt.Errorf("preview level %d: %w", levelID, levels.ErrLevelNotFound)
	}

	themes := opts.Themes
	if len(themes) == 0 {
		themes = e.themes.Names()
	}
	modes := opts.Modes
	if len(modes) == 0 {
		modes = slices.Clone(levels.Modes)
	}
	seed := opts.Seed
	if !seed.IsSet() {
		seed = sampler.SeedOf(int64(levelID))
	}

	rules := e.cfg.Rules.Apply(level.Constraints)
	checker := e.validator.WithRules(rules)

	candidates := make([]Candidate, len(themes)*len(modes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(previewParallelism)
	for ti, name := range themes {
		for mi, mode := range modes {
			idx := ti*len(modes) + mi
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				child, err := New(e.cfg,
					WithLogger(e.logger),
					WithLevels(e.levels),
					WithThemes(e.themes),
					WithBuilder(e.builder),
					WithClock(e.now),
				)
				if err != nil {
					return err
				}
				defer child.Close()

				path, err := child.Generate(gctx, Request{
					LevelID:  levelID,
					Seed:     seed,
					Theme:    theme.Named(name),
					PathMode: mode,
				})
				if err != nil {
					return fmt.Errorf("preview %s/%s: %w", name, mode, err)
				}
				candidates[idx] = Candidate{
					Theme: name,
					Mode:  mode,
					Path:  path,
					Validation: checker.Validate(path.Points, level.Canvas, validate.Options{
						Context: fmt.Sprintf("preview-%d", levelID), Level: levelID, Targets: level.Balance,
					}),
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return candidates, nil
}

// =============================================================================
// Diagnostics
// =============================================================================

// Diagnostics returns a snapshot of tracker counters, recent errors,
// cache statistics and configuration.
func (e *Engine) Diagnostics() Diagnostics {
	e.staticMu.Lock()
	staticCount := len(e.static)
	e.staticMu.Unlock()

	return Diagnostics{
		Stats:        e.tracker.Stats(),
		RecentErrors: e.tracker.History(),
		SamplerCache: e.cache.Stats(),
		StaticPaths:  staticCount,
		InFlight:     e.inFlight.Load(),
		Config:       e.cfg,
		Themes:       e.themes.Names(),
		Levels:       e.levels.IDs(),
	}
}

// ResetDiagnostics clears tracker history and counters, the sampler memo
// cache and the static path cache.
func (e *Engine) ResetDiagnostics() {
	e.tracker.Reset()
	e.cache.Reset()
	e.staticMu.Lock()
	clear(e.static)
	e.staticMu.Unlock()
}
