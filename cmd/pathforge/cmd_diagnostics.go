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
	"context"
	"fmt"
	"io"

	"github.com/AleutianAI/pathforge/pkg/ux"
	"github.com/AleutianAI/pathforge/services/pathgen/engine"
	"github.com/AleutianAI/pathforge/services/pathgen/sampler"
	"github.com/spf13/cobra"
)

type diagnosticsOptions struct {
	runs  int
	level int
	seed  int64
}

func newDiagnosticsCmd(g *globalOptions, stdout, stderr io.Writer) *cobra.Command {
	opts := &diagnosticsOptions{}
	cmd := &cobra.Command{
		Use:   "diagnostics",
		Short: "Run a batch of generations and print the engine diagnostics",
		Long: `Run --runs generations with consecutive seeds starting at --seed and
print the resulting tracker statistics, sampler cache counters and
fallback usage. With --level 0 the runs cycle through every level.`,
		Example: `  pathforge diagnostics --runs 200
  pathforge diagnostics --runs 1000 --level 3 --production --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.load(stdout, stderr)
			if err != nil {
				return err
			}
			defer a.Close()
			return runDiagnostics(cmd.Context(), a, opts)
		},
	}
	f := cmd.Flags()
	f.IntVar(&opts.runs, "runs", 50, "number of generations")
	f.IntVar(&opts.level, "level", 0, "level id (0 cycles through all levels)")
	f.Int64Var(&opts.seed, "seed", 1, "first seed")
	return cmd
}

func runDiagnostics(ctx context.Context, a *app, opts *diagnosticsOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.runs < 1 {
		return fmt.Errorf("runs must be at least 1, got %d", opts.runs)
	}
	ids := a.levels.IDs()
	if opts.level != 0 {
		if _, ok := a.levels.Level(opts.level); !ok {
			return fmt.Errorf("level %d not found", opts.level)
		}
		ids = []int{opts.level}
	}
	if len(ids) == 0 {
		return fmt.Errorf("level table is empty")
	}

	eng, err := a.newEngine(nil)
	if err != nil {
		return err
	}
	defer eng.Close()

	fallbacks := 0
	for i := range opts.runs {
		req := engine.Request{
			LevelID: ids[i%len(ids)],
			Seed:    sampler.SeedOf(opts.seed + int64(i)),
		}
		p, err := eng.Generate(ctx, req)
		if err != nil {
			// Strict mode: the minimal path is still returned; keep going.
			a.logger.Slog().Warn("generation failed", "level_id", req.LevelID, "error", err)
		}
		if p != nil && p.IsFallback() {
			fallbacks++
		}
	}

	// Flush pending production batches before the snapshot.
	eng.Tracker().Flush()
	d := eng.Diagnostics()
	if a.opts.json {
		return a.writeJSON(d)
	}
	renderDiagnostics(a.printer, d)
	a.printer.Fields(
		ux.F("runs", opts.runs),
		ux.F("fallback_paths", fallbacks),
	)
	return nil
}
