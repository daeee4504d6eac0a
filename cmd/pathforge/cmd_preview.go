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

	"github.com/AleutianAI/pathforge/services/pathgen/engine"
	"github.com/spf13/cobra"
)

type previewOptions struct {
	level  int
	themes string
	modes  string
	seed   string
}

func newPreviewCmd(g *globalOptions, stdout, stderr io.Writer) *cobra.Command {
	opts := &previewOptions{}
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Generate candidate paths across themes and path modes",
		Long: `Generate one candidate per theme and path mode combination for a
level and report each candidate's validation verdict. Candidates are
built independently and share only the seed.`,
		Example: `  pathforge preview --level 1
  pathforge preview --level 2 --themes classic,forest --modes hybrid,dynamic --seed 7`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.load(stdout, stderr)
			if err != nil {
				return err
			}
			defer a.Close()
			return runPreview(cmd.Context(), a, opts)
		},
	}
	f := cmd.Flags()
	f.IntVar(&opts.level, "level", 1, "level id")
	f.StringVar(&opts.themes, "themes", "", "comma separated themes (default: all)")
	f.StringVar(&opts.modes, "modes", "", "comma separated path modes (default: all)")
	f.StringVar(&opts.seed, "seed", "", "integer seed (default: the level id)")
	return cmd
}

func runPreview(ctx context.Context, a *app, opts *previewOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	popts := engine.PreviewOptions{
		Themes: splitCSV(opts.themes),
		Seed:   parseSeed(opts.seed),
	}
	for _, m := range splitCSV(opts.modes) {
		mode := engine.PathMode(m)
		if !mode.IsValid() {
			return fmt.Errorf("unknown path mode %q", m)
		}
		popts.Modes = append(popts.Modes, mode)
	}

	eng, err := a.newEngine(nil)
	if err != nil {
		return err
	}
	defer eng.Close()

	cands, err := eng.Preview(ctx, opts.level, popts)
	if err != nil {
		return err
	}
	if a.opts.json {
		return a.writeJSON(cands)
	}
	renderCandidates(a.printer, opts.level, cands)
	return nil
}
