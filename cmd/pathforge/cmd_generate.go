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
	"github.com/AleutianAI/pathforge/services/pathgen/theme"
	"github.com/spf13/cobra"
)

type generateOptions struct {
	level    int
	seed     string
	theme    string
	mode     string
	trigger  string
	width    float64
	height   float64
	entry    string
	exit     string
	progress bool
	noSketch bool
}

func newGenerateCmd(g *globalOptions, stdout, stderr io.Writer) *cobra.Command {
	opts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate one path",
		Long: `Generate one path for a level or for explicit endpoints.

Without --seed the path is seeded from the clock. An invalid --seed is
reported in the path warnings and replaced with a random one.`,
		Example: `  pathforge generate --level 1 --seed 12345
  pathforge generate --level 0 --entry 0,100 --exit 640,380 --width 640 --height 480
  pathforge generate --level 3 --mode dynamic --trigger wave-2 --progress`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.load(stdout, stderr)
			if err != nil {
				return err
			}
			defer a.Close()
			return runGenerate(cmd.Context(), a, opts)
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.level, "level", 1, "level id (0 for an ad-hoc request with --entry/--exit)")
	f.StringVar(&opts.seed, "seed", "", "integer seed (default: clock)")
	f.StringVar(&opts.theme, "theme", "", "theme name (default: the level's theme)")
	f.StringVar(&opts.mode, "mode", "", "path mode: static, hybrid, dynamic")
	f.StringVar(&opts.trigger, "trigger", "", "regeneration trigger recorded in the metadata")
	f.Float64Var(&opts.width, "width", 0, "canvas width override")
	f.Float64Var(&opts.height, "height", 0, "canvas height override")
	f.StringVar(&opts.entry, "entry", "", "entry point override as x,y")
	f.StringVar(&opts.exit, "exit", "", "exit point override as x,y")
	f.BoolVar(&opts.progress, "progress", false, "generate asynchronously and print progress")
	f.BoolVar(&opts.noSketch, "no-sketch", false, "skip the ASCII canvas sketch")
	return cmd
}

func (o *generateOptions) request() (engine.Request, error) {
	req := engine.Request{
		LevelID:      o.level,
		Seed:         parseSeed(o.seed),
		PathMode:     engine.PathMode(o.mode),
		CanvasWidth:  o.width,
		CanvasHeight: o.height,
		Trigger:      o.trigger,
	}
	if o.theme != "" {
		req.Theme = theme.Named(o.theme)
	}
	var err error
	if req.Entry, err = parsePoint(o.entry); err != nil {
		return req, err
	}
	if req.Exit, err = parsePoint(o.exit); err != nil {
		return req, err
	}
	return req, nil
}

func runGenerate(ctx context.Context, a *app, opts *generateOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := opts.request()
	if err != nil {
		return err
	}
	eng, err := a.newEngine(nil)
	if err != nil {
		return err
	}
	defer eng.Close()

	var path *engine.Path
	if opts.progress {
		path, err = generateWithProgress(ctx, a, eng, req)
	} else {
		path, err = eng.Generate(ctx, req)
	}
	if path == nil {
		return err
	}

	if a.opts.json {
		if jerr := a.writeJSON(path); jerr != nil {
			return jerr
		}
		return err
	}

	renderPath(a.printer, path)
	if !opts.noSketch && a.printer.Mode() != ux.ModeMachine {
		bounds := canvasFor(a, req)
		a.printer.Box("canvas", sketch(a.printer, path.Points, bounds, sketchCols, sketchRows))
	}
	if err != nil {
		a.printer.Error(err.Error())
	}
	return err
}

// generateWithProgress runs the async API and prints one line per
// checkpoint.
func generateWithProgress(ctx context.Context, a *app, eng *engine.Engine, req engine.Request) (*engine.Path, error) {
	progress := make(chan engine.Progress, 8)
	task, err := eng.GenerateAsync(ctx, req, func(p engine.Progress) {
		progress <- p
	})
	if err != nil {
		return nil, err
	}

	show := func(p engine.Progress) {
		if a.opts.json {
			return
		}
		a.printer.Line("[%3d%%] %-14s %s", p.Percent, p.Stage, p.Message)
	}
	for {
		select {
		case p := <-progress:
			show(p)
		case <-task.Done():
			for drained := false; !drained; {
				select {
				case p := <-progress:
					show(p)
				default:
					drained = true
				}
			}
			path, _, genErr := task.Result()
			return path, genErr
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for generation: %w", ctx.Err())
		}
	}
}
