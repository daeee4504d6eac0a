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
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/AleutianAI/pathforge/pkg/logging"
	"github.com/AleutianAI/pathforge/pkg/ux"
	"github.com/AleutianAI/pathforge/services/pathgen"
	"github.com/AleutianAI/pathforge/services/pathgen/engine"
	"github.com/AleutianAI/pathforge/services/pathgen/geom"
	"github.com/AleutianAI/pathforge/services/pathgen/levels"
	"github.com/AleutianAI/pathforge/services/pathgen/sampler"
	"github.com/spf13/cobra"
)

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	levelsPath string
	logLevel   string
	logDir     string
	output     string
	json       bool
	production bool
}

// app is the per-invocation wiring built from globalOptions.
type app struct {
	opts    *globalOptions
	cfg     pathgen.ServiceConfig
	logger  *logging.Logger
	levels  levels.Table
	printer *ux.Printer
	stdout  io.Writer
}

// newRootCmd builds the command tree. stdout receives command output,
// stderr receives logs.
func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "pathforge",
		Short: "Procedural enemy path generation for tower-defense levels",
		Long: `pathforge builds enemy paths from a level's entry to its exit,
validates them against placement rules and falls back to simpler
paths when generation fails. Every command always yields a usable path.`,
		SilenceUsage: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "YAML service config file")
	pf.StringVar(&opts.levelsPath, "levels", "", "YAML level table (default: built-in levels)")
	pf.StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	pf.StringVar(&opts.logDir, "log-dir", "", "also write JSON logs to this directory")
	pf.StringVar(&opts.output, "output", "", "output style: styled, plain, machine (default: detect)")
	pf.BoolVar(&opts.json, "json", false, "print results as JSON")
	pf.BoolVar(&opts.production, "production", false, "use production engine defaults")

	root.AddCommand(
		newGenerateCmd(opts, stdout, stderr),
		newPreviewCmd(opts, stdout, stderr),
		newLevelsCmd(opts, stdout, stderr),
		newDiagnosticsCmd(opts, stdout, stderr),
		newServeCmd(opts, stdout, stderr),
	)
	return root
}

// load builds the app. Callers must Close it.
func (o *globalOptions) load(stdout, stderr io.Writer) (*app, error) {
	level, err := logging.ParseLevel(o.logLevel)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logging.Config{
		Level:   level,
		LogDir:  o.logDir,
		Service: "pathforge",
		JSON:    o.json,
		Output:  stderr,
	})
	if err != nil {
		return nil, err
	}

	cfg, err := o.serviceConfig()
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	var table levels.Table = levels.Builtin()
	if o.levelsPath != "" {
		t, err := levels.LoadFile(o.levelsPath)
		if err != nil {
			_ = logger.Close()
			return nil, err
		}
		table = t
	}

	mode := ux.DetectMode(stdout)
	if o.output != "" {
		mode = ux.ParseMode(o.output)
	}

	return &app{
		opts:    o,
		cfg:     cfg,
		logger:  logger,
		levels:  table,
		printer: ux.NewPrinter(stdout, mode),
		stdout:  stdout,
	}, nil
}

func (o *globalOptions) serviceConfig() (pathgen.ServiceConfig, error) {
	base := pathgen.DefaultServiceConfig()
	if o.production {
		base.Engine = engine.ProductionConfig()
	}
	if o.configPath == "" {
		return base, nil
	}
	return pathgen.LoadServiceConfig(o.configPath, base)
}

// newEngine creates an engine over the app's levels.
func (a *app) newEngine(table levels.Table) (*engine.Engine, error) {
	if table == nil {
		table = a.levels
	}
	return engine.New(a.cfg.Engine,
		engine.WithLogger(a.logger.Slog()),
		engine.WithLevels(table),
	)
}

// Close releases the logger.
func (a *app) Close() error {
	return a.logger.Close()
}

// writeJSON prints v as indented JSON.
func (a *app) writeJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// =============================================================================
// Flag Parsing Helpers
// =============================================================================

// parseSeed turns a --seed value into a Seed. Empty means absent; a value
// that is not an integer becomes an invalid seed, which the engine
// reports and replaces.
func parseSeed(raw string) sampler.Seed {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return sampler.Seed{}
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return sampler.InvalidSeed(raw)
	}
	return sampler.SeedOf(v)
}

// parsePoint parses "x,y".
func parsePoint(raw string) (*geom.Point, error) {
	if raw == "" {
		return nil, nil
	}
	xs, ys, ok := strings.Cut(raw, ",")
	if !ok {
		return nil, fmt.Errorf("point %q: want x,y", raw)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil {
		return nil, fmt.Errorf("point %q: %w", raw, err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil {
		return nil, fmt.Errorf("point %q: %w", raw, err)
	}
	p := geom.Pt(x, y)
	return &p, nil
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
