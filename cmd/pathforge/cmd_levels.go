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
	"io"

	"github.com/AleutianAI/pathforge/pkg/ux"
	"github.com/AleutianAI/pathforge/services/pathgen/levels"
	"github.com/spf13/cobra"
)

func newLevelsCmd(g *globalOptions, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "levels",
		Short: "List the level table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.load(stdout, stderr)
			if err != nil {
				return err
			}
			defer a.Close()
			return listLevels(a, a.levels)
		},
	}

	check := &cobra.Command{
		Use:   "check [file]",
		Short: "Validate a level file without using it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.load(stdout, stderr)
			if err != nil {
				return err
			}
			defer a.Close()

			t, err := levels.LoadFile(args[0])
			if err != nil {
				a.printer.Error(err.Error())
				return err
			}
			a.printer.Success(fmt.Sprintf("%s: %d levels", args[0], len(t.IDs())))
			return nil
		},
	}
	cmd.AddCommand(check)
	return cmd
}

func listLevels(a *app, table levels.Table) error {
	ids := table.IDs()
	if a.opts.json {
		out := make([]levels.LevelConfig, 0, len(ids))
		for _, id := range ids {
			if l, ok := table.Level(id); ok {
				out = append(out, l)
			}
		}
		return a.writeJSON(out)
	}

	a.printer.Title(fmt.Sprintf("%d levels", len(ids)))
	for _, id := range ids {
		l, ok := table.Level(id)
		if !ok {
			continue
		}
		source := "generated"
		if l.UsesStaticPath() {
			source = "static"
		}
		line := fmt.Sprintf("%2d %-16s mode=%-7s theme=%-8s canvas=%vx%v %s->%s %s",
			l.ID, l.Name, l.PathMode, l.Theme, l.Canvas.Width, l.Canvas.Height, l.Entry, l.Exit, source)
		if a.printer.Mode() == ux.ModeMachine {
			a.printer.Line("%s", line)
			continue
		}
		a.printer.List([]string{line})
	}
	return nil
}
