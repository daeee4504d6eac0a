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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/AleutianAI/pathforge/services/pathgen"
	"github.com/AleutianAI/pathforge/services/pathgen/archive"
	"github.com/AleutianAI/pathforge/services/pathgen/levels"
	"github.com/AleutianAI/pathforge/services/pathgen/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

type serveOptions struct {
	listen    string
	archive   string
	inMemory  bool
	onStarted func(addr net.Addr)
}

func newServeCmd(g *globalOptions, stdout, stderr io.Writer) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the path generation HTTP and WebSocket API",
		Long: `Run the /v1/pathforge HTTP API with a Badger archive of current paths.

With --levels the level file is watched and reloaded on change.
Telemetry exporters follow the telemetry section of --config and the
standard OTEL_* environment variables.`,
		Example: `  pathforge serve
  pathforge serve --config pathforge.yaml --levels levels.yaml --archive /var/lib/pathforge`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.load(stdout, stderr)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, a, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.listen, "listen", "", "listen address (default: config listen, :8085)")
	f.StringVar(&opts.archive, "archive", "", "archive directory (default: config archive)")
	f.BoolVar(&opts.inMemory, "in-memory", false, "keep the archive in memory")
	return cmd
}

func runServe(ctx context.Context, a *app, opts *serveOptions) error {
	logger := a.logger.Slog()
	cfg := a.cfg
	if opts.listen != "" {
		cfg.Listen = opts.listen
	}
	switch {
	case opts.inMemory:
		cfg.Archive.InMemory = true
	case opts.archive != "":
		cfg.Archive.Path = opts.archive
		cfg.Archive.InMemory = false
	}
	cfg.Archive.Logger = logger

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	var table levels.Table = a.levels
	if a.opts.levelsPath != "" {
		w, err := levels.NewWatcher(a.opts.levelsPath, levels.WatcherOptions{
			Logger: logger,
			OnReload: func(t *levels.StaticTable, err error) {
				if err != nil {
					logger.Warn("level file rejected", "error", err)
					return
				}
				logger.Info("level table reloaded", "levels", len(t.IDs()))
			},
		})
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			_ = w.Close()
			return err
		}
		defer w.Close()
		table = w
	}

	store, err := archive.Open(cfg.Archive)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer store.Close()

	eng, err := a.newEngine(table)
	if err != nil {
		return err
	}
	defer eng.Close()

	gin.SetMode(gin.ReleaseMode)
	svc := pathgen.NewService(eng, store, cfg.Regenerate, logger)
	srv := &http.Server{
		Handler:           pathgen.NewRouter(svc, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Listen, err)
	}
	logger.Info("starting pathforge server",
		slog.String("address", ln.Addr().String()),
		slog.Bool("archive_in_memory", cfg.Archive.InMemory),
		slog.Int("levels", len(table.IDs())))
	if opts.onStarted != nil {
		opts.onStarted(ln.Addr())
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down pathforge server")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
