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
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for engine operations.
var (
	tracer = otel.Tracer("pathforge.engine")
	meter  = otel.Meter("pathforge.engine")
)

// Metrics for engine operations.
var (
	generateLatency metric.Float64Histogram
	generateTotal   metric.Int64Counter
	retryTotal      metric.Int64Counter
	pathPoints      metric.Int64Histogram
	balanceScore    metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		generateLatency, err = meter.Float64Histogram(
			"pathforge_generate_duration_seconds",
			metric.WithDescription("Duration of path generation"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		generateTotal, err = meter.Int64Counter(
			"pathforge_generate_total",
			metric.WithDescription("Total number of generated paths"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		retryTotal, err = meter.Int64Counter(
			"pathforge_retries_total",
			metric.WithDescription("Total number of failed build attempts that were retried"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		pathPoints, err = meter.Int64Histogram(
			"pathforge_path_points",
			metric.WithDescription("Number of waypoints per returned path"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		balanceScore, err = meter.Float64Histogram(
			"pathforge_balance_score",
			metric.WithDescription("Balance score of returned paths"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startGenerateSpan creates a span for one pipeline run.
func startGenerateSpan(ctx context.Context, req Request, async bool) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Engine.Generate",
		trace.WithAttributes(
			attribute.Int("pathforge.level_id", req.LevelID),
			attribute.String("pathforge.theme", req.Theme.String()),
			attribute.String("pathforge.mode", string(req.PathMode)),
			attribute.String("pathforge.seed", req.Seed.String()),
			attribute.Bool("pathforge.async", async),
		),
	)
}

// setGenerateSpanResult sets the result attributes on a generation span.
func setGenerateSpanResult(span trace.Span, p *Path, err error) {
	if p != nil {
		span.SetAttributes(
			attribute.String("pathforge.fallback_tier", p.Metadata.FallbackTier.String()),
			attribute.Int("pathforge.retry_count", p.Metadata.RetryCount),
			attribute.Int("pathforge.points", len(p.Points)),
			attribute.Float64("pathforge.balance_score", p.Metadata.BalanceScore),
		)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// recordGenerateMetrics records metrics for a pipeline run.
func recordGenerateMetrics(ctx context.Context, p *Path, duration time.Duration) {
	if err := initMetrics(); err != nil || p == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("tier", p.Metadata.FallbackTier.String()),
		attribute.String("mode", string(p.Metadata.PathMode)),
		attribute.Bool("static", p.Metadata.Static),
	)
	generateLatency.Record(ctx, duration.Seconds(), attrs)
	generateTotal.Add(ctx, 1, attrs)
	pathPoints.Record(ctx, int64(len(p.Points)))
	balanceScore.Record(ctx, p.Metadata.BalanceScore)
}

// recordRetry counts a failed attempt that will be retried.
func recordRetry(ctx context.Context, reason string) {
	if err := initMetrics(); err != nil {
		return
	}
	retryTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// loggerWithTrace returns a logger with trace context attached.
func loggerWithTrace(ctx context.Context, logger *slog.Logger) *slog.Logger {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return logger
	}
	return logger.With(
		slog.String("trace_id", spanCtx.TraceID().String()),
		slog.String("span_id", spanCtx.SpanID().String()),
	)
}
