// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package errtrack

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ==============================================================================
// Metrics
// ==============================================================================

var (
	// errorsTotal counts tracked records.
	// Labels: kind (InputValidation, Reachability, Generation, Configuration, Critical),
	// severity (info, warning, error, critical)
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pathforge_errors_total",
		Help: "Total tracked generation errors by kind and severity",
	}, []string{"kind", "severity"})

	// fallbacksTotal counts paths produced by a fallback tier.
	fallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pathforge_fallbacks_total",
		Help: "Total paths produced by a fallback tier",
	}, []string{"tier"})

	historyOverwrites = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pathforge_error_history_overwrites_total",
		Help: "Error records overwritten in the production circular buffer",
	})

	batchFlushes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pathforge_error_batch_size",
		Help:    "Records per flushed production error batch",
		Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
	})
)
