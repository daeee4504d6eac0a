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
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Ring Tests
// =============================================================================

func TestRing_OverwritesOldest(t *testing.T) {
	r := NewRing[int](3)

	for i := 1; i <= 5; i++ {
		r.Push(i)
	}

	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []int{3, 4, 5}, r.Slice())
	assert.Equal(t, int64(2), r.Dropped())

	r.Clear()
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, int64(0), r.Dropped())
	assert.Empty(t, r.Slice())
}

func TestRing_PanicsOnZeroCapacity(t *testing.T) {
	assert.Panics(t, func() { NewRing[int](0) })
}

// =============================================================================
// Tracker Tests
// =============================================================================

func TestTracker_ProductionBufferStaysBounded(t *testing.T) {
	tr := NewTracker(Config{Mode: ModeProduction, CircularBufferSize: 25, FlushInterval: time.Hour}, nil)
	defer tr.Close()

	for i := 0; i < 1000; i++ {
		kind := Kinds[i%len(Kinds)]
		tr.Track(kind, SeverityWarning, "sim", fmt.Sprintf("error %d", i))
	}

	history := tr.History()
	stats := tr.Stats()

	assert.Len(t, history, 25)
	assert.Equal(t, int64(1000), stats.Total)

	var sum int64
	for _, n := range stats.Counts {
		sum += n
	}
	assert.Equal(t, int64(1000), sum)
	assert.Equal(t, int64(975), stats.Overwritten)
	assert.Equal(t, "error 999", history[len(history)-1].Message)
	assert.Equal(t, "error 975", history[0].Message)
}

func TestTracker_DiagnosticRollingHistory(t *testing.T) {
	tr := NewTracker(Config{Mode: ModeDiagnostic, HistoryLimit: 50}, nil)
	defer tr.Close()

	for i := 0; i < 80; i++ {
		tr.Track(KindGeneration, SeverityWarning, "sim", fmt.Sprintf("error %d", i))
	}

	history := tr.History()
	require.Len(t, history, 50)
	assert.Equal(t, "error 30", history[0].Message)
	assert.Equal(t, "error 79", history[49].Message)
	assert.Equal(t, int64(80), tr.Stats().Counts[KindGeneration])
}

func TestTracker_CriticalCounter(t *testing.T) {
	tr := NewTracker(DefaultConfig(), nil)
	defer tr.Close()

	rec := tr.Track(KindCritical, SeverityWarning, "engine", "panic recovered")
	tr.Track(KindGeneration, SeverityError, "engine", "build failed")

	assert.Equal(t, SeverityCritical, rec.Severity, "critical kind is always critical severity")
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, int64(1), tr.Stats().CriticalErrors)
}

func TestTracker_BatchFlushesAtThreshold(t *testing.T) {
	tr := NewTracker(Config{Mode: ModeProduction, BatchSize: 4, FlushInterval: time.Hour}, nil)
	defer tr.Close()

	for i := 0; i < 9; i++ {
		tr.Track(KindGeneration, SeverityWarning, "sim", "x")
	}

	stats := tr.Stats()
	assert.Equal(t, int64(2), stats.BatchesFlushed)
	assert.Equal(t, 1, stats.PendingBatch)

	assert.Equal(t, 1, tr.Flush())
	assert.Equal(t, 0, tr.Flush())
}

func TestTracker_TimerFlush(t *testing.T) {
	tr := NewTracker(Config{Mode: ModeProduction, BatchSize: 100, FlushInterval: 10 * time.Millisecond}, nil)
	defer tr.Close()

	tr.Track(KindGeneration, SeverityWarning, "sim", "x")

	assert.Eventually(t, func() bool {
		return tr.Stats().PendingBatch == 0
	}, time.Second, 5*time.Millisecond)
}

func TestTracker_ResetAndUptime(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	tr := NewTracker(DefaultConfig(), nil, WithClock(clock))
	defer tr.Close()

	tr.Track(KindReachability, SeverityError, "level-2", "too close")
	tr.RecordFallback("simple")
	now = now.Add(2 * time.Minute)

	stats := tr.Stats()
	assert.InDelta(t, 120, stats.UptimeSeconds, 1e-9)
	assert.InDelta(t, 0.5, stats.ErrorsPerMinute, 1e-9)
	assert.Equal(t, int64(1), stats.FallbacksUsed)

	tr.Reset()
	stats = tr.Stats()
	assert.Equal(t, int64(0), stats.Total)
	assert.Equal(t, int64(0), stats.FallbacksUsed)
	assert.Empty(t, tr.History())
}

func TestTracker_TrackError(t *testing.T) {
	tr := NewTracker(DefaultConfig(), nil)
	defer tr.Close()

	rec := tr.TrackError("req", New(KindConfiguration, SeverityWarning, "", "unknown theme"))
	assert.Equal(t, KindConfiguration, rec.Kind)
	assert.Equal(t, "req", rec.Context)

	rec = tr.TrackError("req", errors.New("boom"))
	assert.Equal(t, KindCritical, rec.Kind)

	assert.Equal(t, Record{}, tr.TrackError("req", nil))
}

func TestTracker_CloseIsIdempotent(t *testing.T) {
	tr := NewTracker(Config{Mode: ModeProduction}, nil)
	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())
}

// =============================================================================
// Error Tests
// =============================================================================

func TestError_Classification(t *testing.T) {
	base := errors.New("io")
	err := fmt.Errorf("outer: %w", Wrap(KindGeneration, SeverityError, "build", base))

	assert.Equal(t, KindGeneration, KindOf(err))
	assert.Equal(t, SeverityError, SeverityOf(err))
	assert.True(t, errors.Is(err, base))
	assert.True(t, errors.Is(err, &Error{Kind: KindGeneration}))
	assert.False(t, errors.Is(err, &Error{Kind: KindReachability}))
	assert.Equal(t, KindCritical, KindOf(errors.New("plain")))
	assert.Nil(t, Wrap(KindGeneration, SeverityError, "x", nil))
}

func TestKind_Retryable(t *testing.T) {
	assert.True(t, KindGeneration.Retryable())
	assert.False(t, KindReachability.Retryable())
	assert.False(t, KindInputValidation.Retryable())
	assert.False(t, KindConfiguration.Retryable())
	assert.True(t, KindCritical.IsValid())
	assert.False(t, Kind("Nope").IsValid())
}

func TestSeverity_AtLeast(t *testing.T) {
	assert.True(t, SeverityCritical.AtLeast(SeverityError))
	assert.False(t, SeverityWarning.AtLeast(SeverityError))
}
