// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package builder

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/AleutianAI/pathforge/services/pathgen/errtrack"
	"github.com/AleutianAI/pathforge/services/pathgen/geom"
	"github.com/AleutianAI/pathforge/services/pathgen/sampler"
	"github.com/AleutianAI/pathforge/services/pathgen/theme"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func levelOneInput(t *testing.T, seed int64, themeName string) Input {
	t.Helper()
	cfg, ok := theme.NewRegistry().Lookup(themeName)
	require.True(t, ok)
	return Input{
		Start:      geom.Pt(0, 300),
		End:        geom.Pt(800, 300),
		Bounds:     geom.Bounds{Width: 800, Height: 600},
		Theme:      cfg,
		Sampler:    sampler.New(sampler.SeedOf(seed), nil, nil),
		MinSegment: 15,
		MaxSegment: 300,
		Context:    "level-1",
	}
}

func TestWalker_CompletesInsideBounds(t *testing.T) {
	w := NewWalker(nil)

	for _, name := range theme.NewRegistry().Names() {
		for seed := int64(1); seed <= 10; seed++ {
			t.Run(fmt.Sprintf("%s/%d", name, seed), func(t *testing.T) {
				in := levelOneInput(t, seed, name)

				res, err := w.Build(context.Background(), in)

				require.NoError(t, err)
				assert.True(t, res.Complete)
				require.GreaterOrEqual(t, len(res.Points), 2)
				assert.Equal(t, in.Start, res.Points[0])
				assert.Equal(t, in.End, res.Points[len(res.Points)-1])
				assert.False(t, geom.HasCoincident(res.Points))
				for _, p := range res.Points {
					assert.True(t, in.Bounds.Contains(p), "point %s", p)
				}
				assert.LessOrEqual(t, res.Iterations, DefaultMaxIterations)
			})
		}
	}
}

func TestWalker_Deterministic(t *testing.T) {
	w := NewWalker(nil)

	a, err := w.Build(context.Background(), levelOneInput(t, 12345, "cyber"))
	require.NoError(t, err)
	b, err := w.Build(context.Background(), levelOneInput(t, 12345, "cyber"))
	require.NoError(t, err)

	assert.Equal(t, a.Points, b.Points)
	assert.Equal(t, a.Iterations, b.Iterations)
}

func TestWalker_IterationCap(t *testing.T) {
	w := NewWalker(nil)
	in := levelOneInput(t, 7, "classic")
	in.MaxIterations = 5

	res, err := w.Build(context.Background(), in)

	require.Error(t, err)
	assert.Equal(t, errtrack.KindGeneration, errtrack.KindOf(err))
	assert.Equal(t, errtrack.SeverityWarning, errtrack.SeverityOf(err))
	assert.False(t, res.Complete)
	assert.Equal(t, StopMaxIterations, res.StopReason)
	assert.Equal(t, 5, res.Iterations)
	assert.Equal(t, in.Start, res.Points[0])
}

// longWalk needs far more than CheckInterval steps.
func longWalk() Input {
	return Input{
		Start:         geom.Pt(0, 0),
		End:           geom.Pt(9000, 9000),
		Bounds:        geom.Bounds{Width: 10000, Height: 10000},
		Theme:         theme.Config{StraightBias: 1, SegmentLength: theme.Range{Min: 10, Max: 10}},
		Sampler:       sampler.New(sampler.SeedOf(1), nil, nil),
		MaxIterations: 5000,
		TimeBudget:    time.Second,
	}
}

func TestWalker_TimeBudget(t *testing.T) {
	w := NewWalker(nil)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	w.now = func() time.Time {
		now = now.Add(2 * time.Second)
		return now
	}

	res, err := w.Build(context.Background(), longWalk())

	require.Error(t, err)
	assert.False(t, res.Complete)
	assert.Equal(t, StopTimeBudget, res.StopReason)
	assert.Equal(t, CheckInterval, res.Iterations)
	assert.Len(t, res.Points, CheckInterval+1)
}

func TestWalker_Cancelled(t *testing.T) {
	w := NewWalker(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := w.Build(ctx, longWalk())

	require.Error(t, err)
	assert.Equal(t, StopCancelled, res.StopReason)
	assert.Equal(t, CheckInterval, res.Iterations)
}

func TestWalker_RequiresSampler(t *testing.T) {
	in := levelOneInput(t, 1, "classic")
	in.Sampler = nil

	_, err := NewWalker(nil).Build(context.Background(), in)

	assert.Equal(t, errtrack.KindCritical, errtrack.KindOf(err))
}

func TestClosePath(t *testing.T) {
	tests := []struct {
		name   string
		points []geom.Point
		want   []geom.Point
	}{
		{
			name:   "plain",
			points: []geom.Point{{X: 0, Y: 0}, {X: 50, Y: 0}},
			want:   []geom.Point{{X: 0, Y: 0}, {X: 50, Y: 0}, {X: 100, Y: 0}},
		},
		{
			name:   "split long closing segment",
			points: []geom.Point{{X: 0, Y: 0}},
			want:   []geom.Point{{X: 0, Y: 0}, {X: 50, Y: 0}, {X: 100, Y: 0}},
		},
		{
			name:   "merge short closing segment",
			points: []geom.Point{{X: 0, Y: 0}, {X: 95, Y: 0}},
			want:   []geom.Point{{X: 0, Y: 0}, {X: 100, Y: 0}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := closePath(tt.points, geom.Pt(100, 0), 80, 15)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStepRange(t *testing.T) {
	in := Input{Theme: theme.Config{SegmentLength: theme.Range{Min: 10, Max: 400}}, MinSegment: 15, MaxSegment: 300}
	lo, hi := stepRange(in)
	assert.Equal(t, 15.0, lo)
	assert.Equal(t, 300.0, hi)
}
