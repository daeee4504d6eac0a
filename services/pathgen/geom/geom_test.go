// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBounds_Contains(t *testing.T) {
	b := Bounds{Width: 800, Height: 600}

	tests := []struct {
		name string
		p    Point
		want bool
	}{
		{"origin", Pt(0, 0), true},
		{"far corner", Pt(800, 600), true},
		{"center", Pt(400, 300), true},
		{"negative x", Pt(-1, 10), false},
		{"beyond height", Pt(10, 600.5), false},
		{"nan", Pt(math.NaN(), 1), false},
		{"inf", Pt(1, math.Inf(1)), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, b.Contains(tt.p))
		})
	}
}

func TestBounds_Clamp(t *testing.T) {
	b := Bounds{Width: 100, Height: 50}

	assert.Equal(t, Pt(10, 10), b.Clamp(Pt(-5, 0), 10))
	assert.Equal(t, Pt(90, 40), b.Clamp(Pt(200, 80), 10))
	assert.Equal(t, Pt(30, 20), b.Clamp(Pt(30, 20), 10))

	// margin wider than the canvas collapses to the center
	assert.Equal(t, Pt(50, 25), b.Clamp(Pt(0, 0), 80))
}

func TestWrapAngle(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{math.Pi, math.Pi},
		{-math.Pi, math.Pi},
		{3 * math.Pi / 2, -math.Pi / 2},
		{-3 * math.Pi / 2, math.Pi / 2},
		{4 * math.Pi, 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, WrapAngle(tt.in), 1e-9, "WrapAngle(%v)", tt.in)
	}
}

func TestTurnAngles(t *testing.T) {
	pts := []Point{Pt(0, 0), Pt(10, 0), Pt(10, 10), Pt(20, 10)}

	turns := TurnAngles(pts)

	assert.Len(t, turns, 2)
	assert.InDelta(t, math.Pi/2, turns[0], 1e-9)
	assert.InDelta(t, math.Pi/2, turns[1], 1e-9)
}

func TestTurnAngles_SkipsDuplicatePoints(t *testing.T) {
	pts := []Point{Pt(0, 0), Pt(10, 0), Pt(10, 0), Pt(20, 0)}

	turns := TurnAngles(pts)

	assert.Len(t, turns, 1)
	assert.InDelta(t, 0, turns[0], 1e-9)
}

func TestPathLengthAndBoundingBox(t *testing.T) {
	pts := []Point{Pt(0, 0), Pt(3, 4), Pt(3, 10)}

	assert.InDelta(t, 11, PathLength(pts), 1e-9)
	assert.Equal(t, []float64{5, 6}, SegmentLengths(pts))
	assert.Equal(t, Rect{MinX: 0, MinY: 0, MaxX: 3, MaxY: 10}, BoundingBox(pts))
	assert.Equal(t, Rect{}, BoundingBox(nil))
}

func TestHasCoincident(t *testing.T) {
	assert.False(t, HasCoincident([]Point{Pt(0, 0), Pt(1, 0)}))
	assert.True(t, HasCoincident([]Point{Pt(0, 0), Pt(1, 0), Pt(1, 0)}))
}

func TestOffsetAndHeading(t *testing.T) {
	p := Pt(10, 10).Offset(math.Pi/2, 5)

	assert.InDelta(t, 10, p.X, 1e-9)
	assert.InDelta(t, 15, p.Y, 1e-9)
	assert.InDelta(t, math.Pi/2, Heading(Pt(10, 10), p), 1e-9)
	assert.InDelta(t, 90, Degrees(Radians(90)), 1e-9)
}
