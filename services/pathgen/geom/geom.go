// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package geom provides the 2D primitives shared by the path generator.
//
// All angles are radians unless a name says otherwise. Headings follow
// math.Atan2 conventions: 0 points along +X, π/2 along +Y.
package geom

import (
	"fmt"
	"math"
)

// Epsilon is the distance below which two points are treated as coincident.
const Epsilon = 1e-6

// Point is a 2D coordinate on the level canvas.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// IsFinite reports whether both coordinates are real numbers.
func (p Point) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// String formats p as "(x, y)" with one decimal.
func (p Point) String() string {
	return fmt.Sprintf("(%.1f, %.1f)", p.X, p.Y)
}

// Add returns p translated by (dx, dy).
func (p Point) Add(dx, dy float64) Point {
	return Point{X: p.X + dx, Y: p.Y + dy}
}

// Offset returns the point at the given heading and distance from p.
func (p Point) Offset(heading, distance float64) Point {
	return Point{
		X: p.X + math.Cos(heading)*distance,
		Y: p.Y + math.Sin(heading)*distance,
	}
}

// Equal reports whether p and q are coincident within Epsilon.
func (p Point) Equal(q Point) bool {
	return Distance(p, q) < Epsilon
}

// Bounds is the inclusive canvas rectangle [0, Width] × [0, Height].
type Bounds struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Contains reports whether p lies inside the canvas, edges included.
func (b Bounds) Contains(p Point) bool {
	if !p.IsFinite() {
		return false
	}
	return p.X >= 0 && p.X <= b.Width && p.Y >= 0 && p.Y <= b.Height
}

// Diagonal returns the canvas diagonal length.
func (b Bounds) Diagonal() float64 {
	return math.Hypot(b.Width, b.Height)
}

// Clamp moves p inside the canvas shrunk by margin on every side.
//
// A margin larger than half the canvas collapses to the center line.
func (b Bounds) Clamp(p Point, margin float64) Point {
	minX, maxX := margin, b.Width-margin
	if minX > maxX {
		minX, maxX = b.Width/2, b.Width/2
	}
	minY, maxY := margin, b.Height-margin
	if minY > maxY {
		minY, maxY = b.Height/2, b.Height/2
	}
	return Point{
		X: math.Min(math.Max(p.X, minX), maxX),
		Y: math.Min(math.Max(p.Y, minY), maxY),
	}
}

// Rect is an axis-aligned bounding box.
type Rect struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// Width returns the horizontal extent of r.
func (r Rect) Width() float64 { return r.MaxX - r.MinX }

// Height returns the vertical extent of r.
func (r Rect) Height() float64 { return r.MaxY - r.MinY }

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// Heading returns the direction of travel from a to b.
func Heading(a, b Point) float64 {
	return math.Atan2(b.Y-a.Y, b.X-a.X)
}

// WrapAngle normalises an angle into (-π, π].
func WrapAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a <= 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}

// TurnAngle returns the absolute deviation between two headings in [0, π].
func TurnAngle(from, to float64) float64 {
	return math.Abs(WrapAngle(to - from))
}

// Lerp returns the point at fraction t along the segment a→b.
func Lerp(a, b Point, t float64) Point {
	return Point{
		X: a.X + (b.X-a.X)*t,
		Y: a.Y + (b.Y-a.Y)*t,
	}
}

// Degrees converts radians to degrees.
func Degrees(rad float64) float64 { return rad * 180 / math.Pi }

// Radians converts degrees to radians.
func Radians(deg float64) float64 { return deg * math.Pi / 180 }

// PathLength returns the summed segment length of pts.
func PathLength(pts []Point) float64 {
	total := 0.0
	for i := 1; i < len(pts); i++ {
		total += Distance(pts[i-1], pts[i])
	}
	return total
}

// SegmentLengths returns the length of every consecutive segment.
func SegmentLengths(pts []Point) []float64 {
	if len(pts) < 2 {
		return nil
	}
	out := make([]float64, 0, len(pts)-1)
	for i := 1; i < len(pts); i++ {
		out = append(out, Distance(pts[i-1], pts[i]))
	}
	return out
}

// TurnAngles returns the turn at every interior vertex of pts.
//
// Zero-length segments are skipped so a duplicated point does not
// register as a turn.
func TurnAngles(pts []Point) []float64 {
	if len(pts) < 3 {
		return nil
	}
	headings := make([]float64, 0, len(pts)-1)
	for i := 1; i < len(pts); i++ {
		if pts[i-1].Equal(pts[i]) {
			continue
		}
		headings = append(headings, Heading(pts[i-1], pts[i]))
	}
	if len(headings) < 2 {
		return nil
	}
	turns := make([]float64, 0, len(headings)-1)
	for i := 1; i < len(headings); i++ {
		turns = append(turns, TurnAngle(headings[i-1], headings[i]))
	}
	return turns
}

// BoundingBox returns the smallest Rect enclosing pts.
func BoundingBox(pts []Point) Rect {
	if len(pts) == 0 {
		return Rect{}
	}
	r := Rect{MinX: pts[0].X, MinY: pts[0].Y, MaxX: pts[0].X, MaxY: pts[0].Y}
	for _, p := range pts[1:] {
		r.MinX = math.Min(r.MinX, p.X)
		r.MinY = math.Min(r.MinY, p.Y)
		r.MaxX = math.Max(r.MaxX, p.X)
		r.MaxY = math.Max(r.MaxY, p.Y)
	}
	return r
}

// HasCoincident reports whether any two consecutive points coincide.
func HasCoincident(pts []Point) bool {
	for i := 1; i < len(pts); i++ {
		if pts[i-1].Equal(pts[i]) {
			return true
		}
	}
	return false
}

// Clone returns an independent copy of pts.
func Clone(pts []Point) []Point {
	if pts == nil {
		return nil
	}
	out := make([]Point, len(pts))
	copy(out, pts)
	return out
}
