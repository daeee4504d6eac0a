// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validate

import (
	"fmt"

	"github.com/AleutianAI/pathforge/services/pathgen/errtrack"
	"github.com/AleutianAI/pathforge/services/pathgen/geom"
)

// ValidatePoint checks that p is finite and inside bounds.
//
// Returns an *errtrack.Error of KindInputValidation, or nil.
func ValidatePoint(p geom.Point, bounds geom.Bounds, context string) error {
	if !p.IsFinite() {
		return errtrack.Newf(errtrack.KindInputValidation, errtrack.SeverityError, context,
			"point %s is not numeric", p)
	}
	if !bounds.Contains(p) {
		return errtrack.Newf(errtrack.KindInputValidation, errtrack.SeverityError, context,
			"point %s outside canvas %.0fx%.0f", p, bounds.Width, bounds.Height)
	}
	return nil
}

// Reachability is the outcome of an endpoint distance check.
type Reachability struct {
	IsReachable bool    `json:"is_reachable"`
	Distance    float64 `json:"distance"`
	Reason      string  `json:"reason,omitempty"`

	// Err is a KindReachability error when IsReachable is false.
	Err error `json:"-"`
}

// CheckReachability decides whether start and end are a usable pair.
//
// # Description
//
// The pair is unreachable when the endpoints are closer than half the
// minimum segment length, or farther apart than rules.MaxDistance (the
// canvas diagonal when MaxDistance is not positive). Never panics; the
// outcome is always returned as a value.
//
// # Example
//
//	r := validate.CheckReachability(geom.Pt(0, 0), geom.Pt(5, 0), bounds, rules, "level-1")
//	if !r.IsReachable {
//	    log.Println(r.Reason)
//	}
func CheckReachability(start, end geom.Point, bounds geom.Bounds, rules Rules, context string) Reachability {
	if !start.IsFinite() || !end.IsFinite() {
		err := errtrack.New(errtrack.KindReachability, errtrack.SeverityError, context, "endpoints are not numeric")
		return Reachability{Reason: err.Message, Err: err}
	}

	d := geom.Distance(start, end)
	minDist := rules.MinSegmentLength * 0.5
	maxDist := rules.MaxDistance
	if maxDist <= 0 {
		maxDist = bounds.Diagonal()
	}

	var reason string
	switch {
	case d < minDist:
		reason = fmt.Sprintf("endpoints %.1f apart, need at least %.1f", d, minDist)
	case maxDist > 0 && d > maxDist:
		reason = fmt.Sprintf("endpoints %.1f apart, limit is %.1f", d, maxDist)
	default:
		return Reachability{IsReachable: true, Distance: d}
	}
	return Reachability{
		Distance: d,
		Reason:   reason,
		Err:      errtrack.New(errtrack.KindReachability, errtrack.SeverityError, context, reason),
	}
}
