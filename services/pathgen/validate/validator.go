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
	"github.com/AleutianAI/pathforge/services/pathgen/errtrack"
	"github.com/AleutianAI/pathforge/services/pathgen/geom"
)

// Result is the combined structural and balance verdict for a path.
type Result struct {
	IsValid         bool              `json:"is_valid"`
	Errors          []errtrack.Record `json:"errors"`
	Warnings        []errtrack.Record `json:"warnings"`
	BalanceScore    float64           `json:"balance_score"`
	Recommendations []Recommendation  `json:"recommendations"`

	TotalLength float64 `json:"total_length"`
	Complexity  float64 `json:"complexity"`
	Balance     Balance `json:"balance"`
}

// Options describe where a path is going to be used.
type Options struct {
	Context string
	Level   int
	Targets Targets
}

// Validator runs the structural rules and the balance checker.
type Validator struct {
	rules   Rules
	balance BalanceConfig
}

// New creates a Validator.
func New(rules Rules, balance BalanceConfig) *Validator {
	return &Validator{rules: rules, balance: balance}
}

// Rules returns the structural thresholds.
func (v *Validator) Rules() Rules { return v.rules }

// BalanceConfig returns the balance heuristics.
func (v *Validator) BalanceConfig() BalanceConfig { return v.balance }

// WithRules returns a copy of v using rules.
func (v *Validator) WithRules(rules Rules) *Validator {
	return &Validator{rules: rules, balance: v.balance}
}

// Validate runs both checkers over pts.
//
// IsValid is false only when the structural checker found an error. The
// balance score is computed either way so rejected paths can still be
// compared in previews.
func (v *Validator) Validate(pts []geom.Point, bounds geom.Bounds, opts Options) Result {
	s := CheckStructure(pts, bounds, v.rules, opts.Context)
	b := CheckBalance(pts, opts.Level, s.Complexity, len(s.Warnings), opts.Targets, v.balance)
	return Result{
		IsValid:         s.OK(),
		Errors:          s.Errors,
		Warnings:        s.Warnings,
		BalanceScore:    b.Score,
		Recommendations: b.Recommendations,
		TotalLength:     s.TotalLength,
		Complexity:      s.Complexity,
		Balance:         b,
	}
}
