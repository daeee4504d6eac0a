// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package theme resolves path "styles" into generation parameters.
//
// A theme is either a name looked up in a Registry or a caller-supplied
// Config. Both forms are validated at the boundary; what comes out of
// Resolve is an immutable Config copy.
package theme

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/AleutianAI/pathforge/services/pathgen/errtrack"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Validation
// =============================================================================

// Limits on segment sizing accepted from custom themes.
const (
	MinSegmentLength = 10.0
	MaxSegmentLength = 250.0
)

// themeValidate is the validator instance for theme configs.
var themeValidate = validator.New()

// =============================================================================
// Config
// =============================================================================

// Range is an inclusive [Min, Max] interval.
type Range struct {
	Min float64 `json:"min" yaml:"min" validate:"gte=10,lte=250"`
	Max float64 `json:"max" yaml:"max" validate:"gte=10,lte=250,gtefield=Min"`
}

// Mid returns the midpoint of r.
func (r Range) Mid() float64 {
	return (r.Min + r.Max) / 2
}

// Config holds the parameters the raw path builder reads.
//
// # Fields
//
//   - StraightBias: 0..1, higher favours straight runs
//   - CurveComplexity: 0..1, higher allows wider heading swings
//   - SegmentLength: step length range in canvas units
//   - ObstacleDensity: 0..1, informational for level designers; the
//     balance checker reads it as a coverage hint
type Config struct {
	Name            string  `json:"name,omitempty" yaml:"name,omitempty"`
	StraightBias    float64 `json:"straight_bias" yaml:"straight_bias" validate:"gte=0,lte=1"`
	CurveComplexity float64 `json:"curve_complexity" yaml:"curve_complexity" validate:"gte=0,lte=1"`
	SegmentLength   Range   `json:"segment_length" yaml:"segment_length"`
	ObstacleDensity float64 `json:"obstacle_density" yaml:"obstacle_density" validate:"gte=0,lte=1"`
}

// Validate checks every numeric field against its documented range.
func (c Config) Validate() error {
	return themeValidate.Struct(c)
}

// =============================================================================
// Spec (named or custom)
// =============================================================================

// Spec selects a theme either by name or by a custom Config.
//
// The zero Spec selects the registry default. JSON accepts a string
// ("cyber") or an object ({"straight_bias": 0.5, ...}).
type Spec struct {
	name   string
	custom *Config
}

// Named selects a registry theme.
func Named(name string) Spec {
	return Spec{name: name}
}

// Custom selects a caller-supplied configuration.
func Custom(cfg Config) Spec {
	c := cfg
	return Spec{custom: &c}
}

// IsCustom reports whether s carries its own Config.
func (s Spec) IsCustom() bool { return s.custom != nil }

// IsZero reports whether s selects nothing (the registry default).
func (s Spec) IsZero() bool { return s.custom == nil && s.name == "" }

// Name returns the theme name, "custom" for unnamed custom themes.
func (s Spec) Name() string {
	if s.custom != nil {
		if s.custom.Name != "" {
			return s.custom.Name
		}
		return "custom"
	}
	return s.name
}

// String implements fmt.Stringer.
func (s Spec) String() string {
	if s.IsZero() {
		return "default"
	}
	return s.Name()
}

// MarshalJSON encodes a named spec as a string and a custom one as an object.
func (s Spec) MarshalJSON() ([]byte, error) {
	if s.custom != nil {
		return json.Marshal(s.custom)
	}
	return json.Marshal(s.name)
}

// UnmarshalJSON accepts a string, an object, or null.
func (s *Spec) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	switch {
	case trimmed == "null" || trimmed == "":
		*s = Spec{}
		return nil
	case strings.HasPrefix(trimmed, "\""):
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*s = Named(name)
		return nil
	default:
		var cfg Config
		if err := json.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("theme object: %w", err)
		}
		*s = Custom(cfg)
		return nil
	}
}

// UnmarshalYAML accepts a scalar name or a mapping.
func (s *Spec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var name string
		if err := node.Decode(&name); err != nil {
			return err
		}
		*s = Named(name)
		return nil
	}
	var cfg Config
	if err := node.Decode(&cfg); err != nil {
		return fmt.Errorf("theme mapping: %w", err)
	}
	*s = Custom(cfg)
	return nil
}

// MarshalYAML mirrors MarshalJSON.
func (s Spec) MarshalYAML() (any, error) {
	if s.custom != nil {
		return *s.custom, nil
	}
	return s.name, nil
}

// =============================================================================
// Registry
// =============================================================================

// DefaultName is the theme used when nothing (or something invalid) is asked for.
const DefaultName = "classic"

// ErrUnknownTheme is returned for names missing from the registry.
var ErrUnknownTheme = errors.New("unknown theme")

// Registry is a fixed table of named themes.
type Registry struct {
	themes      map[string]Config
	defaultName string
}

// builtins are the themes shipped with the engine.
var builtins = []Config{
	{Name: "classic", StraightBias: 0.6, CurveComplexity: 0.3, SegmentLength: Range{Min: 50, Max: 90}, ObstacleDensity: 0.3},
	{Name: "cyber", StraightBias: 0.7, CurveComplexity: 0.5, SegmentLength: Range{Min: 40, Max: 80}, ObstacleDensity: 0.4},
	{Name: "forest", StraightBias: 0.4, CurveComplexity: 0.6, SegmentLength: Range{Min: 35, Max: 70}, ObstacleDensity: 0.6},
	{Name: "desert", StraightBias: 0.8, CurveComplexity: 0.2, SegmentLength: Range{Min: 60, Max: 120}, ObstacleDensity: 0.2},
	{Name: "volcanic", StraightBias: 0.35, CurveComplexity: 0.75, SegmentLength: Range{Min: 40, Max: 75}, ObstacleDensity: 0.7},
	{Name: "maze", StraightBias: 0.25, CurveComplexity: 0.9, SegmentLength: Range{Min: 30, Max: 60}, ObstacleDensity: 0.8},
}

// NewRegistry returns a registry of the built-in themes.
func NewRegistry() *Registry {
	r := &Registry{themes: make(map[string]Config, len(builtins)), defaultName: DefaultName}
	for _, cfg := range builtins {
		r.themes[cfg.Name] = cfg
	}
	return r
}

// Register adds or replaces a named theme after validating it.
func (r *Registry) Register(cfg Config) error {
	if cfg.Name == "" {
		return errors.New("theme name is required")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("theme %q: %w", cfg.Name, err)
	}
	r.themes[strings.ToLower(cfg.Name)] = cfg
	return nil
}

// Names returns the registered theme names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.themes))
	for name := range r.themes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Default returns the default theme.
func (r *Registry) Default() Config {
	return r.themes[r.defaultName]
}

// Lookup returns a named theme.
func (r *Registry) Lookup(name string) (Config, bool) {
	cfg, ok := r.themes[strings.ToLower(strings.TrimSpace(name))]
	return cfg, ok
}

// Resolve turns a Spec into a validated Config.
//
// # Description
//
// Zero specs resolve to the default theme. Names are looked up
// case-insensitively. Custom configs are validated field by field.
//
// # Outputs
//
//   - Config: immutable copy for one generation call
//   - error: *errtrack.Error of KindConfiguration on unknown names or
//     out-of-range fields
func (r *Registry) Resolve(spec Spec) (Config, error) {
	if spec.IsZero() {
		return r.Default(), nil
	}
	if spec.IsCustom() {
		cfg := *spec.custom
		if err := cfg.Validate(); err != nil {
			return Config{}, errtrack.Wrap(errtrack.KindConfiguration, errtrack.SeverityWarning,
				"theme:"+spec.Name(), err)
		}
		if cfg.Name == "" {
			cfg.Name = "custom"
		}
		return cfg, nil
	}
	cfg, ok := r.Lookup(spec.name)
	if !ok {
		return Config{}, &errtrack.Error{
			Kind:     errtrack.KindConfiguration,
			Severity: errtrack.SeverityWarning,
			Context:  "theme:" + spec.name,
			Message:  fmt.Sprintf("%s %q", ErrUnknownTheme, spec.name),
			Err:      ErrUnknownTheme,
		}
	}
	return cfg, nil
}
