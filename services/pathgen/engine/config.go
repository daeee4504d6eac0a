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
	"fmt"
	"os"
	"time"

	"github.com/AleutianAI/pathforge/services/pathgen/builder"
	"github.com/AleutianAI/pathforge/services/pathgen/errtrack"
	"github.com/AleutianAI/pathforge/services/pathgen/geom"
	"github.com/AleutianAI/pathforge/services/pathgen/sampler"
	"github.com/AleutianAI/pathforge/services/pathgen/validate"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var engineValidate = validator.New()

// Config configures an Engine.
//
// # Description
//
// Every field has a usable default (see DefaultConfig). LoadConfig
// decodes a YAML document on top of the defaults, so a file only needs
// the keys it changes.
type Config struct {
	// MaxPathGenerationRetries is how many extra build attempts follow a
	// failed one. Default: 3; production: 1.
	MaxPathGenerationRetries int `yaml:"max_path_generation_retries" json:"max_path_generation_retries" validate:"gte=0,lte=20"`

	// SimpleFallbackEnabled turns the interpolated fallback tier on.
	SimpleFallbackEnabled bool `yaml:"simple_fallback_enabled" json:"simple_fallback_enabled"`

	// StrictMode returns Critical failures to the caller alongside the
	// minimal fallback path.
	StrictMode bool `yaml:"strict_mode" json:"strict_mode"`

	// MaxIterations caps raw builder steps per attempt. Default: 1000.
	MaxIterations int `yaml:"max_iterations" json:"max_iterations" validate:"gte=1"`

	// TimeBudget caps raw builder wall time per attempt. Default: 250ms.
	TimeBudget time.Duration `yaml:"time_budget" json:"time_budget" validate:"gt=0"`

	// SamplerCacheSize bounds the memo cache. Default: 1000.
	SamplerCacheSize int `yaml:"sampler_cache_size" json:"sampler_cache_size" validate:"gte=1"`

	// FallbackJitter is the lateral jitter of the simple fallback as a
	// fraction of its segment length. Default: 0.15.
	FallbackJitter float64 `yaml:"fallback_jitter" json:"fallback_jitter" validate:"gte=0,lte=0.5"`

	// DefaultCanvas is used when neither the request nor the level sets one.
	DefaultCanvas geom.Bounds `yaml:"default_canvas" json:"default_canvas"`

	Tracker errtrack.Config        `yaml:"tracker" json:"tracker"`
	Rules   validate.Rules         `yaml:"rules" json:"rules"`
	Balance validate.BalanceConfig `yaml:"balance" json:"balance"`
}

// DefaultConfig returns the diagnostic defaults.
func DefaultConfig() Config {
	return Config{
		MaxPathGenerationRetries: 3,
		SimpleFallbackEnabled:    true,
		MaxIterations:            builder.DefaultMaxIterations,
		TimeBudget:               builder.DefaultTimeBudget,
		SamplerCacheSize:         sampler.DefaultCacheSize,
		FallbackJitter:           0.15,
		DefaultCanvas:            geom.Bounds{Width: 800, Height: 600},
		Tracker:                  errtrack.DefaultConfig(),
		Rules:                    validate.DefaultRules(),
		Balance:                  validate.DefaultBalanceConfig(),
	}
}

// ProductionConfig returns the resource-bounded defaults: one retry and a
// circular error buffer with batched logging.
func ProductionConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxPathGenerationRetries = 1
	cfg.Tracker.Mode = errtrack.ModeProduction
	return cfg
}

// Validate checks every section of the config.
func (c Config) Validate() error {
	if err := engineValidate.Struct(c); err != nil {
		return fmt.Errorf("engine config: %w", err)
	}
	if c.DefaultCanvas.Width <= 0 || c.DefaultCanvas.Height <= 0 {
		return fmt.Errorf("engine config: default canvas must be positive")
	}
	if err := c.Rules.Validate(); err != nil {
		return fmt.Errorf("engine config rules: %w", err)
	}
	if err := c.Balance.Validate(); err != nil {
		return fmt.Errorf("engine config balance: %w", err)
	}
	return nil
}

// LoadConfig reads a YAML config file over base.
//
// # Example
//
//	cfg, err := engine.LoadConfig("pathforge.yaml", engine.ProductionConfig())
func LoadConfig(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	return ParseConfig(data, base)
}

// ParseConfig decodes YAML over base and validates the result.
func ParseConfig(data []byte, base Config) (Config, error) {
	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
