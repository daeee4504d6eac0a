// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pathgen exposes the path generation engine to game servers over
// HTTP and WebSocket.
//
// The Service keeps one current path per level in the archive, generating
// it on first request. Concurrent first requests for the same level share
// one generation. Event-driven regeneration is rate limited per level so a
// flood of gameplay triggers cannot monopolise the engine.
package pathgen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"

	"github.com/AleutianAI/pathforge/services/pathgen/archive"
	"github.com/AleutianAI/pathforge/services/pathgen/engine"
	"github.com/AleutianAI/pathforge/services/pathgen/levels"
	"github.com/AleutianAI/pathforge/services/pathgen/sampler"
	"github.com/AleutianAI/pathforge/services/pathgen/telemetry"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

// ServiceVersion is reported by the health endpoint.
const ServiceVersion = "1.0.0"

// Sentinel errors for the service layer.
var (
	// ErrRateLimited is returned when a level's regeneration budget is spent.
	ErrRateLimited = errors.New("regeneration rate limited")
)

// =============================================================================
// Configuration
// =============================================================================

// RegenerateConfig bounds event-driven regeneration per level.
type RegenerateConfig struct {
	// PerSecond is the sustained rate. Default: 2. Zero or less disables
	// limiting.
	PerSecond float64 `yaml:"per_second" json:"per_second"`

	// Burst is the bucket size. Default: 4.
	Burst int `yaml:"burst" json:"burst"`
}

// ServiceConfig is the top-level configuration file of `pathforge serve`.
type ServiceConfig struct {
	Engine     engine.Config    `yaml:"engine" json:"engine"`
	Archive    archive.Config   `yaml:"archive" json:"archive"`
	Regenerate RegenerateConfig `yaml:"regenerate" json:"regenerate"`
	Telemetry  telemetry.Config `yaml:"telemetry" json:"telemetry"`

	// Listen is the HTTP listen address. Default: ":8085".
	Listen string `yaml:"listen" json:"listen"`
}

// DefaultServiceConfig returns development defaults with an in-memory
// archive.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Engine:     engine.DefaultConfig(),
		Archive:    archive.InMemoryConfig(),
		Regenerate: RegenerateConfig{PerSecond: 2, Burst: 4},
		Telemetry:  telemetry.DefaultConfig(),
		Listen:     ":8085",
	}
}

// LoadServiceConfig reads a YAML file over base. Missing keys keep the
// value from base.
func LoadServiceConfig(path string, base ServiceConfig) (ServiceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ServiceConfig{}, fmt.Errorf("reading service config: %w", err)
	}
	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return ServiceConfig{}, fmt.Errorf("parsing service config: %w", err)
	}
	if err := cfg.Engine.Validate(); err != nil {
		return ServiceConfig{}, err
	}
	if cfg.Regenerate.PerSecond > 0 && cfg.Regenerate.Burst < 1 {
		return ServiceConfig{}, fmt.Errorf("service config: regenerate burst must be at least 1")
	}
	return cfg, nil
}

// =============================================================================
// Service
// =============================================================================

// Service fronts one Engine with an archive of current paths.
//
// # Thread Safety
//
// Safe for concurrent use.
type Service struct {
	engine *engine.Engine
	store  *archive.Store
	cfg    RegenerateConfig
	logger *slog.Logger

	flight singleflight.Group

	limitersMu sync.Mutex
	limiters   map[int]*rate.Limiter
}

// NewService creates a Service. store may be nil, in which case current
// paths are regenerated on every request.
func NewService(eng *engine.Engine, store *archive.Store, cfg RegenerateConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		engine:   eng,
		store:    store,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "service")),
		limiters: make(map[int]*rate.Limiter),
	}
}

// Engine returns the underlying engine.
func (s *Service) Engine() *engine.Engine { return s.engine }

// Generate runs an ad-hoc request. Paths for known levels become the
// level's current path.
func (s *Service) Generate(ctx context.Context, req engine.Request) (*engine.Path, error) {
	p, err := s.engine.Generate(ctx, req)
	if p != nil && req.LevelID > 0 {
		if _, ok := s.engine.Levels().Level(req.LevelID); ok {
			s.archive(ctx, req.LevelID, p)
		}
	}
	return p, err
}

// GenerateAsync starts an async generation; see engine.GenerateAsync.
// Like Generate, a finished path for a known level becomes the level's
// current path. Archiving happens after the task is done, so a reader may
// briefly still see the previous current path.
func (s *Service) GenerateAsync(ctx context.Context, req engine.Request, onProgress engine.ProgressFunc) (*engine.Task, error) {
	task, err := s.engine.GenerateAsync(ctx, req, onProgress)
	if err != nil {
		return nil, err
	}
	if _, ok := s.engine.Levels().Level(req.LevelID); ok && req.LevelID > 0 && s.store != nil {
		actx := context.WithoutCancel(ctx)
		go func() {
			<-task.Done()
			if p, done, _ := task.Result(); done && p != nil {
				s.archive(actx, req.LevelID, p)
			}
		}()
	}
	return task, nil
}

// CurrentPath returns the stored path of levelID, generating and storing
// one when none exists. Concurrent callers for the same level share one
// generation.
func (s *Service) CurrentPath(ctx context.Context, levelID int) (*engine.Path, error) {
	if _, ok := s.engine.Levels().Level(levelID); !ok {
		return nil, fmt.Errorf("level %d: %w", levelID, levels.ErrLevelNotFound)
	}
	if s.store != nil {
		p, err := s.store.Get(ctx, levelID)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, archive.ErrNotFound) {
			return nil, fmt.Errorf("reading archive: %w", err)
		}
	}

	v, err, shared := s.flight.Do(strconv.Itoa(levelID), func() (any, error) {
		p, err := s.engine.Generate(ctx, engine.Request{LevelID: levelID, Seed: sampler.SeedOf(int64(levelID))})
		if err != nil {
			return p, err
		}
		s.archive(ctx, levelID, p)
		return p, nil
	})
	if shared {
		s.logger.Debug("current path generation shared", slog.Int("level_id", levelID))
	}
	p, _ := v.(*engine.Path)
	return p.Clone(), err
}

// Regenerate replaces the current path of levelID in response to a
// gameplay event.
//
// # Outputs
//
//   - *engine.Path: the new current path
//   - error: ErrLevelNotFound (wrapped), ErrRateLimited, or a strict-mode
//     engine failure
func (s *Service) Regenerate(ctx context.Context, levelID int, trigger string, seed sampler.Seed) (*engine.Path, error) {
	if _, ok := s.engine.Levels().Level(levelID); !ok {
		return nil, fmt.Errorf("level %d: %w", levelID, levels.ErrLevelNotFound)
	}
	if !s.limiter(levelID).Allow() {
		s.logger.Warn("regeneration rate limited",
			slog.Int("level_id", levelID),
			slog.String("trigger", trigger))
		return nil, ErrRateLimited
	}
	p, err := s.engine.Regenerate(ctx, levelID, trigger, seed)
	if p != nil {
		s.archive(ctx, levelID, p)
	}
	return p, err
}

// History returns superseded paths of levelID, newest first.
func (s *Service) History(ctx context.Context, levelID, limit int) ([]*engine.Path, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.History(ctx, levelID, limit)
}

// Preview runs engine.Preview.
func (s *Service) Preview(ctx context.Context, levelID int, opts engine.PreviewOptions) ([]engine.Candidate, error) {
	return s.engine.Preview(ctx, levelID, opts)
}

// Diagnostics returns the engine diagnostics snapshot.
func (s *Service) Diagnostics() engine.Diagnostics {
	return s.engine.Diagnostics()
}

// ResetDiagnostics clears engine diagnostics.
func (s *Service) ResetDiagnostics() {
	s.engine.ResetDiagnostics()
}

// Levels returns the configured level ids.
func (s *Service) Levels() []int {
	return s.engine.Levels().IDs()
}

// Level returns one level's configuration.
func (s *Service) Level(id int) (levels.LevelConfig, bool) {
	return s.engine.Levels().Level(id)
}

// archive stores p as the current path. Failures are logged; the caller
// still gets its path.
func (s *Service) archive(ctx context.Context, levelID int, p *engine.Path) {
	if s.store == nil {
		return
	}
	if err := s.store.Put(ctx, levelID, p); err != nil {
		s.logger.Error("archiving path failed",
			slog.Int("level_id", levelID),
			slog.String("error", err.Error()))
	}
}

func (s *Service) limiter(levelID int) *rate.Limiter {
	s.limitersMu.Lock()
	defer s.limitersMu.Unlock()
	l, ok := s.limiters[levelID]
	if !ok {
		limit := rate.Inf
		if s.cfg.PerSecond > 0 {
			limit = rate.Limit(s.cfg.PerSecond)
		}
		l = rate.NewLimiter(limit, max(s.cfg.Burst, 1))
		s.limiters[levelID] = l
	}
	return l
}
