// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine orchestrates tower-defense path generation.
//
// A request flows through input validation, theme resolution, a
// reachability check, the raw builder wrapped in the retry loop, and the
// structural and balance validators. Anything that fails on the way is
// recorded by the engine's error tracker and escalates to the fallback
// chain (simple interpolated path, then the minimal two-point path), so
// Generate always returns a path. Only StrictMode surfaces an error, and
// only for Critical failures.
//
// All state (tracker, sampler memo cache, static path cache) belongs to
// one Engine; nothing is process-global except the metric instruments.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AleutianAI/pathforge/services/pathgen/builder"
	"github.com/AleutianAI/pathforge/services/pathgen/errtrack"
	"github.com/AleutianAI/pathforge/services/pathgen/geom"
	"github.com/AleutianAI/pathforge/services/pathgen/levels"
	"github.com/AleutianAI/pathforge/services/pathgen/sampler"
	"github.com/AleutianAI/pathforge/services/pathgen/theme"
	"github.com/AleutianAI/pathforge/services/pathgen/validate"
	"github.com/google/uuid"
)

// =============================================================================
// Engine
// =============================================================================

// Engine generates paths for one game instance.
//
// # Thread Safety
//
// Safe for concurrent use. Pipeline runs are serialised by an internal
// mutex; GenerateAsync additionally refuses a second in-flight task.
type Engine struct {
	cfg       Config
	logger    *slog.Logger
	tracker   *errtrack.Tracker
	cache     *sampler.Cache
	themes    *theme.Registry
	levels    levels.Table
	builder   builder.Builder
	validator *validate.Validator
	now       func() time.Time

	mu       sync.Mutex
	inFlight atomic.Bool

	staticMu sync.Mutex
	static   map[int]staticEntry
}

type staticEntry struct {
	source []geom.Point
	path   *Path
	err    error
}

// Option customises an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Default discards.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithBuilder replaces the raw path builder.
func WithBuilder(b builder.Builder) Option {
	return func(e *Engine) {
		if b != nil {
			e.builder = b
		}
	}
}

// WithLevels sets the level table. Default: levels.Builtin().
func WithLevels(t levels.Table) Option {
	return func(e *Engine) {
		if t != nil {
			e.levels = t
		}
	}
}

// WithThemes sets the theme registry. Default: theme.NewRegistry().
func WithThemes(r *theme.Registry) Option {
	return func(e *Engine) {
		if r != nil {
			e.themes = r
		}
	}
}

// WithClock overrides the time source used for unseeded requests and
// metadata timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New creates an Engine.
//
// # Inputs
//
//   - cfg: engine configuration; validated here
//   - opts: optional collaborators
//
// # Outputs
//
//   - *Engine: ready to use; call Close to stop the tracker's flusher
//   - error: when cfg is invalid
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:    cfg,
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
		static: make(map[int]staticEntry),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(slog.String("component", "engine"))
	if e.themes == nil {
		e.themes = theme.NewRegistry()
	}
	if e.levels == nil {
		e.levels = levels.Builtin()
	}
	if e.builder == nil {
		e.builder = builder.NewWalker(e.logger)
	}
	e.tracker = errtrack.NewTracker(cfg.Tracker, e.logger)
	e.cache = sampler.NewCache(cfg.SamplerCacheSize)
	e.validator = validate.New(cfg.Rules, cfg.Balance)
	return e, nil
}

// Close releases the tracker. Pending batched records are flushed.
func (e *Engine) Close() error {
	return e.tracker.Close()
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Tracker returns the engine's error tracker.
func (e *Engine) Tracker() *errtrack.Tracker { return e.tracker }

// Levels returns the level table.
func (e *Engine) Levels() levels.Table { return e.levels }

// Themes returns the theme registry.
func (e *Engine) Themes() *theme.Registry { return e.themes }

// Generate produces a path for req.
//
// # Description
//
// Runs the full pipeline synchronously. Never returns a nil path. The
// error is nil unless StrictMode is on and a Critical failure occurred,
// in which case the minimal fallback path is returned with it.
func (e *Engine) Generate(ctx context.Context, req Request) (*Path, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.run(ctx, req, nil)
}

// Regenerate requests a fresh path for a level in response to a gameplay
// event. It is an ordinary request carrying a trigger; dynamic levels mix
// the trigger into the seed so different events yield different paths.
func (e *Engine) Regenerate(ctx context.Context, levelID int, trigger string, seed sampler.Seed) (*Path, error) {
	return e.Generate(ctx, Request{LevelID: levelID, Trigger: trigger, Seed: seed})
}

// =============================================================================
// Pipeline
// =============================================================================

// plan is a request resolved against the level table and config.
type plan struct {
	requestID     string
	context       string
	levelID       int
	level         levels.LevelConfig
	hasLevel      bool
	bounds        geom.Bounds
	entry         geom.Point
	exit          geom.Point
	theme         theme.Config
	mode          PathMode
	seed          sampler.Seed
	effective     int64
	deterministic bool
	trigger       string
	validator     *validate.Validator
	warnings      []string
}

func (p *plan) warn(msg string) {
	p.warnings = append(p.warnings, msg)
}

// reportFunc receives pipeline checkpoints; nil for synchronous runs.
type reportFunc func(stage Stage, percent int, msg string)

type checkpoint struct {
	stage   Stage
	percent int
}

var checkpoints = []checkpoint{
	{StageInitialization, 0},
	{StageBuild, 25},
	{StageValidation, 75},
	{StageCompletion, 100},
}

// progress emits each checkpoint exactly once and in order. Reaching a
// later stage first emits the stages the pipeline jumped over.
type progress struct {
	fn   reportFunc
	next int
}

func (pr *progress) reach(stage Stage, msg string) {
	if pr.fn == nil {
		return
	}
	target := slices.IndexFunc(checkpoints, func(c checkpoint) bool { return c.stage == stage })
	for ; pr.next <= target; pr.next++ {
		c := checkpoints[pr.next]
		if c.stage == stage {
			pr.fn(c.stage, c.percent, msg)
			continue
		}
		pr.fn(c.stage, c.percent, "skipped")
	}
}

// run executes the pipeline. Caller holds e.mu.
func (e *Engine) run(ctx context.Context, req Request, onProgress reportFunc) (path *Path, err error) {
	started := e.now()
	ctx, span := startGenerateSpan(ctx, req, onProgress != nil)
	defer span.End()
	logger := loggerWithTrace(ctx, e.logger)
	report := &progress{fn: onProgress}

	p := &plan{
		requestID: uuid.NewString(),
		context:   contextFor(req),
		levelID:   req.LevelID,
		bounds:    e.cfg.DefaultCanvas,
		validator: e.validator,
		theme:     e.themes.Default(),
	}
	p.entry = geom.Pt(0, p.bounds.Height/2)
	p.exit = geom.Pt(p.bounds.Width, p.bounds.Height/2)

	defer func() {
		if r := recover(); r != nil {
			crit := errtrack.Newf(errtrack.KindCritical, errtrack.SeverityCritical, p.context, "panic: %v", r)
			e.tracker.TrackError(p.context, crit)
			logger.Error("generation panicked, using minimal fallback",
				slog.String("request_id", p.requestID),
				slog.Any("panic", r))
			p.warn(crit.Message)
			path = e.minimalFallback(p)
			err = nil
			if e.cfg.StrictMode {
				err = crit
			}
		}
		if path != nil {
			path.Metadata.GenerationTime = e.now().Sub(started)
		}
		report.reach(StageCompletion, "done")
		setGenerateSpanResult(span, path, err)
		recordGenerateMetrics(ctx, path, e.now().Sub(started))
	}()

	report.reach(StageInitialization, "resolving request")
	if failure := e.resolve(req, p); failure != nil {
		e.tracker.TrackError(p.context, failure)
		p.warn(failure.Error())
		return e.fallback(ctx, p, failure)
	}

	if p.hasLevel && p.level.UsesStaticPath() {
		if sp, serr := e.staticPath(p); serr == nil {
			return sp, nil
		} else if !p.level.AllowGeneration {
			return e.fallback(ctx, p, serr)
		}
	}

	reach := validate.CheckReachability(p.entry, p.exit, p.bounds, p.validator.Rules(), p.context)
	if !reach.IsReachable {
		e.tracker.TrackError(p.context, reach.Err)
		p.warn(reach.Reason)
		return e.fallback(ctx, p, reach.Err)
	}

	report.reach(StageBuild, "building raw path")
	var lastErr error
	for attempt := 0; attempt <= e.cfg.MaxPathGenerationRetries; attempt++ {
		points, attemptErr := e.attempt(ctx, p, attempt)
		if attemptErr != nil {
			if errtrack.KindOf(attemptErr) == errtrack.KindCritical {
				e.tracker.TrackError(p.context, attemptErr)
				p.warn(attemptErr.Error())
				return e.criticalFallback(p, attemptErr)
			}
			lastErr = attemptErr
			e.tracker.Track(errtrack.KindGeneration, errtrack.SeverityWarning, p.context,
				fmt.Sprintf("attempt %d: %s", attempt, attemptErr))
			if attempt < e.cfg.MaxPathGenerationRetries {
				recordRetry(ctx, "build")
			}
			continue
		}

		report.reach(StageValidation, "validating path")
		res := p.validator.Validate(points, p.bounds, validate.Options{
			Context: p.context, Level: p.level.ID, Targets: p.level.Balance,
		})
		if !res.IsValid {
			lastErr = errtrack.New(errtrack.KindGeneration, errtrack.SeverityWarning, p.context,
				fmt.Sprintf("attempt %d failed validation: %s", attempt, res.Errors[0].Message))
			e.tracker.TrackError(p.context, lastErr)
			if attempt < e.cfg.MaxPathGenerationRetries {
				recordRetry(ctx, "validation")
			}
			continue
		}

		for _, w := range res.Warnings {
			e.tracker.Track(w.Kind, w.Severity, w.Context, w.Message)
			p.warn(w.Message)
		}
		e.trackBalance(logger, p, res.Recommendations)
		path = e.finish(p, points, TierNone, attempt, &res)
		logger.Info("path generated",
			slog.String("request_id", p.requestID),
			slog.String("context", p.context),
			slog.Int("points", len(points)),
			slog.Int("retries", attempt),
			slog.Float64("balance", res.BalanceScore))
		return path, nil
	}

	if lastErr == nil {
		lastErr = errtrack.New(errtrack.KindGeneration, errtrack.SeverityError, p.context, "no attempt succeeded")
	}
	logger.Warn("retries exhausted, escalating to fallback",
		slog.String("request_id", p.requestID),
		slog.Int("attempts", e.cfg.MaxPathGenerationRetries+1),
		slog.String("last_error", lastErr.Error()))
	return e.fallback(ctx, p, lastErr)
}

// trackBalance records a score below the level target as a warning on
// the path. The remaining hints are only logged.
func (e *Engine) trackBalance(logger *slog.Logger, p *plan, recs []validate.Recommendation) {
	for _, rec := range recs {
		if rec.Code == validate.RecBelowTarget {
			e.tracker.Track(errtrack.KindGeneration, errtrack.SeverityWarning, p.context, rec.Message)
			p.warn(rec.Message)
			continue
		}
		logger.Debug("balance recommendation",
			slog.String("request_id", p.requestID),
			slog.String("code", rec.Code),
			slog.String("message", rec.Message))
	}
}

// attempt runs the raw builder once with seed+attempt.
func (e *Engine) attempt(ctx context.Context, p *plan, attempt int) ([]geom.Point, error) {
	var reporter sampler.Reporter
	if attempt == 0 {
		reporter = e.tracker
	}
	smp := sampler.New(p.seed.Offset(int64(attempt)), e.cache, reporter)
	if attempt == 0 {
		p.effective = smp.Seed()
		p.deterministic = p.deterministic && smp.Deterministic()
	}

	res, err := e.builder.Build(ctx, builder.Input{
		Start:         p.entry,
		End:           p.exit,
		Bounds:        p.bounds,
		Theme:         p.theme,
		Sampler:       smp,
		MinSegment:    p.validator.Rules().MinSegmentLength,
		MaxSegment:    p.validator.Rules().MaxSegmentLength,
		MaxIterations: e.cfg.MaxIterations,
		TimeBudget:    e.cfg.TimeBudget,
		Context:       p.context,
	})
	if err != nil {
		var classified *errtrack.Error
		if !errors.As(err, &classified) {
			// Unclassified builder errors are build failures, not crashes.
			return nil, errtrack.Wrap(errtrack.KindGeneration, errtrack.SeverityWarning, p.context, err)
		}
		return nil, err
	}
	if !res.Complete {
		return nil, errtrack.Newf(errtrack.KindGeneration, errtrack.SeverityWarning, p.context,
			"raw path incomplete (%s)", res.StopReason)
	}
	return res.Points, nil
}

// resolve fills p from req. Returns an InputValidation failure when the
// request itself is unusable; the plan still carries usable fallback
// endpoints in that case.
func (e *Engine) resolve(req Request, p *plan) *errtrack.Error {
	p.trigger = req.Trigger
	p.level, p.hasLevel = e.levels.Level(req.LevelID)

	p.bounds = e.cfg.DefaultCanvas
	if p.hasLevel {
		p.bounds = p.level.Canvas
	}
	if req.CanvasWidth > 0 && req.CanvasHeight > 0 {
		p.bounds = geom.Bounds{Width: req.CanvasWidth, Height: req.CanvasHeight}
	}

	p.entry = geom.Pt(0, p.bounds.Height/2)
	p.exit = geom.Pt(p.bounds.Width, p.bounds.Height/2)
	if p.hasLevel {
		p.entry, p.exit = p.level.Entry, p.level.Exit
	}
	if req.Entry != nil {
		p.entry = *req.Entry
	}
	if req.Exit != nil {
		p.exit = *req.Exit
	}

	p.mode = ModeHybrid
	if p.hasLevel {
		p.mode = p.level.PathMode
	}
	if req.PathMode != "" {
		p.mode = req.PathMode
	}

	rules := e.cfg.Rules
	if p.hasLevel && p.level.Constraints != nil {
		merged := rules.Apply(p.level.Constraints)
		if rerr := merged.Validate(); rerr != nil {
			cerr := errtrack.Wrap(errtrack.KindConfiguration, errtrack.SeverityWarning, p.context,
				fmt.Errorf("level %d constraints ignored: %w", p.level.ID, rerr))
			e.tracker.TrackError(p.context, cerr)
			p.warn(fmt.Sprintf("level %d constraints conflict with engine rules, using engine rules", p.level.ID))
		} else {
			rules = merged
		}
	}
	p.validator = e.validator.WithRules(rules)

	p.seed, p.deterministic = req.Seed, req.Seed.IsValid()
	if !req.Seed.IsSet() {
		p.seed = sampler.SeedOf(e.now().UnixNano())
	}
	if v, ok := p.seed.Value(); ok && p.mode == ModeDynamic && p.trigger != "" {
		p.seed = sampler.SeedOf(sampler.DeriveSeed(v, p.trigger))
	}

	spec := req.Theme
	if spec.IsZero() && p.hasLevel {
		spec = p.level.Theme
	}
	cfg, terr := e.themes.Resolve(spec)
	if terr != nil {
		e.tracker.TrackError(p.context, terr)
		p.warn(fmt.Sprintf("theme %s rejected, using %s", spec, e.themes.Default().Name))
		cfg = e.themes.Default()
	}
	p.theme = cfg

	if err := engineValidate.Struct(req); err != nil {
		return errtrack.Wrap(errtrack.KindInputValidation, errtrack.SeverityError, p.context, err)
	}
	if req.LevelID != 0 && !p.hasLevel && (req.Entry == nil || req.Exit == nil) {
		return &errtrack.Error{
			Kind: errtrack.KindInputValidation, Severity: errtrack.SeverityError, Context: p.context,
			Message: fmt.Sprintf("level %d not found", req.LevelID), Err: levels.ErrLevelNotFound,
		}
	}
	for _, ep := range []struct {
		name string
		pt   geom.Point
	}{{"entry", p.entry}, {"exit", p.exit}} {
		if verr := validate.ValidatePoint(ep.pt, p.bounds, p.context+":"+ep.name); verr != nil {
			var classified *errtrack.Error
			if errors.As(verr, &classified) {
				return classified
			}
			return errtrack.Wrap(errtrack.KindInputValidation, errtrack.SeverityError, p.context, verr)
		}
	}
	return nil
}

// staticPath returns the validated authored path for the plan's level,
// validating it only the first time it is seen.
func (e *Engine) staticPath(p *plan) (*Path, error) {
	e.staticMu.Lock()
	entry, ok := e.static[p.level.ID]
	if !ok || !slices.Equal(entry.source, p.level.StaticPath) {
		entry = staticEntry{source: geom.Clone(p.level.StaticPath)}
		res := p.validator.Validate(p.level.StaticPath, p.bounds, validate.Options{
			Context: p.context, Level: p.level.ID, Targets: p.level.Balance,
		})
		if res.IsValid {
			entry.path = e.finish(p, geom.Clone(p.level.StaticPath), TierNone, 0, &res)
			entry.path.Metadata.Static = true
		} else {
			entry.err = errtrack.Newf(errtrack.KindConfiguration, errtrack.SeverityWarning, p.context,
				"static path invalid: %s", res.Errors[0].Message)
			e.tracker.TrackError(p.context, entry.err)
		}
		e.static[p.level.ID] = entry
	}
	e.staticMu.Unlock()

	if entry.err != nil {
		p.warn(entry.err.Error())
		return nil, entry.err
	}
	out := entry.path.Clone()
	out.Metadata.RequestID = p.requestID
	out.Metadata.GeneratedAt = e.now()
	out.Metadata.Trigger = p.trigger
	return out, nil
}

// finish wraps points in a Path with full metadata.
func (e *Engine) finish(p *plan, points []geom.Point, tier FallbackTier, retries int, res *validate.Result) *Path {
	if res == nil {
		r := p.validator.Validate(points, p.bounds, validate.Options{
			Context: p.context, Level: p.level.ID, Targets: p.level.Balance,
		})
		res = &r
	}
	// A valid caller seed is reported as given so it replays the same path.
	seed, ok := p.seed.Value()
	if !ok {
		seed = p.effective
	}
	return &Path{
		Points: points,
		Metadata: Metadata{
			RequestID:       p.requestID,
			LevelID:         p.levelID,
			GeneratedAt:     e.now(),
			RetryCount:      retries,
			Seed:            seed,
			Deterministic:   p.deterministic,
			ThemeName:       p.theme.Name,
			PathMode:        p.mode,
			FallbackTier:    tier,
			BoundingBox:     geom.BoundingBox(points),
			TotalLength:     geom.PathLength(points),
			ComplexityScore: validate.Complexity(points),
			BalanceScore:    res.BalanceScore,
			Trigger:         p.trigger,
			Warnings:        append([]string(nil), p.warnings...),
		},
	}
}

// contextFor labels tracker records for a request.
func contextFor(req Request) string {
	if req.LevelID > 0 {
		return fmt.Sprintf("level-%d", req.LevelID)
	}
	return "adhoc"
}

// nominalSegment is the midpoint of the theme's segment range, at least 1.
func nominalSegment(t theme.Config) float64 {
	return math.Max(1, t.SegmentLength.Mid())
}
