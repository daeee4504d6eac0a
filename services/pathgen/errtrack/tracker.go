// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package errtrack funnels every generation failure through one tracker.
//
// Each failure is stamped with a kind, context, severity and timestamp,
// counted, and appended to a history whose shape depends on the mode:
//
//   - Diagnostic: rolling history (default 50 records), every record is
//     logged as it happens.
//   - Production: fixed circular buffer plus a batch queue that is flushed
//     on a timer or when it reaches a size threshold; one summary log line
//     per batch instead of one line per error.
//
// Counters only grow until Reset is called.
package errtrack

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Configuration
// =============================================================================

// Mode selects how much history the tracker keeps.
type Mode string

const (
	// ModeDiagnostic keeps a verbose rolling history.
	ModeDiagnostic Mode = "diagnostic"

	// ModeProduction keeps a bounded circular buffer with batched logging.
	ModeProduction Mode = "production"
)

// Config configures a Tracker. Zero values fall back to the defaults.
type Config struct {
	// Mode selects diagnostic or production tracking. Default: diagnostic.
	Mode Mode `yaml:"mode" json:"mode" validate:"omitempty,oneof=diagnostic production"`

	// HistoryLimit caps the diagnostic rolling history. Default: 50.
	HistoryLimit int `yaml:"history_limit" json:"history_limit" validate:"gte=0"`

	// CircularBufferSize is the production ring capacity. Default: 25.
	CircularBufferSize int `yaml:"circular_buffer_size" json:"circular_buffer_size" validate:"gte=0"`

	// BatchSize flushes the production batch once it holds this many records.
	// Default: 10.
	BatchSize int `yaml:"batch_size" json:"batch_size" validate:"gte=0"`

	// FlushInterval flushes the production batch on a timer. Default: 5s.
	FlushInterval time.Duration `yaml:"flush_interval" json:"flush_interval"`
}

// DefaultConfig returns the diagnostic-mode defaults.
func DefaultConfig() Config {
	return Config{
		Mode:               ModeDiagnostic,
		HistoryLimit:       50,
		CircularBufferSize: 25,
		BatchSize:          10,
		FlushInterval:      5 * time.Second,
	}
}

// WithDefaults fills unset fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.Mode == "" {
		c.Mode = d.Mode
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = d.HistoryLimit
	}
	if c.CircularBufferSize <= 0 {
		c.CircularBufferSize = d.CircularBufferSize
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = d.FlushInterval
	}
	return c
}

// =============================================================================
// Records and Stats
// =============================================================================

// Record is one tracked failure.
type Record struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Kind      Kind      `json:"kind"`
	Context   string    `json:"context"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
}

// NewRecord stamps a record with a fresh id and the current time without
// tracking it. Validators use it to report findings the caller may or may
// not forward to a Tracker.
func NewRecord(kind Kind, severity Severity, context, message string) Record {
	return Record{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Kind:      kind,
		Context:   context,
		Severity:  severity,
		Message:   message,
	}
}

// Stats is a point-in-time snapshot of the tracker counters.
type Stats struct {
	Mode           Mode           `json:"mode"`
	Counts         map[Kind]int64 `json:"counts"`
	Total          int64          `json:"total"`
	FallbacksUsed  int64          `json:"fallbacks_used"`
	CriticalErrors int64          `json:"critical_errors"`
	HistoryLen     int            `json:"history_len"`
	HistoryCap     int            `json:"history_cap"`
	Overwritten    int64          `json:"overwritten"`
	PendingBatch   int            `json:"pending_batch"`
	BatchesFlushed int64          `json:"batches_flushed"`
	UptimeSeconds  float64        `json:"uptime_seconds"`

	// ErrorsPerMinute is Total over uptime. Approximate by design of the
	// snapshot: it does not decay.
	ErrorsPerMinute float64 `json:"errors_per_minute"`
}

// =============================================================================
// Tracker
// =============================================================================

// Tracker is the single logging entry point for generation failures.
//
// # Thread Safety
//
// Tracker is safe for concurrent use. In production mode a background
// goroutine flushes the batch queue; call Close to stop it.
//
// # Example
//
//	tr := errtrack.NewTracker(errtrack.Config{Mode: errtrack.ModeProduction}, logger)
//	defer tr.Close()
//	tr.Track(errtrack.KindGeneration, errtrack.SeverityWarning, "level-1", "iteration cap hit")
//	fmt.Println(tr.Stats().Total)
type Tracker struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu             sync.Mutex
	counts         map[Kind]int64
	total          int64
	fallbacks      int64
	critical       int64
	startedAt      time.Time
	history        []Record
	ring           *Ring[Record]
	batch          []Record
	batchesFlushed int64

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Option customises a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// NewTracker creates a tracker. A nil logger discards log output.
//
// In production mode the batch flusher goroutine starts immediately.
func NewTracker(cfg Config, logger *slog.Logger, opts ...Option) *Tracker {
	cfg = cfg.WithDefaults()
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	t := &Tracker{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "errtrack")),
		now:    time.Now,
		counts: make(map[Kind]int64, len(Kinds)),
		stop:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.startedAt = t.now()

	if cfg.Mode == ModeProduction {
		t.ring = NewRing[Record](cfg.CircularBufferSize)
		t.batch = make([]Record, 0, cfg.BatchSize)
		t.wg.Add(1)
		go t.flushLoop()
	} else {
		t.history = make([]Record, 0, cfg.HistoryLimit)
	}
	return t
}

// Mode returns the tracking mode.
func (t *Tracker) Mode() Mode {
	return t.cfg.Mode
}

// Track records a failure and returns the stamped Record.
//
// # Description
//
// Stamps the failure with a fresh id and timestamp, increments the kind
// counter (and the critical counter for KindCritical or critical
// severity), appends to history, and logs it. Critical records are always
// logged immediately at error level, even in production mode.
func (t *Tracker) Track(kind Kind, severity Severity, context, message string) Record {
	if kind == KindCritical {
		severity = SeverityCritical
	}
	rec := NewRecord(kind, severity, context, message)
	rec.Timestamp = t.now()

	errorsTotal.WithLabelValues(string(kind), string(severity)).Inc()

	var flush []Record
	t.mu.Lock()
	t.counts[kind]++
	t.total++
	if severity == SeverityCritical {
		t.critical++
	}
	if t.ring != nil {
		if t.ring.Push(rec) {
			historyOverwrites.Inc()
		}
		t.batch = append(t.batch, rec)
		if len(t.batch) >= t.cfg.BatchSize {
			flush = t.takeBatchLocked()
		}
	} else {
		if len(t.history) >= t.cfg.HistoryLimit {
			copy(t.history, t.history[1:])
			t.history = t.history[:len(t.history)-1]
		}
		t.history = append(t.history, rec)
	}
	t.mu.Unlock()

	if t.ring == nil || severity == SeverityCritical {
		t.logRecord(rec)
	}
	if flush != nil {
		t.logBatch(flush)
	}
	return rec
}

// TrackError records err using its classification when it is an *Error.
// Unclassified errors are recorded as KindCritical. Returns the zero
// Record for a nil error.
func (t *Tracker) TrackError(context string, err error) Record {
	if err == nil {
		return Record{}
	}
	if e, ok := err.(*Error); ok {
		ctx := e.Context
		if ctx == "" {
			ctx = context
		}
		return t.Track(e.Kind, e.Severity, ctx, e.Message)
	}
	return t.Track(KindOf(err), SeverityOf(err), context, err.Error())
}

// RecordFallback counts a path that was produced by a fallback tier.
func (t *Tracker) RecordFallback(tier string) {
	fallbacksTotal.WithLabelValues(tier).Inc()
	t.mu.Lock()
	t.fallbacks++
	t.mu.Unlock()
}

// Stats returns a snapshot of the counters.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	counts := make(map[Kind]int64, len(Kinds))
	for _, k := range Kinds {
		counts[k] = t.counts[k]
	}
	uptime := t.now().Sub(t.startedAt)
	s := Stats{
		Mode:           t.cfg.Mode,
		Counts:         counts,
		Total:          t.total,
		FallbacksUsed:  t.fallbacks,
		CriticalErrors: t.critical,
		UptimeSeconds:  uptime.Seconds(),
		BatchesFlushed: t.batchesFlushed,
	}
	if t.ring != nil {
		s.HistoryLen = t.ring.Len()
		s.HistoryCap = t.ring.Cap()
		s.Overwritten = t.ring.Dropped()
		s.PendingBatch = len(t.batch)
	} else {
		s.HistoryLen = len(t.history)
		s.HistoryCap = t.cfg.HistoryLimit
	}
	if minutes := uptime.Minutes(); minutes > 0 {
		s.ErrorsPerMinute = float64(t.total) / minutes
	}
	return s
}

// History returns the retained records, oldest first.
func (t *Tracker) History() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ring != nil {
		return t.ring.Slice()
	}
	out := make([]Record, len(t.history))
	copy(out, t.history)
	return out
}

// Reset clears all counters and history and restarts the uptime clock.
// Pending production batches are discarded.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts = make(map[Kind]int64, len(Kinds))
	t.total = 0
	t.fallbacks = 0
	t.critical = 0
	t.batchesFlushed = 0
	t.startedAt = t.now()
	if t.ring != nil {
		t.ring.Clear()
		t.batch = t.batch[:0]
	} else {
		t.history = t.history[:0]
	}
}

// Flush writes any pending production batch and returns its size.
// Always 0 in diagnostic mode.
func (t *Tracker) Flush() int {
	t.mu.Lock()
	batch := t.takeBatchLocked()
	t.mu.Unlock()
	if len(batch) > 0 {
		t.logBatch(batch)
	}
	return len(batch)
}

// Close stops the flusher and writes the last batch. Safe to call twice.
func (t *Tracker) Close() error {
	t.stopOnce.Do(func() {
		close(t.stop)
	})
	t.wg.Wait()
	t.Flush()
	return nil
}

// flushLoop flushes the batch queue every FlushInterval until Close.
func (t *Tracker) flushLoop() {
	defer t.wg.Done()
	ticker := time.NewTicker(t.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.Flush()
		case <-t.stop:
			return
		}
	}
}

// takeBatchLocked detaches the pending batch. Caller holds t.mu.
func (t *Tracker) takeBatchLocked() []Record {
	if len(t.batch) == 0 {
		return nil
	}
	out := make([]Record, len(t.batch))
	copy(out, t.batch)
	t.batch = t.batch[:0]
	t.batchesFlushed++
	return out
}

func (t *Tracker) logRecord(rec Record) {
	level := slog.LevelInfo
	switch rec.Severity {
	case SeverityWarning:
		level = slog.LevelWarn
	case SeverityError, SeverityCritical:
		level = slog.LevelError
	}
	t.logger.Log(context.Background(), level, rec.Message,
		slog.String("error_id", rec.ID),
		slog.String("kind", string(rec.Kind)),
		slog.String("severity", string(rec.Severity)),
		slog.String("context", rec.Context),
	)
}

func (t *Tracker) logBatch(batch []Record) {
	batchFlushes.Observe(float64(len(batch)))
	byKind := make(map[string]int, len(Kinds))
	for _, rec := range batch {
		byKind[string(rec.Kind)]++
	}
	t.logger.Warn("error batch flushed",
		slog.Int("records", len(batch)),
		slog.Any("by_kind", byKind),
		slog.Time("first", batch[0].Timestamp),
		slog.Time("last", batch[len(batch)-1].Timestamp),
	)
}
