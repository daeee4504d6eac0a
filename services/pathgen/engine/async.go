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
	"context"
	"log/slog"
	"runtime"

	"github.com/AleutianAI/pathforge/services/pathgen/errtrack"
)

// ErrGenerationInFlight is returned by GenerateAsync while another async
// generation on the same engine has not finished.
var ErrGenerationInFlight = errtrack.New(errtrack.KindGeneration, errtrack.SeverityError,
	"async", "generation already in flight")

// Task is a handle to one async generation.
type Task struct {
	done chan struct{}
	path *Path
	err  error
}

// Done is closed when the generation has finished.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the generation finishes or ctx is done.
//
// Cancelling ctx only stops the wait; the generation itself runs to
// completion and still releases the single-flight guard.
func (t *Task) Wait(ctx context.Context) (*Path, error) {
	select {
	case <-t.done:
		return t.path, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the outcome without blocking. done is false while the
// generation is still running.
func (t *Task) Result() (path *Path, done bool, err error) {
	select {
	case <-t.done:
		return t.path, true, t.err
	default:
		return nil, false, nil
	}
}

// GenerateAsync runs the pipeline on a background goroutine.
//
// # Description
//
// At most one async generation runs per engine. A second call while one
// is active fails immediately with ErrGenerationInFlight instead of
// queueing. onProgress, when non-nil, receives the initialization, build,
// validation and completion checkpoints exactly once each and in order.
// When the pipeline jumps ahead (a rejected request, an unreachable exit,
// a static level or every build attempt failing) the jumped-over stages
// are still delivered with the message "skipped". The goroutine yields to
// the scheduler after each checkpoint.
//
// # Outputs
//
//   - *Task: handle for the running generation
//   - error: ErrGenerationInFlight when the guard is held
//
// # Example
//
//	task, err := eng.GenerateAsync(ctx, req, func(p engine.Progress) {
//	    fmt.Printf("%s %d%%\n", p.Stage, p.Percent)
//	})
//	if err != nil {
//	    return err
//	}
//	path, err := task.Wait(ctx)
func (e *Engine) GenerateAsync(ctx context.Context, req Request, onProgress ProgressFunc) (*Task, error) {
	if !e.inFlight.CompareAndSwap(false, true) {
		e.tracker.TrackError("async", ErrGenerationInFlight)
		e.logger.Warn("async generation rejected, another is in flight",
			slog.Int("level_id", req.LevelID))
		return nil, ErrGenerationInFlight
	}

	task := &Task{done: make(chan struct{})}
	report := func(stage Stage, percent int, msg string) {
		if onProgress != nil {
			onProgress(Progress{Stage: stage, Percent: percent, Message: msg})
		}
		runtime.Gosched()
	}

	go func() {
		defer close(task.done)
		defer e.inFlight.Store(false)

		e.mu.Lock()
		defer e.mu.Unlock()
		task.path, task.err = e.run(context.WithoutCancel(ctx), req, report)
	}()
	return task, nil
}

// InFlight reports whether an async generation is running.
func (e *Engine) InFlight() bool {
	return e.inFlight.Load()
}
