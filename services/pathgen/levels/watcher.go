// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package levels

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 200 * time.Millisecond

// ReloadFunc is called after every reload attempt. err is non-nil when the
// new file was rejected; the previous table stays active in that case.
type ReloadFunc func(t *StaticTable, err error)

// Watcher is a Table backed by a level file that reloads on change.
//
// # Description
//
// The directory holding the file is watched rather than the file itself
// so editors that save via rename are picked up. Bursts of events are
// collapsed into one reload after the debounce window. A file that fails
// to parse or validate is logged and ignored.
//
// # Thread Safety
//
// Level and IDs are safe to call concurrently with reloads.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger
	onReload ReloadFunc

	current atomic.Pointer[StaticTable]
	reloads atomic.Int64

	watcher  *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// WatcherOptions configures a Watcher.
type WatcherOptions struct {
	Debounce time.Duration
	Logger   *slog.Logger
	OnReload ReloadFunc
}

// NewWatcher loads path and prepares to watch it. Call Start to begin.
func NewWatcher(path string, opts WatcherOptions) (*Watcher, error) {
	initial, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	w := &Watcher{
		path:     filepath.Clean(path),
		debounce: opts.Debounce,
		logger:   opts.Logger.With(slog.String("component", "levels.watcher"), slog.String("path", path)),
		onReload: opts.OnReload,
		watcher:  fw,
		done:     make(chan struct{}),
	}
	w.current.Store(initial)
	return w, nil
}

// Start begins watching. Stops when ctx is cancelled or Close is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(w.path), err)
	}
	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

// Close stops the watcher and waits for the loop to exit.
func (w *Watcher) Close() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
		w.wg.Wait()
	})
	return err
}

// Level implements Table.
func (w *Watcher) Level(id int) (LevelConfig, bool) {
	return w.current.Load().Level(id)
}

// IDs implements Table.
func (w *Watcher) IDs() []int {
	return w.current.Load().IDs()
}

// Reloads returns how many successful reloads have happened.
func (w *Watcher) Reloads() int64 {
	return w.reloads.Load()
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
		case <-timerC:
			timer, timerC = nil, nil
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) reload() {
	t, err := LoadFile(w.path)
	if err != nil {
		w.logger.Warn("level file rejected, keeping previous table", slog.String("error", err.Error()))
	} else {
		w.current.Store(t)
		w.reloads.Add(1)
		w.logger.Info("level file reloaded", slog.Int("levels", len(t.IDs())))
	}
	if w.onReload != nil {
		w.onReload(t, err)
	}
}
