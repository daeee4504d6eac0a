// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/AleutianAI/pathforge/services/pathgen/engine"
	"github.com/dgraph-io/badger/v4"
)

// ErrNotFound is returned when a level has no stored path.
var ErrNotFound = errors.New("archive: no path stored for level")

const (
	currentPrefix = "path/current/"
	historyPrefix = "path/history/"
)

// Store is the per-level path archive.
//
// # Thread Safety
//
// Safe for concurrent use.
type Store struct {
	db         *badger.DB
	gc         *gcRunner
	historyTTL time.Duration
	inMemory   bool
	logger     *slog.Logger
}

// Open opens a Store.
//
// # Inputs
//
//   - cfg: storage configuration; Path is required unless InMemory
//
// # Outputs
//
//   - *Store: call Close when done
//   - error: when the database cannot be opened
func Open(cfg Config) (*Store, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Store{
		db:         db,
		historyTTL: cfg.HistoryTTL,
		inMemory:   cfg.InMemory,
		logger:     logger.With(slog.String("component", "archive")),
	}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		gc, err := newGCRunner(db, cfg.GCInterval, cfg.GCDiscardRatio, s.logger)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("archive gc: %w", err)
		}
		s.gc = gc
		gc.start()
	}
	return s, nil
}

// OpenInMemory opens a Store that lives only as long as the process.
func OpenInMemory() (*Store, error) {
	return Open(InMemoryConfig())
}

// Close stops GC and closes the database.
func (s *Store) Close() error {
	if s.gc != nil {
		s.gc.stop()
	}
	return s.db.Close()
}

// Put stores p as the current path of levelID. The previous current path,
// if any, moves into the level's history.
func (s *Store) Put(ctx context.Context, levelID int, p *engine.Path) error {
	if p == nil {
		return errors.New("archive: nil path")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode path: %w", err)
	}
	return s.update(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(currentKey(levelID))
		switch {
		case err == nil:
			prev, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			entry := badger.NewEntry(historyKey(levelID, time.Now()), prev)
			if s.historyTTL > 0 {
				entry = entry.WithTTL(s.historyTTL)
			}
			if err := txn.SetEntry(entry); err != nil {
				return err
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		return txn.Set(currentKey(levelID), data)
	})
}

// Get returns the current path of levelID, or ErrNotFound.
func (s *Store) Get(ctx context.Context, levelID int) (*engine.Path, error) {
	var p *engine.Path
	err := s.view(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(currentKey(levelID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			p, err = decodePath(val)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes the current path and history of levelID. Deleting a
// level with nothing stored is not an error.
func (s *Store) Delete(ctx context.Context, levelID int) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		if err := txn.Delete(currentKey(levelID)); err != nil {
			return err
		}
		keys, err := collectKeys(txn, historyLevelPrefix(levelID))
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// Levels lists the level ids that have a current path, ascending.
func (s *Store) Levels(ctx context.Context) ([]int, error) {
	var ids []int
	err := s.view(ctx, func(txn *badger.Txn) error {
		keys, err := collectKeys(txn, []byte(currentPrefix))
		if err != nil {
			return err
		}
		for _, k := range keys {
			id, err := strconv.Atoi(string(bytes.TrimPrefix(k, []byte(currentPrefix))))
			if err != nil {
				s.logger.Warn("skipping malformed archive key", slog.String("key", string(k)))
				continue
			}
			ids = append(ids, id)
		}
		return nil
	})
	return ids, err
}

// History returns up to limit superseded paths of levelID, newest first.
// A non-positive limit returns all of them.
func (s *Store) History(ctx context.Context, levelID, limit int) ([]*engine.Path, error) {
	var out []*engine.Path
	prefix := historyLevelPrefix(levelID)
	err := s.view(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration seeks to the last key <= seek.
		seek := append(bytes.Clone(prefix), 0xff)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(out) >= limit {
				break
			}
			err := it.Item().Value(func(val []byte) error {
				p, err := decodePath(val)
				if err != nil {
					return err
				}
				out = append(out, p)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	return s.db.Update(fn)
}

func (s *Store) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	return s.db.View(fn)
}

func collectKeys(txn *badger.Txn, prefix []byte) ([][]byte, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys, nil
}

func decodePath(val []byte) (*engine.Path, error) {
	var p engine.Path
	if err := json.Unmarshal(val, &p); err != nil {
		return nil, fmt.Errorf("decode path: %w", err)
	}
	return &p, nil
}

// Level ids are zero padded so lexical key order matches numeric order.
func currentKey(levelID int) []byte {
	return []byte(fmt.Sprintf("%s%08d", currentPrefix, levelID))
}

func historyLevelPrefix(levelID int) []byte {
	return []byte(fmt.Sprintf("%s%08d/", historyPrefix, levelID))
}

func historyKey(levelID int, at time.Time) []byte {
	return []byte(fmt.Sprintf("%s%08d/%020d", historyPrefix, levelID, at.UnixNano()))
}
