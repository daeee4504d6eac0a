// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package errtrack

// Ring is a fixed-capacity circular buffer that overwrites its oldest slot.
//
// # Description
//
// Production-mode history. Memory is allocated once for the full capacity
// and never grows, so the history cost is bounded regardless of how many
// errors a long session produces.
//
// # Thread Safety
//
// Ring is NOT safe for concurrent use. The Tracker guards it with its own
// mutex.
//
// # Limitations
//
//   - Capacity is fixed at construction
//   - Overwritten items cannot be recovered; Dropped counts them
type Ring[T any] struct {
	buf     []T
	head    int // index of the oldest item
	size    int
	dropped int64
}

// NewRing creates an empty ring with the given capacity.
//
// # Panics
//
// Panics if capacity <= 0.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		panic("ring capacity must be positive")
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push writes item into the next slot, overwriting the oldest item when
// the ring is full. Returns true if an item was overwritten.
func (r *Ring[T]) Push(item T) bool {
	capacity := len(r.buf)
	if r.size < capacity {
		r.buf[(r.head+r.size)%capacity] = item
		r.size++
		return false
	}
	r.buf[r.head] = item
	r.head = (r.head + 1) % capacity
	r.dropped++
	return true
}

// Len returns the number of stored items. Never exceeds Cap.
func (r *Ring[T]) Len() int { return r.size }

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int { return len(r.buf) }

// Dropped returns how many items have been overwritten since the last Clear.
func (r *Ring[T]) Dropped() int64 { return r.dropped }

// Slice returns a copy of the stored items, oldest first.
func (r *Ring[T]) Slice() []T {
	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}

// Clear empties the ring and resets the dropped count.
func (r *Ring[T]) Clear() {
	var zero T
	for i := range r.buf {
		r.buf[i] = zero
	}
	r.head = 0
	r.size = 0
	r.dropped = 0
}
