// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sampler

import (
	"container/list"
	"sync"
	"sync/atomic"
)

// DefaultCacheSize is the default memo cache capacity.
const DefaultCacheSize = 1000

type memoKey struct {
	seed int64
	site string
	slot int
}

// Cache is a bounded memo cache with oldest-first eviction.
//
// # Description
//
// Insertion order is tracked in a list; when the cache is full the key
// inserted earliest is removed. Lookups do not refresh a key's position.
//
// # Thread Safety
//
// Safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[memoKey]*list.Element
	order    *list.List

	hits      int64
	misses    int64
	evictions int64
}

type cacheEntry struct {
	key   memoKey
	value float64
}

// CacheStats is a snapshot of cache counters.
type CacheStats struct {
	Len       int   `json:"len"`
	Cap       int   `json:"cap"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

// NewCache creates an empty cache. Non-positive capacities use DefaultCacheSize.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[memoKey]*list.Element, capacity),
		order:    list.New(),
	}
}

func (c *Cache) get(key memoKey) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		atomic.AddInt64(&c.hits, 1)
		return el.Value.(*cacheEntry).value, true
	}
	atomic.AddInt64(&c.misses, 1)
	return 0, false
}

func (c *Cache) put(key memoKey, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).value = value
		return
	}
	for c.order.Len() >= c.capacity {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
		atomic.AddInt64(&c.evictions, 1)
	}
	c.entries[key] = c.order.PushBack(&cacheEntry{key: key, value: value})
}

// Len returns the number of cached values.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns the cache counters.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		Len:       c.order.Len(),
		Cap:       c.capacity,
		Hits:      atomic.LoadInt64(&c.hits),
		Misses:    atomic.LoadInt64(&c.misses),
		Evictions: atomic.LoadInt64(&c.evictions),
	}
}

// Reset empties the cache and zeroes its counters.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[memoKey]*list.Element, c.capacity)
	c.order.Init()
	atomic.StoreInt64(&c.hits, 0)
	atomic.StoreInt64(&c.misses, 0)
	atomic.StoreInt64(&c.evictions, 0)
}
