// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sampler provides the deterministic random source for path generation.
//
// A Sampler owns a math/rand stream keyed by an integer seed. Frequently
// requested derived values (angle jitter keyed by iteration modulo 100)
// go through a bounded Cache shared by every sampler of one engine.
//
// Memoized values are a pure function of (seed, key): they are derived
// with a SplitMix64 finalizer rather than drawn from the stream, so a
// cache hit and a cache miss return the same value and never shift the
// stream. Two calls with the same seed therefore produce identical draws
// no matter what the cache held beforehand.
//
// Concurrency: a Sampler is NOT safe for concurrent use. The Cache is.
package sampler

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/pathforge/services/pathgen/errtrack"
)

// defaultSeed replaces a zero seed so seed 0 is still reproducible.
const defaultSeed int64 = 1

// MemoPeriod is the iteration modulus used by memoized draws.
const MemoPeriod = 100

// =============================================================================
// Seed
// =============================================================================

// Seed is an optional integer seed as received from a caller.
//
// The zero Seed is "absent": the engine derives one from wall-clock time.
// A Seed decoded from a non-integer JSON value is kept but marked
// invalid; the sampler then falls back to a non-deterministic source.
type Seed struct {
	value int64
	set   bool
	raw   string
}

// SeedOf returns a present, valid seed.
func SeedOf(v int64) Seed {
	return Seed{value: v, set: true}
}

// InvalidSeed returns a present seed that failed to parse.
func InvalidSeed(raw string) Seed {
	return Seed{set: true, raw: raw}
}

// IsSet reports whether the caller supplied a seed at all.
func (s Seed) IsSet() bool { return s.set }

// IsValid reports whether the seed is present and an integer.
func (s Seed) IsValid() bool { return s.set && s.raw == "" }

// Value returns the integer seed and whether it is valid.
func (s Seed) Value() (int64, bool) { return s.value, s.IsValid() }

// Offset returns the seed shifted by delta. Invalid and absent seeds are
// returned unchanged.
func (s Seed) Offset(delta int64) Seed {
	if !s.IsValid() {
		return s
	}
	return SeedOf(s.value + delta)
}

// String implements fmt.Stringer.
func (s Seed) String() string {
	switch {
	case !s.set:
		return "none"
	case s.raw != "":
		return fmt.Sprintf("invalid(%s)", s.raw)
	default:
		return strconv.FormatInt(s.value, 10)
	}
}

// MarshalJSON encodes absent seeds as null and invalid ones as their raw text.
func (s Seed) MarshalJSON() ([]byte, error) {
	switch {
	case !s.set:
		return []byte("null"), nil
	case s.raw != "":
		return json.Marshal(s.raw)
	default:
		return []byte(strconv.FormatInt(s.value, 10)), nil
	}
}

// UnmarshalJSON accepts an integer, an integer string, null, or anything
// else (kept as an invalid seed).
func (s *Seed) UnmarshalJSON(data []byte) error {
	text := strings.TrimSpace(string(data))
	if text == "null" || text == "" {
		*s = Seed{}
		return nil
	}
	text = strings.Trim(text, `"`)
	if v, err := strconv.ParseInt(text, 10, 64); err == nil {
		*s = SeedOf(v)
		return nil
	}
	*s = InvalidSeed(text)
	return nil
}

// =============================================================================
// Sampler
// =============================================================================

// Reporter receives sampler warnings. *errtrack.Tracker satisfies it.
type Reporter interface {
	Track(kind errtrack.Kind, severity errtrack.Severity, context, message string) errtrack.Record
}

// Sampler is a seeded pseudo-random source with memoized derived draws.
type Sampler struct {
	rng           *rand.Rand
	seed          int64
	deterministic bool
	cache         *Cache
}

// New creates a sampler for seed.
//
// # Description
//
// A valid seed yields a deterministic stream (seed 0 maps to a fixed
// default). An absent or invalid seed falls back to a time-seeded,
// non-deterministic stream; invalid seeds additionally report a
// Configuration warning through reporter (which may be nil).
//
// # Inputs
//
//   - seed: caller seed
//   - cache: shared memo cache (nil creates a private one)
//   - reporter: receives the fallback warning; may be nil
func New(seed Seed, cache *Cache, reporter Reporter) *Sampler {
	if cache == nil {
		cache = NewCache(DefaultCacheSize)
	}
	if v, ok := seed.Value(); ok {
		if v == 0 {
			v = defaultSeed
		}
		return &Sampler{rng: rand.New(rand.NewSource(v)), seed: v, deterministic: true, cache: cache}
	}

	v := time.Now().UnixNano()
	if seed.IsSet() && reporter != nil {
		reporter.Track(errtrack.KindConfiguration, errtrack.SeverityWarning, "sampler",
			fmt.Sprintf("seed %s is not an integer; using non-deterministic source", seed))
	}
	return &Sampler{rng: rand.New(rand.NewSource(v)), seed: v, deterministic: false, cache: cache}
}

// Seed returns the effective integer seed of the stream.
func (s *Sampler) Seed() int64 { return s.seed }

// Deterministic reports whether the stream is reproducible.
func (s *Sampler) Deterministic() bool { return s.deterministic }

// Float64 returns the next value in [0, 1).
func (s *Sampler) Float64() float64 {
	return s.rng.Float64()
}

// Signed returns the next value in [-1, 1).
func (s *Sampler) Signed() float64 {
	return s.rng.Float64()*2 - 1
}

// Range returns the next value in [min, max). Returns min when max <= min.
func (s *Sampler) Range(min, max float64) float64 {
	if max <= min {
		return min
	}
	return min + s.rng.Float64()*(max-min)
}

// Memo returns a memoized value in [-1, 1) for a call-site key and
// iteration. Iterations that agree modulo MemoPeriod share a value.
func (s *Sampler) Memo(site string, iteration int) float64 {
	slot := iteration % MemoPeriod
	if slot < 0 {
		slot += MemoPeriod
	}
	key := memoKey{seed: s.seed, site: site, slot: slot}
	if v, ok := s.cache.get(key); ok {
		return v
	}
	v := derive(s.seed, site, slot)
	s.cache.put(key, v)
	return v
}

// derive maps (seed, site, slot) to [-1, 1) with a SplitMix64 finalizer.
func derive(seed int64, site string, slot int) float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(site))
	x := uint64(seed) ^ (h.Sum64() + uint64(slot)*0x9e3779b97f4a7c15)
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	x ^= x >> 31
	return float64(x>>11)/float64(1<<53)*2 - 1
}

// DeriveSeed mixes a base seed with a label into an independent seed.
// Used for regeneration triggers and preview candidates.
func DeriveSeed(base int64, label string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(label))
	x := uint64(base) ^ (h.Sum64() + 0x9e3779b97f4a7c15)
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	x ^= x >> 31
	return int64(x >> 1)
}
