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
	"encoding/json"
	"testing"

	"github.com/AleutianAI/pathforge/services/pathgen/errtrack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReporter struct {
	kinds []errtrack.Kind
}

func (r *recordingReporter) Track(kind errtrack.Kind, severity errtrack.Severity, context, message string) errtrack.Record {
	r.kinds = append(r.kinds, kind)
	return errtrack.Record{Kind: kind, Severity: severity, Context: context, Message: message}
}

func TestSampler_SameSeedSameStream(t *testing.T) {
	a := New(SeedOf(12345), nil, nil)
	b := New(SeedOf(12345), nil, nil)

	for i := 0; i < 100; i++ {
		require.Equal(t, a.Float64(), b.Float64())
	}
	assert.True(t, a.Deterministic())
}

func TestSampler_ZeroSeedIsDeterministic(t *testing.T) {
	a := New(SeedOf(0), nil, nil)
	b := New(SeedOf(0), nil, nil)

	assert.Equal(t, a.Seed(), b.Seed())
	assert.NotZero(t, a.Seed())
	assert.Equal(t, a.Signed(), b.Signed())
}

func TestSampler_InvalidSeedFallsBack(t *testing.T) {
	rep := &recordingReporter{}

	s := New(InvalidSeed("abc"), nil, rep)

	assert.False(t, s.Deterministic())
	require.Len(t, rep.kinds, 1)
	assert.Equal(t, errtrack.KindConfiguration, rep.kinds[0])
}

func TestSampler_AbsentSeedIsSilent(t *testing.T) {
	rep := &recordingReporter{}

	s := New(Seed{}, nil, rep)

	assert.False(t, s.Deterministic())
	assert.Empty(t, rep.kinds)
}

func TestSampler_Range(t *testing.T) {
	s := New(SeedOf(7), nil, nil)
	for i := 0; i < 1000; i++ {
		v := s.Range(40, 80)
		require.GreaterOrEqual(t, v, 40.0)
		require.Less(t, v, 80.0)
	}
	assert.Equal(t, 5.0, s.Range(5, 5))
}

func TestSampler_MemoDoesNotPerturbStream(t *testing.T) {
	shared := NewCache(10)
	warm := New(SeedOf(99), shared, nil)
	for i := 0; i < 50; i++ {
		warm.Memo("jitter", i)
	}

	cold := New(SeedOf(99), NewCache(10), nil)
	hot := New(SeedOf(99), shared, nil)

	for i := 0; i < 20; i++ {
		require.Equal(t, cold.Memo("jitter", i), hot.Memo("jitter", i))
		require.Equal(t, cold.Float64(), hot.Float64())
	}
}

func TestSampler_MemoPeriod(t *testing.T) {
	s := New(SeedOf(3), nil, nil)

	assert.Equal(t, s.Memo("turn", 7), s.Memo("turn", 107))
	assert.NotEqual(t, s.Memo("turn", 7), s.Memo("step", 7))

	v := s.Memo("turn", 8)
	assert.GreaterOrEqual(t, v, -1.0)
	assert.Less(t, v, 1.0)
}

func TestCache_EvictsOldestFirst(t *testing.T) {
	c := NewCache(3)
	s := New(SeedOf(1), c, nil)

	for i := 0; i < 5; i++ {
		s.Memo("k", i)
	}
	stats := c.Stats()
	assert.Equal(t, 3, stats.Len)
	assert.Equal(t, int64(2), stats.Evictions)
	assert.Equal(t, int64(5), stats.Misses)

	// 0 and 1 were evicted, 4 is still cached.
	s.Memo("k", 4)
	s.Memo("k", 0)
	stats = c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(6), stats.Misses)

	c.Reset()
	assert.Equal(t, CacheStats{Cap: 3}, c.Stats())
}

func TestSeed_JSON(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		wantSet   bool
		wantValid bool
		wantValue int64
	}{
		{name: "integer", in: `12345`, wantSet: true, wantValid: true, wantValue: 12345},
		{name: "integer string", in: `"42"`, wantSet: true, wantValid: true, wantValue: 42},
		{name: "null", in: `null`},
		{name: "text", in: `"banana"`, wantSet: true},
		{name: "float", in: `1.5`, wantSet: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Seed
			require.NoError(t, json.Unmarshal([]byte(tt.in), &s))
			assert.Equal(t, tt.wantSet, s.IsSet())
			assert.Equal(t, tt.wantValid, s.IsValid())
			v, _ := s.Value()
			if tt.wantValid {
				assert.Equal(t, tt.wantValue, v)
			}
		})
	}

	out, err := json.Marshal(SeedOf(9))
	require.NoError(t, err)
	assert.Equal(t, "9", string(out))
	assert.Equal(t, SeedOf(11), SeedOf(9).Offset(2))
	assert.Equal(t, Seed{}, Seed{}.Offset(2))
}

func TestDeriveSeed(t *testing.T) {
	a := DeriveSeed(100, "boss:quake")
	assert.Equal(t, a, DeriveSeed(100, "boss:quake"))
	assert.NotEqual(t, a, DeriveSeed(100, "boss:flood"))
	assert.GreaterOrEqual(t, a, int64(0))
}
