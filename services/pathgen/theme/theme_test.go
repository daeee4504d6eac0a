// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package theme

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/AleutianAI/pathforge/services/pathgen/errtrack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestRegistry_BuiltinsAreValid(t *testing.T) {
	r := NewRegistry()
	for _, name := range r.Names() {
		cfg, ok := r.Lookup(name)
		require.True(t, ok)
		assert.NoError(t, cfg.Validate(), "builtin theme %s", name)
	}
	assert.Equal(t, DefaultName, r.Default().Name)
}

func TestRegistry_Resolve(t *testing.T) {
	r := NewRegistry()

	cfg, err := r.Resolve(Named("CYBER"))
	require.NoError(t, err)
	assert.Equal(t, "cyber", cfg.Name)

	cfg, err = r.Resolve(Spec{})
	require.NoError(t, err)
	assert.Equal(t, DefaultName, cfg.Name)
}

func TestRegistry_ResolveUnknownName(t *testing.T) {
	r := NewRegistry()

	_, err := r.Resolve(Named("underwater"))

	require.Error(t, err)
	assert.Equal(t, errtrack.KindConfiguration, errtrack.KindOf(err))
	assert.True(t, errors.Is(err, ErrUnknownTheme))
}

func TestRegistry_ResolveCustom(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid",
			cfg:  Config{StraightBias: 0.5, CurveComplexity: 0.5, SegmentLength: Range{Min: 30, Max: 60}},
		},
		{
			name:    "bias above one",
			cfg:     Config{StraightBias: 1.5, CurveComplexity: 0.5, SegmentLength: Range{Min: 30, Max: 60}},
			wantErr: true,
		},
		{
			name:    "negative complexity",
			cfg:     Config{StraightBias: 0.5, CurveComplexity: -0.1, SegmentLength: Range{Min: 30, Max: 60}},
			wantErr: true,
		},
		{
			name:    "inverted range",
			cfg:     Config{StraightBias: 0.5, CurveComplexity: 0.5, SegmentLength: Range{Min: 80, Max: 40}},
			wantErr: true,
		},
		{
			name:    "missing segment range",
			cfg:     Config{StraightBias: 0.5, CurveComplexity: 0.5},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := r.Resolve(Custom(tt.cfg))
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errtrack.KindConfiguration, errtrack.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "custom", cfg.Name)
		})
	}
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(Config{Name: "Arctic", StraightBias: 0.9, SegmentLength: Range{Min: 60, Max: 100}}))
	_, ok := r.Lookup("arctic")
	assert.True(t, ok)

	assert.Error(t, r.Register(Config{StraightBias: 0.5}))
	assert.Error(t, r.Register(Config{Name: "broken", StraightBias: 2}))
}

func TestSpec_JSON(t *testing.T) {
	var named Spec
	require.NoError(t, json.Unmarshal([]byte(`"forest"`), &named))
	assert.False(t, named.IsCustom())
	assert.Equal(t, "forest", named.Name())

	var custom Spec
	require.NoError(t, json.Unmarshal([]byte(`{"straight_bias":0.2,"curve_complexity":0.4,"segment_length":{"min":20,"max":40}}`), &custom))
	assert.True(t, custom.IsCustom())
	assert.Equal(t, "custom", custom.Name())

	var empty Spec
	require.NoError(t, json.Unmarshal([]byte(`null`), &empty))
	assert.True(t, empty.IsZero())

	out, err := json.Marshal(Named("maze"))
	require.NoError(t, err)
	assert.JSONEq(t, `"maze"`, string(out))
}

func TestSpec_YAML(t *testing.T) {
	var doc struct {
		A Spec `yaml:"a"`
		B Spec `yaml:"b"`
	}
	src := "a: desert\nb:\n  straight_bias: 0.3\n  curve_complexity: 0.6\n  segment_length: {min: 20, max: 50}\n"

	require.NoError(t, yaml.Unmarshal([]byte(src), &doc))

	assert.Equal(t, "desert", doc.A.Name())
	require.True(t, doc.B.IsCustom())
	cfg, err := NewRegistry().Resolve(doc.B)
	require.NoError(t, err)
	assert.InDelta(t, 0.3, cfg.StraightBias, 1e-9)
}
