// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullConfig = `
project:
  language: rust
  source: ["src/**/*.rs"]
  tests: ["tests/**"]
  exclude: ["target/**"]
check:
  tests:
    commit:
      check: warn
      scope: commit
      placeholders: forbid
      source_patterns: ["crates/*/src/**"]
      test_patterns: ["crates/*/tests/**"]
      exclude: ["**/generated/**"]
      limit: 25
`

func TestParse_Full(t *testing.T) {
	cfg, err := Parse([]byte(fullConfig))
	require.NoError(t, err)

	assert.Equal(t, "rust", cfg.Project.Language)
	cc := cfg.Check.Tests.Commit
	assert.Equal(t, "warn", cc.Check)
	assert.Equal(t, "commit", cc.Scope)
	assert.Equal(t, "forbid", cc.Placeholders)
	assert.Equal(t, 25, cc.Limit)

	layers := cfg.Layers()
	assert.Equal(t, []string{"crates/*/src/**"}, layers.Check.Source)
	assert.Equal(t, []string{"crates/*/tests/**"}, layers.Check.Test)
	assert.Equal(t, []string{"**/generated/**"}, layers.Check.Exclude)
	assert.Equal(t, []string{"src/**/*.rs"}, layers.Project.Source)
	assert.Equal(t, []string{"tests/**"}, layers.Project.Test)
	assert.Equal(t, []string{"target/**"}, layers.Project.Exclude)
}

func TestParse_PartialKeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte("check:\n  tests:\n    commit:\n      scope: commit\n"))
	require.NoError(t, err)

	cc := cfg.Check.Tests.Commit
	assert.Equal(t, "commit", cc.Scope)
	assert.Equal(t, "error", cc.Check)
	assert.Equal(t, "allow", cc.Placeholders)
}

func TestParse_Empty(t *testing.T) {
	for _, in := range []string{"", "# only a comment\n"} {
		cfg, err := Parse([]byte(in))
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantMsg string
	}{
		{
			name:    "bad check level",
			yaml:    "check:\n  tests:\n    commit:\n      check: strict\n",
			wantMsg: `check.tests.commit.check: "strict" is not one of [off warn error]`,
		},
		{
			name:    "bad scope",
			yaml:    "check:\n  tests:\n    commit:\n      scope: range\n",
			wantMsg: "check.tests.commit.scope",
		},
		{
			name:    "bad policy",
			yaml:    "check:\n  tests:\n    commit:\n      placeholders: maybe\n",
			wantMsg: "check.tests.commit.placeholders",
		},
		{
			name:    "negative limit",
			yaml:    "check:\n  tests:\n    commit:\n      limit: -1\n",
			wantMsg: "check.tests.commit.limit: must be >= 0",
		},
		{
			name:    "unknown language",
			yaml:    "project:\n  language: cobol\n",
			wantMsg: `project.language: unknown language "cobol"`,
		},
		{
			name:    "empty pattern",
			yaml:    "project:\n  source: [\"\"]\n",
			wantMsg: "project.source[0]: must not be empty",
		},
		{
			name:    "unknown key",
			yaml:    "project:\n  langauge: go\n",
			wantMsg: "langauge",
		},
		{
			name:    "malformed",
			yaml:    "project: [\n",
			wantMsg: "invalid configuration",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLoad(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		cfg, path, err := Load(t.TempDir(), "")
		require.NoError(t, err)
		assert.Empty(t, path)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("probes yml", func(t *testing.T) {
		dir := t.TempDir()
		file := filepath.Join(dir, ".testgate.yml")
		require.NoError(t, os.WriteFile(file, []byte("project:\n  language: go\n"), 0o644))

		cfg, path, err := Load(dir, "")
		require.NoError(t, err)
		assert.Equal(t, file, path)
		assert.Equal(t, "go", cfg.Project.Language)
	})

	t.Run("yaml wins over yml", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".testgate.yml"), []byte("project:\n  language: go\n"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".testgate.yaml"), []byte("project:\n  language: python\n"), 0o644))

		cfg, _, err := Load(dir, "")
		require.NoError(t, err)
		assert.Equal(t, "python", cfg.Project.Language)
	})

	t.Run("explicit missing path fails", func(t *testing.T) {
		_, _, err := Load(t.TempDir(), filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("invalid file names the path", func(t *testing.T) {
		dir := t.TempDir()
		file := filepath.Join(dir, ".testgate.yaml")
		require.NoError(t, os.WriteFile(file, []byte("check:\n  tests:\n    commit:\n      check: loud\n"), 0o644))

		_, _, err := Load(dir, "")
		assert.ErrorIs(t, err, ErrInvalidConfig)
		assert.Contains(t, err.Error(), file)
	})
}
