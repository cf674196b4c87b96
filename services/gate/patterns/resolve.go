// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package patterns

import (
	"github.com/bmatcuk/doublestar/v4"
)

// =============================================================================
// TIERS
// =============================================================================

// Tier names the configuration layer a pattern group was taken from.
type Tier int

const (
	// TierDefault is the language's built-in default.
	TierDefault Tier = iota

	// TierProject is the project-wide list.
	TierProject

	// TierCheck is the check-specific override.
	TierCheck
)

// String returns the tier name used in logs and errors.
func (t Tier) String() string {
	switch t {
	case TierDefault:
		return "default"
	case TierProject:
		return "project"
	case TierCheck:
		return "check"
	default:
		return "unknown"
	}
}

// =============================================================================
// LAYERS AND PATTERN SET
// =============================================================================

// Groups holds one layer's source, test and exclude lists.
type Groups struct {
	Source  []string
	Test    []string
	Exclude []string
}

// Layers are the two configurable layers above the language defaults.
type Layers struct {
	// Check is the check-specific override layer.
	Check Groups

	// Project is the project-wide layer.
	Project Groups
}

// PatternSet is the effective, validated set of glob groups.
//
// Thread Safety: Treat as immutable after Resolve returns.
type PatternSet struct {
	Source  []string `json:"source"`
	Test    []string `json:"test"`
	Exclude []string `json:"exclude"`

	// Tiers records where each group came from.
	Tiers struct {
		Source  Tier `json:"source"`
		Test    Tier `json:"test"`
		Exclude Tier `json:"exclude"`
	} `json:"-"`
}

// =============================================================================
// RESOLVE
// =============================================================================

// Resolve computes the effective PatternSet for a language.
//
// Description:
//
//	For each of source, test and exclude independently, picks the
//	check-level list when non-empty, else the project list when
//	non-empty, else the language default. The chosen list replaces the
//	others entirely. Every selected pattern is validated.
//
// Inputs:
//
//	layers - The configured check and project layers
//	lang - The project language, selects the default tier
//
// Outputs:
//
//	PatternSet - The resolved groups with their origin tiers
//	error - A *PatternError (wrapping ErrInvalidPattern) for the first bad glob
func Resolve(layers Layers, lang Language) (PatternSet, error) {
	defaults := Defaults(lang)

	var ps PatternSet
	ps.Source, ps.Tiers.Source = pick(layers.Check.Source, layers.Project.Source, defaults.Source)
	ps.Test, ps.Tiers.Test = pick(layers.Check.Test, layers.Project.Test, defaults.Test)
	ps.Exclude, ps.Tiers.Exclude = pick(layers.Check.Exclude, layers.Project.Exclude, defaults.Exclude)

	if err := validateGroup("source", ps.Tiers.Source, ps.Source); err != nil {
		return PatternSet{}, err
	}
	if err := validateGroup("test", ps.Tiers.Test, ps.Test); err != nil {
		return PatternSet{}, err
	}
	if err := validateGroup("exclude", ps.Tiers.Exclude, ps.Exclude); err != nil {
		return PatternSet{}, err
	}
	return ps, nil
}

// pick returns the first non-empty list and its tier.
func pick(check, project, def []string) ([]string, Tier) {
	if len(check) > 0 {
		return clone(check), TierCheck
	}
	if len(project) > 0 {
		return clone(project), TierProject
	}
	return clone(def), TierDefault
}

func validateGroup(group string, tier Tier, globs []string) error {
	for _, g := range globs {
		if g == "" || !doublestar.ValidatePattern(g) {
			return &PatternError{Group: group, Tier: tier, Pattern: g}
		}
	}
	return nil
}

func clone(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// =============================================================================
// LANGUAGE DEFAULTS
// =============================================================================

// genericDefaults apply to Rust and any language without its own set.
var genericDefaults = Groups{
	Source: []string{"src/**/*"},
	Test: []string{
		"tests/**/*",
		"test/**/*",
		"**/*_test.*",
		"**/*_tests.*",
		"**/*.spec.*",
	},
	Exclude: []string{
		"**/mod.rs",
		"**/lib.rs",
		"**/main.rs",
		"**/generated/**",
	},
}

var languageDefaults = map[Language]Groups{
	LanguageGo: {
		Source: []string{"**/*.go"},
		Test:   []string{"**/*_test.go"},
		Exclude: []string{
			"**/*.pb.go",
			"**/zz_generated*.go",
			"vendor/**",
			"**/generated/**",
			"**/main.go",
		},
	},
	LanguageJavaScript: {
		Source: []string{
			"src/**/*.{js,jsx,ts,tsx,mjs,mts}",
			"lib/**/*.{js,ts}",
		},
		Test: []string{
			"**/*.test.*",
			"**/*.spec.*",
			"**/__tests__/**",
			"tests/**/*",
			"test/**/*",
		},
		Exclude: []string{
			"**/*.d.ts",
			"node_modules/**",
			"dist/**",
			"**/generated/**",
		},
	},
	LanguagePython: {
		Source: []string{"**/*.py"},
		Test: []string{
			"tests/**/*.py",
			"test/**/*.py",
			"**/test_*.py",
			"**/*_test.py",
			"**/conftest.py",
		},
		Exclude: []string{
			"**/__init__.py",
			"setup.py",
			"**/generated/**",
		},
	},
}

// Defaults returns a copy of the built-in groups for a language.
func Defaults(lang Language) Groups {
	g, ok := languageDefaults[lang]
	if !ok {
		g = genericDefaults
	}
	return Groups{
		Source:  clone(g.Source),
		Test:    clone(g.Test),
		Exclude: clone(g.Exclude),
	}
}
