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

	"github.com/AleutianAI/testgate/services/gate/changes"
)

// Matcher tests repository-relative paths against a PatternSet.
//
// Paths are normalized to forward slashes before matching.
//
// Thread Safety: Matcher is safe for concurrent use after creation.
type Matcher struct {
	source  []string
	test    []string
	exclude []string
}

// Compile builds a Matcher from the set.
//
// Description:
//
//	Re-validates every glob so a PatternSet built by hand (rather than
//	through Resolve) cannot smuggle in an unparseable pattern.
//
// Outputs:
//
//	*Matcher - The compiled matcher
//	error - A *PatternError for the first invalid glob
func (ps PatternSet) Compile() (*Matcher, error) {
	if err := validateGroup("source", ps.Tiers.Source, ps.Source); err != nil {
		return nil, err
	}
	if err := validateGroup("test", ps.Tiers.Test, ps.Test); err != nil {
		return nil, err
	}
	if err := validateGroup("exclude", ps.Tiers.Exclude, ps.Exclude); err != nil {
		return nil, err
	}
	return &Matcher{
		source:  clone(ps.Source),
		test:    clone(ps.Test),
		exclude: clone(ps.Exclude),
	}, nil
}

// MustCompile is like Compile but panics on error. For tests and
// built-in defaults only.
func (ps PatternSet) MustCompile() *Matcher {
	m, err := ps.Compile()
	if err != nil {
		panic(err)
	}
	return m
}

// IsExcluded reports whether p matches any exclude pattern.
func (m *Matcher) IsExcluded(p string) bool {
	return matchAny(m.exclude, changes.NormalizePath(p))
}

// IsTest reports whether p matches any test pattern.
func (m *Matcher) IsTest(p string) bool {
	return matchAny(m.test, changes.NormalizePath(p))
}

// IsSource reports whether p matches any source pattern.
func (m *Matcher) IsSource(p string) bool {
	return matchAny(m.source, changes.NormalizePath(p))
}

// TestPatterns returns a copy of the compiled test globs.
func (m *Matcher) TestPatterns() []string {
	return clone(m.test)
}

// matchAny matches already validated patterns, so the unvalidated
// matcher is safe and skips a second parse.
func matchAny(globs []string, p string) bool {
	if p == "" {
		return false
	}
	for _, g := range globs {
		if doublestar.MatchUnvalidated(g, p) {
			return true
		}
	}
	return false
}
