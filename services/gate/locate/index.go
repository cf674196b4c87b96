// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package locate

import (
	"slices"
	"strings"

	"github.com/AleutianAI/testgate/services/gate/changes"
)

// TestIndex answers correlation queries for one set of changed tests.
//
// Every segment-boundary suffix of every test path is indexed, so a
// candidate location lookup is a map probe instead of a scan. Stripped
// base names are indexed the same way.
//
// Thread Safety: Safe for concurrent reads after NewTestIndex returns.
type TestIndex struct {
	paths    []string
	bySuffix map[string][]string
	byBase   map[string][]string
}

// NewTestIndex indexes the given test paths.
//
// Inputs:
//
//	tests - Repository-relative test paths. Duplicates are collapsed.
//
// Outputs:
//
//	*TestIndex - Never nil
func NewTestIndex(tests []string) *TestIndex {
	idx := &TestIndex{
		bySuffix: make(map[string][]string),
		byBase:   make(map[string][]string),
	}
	seen := make(map[string]struct{}, len(tests))

	for _, raw := range tests {
		p := changes.NormalizePath(raw)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		idx.paths = append(idx.paths, p)

		suffix := p
		for {
			idx.bySuffix[suffix] = append(idx.bySuffix[suffix], p)
			_, rest, ok := strings.Cut(suffix, "/")
			if !ok {
				break
			}
			suffix = rest
		}

		if base := TestBaseName(p); base != "" {
			idx.byBase[base] = append(idx.byBase[base], p)
		}
	}
	return idx
}

// Len returns the number of distinct indexed tests.
func (idx *TestIndex) Len() int {
	return len(idx.paths)
}

// Paths returns the indexed test paths in insertion order.
func (idx *TestIndex) Paths() []string {
	return slices.Clone(idx.paths)
}

// Has reports whether any indexed test correlates with source.
func (idx *TestIndex) Has(source string) bool {
	stem, _ := SplitName(source)
	if stem == "" {
		return false
	}
	if len(idx.byBase[stem]) > 0 {
		return true
	}
	for _, c := range CandidateLocations(source) {
		if len(idx.bySuffix[c]) > 0 {
			return true
		}
	}
	return false
}

// Correlated returns every indexed test that correlates with source, in
// index order.
func (idx *TestIndex) Correlated(source string) []string {
	stem, _ := SplitName(source)
	if stem == "" {
		return nil
	}

	hit := make(map[string]struct{})
	for _, p := range idx.byBase[stem] {
		hit[p] = struct{}{}
	}
	for _, c := range CandidateLocations(source) {
		for _, p := range idx.bySuffix[c] {
			hit[p] = struct{}{}
		}
	}
	if len(hit) == 0 {
		return nil
	}

	out := make([]string, 0, len(hit))
	for _, p := range idx.paths {
		if _, ok := hit[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Matches reports whether test correlates with source under either rule.
func Matches(source, test string) bool {
	test = changes.NormalizePath(test)
	stem, _ := SplitName(source)
	if stem == "" || test == "" {
		return false
	}
	if TestBaseName(test) == stem {
		return true
	}
	for _, c := range CandidateLocations(source) {
		if hasSegmentSuffix(test, c) {
			return true
		}
	}
	return false
}
