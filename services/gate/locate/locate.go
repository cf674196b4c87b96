// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package locate decides whether a changed source file has a matching
// changed test file.
//
// Two independent rules are applied, and either one is enough:
//
//  1. Candidate locations. CandidateLocations enumerates the places a
//     test for the source conventionally lives. A changed test whose path
//     ends with a candidate (on a path segment boundary) correlates.
//  2. Base-name fallback. A changed test whose file stem, with one known
//     test affix removed, equals the source's stem correlates.
//
// The fallback can only ever suppress a violation. Two unrelated files
// that share a stem will mask each other; that false negative is accepted.
package locate

import (
	"path"
	"strings"

	"github.com/AleutianAI/testgate/services/gate/changes"
)

// testSuffixes are stripped from a test stem, longest first so that
// "_tests" is not reduced to "s".
var testSuffixes = []string{"_tests", "_test", "_spec", ".test", ".spec"}

// testPrefixes are stripped from a test stem.
var testPrefixes = []string{"test_"}

// testRoots are the top-level test directories probed first.
var testRoots = []string{"tests", "test"}

// SplitName returns the stem and extension of a path's final element.
//
// A dotfile such as ".env" has no usable stem.
func SplitName(p string) (stem, ext string) {
	base := path.Base(changes.NormalizePath(p))
	if base == "." || base == "/" {
		return "", ""
	}
	ext = path.Ext(base)
	stem = strings.TrimSuffix(base, ext)
	return stem, ext
}

// TestBaseName strips one known test affix from a test file's stem.
//
// Examples:
//
//	tests/parser_tests.rs       -> parser
//	pkg/handler_test.go         -> handler
//	tests/test_models.py        -> models
//	src/__tests__/app.test.tsx  -> app
//	lib/util.rs                 -> util
func TestBaseName(p string) string {
	stem, _ := SplitName(p)
	return stripAffix(stem)
}

func stripAffix(stem string) string {
	for _, s := range testSuffixes {
		if trimmed, ok := strings.CutSuffix(stem, s); ok && trimmed != "" {
			return trimmed
		}
	}
	for _, pre := range testPrefixes {
		if trimmed, ok := strings.CutPrefix(stem, pre); ok && trimmed != "" {
			return trimmed
		}
	}
	return stem
}

// CandidateLocations lists conventional test paths for a source file.
//
// Description:
//
//	Order is priority order:
//	  (a) top-level tests/ and test/ with the bare stem, {stem}_test,
//	      {stem}_tests and test_{stem}
//	  (b) siblings in the source's directory: {stem}_test, {stem}_tests,
//	      test_{stem}, {stem}.test, {stem}.spec and __tests__/{stem}.test
//	  (c) the source's directory mirrored under tests/ with the first
//	      path segment (src/, lib/, ...) removed
//	Every candidate carries the source's extension. Duplicates are removed
//	keeping the first occurrence.
//
// Inputs:
//
//	source - Repository-relative source path
//
// Outputs:
//
//	[]string - Candidate paths. Empty when the source has no usable stem.
func CandidateLocations(source string) []string {
	source = changes.NormalizePath(source)
	stem, ext := SplitName(source)
	if stem == "" {
		return nil
	}

	var out []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}

	names := []string{
		stem + ext,
		stem + "_test" + ext,
		stem + "_tests" + ext,
		"test_" + stem + ext,
	}

	// (a) top-level test roots
	for _, root := range testRoots {
		for _, n := range names {
			add(root + "/" + n)
		}
	}

	// (b) siblings
	dir := path.Dir(source)
	join := func(elem ...string) string {
		if dir == "." {
			return path.Join(elem...)
		}
		return path.Join(append([]string{dir}, elem...)...)
	}
	add(join(stem + "_test" + ext))
	add(join(stem + "_tests" + ext))
	add(join("test_" + stem + ext))
	add(join(stem + ".test" + ext))
	add(join(stem + ".spec" + ext))
	add(join("__tests__", stem+".test"+ext))

	// (c) mirrored nested path
	if _, rest, ok := strings.Cut(dir, "/"); ok && rest != "" {
		for _, n := range names[:3] {
			add(path.Join("tests", rest, n))
		}
	}

	return out
}

// HasCorrelatedTest reports whether any of tests correlates with source.
//
// Description:
//
//	Convenience wrapper that builds a one-off TestIndex. Callers checking
//	many sources against the same tests should build the index once.
func HasCorrelatedTest(source string, tests []string) bool {
	return NewTestIndex(tests).Has(source)
}

// hasSegmentSuffix reports whether p equals suffix or ends with "/"+suffix.
func hasSegmentSuffix(p, suffix string) bool {
	if p == suffix {
		return true
	}
	return strings.HasSuffix(p, "/"+suffix)
}
