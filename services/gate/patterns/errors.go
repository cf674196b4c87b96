// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package patterns resolves and compiles the source/test/exclude glob
// groups used to classify changed files.
//
// # Resolution
//
// Each group is resolved independently from three layers:
//
//	check-level override  →  project-wide list  →  language default
//
// The first non-empty layer wins and replaces the others. Layers never
// merge: configuring test patterns silences the built-in test defaults.
//
// # Matching
//
// Patterns are doublestar globs anchored at the project root:
//
//	src/**/*.rs       every Rust file under src/
//	**/*_test.go      Go test files at any depth
//	src/*.{js,ts}     brace alternatives
//
// Invalid patterns are rejected when resolving, so a bad configuration
// fails at startup instead of per file.
//
// # Thread Safety
//
// PatternSet is an immutable value. Matcher is safe for concurrent use.
package patterns

import (
	"errors"
	"fmt"
)

// Sentinel errors for pattern resolution.
var (
	// ErrInvalidPattern is returned when a configured glob cannot be parsed.
	ErrInvalidPattern = errors.New("invalid glob pattern")

	// ErrUnknownLanguage is returned for an unsupported language name.
	ErrUnknownLanguage = errors.New("unknown language")
)

// PatternError describes which pattern failed validation.
type PatternError struct {
	// Group is "source", "test" or "exclude".
	Group string

	// Tier is the layer the pattern came from.
	Tier Tier

	// Pattern is the offending glob.
	Pattern string
}

// Error implements the error interface.
func (e *PatternError) Error() string {
	return fmt.Sprintf("%s: %s pattern %q (from %s)", ErrInvalidPattern, e.Group, e.Pattern, e.Tier)
}

// Unwrap returns ErrInvalidPattern for errors.Is support.
func (e *PatternError) Unwrap() error {
	return ErrInvalidPattern
}
