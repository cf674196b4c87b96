// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package placeholder

import (
	"context"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/AleutianAI/testgate/services/gate/locate"
	"github.com/AleutianAI/testgate/services/gate/patterns"
)

// ContentReader reads a repository file by its repository-relative path.
type ContentReader interface {
	ReadFile(name string) ([]byte, error)
}

// FSReader adapts an fs.FS (os.DirFS, fstest.MapFS) to ContentReader.
type FSReader struct {
	FS fs.FS
}

// ReadFile implements ContentReader.
func (r FSReader) ReadFile(name string) ([]byte, error) {
	return fs.ReadFile(r.FS, name)
}

// =============================================================================
// COUNTS
// =============================================================================

// knownKinds seeds Counts so every supported language reports a stable
// set of keys, zeros included.
var knownKinds = map[patterns.Language][]Kind{
	patterns.LanguageRust:       {KindIgnore, KindTodo},
	patterns.LanguageJavaScript: {KindTodo, KindFixme, KindSkip},
	patterns.LanguageGo:         {KindSkip, KindEmpty},
	patterns.LanguagePython:     {KindSkip, KindTodo, KindEmpty},
}

// Counts holds placeholder totals nested by language then kind.
type Counts map[patterns.Language]map[Kind]int

// NewCounts returns Counts with every known language and kind at zero.
func NewCounts() Counts {
	c := make(Counts, len(knownKinds))
	for lang, kinds := range knownKinds {
		c[lang] = make(map[Kind]int, len(kinds))
		for _, k := range kinds {
			c[lang][k] = 0
		}
	}
	return c
}

// Add accumulates one file's placeholders.
func (c Counts) Add(r FileReport) {
	for _, p := range r.Placeholders {
		if c[r.Language] == nil {
			c[r.Language] = make(map[Kind]int)
		}
		c[r.Language][p.Kind]++
	}
}

// Total returns the sum across all languages and kinds.
func (c Counts) Total() int {
	n := 0
	for _, kinds := range c {
		for _, v := range kinds {
			n += v
		}
	}
	return n
}

// =============================================================================
// SCAN
// =============================================================================

// Summary is the result of scanning a set of test files.
type Summary struct {
	Counts Counts

	// Reports holds the analysis of every file that could be read and
	// parsed, keyed by path.
	Reports map[string]FileReport
}

// PlaceholderOnly reports whether p was scanned and contains only
// placeholder tests.
func (s Summary) PlaceholderOnly(p string) bool {
	r, ok := s.Reports[p]
	return ok && r.PlaceholderOnly()
}

// Scan reads and analyzes each path.
//
// Description:
//
//	Files that cannot be read (deleted in the working tree, permissions)
//	or parsed are logged at DEBUG and left out of the summary. Files with
//	no supported grammar are skipped without reading.
//
// Inputs:
//
//	ctx - Context for cancellation
//	reader - Source of file content
//	paths - Repository-relative test paths
//
// Outputs:
//
//	Summary - Counts and per-file reports. Never nil maps.
//	error - ctx.Err() when cancelled
func Scan(ctx context.Context, reader ContentReader, paths []string) (Summary, error) {
	s := Summary{Counts: NewCounts(), Reports: make(map[string]FileReport)}
	if reader == nil {
		return s, nil
	}

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return s, err
		}
		if !Supported(p) {
			continue
		}
		content, err := reader.ReadFile(p)
		if err != nil {
			slog.Debug("placeholder scan: unreadable file",
				slog.String("file", p),
				slog.String("error", err.Error()))
			continue
		}
		report, err := Analyze(ctx, p, content)
		if err != nil {
			slog.Debug("placeholder scan: parse failed",
				slog.String("file", p),
				slog.String("error", err.Error()))
			continue
		}
		s.Reports[p] = report
		s.Counts.Add(report)
	}
	return s, nil
}

// HasPlaceholderFor reports whether a placeholder test for source exists
// at one of its candidate locations.
//
// Description:
//
//	Reads each candidate test path from reader. A candidate counts when
//	it contains a placeholder whose name contains the source's stem,
//	compared case-insensitively. Only the first readable matching
//	candidate matters.
func HasPlaceholderFor(ctx context.Context, reader ContentReader, source string) bool {
	if reader == nil {
		return false
	}
	stem, _ := locate.SplitName(source)
	if stem == "" {
		return false
	}
	want := strings.ToLower(stem)

	for _, candidate := range locate.CandidateLocations(source) {
		if ctx.Err() != nil {
			return false
		}
		if !Supported(candidate) {
			continue
		}
		content, err := reader.ReadFile(candidate)
		if err != nil {
			continue
		}
		report, err := Analyze(ctx, candidate, content)
		if err != nil {
			continue
		}
		for _, p := range report.Placeholders {
			if strings.Contains(strings.ToLower(p.Name), want) {
				return true
			}
		}
	}
	return false
}
