// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package inline detects test changes embedded in a source file.
//
// Some languages keep unit tests in the implementation file inside a
// marked region:
//
//	Rust  #[cfg(test)] mod tests { ... }
//	Zig   test "name" { ... }
//	D     unittest { ... }
//
// HasInlineTestChanges walks the unified diff of one file and reports
// whether any added or removed line sits inside such a region. A source
// change that touches only its own embedded tests therefore satisfies
// correlation without a separate test file.
//
// The walk tracks brace depth line by line. It does not parse the
// language, so braces inside string literals can shift the depth.
package inline

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/sourcegraph/go-diff/diff"

	"github.com/AleutianAI/testgate/services/gate/changes"
	"github.com/AleutianAI/testgate/services/gate/patterns"
)

// =============================================================================
// DIFF RANGES
// =============================================================================

// RangeKind selects what a DiffRange compares.
type RangeKind int

const (
	// RangeStaged is the index against HEAD.
	RangeStaged RangeKind = iota

	// RangeBranch is base..HEAD.
	RangeBranch

	// RangeCommit is a single commit against its parent.
	RangeCommit
)

// DiffRange identifies the diff a file's text is taken from.
type DiffRange struct {
	Kind RangeKind

	// Ref is the base ref for RangeBranch or the commit id for RangeCommit.
	Ref string
}

// Staged returns the staged-changes range.
func Staged() DiffRange { return DiffRange{Kind: RangeStaged} }

// Branch returns the base..HEAD range.
func Branch(base string) DiffRange { return DiffRange{Kind: RangeBranch, Ref: base} }

// Commit returns the single-commit range.
func Commit(id string) DiffRange { return DiffRange{Kind: RangeCommit, Ref: id} }

// String renders the range the way git would spell it.
func (r DiffRange) String() string {
	switch r.Kind {
	case RangeStaged:
		return "--cached"
	case RangeBranch:
		return r.Ref + "..HEAD"
	case RangeCommit:
		return r.Ref + "^.." + r.Ref
	default:
		return fmt.Sprintf("range(%d)", int(r.Kind))
	}
}

// DiffSource supplies the unified diff text of one file.
type DiffSource interface {
	// FileDiff returns the diff of path within rng. An empty string means
	// the file is unchanged in that range.
	FileDiff(ctx context.Context, rng DiffRange, path string) (string, error)
}

// =============================================================================
// REGION MARKERS
// =============================================================================

// regionMarker describes how one language opens an embedded-test region.
type regionMarker struct {
	// opens matches the trimmed line that starts a region.
	opens *regexp.Regexp

	// inclusive is true when the marker line itself carries the opening
	// brace and belongs to the region.
	inclusive bool

	// section matches a hunk header section (the enclosing-scope hint git
	// prints after @@) that places the hunk inside a region.
	section *regexp.Regexp
}

var markers = map[patterns.Language]regionMarker{
	patterns.LanguageRust: {
		opens:   regexp.MustCompile(`#\[cfg\(test\)\]`),
		section: regexp.MustCompile(`^\s*(pub\s+)?mod\s+tests?\s*\{`),
	},
	patterns.LanguageZig: {
		opens:     regexp.MustCompile(`^test(\s+"[^"]*"|\s+[A-Za-z_]\w*)?\s*\{`),
		inclusive: true,
		section:   regexp.MustCompile(`^\s*test\b`),
	},
	patterns.LanguageD: {
		opens:     regexp.MustCompile(`^unittest\b`),
		inclusive: true,
		section:   regexp.MustCompile(`^\s*unittest\b`),
	},
}

// SupportsInlineTests reports whether the language of path has an
// embedded-test region marker.
func SupportsInlineTests(path string) bool {
	_, ok := markers[patterns.DetectLanguage(path)]
	return ok
}

// =============================================================================
// DETECTION
// =============================================================================

// HasInlineTestChanges reports whether diffText changes a line inside the
// embedded-test region of source.
//
// Description:
//
//	The diff is parsed with go-diff. When it covers several files, the
//	one whose new or old name equals source is used; a single-file diff is
//	used as is. Region state starts fresh in every hunk: a hunk is inside
//	a region only when its header section names the region, or when the
//	hunk body opens one.
//
// Inputs:
//
//	source - Repository-relative path, selects the marker by extension
//	diffText - Unified diff text as produced by git diff
//
// Outputs:
//
//	bool - True if an added or removed line lies inside a region.
//	       False for languages without a marker and for unparseable text.
func HasInlineTestChanges(source, diffText string) bool {
	m, ok := markers[patterns.DetectLanguage(source)]
	if !ok || strings.TrimSpace(diffText) == "" {
		return false
	}

	files, err := diff.NewMultiFileDiffReader(strings.NewReader(diffText)).ReadAllFiles()
	if err != nil {
		return false
	}
	fd := pickFile(files, source)
	if fd == nil {
		return false
	}

	w := walker{marker: m}
	for _, hunk := range fd.Hunks {
		w.reset(hunk.Section)
		for _, line := range strings.Split(string(hunk.Body), "\n") {
			if w.step(line) {
				return true
			}
		}
	}
	return false
}

// Detect fetches the diff of source from src and runs HasInlineTestChanges.
//
// A collaborator error is logged and treated as "no inline change".
func Detect(ctx context.Context, src DiffSource, rng DiffRange, source string) bool {
	if src == nil || !SupportsInlineTests(source) {
		return false
	}
	text, err := src.FileDiff(ctx, rng, source)
	if err != nil {
		slog.Debug("inline diff unavailable",
			slog.String("file", source),
			slog.String("range", rng.String()),
			slog.String("error", err.Error()))
		return false
	}
	return HasInlineTestChanges(source, text)
}

func pickFile(files []*diff.FileDiff, source string) *diff.FileDiff {
	want := changes.NormalizePath(source)
	for _, fd := range files {
		if stripPrefix(fd.NewName) == want || stripPrefix(fd.OrigName) == want {
			return fd
		}
	}
	if len(files) == 1 {
		return files[0]
	}
	return nil
}

// stripPrefix removes git's a/ or b/ prefix.
func stripPrefix(name string) string {
	if rest, ok := strings.CutPrefix(name, "a/"); ok {
		return changes.NormalizePath(rest)
	}
	if rest, ok := strings.CutPrefix(name, "b/"); ok {
		return changes.NormalizePath(rest)
	}
	return changes.NormalizePath(name)
}

// walker tracks region state across the lines of one hunk.
type walker struct {
	marker regionMarker
	in     bool
	depth  int

	// pending is set after a non-inclusive marker until the item it
	// annotates either opens a brace or ends with a semicolon.
	pending bool
}

// reset starts a new hunk. The section hint places the hunk one level
// inside a region.
func (w *walker) reset(section string) {
	w.in, w.depth, w.pending = false, 0, false
	if w.marker.section != nil && w.marker.section.MatchString(section) {
		w.in = true
		w.depth = 1
	}
}

// step consumes one hunk body line and reports whether it is a change
// inside a region.
func (w *walker) step(line string) bool {
	if line == "" {
		return false
	}
	op := line[0]
	if op != '+' && op != '-' && op != ' ' {
		// "\ No newline at end of file" and similar annotations.
		return false
	}
	changed := op == '+' || op == '-'
	content := strings.TrimSpace(line[1:])

	opened := false
	if !w.in && !w.pending {
		if loc := w.marker.opens.FindStringIndex(content); loc != nil {
			if w.marker.inclusive {
				w.in, w.depth, opened = true, 0, true
			} else {
				// The marker line itself is not test code.
				w.pending = true
				content = strings.TrimSpace(content[loc[1]:])
				changed = false
			}
		}
	}

	if w.pending {
		if content == "" || strings.HasPrefix(content, "#[") || strings.HasPrefix(content, "//") {
			return false
		}
		brace := strings.IndexByte(content, '{')
		semi := strings.IndexByte(content, ';')
		switch {
		case brace >= 0 && (semi < 0 || brace < semi):
			w.pending = false
			w.in, w.depth, opened = true, 0, true
		case semi >= 0:
			// A braceless item such as "mod tests;" or "use x;".
			w.pending = false
			return changed
		default:
			return changed
		}
	}
	if !w.in {
		return false
	}

	for _, ch := range content {
		switch ch {
		case '{':
			w.depth++
		case '}':
			w.depth--
		}
		if w.depth <= 0 && ch == '}' {
			w.in = false
			w.depth = 0
			break
		}
	}

	return changed && (w.depth > 0 || opened)
}
