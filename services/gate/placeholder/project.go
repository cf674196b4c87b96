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
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/AleutianAI/testgate/services/gate/patterns"
)

// =============================================================================
// PROJECT SCAN
// =============================================================================

// ProjectTestFiles lists every file in fsys that classifies as a test.
//
// Description:
//
//	Each test glob of m is expanded against fsys. Matches inside .git
//	and excluded matches are dropped. The result is sorted and free of
//	duplicates.
//
// Inputs:
//
//	ctx - Context for cancellation between globs
//	fsys - The work tree, rooted at the repository root
//	m - Compiled patterns
//
// Outputs:
//
//	[]string - Repository-relative test paths
//	error - ctx.Err() when cancelled, or a glob failure
func ProjectTestFiles(ctx context.Context, fsys fs.FS, m *patterns.Matcher) ([]string, error) {
	if fsys == nil || m == nil {
		return nil, nil
	}

	seen := make(map[string]struct{})
	for _, pattern := range m.TestPatterns() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("expanding test pattern %q: %w", pattern, err)
		}
		for _, p := range matches {
			if p == ".git" || strings.HasPrefix(p, ".git/") || m.IsExcluded(p) || !m.IsTest(p) {
				continue
			}
			seen[p] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

// ScanProject counts placeholder tests across every test file in fsys,
// changed or not.
func ScanProject(ctx context.Context, fsys fs.FS, m *patterns.Matcher) (Summary, error) {
	paths, err := ProjectTestFiles(ctx, fsys, m)
	if err != nil {
		return Summary{Counts: NewCounts(), Reports: make(map[string]FileReport)}, err
	}
	if fsys == nil {
		return Scan(ctx, nil, nil)
	}
	return Scan(ctx, FSReader{FS: fsys}, paths)
}
