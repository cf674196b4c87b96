// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package changes defines the change model consumed by the test gate.
//
// # Description
//
// A FileChange describes one file touched between two trees. A
// CommitChanges groups the changes made by a single commit. Both are
// produced by a Source (normally the git package) and consumed once by
// the correlation engine. Nothing here is mutated after construction.
//
// # Thread Safety
//
// All types are immutable values and safe to share between goroutines.
package changes

import (
	"context"
	"fmt"
	"path"
	"strings"
)

// ChangeType is the kind of change applied to a file.
type ChangeType int

const (
	// Added means the file did not exist in the base tree.
	Added ChangeType = iota

	// Modified means the file existed and its content changed.
	// Renames, copies and type changes are reported as Modified.
	Modified

	// Deleted means the file no longer exists in the new tree.
	Deleted
)

// String returns the lowercase wire name of the change type.
func (c ChangeType) String() string {
	switch c {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c ChangeType) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *ChangeType) UnmarshalText(text []byte) error {
	switch string(text) {
	case "added":
		*c = Added
	case "modified":
		*c = Modified
	case "deleted":
		*c = Deleted
	default:
		return fmt.Errorf("unknown change type %q", text)
	}
	return nil
}

// FileChange is a single changed file.
//
// Path is repository-relative and always uses forward slashes.
type FileChange struct {
	Path         string     `json:"path"`
	ChangeType   ChangeType `json:"change_type"`
	LinesAdded   int        `json:"lines_added"`
	LinesDeleted int        `json:"lines_deleted"`
}

// LinesChanged returns added plus deleted lines.
func (f FileChange) LinesChanged() int {
	return f.LinesAdded + f.LinesDeleted
}

// IsDeleted reports whether the change removes the file.
func (f FileChange) IsDeleted() bool {
	return f.ChangeType == Deleted
}

// CommitChanges is the set of file changes introduced by one commit.
type CommitChanges struct {
	// ID is the full commit hash.
	ID string `json:"id"`

	// Message is the first line of the commit message.
	Message string `json:"message"`

	// Changes are the files touched by this commit, in VCS order.
	Changes []FileChange `json:"changes"`
}

// ShortID returns the first seven characters of the commit id.
func (c CommitChanges) ShortID() string {
	return ShortHash(c.ID)
}

// ShortHashLen is the display length of abbreviated commit hashes.
const ShortHashLen = 7

// ShortHash truncates a hash for display.
func ShortHash(hash string) string {
	if len(hash) >= ShortHashLen {
		return hash[:ShortHashLen]
	}
	return hash
}

// NormalizePath converts a path to the repository-relative slash form
// used throughout the gate. Leading "./" and "/" are stripped.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean(p)
	p = strings.TrimPrefix(p, "./")
	p = strings.TrimLeft(p, "/")
	if p == "." {
		return ""
	}
	return p
}

// Source is the version-control collaborator.
//
// # Description
//
// Implementations enumerate the changes to analyze. Failures (unknown
// ref, not a repository) are returned as errors; the check layer turns
// them into a skipped result rather than a violation.
type Source interface {
	// ListChanges returns the aggregate changes between baseRef and HEAD.
	ListChanges(ctx context.Context, baseRef string) ([]FileChange, error)

	// ListStagedChanges returns the changes staged in the index.
	ListStagedChanges(ctx context.Context) ([]FileChange, error)

	// ListCommits returns the commits in baseRef..HEAD, oldest first.
	ListCommits(ctx context.Context, baseRef string) ([]CommitChanges, error)
}
