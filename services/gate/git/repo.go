// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package git implements the version-control collaborators of the gate
// on top of the git command line.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/testgate/services/gate/changes"
	"github.com/AleutianAI/testgate/services/gate/inline"
)

// EmptyTree is the id of git's empty tree, used as the parent of root
// commits.
const EmptyTree = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"

// Repo runs git commands in one work tree.
//
// # Description
//
// Repo implements changes.Source and inline.DiffSource. Every command
// runs with core.quotepath disabled so non-ASCII paths come back verbatim.
//
// # Thread Safety
//
// Repo is safe for concurrent use.
type Repo struct {
	root string
}

// Open returns the repository containing dir.
//
// # Inputs
//
//   - ctx: Context for cancellation.
//   - dir: Any directory inside the work tree.
//
// # Outputs
//
//   - *Repo: Rooted at the work tree's top level.
//   - error: ErrNotRepository or ErrGitUnavailable.
func Open(ctx context.Context, dir string) (*Repo, error) {
	r := &Repo{root: dir}
	out, err := r.run(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return nil, err
	}
	r.root = strings.TrimSpace(out)
	return r, nil
}

// Root returns the top level of the work tree.
func (r *Repo) Root() string {
	return r.root
}

// run executes git in the repository root and returns stdout.
func (r *Repo) run(ctx context.Context, args ...string) (string, error) {
	full := append([]string{"-c", "core.quotepath=off"}, args...)
	cmd := exec.CommandContext(ctx, "git", full...)
	cmd.Dir = r.root

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return "", fmt.Errorf("%w: %v", ErrGitUnavailable, err)
		}
		return "", classify(args, err, stderr.String())
	}
	return stdout.String(), nil
}

// VerifyRef checks that ref names a commit.
func (r *Repo) VerifyRef(ctx context.Context, ref string) error {
	if ref == "" || strings.HasPrefix(ref, "-") {
		return fmt.Errorf("%w: %q", ErrUnknownRef, ref)
	}
	if _, err := r.run(ctx, "rev-parse", "--verify", "--quiet", ref+"^{commit}"); err != nil {
		if errors.Is(err, ErrNotRepository) || errors.Is(err, ErrGitUnavailable) || ctx.Err() != nil {
			return err
		}
		return fmt.Errorf("%w: %q", ErrUnknownRef, ref)
	}
	return nil
}

// DetectBase returns "main" or "master", whichever exists first, or an
// empty string when neither does.
func (r *Repo) DetectBase(ctx context.Context) string {
	for _, candidate := range []string{"main", "master"} {
		if r.VerifyRef(ctx, candidate) == nil {
			return candidate
		}
	}
	return ""
}

// =============================================================================
// changes.Source
// =============================================================================

// ListChanges returns the changes between baseRef and HEAD.
func (r *Repo) ListChanges(ctx context.Context, baseRef string) ([]changes.FileChange, error) {
	if err := r.VerifyRef(ctx, baseRef); err != nil {
		return nil, err
	}
	return r.diff(ctx, baseRef+"..HEAD")
}

// ListStagedChanges returns the changes staged in the index.
func (r *Repo) ListStagedChanges(ctx context.Context) ([]changes.FileChange, error) {
	return r.diff(ctx, "--cached")
}

// ListCommits returns the commits in baseRef..HEAD, oldest first, each
// with its own changes against its first parent.
func (r *Repo) ListCommits(ctx context.Context, baseRef string) ([]changes.CommitChanges, error) {
	if err := r.VerifyRef(ctx, baseRef); err != nil {
		return nil, err
	}
	out, err := r.run(ctx, "log", "--reverse", logFormat, baseRef+"..HEAD")
	if err != nil {
		return nil, err
	}
	entries, err := parseLog(out)
	if err != nil {
		return nil, err
	}

	result := make([]changes.CommitChanges, len(entries))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, e := range entries {
		g.Go(func() error {
			parent := EmptyTree
			if len(e.parents) > 0 {
				parent = e.parents[0]
			}
			files, err := r.diff(gCtx, parent+".."+e.id)
			if err != nil {
				return fmt.Errorf("commit %s: %w", changes.ShortHash(e.id), err)
			}
			result[i] = changes.CommitChanges{ID: e.id, Message: e.subject, Changes: files}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// diff runs numstat and name-status for the same range and merges them.
func (r *Repo) diff(ctx context.Context, rangeArgs ...string) ([]changes.FileChange, error) {
	var numstat, nameStatus string

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		numstat, err = r.run(gCtx, append([]string{"diff", "--numstat"}, rangeArgs...)...)
		return err
	})
	g.Go(func() error {
		var err error
		nameStatus, err = r.run(gCtx, append([]string{"diff", "--name-status"}, rangeArgs...)...)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return mergeDiff(numstat, nameStatus)
}

// =============================================================================
// inline.DiffSource
// =============================================================================

// FileDiff returns the unified diff of path within rng.
func (r *Repo) FileDiff(ctx context.Context, rng inline.DiffRange, path string) (string, error) {
	args := []string{"diff", "--no-color", "--no-ext-diff"}
	switch rng.Kind {
	case inline.RangeStaged:
		args = append(args, "--cached")
	case inline.RangeBranch:
		args = append(args, rng.Ref+"..HEAD")
	case inline.RangeCommit:
		parent, err := r.firstParent(ctx, rng.Ref)
		if err != nil {
			return "", err
		}
		args = append(args, parent+".."+rng.Ref)
	default:
		return "", fmt.Errorf("unsupported diff range %q", rng.String())
	}
	args = append(args, "--", path)
	return r.run(ctx, args...)
}

// firstParent returns the first parent of id, or EmptyTree for a root
// commit.
func (r *Repo) firstParent(ctx context.Context, id string) (string, error) {
	out, err := r.run(ctx, "log", "-1", "--format=%P", id)
	if err != nil {
		return "", err
	}
	if parents := strings.Fields(out); len(parents) > 0 {
		return parents[0], nil
	}
	return EmptyTree, nil
}

var (
	_ changes.Source    = (*Repo)(nil)
	_ inline.DiffSource = (*Repo)(nil)
)
