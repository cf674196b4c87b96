// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package git

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotRepository is returned when the directory is not inside a git
	// work tree.
	ErrNotRepository = errors.New("not a git repository")

	// ErrUnknownRef is returned when a reference does not resolve to a
	// commit.
	ErrUnknownRef = errors.New("unknown git reference")

	// ErrGitUnavailable is returned when the git binary cannot be run.
	ErrGitUnavailable = errors.New("git executable not available")
)

// CommandError is a failed git invocation.
type CommandError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("git %s: %s", strings.Join(e.Args, " "), msg)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// classify maps well-known git failure messages onto sentinel errors.
func classify(args []string, err error, stderr string) error {
	lower := strings.ToLower(stderr)
	switch {
	case strings.Contains(lower, "not a git repository"):
		return &CommandError{Args: args, Stderr: stderr, Err: ErrNotRepository}
	case strings.Contains(lower, "unknown revision"),
		strings.Contains(lower, "bad revision"),
		strings.Contains(lower, "ambiguous argument"),
		strings.Contains(lower, "invalid object name"):
		return &CommandError{Args: args, Stderr: stderr, Err: ErrUnknownRef}
	default:
		return &CommandError{Args: args, Stderr: stderr, Err: err}
	}
}
