// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package correlation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/AleutianAI/testgate/services/gate/changes"
	"github.com/AleutianAI/testgate/services/gate/placeholder"
)

// Sentinel errors for correlation.
var (
	// ErrNilMatcher is returned by NewAnalyzer without compiled patterns.
	ErrNilMatcher = errors.New("correlation: nil matcher")

	// ErrInvalidPolicy is returned for an unknown placeholder policy name.
	ErrInvalidPolicy = errors.New("invalid placeholder policy")
)

// =============================================================================
// POLICY
// =============================================================================

// Policy decides whether placeholder tests count as tests.
type Policy string

const (
	// PolicyAllow lets placeholder tests satisfy correlation.
	PolicyAllow Policy = "allow"

	// PolicyForbid treats placeholder-only test files as absent.
	PolicyForbid Policy = "forbid"
)

// ParsePolicy parses a configured policy name. Empty means PolicyAllow.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyAllow:
		return PolicyAllow, nil
	case PolicyForbid:
		return PolicyForbid, nil
	default:
		return "", fmt.Errorf("%w: %q (want allow or forbid)", ErrInvalidPolicy, s)
	}
}

// =============================================================================
// RESULTS
// =============================================================================

// Rescue names the rule that satisfied a source after the test index
// found nothing.
type Rescue string

const (
	// RescueInline means the source's own embedded tests changed.
	RescueInline Rescue = "inline"

	// RescuePlaceholder means a placeholder test exists at a candidate
	// location.
	RescuePlaceholder Rescue = "placeholder"
)

// Result is the partition of one change set.
//
// All paths are repository-relative and appear in input order. Deleted
// and ignored files appear in none of the lists.
type Result struct {
	// WithTests are source files with a correlated test change.
	WithTests []string `json:"with_tests"`

	// WithoutTests are source files lacking one.
	WithoutTests []string `json:"without_tests"`

	// TestOnly are test files that correlate with none of the sources.
	TestOnly []string `json:"test_only"`

	// Tests are all non-deleted test files in the set.
	Tests []string `json:"tests"`

	// Rescued records sources moved into WithTests by a fallback rule.
	Rescued map[string]Rescue `json:"rescued,omitempty"`

	// Changes maps every source path to its change record.
	Changes map[string]changes.FileChange `json:"-"`

	// sources holds every source path in input order.
	sources []string
}

// SourceCount returns the number of source files considered.
func (r Result) SourceCount() int {
	return len(r.WithTests) + len(r.WithoutTests)
}

// Change returns the change record of a source path.
func (r Result) Change(p string) changes.FileChange {
	if c, ok := r.Changes[p]; ok {
		return c
	}
	return changes.FileChange{Path: p}
}

// BranchResult is the outcome of branch-scope analysis.
type BranchResult struct {
	Result

	// Placeholders counts placeholder tests in the changed test files.
	Placeholders placeholder.Counts `json:"placeholders"`
}

// Status is the verdict of one commit.
type Status string

const (
	// StatusTestOnly is a commit with test changes and no source changes.
	StatusTestOnly Status = "test_only"

	// StatusSatisfied is a commit whose sources all have correlated tests.
	StatusSatisfied Status = "satisfied"

	// StatusViolating is a commit with at least one unsatisfied source.
	StatusViolating Status = "violating"

	// StatusEmpty is a commit with no source or test changes.
	StatusEmpty Status = "empty"
)

// Valid reports whether the status passes.
func (s Status) Valid() bool {
	return s != StatusViolating
}

// CommitVerdict is the outcome of analyzing one commit in isolation.
type CommitVerdict struct {
	ID      string `json:"id"`
	Message string `json:"message"`
	Status  Status `json:"status"`

	// Unsatisfied lists the commit's sources without correlated tests.
	// Non-empty exactly when Status is StatusViolating.
	Unsatisfied []string `json:"unsatisfied,omitempty"`

	Result Result `json:"-"`
}

// CommitResult is the outcome of commit-scope analysis.
type CommitResult struct {
	// Verdicts are in input order, oldest commit first.
	Verdicts []CommitVerdict `json:"verdicts"`

	// Placeholders counts placeholder tests across every commit's changed
	// test files, each file counted once.
	Placeholders placeholder.Counts `json:"placeholders"`
}

// Failing returns the number of violating commits.
func (r CommitResult) Failing() int {
	n := 0
	for _, v := range r.Verdicts {
		if v.Status == StatusViolating {
			n++
		}
	}
	return n
}
