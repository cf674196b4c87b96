// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package report turns correlation results into violations and summary
// metrics.
//
// # Description
//
// Branch scope emits one violation per source file without a correlated
// test change. Commit scope emits one per unsatisfied path of a violating
// commit, tagged with the commit id and subject. Metrics carry the
// per-scope counters plus placeholder counts nested by language and kind.
//
// Reports render as JSON, as styled text, or as a Prometheus textfile.
//
// # Thread Safety
//
// Report values are immutable once built and safe to share.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/AleutianAI/testgate/services/gate/changes"
	"github.com/AleutianAI/testgate/services/gate/correlation"
	"github.com/AleutianAI/testgate/services/gate/locate"
	"github.com/AleutianAI/testgate/services/gate/placeholder"
)

// ErrInvalidScope is returned for an unknown scope name.
var ErrInvalidScope = errors.New("invalid scope")

// =============================================================================
// SCOPE
// =============================================================================

// Scope selects how change sets are grouped for correlation.
type Scope string

const (
	// ScopeBranch analyzes the aggregate change set in one pass.
	ScopeBranch Scope = "branch"

	// ScopeCommit analyzes every commit in isolation.
	ScopeCommit Scope = "commit"
)

// ParseScope parses a configured scope name. Empty means ScopeBranch.
func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case "", ScopeBranch:
		return ScopeBranch, nil
	case ScopeCommit:
		return ScopeCommit, nil
	default:
		return "", fmt.Errorf("%w: %q (want branch or commit)", ErrInvalidScope, s)
	}
}

// =============================================================================
// VIOLATIONS
// =============================================================================

// ViolationType names the rule a violation breaks.
type ViolationType string

// ViolationMissingTests is a source change without a correlated test change.
const ViolationMissingTests ViolationType = "missing_tests"

// Violation is one source file lacking a correlated test change.
type Violation struct {
	File         string             `json:"file"`
	ChangeType   changes.ChangeType `json:"change_type"`
	LinesChanged int                `json:"lines_changed"`
	Type         ViolationType      `json:"type"`
	Advice       string             `json:"advice"`

	// Commit and CommitMessage are set in commit scope only.
	Commit        string `json:"commit,omitempty"`
	CommitMessage string `json:"commit_message,omitempty"`
}

// =============================================================================
// METRICS
// =============================================================================

// Metrics summarizes a run. Which counters are meaningful depends on Scope.
type Metrics struct {
	Scope Scope

	// Branch scope.
	SourceFilesChanged int
	WithTestChanges    int
	WithoutTestChanges int

	// Commit scope.
	CommitsChecked int
	CommitsFailing int

	Placeholders placeholder.Counts
}

type branchMetrics struct {
	SourceFilesChanged int                `json:"source_files_changed"`
	WithTestChanges    int                `json:"with_test_changes"`
	WithoutTestChanges int                `json:"without_test_changes"`
	Scope              Scope              `json:"scope"`
	Placeholders       placeholder.Counts `json:"placeholders"`
}

type commitMetrics struct {
	CommitsChecked int                `json:"commits_checked"`
	CommitsFailing int                `json:"commits_failing"`
	Scope          Scope              `json:"scope"`
	Placeholders   placeholder.Counts `json:"placeholders"`
}

// MarshalJSON emits only the counters of the metrics' scope.
func (m Metrics) MarshalJSON() ([]byte, error) {
	counts := m.Placeholders
	if counts == nil {
		counts = placeholder.NewCounts()
	}
	if m.Scope == ScopeCommit {
		return json.Marshal(commitMetrics{
			CommitsChecked: m.CommitsChecked,
			CommitsFailing: m.CommitsFailing,
			Scope:          ScopeCommit,
			Placeholders:   counts,
		})
	}
	return json.Marshal(branchMetrics{
		SourceFilesChanged: m.SourceFilesChanged,
		WithTestChanges:    m.WithTestChanges,
		WithoutTestChanges: m.WithoutTestChanges,
		Scope:              ScopeBranch,
		Placeholders:       counts,
	})
}

// =============================================================================
// REPORT
// =============================================================================

// Report is the emitted outcome of one correlation run.
type Report struct {
	Violations []Violation `json:"violations"`

	// Omitted counts violations dropped by the limit.
	Omitted int `json:"omitted,omitempty"`

	Metrics Metrics `json:"metrics"`
}

// Total returns the number of violations found, including omitted ones.
func (r Report) Total() int {
	return len(r.Violations) + r.Omitted
}

// Empty returns a branch-scope report with no violations, used when there
// is nothing to compare against.
func Empty(scope Scope) Report {
	return Report{
		Violations: []Violation{},
		Metrics:    Metrics{Scope: scope, Placeholders: placeholder.NewCounts()},
	}
}

// FromBranch builds the report of a branch-scope analysis.
//
// # Inputs
//
//   - res: Output of correlation.Analyzer.AnalyzeBranch.
//   - limit: Maximum violations kept. Zero or negative keeps all.
//
// # Outputs
//
//   - Report: One violation per WithoutTests entry, in input order.
func FromBranch(res correlation.BranchResult, limit int) Report {
	c := newCollector(limit)
	for _, p := range res.WithoutTests {
		c.add(violationFor(p, res.Change(p)))
	}
	return Report{
		Violations: c.kept,
		Omitted:    c.omitted,
		Metrics: Metrics{
			Scope:              ScopeBranch,
			SourceFilesChanged: res.SourceCount(),
			WithTestChanges:    len(res.WithTests),
			WithoutTestChanges: len(res.WithoutTests),
			Placeholders:       res.Placeholders,
		},
	}
}

// FromCommits builds the report of a commit-scope analysis.
//
// # Inputs
//
//   - res: Output of correlation.Analyzer.AnalyzeCommits.
//   - limit: Maximum violations kept. Zero or negative keeps all.
//
// # Outputs
//
//   - Report: One violation per unsatisfied path of each violating commit,
//     oldest commit first. Metrics count every commit regardless of limit.
func FromCommits(res correlation.CommitResult, limit int) Report {
	c := newCollector(limit)
	for _, v := range res.Verdicts {
		if v.Status != correlation.StatusViolating {
			continue
		}
		short := changes.ShortHash(v.ID)
		for _, p := range v.Unsatisfied {
			vio := violationFor(p, v.Result.Change(p))
			vio.Advice = fmt.Sprintf("Commit %s modifies %s without test changes. %s", short, p, vio.Advice)
			vio.Commit = v.ID
			vio.CommitMessage = v.Message
			c.add(vio)
		}
	}
	return Report{
		Violations: c.kept,
		Omitted:    c.omitted,
		Metrics: Metrics{
			Scope:          ScopeCommit,
			CommitsChecked: len(res.Verdicts),
			CommitsFailing: res.Failing(),
			Placeholders:   res.Placeholders,
		},
	}
}

func violationFor(p string, change changes.FileChange) Violation {
	return Violation{
		File:         p,
		ChangeType:   change.ChangeType,
		LinesChanged: change.LinesChanged(),
		Type:         ViolationMissingTests,
		Advice:       locate.Advice(p),
	}
}

type collector struct {
	limit   int
	kept    []Violation
	omitted int
}

func newCollector(limit int) *collector {
	return &collector{limit: limit, kept: []Violation{}}
}

func (c *collector) add(v Violation) {
	if c.limit > 0 && len(c.kept) >= c.limit {
		c.omitted++
		return
	}
	c.kept = append(c.kept, v)
}
