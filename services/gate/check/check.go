// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package check runs the test correlation gate end to end: it fetches
// changes from version control, analyzes them in the configured scope, and
// turns the violations into a pass, warn, fail, or skip verdict.
package check

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/testgate/services/gate/changes"
	"github.com/AleutianAI/testgate/services/gate/correlation"
	"github.com/AleutianAI/testgate/services/gate/inline"
	"github.com/AleutianAI/testgate/services/gate/patterns"
	"github.com/AleutianAI/testgate/services/gate/placeholder"
	"github.com/AleutianAI/testgate/services/gate/report"
	"github.com/AleutianAI/testgate/services/gate/telemetry"
)

// Name is the check's identifier in results and logs.
const Name = "tests"

var (
	// ErrInvalidCheckLevel is returned for an unknown check level name.
	ErrInvalidCheckLevel = errors.New("invalid check level")

	// ErrNoSource is returned by Run without a change source.
	ErrNoSource = errors.New("check: nil change source")
)

// =============================================================================
// LEVEL AND STATUS
// =============================================================================

// Level controls how violations affect the verdict.
type Level string

const (
	// LevelOff disables the check.
	LevelOff Level = "off"

	// LevelWarn reports violations without failing.
	LevelWarn Level = "warn"

	// LevelError fails on any violation.
	LevelError Level = "error"
)

// ParseLevel parses a configured level name. Empty means LevelError.
func ParseLevel(s string) (Level, error) {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case "", LevelError:
		return LevelError, nil
	case LevelWarn:
		return LevelWarn, nil
	case LevelOff:
		return LevelOff, nil
	default:
		return "", fmt.Errorf("%w: %q (want off, warn or error)", ErrInvalidCheckLevel, s)
	}
}

// Status is the verdict of a run.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusWarned  Status = "warned"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// =============================================================================
// CONFIG AND RESULT
// =============================================================================

// Config selects what a run compares and how strictly.
type Config struct {
	Level  Level
	Scope  report.Scope
	Policy correlation.Policy

	// Matcher holds the resolved classification patterns. Required.
	Matcher *patterns.Matcher

	// BaseRef is the reference to compare against. Empty with Staged false
	// means there is nothing to compare and the run passes.
	BaseRef string

	// Staged checks the index against HEAD instead of a base reference.
	// Staged runs always use branch scope.
	Staged bool

	// Limit caps the number of reported violations. Zero means no cap.
	Limit int
}

// Deps are the collaborators of a run.
type Deps struct {
	// Changes lists changed files and commits. Required.
	Changes changes.Source

	// Diffs supplies per-file diffs for inline test detection. Optional.
	Diffs inline.DiffSource

	// Content reads test files for placeholder detection. Optional.
	Content placeholder.ContentReader

	// Files is the work tree. When set, placeholder metrics cover every
	// test file in the project, not only the changed ones. Optional.
	Files fs.FS

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Result is the outcome of one run.
type Result struct {
	Name   string `json:"name"`
	RunID  string `json:"run_id"`
	Status Status `json:"status"`

	// Reason explains skipped and trivially passed runs.
	Reason string `json:"reason,omitempty"`

	Violations []report.Violation `json:"violations"`
	Omitted    int                `json:"omitted,omitempty"`

	// Metrics is nil when no analysis ran.
	Metrics *report.Metrics `json:"metrics,omitempty"`
}

// Report returns the violations and metrics of the run as a report.
func (r Result) Report() report.Report {
	rep := report.Report{Violations: r.Violations, Omitted: r.Omitted}
	if r.Metrics != nil {
		rep.Metrics = *r.Metrics
	}
	return rep
}

// Skip returns a skipped result for a run that could not start, such as
// outside a repository.
func Skip(reason string) Result {
	return Result{
		Name:       Name,
		RunID:      uuid.NewString(),
		Status:     StatusSkipped,
		Reason:     reason,
		Violations: []report.Violation{},
	}
}

// =============================================================================
// RUN
// =============================================================================

// Run executes the gate once.
//
// # Description
//
// Staged runs and runs without commit scope analyze the aggregate change
// set. Commit scope with a base reference analyzes every commit on its
// own. Errors from the change source or a cancelled context produce a
// skipped result, never a failure.
//
// # Inputs
//
//   - ctx: Cancellation for collaborator calls.
//   - cfg: Run configuration. Matcher is required.
//   - deps: Collaborators. Changes is required.
//
// # Outputs
//
//   - Result: The verdict with violations and metrics.
//   - error: Non-nil only for invalid configuration.
//
// # Thread Safety
//
// Safe to call concurrently with distinct Deps.
func Run(ctx context.Context, cfg Config, deps Deps) (Result, error) {
	if deps.Changes == nil {
		return Result{}, ErrNoSource
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	res := Result{Name: Name, RunID: uuid.NewString(), Violations: []report.Violation{}}
	scope := effectiveScope(cfg)

	ctx, span := startRunSpan(ctx, res.RunID, scope, cfg.Level)
	defer span.End()
	logger = telemetry.LoggerWithTrace(ctx, logger).With(
		slog.String("check", Name),
		slog.String("run_id", res.RunID),
	)

	start := time.Now()
	defer func() {
		setRunSpanResult(span, res)
		recordRunMetrics(ctx, res, scope, time.Since(start))
	}()

	if cfg.Level == LevelOff {
		res.Status = StatusSkipped
		res.Reason = "check disabled"
		logger.Debug("check disabled by configuration")
		return res, nil
	}

	analyzer, err := correlation.NewAnalyzer(cfg.Matcher, correlation.Options{
		Policy:  cfg.Policy,
		Diffs:   deps.Diffs,
		Content: deps.Content,
		Logger:  logger,
	})
	if err != nil {
		return Result{}, fmt.Errorf("creating analyzer: %w", err)
	}

	if err := ctx.Err(); err != nil {
		res.Status = StatusSkipped
		res.Reason = err.Error()
		logger.Warn("check skipped", slog.String("error", err.Error()))
		return res, nil
	}

	var rep report.Report
	switch {
	case scope == report.ScopeCommit:
		rep, err = runCommits(ctx, analyzer, cfg, deps.Changes)
	case cfg.Staged || cfg.BaseRef != "":
		rep, err = runBranch(ctx, analyzer, cfg, deps.Changes)
	default:
		res.Status = StatusPassed
		res.Reason = "no base reference or staged changes to compare"
		empty := report.Empty(report.ScopeBranch)
		projectPlaceholders(ctx, cfg.Matcher, deps.Files, &empty.Metrics, logger)
		res.Metrics = &empty.Metrics
		logger.Info("nothing to compare")
		return res, nil
	}
	if err != nil {
		res.Status = StatusSkipped
		res.Reason = err.Error()
		recordSpanError(span, err)
		logger.Warn("check skipped",
			slog.String("scope", string(scope)),
			slog.String("error", err.Error()),
		)
		return res, nil
	}

	projectPlaceholders(ctx, cfg.Matcher, deps.Files, &rep.Metrics, logger)
	res.Violations = rep.Violations
	res.Omitted = rep.Omitted
	res.Metrics = &rep.Metrics
	res.Status = verdict(cfg.Level, rep)

	logger.Info("check complete",
		slog.String("scope", string(scope)),
		slog.String("status", string(res.Status)),
		slog.Int("violations", rep.Total()),
	)
	return res, nil
}

// projectPlaceholders replaces the placeholder counts of m with counts
// over every test file in files. On failure the changed-file counts stay.
func projectPlaceholders(ctx context.Context, matcher *patterns.Matcher, files fs.FS, m *report.Metrics, logger *slog.Logger) {
	if files == nil {
		return
	}
	summary, err := placeholder.ScanProject(ctx, files, matcher)
	if err != nil {
		logger.Warn("project placeholder scan failed", slog.String("error", err.Error()))
		return
	}
	m.Placeholders = summary.Counts
	logger.Debug("project placeholder scan",
		slog.Int("files", len(summary.Reports)),
		slog.Int("placeholders", summary.Counts.Total()))
}

// effectiveScope returns the scope a run actually uses. Commit scope needs
// a base reference and is not applied to staged changes.
func effectiveScope(cfg Config) report.Scope {
	if cfg.Scope == report.ScopeCommit && !cfg.Staged && cfg.BaseRef != "" {
		return report.ScopeCommit
	}
	return report.ScopeBranch
}

func runBranch(ctx context.Context, a *correlation.Analyzer, cfg Config, src changes.Source) (report.Report, error) {
	var (
		in  []changes.FileChange
		rng inline.DiffRange
		err error
	)
	if cfg.Staged {
		in, err = src.ListStagedChanges(ctx)
		rng = inline.Staged()
	} else {
		in, err = src.ListChanges(ctx, cfg.BaseRef)
		rng = inline.Branch(cfg.BaseRef)
	}
	if err != nil {
		return report.Report{}, fmt.Errorf("listing changes: %w", err)
	}

	br, err := a.AnalyzeBranch(ctx, in, rng)
	if err != nil {
		return report.Report{}, err
	}
	return report.FromBranch(br, cfg.Limit), nil
}

func runCommits(ctx context.Context, a *correlation.Analyzer, cfg Config, src changes.Source) (report.Report, error) {
	commits, err := src.ListCommits(ctx, cfg.BaseRef)
	if err != nil {
		return report.Report{}, fmt.Errorf("listing commits: %w", err)
	}

	cr, err := a.AnalyzeCommits(ctx, commits)
	if err != nil {
		return report.Report{}, err
	}
	return report.FromCommits(cr, cfg.Limit), nil
}

func verdict(level Level, rep report.Report) Status {
	switch {
	case rep.Total() == 0:
		return StatusPassed
	case level == LevelWarn:
		return StatusWarned
	default:
		return StatusFailed
	}
}
