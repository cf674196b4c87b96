// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package correlation decides, per change set, which source changes are
// accompanied by test changes.
//
// # Scopes
//
// Branch scope partitions the aggregate change set of a range once. A
// test anywhere in the range satisfies a source anywhere in the range.
//
// Commit scope partitions each commit on its own. A commit with only
// test changes is always valid, so tests may land before the code they
// exercise. A commit that adds or modifies source without a correlated
// test in the same commit is violating, even when a later commit in the
// range adds the test. Nothing accumulates across commits.
//
// # Fallbacks
//
// A source with no correlated test change is moved to WithTests when
// either its own embedded test region changed (package inline) or, under
// the allow policy, a placeholder test for it exists at a candidate
// location (package placeholder).
//
// # Thread Safety
//
// Analyzer is safe for concurrent use. Each call recomputes everything.
package correlation

import (
	"context"
	"log/slog"
	"runtime"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/testgate/services/gate/changes"
	"github.com/AleutianAI/testgate/services/gate/classify"
	"github.com/AleutianAI/testgate/services/gate/inline"
	"github.com/AleutianAI/testgate/services/gate/locate"
	"github.com/AleutianAI/testgate/services/gate/patterns"
	"github.com/AleutianAI/testgate/services/gate/placeholder"
)

// Options configures an Analyzer.
type Options struct {
	// Policy is the placeholder policy. Empty means PolicyAllow.
	Policy Policy

	// Diffs supplies per-file diff text for inline detection. Nil
	// disables the inline fallback.
	Diffs inline.DiffSource

	// Content reads working-tree files for placeholder detection. Nil
	// disables placeholder metrics and the placeholder fallback.
	Content placeholder.ContentReader

	// Logger receives debug output. Nil means slog.Default().
	Logger *slog.Logger
}

// Analyzer runs branch- and commit-scope correlation.
type Analyzer struct {
	matcher *patterns.Matcher
	opts    Options
	logger  *slog.Logger
}

// NewAnalyzer creates an Analyzer.
//
// Inputs:
//
//	m - Compiled patterns. Must not be nil.
//	opts - Collaborators and policy
//
// Outputs:
//
//	*Analyzer - Ready to use
//	error - ErrNilMatcher, or ErrInvalidPolicy for an unknown policy
func NewAnalyzer(m *patterns.Matcher, opts Options) (*Analyzer, error) {
	if m == nil {
		return nil, ErrNilMatcher
	}
	policy, err := ParsePolicy(string(opts.Policy))
	if err != nil {
		return nil, err
	}
	opts.Policy = policy

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{matcher: m, opts: opts, logger: logger}, nil
}

// =============================================================================
// PARTITION
// =============================================================================

// Partition classifies a change set and splits its sources by whether a
// correlated test changed alongside them.
//
// Description:
//
//	Deleted files are dropped after classification. Under PolicyForbid,
//	test files whose tests are all placeholders do not count toward
//	correlation but are still listed in Tests. No fallback rule is
//	applied; see AnalyzeBranch and AnalyzeCommits.
//
// Inputs:
//
//	ctx - Context for cancellation
//	in - The change set
//
// Outputs:
//
//	Result - The partition
//	error - ctx.Err() when cancelled
func (a *Analyzer) Partition(ctx context.Context, in []changes.FileChange) (Result, error) {
	cls, err := classify.ClassifyAll(ctx, in, a.matcher)
	if err != nil {
		return Result{}, err
	}
	summary, err := a.scan(ctx, testPaths(cls))
	if err != nil {
		return Result{}, err
	}
	return a.partition(cls, summary), nil
}

func (a *Analyzer) scan(ctx context.Context, tests []string) (placeholder.Summary, error) {
	return placeholder.Scan(ctx, a.opts.Content, tests)
}

func (a *Analyzer) partition(cls []classify.Classified, summary placeholder.Summary) Result {
	res := Result{
		WithTests:    []string{},
		WithoutTests: []string{},
		TestOnly:     []string{},
		Tests:        []string{},
		Rescued:      map[string]Rescue{},
		Changes:      map[string]changes.FileChange{},
	}

	var sources, counting []string
	seen := make(map[string]struct{}, len(cls))
	for _, c := range cls {
		if c.Change.IsDeleted() || c.Class == classify.Ignored {
			continue
		}
		p := changes.NormalizePath(c.Change.Path)
		if _, dup := seen[p]; dup || p == "" {
			continue
		}
		seen[p] = struct{}{}

		switch c.Class {
		case classify.Source:
			sources = append(sources, p)
			res.Changes[p] = c.Change
		case classify.Test:
			res.Tests = append(res.Tests, p)
			if a.opts.Policy == PolicyForbid && summary.PlaceholderOnly(p) {
				a.logger.Debug("placeholder-only test ignored",
					slog.String("file", p))
				continue
			}
			counting = append(counting, p)
		}
	}

	idx := locate.NewTestIndex(counting)
	for _, s := range sources {
		if idx.Has(s) {
			res.WithTests = append(res.WithTests, s)
		} else {
			res.WithoutTests = append(res.WithoutTests, s)
		}
	}

	all := locate.NewTestIndex(res.Tests)
	matched := make(map[string]struct{})
	for _, s := range sources {
		for _, t := range all.Correlated(s) {
			matched[t] = struct{}{}
		}
	}
	for _, t := range res.Tests {
		if _, ok := matched[t]; !ok {
			res.TestOnly = append(res.TestOnly, t)
		}
	}

	res.sources = sources
	return res
}

// rescue applies the inline and placeholder fallbacks to WithoutTests.
func (a *Analyzer) rescue(ctx context.Context, res *Result, rng inline.DiffRange) {
	if len(res.WithoutTests) == 0 {
		return
	}

	for _, s := range res.WithoutTests {
		switch {
		case inline.Detect(ctx, a.opts.Diffs, rng, s):
			res.Rescued[s] = RescueInline
		case a.opts.Policy == PolicyAllow && placeholder.HasPlaceholderFor(ctx, a.opts.Content, s):
			res.Rescued[s] = RescuePlaceholder
		default:
			continue
		}
		a.logger.Debug("source satisfied by fallback",
			slog.String("file", s),
			slog.String("rescue", string(res.Rescued[s])),
			slog.String("range", rng.String()))
	}
	if len(res.Rescued) == 0 {
		return
	}

	with := make(map[string]struct{}, len(res.WithTests))
	for _, s := range res.WithTests {
		with[s] = struct{}{}
	}
	res.WithTests = res.WithTests[:0]
	res.WithoutTests = res.WithoutTests[:0]
	for _, s := range res.sources {
		_, ok := with[s]
		if _, rescued := res.Rescued[s]; ok || rescued {
			res.WithTests = append(res.WithTests, s)
		} else {
			res.WithoutTests = append(res.WithoutTests, s)
		}
	}
}

// =============================================================================
// BRANCH SCOPE
// =============================================================================

// AnalyzeBranch partitions the aggregate change set of a range once.
//
// Inputs:
//
//	ctx - Context for cancellation
//	in - Every change between the base and the current tree
//	rng - The diff range used for inline detection
//
// Outputs:
//
//	BranchResult - The partition after fallbacks, plus placeholder counts
//	error - ctx.Err() when cancelled
func (a *Analyzer) AnalyzeBranch(ctx context.Context, in []changes.FileChange, rng inline.DiffRange) (BranchResult, error) {
	ctx, span := startSpan(ctx, "correlation.AnalyzeBranch",
		attribute.Int("correlation.changes", len(in)),
		attribute.String("correlation.range", rng.String()),
		attribute.String("correlation.policy", string(a.opts.Policy)),
	)
	defer span.End()

	cls, err := classify.ClassifyAll(ctx, in, a.matcher)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "classify failed")
		return BranchResult{}, err
	}
	summary, err := a.scan(ctx, testPaths(cls))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "placeholder scan failed")
		return BranchResult{}, err
	}

	res := a.partition(cls, summary)
	a.rescue(ctx, &res, rng)
	setResultAttrs(span, res)

	return BranchResult{Result: res, Placeholders: summary.Counts}, nil
}

// =============================================================================
// COMMIT SCOPE
// =============================================================================

// AnalyzeCommits partitions each commit independently.
//
// Description:
//
//	Classification and per-commit analysis fan out through errgroup.
//	Verdicts are written by index, so the output order is the input
//	order regardless of scheduling. Placeholder tests are scanned once
//	over the union of changed test files.
//
// Inputs:
//
//	ctx - Context for cancellation
//	commits - The range, oldest first
//
// Outputs:
//
//	CommitResult - One verdict per commit, in input order
//	error - ctx.Err() when cancelled
func (a *Analyzer) AnalyzeCommits(ctx context.Context, commits []changes.CommitChanges) (CommitResult, error) {
	ctx, span := startSpan(ctx, "correlation.AnalyzeCommits",
		attribute.Int("correlation.commits", len(commits)),
		attribute.String("correlation.policy", string(a.opts.Policy)),
	)
	defer span.End()

	workers := runtime.GOMAXPROCS(0)

	classified := make([][]classify.Classified, len(commits))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range commits {
		g.Go(func() error {
			cls, err := classify.ClassifyAll(gCtx, commits[i].Changes, a.matcher)
			classified[i] = cls
			return err
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "classify failed")
		return CommitResult{}, err
	}

	var tests []string
	seen := make(map[string]struct{})
	for _, cls := range classified {
		for _, p := range testPaths(cls) {
			if _, dup := seen[p]; !dup {
				seen[p] = struct{}{}
				tests = append(tests, p)
			}
		}
	}
	summary, err := a.scan(ctx, tests)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "placeholder scan failed")
		return CommitResult{}, err
	}

	verdicts := make([]CommitVerdict, len(commits))
	g, gCtx = errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range commits {
		g.Go(func() error {
			res := a.partition(classified[i], summary)
			a.rescue(gCtx, &res, inline.Commit(commits[i].ID))
			verdicts[i] = verdictFor(commits[i], res)
			return gCtx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit analysis cancelled")
		return CommitResult{}, err
	}

	out := CommitResult{Verdicts: verdicts, Placeholders: summary.Counts}
	span.SetAttributes(attribute.Int("correlation.commits_failing", out.Failing()))
	return out, nil
}

// verdictFor derives a commit's status from its partition.
func verdictFor(c changes.CommitChanges, res Result) CommitVerdict {
	v := CommitVerdict{
		ID:      c.ID,
		Message: firstLine(c.Message),
		Result:  res,
	}
	switch {
	case len(res.WithoutTests) > 0:
		v.Status = StatusViolating
		v.Unsatisfied = slices.Clone(res.WithoutTests)
	case res.SourceCount() == 0 && len(res.Tests) > 0:
		v.Status = StatusTestOnly
	case res.SourceCount() == 0:
		v.Status = StatusEmpty
	default:
		v.Status = StatusSatisfied
	}
	return v
}

// testPaths returns the normalized, de-duplicated, non-deleted test paths.
func testPaths(cls []classify.Classified) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, c := range cls {
		if c.Class != classify.Test || c.Change.IsDeleted() {
			continue
		}
		p := changes.NormalizePath(c.Change.Path)
		if _, dup := seen[p]; dup || p == "" {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

func firstLine(s string) string {
	first, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(first)
}
