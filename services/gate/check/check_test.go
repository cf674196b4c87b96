// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package check

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/AleutianAI/testgate/services/gate/changes"
	"github.com/AleutianAI/testgate/services/gate/correlation"
	"github.com/AleutianAI/testgate/services/gate/patterns"
	"github.com/AleutianAI/testgate/services/gate/placeholder"
	"github.com/AleutianAI/testgate/services/gate/report"
)

// ============================================================================
// Fakes
// ============================================================================

type fakeSource struct {
	branch  []changes.FileChange
	staged  []changes.FileChange
	commits []changes.CommitChanges
	err     error

	calls []string
	bases []string
}

func (f *fakeSource) ListChanges(_ context.Context, base string) ([]changes.FileChange, error) {
	f.calls = append(f.calls, "changes")
	f.bases = append(f.bases, base)
	return f.branch, f.err
}

func (f *fakeSource) ListStagedChanges(_ context.Context) ([]changes.FileChange, error) {
	f.calls = append(f.calls, "staged")
	return f.staged, f.err
}

func (f *fakeSource) ListCommits(_ context.Context, base string) ([]changes.CommitChanges, error) {
	f.calls = append(f.calls, "commits")
	f.bases = append(f.bases, base)
	return f.commits, f.err
}

func rustMatcher(t *testing.T) *patterns.Matcher {
	t.Helper()
	ps, err := patterns.Resolve(patterns.Layers{}, patterns.LanguageRust)
	require.NoError(t, err)
	return ps.MustCompile()
}

func cfg(t *testing.T) Config {
	return Config{
		Level:   LevelError,
		Scope:   report.ScopeBranch,
		Policy:  correlation.PolicyAllow,
		Matcher: rustMatcher(t),
		BaseRef: "main",
	}
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func fc(p string, ct changes.ChangeType) changes.FileChange {
	return changes.FileChange{Path: p, ChangeType: ct, LinesAdded: 5}
}

// ============================================================================
// Level
// ============================================================================

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"", LevelError, false},
		{"error", LevelError, false},
		{"WARN", LevelWarn, false},
		{"off", LevelOff, false},
		{"strict", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidCheckLevel))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// ============================================================================
// Branch scope
// ============================================================================

func TestRun_Branch(t *testing.T) {
	tests := []struct {
		name       string
		level      Level
		changes    []changes.FileChange
		wantStatus Status
		wantFiles  []string
	}{
		{
			name:       "source with test passes",
			level:      LevelError,
			changes:    []changes.FileChange{fc("src/parser.rs", changes.Modified), fc("tests/parser_tests.rs", changes.Modified)},
			wantStatus: StatusPassed,
		},
		{
			name:       "source without test fails",
			level:      LevelError,
			changes:    []changes.FileChange{fc("src/lexer.rs", changes.Added)},
			wantStatus: StatusFailed,
			wantFiles:  []string{"src/lexer.rs"},
		},
		{
			name:       "warn level warns",
			level:      LevelWarn,
			changes:    []changes.FileChange{fc("src/lexer.rs", changes.Added)},
			wantStatus: StatusWarned,
			wantFiles:  []string{"src/lexer.rs"},
		},
		{
			name:       "deleted source passes",
			level:      LevelError,
			changes:    []changes.FileChange{fc("src/old.rs", changes.Deleted)},
			wantStatus: StatusPassed,
		},
		{
			name:       "tests only passes",
			level:      LevelError,
			changes:    []changes.FileChange{fc("tests/parser_tests.rs", changes.Added)},
			wantStatus: StatusPassed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := cfg(t)
			c.Level = tt.level
			src := &fakeSource{branch: tt.changes}

			res, err := Run(context.Background(), c, Deps{Changes: src, Logger: quiet()})
			require.NoError(t, err)

			assert.Equal(t, Name, res.Name)
			assert.Equal(t, tt.wantStatus, res.Status)
			assert.NotEmpty(t, res.RunID)
			require.NotNil(t, res.Metrics)
			assert.Equal(t, report.ScopeBranch, res.Metrics.Scope)

			var files []string
			for _, v := range res.Violations {
				files = append(files, v.File)
			}
			assert.Equal(t, tt.wantFiles, files)
			assert.Equal(t, []string{"changes"}, src.calls)
			assert.Equal(t, []string{"main"}, src.bases)
		})
	}
}

func TestRun_Limit(t *testing.T) {
	c := cfg(t)
	c.Limit = 1
	src := &fakeSource{branch: []changes.FileChange{
		fc("src/a.rs", changes.Added),
		fc("src/b.rs", changes.Added),
		fc("src/c.rs", changes.Added),
	}}

	res, err := Run(context.Background(), c, Deps{Changes: src, Logger: quiet()})
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, res.Status)
	assert.Len(t, res.Violations, 1)
	assert.Equal(t, 2, res.Omitted)
	assert.Equal(t, 3, res.Metrics.WithoutTestChanges)
	assert.Equal(t, 3, res.Report().Total())
}

func TestRun_StagedIgnoresCommitScope(t *testing.T) {
	c := cfg(t)
	c.Scope = report.ScopeCommit
	c.Staged = true
	src := &fakeSource{staged: []changes.FileChange{fc("src/lexer.rs", changes.Added)}}

	res, err := Run(context.Background(), c, Deps{Changes: src, Logger: quiet()})
	require.NoError(t, err)

	assert.Equal(t, []string{"staged"}, src.calls)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, report.ScopeBranch, res.Metrics.Scope)
}

func TestRun_NothingToCompare(t *testing.T) {
	c := cfg(t)
	c.BaseRef = ""
	src := &fakeSource{}

	res, err := Run(context.Background(), c, Deps{Changes: src, Logger: quiet()})
	require.NoError(t, err)

	assert.Equal(t, StatusPassed, res.Status)
	assert.NotEmpty(t, res.Reason)
	assert.Empty(t, src.calls)
	require.NotNil(t, res.Metrics)
}

// projectTree holds one unchanged test file of placeholders.
func projectTree() fstest.MapFS {
	return fstest.MapFS{
		"src/lexer.rs":         {Data: []byte("pub fn lex() {}\n")},
		"tests/lexer_tests.rs": {Data: []byte("#[test]\n#[ignore]\nfn lexer_utf8() {}\n\n#[test]\nfn lexer_todo() {\n    todo!()\n}\n")},
	}
}

func TestRun_ProjectPlaceholders(t *testing.T) {
	tests := []struct {
		name    string
		baseRef string
		changes []changes.FileChange
	}{
		{"nothing to compare", "", nil},
		{"unrelated branch change", "main", []changes.FileChange{fc("src/parser.rs", changes.Modified), fc("tests/parser_tests.rs", changes.Modified)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := cfg(t)
			c.BaseRef = tt.baseRef

			res, err := Run(context.Background(), c, Deps{
				Changes: &fakeSource{branch: tt.changes},
				Files:   projectTree(),
				Logger:  quiet(),
			})
			require.NoError(t, err)

			assert.Equal(t, StatusPassed, res.Status)
			require.NotNil(t, res.Metrics)
			assert.Equal(t, 1, res.Metrics.Placeholders[patterns.LanguageRust][placeholder.KindIgnore])
			assert.Equal(t, 1, res.Metrics.Placeholders[patterns.LanguageRust][placeholder.KindTodo])
		})
	}
}

func TestRun_WithoutFilesCountsChangedTestsOnly(t *testing.T) {
	res, err := Run(context.Background(), cfg(t), Deps{
		Changes: &fakeSource{branch: []changes.FileChange{fc("src/parser.rs", changes.Modified), fc("tests/parser_tests.rs", changes.Modified)}},
		Logger:  quiet(),
	})
	require.NoError(t, err)
	require.NotNil(t, res.Metrics)
	assert.Zero(t, res.Metrics.Placeholders.Total())
}

// ============================================================================
// Commit scope
// ============================================================================

func TestRun_Commits(t *testing.T) {
	c := cfg(t)
	c.Scope = report.ScopeCommit
	src := &fakeSource{commits: []changes.CommitChanges{
		{ID: "aaaaaaaaaa", Message: "add failing test", Changes: []changes.FileChange{fc("tests/parser_tests.rs", changes.Added)}},
		{ID: "bbbbbbbbbb", Message: "implement parser", Changes: []changes.FileChange{fc("src/parser.rs", changes.Added)}},
		{ID: "cccccccccc", Message: "lexer with tests", Changes: []changes.FileChange{fc("src/lexer.rs", changes.Added), fc("tests/lexer_tests.rs", changes.Added)}},
	}}

	res, err := Run(context.Background(), c, Deps{Changes: src, Logger: quiet()})
	require.NoError(t, err)

	assert.Equal(t, []string{"commits"}, src.calls)
	assert.Equal(t, StatusFailed, res.Status)
	require.Len(t, res.Violations, 1)
	v := res.Violations[0]
	assert.Equal(t, "src/parser.rs", v.File)
	assert.Equal(t, "bbbbbbbbbb", v.Commit)
	assert.Equal(t, "implement parser", v.CommitMessage)
	assert.Contains(t, v.Advice, "Commit bbbbbbb modifies src/parser.rs without test changes.")

	require.NotNil(t, res.Metrics)
	assert.Equal(t, report.ScopeCommit, res.Metrics.Scope)
	assert.Equal(t, 3, res.Metrics.CommitsChecked)
	assert.Equal(t, 1, res.Metrics.CommitsFailing)
}

func TestRun_CommitScopeWithoutBaseFallsBack(t *testing.T) {
	c := cfg(t)
	c.Scope = report.ScopeCommit
	c.BaseRef = ""
	src := &fakeSource{}

	res, err := Run(context.Background(), c, Deps{Changes: src, Logger: quiet()})
	require.NoError(t, err)
	assert.Equal(t, StatusPassed, res.Status)
	assert.Empty(t, src.calls)
}

// ============================================================================
// Skips and errors
// ============================================================================

func TestRun_Off(t *testing.T) {
	c := cfg(t)
	c.Level = LevelOff
	src := &fakeSource{}

	res, err := Run(context.Background(), c, Deps{Changes: src, Logger: quiet()})
	require.NoError(t, err)

	assert.Equal(t, StatusSkipped, res.Status)
	assert.Nil(t, res.Metrics)
	assert.Empty(t, src.calls)
}

func TestRun_SourceErrorSkips(t *testing.T) {
	for _, scope := range []report.Scope{report.ScopeBranch, report.ScopeCommit} {
		t.Run(string(scope), func(t *testing.T) {
			c := cfg(t)
			c.Scope = scope
			var logs bytes.Buffer
			src := &fakeSource{err: errors.New("unknown revision main")}

			res, err := Run(context.Background(), c, Deps{
				Changes: src,
				Logger:  slog.New(slog.NewTextHandler(&logs, nil)),
			})
			require.NoError(t, err)

			assert.Equal(t, StatusSkipped, res.Status)
			assert.Contains(t, res.Reason, "unknown revision main")
			assert.Empty(t, res.Violations)
			assert.Contains(t, logs.String(), "level=WARN")
			assert.Contains(t, logs.String(), "run_id="+res.RunID)
		})
	}
}

func TestRun_CancelledSkips(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := &fakeSource{branch: []changes.FileChange{fc("src/lexer.rs", changes.Added)}}

	res, err := Run(ctx, cfg(t), Deps{Changes: src, Logger: quiet()})
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, res.Status)
}

func TestRun_InvalidDeps(t *testing.T) {
	_, err := Run(context.Background(), cfg(t), Deps{})
	assert.ErrorIs(t, err, ErrNoSource)

	c := cfg(t)
	c.Matcher = nil
	_, err = Run(context.Background(), c, Deps{Changes: &fakeSource{}, Logger: quiet()})
	assert.ErrorIs(t, err, correlation.ErrNilMatcher)
}

// ============================================================================
// Output
// ============================================================================

func TestResult_JSON(t *testing.T) {
	src := &fakeSource{branch: []changes.FileChange{fc("src/lexer.rs", changes.Added)}}
	res, err := Run(context.Background(), cfg(t), Deps{Changes: src, Logger: quiet()})
	require.NoError(t, err)

	out, err := json.Marshal(res)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, "tests", got["name"])
	assert.Equal(t, "failed", got["status"])
	assert.Len(t, got["violations"], 1)
	metrics := got["metrics"].(map[string]any)
	assert.Equal(t, "branch", metrics["scope"])
	assert.EqualValues(t, 1, metrics["without_test_changes"])
}

func TestRun_Span(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	src := &fakeSource{branch: []changes.FileChange{fc("src/lexer.rs", changes.Added)}}
	res, err := Run(context.Background(), cfg(t), Deps{Changes: src, Logger: quiet()})
	require.NoError(t, err)

	var found bool
	for _, s := range sr.Ended() {
		if s.Name() != "check.Run" {
			continue
		}
		found = true
		attrs := map[string]string{}
		for _, kv := range s.Attributes() {
			attrs[string(kv.Key)] = kv.Value.Emit()
		}
		assert.Equal(t, res.RunID, attrs["check.run_id"])
		assert.Equal(t, "failed", attrs["check.status"])
		assert.Equal(t, "1", attrs["check.violations"])
	}
	assert.True(t, found, "check.Run span recorded")
}

func TestSkip(t *testing.T) {
	res := Skip("not a git repository")
	assert.Equal(t, StatusSkipped, res.Status)
	assert.Equal(t, "not a git repository", res.Reason)
	assert.NotEmpty(t, res.RunID)
	assert.NotNil(t, res.Violations)
	assert.Zero(t, res.Report().Total())
}
