// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/testgate/services/gate/changes"
	"github.com/AleutianAI/testgate/services/gate/correlation"
	"github.com/AleutianAI/testgate/services/gate/patterns"
	"github.com/AleutianAI/testgate/services/gate/placeholder"
)

// ============================================================================
// Fixtures
// ============================================================================

func branchResult() correlation.BranchResult {
	counts := placeholder.NewCounts()
	counts[patterns.LanguageRust][placeholder.KindIgnore] = 2

	return correlation.BranchResult{
		Result: correlation.Result{
			WithTests:    []string{"src/parser.rs"},
			WithoutTests: []string{"src/lexer.rs", "src/main.go"},
			Tests:        []string{"tests/parser_tests.rs"},
			Changes: map[string]changes.FileChange{
				"src/parser.rs": {Path: "src/parser.rs", ChangeType: changes.Modified, LinesAdded: 3},
				"src/lexer.rs":  {Path: "src/lexer.rs", ChangeType: changes.Added, LinesAdded: 40},
				"src/main.go":   {Path: "src/main.go", ChangeType: changes.Modified, LinesAdded: 2, LinesDeleted: 1},
			},
		},
		Placeholders: counts,
	}
}

const (
	goodID = "1111111111111111111111111111111111111111"
	badID  = "abcdef0123456789abcdef0123456789abcdef01"
)

func commitResult() correlation.CommitResult {
	return correlation.CommitResult{
		Verdicts: []correlation.CommitVerdict{
			{ID: goodID, Message: "add tests first", Status: correlation.StatusTestOnly},
			{
				ID:          badID,
				Message:     "feat: add lexer",
				Status:      correlation.StatusViolating,
				Unsatisfied: []string{"src/lexer.rs"},
				Result: correlation.Result{
					WithoutTests: []string{"src/lexer.rs"},
					Changes: map[string]changes.FileChange{
						"src/lexer.rs": {Path: "src/lexer.rs", ChangeType: changes.Added, LinesAdded: 12},
					},
				},
			},
			{ID: "2222222", Message: "docs", Status: correlation.StatusEmpty},
		},
		Placeholders: placeholder.NewCounts(),
	}
}

// ============================================================================
// Scope
// ============================================================================

func TestParseScope(t *testing.T) {
	tests := []struct {
		in      string
		want    Scope
		wantErr bool
	}{
		{"", ScopeBranch, false},
		{"branch", ScopeBranch, false},
		{" Commit ", ScopeCommit, false},
		{"range", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseScope(tt.in)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidScope))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// ============================================================================
// Builders
// ============================================================================

func TestFromBranch(t *testing.T) {
	r := FromBranch(branchResult(), 0)

	require.Len(t, r.Violations, 2)
	assert.Equal(t, Violation{
		File:         "src/lexer.rs",
		ChangeType:   changes.Added,
		LinesChanged: 40,
		Type:         ViolationMissingTests,
		Advice:       r.Violations[0].Advice,
	}, r.Violations[0])
	assert.Contains(t, r.Violations[0].Advice, "lexer")
	assert.Equal(t, "src/main.go", r.Violations[1].File)
	assert.Equal(t, 3, r.Violations[1].LinesChanged)
	assert.Equal(t, "Add tests in main_test.go", r.Violations[1].Advice)
	assert.Empty(t, r.Violations[1].Commit)

	assert.Equal(t, ScopeBranch, r.Metrics.Scope)
	assert.Equal(t, 3, r.Metrics.SourceFilesChanged)
	assert.Equal(t, 1, r.Metrics.WithTestChanges)
	assert.Equal(t, 2, r.Metrics.WithoutTestChanges)
	assert.Zero(t, r.Omitted)
}

func TestFromBranch_Limit(t *testing.T) {
	r := FromBranch(branchResult(), 1)

	require.Len(t, r.Violations, 1)
	assert.Equal(t, "src/lexer.rs", r.Violations[0].File)
	assert.Equal(t, 1, r.Omitted)
	assert.Equal(t, 2, r.Total())
	assert.Equal(t, 2, r.Metrics.WithoutTestChanges, "metrics ignore the limit")
}

func TestFromBranch_NoViolationsIsEmptySlice(t *testing.T) {
	r := FromBranch(correlation.BranchResult{}, 0)

	out, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"violations":[]`)
}

func TestFromCommits(t *testing.T) {
	r := FromCommits(commitResult(), 0)

	require.Len(t, r.Violations, 1)
	v := r.Violations[0]
	assert.Equal(t, "src/lexer.rs", v.File)
	assert.Equal(t, changes.Added, v.ChangeType)
	assert.Equal(t, 12, v.LinesChanged)
	assert.Equal(t, badID, v.Commit)
	assert.Equal(t, "feat: add lexer", v.CommitMessage)
	assert.True(t, strings.HasPrefix(v.Advice, "Commit abcdef0 modifies src/lexer.rs without test changes. "), v.Advice)

	assert.Equal(t, ScopeCommit, r.Metrics.Scope)
	assert.Equal(t, 3, r.Metrics.CommitsChecked)
	assert.Equal(t, 1, r.Metrics.CommitsFailing)
}

// ============================================================================
// JSON
// ============================================================================

func TestMetrics_MarshalJSON(t *testing.T) {
	t.Run("branch", func(t *testing.T) {
		out, err := json.Marshal(FromBranch(branchResult(), 0).Metrics)
		require.NoError(t, err)

		var got map[string]any
		require.NoError(t, json.Unmarshal(out, &got))
		assert.Equal(t, "branch", got["scope"])
		assert.EqualValues(t, 3, got["source_files_changed"])
		assert.EqualValues(t, 1, got["with_test_changes"])
		assert.EqualValues(t, 2, got["without_test_changes"])
		assert.NotContains(t, got, "commits_checked")

		ph := got["placeholders"].(map[string]any)
		assert.EqualValues(t, 2, ph["rust"].(map[string]any)["ignore"])
	})

	t.Run("commit", func(t *testing.T) {
		out, err := json.Marshal(FromCommits(commitResult(), 0).Metrics)
		require.NoError(t, err)

		var got map[string]any
		require.NoError(t, json.Unmarshal(out, &got))
		assert.Equal(t, "commit", got["scope"])
		assert.EqualValues(t, 3, got["commits_checked"])
		assert.EqualValues(t, 1, got["commits_failing"])
		assert.NotContains(t, got, "source_files_changed")
		assert.Contains(t, got, "placeholders")
	})

	t.Run("nil placeholders", func(t *testing.T) {
		out, err := json.Marshal(Metrics{Scope: ScopeBranch})
		require.NoError(t, err)
		assert.NotContains(t, string(out), `"placeholders":null`)
	})
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, FromBranch(branchResult(), 0)))

	var got struct {
		Violations []struct {
			File       string `json:"file"`
			ChangeType string `json:"change_type"`
			Type       string `json:"type"`
		} `json:"violations"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got.Violations, 2)
	assert.Equal(t, "added", got.Violations[0].ChangeType)
	assert.Equal(t, "missing_tests", got.Violations[0].Type)
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
}

// ============================================================================
// Text
// ============================================================================

func TestText_Plain(t *testing.T) {
	var buf bytes.Buffer
	txt := NewText(&buf, false)
	txt.Headline(ToneFail, "tests: 2 violations")
	txt.Report(FromBranch(branchResult(), 1))

	out := buf.String()
	assert.Contains(t, out, "✗ tests: 2 violations")
	assert.Contains(t, out, "src/lexer.rs (added, 40 lines, missing_tests)")
	assert.Contains(t, out, "... and 1 more")
	assert.Contains(t, out, "source files changed: 3, with tests: 1, without tests: 2")
	assert.Contains(t, out, "placeholders: rust ignore=2")
	assert.NotContains(t, out, "\x1b[", "no escape codes without color")
}

func TestText_CommitScope(t *testing.T) {
	var buf bytes.Buffer
	NewText(&buf, false).Report(FromCommits(commitResult(), 0))

	out := buf.String()
	assert.Contains(t, out, "abcdef0 feat: add lexer")
	assert.Contains(t, out, "commits checked: 3, failing: 1")
	assert.NotContains(t, out, "placeholders:", "zero counts are not listed")
}

// ============================================================================
// Prometheus
// ============================================================================

func TestGauges_Set(t *testing.T) {
	reg := prometheus.NewRegistry()
	g, err := NewGauges(reg)
	require.NoError(t, err)

	g.Set(FromBranch(branchResult(), 1))
	assert.Equal(t, float64(2), testutil.ToFloat64(g.Violations))
	assert.Equal(t, float64(1), testutil.ToFloat64(g.SourceFiles.WithLabelValues("with_tests")))
	assert.Equal(t, float64(2), testutil.ToFloat64(g.SourceFiles.WithLabelValues("without_tests")))
	assert.Equal(t, float64(2), testutil.ToFloat64(g.Placeholders.WithLabelValues("rust", "ignore")))
	assert.Equal(t, 0, testutil.CollectAndCount(g.Commits))

	g.Set(FromCommits(commitResult(), 0))
	assert.Equal(t, float64(1), testutil.ToFloat64(g.Commits.WithLabelValues("failing")))
	assert.Equal(t, 0, testutil.CollectAndCount(g.SourceFiles), "switching scope resets branch gauges")
}

func TestNewGauges_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewGauges(reg)
	require.NoError(t, err)
	_, err = NewGauges(reg)
	assert.Error(t, err)
}

func TestWriteTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "testgate.prom")
	require.NoError(t, WriteTextfile(path, FromCommits(commitResult(), 0)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "testgate_correlation_violations 1")
	assert.Contains(t, out, `testgate_correlation_commits{state="checked"} 3`)
	assert.Contains(t, out, "# TYPE testgate_correlation_placeholder_tests gauge")
}

func TestWriteTextfile_ExtraGatherer(t *testing.T) {
	extra := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "testgate_extra_total", Help: "extra"})
	extra.MustRegister(c)
	c.Add(4)

	path := filepath.Join(t.TempDir(), "testgate.prom")
	require.NoError(t, WriteTextfile(path, FromBranch(branchResult(), 0), extra, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "testgate_extra_total 4")
	assert.Contains(t, string(data), "testgate_correlation_violations 2")
}
