// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package placeholder finds tests that exist structurally but assert
// nothing: skipped, ignored, marked todo, or empty.
//
// Files are parsed with tree-sitter; the per-language rules are:
//
//	Go          t.Skip/Skipf/SkipNow as a top-level statement of a Test
//	            function (skip), or an empty Test body (empty)
//	Rust        #[test] with #[ignore] (ignore), todo!() or
//	            unimplemented!() inside a #[test] body (todo)
//	JS/TS       test|it|describe .todo/.skip/.fixme, xit, xtest,
//	            xdescribe (todo, skip, fixme)
//	Python      @pytest.mark.skip, @unittest.skip, pytest.skip() or
//	            self.skipTest() in a test body (skip),
//	            raise NotImplementedError (todo), pass or ... only (empty)
//
// Placeholder counts are reported as metrics. They only influence the
// verdict under the forbid policy.
package placeholder

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/AleutianAI/testgate/services/gate/patterns"
)

// ErrParse is returned when tree-sitter cannot produce a tree.
var ErrParse = errors.New("placeholder: parse failed")

// =============================================================================
// TYPES
// =============================================================================

// Kind classifies a placeholder test.
type Kind string

const (
	KindIgnore Kind = "ignore"
	KindTodo   Kind = "todo"
	KindSkip   Kind = "skip"
	KindFixme  Kind = "fixme"
	KindEmpty  Kind = "empty"
)

// Placeholder is one placeholder test or suite.
type Placeholder struct {
	// Name is the test name, or the description string for JS tests.
	Name string `json:"name"`

	Kind Kind `json:"kind"`

	// Line is 1-based.
	Line int `json:"line"`

	// Suite is true for a skipped or todo describe block rather than a
	// single test.
	Suite bool `json:"suite,omitempty"`
}

// FileReport is the analysis of one test file.
type FileReport struct {
	Path     string            `json:"path"`
	Language patterns.Language `json:"language"`

	// Tests is the number of test cases found, placeholders included.
	Tests int `json:"tests"`

	Placeholders []Placeholder `json:"placeholders,omitempty"`
}

// PlaceholderOnly reports whether the file has tests and every one of
// them is a placeholder. A file with no recognizable tests is not
// placeholder-only.
func (r FileReport) PlaceholderOnly() bool {
	if r.Tests == 0 {
		return false
	}
	n := 0
	for _, p := range r.Placeholders {
		if !p.Suite {
			n++
		}
	}
	return n >= r.Tests
}

// =============================================================================
// ANALYZE
// =============================================================================

// Supported reports whether placeholder detection exists for p.
func Supported(p string) bool {
	return grammarFor(p) != nil
}

// Analyze parses content and reports its tests and placeholders.
//
// Description:
//
//	Selects the tree-sitter grammar from the extension of p. Unsupported
//	extensions produce an empty report without error.
//
// Inputs:
//
//	ctx - Context for cancellation of the parse
//	p - Path of the file, selects the grammar
//	content - File content
//
// Outputs:
//
//	FileReport - Tests and placeholders found
//	error - ErrParse if tree-sitter fails
//
// Thread Safety: Safe for concurrent use. Each call owns its parser.
func Analyze(ctx context.Context, p string, content []byte) (FileReport, error) {
	report := FileReport{Path: p, Language: patterns.DetectLanguage(p)}

	lang := grammarFor(p)
	if lang == nil {
		return report, nil
	}

	parser := sitter.NewParser()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return report, fmt.Errorf("%w: %s: %v", ErrParse, p, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	switch report.Language {
	case patterns.LanguageGo:
		scanGo(root, content, &report)
	case patterns.LanguageRust:
		scanRust(root, content, &report)
	case patterns.LanguageJavaScript:
		scanJS(root, content, &report)
	case patterns.LanguagePython:
		scanPython(root, content, &report)
	}
	return report, nil
}

func grammarFor(p string) *sitter.Language {
	switch strings.ToLower(path.Ext(p)) {
	case ".go":
		return golang.GetLanguage()
	case ".rs":
		return rust.GetLanguage()
	case ".js", ".jsx", ".mjs", ".cjs":
		return javascript.GetLanguage()
	case ".ts", ".mts", ".cts":
		return typescript.GetLanguage()
	case ".tsx":
		return tsx.GetLanguage()
	case ".py":
		return python.GetLanguage()
	default:
		return nil
	}
}

// =============================================================================
// NODE HELPERS
// =============================================================================

func text(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	start, end := n.StartByte(), n.EndByte()
	if end > uint32(len(src)) {
		end = uint32(len(src))
	}
	if start > end {
		return ""
	}
	return string(src[start:end])
}

func line(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

// namedChildren returns n's named children, skipping comments.
func namedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	count := int(n.NamedChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		c := n.NamedChild(i)
		if c == nil || c.Type() == "comment" || c.Type() == "line_comment" || c.Type() == "block_comment" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// walk visits n and its descendants depth-first with an explicit stack.
// Returning false from visit skips the node's children.
func walk(n *sitter.Node, visit func(*sitter.Node) bool) {
	if n == nil {
		return
	}
	stack := []*sitter.Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !visit(cur) {
			continue
		}
		for i := int(cur.ChildCount()) - 1; i >= 0; i-- {
			if c := cur.Child(i); c != nil {
				stack = append(stack, c)
			}
		}
	}
}
