// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package placeholder

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

var pySkipDecorators = map[string]bool{
	"pytest.mark.skip": true,
	"unittest.skip":    true,
	"skip":             true,
}

var pySkipCalls = map[string]bool{
	"pytest.skip":   true,
	"self.skipTest": true,
}

func scanPython(root *sitter.Node, src []byte, r *FileReport) {
	walk(root, func(n *sitter.Node) bool {
		if n.Type() != "function_definition" {
			return true
		}
		name := text(n.ChildByFieldName("name"), src)
		if !strings.HasPrefix(name, "test") {
			return true
		}
		r.Tests++

		if kind, ok := pyPlaceholderKind(n, src); ok {
			r.Placeholders = append(r.Placeholders, Placeholder{Name: name, Kind: kind, Line: line(n)})
		}
		// Nested defs inside a test are helpers, not tests.
		return false
	})
}

func pyPlaceholderKind(fn *sitter.Node, src []byte) (Kind, bool) {
	if parent := fn.Parent(); parent != nil && parent.Type() == "decorated_definition" {
		for _, d := range namedChildren(parent) {
			if d.Type() == "decorator" && pySkipDecorators[pyDecoratorName(text(d, src))] {
				return KindSkip, true
			}
		}
	}

	stmts := namedChildren(fn.ChildByFieldName("body"))
	if len(stmts) > 0 && isPyDocstring(stmts[0]) {
		stmts = stmts[1:]
	}
	if len(stmts) == 0 {
		return KindEmpty, true
	}

	for _, s := range stmts {
		if s.Type() != "expression_statement" {
			continue
		}
		inner := namedChildren(s)
		if len(inner) == 1 && inner[0].Type() == "call" &&
			pySkipCalls[text(inner[0].ChildByFieldName("function"), src)] {
			return KindSkip, true
		}
	}

	first := stmts[0]
	if first.Type() == "raise_statement" && strings.Contains(text(first, src), "NotImplementedError") {
		return KindTodo, true
	}

	for _, s := range stmts {
		if !isPyNoop(s) {
			return "", false
		}
	}
	return KindEmpty, true
}

// pyDecoratorName reduces `@pytest.mark.skip(reason="x")` to
// "pytest.mark.skip".
func pyDecoratorName(d string) string {
	d = strings.TrimPrefix(strings.TrimSpace(d), "@")
	if i := strings.IndexByte(d, '('); i >= 0 {
		d = d[:i]
	}
	return strings.TrimSpace(d)
}

func isPyDocstring(n *sitter.Node) bool {
	if n.Type() != "expression_statement" {
		return false
	}
	inner := namedChildren(n)
	return len(inner) == 1 && inner[0].Type() == "string"
}

func isPyNoop(n *sitter.Node) bool {
	switch n.Type() {
	case "pass_statement":
		return true
	case "expression_statement":
		inner := namedChildren(n)
		return len(inner) == 1 && inner[0].Type() == "ellipsis"
	default:
		return false
	}
}
