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
	"unicode"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
)

var goSkipMethods = map[string]bool{
	"Skip":    true,
	"Skipf":   true,
	"SkipNow": true,
}

func scanGo(root *sitter.Node, src []byte, r *FileReport) {
	for _, decl := range namedChildren(root) {
		if decl.Type() != "function_declaration" {
			continue
		}
		name := text(decl.ChildByFieldName("name"), src)
		if !isGoTestName(name) {
			continue
		}
		r.Tests++

		body := decl.ChildByFieldName("body")
		stmts := goStatements(body)
		if len(stmts) == 0 {
			r.Placeholders = append(r.Placeholders, Placeholder{Name: name, Kind: KindEmpty, Line: line(decl)})
			continue
		}
		for _, s := range stmts {
			if isGoSkipCall(s, src) {
				r.Placeholders = append(r.Placeholders, Placeholder{Name: name, Kind: KindSkip, Line: line(decl)})
				break
			}
		}
	}
}

// isGoTestName applies go test's rule: "Test" followed by nothing or by
// a non-lowercase rune. TestMain is not a test.
func isGoTestName(name string) bool {
	const prefix = "Test"
	if len(name) < len(prefix) || name[:len(prefix)] != prefix || name == "TestMain" {
		return false
	}
	if len(name) == len(prefix) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(name[len(prefix):])
	return !unicode.IsLower(r)
}

// goStatements returns the top-level statements of a block. Newer
// grammars wrap them in a statement_list node.
func goStatements(block *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for _, c := range namedChildren(block) {
		if c.Type() == "statement_list" {
			out = append(out, namedChildren(c)...)
			continue
		}
		out = append(out, c)
	}
	return out
}

// isGoSkipCall matches `x.Skip(...)`, `x.Skipf(...)` and `x.SkipNow()`.
func isGoSkipCall(stmt *sitter.Node, src []byte) bool {
	if stmt.Type() != "expression_statement" {
		return false
	}
	children := namedChildren(stmt)
	if len(children) == 0 || children[0].Type() != "call_expression" {
		return false
	}
	fn := children[0].ChildByFieldName("function")
	if fn == nil || fn.Type() != "selector_expression" {
		return false
	}
	return goSkipMethods[text(fn.ChildByFieldName("field"), src)]
}
