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

var jsTestFuncs = map[string]bool{"test": true, "it": true}

var jsPlaceholderProps = map[string]Kind{
	"todo":  KindTodo,
	"skip":  KindSkip,
	"fixme": KindFixme,
}

func scanJS(root *sitter.Node, src []byte, r *FileReport) {
	walk(root, func(n *sitter.Node) bool {
		if n.Type() != "call_expression" {
			return true
		}
		fn := n.ChildByFieldName("function")
		if fn == nil {
			return true
		}

		name := jsFirstStringArg(n, src)
		switch fn.Type() {
		case "identifier":
			switch text(fn, src) {
			case "test", "it":
				r.Tests++
			case "xit", "xtest":
				r.Tests++
				r.Placeholders = append(r.Placeholders, Placeholder{Name: name, Kind: KindSkip, Line: line(n)})
			case "xdescribe":
				r.Placeholders = append(r.Placeholders, Placeholder{Name: name, Kind: KindSkip, Line: line(n), Suite: true})
			}
		case "member_expression":
			obj := text(fn.ChildByFieldName("object"), src)
			prop := text(fn.ChildByFieldName("property"), src)
			if jsTestFuncs[obj] {
				r.Tests++
			}
			if kind, ok := jsPlaceholderProps[prop]; ok && (jsTestFuncs[obj] || obj == "describe") {
				r.Placeholders = append(r.Placeholders, Placeholder{
					Name:  name,
					Kind:  kind,
					Line:  line(n),
					Suite: obj == "describe",
				})
			}
		}
		return true
	})
}

// jsFirstStringArg returns the first argument when it is a string or
// template literal, without quotes.
func jsFirstStringArg(call *sitter.Node, src []byte) string {
	args := namedChildren(call.ChildByFieldName("arguments"))
	if len(args) == 0 {
		return ""
	}
	switch args[0].Type() {
	case "string", "template_string":
		return strings.Trim(text(args[0], src), "'\"`")
	default:
		return ""
	}
}
