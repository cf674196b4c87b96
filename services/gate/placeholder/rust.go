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

// Rust attributes are siblings of the item they decorate, so each item
// container (the file and every inline mod body) is scanned in order
// while the pending attributes are remembered.
func scanRust(root *sitter.Node, src []byte, r *FileReport) {
	containers := []*sitter.Node{root}
	for len(containers) > 0 {
		cur := containers[len(containers)-1]
		containers = containers[:len(containers)-1]

		var isTest, ignored bool
		for _, item := range namedChildren(cur) {
			switch item.Type() {
			case "attribute_item":
				switch rustAttrName(text(item, src)) {
				case "test":
					isTest = true
				case "ignore":
					ignored = true
				}
				continue
			case "function_item":
				if isTest {
					rustTest(item, src, ignored, r)
				}
			case "mod_item":
				if body := item.ChildByFieldName("body"); body != nil {
					containers = append(containers, body)
				}
			}
			isTest, ignored = false, false
		}
	}
}

func rustTest(fn *sitter.Node, src []byte, ignored bool, r *FileReport) {
	name := text(fn.ChildByFieldName("name"), src)
	r.Tests++

	if ignored {
		r.Placeholders = append(r.Placeholders, Placeholder{Name: name, Kind: KindIgnore, Line: line(fn)})
		return
	}

	todo := false
	walk(fn.ChildByFieldName("body"), func(n *sitter.Node) bool {
		if todo {
			return false
		}
		if n.Type() == "macro_invocation" {
			switch text(n.ChildByFieldName("macro"), src) {
			case "todo", "unimplemented":
				todo = true
				return false
			}
		}
		return true
	})
	if todo {
		r.Placeholders = append(r.Placeholders, Placeholder{Name: name, Kind: KindTodo, Line: line(fn)})
	}
}

// rustAttrName reduces `#[tokio::test(flavor = "x")]` to "test" and
// `#[ignore = "slow"]` to "ignore".
func rustAttrName(attr string) string {
	attr = strings.TrimPrefix(strings.TrimSpace(attr), "#")
	attr = strings.TrimPrefix(attr, "!")
	attr = strings.TrimSuffix(strings.TrimPrefix(attr, "["), "]")
	if i := strings.IndexAny(attr, " =("); i >= 0 {
		attr = attr[:i]
	}
	if i := strings.LastIndex(attr, "::"); i >= 0 {
		attr = attr[i+2:]
	}
	return strings.TrimSpace(attr)
}
