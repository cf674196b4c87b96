// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package patterns

import (
	"fmt"
	"io/fs"
	"path"
	"strings"
)

// =============================================================================
// LANGUAGE
// =============================================================================

// Language identifies a project or file language.
type Language string

const (
	LanguageGeneric    Language = "generic"
	LanguageGo         Language = "go"
	LanguageRust       Language = "rust"
	LanguageJavaScript Language = "javascript"
	LanguagePython     Language = "python"
	LanguageZig        Language = "zig"
	LanguageD          Language = "d"
)

// extensionLanguages maps file extensions to languages.
var extensionLanguages = map[string]Language{
	".go":  LanguageGo,
	".rs":  LanguageRust,
	".js":  LanguageJavaScript,
	".jsx": LanguageJavaScript,
	".ts":  LanguageJavaScript,
	".tsx": LanguageJavaScript,
	".mjs": LanguageJavaScript,
	".mts": LanguageJavaScript,
	".cjs": LanguageJavaScript,
	".py":  LanguagePython,
	".zig": LanguageZig,
	".d":   LanguageD,
}

// DetectLanguage returns the language of a file from its extension.
// Unknown extensions yield LanguageGeneric.
func DetectLanguage(p string) Language {
	if lang, ok := extensionLanguages[strings.ToLower(path.Ext(p))]; ok {
		return lang
	}
	return LanguageGeneric
}

// ParseLanguage parses a configured language name.
//
// An empty string yields LanguageGeneric; callers that want detection
// check for the empty string before calling.
func ParseLanguage(s string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return LanguageGeneric, nil
	case "generic":
		return LanguageGeneric, nil
	case "go", "golang":
		return LanguageGo, nil
	case "rust", "rs":
		return LanguageRust, nil
	case "javascript", "js", "typescript", "ts":
		return LanguageJavaScript, nil
	case "python", "py":
		return LanguagePython, nil
	default:
		return LanguageGeneric, fmt.Errorf("%w: %q", ErrUnknownLanguage, s)
	}
}

// projectMarkers lists root files that identify a project's language, in
// the order they are probed.
var projectMarkers = []struct {
	file string
	lang Language
}{
	{"Cargo.toml", LanguageRust},
	{"go.mod", LanguageGo},
	{"package.json", LanguageJavaScript},
	{"pyproject.toml", LanguagePython},
	{"setup.py", LanguagePython},
}

// DetectProjectLanguage probes fsys for well-known project marker files.
//
// Description:
//
//	Checks the root of fsys for Cargo.toml, go.mod, package.json,
//	pyproject.toml and setup.py in that order. The first hit wins.
//	Returns LanguageGeneric when no marker is present.
//
// Inputs:
//
//	fsys - Filesystem rooted at the project root. May be nil.
//
// Outputs:
//
//	Language - The detected project language
func DetectProjectLanguage(fsys fs.FS) Language {
	if fsys == nil {
		return LanguageGeneric
	}
	for _, m := range projectMarkers {
		if _, err := fs.Stat(fsys, m.file); err == nil {
			return m.lang
		}
	}
	return LanguageGeneric
}
