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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/AleutianAI/testgate/services/gate/changes"
	"github.com/AleutianAI/testgate/services/gate/patterns"
	"github.com/AleutianAI/testgate/services/gate/placeholder"
)

// =============================================================================
// JSON
// =============================================================================

// WriteJSON writes the report as indented JSON followed by a newline.
func WriteJSON(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return nil
}

// =============================================================================
// TEXT
// =============================================================================

var (
	colorOK    = lipgloss.Color("#2CD7C7")
	colorWarn  = lipgloss.Color("#F4D03F")
	colorFail  = lipgloss.Color("#E74C3C")
	colorMuted = lipgloss.Color("#2C4A54")
	colorTitle = lipgloss.Color("#20B9B4")
)

// Tone selects the color and icon of a headline.
type Tone int

const (
	ToneOK Tone = iota
	ToneWarn
	ToneFail
	ToneMuted
)

func (t Tone) icon() string {
	switch t {
	case ToneOK:
		return "✓"
	case ToneWarn:
		return "⚠"
	case ToneFail:
		return "✗"
	default:
		return "○"
	}
}

func (t Tone) color() lipgloss.Color {
	switch t {
	case ToneOK:
		return colorOK
	case ToneWarn:
		return colorWarn
	case ToneFail:
		return colorFail
	default:
		return colorMuted
	}
}

// ColorEnabled reports whether f is a terminal and NO_COLOR is unset.
func ColorEnabled(f *os.File) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Text renders reports for humans.
//
// # Thread Safety
//
// Not safe for concurrent use; writes go straight to the underlying writer.
type Text struct {
	w     io.Writer
	color bool
}

// NewText creates a text renderer. Styling is applied only when color is
// true, so output to files and pipes stays plain.
func NewText(w io.Writer, color bool) *Text {
	return &Text{w: w, color: color}
}

func (t *Text) style(s lipgloss.Style, text string) string {
	if !t.color {
		return text
	}
	return s.Render(text)
}

// Headline writes one status line with an icon.
func (t *Text) Headline(tone Tone, msg string) {
	icon := t.style(lipgloss.NewStyle().Foreground(tone.color()), tone.icon())
	fmt.Fprintf(t.w, "%s %s\n", icon, t.style(lipgloss.NewStyle().Bold(true), msg))
}

// Report writes the violations and metrics of r.
func (t *Text) Report(r Report) {
	bold := lipgloss.NewStyle().Bold(true)
	muted := lipgloss.NewStyle().Foreground(colorMuted)
	accent := lipgloss.NewStyle().Foreground(colorTitle)

	for _, v := range r.Violations {
		fmt.Fprintf(t.w, "  %s %s\n",
			t.style(bold, v.File),
			t.style(muted, fmt.Sprintf("(%s, %d lines, %s)", v.ChangeType, v.LinesChanged, v.Type)))
		if v.Commit != "" {
			fmt.Fprintf(t.w, "    %s %s\n", t.style(accent, changes.ShortHash(v.Commit)), v.CommitMessage)
		}
		fmt.Fprintf(t.w, "    → %s\n", v.Advice)
	}
	if r.Omitted > 0 {
		fmt.Fprintf(t.w, "  %s\n", t.style(muted, fmt.Sprintf("... and %d more", r.Omitted)))
	}

	m := r.Metrics
	if m.Scope == ScopeCommit {
		fmt.Fprintf(t.w, "  %s commits checked: %d, failing: %d\n",
			t.style(accent, "commit scope:"), m.CommitsChecked, m.CommitsFailing)
	} else {
		fmt.Fprintf(t.w, "  %s source files changed: %d, with tests: %d, without tests: %d\n",
			t.style(accent, "branch scope:"), m.SourceFilesChanged, m.WithTestChanges, m.WithoutTestChanges)
	}
	if line := placeholderLine(m.Placeholders); line != "" {
		fmt.Fprintf(t.w, "  %s %s\n", t.style(accent, "placeholders:"), line)
	}
}

// placeholderLine lists non-zero placeholder counts, sorted by language
// then kind. Empty when there are none.
func placeholderLine(c placeholder.Counts) string {
	langs := make([]string, 0, len(c))
	for lang := range c {
		langs = append(langs, string(lang))
	}
	sort.Strings(langs)

	var parts []string
	for _, lang := range langs {
		kinds := c[patterns.Language(lang)]
		names := make([]string, 0, len(kinds))
		for k, n := range kinds {
			if n > 0 {
				names = append(names, string(k))
			}
		}
		sort.Strings(names)
		for _, k := range names {
			parts = append(parts, fmt.Sprintf("%s %s=%d", lang, k, kinds[placeholder.Kind(k)]))
		}
	}
	return strings.Join(parts, ", ")
}
