// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.


package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/testgate/cmd/testgate/config"
	"github.com/AleutianAI/testgate/services/gate/git"
	"github.com/AleutianAI/testgate/services/gate/locate"
	"github.com/AleutianAI/testgate/services/gate/patterns"
)

// patternsView is the JSON shape of the patterns command.
type patternsView struct {
	Root     string              `json:"root"`
	Config   string              `json:"config,omitempty"`
	Language patterns.Language   `json:"language"`
	Patterns patterns.PatternSet `json:"patterns"`
	Tiers    map[string]string   `json:"tiers"`
}

func newPatternsCmd(s streams) *cobra.Command {
	var (
		configPath string
		language   string
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "patterns [path]",
		Short: "Show the effective source, test and exclude patterns",
		Long: `Resolve the pattern layers for a project and print the effective globs,
naming the layer (check, project, or default) each group came from.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			root := dir
			if repo, err := git.Open(cmd.Context(), dir); err == nil {
				root = repo.Root()
			}

			cfg, path, err := config.Load(root, configPath)
			if err != nil {
				return exitWith(ExitError, err)
			}
			if language != "" {
				cfg.Project.Language = language
			}
			lang, err := projectLanguage(root, cfg.Project.Language)
			if err != nil {
				return exitWith(ExitError, err)
			}
			ps, err := patterns.Resolve(cfg.Layers(), lang)
			if err != nil {
				return exitWith(ExitError, err)
			}

			view := patternsView{
				Root:     root,
				Config:   path,
				Language: lang,
				Patterns: ps,
				Tiers: map[string]string{
					"source":  ps.Tiers.Source.String(),
					"test":    ps.Tiers.Test.String(),
					"exclude": ps.Tiers.Exclude.String(),
				},
			}
			if jsonOutput {
				enc := json.NewEncoder(s.out)
				enc.SetIndent("", "  ")
				return enc.Encode(view)
			}
			printPatterns(s.out, view)
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "config file (default: .testgate.yaml in the repository root)")
	cmd.Flags().StringVar(&language, "language", "", "override project language")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func printPatterns(w io.Writer, v patternsView) {
	fmt.Fprintf(w, "root:     %s\n", displayPath(v.Root))
	if v.Config != "" {
		fmt.Fprintf(w, "config:   %s\n", displayPath(v.Config))
	}
	fmt.Fprintf(w, "language: %s\n", v.Language)
	group := func(name string, globs []string) {
		fmt.Fprintf(w, "%s (%s):\n", name, v.Tiers[name])
		if len(globs) == 0 {
			fmt.Fprintln(w, "  (none)")
		}
		for _, g := range globs {
			fmt.Fprintf(w, "  %s\n", g)
		}
	}
	group("source", v.Patterns.Source)
	group("test", v.Patterns.Test)
	group("exclude", v.Patterns.Exclude)
}

// =============================================================================
// CANDIDATES
// =============================================================================

func newCandidatesCmd(s streams) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "candidates <source>...",
		Short: "List the conventional test locations for source files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			type entry struct {
				Source     string   `json:"source"`
				Candidates []string `json:"candidates"`
				Advice     string   `json:"advice"`
			}
			entries := make([]entry, 0, len(args))
			for _, a := range args {
				src := filepath.ToSlash(a)
				entries = append(entries, entry{
					Source:     src,
					Candidates: locate.CandidateLocations(src),
					Advice:     locate.Advice(src),
				})
			}

			if jsonOutput {
				enc := json.NewEncoder(s.out)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}
			for _, e := range entries {
				fmt.Fprintf(s.out, "%s\n", e.Source)
				for _, c := range e.Candidates {
					fmt.Fprintf(s.out, "  %s\n", c)
				}
				fmt.Fprintf(s.out, "  → %s\n", strings.TrimSpace(e.Advice))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}
