// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"github.com/AleutianAI/testgate/services/gate/patterns"
)

// Config is the contents of .testgate.yaml.
type Config struct {
	Project ProjectConfig `yaml:"project"`
	Check   CheckConfig   `yaml:"check"`
}

// ProjectConfig holds project-wide settings shared by every check.
type ProjectConfig struct {
	// Language selects the default patterns. Empty means detect from
	// marker files in the repository root.
	Language string `yaml:"language" validate:"omitempty,language"`

	Source  []string `yaml:"source" validate:"dive,required"`
	Tests   []string `yaml:"tests" validate:"dive,required"`
	Exclude []string `yaml:"exclude" validate:"dive,required"`
}

type CheckConfig struct {
	Tests TestsConfig `yaml:"tests"`
}

type TestsConfig struct {
	Commit CommitConfig `yaml:"commit"`
}

// CommitConfig configures the test correlation check.
type CommitConfig struct {
	// Check is off, warn, or error.
	Check string `yaml:"check" validate:"omitempty,oneof=off warn error"`

	// Scope is branch or commit.
	Scope string `yaml:"scope" validate:"omitempty,oneof=branch commit"`

	// Placeholders is allow or forbid.
	Placeholders string `yaml:"placeholders" validate:"omitempty,oneof=allow forbid"`

	SourcePatterns []string `yaml:"source_patterns" validate:"dive,required"`
	TestPatterns   []string `yaml:"test_patterns" validate:"dive,required"`
	Exclude        []string `yaml:"exclude" validate:"dive,required"`

	// Limit caps reported violations. Zero means no cap.
	Limit int `yaml:"limit" validate:"gte=0"`
}

// DefaultConfig returns the configuration used without a file.
func DefaultConfig() Config {
	return Config{
		Check: CheckConfig{Tests: TestsConfig{Commit: CommitConfig{
			Check:        "error",
			Scope:        "branch",
			Placeholders: "allow",
		}}},
	}
}

// Layers returns the configured pattern layers.
func (c Config) Layers() patterns.Layers {
	cc := c.Check.Tests.Commit
	return patterns.Layers{
		Check: patterns.Groups{
			Source:  cc.SourcePatterns,
			Test:    cc.TestPatterns,
			Exclude: cc.Exclude,
		},
		Project: patterns.Groups{
			Source:  c.Project.Source,
			Test:    c.Project.Tests,
			Exclude: c.Project.Exclude,
		},
	}
}
