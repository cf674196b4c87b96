// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads and validates the testgate configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/testgate/services/gate/patterns"
)

// FileNames are probed in order when no explicit path is given.
var FileNames = []string{".testgate.yaml", ".testgate.yml"}

// ErrInvalidConfig wraps parse and validation failures.
var ErrInvalidConfig = errors.New("invalid configuration")

// validate is the validator instance for configuration types.
// Initialized in init() with custom validators.
var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = validate.RegisterValidation("language", validateLanguage)
}

// validateLanguage accepts any name patterns.ParseLanguage understands.
func validateLanguage(fl validator.FieldLevel) bool {
	_, err := patterns.ParseLanguage(fl.Field().String())
	return err == nil
}

// Load reads the configuration for a repository.
//
// # Description
//
// With an explicit path the file must exist. Otherwise FileNames are
// probed in dir and a missing file yields DefaultConfig. Values absent
// from the file keep their defaults.
//
// # Inputs
//
//   - dir: Repository root used for probing.
//   - path: Explicit config file, or empty.
//
// # Outputs
//
//   - Config: The validated configuration.
//   - string: The file that was loaded, or empty for defaults.
//   - error: Read failures, or ErrInvalidConfig.
func Load(dir, path string) (Config, string, error) {
	if path == "" {
		for _, name := range FileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
		if path == "" {
			return DefaultConfig(), "", nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, "", fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, "", fmt.Errorf("%s: %w", path, err)
	}
	return cfg, path, nil
}

// Parse decodes and validates YAML configuration. Unknown keys are
// rejected so typos do not silently fall back to defaults.
func Parse(data []byte) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field values against their allowed sets.
func Validate(cfg Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}

// describe renders one validation failure with its YAML path.
func describe(fe validator.FieldError) string {
	field := yamlPath(fe.Namespace())
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("%s: %q is not one of [%s]", field, fe.Value(), fe.Param())
	case "language":
		return fmt.Sprintf("%s: unknown language %q", field, fe.Value())
	case "gte":
		return fmt.Sprintf("%s: must be >= %s", field, fe.Param())
	case "required":
		return fmt.Sprintf("%s: must not be empty", field)
	default:
		return fmt.Sprintf("%s: failed %s", field, fe.Tag())
	}
}

// yamlPath drops the root type name from a validator namespace.
func yamlPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}
