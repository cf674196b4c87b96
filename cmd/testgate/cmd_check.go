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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/testgate/cmd/testgate/config"
	"github.com/AleutianAI/testgate/services/gate/check"
	"github.com/AleutianAI/testgate/services/gate/correlation"
	"github.com/AleutianAI/testgate/services/gate/git"
	"github.com/AleutianAI/testgate/services/gate/patterns"
	"github.com/AleutianAI/testgate/services/gate/placeholder"
	"github.com/AleutianAI/testgate/services/gate/report"
	"github.com/AleutianAI/testgate/services/gate/telemetry"
)

// baseAuto asks for main or master, whichever exists.
const baseAuto = "auto"

// checkOptions are the flags of the check command.
type checkOptions struct {
	base         string
	staged       bool
	scope        string
	level        string
	placeholders string
	limit        int
	configPath   string
	language     string

	jsonOutput bool
	quiet      bool
	noColor    bool

	logLevel    string
	logFormat   string
	metricsFile string

	traceExporter  string
	metricExporter string

	timeout time.Duration
}

func newCheckCmd(s streams) *cobra.Command {
	opts := &checkOptions{}
	cmd := &cobra.Command{
		Use:   "check [path]",
		Short: "Check that changed source files have test changes",
		Long: `Compare the working repository against a base reference (or the index
with --staged) and report source files changed without tests.

Exit codes:
  0 - passed, warned, or skipped
  1 - failed: source files without test changes
  2 - configuration or usage error`,
		Example: `  testgate check --base origin/main
  testgate check --staged
  testgate check --base main --scope commit --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runCheck(cmd, s, opts, dir)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.base, "base", "", `base reference to compare against ("auto" tries main then master)`)
	f.BoolVar(&opts.staged, "staged", false, "check staged changes against HEAD")
	f.StringVar(&opts.scope, "scope", "", "override scope: branch or commit")
	f.StringVar(&opts.level, "check", "", "override check level: off, warn, or error")
	f.StringVar(&opts.placeholders, "placeholders", "", "override placeholder policy: allow or forbid")
	f.IntVar(&opts.limit, "limit", 0, "maximum number of violations to report (0 = all)")
	f.StringVar(&opts.configPath, "config", "", "config file (default: .testgate.yaml in the repository root)")
	f.StringVar(&opts.language, "language", "", "override project language")
	f.BoolVar(&opts.jsonOutput, "json", false, "output the result as JSON")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "print only the verdict line")
	f.BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	f.StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn, or error")
	f.StringVar(&opts.logFormat, "log-format", "text", "log format: text or json")
	f.StringVar(&opts.metricsFile, "metrics-file", "", "write Prometheus textfile metrics to this path")
	f.StringVar(&opts.traceExporter, "trace-exporter", "", "trace exporter: none, stdout, or otlp (default $OTEL_TRACES_EXPORTER)")
	f.StringVar(&opts.metricExporter, "metric-exporter", "", "metric exporter: none, stdout, or prometheus (default $OTEL_METRICS_EXPORTER)")
	f.DurationVar(&opts.timeout, "timeout", 5*time.Minute, "overall timeout")
	return cmd
}

// runCheck executes one gate run and maps the verdict onto an exit code.
func runCheck(cmd *cobra.Command, s streams, opts *checkOptions, dir string) error {
	lvl, err := telemetry.ParseLevel(opts.logLevel)
	if err != nil {
		return exitWith(ExitError, err)
	}
	if opts.logFormat != "text" && opts.logFormat != "json" {
		return exitWith(ExitError, fmt.Errorf("invalid log format %q (want text or json)", opts.logFormat))
	}
	logger := telemetry.NewLogger(s.errOut, lvl, opts.logFormat == "json")
	prev := slog.Default()
	slog.SetDefault(logger)
	defer slog.SetDefault(prev)

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	telCfg := telemetry.DefaultConfig()
	telCfg.ServiceVersion = version
	telCfg.Output = s.errOut
	if opts.traceExporter != "" {
		telCfg.TraceExporter = opts.traceExporter
	}
	if opts.metricExporter != "" {
		telCfg.MetricExporter = opts.metricExporter
	}
	shutdown, err := telemetry.Init(ctx, telCfg)
	if err != nil {
		return exitWith(ExitError, fmt.Errorf("initializing telemetry: %w", err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	repo, err := git.Open(ctx, dir)
	if err != nil {
		logger.Warn("not checking", slog.String("dir", dir), slog.String("error", err.Error()))
		reason := err.Error()
		if errors.Is(err, git.ErrNotRepository) {
			reason = "not a git repository"
		}
		return finish(s, opts, check.Skip(reason))
	}
	logger = logger.With(slog.String("repo", repo.Root()))

	cfg, runCfg, err := resolveRun(ctx, repo, opts, logger)
	if err != nil {
		return exitWith(ExitError, err)
	}
	logger.Debug("resolved run",
		slog.String("level", string(runCfg.Level)),
		slog.String("scope", string(runCfg.Scope)),
		slog.String("base", runCfg.BaseRef),
		slog.Bool("staged", runCfg.Staged),
		slog.String("language", cfg.Project.Language),
	)

	// History that cannot be read skips the run; it never fails it.
	if runCfg.BaseRef != "" && !runCfg.Staged && runCfg.Level != check.LevelOff {
		if err := repo.VerifyRef(ctx, runCfg.BaseRef); err != nil {
			logger.Warn("base reference unavailable",
				slog.String("base", runCfg.BaseRef),
				slog.String("error", err.Error()))
			return finish(s, opts, check.Skip(fmt.Sprintf("base %q: %v", runCfg.BaseRef, err)))
		}
	}

	tree := os.DirFS(repo.Root())
	res, err := check.Run(ctx, runCfg, check.Deps{
		Changes: repo,
		Diffs:   repo,
		Content: placeholder.FSReader{FS: tree},
		Files:   tree,
		Logger:  logger,
	})
	if err != nil {
		return exitWith(ExitError, err)
	}

	if opts.metricsFile != "" {
		if err := report.WriteTextfile(opts.metricsFile, res.Report(), telemetry.Gatherer()); err != nil {
			logger.Error("writing metrics file", slog.String("path", opts.metricsFile), slog.String("error", err.Error()))
		}
	}
	return finish(s, opts, res)
}

// resolveRun loads configuration, applies flag overrides and compiles the
// patterns. Every error it returns is a configuration error. The base
// reference is not checked here.
func resolveRun(ctx context.Context, repo *git.Repo, opts *checkOptions, logger *slog.Logger) (config.Config, check.Config, error) {
	cfg, path, err := config.Load(repo.Root(), opts.configPath)
	if err != nil {
		return config.Config{}, check.Config{}, err
	}
	if path != "" {
		logger.Debug("loaded config", slog.String("path", path))
	}

	cc := cfg.Check.Tests.Commit
	if opts.level != "" {
		cc.Check = opts.level
	}
	if opts.scope != "" {
		cc.Scope = opts.scope
	}
	if opts.placeholders != "" {
		cc.Placeholders = opts.placeholders
	}
	if opts.limit > 0 {
		cc.Limit = opts.limit
	}
	if opts.language != "" {
		cfg.Project.Language = opts.language
	}
	cfg.Check.Tests.Commit = cc

	level, err := check.ParseLevel(cc.Check)
	if err != nil {
		return config.Config{}, check.Config{}, err
	}
	scope, err := report.ParseScope(cc.Scope)
	if err != nil {
		return config.Config{}, check.Config{}, err
	}
	policy, err := correlation.ParsePolicy(cc.Placeholders)
	if err != nil {
		return config.Config{}, check.Config{}, err
	}
	if opts.limit < 0 {
		return config.Config{}, check.Config{}, fmt.Errorf("invalid limit %d", opts.limit)
	}

	matcher, lang, err := compilePatterns(repo.Root(), cfg)
	if err != nil {
		return config.Config{}, check.Config{}, err
	}
	cfg.Project.Language = string(lang)

	base := opts.base
	if base == baseAuto {
		base = repo.DetectBase(ctx)
		if base == "" {
			logger.Info("no main or master branch found")
		}
	}
	return cfg, check.Config{
		Level:   level,
		Scope:   scope,
		Policy:  policy,
		Matcher: matcher,
		BaseRef: base,
		Staged:  opts.staged,
		Limit:   cc.Limit,
	}, nil
}

// compilePatterns resolves the pattern layers for the configured or
// detected language.
func compilePatterns(root string, cfg config.Config) (*patterns.Matcher, patterns.Language, error) {
	lang, err := projectLanguage(root, cfg.Project.Language)
	if err != nil {
		return nil, "", err
	}
	ps, err := patterns.Resolve(cfg.Layers(), lang)
	if err != nil {
		return nil, "", err
	}
	m, err := ps.Compile()
	if err != nil {
		return nil, "", err
	}
	return m, lang, nil
}

func projectLanguage(root, configured string) (patterns.Language, error) {
	if configured == "" {
		return patterns.DetectProjectLanguage(os.DirFS(root)), nil
	}
	return patterns.ParseLanguage(configured)
}

// =============================================================================
// OUTPUT
// =============================================================================

// finish prints the result and returns the exit error for its status.
func finish(s streams, opts *checkOptions, res check.Result) error {
	if opts.jsonOutput {
		if err := writeResultJSON(s.out, res); err != nil {
			return exitWith(ExitError, err)
		}
	} else {
		printResult(s.out, opts, res)
	}

	if res.Status == check.StatusFailed {
		return exitWith(ExitViolation, nil)
	}
	return nil
}

func writeResultJSON(w io.Writer, res check.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func printResult(w io.Writer, opts *checkOptions, res check.Result) {
	color := !opts.noColor
	if f, ok := w.(*os.File); ok {
		color = color && report.ColorEnabled(f)
	} else {
		color = false
	}
	t := report.NewText(w, color)

	rep := res.Report()
	switch res.Status {
	case check.StatusPassed:
		msg := "tests: passed"
		if res.Reason != "" {
			msg += " (" + res.Reason + ")"
		}
		t.Headline(report.ToneOK, msg)
	case check.StatusWarned:
		t.Headline(report.ToneWarn, fmt.Sprintf("tests: %d source file(s) without test changes", rep.Total()))
	case check.StatusFailed:
		t.Headline(report.ToneFail, fmt.Sprintf("tests: %d source file(s) without test changes", rep.Total()))
	default:
		t.Headline(report.ToneMuted, "tests: skipped ("+res.Reason+")")
	}

	if opts.quiet || res.Metrics == nil {
		return
	}
	t.Report(rep)
}

// displayPath renders p relative to the working directory when possible.
func displayPath(p string) string {
	wd, err := os.Getwd()
	if err != nil {
		return p
	}
	if rel, err := filepath.Rel(wd, p); err == nil {
		return rel
	}
	return p
}
