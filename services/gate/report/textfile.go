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
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// =============================================================================
// Metric Definitions
// =============================================================================

const (
	metricsNamespace = "testgate"
	metricsSubsystem = "correlation"
)

// Gauges mirrors one report as Prometheus gauges, for node_exporter's
// textfile collector or any other registry.
//
// # Fields
//
//   - Violations: Violations found, including omitted ones.
//   - SourceFiles: Branch scope source files by state (with_tests, without_tests).
//   - Commits: Commit scope commits by state (checked, failing).
//   - Placeholders: Placeholder tests by language and kind.
type Gauges struct {
	Violations   prometheus.Gauge
	SourceFiles  *prometheus.GaugeVec
	Commits      *prometheus.GaugeVec
	Placeholders *prometheus.GaugeVec
}

// NewGauges creates the gauges and registers them with reg.
func NewGauges(reg prometheus.Registerer) (*Gauges, error) {
	g := &Gauges{
		Violations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "violations",
			Help:      "Source changes without correlated test changes",
		}),
		SourceFiles: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "source_files",
			Help:      "Changed source files by correlation state (branch scope)",
		}, []string{"state"}),
		Commits: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "commits",
			Help:      "Commits by correlation state (commit scope)",
		}, []string{"state"}),
		Placeholders: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "placeholder_tests",
			Help:      "Placeholder tests in changed test files by language and kind",
		}, []string{"language", "kind"}),
	}
	for _, c := range []prometheus.Collector{g.Violations, g.SourceFiles, g.Commits, g.Placeholders} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("registering report gauges: %w", err)
		}
	}
	return g, nil
}

// Set replaces the gauge values with those of r.
func (g *Gauges) Set(r Report) {
	g.Violations.Set(float64(r.Total()))

	g.SourceFiles.Reset()
	g.Commits.Reset()
	m := r.Metrics
	if m.Scope == ScopeCommit {
		g.Commits.WithLabelValues("checked").Set(float64(m.CommitsChecked))
		g.Commits.WithLabelValues("failing").Set(float64(m.CommitsFailing))
	} else {
		g.SourceFiles.WithLabelValues("with_tests").Set(float64(m.WithTestChanges))
		g.SourceFiles.WithLabelValues("without_tests").Set(float64(m.WithoutTestChanges))
	}

	g.Placeholders.Reset()
	for lang, kinds := range m.Placeholders {
		for kind, n := range kinds {
			g.Placeholders.WithLabelValues(string(lang), string(kind)).Set(float64(n))
		}
	}
}

// WriteTextfile writes r to path in the Prometheus text exposition format,
// together with the metrics of any extra gatherers. The file is written
// atomically.
func WriteTextfile(path string, r Report, extra ...prometheus.Gatherer) error {
	reg := prometheus.NewRegistry()
	g, err := NewGauges(reg)
	if err != nil {
		return err
	}
	g.Set(r)

	gatherers := prometheus.Gatherers{reg}
	for _, e := range extra {
		if e != nil {
			gatherers = append(gatherers, e)
		}
	}
	if err := prometheus.WriteToTextfile(path, gatherers); err != nil {
		return fmt.Errorf("writing metrics textfile %s: %w", path, err)
	}
	return nil
}
