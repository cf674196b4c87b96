// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package check

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/testgate/services/gate/report"
)

// Package-level tracer and meter for gate runs.
var (
	tracer = otel.Tracer("testgate.check")
	meter  = otel.Meter("testgate.check")
)

// Metrics for gate runs.
var (
	runLatency      metric.Float64Histogram
	runTotal        metric.Int64Counter
	violationsFound metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		runLatency, err = meter.Float64Histogram(
			"gate_run_duration_seconds",
			metric.WithDescription("Duration of test correlation runs"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		runTotal, err = meter.Int64Counter(
			"gate_runs_total",
			metric.WithDescription("Total number of test correlation runs"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		violationsFound, err = meter.Int64Histogram(
			"gate_violations_found",
			metric.WithDescription("Number of violations found per run"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startRunSpan creates the root span of a run.
func startRunSpan(ctx context.Context, runID string, scope report.Scope, level Level) (context.Context, trace.Span) {
	return tracer.Start(ctx, "check.Run",
		trace.WithAttributes(
			attribute.String("check.run_id", runID),
			attribute.String("check.scope", string(scope)),
			attribute.String("check.level", string(level)),
		),
	)
}

// setRunSpanResult sets the result attributes on a run span.
func setRunSpanResult(span trace.Span, res Result) {
	span.SetAttributes(
		attribute.String("check.status", string(res.Status)),
		attribute.Int("check.violations", len(res.Violations)+res.Omitted),
	)
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// recordRunMetrics records metrics for a finished run.
func recordRunMetrics(ctx context.Context, res Result, scope report.Scope, duration time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("scope", string(scope)),
		attribute.String("status", string(res.Status)),
	)
	runLatency.Record(ctx, duration.Seconds(), attrs)
	runTotal.Add(ctx, 1, attrs)

	if res.Metrics != nil {
		violationsFound.Record(ctx, int64(len(res.Violations)+res.Omitted), metric.WithAttributes(
			attribute.String("scope", string(scope)),
		))
	}
}
