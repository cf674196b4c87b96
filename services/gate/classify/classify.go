// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package classify assigns each changed file to exactly one of Source,
// Test or Ignored.
//
// Precedence is fixed: exclude, then test, then source. A path matching
// both test and source patterns is a test. Classification is a pure
// function of the path and the compiled patterns, so ClassifyAll may fan
// out across workers for large change sets without changing the result.
package classify

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/testgate/services/gate/changes"
	"github.com/AleutianAI/testgate/services/gate/patterns"
)

// ParallelThreshold is the change count at which ClassifyAll switches
// to a worker pool.
const ParallelThreshold = 50

// Classification is the role of a changed file.
type Classification int

const (
	// Ignored files take no part in correlation.
	Ignored Classification = iota

	// Source files need a correlated test change.
	Source

	// Test files can satisfy source files.
	Test
)

// String returns the lowercase name of the classification.
func (c Classification) String() string {
	switch c {
	case Source:
		return "source"
	case Test:
		return "test"
	default:
		return "ignored"
	}
}

// Classified pairs a change with its classification.
type Classified struct {
	Change changes.FileChange
	Class  Classification
}

// Classify returns the classification of a single change.
//
// Description:
//
//	Evaluates exclude first (short-circuits to Ignored), then test, then
//	source. Anything else is Ignored. Deleted files are classified like
//	any other; dropping them is the caller's concern.
//
// Inputs:
//
//	change - The changed file
//	m - Compiled patterns. Must not be nil.
//
// Outputs:
//
//	Classification - Exactly one of Source, Test or Ignored
func Classify(change changes.FileChange, m *patterns.Matcher) Classification {
	switch {
	case m.IsExcluded(change.Path):
		return Ignored
	case m.IsTest(change.Path):
		return Test
	case m.IsSource(change.Path):
		return Source
	default:
		return Ignored
	}
}

// ClassifyAll classifies every change, preserving input order.
//
// Description:
//
//	Below ParallelThreshold changes the work runs inline. At or above it
//	the changes are split into one chunk per worker and classified through
//	an errgroup. Each worker writes into its own index range, so the result
//	is identical to the sequential path.
//
// Inputs:
//
//	ctx - Context for cancellation
//	in - The changes to classify
//	m - Compiled patterns
//
// Outputs:
//
//	[]Classified - One entry per input change, same order
//	error - ctx.Err() if cancelled before completion
func ClassifyAll(ctx context.Context, in []changes.FileChange, m *patterns.Matcher) ([]Classified, error) {
	out := make([]Classified, len(in))

	if len(in) < ParallelThreshold {
		for i, c := range in {
			out[i] = Classified{Change: c, Class: Classify(c, m)}
		}
		return out, nil
	}

	workers := runtime.GOMAXPROCS(0)
	chunk := (len(in) + workers - 1) / workers

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for start := 0; start < len(in); start += chunk {
		end := min(start+chunk, len(in))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := gCtx.Err(); err != nil {
					return err
				}
				out[i] = Classified{Change: in[i], Class: Classify(in[i], m)}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
