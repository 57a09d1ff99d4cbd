// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pipeline runs the full analysis: aggregation, per-size
// efficiency tables and per-subset portability scores.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/perfport/aggregate"
	"golang.org/x/perfport/efficiency"
	"golang.org/x/perfport/peak"
	"golang.org/x/perfport/portability"
	"golang.org/x/perfport/trial"
)

// Input describes one analysis.
type Input struct {
	// Trials are raw measurements to aggregate. May be nil.
	Trials *trial.Store
	// Results are measurements that arrived already aggregated.
	// They are analyzed together with the aggregated Trials.
	Results []aggregate.Result

	// Peaks is the hardware peak table. If nil, peak.STREAM is
	// used.
	Peaks *peak.Table
	// Kernels fixes the set and order of kernels. If empty, every
	// kernel in the data is used: those of Trials in first-seen
	// order, then any new ones from Results.
	Kernels []string
	// Sizes lists the problem sizes to analyze. If empty, every
	// size in the data is used, in ascending order.
	Sizes []int
	// Subsets lists the hardware subsets to score. If empty, the
	// all, cpus and gpus subsets of Peaks are used.
	Subsets []portability.Subset

	// Logger receives progress. If nil, the standard logrus logger
	// is used.
	Logger logrus.FieldLogger
}

// A SizeOutput is the analysis at one problem size.
type SizeOutput struct {
	Size       int
	Efficiency *efficiency.Table
	// Scores is ordered by subset, then kernel.
	Scores []portability.Score
}

// Output is the result of Run.
type Output struct {
	// Results holds the aggregated Trials followed by the input
	// Results.
	Results []aggregate.Result
	Sizes   []SizeOutput
}

// Size returns the analysis at size.
func (o *Output) Size(size int) (*SizeOutput, bool) {
	for i := range o.Sizes {
		if o.Sizes[i].Size == size {
			return &o.Sizes[i], true
		}
	}
	return nil, false
}

// Run performs the analysis described by in. Each problem size is
// analyzed in its own goroutine. The first error, in size order, is
// returned.
func Run(ctx context.Context, in Input) (*Output, error) {
	log := in.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	peaks := in.Peaks
	if peaks == nil {
		peaks = peak.STREAM()
	}
	subsets := in.Subsets
	if len(subsets) == 0 {
		subsets = []portability.Subset{portability.All(peaks), portability.CPUs(peaks), portability.GPUs(peaks)}
	}

	var trials []trial.Record
	kernels := in.Kernels
	if in.Trials != nil {
		trials = in.Trials.All()
		if len(kernels) == 0 {
			kernels = in.Trials.Kernels()
		}
	}
	results, err := aggregate.Aggregate(trials)
	if err != nil {
		return nil, fmt.Errorf("aggregating trials: %w", err)
	}
	results = append(results, in.Results...)
	if len(in.Kernels) == 0 {
		kernels = appendNew(kernels, in.Results)
	}
	log.WithFields(logrus.Fields{"trials": len(trials), "results": len(results)}).Debug("aggregated")

	sizes := in.Sizes
	if len(sizes) == 0 {
		sizes = sizesOf(results)
	}
	if len(sizes) == 0 {
		return nil, fmt.Errorf("no results to analyze")
	}

	calc := efficiency.NewCalculator(peaks, kernels...)
	out := &Output{Results: results, Sizes: make([]SizeOutput, len(sizes))}
	errs := make([]error, len(sizes))
	var wg sync.WaitGroup
	for i, size := range sizes {
		wg.Add(1)
		go func(i, size int) {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return
			}
			so := &out.Sizes[i]
			so.Size = size
			if so.Efficiency, errs[i] = calc.Compute(results, size); errs[i] != nil {
				errs[i] = fmt.Errorf("size %d: %w", size, errs[i])
				return
			}
			if so.Scores, errs[i] = portability.ComputeAll(so.Efficiency, subsets...); errs[i] != nil {
				errs[i] = fmt.Errorf("size %d: %w", size, errs[i])
				return
			}
			log.WithField("size", size).Debugf("scored %d kernels over %d subsets", len(so.Efficiency.Kernels), len(subsets))
		}(i, size)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// appendNew appends the kernels of results that are not yet in
// kernels, in first-seen order.
func appendNew(kernels []string, results []aggregate.Result) []string {
	seen := make(map[string]bool, len(kernels))
	for _, k := range kernels {
		seen[k] = true
	}
	for _, r := range results {
		if !seen[r.Kernel] {
			seen[r.Kernel] = true
			kernels = append(kernels, r.Kernel)
		}
	}
	return kernels
}

func sizesOf(results []aggregate.Result) []int {
	seen := make(map[int]bool)
	var sizes []int
	for _, r := range results {
		if !seen[r.Size] {
			seen[r.Size] = true
			sizes = append(sizes, r.Size)
		}
	}
	sort.Ints(sizes)
	return sizes
}
