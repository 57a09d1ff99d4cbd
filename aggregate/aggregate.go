// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package aggregate summarizes repeated benchmark trials.
//
// Trials are grouped by (kernel, hardware, problem size) and each
// measurement is reduced to its sample mean and sample standard
// deviation. A group with a single trial has an undefined (NaN)
// standard deviation; consumers must tolerate NaN rather than treat
// it as an error.
package aggregate

import (
	"fmt"
	"math"

	"github.com/aclements/go-moremath/stats"
	"golang.org/x/perfport/trial"
)

// A Stat is the sample mean and standard deviation of one
// measurement across the trials of a group.
type Stat struct {
	Mean   float64
	StdDev float64
}

// String formats s as "mean ± std".
func (s Stat) String() string {
	return fmt.Sprintf("%g ± %g", s.Mean, s.StdDev)
}

// A Result is the aggregate of all trials of one kernel on one
// hardware target at one problem size.
type Result struct {
	Kernel   string
	Hardware string
	Size     int
	UsesGPU  bool

	// N is the number of trials in the group. It is 0 for
	// results that were not aggregated from trials, such as ones
	// read back from an aggregate artifact.
	N int

	Duration    Stat
	Throughput  Stat
	CellsPerSec Stat
	Error       Stat
}

// Key returns the group key of r.
func (r *Result) Key() trial.Key {
	return trial.Key{Kernel: r.Kernel, Hardware: r.Hardware, Size: r.Size}
}

// A DataIntegrityError reports a group whose trials disagree on
// whether they ran on a GPU. Such a group mixes two different
// experiments and cannot be averaged.
type DataIntegrityError struct {
	Key trial.Key
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("trials of %s mix cpu and gpu runs", e.Key)
}

// Aggregate groups trials by kernel, hardware and problem size and
// computes a Result for each group. Results are returned in the
// order in which their first trial appears.
//
// If any group contains both GPU and CPU trials, Aggregate returns a
// *DataIntegrityError for the first such group.
func Aggregate(trials []trial.Record) ([]Result, error) {
	type group struct {
		gpu  bool
		recs []*trial.Record
	}
	var order []trial.Key
	groups := make(map[trial.Key]*group)
	for i := range trials {
		rec := &trials[i]
		k := rec.Key()
		g, ok := groups[k]
		if !ok {
			g = &group{gpu: rec.UsesGPU}
			groups[k] = g
			order = append(order, k)
		} else if g.gpu != rec.UsesGPU {
			return nil, &DataIntegrityError{k}
		}
		g.recs = append(g.recs, rec)
	}

	out := make([]Result, 0, len(order))
	for _, k := range order {
		g := groups[k]
		out = append(out, Result{
			Kernel:      k.Kernel,
			Hardware:    k.Hardware,
			Size:        k.Size,
			UsesGPU:     g.gpu,
			N:           len(g.recs),
			Duration:    summarize(g.recs, func(r *trial.Record) float64 { return r.Duration }),
			Throughput:  summarize(g.recs, func(r *trial.Record) float64 { return r.Throughput }),
			CellsPerSec: summarize(g.recs, func(r *trial.Record) float64 { return r.CellsPerSec }),
			Error:       summarize(g.recs, func(r *trial.Record) float64 { return r.Error }),
		})
	}
	return out, nil
}

func summarize(recs []*trial.Record, get func(*trial.Record) float64) Stat {
	xs := make([]float64, len(recs))
	for i, r := range recs {
		xs[i] = get(r)
	}
	s := stats.Sample{Xs: xs}
	st := Stat{Mean: s.Mean(), StdDev: math.NaN()}
	if len(xs) > 1 {
		st.StdDev = s.StdDev()
	}
	return st
}
