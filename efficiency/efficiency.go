// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package efficiency converts aggregated benchmark results into
// dimensionless efficiency ratios.
//
// For a kernel k on hardware h at a fixed problem size,
//
//	arch(k, h) = throughput(k, h) / peak(h)
//	app(k, h)  = min over k' of runtime(k', h) / runtime(k, h)
//
// Architectural efficiency measures hardware utilization and may
// exceed 1 if the peak table is stale; it is not clamped.
// Application efficiency measures how competitive k is with the
// fastest kernel on h and is 1 for that fastest kernel.
//
// A kernel with no measurement on a hardware target has NotRun
// efficiencies, which are distinct from any numeric ratio.
package efficiency

import (
	"fmt"
	"math"
	"strconv"

	"golang.org/x/perfport/aggregate"
	"golang.org/x/perfport/peak"
)

// A Ratio is an efficiency ratio or the absence of a measurement.
// The zero Ratio is NotRun.
type Ratio struct {
	v   float64
	ran bool
}

// NotRun returns the Ratio of a kernel that has no measurement.
func NotRun() Ratio { return Ratio{} }

// Measured returns a Ratio holding v.
func Measured(v float64) Ratio { return Ratio{v, true} }

// Ran reports whether r holds a measured value.
func (r Ratio) Ran() bool { return r.ran }

// Value returns the measured value and true, or 0 and false if r is
// NotRun.
func (r Ratio) Value() (float64, bool) { return r.v, r.ran }

// Or returns the measured value, or def if r is NotRun.
func (r Ratio) Or(def float64) float64 {
	if !r.ran {
		return def
	}
	return r.v
}

func (r Ratio) String() string {
	if !r.ran {
		return "NOT_RUN"
	}
	return strconv.FormatFloat(r.v, 'g', -1, 64)
}

// An Entry holds both efficiencies of one kernel on one hardware
// target.
type Entry struct {
	Kernel   string
	Hardware string
	Arch     Ratio
	App      Ratio
}

// A Table is the efficiency of every known kernel on every known
// hardware target at one problem size.
type Table struct {
	Size     int
	Kernels  []string
	Hardware []string

	// Entries holds one Entry per (kernel, hardware) pair in
	// kernel-major order.
	Entries []Entry
}

// Lookup returns the entry of kernel on hardware.
func (t *Table) Lookup(kernel, hardware string) (Entry, bool) {
	ki, hi := indexOf(t.Kernels, kernel), indexOf(t.Hardware, hardware)
	if ki < 0 || hi < 0 {
		return Entry{}, false
	}
	return t.Entries[ki*len(t.Hardware)+hi], true
}

func indexOf(xs []string, x string) int {
	for i, y := range xs {
		if y == x {
			return i
		}
	}
	return -1
}

// A ConfigurationError reports a hardware target that appears in the
// measurements but has no peak throughput.
type ConfigurationError struct {
	Hardware string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("no peak throughput for hardware %q", e.Hardware)
}

// A DuplicateError reports two results for the same kernel, hardware
// and problem size.
type DuplicateError struct {
	Kernel, Hardware string
	Size             int
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate result for %s on %s at size %d", e.Kernel, e.Hardware, e.Size)
}

// An InvalidResultError reports a result whose statistics cannot
// form efficiency ratios: a duration mean that is not positive, or a
// throughput mean that is NaN or negative.
type InvalidResultError struct {
	Kernel, Hardware string
	Size             int
	Stat             string
	Value            float64
}

func (e *InvalidResultError) Error() string {
	return fmt.Sprintf("result for %s on %s at size %d: invalid %s mean %v", e.Kernel, e.Hardware, e.Size, e.Stat, e.Value)
}

func checkResult(r *aggregate.Result) error {
	if !(r.Duration.Mean > 0) {
		return &InvalidResultError{r.Kernel, r.Hardware, r.Size, "duration", r.Duration.Mean}
	}
	if math.IsNaN(r.Throughput.Mean) || r.Throughput.Mean < 0 {
		return &InvalidResultError{r.Kernel, r.Hardware, r.Size, "throughput", r.Throughput.Mean}
	}
	return nil
}

// A Calculator computes efficiency tables against a fixed peak
// table.
type Calculator struct {
	peaks   *peak.Table
	kernels []string
}

// NewCalculator returns a Calculator using peaks. If kernels is
// non-empty, it fixes the set and order of kernels in computed
// tables; otherwise every kernel found in the results is used, in
// first-seen order.
func NewCalculator(peaks *peak.Table, kernels ...string) *Calculator {
	return &Calculator{peaks, append([]string(nil), kernels...)}
}

// BestRuntimes returns, for each hardware target, the smallest mean
// duration of any kernel at the given problem size. Durations that
// are NaN or not positive are ignored. Hardware with no such result
// at that size is absent from the map.
func BestRuntimes(results []aggregate.Result, size int) map[string]float64 {
	best := make(map[string]float64)
	for i := range results {
		r := &results[i]
		if r.Size != size || !(r.Duration.Mean > 0) {
			continue
		}
		if b, ok := best[r.Hardware]; !ok || r.Duration.Mean < b {
			best[r.Hardware] = r.Duration.Mean
		}
	}
	return best
}

// Compute returns the efficiency table of results at the given
// problem size. Results at other sizes only contribute their kernel
// names.
//
// Every hardware target named in results must be in the peak table,
// otherwise Compute returns a *ConfigurationError. Every result at
// size must have a positive duration mean and a non-negative
// throughput mean, otherwise Compute returns an *InvalidResultError.
func (c *Calculator) Compute(results []aggregate.Result, size int) (*Table, error) {
	kernels := c.kernels
	if len(kernels) == 0 {
		seen := make(map[string]bool)
		for _, r := range results {
			if !seen[r.Kernel] {
				seen[r.Kernel] = true
				kernels = append(kernels, r.Kernel)
			}
		}
	}

	type pair struct{ kernel, hardware string }
	atSize := make(map[pair]*aggregate.Result)
	for i := range results {
		r := &results[i]
		if _, ok := c.peaks.Peak(r.Hardware); !ok {
			return nil, &ConfigurationError{r.Hardware}
		}
		if r.Size != size {
			continue
		}
		if err := checkResult(r); err != nil {
			return nil, err
		}
		p := pair{r.Kernel, r.Hardware}
		if _, dup := atSize[p]; dup {
			return nil, &DuplicateError{r.Kernel, r.Hardware, size}
		}
		atSize[p] = r
	}
	best := BestRuntimes(results, size)

	t := &Table{
		Size:     size,
		Kernels:  append([]string(nil), kernels...),
		Hardware: c.peaks.Names(),
	}
	t.Entries = make([]Entry, 0, len(t.Kernels)*len(t.Hardware))
	for _, k := range t.Kernels {
		for _, h := range t.Hardware {
			e := Entry{Kernel: k, Hardware: h}
			if r, ok := atSize[pair{k, h}]; ok {
				pk, _ := c.peaks.Peak(h)
				e.Arch = Measured(r.Throughput.Mean / pk)
				e.App = Measured(best[h] / r.Duration.Mean)
			}
			t.Entries = append(t.Entries, e)
		}
	}
	return t, nil
}
