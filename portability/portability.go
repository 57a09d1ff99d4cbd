// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package portability computes performance-portability scores.
//
// The performance portability of a kernel over a hardware subset H is
// the harmonic mean of its efficiencies on each member of H:
//
//	PP(k, H) = |H| / Σ_{h∈H} 1/e(k, h)
//
// The harmonic mean is used because efficiencies are rates: a kernel
// that is fast on one target and slow on another scores close to its
// slow case.
//
// If k has no measurement on any member of H, PP(k, H) is 0 for both
// architectural and application efficiency, however well k performs
// elsewhere in H. A kernel is only as portable as its worst or
// missing target.
package portability

import (
	"fmt"
	"sync"

	"golang.org/x/perfport/efficiency"
	"golang.org/x/perfport/peak"
	"gonum.org/v1/gonum/stat"
)

// A Subset is an ordered selection of hardware targets.
//
// Hardware is usually aligned with the canonical hardware order of a
// peak table; an empty string is a placeholder for a target that is
// not part of the subset.
type Subset struct {
	ID       string   `yaml:"id"`
	Hardware []string `yaml:"hardware"`
}

// Present returns the non-placeholder members of s.
func (s Subset) Present() []string {
	var out []string
	for _, h := range s.Hardware {
		if h != "" {
			out = append(out, h)
		}
	}
	return out
}

// SubsetOf returns the subset of peaks selected by keep, aligned with
// the canonical order of peaks.
func SubsetOf(id string, peaks *peak.Table, keep func(peak.Hardware) bool) Subset {
	s := Subset{ID: id, Hardware: make([]string, peaks.Len())}
	for i := 0; i < peaks.Len(); i++ {
		if h := peaks.At(i); keep(h) {
			s.Hardware[i] = h.Name
		}
	}
	return s
}

// All returns the subset of every hardware target in peaks.
func All(peaks *peak.Table) Subset {
	return SubsetOf("all", peaks, func(peak.Hardware) bool { return true })
}

// CPUs returns the subset of non-GPU hardware targets in peaks.
func CPUs(peaks *peak.Table) Subset {
	return SubsetOf("cpus", peaks, func(h peak.Hardware) bool { return !h.GPU })
}

// GPUs returns the subset of GPU hardware targets in peaks.
func GPUs(peaks *peak.Table) Subset {
	return SubsetOf("gpus", peaks, func(h peak.Hardware) bool { return h.GPU })
}

// A Score is the performance portability of one kernel over one
// hardware subset.
type Score struct {
	Kernel string
	Subset string
	Arch   float64
	App    float64
}

// An InvalidSubsetError reports a subset with no hardware, over which
// portability is undefined.
type InvalidSubsetError struct {
	ID string
}

func (e *InvalidSubsetError) Error() string {
	return fmt.Sprintf("hardware subset %q is empty", e.ID)
}

// Compute returns the portability score of every kernel in entries
// over subset, keyed by kernel name.
//
// A kernel whose entry on any hardware in subset is NotRun, or that
// has no entry for it at all, scores exactly 0.
func Compute(entries []efficiency.Entry, subset Subset) (map[string]Score, error) {
	hw := subset.Present()
	if len(hw) == 0 {
		return nil, &InvalidSubsetError{subset.ID}
	}

	type pair struct{ kernel, hardware string }
	index := make(map[pair]*efficiency.Entry, len(entries))
	seen := make(map[string]bool)
	var kernels []string
	for i := range entries {
		e := &entries[i]
		if !seen[e.Kernel] {
			seen[e.Kernel] = true
			kernels = append(kernels, e.Kernel)
		}
		index[pair{e.Kernel, e.Hardware}] = e
	}

	scores := make(map[string]Score, len(kernels))
	arch := make([]float64, len(hw))
	app := make([]float64, len(hw))
	for _, k := range kernels {
		sc := Score{Kernel: k, Subset: subset.ID}
		complete := true
		for i, h := range hw {
			e := index[pair{k, h}]
			if e == nil || !e.Arch.Ran() || !e.App.Ran() {
				complete = false
				break
			}
			arch[i], _ = e.Arch.Value()
			app[i], _ = e.App.Value()
		}
		if complete {
			sc.Arch = stat.HarmonicMean(arch, nil)
			sc.App = stat.HarmonicMean(app, nil)
		}
		scores[k] = sc
	}
	return scores, nil
}

// ComputeAll scores the kernels of table over each subset. Subsets
// are scored concurrently. The result is ordered by subset, then by
// the kernel order of table.
func ComputeAll(table *efficiency.Table, subsets ...Subset) ([]Score, error) {
	results := make([]map[string]Score, len(subsets))
	errs := make([]error, len(subsets))
	var wg sync.WaitGroup
	for i := range subsets {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = Compute(table.Entries, subsets[i])
		}(i)
	}
	wg.Wait()

	var out []Score
	for i, m := range results {
		if errs[i] != nil {
			return nil, errs[i]
		}
		for _, k := range table.Kernels {
			sc, ok := m[k]
			if !ok {
				sc = Score{Kernel: k, Subset: subsets[i].ID}
			}
			out = append(out, sc)
		}
	}
	return out, nil
}
