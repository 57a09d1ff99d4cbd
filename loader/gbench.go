// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package loader

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"golang.org/x/perfport/aggregate"
)

// KernelIDs maps the integer kernel_id counter of a Google Benchmark
// log to a kernel name.
type KernelIDs map[int]string

// DefaultKernelIDs returns the kernel_id table of the advection
// benchmark suite.
func DefaultKernelIDs() KernelIDs {
	return KernelIDs{
		-1: "FakeAdvector",
		0:  "BasicRange3D",
		1:  "Hierarchical",
		2:  "NDRange",
		3:  "Scoped",
		4:  "StreamY",
		5:  "Straddled",
		6:  "Revidx",
		7:  "TwoDimWG",
		8:  "Seq_TwoDimWG",
		9:  "HierLDG",
	}
}

// GBenchOptions configures ReadGBench.
type GBenchOptions struct {
	// KernelIDs maps kernel_id to kernel names. If nil,
	// DefaultKernelIDs is used.
	KernelIDs KernelIDs

	// Magnitude divides items_per_second to give throughput.
	// If zero, 1e9 is used, giving G items/s.
	Magnitude float64
}

type gbenchLog struct {
	Benchmarks []gbenchRow `json:"benchmarks"`
}

// gbenchRow is one entry of the "benchmarks" array. Counters are
// encoded as JSON numbers, hence the float fields.
type gbenchRow struct {
	Name           string  `json:"name"`
	N0             float64 `json:"n0"`
	N1             float64 `json:"n1"`
	N2             float64 `json:"n2"`
	KernelID       float64 `json:"kernel_id"`
	ItemsPerSecond float64 `json:"items_per_second"`
	ErrorOccurred  bool    `json:"error_occurred"`
	RealTime       float64 `json:"real_time"`
	GPU            float64 `json:"gpu"`
}

// Aggregate row suffixes, in the order they must appear.
var tripletSuffixes = [3]string{"_median", "_stddev", "_cv"}

// A SequenceError reports a Google Benchmark log whose aggregate rows
// do not come in median, stddev, cv order. This usually means the
// benchmark ran without --benchmark_repetitions.
type SequenceError struct {
	FileName string
	Index    int // index of the offending row among the kept rows
	Name     string
	Want     string
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("%s: row %d %q: want a %s row", e.FileName, e.Index, e.Name, e.Want)
}

// tripletScanner groups consecutive rows into median/stddev/cv
// triplets and checks their order.
type tripletScanner struct {
	fileName string
	state    int // index into tripletSuffixes of the next expected row
	base     string
	cur      [3]*gbenchRow
	index    int
}

// push feeds the next row to the scanner. When a triplet is complete
// it is returned with done set.
func (s *tripletScanner) push(row *gbenchRow) (triplet [3]*gbenchRow, done bool, err error) {
	want := tripletSuffixes[s.state]
	defer func() { s.index++ }()
	if !strings.HasSuffix(row.Name, want) {
		return triplet, false, &SequenceError{s.fileName, s.index, row.Name, want}
	}
	base := strings.TrimSuffix(row.Name, want)
	if s.state == 0 {
		s.base = base
	} else if base != s.base {
		return triplet, false, &SequenceError{s.fileName, s.index, row.Name, s.base + want}
	}
	s.cur[s.state] = row
	s.state++
	if s.state < len(tripletSuffixes) {
		return triplet, false, nil
	}
	s.state = 0
	return s.cur, true, nil
}

// finish reports an error if the input ended inside a triplet.
func (s *tripletScanner) finish() error {
	if s.state != 0 {
		return &SequenceError{s.fileName, s.index, "<end of input>", s.base + tripletSuffixes[s.state]}
	}
	return nil
}

// skipRow reports whether a row is dropped before grouping: failed
// runs, mean aggregates and work-group size sweeps.
func skipRow(row *gbenchRow) bool {
	return row.ErrorOccurred ||
		strings.HasSuffix(row.Name, "_mean") ||
		strings.HasPrefix(row.Name, "BM_WgSize")
}

// ReadGBench reads a Google Benchmark JSON log recorded on hardware.
// Each median/stddev/cv triplet becomes one aggregate.Result whose
// means are the median row and whose standard deviations are the
// stddev row. The error statistic is not recorded by this format and
// is NaN.
//
// If the aggregate rows are not in median, stddev, cv order,
// ReadGBench returns a *SequenceError.
func ReadGBench(r io.Reader, name, hardware string, opts GBenchOptions) ([]aggregate.Result, error) {
	ids := opts.KernelIDs
	if ids == nil {
		ids = DefaultKernelIDs()
	}
	mag := opts.Magnitude
	if mag == 0 {
		mag = 1e9
	}

	var log gbenchLog
	if err := json.NewDecoder(r).Decode(&log); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	scan := tripletScanner{fileName: name}
	var out []aggregate.Result
	for i := range log.Benchmarks {
		row := &log.Benchmarks[i]
		if skipRow(row) {
			continue
		}
		tri, done, err := scan.push(row)
		if err != nil {
			return nil, err
		}
		if !done {
			continue
		}
		med, std := tri[0], tri[1]
		kernel, ok := ids[int(med.KernelID)]
		if !ok {
			return nil, fmt.Errorf("%s: %s: unknown kernel_id %v", name, med.Name, med.KernelID)
		}
		out = append(out, aggregate.Result{
			Kernel:      kernel,
			Hardware:    hardware,
			Size:        int(med.N0) * int(med.N1) * int(med.N2),
			UsesGPU:     med.GPU != 0,
			Duration:    aggregate.Stat{Mean: med.RealTime, StdDev: std.RealTime},
			Throughput:  aggregate.Stat{Mean: med.ItemsPerSecond / mag, StdDev: std.ItemsPerSecond / mag},
			CellsPerSec: aggregate.Stat{Mean: med.ItemsPerSecond, StdDev: std.ItemsPerSecond},
			Error:       aggregate.Stat{Mean: math.NaN(), StdDev: math.NaN()},
		})
	}
	if err := scan.finish(); err != nil {
		return nil, err
	}
	return out, nil
}
