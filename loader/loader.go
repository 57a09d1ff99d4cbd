// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package loader parses raw benchmark logs into trial records and
// aggregated results.
//
// Three encodings are supported:
//
//   - The delimited trial log, a semicolon-separated table with one
//     row per repetition and the columns
//     error;duration;cellspersec;throughput;gpu. The kernel and
//     problem size of a trial log are encoded in its run name (see
//     ParseRunName).
//   - The Google Benchmark JSON log, whose rows come in groups of
//     three (median, standard deviation, coefficient of variation).
//     These are already aggregated and are read as aggregate.Results.
//   - The aggregate table written by report.WriteAggregates.
package loader

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// A SyntaxError reports malformed input at a particular line of a
// log file.
type SyntaxError struct {
	FileName string
	Line     int
	Msg      string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.FileName, e.Line, e.Msg)
}

// A Run identifies the benchmark configuration a trial log was
// recorded for.
type Run struct {
	Kernel   string
	Hardware string
	// Size is the global problem size, nx*nvx.
	Size int
	GPU  bool
}

// ParseRunName parses a run name of the form
//
//	[perfs]adv_<kernel>_<nx>_<nvx>_<cpu|gpu>[.ext]
//
// as written by the benchmark orchestrator. Any directory and
// extension are ignored. Kernel names may contain underscores.
// The returned Run has no Hardware; the caller supplies it.
func ParseRunName(name string) (Run, error) {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.TrimPrefix(base, "perfs")

	f := strings.Split(base, "_")
	n := len(f)
	if n < 5 || f[0] != "adv" {
		return Run{}, fmt.Errorf("run name %q: want adv_<kernel>_<nx>_<nvx>_<cpu|gpu>", name)
	}
	var run Run
	run.Kernel = strings.Join(f[1:n-3], "_")
	nx, err := strconv.Atoi(f[n-3])
	if err != nil {
		return Run{}, fmt.Errorf("run name %q: bad nx: %w", name, err)
	}
	nvx, err := strconv.Atoi(f[n-2])
	if err != nil {
		return Run{}, fmt.Errorf("run name %q: bad nvx: %w", name, err)
	}
	run.Size = nx * nvx
	switch f[n-1] {
	case "gpu":
		run.GPU = true
	case "cpu":
	default:
		return Run{}, fmt.Errorf("run name %q: device %q is not cpu or gpu", name, f[n-1])
	}
	return run, nil
}
