// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package chart

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/perfport/aggregate"
	"golang.org/x/perfport/efficiency"
	"golang.org/x/perfport/portability"
)

func table() *efficiency.Table {
	return &efficiency.Table{
		Size:     8192,
		Kernels:  []string{"K1", "K2"},
		Hardware: []string{"H1", "H2"},
		Entries: []efficiency.Entry{
			{Kernel: "K1", Hardware: "H1", Arch: efficiency.Measured(0.5), App: efficiency.Measured(0.5)},
			{Kernel: "K1", Hardware: "H2", Arch: efficiency.Measured(0.8), App: efficiency.Measured(1)},
			{Kernel: "K2", Hardware: "H1", Arch: efficiency.Measured(0.8), App: efficiency.Measured(1)},
			{Kernel: "K2", Hardware: "H2", Arch: efficiency.NotRun(), App: efficiency.NotRun()},
		},
	}
}

func TestPortability(t *testing.T) {
	scores := []portability.Score{
		{Kernel: "K1", Subset: "all", Arch: 0.615, App: 0.667},
		{Kernel: "K2", Subset: "all"},
	}
	p, err := Portability("K1", table(), scores)
	if err != nil {
		t.Fatal(err)
	}
	if p.Y.Min != 0 || p.Y.Max < 1 {
		t.Errorf("y range = [%v, %v], want [0, >=1]", p.Y.Min, p.Y.Max)
	}
	var buf bytes.Buffer
	if err := WriteTo(p, &buf, "png"); err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")) {
		t.Errorf("output is not a PNG")
	}

	// A NotRun target simply has no bar.
	if _, err := Portability("K2", table(), scores); err != nil {
		t.Errorf("K2: %v", err)
	}
	if _, err := Portability("K3", table(), nil); err == nil {
		t.Error("unknown kernel: want error")
	}
}

func TestThroughput(t *testing.T) {
	results := []aggregate.Result{
		{Kernel: "K1", Hardware: "H1", Size: 4096, Throughput: aggregate.Stat{Mean: 1, StdDev: 0.1}},
		{Kernel: "K1", Hardware: "H1", Size: 1024, Throughput: aggregate.Stat{Mean: 0.5, StdDev: math.NaN()}},
		{Kernel: "K2", Hardware: "H1", Size: 1024, Throughput: aggregate.Stat{Mean: 0.7, StdDev: 0.2}},
		{Kernel: "K2", Hardware: "H2", Size: 1024, Throughput: aggregate.Stat{Mean: 9}},
	}
	p, err := Throughput(results, "H1")
	if err != nil {
		t.Fatal(err)
	}
	if p.X.Min != 1024 || p.X.Max != 4096 {
		t.Errorf("x range = [%v, %v], want [1024, 4096]", p.X.Min, p.X.Max)
	}
	path := filepath.Join(t.TempDir(), "throughput.svg")
	if err := Save(p, path); err != nil {
		t.Fatal(err)
	}
	if fi, err := os.Stat(path); err != nil || fi.Size() == 0 {
		t.Errorf("Save wrote nothing: %v", err)
	}

	if _, err := Throughput(results, "H3"); err == nil {
		t.Error("no results: want error")
	}
}

func TestPow2Ticks(t *testing.T) {
	ticks := pow2Ticks{}.Ticks(1000, 5000)
	var got []string
	for _, tk := range ticks {
		got = append(got, tk.Label)
	}
	if len(got) != 3 || got[0] != "2^10" || got[2] != "2^12" {
		t.Errorf("ticks = %v, want [2^10 2^11 2^12]", got)
	}
	if ticks := (pow2Ticks{}).Ticks(0, 10); ticks != nil {
		t.Errorf("non-positive min: got %v", ticks)
	}
}
