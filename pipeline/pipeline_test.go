// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"context"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/sirupsen/logrus"
	"golang.org/x/perfport/aggregate"
	"golang.org/x/perfport/efficiency"
	"golang.org/x/perfport/peak"
	"golang.org/x/perfport/portability"
	"golang.org/x/perfport/trial"
)

func quiet() logrus.FieldLogger {
	l := logrus.New()
	l.Out = io.Discard
	return l
}

func rec(kernel, hw string, size int, dur, tp float64) trial.Record {
	return trial.Record{Kernel: kernel, Hardware: hw, Size: size, Duration: dur, Throughput: tp}
}

func storeOf(t *testing.T, recs ...trial.Record) *trial.Store {
	t.Helper()
	s := new(trial.Store)
	if err := s.Add(recs...); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestRunWorkedExample(t *testing.T) {
	peaks, err := peak.New(peak.Hardware{Name: "H1", Peak: 100}, peak.Hardware{Name: "H2", Peak: 10})
	if err != nil {
		t.Fatal(err)
	}
	in := Input{
		Trials: storeOf(t,
			rec("K1", "H1", 64, 2, 50), rec("K1", "H1", 64, 2, 50),
			rec("K2", "H1", 64, 1, 80),
			rec("K1", "H1", 128, 4, 60),
		),
		Results: []aggregate.Result{
			{Kernel: "K1", Hardware: "H2", Size: 64, Duration: aggregate.Stat{Mean: 1}, Throughput: aggregate.Stat{Mean: 5}},
		},
		Peaks:   peaks,
		Subsets: []portability.Subset{{ID: "h1", Hardware: []string{"H1", ""}}, {ID: "both", Hardware: []string{"H1", "H2"}}},
		Logger:  quiet(),
	}
	out, err := Run(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Results) != 4 {
		t.Errorf("got %d results, want 4", len(out.Results))
	}
	if len(out.Sizes) != 2 || out.Sizes[0].Size != 64 || out.Sizes[1].Size != 128 {
		t.Fatalf("sizes = %+v", out.Sizes)
	}

	s64, ok := out.Size(64)
	if !ok {
		t.Fatal("no size 64")
	}
	check := func(kernel, hw string, arch, app float64) {
		t.Helper()
		e, ok := s64.Efficiency.Lookup(kernel, hw)
		if !ok {
			t.Fatalf("no entry for %s/%s", kernel, hw)
		}
		if a, _ := e.Arch.Value(); math.Abs(a-arch) > 1e-12 {
			t.Errorf("%s/%s arch = %v, want %v", kernel, hw, a, arch)
		}
		if a, _ := e.App.Value(); math.Abs(a-app) > 1e-12 {
			t.Errorf("%s/%s app = %v, want %v", kernel, hw, a, app)
		}
	}
	check("K1", "H1", 0.5, 0.5)
	check("K2", "H1", 0.8, 1)
	check("K1", "H2", 0.5, 1)
	if e, _ := s64.Efficiency.Lookup("K2", "H2"); e.Arch.Ran() {
		t.Errorf("K2/H2 = %+v, want NOT_RUN", e)
	}

	want := map[[2]string][2]float64{
		{"h1", "K1"}:   {0.5, 0.5},
		{"h1", "K2"}:   {0.8, 1},
		{"both", "K1"}: {0.5, 2.0 / 3},
		{"both", "K2"}: {0, 0},
	}
	if len(s64.Scores) != len(want) {
		t.Fatalf("got %d scores, want %d", len(s64.Scores), len(want))
	}
	for _, sc := range s64.Scores {
		w := want[[2]string{sc.Subset, sc.Kernel}]
		if math.Abs(sc.Arch-w[0]) > 1e-12 || math.Abs(sc.App-w[1]) > 1e-12 {
			t.Errorf("%s over %s = (%v, %v), want %v", sc.Kernel, sc.Subset, sc.Arch, sc.App, w)
		}
	}
}

func TestRunErrors(t *testing.T) {
	ctx := context.Background()

	_, err := Run(ctx, Input{Trials: storeOf(t, rec("K", "tpu", 1, 1, 1)), Logger: quiet()})
	var cErr *efficiency.ConfigurationError
	if !errors.As(err, &cErr) || cErr.Hardware != "tpu" {
		t.Errorf("unknown hardware: got %v", err)
	}

	gpu := rec("K", "a100", 1, 1, 1)
	gpu.UsesGPU = true
	_, err = Run(ctx, Input{Trials: storeOf(t, gpu, rec("K", "a100", 1, 1, 1)), Logger: quiet()})
	var dErr *aggregate.DataIntegrityError
	if !errors.As(err, &dErr) {
		t.Errorf("mixed gpu: got %v", err)
	}

	_, err = Run(ctx, Input{Trials: storeOf(t, rec("K", "a100", 1, 1, 1)), Subsets: []portability.Subset{{ID: "none"}}, Logger: quiet()})
	var sErr *portability.InvalidSubsetError
	if !errors.As(err, &sErr) {
		t.Errorf("empty subset: got %v", err)
	}

	_, err = Run(ctx, Input{Trials: storeOf(t, rec("K1", "a100", 1, 0, 1), rec("K2", "a100", 1, 1, 1)), Logger: quiet()})
	var rErr *efficiency.InvalidResultError
	if !errors.As(err, &rErr) || rErr.Kernel != "K1" || rErr.Stat != "duration" {
		t.Errorf("zero duration: got %v", err)
	}

	if _, err := Run(ctx, Input{Logger: quiet()}); err == nil {
		t.Error("no data: want error")
	}

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := Run(cctx, Input{Trials: storeOf(t, rec("K", "a100", 1, 1, 1)), Logger: quiet()}); !errors.Is(err, context.Canceled) {
		t.Errorf("canceled: got %v", err)
	}
}

func TestRunDefaults(t *testing.T) {
	out, err := Run(context.Background(), Input{
		Trials: storeOf(t, rec("NDRange", "a100", 8192, 1, 43.8125)),
		Logger: quiet(),
	})
	if err != nil {
		t.Fatal(err)
	}
	so := out.Sizes[0]
	if got := so.Efficiency.Hardware; len(got) != 5 {
		t.Errorf("hardware = %v, want the STREAM table", got)
	}
	var subsets []string
	for _, sc := range so.Scores {
		subsets = append(subsets, sc.Subset)
	}
	if len(subsets) != 3 || subsets[0] != "all" || subsets[1] != "cpus" || subsets[2] != "gpus" {
		t.Errorf("subsets = %v, want [all cpus gpus]", subsets)
	}
	// NDRange only ran on a100, so only the gpus subset could be
	// nonzero, and mi250 is missing there too.
	for _, sc := range so.Scores {
		if sc.Arch != 0 || sc.App != 0 {
			t.Errorf("%s over %s = %+v, want zero", sc.Kernel, sc.Subset, sc)
		}
	}
}

func TestRunKernelOrder(t *testing.T) {
	out, err := Run(context.Background(), Input{
		Trials: storeOf(t,
			rec("Scoped", "a100", 64, 2, 40),
			rec("NDRange", "a100", 64, 1, 40),
			rec("Scoped", "a100", 64, 2, 40),
		),
		Results: []aggregate.Result{
			{Kernel: "NDRange", Hardware: "epyc", Size: 64, Duration: aggregate.Stat{Mean: 1}, Throughput: aggregate.Stat{Mean: 4}},
			{Kernel: "StreamY", Hardware: "epyc", Size: 64, Duration: aggregate.Stat{Mean: 2}, Throughput: aggregate.Stat{Mean: 2}},
		},
		Logger: quiet(),
	})
	if err != nil {
		t.Fatal(err)
	}
	got := out.Sizes[0].Efficiency.Kernels
	want := []string{"Scoped", "NDRange", "StreamY"}
	if len(got) != len(want) {
		t.Fatalf("kernels = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("kernels = %v, want %v", got, want)
		}
	}
}
