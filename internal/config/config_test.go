// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"reflect"
	"strings"
	"testing"

	"golang.org/x/perfport/loader"
	"golang.org/x/perfport/portability"
)

func TestLoad(t *testing.T) {
	t.Setenv("PERFPORT_TEST_TOKEN", "s3cret")
	c, err := Load("testdata/run.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if c.Influx.Token != "s3cret" {
		t.Errorf("influx token = %q, want expanded variable", c.Influx.Token)
	}
	if !reflect.DeepEqual(c.Sizes, []int{8192, 16384}) {
		t.Errorf("sizes = %v", c.Sizes)
	}
	peaks, err := c.Peaks()
	if err != nil {
		t.Fatal(err)
	}
	if got := peaks.Names(); !reflect.DeepEqual(got, []string{"mi250", "a100", "epyc"}) {
		t.Errorf("hardware = %v", got)
	}
	wantSubsets := []portability.Subset{
		{ID: "gpus", Hardware: []string{"mi250", "a100", ""}},
		{ID: "epyc", Hardware: []string{"", "", "epyc"}},
	}
	if got := c.PortabilitySubsets(peaks); !reflect.DeepEqual(got, wantSubsets) {
		t.Errorf("subsets = %+v, want %+v", got, wantSubsets)
	}
	if got := c.KernelIDTable(); got[-1] != "FakeAdvector" || got[2] != "NDRange" || len(got) != 2 {
		t.Errorf("kernel ids = %v", got)
	}

	fs := c.Files(nil)
	if len(fs) != 2 {
		t.Fatalf("got %d inputs, want 2", len(fs))
	}
	if fs[0].Format != loader.GBench || fs[0].Hardware != "a100" {
		t.Errorf("inputs[0] = %+v", fs[0])
	}
	if fs[1].Format != loader.Delimited || fs[1].Paths[0] != "adv_NDRange_64_2_cpu=logs/epyc.csv" {
		t.Errorf("inputs[1] = %+v", fs[1])
	}
	if c.GCS.Bucket != "perf-artifacts/runs" || c.Database.Driver != "sqlite3" {
		t.Errorf("outputs = %+v %+v", c.GCS, c.Database)
	}
}

func TestUnsetVariable(t *testing.T) {
	c, err := Parse([]byte("influx:\n  url: http://x\n  org: o\n  bucket: b\n  token: ${PERFPORT_SURELY_UNSET}\n"))
	if err != nil {
		t.Fatal(err)
	}
	if c.Influx.Token != "${PERFPORT_SURELY_UNSET}" {
		t.Errorf("token = %q, want reference left as written", c.Influx.Token)
	}
}

func TestDefaults(t *testing.T) {
	c, err := Parse([]byte("sizes: [8192]\n"))
	if err != nil {
		t.Fatal(err)
	}
	peaks, err := c.Peaks()
	if err != nil {
		t.Fatal(err)
	}
	if peaks.Len() != 5 {
		t.Errorf("default peak table has %d entries, want 5", peaks.Len())
	}
	var ids []string
	for _, s := range c.PortabilitySubsets(peaks) {
		ids = append(ids, s.ID)
	}
	if !reflect.DeepEqual(ids, []string{"all", "cpus", "gpus"}) {
		t.Errorf("default subsets = %v", ids)
	}
	if got := c.KernelIDTable(); got[0] != "BasicRange3D" {
		t.Errorf("default kernel ids = %v", got)
	}
}

func TestPeakFile(t *testing.T) {
	c, err := Load("testdata/peakfile.yaml")
	if err != nil {
		t.Fatal(err)
	}
	peaks, err := c.Peaks()
	if err != nil {
		t.Fatal(err)
	}
	if got := peaks.Names(); !reflect.DeepEqual(got, []string{"a100", "genoa"}) {
		t.Errorf("hardware = %v", got)
	}
	if p, _ := peaks.Peak("genoa"); p != 29.125 {
		t.Errorf("genoa peak = %v", p)
	}
}

func TestValidate(t *testing.T) {
	check := func(doc, wantErr string) {
		t.Helper()
		_, err := Parse([]byte(doc))
		if err == nil || !strings.Contains(err.Error(), wantErr) {
			t.Errorf("%q: got %v, want error containing %q", doc, err, wantErr)
		}
	}
	check("sizes: [0]\n", "not positive")
	check("hardware: [{name: x, peak: -1}]\n", "invalid peak")
	check("subsets: [{id: s, hardware: [a100]}]\n", "want one per hardware target")
	check("subsets: [{id: s, hardware: [a100, tpu, ~, ~, ~]}]\n", `unknown hardware "tpu"`)
	check("inputs: [{hardware: a100, format: xml}]\n", `unknown input format "xml"`)
	check("inputs: [{format: gbench}]\n", "missing hardware")
	check("database: {driver: postgres, dsn: x}\n", "unsupported driver")
	check("database: {driver: mysql, dsn: \"nope\"}\n", "database")
	check("influx:\n  url: http://x\n", "org and bucket")
	check("colour: blue\n", "not found")
	check("peak_file: testdata/nosuch.yaml\n", "nosuch.yaml")
	check("peak_file: testdata/peaks.yaml\nhardware: [{name: x, peak: 1}]\n", "both hardware and peak_file")
}
