// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package peak

import (
	"math"
	"reflect"
	"strings"
	"testing"
)

func TestSTREAM(t *testing.T) {
	tab := STREAM()
	if got, want := tab.Names(), []string{"mi250", "a100", "epyc", "genoa", "xeon"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Names = %v, want %v", got, want)
	}
	if p, ok := tab.Peak("a100"); !ok || p != 87.625 {
		t.Errorf("Peak(a100) = %v, %v", p, ok)
	}
	if _, ok := tab.Peak("h100"); ok {
		t.Error("Peak(h100) found")
	}
	if h, _ := tab.Lookup("mi250"); !h.GPU {
		t.Error("mi250 is not marked as a GPU")
	}
	if h := tab.At(2); h.Name != "epyc" || h.GPU {
		t.Errorf("At(2) = %+v", h)
	}
}

func TestLoad(t *testing.T) {
	tab, err := Load(strings.NewReader(`
- {name: h100, peak: 120.5, gpu: true}
- name: sapphire
  peak: 31
`))
	if err != nil {
		t.Fatal(err)
	}
	if tab.Len() != 2 {
		t.Fatalf("Len = %d, want 2", tab.Len())
	}
	if got := tab.At(1); got != (Hardware{Name: "sapphire", Peak: 31}) {
		t.Errorf("At(1) = %+v", got)
	}
}

func TestNewInvalid(t *testing.T) {
	check := func(hw ...Hardware) {
		t.Helper()
		if _, err := New(hw...); err == nil {
			t.Errorf("New(%+v) succeeded, want error", hw)
		}
	}
	check(Hardware{Peak: 1})
	check(Hardware{Name: "a", Peak: 1}, Hardware{Name: "a", Peak: 2})
	check(Hardware{Name: "a", Peak: 0})
	check(Hardware{Name: "a", Peak: -3})
	check(Hardware{Name: "a", Peak: math.NaN()})
	check(Hardware{Name: "a", Peak: math.Inf(1)})
}
