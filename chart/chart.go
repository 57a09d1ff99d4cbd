// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package chart draws efficiency and throughput charts.
package chart

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"golang.org/x/perfport/aggregate"
	"golang.org/x/perfport/efficiency"
	"golang.org/x/perfport/portability"
)

// Default figure size.
const (
	Width  = 16 * vg.Centimeter
	Height = 10 * vg.Centimeter
)

var barWidth = vg.Points(14)

func blue(alpha uint8) color.Color {
	return color.NRGBA{0x1f, 0x77, 0xb4, alpha}
}

func orange(alpha uint8) color.Color {
	return color.NRGBA{0xff, 0x7f, 0x0e, alpha}
}

// Portability returns a bar chart of the application and
// architectural efficiency of kernel on each hardware target of t.
// A NotRun target has no bar. Each score of kernel in scores is drawn
// as a horizontal line across the chart.
func Portability(kernel string, t *efficiency.Table, scores []portability.Score) (*plot.Plot, error) {
	if len(t.Hardware) == 0 {
		return nil, fmt.Errorf("efficiency table for size %d has no hardware", t.Size)
	}
	app := make(plotter.Values, len(t.Hardware))
	arch := make(plotter.Values, len(t.Hardware))
	found := false
	for i, h := range t.Hardware {
		e, ok := t.Lookup(kernel, h)
		found = found || ok
		app[i] = e.App.Or(0)
		arch[i] = e.Arch.Or(0)
	}
	if !found {
		return nil, fmt.Errorf("kernel %q is not in the efficiency table", kernel)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s, global_size %d", kernel, t.Size)
	p.Y.Label.Text = "efficiency"
	p.Y.Min = 0
	grid := plotter.NewGrid()
	grid.Vertical.Color = nil
	p.Add(grid)

	appBars, err := plotter.NewBarChart(app, barWidth)
	if err != nil {
		return nil, err
	}
	appBars.Color = blue(0xff)
	appBars.LineStyle.Width = 0
	appBars.Offset = -barWidth / 2

	archBars, err := plotter.NewBarChart(arch, barWidth)
	if err != nil {
		return nil, err
	}
	archBars.Color = orange(0xff)
	archBars.LineStyle.Width = 0
	archBars.Offset = barWidth / 2

	p.Add(appBars, archBars)
	p.Legend.Add("app", appBars)
	p.Legend.Add("arch", archBars)
	p.Legend.Top = true

	i := 0
	for _, sc := range scores {
		if sc.Kernel != kernel {
			continue
		}
		for _, l := range []struct {
			name string
			v    float64
		}{{"app", sc.App}, {"arch", sc.Arch}} {
			line, err := hline(l.v, len(t.Hardware))
			if err != nil {
				return nil, err
			}
			line.Color = plotutil.Color(i + 2)
			line.Dashes = plotutil.Dashes(i)
			p.Add(line)
			p.Legend.Add(fmt.Sprintf("PP %s %s = %.3f", l.name, sc.Subset, l.v), line)
			i++
		}
	}

	p.NominalX(t.Hardware...)
	if p.Y.Max < 1 {
		p.Y.Max = 1
	}
	return p, nil
}

// hline returns a horizontal line at y spanning n nominal x positions.
func hline(y float64, n int) (*plotter.Line, error) {
	line, err := plotter.NewLine(plotter.XYs{{X: -0.5, Y: y}, {X: float64(n) - 0.5, Y: y}})
	if err != nil {
		return nil, err
	}
	line.Width = vg.Points(1.5)
	return line, nil
}

// errPoints is a line with vertical error bars.
type errPoints struct {
	plotter.XYs
	plotter.YErrors
}

// Throughput returns a line chart of mean throughput against problem
// size for every kernel measured on hardware, with one standard
// deviation error bars. The size axis is logarithmic in base 2.
func Throughput(results []aggregate.Result, hardware string) (*plot.Plot, error) {
	var kernels []string
	byKernel := make(map[string][]aggregate.Result)
	for _, r := range results {
		if r.Hardware != hardware || r.Size <= 0 || math.IsNaN(r.Throughput.Mean) {
			continue
		}
		if _, ok := byKernel[r.Kernel]; !ok {
			kernels = append(kernels, r.Kernel)
		}
		byKernel[r.Kernel] = append(byKernel[r.Kernel], r)
	}
	if len(kernels) == 0 {
		return nil, fmt.Errorf("no throughput results for hardware %q", hardware)
	}

	p := plot.New()
	p.Title.Text = "throughput on " + hardware
	p.X.Label.Text = "global_size"
	p.Y.Label.Text = "throughput"
	p.X.Scale = plot.LogScale{}
	p.X.Tick.Marker = pow2Ticks{}
	p.Add(plotter.NewGrid())
	p.Legend.Top = true
	p.Legend.Left = true

	for i, k := range kernels {
		rs := byKernel[k]
		sort.Slice(rs, func(i, j int) bool { return rs[i].Size < rs[j].Size })
		pts := errPoints{
			XYs:     make(plotter.XYs, len(rs)),
			YErrors: make(plotter.YErrors, len(rs)),
		}
		for j, r := range rs {
			pts.XYs[j] = plotter.XY{X: float64(r.Size), Y: r.Throughput.Mean}
			sd := r.Throughput.StdDev
			if math.IsNaN(sd) {
				sd = 0
			}
			pts.YErrors[j].Low, pts.YErrors[j].High = sd, sd
		}
		line, scatter, err := plotter.NewLinePoints(pts.XYs)
		if err != nil {
			return nil, err
		}
		line.Color = plotutil.Color(i)
		scatter.Color = plotutil.Color(i)
		scatter.Shape = plotutil.Shape(i)
		bars, err := plotter.NewYErrorBars(pts)
		if err != nil {
			return nil, err
		}
		bars.Color = plotutil.Color(i)
		p.Add(line, scatter, bars)
		p.Legend.Add(k, line, scatter)
	}
	return p, nil
}

// pow2Ticks places major ticks at the powers of two within the axis
// range.
type pow2Ticks struct{}

func (pow2Ticks) Ticks(min, max float64) []plot.Tick {
	if !(min > 0) || max < min {
		return nil
	}
	var ticks []plot.Tick
	for e := math.Floor(math.Log2(min)); e <= math.Ceil(math.Log2(max)); e++ {
		v := math.Exp2(e)
		if v < min || v > max {
			continue
		}
		ticks = append(ticks, plot.Tick{Value: v, Label: "2^" + strconv.Itoa(int(e))})
	}
	return ticks
}

// Save writes p to path in the format implied by its extension.
func Save(p *plot.Plot, path string) error {
	return p.Save(Width, Height, path)
}

// WriteTo writes p to w in the given format, such as "png" or "svg".
func WriteTo(p *plot.Plot, w io.Writer, format string) error {
	wt, err := p.WriterTo(Width, Height, format)
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}
