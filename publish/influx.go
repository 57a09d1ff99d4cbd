// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package publish

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sirupsen/logrus"
	"golang.org/x/perfport/aggregate"
	"golang.org/x/perfport/pipeline"
	"golang.org/x/perfport/portability"
)

// Measurement names.
const (
	ResultMeasurement = "perfport_result"
	ScoreMeasurement  = "perfport_score"
)

// InfluxConfig locates an InfluxDB bucket.
type InfluxConfig struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

// Influx writes analysis results to InfluxDB.
type Influx struct {
	client influxdb2.Client
	write  api.WriteAPIBlocking
	log    logrus.FieldLogger
}

// NewInflux connects to the InfluxDB server described by cfg and
// checks its health.
func NewInflux(ctx context.Context, cfg InfluxConfig, log logrus.FieldLogger) (*Influx, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to InfluxDB at %s: %w", cfg.URL, err)
	}
	if health.Status != "pass" {
		client.Close()
		return nil, fmt.Errorf("InfluxDB at %s is unhealthy: %s", cfg.URL, health.Status)
	}
	log.WithFields(logrus.Fields{"url": cfg.URL, "org": cfg.Org, "bucket": cfg.Bucket}).Info("connected to InfluxDB")
	return &Influx{
		client: client,
		write:  client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:    log,
	}, nil
}

// Write writes every result and score of out with timestamp t.
// runID is attached to every point as the run tag.
func (in *Influx) Write(ctx context.Context, runID string, out *pipeline.Output, t time.Time) error {
	points := ResultPoints(runID, out.Results, t)
	for _, so := range out.Sizes {
		points = append(points, ScorePoints(runID, so.Size, so.Scores, t)...)
	}
	if len(points) == 0 {
		return nil
	}
	if err := in.write.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("writing %d points: %w", len(points), err)
	}
	in.log.WithField("points", len(points)).Info("wrote to InfluxDB")
	return nil
}

// Close releases the client.
func (in *Influx) Close() {
	in.client.Close()
}

// addStat adds the mean and std fields of s, omitting NaNs, which
// InfluxDB cannot store.
func addStat(fields map[string]interface{}, name string, s aggregate.Stat) {
	if !math.IsNaN(s.Mean) {
		fields[name+"_mean"] = s.Mean
	}
	if !math.IsNaN(s.StdDev) {
		fields[name+"_std"] = s.StdDev
	}
}

// ResultPoints converts aggregated results to points.
func ResultPoints(runID string, results []aggregate.Result, t time.Time) []*write.Point {
	points := make([]*write.Point, 0, len(results))
	for _, r := range results {
		fields := map[string]interface{}{"n": r.N}
		addStat(fields, "error", r.Error)
		addStat(fields, "runtime", r.Duration)
		addStat(fields, "cellspersec", r.CellsPerSec)
		addStat(fields, "throughput", r.Throughput)
		points = append(points, influxdb2.NewPoint(ResultMeasurement,
			map[string]string{
				"run":         runID,
				"kernel":      r.Kernel,
				"hardware":    r.Hardware,
				"global_size": strconv.Itoa(r.Size),
				"gpu":         strconv.FormatBool(r.UsesGPU),
			},
			fields, t))
	}
	return points
}

// ScorePoints converts the portability scores at one problem size to
// points.
func ScorePoints(runID string, size int, scores []portability.Score, t time.Time) []*write.Point {
	points := make([]*write.Point, 0, len(scores))
	for _, s := range scores {
		points = append(points, influxdb2.NewPoint(ScoreMeasurement,
			map[string]string{
				"run":         runID,
				"kernel":      s.Kernel,
				"subset":      s.Subset,
				"global_size": strconv.Itoa(size),
			},
			map[string]interface{}{"pp_arch": s.Arch, "pp_app": s.App},
			t))
	}
	return points
}
