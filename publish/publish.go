// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package publish sends analysis results to external stores: CSV
// artifacts to an object store such as Google Cloud Storage, and
// points to InfluxDB.
package publish

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/sirupsen/logrus"
	"golang.org/x/perfport/efficiency"
	"golang.org/x/perfport/pipeline"
	"golang.org/x/perfport/report"
)

// WriteArtifacts writes the CSV artifacts of out to fs under dir:
// aggregates.csv, efficiency.csv and one scores_<size>.csv per
// problem size. metadata is attached to every object.
func WriteArtifacts(ctx context.Context, fs FS, dir string, out *pipeline.Output, metadata map[string]string, log logrus.FieldLogger) error {
	if log == nil {
		log = logrus.StandardLogger()
	}
	put := func(name string, write func(io.Writer) error) error {
		name = path.Join(dir, name)
		w, err := fs.NewWriter(ctx, name, metadata)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if err := write(w); err != nil {
			w.CloseWithError(err)
			return fmt.Errorf("%s: %w", name, err)
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		log.WithField("object", name).Info("published")
		return nil
	}

	if err := put("aggregates.csv", func(w io.Writer) error {
		return report.WriteAggregates(w, out.Results)
	}); err != nil {
		return err
	}
	if err := put("efficiency.csv", func(w io.Writer) error {
		tables := make([]*efficiency.Table, len(out.Sizes))
		for i, so := range out.Sizes {
			tables[i] = so.Efficiency
		}
		return report.WriteEfficiency(w, tables...)
	}); err != nil {
		return err
	}
	for _, so := range out.Sizes {
		so := so
		if err := put(fmt.Sprintf("scores_%d.csv", so.Size), func(w io.Writer) error {
			return report.WriteScores(w, so.Size, so.Scores)
		}); err != nil {
			return err
		}
	}
	return nil
}
