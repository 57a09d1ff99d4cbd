// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/perfport/chart"
	"golang.org/x/perfport/efficiency"
	"golang.org/x/perfport/internal/logging"
	"golang.org/x/perfport/pipeline"
	"golang.org/x/perfport/publish"
	"golang.org/x/perfport/report"
	"golang.org/x/perfport/store"

	_ "github.com/go-sql-driver/mysql"
	_ "golang.org/x/perfport/store/sqlite3"
)

func newAggregateCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "aggregate [logs...]",
		Short: "Print the aggregate table as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, out, err := o.run(cmd, args)
			if err != nil {
				return err
			}
			return report.WriteAggregates(cmd.OutOrStdout(), out.Results)
		},
	}
}

func checkFormat(format string, allowed ...string) error {
	for _, a := range allowed {
		if format == a {
			return nil
		}
	}
	return fmt.Errorf("unknown format %q: want one of %s", format, strings.Join(allowed, ", "))
}

func newEfficiencyCmd(o *options) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "efficiency [logs...]",
		Short: "Print the efficiency table of each problem size",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format, "text", "csv", "html"); err != nil {
				return err
			}
			_, out, err := o.run(cmd, args)
			if err != nil {
				return err
			}
			return writeEfficiency(cmd.OutOrStdout(), format, out)
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "Output format (text, csv, html)")
	return cmd
}

func writeEfficiency(w io.Writer, format string, out *pipeline.Output) error {
	switch format {
	case "csv":
		tables := make([]*efficiency.Table, len(out.Sizes))
		for i, so := range out.Sizes {
			tables[i] = so.Efficiency
		}
		return report.WriteEfficiency(w, tables...)
	case "html":
		if len(out.Sizes) != 1 {
			return fmt.Errorf("html output covers one problem size, have %d: use --size", len(out.Sizes))
		}
		so := out.Sizes[0]
		return report.FormatHTML(w, so.Efficiency, so.Scores)
	}
	for i, so := range out.Sizes {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if err := report.FormatEfficiency(w, so.Efficiency); err != nil {
			return err
		}
	}
	return nil
}

func newScoreCmd(o *options) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "score [logs...]",
		Short: "Print the portability scores of each problem size",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format, "text", "csv"); err != nil {
				return err
			}
			_, out, err := o.run(cmd, args)
			if err != nil {
				return err
			}
			return writeScores(cmd.OutOrStdout(), format, out)
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "Output format (text, csv)")
	return cmd
}

func writeScores(w io.Writer, format string, out *pipeline.Output) error {
	if format == "csv" {
		sw := report.NewScoreWriter(w)
		for _, so := range out.Sizes {
			if err := sw.Write(so.Size, so.Scores); err != nil {
				return err
			}
		}
		return sw.Flush()
	}
	for i, so := range out.Sizes {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if err := report.FormatScores(w, so.Size, so.Scores); err != nil {
			return err
		}
	}
	return nil
}

func newChartCmd(o *options) *cobra.Command {
	var dir, image string
	cmd := &cobra.Command{
		Use:   "chart [logs...]",
		Short: "Draw efficiency charts per kernel and throughput charts per hardware target",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(image, "png", "svg", "pdf"); err != nil {
				return err
			}
			_, out, err := o.run(cmd, args)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(dir, 0o777); err != nil {
				return err
			}
			return drawCharts(dir, image, out, logging.GetLogger())
		},
	}
	cmd.Flags().StringVarP(&dir, "out", "o", ".", "Output `directory`")
	cmd.Flags().StringVar(&image, "image", "png", "Image format (png, svg, pdf)")
	return cmd
}

func drawCharts(dir, image string, out *pipeline.Output, log logrus.FieldLogger) error {
	for _, so := range out.Sizes {
		for _, k := range so.Efficiency.Kernels {
			p, err := chart.Portability(k, so.Efficiency, so.Scores)
			if err != nil {
				return err
			}
			path := filepath.Join(dir, fmt.Sprintf("pp_%d_%s.%s", so.Size, k, image))
			if err := chart.Save(p, path); err != nil {
				return err
			}
			log.WithField("path", path).Debug("wrote chart")
		}
	}
	seen := make(map[string]bool)
	for _, r := range out.Results {
		if seen[r.Hardware] {
			continue
		}
		seen[r.Hardware] = true
		p, err := chart.Throughput(out.Results, r.Hardware)
		if err != nil {
			// Every result of this target lacks a throughput mean.
			log.WithField("hardware", r.Hardware).WithError(err).Warn("no throughput chart")
			continue
		}
		path := filepath.Join(dir, fmt.Sprintf("throughput_%s.%s", r.Hardware, image))
		if err := chart.Save(p, path); err != nil {
			return err
		}
		log.WithField("path", path).Debug("wrote chart")
	}
	return nil
}

func newSaveCmd(o *options) *cobra.Command {
	var driver, dsn string
	cmd := &cobra.Command{
		Use:   "save [logs...]",
		Short: "Store results and scores in the results database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, out, err := o.run(cmd, args)
			if err != nil {
				return err
			}
			if driver == "" {
				driver, dsn = cfg.Database.Driver, cfg.Database.DSN
			}
			if driver == "" {
				return fmt.Errorf("no database configured")
			}
			db, err := store.OpenSQL(driver, dsn)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()
			id, err := save(cmd.Context(), db, out)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().StringVar(&driver, "driver", "", "Database driver (sqlite3, mysql); overrides the configuration")
	cmd.Flags().StringVar(&dsn, "dsn", "", "Database data source name")
	return cmd
}

// save stores out as one upload and returns its ID.
func save(ctx context.Context, db *store.DB, out *pipeline.Output) (string, error) {
	u, err := db.NewUpload(ctx)
	if err != nil {
		return "", err
	}
	if err := u.Insert(out.Results...); err != nil {
		u.Abort()
		return "", err
	}
	for _, so := range out.Sizes {
		if err := u.InsertScores(so.Size, so.Scores...); err != nil {
			u.Abort()
			return "", err
		}
	}
	if err := u.Commit(); err != nil {
		return "", err
	}
	logging.GetLogger().WithFields(logrus.Fields{"upload": u.ID, "results": len(out.Results)}).Info("saved")
	return u.ID, nil
}

func newPublishCmd(o *options) *cobra.Command {
	var runID string
	cmd := &cobra.Command{
		Use:   "publish [logs...]",
		Short: "Upload CSV artifacts to Cloud Storage and write points to InfluxDB",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, out, err := o.run(cmd, args)
			if err != nil {
				return err
			}
			if cfg.GCS.Bucket == "" && cfg.Influx.URL == "" {
				return fmt.Errorf("nothing to publish: configure gcs or influx")
			}
			ctx := cmd.Context()
			now := time.Now()
			if runID == "" {
				runID = now.UTC().Format("20060102T150405Z")
			}
			log := logging.GetLogger().WithField("run", runID)
			if cfg.GCS.Bucket != "" {
				fs, err := publish.NewGCS(ctx, cfg.GCS.Bucket)
				if err != nil {
					return err
				}
				defer fs.Close()
				if err := publish.WriteArtifacts(ctx, fs, runID, out, map[string]string{"run": runID}, log); err != nil {
					return err
				}
			}
			if cfg.Influx.URL != "" {
				in, err := publish.NewInflux(ctx, cfg.Influx, log)
				if err != nil {
					return err
				}
				defer in.Close()
				if err := in.Write(ctx, runID, out, now); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "Run ID tagging the published data (default: current UTC time)")
	return cmd
}
