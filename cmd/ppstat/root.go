// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"golang.org/x/perfport/internal/config"
	"golang.org/x/perfport/internal/logging"
	"golang.org/x/perfport/loader"
	"golang.org/x/perfport/pipeline"
	"golang.org/x/perfport/trial"
)

// options are the flags shared by every command.
type options struct {
	configFile  string
	envFile     string
	logLevel    string
	hardware    string
	inputFormat string
	sizes       []int
}

func newRootCmd() *cobra.Command {
	var o options
	rootCmd := &cobra.Command{
		Use:           "ppstat",
		Short:         "Performance portability analysis of benchmark logs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if o.logLevel != "" {
				if err := logging.SetLogLevel(o.logLevel); err != nil {
					return fmt.Errorf("invalid log level: %w", err)
				}
			}
			loadEnvironment(o.envFile)
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&o.configFile, "config", "c", "", "Analysis configuration `file`")
	flags.StringVar(&o.envFile, "env", ".env", "Environment `file` loaded before the configuration")
	flags.StringVar(&o.logLevel, "log-level", "", "Set log level (trace, debug, info, warn, error)")
	flags.StringVar(&o.hardware, "hardware", "", "Hardware target of the log files given as arguments")
	flags.StringVar(&o.inputFormat, "input-format", "", "Format of the log files given as arguments (delimited, gbench, aggregate)")
	flags.IntSliceVar(&o.sizes, "size", nil, "Analyze only these problem sizes")

	rootCmd.AddCommand(
		newAggregateCmd(&o),
		newEfficiencyCmd(&o),
		newScoreCmd(&o),
		newChartCmd(&o),
		newSaveCmd(&o),
		newPublishCmd(&o),
	)
	return rootCmd
}

// loadEnvironment loads envFile if it exists. Variables already set
// in the environment win.
func loadEnvironment(envFile string) {
	log := logging.GetLogger()
	if envFile == "" {
		return
	}
	if _, err := os.Stat(envFile); err != nil {
		return
	}
	if err := godotenv.Load(envFile); err != nil {
		log.WithField("file", envFile).WithError(err).Warn("Error loading .env file")
		return
	}
	log.WithField("file", envFile).Debug("Loaded environment variables")
}

// loadConfig returns the configuration with the inputs named on the
// command line appended.
func (o *options) loadConfig(args []string) (*config.Config, error) {
	cfg := new(config.Config)
	if o.configFile != "" {
		var err error
		if cfg, err = config.Load(o.configFile); err != nil {
			return nil, err
		}
	}
	if len(args) > 0 {
		cfg.Inputs = append(cfg.Inputs, config.Input{
			Hardware: o.hardware,
			Format:   o.inputFormat,
			Paths:    args,
		})
	}
	if len(o.sizes) > 0 {
		cfg.Sizes = o.sizes
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(cfg.Inputs) == 0 {
		return nil, fmt.Errorf("no inputs: give log files or a configuration with inputs")
	}
	return cfg, nil
}

// analyze loads every input of cfg and runs the pipeline over it.
func analyze(ctx context.Context, cfg *config.Config) (*pipeline.Output, error) {
	log := logging.GetLogger()
	batch := loader.Batch{Trials: new(trial.Store)}
	var skipped error
	for _, f := range cfg.Files(log) {
		b, err := f.Load()
		if err != nil {
			return nil, err
		}
		if err := batch.Merge(b); err != nil {
			return nil, err
		}
		skipped = multierr.Append(skipped, f.Skipped())
	}
	if n := len(multierr.Errors(skipped)); n > 0 {
		log.WithField("skipped", n).Warn("some inputs could not be read")
	}
	log.WithFields(logrus.Fields{"trials": batch.NumTrials(), "results": len(batch.Results)}).Info("loaded inputs")

	peaks, err := cfg.Peaks()
	if err != nil {
		return nil, err
	}
	return pipeline.Run(ctx, pipeline.Input{
		Trials:  batch.Trials,
		Results: batch.Results,
		Peaks:   peaks,
		Kernels: cfg.Kernels,
		Sizes:   cfg.Sizes,
		Subsets: cfg.PortabilitySubsets(peaks),
		Logger:  log,
	})
}

// run loads the configuration and runs the analysis for a command.
func (o *options) run(cmd *cobra.Command, args []string) (*config.Config, *pipeline.Output, error) {
	cfg, err := o.loadConfig(args)
	if err != nil {
		return nil, nil, err
	}
	out, err := analyze(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, out, nil
}
