// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cmd provides the command line interface.
package cmd

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/drone/go-teststeps/config"
	"github.com/drone/go-teststeps/pipeline"
	"github.com/drone/go-teststeps/task/logger"
	"github.com/drone/go-teststeps/task/macro"
	"github.com/drone/go-teststeps/templates"
)

// options provides the persistent command line flags.
type options struct {
	config  string
	params  string
	vars    []string
	verbose bool
	json    bool
}

// job provides the loaded configuration of a command.
type job struct {
	conf   *config.Config
	params pipeline.Parameters
	vars   map[string]string
}

// Execute runs the root command and exits with a non-zero
// code on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// NewRootCommand returns the root command.
func NewRootCommand() *cobra.Command {
	opts := new(options)
	root := &cobra.Command{
		Use:   "teststeps",
		Short: "Build and run the test job of a python sdk package",
		Long: `Builds the ordered steps of the build-and-test job for a
python sdk service directory, and runs them locally.`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.config, "config", "", "path to the configuration file (default teststeps.toml)")
	flags.StringVar(&opts.params, "params", "", "path to the job parameters file (yaml or json)")
	flags.StringArrayVar(&opts.vars, "var", nil, "pipeline variable in Name=Value form (repeatable)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	flags.BoolVar(&opts.json, "json", false, "write logs as json")

	root.AddCommand(
		newRenderCommand(opts),
		newRunCommand(opts),
		newResultsCommand(opts),
	)
	return root
}

// load loads the configuration and parameters, and
// configures the logger.
func (o *options) load() (*job, error) {
	conf, err := config.Load(o.config)
	if err != nil {
		return nil, errors.Wrap(err, "cannot load configuration")
	}
	logger.Configure(o.verbose || conf.Log.Verbose, o.json || conf.Log.JSON)

	params := pipeline.DefaultParameters()
	if o.params != "" {
		p, err := pipeline.LoadParameters(o.params)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot load parameters %s", o.params)
		}
		params = *p
	}

	vars := conf.Variables()
	overrides, err := parseVars(o.vars)
	if err != nil {
		return nil, err
	}
	macro.Merge(vars, overrides)
	return &job{conf: conf, params: params, vars: vars}, nil
}

// steps builds the job steps, expanding templates when
// expand is true.
func (j *job) steps(expand bool) ([]*pipeline.Step, error) {
	steps, err := pipeline.NewBuilder(j.params, j.vars).Build()
	if err != nil {
		return nil, errors.Wrap(err, "cannot build steps")
	}
	if !expand {
		return steps, nil
	}
	steps, err = pipeline.Expand(steps, templates.New(j.conf.Templates.Dirs...))
	if err != nil {
		return nil, errors.Wrap(err, "cannot expand templates")
	}
	return steps, nil
}

// parseVars parses Name=Value pairs.
func parseVars(pairs []string) (map[string]string, error) {
	out := map[string]string{}
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, errors.Errorf("invalid variable %q: expect Name=Value", pair)
		}
		macro.Set(out, strings.TrimSpace(name), value)
	}
	return out, nil
}
