// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/drone/go-teststeps/config"
	"github.com/drone/go-teststeps/pipeline"
	"github.com/drone/go-teststeps/results"
	"github.com/drone/go-teststeps/runner"
	"github.com/drone/go-teststeps/task"
	"github.com/drone/go-teststeps/task/downloader"
	"github.com/drone/go-teststeps/task/drivers/azure"
	"github.com/drone/go-teststeps/task/drivers/pipauth"
	"github.com/drone/go-teststeps/task/drivers/publish"
	"github.com/drone/go-teststeps/task/drivers/script"
	"github.com/drone/go-teststeps/task/drivers/testproxy"
	"github.com/drone/go-teststeps/task/drivers/usepython"
	"github.com/drone/go-teststeps/task/logger"
	"github.com/drone/go-teststeps/task/packaged"
)

// errJobFailed is returned when the job failed or was
// canceled.
var errJobFailed = errors.New("job failed")

// functions for mocking
var (
	newRouterFn = newRouter
	runFn       = func(ctx context.Context, r *runner.Runner, steps []*pipeline.Step) (*runner.Report, error) {
		return r.Run(ctx, steps)
	}
)

func newRunCommand(opts *options) *cobra.Command {
	var report string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the job steps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := opts.load()
			if err != nil {
				return err
			}
			steps, err := j.steps(true)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			r := runner.New(newRouterFn(j.conf),
				runner.WithVariables(j.vars),
				runner.WithSecrets(j.conf.Secrets()),
				runner.WithShell(j.conf.Shell),
				runner.WithDir(j.conf.Workspace.Sources),
				runner.WithOutput(cmd.OutOrStdout()),
			)
			res, err := runFn(ctx, r, steps)
			if err != nil {
				return errors.Wrap(err, "cannot run steps")
			}

			res.WriteTo(cmd.ErrOrStderr())
			if report != "" {
				if err := writeReport(report, res); err != nil {
					return err
				}
			}
			if res.Failed() {
				return errJobFailed
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&report, "report", "", "write the run report as json to the file")
	return cmd
}

// newRouter returns the task router with the built-in task
// drivers registered.
func newRouter(conf *config.Config) *task.Router {
	store := results.NewStore(conf.Results.Dir)
	tools := packaged.New(conf.Proxy.Tools)

	router := task.NewRouter()
	router.Use(logTasks)
	router.Register(script.Name, script.New(conf.Shell))
	router.Register(azure.Name, azure.New(conf.Shell, conf.Connections))
	router.Register(publish.TestResultsName, publish.NewTestResults(store))
	router.Register(publish.CoverageName, publish.NewCoverage(store))
	router.Register(testproxy.Name, testproxy.New(conf.Proxy.Executable, &tools, downloader.New(conf.Proxy.Cache)))
	router.Register(pipauth.Name, pipauth.New(conf.Feed.Host, conf.Feed.Organization))
	router.Register(usepython.Name, usepython.New(conf.Workspace.Temp))
	return router
}

// logTasks logs the outcome of each task.
func logTasks(next task.Handler) task.Handler {
	return task.HandlerFunc(func(ctx context.Context, req *task.Request) task.Response {
		start := time.Now()
		res := next.Handle(ctx, req)
		log := logger.FromContext(ctx).WithField("duration", time.Since(start))
		if err := res.Error(); err != nil {
			log.WithError(err).Debug("task failed")
		} else {
			log.Debug("task completed")
		}
		return res
	})
}

func writeReport(path string, report *runner.Report) error {
	b, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return errors.Wrap(os.WriteFile(path, b, 0o644), "cannot write report")
}
