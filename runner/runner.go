// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package runner executes a step sequence. Steps run one
// after another; each step is gated by its run condition,
// which is evaluated against the job status and the pipeline
// variables.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/drone/go-teststeps/pipeline"
	"github.com/drone/go-teststeps/pipeline/condition"
	"github.com/drone/go-teststeps/task"
	"github.com/drone/go-teststeps/task/logger"
	"github.com/drone/go-teststeps/task/macro"
	"github.com/drone/go-teststeps/task/masker"
	"github.com/drone/go-teststeps/task/shell"
)

// functions for mocking
var (
	nowFn       = time.Now
	runScriptFn = func(ctx context.Context, e *shell.Execer, kind shell.Kind, body string) error {
		return e.Run(ctx, kind, body)
	}
)

// Option configures a Runner.
type Option func(*Runner)

// WithVariables adds pipeline variables.
func WithVariables(vars map[string]string) Option {
	return func(r *Runner) {
		for _, k := range macro.Keys(vars) {
			r.seed = append(r.seed, variable{name: k, value: vars[k]})
		}
	}
}

// WithSecrets adds secret pipeline variables.
func WithSecrets(secrets map[string]string) Option {
	return func(r *Runner) {
		for _, k := range macro.Keys(secrets) {
			r.seed = append(r.seed, variable{name: k, value: secrets[k], secret: true})
		}
	}
}

// WithShell sets the shell interpreters.
func WithShell(conf shell.Config) Option {
	return func(r *Runner) { r.shell = conf }
}

// WithOutput sets the writer receiving the step output.
func WithOutput(w io.Writer) Option {
	return func(r *Runner) { r.out = w }
}

// WithDir sets the working directory of the steps.
func WithDir(dir string) Option {
	return func(r *Runner) { r.dir = dir }
}

// WithEnv sets the base process environment of the steps.
func WithEnv(env []string) Option {
	return func(r *Runner) { r.env = env }
}

// Runner executes steps.
type Runner struct {
	router task.Handler
	shell  shell.Config
	out    io.Writer
	dir    string
	env    []string
	seed   []variable
}

// New returns a Runner that executes task steps with the
// router.
func New(router task.Handler, opts ...Option) *Runner {
	r := &Runner{
		router: router,
		out:    os.Stdout,
		env:    os.Environ(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// run provides the state of a single run.
type run struct {
	*Runner
	id     string
	vars   *Variables
	masker *masker.Masker
	status condition.Status
}

// Run executes the steps in order. An error is returned when
// the steps cannot be run at all; step failures are reported
// in the Report.
func (r *Runner) Run(ctx context.Context, steps []*pipeline.Step) (*Report, error) {
	conds := make([]*condition.Expression, len(steps))
	for i, step := range steps {
		if err := step.Validate(); err != nil {
			return nil, errors.Wrapf(err, "step %s", step.Title())
		}
		if step.Kind() == pipeline.KindTemplate {
			return nil, errors.Errorf("step %s: template %s is not expanded", step.Title(), step.Template.Path)
		}
		expr, err := condition.Compile(step.Condition)
		if err != nil {
			return nil, errors.Wrapf(err, "step %s", step.Title())
		}
		conds[i] = expr
	}

	x := &run{
		Runner: r,
		id:     uuid.NewString(),
		vars:   NewVariables(),
		status: condition.Succeeded,
	}
	for _, v := range r.seed {
		x.vars.Set(v.name, v.value, v.secret)
	}
	x.masker = masker.New(r.out, masker.Slice(x.vars.Secrets()))

	log := logger.FromContext(ctx).WithField("run", x.id)
	ctx = logger.WithContext(ctx, log)

	report := &Report{ID: x.id, Started: nowFn()}
	for i, step := range steps {
		sr := &StepReport{
			Name:      step.Name,
			Title:     step.Title(),
			Condition: conds[i].String(),
		}
		report.Steps = append(report.Steps, sr)

		if x.status == condition.Canceled || ctx.Err() != nil {
			x.status = condition.Canceled
			sr.Outcome = Skipped
			continue
		}

		ok, err := conds[i].Eval(condition.Context{
			Status: x.status,
			Lookup: x.vars.Get,
		})
		if err != nil {
			return report, errors.Wrapf(err, "step %s", sr.Title)
		}
		if !ok {
			sr.Outcome = Skipped
			log.WithField("step", step.Name).
				WithField("condition", sr.Condition).
				Debug("step skipped")
			fmt.Fprintf(x.masker, "##[section]Skipping: %s\n", sr.Title)
			continue
		}

		x.step(ctx, step, sr)
	}
	report.Status = x.status
	report.Finished = nowFn()
	return report, nil
}

// step executes the step and updates the job status.
func (x *run) step(ctx context.Context, step *pipeline.Step, sr *StepReport) {
	log := logger.FromContext(ctx).WithField("step", step.Name)
	ctx = logger.WithContext(ctx, log)

	fmt.Fprintf(x.masker, "##[section]Starting: %s\n", sr.Title)
	started := nowFn()

	var complete Outcome
	w := newCommandWriter(x.masker, func(cmd *Command) string {
		return x.command(ctx, cmd, sr, &complete)
	})

	var err error
	switch step.Kind() {
	case pipeline.KindScript:
		err = x.script(ctx, step, w)
	case pipeline.KindTask:
		err = x.task(ctx, step, w)
	}
	w.Flush()
	sr.Duration = nowFn().Sub(started)

	if err == nil && complete == Failed {
		err = errors.New("task completed with result Failed")
	}
	switch {
	case err == nil && complete == SucceededWithIssues:
		sr.Outcome = SucceededWithIssues
		if x.status == condition.Succeeded {
			x.status = condition.SucceededWithIssues
		}
	case err == nil:
		sr.Outcome = Succeeded
	case ctx.Err() != nil:
		sr.Outcome = Canceled
		sr.Error = ctx.Err().Error()
		x.status = condition.Canceled
	case step.ContinueOnError:
		sr.Outcome = SucceededWithIssues
		sr.Error = x.masker.String(err.Error())
		sr.ExitCode = exitCode(err)
		if x.status == condition.Succeeded {
			x.status = condition.SucceededWithIssues
		}
	default:
		sr.Outcome = Failed
		sr.Error = x.masker.String(err.Error())
		sr.ExitCode = exitCode(err)
		x.status = condition.Failed
	}

	if err != nil {
		fmt.Fprintf(x.masker, "##[error]%s\n", err)
		log.WithError(err).WithField("outcome", sr.Outcome).Warn("step failed")
	}
	fmt.Fprintf(x.masker, "##[section]Finishing: %s\n", sr.Title)
}

// script executes a script step.
func (x *run) script(ctx context.Context, step *pipeline.Step, w io.Writer) error {
	env, err := x.environ(ctx, step)
	if err != nil {
		return err
	}
	body, missing := macro.ExpandString(step.Script.Body, x.vars.Get)
	warnMissing(ctx, missing)

	execer := &shell.Execer{
		Config: x.shell,
		Dir:    x.dir,
		Env:    env,
		Stdout: w,
	}
	return runScriptFn(ctx, execer, step.Script.Shell, body)
}

// task executes a task step with the router.
func (x *run) task(ctx context.Context, step *pipeline.Step, w io.Writer) error {
	if x.router == nil {
		return errors.Errorf("no task router configured for %s", step.Task.Name)
	}
	env, err := x.environ(ctx, step)
	if err != nil {
		return err
	}
	inputs := step.Task.Inputs
	if inputs == nil {
		inputs = pipeline.Values{}
	}
	data, err := json.Marshal(inputs)
	if err != nil {
		return err
	}

	req := &task.Request{
		ID: x.id,
		Task: &task.Task{
			ID:          step.Name,
			Type:        step.Task.Name,
			DisplayName: step.Title(),
			Data:        data,
			Env:         env,
			Dir:         x.dir,
		},
		Variables: x.vars.Map(),
		Secrets:   x.vars.Secrets(),
		Logger:    w,
	}
	res := x.router.Handle(ctx, req)
	if result, ok := res.(*task.Result); ok {
		for k, v := range result.Secrets {
			x.vars.Set(k, v, true)
			x.masker.Add(v)
		}
		for k, v := range result.Outputs {
			x.vars.Set(k, v, false)
		}
	}
	return res.Error()
}

// environ returns the process environment of the step.
func (x *run) environ(ctx context.Context, step *pipeline.Step) ([]string, error) {
	env, missing := macro.ExpandMap(step.Env, x.vars.Get)
	warnMissing(ctx, missing)
	out, err := x.vars.Environ(x.env, env)
	if err != nil {
		return nil, errors.Wrap(err, "cannot build step environment")
	}
	return out, nil
}

// command applies a logging command and returns the text
// written to the output in its place.
func (x *run) command(ctx context.Context, cmd *Command, sr *StepReport, complete *Outcome) string {
	log := logger.FromContext(ctx)
	switch cmd.Name {
	case "task.setvariable":
		name := cmd.Property("variable")
		if name == "" {
			log.Warn("setvariable command without a variable name")
			return ""
		}
		secret := task.Bool(cmd.Property("issecret"), false)
		if secret {
			x.masker.Add(cmd.Value)
		}
		x.vars.Set(name, cmd.Value, secret)
		log.WithField("variable", name).Debug("variable set")
	case "task.setsecret":
		x.masker.Add(cmd.Value)
	case "task.prependpath":
		x.vars.PrependPath(strings.TrimSpace(cmd.Value))
	case "task.logissue":
		switch strings.ToLower(cmd.Property("type")) {
		case "error":
			sr.Errors = append(sr.Errors, x.masker.String(cmd.Value))
			return "##[error]" + cmd.Value
		default:
			sr.Warnings = append(sr.Warnings, x.masker.String(cmd.Value))
			return "##[warning]" + cmd.Value
		}
	case "task.complete":
		switch strings.ToLower(cmd.Property("result")) {
		case "failed":
			*complete = Failed
		case "succeededwithissues":
			*complete = SucceededWithIssues
		case "succeeded":
			*complete = Succeeded
		}
	default:
		log.WithField("command", cmd.Name).Debug("unsupported logging command")
	}
	return ""
}

// exitCode returns the process exit code carried by err, or
// zero when err does not carry one.
func exitCode(err error) int {
	if code := shell.ExitCode(err); code > 0 {
		return code
	}
	return 0
}

func warnMissing(ctx context.Context, missing []string) {
	for _, name := range missing {
		logger.FromContext(ctx).
			WithField("variable", name).
			Warn("macro references an undefined variable")
	}
}
