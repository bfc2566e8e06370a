// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package script provides the python script task driver.
package script

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/drone/go-teststeps/task"
	"github.com/drone/go-teststeps/task/logger"
	"github.com/drone/go-teststeps/task/shell"
)

// Name is the task name handled by the driver.
const Name = "PythonScript@0"

const heredoc = "__PYTHON_SCRIPT_EOF__"

// Config provides the task inputs.
type Config struct {
	ScriptSource      string `json:"scriptSource"`
	ScriptPath        string `json:"scriptPath"`
	Script            string `json:"script"`
	Arguments         string `json:"arguments"`
	PythonInterpreter string `json:"pythonInterpreter"`
	WorkingDirectory  string `json:"workingDirectory"`
}

// runFn executes the script, for mocking.
var runFn = func(ctx context.Context, e *shell.Execer, kind shell.Kind, body string) error {
	return e.Run(ctx, kind, body)
}

// New returns the task execution driver.
func New(conf shell.Config) task.Handler {
	return &driver{shell: conf}
}

type driver struct {
	shell shell.Config
}

// Handle handles the task execution request.
func (d *driver) Handle(ctx context.Context, req *task.Request) task.Response {
	log := logger.FromContext(ctx)

	conf := new(Config)
	// decode the task inputs
	if err := json.Unmarshal(req.Task.Data, conf); err != nil {
		return task.Error(err)
	}

	body, err := d.command(conf)
	if err != nil {
		return task.Error(err)
	}

	dir := conf.WorkingDirectory
	if dir == "" {
		dir = req.Task.Dir
	}
	execer := &shell.Execer{
		Config: d.shell,
		Dir:    dir,
		Env:    req.Task.Env,
		Stdout: req.Logger,
	}

	log.WithField("script.path", conf.ScriptPath).
		WithField("script.dir", dir).
		Debug("invoke python script")

	if err := runFn(ctx, execer, shell.Bash, body); err != nil {
		log.WithError(err).Error("python script failed")
		return task.Error(err)
	}
	return task.Respond(nil)
}

// command returns the bash command line that runs the
// python script.
func (d *driver) command(conf *Config) (string, error) {
	python := conf.PythonInterpreter
	if python == "" {
		python = d.shell.PythonPath()
	}
	args := strings.TrimSpace(conf.Arguments)

	if strings.EqualFold(conf.ScriptSource, "inline") {
		if strings.TrimSpace(conf.Script) == "" {
			return "", errors.New("input script is required")
		}
		var b strings.Builder
		b.WriteString(shell.Quote(python))
		b.WriteString(" -")
		if args != "" {
			b.WriteString(" " + args)
		}
		b.WriteString(" <<'" + heredoc + "'\n")
		b.WriteString(conf.Script)
		b.WriteString("\n" + heredoc)
		return b.String(), nil
	}

	if conf.ScriptPath == "" {
		return "", errors.New("input scriptPath is required")
	}
	cmd := shell.Quote(python) + " " + shell.Quote(conf.ScriptPath)
	if args != "" {
		cmd += " " + args
	}
	return cmd, nil
}
