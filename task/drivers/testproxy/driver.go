// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package testproxy provides the driver that installs, and
// optionally starts, the test proxy used to record and play
// back service requests.
package testproxy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/drone/go-teststeps/task"
	"github.com/drone/go-teststeps/task/logger"
)

// Name is the task name handled by the driver.
const Name = "TestProxyInstall@1"

// Config provides the task inputs.
type Config struct {
	Version    string `json:"version"`
	RunProxy   string `json:"runProxy"`
	RootFolder string `json:"rootFolder"`
}

// Locator locates a prepackaged tool executable.
type Locator interface {
	GetPackagePath(ctx context.Context, exec *task.ExecutableConfig) (string, error)
}

// Fetcher downloads a tool executable.
type Fetcher interface {
	DownloadExecutable(ctx context.Context, exec *task.ExecutableConfig) (string, error)
}

// functions for mocking
var (
	createFn = os.Create
	nowFn    = time.Now
	startFn  = start
)

// New returns the task execution driver for the tool
// described by exec. Download urls may contain a {version}
// placeholder.
func New(exec task.ExecutableConfig, locator Locator, fetcher Fetcher) task.Handler {
	return &driver{exec: exec, locator: locator, fetcher: fetcher}
}

type driver struct {
	exec    task.ExecutableConfig
	locator Locator
	fetcher Fetcher
}

// Handle handles the task execution request.
func (d *driver) Handle(ctx context.Context, req *task.Request) task.Response {
	log := logger.FromContext(ctx)

	conf := new(Config)
	if err := json.Unmarshal(req.Task.Data, conf); err != nil {
		return task.Error(err)
	}

	exe, err := d.install(ctx, conf.Version)
	if err != nil {
		log.WithError(err).Error("cannot install test proxy")
		return task.Error(err)
	}
	log.WithField("path", exe).Info("installed test proxy")

	fmt.Fprintf(req.Logger, "##vso[task.prependpath]%s\n", filepath.Dir(exe))
	res := task.Respond(nil).(*task.Result)
	res.Output("PROXY_EXE", exe)

	if !task.Bool(conf.RunProxy, true) {
		return res
	}

	root := conf.RootFolder
	if root == "" {
		root = req.Task.Dir
	}
	logfile := filepath.Join(root, fmt.Sprintf("_proxy_log_%d.log", nowFn().Unix()))
	f, err := createFn(logfile)
	if err != nil {
		return task.Error(err)
	}

	args := []string{"start", "--storage-location", root}
	pid, err := startFn(exe, args, root, req.Task.Env, f)
	if err != nil {
		f.Close()
		log.WithError(err).Error("cannot start test proxy")
		return task.Error(err)
	}
	fmt.Fprintf(req.Logger, "Started test proxy (pid %d), logging to %s\n", pid, logfile)

	res.Output("PROXY_PID", strconv.Itoa(pid))
	res.Output("PROXY_MANUAL_START", "true")
	return res
}

// install returns the path of the tool executable, preferring
// a prepackaged executable over a download.
func (d *driver) install(ctx context.Context, version string) (string, error) {
	exec := d.exec
	if version != "" {
		exec.Version = version
	}
	if d.locator != nil {
		if path, err := d.locator.GetPackagePath(ctx, &exec); err == nil {
			return path, nil
		}
	}
	if d.fetcher == nil {
		return "", fmt.Errorf("%s is not packaged and downloads are not configured", exec.Name)
	}
	if exec.Version == "" {
		return "", fmt.Errorf("no version configured for %s", exec.Name)
	}
	exec.Executables = make([]task.Executable, len(d.exec.Executables))
	for i, e := range d.exec.Executables {
		e.Url = strings.ReplaceAll(e.Url, "{version}", exec.Version)
		exec.Executables[i] = e
	}
	return d.fetcher.DownloadExecutable(ctx, &exec)
}

// start starts the process in the background and returns its
// pid. The process outlives the step; its output is written
// to w, which is closed when the process exits.
func start(name string, args []string, dir string, env []string, w io.WriteCloser) (int, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	cmd.Env = env
	cmd.Stdout = w
	cmd.Stderr = w
	if err := cmd.Start(); err != nil {
		return 0, err
	}
	go func() {
		cmd.Wait()
		w.Close()
	}()
	return cmd.Process.Pid, nil
}
