// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package usepython provides the driver that selects the
// python runtime used by later steps.
package usepython

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/drone/go-teststeps/task"
	"github.com/drone/go-teststeps/task/logger"
)

// Name is the task name handled by the driver.
const Name = "UsePythonVersion@0"

// Config provides the task inputs.
type Config struct {
	VersionSpec  string `json:"versionSpec"`
	AddToPath    string `json:"addToPath"`
	Architecture string `json:"architecture"`
}

// functions for mocking
var (
	lookPathFn = exec.LookPath
	mkdirAllFn = os.MkdirAll
	symlinkFn  = os.Symlink
	removeFn   = os.Remove
)

// New returns the task execution driver. Shims for python
// executables without a plain python name are created in
// dir.
func New(dir string) task.Handler {
	return &driver{dir: dir}
}

type driver struct {
	dir string
}

// Handle handles the task execution request.
func (d *driver) Handle(ctx context.Context, req *task.Request) task.Response {
	log := logger.FromContext(ctx)

	conf := new(Config)
	if err := json.Unmarshal(req.Task.Data, conf); err != nil {
		return task.Error(err)
	}

	var path string
	for _, name := range candidates(conf.VersionSpec) {
		if p, err := lookPathFn(name); err == nil {
			path = p
			break
		}
	}
	if path == "" {
		return task.Errorf("python version %s is not installed", or(conf.VersionSpec, "3.x"))
	}

	bin := filepath.Dir(path)
	if base := filepath.Base(path); base != "python" && base != "python.exe" {
		var err error
		if bin, err = d.shim(path, conf.VersionSpec); err != nil {
			log.WithError(err).Error("cannot create python shim")
			return task.Error(err)
		}
	}

	log.WithField("python", path).
		WithField("version", conf.VersionSpec).
		Info("selected python runtime")

	if task.Bool(conf.AddToPath, true) {
		fmt.Fprintf(req.Logger, "##vso[task.prependpath]%s\n", bin)
	}
	return task.Respond(nil).(*task.Result).
		Output("pythonLocation", bin)
}

// shim creates a directory with python and python3 links to
// the executable, so that the selected runtime is found by
// its plain name.
func (d *driver) shim(path, spec string) (string, error) {
	dir := filepath.Join(d.dir, "python-"+strings.NewReplacer("*", "x", "/", "_").Replace(or(spec, "3.x")), "bin")
	if err := mkdirAllFn(dir, 0o755); err != nil {
		return "", err
	}
	for _, name := range []string{"python", "python3"} {
		link := filepath.Join(dir, name)
		removeFn(link)
		if err := symlinkFn(path, link); err != nil {
			return "", err
		}
	}
	return dir, nil
}

// candidates returns the executable names that satisfy the
// version spec, in order of preference.
func candidates(spec string) []string {
	spec = strings.TrimSpace(spec)
	switch spec {
	case "", "3", "3.x", "3.*", ">=3":
		return []string{"python3", "python"}
	}
	spec = strings.TrimSuffix(strings.TrimSuffix(spec, ".x"), ".*")
	if strings.HasPrefix(spec, "pypy") {
		return []string{spec}
	}
	// patch versions are not distinguished by the executable
	// name.
	if parts := strings.Split(spec, "."); len(parts) > 2 {
		spec = parts[0] + "." + parts[1]
	}
	return []string{"python" + spec}
}

func or(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
