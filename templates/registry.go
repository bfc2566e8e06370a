// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package templates resolves template references to the
// steps they expand to.
package templates

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/drone/go-teststeps/pipeline"
)

const (
	delimStart = "${{"
	delimEnd   = "}}"
)

// ErrNotFound is returned when a template reference cannot
// be resolved.
var ErrNotFound = errors.New("template not found")

// Func returns the steps of a built-in template.
type Func func(params map[string]any) ([]*pipeline.Step, error)

// Registry resolves template references to built-in
// templates and to yaml templates on disk.
type Registry struct {
	builtins map[string]Func
	dirs     []string
}

// New returns a Registry with the built-in templates
// registered. File templates are looked up in dirs.
func New(dirs ...string) *Registry {
	r := &Registry{
		builtins: map[string]Func{},
		dirs:     dirs,
	}
	r.Register("use-python-version", usePythonVersion)
	r.Register("use-venv", useVenv)
	r.Register("set-dev-build", setDevBuild)
	r.Register("test-proxy-tool", testProxyTool)
	r.Register("auth-dev-feed", authDevFeed)
	r.Register("seed-virtual-environment-wheels", seedWheels)
	return r
}

// Register registers a built-in template. The name is a
// template path or a base name without extension.
func (r *Registry) Register(name string, fn Func) {
	r.builtins[name] = fn
}

// Resolve returns the steps of the referenced template. The
// reference is looked up as an exact built-in name, then as
// a file under the template directories, then by base name
// without the .yml extension.
func (r *Registry) Resolve(ref string, params map[string]any) ([]*pipeline.Step, error) {
	if params == nil {
		params = map[string]any{}
	}
	if fn, ok := r.builtins[ref]; ok {
		return fn(params)
	}
	for _, dir := range r.dirs {
		p := filepath.Join(dir, filepath.FromSlash(ref))
		b, err := os.ReadFile(p)
		if errors.Is(err, os.ErrNotExist) {
			continue
		} else if err != nil {
			return nil, err
		}
		return Render(p, b, params)
	}
	base := strings.TrimSuffix(path.Base(ref), ".yml")
	base = strings.TrimSuffix(base, ".yaml")
	if fn, ok := r.builtins[base]; ok {
		return fn(params)
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
}

// Render renders a yaml template with the ${{ }} delimiters
// and parses the resulting step list. Parameters are
// available as .parameters.
func Render(name string, data []byte, params map[string]any) ([]*pipeline.Step, error) {
	tmpl, err := template.New(name).
		Delims(delimStart, delimEnd).
		Funcs(Functions()).
		Parse(string(data))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	err = tmpl.Execute(&buf, map[string]any{
		"parameters": params,
	})
	if err != nil {
		return nil, err
	}
	return pipeline.ParseBytes(buf.Bytes())
}
