// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package runner

import (
	"os"
	"sort"
	"strings"

	"dario.cat/mergo"
)

type variable struct {
	name   string
	value  string
	secret bool
}

// Variables stores the pipeline variables. Names are
// case-insensitive.
type Variables struct {
	values map[string]*variable
	paths  []string
}

// NewVariables returns an empty variable store.
func NewVariables() *Variables {
	return &Variables{values: map[string]*variable{}}
}

// Set sets the named variable. A variable once marked secret
// remains secret.
func (v *Variables) Set(name, value string, secret bool) {
	key := strings.ToLower(name)
	if prev, ok := v.values[key]; ok {
		prev.value = value
		prev.secret = prev.secret || secret
		return
	}
	v.values[key] = &variable{name: name, value: value, secret: secret}
}

// Get returns the named variable.
func (v *Variables) Get(name string) (string, bool) {
	if x, ok := v.values[strings.ToLower(name)]; ok {
		return x.value, true
	}
	return "", false
}

// IsSecret reports whether the named variable is secret.
func (v *Variables) IsSecret(name string) bool {
	x, ok := v.values[strings.ToLower(name)]
	return ok && x.secret
}

// Map returns all variables, including secrets.
func (v *Variables) Map() map[string]string {
	out := make(map[string]string, len(v.values))
	for _, x := range v.values {
		out[x.name] = x.value
	}
	return out
}

// Secrets returns the secret variables.
func (v *Variables) Secrets() map[string]string {
	out := map[string]string{}
	for _, x := range v.values {
		if x.secret {
			out[x.name] = x.value
		}
	}
	return out
}

// PrependPath adds dir to the front of the PATH of later
// steps.
func (v *Variables) PrependPath(dir string) {
	if dir == "" {
		return
	}
	for i, p := range v.paths {
		if p == dir {
			v.paths = append(v.paths[:i], v.paths[i+1:]...)
			break
		}
	}
	v.paths = append([]string{dir}, v.paths...)
}

// Paths returns the prepended directories, most recent
// first.
func (v *Variables) Paths() []string {
	return append([]string(nil), v.paths...)
}

// Environ returns the process environment of a step. The
// base environment is overlaid with the non-secret variables
// and then with the step env. Prepended directories are
// added to PATH.
func (v *Variables) Environ(base []string, step map[string]string) ([]string, error) {
	env := map[string]string{}
	for _, kv := range base {
		if k, val, ok := strings.Cut(kv, "="); ok && k != "" {
			env[k] = val
		}
	}

	exported := map[string]string{}
	for _, x := range v.values {
		if !x.secret {
			exported[EnvName(x.name)] = x.value
		}
	}
	for _, overlay := range []map[string]string{exported, step} {
		if len(overlay) == 0 {
			continue
		}
		if err := mergo.Merge(&env, overlay, mergo.WithOverride); err != nil {
			return nil, err
		}
	}

	if len(v.paths) > 0 {
		key := pathKey(env)
		parts := append(v.Paths(), filepathList(env[key])...)
		env[key] = strings.Join(parts, string(os.PathListSeparator))
	}

	out := make([]string, 0, len(env))
	for k, val := range env {
		out = append(out, k+"="+val)
	}
	sort.Strings(out)
	return out, nil
}

// EnvName returns the environment variable name of a
// pipeline variable.
func EnvName(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, ".", "_"))
}

// pathKey returns the name of the PATH variable, which is
// case-insensitive on windows.
func pathKey(env map[string]string) string {
	for k := range env {
		if strings.EqualFold(k, "PATH") {
			return k
		}
	}
	return "PATH"
}

func filepathList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, string(os.PathListSeparator))
}
