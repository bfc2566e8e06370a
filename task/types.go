// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package task

import (
	"strconv"
	"strings"
)

// Task is a platform task invocation.
type Task struct {
	// ID provides the identifier of the step invoking
	// the task.
	ID string `json:"id"`

	// Type provides the versioned task name, for
	// example PublishTestResults@2.
	Type string `json:"type"`

	// DisplayName provides the step display name.
	DisplayName string `json:"display_name"`

	// Data provides the task inputs encoded as json.
	Data []byte `json:"data"`

	// Env provides the environment of any process
	// started by the task, in KEY=VALUE form.
	Env []string `json:"env"`

	// Dir provides the working directory.
	Dir string `json:"dir"`
}

// Executable provides the url to download a tool,
// given the operating system and architecture.
type Executable struct {
	Arch string `json:"arch" koanf:"arch"`
	Os   string `json:"os" koanf:"os"`
	Url  string `json:"url" koanf:"url"`
}

// ExecutableConfig provides the download locations of a
// versioned tool.
type ExecutableConfig struct {
	Name        string       `json:"name" koanf:"name"`
	Version     string       `json:"version" koanf:"version"`
	Executables []Executable `json:"executables" koanf:"executables"`

	// Compressed indicates the downloads are zstd
	// compressed.
	Compressed bool `json:"compressed" koanf:"compressed"`

	// Binary provides the path of the executable inside
	// a downloaded archive. Defaults to the tool name.
	Binary string `json:"binary" koanf:"binary"`
}

// Bool parses a task input as a boolean. Task inputs are
// strings; an empty or malformed value yields def.
func Bool(s string, def bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return b
}

// Name returns the task name without the version suffix.
func Name(t string) string {
	if i := strings.IndexByte(t, '@'); i >= 0 {
		return t[:i]
	}
	return t
}
