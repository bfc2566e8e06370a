// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package task

import (
	"io"

	"github.com/drone/go-teststeps/task/macro"
)

// Request defines a task request.
type Request struct {
	// Task provides the current task.
	Task *Task `json:"task"`

	// Variables provides the pipeline variables visible
	// to the task, including secret variables.
	Variables map[string]string `json:"-"`

	// Secrets provides the names and values of secrets
	// that are available to the task execution.
	Secrets map[string]string `json:"-"`

	// Logger receives the task output. Logging commands
	// written to the logger are processed by the runner.
	Logger io.Writer `json:"-"`

	// ID provides a unique identifier of the pipeline run.
	ID string `json:"id"`
}

// Variable returns the named variable. Names are
// case-insensitive.
func (r *Request) Variable(name string) string {
	v, _ := macro.Map(r.Variables)(name)
	return v
}
