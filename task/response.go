// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package task

import (
	"encoding/json"
	"fmt"
)

// Response is a response interface.
type Response interface {
	// Body gets the response body.
	Body() []byte

	// Error gets the response error.
	Error() error
}

// Respond creates a response.
func Respond(v any) Response {
	var b []byte
	switch t := v.(type) {
	case []byte:
		b = t
	case string:
		b = []byte(t)
	case nil:
		break
	default:
		var err error
		if b, err = json.Marshal(t); err != nil {
			return Error(err)
		}
	}
	return &Result{
		Data: b,
	}
}

// Error creates an error response.
func Error(err error) Response {
	return &Result{
		Err: err,
	}
}

// Errorf creates an error response.
func Errorf(format string, a ...any) Response {
	return &Result{
		Err: fmt.Errorf(format, a...),
	}
}

//
//
//

// Result provides task results.
type Result struct {
	Err error

	// Secrets provides secret variables set by the task.
	// Secret values are masked and not exported to the
	// environment of later steps.
	Secrets map[string]string

	// Outputs provides variables set by the task.
	Outputs map[string]string

	Data []byte
}

// Body gets the response body.
func (r *Result) Body() []byte {
	return r.Data
}

// Error gets the response error.
func (r *Result) Error() error {
	return r.Err
}

// Output sets an output variable and returns the result.
func (r *Result) Output(name, value string) *Result {
	if r.Outputs == nil {
		r.Outputs = map[string]string{}
	}
	r.Outputs[name] = value
	return r
}

// Secret sets a secret variable and returns the result.
func (r *Result) Secret(name, value string) *Result {
	if r.Secrets == nil {
		r.Secrets = map[string]string{}
	}
	r.Secrets[name] = value
	return r
}
