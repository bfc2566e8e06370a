// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/drone/go-teststeps/task/shell"
)

// Kind identifies the variant of a Step.
type Kind string

const (
	KindScript   Kind = "script"
	KindTemplate Kind = "template"
	KindTask     Kind = "task"
)

// Step is a unit of execution. Exactly one of Script,
// Template or Task is set.
type Step struct {
	// Name provides the step identifier.
	Name string

	// DisplayName provides the human readable step name.
	DisplayName string

	// Condition provides the run condition. An empty
	// condition runs the step only when all previous
	// steps succeeded.
	Condition string

	// ContinueOnError reports a failure of the step as
	// succeeded with issues.
	ContinueOnError bool

	// Env provides environment variables merged into
	// the step environment.
	Env Values

	Script   *Script
	Template *Template
	Task     *TaskCall
}

// Script is a shell script body.
type Script struct {
	Shell shell.Kind
	Body  string
}

// Template is a reference to a template that expands
// into further steps.
type Template struct {
	Path       string
	Parameters map[string]any
}

// TaskCall is an invocation of a platform task.
type TaskCall struct {
	Name   string
	Inputs Values
}

// Kind returns the step variant.
func (s *Step) Kind() Kind {
	switch {
	case s.Script != nil:
		return KindScript
	case s.Template != nil:
		return KindTemplate
	default:
		return KindTask
	}
}

// Validate reports whether exactly one variant is set.
func (s *Step) Validate() error {
	n := 0
	if s.Script != nil {
		n++
	}
	if s.Template != nil {
		n++
	}
	if s.Task != nil {
		n++
	}
	switch {
	case n == 0:
		return fmt.Errorf("step %q: one of script, template or task is required", s.title())
	case n > 1:
		return fmt.Errorf("step %q: script, template and task are mutually exclusive", s.title())
	case s.Template != nil && s.Template.Path == "":
		return errors.New("template step: path is required")
	case s.Task != nil && s.Task.Name == "":
		return fmt.Errorf("step %q: task name is required", s.title())
	}
	return nil
}

// Clone returns a deep copy of the step.
func (s *Step) Clone() *Step {
	out := *s
	out.Env = s.Env.Clone()
	if s.Script != nil {
		script := *s.Script
		out.Script = &script
	}
	if s.Template != nil {
		out.Template = &Template{
			Path:       s.Template.Path,
			Parameters: cloneMap(s.Template.Parameters),
		}
	}
	if s.Task != nil {
		out.Task = &TaskCall{
			Name:   s.Task.Name,
			Inputs: s.Task.Inputs.Clone(),
		}
	}
	return &out
}

// Title returns the display name, falling back to the
// step name or the variant.
func (s *Step) Title() string {
	return s.title()
}

func (s *Step) title() string {
	switch {
	case s.DisplayName != "":
		return s.DisplayName
	case s.Name != "":
		return s.Name
	case s.Task != nil:
		return s.Task.Name
	case s.Template != nil:
		return s.Template.Path
	case s.Script != nil:
		return string(s.Script.Shell)
	}
	return ""
}

// document is the serialized form of a step.
type document struct {
	Script          string         `json:"script,omitempty"`
	Bash            string         `json:"bash,omitempty"`
	Pwsh            string         `json:"pwsh,omitempty"`
	PowerShell      string         `json:"powershell,omitempty"`
	Template        string         `json:"template,omitempty"`
	Parameters      map[string]any `json:"parameters,omitempty"`
	Task            string         `json:"task,omitempty"`
	Inputs          Values         `json:"inputs,omitempty"`
	Name            string         `json:"name,omitempty"`
	DisplayName     string         `json:"displayName,omitempty"`
	Condition       string         `json:"condition,omitempty"`
	ContinueOnError bool           `json:"continueOnError,omitempty"`
	Env             Values         `json:"env,omitempty"`
}

// MarshalJSON encodes the step in the pipeline step format.
func (s Step) MarshalJSON() ([]byte, error) {
	doc := document{
		Name:            s.Name,
		DisplayName:     s.DisplayName,
		Condition:       s.Condition,
		ContinueOnError: s.ContinueOnError,
		Env:             s.Env,
	}
	switch {
	case s.Script != nil:
		switch s.Script.Shell {
		case shell.Bash:
			doc.Bash = s.Script.Body
		case shell.Pwsh:
			doc.Pwsh = s.Script.Body
		case shell.PowerShell:
			doc.PowerShell = s.Script.Body
		default:
			doc.Script = s.Script.Body
		}
	case s.Template != nil:
		doc.Template = s.Template.Path
		doc.Parameters = s.Template.Parameters
	case s.Task != nil:
		doc.Task = s.Task.Name
		doc.Inputs = s.Task.Inputs
	}
	return json.Marshal(doc)
}

// UnmarshalJSON decodes the step from the pipeline step format.
func (s *Step) UnmarshalJSON(data []byte) error {
	doc := new(document)
	if err := json.Unmarshal(data, doc); err != nil {
		return err
	}
	*s = Step{
		Name:            doc.Name,
		DisplayName:     doc.DisplayName,
		Condition:       doc.Condition,
		ContinueOnError: doc.ContinueOnError,
		Env:             doc.Env,
	}
	scripts := []struct {
		kind shell.Kind
		body string
	}{
		{shell.Script, doc.Script},
		{shell.Bash, doc.Bash},
		{shell.Pwsh, doc.Pwsh},
		{shell.PowerShell, doc.PowerShell},
	}
	for _, script := range scripts {
		if script.body == "" {
			continue
		}
		if s.Script != nil {
			return errors.New("step declares more than one script")
		}
		s.Script = &Script{Shell: script.kind, Body: script.body}
	}
	if doc.Template != "" {
		s.Template = &Template{Path: doc.Template, Parameters: doc.Parameters}
	}
	if doc.Task != "" {
		s.Task = &TaskCall{Name: doc.Task, Inputs: doc.Inputs}
	}
	return s.Validate()
}

// Values is a string map. Scalar values are decoded as
// strings, so that `failTaskOnFailedTests: true` decodes
// to "true".
type Values map[string]string

// UnmarshalJSON decodes scalar json values as strings.
func (v *Values) UnmarshalJSON(data []byte) error {
	raw := map[string]any{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Values, len(raw))
	for key, value := range raw {
		switch t := value.(type) {
		case string:
			out[key] = t
		case bool:
			out[key] = strconv.FormatBool(t)
		case float64:
			out[key] = strconv.FormatFloat(t, 'f', -1, 64)
		case nil:
			out[key] = ""
		default:
			return fmt.Errorf("value of %q must be a scalar", key)
		}
	}
	*v = out
	return nil
}

// Clone returns a copy of the map.
func (v Values) Clone() Values {
	if v == nil {
		return nil
	}
	out := make(Values, len(v))
	for key, value := range v {
		out[key] = value
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch t := v.(type) {
		case map[string]any:
			out[k] = cloneMap(t)
		case []any:
			out[k] = append([]any(nil), t...)
		default:
			out[k] = v
		}
	}
	return out
}
