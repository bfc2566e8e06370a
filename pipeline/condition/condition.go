// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package condition evaluates step run conditions such as
// and(succeeded(), eq(variables['TestSamples'], 'true')).
package condition

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Knetic/govaluate"
)

// Default is the condition of a step without an explicit
// condition.
const Default = "succeeded()"

// Status is the aggregate status of the steps that ran
// before the step being evaluated.
type Status int

const (
	Succeeded Status = iota
	SucceededWithIssues
	Failed
	Canceled
)

func (s Status) String() string {
	switch s {
	case Succeeded:
		return "Succeeded"
	case SucceededWithIssues:
		return "SucceededWithIssues"
	case Failed:
		return "Failed"
	case Canceled:
		return "Canceled"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// MarshalText encodes the status name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Context provides the values a condition is evaluated
// against.
type Context struct {
	Status Status

	// Lookup returns a variable value. Names are
	// case-insensitive.
	Lookup func(name string) (string, bool)
}

// Expression is a compiled condition.
type Expression struct {
	raw      string
	expr     *govaluate.EvaluableExpression
	literals []string
}

// Compile parses the condition. An empty condition compiles
// to the default condition.
func Compile(s string) (*Expression, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		raw = Default
	}
	translated, literals, err := translate(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid condition %q: %w", raw, err)
	}
	expr, err := govaluate.NewEvaluableExpressionWithFunctions(translated, functions)
	if err != nil {
		return nil, fmt.Errorf("invalid condition %q: %w", raw, err)
	}
	return &Expression{raw: raw, expr: expr, literals: literals}, nil
}

// String returns the condition source.
func (e *Expression) String() string {
	return e.raw
}

// Eval evaluates the condition. Non-boolean results are
// converted to a boolean.
func (e *Expression) Eval(c Context) (bool, error) {
	v, err := e.expr.Eval(parameters{Context: c, literals: e.literals})
	if err != nil {
		return false, fmt.Errorf("cannot evaluate condition %q: %w", e.raw, err)
	}
	return toBool(v), nil
}

// Evaluate compiles and evaluates the condition.
func Evaluate(s string, c Context) (bool, error) {
	e, err := Compile(s)
	if err != nil {
		return false, err
	}
	return e.Eval(c)
}

// parameters resolves the [v:Name], [s:func] and [l:N]
// parameters produced by translate.
type parameters struct {
	Context
	literals []string
}

func (p parameters) Get(name string) (interface{}, error) {
	switch {
	case strings.HasPrefix(name, literalPrefix):
		i, err := strconv.Atoi(strings.TrimPrefix(name, literalPrefix))
		if err != nil || i < 0 || i >= len(p.literals) {
			return nil, fmt.Errorf("unknown parameter: %s", name)
		}
		return p.literals[i], nil
	case strings.HasPrefix(name, statusPrefix):
		return p.status(strings.TrimPrefix(name, statusPrefix))
	case strings.HasPrefix(name, variablePrefix):
		if p.Lookup != nil {
			if v, ok := p.Lookup(strings.TrimPrefix(name, variablePrefix)); ok {
				return v, nil
			}
		}
		return "", nil
	}
	return nil, fmt.Errorf("unknown parameter: %s", name)
}

func (p parameters) status(fn string) (bool, error) {
	switch fn {
	case "succeeded":
		return p.Status == Succeeded || p.Status == SucceededWithIssues, nil
	case "failed":
		return p.Status == Failed, nil
	case "succeededOrFailed":
		return p.Status != Canceled, nil
	case "always":
		return true, nil
	case "canceled":
		return p.Status == Canceled, nil
	}
	return false, fmt.Errorf("unknown status function: %s", fn)
}
