// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"errors"
	"testing"

	"github.com/drone/go-teststeps/task/shell"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	resolver := TemplateResolverFunc(func(path string, params map[string]any) ([]*Step, error) {
		switch path {
		case "outer.yml":
			return []*Step{
				{Script: &Script{Shell: shell.Bash, Body: "echo outer"}},
				{Name: "nested", Template: &Template{Path: "inner.yml"}},
			}, nil
		case "inner.yml":
			return []*Step{
				{Name: "inner", Condition: "failed()", Script: &Script{Shell: shell.Bash, Body: "echo inner"}},
			}, nil
		}
		return nil, errors.New("not found")
	})

	steps := []*Step{
		{Name: "first", Script: &Script{Shell: shell.Bash, Body: "echo first"}},
		{Name: "tmpl", Condition: "eq(variables['Run'], 'true')", Template: &Template{Path: "outer.yml"}},
	}
	want := []*Step{
		{Name: "first", Script: &Script{Shell: shell.Bash, Body: "echo first"}},
		{
			Name:      "tmpl.1",
			Condition: "and(eq(variables['Run'], 'true'), succeeded())",
			Script:    &Script{Shell: shell.Bash, Body: "echo outer"},
		},
		{
			Name:      "inner",
			Condition: "and(and(eq(variables['Run'], 'true'), succeeded()), failed())",
			Script:    &Script{Shell: shell.Bash, Body: "echo inner"},
		},
	}
	got, err := Expand(steps, resolver)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Unexpected expansion")
		t.Log(diff)
	}
	assert.NotNil(t, steps[1].Template, "input steps are not modified")
}

func TestExpand_Recursion(t *testing.T) {
	resolver := TemplateResolverFunc(func(path string, params map[string]any) ([]*Step, error) {
		return []*Step{{Template: &Template{Path: path}}}, nil
	})
	_, err := Expand([]*Step{{Template: &Template{Path: "loop.yml"}}}, resolver)
	assert.EqualError(t, err, "template nesting exceeds 50 levels")
}

func TestExpand_Error(t *testing.T) {
	resolver := TemplateResolverFunc(func(path string, params map[string]any) ([]*Step, error) {
		return nil, errors.New("not found")
	})
	_, err := Expand([]*Step{{Template: &Template{Path: "missing.yml"}}}, resolver)
	assert.EqualError(t, err, "template missing.yml: not found")
}
