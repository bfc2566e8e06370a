// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxDepth is the maximum template nesting depth.
const MaxDepth = 50

// TemplateResolver resolves a template reference to the
// steps it expands to.
type TemplateResolver interface {
	Resolve(path string, params map[string]any) ([]*Step, error)
}

// TemplateResolverFunc adapts a function to a TemplateResolver.
type TemplateResolverFunc func(path string, params map[string]any) ([]*Step, error)

// Resolve calls f.
func (f TemplateResolverFunc) Resolve(path string, params map[string]any) ([]*Step, error) {
	return f(path, params)
}

// Expand replaces each template step with the steps it
// resolves to, recursively. The input steps are not
// modified.
func Expand(steps []*Step, resolver TemplateResolver) ([]*Step, error) {
	return expand(steps, resolver, 0)
}

func expand(steps []*Step, resolver TemplateResolver, depth int) ([]*Step, error) {
	if depth > MaxDepth {
		return nil, fmt.Errorf("template nesting exceeds %d levels", MaxDepth)
	}
	var out []*Step
	for _, step := range steps {
		if step.Template == nil {
			out = append(out, step.Clone())
			continue
		}
		children, err := resolver.Resolve(step.Template.Path, cloneMap(step.Template.Parameters))
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", step.Template.Path, err)
		}
		for i, child := range children {
			child = inherit(step, child.Clone(), i)
			if err := child.Validate(); err != nil {
				return nil, fmt.Errorf("template %s: %w", step.Template.Path, err)
			}
			expanded, err := expand([]*Step{child}, resolver, depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, expanded...)
		}
	}
	return out, nil
}

// inherit applies the template reference properties to the
// child step.
func inherit(parent, child *Step, index int) *Step {
	if child.Name == "" && parent.Name != "" {
		child.Name = parent.Name + "." + strconv.Itoa(index+1)
	}
	if cond := strings.TrimSpace(parent.Condition); cond != "" {
		own := strings.TrimSpace(child.Condition)
		if own == "" {
			own = ConditionSucceeded
		}
		child.Condition = "and(" + cond + ", " + own + ")"
	}
	child.ContinueOnError = child.ContinueOnError || parent.ContinueOnError
	for k, v := range parent.Env {
		if _, ok := child.Env[k]; ok {
			continue
		}
		if child.Env == nil {
			child.Env = Values{}
		}
		child.Env[k] = v
	}
	return child
}
