// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package templates

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/drone/go-teststeps/pipeline"
	"github.com/drone/go-teststeps/task/shell"
)

func usePythonVersion(params map[string]any) ([]*pipeline.Step, error) {
	spec := str(params, "versionSpec", "3.x")
	return []*pipeline.Step{
		{
			DisplayName: "Use Python " + spec,
			Task: &pipeline.TaskCall{
				Name: "UsePythonVersion@0",
				Inputs: pipeline.Values{
					"versionSpec": spec,
				},
			},
		},
	}, nil
}

func useVenv(params map[string]any) ([]*pipeline.Step, error) {
	name := str(params, "VirtualEnvironmentName", "venv")
	dir := "$(Agent.BuildDirectory)/" + name
	return []*pipeline.Step{
		{
			DisplayName: "Use Virtual Environment",
			Script: &pipeline.Script{
				Shell: shell.Bash,
				Body: lines(
					`python -m venv "`+dir+`"`,
					`echo "##vso[task.setvariable variable=VIRTUAL_ENV]`+dir+`"`,
					`echo "##vso[task.prependpath]`+dir+`/bin"`,
				),
			},
		},
	}, nil
}

func setDevBuild(params map[string]any) ([]*pipeline.Step, error) {
	service := str(params, "ServiceDirectory", "")
	return []*pipeline.Step{
		{
			DisplayName: "Set Dev Build Versions",
			Condition:   "and(succeeded(), eq(variables['SetDevVersion'], 'true'))",
			Script: &pipeline.Script{
				Shell: shell.Script,
				Body: lines(
					`python -m pip install "packaging==23.1"`,
					`python eng/versioning/version_set_dev.py --build-id="$(Build.BuildNumber)" --service="`+service+`"`,
				),
			},
		},
	}, nil
}

func testProxyTool(params map[string]any) ([]*pipeline.Step, error) {
	inputs := pipeline.Values{
		"runProxy":   strconv.FormatBool(boolean(params, "runProxy", true)),
		"rootFolder": str(params, "rootFolder", "$(Build.SourcesDirectory)"),
	}
	if version := str(params, "targetVersion", ""); version != "" {
		inputs["version"] = version
	}
	return []*pipeline.Step{
		{
			DisplayName: "Install Test Proxy",
			Task: &pipeline.TaskCall{
				Name:   "TestProxyInstall@1",
				Inputs: inputs,
			},
		},
	}, nil
}

func authDevFeed(params map[string]any) ([]*pipeline.Step, error) {
	feed := str(params, "DevFeedName", pipeline.DefaultDevFeedName)
	if strings.Count(feed, "/") > 1 {
		return nil, fmt.Errorf("invalid feed name %q", feed)
	}
	return []*pipeline.Step{
		{
			DisplayName: "Authenticate Dev Feed",
			Task: &pipeline.TaskCall{
				Name: "PipAuthenticate@1",
				Inputs: pipeline.Values{
					"artifactFeeds":     feed,
					"onlyAddExtraIndex": "true",
				},
			},
		},
	}, nil
}

func seedWheels(params map[string]any) ([]*pipeline.Step, error) {
	dir := "$(Agent.TempDirectory)/seed-wheels"
	return []*pipeline.Step{
		{
			DisplayName: "Seed Virtual Environment Wheels",
			Script: &pipeline.Script{
				Shell: shell.Bash,
				Body: lines(
					`python -m pip wheel -r eng/ci_tools.txt --wheel-dir "`+dir+`"`,
					`echo "##vso[task.setvariable variable=VIRTUALENV_EXTRA_SEARCH_DIR]`+dir+`"`,
				),
			},
		},
	}, nil
}

// str returns the named parameter as a string.
func str(params map[string]any, name, def string) string {
	v, ok := params[name]
	if !ok || v == nil {
		return def
	}
	s := fmt.Sprint(v)
	if s == "" {
		return def
	}
	return s
}

// boolean returns the named parameter as a bool.
func boolean(params map[string]any, name string, def bool) bool {
	switch t := params[name].(type) {
	case bool:
		return t
	case string:
		if b, err := strconv.ParseBool(t); err == nil {
			return b
		}
	}
	return def
}

func lines(s ...string) string {
	return strings.Join(s, "\n")
}
