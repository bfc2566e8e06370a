// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/drone/go-teststeps/task/shell"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	const doc = `
steps:
- script: echo hello
  displayName: Hello
- pwsh: Write-Host hi
  condition: always()
  env:
    LIVE: true
- template: /eng/pipelines/templates/steps/use-venv.yml
  parameters:
    VirtualEnvironmentName: venv
- task: PublishTestResults@2
  continueOnError: true
  inputs:
    failTaskOnFailedTests: true
    mergeTestResults: 1
`
	want := []*Step{
		{
			DisplayName: "Hello",
			Script:      &Script{Shell: shell.Script, Body: "echo hello"},
		},
		{
			Condition: "always()",
			Env:       Values{"LIVE": "true"},
			Script:    &Script{Shell: shell.Pwsh, Body: "Write-Host hi"},
		},
		{
			Template: &Template{
				Path:       "/eng/pipelines/templates/steps/use-venv.yml",
				Parameters: map[string]any{"VirtualEnvironmentName": "venv"},
			},
		},
		{
			ContinueOnError: true,
			Task: &TaskCall{
				Name:   "PublishTestResults@2",
				Inputs: Values{"failTaskOnFailedTests": "true", "mergeTestResults": "1"},
			},
		},
	}
	got, err := ParseString(doc)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Unexpected parse results")
		t.Log(diff)
	}
}

func TestParse_Sequence(t *testing.T) {
	got, err := ParseString("- bash: echo 1\n- bash: echo 2\n")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, shell.Bash, got[1].Script.Shell)
	assert.Equal(t, KindScript, got[1].Kind())
}

func TestParse_Errors(t *testing.T) {
	tests := []string{
		"- name: nothing\n",
		"- script: echo\n  bash: echo\n",
		"- script: echo\n  task: PythonScript@0\n",
		"- task: PythonScript@0\n  inputs:\n    arguments: [a, b]\n",
	}
	for _, test := range tests {
		_, err := ParseString(test)
		assert.Error(t, err, test)
	}
}

func TestParse_Empty(t *testing.T) {
	got, err := ParseString("")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "steps.yml")
	require.NoError(t, os.WriteFile(path, []byte("- script: echo\n"), 0o600))
	got, err := ParseFile(path)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestMarshalSteps(t *testing.T) {
	params := DefaultParameters()
	params.TestProxy = true
	params.UseFederatedAuth = true
	steps, err := NewBuilder(params, nil).Build()
	require.NoError(t, err)

	out, err := MarshalSteps(steps)
	require.NoError(t, err)

	got, err := ParseBytes(out)
	require.NoError(t, err)
	if diff := cmp.Diff(steps, got); diff != "" {
		t.Errorf("Unexpected marshaled steps")
		t.Log(diff)
	}
}

func TestParseParameters(t *testing.T) {
	const doc = `
ServiceDirectory: sdk/foo
CloudName: Public
TestProxy: true
CoverageArg: --disablecov
EnvVars:
  AZURE_TEST_RUN_LIVE: true
BeforeTestSteps:
- script: echo before
`
	params, err := ParseParameters([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "sdk/foo", params.ServiceDirectory)
	assert.Equal(t, DefaultDevFeedName, params.DevFeedName)
	assert.True(t, params.TestProxy)
	assert.False(t, params.Coverage())
	assert.Equal(t, Values{"AZURE_TEST_RUN_LIVE": "true"}, params.EnvVars)
	require.Len(t, params.BeforeTestSteps, 1)
	assert.Equal(t, "echo before", params.BeforeTestSteps[0].Script.Body)
}

func TestLoadParameters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"RunCoverage": false, "DevFeedName": "internal/feed"}`), 0o600))
	params, err := LoadParameters(path)
	require.NoError(t, err)
	assert.False(t, params.Coverage())
	assert.Equal(t, "internal/feed", params.DevFeedName)
}
