// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package runner

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVariables(t *testing.T) {
	v := NewVariables()
	v.Set("Build.SourcesDirectory", "/src", false)
	v.Set("System.AccessToken", "token", true)

	got, ok := v.Get("build.sourcesdirectory")
	assert.True(t, ok)
	assert.Equal(t, "/src", got)

	_, ok = v.Get("missing")
	assert.False(t, ok)

	// a secret remains secret when overwritten.
	v.Set("SYSTEM.ACCESSTOKEN", "other", false)
	assert.True(t, v.IsSecret("system.accesstoken"))
	assert.Equal(t, map[string]string{"System.AccessToken": "other"}, v.Secrets())
	assert.Equal(t, map[string]string{
		"Build.SourcesDirectory": "/src",
		"System.AccessToken":     "other",
	}, v.Map())
}

func TestVariables_Environ(t *testing.T) {
	v := NewVariables()
	v.Set("Agent.JobName", "Linux_Python310", false)
	v.Set("TestSamples", "true", false)
	v.Set("System.AccessToken", "token", true)
	v.PrependPath("/opt/python/bin")
	v.PrependPath("/opt/proxy")
	v.PrependPath("/opt/python/bin")

	base := []string{"PATH=/usr/bin:/bin", "TESTSAMPLES=false", "MALFORMED"}
	got, err := v.Environ(base, map[string]string{"AZURE_TEST_RUN_LIVE": "true"})
	require.NoError(t, err)

	want := []string{
		"AGENT_JOBNAME=Linux_Python310",
		"AZURE_TEST_RUN_LIVE=true",
		"PATH=/opt/python/bin:/opt/proxy:/usr/bin:/bin",
		"TESTSAMPLES=true",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Unexpected environment")
		t.Log(diff)
	}
}

func TestVariables_EnvironStepOverride(t *testing.T) {
	v := NewVariables()
	v.Set("Foo", "variable", false)

	got, err := v.Environ(nil, map[string]string{"FOO": "step"})
	require.NoError(t, err)
	assert.Equal(t, []string{"FOO=step"}, got)

	got, err = v.Environ(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"FOO=variable"}, got)
}

func TestEnvName(t *testing.T) {
	tests := map[string]string{
		"Build.SourcesDirectory": "BUILD_SOURCESDIRECTORY",
		"TestSamples":            "TESTSAMPLES",
		"PROXY_EXE":              "PROXY_EXE",
	}
	for name, want := range tests {
		assert.Equal(t, want, EnvName(name))
	}
}

func TestReport_WriteTo(t *testing.T) {
	report := &Report{
		Steps: []*StepReport{
			{Name: "run-tests", Outcome: Failed},
			{Name: "publish-test-results", Outcome: Succeeded},
		},
	}
	buf := new(bytes.Buffer)
	n, err := report.WriteTo(buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	assert.Contains(t, buf.String(), "run-tests             Failed")
	assert.Contains(t, buf.String(), "Job Succeeded in 0s")
}
