// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"encoding/json"
	"os"

	"github.com/ghodss/yaml"
)

// DefaultDevFeedName is the dev feed used when none is set.
const DefaultDevFeedName = "public/azure-sdk-for-python"

// DisableCoverage is the coverage argument that turns
// coverage collection off.
const DisableCoverage = "--disablecov"

// Parameters provides the build-and-test job parameters.
type Parameters struct {
	AdditionalTestArgs string  `json:"AdditionalTestArgs,omitempty"`
	TestMarkArgument   string  `json:"TestMarkArgument,omitempty"`
	EnvVars            Values  `json:"EnvVars,omitempty"`
	ServiceDirectory   string  `json:"ServiceDirectory,omitempty"`
	CloudName          string  `json:"CloudName,omitempty"`
	PythonVersion      string  `json:"PythonVersion,omitempty"`
	OSVmImage          string  `json:"OSVmImage,omitempty"`
	BeforeTestSteps    []*Step `json:"BeforeTestSteps,omitempty"`
	AfterTestSteps     []*Step `json:"AfterTestSteps,omitempty"`
	CoverageArg        string  `json:"CoverageArg,omitempty"`
	ToxTestEnv         string  `json:"ToxTestEnv,omitempty"`
	ToxEnvParallel     string  `json:"ToxEnvParallel,omitempty"`
	InjectedPackages   string  `json:"InjectedPackages,omitempty"`
	DevFeedName        string  `json:"DevFeedName,omitempty"`
	TestProxy          bool    `json:"TestProxy,omitempty"`
	UseFederatedAuth   bool    `json:"UseFederatedAuth,omitempty"`
	ServiceConnection  string  `json:"ServiceConnection,omitempty"`

	// RunCoverage overrides the coverage flag derived
	// from CoverageArg.
	RunCoverage *bool `json:"RunCoverage,omitempty"`
}

// DefaultParameters returns the parameters with their
// default values.
func DefaultParameters() Parameters {
	return Parameters{
		DevFeedName: DefaultDevFeedName,
	}
}

// Coverage reports whether coverage is collected and
// published.
func (p *Parameters) Coverage() bool {
	if p.RunCoverage != nil {
		return *p.RunCoverage
	}
	return p.CoverageArg != DisableCoverage
}

// ParseParameters parses the yaml or json parameter
// document. Unset parameters keep their default values.
func ParseParameters(b []byte) (*Parameters, error) {
	out, err := yaml.YAMLToJSON(b)
	if err != nil {
		return nil, err
	}
	params := DefaultParameters()
	if err := json.Unmarshal(out, &params); err != nil {
		return nil, err
	}
	if params.DevFeedName == "" {
		params.DevFeedName = DefaultDevFeedName
	}
	return &params, nil
}

// LoadParameters parses the parameter file at path.
func LoadParameters(path string) (*Parameters, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseParameters(b)
}
