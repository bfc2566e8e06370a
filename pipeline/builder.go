// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"fmt"
	"strings"

	"github.com/drone/go-teststeps/task/macro"
	"github.com/drone/go-teststeps/task/shell"
)

// Step identifiers.
const (
	StepDumpArtifacts      = "dump-artifacts"
	StepSelectRuntime      = "select-runtime"
	StepActivateVenv       = "activate-venv"
	StepSetDevBuild        = "set-dev-build"
	StepPrepEnvironment    = "prep-environment"
	StepInstallTestProxy   = "install-test-proxy"
	StepAuthDevFeed        = "auth-dev-feed"
	StepSeedWheels         = "seed-wheels"
	StepRunTests           = "run-tests"
	StepDumpProxyLogs      = "dump-proxy-logs"
	StepCreateCoverage     = "create-coverage"
	StepRunSamples         = "run-samples"
	StepPublishTestResults = "publish-test-results"
	StepPublishCoverage    = "publish-coverage"
)

// Template references.
const (
	TemplateUsePythonVersion = "/eng/pipelines/templates/steps/use-python-version.yml"
	TemplateUseVenv          = "/eng/pipelines/templates/steps/use-venv.yml"
	TemplateSetDevBuild      = "/eng/pipelines/templates/steps/set-dev-build.yml"
	TemplateTestProxyTool    = "/eng/common/testproxy/test-proxy-tool.yml"
	TemplateAuthDevFeed      = "/eng/pipelines/templates/steps/auth-dev-feed.yml"
	TemplateSeedWheels       = "/eng/pipelines/templates/steps/seed-virtual-environment-wheels.yml"
)

// Task names.
const (
	TaskAzurePowerShell    = "AzurePowerShell@5"
	TaskPythonScript       = "PythonScript@0"
	TaskPublishTestResults = "PublishTestResults@2"
	TaskPublishCoverage    = "PublishCodeCoverageResults@1"
)

// Run conditions.
const (
	ConditionSucceeded         = "succeeded()"
	ConditionSucceededOrFailed = "succeededOrFailed()"
	ConditionAlways            = "always()"
	ConditionSamples           = "and(succeeded(), eq(variables['TestSamples'], 'true'))"
)

const (
	dispatchScript  = "scripts/devops_tasks/dispatch_tox.py"
	coverageScript  = "scripts/devops_tasks/create_coverage.py"
	coverageVersion = "7.2.5"
	resultsPattern  = "**/*test*.xml"
	internalProject = "internal"
	samplesToxEnv   = "samples"
)

// Builder builds the build-and-test step list.
type Builder struct {
	params Parameters
	vars   map[string]string
}

// NewBuilder returns a Builder for the parameters.
// Variables are definition-time variables, such as
// System.TeamProject.
func NewBuilder(params Parameters, vars map[string]string) *Builder {
	return &Builder{
		params: params,
		vars:   vars,
	}
}

// Build returns the ordered step list.
func (b *Builder) Build() ([]*Step, error) {
	p := &b.params
	for _, step := range p.BeforeTestSteps {
		if err := step.Validate(); err != nil {
			return nil, fmt.Errorf("BeforeTestSteps: %w", err)
		}
	}
	for _, step := range p.AfterTestSteps {
		if err := step.Validate(); err != nil {
			return nil, fmt.Errorf("AfterTestSteps: %w", err)
		}
	}

	var steps []*Step
	add := func(s ...*Step) {
		steps = append(steps, s...)
	}

	add(
		b.dumpArtifacts(),
		b.selectRuntime(),
		b.activateVenv(),
		b.setDevBuild(),
		b.prepEnvironment(),
	)
	if p.TestProxy {
		add(b.installTestProxy())
	}
	if b.internal() {
		add(b.authDevFeed())
	}
	add(clone(p.BeforeTestSteps)...)
	add(b.seedWheels())
	add(b.runTests())
	if p.TestProxy {
		add(b.dumpProxyLogs())
	}
	add(clone(p.AfterTestSteps)...)
	if p.Coverage() {
		add(b.createCoverage())
	}
	add(b.runSamples())
	add(b.publishTestResults())
	if p.Coverage() {
		add(b.publishCoverage())
	}
	return steps, nil
}

// internal reports whether the build runs under the
// internal project.
func (b *Builder) internal() bool {
	project, _ := macro.Map(b.vars)("System.TeamProject")
	return strings.EqualFold(project, internalProject)
}

func (b *Builder) dumpArtifacts() *Step {
	return &Step{
		Name:        StepDumpArtifacts,
		DisplayName: "Dump Artifact Directory",
		Script: &Script{
			Shell: shell.Bash,
			Body:  `ls -la "$(Build.ArtifactStagingDirectory)"`,
		},
	}
}

func (b *Builder) selectRuntime() *Step {
	return &Step{
		Name: StepSelectRuntime,
		Template: &Template{
			Path: TemplateUsePythonVersion,
			Parameters: map[string]any{
				"versionSpec": b.params.PythonVersion,
			},
		},
	}
}

func (b *Builder) activateVenv() *Step {
	return &Step{
		Name:     StepActivateVenv,
		Template: &Template{Path: TemplateUseVenv},
	}
}

func (b *Builder) setDevBuild() *Step {
	return &Step{
		Name: StepSetDevBuild,
		Template: &Template{
			Path: TemplateSetDevBuild,
			Parameters: map[string]any{
				"ServiceDirectory": b.params.ServiceDirectory,
			},
		},
	}
}

func (b *Builder) prepEnvironment() *Step {
	return &Step{
		Name:        StepPrepEnvironment,
		DisplayName: "Prep Environment",
		Script: &Script{
			Shell: shell.Script,
			Body: strings.Join([]string{
				`python -m pip install "pip==23.3.1" "wheel==0.41.3" "setuptools==69.0.2"`,
				`python -m pip install -r eng/ci_tools.txt`,
			}, "\n"),
		},
	}
}

func (b *Builder) installTestProxy() *Step {
	return &Step{
		Name: StepInstallTestProxy,
		Template: &Template{
			Path: TemplateTestProxyTool,
			Parameters: map[string]any{
				"runProxy": false,
			},
		},
	}
}

func (b *Builder) authDevFeed() *Step {
	return &Step{
		Name: StepAuthDevFeed,
		Template: &Template{
			Path: TemplateAuthDevFeed,
			Parameters: map[string]any{
				"DevFeedName": b.params.DevFeedName,
			},
		},
	}
}

func (b *Builder) seedWheels() *Step {
	return &Step{
		Name:     StepSeedWheels,
		Template: &Template{Path: TemplateSeedWheels},
	}
}

func (b *Builder) runTests() *Step {
	args := dispatchArgs{
		Additional: b.params.AdditionalTestArgs,
		Coverage:   b.params.CoverageArg,
		Mark:       b.params.TestMarkArgument,
		Service:    b.params.ServiceDirectory,
		ToxEnv:     b.params.ToxTestEnv,
		Injected:   b.params.InjectedPackages,
		Parallel:   b.params.ToxEnvParallel,
	}
	step := b.dispatch(args, "Run Tests")
	step.Name = StepRunTests
	step.Condition = ConditionSucceeded
	return step
}

func (b *Builder) runSamples() *Step {
	args := dispatchArgs{
		Mark:     b.params.TestMarkArgument,
		Service:  b.params.ServiceDirectory,
		ToxEnv:   samplesToxEnv,
		Injected: b.params.InjectedPackages,
		Parallel: b.params.ToxEnvParallel,
	}
	step := b.dispatch(args, "Test Samples")
	step.Name = StepRunSamples
	step.Condition = ConditionSamples
	return step
}

// dispatch returns the task step that invokes the test
// dispatcher, using federated auth when enabled.
func (b *Builder) dispatch(args dispatchArgs, title string) *Step {
	if b.params.UseFederatedAuth {
		return &Step{
			DisplayName: title,
			Env:         b.params.EnvVars.Clone(),
			Task: &TaskCall{
				Name: TaskAzurePowerShell,
				Inputs: Values{
					"azureSubscription":      b.params.ServiceConnection,
					"azurePowerShellVersion": "LatestVersion",
					"ScriptType":             "InlineScript",
					"pwsh":                   "true",
					"Inline": strings.Join([]string{
						"python " + dispatchScript + " " + args.String(),
						"exit $LASTEXITCODE",
					}, "\n"),
				},
			},
		}
	}
	return &Step{
		DisplayName: title,
		Env:         b.params.EnvVars.Clone(),
		Task: &TaskCall{
			Name: TaskPythonScript,
			Inputs: Values{
				"scriptPath": dispatchScript,
				"arguments":  args.String(),
			},
		},
	}
}

func (b *Builder) dumpProxyLogs() *Step {
	return &Step{
		Name:        StepDumpProxyLogs,
		DisplayName: "Dump Test-Proxy Logs",
		Condition:   ConditionSucceededOrFailed,
		Script: &Script{
			Shell: shell.Bash,
			Body: strings.Join([]string{
				`find "$(Build.SourcesDirectory)" -name '_proxy_log_*.log' | while read -r log; do`,
				`  echo "##[group]$log"`,
				`  cat "$log"`,
				`  echo "##[endgroup]"`,
				`done`,
			}, "\n"),
		},
	}
}

func (b *Builder) createCoverage() *Step {
	return &Step{
		Name:        StepCreateCoverage,
		DisplayName: "Create Coverage Report",
		Condition:   ConditionSucceeded,
		Script: &Script{
			Shell: shell.Script,
			Body: strings.Join([]string{
				`python -m pip install "coverage==` + coverageVersion + `"`,
				`python ` + coverageScript,
			}, "\n"),
		},
	}
}

func (b *Builder) publishTestResults() *Step {
	return &Step{
		Name:        StepPublishTestResults,
		DisplayName: "Publish Test Results",
		Condition:   ConditionAlways,
		Task: &TaskCall{
			Name: TaskPublishTestResults,
			Inputs: Values{
				"testResultsFiles":      resultsPattern,
				"testRunTitle":          b.params.ServiceDirectory + " " + b.params.CloudName + " $(Agent.JobName)",
				"failTaskOnFailedTests": "true",
			},
		},
	}
}

func (b *Builder) publishCoverage() *Step {
	return &Step{
		Name:            StepPublishCoverage,
		DisplayName:     "Publish Code Coverage",
		Condition:       ConditionSucceeded,
		ContinueOnError: true,
		Task: &TaskCall{
			Name: TaskPublishCoverage,
			Inputs: Values{
				"codeCoverageTool":    "Cobertura",
				"summaryFileLocation": "$(Build.SourcesDirectory)/coverage.xml",
			},
		},
	}
}

func clone(steps []*Step) []*Step {
	out := make([]*Step, len(steps))
	for i, step := range steps {
		out[i] = step.Clone()
	}
	return out
}

// dispatchArgs are the test dispatcher arguments. Both
// dispatch variants render them with String.
type dispatchArgs struct {
	Additional string
	Coverage   string
	Mark       string
	Service    string
	ToxEnv     string
	Injected   string
	Parallel   string
}

func (a dispatchArgs) String() string {
	parts := []string{`"$(TargetingString)"`}
	if s := strings.TrimSpace(a.Additional); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimSpace(a.Coverage); s != "" {
		parts = append(parts, s)
	}
	parts = append(parts,
		flag("mark_arg", a.Mark),
		flag("service", a.Service),
		flag("toxenv", a.ToxEnv),
		flag("injected-packages", a.Injected),
	)
	if s := strings.TrimSpace(a.Parallel); s != "" {
		parts = append(parts, s)
	}
	return strings.Join(parts, " ")
}

// flag renders a double quoted keyword argument.
func flag(name, value string) string {
	return "--" + name + `="` + value + `"`
}
