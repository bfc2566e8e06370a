// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads the runner configuration from
// defaults, an optional toml file and TESTSTEPS_ prefixed
// environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/drone/go-teststeps/task"
	"github.com/drone/go-teststeps/task/drivers/azure"
	"github.com/drone/go-teststeps/task/macro"
	"github.com/drone/go-teststeps/task/shell"
)

// DefaultFile is the configuration file loaded when no file
// is given and it exists in the working directory.
const DefaultFile = "teststeps.toml"

// EnvPrefix is the prefix of configuration environment
// variables, for example TESTSTEPS_JOB_PROJECT.
const EnvPrefix = "TESTSTEPS_"

const proxyRelease = "https://github.com/Azure/azure-sdk-tools/releases/download/Azure.Sdk.Tools.TestProxy_{version}/"

type Log struct {
	Verbose bool `koanf:"verbose"`
	JSON    bool `koanf:"json"`
}

type Workspace struct {
	Sources   string `koanf:"sources"`
	Artifacts string `koanf:"artifacts"`
	Temp      string `koanf:"temp"`
	Build     string `koanf:"build"`
}

type Job struct {
	Name        string `koanf:"name"`
	Project     string `koanf:"project"`
	BuildNumber string `koanf:"buildnumber"`
	BuildID     string `koanf:"buildid"`
	AccessToken string `koanf:"accesstoken"`
}

type Proxy struct {
	Tools      string                `koanf:"tools"`
	Cache      string                `koanf:"cache"`
	Executable task.ExecutableConfig `koanf:"executable"`
}

type Feed struct {
	Host         string `koanf:"host"`
	Organization string `koanf:"organization"`
}

type Results struct {
	Dir string `koanf:"dir"`
}

type Templates struct {
	Dirs []string `koanf:"dirs"`
}

// Config provides the runner configuration.
type Config struct {
	Log         Log               `koanf:"log"`
	Workspace   Workspace         `koanf:"workspace"`
	Job         Job               `koanf:"job"`
	Shell       shell.Config      `koanf:"shell"`
	Connections azure.Connections `koanf:"connections"`
	Proxy       Proxy             `koanf:"proxy"`
	Feed        Feed              `koanf:"feed"`
	Results     Results           `koanf:"results"`
	Templates   Templates         `koanf:"templates"`

	// Extra provides additional pipeline variables.
	Extra map[string]string `koanf:"variables"`
}

// functions for mocking
var (
	getwdFn = os.Getwd
	statFn  = os.Stat
)

// Load loads the configuration. The file at path is loaded
// when set; otherwise the default file is loaded if it
// exists.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, err
	}

	if path == "" {
		if _, err := statFn(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("cannot load configuration file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, err
	}

	conf := new(Config)
	if err := k.Unmarshal("", conf); err != nil {
		return nil, err
	}
	return conf, conf.resolve()
}

// envKey maps TESTSTEPS_JOB_PROJECT to job.project.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".")
}

// resolve fills in the workspace directories derived from
// other settings.
func (c *Config) resolve() error {
	if c.Workspace.Sources == "" {
		wd, err := getwdFn()
		if err != nil {
			return err
		}
		c.Workspace.Sources = wd
	}
	if c.Workspace.Artifacts == "" {
		c.Workspace.Artifacts = filepath.Join(c.Workspace.Sources, "_artifacts")
	}
	if c.Workspace.Build == "" {
		c.Workspace.Build = filepath.Join(c.Workspace.Temp, "teststeps")
	}
	if c.Results.Dir == "" {
		c.Results.Dir = filepath.Join(c.Workspace.Artifacts, "results")
	}
	return nil
}

// Variables returns the predefined pipeline variables merged
// with the configured variables.
func (c *Config) Variables() map[string]string {
	vars := map[string]string{
		"Agent.BuildDirectory":           c.Workspace.Build,
		"Agent.JobName":                  c.Job.Name,
		"Agent.OS":                       agentOS(runtime.GOOS),
		"Agent.TempDirectory":            c.Workspace.Temp,
		"Build.ArtifactStagingDirectory": c.Workspace.Artifacts,
		"Build.BuildId":                  c.Job.BuildID,
		"Build.BuildNumber":              c.Job.BuildNumber,
		"Build.SourcesDirectory":         c.Workspace.Sources,
		"System.DefaultWorkingDirectory": c.Workspace.Sources,
		"System.TeamProject":             c.Job.Project,
	}
	macro.Merge(vars, c.Extra)
	return vars
}

// Secrets returns the secret pipeline variables.
func (c *Config) Secrets() map[string]string {
	secrets := map[string]string{}
	if c.Job.AccessToken != "" {
		secrets["System.AccessToken"] = c.Job.AccessToken
	}
	return secrets
}

func agentOS(goos string) string {
	switch goos {
	case "windows":
		return "Windows_NT"
	case "darwin":
		return "Darwin"
	}
	return "Linux"
}

func defaults() map[string]any {
	return map[string]any{
		"workspace.temp":               os.TempDir(),
		"job.name":                     "local",
		"job.project":                  "public",
		"job.buildnumber":              "0",
		"job.buildid":                  "0",
		"proxy.cache":                  "$XDG_CACHE_HOME/teststeps/tools",
		"proxy.executable.name":        "test-proxy",
		"proxy.executable.version":     "1.0.0-dev.20240410.1",
		"proxy.executable.binary":      "Azure.Sdk.Tools.TestProxy",
		"proxy.executable.executables": []map[string]any{
			{"os": "linux", "arch": "amd64", "url": proxyRelease + "test-proxy-standalone-linux-x64.tar.gz"},
			{"os": "linux", "arch": "arm64", "url": proxyRelease + "test-proxy-standalone-linux-arm64.tar.gz"},
			{"os": "darwin", "arch": "amd64", "url": proxyRelease + "test-proxy-standalone-osx-x64.zip"},
			{"os": "darwin", "arch": "arm64", "url": proxyRelease + "test-proxy-standalone-osx-arm64.zip"},
			{"os": "windows", "arch": "amd64", "url": proxyRelease + "test-proxy-standalone-win-x64.zip"},
		},
		"feed.host":         "pkgs.dev.azure.com",
		"feed.organization": "azure-sdk",
	}
}
