// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package shell executes script bodies with a shell
// interpreter.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/drone/go-teststeps/task/logger"
)

// Kind identifies the shell interpreter.
type Kind string

const (
	Script     Kind = "script"
	Bash       Kind = "bash"
	Pwsh       Kind = "pwsh"
	PowerShell Kind = "powershell"
)

// Config provides the interpreter executables.
type Config struct {
	Bash       string `koanf:"bash"`
	Pwsh       string `koanf:"pwsh"`
	PowerShell string `koanf:"powershell"`
	Python     string `koanf:"python"`
}

// PythonPath returns the python interpreter.
func (c Config) PythonPath() string {
	return or(c.Python, "python")
}

// ExitError reports a non-zero process exit code.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("process completed with exit code %d", e.Code)
}

// ExitCode returns the exit code carried by err, zero when err
// is nil and -1 when err is not an exit error.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exit *ExitError
	if errors.As(err, &exit) {
		return exit.Code
	}
	return -1
}

// functions for mocking
var (
	commandContextFn = exec.CommandContext
	createTempFn     = os.CreateTemp
)

// Execer runs script bodies.
type Execer struct {
	Config Config
	Dir    string
	Env    []string // nil inherits the process environment
	Stdout io.Writer
	Stderr io.Writer

	// IgnoreExitCode drops the exit code of the last native
	// command of a powershell script. Only an explicit exit or
	// a terminating error then fails the script.
	IgnoreExitCode bool
}

// Run writes body to a temporary script file and executes it
// with the interpreter for kind.
func (e *Execer) Run(ctx context.Context, kind Kind, body string) error {
	log := logger.FromContext(ctx).
		WithField("shell", kind).
		WithField("dir", e.Dir)

	script, ext := wrap(kind, body, e.IgnoreExitCode)
	path, err := writeScript(script, ext)
	if err != nil {
		return err
	}
	defer os.Remove(path)

	name, args, err := e.command(kind, path)
	if err != nil {
		return err
	}

	cmd := commandContextFn(ctx, name, args...)
	cmd.Dir = e.Dir
	cmd.Env = e.Env
	cmd.Stdout = e.Stdout
	cmd.Stderr = e.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = e.Stdout
	}

	log.WithField("command", name).Debug("executing script")

	err = cmd.Run()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var exit *exec.ExitError
	if errors.As(err, &exit) {
		return &ExitError{Code: exit.ExitCode()}
	}
	return err
}

// command returns the interpreter invocation for the script
// file at path.
func (e *Execer) command(kind Kind, path string) (string, []string, error) {
	switch kind {
	case Script, Bash, "":
		return or(e.Config.Bash, "bash"), []string{"--noprofile", "--norc", path}, nil
	case Pwsh:
		return or(e.Config.Pwsh, "pwsh"), powershellArgs(path), nil
	case PowerShell:
		return or(e.Config.PowerShell, "powershell"), powershellArgs(path), nil
	default:
		return "", nil, fmt.Errorf("unsupported shell: %s", kind)
	}
}

func powershellArgs(path string) []string {
	return []string{
		"-NoLogo",
		"-NoProfile",
		"-NonInteractive",
		"-ExecutionPolicy", "Unrestricted",
		"-Command", ". '" + strings.ReplaceAll(path, "'", "''") + "'",
	}
}

// wrap adds the interpreter preamble to body and returns the
// script with its file extension.
func wrap(kind Kind, body string, ignoreExitCode bool) (string, string) {
	var b strings.Builder
	switch kind {
	case Pwsh, PowerShell:
		b.WriteString("$ErrorActionPreference = 'Stop'\n")
		b.WriteString(body)
		if ignoreExitCode {
			b.WriteString("\nexit 0\n")
		} else {
			b.WriteString("\nif ((Test-Path -LiteralPath variable:\\LASTEXITCODE)) { exit $LASTEXITCODE }\n")
		}
		return b.String(), ".ps1"
	default:
		b.WriteString("set -eo pipefail\n")
		b.WriteString(body)
		b.WriteString("\n")
		return b.String(), ".sh"
	}
}

func writeScript(script, ext string) (string, error) {
	f, err := createTempFn("", "step-*"+ext)
	if err != nil {
		return "", fmt.Errorf("failed to create script file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(script); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write script file: %w", err)
	}
	return filepath.Clean(f.Name()), nil
}

func or(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// Quote returns s as a single quoted posix shell word.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
