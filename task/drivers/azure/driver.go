// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package azure provides the azure powershell task driver.
// The driver runs a script with the identity of a service
// connection. The identity is exported to the script as
// AZURESUBSCRIPTION_* environment variables; the token
// exchange itself is left to the script tooling.
package azure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/drone/go-teststeps/task"
	"github.com/drone/go-teststeps/task/logger"
	"github.com/drone/go-teststeps/task/shell"
)

// Name is the task name handled by the driver.
const Name = "AzurePowerShell@5"

// Connection provides the identity of a service connection.
type Connection struct {
	SubscriptionID string `koanf:"subscription"`
	TenantID       string `koanf:"tenant"`
	ClientID       string `koanf:"client"`
}

// Connections maps service connection names to identities.
type Connections map[string]Connection

// Lookup returns the named connection. Names are
// case-insensitive.
func (c Connections) Lookup(name string) (Connection, bool) {
	if conn, ok := c[name]; ok {
		return conn, true
	}
	for k, conn := range c {
		if strings.EqualFold(k, name) {
			return conn, true
		}
	}
	return Connection{}, false
}

// Config provides the task inputs.
type Config struct {
	AzureSubscription      string `json:"azureSubscription"`
	ScriptType             string `json:"ScriptType"`
	ScriptPath             string `json:"ScriptPath"`
	Inline                 string `json:"Inline"`
	ScriptArguments        string `json:"ScriptArguments"`
	ErrorActionPreference  string `json:"errorActionPreference"`
	AzurePowerShellVersion string `json:"azurePowerShellVersion"`
	Pwsh                   string `json:"pwsh"`
	WorkingDirectory       string `json:"workingDirectory"`
}

// runFn executes the script, for mocking.
var runFn = func(ctx context.Context, e *shell.Execer, kind shell.Kind, body string) error {
	return e.Run(ctx, kind, body)
}

// New returns the task execution driver.
func New(conf shell.Config, connections Connections) task.Handler {
	return &driver{shell: conf, connections: connections}
}

type driver struct {
	shell       shell.Config
	connections Connections
}

// Handle handles the task execution request.
func (d *driver) Handle(ctx context.Context, req *task.Request) task.Response {
	log := logger.FromContext(ctx)

	conf := new(Config)
	if err := json.Unmarshal(req.Task.Data, conf); err != nil {
		return task.Error(err)
	}

	if conf.AzureSubscription == "" {
		return task.Errorf("input azureSubscription is required")
	}
	conn, ok := d.connections.Lookup(conf.AzureSubscription)
	if !ok {
		return task.Errorf("service connection %q is not configured", conf.AzureSubscription)
	}

	body, err := script(conf)
	if err != nil {
		return task.Error(err)
	}

	kind := shell.PowerShell
	if task.Bool(conf.Pwsh, false) {
		kind = shell.Pwsh
	}

	dir := conf.WorkingDirectory
	if dir == "" {
		dir = req.Task.Dir
	}
	execer := &shell.Execer{
		Config: d.shell,
		Dir:    dir,
		Env:    identityEnv(req.Task.Env, conf.AzureSubscription, conn),
		Stdout: req.Logger,

		// the script decides whether a native exit code
		// fails the task.
		IgnoreExitCode: true,
	}

	log = log.WithField("connection", conf.AzureSubscription).
		WithField("subscription", conn.SubscriptionID)
	log.Debug("invoke azure powershell")

	if err := runFn(ctx, execer, kind, body); err != nil {
		log.WithError(err).Error("azure powershell failed")
		return task.Error(err)
	}
	return task.Respond(nil)
}

// script returns the powershell script body.
func script(conf *Config) (string, error) {
	var b strings.Builder
	if pref := conf.ErrorActionPreference; pref != "" {
		fmt.Fprintf(&b, "$ErrorActionPreference = '%s'\n", pref)
	}
	switch strings.ToLower(conf.ScriptType) {
	case "inlinescript":
		if strings.TrimSpace(conf.Inline) == "" {
			return "", errors.New("input Inline is required")
		}
		b.WriteString(conf.Inline)
	case "filepath", "":
		if conf.ScriptPath == "" {
			return "", errors.New("input ScriptPath is required")
		}
		b.WriteString(". '" + strings.ReplaceAll(conf.ScriptPath, "'", "''") + "'")
		if args := strings.TrimSpace(conf.ScriptArguments); args != "" {
			b.WriteString(" " + args)
		}
	default:
		return "", fmt.Errorf("unsupported script type: %s", conf.ScriptType)
	}
	return b.String(), nil
}

// identityEnv returns env with the service connection
// identity appended.
func identityEnv(env []string, name string, conn Connection) []string {
	out := make([]string, 0, len(env)+4)
	out = append(out, env...)
	return append(out,
		"AZURESUBSCRIPTION_SERVICE_CONNECTION_ID="+name,
		"AZURESUBSCRIPTION_SUBSCRIPTION_ID="+conn.SubscriptionID,
		"AZURESUBSCRIPTION_TENANT_ID="+conn.TenantID,
		"AZURESUBSCRIPTION_CLIENT_ID="+conn.ClientID,
	)
}
