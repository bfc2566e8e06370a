// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package script

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drone/go-teststeps/task"
	"github.com/drone/go-teststeps/task/shell"
)

func TestHandle(t *testing.T) {
	original := runFn
	defer func() { runFn = original }()

	var (
		gotKind shell.Kind
		gotBody string
		gotDir  string
		gotEnv  []string
	)
	runFn = func(ctx context.Context, e *shell.Execer, kind shell.Kind, body string) error {
		gotKind, gotBody, gotDir, gotEnv = kind, body, e.Dir, e.Env
		return nil
	}

	req := &task.Request{
		Task: &task.Task{
			Type: Name,
			Data: []byte(`{"scriptPath":"scripts/devops_tasks/dispatch_tox.py","arguments":"\"azure-*\" --service=\"storage\""}`),
			Env:  []string{"AZURE_TEST_RUN_LIVE=true"},
			Dir:  "/src",
		},
	}
	res := New(shell.Config{Python: "/usr/bin/python3"}).Handle(context.Background(), req)
	require.NoError(t, res.Error())

	assert.Equal(t, shell.Bash, gotKind)
	assert.Equal(t, `'/usr/bin/python3' 'scripts/devops_tasks/dispatch_tox.py' "azure-*" --service="storage"`, gotBody)
	assert.Equal(t, "/src", gotDir)
	assert.Equal(t, []string{"AZURE_TEST_RUN_LIVE=true"}, gotEnv)
}

func TestHandle_ExitCode(t *testing.T) {
	original := runFn
	defer func() { runFn = original }()
	runFn = func(ctx context.Context, e *shell.Execer, kind shell.Kind, body string) error {
		return &shell.ExitError{Code: 1}
	}

	req := &task.Request{Task: &task.Task{Type: Name, Data: []byte(`{"scriptPath":"dispatch_tox.py"}`)}}
	res := New(shell.Config{}).Handle(context.Background(), req)
	assert.Equal(t, 1, shell.ExitCode(res.Error()))
}

func TestCommand(t *testing.T) {
	d := &driver{}
	tests := []struct {
		name    string
		conf    Config
		want    string
		wantErr bool
	}{
		{
			name: "file",
			conf: Config{ScriptPath: "create_coverage.py"},
			want: "'python' 'create_coverage.py'",
		},
		{
			name: "interpreter",
			conf: Config{ScriptPath: "a.py", Arguments: " -v ", PythonInterpreter: "python3.10"},
			want: "'python3.10' 'a.py' -v",
		},
		{
			name: "inline",
			conf: Config{ScriptSource: "inline", Script: "print('hi')", Arguments: "x"},
			want: "'python' - x <<'__PYTHON_SCRIPT_EOF__'\nprint('hi')\n__PYTHON_SCRIPT_EOF__",
		},
		{
			name:    "missing_path",
			conf:    Config{},
			wantErr: true,
		},
		{
			name:    "missing_inline",
			conf:    Config{ScriptSource: "Inline"},
			wantErr: true,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := d.command(&test.conf)
			if test.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.want, got)
		})
	}
}

func TestHandle_InvalidInputs(t *testing.T) {
	req := &task.Request{Task: &task.Task{Type: Name, Data: []byte(`{"scriptPath": 1}`)}}
	res := New(shell.Config{}).Handle(context.Background(), req)
	assert.Error(t, res.Error())
}
