// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package packaged locates tool executables that are
// packaged with the runner, for example in a container
// image. It is assumed there is only one artifact per
// tool, because the operating system and architecture are
// pre-determined.
package packaged

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/drone/go-teststeps/task"
)

type PackageLoader struct {
	dir string
}

func New(dir string) PackageLoader {
	return PackageLoader{dir: dir}
}

// GetPackagePath returns the path of the packaged tool
// executable. The executable is looked up as
// {dir}/{name}/{binary}, falling back to the first file in
// {dir}/{name}.
func (p *PackageLoader) GetPackagePath(ctx context.Context, exec *task.ExecutableConfig) (string, error) {
	if p.dir == "" {
		return "", fmt.Errorf("no package directory configured")
	}
	dir := filepath.Join(p.dir, exec.Name)
	if exec.Binary != "" {
		path := filepath.Join(dir, filepath.FromSlash(exec.Binary))
		if _, err := os.Stat(path); err != nil {
			return "", err
		}
		return path, nil
	}
	return getFirstFile(dir)
}

func getFirstFile(directory string) (string, error) {
	// Open the directory
	files, err := os.ReadDir(directory)
	if err != nil {
		return "", err
	}

	// Iterate through files to find the first file (not a directory)
	for _, file := range files {
		if !file.IsDir() {
			return filepath.Join(directory, file.Name()), nil // Return the first file found
		}
	}

	// If no files are found, return an error
	return "", fmt.Errorf("no executable found in directory: %s", directory)
}
