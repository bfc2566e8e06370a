// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package downloader downloads and caches tool executables.
package downloader

import (
	"context"

	"github.com/drone/go-teststeps/task"
)

// Downloader downloads tool executables into a cache
// directory.
type Downloader struct {
	dir                  string
	executableDownloader *executableDownloader
}

// New returns a Downloader that caches downloads in dir.
// The $XDG_CACHE_HOME placeholder is expanded.
func New(dir string) *Downloader {
	return &Downloader{
		dir:                  ExpandCache(dir),
		executableDownloader: newExecutableDownloader(),
	}
}

// DownloadExecutable returns the path of the executable,
// downloading it when it is not cached.
func (d *Downloader) DownloadExecutable(ctx context.Context, exec *task.ExecutableConfig) (string, error) {
	return d.executableDownloader.download(ctx, d.dir, exec)
}
