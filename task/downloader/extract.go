// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package downloader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mholt/archives"

	"github.com/drone/go-teststeps/task/logger"
)

// extract unpacks the archive at srcPath into destDir and
// removes the archive. It reports false, leaving the file
// in place, when the file is not an archive.
func extract(ctx context.Context, srcPath, destDir string) (bool, error) {
	f, err := os.Open(srcPath)
	if err != nil {
		return false, err
	}
	defer f.Close()

	format, stream, err := archives.Identify(ctx, filepath.Base(srcPath), f)
	if errors.Is(err, archives.NoMatch) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	extractor, ok := format.(archives.Extractor)
	if !ok {
		return false, nil
	}

	root := filepath.Clean(destDir) + string(os.PathSeparator)
	err = extractor.Extract(ctx, stream, func(ctx context.Context, fi archives.FileInfo) error {
		target := filepath.Join(destDir, filepath.FromSlash(fi.NameInArchive))
		if !strings.HasPrefix(target, root) {
			return fmt.Errorf("illegal file path in archive: %s", fi.NameInArchive)
		}
		if fi.IsDir() {
			return mkdirAllFn(target, 0755)
		}
		if fi.LinkTarget != "" {
			// links are not needed to run a single executable
			return nil
		}
		if err := mkdirAllFn(filepath.Dir(target), 0755); err != nil {
			return fmt.Errorf("error creating directories: %w", err)
		}
		in, err := fi.Open()
		if err != nil {
			return err
		}
		defer in.Close()

		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fi.Mode().Perm()|0600)
		if err != nil {
			return fmt.Errorf("error creating file: %w", err)
		}
		defer out.Close()

		_, err = copyFn(out, in)
		return err
	})
	if err != nil {
		return true, err
	}

	logger.FromContext(ctx).
		WithField("source", srcPath).
		WithField("destination", destDir).
		Debug("extracted archive")

	// delete the archive file after unpacking
	f.Close()
	os.Remove(srcPath)
	return true, nil
}
