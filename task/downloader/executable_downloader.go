// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/drone/go-teststeps/task"
	"github.com/drone/go-teststeps/task/logger"
)

// functions for mocking
var (
	removeAllFn = os.RemoveAll
	chmodFn     = os.Chmod
	renameFn    = os.Rename
	extractFn   = extract
)

// executableDownloader downloads a tool executable. It
// also takes care of where to download the file.
type executableDownloader struct{}

func newExecutableDownloader() *executableDownloader {
	return &executableDownloader{}
}

func (e *executableDownloader) download(ctx context.Context, dir string, exec *task.ExecutableConfig) (string, error) {
	if exec == nil {
		return "", errors.New("no executable urls provided to download")
	}
	operatingSystem := runtime.GOOS
	architecture := runtime.GOARCH
	urls, ok := e.getExecutableUrl(exec, operatingSystem, architecture)
	if !ok {
		return "", fmt.Errorf("os [%s] and architecture [%s] are not specified in executable configuration", operatingSystem, architecture)
	}

	// {baseDir}/{name}/{version}/{binary}
	destDir := filepath.Join(dir, exec.Name, exec.Version)
	target := filepath.Join(destDir, binaryName(exec, operatingSystem))
	if cacheHit := isCacheHitFn(ctx, target); cacheHit {
		// exit if the executable already exists
		return target, nil
	}

	// remove partial downloads of this version so that
	// the download starts clean.
	if err := removeAllFn(destDir); err != nil {
		return "", err
	}

	dest := getDownloadPath(urls[0], destDir)
	if exec.Compressed && !strings.HasSuffix(dest, ".zst") {
		dest = dest + ".zst"
	}

	path, err := downloadFileFn(ctx, urls, dest)
	if err != nil {
		// remove the destination directory if downloading fails so it can be retried
		removeAllFn(destDir)
		return "", err
	}

	logger.FromContext(ctx).
		WithField("name", exec.Name).
		WithField("version", exec.Version).
		WithField("os", operatingSystem).
		WithField("arch", architecture).
		Info("downloaded executable")

	if exec.Compressed {
		path, err = decompressFile(ctx, path)
		if err != nil {
			removeAllFn(destDir)
			return "", fmt.Errorf("failed to decompress executable [%s]: %w", path, err)
		}
	}

	extracted, err := extractFn(ctx, path, destDir)
	if err != nil {
		removeAllFn(destDir)
		return "", fmt.Errorf("failed to extract executable [%s]: %w", path, err)
	}
	if !extracted && path != target {
		if err := renameFn(path, target); err != nil {
			return "", err
		}
	}

	if err = chmodFn(target, 0777); err != nil {
		return "", fmt.Errorf("failed to set executable flag in file [%s]: %w", target, err)
	}
	return target, nil
}

// binaryName returns the file name of the executable.
func binaryName(exec *task.ExecutableConfig, operatingSystem string) string {
	name := exec.Name
	if exec.Binary != "" {
		name = filepath.FromSlash(exec.Binary)
	}
	if operatingSystem == "windows" && !strings.HasSuffix(name, ".exe") {
		name += ".exe"
	}
	return name
}

// decompressFile decompresses a zstd file if needed
func decompressFile(ctx context.Context, filePath string) (string, error) {
	if !strings.HasSuffix(filePath, ".zst") {
		return filePath, nil // Not a zstd file, return original path
	}

	// Open the compressed file
	compressedFile, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open compressed file: %v", err)
	}
	defer compressedFile.Close()

	// Create the decompressed file (remove .zst extension)
	decompressedPath := strings.TrimSuffix(filePath, ".zst")
	decompressedFile, err := os.Create(decompressedPath)
	if err != nil {
		return "", fmt.Errorf("failed to create decompressed file: %v", err)
	}
	defer decompressedFile.Close()

	// Decompress
	if err := decompress(compressedFile, decompressedFile); err != nil {
		return "", fmt.Errorf("failed to decompress file: %v", err)
	}

	// Remove the original compressed file after successful decompression
	if err := os.Remove(filePath); err != nil {
		logger.FromContext(ctx).
			WithError(err).
			WithField("path", filePath).
			Error("failed to remove compressed file after decompression")
	}
	return decompressedPath, nil
}

// decompress decompresses a zstd compressed file
func decompress(in io.Reader, out io.Writer) error {
	d, err := zstd.NewReader(in)
	if err != nil {
		return err
	}
	defer d.Close()

	_, err = io.Copy(out, d)
	return err
}

// getExecutableUrl returns the download urls matching the operating
// system and architecture, in the order they are configured.
func (e *executableDownloader) getExecutableUrl(config *task.ExecutableConfig, operatingSystem, architecture string) ([]string, bool) {
	var urls []string
	for _, exec := range config.Executables {
		if exec.Os == operatingSystem && exec.Arch == architecture {
			urls = append(urls, exec.Url)
		}
	}
	return urls, len(urls) > 0
}
