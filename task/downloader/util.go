// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/cenkalti/backoff/v4"

	"github.com/drone/go-teststeps/task/logger"
)

// maxRetries is the number of times the full url list is
// retried after a transient failure.
const maxRetries = 3

// functions for mocking
var (
	mkdirAllFn     = os.MkdirAll
	httpGetFn      = httpGet
	createFn       = os.Create
	copyFn         = io.Copy
	getcacheFn     = os.UserCacheDir
	isCacheHitFn   = isCacheHit
	downloadFileFn = downloadFile
	newBackOff     = func() backoff.BackOff { return backoff.NewExponentialBackOff() }
)

func httpGet(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	return http.DefaultClient.Do(req)
}

// downloadFile fetches the file from a list of urls and writes it to dest.
// It tries urls one by one until a download is successful. When every url
// fails with a transient error the list is retried with backoff.
func downloadFile(ctx context.Context, urls []string, dest string) (string, error) {
	log := logger.FromContext(ctx)

	downloadDir := filepath.Dir(dest)
	// create the directory where the target is downloaded.
	if err := mkdirAllFn(downloadDir, 0777); err != nil {
		return "", err
	}

	attempt := func() error {
		var lastErr error
		for _, u := range urls {
			log.WithField("source", u).
				WithField("destination", dest).
				Debug("attempting to download artifact")

			resp, err := httpGetFn(ctx, u)
			if err != nil {
				lastErr = fmt.Errorf("failed to download file from %s: %w", u, err)
				log.WithError(lastErr).Warn("download attempt failed")
				continue // try next url
			}

			if code := resp.StatusCode; code > 299 {
				resp.Body.Close()
				lastErr = fmt.Errorf("download error with status code %d for url %s", code, u)
				log.WithError(lastErr).Warn("download attempt failed")
				continue // try next url
			}

			outFile, err := createFn(dest)
			if err != nil {
				resp.Body.Close()
				return backoff.Permanent(fmt.Errorf("failed to create file: %w", err))
			}

			_, err = copyFn(outFile, resp.Body)
			outFile.Close()
			resp.Body.Close()

			if err != nil {
				// This is a file writing error, not a download error. Fail immediately.
				return backoff.Permanent(fmt.Errorf("failed to write to file: %w", err))
			}

			log.Debug("downloaded artifact successfully")
			return nil // success
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return fmt.Errorf("failed to download file from all provided urls: %w", lastErr)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(newBackOff(), maxRetries), ctx)
	if err := backoff.Retry(attempt, b); err != nil {
		return "", err
	}
	return dest, nil
}

// getDownloadPath returns the full download path given the download url and the destination folder `dest`
func getDownloadPath(rawurl, dest string) string {
	fileName := filepath.Base(rawurl)
	if u, err := url.Parse(rawurl); err == nil && u.Path != "" {
		fileName = path.Base(u.Path)
	}
	return filepath.Join(dest, fileName)
}

// isCacheHit checks if the `dest` file already exists
func isCacheHit(ctx context.Context, dest string) bool {
	log := logger.FromContext(ctx).
		WithField("target", dest)

	if _, err := os.Stat(dest); err == nil {
		log.Debug("cache hit")
		return true
	}

	log.Debug("cache miss")
	return false
}

// ExpandCache returns the root directory where tool
// downloads should be cached.
func ExpandCache(s string) string {
	cache, _ := getcacheFn()
	return strings.ReplaceAll(s, "$XDG_CACHE_HOME", cache)
}
