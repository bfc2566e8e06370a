// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cenkalti/backoff/v4"
)

func TestDownloadFile(t *testing.T) {
	// Save the original functions
	originalmkdirAll := mkdirAllFn
	originalHttpGet := httpGetFn
	originalCreateFn := createFn
	originalCopyFn := copyFn
	originalBackOff := newBackOff

	// Mock functions
	mkdirAllFn = func(s string, m os.FileMode) error {
		return nil
	}
	copyFn = func(w io.Writer, r io.Reader) (int64, error) {
		return 0, nil
	}
	newBackOff = func() backoff.BackOff {
		return &backoff.ZeroBackOff{}
	}

	// Restore original functions when test finishes
	defer func() { mkdirAllFn = originalmkdirAll }()
	defer func() { httpGetFn = originalHttpGet }()
	defer func() { createFn = originalCreateFn }()
	defer func() { copyFn = originalCopyFn }()
	defer func() { newBackOff = originalBackOff }()

	tests := []struct {
		name          string
		urls          []string
		dest          string
		fileCreateErr bool
		wantErr       bool
		wantCalls     int
		mockGetFn     func(*int) func(context.Context, string) (*http.Response, error)
	}{
		{
			name:      "successful_download",
			urls:      []string{"http://example.com/file.txt"},
			dest:      "/tmp/testfile.txt",
			wantErr:   false,
			wantCalls: 1,
			mockGetFn: func(calls *int) func(context.Context, string) (*http.Response, error) {
				return func(ctx context.Context, url string) (*http.Response, error) {
					*calls++
					body := io.NopCloser(strings.NewReader("mock file content"))
					return &http.Response{
						StatusCode: http.StatusOK,
						Body:       body,
					}, nil
				}
			},
		},
		{
			name:      "fallback_url",
			urls:      []string{"http://example.com/missing", "http://mirror.example.com/file.txt"},
			dest:      "/tmp/testfile.txt",
			wantErr:   false,
			wantCalls: 2,
			mockGetFn: func(calls *int) func(context.Context, string) (*http.Response, error) {
				return func(ctx context.Context, url string) (*http.Response, error) {
					*calls++
					code := http.StatusOK
					if strings.HasSuffix(url, "missing") {
						code = http.StatusNotFound
					}
					return &http.Response{
						StatusCode: code,
						Body:       io.NopCloser(strings.NewReader("")),
					}, nil
				}
			},
		},
		{
			name:      "transient_error_retried",
			urls:      []string{"http://example.com/file.txt"},
			dest:      "/tmp/testfile.txt",
			wantErr:   false,
			wantCalls: 3,
			mockGetFn: func(calls *int) func(context.Context, string) (*http.Response, error) {
				return func(ctx context.Context, url string) (*http.Response, error) {
					*calls++
					if *calls < 3 {
						return nil, errors.New("connection reset")
					}
					return &http.Response{
						StatusCode: http.StatusOK,
						Body:       io.NopCloser(strings.NewReader("")),
					}, nil
				}
			},
		},
		{
			name:      "http_error",
			urls:      []string{"http://example.com/nonexistent"},
			dest:      "/tmp/testfile.txt",
			wantErr:   true,
			wantCalls: maxRetries + 1,
			mockGetFn: func(calls *int) func(context.Context, string) (*http.Response, error) {
				return func(ctx context.Context, url string) (*http.Response, error) {
					*calls++
					return &http.Response{
						StatusCode: http.StatusNotFound,
						Body:       io.NopCloser(strings.NewReader("")),
					}, nil
				}
			},
		},
		{
			name:          "file_creation_error",
			urls:          []string{"http://example.com/file.txt"},
			dest:          "/invalid/dir/testfile.txt",
			fileCreateErr: true,
			wantErr:       true,
			wantCalls:     1,
			mockGetFn: func(calls *int) func(context.Context, string) (*http.Response, error) {
				return func(ctx context.Context, url string) (*http.Response, error) {
					*calls++
					body := io.NopCloser(strings.NewReader("mock file content"))
					return &http.Response{
						StatusCode: http.StatusOK,
						Body:       body,
					}, nil
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Mock the functions
			var calls int
			httpGetFn = tt.mockGetFn(&calls)
			if tt.fileCreateErr {
				createFn = func(s string) (*os.File, error) {
					return nil, fmt.Errorf("error creating file")
				}
			} else {
				createFn = func(s string) (*os.File, error) {
					return &os.File{}, nil
				}
			}

			_, err := downloadFile(context.Background(), tt.urls, tt.dest)
			if gotErr := err != nil; gotErr != tt.wantErr {
				t.Errorf("downloadFile() error = %v, wantErr %v", gotErr, tt.wantErr)
			}
			if calls != tt.wantCalls {
				t.Errorf("downloadFile() made %d requests, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestGetDownloadPath(t *testing.T) {
	tests := []struct {
		url      string
		dest     string
		expected string
	}{
		{
			url:      "http://example.com/file.txt",
			dest:     "/downloads",
			expected: filepath.Join("/downloads", "file.txt"),
		},
		{
			url:      "https://example.com/releases/test-proxy-linux-x64.tar.gz?sig=abc",
			dest:     "/downloads",
			expected: filepath.Join("/downloads", "test-proxy-linux-x64.tar.gz"),
		},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("url: %s", tt.url), func(t *testing.T) {
			if got := getDownloadPath(tt.url, tt.dest); got != tt.expected {
				t.Errorf("getDownloadPath(%q, %q) = %q, want %q", tt.url, tt.dest, got, tt.expected)
			}
		})
	}
}

func TestIsCacheHit(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		dest    string
		setup   func(string) // function to create a file for "cache hit"
		wantHit bool
	}{
		{
			name: "cache_hit",
			dest: filepath.Join(dir, "testfile.txt"),
			setup: func(dest string) {
				_ = os.WriteFile(dest, nil, 0600)
			},
			wantHit: true,
		},
		{
			name:    "cache_miss",
			dest:    filepath.Join(dir, "nonexistent.txt"),
			setup:   func(dest string) {}, // no setup for cache miss
			wantHit: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup(tt.dest)

			if got := isCacheHit(context.Background(), tt.dest); got != tt.wantHit {
				t.Errorf("isCacheHit() = %v, want %v", got, tt.wantHit)
			}
		})
	}
}

func TestExpandCache(t *testing.T) {
	// provide a mock function to get the os cache
	getcacheFn = func() (string, error) {
		return "/home/ubuntu/.cache", nil
	}
	// reset to the original when the test completes
	defer func() {
		getcacheFn = os.UserCacheDir
	}()
	tests := []struct {
		before string
		after  string
	}{
		{
			before: "$XDG_CACHE_HOME/teststeps/tools",
			after:  "/home/ubuntu/.cache/teststeps/tools",
		},
		{
			before: "/var/cache/teststeps/tools",
			after:  "/var/cache/teststeps/tools",
		},
	}
	for _, test := range tests {
		if got, want := ExpandCache(test.before), test.after; got != want {
			t.Errorf("Want cache dir %s, got %s", want, got)
		}
	}
}
