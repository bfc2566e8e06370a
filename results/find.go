// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package results

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// Patterns splits a multi-line pattern input into patterns,
// dropping blank lines.
func Patterns(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// Find returns the files under root matching any of the
// patterns, sorted. Patterns match the path relative to root.
// A pattern prefixed with ! excludes the files it matches. A
// ** segment matches any number of directories, including
// none.
func Find(root string, patterns []string) ([]string, error) {
	var include, exclude []glob.Glob
	for _, pattern := range patterns {
		negate := strings.HasPrefix(pattern, "!")
		pattern = filepath.ToSlash(strings.TrimPrefix(pattern, "!"))
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, err
		}
		if negate {
			exclude = append(exclude, g)
		} else {
			include = append(include, g)
		}
	}

	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		candidates := []string{
			filepath.ToSlash(rel),
			"/" + filepath.ToSlash(rel),
		}
		if matchAny(include, candidates) && !matchAny(exclude, candidates) {
			out = append(out, path)
		}
		return nil
	})
	sort.Strings(out)
	return out, err
}

// SplitPattern splits a glob into its leading directory
// without glob characters and the pattern relative to that
// directory.
func SplitPattern(pattern string) (string, string) {
	parts := strings.Split(filepath.ToSlash(pattern), "/")
	i := 0
	for i < len(parts)-1 && !strings.ContainsAny(parts[i], "*?[{") {
		i++
	}
	root := strings.Join(parts[:i], "/")
	if root == "" {
		root = "."
		if i > 0 {
			root = "/"
		}
	}
	return filepath.FromSlash(root), strings.Join(parts[i:], "/")
}

func matchAny(globs []glob.Glob, candidates []string) bool {
	for _, g := range globs {
		for _, s := range candidates {
			if g.Match(s) {
				return true
			}
		}
	}
	return false
}
