// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package masker

import (
	"io"
	"sort"
	"strings"
	"sync"
)

// Mask is the replacement text for a secret value.
const Mask = "***"

// Masker is an io.Writer that finds and masks
// sensitive data. Secrets can be added while the
// writer is in use.
type Masker struct {
	mu      sync.Mutex
	w       io.Writer
	secrets map[string]struct{}
	r       *strings.Replacer
}

// New returns a masker that wraps io.Writer w.
func New(w io.Writer, secrets []string) *Masker {
	m := &Masker{
		w:       w,
		secrets: map[string]struct{}{},
	}
	m.Add(secrets...)
	return m
}

// Add registers additional secret values. Multi-line
// secrets are masked line by line.
func (m *Masker) Add(secrets ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, secret := range secrets {
		for _, part := range strings.Split(secret, "\n") {
			part = strings.TrimSpace(part)
			if len(part) == 0 {
				continue
			}
			m.secrets[part] = struct{}{}
		}
	}
	m.r = m.replacer()
}

// replacer builds the replacer with the longest secrets
// first so that a secret containing another secret is
// fully masked.
func (m *Masker) replacer() *strings.Replacer {
	if len(m.secrets) == 0 {
		return nil
	}
	parts := make([]string, 0, len(m.secrets))
	for s := range m.secrets {
		parts = append(parts, s)
	}
	sort.Slice(parts, func(i, j int) bool {
		if len(parts[i]) != len(parts[j]) {
			return len(parts[i]) > len(parts[j])
		}
		return parts[i] < parts[j]
	})
	var oldnew []string
	for _, part := range parts {
		oldnew = append(oldnew, part, Mask)
	}
	return strings.NewReplacer(oldnew...)
}

// Write writes p to the base writer. The method scans for any
// sensitive data in p and masks before writing.
func (m *Masker) Write(p []byte) (n int, err error) {
	m.mu.Lock()
	r := m.r
	m.mu.Unlock()
	if r == nil {
		return m.w.Write(p)
	}
	_, err = m.w.Write([]byte(r.Replace(string(p))))
	return len(p), err
}

// String masks the secrets in s.
func (m *Masker) String(s string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.r == nil {
		return s
	}
	return m.r.Replace(s)
}

// Slice converts a key value pair of secrets to a slice.
func Slice(in map[string]string) (out []string) {
	for _, v := range in {
		out = append(out, v)
	}
	return out
}
