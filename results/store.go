// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package results

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Run kinds.
const (
	KindTests    = "tests"
	KindCoverage = "coverage"
)

// Run is a published test run or coverage report.
type Run struct {
	ID       uuid.UUID `json:"id"`
	Kind     string    `json:"kind"`
	Title    string    `json:"title,omitempty"`
	Files    []string  `json:"files"`
	Created  time.Time `json:"created"`
	Tests    *Summary  `json:"tests,omitempty"`
	Coverage *Coverage `json:"coverage,omitempty"`
}

// Store records published runs as json files in a
// directory.
type Store struct {
	dir string
}

// NewStore returns a Store writing to dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

// functions for mocking
var (
	nowFn  = time.Now
	uuidFn = uuid.New
)

// Save writes the run and returns the file path. A run
// without an id is assigned one.
func (s *Store) Save(run *Run) (string, error) {
	if run.ID == uuid.Nil {
		run.ID = uuidFn()
	}
	if run.Created.IsZero() {
		run.Created = nowFn().UTC()
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", err
	}
	b, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, run.Kind+"-"+run.ID.String()+".json")
	return path, os.WriteFile(path, b, 0o644)
}

// List returns the recorded runs, oldest first.
func (s *Store) List() ([]*Run, error) {
	paths, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, err
	}
	var out []*Run
	for _, path := range paths {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		run := new(Run)
		if err := json.Unmarshal(b, run); err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Created.Before(out[j].Created)
	})
	return out, nil
}
