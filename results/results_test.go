// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package results

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pytestResults = `<?xml version="1.0" encoding="utf-8"?>
<testsuites>
  <testsuite name="pytest" errors="1" failures="1" skipped="1" tests="5" time="1.5">
    <testcase classname="tests.test_blob" name="test_upload" time="0.5"/>
    <testcase classname="tests.test_blob" name="test_download" time="0.25"/>
    <testcase classname="tests.test_blob" name="test_delete" time="0.25">
      <failure message="assert False">trace</failure>
    </testcase>
    <testcase classname="tests.test_blob" name="test_list" time="0.25">
      <error message="fixture error">trace</error>
    </testcase>
    <testcase classname="tests.test_blob" name="test_live" time="0">
      <skipped message="live only"/>
    </testcase>
  </testsuite>
</testsuites>`

func TestParseJUnit(t *testing.T) {
	got, err := ParseJUnit(strings.NewReader(pytestResults))
	require.NoError(t, err)
	want := &Summary{Total: 5, Passed: 2, Failed: 1, Errors: 1, Skipped: 1, Duration: 1.25}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Unexpected summary")
		t.Log(diff)
	}
	assert.Equal(t, 2, got.Failures())
}

func TestParseJUnit_SingleSuite(t *testing.T) {
	const doc = `<testsuite name="unit" tests="2"><testcase name="a"/><testcase name="b"/></testsuite>`
	got, err := ParseJUnit(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, 2, got.Total)
	assert.Equal(t, 2, got.Passed)
	assert.Zero(t, got.Failures())
}

func TestParseJUnit_Attributes(t *testing.T) {
	const doc = `<testsuites><testsuite tests="10" failures="2" errors="1" skipped="3" time="4"/></testsuites>`
	got, err := ParseJUnit(strings.NewReader(doc))
	require.NoError(t, err)
	want := &Summary{Total: 10, Passed: 4, Failed: 2, Errors: 1, Skipped: 3, Duration: 4}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Unexpected summary")
		t.Log(diff)
	}
}

func TestParseJUnit_Errors(t *testing.T) {
	_, err := ParseJUnit(strings.NewReader(`<coverage/>`))
	assert.EqualError(t, err, "junit: unexpected root element <coverage>")

	_, err = ParseJUnit(strings.NewReader(`not xml`))
	assert.Error(t, err)
}

func TestParseCobertura(t *testing.T) {
	const doc = `<?xml version="1.0" ?>
<coverage version="7.2.5" timestamp="1700000000" lines-valid="200" lines-covered="150" line-rate="0.75" branches-covered="10" branches-valid="40" branch-rate="0.25" complexity="0">
  <packages>
    <package name="azure.storage.blob" line-rate="0.8"/>
    <package name="azure.storage.blob.aio" line-rate="0.7"/>
  </packages>
</coverage>`
	got, err := ParseCobertura(strings.NewReader(doc))
	require.NoError(t, err)
	want := &Coverage{
		LineRate:        0.75,
		BranchRate:      0.25,
		LinesCovered:    150,
		LinesValid:      200,
		BranchesCovered: 10,
		BranchesValid:   40,
		Packages:        2,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Unexpected coverage")
		t.Log(diff)
	}

	_, err = ParseCobertura(strings.NewReader(`<testsuites/>`))
	assert.Error(t, err)

	_, err = ParseCoberturaFile(filepath.Join(t.TempDir(), "coverage.xml"))
	assert.True(t, os.IsNotExist(err))
}

func TestFind(t *testing.T) {
	root := t.TempDir()
	files := []string{
		"test-results.xml",
		"sdk/storage/azure-storage-blob/test-junit-whl.xml",
		"sdk/storage/azure-storage-blob/coverage.xml",
		"sdk/storage/azure-storage-blob/results.xml",
		".git/test.xml",
		"build/test-ignored.xml",
	}
	for _, name := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, nil, 0o600))
	}

	got, err := Find(root, Patterns("**/*test*.xml\n\n!build/**\n"))
	require.NoError(t, err)
	want := []string{
		filepath.Join(root, "sdk", "storage", "azure-storage-blob", "test-junit-whl.xml"),
		filepath.Join(root, "test-results.xml"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Unexpected matches")
		t.Log(diff)
	}

	_, err = Find(filepath.Join(root, "missing"), []string{"**"})
	assert.Error(t, err)
}

func TestFind_RelativeToRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "tmp", "src")
	path := filepath.Join(root, "sdk", "test-results.xml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	// directories above root take no part in matching.
	got, err := Find(root, []string{"**/*test*.xml", "!**/tmp/**"})
	require.NoError(t, err)
	assert.Equal(t, []string{path}, got)

	got, err = Find(root, []string{"**/src/**/*.xml"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSplitPattern(t *testing.T) {
	tests := []struct {
		pattern string
		root    string
		rest    string
	}{
		{"**/coverage.xml", ".", "**/coverage.xml"},
		{"coverage.xml", ".", "coverage.xml"},
		{"/src/sdk/**/coverage.xml", filepath.FromSlash("/src/sdk"), "**/coverage.xml"},
		{"/src/*.xml", filepath.FromSlash("/src"), "*.xml"},
		{"/*.xml", filepath.FromSlash("/"), "*.xml"},
		{"reports/cov*/coverage.xml", "reports", "cov*/coverage.xml"},
	}
	for _, test := range tests {
		root, rest := SplitPattern(test.pattern)
		if root != test.root || rest != test.rest {
			t.Errorf("Want %q split into %q and %q, got %q and %q",
				test.pattern, test.root, test.rest, root, rest)
		}
	}
}

func TestStore(t *testing.T) {
	defer func() {
		nowFn = time.Now
		uuidFn = uuid.New
	}()
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	nowFn = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	uuidFn = func() uuid.UUID { return id }

	store := NewStore(filepath.Join(t.TempDir(), "results"))
	run := &Run{
		Kind:  KindTests,
		Title: "sdk/foo Public job",
		Files: []string{"test-results.xml"},
		Tests: &Summary{Total: 1, Passed: 1},
	}
	path, err := store.Save(run)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(store.Dir(), "tests-"+id.String()+".json"), path)
	assert.Equal(t, id, run.ID)

	runs, err := store.List()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	if diff := cmp.Diff(run, runs[0]); diff != "" {
		t.Errorf("Unexpected stored run")
		t.Log(diff)
	}
}
