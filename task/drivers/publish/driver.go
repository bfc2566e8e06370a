// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package publish provides the drivers that publish test
// results and code coverage reports to the results store.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/drone/go-teststeps/results"
	"github.com/drone/go-teststeps/task"
	"github.com/drone/go-teststeps/task/logger"
)

// Task names handled by the drivers.
const (
	TestResultsName = "PublishTestResults@2"
	CoverageName    = "PublishCodeCoverageResults@1"
)

// TestResultsConfig provides the test results task inputs.
type TestResultsConfig struct {
	TestResultsFormat     string `json:"testResultsFormat"`
	TestResultsFiles      string `json:"testResultsFiles"`
	SearchFolder          string `json:"searchFolder"`
	MergeTestResults      string `json:"mergeTestResults"`
	FailTaskOnFailedTests string `json:"failTaskOnFailedTests"`
	TestRunTitle          string `json:"testRunTitle"`
}

// CoverageConfig provides the code coverage task inputs.
type CoverageConfig struct {
	CodeCoverageTool    string `json:"codeCoverageTool"`
	SummaryFileLocation string `json:"summaryFileLocation"`
	ReportDirectory     string `json:"reportDirectory"`
}

// NewTestResults returns the test results driver.
func NewTestResults(store *results.Store) task.Handler {
	return &testResults{store: store}
}

type testResults struct {
	store *results.Store
}

// Handle handles the task execution request.
func (d *testResults) Handle(ctx context.Context, req *task.Request) task.Response {
	log := logger.FromContext(ctx)

	conf := new(TestResultsConfig)
	if err := json.Unmarshal(req.Task.Data, conf); err != nil {
		return task.Error(err)
	}
	if format := conf.TestResultsFormat; format != "" && !strings.EqualFold(format, "JUnit") {
		return task.Errorf("unsupported test results format: %s", format)
	}

	root := conf.SearchFolder
	if root == "" {
		root = req.Task.Dir
	}
	patterns := results.Patterns(conf.TestResultsFiles)
	if len(patterns) == 0 {
		patterns = []string{"**/TEST-*.xml"}
	}

	files, err := results.Find(root, patterns)
	if err != nil {
		log.WithError(err).WithField("folder", root).Error("cannot search for test results")
		return task.Error(err)
	}
	if len(files) == 0 {
		fmt.Fprintf(req.Logger, "##vso[task.logissue type=warning]No test result files matching %s were found.\n",
			strings.Join(patterns, ", "))
		return task.Respond(nil)
	}

	summary := new(results.Summary)
	for _, file := range files {
		s, err := results.ParseJUnitFile(file)
		if err != nil {
			log.WithError(err).WithField("file", file).Error("cannot parse test results")
			return task.Error(err)
		}
		summary.Add(s)
	}

	run := &results.Run{
		Kind:  results.KindTests,
		Title: conf.TestRunTitle,
		Files: files,
		Tests: summary,
	}
	path, err := d.store.Save(run)
	if err != nil {
		return task.Error(err)
	}

	fmt.Fprintf(req.Logger, "Published test run %s: %d total, %d passed, %d failed, %d errors, %d skipped\n",
		run.ID, summary.Total, summary.Passed, summary.Failed, summary.Errors, summary.Skipped)
	log.WithField("run", run.ID).WithField("path", path).Debug("published test results")

	if task.Bool(conf.FailTaskOnFailedTests, false) && summary.Failures() > 0 {
		return task.Errorf("%d test(s) failed", summary.Failures())
	}
	return task.Respond(run)
}

// NewCoverage returns the code coverage driver.
func NewCoverage(store *results.Store) task.Handler {
	return &coverage{store: store}
}

type coverage struct {
	store *results.Store
}

// Handle handles the task execution request.
func (d *coverage) Handle(ctx context.Context, req *task.Request) task.Response {
	log := logger.FromContext(ctx)

	conf := new(CoverageConfig)
	if err := json.Unmarshal(req.Task.Data, conf); err != nil {
		return task.Error(err)
	}
	if tool := conf.CodeCoverageTool; tool != "" && !strings.EqualFold(tool, "Cobertura") {
		return task.Errorf("unsupported code coverage tool: %s", tool)
	}
	if conf.SummaryFileLocation == "" {
		return task.Errorf("input summaryFileLocation is required")
	}

	path, err := summaryFile(conf.SummaryFileLocation, req.Task.Dir)
	if err != nil {
		return task.Error(err)
	}
	cov, err := results.ParseCoberturaFile(path)
	if err != nil {
		log.WithError(err).WithField("file", path).Error("cannot read coverage summary")
		return task.Error(err)
	}

	run := &results.Run{
		Kind:     results.KindCoverage,
		Files:    []string{path},
		Coverage: cov,
	}
	if _, err := d.store.Save(run); err != nil {
		return task.Error(err)
	}

	fmt.Fprintf(req.Logger, "Line coverage: %.2f%% (%d/%d)\n", cov.LineRate*100, cov.LinesCovered, cov.LinesValid)
	fmt.Fprintf(req.Logger, "Branch coverage: %.2f%% (%d/%d)\n", cov.BranchRate*100, cov.BranchesCovered, cov.BranchesValid)
	return task.Respond(run)
}

// summaryFile resolves the summary file location relative to
// dir. A location containing a glob resolves to the first
// match.
func summaryFile(location, dir string) (string, error) {
	if !filepath.IsAbs(location) && dir != "" {
		location = filepath.Join(dir, location)
	}
	if !strings.ContainsAny(location, "*?[") {
		return location, nil
	}
	root, pattern := results.SplitPattern(location)
	files, err := results.Find(root, []string{pattern})
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", fmt.Errorf("no coverage summary file matches %s", location)
	}
	return files[0], nil
}
