// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package results parses and records test result and code
// coverage files.
package results

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
)

// Summary provides aggregate test results.
type Summary struct {
	Total    int     `json:"total"`
	Passed   int     `json:"passed"`
	Failed   int     `json:"failed"`
	Errors   int     `json:"errors"`
	Skipped  int     `json:"skipped"`
	Duration float64 `json:"duration"`
}

// Add adds the results of o to s.
func (s *Summary) Add(o *Summary) {
	s.Total += o.Total
	s.Passed += o.Passed
	s.Failed += o.Failed
	s.Errors += o.Errors
	s.Skipped += o.Skipped
	s.Duration += o.Duration
}

// Failures returns the number of failed and errored tests.
func (s *Summary) Failures() int {
	return s.Failed + s.Errors
}

type junitMessage struct {
	Message string `xml:"message,attr"`
}

type junitCase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *junitMessage `xml:"failure"`
	Error     *junitMessage `xml:"error"`
	Skipped   *junitMessage `xml:"skipped"`
}

type junitSuite struct {
	XMLName  xml.Name
	Name     string       `xml:"name,attr"`
	Tests    int          `xml:"tests,attr"`
	Failures int          `xml:"failures,attr"`
	Errors   int          `xml:"errors,attr"`
	Skipped  int          `xml:"skipped,attr"`
	Time     float64      `xml:"time,attr"`
	Cases    []junitCase  `xml:"testcase"`
	Suites   []junitSuite `xml:"testsuite"`
}

// ParseJUnit parses a JUnit xml document with a testsuites
// or testsuite root element.
func ParseJUnit(r io.Reader) (*Summary, error) {
	root := new(junitSuite)
	if err := xml.NewDecoder(r).Decode(root); err != nil {
		return nil, err
	}
	switch root.XMLName.Local {
	case "testsuites":
		out := new(Summary)
		for i := range root.Suites {
			out.Add(summarize(&root.Suites[i]))
		}
		return out, nil
	case "testsuite":
		return summarize(root), nil
	}
	return nil, fmt.Errorf("junit: unexpected root element <%s>", root.XMLName.Local)
}

// ParseJUnitFile parses the JUnit file at path.
func ParseJUnitFile(path string) (*Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseJUnit(f)
}

// summarize counts the test cases of the suite and its
// nested suites. A suite without test cases is counted
// from its attributes.
func summarize(suite *junitSuite) *Summary {
	out := new(Summary)
	for i := range suite.Suites {
		out.Add(summarize(&suite.Suites[i]))
	}
	if len(suite.Cases) == 0 {
		if len(suite.Suites) == 0 {
			out.Total = suite.Tests
			out.Failed = suite.Failures
			out.Errors = suite.Errors
			out.Skipped = suite.Skipped
			out.Passed = max(0, suite.Tests-suite.Failures-suite.Errors-suite.Skipped)
			out.Duration = suite.Time
		}
		return out
	}
	for _, c := range suite.Cases {
		out.Total++
		out.Duration += c.Time
		switch {
		case c.Failure != nil:
			out.Failed++
		case c.Error != nil:
			out.Errors++
		case c.Skipped != nil:
			out.Skipped++
		default:
			out.Passed++
		}
	}
	return out
}
