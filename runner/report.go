// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package runner

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/drone/go-teststeps/pipeline/condition"
)

// Outcome is the result of a step.
type Outcome string

// Step outcomes.
const (
	Succeeded           Outcome = "Succeeded"
	SucceededWithIssues Outcome = "SucceededWithIssues"
	Failed              Outcome = "Failed"
	Skipped             Outcome = "Skipped"
	Canceled            Outcome = "Canceled"
)

// StepReport provides the result of a step.
type StepReport struct {
	Name      string        `json:"name"`
	Title     string        `json:"title"`
	Condition string        `json:"condition,omitempty"`
	Outcome   Outcome       `json:"outcome"`
	ExitCode  int           `json:"exit_code,omitempty"`
	Error     string        `json:"error,omitempty"`
	Warnings  []string      `json:"warnings,omitempty"`
	Errors    []string      `json:"errors,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Report provides the result of a run.
type Report struct {
	ID       string           `json:"id"`
	Status   condition.Status `json:"status"`
	Steps    []*StepReport    `json:"steps"`
	Started  time.Time        `json:"started"`
	Finished time.Time        `json:"finished"`
}

// Failed reports whether the job failed or was canceled.
func (r *Report) Failed() bool {
	return r.Status == condition.Failed || r.Status == condition.Canceled
}

// Step returns the report of the named step.
func (r *Report) Step(name string) *StepReport {
	for _, s := range r.Steps {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// WriteTo writes a summary table of the run.
func (r *Report) WriteTo(w io.Writer) (int64, error) {
	cw := &countWriter{w: w}
	tw := tabwriter.NewWriter(cw, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tOUTCOME\tDURATION")
	for _, s := range r.Steps {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Name, s.Outcome, s.Duration.Round(time.Millisecond))
	}
	if err := tw.Flush(); err != nil {
		return cw.n, err
	}
	_, err := fmt.Fprintf(cw, "\nJob %s in %s\n", r.Status, r.Finished.Sub(r.Started).Round(time.Millisecond))
	return cw.n, err
}

type countWriter struct {
	w io.Writer
	n int64
}

func (c *countWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
