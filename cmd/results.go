// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/drone/go-teststeps/results"
)

func newResultsCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "results",
		Short: "List the published test runs and coverage reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := opts.load()
			if err != nil {
				return err
			}
			runs, err := results.NewStore(j.conf.Results.Dir).List()
			if err != nil {
				return err
			}
			return writeRuns(cmd.OutOrStdout(), runs)
		},
	}
}

func writeRuns(w io.Writer, runs []*results.Run) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tTITLE\tSUMMARY")
	for _, run := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", run.ID, run.Kind, run.Title, summary(run))
	}
	return tw.Flush()
}

func summary(run *results.Run) string {
	switch {
	case run.Tests != nil:
		s := run.Tests
		return fmt.Sprintf("%d total, %d passed, %d failed, %d errors, %d skipped",
			s.Total, s.Passed, s.Failed, s.Errors, s.Skipped)
	case run.Coverage != nil:
		return fmt.Sprintf("line %.2f%%, branch %.2f%%", run.Coverage.LineRate*100, run.Coverage.BranchRate*100)
	}
	return ""
}
