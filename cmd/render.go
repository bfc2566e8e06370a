// Copyright 2024 Harness Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/drone/go-teststeps/pipeline"
)

func newRenderCommand(opts *options) *cobra.Command {
	var expand bool
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Print the job steps as yaml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := opts.load()
			if err != nil {
				return err
			}
			steps, err := j.steps(expand)
			if err != nil {
				return err
			}
			out, err := pipeline.MarshalSteps(steps)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().BoolVar(&expand, "expand", false, "expand template references into their steps")
	return cmd
}
