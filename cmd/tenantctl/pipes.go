package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tenancy/backend/internal/application/pipeline"
)

func newPipesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pipes",
		Short: "List the configuration pipes available to tenancy.pipes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			for _, name := range pipeline.DefaultRegistry().Names() {
				if _, err := fmt.Fprintln(out, name); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
