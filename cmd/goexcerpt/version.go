package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperifyio/goexcerpt/internal/app"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), "goexcerpt "+app.VersionString())
			return nil
		},
	}
}
