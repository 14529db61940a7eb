package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperifyio/goexcerpt/internal/app"
	"github.com/hyperifyio/goexcerpt/internal/oracle"
)

func newFetchCmd(o *options) *cobra.Command {
	var maxChars int
	cmd := &cobra.Command{
		Use:   "fetch [url]",
		Short: "Fetch one URL and print the normalized text the model would see",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(cmd.Context(), o.cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			text, err := a.FetchOnce(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), oracle.Truncate(text, maxChars))
			return nil
		},
	}
	cmd.Flags().IntVar(&maxChars, "max", 0, "truncate output to this many characters (0 prints everything)")
	return cmd
}
