package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperifyio/goexcerpt/internal/app"
)

func newRunCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Process every unsatisfied job in the job file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.ValidateConfig(o.cfg); err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), o.cfg)
			if err != nil {
				return fmt.Errorf("init app: %w", err)
			}
			defer a.Close()
			a.SetOutput(cmd.OutOrStdout())
			sums, err := a.Run(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range sums {
				fmt.Fprintln(cmd.OutOrStdout(), s.String())
			}
			return nil
		},
	}
}
