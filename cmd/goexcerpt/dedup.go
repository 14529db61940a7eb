package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperifyio/goexcerpt/internal/app"
	"github.com/hyperifyio/goexcerpt/internal/dedup"
	"github.com/hyperifyio/goexcerpt/internal/search"
)

func newDedupCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dedup",
		Short: "Inspect or seed the set of already processed sources",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print every remembered source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := app.New(cmd.Context(), o.cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			for _, id := range dedup.Sorted(a.Dedup(cmd.Context())) {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "add [url...]",
		Short: "Mark sources as processed so runs skip them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(cmd.Context(), o.cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			store := a.Dedup(cmd.Context())
			for _, raw := range args {
				id, ok := search.Normalize(raw)
				if !ok {
					return fmt.Errorf("not an http(s) URL: %q", raw)
				}
				if err := store.Add(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	})
	return cmd
}
