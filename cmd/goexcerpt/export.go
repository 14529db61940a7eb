package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hyperifyio/goexcerpt/internal/app"
)

func newExportCmd(o *options) *cobra.Command {
	var query, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write stored results as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := app.New(cmd.Context(), o.cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			var w io.Writer = cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return a.Export(cmd.Context(), w, query)
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "only rows for this job query")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}
