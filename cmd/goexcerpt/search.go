package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperifyio/goexcerpt/internal/app"
	"github.com/hyperifyio/goexcerpt/internal/search"
)

func newSearchCmd(o *options) *cobra.Command {
	var (
		wanted     int
		start, end string
	)
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Run one query through the provider chain and print candidate URLs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := search.Query{Text: strings.Join(args, " ")}
			var err error
			if q.Start, err = parseDay(start); err != nil {
				return err
			}
			if q.End, err = parseDay(end); err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), o.cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			ids := a.SearchOnce(cmd.Context(), q, wanted)
			if len(ids) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No results found.")
				return nil
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&wanted, "limit", "n", 10, "maximum number of results")
	cmd.Flags().StringVar(&start, "start", "", "earliest publication date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "latest publication date (YYYY-MM-DD)")
	return cmd
}

func parseDay(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return t, nil
}
