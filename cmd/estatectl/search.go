package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/estate-search/internal/app"
	"github.com/mohammed-shakir/estate-search/internal/core/model"
	"github.com/mohammed-shakir/estate-search/internal/filter"
	"github.com/mohammed-shakir/estate-search/internal/records"
)

// listing reads records from file when given, otherwise from the store.
// Only active records are returned.
func listing(ctx context.Context, a *app.App, file string) ([]model.Record, error) {
	var l records.Listing
	if file != "" {
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		if l, err = records.ParseListing(ctx, b, a.Logger); err != nil {
			return nil, err
		}
	} else {
		var err error
		if l, err = a.Records.List(ctx); err != nil {
			return nil, fmt.Errorf("fetch listing: %w", err)
		}
	}
	return records.Active(l.Properties), nil
}

func (c *cli) searchCmd() *cobra.Command {
	var (
		sort   string
		file   string
		asJSON bool
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Evaluate the stored filters of a view against the listing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return c.withApp(ctx, func(a *app.App) error {
				rs, err := listing(ctx, a, file)
				if err != nil {
					return err
				}
				st := c.filterStore(a).Load(ctx)
				out := filter.Evaluate(rs, st, filter.ParseOrder(sort))
				if limit > 0 && len(out) > limit {
					out = out[:limit]
				}
				if asJSON {
					return c.printJSON(map[string]any{"properties": out, "count": len(out)})
				}
				return c.printRecords(out, len(rs))
			})
		},
	}
	cmd.Flags().StringVar(&sort, "sort", string(filter.Newest), "newest, oldest, price_asc or price_desc")
	cmd.Flags().StringVar(&file, "file", "", "read records from a JSON file instead of the record store")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	cmd.Flags().IntVar(&limit, "limit", 0, "print at most this many records")
	return cmd
}

func (c *cli) explainCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Show how many records each active criterion lets through",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return c.withApp(ctx, func(a *app.App) error {
				rs, err := listing(ctx, a, file)
				if err != nil {
					return err
				}
				stats, all := filter.Explain(rs, c.filterStore(a).Load(ctx))

				tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "CRITERION\tVALUE\tPASSED")
				for _, s := range stats {
					fmt.Fprintf(tw, "%s\t%s\t%d/%d\n", s.Name, s.Value, s.Passed, len(rs))
				}
				fmt.Fprintf(tw, "all\t\t%d/%d\n", all, len(rs))
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "read records from a JSON file instead of the record store")
	return cmd
}

func (c *cli) printRecords(rs []model.Record, total int) error {
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tDEAL\tPRICE\tROOMS\tDISTRICT\tTITLE")
	for _, r := range rs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\t%s\n",
			r.ID, r.PropertyType, r.TransactionType, price(r), r.Rooms, r.District, r.Title)
	}
	fmt.Fprintf(tw, "\n%d of %d\n", len(rs), total)
	return tw.Flush()
}

func price(r model.Record) string {
	if math.IsNaN(r.Price) {
		return "?"
	}
	return strconv.FormatFloat(r.Price, 'f', -1, 64) + " " + string(r.Currency)
}
