package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/estate-search/internal/app"
	"github.com/mohammed-shakir/estate-search/internal/core/model"
)

func (c *cli) filtersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filters",
		Short: "Show, change or reset the persisted filter state of a view",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the stored filter state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				return c.printJSON(c.filterStore(a).Load(cmd.Context()))
			})
		},
	}

	var replace bool
	set := &cobra.Command{
		Use:   "set JSON",
		Short: "Merge the given fields into the stored state",
		Example: `  estatectl filters set '{"rooms":"4+","districts":["Арабкир"]}'
  estatectl filters set --replace '{"selectedType":"house"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				fs := c.filterStore(a)
				st := model.DefaultFilterState()
				if !replace {
					st = fs.Load(cmd.Context())
				}
				if err := st.Merge([]byte(args[0])); err != nil {
					return err
				}
				fs.Save(cmd.Context(), st)
				return c.printJSON(fs.Current())
			})
		},
	}
	set.Flags().BoolVar(&replace, "replace", false, "start from the defaults instead of the stored state")

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Restore the defaults and delete the stored state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				return c.printJSON(c.filterStore(a).Reset(cmd.Context()))
			})
		},
	}

	cmd.AddCommand(show, set, reset)
	return cmd
}

func (c *cli) printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(c.out, string(b))
	return err
}
