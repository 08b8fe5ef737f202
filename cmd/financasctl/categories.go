package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"financas/internal/core"
)

// newCategoriesCmd lists the category catalog. It needs no data store.
func newCategoriesCmd() *cobra.Command {
	var (
		typ    string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List the transaction categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var t core.TransactionType
			if typ != "" {
				parsed, err := core.ParseTransactionType(typ)
				if err != nil {
					return err
				}
				t = parsed
			}
			categories := core.DefaultCatalog().List(t)

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(categories)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNome\tTipo\tCor")
			for _, c := range categories {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.ID, c.Name, c.Type, c.Color)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&typ, "type", "", "income or expense (default all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the categories as JSON")
	return cmd
}
