package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"financas/internal/auth"
	"financas/internal/core"
	"financas/internal/services"
	"financas/internal/store"
)

func newAnalyzeCmd(v *viper.Viper) *cobra.Command {
	var (
		user        string
		month, year int
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Print the monthly analysis of a user",
		Long: `Print income, expenses, balance and the expense breakdown by category
for one month. The month defaults to the current one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			app, err := openApp(ctx, cmd, v)
			if err != nil {
				return err
			}
			defer app.Close()

			u, err := findUser(ctx, app.Backend.Backend, user)
			if err != nil {
				return err
			}

			p := app.Transactions.CurrentPeriod()
			if month != 0 {
				p.Month = month
			}
			if year != 0 {
				p.Year = year
			}

			report, err := app.Transactions.MonthlyAnalysis(ctx, u.ID, p)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			return printReport(cmd.OutOrStdout(), report)
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user id or email")
	cmd.Flags().IntVar(&month, "month", 0, "month 1-12 (default current)")
	cmd.Flags().IntVar(&year, "year", 0, "year (default current)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// findUser resolves an email or a user id.
func findUser(ctx context.Context, users store.UserStore, ref string) (core.User, error) {
	ref = strings.TrimSpace(ref)
	if !strings.Contains(ref, "@") {
		return users.UserByID(ctx, ref)
	}
	email, err := auth.NormalizeEmail(ref)
	if err != nil {
		return core.User{}, err
	}
	return users.UserByEmail(ctx, email)
}

func printReport(w io.Writer, r services.Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "Período:\t%s %d\n", r.Period().Name(), r.Year)
	fmt.Fprintf(tw, "Receitas:\t%s\n", core.FormatBRL(r.TotalIncome))
	fmt.Fprintf(tw, "Despesas:\t%s\n", core.FormatBRL(r.TotalExpense))
	fmt.Fprintf(tw, "Saldo:\t%s\n", core.FormatBRL(r.Balance))
	if r.Insights.SavingsMessage != "" {
		fmt.Fprintf(tw, "Economia:\t%s (%s)\n", percent(r.Insights.SavingsPercentage), r.Insights.SavingsMessage)
	}

	if len(r.CategoryBreakdown) == 0 {
		fmt.Fprintln(tw, "\nNenhuma despesa neste período.")
		return tw.Flush()
	}

	fmt.Fprintln(tw, "\nCategoria\tValor\t%\tTransações")
	for _, e := range r.CategoryBreakdown {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", e.Name, core.FormatBRL(e.Amount), percent(e.Percentage), e.TransactionCount)
	}
	return tw.Flush()
}

func percent(f float64) string {
	return strings.Replace(strconv.FormatFloat(f, 'f', 1, 64), ".", ",", 1) + "%"
}
