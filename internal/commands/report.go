package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/taxledger/internal/report"
)

func newReportCommand(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Financial reports",
	}
	cmd.AddCommand(
		newTrialBalanceCommand(g),
		newIncomeCommand(g),
		newBalanceSheetCommand(g),
	)
	return cmd
}

func newTrialBalanceCommand(g *globalOptions) *cobra.Command {
	var asOf string

	cmd := &cobra.Command{
		Use:   "trial-balance",
		Short: "Debit and credit totals per account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := parseDateOr("as-of", asOf, today())
			if err != nil {
				return err
			}

			p, err := g.open()
			if err != nil {
				return err
			}
			defer p.Close()

			tb, err := p.core.TrialBalance(cmd.Context(), p.company(), date)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(tb.Rows)+1)
			for _, r := range tb.Rows {
				rows = append(rows, []string{r.Code, r.Name, r.Debit.StringFixed(2), r.Credit.StringFixed(2)})
			}
			rows = append(rows, []string{"", "Total", tb.TotalDebit.StringFixed(2), tb.TotalCredit.StringFixed(2)})

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Trial balance as of %s\n", formatDate(tb.AsOf))
			printTable(w, []string{"CODE", "ACCOUNT", "DEBIT", "CREDIT"}, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&asOf, "as-of", "", "report date (default today)")
	return cmd
}

func newIncomeCommand(g *globalOptions) *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "income",
		Short: "Income statement",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fromDate, err := parseDateOr("from", from, time.Time{})
			if err != nil {
				return err
			}
			toDate, err := parseDateOr("to", to, today())
			if err != nil {
				return err
			}

			p, err := g.open()
			if err != nil {
				return err
			}
			defer p.Close()

			is, err := p.core.IncomeStatement(cmd.Context(), p.company(), fromDate, toDate)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if is.From.IsZero() {
				fmt.Fprintf(w, "Income statement through %s\n", formatDate(is.To))
			} else {
				fmt.Fprintf(w, "Income statement %s to %s\n", formatDate(is.From), formatDate(is.To))
			}
			rows := section(nil, "Revenue", is.Revenue, is.TotalRevenue)
			rows = section(rows, "Expenses", is.Expenses, is.TotalExpenses)
			rows = append(rows, []string{"", "Net income", is.NetIncome.StringFixed(2)})
			printTable(w, []string{"CODE", "ACCOUNT", "AMOUNT"}, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "first day of the period (default: all history)")
	cmd.Flags().StringVar(&to, "to", "", "last day of the period (default today)")
	return cmd
}

func newBalanceSheetCommand(g *globalOptions) *cobra.Command {
	var asOf string

	cmd := &cobra.Command{
		Use:   "balance-sheet",
		Short: "Assets, liabilities and equity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := parseDateOr("as-of", asOf, today())
			if err != nil {
				return err
			}

			p, err := g.open()
			if err != nil {
				return err
			}
			defer p.Close()

			bs, err := p.core.BalanceSheet(cmd.Context(), p.company(), date)
			if err != nil {
				return err
			}
			printBalanceSheet(cmd.OutOrStdout(), bs)
			return nil
		},
	}

	cmd.Flags().StringVar(&asOf, "as-of", "", "report date (default today)")
	return cmd
}

func section(rows [][]string, title string, items []report.AccountAmount, total decimal.Decimal) [][]string {
	for _, a := range items {
		rows = append(rows, []string{a.Code, a.Name, a.Amount.StringFixed(2)})
	}
	return append(rows, []string{"", "Total " + title, total.StringFixed(2)})
}

func printBalanceSheet(w io.Writer, bs *report.BalanceSheet) {
	fmt.Fprintf(w, "Balance sheet as of %s\n", formatDate(bs.AsOf))
	rows := section(nil, "assets", bs.Assets, bs.TotalAssets)
	rows = section(rows, "liabilities", bs.Liabilities, bs.TotalLiabilities)
	rows = section(rows, "equity", bs.Equity, bs.TotalEquity)
	rows = append(rows, []string{"", "Current earnings", bs.CurrentEarnings.StringFixed(2)})
	printTable(w, []string{"CODE", "ACCOUNT", "AMOUNT"}, rows)
}
