package commands

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/taxledger/internal/accounts"
	"github.com/cleared-dev/taxledger/internal/model"
)

func newAccountsCommand(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Chart of accounts",
	}
	cmd.AddCommand(newAccountsListCommand(g))
	return cmd
}

func newAccountsListCommand(g *globalOptions) *cobra.Command {
	var category string
	var activeOnly, asCSV bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the company's accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := g.open()
			if err != nil {
				return err
			}
			defer p.Close()

			all, err := p.core.Accounts(cmd.Context(), p.company())
			if err != nil {
				return err
			}
			svc := accounts.NewService(all)
			chart := svc.All()
			switch {
			case category != "":
				chart = svc.ByCategory(model.Category(strings.ToLower(category)))
			case activeOnly:
				chart = svc.Active()
			}

			if asCSV {
				return accounts.WriteAccounts(cmd.OutOrStdout(), chart)
			}
			rows := make([][]string, 0, len(chart))
			for _, a := range chart {
				rows = append(rows, []string{a.Code, a.Name, string(a.Category), strconv.FormatBool(a.IsActive)})
			}
			printTable(cmd.OutOrStdout(), []string{"CODE", "NAME", "CATEGORY", "ACTIVE"}, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "only accounts of this category (asset, liability, equity, revenue, expense)")
	cmd.Flags().BoolVar(&activeOnly, "active", false, "only active accounts")
	cmd.Flags().BoolVar(&asCSV, "csv", false, "write CSV instead of a table")

	return cmd
}
