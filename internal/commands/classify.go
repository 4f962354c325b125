package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/taxledger/internal/model"
)

func newClassifyCommand(g *globalOptions) *cobra.Command {
	var typ, counterparty string

	cmd := &cobra.Command{
		Use:   "classify <description>",
		Short: "Suggest an account for an invoice description",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseInvoiceType(typ)
			if err != nil {
				return err
			}
			p, err := g.open()
			if err != nil {
				return err
			}
			defer p.Close()

			s, ok, err := p.core.Classify(cmd.Context(), p.company(), t, strings.Join(args, " "), counterparty)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "No suggestion: choose an account by hand")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (confidence %s)\n%s\n", s.AccountCode, s.Confidence.StringFixed(2), s.Reasoning)
			return nil
		},
	}

	cmd.Flags().StringVar(&typ, "type", string(model.InvoiceInput), "invoice type: INPUT or OUTPUT")
	cmd.Flags().StringVar(&counterparty, "counterparty", "", "counterparty name")

	return cmd
}
