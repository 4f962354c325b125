package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/taxledger/internal/invoice"
	"github.com/cleared-dev/taxledger/internal/model"
	"github.com/cleared-dev/taxledger/internal/store"
)

func newInvoiceCommand(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoice",
		Short: "Invoices",
	}
	cmd.AddCommand(
		newInvoiceAddCommand(g),
		newInvoiceTransitionCommand(g, "verify", "Mark a draft invoice as verified", func(ctx context.Context, p *project, inv *model.Invoice) (*model.Invoice, error) {
			return p.core.VerifyInvoice(ctx, p.company(), inv.ID)
		}),
		newInvoicePostCommand(g),
		newInvoiceTransitionCommand(g, "void", "Void a posted invoice and reverse its entry", func(ctx context.Context, p *project, inv *model.Invoice) (*model.Invoice, error) {
			return p.core.VoidInvoice(ctx, p.company(), inv.ID)
		}),
		newInvoicePayCommand(g),
		newInvoiceListCommand(g),
	)
	return cmd
}

func newInvoiceAddCommand(g *globalOptions) *cobra.Command {
	var typ, number, dateStr, dueStr, untaxed, tax, total, party, partyTaxID, desc, account string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a draft invoice",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			params := invoice.CreateParams{
				Number:            number,
				CounterpartyName:  party,
				CounterpartyTaxID: partyTaxID,
				Description:       desc,
				AccountCode:       account,
			}
			var err error
			if params.Type, err = parseInvoiceType(typ); err != nil {
				return err
			}
			if params.Date, err = parseDateOr("date", dateStr, today()); err != nil {
				return err
			}
			if params.DueDate, err = parseDateOr("due", dueStr, params.DueDate); err != nil {
				return err
			}
			if params.UntaxedAmount, err = parseAmount("untaxed", untaxed); err != nil {
				return err
			}
			if params.TaxAmount, err = parseAmount("tax", tax); err != nil {
				return err
			}
			params.TotalAmount = params.UntaxedAmount.Add(params.TaxAmount)
			if total != "" {
				if params.TotalAmount, err = parseAmount("total", total); err != nil {
					return err
				}
			}

			p, err := g.open()
			if err != nil {
				return err
			}
			defer p.Close()

			inv, err := p.core.CreateInvoice(cmd.Context(), p.company(), params)
			if err != nil {
				return err
			}
			printInvoice(cmd.OutOrStdout(), inv)
			return nil
		},
	}

	cmd.Flags().StringVar(&typ, "type", "", "INPUT (purchase) or OUTPUT (sale)")
	_ = cmd.MarkFlagRequired("type")
	cmd.Flags().StringVar(&number, "number", "", "invoice number, e.g. AB12345678")
	_ = cmd.MarkFlagRequired("number")
	cmd.Flags().StringVar(&dateStr, "date", "", "invoice date (default today)")
	cmd.Flags().StringVar(&dueStr, "due", "", "payment due date")
	cmd.Flags().StringVar(&untaxed, "untaxed", "0", "untaxed amount")
	cmd.Flags().StringVar(&tax, "tax", "0", "tax amount")
	cmd.Flags().StringVar(&total, "total", "", "total amount (default untaxed + tax)")
	cmd.Flags().StringVar(&party, "counterparty", "", "counterparty name")
	cmd.Flags().StringVar(&partyTaxID, "counterparty-tax-id", "", "counterparty's 8-digit tax id")
	cmd.Flags().StringVar(&desc, "desc", "", "description")
	cmd.Flags().StringVar(&account, "account", "", "expense or revenue account code (default: classifier suggestion)")

	return cmd
}

type invoiceTransition func(ctx context.Context, p *project, inv *model.Invoice) (*model.Invoice, error)

func newInvoiceTransitionCommand(g *globalOptions, use, short string, fn invoiceTransition) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <number|id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := g.open()
			if err != nil {
				return err
			}
			defer p.Close()

			inv, err := p.invoice(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out, err := fn(cmd.Context(), p, inv)
			if err != nil {
				return err
			}
			printInvoice(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func newInvoicePostCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "post <number|id>",
		Short: "Post a verified invoice to the journal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := g.open()
			if err != nil {
				return err
			}
			defer p.Close()

			inv, err := p.invoice(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			res, err := p.core.PostInvoice(cmd.Context(), p.company(), inv.ID)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			printInvoice(w, res.Invoice)
			if s := res.Suggestion; s != nil {
				fmt.Fprintf(w, "  account %s suggested (confidence %s): %s\n", s.AccountCode, s.Confidence.StringFixed(2), s.Reasoning)
			}
			printEntry(w, res.Entry)
			return nil
		},
	}
}

func newInvoicePayCommand(g *globalOptions) *cobra.Command {
	var amountStr, dateStr string

	cmd := &cobra.Command{
		Use:   "pay <number|id>",
		Short: "Record a payment against an invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount("amount", amountStr)
			if err != nil {
				return err
			}
			paidOn, err := parseDateOr("date", dateStr, today())
			if err != nil {
				return err
			}

			p, err := g.open()
			if err != nil {
				return err
			}
			defer p.Close()

			inv, err := p.invoice(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			inv, err = p.core.RecordPayment(cmd.Context(), p.company(), inv.ID, amount, paidOn)
			if err != nil {
				return err
			}
			printInvoice(cmd.OutOrStdout(), inv)
			return nil
		},
	}

	cmd.Flags().StringVar(&amountStr, "amount", "", "amount paid")
	_ = cmd.MarkFlagRequired("amount")
	cmd.Flags().StringVar(&dateStr, "date", "", "payment date (default today)")

	return cmd
}

func newInvoiceListCommand(g *globalOptions) *cobra.Command {
	var typ, status, from, to string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List invoices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := store.InvoiceFilter{Status: model.InvoiceStatus(strings.ToUpper(status))}
			var err error
			if typ != "" {
				if f.Type, err = parseInvoiceType(typ); err != nil {
					return err
				}
			}
			if f.From, err = parseDateOr("from", from, f.From); err != nil {
				return err
			}
			if f.To, err = parseDateOr("to", to, f.To); err != nil {
				return err
			}

			p, err := g.open()
			if err != nil {
				return err
			}
			defer p.Close()

			invs, err := p.core.Invoices(cmd.Context(), p.company(), f)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(invs))
			for _, inv := range invs {
				rows = append(rows, []string{
					inv.Number,
					string(inv.Type),
					formatDate(inv.Date),
					inv.CounterpartyName,
					inv.TotalAmount.StringFixed(0),
					string(inv.Status),
					string(inv.PaymentStatus),
				})
			}
			printTable(cmd.OutOrStdout(), []string{"NUMBER", "TYPE", "DATE", "COUNTERPARTY", "TOTAL", "STATUS", "PAYMENT"}, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&typ, "type", "", "only INPUT or OUTPUT invoices")
	cmd.Flags().StringVar(&status, "status", "", "only invoices in this status")
	cmd.Flags().StringVar(&from, "from", "", "earliest invoice date")
	cmd.Flags().StringVar(&to, "to", "", "latest invoice date")

	return cmd
}

func printInvoice(w io.Writer, inv *model.Invoice) {
	fmt.Fprintf(w, "%s %s %s %s %s %s (%s)\n", inv.Number, inv.Type, formatDate(inv.Date),
		inv.TotalAmount.StringFixed(0), inv.Status, inv.PaymentStatus, inv.ID)
}
