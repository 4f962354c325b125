package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/taxledger/internal/id"
	"github.com/cleared-dev/taxledger/internal/journal"
	"github.com/cleared-dev/taxledger/internal/model"
	"github.com/cleared-dev/taxledger/internal/store"
)

func newEntryCommand(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entry",
		Short: "Journal entries",
	}
	cmd.AddCommand(
		newEntryAddCommand(g),
		newEntryTransitionCommand(g, "post", "Post a draft entry", func(ctx context.Context, p *project, e *model.JournalEntry) (*model.JournalEntry, error) {
			return p.core.PostEntry(ctx, p.company(), e.ID)
		}),
		newEntryTransitionCommand(g, "void", "Void a posted entry with a reversing entry", func(ctx context.Context, p *project, e *model.JournalEntry) (*model.JournalEntry, error) {
			return p.core.VoidEntry(ctx, p.company(), e.ID)
		}),
		newEntryDeleteCommand(g),
		newEntryListCommand(g),
	)
	return cmd
}

func newEntryAddCommand(g *globalOptions) *cobra.Command {
	var dateStr, desc string
	var lines []string
	var post bool

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a draft journal entry",
		Long: `Record a draft journal entry. Each --line is CODE:DEBIT:CREDIT with an
optional :DESCRIPTION, e.g. --line 1111:50000:0 --line 3101:0:50000.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := parseDateOr("date", dateStr, today())
			if err != nil {
				return err
			}

			p, err := g.open()
			if err != nil {
				return err
			}
			defer p.Close()

			ctx := cmd.Context()
			cs, err := p.codes(ctx)
			if err != nil {
				return err
			}
			parsed := make([]model.Line, 0, len(lines))
			for i, raw := range lines {
				l, err := parseLine(raw, cs)
				if err != nil {
					return fmt.Errorf("--line %d: %w", i+1, err)
				}
				parsed = append(parsed, l)
			}

			e, err := p.core.CreateDraftEntry(ctx, p.company(), journal.DraftParams{
				Date:        date,
				Description: desc,
				Lines:       parsed,
			})
			if err != nil {
				return err
			}
			if post {
				if e, err = p.core.PostEntry(ctx, p.company(), e.ID); err != nil {
					return err
				}
			}
			printEntry(cmd.OutOrStdout(), e)
			return nil
		},
	}

	cmd.Flags().StringVar(&dateStr, "date", "", "entry date (default today)")
	cmd.Flags().StringVar(&desc, "desc", "", "entry description")
	cmd.Flags().StringArrayVar(&lines, "line", nil, "CODE:DEBIT:CREDIT[:DESCRIPTION], repeatable")
	cmd.Flags().BoolVar(&post, "post", false, "post the entry right away")

	return cmd
}

func parseLine(raw string, cs *codes) (model.Line, error) {
	parts := strings.SplitN(raw, ":", 4)
	if len(parts) < 3 {
		return model.Line{}, fmt.Errorf("%q is not CODE:DEBIT:CREDIT", raw)
	}
	acct, ok := cs.byCode[parts[0]]
	if !ok {
		return model.Line{}, fmt.Errorf("unknown account %q", parts[0])
	}
	debit, err := lineAmount(parts[1])
	if err != nil {
		return model.Line{}, err
	}
	credit, err := lineAmount(parts[2])
	if err != nil {
		return model.Line{}, err
	}
	l := model.Line{AccountID: acct.ID, Debit: debit, Credit: credit}
	if len(parts) == 4 {
		l.Description = parts[3]
	}
	return l, nil
}

func lineAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%q is not an amount", s)
	}
	return d, nil
}

type entryTransition func(ctx context.Context, p *project, e *model.JournalEntry) (*model.JournalEntry, error)

func newEntryTransitionCommand(g *globalOptions, use, short string, fn entryTransition) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <JV-number|id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := g.open()
			if err != nil {
				return err
			}
			defer p.Close()

			e, err := p.entry(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out, err := fn(cmd.Context(), p, e)
			if err != nil {
				return err
			}
			printEntry(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func newEntryDeleteCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <JV-number|id>",
		Short: "Discard a draft entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := g.open()
			if err != nil {
				return err
			}
			defer p.Close()

			e, err := p.entry(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := p.core.DeleteEntry(cmd.Context(), p.company(), e.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id.FormatJournalNumber(e.JournalNumber))
			return nil
		},
	}
}

func newEntryListCommand(g *globalOptions) *cobra.Command {
	var status, from, to string
	var asCSV bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List journal entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := store.EntryFilter{Status: model.EntryStatus(strings.ToUpper(status))}
			var err error
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

			ctx := cmd.Context()
			entries, err := p.core.Entries(ctx, p.company(), f)
			if err != nil {
				return err
			}
			cs, err := p.codes(ctx)
			if err != nil {
				return err
			}

			if asCSV {
				return journal.WriteEntries(cmd.OutOrStdout(), entries, cs.code)
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				debit, _ := e.Totals()
				rows = append(rows, []string{
					id.FormatJournalNumber(e.JournalNumber),
					formatDate(e.Date),
					string(e.Status),
					string(e.SourceType),
					e.Description,
					debit.StringFixed(2),
				})
			}
			printTable(cmd.OutOrStdout(), []string{"NUMBER", "DATE", "STATUS", "SOURCE", "DESCRIPTION", "AMOUNT"}, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "only entries in this status (DRAFT, POSTED, VOIDED)")
	cmd.Flags().StringVar(&from, "from", "", "earliest entry date")
	cmd.Flags().StringVar(&to, "to", "", "latest entry date")
	cmd.Flags().BoolVar(&asCSV, "csv", false, "write one CSV row per line instead of a table")

	return cmd
}

func printEntry(w io.Writer, e *model.JournalEntry) {
	debit, _ := e.Totals()
	fmt.Fprintf(w, "%s %s %s %s (%s)\n", id.FormatJournalNumber(e.JournalNumber), formatDate(e.Date), e.Status, debit.StringFixed(2), e.ID)
}
