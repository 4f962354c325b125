package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/taxledger/internal/apperr"
	"github.com/cleared-dev/taxledger/internal/config"
	"github.com/cleared-dev/taxledger/internal/filing"
	"github.com/cleared-dev/taxledger/internal/importer"
	"github.com/cleared-dev/taxledger/internal/normalize"
)

func newFilingCommand(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filing",
		Short: "Tax authority invoice files",
	}
	cmd.AddCommand(
		newFilingImportCommand(g),
		newFilingExportCommand(g),
	)
	return cmd
}

func newFilingImportCommand(g *globalOptions) *cobra.Command {
	var create bool

	cmd := &cobra.Command{
		Use:   "import [file...]",
		Short: "Parse authority invoice exports (CSV or XLSX)",
		Long: `Parse authority invoice exports. Without arguments every spreadsheet in
the project's import directory is read. With --create the valid rows are
recorded as draft invoices, and scanned files move to import/processed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := g.open()
			if err != nil {
				return err
			}
			defer p.Close()

			reg := importer.DefaultRegistry()
			importDir := config.Resolve(p.root, p.cfg.Import.Dir)
			scanned := len(args) == 0
			paths := args
			if scanned {
				files, err := importer.Scan(importDir, reg)
				if err != nil {
					return err
				}
				for _, f := range files {
					paths = append(paths, f.Path)
				}
			}
			w := cmd.OutOrStdout()
			if len(paths) == 0 {
				fmt.Fprintf(w, "Nothing to import in %s\n", importDir)
				return nil
			}

			var errs []error
			for _, path := range paths {
				if err := importFile(cmd, p, reg, path, create); err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", filepath.Base(path), err))
					continue
				}
				if scanned && create {
					if err := importer.MarkProcessed(importDir, filepath.Base(path)); err != nil {
						errs = append(errs, err)
					}
				}
			}
			return errors.Join(errs...)
		},
	}

	cmd.Flags().BoolVar(&create, "create", false, "record valid rows as draft invoices")
	return cmd
}

// importFile parses every sheet of one file. It fails when no sheet could be
// recognized.
func importFile(cmd *cobra.Command, p *project, reg *importer.Registry, path string, create bool) error {
	sheets, err := reg.ReadFile(path)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	var unrecognized error
	recognized := 0
	for _, sheet := range sheets {
		res, err := p.core.ImportTaxFilingRows(cmd.Context(), p.company(), sheet)
		if errors.Is(err, apperr.ErrUnrecognizedSheet) {
			fmt.Fprintf(w, "%s [%s]: skipped: %v\n", filepath.Base(path), sheet.Name, err)
			unrecognized = err
			continue
		}
		if err != nil {
			return err
		}
		recognized++

		fmt.Fprintf(w, "%s [%s]: %s mode, %d rows parsed, %d skipped, %d problems\n",
			filepath.Base(path), sheet.Name, res.Mode, len(res.Data), res.Skipped, len(res.Errors))
		printRowErrors(w, res.Errors)

		if !create {
			continue
		}
		sum, err := p.core.CreateInvoicesFromRows(cmd.Context(), p.company(), res.Data)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  created %d draft invoices\n", len(sum.Created))
		printRowErrors(w, sum.Errors)
	}
	if recognized == 0 && unrecognized != nil {
		return unrecognized
	}
	return nil
}

func printRowErrors(w io.Writer, errs []importer.RowError) {
	for _, e := range errs {
		fmt.Fprintf(w, "  %s\n", e.Error())
	}
}

func newFilingExportCommand(g *globalOptions) *cobra.Command {
	var period, out string
	var startSeq int

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the period's posted invoices as an 81-byte record file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := g.open()
			if err != nil {
				return err
			}
			defer p.Close()

			if period == "" {
				period = normalize.ROCPeriod(today())
			}
			buf, err := p.core.ExportTaxFilingFile(cmd.Context(), p.company(), period, filing.Options{
				CompanyTaxID:  p.cfg.Company.TaxID,
				BranchCode:    p.cfg.Company.BranchCode,
				StartSequence: startSeq,
			})
			if err != nil {
				return err
			}

			if out == "" {
				out = filepath.Join(config.Resolve(p.root, p.cfg.Export.Dir), fmt.Sprintf("%s_%s.txt", p.cfg.Company.TaxID, period))
			}
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return fmt.Errorf("creating export dir: %w", err)
			}
			if err := os.WriteFile(out, buf, 0o644); err != nil {
				return fmt.Errorf("writing filing file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d records for period %s to %s\n", len(buf)/filing.RecordLen, period, out)
			return nil
		},
	}

	cmd.Flags().StringVar(&period, "period", "", "filing month as RRRMM, e.g. 11312 (default this month)")
	cmd.Flags().StringVar(&out, "out", "", "output file (default <export dir>/<tax id>_<period>.txt)")
	cmd.Flags().IntVar(&startSeq, "start-seq", 1, "sequence number of the first record")

	return cmd
}
