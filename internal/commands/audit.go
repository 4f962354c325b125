package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/taxledger/internal/auditlog"
)

func newAuditCommand(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Audit trail",
	}
	cmd.AddCommand(newAuditExportCommand(g))
	return cmd
}

func newAuditExportCommand(g *globalOptions) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the company's audit trail as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := g.open()
			if err != nil {
				return err
			}
			defer p.Close()

			entries, err := p.core.AuditLog(cmd.Context(), p.company())
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("creating %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}
			return auditlog.Write(w, entries)
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "output file (default stdout)")
	return cmd
}
