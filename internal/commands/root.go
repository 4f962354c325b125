package commands

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/taxledger/internal/buildinfo"
)

// globalOptions holds the flags every command shares.
type globalOptions struct {
	repo  string
	debug bool
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:     "taxledger",
		Short:   "Double-entry ledger with Taiwan VAT filing import and export",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if opts.debug {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: level,
			}))
			slog.SetDefault(logger)
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.repo, "repo", ".", "project directory")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(
		newInitCommand(),
		newAccountsCommand(opts),
		newClassifyCommand(opts),
		newEntryCommand(opts),
		newInvoiceCommand(opts),
		newReportCommand(opts),
		newFilingCommand(opts),
		newAuditCommand(opts),
	)

	return rootCmd
}
