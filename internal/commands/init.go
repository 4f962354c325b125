package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/taxledger/internal/accounts"
	"github.com/cleared-dev/taxledger/internal/classifier"
	"github.com/cleared-dev/taxledger/internal/config"
	"github.com/cleared-dev/taxledger/internal/core"
	"github.com/cleared-dev/taxledger/internal/id"
	"github.com/cleared-dev/taxledger/internal/model"
)

// chartFile is where init exports the seeded chart of accounts.
var chartFile = filepath.Join("accounts", "chart-of-accounts.csv")

type initOptions struct {
	name         string
	taxID        string
	companyID    string
	branchCode   string
	businessType string
	chartPath    string
}

func newInitCommand() *cobra.Command {
	var opts initOptions

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new taxledger project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return runInit(cmd.Context(), cmd.OutOrStdout(), absDir, opts)
		},
	}

	cmd.Flags().StringVar(&opts.name, "name", "", "company name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&opts.taxID, "tax-id", "", "8-digit uniform business number (required)")
	_ = cmd.MarkFlagRequired("tax-id")
	cmd.Flags().StringVar(&opts.companyID, "company-id", "", "ledger company id (default: the tax id)")
	cmd.Flags().StringVar(&opts.branchCode, "branch-code", "0", "tax registration branch code")
	cmd.Flags().StringVar(&opts.businessType, "business-type", "", "default chart variant: trading, services or empty")
	cmd.Flags().StringVar(&opts.chartPath, "chart", "", "seed the chart of accounts from this CSV instead")

	return cmd
}

func runInit(ctx context.Context, out io.Writer, dir string, opts initOptions) error {
	if !id.ValidTaxID(opts.taxID) {
		return fmt.Errorf("--tax-id: %q is not an 8-digit tax id", opts.taxID)
	}
	cfgPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("%s already exists", cfgPath)
	}

	var chart []model.Account
	if opts.chartPath != "" {
		var err error
		if chart, err = readChart(opts.chartPath); err != nil {
			return err
		}
	} else {
		chart = accounts.DefaultChart(opts.businessType)
	}

	cfg := config.Default(opts.name, opts.taxID)
	cfg.Company.BranchCode = opts.branchCode
	cfg.Company.BusinessType = opts.businessType
	if opts.companyID != "" {
		cfg.Company.ID = opts.companyID
	}

	// Create directory structure.
	dirs := []string{
		"accounts",
		cfg.Import.Dir,
		filepath.Join(cfg.Import.Dir, "processed"),
		cfg.Export.Dir,
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := classifier.SaveRules(config.Resolve(dir, cfg.Classifier.RulesPath), classifier.DefaultRuleSet()); err != nil {
		return fmt.Errorf("writing classifier rules: %w", err)
	}

	c, err := core.Open(dir, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer c.Close()

	seeded, err := c.SeedChart(ctx, cfg.Company.ID, chart)
	if err != nil {
		return err
	}
	if err := writeChart(filepath.Join(dir, chartFile), seeded); err != nil {
		return err
	}

	gitignore := "ledger.db\n.env\n" + cfg.Export.Dir + "/\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, cfg.Import.Dir, ".gitkeep"), []byte{}, 0o644); err != nil {
		return fmt.Errorf("writing .gitkeep: %w", err)
	}

	fmt.Fprintf(out, "Initialized taxledger project for %s (%s) at %s with %d accounts\n",
		cfg.Company.Name, cfg.Company.TaxID, dir, len(seeded))
	return nil
}

func readChart(path string) ([]model.Account, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening chart: %w", err)
	}
	defer f.Close()

	chart, err := accounts.ReadAccounts(f)
	if err != nil {
		return nil, err
	}
	if len(chart) == 0 {
		return nil, errors.New("chart has no accounts")
	}
	return chart, nil
}

func writeChart(path string, chart []model.Account) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing chart of accounts: %w", err)
	}
	if err := accounts.WriteAccounts(f, chart); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
