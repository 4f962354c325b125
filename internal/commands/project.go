package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/taxledger/internal/apperr"
	"github.com/cleared-dev/taxledger/internal/config"
	"github.com/cleared-dev/taxledger/internal/core"
	"github.com/cleared-dev/taxledger/internal/id"
	"github.com/cleared-dev/taxledger/internal/model"
	"github.com/cleared-dev/taxledger/internal/normalize"
	"github.com/cleared-dev/taxledger/internal/store"
)

// project is an opened taxledger project directory.
type project struct {
	root string
	cfg  *config.Config
	core *core.Core
}

func (o *globalOptions) open() (*project, error) {
	root, err := filepath.Abs(o.repo)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	if _, err := os.Stat(filepath.Join(root, config.FileName)); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s is not a taxledger project (run taxledger init)", root)
	}

	cfg, err := config.LoadProject(root)
	if err != nil {
		return nil, err
	}
	c, err := core.Open(root, cfg, slog.Default())
	if err != nil {
		return nil, err
	}
	return &project{root: root, cfg: cfg, core: c}, nil
}

func (p *project) Close() error {
	return p.core.Close()
}

func (p *project) company() string {
	return p.cfg.Company.ID
}

// codes maps account ids to codes, and codes to ids.
type codes struct {
	byID   map[string]model.Account
	byCode map[string]model.Account
}

func (p *project) codes(ctx context.Context) (*codes, error) {
	accts, err := p.core.Accounts(ctx, p.company())
	if err != nil {
		return nil, err
	}
	c := &codes{byID: make(map[string]model.Account, len(accts)), byCode: make(map[string]model.Account, len(accts))}
	for _, a := range accts {
		c.byID[a.ID] = a
		c.byCode[a.Code] = a
	}
	return c, nil
}

func (c *codes) code(accountID string) string {
	if a, ok := c.byID[accountID]; ok {
		return a.Code
	}
	return accountID
}

// entry resolves a journal number ("JV-000001") or an entry id.
func (p *project) entry(ctx context.Context, ref string) (*model.JournalEntry, error) {
	if !strings.HasPrefix(strings.ToUpper(ref), "JV-") {
		return p.core.Entry(ctx, p.company(), ref)
	}
	entries, err := p.core.Entries(ctx, p.company(), store.EntryFilter{})
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if strings.EqualFold(id.FormatJournalNumber(entries[i].JournalNumber), ref) {
			return &entries[i], nil
		}
	}
	return nil, fmt.Errorf("journal entry %s: %w", ref, apperr.ErrNotFound)
}

// invoice resolves an invoice number or an invoice id.
func (p *project) invoice(ctx context.Context, ref string) (*model.Invoice, error) {
	inv, err := p.core.InvoiceByNumber(ctx, p.company(), id.NormalizeInvoiceNumber(ref))
	if errors.Is(err, apperr.ErrNotFound) {
		return p.core.Invoice(ctx, p.company(), ref)
	}
	return inv, err
}

// parseDate accepts the same ISO and ROC forms the importer does.
func parseDate(flag, s string) (time.Time, error) {
	d, ok := normalize.ParseDate(s)
	if !ok {
		return time.Time{}, fmt.Errorf("--%s: %q is not a date", flag, s)
	}
	return d, nil
}

// parseDateOr parses s, or returns def when s is empty.
func parseDateOr(flag, s string, def time.Time) (time.Time, error) {
	if s == "" {
		return def, nil
	}
	return parseDate(flag, s)
}

func parseAmount(flag, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return decimal.Zero, fmt.Errorf("--%s: %q is not an amount", flag, s)
	}
	return d, nil
}

func today() time.Time {
	y, m, d := time.Now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(normalize.ISODate)
}

func parseInvoiceType(s string) (model.InvoiceType, error) {
	t := model.InvoiceType(strings.ToUpper(s))
	if !t.Valid() {
		return "", fmt.Errorf("--type: %q is not INPUT or OUTPUT", s)
	}
	return t, nil
}
