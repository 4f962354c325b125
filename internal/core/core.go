// Package core binds the ledger's services into the company-scoped API the
// CLI and any outer layer call.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/taxledger/internal/accounts"
	"github.com/cleared-dev/taxledger/internal/apperr"
	"github.com/cleared-dev/taxledger/internal/auditlog"
	"github.com/cleared-dev/taxledger/internal/classifier"
	"github.com/cleared-dev/taxledger/internal/config"
	"github.com/cleared-dev/taxledger/internal/invoice"
	"github.com/cleared-dev/taxledger/internal/journal"
	"github.com/cleared-dev/taxledger/internal/model"
	"github.com/cleared-dev/taxledger/internal/report"
	"github.com/cleared-dev/taxledger/internal/store"
)

// Options configures a Core. Zero fields take the defaults.
type Options struct {
	Posting invoice.PostingAccounts
	Rules   *classifier.RuleSet
	Logger  *slog.Logger
}

// Core is the ledger's upward API. Every method takes the company it acts on.
type Core struct {
	store      *store.Store
	classifier *classifier.Classifier
	journal    *journal.Service
	invoices   *invoice.Service
	reports    *report.Service
	logger     *slog.Logger
}

// New wires the services over an open store.
func New(st *store.Store, opts Options) *Core {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	posting := opts.Posting
	if posting == (invoice.PostingAccounts{}) {
		posting = invoice.DefaultPostingAccounts()
	}
	rules := classifier.DefaultRuleSet()
	if opts.Rules != nil {
		rules = *opts.Rules
	}

	cls := classifier.New(rules)
	j := journal.NewService(st, logger)
	return &Core{
		store:      st,
		classifier: cls,
		journal:    j,
		invoices:   invoice.NewService(st, j, cls, posting, logger),
		reports:    report.NewService(st),
		logger:     logger,
	}
}

// Open opens the project's ledger database and classifier rules as named by
// cfg, resolving relative paths against root.
func Open(root string, cfg *config.Config, logger *slog.Logger) (*Core, error) {
	rulesPath := config.Resolve(root, cfg.Classifier.RulesPath)
	rules, err := classifier.LoadRules(rulesPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		rules = classifier.DefaultRuleSet()
	case err != nil:
		return nil, err
	}

	st, err := store.Open(config.Resolve(root, cfg.Database.Path))
	if err != nil {
		return nil, err
	}

	return New(st, Options{
		Posting: invoice.PostingAccounts{
			Receivable: cfg.Posting.Receivable,
			OutputTax:  cfg.Posting.OutputTax,
			Payable:    cfg.Posting.Payable,
			InputTax:   cfg.Posting.InputTax,
		},
		Rules:  &rules,
		Logger: logger,
	}), nil
}

// Close closes the underlying store.
func (c *Core) Close() error {
	return c.store.Close()
}

// Store exposes the underlying store.
func (c *Core) Store() *store.Store {
	return c.store
}

// SetupCompany seeds the company's chart of accounts for businessType. A
// company that already has accounts is left untouched.
func (c *Core) SetupCompany(ctx context.Context, companyID, businessType string) ([]model.Account, error) {
	return c.SeedChart(ctx, companyID, accounts.DefaultChart(businessType))
}

// SeedChart seeds the company with chart unless it already has accounts, in
// which case the existing chart is returned.
func (c *Core) SeedChart(ctx context.Context, companyID string, chart []model.Account) ([]model.Account, error) {
	var out []model.Account
	err := c.store.RunAtomic(ctx, companyID, func(tx *store.Tx) error {
		existing, err := tx.Accounts()
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			out = existing
			return nil
		}
		out, err = accounts.Seed(tx, chart)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("setting up company %s: %w", companyID, err)
	}
	c.logger.Info("company ready", "company", companyID, "accounts", len(out))
	return out, nil
}

// Accounts returns the company's chart of accounts.
func (c *Core) Accounts(ctx context.Context, companyID string) ([]model.Account, error) {
	var out []model.Account
	err := c.store.View(ctx, companyID, func(tx *store.Tx) error {
		var err error
		out, err = tx.Accounts()
		return err
	})
	return out, err
}

// Classify suggests an account for an invoice. ok is false when the company
// has no usable account, in which case the caller must pick one by hand.
func (c *Core) Classify(ctx context.Context, companyID string, typ model.InvoiceType, description, counterparty string) (s classifier.Suggestion, ok bool, err error) {
	err = c.store.View(ctx, companyID, func(tx *store.Tx) error {
		chart, err := accounts.Load(tx)
		if err != nil {
			return err
		}
		if !chart.HasActive() {
			return nil
		}
		s, ok = c.classifier.Classify(chart.Active(), typ, description, counterparty)
		return nil
	})
	return s, ok, err
}

// CreateDraftEntry records a balanced draft journal entry.
func (c *Core) CreateDraftEntry(ctx context.Context, companyID string, p journal.DraftParams) (*model.JournalEntry, error) {
	return c.journal.CreateDraft(ctx, companyID, p)
}

// PostEntry posts a draft entry.
func (c *Core) PostEntry(ctx context.Context, companyID, entryID string) (*model.JournalEntry, error) {
	return c.journal.Post(ctx, companyID, entryID)
}

// VoidEntry voids a posted entry and returns the reversal it created.
func (c *Core) VoidEntry(ctx context.Context, companyID, entryID string) (*model.JournalEntry, error) {
	return c.journal.Void(ctx, companyID, entryID)
}

// DeleteEntry discards a draft entry.
func (c *Core) DeleteEntry(ctx context.Context, companyID, entryID string) error {
	return c.journal.Delete(ctx, companyID, entryID)
}

// Entry loads one journal entry.
func (c *Core) Entry(ctx context.Context, companyID, entryID string) (*model.JournalEntry, error) {
	return c.journal.Get(ctx, companyID, entryID)
}

// Entries lists journal entries.
func (c *Core) Entries(ctx context.Context, companyID string, f store.EntryFilter) ([]model.JournalEntry, error) {
	return c.journal.List(ctx, companyID, f)
}

// TrialBalance aggregates posted activity up to asOf.
func (c *Core) TrialBalance(ctx context.Context, companyID string, asOf time.Time) (*report.TrialBalance, error) {
	return c.reports.TrialBalance(ctx, companyID, asOf)
}

// IncomeStatement reports revenue and expenses between from and to.
func (c *Core) IncomeStatement(ctx context.Context, companyID string, from, to time.Time) (*report.IncomeStatement, error) {
	return c.reports.IncomeStatement(ctx, companyID, from, to)
}

// BalanceSheet reports the financial position at asOf.
func (c *Core) BalanceSheet(ctx context.Context, companyID string, asOf time.Time) (*report.BalanceSheet, error) {
	return c.reports.BalanceSheet(ctx, companyID, asOf)
}

// CreateInvoice records a draft invoice.
func (c *Core) CreateInvoice(ctx context.Context, companyID string, p invoice.CreateParams) (*model.Invoice, error) {
	return c.invoices.Create(ctx, companyID, p)
}

// VerifyInvoice moves a draft invoice to VERIFIED.
func (c *Core) VerifyInvoice(ctx context.Context, companyID, invoiceID string) (*model.Invoice, error) {
	return c.invoices.Verify(ctx, companyID, invoiceID)
}

// PostInvoice posts a verified invoice to the journal.
func (c *Core) PostInvoice(ctx context.Context, companyID, invoiceID string) (*invoice.PostResult, error) {
	return c.invoices.Post(ctx, companyID, invoiceID)
}

// VoidInvoice voids a posted invoice and reverses its entry.
func (c *Core) VoidInvoice(ctx context.Context, companyID, invoiceID string) (*model.Invoice, error) {
	return c.invoices.Void(ctx, companyID, invoiceID)
}

// RecordPayment applies a payment to an invoice.
func (c *Core) RecordPayment(ctx context.Context, companyID, invoiceID string, amount decimal.Decimal, paidOn time.Time) (*model.Invoice, error) {
	return c.invoices.RecordPayment(ctx, companyID, invoiceID, amount, paidOn)
}

// Invoice loads one invoice.
func (c *Core) Invoice(ctx context.Context, companyID, invoiceID string) (*model.Invoice, error) {
	return c.invoices.Get(ctx, companyID, invoiceID)
}

// Invoices lists invoices.
func (c *Core) Invoices(ctx context.Context, companyID string, f store.InvoiceFilter) ([]model.Invoice, error) {
	return c.invoices.List(ctx, companyID, f)
}

// InvoiceByNumber loads an invoice by its number.
func (c *Core) InvoiceByNumber(ctx context.Context, companyID, number string) (*model.Invoice, error) {
	var inv *model.Invoice
	err := c.store.View(ctx, companyID, func(tx *store.Tx) error {
		var err error
		inv, err = tx.InvoiceByNumber(number)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.invoices.Get(ctx, companyID, inv.ID)
}

// AuditLog returns the company's audit trail, oldest first.
func (c *Core) AuditLog(ctx context.Context, companyID string) ([]auditlog.Entry, error) {
	var out []auditlog.Entry
	err := c.store.View(ctx, companyID, func(tx *store.Tx) error {
		var err error
		out, err = tx.AuditLog()
		return err
	})
	return out, err
}

func invalidPeriod(period string) error {
	return apperr.Validation(apperr.ErrMalformedRow, apperr.FieldError{
		Field:   "period",
		Message: fmt.Sprintf("%q is not a RRRMM period", period),
	})
}
