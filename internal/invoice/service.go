// Package invoice drives invoices through DRAFT → VERIFIED → POSTED →
// VOIDED and produces the journal entries each posting implies.
package invoice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/taxledger/internal/accounts"
	"github.com/cleared-dev/taxledger/internal/apperr"
	"github.com/cleared-dev/taxledger/internal/auditlog"
	"github.com/cleared-dev/taxledger/internal/classifier"
	"github.com/cleared-dev/taxledger/internal/id"
	"github.com/cleared-dev/taxledger/internal/journal"
	"github.com/cleared-dev/taxledger/internal/model"
	"github.com/cleared-dev/taxledger/internal/store"
)

const entity = "invoice"

// Service provides the invoice state machine.
type Service struct {
	store      *store.Store
	journal    *journal.Service
	classifier *classifier.Classifier
	posting    PostingAccounts
	logger     *slog.Logger

	// Now is the clock payment status is derived against.
	Now func() time.Time
}

// NewService creates an invoice Service. cls may be nil, in which case
// invoices without an account cannot be posted.
func NewService(st *store.Store, j *journal.Service, cls *classifier.Classifier, posting PostingAccounts, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      st,
		journal:    j,
		classifier: cls,
		posting:    posting,
		logger:     logger,
		Now:        func() time.Time { return time.Now().UTC() },
	}
}

// CreateParams holds parameters for creating an invoice.
type CreateParams struct {
	Type              model.InvoiceType
	Number            string
	Date              time.Time
	DueDate           time.Time
	UntaxedAmount     decimal.Decimal
	TaxAmount         decimal.Decimal
	TotalAmount       decimal.Decimal
	CounterpartyName  string
	CounterpartyTaxID string
	Description       string
	AccountCode       string // optional; empty leaves the choice to posting
}

// Create stores a new DRAFT invoice.
func (s *Service) Create(ctx context.Context, companyID string, p CreateParams) (*model.Invoice, error) {
	var inv *model.Invoice
	err := s.store.RunAtomic(ctx, companyID, func(tx *store.Tx) error {
		var err error
		inv, err = s.CreateTx(tx, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("created invoice", "company", companyID, "invoice", inv.ID, "number", inv.Number, "status", inv.Status)
	return inv, nil
}

// CreateTx is Create inside a caller's unit.
func (s *Service) CreateTx(tx *store.Tx, p CreateParams) (*model.Invoice, error) {
	number := id.NormalizeInvoiceNumber(p.Number)
	if err := validateCreate(p, number); err != nil {
		return nil, err
	}

	inv := &model.Invoice{
		ID:                id.New(),
		Type:              p.Type,
		Number:            number,
		Date:              p.Date,
		DueDate:           p.DueDate,
		UntaxedAmount:     p.UntaxedAmount,
		TaxAmount:         p.TaxAmount,
		TotalAmount:       p.TotalAmount,
		PaidAmount:        decimal.Zero,
		PaymentStatus:     model.PaymentUnpaid,
		CounterpartyName:  p.CounterpartyName,
		CounterpartyTaxID: p.CounterpartyTaxID,
		Description:       p.Description,
		Status:            model.InvoiceDraft,
		CreatedAt:         tx.Now(),
	}

	if p.AccountCode != "" {
		chart, err := accounts.Load(tx)
		if err != nil {
			return nil, err
		}
		a, ok := chart.ByCode(p.AccountCode)
		if !ok || !a.IsActive {
			return nil, apperr.Validation(apperr.ErrInvalidAccount,
				apperr.FieldError{Field: "account", Message: fmt.Sprintf("%q is not an active account of this company", p.AccountCode)})
		}
		if err := checkCategory(p.Type, a); err != nil {
			return nil, err
		}
		inv.AccountID = a.ID
	}

	if err := tx.InsertInvoice(inv); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apperr.Validation(apperr.ErrDuplicateNumber,
				apperr.FieldError{Field: "number", Message: fmt.Sprintf("%s already exists", number)})
		}
		return nil, err
	}
	if err := tx.Audit(auditlog.ActionInvoiceCreate, inv.ID, inv.Number); err != nil {
		return nil, err
	}
	return inv, nil
}

func validateCreate(p CreateParams, number string) error {
	var fields []apperr.FieldError
	add := func(field, msg string) { fields = append(fields, apperr.FieldError{Field: field, Message: msg}) }

	if !p.Type.Valid() {
		add("type", fmt.Sprintf("must be %s or %s", model.InvoiceOutput, model.InvoiceInput))
	}
	if _, _, err := id.ParseInvoiceNumber(number); err != nil {
		add("number", err.Error())
	}
	if p.Date.IsZero() {
		add("date", "required")
	}
	if !p.DueDate.IsZero() && p.DueDate.Before(p.Date) {
		add("due_date", "before invoice date")
	}
	for _, f := range []struct {
		name string
		amt  decimal.Decimal
	}{
		{"untaxed_amount", p.UntaxedAmount},
		{"tax_amount", p.TaxAmount},
		{"total_amount", p.TotalAmount},
	} {
		if !f.amt.Equal(f.amt.Truncate(0)) {
			add(f.name, fmt.Sprintf("%s is not a whole currency amount", f.amt))
		}
	}
	if p.TotalAmount.IsZero() {
		add("total_amount", "must not be zero")
	}
	if !p.TotalAmount.Equal(p.UntaxedAmount.Add(p.TaxAmount)) {
		add("total_amount", fmt.Sprintf("%s != untaxed %s + tax %s", p.TotalAmount, p.UntaxedAmount, p.TaxAmount))
	}
	if p.UntaxedAmount.Sign()*p.TaxAmount.Sign() < 0 {
		add("tax_amount", "sign differs from untaxed amount")
	}
	if p.CounterpartyTaxID != "" && !id.ValidTaxID(p.CounterpartyTaxID) {
		add("counterparty_tax_id", fmt.Sprintf("%q is not an 8-digit tax id", p.CounterpartyTaxID))
	}

	if len(fields) == 0 {
		return nil
	}
	return apperr.Validation(apperr.ErrInvalidInvoice, fields...)
}

// Verify moves a DRAFT invoice to VERIFIED.
func (s *Service) Verify(ctx context.Context, companyID, invoiceID string) (*model.Invoice, error) {
	var inv *model.Invoice
	err := s.store.RunAtomic(ctx, companyID, func(tx *store.Tx) error {
		var err error
		inv, err = tx.Invoice(invoiceID)
		if err != nil {
			return err
		}
		if inv.Status != model.InvoiceDraft {
			return transitionError(inv, "verify", apperr.ErrInvalidTransition)
		}
		inv.Status = model.InvoiceVerified
		inv.VerifiedAt = tx.Now()
		if err := tx.UpdateInvoice(inv, model.InvoiceDraft); err != nil {
			return staleError(tx, inv.ID, "verify", apperr.ErrInvalidTransition, err)
		}
		return tx.Audit(auditlog.ActionInvoiceVerify, inv.ID, inv.Number)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("verified invoice", "company", companyID, "invoice", inv.ID, "status", inv.Status)
	return inv, nil
}

// PostResult is an invoice after posting together with its journal entry.
type PostResult struct {
	Invoice    *model.Invoice
	Entry      *model.JournalEntry
	Suggestion *classifier.Suggestion // set when the account came from the classifier
}

// Post moves a VERIFIED invoice to POSTED. The journal entry, the invoice
// status and the link between them are written as one unit.
func (s *Service) Post(ctx context.Context, companyID, invoiceID string) (*PostResult, error) {
	var res *PostResult
	err := s.store.RunAtomic(ctx, companyID, func(tx *store.Tx) error {
		var err error
		res, err = s.PostTx(tx, invoiceID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("posted invoice", "company", companyID, "invoice", res.Invoice.ID,
		"entry", res.Entry.ID, "status", res.Invoice.Status)
	return res, nil
}

// PostTx is Post inside a caller's unit.
func (s *Service) PostTx(tx *store.Tx, invoiceID string) (*PostResult, error) {
	inv, err := tx.Invoice(invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status != model.InvoiceVerified {
		return nil, transitionError(inv, "post", apperr.ErrInvalidTransition)
	}

	chart, err := accounts.Load(tx)
	if err != nil {
		return nil, err
	}
	res := &PostResult{Invoice: inv}

	accountID, err := s.resolveAccount(inv, chart, res)
	if err != nil {
		return nil, err
	}

	lines, err := s.posting.Lines(inv, accountID, chart)
	if err != nil {
		return nil, err
	}
	draft := model.JournalEntry{Lines: lines}
	if !draft.Balanced() {
		d, c := draft.Totals()
		return nil, apperr.DataIntegrity(apperr.ErrUnbalancedPosting,
			"invoice %s: debits %s != credits %s", inv.Number, d.StringFixed(2), c.StringFixed(2))
	}

	desc := fmt.Sprintf("Invoice %s", inv.Number)
	if inv.CounterpartyName != "" {
		desc += " " + inv.CounterpartyName
	}
	e, err := s.journal.CreateDraftTx(tx, journal.DraftParams{
		Date:        inv.Date,
		Description: desc,
		SourceType:  model.SourceInvoice,
		SourceID:    inv.ID,
		Lines:       lines,
	})
	if err != nil {
		return nil, err
	}
	if e, err = s.journal.PostTx(tx, e.ID); err != nil {
		return nil, err
	}

	inv.AccountID = accountID
	inv.Status = model.InvoicePosted
	inv.JournalEntryID = e.ID
	inv.PostedAt = tx.Now()
	if err := tx.UpdateInvoice(inv, model.InvoiceVerified); err != nil {
		return nil, staleError(tx, inv.ID, "post", apperr.ErrInvalidTransition, err)
	}
	if err := tx.Audit(auditlog.ActionInvoicePost, inv.ID, fmt.Sprintf("%s -> %s", inv.Number, id.FormatJournalNumber(e.JournalNumber))); err != nil {
		return nil, err
	}

	res.Entry = e
	return res, nil
}

// resolveAccount picks the invoice's own account, else the classifier's
// suggestion.
func (s *Service) resolveAccount(inv *model.Invoice, chart *accounts.Service, res *PostResult) (string, error) {
	if inv.AccountID != "" {
		a, ok := chart.Get(inv.AccountID)
		if !ok || !a.IsActive {
			return "", apperr.Validation(apperr.ErrInvalidAccount,
				apperr.FieldError{Field: "account", Message: fmt.Sprintf("%s is not an active account of this company", inv.AccountID)})
		}
		if err := checkCategory(inv.Type, a); err != nil {
			return "", err
		}
		return inv.AccountID, nil
	}
	if s.classifier != nil {
		if sug, ok := s.classifier.Classify(chart.Active(), inv.Type, inv.Description, inv.CounterpartyName); ok {
			res.Suggestion = &sug
			return sug.AccountID, nil
		}
	}
	return "", apperr.Validation(apperr.ErrInvalidAccount,
		apperr.FieldError{Field: "account", Message: "no account set and none could be suggested; choose one manually"})
}

// checkCategory requires revenue accounts on OUTPUT invoices and expense
// accounts on INPUT invoices.
func checkCategory(typ model.InvoiceType, a model.Account) error {
	want := model.CategoryExpense
	if typ == model.InvoiceOutput {
		want = model.CategoryRevenue
	}
	if a.Category != want {
		return apperr.Validation(apperr.ErrInvalidAccount,
			apperr.FieldError{Field: "account", Message: fmt.Sprintf("%s is a %s account; %s invoices need a %s account", a.Code, a.Category, typ, want)})
	}
	return nil
}

// Void moves a POSTED invoice to VOIDED, reversing its journal entry.
func (s *Service) Void(ctx context.Context, companyID, invoiceID string) (*model.Invoice, error) {
	var inv *model.Invoice
	err := s.store.RunAtomic(ctx, companyID, func(tx *store.Tx) error {
		var err error
		inv, err = tx.Invoice(invoiceID)
		if err != nil {
			return err
		}
		if inv.Status != model.InvoicePosted {
			return transitionError(inv, "void", apperr.ErrNotPosted)
		}
		if _, err := s.journal.VoidTx(tx, inv.JournalEntryID); err != nil {
			return err
		}
		inv.Status = model.InvoiceVoided
		inv.VoidedAt = tx.Now()
		if err := tx.UpdateInvoice(inv, model.InvoicePosted); err != nil {
			return staleError(tx, inv.ID, "void", apperr.ErrNotPosted, err)
		}
		return tx.Audit(auditlog.ActionInvoiceVoid, inv.ID, inv.Number)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("voided invoice", "company", companyID, "invoice", inv.ID, "status", inv.Status)
	return inv, nil
}

// RecordPayment adds amount to the invoice's paid amount and re-derives its
// payment status. It never touches the journal.
func (s *Service) RecordPayment(ctx context.Context, companyID, invoiceID string, amount decimal.Decimal, paidOn time.Time) (*model.Invoice, error) {
	if !amount.IsPositive() {
		return nil, apperr.Validation(apperr.ErrInvalidPayment, apperr.FieldError{Field: "amount", Message: "must be positive"})
	}
	if !amount.Equal(amount.Round(2)) {
		return nil, apperr.Validation(apperr.ErrInvalidPayment, apperr.FieldError{Field: "amount", Message: "more than 2 decimal places"})
	}

	now := s.Now()
	if paidOn.IsZero() {
		paidOn = now
	}

	var inv *model.Invoice
	err := s.store.RunAtomic(ctx, companyID, func(tx *store.Tx) error {
		var err error
		inv, err = tx.Invoice(invoiceID)
		if err != nil {
			return err
		}
		if inv.Status != model.InvoiceVerified && inv.Status != model.InvoicePosted {
			return transitionError(inv, "record payment on", apperr.ErrInvalidTransition)
		}
		if !inv.TotalAmount.IsPositive() {
			return apperr.Validation(apperr.ErrInvalidPayment,
				apperr.FieldError{Field: "invoice", Message: "credit notes take no payments"})
		}
		paid := inv.PaidAmount.Add(amount)
		if paid.GreaterThan(inv.TotalAmount) {
			return apperr.Validation(apperr.ErrInvalidPayment, apperr.FieldError{
				Field:   "amount",
				Message: fmt.Sprintf("overpayment: %s paid + %s exceeds total %s", inv.PaidAmount, amount, inv.TotalAmount),
			})
		}

		inv.PaidAmount = paid
		inv.LastPaymentDate = paidOn
		inv.PaymentStatus = inv.DerivePaymentStatus(now)
		if err := tx.UpdateInvoice(inv, inv.Status); err != nil {
			return staleError(tx, inv.ID, "record payment on", apperr.ErrInvalidTransition, err)
		}
		return tx.Audit(auditlog.ActionInvoicePayment, inv.ID,
			fmt.Sprintf("%s paid %s (%s)", inv.Number, amount.StringFixed(2), inv.PaymentStatus))
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("recorded payment", "company", companyID, "invoice", inv.ID,
		"amount", amount.StringFixed(2), "status", inv.PaymentStatus)
	return inv, nil
}

// Get returns one invoice, its payment status derived as of now.
func (s *Service) Get(ctx context.Context, companyID, invoiceID string) (*model.Invoice, error) {
	var inv *model.Invoice
	err := s.store.View(ctx, companyID, func(tx *store.Tx) error {
		var err error
		inv, err = tx.Invoice(invoiceID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.refresh(inv)
	return inv, nil
}

// List returns the company's invoices matching f.
func (s *Service) List(ctx context.Context, companyID string, f store.InvoiceFilter) ([]model.Invoice, error) {
	var out []model.Invoice
	err := s.store.View(ctx, companyID, func(tx *store.Tx) error {
		var err error
		out, err = tx.Invoices(f)
		return err
	})
	if err != nil {
		return nil, err
	}
	for i := range out {
		s.refresh(&out[i])
	}
	return out, nil
}

// refresh re-derives payment status, which turns OVERDUE with time alone.
func (s *Service) refresh(inv *model.Invoice) {
	if inv.Status == model.InvoiceVoided || !inv.TotalAmount.IsPositive() {
		return
	}
	inv.PaymentStatus = inv.DerivePaymentStatus(s.Now())
}

func transitionError(inv *model.Invoice, op string, sentinel error) error {
	return apperr.StateTransition(sentinel, entity, inv.Number, string(inv.Status), op)
}

func staleError(tx *store.Tx, invoiceID, op string, sentinel, err error) error {
	if !errors.Is(err, store.ErrStaleStatus) {
		return err
	}
	cur, rerr := tx.Invoice(invoiceID)
	if rerr != nil {
		return rerr
	}
	return transitionError(cur, op, sentinel)
}
