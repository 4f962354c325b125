package invoice

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/taxledger/internal/accounts"
	"github.com/cleared-dev/taxledger/internal/apperr"
	"github.com/cleared-dev/taxledger/internal/classifier"
	"github.com/cleared-dev/taxledger/internal/journal"
	"github.com/cleared-dev/taxledger/internal/model"
	"github.com/cleared-dev/taxledger/internal/store"
)

const company = "acme"

var ctx = context.Background()

type fixture struct {
	st      *store.Store
	svc     *Service
	journal *journal.Service
	codes   map[string]string // code -> id
	byID    map[string]string // id -> code
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	f := &fixture{st: st, codes: map[string]string{}, byID: map[string]string{}}
	err = st.RunAtomic(ctx, company, func(tx *store.Tx) error {
		seeded, err := accounts.Seed(tx, accounts.DefaultChart(""))
		for _, a := range seeded {
			f.codes[a.Code] = a.ID
			f.byID[a.ID] = a.Code
		}
		return err
	})
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.journal = journal.NewService(st, logger)
	f.svc = NewService(st, f.journal, classifier.New(classifier.DefaultRuleSet()), DefaultPostingAccounts(), logger)
	f.svc.Now = func() time.Time { return time.Date(2024, 12, 20, 9, 0, 0, 0, time.UTC) }
	return f
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func salesParams(number string) CreateParams {
	return CreateParams{
		Type:              model.InvoiceOutput,
		Number:            number,
		Date:              date(2024, 12, 15),
		UntaxedAmount:     dec("10000"),
		TaxAmount:         dec("500"),
		TotalAmount:       dec("10500"),
		CounterpartyName:  "Globex",
		CounterpartyTaxID: "12345678",
		Description:       "widgets",
		AccountCode:       "4101",
	}
}

func (f *fixture) verified(t *testing.T, p CreateParams) *model.Invoice {
	t.Helper()
	inv, err := f.svc.Create(ctx, company, p)
	require.NoError(t, err)
	inv, err = f.svc.Verify(ctx, company, inv.ID)
	require.NoError(t, err)
	return inv
}

type side struct {
	code   string
	debit  string
	credit string
}

func (f *fixture) sides(e *model.JournalEntry) []side {
	out := make([]side, len(e.Lines))
	for i, l := range e.Lines {
		out[i] = side{code: f.byID[l.AccountID], debit: l.Debit.String(), credit: l.Credit.String()}
	}
	return out
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	p := salesParams("ab-1234 5678")
	inv, err := f.svc.Create(ctx, company, p)
	require.NoError(t, err)
	assert.Equal(t, "AB12345678", inv.Number)
	assert.Equal(t, model.InvoiceDraft, inv.Status)
	assert.Equal(t, model.PaymentUnpaid, inv.PaymentStatus)
	assert.Equal(t, f.codes["4101"], inv.AccountID)

	got, err := f.svc.Get(ctx, company, inv.ID)
	require.NoError(t, err)
	assert.True(t, got.TotalAmount.Equal(dec("10500")))
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*CreateParams)
		field  string
	}{
		{"total mismatch", func(p *CreateParams) { p.TotalAmount = dec("10400") }, "total_amount"},
		{"bad number", func(p *CreateParams) { p.Number = "A123" }, "number"},
		{"no date", func(p *CreateParams) { p.Date = time.Time{} }, "date"},
		{"bad type", func(p *CreateParams) { p.Type = "SALES" }, "type"},
		{"fractional", func(p *CreateParams) {
			p.UntaxedAmount, p.TaxAmount, p.TotalAmount = dec("10.5"), dec("0"), dec("10.5")
		}, "untaxed_amount"},
		{"zero", func(p *CreateParams) {
			p.UntaxedAmount, p.TaxAmount, p.TotalAmount = dec("0"), dec("0"), dec("0")
		}, "total_amount"},
		{"mixed signs", func(p *CreateParams) {
			p.UntaxedAmount, p.TaxAmount, p.TotalAmount = dec("100"), dec("-5"), dec("95")
		}, "tax_amount"},
		{"bad tax id", func(p *CreateParams) { p.CounterpartyTaxID = "1234" }, "counterparty_tax_id"},
		{"due before date", func(p *CreateParams) { p.DueDate = date(2024, 12, 1) }, "due_date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			p := salesParams("AB12345678")
			tt.modify(&p)
			_, err := f.svc.Create(ctx, company, p)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperr.ErrInvalidInvoice))
			var ve *apperr.ValidationError
			require.True(t, errors.As(err, &ve))
			var fields []string
			for _, fe := range ve.Fields {
				fields = append(fields, fe.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestCreate_DuplicateNumber(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(ctx, company, salesParams("AB12345678"))
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, company, salesParams("AB12345678"))
	assert.True(t, errors.Is(err, apperr.ErrDuplicateNumber))

	_, err = f.svc.Create(ctx, "other", salesParams("AB12345678"))
	assert.NoError(t, err, "numbers are unique per company")
}

func TestCreate_InactiveAccount(t *testing.T) {
	f := newFixture(t)
	p := salesParams("AB12345678")
	p.AccountCode = "9999"
	_, err := f.svc.Create(ctx, company, p)
	assert.True(t, errors.Is(err, apperr.ErrInvalidAccount))
}

func TestCreate_AccountCategory(t *testing.T) {
	tests := []struct {
		name string
		typ  model.InvoiceType
		code string
	}{
		{"output to receivable", model.InvoiceOutput, "1101"},
		{"output to expense", model.InvoiceOutput, "6101"},
		{"input to revenue", model.InvoiceInput, "4101"},
		{"input to payable", model.InvoiceInput, "2201"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			p := salesParams("AB12345678")
			p.Type = tt.typ
			p.AccountCode = tt.code
			_, err := f.svc.Create(ctx, company, p)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperr.ErrInvalidAccount))
			assert.True(t, apperr.IsValidation(err))
		})
	}
}

func TestPost_RejectsWrongCategoryAccount(t *testing.T) {
	f := newFixture(t)
	inv := f.verified(t, salesParams("AB12345678"))

	err := f.st.RunAtomic(ctx, company, func(tx *store.Tx) error {
		stored, err := tx.Invoice(inv.ID)
		if err != nil {
			return err
		}
		stored.AccountID = f.codes["1101"]
		return tx.UpdateInvoice(stored, model.InvoiceVerified)
	})
	require.NoError(t, err)

	_, err = f.svc.Post(ctx, company, inv.ID)
	assert.True(t, errors.Is(err, apperr.ErrInvalidAccount))

	got, err := f.svc.Get(ctx, company, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceVerified, got.Status)
}

func TestPost_OutputInvoice(t *testing.T) {
	f := newFixture(t)
	inv := f.verified(t, salesParams("AB12345678"))

	res, err := f.svc.Post(ctx, company, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InvoicePosted, res.Invoice.Status)
	assert.Equal(t, res.Entry.ID, res.Invoice.JournalEntryID)
	assert.Nil(t, res.Suggestion)

	e := res.Entry
	assert.Equal(t, model.EntryPosted, e.Status)
	assert.Equal(t, model.SourceInvoice, e.SourceType)
	assert.Equal(t, inv.ID, e.SourceID)
	assert.Equal(t, []side{
		{"1101", "10500", "0"},
		{"4101", "0", "10000"},
		{"2201", "0", "500"},
	}, f.sides(e))

	stored, err := f.svc.Get(ctx, company, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InvoicePosted, stored.Status)
	assert.Equal(t, e.ID, stored.JournalEntryID)
}

func TestPost_InputInvoiceUsesClassifier(t *testing.T) {
	f := newFixture(t)
	inv := f.verified(t, CreateParams{
		Type:          model.InvoiceInput,
		Number:        "CD00000001",
		Date:          date(2024, 12, 1),
		UntaxedAmount: dec("20000"),
		TaxAmount:     dec("1000"),
		TotalAmount:   dec("21000"),
		Description:   "十二月份辦公室租金",
	})

	res, err := f.svc.Post(ctx, company, inv.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Suggestion)
	assert.Equal(t, "6101", res.Suggestion.AccountCode)
	assert.Equal(t, f.codes["6101"], res.Invoice.AccountID)
	assert.Equal(t, []side{
		{"6101", "20000", "0"},
		{"1150", "1000", "0"},
		{"2101", "0", "21000"},
	}, f.sides(res.Entry))

	stored, err := f.svc.Get(ctx, company, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, f.codes["6101"], stored.AccountID, "suggestion stored on the invoice")
}

func TestPost_ZeroTaxOmitsTaxLine(t *testing.T) {
	f := newFixture(t)
	p := salesParams("AB12345678")
	p.TaxAmount, p.TotalAmount = dec("0"), dec("10000")
	inv := f.verified(t, p)

	res, err := f.svc.Post(ctx, company, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, []side{
		{"1101", "10000", "0"},
		{"4101", "0", "10000"},
	}, f.sides(res.Entry))
}

func TestPost_CreditNoteFlipsSides(t *testing.T) {
	f := newFixture(t)
	p := salesParams("AB12345678")
	p.UntaxedAmount, p.TaxAmount, p.TotalAmount = dec("-1000"), dec("-50"), dec("-1050")
	inv := f.verified(t, p)

	res, err := f.svc.Post(ctx, company, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, []side{
		{"1101", "0", "1050"},
		{"4101", "1000", "0"},
		{"2201", "50", "0"},
	}, f.sides(res.Entry))
}

func TestPost_RequiresVerified(t *testing.T) {
	f := newFixture(t)
	inv, err := f.svc.Create(ctx, company, salesParams("AB12345678"))
	require.NoError(t, err)

	_, err = f.svc.Post(ctx, company, inv.ID)
	assert.True(t, errors.Is(err, apperr.ErrInvalidTransition))
	assert.True(t, apperr.IsStateTransition(err))

	entries, err := f.journal.List(ctx, company, store.EntryFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPost_Twice(t *testing.T) {
	f := newFixture(t)
	inv := f.verified(t, salesParams("AB12345678"))
	_, err := f.svc.Post(ctx, company, inv.ID)
	require.NoError(t, err)

	_, err = f.svc.Post(ctx, company, inv.ID)
	assert.True(t, errors.Is(err, apperr.ErrInvalidTransition))

	entries, err := f.journal.List(ctx, company, store.EntryFilter{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestPost_ConcurrentExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	inv := f.verified(t, salesParams("AB12345678"))

	other, err := store.Open(f.st.Path())
	require.NoError(t, err)
	t.Cleanup(func() { other.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	otherSvc := NewService(other, journal.NewService(other, logger), classifier.New(classifier.DefaultRuleSet()), DefaultPostingAccounts(), logger)
	services := []*Service{f.svc, otherSvc}

	const n = 20
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = services[i%2].Post(ctx, company, inv.ID)
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, apperr.IsStateTransition(err), "unexpected error: %v", err)
		assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	}
	assert.Equal(t, 1, ok)

	entries, err := f.journal.List(ctx, company, store.EntryFilter{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestPost_NoAccountNoSuggestion(t *testing.T) {
	f := newFixture(t)
	f.svc.classifier = nil
	p := salesParams("AB12345678")
	p.AccountCode = ""
	inv := f.verified(t, p)

	_, err := f.svc.Post(ctx, company, inv.ID)
	assert.True(t, errors.Is(err, apperr.ErrInvalidAccount))

	got, err := f.svc.Get(ctx, company, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceVerified, got.Status, "nothing written")
}

func TestPost_MissingControlAccountRollsBack(t *testing.T) {
	f := newFixture(t)
	err := f.st.RunAtomic(ctx, company, func(tx *store.Tx) error {
		return tx.SetAccountActive(f.codes["2201"], false)
	})
	require.NoError(t, err)
	inv := f.verified(t, salesParams("AB12345678"))

	_, err = f.svc.Post(ctx, company, inv.ID)
	assert.True(t, errors.Is(err, apperr.ErrInvalidAccount))
	assert.Contains(t, err.Error(), "posting.output tax")
}

func TestPostingLines_Unbalanced(t *testing.T) {
	f := newFixture(t)
	var chart *accounts.Service
	err := f.st.View(ctx, company, func(tx *store.Tx) error {
		var err error
		chart, err = accounts.Load(tx)
		return err
	})
	require.NoError(t, err)

	inv := &model.Invoice{
		Type: model.InvoiceOutput, Number: "AB12345678",
		UntaxedAmount: dec("100"), TaxAmount: dec("5"), TotalAmount: dec("106"),
	}
	lines, err := DefaultPostingAccounts().Lines(inv, f.codes["4101"], chart)
	require.NoError(t, err)
	e := model.JournalEntry{Lines: lines}
	assert.False(t, e.Balanced(), "inconsistent totals cannot produce a balanced posting")
}

func TestVoid(t *testing.T) {
	f := newFixture(t)
	inv := f.verified(t, salesParams("AB12345678"))
	res, err := f.svc.Post(ctx, company, inv.ID)
	require.NoError(t, err)

	voided, err := f.svc.Void(ctx, company, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceVoided, voided.Status)

	e, err := f.journal.Get(ctx, company, res.Entry.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EntryVoided, e.Status)

	posted, err := f.journal.List(ctx, company, store.EntryFilter{Status: model.EntryPosted})
	require.NoError(t, err)
	require.Len(t, posted, 1)
	assert.Equal(t, res.Entry.ID, posted[0].ReversalOf)

	_, err = f.svc.Void(ctx, company, inv.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotPosted))
}

func TestVoid_NotPosted(t *testing.T) {
	f := newFixture(t)
	inv := f.verified(t, salesParams("AB12345678"))
	_, err := f.svc.Void(ctx, company, inv.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotPosted))
}

func TestVerify_OnlyFromDraft(t *testing.T) {
	f := newFixture(t)
	inv := f.verified(t, salesParams("AB12345678"))
	_, err := f.svc.Verify(ctx, company, inv.ID)
	assert.True(t, errors.Is(err, apperr.ErrInvalidTransition))
}

func TestRecordPayment(t *testing.T) {
	f := newFixture(t)
	p := salesParams("AB12345678")
	p.DueDate = date(2025, 1, 15)
	inv := f.verified(t, p)

	inv, err := f.svc.RecordPayment(ctx, company, inv.ID, dec("5000"), date(2024, 12, 18))
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPartial, inv.PaymentStatus)
	assert.True(t, inv.PaidAmount.Equal(dec("5000")))

	_, err = f.svc.RecordPayment(ctx, company, inv.ID, dec("6000"), time.Time{})
	assert.True(t, errors.Is(err, apperr.ErrInvalidPayment), "overpayment rejected")

	inv, err = f.svc.RecordPayment(ctx, company, inv.ID, dec("5500"), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPaid, inv.PaymentStatus)

	stored, err := f.svc.Get(ctx, company, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPaid, stored.PaymentStatus)
	assert.Equal(t, date(2024, 12, 20), stored.LastPaymentDate)
}

func TestRecordPayment_Overdue(t *testing.T) {
	f := newFixture(t)
	p := salesParams("AB12345678")
	p.DueDate = date(2024, 12, 16)
	inv := f.verified(t, p)

	inv, err := f.svc.RecordPayment(ctx, company, inv.ID, dec("100"), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentOverdue, inv.PaymentStatus)
}

func TestRecordPayment_Rejected(t *testing.T) {
	f := newFixture(t)
	draft, err := f.svc.Create(ctx, company, salesParams("AB12345678"))
	require.NoError(t, err)

	_, err = f.svc.RecordPayment(ctx, company, draft.ID, dec("100"), time.Time{})
	assert.True(t, errors.Is(err, apperr.ErrInvalidTransition))

	_, err = f.svc.RecordPayment(ctx, company, draft.ID, dec("0"), time.Time{})
	assert.True(t, errors.Is(err, apperr.ErrInvalidPayment))

	_, err = f.svc.RecordPayment(ctx, company, draft.ID, dec("1.234"), time.Time{})
	assert.True(t, errors.Is(err, apperr.ErrInvalidPayment))
}

func TestList_DerivesOverdue(t *testing.T) {
	f := newFixture(t)
	p := salesParams("AB12345678")
	p.DueDate = date(2024, 12, 31)
	_, err := f.svc.Create(ctx, company, p)
	require.NoError(t, err)

	list, err := f.svc.List(ctx, company, store.InvoiceFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.PaymentUnpaid, list[0].PaymentStatus)

	f.svc.Now = func() time.Time { return date(2025, 1, 2) }
	list, err = f.svc.List(ctx, company, store.InvoiceFilter{Type: model.InvoiceOutput})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentOverdue, list[0].PaymentStatus)
}
