package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/taxledger/internal/apperr"
	"github.com/cleared-dev/taxledger/internal/model"
)

const invoiceColumns = `id, company_id, type, number, date, due_date, untaxed_amount, tax_amount,
	total_amount, paid_amount, payment_status, last_payment_date, counterparty_name,
	counterparty_tax_id, description, account_id, status, journal_entry_id, verified_at,
	posted_at, voided_at, created_at`

// InsertInvoice writes a new invoice. A number already used by the company
// fails with ErrConflict.
func (t *Tx) InsertInvoice(inv *model.Invoice) error {
	inv.CompanyID = t.companyID
	_, err := t.exec(`INSERT INTO invoices (`+invoiceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.CompanyID, string(inv.Type), inv.Number, formatDate(inv.Date), nullDate(inv.DueDate),
		inv.UntaxedAmount.String(), inv.TaxAmount.String(), inv.TotalAmount.String(), inv.PaidAmount.String(),
		string(inv.PaymentStatus), nullDate(inv.LastPaymentDate), inv.CounterpartyName,
		inv.CounterpartyTaxID, inv.Description, nullString(inv.AccountID), string(inv.Status),
		nullString(inv.JournalEntryID), nullTime(inv.VerifiedAt), nullTime(inv.PostedAt),
		nullTime(inv.VoidedAt), inv.CreatedAt.UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("inserting invoice %s: %w", inv.Number, err)
	}
	return nil
}

// Invoice loads one invoice by id.
func (t *Tx) Invoice(invoiceID string) (*model.Invoice, error) {
	row := t.queryRow(`SELECT `+invoiceColumns+` FROM invoices WHERE id = ? AND company_id = ?`,
		invoiceID, t.companyID)
	inv, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("invoice %s: %w", invoiceID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading invoice %s: %w", invoiceID, err)
	}
	return inv, nil
}

// InvoiceByNumber loads one invoice by its authority-assigned number.
func (t *Tx) InvoiceByNumber(number string) (*model.Invoice, error) {
	row := t.queryRow(`SELECT `+invoiceColumns+` FROM invoices WHERE number = ? AND company_id = ?`,
		number, t.companyID)
	inv, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("invoice number %s: %w", number, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading invoice %s: %w", number, err)
	}
	return inv, nil
}

// InvoiceFilter narrows Invoices. Zero values match everything.
type InvoiceFilter struct {
	Type   model.InvoiceType
	Status model.InvoiceStatus
	From   time.Time
	To     time.Time
}

// Invoices lists the company's invoices by date, then number.
func (t *Tx) Invoices(f InvoiceFilter) ([]model.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE company_id = ?`
	args := []any{t.companyID}
	if f.Type != "" {
		query += ` AND type = ?`
		args = append(args, string(f.Type))
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	if !f.From.IsZero() {
		query += ` AND date >= ?`
		args = append(args, formatDate(f.From))
	}
	if !f.To.IsZero() {
		query += ` AND date <= ?`
		args = append(args, formatDate(f.To))
	}
	query += ` ORDER BY date, number`

	rows, err := t.query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying invoices: %w", err)
	}
	defer rows.Close()

	var out []model.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning invoice: %w", err)
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

// UpdateInvoice persists every mutable field of inv, provided the stored row
// is still in status expected. Otherwise it fails with ErrStaleStatus.
func (t *Tx) UpdateInvoice(inv *model.Invoice, expected model.InvoiceStatus) error {
	res, err := t.exec(`
		UPDATE invoices SET
			due_date = ?, paid_amount = ?, payment_status = ?, last_payment_date = ?,
			account_id = ?, status = ?, journal_entry_id = ?, verified_at = ?,
			posted_at = ?, voided_at = ?
		WHERE id = ? AND company_id = ? AND status = ?`,
		nullDate(inv.DueDate), inv.PaidAmount.String(), string(inv.PaymentStatus),
		nullDate(inv.LastPaymentDate), nullString(inv.AccountID), string(inv.Status),
		nullString(inv.JournalEntryID), nullTime(inv.VerifiedAt), nullTime(inv.PostedAt),
		nullTime(inv.VoidedAt), inv.ID, t.companyID, string(expected))
	if err != nil {
		return fmt.Errorf("updating invoice %s: %w", inv.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating invoice %s: %w", inv.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("invoice %s: %w", inv.ID, ErrStaleStatus)
	}
	return nil
}

func scanInvoice(r rowScanner) (*model.Invoice, error) {
	var inv model.Invoice
	var typ, date, untaxed, tax, total, paid, payStatus, status, createdAt string
	var dueDate, lastPayment, accountID, journalID, verifiedAt, postedAt, voidedAt sql.NullString
	if err := r.Scan(&inv.ID, &inv.CompanyID, &typ, &inv.Number, &date, &dueDate, &untaxed, &tax,
		&total, &paid, &payStatus, &lastPayment, &inv.CounterpartyName, &inv.CounterpartyTaxID,
		&inv.Description, &accountID, &status, &journalID, &verifiedAt, &postedAt, &voidedAt,
		&createdAt); err != nil {
		return nil, err
	}

	var err error
	if inv.Date, err = parseDate(date); err != nil {
		return nil, fmt.Errorf("parsing date %q: %w", date, err)
	}
	if inv.DueDate, err = scanDate(dueDate); err != nil {
		return nil, fmt.Errorf("parsing due_date: %w", err)
	}
	if inv.LastPaymentDate, err = scanDate(lastPayment); err != nil {
		return nil, fmt.Errorf("parsing last_payment_date: %w", err)
	}
	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&inv.UntaxedAmount, untaxed},
		{&inv.TaxAmount, tax},
		{&inv.TotalAmount, total},
		{&inv.PaidAmount, paid},
	} {
		if *f.dst, err = decimal.NewFromString(f.src); err != nil {
			return nil, fmt.Errorf("parsing amount %q: %w", f.src, err)
		}
	}
	if inv.VerifiedAt, err = scanTime(verifiedAt); err != nil {
		return nil, fmt.Errorf("parsing verified_at: %w", err)
	}
	if inv.PostedAt, err = scanTime(postedAt); err != nil {
		return nil, fmt.Errorf("parsing posted_at: %w", err)
	}
	if inv.VoidedAt, err = scanTime(voidedAt); err != nil {
		return nil, fmt.Errorf("parsing voided_at: %w", err)
	}
	if inv.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at %q: %w", createdAt, err)
	}

	inv.Type = model.InvoiceType(typ)
	inv.PaymentStatus = model.PaymentStatus(payStatus)
	inv.AccountID = accountID.String
	inv.Status = model.InvoiceStatus(status)
	inv.JournalEntryID = journalID.String
	return &inv, nil
}
