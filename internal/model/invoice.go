package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceType distinguishes sales from purchase invoices.
type InvoiceType string

const (
	InvoiceOutput InvoiceType = "OUTPUT" // sales
	InvoiceInput  InvoiceType = "INPUT"  // purchase
)

// Valid reports whether t is OUTPUT or INPUT.
func (t InvoiceType) Valid() bool {
	return t == InvoiceOutput || t == InvoiceInput
}

// InvoiceStatus is the invoice lifecycle state.
type InvoiceStatus string

const (
	InvoiceDraft    InvoiceStatus = "DRAFT"
	InvoiceVerified InvoiceStatus = "VERIFIED"
	InvoicePosted   InvoiceStatus = "POSTED"
	InvoiceVoided   InvoiceStatus = "VOIDED"
)

// PaymentStatus is derived from paid amount, total and due date.
type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "UNPAID"
	PaymentPartial PaymentStatus = "PARTIAL"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentOverdue PaymentStatus = "OVERDUE"
)

// Invoice is a billing document issued (OUTPUT) or received (INPUT) by a company.
type Invoice struct {
	ID                string
	CompanyID         string
	Type              InvoiceType
	Number            string // track + number, e.g. "AB12345678"
	Date              time.Time
	DueDate           time.Time // zero when no due date was agreed
	UntaxedAmount     decimal.Decimal
	TaxAmount         decimal.Decimal
	TotalAmount       decimal.Decimal
	PaidAmount        decimal.Decimal
	PaymentStatus     PaymentStatus
	LastPaymentDate   time.Time
	CounterpartyName  string
	CounterpartyTaxID string
	Description       string
	AccountID         string // empty until chosen or suggested
	Status            InvoiceStatus
	JournalEntryID    string // set when posted
	VerifiedAt        time.Time
	PostedAt          time.Time
	VoidedAt          time.Time
	CreatedAt         time.Time
}

// AmountsConsistent reports whether total == untaxed + tax.
func (inv Invoice) AmountsConsistent() bool {
	return inv.TotalAmount.Equal(inv.UntaxedAmount.Add(inv.TaxAmount))
}

// DerivePaymentStatus computes the payment status as of now.
func (inv Invoice) DerivePaymentStatus(now time.Time) PaymentStatus {
	switch {
	case inv.PaidAmount.GreaterThanOrEqual(inv.TotalAmount) && inv.PaidAmount.IsPositive():
		return PaymentPaid
	case !inv.DueDate.IsZero() && now.After(endOfDay(inv.DueDate)):
		return PaymentOverdue
	case inv.PaidAmount.IsPositive():
		return PaymentPartial
	default:
		return PaymentUnpaid
	}
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, t.Location())
}
