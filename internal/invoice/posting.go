package invoice

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/taxledger/internal/accounts"
	"github.com/cleared-dev/taxledger/internal/apperr"
	"github.com/cleared-dev/taxledger/internal/model"
)

// PostingAccounts names the control accounts an invoice posting uses
// besides its own revenue or expense account.
type PostingAccounts struct {
	Receivable string `yaml:"receivable"`
	OutputTax  string `yaml:"output_tax"`
	Payable    string `yaml:"payable"`
	InputTax   string `yaml:"input_tax"`
}

// DefaultPostingAccounts matches the codes of the default chart.
func DefaultPostingAccounts() PostingAccounts {
	return PostingAccounts{
		Receivable: "1101",
		OutputTax:  "2201",
		Payable:    "2101",
		InputTax:   "1150",
	}
}

type leg struct {
	accountID string
	amount    decimal.Decimal
	debit     bool
}

// Lines builds the journal lines for posting inv against accountID, the
// invoice's revenue (OUTPUT) or expense (INPUT) account.
//
//	OUTPUT: Dr receivable total, Cr revenue untaxed, Cr output tax tax
//	INPUT:  Dr expense untaxed, Dr input tax tax, Cr payable total
//
// Zero amounts produce no line. A negative amount (credit note) moves its
// line to the opposite side with the absolute amount.
func (p PostingAccounts) Lines(inv *model.Invoice, accountID string, chart *accounts.Service) ([]model.Line, error) {
	var legs []leg
	switch inv.Type {
	case model.InvoiceOutput:
		recv, err := control(chart, "receivable", p.Receivable)
		if err != nil {
			return nil, err
		}
		tax, err := control(chart, "output tax", p.OutputTax)
		if err != nil {
			return nil, err
		}
		legs = []leg{
			{recv, inv.TotalAmount, true},
			{accountID, inv.UntaxedAmount, false},
			{tax, inv.TaxAmount, false},
		}
	case model.InvoiceInput:
		tax, err := control(chart, "input tax", p.InputTax)
		if err != nil {
			return nil, err
		}
		pay, err := control(chart, "payable", p.Payable)
		if err != nil {
			return nil, err
		}
		legs = []leg{
			{accountID, inv.UntaxedAmount, true},
			{tax, inv.TaxAmount, true},
			{pay, inv.TotalAmount, false},
		}
	default:
		return nil, apperr.Validation(apperr.ErrInvalidInvoice, apperr.FieldError{Field: "type", Message: fmt.Sprintf("unknown type %q", inv.Type)})
	}

	desc := inv.Description
	if desc == "" {
		desc = fmt.Sprintf("Invoice %s %s", inv.Number, inv.CounterpartyName)
	}

	var lines []model.Line
	for _, l := range legs {
		if l.amount.IsZero() {
			continue
		}
		debit := l.debit
		if l.amount.IsNegative() {
			debit = !debit
		}
		line := model.Line{AccountID: l.accountID, Description: desc}
		if debit {
			line.Debit = l.amount.Abs()
		} else {
			line.Credit = l.amount.Abs()
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func control(chart *accounts.Service, role, code string) (string, error) {
	a, ok := chart.ByCode(code)
	if !ok || !a.IsActive {
		return "", apperr.Validation(apperr.ErrInvalidAccount,
			apperr.FieldError{Field: "posting." + role, Message: fmt.Sprintf("account %q is not an active account of this company", code)})
	}
	return a.ID, nil
}
