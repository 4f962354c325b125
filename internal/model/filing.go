package model

import "github.com/shopspring/decimal"

// TaxCategory is the VAT treatment of a filed invoice.
type TaxCategory string

const (
	TaxTaxable   TaxCategory = "1"
	TaxZeroRated TaxCategory = "2"
	TaxExempt    TaxCategory = "3"
)

// TaxFilingRow is the normalized unit exchanged with the tax authority's files.
// It is transient: the importer produces it, the exporter consumes it.
type TaxFilingRow struct {
	SourceRow         int // spreadsheet row number, 0 when not imported
	Number            string
	Type              InvoiceType
	Date              string // ISO YYYY-MM-DD
	UntaxedAmount     decimal.Decimal
	TaxAmount         decimal.Decimal
	TotalAmount       decimal.Decimal
	CounterpartyName  string
	CounterpartyTaxID string
	Description       string
	TaxCategory       TaxCategory // empty means taxable

	// Export-only details; zero values select the defaults.
	FormatCode       string // overrides the code derived from Type and sign
	DeductionCode    string // purchases only, defaults to "1"
	CustomsClearance string // zero-rated only: "1" not via customs, "2" via customs
	SummaryCount     int    // >0 marks a summarized record covering this many invoices
	RangeEndNumber   string // last invoice number of a summarized record

	// Classifier suggestion attached during import.
	AccountCode       string
	AccountConfidence decimal.Decimal
}
