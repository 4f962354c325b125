// Package filing encodes invoice rows into the tax authority's fixed-width
// media filing format: 81-byte records, no delimiters, no line breaks.
package filing

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/taxledger/internal/apperr"
	"github.com/cleared-dev/taxledger/internal/id"
	"github.com/cleared-dev/taxledger/internal/model"
	"github.com/cleared-dev/taxledger/internal/normalize"
)

// RecordLen is the byte length of one record.
const RecordLen = 81

// Format codes.
const (
	CodePurchase       = "21"
	CodePurchaseReturn = "23"
	CodeSales          = "31"
	CodeSalesReturn    = "33"
)

// Options identifies the filing company and numbers the batch.
type Options struct {
	CompanyTaxID  string // 8 digits
	BranchCode    string // 1 digit, defaults to "0"
	StartSequence int    // first sequence number, defaults to 1
	Period        string // RRRMM; empty takes each row's invoice month
}

// field is one fixed-width slot of a record.
type field struct {
	name  string
	width int
}

var layout = []field{
	{"format_code", 2},
	{"tax_registration", 9},
	{"sequence", 7},
	{"period", 5},
	{"buyer_tax_id", 8},
	{"seller_tax_id", 8},
	{"invoice_number", 10},
	{"untaxed_amount", 12},
	{"tax_category", 1},
	{"tax_amount", 10},
	{"deduction_code", 1},
	{"aggregation_flag", 1},
	{"customs_flag", 1},
	{"reserved", 6},
}

// Generate encodes rows into one buffer of len(rows)*RecordLen bytes. The
// first invalid row fails the whole batch.
func Generate(rows []model.TaxFilingRow, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, rows, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write encodes rows to w. Nothing is written if any row is invalid.
func Write(w io.Writer, rows []model.TaxFilingRow, opts Options) error {
	opts, err := opts.withDefaults()
	if err != nil {
		return err
	}

	out := make([]byte, 0, len(rows)*RecordLen)
	for i, row := range rows {
		rec, err := encode(row, opts.StartSequence+i, opts)
		if err != nil {
			return err
		}
		out = append(out, rec...)
	}
	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("writing filing records: %w", err)
	}
	return nil
}

func (o Options) withDefaults() (Options, error) {
	if o.BranchCode == "" {
		o.BranchCode = "0"
	}
	if o.StartSequence == 0 {
		o.StartSequence = 1
	}
	if !id.ValidTaxID(o.CompanyTaxID) {
		return o, apperr.Validation(apperr.ErrMalformedRow,
			apperr.FieldError{Field: "company_tax_id", Message: fmt.Sprintf("%q is not an 8-digit tax id", o.CompanyTaxID)})
	}
	if len(o.BranchCode) != 1 || !digits(o.BranchCode) {
		return o, apperr.Validation(apperr.ErrMalformedRow,
			apperr.FieldError{Field: "branch_code", Message: fmt.Sprintf("%q is not a single digit", o.BranchCode)})
	}
	if o.StartSequence < 1 {
		return o, apperr.Validation(apperr.ErrMalformedRow,
			apperr.FieldError{Field: "start_sequence", Message: "must be at least 1"})
	}
	if o.Period != "" && (len(o.Period) != 5 || !digits(o.Period)) {
		return o, apperr.Validation(apperr.ErrMalformedRow,
			apperr.FieldError{Field: "period", Message: fmt.Sprintf("%q is not RRRMM", o.Period)})
	}
	return o, nil
}

// recordEncoder fills one record field by field and remembers the first
// failure.
type recordEncoder struct {
	buf    []byte
	record int
	next   int // index into layout
	err    error
}

func (e *recordEncoder) fail(sentinel error, msg string, args ...any) {
	if e.err != nil {
		return
	}
	e.err = apperr.Validation(sentinel, apperr.FieldError{
		Field:   fmt.Sprintf("record %d %s", e.record, layout[e.next].name),
		Message: fmt.Sprintf(msg, args...),
	})
}

// text left-justifies s in the next field, padding with spaces.
func (e *recordEncoder) text(s string) {
	f := layout[e.next]
	switch {
	case len(s) > f.width:
		e.fail(apperr.ErrFieldOverflow, "%q is longer than %d bytes", s, f.width)
	case !printableASCII(s):
		e.fail(apperr.ErrMalformedRow, "%q is not printable ASCII", s)
	}
	e.buf = append(e.buf, s...)
	e.buf = append(e.buf, bytes.Repeat([]byte{' '}, max(f.width-len(s), 0))...)
	e.next++
}

// partyTaxID writes a counterparty tax id, blank for consumers.
func (e *recordEncoder) partyTaxID(s string) {
	if s != "" && !id.ValidTaxID(s) {
		e.fail(apperr.ErrMalformedRow, "counterparty tax id %q is not 8 digits", s)
	}
	e.text(s)
}

// number right-justifies n in the next field, padding with zeros.
func (e *recordEncoder) number(n decimal.Decimal) {
	f := layout[e.next]
	if !n.Equal(n.Truncate(0)) {
		e.fail(apperr.ErrMalformedRow, "%s is not a whole amount", n)
	} else if n.IsNegative() {
		e.fail(apperr.ErrMalformedRow, "%s is negative", n)
	}
	s := n.Truncate(0).Abs().String()
	if len(s) > f.width {
		e.fail(apperr.ErrFieldOverflow, "%s does not fit in %d digits", s, f.width)
	}
	e.buf = append(e.buf, bytes.Repeat([]byte{'0'}, max(f.width-len(s), 0))...)
	e.buf = append(e.buf, s...)
	e.next++
}

func encode(row model.TaxFilingRow, seq int, opts Options) ([]byte, error) {
	e := &recordEncoder{buf: make([]byte, 0, RecordLen), record: seq}

	purchase, negative := row.Type == model.InvoiceInput, row.UntaxedAmount.IsNegative() || row.TotalAmount.IsNegative()
	if !row.Type.Valid() {
		e.fail(apperr.ErrMalformedRow, "unknown invoice type %q", row.Type)
	}

	// 1 format code
	code := row.FormatCode
	if code == "" {
		switch {
		case purchase && negative:
			code = CodePurchaseReturn
		case purchase:
			code = CodePurchase
		case negative:
			code = CodeSalesReturn
		default:
			code = CodeSales
		}
	}
	if !digits(code) {
		e.fail(apperr.ErrMalformedRow, "format code %q is not numeric", code)
	}
	e.text(code)

	// 2 tax registration number, 3 sequence
	e.text(opts.CompanyTaxID + opts.BranchCode)
	e.number(decimal.NewFromInt(int64(seq)))

	// 4 period
	period := opts.Period
	if period == "" {
		d, err := time.Parse(normalize.ISODate, row.Date)
		if err != nil {
			e.fail(apperr.ErrMalformedRow, "invoice date %q is not YYYY-MM-DD", row.Date)
		} else if y := normalize.ToROCYear(d); y < 1 || y > 999 {
			e.fail(apperr.ErrMalformedRow, "invoice date %s is outside the ROC calendar", row.Date)
		} else {
			period = normalize.ROCPeriod(d)
		}
	}
	e.text(period)

	// 5, 6 buyer and seller tax ids, or range end and count for summaries
	_, serial, numErr := id.ParseInvoiceNumber(row.Number)
	if row.SummaryCount > 0 {
		_, end, err := id.ParseInvoiceNumber(row.RangeEndNumber)
		if err != nil {
			e.fail(apperr.ErrMalformedRow, "summary range end: %v", err)
		} else if numErr == nil && end < serial {
			e.fail(apperr.ErrMalformedRow, "range end %s before start %s", row.RangeEndNumber, row.Number)
		}
		e.text(end)
		e.number(decimal.NewFromInt(int64(row.SummaryCount)))
	} else {
		if purchase {
			e.text(opts.CompanyTaxID)
			e.partyTaxID(row.CounterpartyTaxID)
		} else {
			e.partyTaxID(row.CounterpartyTaxID)
			e.text(opts.CompanyTaxID)
		}
	}

	// 7 invoice number
	if numErr != nil {
		e.fail(apperr.ErrMalformedRow, "%v", numErr)
	}
	e.text(row.Number)

	// 8 untaxed amount, 9 tax category, 10 tax amount
	e.number(row.UntaxedAmount.Abs())
	category := row.TaxCategory
	if category == "" {
		category = model.TaxTaxable
	}
	switch category {
	case model.TaxTaxable, model.TaxZeroRated, model.TaxExempt:
	default:
		e.fail(apperr.ErrMalformedRow, "unknown tax category %q", category)
	}
	e.text(string(category))
	e.number(row.TaxAmount.Abs())

	// 11 deduction code, purchases only
	deduction := " "
	if purchase {
		deduction = row.DeductionCode
		if deduction == "" {
			deduction = "1"
		}
		if deduction < "1" || deduction > "4" || len(deduction) != 1 {
			e.fail(apperr.ErrMalformedRow, "deduction code %q is not 1-4", deduction)
		}
	}
	e.text(deduction)

	// 12 aggregation flag
	if row.SummaryCount > 0 {
		e.text("A")
	} else {
		e.text(" ")
	}

	// 13 customs clearance, zero-rated only
	customs := " "
	if category == model.TaxZeroRated {
		customs = row.CustomsClearance
		if customs == "" {
			customs = "1"
		}
		if customs != "1" && customs != "2" {
			e.fail(apperr.ErrMalformedRow, "customs flag %q is not 1 or 2", customs)
		}
	}
	e.text(customs)

	// 14 reserved
	e.text("")

	if e.err != nil {
		return nil, e.err
	}
	if len(e.buf) != RecordLen {
		return nil, apperr.DataIntegrity(apperr.ErrFieldOverflow, "record %d encoded to %d bytes", seq, len(e.buf))
	}
	return e.buf, nil
}

// Records splits an encoded buffer into its records.
func Records(buf []byte) ([]string, error) {
	if len(buf)%RecordLen != 0 {
		return nil, fmt.Errorf("filing buffer of %d bytes is not a whole number of %d-byte records", len(buf), RecordLen)
	}
	out := make([]string, 0, len(buf)/RecordLen)
	for i := 0; i < len(buf); i += RecordLen {
		out = append(out, string(buf[i:i+RecordLen]))
	}
	return out, nil
}

// Field returns the named field of one record, or "" if there is none.
func Field(record, name string) string {
	pos := 0
	for _, f := range layout {
		if f.name == name {
			if pos+f.width > len(record) {
				return ""
			}
			return record[pos : pos+f.width]
		}
		pos += f.width
	}
	return ""
}

func digits(s string) bool {
	if s == "" {
		return false
	}
	return strings.Trim(s, "0123456789") == ""
}

func printableASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	return true
}
