package importer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/taxledger/internal/id"
	"github.com/cleared-dev/taxledger/internal/model"
	"github.com/cleared-dev/taxledger/internal/normalize"
)

// Mode is the kind of export a sheet was recognized as.
type Mode string

const (
	ModePurchase Mode = "purchase" // rows become INPUT invoices
	ModeSales    Mode = "sales"    // rows become OUTPUT invoices
	ModeStandard Mode = "standard" // unrecognized; callers must reject
)

// RowError is a non-fatal problem with one spreadsheet row.
type RowError struct {
	Row     int // spreadsheet row number; the header is row 1
	Column  string
	Message string
}

func (e RowError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("row %d: %s", e.Row, e.Message)
	}
	return fmt.Sprintf("row %d [%s]: %s", e.Row, e.Column, e.Message)
}

// Suggester proposes an account for a parsed row.
type Suggester interface {
	Suggest(typ model.InvoiceType, description, counterparty string) (code string, confidence decimal.Decimal, ok bool)
}

// Options tunes Parse. The zero value is usable.
type Options struct {
	Suggester Suggester
}

// Result is the outcome of parsing one sheet.
type Result struct {
	Mode   Mode
	Data   []model.TaxFilingRow
	Errors []RowError
	// Skipped counts rows left out on purpose, such as voided invoices.
	Skipped int
}

// Parse normalizes the rows of one sheet. Row problems never abort the
// batch: they are collected in Errors and the row is left out of Data.
// Every row of a duplicated invoice number is left out.
func Parse(rows []map[string]any, headers []string, opts Options) Result {
	cols := resolveColumns(headers)

	res := Result{Mode: ModeStandard}
	var typ model.InvoiceType
	var partyID, partyName Field
	switch {
	case cols.has(FieldSellerTaxID):
		res.Mode, typ, partyID, partyName = ModePurchase, model.InvoiceInput, FieldSellerTaxID, FieldSellerName
	case cols.has(FieldBuyerTaxID):
		res.Mode, typ, partyID, partyName = ModeSales, model.InvoiceOutput, FieldBuyerTaxID, FieldBuyerName
	default:
		return res
	}

	for _, f := range []Field{FieldNumber, FieldDate} {
		if !cols.has(f) {
			res.Errors = append(res.Errors, RowError{Row: 1, Column: f.String(), Message: "required column missing"})
		}
	}
	if !cols.has(FieldUntaxed) && !cols.has(FieldTotal) {
		res.Errors = append(res.Errors, RowError{Row: 1, Column: FieldUntaxed.String(), Message: "need an untaxed or total amount column"})
	}
	if len(res.Errors) > 0 {
		return res
	}

	p := rowParser{cols: cols, typ: typ, partyID: partyID, partyName: partyName}
	var parsed []model.TaxFilingRow
	var numbers []numberedRow
	for i, raw := range rows {
		rowNum := i + 2
		if p.voided(raw) {
			res.Skipped++
			continue
		}
		row, errs := p.parse(raw, rowNum)
		if row.Number != "" {
			numbers = append(numbers, numberedRow{row: rowNum, number: row.Number})
		}
		if len(errs) > 0 {
			res.Errors = append(res.Errors, errs...)
			continue
		}
		if opts.Suggester != nil {
			if code, conf, ok := opts.Suggester.Suggest(row.Type, row.Description, row.CounterpartyName); ok {
				row.AccountCode, row.AccountConfidence = code, conf
			}
		}
		parsed = append(parsed, row)
	}

	data, dupErrs := dropDuplicates(parsed, numbers, cols[FieldNumber])
	res.Data = data
	res.Errors = append(res.Errors, dupErrs...)
	sort.SliceStable(res.Errors, func(i, j int) bool { return res.Errors[i].Row < res.Errors[j].Row })
	return res
}

type rowParser struct {
	cols      columns
	typ       model.InvoiceType
	partyID   Field
	partyName Field
}

func (p rowParser) value(raw map[string]any, f Field) any {
	if !p.cols.has(f) {
		return nil
	}
	return raw[p.cols[f]]
}

func (p rowParser) text(raw map[string]any, f Field) string {
	switch v := p.value(raw, f).(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func (p rowParser) blank(raw map[string]any, f Field) bool {
	return p.text(raw, f) == ""
}

func (p rowParser) voided(raw map[string]any) bool {
	s := strings.ToLower(p.text(raw, FieldInvoiceStatus))
	return s == "作廢" || s == "void" || s == "voided"
}

func (p rowParser) parse(raw map[string]any, rowNum int) (model.TaxFilingRow, []RowError) {
	var errs []RowError
	fail := func(f Field, format string, args ...any) {
		errs = append(errs, RowError{Row: rowNum, Column: p.cols[f], Message: fmt.Sprintf(format, args...)})
	}

	row := model.TaxFilingRow{
		SourceRow:         rowNum,
		Type:              p.typ,
		CounterpartyName:  p.text(raw, p.partyName),
		CounterpartyTaxID: p.text(raw, p.partyID),
		Description:       p.text(raw, FieldDescription),
	}

	row.Number = id.NormalizeInvoiceNumber(p.text(raw, FieldNumber))
	if row.Number == "" {
		fail(FieldNumber, "missing invoice number")
	} else if _, _, err := id.ParseInvoiceNumber(row.Number); err != nil {
		fail(FieldNumber, "%v", err)
	}

	if p.blank(raw, FieldDate) {
		fail(FieldDate, "missing date")
	} else if d, ok := normalize.ParseDate(p.value(raw, FieldDate)); !ok {
		fail(FieldDate, "unparseable date %q", p.text(raw, FieldDate))
	} else {
		row.Date = d.Format(normalize.ISODate)
	}

	if row.CounterpartyTaxID != "" && !id.ValidTaxID(row.CounterpartyTaxID) {
		fail(p.partyID, "%q is not an 8-digit tax id", row.CounterpartyTaxID)
	}

	cat, ok := taxCategory(p.text(raw, FieldTaxCategory))
	if !ok {
		fail(FieldTaxCategory, "unknown tax category %q", p.text(raw, FieldTaxCategory))
	}
	row.TaxCategory = cat

	hasUntaxed, hasTotal := !p.blank(raw, FieldUntaxed), !p.blank(raw, FieldTotal)
	row.UntaxedAmount = normalize.ParseAmount(p.value(raw, FieldUntaxed))
	row.TaxAmount = normalize.ParseAmount(p.value(raw, FieldTax))
	row.TotalAmount = normalize.ParseAmount(p.value(raw, FieldTotal))
	switch {
	case !hasUntaxed && !hasTotal:
		fail(FieldUntaxed, "missing amount")
	case !hasTotal:
		row.TotalAmount = row.UntaxedAmount.Add(row.TaxAmount)
	case !hasUntaxed:
		row.UntaxedAmount = row.TotalAmount.Sub(row.TaxAmount)
	case !row.TotalAmount.Equal(row.UntaxedAmount.Add(row.TaxAmount)):
		fail(FieldTotal, "total %s != untaxed %s + tax %s", row.TotalAmount, row.UntaxedAmount, row.TaxAmount)
	}

	return row, errs
}

func taxCategory(s string) (model.TaxCategory, bool) {
	switch strings.ToLower(s) {
	case "", "1", "應稅", "taxable":
		return model.TaxTaxable, true
	case "2", "零稅率", "zero-rated", "zero rated":
		return model.TaxZeroRated, true
	case "3", "免稅", "exempt":
		return model.TaxExempt, true
	}
	return "", false
}

type numberedRow struct {
	row    int
	number string
}

// dropDuplicates removes every row whose number appears more than once among
// all non-voided rows, valid or not, and reports each colliding row.
func dropDuplicates(rows []model.TaxFilingRow, numbers []numberedRow, column string) ([]model.TaxFilingRow, []RowError) {
	byNumber := make(map[string][]int)
	for _, n := range numbers {
		byNumber[n.number] = append(byNumber[n.number], n.row)
	}

	var errs []RowError
	for _, n := range numbers {
		group := byNumber[n.number]
		if len(group) == 1 {
			continue
		}
		nums := make([]string, len(group))
		for i, r := range group {
			nums[i] = fmt.Sprintf("%d", r)
		}
		errs = append(errs, RowError{
			Row:     n.row,
			Column:  column,
			Message: fmt.Sprintf("duplicate invoice number %s (rows %s)", n.number, strings.Join(nums, ", ")),
		})
	}

	var out []model.TaxFilingRow
	for _, r := range rows {
		if len(byNumber[r.Number]) == 1 {
			out = append(out, r)
		}
	}
	return out, errs
}
