package filing

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/taxledger/internal/apperr"
	"github.com/cleared-dev/taxledger/internal/model"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var opts = Options{CompanyTaxID: "24549210"}

func purchaseRow() model.TaxFilingRow {
	return model.TaxFilingRow{
		Number:            "AB12345678",
		Type:              model.InvoiceInput,
		Date:              "2024-12-15",
		UntaxedAmount:     dec("20000"),
		TaxAmount:         dec("1000"),
		TotalAmount:       dec("21000"),
		CounterpartyTaxID: "12345678",
	}
}

func salesRow() model.TaxFilingRow {
	return model.TaxFilingRow{
		Number:            "CD00000001",
		Type:              model.InvoiceOutput,
		Date:              "2024-11-03",
		UntaxedAmount:     dec("10000"),
		TaxAmount:         dec("500"),
		TotalAmount:       dec("10500"),
		CounterpartyTaxID: "87654321",
	}
}

func TestGenerate_PurchaseRecord(t *testing.T) {
	buf, err := Generate([]model.TaxFilingRow{purchaseRow()}, opts)
	require.NoError(t, err)
	require.Len(t, buf, 81)

	// 1-based inclusive positions 50-61 and 62.
	assert.Equal(t, "000000020000", string(buf[49:61]))
	assert.Equal(t, byte('1'), buf[61])

	want := "21" + "245492100" + "0000001" + "11312" + "24549210" + "12345678" +
		"AB12345678" + "000000020000" + "1" + "0000001000" + "1" + " " + " " + "      "
	assert.Equal(t, want, string(buf))
}

func TestGenerate_SalesRecord(t *testing.T) {
	buf, err := Generate([]model.TaxFilingRow{salesRow()}, Options{CompanyTaxID: "24549210", BranchCode: "3", StartSequence: 42})
	require.NoError(t, err)
	rec := string(buf)

	assert.Equal(t, "31", Field(rec, "format_code"))
	assert.Equal(t, "245492103", Field(rec, "tax_registration"))
	assert.Equal(t, "0000042", Field(rec, "sequence"))
	assert.Equal(t, "11311", Field(rec, "period"))
	assert.Equal(t, "87654321", Field(rec, "buyer_tax_id"))
	assert.Equal(t, "24549210", Field(rec, "seller_tax_id"))
	assert.Equal(t, " ", Field(rec, "deduction_code"), "sales records carry no deduction code")
}

func TestGenerate_ConsumerSaleBlankBuyer(t *testing.T) {
	row := salesRow()
	row.CounterpartyTaxID = ""
	buf, err := Generate([]model.TaxFilingRow{row}, opts)
	require.NoError(t, err)
	assert.Equal(t, "        ", Field(string(buf), "buyer_tax_id"))
}

func TestGenerate_CreditNotes(t *testing.T) {
	p := purchaseRow()
	p.UntaxedAmount, p.TaxAmount, p.TotalAmount = dec("-2000"), dec("-100"), dec("-2100")
	s := salesRow()
	s.UntaxedAmount, s.TaxAmount, s.TotalAmount = dec("-2000"), dec("-100"), dec("-2100")

	buf, err := Generate([]model.TaxFilingRow{p, s}, opts)
	require.NoError(t, err)
	recs, err := Records(buf)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, CodePurchaseReturn, Field(recs[0], "format_code"))
	assert.Equal(t, "000000002000", Field(recs[0], "untaxed_amount"))
	assert.Equal(t, "0000000100", Field(recs[0], "tax_amount"))
	assert.Equal(t, CodeSalesReturn, Field(recs[1], "format_code"))
	assert.Equal(t, "0000002", Field(recs[1], "sequence"))
}

func TestGenerate_FormatCodeOverride(t *testing.T) {
	row := purchaseRow()
	row.FormatCode = "22"
	buf, err := Generate([]model.TaxFilingRow{row}, opts)
	require.NoError(t, err)
	assert.Equal(t, "22", Field(string(buf), "format_code"))
}

func TestGenerate_Summary(t *testing.T) {
	row := salesRow()
	row.SummaryCount = 25
	row.RangeEndNumber = "CD00000025"
	buf, err := Generate([]model.TaxFilingRow{row}, opts)
	require.NoError(t, err)
	rec := string(buf)
	assert.Equal(t, "00000025", Field(rec, "buyer_tax_id"))
	assert.Equal(t, "00000025", Field(rec, "seller_tax_id"))
	assert.Equal(t, "A", Field(rec, "aggregation_flag"))
}

func TestGenerate_ZeroRatedCustoms(t *testing.T) {
	row := salesRow()
	row.TaxCategory = model.TaxZeroRated
	row.TaxAmount, row.TotalAmount = dec("0"), dec("10000")
	row.CustomsClearance = "2"
	buf, err := Generate([]model.TaxFilingRow{row}, opts)
	require.NoError(t, err)
	assert.Equal(t, "2", Field(string(buf), "tax_category"))
	assert.Equal(t, "2", Field(string(buf), "customs_flag"))

	row.TaxCategory = model.TaxTaxable
	buf, err = Generate([]model.TaxFilingRow{row}, opts)
	require.NoError(t, err)
	assert.Equal(t, " ", Field(string(buf), "customs_flag"), "customs flag only for zero-rated")
}

func TestGenerate_Overflow(t *testing.T) {
	row := purchaseRow()
	row.UntaxedAmount = dec("1000000000000") // 13 digits
	_, err := Generate([]model.TaxFilingRow{row}, opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrFieldOverflow))
	assert.True(t, apperr.IsValidation(err))
	assert.Contains(t, err.Error(), "record 1 untaxed_amount")

	row = purchaseRow()
	row.TaxAmount = dec("99999999999")
	_, err = Generate([]model.TaxFilingRow{row}, opts)
	assert.True(t, errors.Is(err, apperr.ErrFieldOverflow))
}

func TestGenerate_SequenceOverflow(t *testing.T) {
	_, err := Generate([]model.TaxFilingRow{purchaseRow()}, Options{CompanyTaxID: "24549210", StartSequence: 10000000})
	assert.True(t, errors.Is(err, apperr.ErrFieldOverflow))
}

func TestGenerate_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*model.TaxFilingRow)
		field  string
	}{
		{"number", func(r *model.TaxFilingRow) { r.Number = "AB123" }, "invoice_number"},
		{"date", func(r *model.TaxFilingRow) { r.Date = "113/12/15" }, "period"},
		{"fraction", func(r *model.TaxFilingRow) { r.UntaxedAmount = dec("10.5") }, "untaxed_amount"},
		{"party", func(r *model.TaxFilingRow) { r.CounterpartyTaxID = "1234" }, "seller_tax_id"},
		{"category", func(r *model.TaxFilingRow) { r.TaxCategory = "9" }, "tax_category"},
		{"deduction", func(r *model.TaxFilingRow) { r.DeductionCode = "7" }, "deduction_code"},
		{"type", func(r *model.TaxFilingRow) { r.Type = "X" }, "format_code"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := purchaseRow()
			tt.modify(&row)
			_, err := Generate([]model.TaxFilingRow{row}, opts)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperr.ErrMalformedRow), err.Error())
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestGenerate_BadOptions(t *testing.T) {
	for _, o := range []Options{
		{CompanyTaxID: "123"},
		{CompanyTaxID: "24549210", BranchCode: "12"},
		{CompanyTaxID: "24549210", Period: "2024-12"},
	} {
		_, err := Generate([]model.TaxFilingRow{purchaseRow()}, o)
		assert.True(t, errors.Is(err, apperr.ErrMalformedRow), "%+v", o)
	}
}

func TestGenerate_PeriodOverride(t *testing.T) {
	o := opts
	o.Period = "11401"
	buf, err := Generate([]model.TaxFilingRow{purchaseRow()}, o)
	require.NoError(t, err)
	assert.Equal(t, "11401", Field(string(buf), "period"))
}

func TestWrite_NothingOnError(t *testing.T) {
	bad := purchaseRow()
	bad.Number = "bad"
	var buf bytes.Buffer
	err := Write(&buf, []model.TaxFilingRow{purchaseRow(), bad}, opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record 2")
	assert.Zero(t, buf.Len())
}

func TestGenerate_Empty(t *testing.T) {
	buf, err := Generate(nil, opts)
	require.NoError(t, err)
	assert.Empty(t, buf)
}

func TestRecords_Partial(t *testing.T) {
	_, err := Records([]byte(strings.Repeat(" ", 80)))
	assert.Error(t, err)
}

func TestLayoutWidth(t *testing.T) {
	total := 0
	for _, f := range layout {
		total += f.width
	}
	assert.Equal(t, RecordLen, total)
}
