package importer

import (
	"fmt"

	"github.com/agnivade/levenshtein"
)

// Field is a logical column of an authority export.
type Field int

const (
	FieldNumber Field = iota
	FieldDate
	FieldSellerTaxID
	FieldBuyerTaxID
	FieldSellerName
	FieldBuyerName
	FieldUntaxed
	FieldTax
	FieldTotal
	FieldDescription
	FieldTaxCategory
	FieldInvoiceStatus
	numFieldKinds
)

var fieldNames = [numFieldKinds]string{
	"number", "date", "seller_tax_id", "buyer_tax_id", "seller_name", "buyer_name",
	"untaxed_amount", "tax_amount", "total_amount", "description", "tax_category", "status",
}

func (f Field) String() string {
	if f < 0 || f >= numFieldKinds {
		return fmt.Sprintf("Field(%d)", int(f))
	}
	return fieldNames[f]
}

// synonyms lists, per field and in preference order, the header names the
// authority's exports and common bookkeeping templates use. Matching is
// case-sensitive.
var synonyms = [numFieldKinds][]string{
	FieldNumber:        {"發票號碼", "發票字軌號碼", "字軌號碼", "Invoice Number", "invoice_number", "number"},
	FieldDate:          {"發票日期", "開立日期", "Invoice Date", "invoice_date", "date"},
	FieldSellerTaxID:   {"賣方統一編號", "賣方統編", "銷售方統一編號", "Seller Tax ID", "seller_tax_id"},
	FieldBuyerTaxID:    {"買方統一編號", "買方統編", "買受人統一編號", "Buyer Tax ID", "buyer_tax_id"},
	FieldSellerName:    {"賣方名稱", "銷售方名稱", "Seller Name", "seller_name"},
	FieldBuyerName:     {"買方名稱", "買受人名稱", "Buyer Name", "buyer_name"},
	FieldUntaxed:       {"銷售額", "未稅金額", "銷售額合計", "Untaxed Amount", "Sales Amount", "untaxed_amount"},
	FieldTax:           {"稅額", "營業稅額", "營業稅", "Tax Amount", "tax_amount"},
	FieldTotal:         {"總計", "總金額", "含稅金額", "Total Amount", "total_amount"},
	FieldDescription:   {"品名", "摘要", "備註", "Description", "description"},
	FieldTaxCategory:   {"課稅別", "Tax Category", "tax_category"},
	FieldInvoiceStatus: {"發票狀態", "Invoice Status", "status"},
}

// columns maps each logical field to the sheet header that carries it.
type columns [numFieldKinds]string

// resolveColumns evaluates the synonym table once against a header row.
func resolveColumns(headers []string) columns {
	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[h] = true
	}
	var cols columns
	for f := Field(0); f < numFieldKinds; f++ {
		for _, name := range synonyms[f] {
			if present[name] {
				cols[f] = name
				break
			}
		}
	}
	return cols
}

func (c columns) has(f Field) bool { return c[f] != "" }

// maxHintDistance bounds how far a header may be from a known name and
// still be suggested.
const maxHintDistance = 3

// Hint suggests which header of an unrecognized sheet was probably meant as
// a seller or buyer tax id column, or returns "".
func Hint(headers []string) string {
	best, bestHeader, bestDist := "", "", maxHintDistance+1
	for _, h := range headers {
		for _, f := range []Field{FieldSellerTaxID, FieldBuyerTaxID} {
			for _, name := range synonyms[f] {
				if d := levenshtein.ComputeDistance(h, name); d < bestDist {
					best, bestHeader, bestDist = name, h, d
				}
			}
		}
	}
	if best == "" {
		return ""
	}
	return fmt.Sprintf("column %q looks like %q", bestHeader, best)
}
