package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/taxledger/internal/accounts"
	"github.com/cleared-dev/taxledger/internal/apperr"
	"github.com/cleared-dev/taxledger/internal/classifier"
	"github.com/cleared-dev/taxledger/internal/filing"
	"github.com/cleared-dev/taxledger/internal/importer"
	"github.com/cleared-dev/taxledger/internal/invoice"
	"github.com/cleared-dev/taxledger/internal/model"
	"github.com/cleared-dev/taxledger/internal/normalize"
	"github.com/cleared-dev/taxledger/internal/store"
)

// suggester adapts the classifier to the importer, against one company's
// active accounts.
type suggester struct {
	cls    *classifier.Classifier
	active []model.Account
}

func (s suggester) Suggest(typ model.InvoiceType, description, counterparty string) (string, decimal.Decimal, bool) {
	sug, ok := s.cls.Classify(s.active, typ, description, counterparty)
	if !ok {
		return "", decimal.Zero, false
	}
	return sug.AccountCode, sug.Confidence, true
}

// ImportTaxFilingRows parses one sheet of an authority export. Row problems
// come back in the result; a sheet whose kind cannot be recognized fails with
// ErrUnrecognizedSheet. Nothing is written.
func (c *Core) ImportTaxFilingRows(ctx context.Context, companyID string, sheet importer.Sheet) (importer.Result, error) {
	var sug importer.Suggester
	err := c.store.View(ctx, companyID, func(tx *store.Tx) error {
		chart, err := accounts.Load(tx)
		if err != nil {
			return err
		}
		if chart.HasActive() {
			sug = suggester{cls: c.classifier, active: chart.Active()}
		}
		return nil
	})
	if err != nil {
		return importer.Result{}, err
	}

	res := importer.Parse(sheet.Rows, sheet.Headers, importer.Options{
		Suggester: sug,
	})
	if res.Mode == importer.ModeStandard {
		msg := "no seller or buyer tax id column"
		if hint := importer.Hint(sheet.Headers); hint != "" {
			msg += "; " + hint
		}
		return res, apperr.Validation(apperr.ErrUnrecognizedSheet,
			apperr.FieldError{Field: "sheet " + sheet.Name, Message: msg})
	}
	return res, nil
}

// ImportSummary reports what CreateInvoicesFromRows did.
type ImportSummary struct {
	Created []model.Invoice
	Errors  []importer.RowError
}

// CreateInvoicesFromRows records each parsed row as a draft invoice. Every
// row is its own atomic unit: a row the ledger rejects is reported and the
// rest still go in.
func (c *Core) CreateInvoicesFromRows(ctx context.Context, companyID string, rows []model.TaxFilingRow) (*ImportSummary, error) {
	sum := &ImportSummary{}
	for _, row := range rows {
		p, err := createParams(row)
		if err == nil {
			var inv *model.Invoice
			inv, err = c.invoices.Create(ctx, companyID, p)
			if err == nil {
				sum.Created = append(sum.Created, *inv)
				continue
			}
		}
		var verr *apperr.ValidationError
		if !errors.As(err, &verr) {
			return sum, fmt.Errorf("importing invoice %s: %w", row.Number, err)
		}
		re := importer.RowError{Row: row.SourceRow, Message: err.Error()}
		if len(verr.Fields) > 0 {
			re.Column = verr.Fields[0].Field
		}
		sum.Errors = append(sum.Errors, re)
	}
	return sum, nil
}

func createParams(row model.TaxFilingRow) (invoice.CreateParams, error) {
	date, err := time.Parse(normalize.ISODate, row.Date)
	if err != nil {
		return invoice.CreateParams{}, apperr.Validation(apperr.ErrMalformedRow,
			apperr.FieldError{Field: "date", Message: fmt.Sprintf("%q is not a date", row.Date)})
	}
	return invoice.CreateParams{
		Type:              row.Type,
		Number:            row.Number,
		Date:              date,
		UntaxedAmount:     row.UntaxedAmount,
		TaxAmount:         row.TaxAmount,
		TotalAmount:       row.TotalAmount,
		CounterpartyName:  row.CounterpartyName,
		CounterpartyTaxID: row.CounterpartyTaxID,
		Description:       row.Description,
		AccountCode:       row.AccountCode,
	}, nil
}

// ExportTaxFilingFile encodes the company's POSTED invoices dated within the
// RRRMM period as a filing file. opts.Period defaults to period.
func (c *Core) ExportTaxFilingFile(ctx context.Context, companyID, period string, opts filing.Options) ([]byte, error) {
	from, to, err := periodRange(period)
	if err != nil {
		return nil, err
	}

	invs, err := c.invoices.List(ctx, companyID, store.InvoiceFilter{
		Status: model.InvoicePosted,
		From:   from,
		To:     to,
	})
	if err != nil {
		return nil, err
	}

	rows := make([]model.TaxFilingRow, 0, len(invs))
	for _, inv := range invs {
		rows = append(rows, filingRow(inv))
	}
	if opts.Period == "" {
		opts.Period = period
	}
	return c.ExportTaxFilingRows(rows, opts)
}

// ExportTaxFilingRows encodes caller-supplied rows as a filing file.
func (c *Core) ExportTaxFilingRows(rows []model.TaxFilingRow, opts filing.Options) ([]byte, error) {
	return filing.Generate(rows, opts)
}

func filingRow(inv model.Invoice) model.TaxFilingRow {
	return model.TaxFilingRow{
		Number:            inv.Number,
		Type:              inv.Type,
		Date:              inv.Date.Format(normalize.ISODate),
		UntaxedAmount:     inv.UntaxedAmount,
		TaxAmount:         inv.TaxAmount,
		TotalAmount:       inv.TotalAmount,
		CounterpartyName:  inv.CounterpartyName,
		CounterpartyTaxID: inv.CounterpartyTaxID,
		Description:       inv.Description,
	}
}

// periodRange returns the first and last day of an RRRMM month.
func periodRange(period string) (from, to time.Time, err error) {
	if len(period) != 5 {
		return from, to, invalidPeriod(period)
	}
	roc, err1 := strconv.Atoi(period[:3])
	month, err2 := strconv.Atoi(period[3:])
	if err1 != nil || err2 != nil || roc < 1 || month < 1 || month > 12 {
		return from, to, invalidPeriod(period)
	}
	from = time.Date(roc+normalize.ROCOffset, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, -1), nil
}
