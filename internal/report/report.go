// Package report aggregates posted journal lines into a trial balance, an
// income statement and a balance sheet.
package report

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/taxledger/internal/accounts"
	"github.com/cleared-dev/taxledger/internal/apperr"
	"github.com/cleared-dev/taxledger/internal/id"
	"github.com/cleared-dev/taxledger/internal/model"
	"github.com/cleared-dev/taxledger/internal/store"
)

// TrialBalanceRow is one account's summed debits and credits.
type TrialBalanceRow struct {
	AccountID string
	Code      string
	Name      string
	Category  model.Category
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// Balance returns the row's balance on its category's normal side.
func (r TrialBalanceRow) Balance() decimal.Decimal {
	if r.Category.DebitNormal() {
		return r.Debit.Sub(r.Credit)
	}
	return r.Credit.Sub(r.Debit)
}

// TrialBalance lists every account with posted activity, sorted by code.
type TrialBalance struct {
	AsOf        time.Time
	Rows        []TrialBalanceRow
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
}

// Row returns the row for an account code.
func (tb *TrialBalance) Row(code string) (TrialBalanceRow, bool) {
	for _, r := range tb.Rows {
		if r.Code == code {
			return r, true
		}
	}
	return TrialBalanceRow{}, false
}

// Compute builds a trial balance from ledger lines. Any entry whose lines do
// not balance, and any imbalance of the grand totals, is a data-integrity
// error: no partial figures are returned.
func Compute(lines []store.LedgerLine, chart *accounts.Service, asOf time.Time) (*TrialBalance, error) {
	type entrySum struct {
		number        int64
		debit, credit decimal.Decimal
	}
	var entryOrder []string
	entries := make(map[string]*entrySum)
	rows := make(map[string]*TrialBalanceRow)

	for _, l := range lines {
		es, ok := entries[l.EntryID]
		if !ok {
			es = &entrySum{number: l.JournalNumber}
			entries[l.EntryID] = es
			entryOrder = append(entryOrder, l.EntryID)
		}
		es.debit = es.debit.Add(l.Debit)
		es.credit = es.credit.Add(l.Credit)

		r, ok := rows[l.AccountID]
		if !ok {
			a, found := chart.Get(l.AccountID)
			if !found {
				return nil, apperr.DataIntegrity(apperr.ErrTrialBalanceMismatch,
					"entry %s references unknown account %s", id.FormatJournalNumber(l.JournalNumber), l.AccountID)
			}
			r = &TrialBalanceRow{AccountID: a.ID, Code: a.Code, Name: a.Name, Category: a.Category}
			rows[l.AccountID] = r
		}
		r.Debit = r.Debit.Add(l.Debit)
		r.Credit = r.Credit.Add(l.Credit)
	}

	for _, entryID := range entryOrder {
		es := entries[entryID]
		if !es.debit.Equal(es.credit) {
			return nil, apperr.DataIntegrity(apperr.ErrPostedEntryUnbalanced,
				"posted entry %s: debits %s != credits %s", id.FormatJournalNumber(es.number),
				es.debit.StringFixed(2), es.credit.StringFixed(2))
		}
	}

	tb := &TrialBalance{AsOf: asOf, TotalDebit: decimal.Zero, TotalCredit: decimal.Zero}
	for _, r := range rows {
		tb.Rows = append(tb.Rows, *r)
		tb.TotalDebit = tb.TotalDebit.Add(r.Debit)
		tb.TotalCredit = tb.TotalCredit.Add(r.Credit)
	}
	sort.Slice(tb.Rows, func(i, j int) bool { return tb.Rows[i].Code < tb.Rows[j].Code })

	if !tb.TotalDebit.Equal(tb.TotalCredit) {
		return nil, apperr.DataIntegrity(apperr.ErrTrialBalanceMismatch,
			"as of %s: total debits %s != total credits %s", asOf.Format("2006-01-02"),
			tb.TotalDebit.StringFixed(2), tb.TotalCredit.StringFixed(2))
	}
	return tb, nil
}

// AccountAmount is an account with its net amount for financial reports.
type AccountAmount struct {
	Code   string
	Name   string
	Amount decimal.Decimal
}

// IncomeStatement is revenue less expenses.
type IncomeStatement struct {
	From, To      time.Time // From is zero for a cumulative statement
	Revenue       []AccountAmount
	Expenses      []AccountAmount
	TotalRevenue  decimal.Decimal
	TotalExpenses decimal.Decimal
	NetIncome     decimal.Decimal
}

// IncomeStatementFrom derives a cumulative income statement from tb.
func IncomeStatementFrom(tb *TrialBalance) *IncomeStatement {
	return incomeStatement(tb, nil)
}

// PeriodIncomeStatement derives the income statement for the activity
// between prior (exclusive) and tb (inclusive).
func PeriodIncomeStatement(tb, prior *TrialBalance) *IncomeStatement {
	is := incomeStatement(tb, prior)
	is.From = prior.AsOf.AddDate(0, 0, 1)
	return is
}

func incomeStatement(tb, prior *TrialBalance) *IncomeStatement {
	is := &IncomeStatement{
		To:            tb.AsOf,
		TotalRevenue:  decimal.Zero,
		TotalExpenses: decimal.Zero,
	}
	for _, r := range tb.Rows {
		amount := r.Balance()
		if prior != nil {
			if p, ok := prior.Row(r.Code); ok {
				amount = amount.Sub(p.Balance())
			}
		}
		switch r.Category {
		case model.CategoryRevenue:
			is.Revenue = append(is.Revenue, AccountAmount{Code: r.Code, Name: r.Name, Amount: amount})
			is.TotalRevenue = is.TotalRevenue.Add(amount)
		case model.CategoryExpense:
			is.Expenses = append(is.Expenses, AccountAmount{Code: r.Code, Name: r.Name, Amount: amount})
			is.TotalExpenses = is.TotalExpenses.Add(amount)
		}
	}
	is.NetIncome = is.TotalRevenue.Sub(is.TotalExpenses)
	return is
}

// BalanceSheet is the financial position as of a date. Current earnings
// are the cumulative net income not yet closed to an equity account.
type BalanceSheet struct {
	AsOf             time.Time
	Assets           []AccountAmount
	Liabilities      []AccountAmount
	Equity           []AccountAmount
	TotalAssets      decimal.Decimal
	TotalLiabilities decimal.Decimal
	TotalEquity      decimal.Decimal
	CurrentEarnings  decimal.Decimal
}

// BalanceSheetFrom derives a balance sheet from tb and asserts
// assets == liabilities + equity + current earnings.
func BalanceSheetFrom(tb *TrialBalance) (*BalanceSheet, error) {
	bs := &BalanceSheet{
		AsOf:             tb.AsOf,
		TotalAssets:      decimal.Zero,
		TotalLiabilities: decimal.Zero,
		TotalEquity:      decimal.Zero,
		CurrentEarnings:  IncomeStatementFrom(tb).NetIncome,
	}
	for _, r := range tb.Rows {
		aa := AccountAmount{Code: r.Code, Name: r.Name, Amount: r.Balance()}
		switch r.Category {
		case model.CategoryAsset:
			bs.Assets = append(bs.Assets, aa)
			bs.TotalAssets = bs.TotalAssets.Add(aa.Amount)
		case model.CategoryLiability:
			bs.Liabilities = append(bs.Liabilities, aa)
			bs.TotalLiabilities = bs.TotalLiabilities.Add(aa.Amount)
		case model.CategoryEquity:
			bs.Equity = append(bs.Equity, aa)
			bs.TotalEquity = bs.TotalEquity.Add(aa.Amount)
		}
	}

	rhs := bs.TotalLiabilities.Add(bs.TotalEquity).Add(bs.CurrentEarnings)
	if !bs.TotalAssets.Equal(rhs) {
		return nil, apperr.DataIntegrity(apperr.ErrBalanceSheetMismatch,
			"as of %s: assets %s != liabilities %s + equity %s + current earnings %s",
			tb.AsOf.Format("2006-01-02"), bs.TotalAssets.StringFixed(2), bs.TotalLiabilities.StringFixed(2),
			bs.TotalEquity.StringFixed(2), bs.CurrentEarnings.StringFixed(2))
	}
	return bs, nil
}
