package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryStatus represents the lifecycle state of a journal entry.
type EntryStatus string

const (
	EntryDraft  EntryStatus = "DRAFT"
	EntryPosted EntryStatus = "POSTED"
	EntryVoided EntryStatus = "VOIDED"
)

// SourceType records what produced a journal entry.
type SourceType string

const (
	SourceManual  SourceType = "MANUAL"
	SourceInvoice SourceType = "INVOICE"
)

// JournalEntry is a balanced transaction made of two or more lines.
type JournalEntry struct {
	ID            string
	CompanyID     string
	JournalNumber int64 // sequential per company, starting at 1
	Date          time.Time
	Description   string
	SourceType    SourceType
	SourceID      string // empty when the entry has no source document
	ReversalOf    string // id of the entry this one reverses, empty otherwise
	Status        EntryStatus
	CreatedAt     time.Time
	PostedAt      time.Time
	VoidedAt      time.Time
	Lines         []Line
}

// Line is one leg of a journal entry.
type Line struct {
	ID             string
	JournalEntryID string
	AccountID      string
	Description    string
	Debit          decimal.Decimal // zero if credit side
	Credit         decimal.Decimal // zero if debit side
}

// Totals returns the summed debit and credit sides of the entry.
func (e JournalEntry) Totals() (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, l := range e.Lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	return debit, credit
}

// Balanced reports whether the entry's debits equal its credits.
func (e JournalEntry) Balanced() bool {
	d, c := e.Totals()
	return d.Equal(c)
}

// IsReversal reports whether the entry was created by voiding another entry.
func (e JournalEntry) IsReversal() bool {
	return e.ReversalOf != ""
}

// Mirror returns the line with its debit and credit sides swapped.
func (l Line) Mirror() Line {
	return Line{
		AccountID:   l.AccountID,
		Description: l.Description,
		Debit:       l.Credit,
		Credit:      l.Debit,
	}
}
