package journal

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/cleared-dev/taxledger/internal/id"
	"github.com/cleared-dev/taxledger/internal/model"
)

// Header is the CSV header for a journal export, one row per line.
const Header = "journal_number,date,status,source_type,reversal_of,line_no,account_code,description,debit,credit"

const (
	numFields   = 10
	dateFormat  = "2006-01-02"
	colNumber   = 0
	colDate     = 1
	colStatus   = 2
	colSource   = 3
	colReversal = 4
	colLineNo   = 5
	colAcctCode = 6
	colDesc     = 7
	colDebit    = 8
	colCredit   = 9
)

// CodeLookup resolves an account id to its display code.
type CodeLookup func(accountID string) string

// WriteEntries writes entries to w (including header), one row per line.
func WriteEntries(w io.Writer, entries []model.JournalEntry, codeOf CodeLookup) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	numbers := make(map[string]int64, len(entries))
	for _, e := range entries {
		numbers[e.ID] = e.JournalNumber
	}

	row := 2
	for _, e := range entries {
		for i, l := range e.Lines {
			if err := cw.Write(MarshalLine(e, i, l, codeOf, numbers)); err != nil {
				return fmt.Errorf("writing row %d: %w", row, err)
			}
			row++
		}
	}
	return cw.Error()
}

// MarshalLine converts line i of e to a CSV row ([]string). numbers maps
// entry ids to journal numbers so reversals can name what they reverse.
func MarshalLine(e model.JournalEntry, i int, l model.Line, codeOf CodeLookup, numbers map[string]int64) []string {
	row := make([]string, numFields)
	row[colNumber] = id.FormatJournalNumber(e.JournalNumber)
	row[colDate] = e.Date.Format(dateFormat)
	row[colStatus] = string(e.Status)
	row[colSource] = string(e.SourceType)
	if e.ReversalOf != "" {
		if n, ok := numbers[e.ReversalOf]; ok {
			row[colReversal] = id.FormatJournalNumber(n)
		} else {
			row[colReversal] = e.ReversalOf
		}
	}
	row[colLineNo] = fmt.Sprintf("%d", i+1)
	row[colAcctCode] = l.AccountID
	if codeOf != nil {
		if code := codeOf(l.AccountID); code != "" {
			row[colAcctCode] = code
		}
	}
	row[colDesc] = l.Description
	if l.Description == "" {
		row[colDesc] = e.Description
	}
	if !l.Debit.IsZero() {
		row[colDebit] = l.Debit.StringFixed(2)
	}
	if !l.Credit.IsZero() {
		row[colCredit] = l.Credit.StringFixed(2)
	}
	return row
}
