// Package auditlog describes the ledger's audit trail and its CSV export.
package auditlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"
)

// Actions recorded by the ledger.
const (
	ActionEntryCreate    = "entry.create"
	ActionEntryPost      = "entry.post"
	ActionEntryVoid      = "entry.void"
	ActionEntryDelete    = "entry.delete"
	ActionInvoiceCreate  = "invoice.create"
	ActionInvoiceVerify  = "invoice.verify"
	ActionInvoicePost    = "invoice.post"
	ActionInvoiceVoid    = "invoice.void"
	ActionInvoicePayment = "invoice.payment"
	ActionAccountsSeed   = "accounts.seed"
)

// Entry is one row in the audit trail.
type Entry struct {
	Timestamp time.Time
	CompanyID string
	Action    string
	SubjectID string
	Details   string
}

// Header is the CSV header for audit-log exports.
const Header = "timestamp,company_id,action,subject_id,details"

const (
	numFields    = 5
	colTimestamp = 0
	colCompany   = 1
	colAction    = 2
	colSubject   = 3
	colDetails   = 4
)

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.UTC().Format(time.RFC3339)
	row[colCompany] = e.CompanyID
	row[colAction] = e.Action
	row[colSubject] = e.SubjectID
	row[colDetails] = e.Details
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}

	return Entry{
		Timestamp: ts,
		CompanyID: record[colCompany],
		Action:    record[colAction],
		SubjectID: record[colSubject],
		Details:   record[colDetails],
	}, nil
}

// Write writes entries as CSV, header included.
func Write(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Read parses a CSV produced by Write.
func Read(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading audit log CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
