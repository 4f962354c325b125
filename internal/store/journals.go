package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/taxledger/internal/apperr"
	"github.com/cleared-dev/taxledger/internal/model"
)

// NextJournalNumber returns the number the next entry of the company gets.
// Call it in the same unit that inserts the entry: the unique constraint on
// (company_id, journal_number) and the writer lock keep numbering gap-free.
func (t *Tx) NextJournalNumber() (int64, error) {
	var n int64
	err := t.queryRow(`SELECT COALESCE(MAX(journal_number), 0) + 1 FROM journal_entries WHERE company_id = ?`,
		t.companyID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("allocating journal number: %w", err)
	}
	return n, nil
}

// InsertEntry writes an entry and its lines.
func (t *Tx) InsertEntry(e *model.JournalEntry) error {
	e.CompanyID = t.companyID
	_, err := t.exec(`
		INSERT INTO journal_entries
			(id, company_id, journal_number, date, description, source_type, source_id,
			 reversal_of, status, created_at, posted_at, voided_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.CompanyID, e.JournalNumber, formatDate(e.Date), e.Description, string(e.SourceType),
		nullString(e.SourceID), nullString(e.ReversalOf), string(e.Status),
		e.CreatedAt.UTC().Format(timeFormat), nullTime(e.PostedAt), nullTime(e.VoidedAt))
	if err != nil {
		return fmt.Errorf("inserting journal entry %d: %w", e.JournalNumber, err)
	}

	for i := range e.Lines {
		l := &e.Lines[i]
		l.JournalEntryID = e.ID
		_, err := t.exec(`
			INSERT INTO transaction_lines
				(id, journal_entry_id, company_id, line_no, account_id, description, debit, credit)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			l.ID, e.ID, t.companyID, i+1, l.AccountID, l.Description, l.Debit.String(), l.Credit.String())
		if err != nil {
			return fmt.Errorf("inserting line %d of entry %d: %w", i+1, e.JournalNumber, err)
		}
	}
	return nil
}

const entryColumns = `id, company_id, journal_number, date, description, source_type, source_id,
	reversal_of, status, created_at, posted_at, voided_at`

// Entry loads one entry with its lines. Returns apperr.ErrNotFound if the
// entry does not exist in this company.
func (t *Tx) Entry(entryID string) (*model.JournalEntry, error) {
	row := t.queryRow(`SELECT `+entryColumns+` FROM journal_entries WHERE id = ? AND company_id = ?`,
		entryID, t.companyID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("journal entry %s: %w", entryID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading journal entry %s: %w", entryID, err)
	}

	lines, err := t.entryLines(entryID)
	if err != nil {
		return nil, err
	}
	e.Lines = lines
	return e, nil
}

// EntryFilter narrows Entries. Zero values match everything.
type EntryFilter struct {
	Status model.EntryStatus
	From   time.Time
	To     time.Time
}

// Entries lists the company's entries by journal number, lines included.
func (t *Tx) Entries(f EntryFilter) ([]model.JournalEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM journal_entries WHERE company_id = ?`
	args := []any{t.companyID}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	if !f.From.IsZero() {
		query += ` AND date >= ?`
		args = append(args, formatDate(f.From))
	}
	if !f.To.IsZero() {
		query += ` AND date <= ?`
		args = append(args, formatDate(f.To))
	}
	query += ` ORDER BY journal_number`

	rows, err := t.query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying journal entries: %w", err)
	}
	var out []model.JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning journal entry: %w", err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range out {
		lines, err := t.entryLines(out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Lines = lines
	}
	return out, nil
}

func (t *Tx) entryLines(entryID string) ([]model.Line, error) {
	rows, err := t.query(`
		SELECT id, journal_entry_id, account_id, description, debit, credit
		FROM transaction_lines
		WHERE journal_entry_id = ? AND company_id = ?
		ORDER BY line_no`, entryID, t.companyID)
	if err != nil {
		return nil, fmt.Errorf("querying lines of %s: %w", entryID, err)
	}
	defer rows.Close()

	var lines []model.Line
	for rows.Next() {
		var l model.Line
		var debit, credit string
		if err := rows.Scan(&l.ID, &l.JournalEntryID, &l.AccountID, &l.Description, &debit, &credit); err != nil {
			return nil, fmt.Errorf("scanning line: %w", err)
		}
		if l.Debit, err = decimal.NewFromString(debit); err != nil {
			return nil, fmt.Errorf("parsing debit %q of line %s: %w", debit, l.ID, err)
		}
		if l.Credit, err = decimal.NewFromString(credit); err != nil {
			return nil, fmt.Errorf("parsing credit %q of line %s: %w", credit, l.ID, err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// UpdateEntryStatus moves an entry from one status to another. It fails with
// ErrStaleStatus if the entry is no longer in status from.
func (t *Tx) UpdateEntryStatus(entryID string, from, to model.EntryStatus) error {
	var stamp string
	switch to {
	case model.EntryPosted:
		stamp = "posted_at"
	case model.EntryVoided:
		stamp = "voided_at"
	default:
		return fmt.Errorf("unsupported target status %s", to)
	}

	res, err := t.exec(`UPDATE journal_entries SET status = ?, `+stamp+` = ?
		WHERE id = ? AND company_id = ? AND status = ?`,
		string(to), t.now.UTC().Format(timeFormat), entryID, t.companyID, string(from))
	if err != nil {
		return fmt.Errorf("updating journal entry %s: %w", entryID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating journal entry %s: %w", entryID, err)
	}
	if n == 0 {
		return fmt.Errorf("journal entry %s: %w", entryID, ErrStaleStatus)
	}
	return nil
}

// DeleteDraftEntry removes a draft entry and its lines.
func (t *Tx) DeleteDraftEntry(entryID string) error {
	res, err := t.exec(`DELETE FROM journal_entries WHERE id = ? AND company_id = ? AND status = ?`,
		entryID, t.companyID, string(model.EntryDraft))
	if err != nil {
		return fmt.Errorf("deleting journal entry %s: %w", entryID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting journal entry %s: %w", entryID, err)
	}
	if n == 0 {
		return fmt.Errorf("journal entry %s: %w", entryID, ErrStaleStatus)
	}
	return nil
}

// LedgerLine is a line of a live posted entry, as seen by reporting.
type LedgerLine struct {
	EntryID       string
	JournalNumber int64
	AccountID     string
	Debit         decimal.Decimal
	Credit        decimal.Decimal
}

// LedgerLines returns the lines of every posted entry dated on or before
// asOf. Voided entries and the reversals that cancel them are left out: the
// pair nets to zero on every account.
func (t *Tx) LedgerLines(asOf time.Time) ([]LedgerLine, error) {
	rows, err := t.query(`
		SELECT e.id, e.journal_number, l.account_id, l.debit, l.credit
		FROM transaction_lines l
		JOIN journal_entries e ON e.id = l.journal_entry_id
		WHERE e.company_id = ? AND l.company_id = ?
		  AND e.status = ? AND e.reversal_of IS NULL
		  AND e.date <= ?
		ORDER BY e.journal_number, l.line_no`,
		t.companyID, t.companyID, string(model.EntryPosted), formatDate(asOf))
	if err != nil {
		return nil, fmt.Errorf("querying ledger lines: %w", err)
	}
	defer rows.Close()

	var out []LedgerLine
	for rows.Next() {
		var ll LedgerLine
		var debit, credit string
		if err := rows.Scan(&ll.EntryID, &ll.JournalNumber, &ll.AccountID, &debit, &credit); err != nil {
			return nil, fmt.Errorf("scanning ledger line: %w", err)
		}
		if ll.Debit, err = decimal.NewFromString(debit); err != nil {
			return nil, fmt.Errorf("parsing debit %q: %w", debit, err)
		}
		if ll.Credit, err = decimal.NewFromString(credit); err != nil {
			return nil, fmt.Errorf("parsing credit %q: %w", credit, err)
		}
		out = append(out, ll)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(r rowScanner) (*model.JournalEntry, error) {
	var e model.JournalEntry
	var date, sourceType, status, createdAt string
	var sourceID, reversalOf, postedAt, voidedAt sql.NullString
	if err := r.Scan(&e.ID, &e.CompanyID, &e.JournalNumber, &date, &e.Description, &sourceType,
		&sourceID, &reversalOf, &status, &createdAt, &postedAt, &voidedAt); err != nil {
		return nil, err
	}

	var err error
	if e.Date, err = parseDate(date); err != nil {
		return nil, fmt.Errorf("parsing date %q: %w", date, err)
	}
	if e.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at %q: %w", createdAt, err)
	}
	if e.PostedAt, err = scanTime(postedAt); err != nil {
		return nil, fmt.Errorf("parsing posted_at: %w", err)
	}
	if e.VoidedAt, err = scanTime(voidedAt); err != nil {
		return nil, fmt.Errorf("parsing voided_at: %w", err)
	}
	e.SourceType = model.SourceType(sourceType)
	e.SourceID = sourceID.String
	e.ReversalOf = reversalOf.String
	e.Status = model.EntryStatus(status)
	return &e, nil
}

func requireOneRow(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %s: %w", entity, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", entity, id, apperr.ErrNotFound)
	}
	return nil
}
