package store

import (
	"fmt"
	"time"

	"github.com/cleared-dev/taxledger/internal/auditlog"
)

// Audit records an audit row in the same unit as the change it describes.
func (t *Tx) Audit(action, subjectID, details string) error {
	_, err := t.exec(`INSERT INTO audit_log (company_id, at, action, subject_id, details) VALUES (?, ?, ?, ?, ?)`,
		t.companyID, t.now.UTC().Format(timeFormat), action, subjectID, details)
	if err != nil {
		return fmt.Errorf("writing audit row %s: %w", action, err)
	}
	return nil
}

// AuditLog returns the company's audit trail in insertion order.
func (t *Tx) AuditLog() ([]auditlog.Entry, error) {
	rows, err := t.query(`SELECT company_id, at, action, subject_id, details FROM audit_log
		WHERE company_id = ? ORDER BY id`, t.companyID)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close()

	var out []auditlog.Entry
	for rows.Next() {
		var e auditlog.Entry
		var at string
		if err := rows.Scan(&e.CompanyID, &at, &e.Action, &e.SubjectID, &e.Details); err != nil {
			return nil, fmt.Errorf("scanning audit row: %w", err)
		}
		if e.Timestamp, err = time.Parse(timeFormat, at); err != nil {
			return nil, fmt.Errorf("parsing audit timestamp %q: %w", at, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
