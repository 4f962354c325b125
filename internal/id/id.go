// Package id generates entity identifiers and formats ledger numbers.
package id

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// New returns a fresh random entity id.
func New() string {
	return uuid.NewString()
}

// FormatJournalNumber returns a display number like "JV-000042".
func FormatJournalNumber(n int64) string {
	return fmt.Sprintf("JV-%06d", n)
}

// NormalizeInvoiceNumber upper-cases an invoice number and drops the
// separators people type between the track letters and the digits.
// "ab-1234 5678" -> "AB12345678"
func NormalizeInvoiceNumber(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r == ' ' || r == '-' || r == '\t':
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

// ParseInvoiceNumber splits "AB12345678" into its track ("AB") and serial
// ("12345678"). The input must already be normalized.
func ParseInvoiceNumber(s string) (track, serial string, err error) {
	if len(s) != 10 {
		return "", "", fmt.Errorf("invalid invoice number %q: want 2 letters and 8 digits", s)
	}
	for i := 0; i < 2; i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return "", "", fmt.Errorf("invalid invoice number %q: track must be letters", s)
		}
	}
	for i := 2; i < 10; i++ {
		if s[i] < '0' || s[i] > '9' {
			return "", "", fmt.Errorf("invalid invoice number %q: serial must be digits", s)
		}
	}
	return s[:2], s[2:], nil
}

// ValidTaxID reports whether s is an 8-digit uniform business number.
func ValidTaxID(s string) bool {
	if len(s) != 8 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
