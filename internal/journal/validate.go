package journal

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/taxledger/internal/apperr"
	"github.com/cleared-dev/taxledger/internal/model"
)

// Violation describes a single invariant violation.
type Violation struct {
	Invariant   int
	Line        int // 1-based, 0 when the violation concerns the whole entry
	Description string
}

func (v Violation) Error() string {
	if v.Line == 0 {
		return fmt.Sprintf("invariant %d: %s", v.Invariant, v.Description)
	}
	return fmt.Sprintf("invariant %d [line %d]: %s", v.Invariant, v.Line, v.Description)
}

// AccountChecker tests whether an account id is an active account of the
// company an entry belongs to.
type AccountChecker interface {
	IsActive(id string) bool
}

var hundred = decimal.NewFromInt(100)

// ValidateLines enforces 6 invariants on the lines of one entry.
func ValidateLines(lines []model.Line, accounts AccountChecker) []Violation {
	var vs []Violation

	// Invariant 6: At least two lines.
	if len(lines) < 2 {
		vs = append(vs, Violation{
			Invariant:   6,
			Description: fmt.Sprintf("entry needs at least 2 lines, got %d", len(lines)),
		})
	}

	// Invariant 1: Debits equal credits.
	e := model.JournalEntry{Lines: lines}
	if debit, credit := e.Totals(); !debit.Equal(credit) {
		vs = append(vs, Violation{
			Invariant:   1,
			Description: fmt.Sprintf("debits (%s) != credits (%s)", debit.StringFixed(2), credit.StringFixed(2)),
		})
	}

	for i, l := range lines {
		n := i + 1

		// Invariant 5: Non-negative amounts.
		if l.Debit.IsNegative() || l.Credit.IsNegative() {
			vs = append(vs, Violation{Invariant: 5, Line: n, Description: "amounts must not be negative"})
		}

		// Invariant 2: Exactly one of debit/credit.
		if l.Debit.IsZero() == l.Credit.IsZero() {
			vs = append(vs, Violation{Invariant: 2, Line: n, Description: "line must have exactly one of debit or credit"})
		}

		// Invariant 3: Active account of this company.
		if l.AccountID == "" || !accounts.IsActive(l.AccountID) {
			vs = append(vs, Violation{Invariant: 3, Line: n, Description: fmt.Sprintf("account %q is not an active account of this company", l.AccountID)})
		}

		// Invariant 4: No more than 2 decimal places.
		for _, amt := range []decimal.Decimal{l.Debit, l.Credit} {
			if !amt.Mul(hundred).Equal(amt.Mul(hundred).Truncate(0)) {
				vs = append(vs, Violation{Invariant: 4, Line: n, Description: fmt.Sprintf("amount %s has more than 2 decimal places", amt)})
			}
		}
	}

	return vs
}

// violationsError folds violations into one validation error. The sentinel
// follows the most significant violation: imbalance, then account, then line.
func violationsError(vs []Violation) error {
	if len(vs) == 0 {
		return nil
	}
	sentinel := apperr.ErrInvalidLine
	for _, v := range vs {
		if v.Invariant == 3 {
			sentinel = apperr.ErrInvalidAccount
		}
	}
	for _, v := range vs {
		if v.Invariant == 1 {
			sentinel = apperr.ErrImbalancedEntry
		}
	}

	fields := make([]apperr.FieldError, len(vs))
	for i, v := range vs {
		field := "lines"
		if v.Line > 0 {
			field = fmt.Sprintf("lines[%d]", v.Line)
		}
		fields[i] = apperr.FieldError{Field: field, Message: v.Description}
	}
	return apperr.Validation(sentinel, fields...)
}

// Validate checks lines against accounts and returns a *apperr.ValidationError
// describing every violation, or nil.
func Validate(lines []model.Line, accounts AccountChecker) error {
	return violationsError(ValidateLines(lines, accounts))
}
