// Package apperr defines the ledger's error taxonomy.
//
// Every failure carries a sentinel (matched with errors.Is) wrapped in one of
// three classes (matched with errors.As): validation problems the caller can
// fix, state conflicts the caller should refresh and retry, and data-integrity
// violations that indicate a bug and must halt dependent work.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Validation sentinels.
var (
	ErrImbalancedEntry   = errors.New("imbalanced entry")
	ErrInvalidAccount    = errors.New("invalid account")
	ErrInvalidLine       = errors.New("invalid line")
	ErrInvalidInvoice    = errors.New("invalid invoice")
	ErrInvalidPayment    = errors.New("invalid payment")
	ErrDuplicateNumber   = errors.New("duplicate invoice number")
	ErrFieldOverflow     = errors.New("field overflow")
	ErrMalformedRow      = errors.New("malformed row")
	ErrUnrecognizedSheet = errors.New("unrecognized sheet")
)

// State transition sentinels.
var (
	ErrAlreadyPosted     = errors.New("already posted")
	ErrAlreadyVoided     = errors.New("already voided")
	ErrNotPosted         = errors.New("not posted")
	ErrInvalidTransition = errors.New("invalid transition")
)

// Data integrity sentinels.
var (
	ErrUnbalancedPosting     = errors.New("unbalanced posting")
	ErrPostedEntryUnbalanced = errors.New("posted entry unbalanced")
	ErrTrialBalanceMismatch  = errors.New("trial balance does not balance")
	ErrBalanceSheetMismatch  = errors.New("balance sheet does not balance")
)

// Lookup and scope sentinels.
var (
	ErrNotFound       = errors.New("not found")
	ErrMissingCompany = errors.New("missing company scope")
)

// FieldError points a validation failure at a single field.
type FieldError struct {
	Field   string
	Message string
}

func (f FieldError) String() string {
	if f.Field == "" {
		return f.Message
	}
	return f.Field + ": " + f.Message
}

// ValidationError is a recoverable input problem. Nothing was written.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

// Validation wraps err as a ValidationError with optional field detail.
func Validation(err error, fields ...FieldError) *ValidationError {
	return &ValidationError{Err: err, Fields: fields}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Err.Error()
	}
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.String()
	}
	return fmt.Sprintf("%s: %s", e.Err, strings.Join(msgs, "; "))
}

func (e *ValidationError) Unwrap() error { return e.Err }

// StateTransitionError reports an operation attempted from the wrong status.
type StateTransitionError struct {
	Err    error
	Entity string // "invoice", "journal entry"
	ID     string
	Status string // status observed when the operation was refused
	Op     string
}

// StateTransition builds a StateTransitionError.
func StateTransition(err error, entity, id, status, op string) *StateTransitionError {
	return &StateTransitionError{Err: err, Entity: entity, ID: id, Status: status, Op: op}
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("cannot %s %s %s in status %s: %s", e.Op, e.Entity, e.ID, e.Status, e.Err)
}

func (e *StateTransitionError) Unwrap() error { return e.Err }

// DataIntegrityError means a ledger invariant was found violated in stored data.
type DataIntegrityError struct {
	Err    error
	Detail string
}

// DataIntegrity builds a DataIntegrityError.
func DataIntegrity(err error, format string, args ...any) *DataIntegrityError {
	return &DataIntegrityError{Err: err, Detail: fmt.Sprintf(format, args...)}
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("data integrity violation: %s: %s", e.Err, e.Detail)
}

func (e *DataIntegrityError) Unwrap() error { return e.Err }

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsStateTransition reports whether err is, or wraps, a StateTransitionError.
func IsStateTransition(err error) bool {
	var s *StateTransitionError
	return errors.As(err, &s)
}

// IsDataIntegrity reports whether err is, or wraps, a DataIntegrityError.
func IsDataIntegrity(err error) bool {
	var d *DataIntegrityError
	return errors.As(err, &d)
}
