// Package journal owns journal-entry invariants and the DRAFT → POSTED →
// VOIDED state machine.
package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cleared-dev/taxledger/internal/accounts"
	"github.com/cleared-dev/taxledger/internal/apperr"
	"github.com/cleared-dev/taxledger/internal/auditlog"
	"github.com/cleared-dev/taxledger/internal/id"
	"github.com/cleared-dev/taxledger/internal/model"
	"github.com/cleared-dev/taxledger/internal/store"
)

const entity = "journal entry"

// Service provides business logic for journal entries.
type Service struct {
	store  *store.Store
	logger *slog.Logger
}

// NewService creates a journal Service.
func NewService(st *store.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, logger: logger}
}

// DraftParams holds parameters for creating a journal entry.
type DraftParams struct {
	Date        time.Time
	Description string
	SourceType  model.SourceType // defaults to MANUAL
	SourceID    string
	Lines       []model.Line
}

// CreateDraft validates and stores a new DRAFT entry with the company's next
// journal number.
func (s *Service) CreateDraft(ctx context.Context, companyID string, p DraftParams) (*model.JournalEntry, error) {
	var e *model.JournalEntry
	err := s.store.RunAtomic(ctx, companyID, func(tx *store.Tx) error {
		var err error
		e, err = s.CreateDraftTx(tx, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("created journal entry", "company", companyID, "entry", e.ID,
		"number", id.FormatJournalNumber(e.JournalNumber), "status", e.Status)
	return e, nil
}

// CreateDraftTx is CreateDraft inside a caller's unit.
func (s *Service) CreateDraftTx(tx *store.Tx, p DraftParams) (*model.JournalEntry, error) {
	if p.Date.IsZero() {
		return nil, apperr.Validation(apperr.ErrInvalidLine, apperr.FieldError{Field: "date", Message: "required"})
	}

	chart, err := accounts.Load(tx)
	if err != nil {
		return nil, err
	}
	if err := Validate(p.Lines, chart); err != nil {
		return nil, err
	}

	num, err := tx.NextJournalNumber()
	if err != nil {
		return nil, err
	}

	sourceType := p.SourceType
	if sourceType == "" {
		sourceType = model.SourceManual
	}

	e := &model.JournalEntry{
		ID:            id.New(),
		JournalNumber: num,
		Date:          p.Date,
		Description:   p.Description,
		SourceType:    sourceType,
		SourceID:      p.SourceID,
		Status:        model.EntryDraft,
		CreatedAt:     tx.Now(),
		Lines:         make([]model.Line, len(p.Lines)),
	}
	for i, l := range p.Lines {
		l.ID = id.New()
		e.Lines[i] = l
	}

	if err := tx.InsertEntry(e); err != nil {
		return nil, err
	}
	if err := tx.Audit(auditlog.ActionEntryCreate, e.ID, id.FormatJournalNumber(num)); err != nil {
		return nil, err
	}
	return e, nil
}

// Post moves a DRAFT entry to POSTED.
func (s *Service) Post(ctx context.Context, companyID, entryID string) (*model.JournalEntry, error) {
	var e *model.JournalEntry
	err := s.store.RunAtomic(ctx, companyID, func(tx *store.Tx) error {
		var err error
		e, err = s.PostTx(tx, entryID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("posted journal entry", "company", companyID, "entry", e.ID, "status", e.Status)
	return e, nil
}

// PostTx is Post inside a caller's unit.
func (s *Service) PostTx(tx *store.Tx, entryID string) (*model.JournalEntry, error) {
	e, err := tx.Entry(entryID)
	if err != nil {
		return nil, err
	}
	if e.Status != model.EntryDraft {
		return nil, transitionError(e, "post")
	}
	if err := checkBalanced(e); err != nil {
		return nil, err
	}

	if err := tx.UpdateEntryStatus(e.ID, model.EntryDraft, model.EntryPosted); err != nil {
		return nil, staleError(tx, e.ID, "post", err)
	}
	if err := tx.Audit(auditlog.ActionEntryPost, e.ID, id.FormatJournalNumber(e.JournalNumber)); err != nil {
		return nil, err
	}

	e.Status = model.EntryPosted
	e.PostedAt = tx.Now()
	return e, nil
}

// Void reverses a POSTED entry: a new POSTED entry mirrors every line, and
// the original becomes VOIDED. The reversal is returned.
func (s *Service) Void(ctx context.Context, companyID, entryID string) (*model.JournalEntry, error) {
	var rev *model.JournalEntry
	err := s.store.RunAtomic(ctx, companyID, func(tx *store.Tx) error {
		var err error
		rev, err = s.VoidTx(tx, entryID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("voided journal entry", "company", companyID, "entry", entryID,
		"reversal", rev.ID, "status", model.EntryVoided)
	return rev, nil
}

// VoidTx is Void inside a caller's unit.
func (s *Service) VoidTx(tx *store.Tx, entryID string) (*model.JournalEntry, error) {
	orig, err := tx.Entry(entryID)
	if err != nil {
		return nil, err
	}
	if orig.Status != model.EntryPosted {
		return nil, transitionError(orig, "void")
	}
	if orig.IsReversal() {
		return nil, apperr.StateTransition(apperr.ErrInvalidTransition, entity, orig.ID, string(orig.Status), "void reversal")
	}
	if err := checkBalanced(orig); err != nil {
		return nil, err
	}

	num, err := tx.NextJournalNumber()
	if err != nil {
		return nil, err
	}
	rev := &model.JournalEntry{
		ID:            id.New(),
		JournalNumber: num,
		Date:          orig.Date,
		Description:   fmt.Sprintf("Reversal of %s: %s", id.FormatJournalNumber(orig.JournalNumber), orig.Description),
		SourceType:    model.SourceManual,
		ReversalOf:    orig.ID,
		Status:        model.EntryPosted,
		CreatedAt:     tx.Now(),
		PostedAt:      tx.Now(),
		Lines:         make([]model.Line, len(orig.Lines)),
	}
	for i, l := range orig.Lines {
		m := l.Mirror()
		m.ID = id.New()
		rev.Lines[i] = m
	}

	if err := tx.InsertEntry(rev); err != nil {
		return nil, err
	}
	if err := tx.UpdateEntryStatus(orig.ID, model.EntryPosted, model.EntryVoided); err != nil {
		return nil, staleError(tx, orig.ID, "void", err)
	}
	details := fmt.Sprintf("%s reversed by %s", id.FormatJournalNumber(orig.JournalNumber), id.FormatJournalNumber(num))
	if err := tx.Audit(auditlog.ActionEntryVoid, orig.ID, details); err != nil {
		return nil, err
	}
	return rev, nil
}

// Delete removes a DRAFT entry. Posted history is never deleted.
func (s *Service) Delete(ctx context.Context, companyID, entryID string) error {
	err := s.store.RunAtomic(ctx, companyID, func(tx *store.Tx) error {
		e, err := tx.Entry(entryID)
		if err != nil {
			return err
		}
		if e.Status != model.EntryDraft {
			return transitionError(e, "delete")
		}
		if err := tx.DeleteDraftEntry(e.ID); err != nil {
			return staleError(tx, e.ID, "delete", err)
		}
		return tx.Audit(auditlog.ActionEntryDelete, e.ID, id.FormatJournalNumber(e.JournalNumber))
	})
	if err != nil {
		return err
	}
	s.logger.Info("deleted journal entry", "company", companyID, "entry", entryID)
	return nil
}

// Get returns one entry with its lines.
func (s *Service) Get(ctx context.Context, companyID, entryID string) (*model.JournalEntry, error) {
	var e *model.JournalEntry
	err := s.store.View(ctx, companyID, func(tx *store.Tx) error {
		var err error
		e, err = tx.Entry(entryID)
		return err
	})
	return e, err
}

// List returns the company's entries matching f, by journal number.
func (s *Service) List(ctx context.Context, companyID string, f store.EntryFilter) ([]model.JournalEntry, error) {
	var out []model.JournalEntry
	err := s.store.View(ctx, companyID, func(tx *store.Tx) error {
		var err error
		out, err = tx.Entries(f)
		return err
	})
	return out, err
}

func checkBalanced(e *model.JournalEntry) error {
	if e.Balanced() {
		return nil
	}
	d, c := e.Totals()
	return apperr.DataIntegrity(apperr.ErrPostedEntryUnbalanced, "%s %s: debits %s != credits %s",
		entity, id.FormatJournalNumber(e.JournalNumber), d.StringFixed(2), c.StringFixed(2))
}

// transitionError maps the status an entry was found in to the error for op.
func transitionError(e *model.JournalEntry, op string) error {
	var sentinel error
	switch e.Status {
	case model.EntryPosted:
		sentinel = apperr.ErrAlreadyPosted
	case model.EntryVoided:
		sentinel = apperr.ErrAlreadyVoided
	case model.EntryDraft:
		sentinel = apperr.ErrNotPosted
	default:
		sentinel = apperr.ErrInvalidTransition
	}
	return apperr.StateTransition(sentinel, entity, e.ID, string(e.Status), op)
}

// staleError re-reads an entry whose compare-and-set lost and reports the
// status another writer moved it to.
func staleError(tx *store.Tx, entryID, op string, err error) error {
	if !errors.Is(err, store.ErrStaleStatus) {
		return err
	}
	cur, rerr := tx.Entry(entryID)
	if rerr != nil {
		return rerr
	}
	return transitionError(cur, op)
}
