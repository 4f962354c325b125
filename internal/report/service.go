package report

import (
	"context"
	"time"

	"github.com/cleared-dev/taxledger/internal/accounts"
	"github.com/cleared-dev/taxledger/internal/store"
)

// Service reads the ledger to build reports.
type Service struct {
	store *store.Store
}

// NewService creates a report Service.
func NewService(st *store.Store) *Service {
	return &Service{store: st}
}

// TrialBalance sums every live posted entry dated on or before asOf.
func (s *Service) TrialBalance(ctx context.Context, companyID string, asOf time.Time) (*TrialBalance, error) {
	var tb *TrialBalance
	err := s.store.View(ctx, companyID, func(tx *store.Tx) error {
		var err error
		tb, err = trialBalanceTx(tx, asOf)
		return err
	})
	return tb, err
}

func trialBalanceTx(tx *store.Tx, asOf time.Time) (*TrialBalance, error) {
	chart, err := accounts.Load(tx)
	if err != nil {
		return nil, err
	}
	lines, err := tx.LedgerLines(asOf)
	if err != nil {
		return nil, err
	}
	return Compute(lines, chart, asOf)
}

// IncomeStatement reports revenue and expenses dated from..to inclusive. A
// zero from covers everything up to to.
func (s *Service) IncomeStatement(ctx context.Context, companyID string, from, to time.Time) (*IncomeStatement, error) {
	var is *IncomeStatement
	err := s.store.View(ctx, companyID, func(tx *store.Tx) error {
		tb, err := trialBalanceTx(tx, to)
		if err != nil {
			return err
		}
		if from.IsZero() {
			is = IncomeStatementFrom(tb)
			return nil
		}
		prior, err := trialBalanceTx(tx, from.AddDate(0, 0, -1))
		if err != nil {
			return err
		}
		is = PeriodIncomeStatement(tb, prior)
		return nil
	})
	return is, err
}

// BalanceSheet reports the financial position as of asOf.
func (s *Service) BalanceSheet(ctx context.Context, companyID string, asOf time.Time) (*BalanceSheet, error) {
	tb, err := s.TrialBalance(ctx, companyID, asOf)
	if err != nil {
		return nil, err
	}
	return BalanceSheetFrom(tb)
}
