package accounts

import (
	"fmt"

	"github.com/cleared-dev/taxledger/internal/auditlog"
	"github.com/cleared-dev/taxledger/internal/id"
	"github.com/cleared-dev/taxledger/internal/model"
	"github.com/cleared-dev/taxledger/internal/store"
)

// Service provides in-memory lookup over one company's chart of accounts.
type Service struct {
	accounts []model.Account
	byID     map[string]model.Account
	byCode   map[string]model.Account
}

// NewService creates a Service from a slice of accounts.
func NewService(accounts []model.Account) *Service {
	byID := make(map[string]model.Account, len(accounts))
	byCode := make(map[string]model.Account, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a
		byCode[a.Code] = a
	}
	return &Service{accounts: accounts, byID: byID, byCode: byCode}
}

// Load reads the unit's company chart of accounts.
func Load(tx *store.Tx) (*Service, error) {
	accts, err := tx.Accounts()
	if err != nil {
		return nil, fmt.Errorf("loading chart of accounts: %w", err)
	}
	return NewService(accts), nil
}

// Seed inserts a chart into the unit's company, assigning fresh ids.
func Seed(tx *store.Tx, chart []model.Account) ([]model.Account, error) {
	out := make([]model.Account, 0, len(chart))
	for _, a := range chart {
		a.ID = id.New()
		if err := tx.InsertAccount(&a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := tx.Audit(auditlog.ActionAccountsSeed, "", fmt.Sprintf("%d accounts", len(out))); err != nil {
		return nil, err
	}
	return out, nil
}

// All returns all accounts.
func (s *Service) All() []model.Account {
	return s.accounts
}

// Active returns the accounts new lines may reference.
func (s *Service) Active() []model.Account {
	var result []model.Account
	for _, a := range s.accounts {
		if a.IsActive {
			result = append(result, a)
		}
	}
	return result
}

// HasActive reports whether at least one account is active.
func (s *Service) HasActive() bool {
	for _, a := range s.accounts {
		if a.IsActive {
			return true
		}
	}
	return false
}

// Get returns an account by ID.
func (s *Service) Get(id string) (model.Account, bool) {
	a, ok := s.byID[id]
	return a, ok
}

// ByCode returns an account by its code.
func (s *Service) ByCode(code string) (model.Account, bool) {
	a, ok := s.byCode[code]
	return a, ok
}

// IsActive reports whether id names an active account of this company.
func (s *Service) IsActive(id string) bool {
	a, ok := s.byID[id]
	return ok && a.IsActive
}

// ByCategory returns all accounts of the given category.
func (s *Service) ByCategory(category model.Category) []model.Account {
	var result []model.Account
	for _, a := range s.accounts {
		if a.Category == category {
			result = append(result, a)
		}
	}
	return result
}
