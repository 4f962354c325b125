package store

import (
	"fmt"

	"github.com/cleared-dev/taxledger/internal/model"
)

// Accounts returns the company's chart of accounts ordered by code.
func (t *Tx) Accounts() ([]model.Account, error) {
	rows, err := t.query(`
		SELECT id, company_id, code, name, category, is_active
		FROM accounts
		WHERE company_id = ?
		ORDER BY code`, t.companyID)
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}
	defer rows.Close()

	var out []model.Account
	for rows.Next() {
		var a model.Account
		var category string
		if err := rows.Scan(&a.ID, &a.CompanyID, &a.Code, &a.Name, &category, &a.IsActive); err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}
		a.Category = model.Category(category)
		out = append(out, a)
	}
	return out, rows.Err()
}

// InsertAccount adds an account to the company's chart. The account's
// CompanyID is overwritten with the unit's company.
func (t *Tx) InsertAccount(a *model.Account) error {
	a.CompanyID = t.companyID
	_, err := t.exec(`
		INSERT INTO accounts (id, company_id, code, name, category, is_active)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.CompanyID, a.Code, a.Name, string(a.Category), a.IsActive)
	if err != nil {
		return fmt.Errorf("inserting account %s: %w", a.Code, err)
	}
	return nil
}

// SetAccountActive toggles whether new lines may reference the account.
func (t *Tx) SetAccountActive(accountID string, active bool) error {
	res, err := t.exec(`UPDATE accounts SET is_active = ? WHERE id = ? AND company_id = ?`,
		active, accountID, t.companyID)
	if err != nil {
		return fmt.Errorf("updating account %s: %w", accountID, err)
	}
	return requireOneRow(res, "account", accountID)
}
