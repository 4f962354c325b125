package journal

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/taxledger/internal/apperr"
	"github.com/cleared-dev/taxledger/internal/model"
)

// mockAccounts implements AccountChecker for testing.
type mockAccounts struct {
	ids map[string]bool
}

func (m *mockAccounts) IsActive(id string) bool {
	return m.ids[id]
}

func newMockAccounts(ids ...string) *mockAccounts {
	m := &mockAccounts{ids: make(map[string]bool)}
	for _, id := range ids {
		m.ids[id] = true
	}
	return m
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func debit(acct, amt string) model.Line  { return model.Line{AccountID: acct, Debit: dec(amt)} }
func credit(acct, amt string) model.Line { return model.Line{AccountID: acct, Credit: dec(amt)} }

var defaultAccounts = newMockAccounts("cash", "rent", "revenue", "tax")

func invariants(vs []Violation) []int {
	out := make([]int, len(vs))
	for i, v := range vs {
		out[i] = v.Invariant
	}
	return out
}

func TestValidate_Balanced(t *testing.T) {
	lines := []model.Line{debit("cash", "10500"), credit("revenue", "10000"), credit("tax", "500")}
	assert.Empty(t, ValidateLines(lines, defaultAccounts))
	assert.NoError(t, Validate(lines, defaultAccounts))
}

func TestValidate_Imbalanced(t *testing.T) {
	lines := []model.Line{debit("cash", "100.00"), credit("revenue", "99.99")}
	vs := ValidateLines(lines, defaultAccounts)
	require.Len(t, vs, 1)
	assert.Equal(t, 1, vs[0].Invariant)
	assert.Contains(t, vs[0].Error(), "debits (100.00) != credits (99.99)")

	err := Validate(lines, defaultAccounts)
	assert.True(t, errors.Is(err, apperr.ErrImbalancedEntry))
	assert.True(t, apperr.IsValidation(err))
}

func TestValidate_BothSides(t *testing.T) {
	lines := []model.Line{
		{AccountID: "cash", Debit: dec("10"), Credit: dec("10")},
		debit("rent", "5"),
		credit("cash", "5"),
	}
	vs := ValidateLines(lines, defaultAccounts)
	assert.Equal(t, []int{2}, invariants(vs))
	assert.Equal(t, 1, vs[0].Line)
	assert.True(t, errors.Is(Validate(lines, defaultAccounts), apperr.ErrInvalidLine))
}

func TestValidate_NeitherSide(t *testing.T) {
	lines := []model.Line{{AccountID: "cash"}, debit("rent", "5"), credit("cash", "5")}
	assert.Equal(t, []int{2}, invariants(ValidateLines(lines, defaultAccounts)))
}

func TestValidate_UnknownAccount(t *testing.T) {
	lines := []model.Line{debit("other-company-acct", "5"), credit("cash", "5")}
	vs := ValidateLines(lines, defaultAccounts)
	assert.Equal(t, []int{3}, invariants(vs))

	err := Validate(lines, defaultAccounts)
	assert.True(t, errors.Is(err, apperr.ErrInvalidAccount))
	assert.Contains(t, err.Error(), "lines[1]")
}

func TestValidate_EmptyAccount(t *testing.T) {
	lines := []model.Line{debit("", "5"), credit("cash", "5")}
	assert.Equal(t, []int{3}, invariants(ValidateLines(lines, defaultAccounts)))
}

func TestValidate_TooManyDecimals(t *testing.T) {
	lines := []model.Line{debit("rent", "1.005"), credit("cash", "1.005")}
	vs := ValidateLines(lines, defaultAccounts)
	assert.Equal(t, []int{4, 4}, invariants(vs))
}

func TestValidate_Negative(t *testing.T) {
	lines := []model.Line{debit("rent", "-5"), credit("cash", "-5")}
	vs := ValidateLines(lines, defaultAccounts)
	assert.Equal(t, []int{5, 5}, invariants(vs))
}

func TestValidate_SingleLine(t *testing.T) {
	vs := ValidateLines([]model.Line{debit("rent", "5")}, defaultAccounts)
	assert.ElementsMatch(t, []int{6, 1}, invariants(vs))
}

func TestValidate_ImbalanceWinsSentinel(t *testing.T) {
	lines := []model.Line{debit("nope", "5"), credit("cash", "4")}
	assert.True(t, errors.Is(Validate(lines, defaultAccounts), apperr.ErrImbalancedEntry))
}
