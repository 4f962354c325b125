package accounts

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/taxledger/internal/model"
)

func TestRoundTrip(t *testing.T) {
	accounts := []model.Account{
		{Code: "1101", Name: "Accounts Receivable", Category: model.CategoryAsset, IsActive: true},
		{Code: "6199", Name: "Miscellaneous, Other", Category: model.CategoryExpense, IsActive: false},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteAccounts(&buf, accounts))

	got, err := ReadAccounts(&buf)
	require.NoError(t, err)
	assert.Equal(t, accounts, got)
}

func TestReadAccounts_BlankActiveDefaultsTrue(t *testing.T) {
	got, err := ReadAccounts(strings.NewReader("code,name,category,is_active\n4101,Sales,revenue,\n"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].IsActive)
}

func TestReadAccounts_BadCategory(t *testing.T) {
	_, err := ReadAccounts(strings.NewReader("code,name,category,is_active\n4101,Sales,income,true\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
	assert.Contains(t, err.Error(), "unknown category")
}

func TestReadAccounts_EmptyCode(t *testing.T) {
	_, err := ReadAccounts(strings.NewReader("code,name,category,is_active\n,Sales,revenue,true\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty account code")
}

func TestDefaultChart(t *testing.T) {
	chart := DefaultChart("trading")
	require.NotEmpty(t, chart)

	codes := make(map[string]bool)
	categories := make(map[model.Category]bool)
	for _, acct := range chart {
		assert.False(t, codes[acct.Code], "duplicate code %s", acct.Code)
		codes[acct.Code] = true
		categories[acct.Category] = true
		assert.NotEmpty(t, acct.Name, "account %s missing name", acct.Code)
		assert.True(t, acct.IsActive)
	}
	for _, code := range []string{"1101", "1150", "2101", "2201", "4101", "6199"} {
		assert.True(t, codes[code], "expected account %s", code)
	}
	assert.Len(t, categories, 5, "chart spans all five categories")
}

func TestDefaultChart_BusinessTypes(t *testing.T) {
	general := DefaultChart("")
	assert.Equal(t, general, DefaultChart("unknown"))

	trading := DefaultChart("trading")
	assert.Len(t, trading, len(general)+1)
	assert.Equal(t, "1301", trading[3].Code)

	services := DefaultChart("services")
	assert.Len(t, services, len(general)-1)
	for _, a := range services {
		assert.NotEqual(t, "5101", a.Code)
	}
}
