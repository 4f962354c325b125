package commands_test

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/taxledger/internal/accounts"
	"github.com/cleared-dev/taxledger/internal/apperr"
	"github.com/cleared-dev/taxledger/internal/commands"
	"github.com/cleared-dev/taxledger/internal/filing"
)

const taxID = "24549210"

// runTaxledger executes the CLI in-process and returns its combined output.
func runTaxledger(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := commands.NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runTaxledger(t, args...)
	require.NoError(t, err, out)
	return out
}

func initProject(t *testing.T, extra ...string) string {
	t.Helper()
	dir := t.TempDir()
	mustRun(t, append([]string{"init", dir, "--name", "Test Biz", "--tax-id", taxID}, extra...)...)
	return dir
}

func TestInit_CreatesStructure(t *testing.T) {
	dir := initProject(t)

	for _, d := range []string{"accounts", "import", filepath.Join("import", "processed"), "export"} {
		info, err := os.Stat(filepath.Join(dir, d))
		require.NoError(t, err, "directory %s should exist", d)
		assert.True(t, info.IsDir(), "%s should be a directory", d)
	}
	for _, f := range []string{"taxledger.yaml", "classifier.yaml", "ledger.db", ".gitignore", filepath.Join("import", ".gitkeep")} {
		_, err := os.Stat(filepath.Join(dir, f))
		assert.NoError(t, err, "file %s should exist", f)
	}
}

func TestInit_Config(t *testing.T) {
	dir := initProject(t, "--company-id", "test-biz")

	data, err := os.ReadFile(filepath.Join(dir, "taxledger.yaml"))
	require.NoError(t, err)
	contents := string(data)

	assert.Contains(t, contents, "name: Test Biz")
	assert.Contains(t, contents, "id: test-biz")
	assert.Contains(t, contents, `tax_id: "24549210"`)
}

func TestInit_Accounts(t *testing.T) {
	dir := initProject(t, "--business-type", "trading")

	f, err := os.Open(filepath.Join(dir, "accounts", "chart-of-accounts.csv"))
	require.NoError(t, err)
	defer f.Close()

	chart, err := accounts.ReadAccounts(f)
	require.NoError(t, err)
	assert.Len(t, chart, len(accounts.DefaultChart("trading")))

	out := mustRun(t, "accounts", "list", "--repo", dir)
	assert.Contains(t, out, "Merchandise Inventory")
}

func TestInit_FromChartCSV(t *testing.T) {
	chart := filepath.Join(t.TempDir(), "chart.csv")
	csv := "code,name,category,is_active\n1111,Cash,asset,true\n3101,Capital,equity,true\n4101,Sales,revenue,true\n"
	require.NoError(t, os.WriteFile(chart, []byte(csv), 0o644))

	dir := initProject(t, "--chart", chart)
	out := mustRun(t, "accounts", "list", "--repo", dir, "--csv")
	assert.Equal(t, csv, out)
}

func TestInit_Rejects(t *testing.T) {
	_, err := runTaxledger(t, "init", t.TempDir(), "--name", "X", "--tax-id", "123")
	assert.ErrorContains(t, err, "not an 8-digit tax id")

	dir := initProject(t)
	_, err = runTaxledger(t, "init", dir, "--name", "X", "--tax-id", taxID)
	assert.ErrorContains(t, err, "already exists")
}

func TestNotAProject(t *testing.T) {
	_, err := runTaxledger(t, "accounts", "list", "--repo", t.TempDir())
	assert.ErrorContains(t, err, "not a taxledger project")
}

func TestClassify(t *testing.T) {
	dir := initProject(t)

	out := mustRun(t, "classify", "--repo", dir, "--type", "input", "辦公室租金")
	assert.Contains(t, out, "6101 (confidence 0.85)")

	_, err := runTaxledger(t, "classify", "--repo", dir, "--type", "other", "rent")
	assert.ErrorContains(t, err, "not INPUT or OUTPUT")
}

func TestEntryCommands(t *testing.T) {
	dir := initProject(t)

	out := mustRun(t, "entry", "add", "--repo", dir, "--date", "2024-01-02", "--desc", "Owner contribution",
		"--line", "1111:50000:0", "--line", "3101:0:50000", "--post")
	assert.Contains(t, out, "JV-000001 2024-01-02 POSTED 50000.00")

	out = mustRun(t, "entry", "list", "--repo", dir)
	assert.Contains(t, out, "Owner contribution")

	_, err := runTaxledger(t, "entry", "delete", "--repo", dir, "JV-000001")
	assert.ErrorIs(t, err, apperr.ErrAlreadyPosted)

	out = mustRun(t, "entry", "void", "--repo", dir, "jv-000001")
	assert.Contains(t, out, "JV-000002")

	out = mustRun(t, "entry", "list", "--repo", dir, "--csv")
	assert.Contains(t, out, "journal_number,date,status")
	assert.Contains(t, out, "JV-000002,2024-01-02,POSTED,MANUAL,JV-000001")

	_, err = runTaxledger(t, "entry", "add", "--repo", dir, "--line", "1111:100:0", "--line", "3101:0:90")
	assert.ErrorIs(t, err, apperr.ErrImbalancedEntry)

	_, err = runTaxledger(t, "entry", "add", "--repo", dir, "--line", "9999:100:0", "--line", "3101:0:100")
	assert.ErrorContains(t, err, `unknown account "9999"`)
}

func TestInvoiceWorkflow(t *testing.T) {
	dir := initProject(t)

	mustRun(t, "invoice", "add", "--repo", dir, "--type", "OUTPUT", "--number", "ab-12345678",
		"--date", "113/12/15", "--untaxed", "10,000", "--tax", "500",
		"--counterparty", "Globex", "--counterparty-tax-id", "12345678", "--desc", "product shipment")
	mustRun(t, "invoice", "verify", "--repo", dir, "AB12345678")

	out := mustRun(t, "invoice", "post", "--repo", dir, "AB12345678")
	assert.Contains(t, out, "POSTED")
	assert.Contains(t, out, "account 4101 suggested")

	out = mustRun(t, "report", "trial-balance", "--repo", dir, "--as-of", "2024-12-31")
	assert.Contains(t, out, "10500.00")
	assert.Contains(t, out, "Sales Revenue")

	out = mustRun(t, "report", "income", "--repo", dir, "--from", "2024-12-01", "--to", "2024-12-31")
	assert.Contains(t, out, "Net income")
	assert.Contains(t, out, "10000.00")

	out = mustRun(t, "report", "balance-sheet", "--repo", dir, "--as-of", "2024-12-31")
	assert.Contains(t, out, "Current earnings")

	out = mustRun(t, "invoice", "pay", "--repo", dir, "AB12345678", "--amount", "10500", "--date", "2024-12-20")
	assert.Contains(t, out, "PAID")

	out = mustRun(t, "filing", "export", "--repo", dir, "--period", "11312")
	assert.Contains(t, out, "Wrote 1 records")
	buf, err := os.ReadFile(filepath.Join(dir, "export", fmt.Sprintf("%s_11312.txt", taxID)))
	require.NoError(t, err)
	require.Len(t, buf, filing.RecordLen)
	assert.Equal(t, "31", string(buf[:2]))

	out = mustRun(t, "audit", "export", "--repo", dir)
	assert.Contains(t, out, "invoice.post")
	assert.Contains(t, out, "invoice.payment")

	_, err = runTaxledger(t, "invoice", "verify", "--repo", dir, "AB12345678")
	assert.True(t, apperr.IsStateTransition(err))
}

const purchaseCSV = "發票號碼,發票日期,賣方統一編號,賣方名稱,銷售額,稅額,總計,品名\n" +
	"AB12345678,113/12/15,12345678,大安物業,20000,1000,21000,辦公室租金\n" +
	"AB12345679,113/12/16,12345678,大安物業,100,5,999,文具\n"

func TestFilingImport_Scan(t *testing.T) {
	dir := initProject(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "import", "purchases.csv"), []byte(purchaseCSV), 0o644))

	out := mustRun(t, "filing", "import", "--repo", dir, "--create")
	assert.Contains(t, out, "purchase mode, 1 rows parsed, 0 skipped, 1 problems")
	assert.Contains(t, out, "row 3")
	assert.Contains(t, out, "created 1 draft invoices")

	_, err := os.Stat(filepath.Join(dir, "import", "processed", "purchases.csv"))
	assert.NoError(t, err)

	out = mustRun(t, "invoice", "list", "--repo", dir, "--type", "INPUT")
	assert.Contains(t, out, "AB12345678")
	assert.Contains(t, out, "DRAFT")

	out = mustRun(t, "filing", "import", "--repo", dir)
	assert.Contains(t, out, "Nothing to import")
}

func TestFilingImport_Unrecognized(t *testing.T) {
	dir := initProject(t)
	path := filepath.Join(t.TempDir(), "sheet.csv")
	require.NoError(t, os.WriteFile(path, []byte("發票號碼,賣方統編號\nAB12345678,12345678\n"), 0o644))

	_, err := runTaxledger(t, "filing", "import", "--repo", dir, path)
	assert.ErrorIs(t, err, apperr.ErrUnrecognizedSheet)
}

func TestPrintError(t *testing.T) {
	var buf bytes.Buffer
	commands.PrintError(&buf, apperr.Validation(apperr.ErrImbalancedEntry))
	assert.Equal(t, "Error: imbalanced entry\n", buf.String())

	buf.Reset()
	commands.PrintError(&buf, apperr.DataIntegrity(apperr.ErrTrialBalanceMismatch, "debits 10 != credits 9"))
	assert.Contains(t, buf.String(), "LEDGER INTEGRITY FAILURE")
	assert.Contains(t, buf.String(), "Error: ")
}
