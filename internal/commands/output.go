package commands

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/cleared-dev/taxledger/internal/apperr"
)

var bannerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("9")).
	Border(lipgloss.DoubleBorder()).
	BorderForeground(lipgloss.Color("9")).
	Padding(0, 1)

func printTable(w io.Writer, headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...)
	fmt.Fprintln(w, t.Render())
}

// PrintError reports a command failure on w. Ledger integrity failures get a
// banner: the numbers they guard must not be trusted.
func PrintError(w io.Writer, err error) {
	if apperr.IsDataIntegrity(err) {
		fmt.Fprintln(w, bannerStyle.Render("LEDGER INTEGRITY FAILURE\nReporting is halted until the ledger is repaired."))
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}
