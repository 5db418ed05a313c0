package core

import (
	"fmt"
	"strings"
)

// Summary tab geometry. Rows are 1-based as in A1 notation.
const (
	SummaryRows       = 30
	SummaryCols       = 4
	summaryFirstMonth = 13
	summaryLastMonth  = summaryFirstMonth + 11
)

// Fixed ranges of the Summary tab.
var (
	SummaryRange       = Range(SummarySheet, fmt.Sprintf("A1:D%d", summaryLastMonth))
	SummaryStatsRange  = Range(SummarySheet, "A3:B5")
	SummaryMonthsRange = Range(SummarySheet, fmt.Sprintf("A%d:D%d", summaryFirstMonth, summaryLastMonth))
)

// QuoteSheet quotes a tab title for use in A1 notation.
func QuoteSheet(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// Range joins a tab title and a cell range.
func Range(sheet, cells string) string {
	return QuoteSheet(sheet) + "!" + cells
}

// SummaryRow returns the Summary row holding month 1-12.
func SummaryRow(month int) int {
	return summaryFirstMonth + month - 1
}

// SummaryFormulaRange is the three formula cells of one month row.
func SummaryFormulaRange(month int) string {
	row := SummaryRow(month)
	return Range(SummarySheet, fmt.Sprintf("B%d:D%d", row, row))
}

// MonthFormulas builds the total, count and daily-average formulas for
// one month row. The daily average divides by today's day-of-month while
// the month is current and by the month length otherwise; the spreadsheet
// evaluates the condition, so the text never depends on when it is written.
func MonthFormulas(month string, monthIndex, year int) [3]string {
	amounts := QuoteSheet(month) + "!B2:B"
	row := SummaryRow(monthIndex)
	total := fmt.Sprintf("=IFERROR(SUM(%s),0)", amounts)
	count := fmt.Sprintf("=IFERROR(COUNTA(%s),0)", amounts)
	daily := fmt.Sprintf(
		"=IFERROR(IF(AND(YEAR(TODAY())=%d,MONTH(TODAY())=%d),B%d/DAY(TODAY()),B%d/DAY(EOMONTH(DATE(%d,%d,1),0))),0)",
		year, monthIndex, row, row, year, monthIndex,
	)
	return [3]string{total, count, daily}
}

// SummaryHeader returns the A1:D12 block: title, yearly totals and the
// column header of the monthly breakdown.
func SummaryHeader(year int) [][]any {
	first, last := summaryFirstMonth, summaryLastMonth
	grid := make([][]any, 12)
	for i := range grid {
		grid[i] = []any{"", "", "", ""}
	}
	grid[0] = []any{"Expense Summary", year, "", ""}
	grid[2] = []any{"Total Expenses", fmt.Sprintf("=SUM(B%d:B%d)", first, last), "", ""}
	grid[3] = []any{"Total Transactions", fmt.Sprintf("=SUM(C%d:C%d)", first, last), "", ""}
	grid[4] = []any{"Average per Month", fmt.Sprintf(`=IFERROR(B%d/COUNTIF(B%d:B%d,">0"),0)`, 3, first, last), "", ""}
	grid[11] = []any{"Month", "Total", "Transactions", "Daily Average"}
	return grid
}

// SummaryMonthRows returns the A13:D24 block for every month.
func SummaryMonthRows(year int) [][]any {
	rows := make([][]any, 0, 12)
	for i, name := range monthNames {
		f := MonthFormulas(name, i+1, year)
		rows = append(rows, []any{name, f[0], f[1], f[2]})
	}
	return rows
}

// SummaryGrid returns the whole A1:D24 block, header and month rows.
func SummaryGrid(year int) [][]any {
	return append(SummaryHeader(year), SummaryMonthRows(year)...)
}

// SummaryFormulaRow returns the B:D cells of a single month row.
func SummaryFormulaRow(month, year int) ([][]any, error) {
	name, err := MonthName(month)
	if err != nil {
		return nil, err
	}
	f := MonthFormulas(name, month, year)
	return [][]any{{f[0], f[1], f[2]}}, nil
}
