package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Plausible range for yearly spreadsheets.
const (
	MinYear = 1900
	MaxYear = 2100
)

// Remote tab titles and layout constants.
const (
	SummarySheet    = "Summary"
	CategoriesSheet = "Categories"
	DefaultSheet    = "Sheet1"

	CategoriesHeader = "Categories"
	DateLayout       = "2006-01-02"
)

// MonthHeader is written into the first row of every month tab.
var MonthHeader = []string{"Date", "Amount", "Category"}

// DefaultCategories seed a fresh Categories tab and back an empty one.
var DefaultCategories = []string{"Food", "Transport", "Shopping", "Bills", "Other"}

var monthNames = [12]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

type (
	// Date is a calendar day without time of day.
	Date struct {
		time.Time
	}

	// Expense is one row of a month tab.
	Expense struct {
		Date     Date
		Amount   decimal.Decimal
		Category string
	}

	// ExpenseRecord is an expense row as read back from a month tab.
	ExpenseRecord struct {
		Row      int             `json:"row"`
		Date     string          `json:"date"`
		Amount   decimal.Decimal `json:"amount"`
		Category string          `json:"category"`
	}

	// Category is a single cell of the Categories tab. ID is the zero-based
	// row index in column A, so the header row is 0.
	Category struct {
		ID        int    `json:"id"`
		Name      string `json:"categoryName"`
		IsDefault bool   `json:"isDefault"`
	}
)

// SpreadsheetTitle is the deterministic remote name for a year.
func SpreadsheetTitle(year int) string {
	return fmt.Sprintf("Expenses-%d", year)
}

// MonthNames returns the twelve canonical month names in calendar order.
func MonthNames() []string {
	out := make([]string, len(monthNames))
	copy(out, monthNames[:])
	return out
}

// MonthName returns the English name for month 1-12.
func MonthName(month int) (string, error) {
	if month < 1 || month > 12 {
		return "", fmt.Errorf("%w: %d", ErrInvalidMonth, month)
	}
	return monthNames[month-1], nil
}

// MonthIndex returns 1-12 for a canonical month name, or 0.
func MonthIndex(name string) int {
	for i, m := range monthNames {
		if strings.EqualFold(m, strings.TrimSpace(name)) {
			return i + 1
		}
	}
	return 0
}

// ParseMonth accepts either an English month name (any case) or a number 1-12.
func ParseMonth(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: month is required", ErrInvalidMonth)
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 || n > 12 {
			return 0, fmt.Errorf("%w: %d", ErrInvalidMonth, n)
		}
		return n, nil
	}
	if idx := MonthIndex(s); idx > 0 {
		return idx, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
}

// ValidateYear rejects years outside [MinYear, MaxYear].
func ValidateYear(year int) error {
	if year < MinYear || year > MaxYear {
		return fmt.Errorf("%w: %d", ErrInvalidYear, year)
	}
	return nil
}

// ParseYear parses and range-checks a year string.
func ParseYear(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: year is required", ErrInvalidYear)
	}
	y, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidYear, s)
	}
	if err := ValidateYear(y); err != nil {
		return 0, err
	}
	return y, nil
}

// ParseDate parses a strict YYYY-MM-DD calendar date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, fmt.Errorf("%w: date is required", ErrInvalidDate)
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(DateLayout)
}

// MonthName returns the English name of the date's month.
func (d Date) MonthName() string {
	return monthNames[int(d.Month())-1]
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	return ValidateYear(d.Year())
}

// NormalizeCategoryName trims the name and rejects blanks.
func NormalizeCategoryName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyCategory
	}
	return name, nil
}

// SameCategory reports whether two names collide case-insensitively.
func SameCategory(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// NewExpense validates raw input and builds an Expense.
func NewExpense(date, amount, category string) (Expense, error) {
	d, err := ParseDate(date)
	if err != nil {
		return Expense{}, err
	}
	amt, err := ParseAmount(amount)
	if err != nil {
		return Expense{}, err
	}
	e := Expense{Date: d, Amount: amt, Category: strings.TrimSpace(category)}
	if err := e.Validate(); err != nil {
		return Expense{}, err
	}
	return e, nil
}

func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if !e.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

// Row returns the cell values appended to the month tab.
func (e Expense) Row() []any {
	return []any{e.Date.String(), e.Amount.InexactFloat64(), e.Category}
}

// CellString renders a cell value as trimmed text.
func CellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

// RecordFromRow converts a month-tab row into a record. Rows without both a
// date and a readable amount are not expenses.
func RecordFromRow(index int, row []any) (ExpenseRecord, bool) {
	var date, category string
	var amountCell any
	if len(row) > 0 {
		date = CellString(row[0])
	}
	if len(row) > 1 {
		amountCell = row[1]
	}
	if len(row) > 2 {
		category = CellString(row[2])
	}
	if date == "" {
		return ExpenseRecord{}, false
	}
	amount, ok := ParseCellAmount(amountCell)
	if !ok {
		return ExpenseRecord{}, false
	}
	return ExpenseRecord{Row: index, Date: date, Amount: amount, Category: category}, true
}
