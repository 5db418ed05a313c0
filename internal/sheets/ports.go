package sheets

import (
	"context"
	"errors"
)

// Sentinel errors returned by every Workbook implementation.
var (
	// ErrUnauthorized means the access token was rejected (HTTP 401).
	ErrUnauthorized = errors.New("spreadsheet service rejected credentials")
	// ErrSheetExists means an addSheet raced with another writer.
	ErrSheetExists = errors.New("sheet already exists")
	// ErrRangeNotFound means the range names a tab that does not exist.
	ErrRangeNotFound = errors.New("unable to parse range")
	// ErrSpreadsheetNotFound means the remote spreadsheet is gone.
	ErrSpreadsheetNotFound = errors.New("spreadsheet not found")
)

// InputOption controls how written values are interpreted.
type InputOption string

const (
	// Raw stores values verbatim.
	Raw InputOption = "RAW"
	// UserEntered parses values as if typed, so formulas are evaluated.
	UserEntered InputOption = "USER_ENTERED"
)

// SheetInfo describes one tab of a spreadsheet.
type SheetInfo struct {
	ID    int64
	Title string
	Rows  int64
	Cols  int64
}

// Values is a rectangular block as returned by a values read. Rows and
// trailing cells may be shorter than the requested range.
type Values [][]any

// Cell returns the value at (row, col) or nil when out of bounds.
func (v Values) Cell(row, col int) any {
	if row < 0 || row >= len(v) || col < 0 || col >= len(v[row]) {
		return nil
	}
	return v[row][col]
}

// Workbook is the outbound port to the remote spreadsheet service, bound
// to one user's credentials.
type Workbook interface {
	// CreateSpreadsheet creates a new spreadsheet and returns its id.
	CreateSpreadsheet(ctx context.Context, title string) (string, error)
	// DeleteSpreadsheet removes a spreadsheet.
	DeleteSpreadsheet(ctx context.Context, spreadsheetID string) error
	// ListSheets returns the tabs of a spreadsheet.
	ListSheets(ctx context.Context, spreadsheetID string) ([]SheetInfo, error)
	// AddSheet creates a tab and returns its id. Rows and Cols may be zero
	// for the service defaults.
	AddSheet(ctx context.Context, spreadsheetID string, sheet SheetInfo) (int64, error)
	// DeleteSheet removes a tab.
	DeleteSheet(ctx context.Context, spreadsheetID string, sheetID int64) error
	// GetValues reads unformatted values.
	GetValues(ctx context.Context, spreadsheetID, rng string) (Values, error)
	// UpdateValues overwrites a range starting at its top-left cell.
	UpdateValues(ctx context.Context, spreadsheetID, rng string, values Values, opt InputOption) error
	// AppendValues appends rows after the last non-empty row of the range.
	AppendValues(ctx context.Context, spreadsheetID, rng string, values Values, opt InputOption) error
	// DeleteRows removes rows [start, end) (zero-based) and shifts the rest up.
	DeleteRows(ctx context.Context, spreadsheetID string, sheetID int64, start, end int64) error
}

// FindSheet returns the tab with the given title.
func FindSheet(list []SheetInfo, title string) (SheetInfo, bool) {
	for _, s := range list {
		if s.Title == title {
			return s, true
		}
	}
	return SheetInfo{}, false
}
