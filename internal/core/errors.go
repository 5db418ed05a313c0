package core

import (
	"errors"
	"fmt"
)

// Error classes. Every domain error wraps exactly one of these so the
// transport layer can map it to a status without knowing the details.
var (
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrUnauthenticated = errors.New("authentication required")
	ErrReauthRequired  = fmt.Errorf("%w: re-authentication required", ErrUnauthenticated)
)

var (
	ErrInvalidYear   = fmt.Errorf("%w: year must be between %d and %d", ErrValidation, MinYear, MaxYear)
	ErrInvalidMonth  = fmt.Errorf("%w: invalid month", ErrValidation)
	ErrInvalidDate   = fmt.Errorf("%w: invalid date, expected YYYY-MM-DD", ErrValidation)
	ErrInvalidAmount = fmt.Errorf("%w: amount must be a positive number", ErrValidation)
	ErrEmptyCategory = fmt.Errorf("%w: category name is required", ErrValidation)
	ErrInvalidID     = fmt.Errorf("%w: invalid category id", ErrValidation)
	ErrHeaderRow     = fmt.Errorf("%w: the header row cannot be modified", ErrValidation)

	ErrNoSpreadsheet    = fmt.Errorf("%w: no spreadsheet for year", ErrNotFound)
	ErrNoSheet          = fmt.Errorf("%w: no sheet for month", ErrNotFound)
	ErrCategoryNotFound = fmt.Errorf("%w: category not found", ErrNotFound)
	ErrUserNotFound     = fmt.Errorf("%w: user not found", ErrNotFound)

	ErrDuplicateCategory = fmt.Errorf("%w: category already exists", ErrConflict)
)

// PeriodError carries the period a not-found condition refers to, so the
// caller can render an empty-state hint.
type PeriodError struct {
	Err   error
	Year  int
	Month string
}

func (e *PeriodError) Error() string {
	if e.Month == "" {
		return fmt.Sprintf("%v (%d)", e.Err, e.Year)
	}
	return fmt.Sprintf("%v (%s %d)", e.Err, e.Month, e.Year)
}

func (e *PeriodError) Unwrap() error { return e.Err }

// Code returns the stable machine-readable code of a period error.
func (e *PeriodError) Code() string {
	switch {
	case errors.Is(e.Err, ErrNoSpreadsheet):
		return "no_spreadsheet"
	case errors.Is(e.Err, ErrNoSheet):
		return "no_sheet"
	default:
		return "not_found"
	}
}

// Hint is the user-facing message for the empty state.
func (e *PeriodError) Hint() string {
	switch {
	case errors.Is(e.Err, ErrNoSpreadsheet):
		return fmt.Sprintf("No expense data found for %d. Start by adding your first expense for this year.", e.Year)
	case errors.Is(e.Err, ErrNoSheet):
		return fmt.Sprintf("No expenses found for %s %d. Add your first expense for this month to get started.", e.Month, e.Year)
	default:
		return e.Error()
	}
}
