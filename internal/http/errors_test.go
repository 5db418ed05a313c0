package http

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"sheetexpense/internal/core"
	"sheetexpense/internal/storage"

	"google.golang.org/api/googleapi"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		production bool
		wantStatus int
		wantError  string
		wantMsg    string
	}{
		{
			name:       "missing sheet",
			err:        fmt.Errorf("query: %w", &core.PeriodError{Err: core.ErrNoSheet, Year: 2024, Month: "April"}),
			wantStatus: http.StatusNotFound,
			wantError:  "no_sheet",
			wantMsg:    "No expenses found for April 2024. Add your first expense for this month to get started.",
		},
		{
			name:       "missing spreadsheet",
			err:        &core.PeriodError{Err: core.ErrNoSpreadsheet, Year: 2023},
			wantStatus: http.StatusNotFound,
			wantError:  "no_spreadsheet",
		},
		{
			name:       "validation",
			err:        core.ErrInvalidAmount,
			wantStatus: http.StatusBadRequest,
			wantError:  "Validation Error",
		},
		{
			name:       "expired grant",
			err:        fmt.Errorf("%w: invalid_grant", core.ErrReauthRequired),
			wantStatus: http.StatusUnauthorized,
			wantError:  "Authentication Required",
			wantMsg:    "Your Google authorization has expired. Please log in again.",
		},
		{
			name:       "no session",
			err:        core.ErrUnauthenticated,
			wantStatus: http.StatusUnauthorized,
			wantError:  "Authentication Required",
			wantMsg:    "Please log in to access this resource",
		},
		{
			name:       "unknown category",
			err:        core.ErrCategoryNotFound,
			wantStatus: http.StatusNotFound,
			wantError:  "Not Found",
		},
		{
			name:       "duplicate category",
			err:        core.ErrDuplicateCategory,
			wantStatus: http.StatusConflict,
			wantError:  "Duplicate Entry",
		},
		{
			name:       "cache conflict",
			err:        fmt.Errorf("create sheet: %w", storage.ErrConflict),
			wantStatus: http.StatusConflict,
			wantError:  "Duplicate Entry",
		},
		{
			name:       "google forbidden",
			err:        fmt.Errorf("append: %w", &googleapi.Error{Code: http.StatusForbidden, Message: "The caller does not have permission"}),
			wantStatus: http.StatusForbidden,
			wantError:  "Google API Error",
			wantMsg:    "The caller does not have permission",
		},
		{
			name:       "google server error",
			err:        &googleapi.Error{Code: http.StatusBadGateway},
			wantStatus: http.StatusInternalServerError,
			wantError:  "Internal Server Error",
		},
		{
			name:       "unexpected in development",
			err:        errors.New("disk on fire"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "Internal Server Error",
			wantMsg:    "disk on fire",
		},
		{
			name:       "unexpected in production",
			err:        errors.New("disk on fire"),
			production: true,
			wantStatus: http.StatusInternalServerError,
			wantError:  "Internal Server Error",
			wantMsg:    "Something went wrong",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := classify(tt.err, tt.production)
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
			if body.Error != tt.wantError {
				t.Errorf("error = %q, want %q", body.Error, tt.wantError)
			}
			if tt.wantMsg != "" && body.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", body.Message, tt.wantMsg)
			}
		})
	}
}
