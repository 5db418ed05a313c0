package log

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldDurationHuman = "duration_human"
	FieldUserAgent     = "user_agent"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldErrorType     = "error_type"
	FieldUserID        = "user_id"
	FieldYear          = "year"
	FieldMonth         = "month"
	FieldSpreadsheetID = "spreadsheet_id"
	FieldSheetID       = "sheet_id"
	FieldSheetTitle    = "sheet"
	FieldOrphanID      = "orphan_id"
	FieldNewRefresh    = "new_refresh_token"
	FieldTitle         = "title"
	FieldCategory      = "category"
	FieldCategoryID    = "category_id"
	FieldAmount        = "amount"
	FieldDate          = "date"
	FieldEventType     = "event_type"
	FieldEventID       = "event_id"
	FieldMessageID     = "message_id"
	FieldQueue         = "queue"
	FieldRetryIn       = "retry_in"
	FieldReason        = "reason"
	FieldUserCount     = "users"
	FieldSynced        = "synced"
	FieldFailed        = "errors"
	FieldCount         = "count"
	FieldTemplate      = "template"
	FieldDialect       = "dialect"
	FieldRemoved       = "removed"
	FieldSignal        = "signal"
	FieldBackend       = "backend"
	FieldEndpoint      = "custom_endpoint"
	FieldExchange      = "exchange"
	FieldPort          = "port"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentAuth      = "auth"
	ComponentExpense   = "expense"
	ComponentCategory  = "category"
	ComponentProvision = "provision"
	ComponentSummary   = "summary"
	ComponentStorage   = "storage"
	ComponentWorker    = "worker"
	ComponentBackend   = "backend"
	ComponentAdmin     = "admin"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation = "validation_error"
	ErrorTypeAuth       = "auth_error"
	ErrorTypeNotFound   = "not_found_error"
	ErrorTypeConflict   = "conflict_error"
	ErrorTypeUpstream   = "upstream_error"
	ErrorTypeInternal   = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithUser adds the user id field
func (f LogFields) WithUser(userID int64) LogFields {
	f[FieldUserID] = userID
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
