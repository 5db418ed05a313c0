package http

import (
	"errors"
	"net/http"

	"sheetexpense/internal/core"
	"sheetexpense/internal/log"
	"sheetexpense/internal/storage"

	"google.golang.org/api/googleapi"
)

// classify maps an error to its status and body. production hides the
// detail of unexpected failures.
func classify(err error, production bool) (int, ErrorBody) {
	var pe *core.PeriodError
	var gerr *googleapi.Error
	switch {
	case errors.As(err, &pe):
		return http.StatusNotFound, ErrorBody{Error: pe.Code(), Message: pe.Hint()}
	case errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest, ErrorBody{Error: "Validation Error", Message: err.Error()}
	case errors.Is(err, core.ErrReauthRequired):
		return http.StatusUnauthorized, ErrorBody{Error: "Authentication Required", Message: "Your Google authorization has expired. Please log in again."}
	case errors.Is(err, core.ErrUnauthenticated):
		return http.StatusUnauthorized, ErrorBody{Error: "Authentication Required", Message: "Please log in to access this resource"}
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, ErrorBody{Error: "Not Found", Message: err.Error()}
	case errors.Is(err, core.ErrConflict), errors.Is(err, storage.ErrConflict):
		return http.StatusConflict, ErrorBody{Error: "Duplicate Entry", Message: err.Error()}
	case errors.As(err, &gerr) && gerr.Code >= 400 && gerr.Code < 500:
		msg := gerr.Message
		if msg == "" {
			msg = "External service error"
		}
		return gerr.Code, ErrorBody{Error: "Google API Error", Message: msg}
	}
	msg := err.Error()
	if production {
		msg = "Something went wrong"
	}
	return http.StatusInternalServerError, ErrorBody{Error: "Internal Server Error", Message: msg}
}

// writeError logs err with the request context and renders it.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classify(err, s.production)

	fields := log.NewFields().WithError(err)
	fields[log.FieldErrorType] = errorType(status)
	fields[log.FieldStatusCode] = status
	if uid := userIDFrom(r.Context()); uid != 0 {
		fields = fields.WithUser(uid)
	}

	logger := log.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", fields.ToSlice()...)
	} else {
		logger.WarnContext(r.Context(), "Request rejected", fields.ToSlice()...)
	}

	ErrorResponse(status, body.Error, body.Message).Write(w)
}

func errorType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return log.ErrorTypeValidation
	case http.StatusUnauthorized:
		return log.ErrorTypeAuth
	case http.StatusNotFound:
		return log.ErrorTypeNotFound
	case http.StatusConflict:
		return log.ErrorTypeConflict
	}
	if status < http.StatusInternalServerError {
		return log.ErrorTypeUpstream
	}
	return log.ErrorTypeInternal
}
