package http

import (
	"context"
	"net/http"
	"time"

	"sheetexpense/internal/log"
	"sheetexpense/internal/storage"
)

// Redirect messages understood by the index page.
var indexMessages = map[string]string{
	"logout_success":  "You have been logged out.",
	"session_expired": "Your session has expired. Please log in again.",
	"invalid_session": "Your session is no longer valid. Please log in again.",
	"server_error":    "Something went wrong. Please try again.",
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if err := s.db.Ping(ctx); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Readiness check failed", log.FieldError, err)
		checks["database"] = "failed"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"total_hits":     s.rateLimiter.GetMetrics().TotalHits,
	}

	NewResponse().Status(httpStatus).JSON(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleIndex renders the landing page, or sends logged-in users to the
// dashboard.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.sessions.GetInt64(r.Context(), sessionUserID) != 0 {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	s.render(w, r, "index.html", struct{ Message string }{
		Message: indexMessages[r.URL.Query().Get("message")],
	})
}

// handleDashboard renders the dashboard for a valid session.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := s.sessions.GetInt64(ctx, sessionUserID)
	if userID == 0 {
		http.Redirect(w, r, "/?message=session_expired", http.StatusFound)
		return
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if storage.IsNotFound(err) {
			if err := s.sessions.Destroy(ctx); err != nil {
				log.FromContext(ctx).ErrorContext(ctx, "Failed to destroy session", log.FieldError, err)
			}
			http.Redirect(w, r, "/?message=invalid_session", http.StatusFound)
			return
		}
		log.FromContext(ctx).ErrorContext(ctx, "Failed to validate session", log.FieldUserID, userID, log.FieldError, err)
		http.Redirect(w, r, "/?message=server_error", http.StatusFound)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	s.render(w, r, "dashboard.html", struct {
		Email string
		Year  int
	}{Email: user.Email, Year: time.Now().Year()})
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if s.templates == nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Templates not loaded", log.FieldTemplate, name)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed", log.FieldTemplate, name, log.FieldError, err)
	}
}
