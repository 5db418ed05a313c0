package http

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	"sheetexpense/internal/core"
	"sheetexpense/internal/log"
)

// handleLogin starts the consent round trip. State and PKCE verifier ride
// in the session until the callback.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	login := s.auth.NewLogin()
	s.sessions.Put(r.Context(), sessionState, login.State)
	s.sessions.Put(r.Context(), sessionVerifier, login.Verifier)
	http.Redirect(w, r, login.URL, http.StatusFound)
}

// handleCallback completes the login and binds the user to a fresh
// session token.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	state := s.sessions.PopString(ctx, sessionState)
	verifier := s.sessions.PopString(ctx, sessionVerifier)

	if e := q.Get("error"); e != "" {
		ErrorResponse(http.StatusBadRequest, "OAuth Error", "Google declined the login: "+sanitizeInput(e)).Write(w)
		return
	}
	code := q.Get("code")
	if code == "" {
		s.writeError(w, r, fmt.Errorf("%w: missing authorization code", core.ErrValidation))
		return
	}
	if state == "" || subtle.ConstantTimeCompare([]byte(state), []byte(q.Get("state"))) != 1 {
		s.writeError(w, r, fmt.Errorf("%w: login state mismatch, please try again", core.ErrValidation))
		return
	}

	user, err := s.auth.CompleteLogin(ctx, s.users, code, verifier)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("complete login: %w", err))
		return
	}

	if err := s.sessions.RenewToken(ctx); err != nil {
		s.writeError(w, r, fmt.Errorf("renew session: %w", err))
		return
	}
	s.sessions.Put(ctx, sessionUserID, user.ID)

	log.FromContext(ctx).InfoContext(ctx, "User logged in", log.FieldUserID, user.ID)
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Destroy(r.Context()); err != nil {
		s.writeError(w, r, fmt.Errorf("destroy session: %w", err))
		return
	}
	http.Redirect(w, r, "/?message=logout_success", http.StatusFound)
}
