package http

import (
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
)

// Session keys.
const (
	sessionUserID   = "user_id"
	sessionState    = "oauth_state"
	sessionVerifier = "oauth_verifier"
)

// SessionCookieName is the name of the session cookie.
const SessionCookieName = "sheetexpense_session"

// NewSessionManager configures scs with a sliding lifetime. secure marks
// the cookie HTTPS-only.
func NewSessionManager(store scs.Store, lifetime time.Duration, secure bool) *scs.SessionManager {
	sm := scs.New()
	sm.Store = store
	sm.Lifetime = lifetime
	sm.IdleTimeout = lifetime
	sm.Cookie.Name = SessionCookieName
	sm.Cookie.HttpOnly = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Secure = secure
	sm.Cookie.Persist = true
	return sm
}
