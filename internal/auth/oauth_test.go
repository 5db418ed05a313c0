package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"sheetexpense/internal/core"
	"sheetexpense/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	goption "google.golang.org/api/option"
)

type fakeGoogle struct {
	*httptest.Server

	mu       sync.Mutex
	forms    []url.Values
	rejected bool
}

func newFakeGoogle(t *testing.T) *fakeGoogle {
	t.Helper()
	f := &fakeGoogle{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		f.mu.Lock()
		f.forms = append(f.forms, r.PostForm)
		rejected := f.rejected
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if rejected {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{
				"error":             "invalid_grant",
				"error_description": "Token has been expired or revoked.",
			})
			return
		}
		resp := map[string]any{"access_token": "fresh-access", "token_type": "Bearer", "expires_in": 3600}
		if r.PostForm.Get("grant_type") == "authorization_code" {
			resp["refresh_token"] = "first-refresh"
		}
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("GET /oauth2/v2/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh-access" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"id": "g-123", "email": "ada@example.com", "name": "Ada"})
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeGoogle) lastForm() url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.forms) == 0 {
		return nil
	}
	return f.forms[len(f.forms)-1]
}

func (f *fakeGoogle) provider() *Provider {
	return NewProvider(Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost:3000/auth/google/callback",
		Endpoint: oauth2.Endpoint{
			AuthURL:   f.URL + "/auth",
			TokenURL:  f.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		APIOptions: []goption.ClientOption{goption.WithEndpoint(f.URL + "/")},
	})
}

func TestNewLoginRequestsOfflineAccess(t *testing.T) {
	p := NewProvider(Config{ClientID: "client", RedirectURL: "http://localhost/cb"})
	login := p.NewLogin()

	require.NotEmpty(t, login.State)
	require.NotEmpty(t, login.Verifier)
	assert.NotEqual(t, login.State, login.Verifier)

	u, err := url.Parse(login.URL)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "accounts.google.com", u.Host)
	assert.Equal(t, login.State, q.Get("state"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.Equal(t, oauth2.S256ChallengeFromVerifier(login.Verifier), q.Get("code_challenge"))
	assert.Contains(t, q.Get("scope"), "https://www.googleapis.com/auth/spreadsheets")
	assert.Contains(t, q.Get("scope"), "https://www.googleapis.com/auth/drive.file")
}

func TestWithRedirectURLCopies(t *testing.T) {
	p := NewProvider(Config{ClientID: "client", RedirectURL: "http://localhost/cb"})
	loop := p.WithRedirectURL("http://127.0.0.1:8085/callback")

	assert.Contains(t, loop.NewLogin().URL, url.QueryEscape("http://127.0.0.1:8085/callback"))
	assert.Contains(t, p.NewLogin().URL, url.QueryEscape("http://localhost/cb"))
}

type recordingUsers struct {
	googleID, email, access, refresh string
}

func (r *recordingUsers) UpsertUser(_ context.Context, googleID, email, access, refresh string) (storage.User, error) {
	r.googleID, r.email, r.access, r.refresh = googleID, email, access, refresh
	return storage.User{ID: 7, GoogleID: googleID, Email: email, AccessToken: access, RefreshToken: refresh}, nil
}

func TestCompleteLogin(t *testing.T) {
	f := newFakeGoogle(t)
	users := &recordingUsers{}

	u, err := f.provider().CompleteLogin(context.Background(), users, "the-code", "the-verifier")
	require.NoError(t, err)

	assert.Equal(t, int64(7), u.ID)
	assert.Equal(t, "g-123", users.googleID)
	assert.Equal(t, "ada@example.com", users.email)
	assert.Equal(t, "fresh-access", users.access)
	assert.Equal(t, "first-refresh", users.refresh)

	form := f.lastForm()
	assert.Equal(t, "the-code", form.Get("code"))
	assert.Equal(t, "the-verifier", form.Get("code_verifier"))
}

func TestRefresh(t *testing.T) {
	f := newFakeGoogle(t)
	p := f.provider()

	tok, err := p.Refresh(context.Background(), "stored-refresh")
	require.NoError(t, err)
	assert.Equal(t, "fresh-access", tok.AccessToken)
	assert.Equal(t, "refresh_token", f.lastForm().Get("grant_type"))
	assert.Equal(t, "stored-refresh", f.lastForm().Get("refresh_token"))
}

func TestRefreshInvalidGrantRequiresReauth(t *testing.T) {
	f := newFakeGoogle(t)
	f.rejected = true

	_, err := f.provider().Refresh(context.Background(), "revoked-refresh")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrReauthRequired)
	assert.ErrorIs(t, err, core.ErrUnauthenticated)
}
