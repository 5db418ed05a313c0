// Package auth implements the Google sign-in flow and the Token Guard that
// keeps a user's spreadsheet access working across token expiry.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sheetexpense/internal/core"
	"sheetexpense/internal/storage"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drive "google.golang.org/api/drive/v3"
	goauth2 "google.golang.org/api/oauth2/v2"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Scopes requested at login. drive.file limits Drive access to files this
// application created.
var Scopes = []string{
	gsheet.SpreadsheetsScope,
	drive.DriveFileScope,
	goauth2.UserinfoEmailScope,
	goauth2.UserinfoProfileScope,
	"openid",
}

// Config describes the OAuth client.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// Endpoint defaults to Google's.
	Endpoint oauth2.Endpoint
	// APIOptions are passed to the userinfo client.
	APIOptions []goption.ClientOption
}

// Identity is the Google account behind a login.
type Identity struct {
	GoogleID string
	Email    string
	Name     string
}

// Provider wraps the OAuth client configuration. It is process-scoped and
// safe for concurrent use.
type Provider struct {
	cfg        *oauth2.Config
	apiOptions []goption.ClientOption
}

func NewProvider(c Config) *Provider {
	endpoint := c.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = google.Endpoint
	}
	return &Provider{
		cfg: &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURL:  c.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       Scopes,
		},
		apiOptions: c.APIOptions,
	}
}

// WithRedirectURL returns a copy of p that redirects to url, for the
// loopback flow of the admin CLI.
func (p *Provider) WithRedirectURL(url string) *Provider {
	cfg := *p.cfg
	cfg.RedirectURL = url
	return &Provider{cfg: &cfg, apiOptions: p.apiOptions}
}

// LoginRequest carries the values that must survive the consent round trip.
type LoginRequest struct {
	URL      string
	State    string
	Verifier string
}

// NewLogin builds a consent URL asking for offline access. prompt=consent
// makes Google issue a refresh token on every login.
func (p *Provider) NewLogin() LoginRequest {
	state := oauth2.GenerateVerifier()
	verifier := oauth2.GenerateVerifier()
	url := p.cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.S256ChallengeOption(verifier),
	)
	return LoginRequest{URL: url, State: state, Verifier: verifier}
}

// Exchange trades an authorization code for tokens.
func (p *Provider) Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	var opts []oauth2.AuthCodeOption
	if verifier != "" {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}
	tok, err := p.cfg.Exchange(ctx, code, opts...)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	return tok, nil
}

// UserInfo fetches the account identity for tok.
func (p *Provider) UserInfo(ctx context.Context, tok *oauth2.Token) (Identity, error) {
	opts := append([]goption.ClientOption{goption.WithHTTPClient(p.cfg.Client(ctx, tok))}, p.apiOptions...)
	svc, err := goauth2.NewService(ctx, opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("create userinfo service: %w", err)
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return Identity{}, fmt.Errorf("fetch userinfo: %w", err)
	}
	if info.Id == "" {
		return Identity{}, errors.New("fetch userinfo: empty account id")
	}
	return Identity{GoogleID: info.Id, Email: info.Email, Name: info.Name}, nil
}

// Refresh exchanges a refresh token for a new access token. A revoked or
// expired grant surfaces as core.ErrReauthRequired.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	tok, err := p.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		if isInvalidGrant(err) {
			return nil, fmt.Errorf("%w: %w", core.ErrReauthRequired, err)
		}
		return nil, fmt.Errorf("refresh access token: %w", err)
	}
	return tok, nil
}

func isInvalidGrant(err error) bool {
	var rerr *oauth2.RetrieveError
	if !errors.As(err, &rerr) {
		return false
	}
	return rerr.ErrorCode == "invalid_grant" || strings.Contains(string(rerr.Body), "invalid_grant")
}

// Users is the persistence the login flow needs.
type Users interface {
	UpsertUser(ctx context.Context, googleID, email, accessToken, refreshToken string) (storage.User, error)
}

// CompleteLogin exchanges the code, resolves the account and stores its
// tokens. A login without a refresh token keeps the previously stored one.
func (p *Provider) CompleteLogin(ctx context.Context, users Users, code, verifier string) (storage.User, error) {
	tok, err := p.Exchange(ctx, code, verifier)
	if err != nil {
		return storage.User{}, err
	}
	id, err := p.UserInfo(ctx, tok)
	if err != nil {
		return storage.User{}, err
	}
	u, err := users.UpsertUser(ctx, id.GoogleID, id.Email, tok.AccessToken, tok.RefreshToken)
	if err != nil {
		return storage.User{}, fmt.Errorf("store user: %w", err)
	}
	return u, nil
}
