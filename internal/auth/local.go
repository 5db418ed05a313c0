package auth

import (
	"context"
	"fmt"
	"net/url"

	"sheetexpense/internal/storage"

	"golang.org/x/oauth2"
)

// Local logs in a fixed development account without contacting Google. It
// pairs with the memory workbook backend.
type Local struct {
	CallbackPath string
	Email        string
}

const localAccessToken = "local-access-token"

func NewLocal(callbackPath string) *Local {
	return &Local{CallbackPath: callbackPath, Email: "dev@localhost"}
}

func (l *Local) NewLogin() LoginRequest {
	state := oauth2.GenerateVerifier()
	q := url.Values{"code": {"local"}, "state": {state}}
	return LoginRequest{URL: l.CallbackPath + "?" + q.Encode(), State: state}
}

func (l *Local) CompleteLogin(ctx context.Context, users Users, code, _ string) (storage.User, error) {
	if code != "local" {
		return storage.User{}, fmt.Errorf("exchange authorization code: unexpected code %q", code)
	}
	u, err := users.UpsertUser(ctx, "local", l.Email, localAccessToken, "local-refresh-token")
	if err != nil {
		return storage.User{}, fmt.Errorf("store user: %w", err)
	}
	return u, nil
}

// Refresh hands back the same access token; local tokens never expire.
func (l *Local) Refresh(context.Context, string) (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: localAccessToken}, nil
}
