package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"sheetexpense/internal/backend"
	"sheetexpense/internal/core"
	"sheetexpense/internal/log"
	"sheetexpense/internal/sheets"
	"sheetexpense/internal/storage"

	"golang.org/x/oauth2"
)

// UserStore is the slice of the repository the guard needs.
type UserStore interface {
	GetUser(ctx context.Context, id int64) (storage.User, error)
	UpdateTokens(ctx context.Context, userID int64, accessToken, refreshToken string) error
}

// Refresher exchanges a refresh token for a new access token.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// Guard runs spreadsheet operations on behalf of a user and recovers once
// from an expired access token.
type Guard struct {
	users     UserStore
	conn      backend.Connector
	refresher Refresher
	logger    *slog.Logger
}

func NewGuard(users UserStore, conn backend.Connector, refresher Refresher, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{users: users, conn: conn, refresher: refresher, logger: logger}
}

// Do calls fn with a workbook bound to the user's stored access token. When
// fn fails because the token was rejected, the token is refreshed, stored,
// and fn is called exactly once more. Any credential failure after that
// surfaces as core.ErrReauthRequired.
func (g *Guard) Do(ctx context.Context, userID int64, fn func(ctx context.Context, wb sheets.Workbook) error) error {
	user, err := g.users.GetUser(ctx, userID)
	if err != nil {
		if storage.IsNotFound(err) {
			return fmt.Errorf("%w: %w", core.ErrReauthRequired, core.ErrUserNotFound)
		}
		return fmt.Errorf("load user: %w", err)
	}

	err = g.run(ctx, user.AccessToken, fn)
	if !errors.Is(err, sheets.ErrUnauthorized) {
		return err
	}

	if user.RefreshToken == "" {
		g.logger.WarnContext(ctx, "Access token rejected and no refresh token on file", log.FieldUserID, userID)
		return fmt.Errorf("%w: %w", core.ErrReauthRequired, err)
	}

	tok, rerr := g.refresher.Refresh(ctx, user.RefreshToken)
	if rerr != nil {
		if errors.Is(rerr, core.ErrReauthRequired) {
			g.logger.WarnContext(ctx, "Refresh token no longer valid", log.FieldUserID, userID)
			return rerr
		}
		return fmt.Errorf("refresh access token: %w", rerr)
	}

	if err := g.users.UpdateTokens(ctx, userID, tok.AccessToken, tok.RefreshToken); err != nil {
		return fmt.Errorf("store refreshed token: %w", err)
	}
	g.logger.InfoContext(ctx, "Access token refreshed", log.FieldUserID, userID, log.FieldNewRefresh, tok.RefreshToken != "")

	err = g.run(ctx, tok.AccessToken, fn)
	if errors.Is(err, sheets.ErrUnauthorized) {
		return fmt.Errorf("%w: %w", core.ErrReauthRequired, err)
	}
	return err
}

func (g *Guard) run(ctx context.Context, accessToken string, fn func(context.Context, sheets.Workbook) error) error {
	wb, err := g.conn.Connect(ctx, &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	if err != nil {
		return err
	}
	return fn(ctx, wb)
}
