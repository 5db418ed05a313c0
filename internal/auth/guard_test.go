package auth

import (
	"context"
	"errors"
	"testing"

	"sheetexpense/internal/backend"
	"sheetexpense/internal/core"
	"sheetexpense/internal/log"
	"sheetexpense/internal/sheets"
	"sheetexpense/internal/sheets/memory"
	"sheetexpense/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeUsers struct {
	users   map[int64]storage.User
	updates int
}

func (f *fakeUsers) GetUser(_ context.Context, id int64) (storage.User, error) {
	u, ok := f.users[id]
	if !ok {
		return storage.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) UpdateTokens(_ context.Context, id int64, access, refresh string) error {
	u, ok := f.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	f.updates++
	u.AccessToken = access
	if refresh != "" {
		u.RefreshToken = refresh
	}
	f.users[id] = u
	return nil
}

type fakeRefresher struct {
	token *oauth2.Token
	err   error
	calls int
}

func (f *fakeRefresher) Refresh(_ context.Context, _ string) (*oauth2.Token, error) {
	f.calls++
	return f.token, f.err
}

type guardFixture struct {
	svc       *memory.Service
	users     *fakeUsers
	refresher *fakeRefresher
	guard     *Guard
}

func newGuardFixture(refreshToken string) *guardFixture {
	svc := memory.New()
	users := &fakeUsers{users: map[int64]storage.User{
		1: {ID: 1, AccessToken: "old-access", RefreshToken: refreshToken},
	}}
	refresher := &fakeRefresher{token: &oauth2.Token{AccessToken: "new-access"}}
	return &guardFixture{
		svc:       svc,
		users:     users,
		refresher: refresher,
		guard:     NewGuard(users, backend.MemoryConnector{Service: svc}, refresher, log.Discard().Logger),
	}
}

func listTabs(calls *int) func(context.Context, sheets.Workbook) error {
	return func(ctx context.Context, wb sheets.Workbook) error {
		*calls++
		id, err := wb.CreateSpreadsheet(ctx, "Expenses-2024")
		if err != nil {
			return err
		}
		_, err = wb.ListSheets(ctx, id)
		return err
	}
}

func TestGuardPassesThroughWithValidToken(t *testing.T) {
	fx := newGuardFixture("refresh")
	calls := 0

	require.NoError(t, fx.guard.Do(context.Background(), 1, listTabs(&calls)))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, fx.refresher.calls)
}

func TestGuardRefreshesAndRetriesOnce(t *testing.T) {
	fx := newGuardFixture("refresh")
	fx.svc.Revoke("old-access")
	calls := 0

	require.NoError(t, fx.guard.Do(context.Background(), 1, listTabs(&calls)))
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, fx.refresher.calls)
	assert.Equal(t, "new-access", fx.users.users[1].AccessToken)
	assert.Equal(t, "refresh", fx.users.users[1].RefreshToken, "refresh token kept when none issued")
}

func TestGuardStoresRotatedRefreshToken(t *testing.T) {
	fx := newGuardFixture("refresh")
	fx.svc.Revoke("old-access")
	fx.refresher.token = &oauth2.Token{AccessToken: "new-access", RefreshToken: "rotated"}
	calls := 0

	require.NoError(t, fx.guard.Do(context.Background(), 1, listTabs(&calls)))
	assert.Equal(t, "rotated", fx.users.users[1].RefreshToken)
}

func TestGuardRequiresReauth(t *testing.T) {
	tests := []struct {
		name         string
		refreshToken string
		setup        func(fx *guardFixture)
		wantCalls    int
		wantRefresh  int
	}{
		{
			name:         "no refresh token",
			refreshToken: "",
			setup:        func(fx *guardFixture) { fx.svc.Revoke("old-access") },
			wantCalls:    1,
			wantRefresh:  0,
		},
		{
			name:         "refresh grant revoked",
			refreshToken: "refresh",
			setup: func(fx *guardFixture) {
				fx.svc.Revoke("old-access")
				fx.refresher.token = nil
				fx.refresher.err = core.ErrReauthRequired
			},
			wantCalls:   1,
			wantRefresh: 1,
		},
		{
			name:         "refreshed token also rejected",
			refreshToken: "refresh",
			setup: func(fx *guardFixture) {
				fx.svc.Revoke("old-access")
				fx.svc.Revoke("new-access")
			},
			wantCalls:   2,
			wantRefresh: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newGuardFixture(tt.refreshToken)
			tt.setup(fx)
			calls := 0

			err := fx.guard.Do(context.Background(), 1, listTabs(&calls))
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrReauthRequired)
			assert.Equal(t, tt.wantCalls, calls)
			assert.Equal(t, tt.wantRefresh, fx.refresher.calls)
		})
	}
}

func TestGuardUnknownUser(t *testing.T) {
	fx := newGuardFixture("refresh")
	calls := 0

	err := fx.guard.Do(context.Background(), 99, listTabs(&calls))
	assert.ErrorIs(t, err, core.ErrReauthRequired)
	assert.Equal(t, 0, calls)
}

func TestGuardDoesNotRefreshOnOtherErrors(t *testing.T) {
	fx := newGuardFixture("refresh")
	boom := errors.New("quota exceeded")

	err := fx.guard.Do(context.Background(), 1, func(context.Context, sheets.Workbook) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, fx.refresher.calls)
}
