package auth

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLogin(t *testing.T) {
	l := NewLocal("/auth/google/callback")

	login := l.NewLogin()
	u, err := url.Parse(login.URL)
	require.NoError(t, err)
	assert.Equal(t, "/auth/google/callback", u.Path)
	assert.Equal(t, login.State, u.Query().Get("state"))

	users := &recordingUsers{}
	user, err := l.CompleteLogin(context.Background(), users, u.Query().Get("code"), "")
	require.NoError(t, err)
	assert.Equal(t, "dev@localhost", user.Email)
	assert.Equal(t, "local", users.googleID)

	_, err = l.CompleteLogin(context.Background(), users, "forged", "")
	assert.Error(t, err)

	tok, err := l.Refresh(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, users.access, tok.AccessToken)
}
