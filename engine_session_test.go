package goSessionAuth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogoutRemovesOnlyThatSession(t *testing.T) {
	env := newTestEnv(t)
	u := env.verifiedUser(t, "a@x.com")
	web := env.login(t, desktopCtx(), "a@x.com")
	phoneCtx := clientCtx("203.0.113.10", iphoneUA)
	phone := env.login(t, phoneCtx, "a@x.com")

	id, err := env.engine.Authenticate(desktopCtx(), web.Tokens.AccessToken)
	require.NoError(t, err)
	require.NoError(t, env.engine.Logout(desktopCtx(), *id))

	_, err = env.engine.Refresh(desktopCtx(), web.Tokens.RefreshToken)
	require.ErrorIs(t, err, ErrSessionNotFound)
	_, err = env.engine.Authenticate(desktopCtx(), web.Tokens.AccessToken)
	require.ErrorIs(t, err, ErrSessionNotFound)

	sessions, err := env.engine.ListSessions(phoneCtx, Identity{UserID: u.ID, SessionID: phone.Session.ID})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, phone.Session.ID, sessions[0].ID)
	assert.True(t, sessions[0].Current)

	_, err = env.engine.Refresh(phoneCtx, phone.Tokens.RefreshToken)
	require.NoError(t, err)
}

func TestLogoutIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	u := env.verifiedUser(t, "a@x.com")
	auth := env.login(t, desktopCtx(), "a@x.com")

	id := Identity{UserID: u.ID, SessionID: auth.Session.ID}
	require.NoError(t, env.engine.Logout(desktopCtx(), id))
	require.NoError(t, env.engine.Logout(desktopCtx(), id))
}

func TestAuthenticateRejectsExpiredSession(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.Session.TTL = 10 * time.Minute })
	env.verifiedUser(t, "a@x.com")
	auth := env.login(t, desktopCtx(), "a@x.com")

	env.clock.Advance(11 * time.Minute)
	_, err := env.engine.Authenticate(desktopCtx(), auth.Tokens.AccessToken)
	require.ErrorIs(t, err, ErrSessionExpired)
}

func TestAuthenticateRejectsRefreshToken(t *testing.T) {
	env := newTestEnv(t)
	env.verifiedUser(t, "a@x.com")
	auth := env.login(t, desktopCtx(), "a@x.com")

	_, err := env.engine.Authenticate(desktopCtx(), auth.Tokens.RefreshToken)
	require.ErrorIs(t, err, ErrTokenInvalid)

	_, err = env.engine.Authenticate(desktopCtx(), "")
	require.ErrorIs(t, err, ErrTokenMissing)
}

func TestAuthenticateRecordsLatency(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.Metrics.EnableLatencyHistograms = true })
	env.verifiedUser(t, "a@x.com")
	auth := env.login(t, desktopCtx(), "a@x.com")

	_, err := env.engine.Authenticate(desktopCtx(), auth.Tokens.AccessToken)
	require.NoError(t, err)

	var total uint64
	for _, n := range env.engine.MetricsSnapshot().Histograms[MetricAuthenticateLatency] {
		total += n
	}
	assert.Equal(t, uint64(1), total)
}

func TestRevokeSessionChecksOwner(t *testing.T) {
	env := newTestEnv(t)
	alice := env.verifiedUser(t, "alice@x.com")
	bob := env.verifiedUser(t, "bob@x.com")
	aliceAuth := env.login(t, desktopCtx(), "alice@x.com")

	err := env.engine.RevokeSession(context.Background(), bob.ID, aliceAuth.Session.ID)
	require.ErrorIs(t, err, ErrSessionNotOwned)
	assert.Equal(t, 1, env.sessionCount(t, alice.ID))

	require.NoError(t, env.engine.RevokeSession(context.Background(), alice.ID, aliceAuth.Session.ID))
	assert.Equal(t, 0, env.sessionCount(t, alice.ID))
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)
	u := env.verifiedUser(t, "a@x.com")

	me, err := env.engine.Me(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", me.Email)
	assert.True(t, me.IsVerified)
	assert.True(t, me.HasPassword)
	assert.False(t, me.GoogleLinked)

	_, err = env.engine.Me(context.Background(), "missing")
	require.ErrorIs(t, err, ErrUserNotFound)
}
