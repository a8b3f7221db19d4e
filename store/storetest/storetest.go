// Package storetest holds behaviour tests shared by every store.Store
// implementation.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/goSessionAuth/store"
)

// Run executes the shared suite. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Helper()

	t.Run("users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("sessions", func(t *testing.T) { testSessions(t, newStore(t)) })
	t.Run("two factor tokens", func(t *testing.T) { testTwoFactorTokens(t, newStore(t)) })
	t.Run("one time tokens", func(t *testing.T) { testOneTimeTokens(t, newStore(t)) })
}

// NewUser persists a verified user with a unique email.
func NewUser(t *testing.T, s store.Store) *store.User {
	t.Helper()

	hash := "hash"
	now := time.Now().UTC().Truncate(time.Microsecond)
	u := &store.User{
		ID:           uuid.NewString(),
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: &hash,
		IsVerified:   true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, s.Users().Create(context.Background(), u))
	return u
}

func newSession(userID, ip, ua, tokenHash string, now time.Time) *store.Session {
	id := uuid.NewString()
	return &store.Session{
		ID:        id,
		UserID:    userID,
		IPAddress: ip,
		UserAgent: ua,
		LastUsed:  now,
		ExpiresAt: now.Add(30 * 24 * time.Hour),
		CreatedAt: now,
		RefreshToken: store.RefreshToken{
			ID:        uuid.NewString(),
			SessionID: id,
			TokenHash: tokenHash,
			ExpiresAt: now.Add(7 * 24 * time.Hour),
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

func testUsers(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := NewUser(t, s)

	got, err := s.Users().FindByEmail(ctx, u.Email)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	dup := *u
	dup.ID = uuid.NewString()
	assert.ErrorIs(t, s.Users().Create(ctx, &dup), store.ErrConflict)

	got.IsTwoFactorEnabled = true
	require.NoError(t, s.Users().Update(ctx, got))
	again, err := s.Users().FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, again.IsTwoFactorEnabled)

	_, err = s.Users().FindByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, store.ErrNotFound)

	missing := &store.User{ID: uuid.NewString(), Email: "missing@example.com"}
	assert.ErrorIs(t, s.Users().Update(ctx, missing), store.ErrNotFound)
}

func testSessions(t *testing.T, s store.Store) {
	ctx := context.Background()
	repo := s.Sessions()
	u := NewUser(t, s)
	now := time.Now().UTC().Truncate(time.Microsecond)

	first := newSession(u.ID, "10.0.0.1", "ua-1", u.ID + "-hash-1", now)
	require.NoError(t, repo.Create(ctx, first))

	dup := newSession(u.ID, "10.0.0.1", "ua-1", u.ID + "-hash-2", now)
	assert.ErrorIs(t, repo.Create(ctx, dup), store.ErrConflict, "fingerprint must be unique")

	second := newSession(u.ID, "10.0.0.2", "ua-2", u.ID + "-hash-3", now.Add(time.Minute))
	require.NoError(t, repo.Create(ctx, second))

	got, err := repo.FindByTokenHash(ctx, u.ID + "-hash-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, u.ID + "-hash-1", got.RefreshToken.TokenHash)

	got, err = repo.FindByFingerprint(ctx, u.ID, "10.0.0.2", "ua-2")
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	latest, err := repo.FindLatestByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	updated, err := repo.Update(ctx, store.SessionUpdate{
		SessionID:         first.ID,
		ExpectedTokenHash: u.ID + "-hash-1",
		IPAddress:         "10.0.0.1",
		UserAgent:         "ua-1",
		LastUsed:          now.Add(2 * time.Minute),
		TokenHash:         u.ID + "-hash-4",
		TokenExpiresAt:    now.Add(8 * 24 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, u.ID + "-hash-4", updated.RefreshToken.TokenHash)

	_, err = repo.FindByTokenHash(ctx, u.ID + "-hash-1")
	assert.ErrorIs(t, err, store.ErrNotFound, "rotated token must not resolve")

	_, err = repo.Update(ctx, store.SessionUpdate{
		SessionID:         first.ID,
		ExpectedTokenHash: u.ID + "-hash-1",
		IPAddress:         "10.0.0.1",
		UserAgent:         "ua-1",
		LastUsed:          now,
		TokenHash:         u.ID + "-hash-5",
		TokenExpiresAt:    now,
	})
	assert.ErrorIs(t, err, store.ErrNotFound, "stale expected hash must not apply")

	require.NoError(t, repo.Delete(ctx, first.ID))
	assert.ErrorIs(t, repo.Delete(ctx, first.ID), store.ErrNotFound)

	list, err := repo.ListByUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, second.ID, list[0].ID)

	n, err := repo.DeleteByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = repo.FindByTokenHash(ctx, u.ID + "-hash-3")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testTwoFactorTokens(t *testing.T, s store.Store) {
	ctx := context.Background()
	repo := s.TwoFactorTokens()
	u := NewUser(t, s)
	now := time.Now().UTC().Truncate(time.Microsecond)

	first := &store.TwoFactorToken{
		ID: uuid.NewString(), UserID: u.ID, Type: store.TwoFactorToggle,
		Code: "111111", Action: store.TwoFactorActionEnable, ExpiresAt: now.Add(10 * time.Minute), CreatedAt: now,
	}
	require.NoError(t, repo.Upsert(ctx, first))

	second := &store.TwoFactorToken{
		ID: uuid.NewString(), UserID: u.ID, Type: store.TwoFactorToggle,
		Code: "222222", Action: store.TwoFactorActionDisable, ExpiresAt: now.Add(10 * time.Minute), CreatedAt: now,
	}
	require.NoError(t, repo.Upsert(ctx, second))

	got, err := repo.Find(ctx, u.ID, store.TwoFactorToggle)
	require.NoError(t, err)
	assert.Equal(t, "222222", got.Code)
	assert.Equal(t, store.TwoFactorActionDisable, got.Action)

	_, err = repo.Find(ctx, u.ID, store.TwoFactorLogin)
	assert.ErrorIs(t, err, store.ErrNotFound)

	n, err := repo.IncrementAttempts(ctx, got.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = repo.IncrementAttempts(ctx, got.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	got, err = repo.Find(ctx, u.ID, store.TwoFactorToggle)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Attempts)

	require.NoError(t, repo.Upsert(ctx, second))
	got, err = repo.Find(ctx, u.ID, store.TwoFactorToggle)
	require.NoError(t, err)
	assert.Zero(t, got.Attempts, "a fresh code starts with no failed attempts")

	require.NoError(t, repo.Delete(ctx, got.ID))
	_, err = repo.IncrementAttempts(ctx, got.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, got.ID), store.ErrNotFound)

	require.NoError(t, repo.Upsert(ctx, first))
	require.NoError(t, repo.DeleteByUser(ctx, u.ID, store.TwoFactorToggle))
	_, err = repo.Find(ctx, u.ID, store.TwoFactorToggle)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testOneTimeTokens(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := NewUser(t, s)
	now := time.Now().UTC().Truncate(time.Microsecond)

	for _, repo := range []store.OneTimeTokenRepository{s.EmailVerifications(), s.PasswordResets()} {
		first := &store.OneTimeToken{ID: uuid.NewString(), UserID: u.ID, TokenHash: "a", ExpiresAt: now.Add(time.Hour), CreatedAt: now}
		require.NoError(t, repo.Upsert(ctx, first))
		second := &store.OneTimeToken{ID: uuid.NewString(), UserID: u.ID, TokenHash: "b", ExpiresAt: now.Add(time.Hour), CreatedAt: now}
		require.NoError(t, repo.Upsert(ctx, second))

		got, err := repo.FindByUser(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "b", got.TokenHash)

		require.NoError(t, repo.Delete(ctx, got.ID))
		_, err = repo.FindByUser(ctx, u.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)
	}
}
