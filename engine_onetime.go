package goSessionAuth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MrEthical07/goSessionAuth/internal"
	"github.com/MrEthical07/goSessionAuth/store"
)

// issueOneTimeToken replaces the user's pending record in repo and returns
// the raw token for the email link. Only its digest is stored.
func (e *Engine) issueOneTimeToken(ctx context.Context, repo store.OneTimeTokenRepository, userID string) (string, error) {
	now := e.now()
	tok, err := internal.NewVerificationToken(now, e.config.Verification.TokenTTL)
	if err != nil {
		return "", e.internalError("generate token", err)
	}
	rec := &store.OneTimeToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: internal.HashToken(tok.Token),
		ExpiresAt: tok.ExpiresAt,
		CreatedAt: now,
	}
	if err := repo.Upsert(ctx, rec); err != nil {
		return "", e.internalError("store token", err, zap.String("user_id", userID))
	}
	return tok.Token, nil
}

// matchOneTimeToken returns the user's pending record if token matches it.
// Expiry is left to the caller.
func (e *Engine) matchOneTimeToken(ctx context.Context, repo store.OneTimeTokenRepository, userID, token string, invalid error) (*store.OneTimeToken, error) {
	if userID == "" || token == "" {
		return nil, invalid
	}
	rec, err := repo.FindByUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, invalid
	}
	if err != nil {
		return nil, e.internalError("load token", err, zap.String("user_id", userID))
	}
	if !internal.TokenMatches(token, rec.TokenHash) {
		return nil, invalid
	}
	return rec, nil
}

// consumeOneTimeToken deletes rec. Losing the delete to a concurrent
// request means the token was already used.
func (e *Engine) consumeOneTimeToken(ctx context.Context, repo store.OneTimeTokenRepository, rec *store.OneTimeToken, invalid error) error {
	err := repo.Delete(ctx, rec.ID)
	if errors.Is(err, store.ErrNotFound) {
		return invalid
	}
	if err != nil {
		return e.internalError("delete token", err, zap.String("user_id", rec.UserID))
	}
	return nil
}

func (e *Engine) expired(rec *store.OneTimeToken) bool {
	return !e.now().Before(rec.ExpiresAt)
}
