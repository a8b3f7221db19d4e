package goSessionAuth

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/MrEthical07/goSessionAuth/jwt"
	"github.com/MrEthical07/goSessionAuth/session"
	"github.com/MrEthical07/goSessionAuth/store"
)

// Refresh exchanges a refresh token for a new token pair, rotating the
// stored token of the session in place.
//
// The refresh token's own expiry and the session's expiry are separate
// clocks. A session past its expiry is deleted; if the user has a linked
// Google account the engine first tries to re-authenticate against Google
// and, on success, signs the user into a brand new session instead.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (res *AuthResult, err error) {
	ctx, span := e.startSpan(ctx, "Refresh")
	defer func() { endSpan(span, err) }()

	if refreshToken == "" {
		e.refreshFailed(ctx, MetricRefreshInvalidToken, "", "", ErrTokenMissing, "missing")
		return nil, ErrTokenMissing
	}

	claims, err := e.jwt.Verify(refreshToken, jwt.TypeRefresh)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			e.logger.Debug("refresh token expired", zap.Error(err))
			e.refreshFailed(ctx, MetricRefreshInvalidToken, "", "", ErrTokenExpired, "expired")
			return nil, ErrTokenExpired
		}
		e.logger.Warn("refresh token rejected",
			zap.String("ip", clientIPFromContext(ctx)),
			zap.Error(err),
		)
		e.refreshFailed(ctx, MetricRefreshInvalidToken, "", "", ErrTokenInvalid, "invalid")
		return nil, ErrTokenInvalid
	}
	span.SetAttributes(attribute.String("user.id", claims.UserID))

	sess, err := e.sessions.FindByRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, e.internalError("find session", err, zap.String("user_id", claims.UserID))
	}
	if sess == nil {
		e.refreshFailed(ctx, MetricRefreshSessionNotFound, claims.UserID, "", ErrSessionNotFound, "session_not_found")
		return nil, ErrSessionNotFound
	}
	if sess.UserID != claims.UserID {
		e.logger.Warn("refresh token and session disagree on user",
			zap.String("user_id", claims.UserID),
			zap.String("session_id", sess.ID),
		)
		e.refreshFailed(ctx, MetricRefreshSessionNotFound, claims.UserID, sess.ID, ErrUserMismatch, "user_mismatch")
		return nil, ErrUserMismatch
	}

	client := e.clientFromContext(ctx)
	if e.config.Session.StrictFingerprint && (sess.IPAddress != client.IP || sess.UserAgent != client.UserAgent) {
		e.logger.Warn("refresh from a different device",
			zap.String("user_id", sess.UserID),
			zap.String("session_id", sess.ID),
			zap.String("ip", client.IP),
		)
		e.refreshFailed(ctx, MetricRefreshFingerprintMismatch, sess.UserID, sess.ID, ErrSessionMismatch, "fingerprint_mismatch")
		return nil, ErrSessionMismatch
	}

	user, err := e.users.FindByID(ctx, sess.UserID)
	if errors.Is(err, store.ErrNotFound) {
		_ = e.sessions.Delete(ctx, sess.ID)
		e.refreshFailed(ctx, MetricRefreshSessionNotFound, sess.UserID, sess.ID, ErrSessionNotFound, "user_not_found")
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, e.internalError("load user", err, zap.String("user_id", sess.UserID))
	}

	if sess.Expired(e.now()) {
		return e.recoverStaleSession(ctx, user, sess)
	}

	var pair jwt.TokenPair
	rotated, err := e.sessions.Rotate(ctx, sess, refreshToken, client, e.issuer(user, &pair))
	if errors.Is(err, session.ErrStaleToken) {
		e.metricInc(MetricRefreshReuseDetected)
		e.logger.Warn("refresh token reuse", zap.String("user_id", user.ID), zap.String("session_id", sess.ID))
		e.refreshFailed(ctx, MetricRefreshInvalidToken, user.ID, sess.ID, ErrTokenReused, "reused")
		return nil, ErrTokenReused
	}
	if err != nil {
		return nil, e.internalError("rotate refresh token", err, zap.String("session_id", sess.ID))
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, user.ID, rotated.ID, nil, nil)

	return e.authResult(user, rotated, pair, client), nil
}

// recoverStaleSession deletes an expired session and, when the user has a
// linked Google refresh token that Google still honours, signs them into a
// fresh session.
func (e *Engine) recoverStaleSession(ctx context.Context, user *store.User, stale *store.Session) (*AuthResult, error) {
	if err := e.sessions.Delete(ctx, stale.ID); err != nil {
		return nil, e.internalError("delete stale session", err, zap.String("session_id", stale.ID))
	}
	e.metricInc(MetricSessionDeleted)

	if err := e.refreshGoogleTokens(ctx, user); err != nil {
		e.logger.Info("stale session not recovered",
			zap.String("user_id", user.ID),
			zap.String("session_id", stale.ID),
			zap.String("reason", err.Error()),
		)
		if errors.Is(err, ErrOAuthFailed) {
			e.metricInc(MetricGoogleAuthFailure)
			e.refreshFailed(ctx, MetricRefreshSessionExpired, user.ID, stale.ID, ErrOAuthFailed, "google_identity_mismatch")
			return nil, ErrOAuthFailed
		}
		e.refreshFailed(ctx, MetricRefreshSessionExpired, user.ID, stale.ID, ErrSessionExpired, "session_expired")
		return nil, ErrSessionExpired
	}

	auth, err := e.establishSession(ctx, user, "")
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricRefreshRecovered)
	e.emitAudit(ctx, auditEventRefreshRecovered, true, user.ID, auth.Session.ID, nil, func() map[string]string {
		return map[string]string{
			"stale_session_id": stale.ID,
		}
	})

	return auth, nil
}

var errNoGoogleLink = errors.New("no linked Google refresh token")

// refreshGoogleTokens renews the user's Google access token with the stored
// refresh token and persists the result. The renewed ID token must verify and
// name the same email as the user, otherwise ErrOAuthFailed is returned.
func (e *Engine) refreshGoogleTokens(ctx context.Context, user *store.User) error {
	if e.google == nil || e.sealer == nil || user.GoogleRefreshToken == nil || *user.GoogleRefreshToken == "" {
		return errNoGoogleLink
	}

	refresh, err := e.sealer.Open(*user.GoogleRefreshToken)
	if err != nil {
		return err
	}
	tokens, err := e.google.Refresh(ctx, refresh)
	if err != nil {
		return err
	}
	if tokens.IDToken == "" {
		return fmt.Errorf("%w: refresh response has no id token", ErrOAuthFailed)
	}
	ident, err := e.google.VerifyIDToken(ctx, tokens.IDToken)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOAuthFailed, err)
	}
	if normalizeEmail(ident.Email) != user.Email {
		return fmt.Errorf("%w: id token names a different account", ErrOAuthFailed)
	}

	if err := e.storeGoogleTokens(user, tokens); err != nil {
		return err
	}
	user.UpdatedAt = e.now()
	return e.users.Update(ctx, user)
}

func (e *Engine) refreshFailed(ctx context.Context, metric MetricID, userID, sessionID string, err error, reason string) {
	e.metricInc(metric)
	e.emitAudit(ctx, auditEventRefreshFailure, false, userID, sessionID, err, func() map[string]string {
		return map[string]string{
			"reason": reason,
		}
	})
}
