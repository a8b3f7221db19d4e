package goSessionAuth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/MrEthical07/goSessionAuth/store"
)

// GoogleAuth signs a user in with a Google authorization code. The account
// is created on first use (verified, without a password) or linked to the
// existing account with the same email. Google accounts skip the
// two-factor code step.
func (e *Engine) GoogleAuth(ctx context.Context, code string) (res *AuthResult, err error) {
	ctx, span := e.startSpan(ctx, "GoogleAuth")
	defer func() { endSpan(span, err) }()
	defer func() {
		if err != nil {
			e.metricInc(MetricGoogleAuthFailure)
			e.emitAudit(ctx, auditEventGoogleAuth, false, "", "", err, nil)
		}
	}()

	if e.google == nil || e.sealer == nil {
		return nil, ErrGoogleNotConfigured
	}
	v := &ValidationError{}
	requireField(v, "code", code, "Authorization code is required")
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	tokens, err := e.google.Exchange(ctx, code)
	if err != nil {
		e.logger.Warn("google code exchange failed", zap.Error(err))
		return nil, ErrOAuthFailed
	}
	if tokens.IDToken == "" {
		e.logger.Warn("google token response has no id token")
		return nil, ErrOAuthFailed
	}
	ident, err := e.google.VerifyIDToken(ctx, tokens.IDToken)
	if err != nil {
		e.logger.Warn("google id token rejected", zap.Error(err))
		return nil, ErrOAuthFailed
	}
	email := normalizeEmail(ident.Email)
	if email == "" || ident.Subject == "" {
		return nil, ErrOAuthFailed
	}

	user, err := e.users.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		user, err = e.createGoogleUser(ctx, email, ident, tokens)
	case err != nil:
		return nil, e.internalError("load user", err)
	default:
		err = e.linkGoogleUser(ctx, user, ident, tokens)
	}
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("user.id", user.ID))

	auth, err := e.establishSession(ctx, user, "")
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricGoogleAuthSuccess)
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventGoogleAuth, true, user.ID, auth.Session.ID, nil, nil)

	return auth, nil
}

func (e *Engine) createGoogleUser(ctx context.Context, email string, ident GoogleIdentity, tokens GoogleTokens) (*store.User, error) {
	now := e.now()
	sub := ident.Subject
	user := &store.User{
		ID:         uuid.NewString(),
		Email:      email,
		FirstName:  ident.GivenName,
		LastName:   ident.FamilyName,
		AvatarURL:  ident.Picture,
		IsVerified: true,
		GoogleID:   &sub,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := e.storeGoogleTokens(user, tokens); err != nil {
		return nil, e.internalError("seal google tokens", err)
	}
	if err := e.users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrGoogleIDConflict
		}
		return nil, e.internalError("create user", err)
	}
	e.metricInc(MetricRegistrationSuccess)
	e.emitAudit(ctx, auditEventRegister, true, user.ID, "", nil, func() map[string]string {
		return map[string]string{
			"provider": "google",
		}
	})
	return user, nil
}

func (e *Engine) linkGoogleUser(ctx context.Context, user *store.User, ident GoogleIdentity, tokens GoogleTokens) error {
	if user.GoogleID != nil && *user.GoogleID != ident.Subject {
		return ErrGoogleIDConflict
	}

	sub := ident.Subject
	user.GoogleID = &sub
	user.IsVerified = true
	if ident.GivenName != "" {
		user.FirstName = ident.GivenName
	}
	if ident.FamilyName != "" {
		user.LastName = ident.FamilyName
	}
	if ident.Picture != "" {
		user.AvatarURL = ident.Picture
	}
	if err := e.storeGoogleTokens(user, tokens); err != nil {
		return e.internalError("seal google tokens", err, zap.String("user_id", user.ID))
	}
	user.UpdatedAt = e.now()

	if err := e.users.Update(ctx, user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return ErrGoogleIDConflict
		}
		return e.internalError("link google account", err, zap.String("user_id", user.ID))
	}
	return nil
}

// storeGoogleTokens seals the tokens onto user. Google only returns a
// refresh token on first consent, so an empty one keeps the stored value.
func (e *Engine) storeGoogleTokens(user *store.User, tokens GoogleTokens) error {
	access, err := e.sealer.Seal(tokens.AccessToken)
	if err != nil {
		return err
	}
	user.GoogleAccessToken = &access

	if tokens.RefreshToken != "" {
		refresh, err := e.sealer.Seal(tokens.RefreshToken)
		if err != nil {
			return err
		}
		user.GoogleRefreshToken = &refresh
	}

	if !tokens.Expiry.IsZero() {
		expiry := tokens.Expiry
		user.GoogleTokenExpiry = &expiry
	}
	return nil
}
