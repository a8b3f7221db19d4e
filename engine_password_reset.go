package goSessionAuth

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/MrEthical07/goSessionAuth/mail"
	"github.com/MrEthical07/goSessionAuth/store"
)

// RequestPasswordReset emails a reset link for email.
//
// A fresh reset record replaces any pending one and the reset link
// {ClientURL}/auth/reset-password/{userId}/{token} is emailed. Unknown
// emails fail with ErrUserNotFound.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) (err error) {
	ctx, span := e.startSpan(ctx, "RequestPasswordReset")
	defer func() { endSpan(span, err) }()

	email = normalizeEmail(email)
	v := &ValidationError{}
	validateEmail(v, "email", email)
	if err := v.OrNil(); err != nil {
		return err
	}

	user, err := e.users.FindByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		e.metricInc(MetricPasswordResetFailure)
		return ErrUserNotFound
	}
	if err != nil {
		return e.internalError("load user", err)
	}
	span.SetAttributes(attribute.String("user.id", user.ID))

	token, err := e.issueOneTimeToken(ctx, e.store.PasswordResets(), user.ID)
	if err != nil {
		return err
	}

	if err := e.send(ctx, mail.Message{
		To:       user.Email,
		Template: mail.TemplateResetPassword,
		Data: e.mailData(map[string]any{
			"Link":             e.clientLink("auth", "reset-password", user.ID, token),
			"ExpiresInMinutes": int(e.config.Verification.TokenTTL / time.Minute),
		}),
	}); err != nil {
		return err
	}

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, auditEventPasswordResetRequest, true, user.ID, "", nil, nil)
	return nil
}

// ResetPassword sets a new password using the token from the reset email.
// The token is single-use.
func (e *Engine) ResetPassword(ctx context.Context, userID, token, newPassword string) (err error) {
	ctx, span := e.startSpan(ctx, "ResetPassword", attribute.String("user.id", userID))
	defer func() { endSpan(span, err) }()
	defer func() {
		if err != nil {
			e.metricInc(MetricPasswordResetFailure)
			e.emitAudit(ctx, auditEventPasswordResetConfirm, false, userID, "", err, nil)
		}
	}()

	v := &ValidationError{}
	requireField(v, "userId", userID, "User id is required")
	requireField(v, "token", token, "Token is required")
	validatePassword(v, "password", newPassword)
	if err := v.OrNil(); err != nil {
		return err
	}

	resets := e.store.PasswordResets()
	rec, err := e.matchOneTimeToken(ctx, resets, userID, token, ErrInvalidResetToken)
	if err != nil {
		return err
	}

	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if !user.HasPassword() {
		return ErrSocialAccount
	}
	if e.expired(rec) {
		_ = resets.Delete(ctx, rec.ID)
		return ErrResetExpired
	}
	if same, _ := e.hasher.Verify(newPassword, *user.PasswordHash); same {
		return ErrPasswordReuse
	}

	if err := e.consumeOneTimeToken(ctx, resets, rec, ErrInvalidResetToken); err != nil {
		return err
	}
	if err := e.setPassword(ctx, user, newPassword); err != nil {
		return err
	}

	e.metricInc(MetricPasswordResetSuccess)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, user.ID, "", nil, nil)
	return e.send(ctx, mail.Message{
		To:       user.Email,
		Template: mail.TemplateChangePasswordComplete,
		Data:     e.mailData(nil),
	})
}
