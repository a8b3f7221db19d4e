package goSessionAuth

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/MrEthical07/goSessionAuth/mail"
	"github.com/MrEthical07/goSessionAuth/password"
	"github.com/MrEthical07/goSessionAuth/store"
	"github.com/MrEthical07/goSessionAuth/twofactor"
)

// ChangePassword verifies the current password and replaces it. With
// two-factor enabled the change is deferred: a PASSWORD_CHANGE code is
// emailed and the new password is applied by [Engine.VerifyChangePassword].
func (e *Engine) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) (res *PasswordChangeResult, err error) {
	ctx, span := e.startSpan(ctx, "ChangePassword", attribute.String("user.id", userID))
	defer func() { endSpan(span, err) }()

	v := &ValidationError{}
	requireField(v, "currentPassword", currentPassword, "Current password is required")
	validatePassword(v, "newPassword", newPassword)
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.HasPassword() {
		return nil, ErrSocialAccount
	}

	ok, err := e.hasher.Verify(currentPassword, *user.PasswordHash)
	if err != nil || !ok {
		e.passwordChangeFailed(ctx, userID, ErrCurrentPasswordIncorrect, "current_password")
		return nil, ErrCurrentPasswordIncorrect
	}
	if newPassword == currentPassword {
		e.metricInc(MetricPasswordChangeReuseRejected)
		e.passwordChangeFailed(ctx, userID, ErrPasswordReuse, "reuse")
		return nil, ErrPasswordReuse
	}

	if user.IsTwoFactorEnabled {
		if _, err := e.gate.Initiate(ctx, twofactor.Recipient{UserID: user.ID, Email: user.Email}, store.TwoFactorPasswordChange, store.TwoFactorActionNone); err != nil {
			return nil, e.mapGateError("initiate password change code", err)
		}
		e.metricInc(MetricTwoFactorCodeSent)
		e.emitAudit(ctx, auditEventPasswordChangeRequested, true, user.ID, "", nil, nil)
		return &PasswordChangeResult{TwoFactorRequired: true}, nil
	}

	if err := e.applyPasswordChange(ctx, user, newPassword); err != nil {
		return nil, err
	}
	return &PasswordChangeResult{}, nil
}

// VerifyChangePassword consumes the PASSWORD_CHANGE code and applies
// newPassword. A password equal to the current one is rejected before the
// code is consumed, so the user can retry with the same code.
func (e *Engine) VerifyChangePassword(ctx context.Context, userID, code, newPassword string) (err error) {
	ctx, span := e.startSpan(ctx, "VerifyChangePassword", attribute.String("user.id", userID))
	defer func() { endSpan(span, err) }()

	v := &ValidationError{}
	requireField(v, "code", code, "Code is required")
	validatePassword(v, "newPassword", newPassword)
	if err := v.OrNil(); err != nil {
		return err
	}

	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if !user.HasPassword() {
		return ErrSocialAccount
	}
	if same, _ := e.hasher.Verify(newPassword, *user.PasswordHash); same {
		e.metricInc(MetricPasswordChangeReuseRejected)
		e.passwordChangeFailed(ctx, userID, ErrPasswordReuse, "reuse")
		return ErrPasswordReuse
	}

	if _, err := e.gate.Verify(ctx, user.ID, store.TwoFactorPasswordChange, code); err != nil {
		err = e.mapGateError("verify password change code", err)
		e.metricInc(MetricTwoFactorCodeFailed)
		e.passwordChangeFailed(ctx, userID, err, "code")
		return err
	}
	e.metricInc(MetricTwoFactorCodeVerified)

	return e.applyPasswordChange(ctx, user, newPassword)
}

func (e *Engine) applyPasswordChange(ctx context.Context, user *store.User, newPassword string) error {
	if err := e.setPassword(ctx, user, newPassword); err != nil {
		return err
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChangeSuccess, true, user.ID, "", nil, nil)
	return e.send(ctx, mail.Message{
		To:       user.Email,
		Template: mail.TemplateChangePasswordComplete,
		Data:     e.mailData(nil),
	})
}

func (e *Engine) setPassword(ctx context.Context, user *store.User, newPassword string) error {
	hash, err := e.hashPassword("newPassword", newPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = &hash
	user.UpdatedAt = e.now()
	if err := e.users.Update(ctx, user); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return e.internalError("update password", err, zap.String("user_id", user.ID))
	}
	return nil
}

// hashPassword reports inputs the hasher cannot take as validation errors.
func (e *Engine) hashPassword(path, pw string) (string, error) {
	hash, err := e.hasher.Hash(pw)
	if errors.Is(err, password.ErrPasswordTooLong) {
		v := &ValidationError{}
		v.Add(path, "Password is too long")
		return "", v
	}
	if err != nil {
		return "", e.internalError("hash password", err)
	}
	return hash, nil
}

func (e *Engine) passwordChangeFailed(ctx context.Context, userID string, err error, reason string) {
	e.emitAudit(ctx, auditEventPasswordChangeFailure, false, userID, "", err, func() map[string]string {
		return map[string]string{
			"reason": reason,
		}
	})
}
