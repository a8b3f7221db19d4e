package goSessionAuth

import (
	"context"
	"errors"
)

const (
	auditEventRegister                 = "register"
	auditEventEmailVerificationRequest = "email_verification_request"
	auditEventEmailVerificationConfirm = "email_verification_confirm"
	auditEventLoginSuccess             = "login_success"
	auditEventLoginFailure             = "login_failure"
	auditEventLoginTwoFactorRequired   = "login_two_factor_required"
	auditEventLoginTwoFactorVerify     = "login_two_factor_verify"
	auditEventRefreshSuccess           = "refresh_success"
	auditEventRefreshFailure           = "refresh_failure"
	auditEventRefreshRecovered         = "refresh_recovered"
	auditEventLogoutSession            = "logout_session"
	auditEventLogoutAll                = "logout_all"
	auditEventSessionRevoked           = "session_revoked"
	auditEventPasswordChangeRequested  = "password_change_requested"
	auditEventPasswordChangeSuccess    = "password_change_success"
	auditEventPasswordChangeFailure    = "password_change_failure"
	auditEventPasswordResetRequest     = "password_reset_request"
	auditEventPasswordResetConfirm     = "password_reset_confirm"
	auditEventTwoFactorToggleRequested = "two_factor_toggle_requested"
	auditEventTwoFactorEnabled         = "two_factor_enabled"
	auditEventTwoFactorDisabled        = "two_factor_disabled"
	auditEventTwoFactorFailure         = "two_factor_failure"
	auditEventGoogleAuth               = "google_auth"
	auditEventRateLimitTriggered       = "rate_limit_triggered"
)

// AuditErrorCode is the stable reason string recorded on failed events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrEmailNotVerified   AuditErrorCode = "email_not_verified"
	auditErrTokenExpired       AuditErrorCode = "token_expired"
	auditErrTokenInvalid       AuditErrorCode = "token_invalid"
	auditErrTokenReused        AuditErrorCode = "token_reused"
	auditErrSessionNotFound    AuditErrorCode = "session_not_found"
	auditErrUserMismatch       AuditErrorCode = "user_mismatch"
	auditErrSessionMismatch    AuditErrorCode = "session_mismatch"
	auditErrSessionExpired     AuditErrorCode = "session_expired"
	auditErrCodeNotFound       AuditErrorCode = "code_not_found"
	auditErrCodeMismatch       AuditErrorCode = "code_mismatch"
	auditErrCodeExpired        AuditErrorCode = "code_expired"
	auditErrPasswordReuse      AuditErrorCode = "password_reuse"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrNotFound           AuditErrorCode = "not_found"
	auditErrValidation         AuditErrorCode = "validation"
	auditErrOAuth              AuditErrorCode = "oauth_failed"
	auditErrDelivery           AuditErrorCode = "email_delivery_failed"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrUnauthorized       AuditErrorCode = "unauthorized"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

// RecordRateLimit counts and audits a request rejected by a rate limiter
// in front of the engine.
func (e *Engine) RecordRateLimit(ctx context.Context, scope string) {
	if scope == "login" {
		e.metricInc(MetricLoginRateLimited)
	}
	e.metricInc(MetricRateLimitHit)
	e.emitAudit(ctx, auditEventRateLimitTriggered, false, "", "", ErrRateLimited, func() map[string]string {
		return map[string]string{"scope": scope}
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrCurrentPasswordIncorrect):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrEmailNotVerified):
		return auditErrEmailNotVerified
	case errors.Is(err, ErrTokenExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrTokenInvalid), errors.Is(err, ErrTokenMissing),
		errors.Is(err, ErrInvalidVerificationToken), errors.Is(err, ErrInvalidResetToken):
		return auditErrTokenInvalid
	case errors.Is(err, ErrTokenReused):
		return auditErrTokenReused
	case errors.Is(err, ErrSessionNotFound):
		return auditErrSessionNotFound
	case errors.Is(err, ErrUserMismatch):
		return auditErrUserMismatch
	case errors.Is(err, ErrSessionMismatch):
		return auditErrSessionMismatch
	case errors.Is(err, ErrSessionExpired), errors.Is(err, ErrVerificationExpired), errors.Is(err, ErrResetExpired):
		return auditErrSessionExpired
	case errors.Is(err, ErrCodeNotFound):
		return auditErrCodeNotFound
	case errors.Is(err, ErrCodeMismatch):
		return auditErrCodeMismatch
	case errors.Is(err, ErrCodeExpired):
		return auditErrCodeExpired
	case errors.Is(err, ErrPasswordReuse):
		return auditErrPasswordReuse
	}

	switch KindOf(err) {
	case KindConflict:
		return auditErrDuplicate
	case KindNotFound:
		return auditErrNotFound
	case KindValidation:
		return auditErrValidation
	case KindOAuthFailed:
		return auditErrOAuth
	case KindEmailDeliveryFailed:
		return auditErrDelivery
	case KindRateLimited:
		return auditErrRateLimited
	case KindUnauthorized:
		return auditErrUnauthorized
	default:
		return auditErrInternal
	}
}
