package goSessionAuth

import (
	"errors"
	"strings"
)

// Kind classifies an engine error for the transport boundary.
type Kind uint8

const (
	KindInternal Kind = iota
	KindValidation
	KindInvalidCredentials
	KindEmailNotVerified
	KindUnauthorized
	KindCode
	KindConflict
	KindNotFound
	KindOAuthFailed
	KindRateLimited
	KindEmailDeliveryFailed
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindEmailNotVerified:
		return "email_not_verified"
	case KindUnauthorized:
		return "unauthorized"
	case KindCode:
		return "code"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindOAuthFailed:
		return "oauth_failed"
	case KindRateLimited:
		return "rate_limited"
	case KindEmailDeliveryFailed:
		return "email_delivery_failed"
	default:
		return "internal"
	}
}

// Error is a classified engine error. Sentinels are compared with errors.Is.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

func newError(kind Kind, msg string) *Error { return &Error{Kind: kind, Message: msg} }

var (
	// ErrInvalidCredentials is returned for both unknown emails and wrong passwords.
	ErrInvalidCredentials = newError(KindInvalidCredentials, "Invalid email or password")
	// ErrEmailNotVerified is returned when an unverified account logs in.
	ErrEmailNotVerified = newError(KindEmailNotVerified, "Please verify your email first")

	ErrUnauthorized    = newError(KindUnauthorized, "Unauthorized")
	ErrTokenMissing    = newError(KindUnauthorized, "Authentication token is missing")
	ErrTokenExpired    = newError(KindUnauthorized, "Token has expired")
	ErrTokenInvalid    = newError(KindUnauthorized, "Invalid token")
	ErrSessionNotFound = newError(KindUnauthorized, "Session not found")
	ErrUserMismatch    = newError(KindUnauthorized, "Session does not belong to this user")
	ErrSessionMismatch = newError(KindUnauthorized, "Session does not match this device")
	ErrSessionExpired  = newError(KindUnauthorized, "Session has expired, please log in again")
	// ErrTokenReused is returned when a refresh token lost a rotation race.
	ErrTokenReused = newError(KindUnauthorized, "Refresh token has already been used")

	ErrCodeNotFound = newError(KindCode, "Verification code not found or already used")
	ErrCodeMismatch = newError(KindCode, "Invalid verification code")
	ErrCodeExpired  = newError(KindCode, "Verification code has expired")

	ErrUserExists       = newError(KindConflict, "User with this email already exists")
	ErrGoogleIDConflict = newError(KindConflict, "Google account is linked to another user")

	ErrUserNotFound    = newError(KindNotFound, "User not found")
	ErrSessionNotOwned = newError(KindNotFound, "Session not found")

	ErrAlreadyVerified          = newError(KindValidation, "Email is already verified")
	ErrPasswordReuse            = newError(KindValidation, "New password must be different from the current password")
	ErrInvalidVerificationToken = newError(KindValidation, "Invalid verification token")
	ErrVerificationExpired      = newError(KindValidation, "Verification token has expired")
	ErrInvalidResetToken        = newError(KindValidation, "Invalid or expired reset token")
	ErrResetExpired             = newError(KindValidation, "Reset token has expired")
	ErrSocialAccount            = newError(KindValidation, "This account signs in with Google and has no password")
	ErrCurrentPasswordIncorrect = newError(KindInvalidCredentials, "Current password is incorrect")

	ErrOAuthFailed         = newError(KindOAuthFailed, "Google authentication failed")
	ErrGoogleNotConfigured = newError(KindOAuthFailed, "Google sign-in is not configured")

	ErrRateLimited = newError(KindRateLimited, "Too many requests, please try again later")

	ErrEmailDeliveryFailed = newError(KindEmailDeliveryFailed, "Failed to send email")

	ErrInternal       = newError(KindInternal, "Internal server error")
	ErrEngineNotReady = newError(KindInternal, "engine not initialized")
)

// FieldError is one offending input field.
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationError carries one message per offending field.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Path+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a failure for path.
func (e *ValidationError) Add(path, message string) {
	e.Fields = append(e.Fields, FieldError{Path: path, Message: message})
}

// OrNil returns e when it has fields, nil otherwise.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// KindOf classifies err. Errors that are neither *Error nor
// *ValidationError are internal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return KindValidation
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
