package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a lookup or conditional write matches no record.
	ErrNotFound = errors.New("store: record not found")
	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("store: record conflict")
)

// Store groups the repositories the engine needs.
type Store interface {
	Users() UserRepository
	Sessions() SessionRepository
	TwoFactorTokens() TwoFactorTokenRepository
	EmailVerifications() OneTimeTokenRepository
	PasswordResets() OneTimeTokenRepository
}

// UserRepository persists users. Emails are stored already normalised.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, user *User) error
}

// SessionUpdate replaces the mutable parts of a session and its refresh
// token. When ExpectedTokenHash is set the write only applies if the stored
// refresh token still has that digest; otherwise ErrNotFound is returned.
type SessionUpdate struct {
	SessionID         string
	ExpectedTokenHash string

	IPAddress  string
	UserAgent  string
	DeviceType string
	DeviceName string
	Browser    string
	OS         string
	LastUsed   time.Time

	TokenHash      string
	TokenExpiresAt time.Time
}

// SessionRepository persists sessions together with their refresh token.
// Every returned session has RefreshToken populated.
type SessionRepository interface {
	// Create inserts the session and its refresh token atomically. It
	// returns ErrConflict when the fingerprint or token digest is taken.
	Create(ctx context.Context, session *Session) error
	FindByID(ctx context.Context, id string) (*Session, error)
	FindByTokenHash(ctx context.Context, tokenHash string) (*Session, error)
	FindByFingerprint(ctx context.Context, userID, ip, userAgent string) (*Session, error)
	// FindLatestByUser returns the most recently used session of userID.
	FindLatestByUser(ctx context.Context, userID string) (*Session, error)
	ListByUser(ctx context.Context, userID string) ([]Session, error)
	Update(ctx context.Context, update SessionUpdate) (*Session, error)
	Delete(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}

// TwoFactorTokenRepository persists pending two-factor codes.
type TwoFactorTokenRepository interface {
	// Upsert replaces any token for the same (UserID, Type) in one write.
	Upsert(ctx context.Context, token *TwoFactorToken) error
	Find(ctx context.Context, userID string, typ TwoFactorType) (*TwoFactorToken, error)
	// IncrementAttempts records one failed verification and returns the new
	// count; ErrNotFound if the token is gone.
	IncrementAttempts(ctx context.Context, id string) (int, error)
	// Delete removes the token by id; ErrNotFound if it was already consumed.
	Delete(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID string, typ TwoFactorType) error
}

// OneTimeTokenRepository persists email-verification or password-reset records.
type OneTimeTokenRepository interface {
	// Upsert replaces any record for the same user.
	Upsert(ctx context.Context, token *OneTimeToken) error
	FindByUser(ctx context.Context, userID string) (*OneTimeToken, error)
	Delete(ctx context.Context, id string) error
}
