package store

import "time"

// TwoFactorType identifies the purpose a two-factor code gates.
type TwoFactorType string

const (
	TwoFactorLogin          TwoFactorType = "LOGIN"
	TwoFactorPasswordChange TwoFactorType = "PASSWORD_CHANGE"
	TwoFactorToggle         TwoFactorType = "TWO_FACTOR"
)

// TwoFactorAction is the change a toggle code applies once verified.
type TwoFactorAction string

const (
	TwoFactorActionNone    TwoFactorAction = ""
	TwoFactorActionEnable  TwoFactorAction = "ENABLE"
	TwoFactorActionDisable TwoFactorAction = "DISABLE"
)

// User is an identity record. PasswordHash is nil for accounts created
// through Google sign-in that never set a password.
type User struct {
	ID                 string  `gorm:"primaryKey;type:uuid"`
	Email              string  `gorm:"uniqueIndex;not null"`
	PasswordHash       *string `gorm:"column:password"`
	FirstName          string
	LastName           string
	AvatarURL          string
	IsVerified         bool `gorm:"not null;default:false"`
	IsTwoFactorEnabled bool `gorm:"not null;default:false"`

	// Google linkage. Tokens are sealed before they reach the store.
	GoogleID           *string `gorm:"uniqueIndex"`
	GoogleAccessToken  *string
	GoogleRefreshToken *string
	GoogleTokenExpiry  *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (User) TableName() string { return "users" }

// HasPassword reports whether the account can sign in with a password.
func (u *User) HasPassword() bool {
	return u != nil && u.PasswordHash != nil && *u.PasswordHash != ""
}

// Session binds a user to a device fingerprint (IP address, user agent).
// At most one session exists per fingerprint.
type Session struct {
	ID         string `gorm:"primaryKey;type:uuid"`
	UserID     string `gorm:"type:uuid;not null;uniqueIndex:idx_sessions_fingerprint,priority:1;index"`
	IPAddress  string `gorm:"not null;uniqueIndex:idx_sessions_fingerprint,priority:2"`
	UserAgent  string `gorm:"not null;uniqueIndex:idx_sessions_fingerprint,priority:3"`
	DeviceType string
	DeviceName string
	Browser    string
	OS         string `gorm:"column:os"`
	LastUsed   time.Time `gorm:"not null"`
	ExpiresAt  time.Time `gorm:"not null;index"`
	CreatedAt  time.Time

	RefreshToken RefreshToken `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
}

func (Session) TableName() string { return "sessions" }

// Expired reports whether the session's own lifetime has elapsed at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// RefreshToken is owned by exactly one session. Only the SHA-256 digest of
// the token value is stored; lookups are exact matches on the digest.
type RefreshToken struct {
	ID        string    `gorm:"primaryKey;type:uuid"`
	SessionID string    `gorm:"type:uuid;not null;uniqueIndex"`
	TokenHash string    `gorm:"not null;uniqueIndex"`
	ExpiresAt time.Time `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (RefreshToken) TableName() string { return "refresh_tokens" }

// TwoFactorToken is a pending numeric code, unique per (UserID, Type).
type TwoFactorToken struct {
	ID        string          `gorm:"primaryKey;type:uuid"`
	UserID    string          `gorm:"type:uuid;not null;uniqueIndex:idx_two_factor_user_type,priority:1"`
	Type      TwoFactorType   `gorm:"not null;uniqueIndex:idx_two_factor_user_type,priority:2"`
	Code      string          `gorm:"not null"`
	Action    TwoFactorAction `gorm:"column:action"`
	Attempts  int             `gorm:"not null;default:0"`
	ExpiresAt time.Time       `gorm:"not null"`
	CreatedAt time.Time
}

func (TwoFactorToken) TableName() string { return "two_factor_tokens" }

// OneTimeToken is the shape shared by email-verification and password-reset
// records: one per user, holding the digest of a high-entropy token.
type OneTimeToken struct {
	ID        string    `gorm:"primaryKey;type:uuid"`
	UserID    string    `gorm:"type:uuid;not null;uniqueIndex"`
	TokenHash string    `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null"`
	CreatedAt time.Time
}
