package goSessionAuth

import (
	"context"
	"time"

	"github.com/MrEthical07/goSessionAuth/store"
)

// Transport tells the HTTP boundary how to hand tokens back to a client.
// Mobile-like clients get headers and a JSON body; everyone else gets
// HttpOnly cookies.
type Transport uint8

const (
	TransportCookie Transport = iota
	TransportHeader
)

func (t Transport) String() string {
	if t == TransportHeader {
		return "header"
	}
	return "cookie"
}

// UserView is the client-facing projection of a user.
type UserView struct {
	ID                 string    `json:"id"`
	Email              string    `json:"email"`
	FirstName          string    `json:"firstName,omitempty"`
	LastName           string    `json:"lastName,omitempty"`
	AvatarURL          string    `json:"avatarUrl,omitempty"`
	IsVerified         bool      `json:"isVerified"`
	IsTwoFactorEnabled bool      `json:"isTwoFactorEnabled"`
	HasPassword        bool      `json:"hasPassword"`
	GoogleLinked       bool      `json:"googleLinked"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// SessionView is the client-facing projection of a session.
type SessionView struct {
	ID         string    `json:"id"`
	IPAddress  string    `json:"ipAddress"`
	UserAgent  string    `json:"userAgent"`
	DeviceType string    `json:"deviceType,omitempty"`
	DeviceName string    `json:"deviceName,omitempty"`
	Browser    string    `json:"browser,omitempty"`
	OS         string    `json:"os,omitempty"`
	LastUsed   time.Time `json:"lastUsed"`
	ExpiresAt  time.Time `json:"expiresAt"`
	CreatedAt  time.Time `json:"createdAt"`
	Current    bool      `json:"current,omitempty"`
}

// Tokens is a freshly minted access/refresh pair.
type Tokens struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"accessTokenExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshTokenExpiresAt"`
}

// AuthResult is returned by every operation that establishes or renews a
// session.
type AuthResult struct {
	User      UserView
	Session   SessionView
	Tokens    Tokens
	Transport Transport
}

// LoginOutcome distinguishes a completed login from one waiting on a code.
type LoginOutcome string

const (
	OutcomeLogin     LoginOutcome = "LOGIN"
	OutcomeTwoFactor LoginOutcome = "TWO_FACTOR"
)

// LoginResult is returned by [Engine.Login]. Auth is nil when Outcome is
// OutcomeTwoFactor; the code never appears in the result.
type LoginResult struct {
	Outcome LoginOutcome
	UserID  string
	Auth    *AuthResult
}

// LoginInput is the credential payload of a login. RefreshToken is the
// token the client already holds, if any, so the same browser keeps its
// session.
type LoginInput struct {
	Email        string
	Password     string
	RefreshToken string
}

// VerifyLoginInput completes a two-factor login.
type VerifyLoginInput struct {
	UserID       string
	Code         string
	RefreshToken string
}

// RegisterInput creates a password account.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// RegisterResult is returned by [Engine.Register].
type RegisterResult struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// PasswordChangeResult reports whether the change is waiting on a code.
type PasswordChangeResult struct {
	TwoFactorRequired bool
}

// Identity is attached to authenticated requests.
type Identity struct {
	UserID    string
	Email     string
	SessionID string
}

// GoogleTokens is the OAuth token set returned by Google.
type GoogleTokens struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	Expiry       time.Time
}

// GoogleIdentity is the verified content of a Google ID token.
type GoogleIdentity struct {
	Subject       string
	Email         string
	EmailVerified bool
	GivenName     string
	FamilyName    string
	Picture       string
}

// GoogleProvider is the OAuth identity collaborator.
type GoogleProvider interface {
	Exchange(ctx context.Context, code string) (GoogleTokens, error)
	VerifyIDToken(ctx context.Context, idToken string) (GoogleIdentity, error)
	Refresh(ctx context.Context, refreshToken string) (GoogleTokens, error)
}

func userView(u *store.User) UserView {
	return UserView{
		ID:                 u.ID,
		Email:              u.Email,
		FirstName:          u.FirstName,
		LastName:           u.LastName,
		AvatarURL:          u.AvatarURL,
		IsVerified:         u.IsVerified,
		IsTwoFactorEnabled: u.IsTwoFactorEnabled,
		HasPassword:        u.HasPassword(),
		GoogleLinked:       u.GoogleID != nil,
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
}

func sessionView(s *store.Session) SessionView {
	return SessionView{
		ID:         s.ID,
		IPAddress:  s.IPAddress,
		UserAgent:  s.UserAgent,
		DeviceType: s.DeviceType,
		DeviceName: s.DeviceName,
		Browser:    s.Browser,
		OS:         s.OS,
		LastUsed:   s.LastUsed,
		ExpiresAt:  s.ExpiresAt,
		CreatedAt:  s.CreatedAt,
	}
}
