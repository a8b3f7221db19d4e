package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const minSecretLength = 32

var (
	// ErrTokenExpired is returned by Verify when the embedded expiry has passed.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid is returned by Verify when the signature, structure,
	// issuer or token type does not check out.
	ErrTokenInvalid = errors.New("token invalid")
)

// TokenType distinguishes access tokens from refresh tokens.
type TokenType string

const (
	// TypeAccess marks a short-lived access token.
	TypeAccess TokenType = "access"
	// TypeRefresh marks a refresh token bound to a persisted session.
	TypeRefresh TokenType = "refresh"
)

// Config holds the signing secrets and token lifetimes. The two secrets must
// differ so a refresh token never verifies as an access token.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Leeway        time.Duration
	// Now overrides the clock used to stamp and check tokens.
	Now func() time.Time
}

// Claims is the payload carried by both token types.
type Claims struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Type      TokenType `json:"type"`
	SessionID string    `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// Subject identifies who a token pair is minted for.
type Subject struct {
	UserID    string
	Email     string
	SessionID string
}

// TokenPair is an access token and a refresh token minted together.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Manager signs and verifies HS256 token pairs.
type Manager struct {
	config Config
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.AccessTTL >= cfg.RefreshTTL {
		return nil, errors.New("access TTL must be shorter than refresh TTL")
	}
	if len(cfg.AccessSecret) < minSecretLength || len(cfg.RefreshSecret) < minSecretLength {
		return nil, fmt.Errorf("signing secrets must be at least %d bytes", minSecretLength)
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Manager{config: cfg}, nil
}

// AccessTTL returns the configured access token lifetime.
func (m *Manager) AccessTTL() time.Duration { return m.config.AccessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (m *Manager) RefreshTTL() time.Duration { return m.config.RefreshTTL }

// IssuePair signs a fresh access token and refresh token for sub. Every call
// yields distinct token values, even within the same second, because each
// token carries a random jti.
func (m *Manager) IssuePair(sub Subject) (TokenPair, error) {
	if sub.UserID == "" {
		return TokenPair{}, errors.New("empty user id")
	}

	now := m.config.Now()

	access, accessExp, err := m.sign(sub, TypeAccess, now)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := m.sign(sub, TypeRefresh, now)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Verify returns ErrTokenExpired once the clock has passed the embedded
// expiry and ErrTokenInvalid for any other failure, including a token of
// the wrong type.
func (m *Manager) Verify(tokenStr string, expected TokenType) (*Claims, error) {
	secret, _, err := m.keyFor(expected)
	if err != nil {
		return nil, err
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.config.Now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Type != expected {
		return nil, fmt.Errorf("%w: expected %s token, got %q", ErrTokenInvalid, expected, claims.Type)
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing userId", ErrTokenInvalid)
	}

	return claims, nil
}

func (m *Manager) sign(sub Subject, typ TokenType, now time.Time) (string, time.Time, error) {
	secret, ttl, err := m.keyFor(typ)
	if err != nil {
		return "", time.Time{}, err
	}

	exp := now.Add(ttl)
	claims := Claims{
		UserID:    sub.UserID,
		Email:     sub.Email,
		Type:      typ,
		SessionID: sub.SessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   sub.UserID,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (m *Manager) keyFor(typ TokenType) ([]byte, time.Duration, error) {
	switch typ {
	case TypeAccess:
		return m.config.AccessSecret, m.config.AccessTTL, nil
	case TypeRefresh:
		return m.config.RefreshSecret, m.config.RefreshTTL, nil
	default:
		return nil, 0, fmt.Errorf("%w: unknown token type %q", ErrTokenInvalid, typ)
	}
}
