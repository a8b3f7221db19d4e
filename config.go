package goSessionAuth

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/MrEthical07/goSessionAuth/password"
)

// Config is the complete engine configuration. Start from [DefaultConfig].
type Config struct {
	AppName      string
	JWT          JWTConfig
	Session      SessionConfig
	TwoFactor    TwoFactorConfig
	Verification VerificationConfig
	Password     PasswordConfig
	Security     SecurityConfig
	Cookie       CookieConfig
	Google       GoogleConfig
	RateLimit    RateLimitConfig
	Metrics      MetricsConfig
	Audit        AuditConfig
	Server       ServerConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig holds the signing secrets and lifetimes of both token types.
// The secrets are immutable once the engine is built.
type JWTConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls persisted sessions.
type SessionConfig struct {
	// TTL is the absolute lifetime of a session record, independent of the
	// refresh token's own expiry.
	TTL time.Duration
	// StrictFingerprint requires refresh requests to come from the IP and
	// user-agent stored on the session.
	StrictFingerprint bool
}

// TwoFactorConfig controls emailed numeric codes.
type TwoFactorConfig struct {
	CodeDigits int
	CodeTTL    time.Duration
	// MaxAttempts is how many wrong codes a pending code survives.
	MaxAttempts int
}

// VerificationConfig controls email-verification and password-reset links.
type VerificationConfig struct {
	TokenTTL time.Duration
	// ClientURL is the frontend origin links point at.
	ClientURL string
}

// PasswordConfig selects the hashing algorithm.
type PasswordConfig struct {
	Algorithm  password.Algorithm
	BcryptCost int
	Argon2     password.Argon2Config
}

// SecurityConfig holds process-wide secrets and the development switch.
type SecurityConfig struct {
	// EncryptionKey is the hex-encoded 32-byte key sealing Google OAuth
	// tokens at rest.
	EncryptionKey string
	// Development exposes internal error details and relaxes cookie defaults.
	Development bool
}

// CookieConfig controls the web token transport.
type CookieConfig struct {
	Secure   bool
	SameSite http.SameSite
	Domain   string
}

// GoogleConfig enables Google sign-in when ClientID is set.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Enabled reports whether Google sign-in is configured.
func (g GoogleConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

// RateLimitConfig sets the per-IP fixed windows of the public endpoints.
type RateLimitConfig struct {
	Enabled      bool
	LoginLimit   int
	LoginWindow  time.Duration
	ResendLimit  int
	ResendWindow time.Duration
	RedisPrefix  string
}

// MetricsConfig toggles the in-process counters and the latency histogram.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// AuditConfig sizes the asynchronous audit queue.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// ServerConfig is read by the server binary only; the engine ignores it.
type ServerConfig struct {
	Addr                string
	DatabaseURL         string
	RedisURL            string
	ShutdownTimeout     time.Duration
	CORSOrigins         []string
	LogLevel            string
	LogDev              bool
	LogFile             string
	OTLPEndpoint        string
	// OTLPMetricsEndpoint enables OTLP metric export when set.
	OTLPMetricsEndpoint string
	SMTPHost            string
	SMTPPort            int
	SMTPUsername        string
	SMTPPassword        string
	SMTPFrom            string
}

// DefaultConfig returns production defaults. Secrets are left empty and
// must be supplied.
func DefaultConfig() Config {
	return Config{
		AppName: "goSessionAuth",
		JWT: JWTConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
			Issuer:     "goSessionAuth",
		},
		Session: SessionConfig{
			TTL:               30 * 24 * time.Hour,
			StrictFingerprint: true,
		},
		TwoFactor: TwoFactorConfig{
			CodeDigits:  6,
			CodeTTL:     10 * time.Minute,
			MaxAttempts: 5,
		},
		Verification: VerificationConfig{
			TokenTTL:  time.Hour,
			ClientURL: "http://localhost:3000",
		},
		Password: PasswordConfig{
			Algorithm:  password.AlgorithmBcrypt,
			BcryptCost: password.DefaultBcryptCost,
			Argon2:     password.DefaultArgon2Config(),
		},
		Cookie: CookieConfig{
			Secure:   true,
			SameSite: http.SameSiteStrictMode,
		},
		RateLimit: RateLimitConfig{
			Enabled:      true,
			LoginLimit:   5,
			LoginWindow:  time.Hour,
			ResendLimit:  5,
			ResendWindow: time.Hour,
			RedisPrefix:  "gsa:rl",
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
			LogLevel:        "info",
			SMTPPort:        587,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.AccessSecret = cloneBytes(cfg.JWT.AccessSecret)
	out.JWT.RefreshSecret = cloneBytes(cfg.JWT.RefreshSecret)
	out.Server.CORSOrigins = append([]string(nil), cfg.Server.CORSOrigins...)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate checks every section and returns the first problem found.
func (c *Config) Validate() error {
	// JWT
	if len(c.JWT.AccessSecret) < 32 {
		return errors.New("JWT AccessSecret must be at least 32 bytes")
	}
	if len(c.JWT.RefreshSecret) < 32 {
		return errors.New("JWT RefreshSecret must be at least 32 bytes")
	}
	if string(c.JWT.AccessSecret) == string(c.JWT.RefreshSecret) {
		return errors.New("JWT AccessSecret and RefreshSecret must differ")
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be greater than AccessTTL")
	}

	// Session
	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}

	// Two-factor
	if c.TwoFactor.CodeDigits < 4 || c.TwoFactor.CodeDigits > 10 {
		return errors.New("TwoFactor CodeDigits must be between 4 and 10")
	}
	if c.TwoFactor.CodeTTL <= 0 {
		return errors.New("TwoFactor CodeTTL must be > 0")
	}
	if c.TwoFactor.MaxAttempts < 1 {
		return errors.New("TwoFactor MaxAttempts must be >= 1")
	}

	// Verification
	if c.Verification.TokenTTL <= 0 {
		return errors.New("Verification TokenTTL must be > 0")
	}
	if _, err := url.ParseRequestURI(c.Verification.ClientURL); err != nil {
		return fmt.Errorf("Verification ClientURL is invalid: %w", err)
	}

	// Password
	switch c.Password.Algorithm {
	case "", password.AlgorithmBcrypt:
	case password.AlgorithmArgon2id:
		if err := c.Password.Argon2.Validate(); err != nil {
			return fmt.Errorf("Password Argon2: %w", err)
		}
	default:
		return fmt.Errorf("unsupported password algorithm %q", c.Password.Algorithm)
	}

	// Google
	if c.Google.Enabled() && len(c.Security.EncryptionKey) != 64 {
		return errors.New("Security EncryptionKey must be 64 hex characters when Google sign-in is enabled")
	}

	// Cookie
	if c.Cookie.SameSite == http.SameSiteNoneMode && !c.Cookie.Secure {
		return errors.New("Cookie SameSite=None requires Secure")
	}

	// Rate limit
	if c.RateLimit.Enabled {
		if c.RateLimit.LoginLimit <= 0 || c.RateLimit.LoginWindow <= 0 {
			return errors.New("RateLimit login limit and window must be > 0")
		}
		if c.RateLimit.ResendLimit <= 0 || c.RateLimit.ResendWindow <= 0 {
			return errors.New("RateLimit resend limit and window must be > 0")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}

// Lint returns advisory warnings for settings that are valid but unsafe
// outside development.
func (c *Config) Lint() []string {
	var warnings []string
	if !c.Session.StrictFingerprint {
		warnings = append(warnings, "Session StrictFingerprint is disabled; refresh tokens are accepted from any device")
	}
	if !c.Cookie.Secure {
		warnings = append(warnings, "Cookie Secure is disabled; tokens may travel over plain HTTP")
	}
	if c.Security.Development {
		warnings = append(warnings, "Security Development is enabled; internal error details are exposed")
	}
	if c.Password.Algorithm == password.AlgorithmBcrypt && c.Password.BcryptCost < password.DefaultBcryptCost {
		warnings = append(warnings, fmt.Sprintf("Password BcryptCost %d is below the default %d", c.Password.BcryptCost, password.DefaultBcryptCost))
	}
	return warnings
}
