package goSessionAuth

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/goSessionAuth/password"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
		wantErr   string
	}{
		{
			name:      "test defaults valid",
			mutate:    func(*Config) {},
			wantValid: true,
		},
		{
			name: "short access secret",
			mutate: func(c *Config) {
				c.JWT.AccessSecret = []byte("short")
			},
			wantErr: "AccessSecret",
		},
		{
			name: "identical secrets",
			mutate: func(c *Config) {
				c.JWT.RefreshSecret = append([]byte(nil), c.JWT.AccessSecret...)
			},
			wantErr: "must differ",
		},
		{
			name: "refresh ttl not above access ttl",
			mutate: func(c *Config) {
				c.JWT.RefreshTTL = c.JWT.AccessTTL
			},
			wantErr: "RefreshTTL",
		},
		{
			name: "zero session ttl",
			mutate: func(c *Config) {
				c.Session.TTL = 0
			},
			wantErr: "Session TTL",
		},
		{
			name: "code digits too small",
			mutate: func(c *Config) {
				c.TwoFactor.CodeDigits = 3
			},
			wantErr: "CodeDigits",
		},
		{
			name: "code digits upper bound",
			mutate: func(c *Config) {
				c.TwoFactor.CodeDigits = 10
			},
			wantValid: true,
		},
		{
			name: "two-factor attempts zero",
			mutate: func(c *Config) {
				c.TwoFactor.MaxAttempts = 0
			},
			wantErr: "MaxAttempts",
		},
		{
			name: "client url invalid",
			mutate: func(c *Config) {
				c.Verification.ClientURL = "not a url"
			},
			wantErr: "ClientURL",
		},
		{
			name: "argon2 allowed",
			mutate: func(c *Config) {
				c.Password.Algorithm = password.AlgorithmArgon2id
			},
			wantValid: true,
		},
		{
			name: "argon2 memory too low",
			mutate: func(c *Config) {
				c.Password.Algorithm = password.AlgorithmArgon2id
				c.Password.Argon2.Memory = 1024
			},
			wantErr: "Argon2",
		},
		{
			name: "unknown hash algorithm",
			mutate: func(c *Config) {
				c.Password.Algorithm = "md5"
			},
			wantErr: "algorithm",
		},
		{
			name: "google without encryption key",
			mutate: func(c *Config) {
				c.Google = GoogleConfig{ClientID: "id", ClientSecret: "secret"}
				c.Security.EncryptionKey = ""
			},
			wantErr: "EncryptionKey",
		},
		{
			name: "google with encryption key",
			mutate: func(c *Config) {
				c.Google = GoogleConfig{ClientID: "id", ClientSecret: "secret"}
			},
			wantValid: true,
		},
		{
			name: "samesite none without secure",
			mutate: func(c *Config) {
				c.Cookie.SameSite = http.SameSiteNoneMode
				c.Cookie.Secure = false
			},
			wantErr: "SameSite=None",
		},
		{
			name: "rate limit zero window",
			mutate: func(c *Config) {
				c.RateLimit.Enabled = true
				c.RateLimit.LoginWindow = 0
			},
			wantErr: "RateLimit",
		},
		{
			name: "rate limit disabled ignores window",
			mutate: func(c *Config) {
				c.RateLimit.Enabled = false
				c.RateLimit.LoginWindow = 0
			},
			wantValid: true,
		},
		{
			name: "audit enabled zero buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantErr: "BufferSize",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestDefaultConfigNeedsSecrets(t *testing.T) {
	cfg := DefaultConfig()
	require.Error(t, cfg.Validate())

	assert.Equal(t, 30*24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.JWT.RefreshTTL)
	assert.Equal(t, 6, cfg.TwoFactor.CodeDigits)
	assert.Equal(t, 10*time.Minute, cfg.TwoFactor.CodeTTL)
	assert.Equal(t, 5, cfg.TwoFactor.MaxAttempts)
	assert.Equal(t, time.Hour, cfg.Verification.TokenTTL)
	assert.True(t, cfg.Session.StrictFingerprint)
	assert.True(t, cfg.Cookie.Secure)
}

func TestConfigLint(t *testing.T) {
	cfg := DefaultConfig()
	assert.Empty(t, cfg.Lint())

	cfg.Session.StrictFingerprint = false
	cfg.Cookie.Secure = false
	cfg.Security.Development = true
	cfg.Password.BcryptCost = 4

	warnings := cfg.Lint()
	require.Len(t, warnings, 4)
	joined := strings.Join(warnings, "\n")
	assert.Contains(t, joined, "StrictFingerprint")
	assert.Contains(t, joined, "Secure")
	assert.Contains(t, joined, "Development")
	assert.Contains(t, joined, "BcryptCost 4")
}

func TestCloneConfigCopiesSecrets(t *testing.T) {
	cfg := testConfig()
	cfg.Server.CORSOrigins = []string{"https://app.example.com"}

	clone := cloneConfig(cfg)
	cfg.JWT.AccessSecret[0] = 'X'
	cfg.Server.CORSOrigins[0] = "https://evil.example.com"

	assert.Equal(t, byte('a'), clone.JWT.AccessSecret[0])
	assert.Equal(t, "https://app.example.com", clone.Server.CORSOrigins[0])
}

func TestBuilderRejectsReuseAndMissingDependencies(t *testing.T) {
	env := newTestEnv(t)

	_, err := New().WithConfig(testConfig()).WithMailer(env.mailer).Build()
	require.Error(t, err)

	_, err = New().WithConfig(testConfig()).WithStore(env.store).Build()
	require.Error(t, err)

	cfg := testConfig()
	cfg.Google = GoogleConfig{ClientID: "id", ClientSecret: "secret"}
	_, err = New().WithConfig(cfg).WithStore(env.store).WithMailer(env.mailer).Build()
	require.Error(t, err)

	b := New().WithConfig(testConfig()).WithStore(env.store).WithMailer(env.mailer)
	engine, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	_, err = b.Build()
	require.Error(t, err)
}
