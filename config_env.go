package goSessionAuth

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"

	"github.com/MrEthical07/goSessionAuth/password"
)

// envConfig is the flat environment view of Config.
type envConfig struct {
	AppName string `env:"APP_NAME" envDefault:"goSessionAuth"`

	AccessTokenSecret  string        `env:"ACCESS_TOKEN_SECRET,required"`
	RefreshTokenSecret string        `env:"REFRESH_TOKEN_SECRET,required"`
	AccessTokenExpiry  time.Duration `env:"ACCESS_TOKEN_EXPIRY" envDefault:"15m"`
	RefreshTokenExpiry time.Duration `env:"REFRESH_TOKEN_EXPIRY" envDefault:"168h"`
	TokenIssuer        string        `env:"TOKEN_ISSUER" envDefault:"goSessionAuth"`

	SessionTTL        time.Duration `env:"SESSION_TTL" envDefault:"720h"`
	StrictFingerprint bool          `env:"STRICT_FINGERPRINT" envDefault:"true"`

	TwoFactorDigits      int           `env:"TWO_FACTOR_DIGITS" envDefault:"6"`
	TwoFactorTTL         time.Duration `env:"TWO_FACTOR_TTL" envDefault:"10m"`
	TwoFactorMaxAttempts int           `env:"TWO_FACTOR_MAX_ATTEMPTS" envDefault:"5"`

	VerificationTTL time.Duration `env:"VERIFICATION_TOKEN_TTL" envDefault:"1h"`
	ClientURL       string        `env:"CLIENT_URL" envDefault:"http://localhost:3000"`

	PasswordAlgorithm string `env:"PASSWORD_ALGORITHM" envDefault:"bcrypt"`
	BcryptCost        int    `env:"BCRYPT_COST" envDefault:"10"`
	Argon2MemoryKB    uint32 `env:"ARGON2_MEMORY_KB" envDefault:"65536"`
	Argon2Time        uint32 `env:"ARGON2_TIME" envDefault:"3"`
	Argon2Parallelism uint8  `env:"ARGON2_PARALLELISM" envDefault:"2"`

	EncryptionKey string `env:"ENCRYPTION_KEY"`
	Environment   string `env:"APP_ENV" envDefault:"production"`

	CookieSecure   *bool  `env:"COOKIE_SECURE"`
	CookieSameSite string `env:"COOKIE_SAMESITE" envDefault:"strict"`
	CookieDomain   string `env:"COOKIE_DOMAIN"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `env:"GOOGLE_REDIRECT_URL" envDefault:"postmessage"`

	RateLimitEnabled bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	LoginLimit       int           `env:"LOGIN_RATE_LIMIT" envDefault:"5"`
	LoginWindow      time.Duration `env:"LOGIN_RATE_WINDOW" envDefault:"1h"`
	ResendLimit      int           `env:"RESEND_RATE_LIMIT" envDefault:"5"`
	ResendWindow     time.Duration `env:"RESEND_RATE_WINDOW" envDefault:"1h"`

	MetricsEnabled   bool `env:"METRICS_ENABLED" envDefault:"true"`
	AuditEnabled     bool `env:"AUDIT_ENABLED" envDefault:"true"`
	AuditBufferSize  int  `env:"AUDIT_BUFFER_SIZE" envDefault:"1024"`
	AuditDropIfFull  bool `env:"AUDIT_DROP_IF_FULL" envDefault:"true"`

	Addr            string        `env:"HTTP_ADDR" envDefault:":8080"`
	DatabaseURL     string        `env:"DATABASE_URL"`
	RedisURL        string        `env:"REDIS_URL"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	CORSOrigins     []string      `env:"CORS_ORIGINS" envSeparator:","`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogDev          bool          `env:"LOG_DEV"`
	LogFile         string        `env:"LOG_FILE"`
	OTLPEndpoint    string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPMetrics     string        `env:"OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"`
	SMTPHost        string        `env:"SMTP_HOST"`
	SMTPPort        int           `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername    string        `env:"SMTP_USERNAME"`
	SMTPPassword    string        `env:"SMTP_PASSWORD"`
	SMTPFrom        string        `env:"SMTP_FROM"`

	ConfigFile string `env:"CONFIG_FILE"`
}

// fileConfig is the optional YAML overlay. Only non-zero values override
// the environment.
type fileConfig struct {
	AppName string `yaml:"app_name"`
	JWT     struct {
		AccessTTL  time.Duration `yaml:"access_ttl"`
		RefreshTTL time.Duration `yaml:"refresh_ttl"`
		Issuer     string        `yaml:"issuer"`
	} `yaml:"jwt"`
	Session struct {
		TTL               time.Duration `yaml:"ttl"`
		StrictFingerprint *bool         `yaml:"strict_fingerprint"`
	} `yaml:"session"`
	TwoFactor struct {
		CodeDigits  int           `yaml:"code_digits"`
		CodeTTL     time.Duration `yaml:"code_ttl"`
		MaxAttempts int           `yaml:"max_attempts"`
	} `yaml:"two_factor"`
	Verification struct {
		TokenTTL  time.Duration `yaml:"token_ttl"`
		ClientURL string        `yaml:"client_url"`
	} `yaml:"verification"`
	RateLimit struct {
		Enabled     *bool         `yaml:"enabled"`
		LoginLimit  int           `yaml:"login_limit"`
		LoginWindow time.Duration `yaml:"login_window"`
		ResendLimit int           `yaml:"resend_limit"`
	} `yaml:"rate_limit"`
	Server struct {
		Addr        string   `yaml:"addr"`
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"server"`
}

// ConfigFromEnv loads .env files (when present), parses the environment,
// applies the YAML file named by CONFIG_FILE and validates the result.
func ConfigFromEnv(dotenvFiles ...string) (Config, error) {
	if err := godotenv.Load(dotenvFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load dotenv: %w", err)
	}

	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg, err := raw.toConfig()
	if err != nil {
		return Config{}, err
	}

	if raw.ConfigFile != "" {
		if err := applyConfigFile(&cfg, raw.ConfigFile); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (r envConfig) toConfig() (Config, error) {
	cfg := DefaultConfig()
	dev := strings.EqualFold(r.Environment, "development")

	cfg.AppName = r.AppName
	cfg.JWT = JWTConfig{
		AccessSecret:  []byte(r.AccessTokenSecret),
		RefreshSecret: []byte(r.RefreshTokenSecret),
		AccessTTL:     r.AccessTokenExpiry,
		RefreshTTL:    r.RefreshTokenExpiry,
		Issuer:        r.TokenIssuer,
	}
	cfg.Session = SessionConfig{TTL: r.SessionTTL, StrictFingerprint: r.StrictFingerprint}
	cfg.TwoFactor = TwoFactorConfig{
		CodeDigits:  r.TwoFactorDigits,
		CodeTTL:     r.TwoFactorTTL,
		MaxAttempts: r.TwoFactorMaxAttempts,
	}
	cfg.Verification = VerificationConfig{TokenTTL: r.VerificationTTL, ClientURL: r.ClientURL}
	cfg.Password.Algorithm = password.Algorithm(strings.ToLower(r.PasswordAlgorithm))
	cfg.Password.BcryptCost = r.BcryptCost
	cfg.Password.Argon2.Memory = r.Argon2MemoryKB
	cfg.Password.Argon2.Time = r.Argon2Time
	cfg.Password.Argon2.Parallelism = r.Argon2Parallelism
	cfg.Security = SecurityConfig{EncryptionKey: r.EncryptionKey, Development: dev}

	sameSite, err := parseSameSite(r.CookieSameSite)
	if err != nil {
		return Config{}, err
	}
	cfg.Cookie = CookieConfig{Secure: !dev, SameSite: sameSite, Domain: r.CookieDomain}
	if r.CookieSecure != nil {
		cfg.Cookie.Secure = *r.CookieSecure
	}

	cfg.Google = GoogleConfig{
		ClientID:     r.GoogleClientID,
		ClientSecret: r.GoogleClientSecret,
		RedirectURL:  r.GoogleRedirectURL,
	}
	cfg.RateLimit.Enabled = r.RateLimitEnabled
	cfg.RateLimit.LoginLimit = r.LoginLimit
	cfg.RateLimit.LoginWindow = r.LoginWindow
	cfg.RateLimit.ResendLimit = r.ResendLimit
	cfg.RateLimit.ResendWindow = r.ResendWindow
	cfg.Metrics.Enabled = r.MetricsEnabled
	cfg.Audit = AuditConfig{Enabled: r.AuditEnabled, BufferSize: r.AuditBufferSize, DropIfFull: r.AuditDropIfFull}
	cfg.Server = ServerConfig{
		Addr:                r.Addr,
		DatabaseURL:         r.DatabaseURL,
		RedisURL:            r.RedisURL,
		ShutdownTimeout:     r.ShutdownTimeout,
		CORSOrigins:         r.CORSOrigins,
		LogLevel:            r.LogLevel,
		LogDev:              r.LogDev,
		LogFile:             r.LogFile,
		OTLPEndpoint:        r.OTLPEndpoint,
		OTLPMetricsEndpoint: r.OTLPMetrics,
		SMTPHost:            r.SMTPHost,
		SMTPPort:            r.SMTPPort,
		SMTPUsername:        r.SMTPUsername,
		SMTPPassword:        r.SMTPPassword,
		SMTPFrom:            r.SMTPFrom,
	}
	return cfg, nil
}

func applyConfigFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&cfg.AppName, fc.AppName)
	setDuration(&cfg.JWT.AccessTTL, fc.JWT.AccessTTL)
	setDuration(&cfg.JWT.RefreshTTL, fc.JWT.RefreshTTL)
	setString(&cfg.JWT.Issuer, fc.JWT.Issuer)
	setDuration(&cfg.Session.TTL, fc.Session.TTL)
	if fc.Session.StrictFingerprint != nil {
		cfg.Session.StrictFingerprint = *fc.Session.StrictFingerprint
	}
	if fc.TwoFactor.CodeDigits != 0 {
		cfg.TwoFactor.CodeDigits = fc.TwoFactor.CodeDigits
	}
	setDuration(&cfg.TwoFactor.CodeTTL, fc.TwoFactor.CodeTTL)
	if fc.TwoFactor.MaxAttempts != 0 {
		cfg.TwoFactor.MaxAttempts = fc.TwoFactor.MaxAttempts
	}
	setDuration(&cfg.Verification.TokenTTL, fc.Verification.TokenTTL)
	setString(&cfg.Verification.ClientURL, fc.Verification.ClientURL)
	if fc.RateLimit.Enabled != nil {
		cfg.RateLimit.Enabled = *fc.RateLimit.Enabled
	}
	if fc.RateLimit.LoginLimit != 0 {
		cfg.RateLimit.LoginLimit = fc.RateLimit.LoginLimit
	}
	setDuration(&cfg.RateLimit.LoginWindow, fc.RateLimit.LoginWindow)
	if fc.RateLimit.ResendLimit != 0 {
		cfg.RateLimit.ResendLimit = fc.RateLimit.ResendLimit
	}
	setString(&cfg.Server.Addr, fc.Server.Addr)
	if len(fc.Server.CORSOrigins) > 0 {
		cfg.Server.CORSOrigins = fc.Server.CORSOrigins
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}

func parseSameSite(v string) (http.SameSite, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "strict":
		return http.SameSiteStrictMode, nil
	case "lax":
		return http.SameSiteLaxMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, fmt.Errorf("unsupported COOKIE_SAMESITE %q", v)
	}
}
