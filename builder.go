package goSessionAuth

import (
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/MrEthical07/goSessionAuth/internal/sealer"
	"github.com/MrEthical07/goSessionAuth/jwt"
	"github.com/MrEthical07/goSessionAuth/mail"
	"github.com/MrEthical07/goSessionAuth/password"
	"github.com/MrEthical07/goSessionAuth/session"
	"github.com/MrEthical07/goSessionAuth/store"
	"github.com/MrEthical07/goSessionAuth/twofactor"
)

const tracerName = "github.com/MrEthical07/goSessionAuth"

// Builder assembles an [Engine]. It is not safe for concurrent use; call
// Build once and share the Engine.
type Builder struct {
	config Config

	store     store.Store
	mailer    mail.Sender
	google    GoogleProvider
	logger    *zap.Logger
	auditSink AuditSink
	tracer    trace.TracerProvider
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration. The secrets are copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the persistence collaborator. Required.
func (b *Builder) WithStore(s store.Store) *Builder {
	b.store = s
	return b
}

// WithMailer sets the email delivery collaborator. Required.
func (b *Builder) WithMailer(m mail.Sender) *Builder {
	b.mailer = m
	return b
}

// WithGoogleProvider enables Google sign-in and stale-session recovery.
func (b *Builder) WithGoogleProvider(p GoogleProvider) *Builder {
	b.google = p
	return b
}

func (b *Builder) WithLogger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.tracer = tp
	return b
}

// WithClock overrides the wall clock for every expiry decision. Tests use
// it to simulate time passing.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled overrides Config.Metrics.Enabled.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires the engine. A Builder can
// be used once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.store == nil {
		return nil, errors.New("store required")
	}
	if b.mailer == nil {
		return nil, errors.New("mailer required")
	}
	if cfg.Google.Enabled() && b.google == nil {
		return nil, errors.New("Google sign-in is configured but no provider was supplied")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tp := b.tracer
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	engine := &Engine{
		config: cfg,
		users:  b.store.Users(),
		store:  b.store,
		mailer: b.mailer,
		google: b.google,
		logger: logger.Named("auth"),
		tracer: tp.Tracer(tracerName),
		now:    now,
	}

	engine.sessions = session.New(b.store.Sessions(), session.Config{
		TTL: cfg.Session.TTL,
		Now: now,
		OnWrite: func(created bool) {
			if created {
				engine.metricInc(MetricSessionCreated)
			} else {
				engine.metricInc(MetricSessionReused)
			}
		},
	})
	engine.gate = twofactor.New(b.store.TwoFactorTokens(), b.mailer, twofactor.Config{
		Digits:      cfg.TwoFactor.CodeDigits,
		TTL:         cfg.TwoFactor.CodeTTL,
		MaxAttempts: cfg.TwoFactor.MaxAttempts,
		Now:         now,
	})

	jm, err := jwt.NewManager(jwt.Config{
		AccessSecret:  cloneBytes(cfg.JWT.AccessSecret),
		RefreshSecret: cloneBytes(cfg.JWT.RefreshSecret),
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		Issuer:        cfg.JWT.Issuer,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}
	engine.jwt = jm

	ph, err := password.NewManager(password.Config{
		Algorithm:  cfg.Password.Algorithm,
		BcryptCost: cfg.Password.BcryptCost,
		Argon2:     cfg.Password.Argon2,
	})
	if err != nil {
		return nil, err
	}
	engine.hasher = ph
	// Compared against when the email is unknown so both branches cost a hash.
	engine.dummyHash, err = ph.Hash("timing-equalizer-password")
	if err != nil {
		return nil, err
	}

	if cfg.Security.EncryptionKey != "" {
		s, err := sealer.NewFromHex(cfg.Security.EncryptionKey)
		if err != nil {
			return nil, err
		}
		engine.sealer = s
	}

	sink := b.auditSink
	if sink == nil {
		sink = NewZapSink(logger)
	}
	engine.audit = newAuditDispatcher(cfg.Audit, sink)
	engine.metrics = NewMetrics(cfg.Metrics)

	for _, w := range cfg.Lint() {
		engine.logger.Warn("insecure configuration", zap.String("warning", w))
	}

	b.built = true

	return engine, nil
}
