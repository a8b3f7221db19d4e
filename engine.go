package goSessionAuth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/MrEthical07/goSessionAuth/device"
	"github.com/MrEthical07/goSessionAuth/internal/sealer"
	"github.com/MrEthical07/goSessionAuth/jwt"
	"github.com/MrEthical07/goSessionAuth/mail"
	"github.com/MrEthical07/goSessionAuth/password"
	"github.com/MrEthical07/goSessionAuth/session"
	"github.com/MrEthical07/goSessionAuth/store"
	"github.com/MrEthical07/goSessionAuth/twofactor"
)

// Engine runs the authentication flows. Build one with [Builder]; its methods
// are safe for concurrent use.
type Engine struct {
	config   Config
	store    store.Store
	users    store.UserRepository
	sessions *session.Adapter
	gate     *twofactor.Gate
	jwt      *jwt.Manager
	hasher   *password.Manager
	mailer   mail.Sender
	google   GoogleProvider
	sealer   *sealer.Sealer
	audit    *auditDispatcher
	metrics  *Metrics
	logger   *zap.Logger
	tracer   trace.Tracer
	now      func() time.Time

	dummyHash string
}

// Close drains the audit queue and flushes the logger. Call it once, after
// the last request.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
	if e.logger != nil {
		_ = e.logger.Sync()
	}
}

// AuditDropped returns how many audit events were discarded on a full queue.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the engine counters. Maps are empty when metrics
// are disabled.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return (*Metrics)(nil).Snapshot()
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, "goSessionAuth."+op, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, KindOf(err).String())
	}
	span.End()
}

// internalError logs the underlying failure and hides it behind ErrInternal.
func (e *Engine) internalError(op string, err error, fields ...zap.Field) error {
	e.logger.Error(op+" failed", append(fields, zap.Error(err))...)
	return fmt.Errorf("%s: %w: %w", op, ErrInternal, err)
}

func (e *Engine) clientFromContext(ctx context.Context) session.Client {
	ua := userAgentFromContext(ctx)
	return session.Client{
		IP:        clientIPFromContext(ctx),
		UserAgent: ua,
		Device:    device.Classify(ua),
	}
}

func transportFor(c session.Client) Transport {
	if c.Device.MobileLike() {
		return TransportHeader
	}
	return TransportCookie
}

// issuer mints a token pair bound to the session being written and keeps
// the last pair in *pair so the caller can return it.
func (e *Engine) issuer(user *store.User, pair *jwt.TokenPair) session.IssueFunc {
	return func(sessionID string) (string, time.Time, error) {
		p, err := e.jwt.IssuePair(jwt.Subject{
			UserID:    user.ID,
			Email:     user.Email,
			SessionID: sessionID,
		})
		if err != nil {
			return "", time.Time{}, err
		}
		*pair = p
		return p.RefreshToken, p.RefreshExpiresAt, nil
	}
}

// establishSession reuses the caller's session or creates one and returns
// the complete result of a successful sign-in.
func (e *Engine) establishSession(ctx context.Context, user *store.User, presentedRefresh string) (*AuthResult, error) {
	client := e.clientFromContext(ctx)

	var pair jwt.TokenPair
	sess, err := e.sessions.FindOrCreate(ctx, session.FindOrCreateInput{
		UserID:                user.ID,
		Client:                client,
		PresentedRefreshToken: presentedRefresh,
	}, e.issuer(user, &pair))
	if err != nil {
		return nil, e.internalError("establish session", err, zap.String("user_id", user.ID))
	}

	return e.authResult(user, sess, pair, client), nil
}

func (e *Engine) authResult(user *store.User, sess *store.Session, pair jwt.TokenPair, client session.Client) *AuthResult {
	sv := sessionView(sess)
	sv.Current = true
	return &AuthResult{
		User:    userView(user),
		Session: sv,
		Tokens: Tokens{
			AccessToken:      pair.AccessToken,
			RefreshToken:     pair.RefreshToken,
			AccessExpiresAt:  pair.AccessExpiresAt,
			RefreshExpiresAt: pair.RefreshExpiresAt,
		},
		Transport: transportFor(client),
	}
}

// send delivers an email the caller depends on.
func (e *Engine) send(ctx context.Context, msg mail.Message) error {
	if err := e.mailer.Send(ctx, msg); err != nil {
		e.metricInc(MetricEmailDeliveryFailure)
		e.logger.Error("email delivery failed",
			zap.String("template", string(msg.Template)),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %w", ErrEmailDeliveryFailed, err)
	}
	return nil
}

func (e *Engine) mailData(extra map[string]any) map[string]any {
	data := map[string]any{"AppName": e.config.AppName}
	for k, v := range extra {
		data[k] = v
	}
	return data
}

func (e *Engine) clientLink(parts ...string) string {
	return strings.TrimRight(e.config.Verification.ClientURL, "/") + "/" + strings.Join(parts, "/")
}

var emailCaser = cases.Lower(language.Und)

func normalizeEmail(email string) string {
	return emailCaser.String(strings.TrimSpace(email))
}
