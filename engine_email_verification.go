package goSessionAuth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/MrEthical07/goSessionAuth/mail"
	"github.com/MrEthical07/goSessionAuth/store"
)

// Register creates an unverified password account and emails the
// verification link {ClientURL}/auth/verify-email/{userId}/{token}.
//
// The account exists even if the email cannot be delivered; the caller gets
// ErrEmailDeliveryFailed and the user can ask for the link again.
func (e *Engine) Register(ctx context.Context, in RegisterInput) (res *RegisterResult, err error) {
	ctx, span := e.startSpan(ctx, "Register")
	defer func() { endSpan(span, err) }()

	email := normalizeEmail(in.Email)
	v := &ValidationError{}
	validateEmail(v, "email", email)
	validatePassword(v, "password", in.Password)
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	if _, err := e.users.FindByEmail(ctx, email); err == nil {
		e.metricInc(MetricRegistrationDuplicate)
		e.emitAudit(ctx, auditEventRegister, false, "", "", ErrUserExists, nil)
		return nil, ErrUserExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, e.internalError("load user", err)
	}

	hash, err := e.hashPassword("password", in.Password)
	if err != nil {
		return nil, err
	}

	now := e.now()
	user := &store.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: &hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			e.metricInc(MetricRegistrationDuplicate)
			return nil, ErrUserExists
		}
		return nil, e.internalError("create user", err)
	}
	span.SetAttributes(attribute.String("user.id", user.ID))

	e.metricInc(MetricRegistrationSuccess)
	e.emitAudit(ctx, auditEventRegister, true, user.ID, "", nil, nil)
	e.logger.Info("user registered", zap.String("user_id", user.ID))

	if err := e.sendVerification(ctx, user); err != nil {
		return nil, err
	}

	return &RegisterResult{ID: user.ID, Email: user.Email, CreatedAt: user.CreatedAt}, nil
}

// VerifyEmail marks the account verified using the token from the email
// link. The token is single-use.
func (e *Engine) VerifyEmail(ctx context.Context, userID, token string) (err error) {
	ctx, span := e.startSpan(ctx, "VerifyEmail", attribute.String("user.id", userID))
	defer func() { endSpan(span, err) }()
	defer func() {
		if err != nil {
			e.metricInc(MetricEmailVerificationFailure)
			e.emitAudit(ctx, auditEventEmailVerificationConfirm, false, userID, "", err, nil)
		}
	}()

	verifications := e.store.EmailVerifications()
	rec, err := e.matchOneTimeToken(ctx, verifications, userID, token, ErrInvalidVerificationToken)
	if err != nil {
		return err
	}

	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.IsVerified {
		return ErrAlreadyVerified
	}
	if e.expired(rec) {
		return ErrVerificationExpired
	}

	if err := e.consumeOneTimeToken(ctx, verifications, rec, ErrInvalidVerificationToken); err != nil {
		return err
	}
	user.IsVerified = true
	user.UpdatedAt = e.now()
	if err := e.users.Update(ctx, user); err != nil {
		return e.internalError("mark verified", err, zap.String("user_id", user.ID))
	}

	e.metricInc(MetricEmailVerificationSuccess)
	e.emitAudit(ctx, auditEventEmailVerificationConfirm, true, user.ID, "", nil, nil)
	return e.send(ctx, mail.Message{
		To:       user.Email,
		Template: mail.TemplateVerificationComplete,
		Data:     e.mailData(nil),
	})
}

// ResendVerification issues a fresh verification link, replacing the
// pending one.
func (e *Engine) ResendVerification(ctx context.Context, email string) (err error) {
	ctx, span := e.startSpan(ctx, "ResendVerification")
	defer func() { endSpan(span, err) }()

	email = normalizeEmail(email)
	v := &ValidationError{}
	validateEmail(v, "email", email)
	if err := v.OrNil(); err != nil {
		return err
	}

	user, err := e.users.FindByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return e.internalError("load user", err)
	}
	if user.IsVerified {
		return ErrAlreadyVerified
	}

	return e.sendVerification(ctx, user)
}

func (e *Engine) sendVerification(ctx context.Context, user *store.User) error {
	token, err := e.issueOneTimeToken(ctx, e.store.EmailVerifications(), user.ID)
	if err != nil {
		return err
	}

	if err := e.send(ctx, mail.Message{
		To:       user.Email,
		Template: mail.TemplateVerifyEmail,
		Data: e.mailData(map[string]any{
			"Link":             e.clientLink("auth", "verify-email", user.ID, token),
			"ExpiresInMinutes": int(e.config.Verification.TokenTTL / time.Minute),
		}),
	}); err != nil {
		e.emitAudit(ctx, auditEventEmailVerificationRequest, false, user.ID, "", err, nil)
		return err
	}

	e.metricInc(MetricEmailVerificationSent)
	e.emitAudit(ctx, auditEventEmailVerificationRequest, true, user.ID, "", nil, nil)
	return nil
}
