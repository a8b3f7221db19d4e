package goSessionAuth

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/MrEthical07/goSessionAuth/store"
	"github.com/MrEthical07/goSessionAuth/twofactor"
)

// Login checks credentials and either signs the user in or, when two-factor
// is enabled, emails a LOGIN code and returns OutcomeTwoFactor with only the
// user id.
//
// Unknown emails and wrong passwords both fail with ErrInvalidCredentials.
// A correct password on an unverified account fails with ErrEmailNotVerified.
func (e *Engine) Login(ctx context.Context, in LoginInput) (res *LoginResult, err error) {
	if e == nil || e.hasher == nil {
		return nil, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "Login")
	defer func() { endSpan(span, err) }()

	email := normalizeEmail(in.Email)
	v := &ValidationError{}
	validateEmail(v, "email", email)
	requireField(v, "password", in.Password, "Password is required")
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	user, err := e.checkCredentials(ctx, email, in.Password)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("user.id", user.ID))

	if user.IsTwoFactorEnabled {
		if _, err := e.gate.Initiate(ctx, twofactor.Recipient{UserID: user.ID, Email: user.Email}, store.TwoFactorLogin, store.TwoFactorActionNone); err != nil {
			err = e.mapGateError("initiate login code", err)
			e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, "", err, func() map[string]string {
				return map[string]string{
					"reason": "two_factor_initiate",
				}
			})
			return nil, err
		}
		e.metricInc(MetricTwoFactorCodeSent)
		e.metricInc(MetricLoginTwoFactorRequired)
		e.emitAudit(ctx, auditEventLoginTwoFactorRequired, true, user.ID, "", nil, nil)
		return &LoginResult{Outcome: OutcomeTwoFactor, UserID: user.ID}, nil
	}

	auth, err := e.establishSession(ctx, user, in.RefreshToken)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.ID, auth.Session.ID, nil, nil)
	e.logger.Info("login",
		zap.String("user_id", user.ID),
		zap.String("session_id", auth.Session.ID),
		zap.String("ip", clientIPFromContext(ctx)),
	)

	return &LoginResult{Outcome: OutcomeLogin, UserID: user.ID, Auth: auth}, nil
}

// VerifyLoginTwoFactor consumes the pending LOGIN code and completes the
// sign-in exactly as Login does for accounts without two-factor.
func (e *Engine) VerifyLoginTwoFactor(ctx context.Context, in VerifyLoginInput) (res *AuthResult, err error) {
	ctx, span := e.startSpan(ctx, "VerifyLoginTwoFactor", attribute.String("user.id", in.UserID))
	defer func() { endSpan(span, err) }()

	v := &ValidationError{}
	requireField(v, "userId", in.UserID, "User id is required")
	requireField(v, "code", in.Code, "Code is required")
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	user, err := e.users.FindByID(ctx, in.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, e.internalError("load user", err, zap.String("user_id", in.UserID))
	}

	if _, err := e.gate.Verify(ctx, user.ID, store.TwoFactorLogin, in.Code); err != nil {
		err = e.mapGateError("verify login code", err)
		e.metricInc(MetricTwoFactorCodeFailed)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginTwoFactorVerify, false, user.ID, "", err, nil)
		return nil, err
	}
	e.metricInc(MetricTwoFactorCodeVerified)

	auth, err := e.establishSession(ctx, user, in.RefreshToken)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginTwoFactorVerify, true, user.ID, auth.Session.ID, nil, nil)

	return auth, nil
}

// checkCredentials is the credential validator shared by Login. Both
// failure branches cost one hash comparison.
func (e *Engine) checkCredentials(ctx context.Context, email, password string) (*store.User, error) {
	user, err := e.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, e.internalError("load user", err)
	}

	if user == nil || !user.HasPassword() {
		_, _ = e.hasher.Verify(password, e.dummyHash)
		reason := "user_not_found"
		userID := ""
		if user != nil {
			reason = "no_password"
			userID = user.ID
		}
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, userID, "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"reason": reason,
			}
		})
		return nil, ErrInvalidCredentials
	}

	ok, err := e.hasher.Verify(password, *user.PasswordHash)
	if err != nil || !ok {
		if err != nil {
			e.logger.Warn("stored password hash unreadable", zap.String("user_id", user.ID), zap.Error(err))
		}
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"reason": "password_mismatch",
			}
		})
		return nil, ErrInvalidCredentials
	}

	if !user.IsVerified {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, "", ErrEmailNotVerified, func() map[string]string {
			return map[string]string{
				"reason": "pending_verification",
			}
		})
		return nil, ErrEmailNotVerified
	}

	e.upgradeHash(ctx, user, password)

	return user, nil
}

// upgradeHash re-hashes the password under the current algorithm. A
// failure here never blocks the login.
func (e *Engine) upgradeHash(ctx context.Context, user *store.User, password string) {
	needs, err := e.hasher.NeedsRehash(*user.PasswordHash)
	if err != nil || !needs {
		return
	}
	hash, err := e.hasher.Hash(password)
	if err != nil {
		e.logger.Warn("password rehash failed", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	prev := user.PasswordHash
	user.PasswordHash = &hash
	user.UpdatedAt = e.now()
	if err := e.users.Update(ctx, user); err != nil {
		user.PasswordHash = prev
		e.logger.Warn("password rehash update failed", zap.String("user_id", user.ID), zap.Error(err))
	}
}

func (e *Engine) mapGateError(op string, err error) error {
	switch {
	case errors.Is(err, twofactor.ErrCodeNotFound):
		return ErrCodeNotFound
	case errors.Is(err, twofactor.ErrCodeMismatch):
		return ErrCodeMismatch
	case errors.Is(err, twofactor.ErrCodeExpired):
		return ErrCodeExpired
	case errors.Is(err, twofactor.ErrDelivery):
		e.metricInc(MetricEmailDeliveryFailure)
		e.logger.Error(op+" failed", zap.Error(err))
		return ErrEmailDeliveryFailed
	default:
		return e.internalError(op, err)
	}
}
