package goSessionAuth

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/MrEthical07/goSessionAuth/mail"
	"github.com/MrEthical07/goSessionAuth/store"
	"github.com/MrEthical07/goSessionAuth/twofactor"
)

// ToggleTwoFactor emails a confirmation code whose action is fixed now from
// the user's current state: ENABLE when two-factor is off, DISABLE when on.
// Nothing changes until [Engine.VerifyTwoFactor] consumes the code.
func (e *Engine) ToggleTwoFactor(ctx context.Context, userID string) (action store.TwoFactorAction, err error) {
	ctx, span := e.startSpan(ctx, "ToggleTwoFactor", attribute.String("user.id", userID))
	defer func() { endSpan(span, err) }()

	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return store.TwoFactorActionNone, err
	}

	action = store.TwoFactorActionEnable
	if user.IsTwoFactorEnabled {
		action = store.TwoFactorActionDisable
	}

	if _, err := e.gate.Initiate(ctx, twofactor.Recipient{UserID: user.ID, Email: user.Email}, store.TwoFactorToggle, action); err != nil {
		return store.TwoFactorActionNone, e.mapGateError("initiate toggle code", err)
	}

	e.metricInc(MetricTwoFactorCodeSent)
	e.emitAudit(ctx, auditEventTwoFactorToggleRequested, true, user.ID, "", nil, func() map[string]string {
		return map[string]string{
			"action": string(action),
		}
	})
	return action, nil
}

// VerifyTwoFactor consumes the toggle code and applies the action stored
// with it. It reports whether two-factor is enabled afterwards.
func (e *Engine) VerifyTwoFactor(ctx context.Context, userID, code string) (enabled bool, err error) {
	ctx, span := e.startSpan(ctx, "VerifyTwoFactor", attribute.String("user.id", userID))
	defer func() { endSpan(span, err) }()

	v := &ValidationError{}
	requireField(v, "code", code, "Code is required")
	if err := v.OrNil(); err != nil {
		return false, err
	}

	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return false, err
	}

	action, err := e.gate.Verify(ctx, user.ID, store.TwoFactorToggle, code)
	if err != nil {
		err = e.mapGateError("verify toggle code", err)
		e.metricInc(MetricTwoFactorCodeFailed)
		e.emitAudit(ctx, auditEventTwoFactorFailure, false, user.ID, "", err, nil)
		return user.IsTwoFactorEnabled, err
	}
	e.metricInc(MetricTwoFactorCodeVerified)

	switch action {
	case store.TwoFactorActionEnable:
		user.IsTwoFactorEnabled = true
	case store.TwoFactorActionDisable:
		user.IsTwoFactorEnabled = false
		if err := e.gate.Discard(ctx, user.ID, store.TwoFactorToggle); err != nil {
			e.logger.Warn("discard toggle codes failed", zap.String("user_id", user.ID), zap.Error(err))
		}
	default:
		return user.IsTwoFactorEnabled, e.internalError("apply toggle", errUnknownAction(action), zap.String("user_id", user.ID))
	}

	user.UpdatedAt = e.now()
	if err := e.users.Update(ctx, user); err != nil {
		return !user.IsTwoFactorEnabled, e.internalError("update two-factor state", err, zap.String("user_id", user.ID))
	}

	status := "disabled"
	event := auditEventTwoFactorDisabled
	metric := MetricTwoFactorDisabled
	if user.IsTwoFactorEnabled {
		status = "enabled"
		event = auditEventTwoFactorEnabled
		metric = MetricTwoFactorEnabled
	}
	e.metricInc(metric)
	e.emitAudit(ctx, event, true, user.ID, "", nil, nil)

	client := e.clientFromContext(ctx)
	deviceName := client.Device.Name
	if deviceName == "" {
		deviceName = client.UserAgent
	}
	if err := e.send(ctx, mail.Message{
		To:       user.Email,
		Template: mail.TemplateTwoFactorStatus,
		Data: e.mailData(map[string]any{
			"Action": status,
			"Time":   e.now().UTC().Format("2006-01-02 15:04 MST"),
			"Device": deviceName,
		}),
	}); err != nil {
		return user.IsTwoFactorEnabled, err
	}
	return user.IsTwoFactorEnabled, nil
}

type errUnknownAction store.TwoFactorAction

func (a errUnknownAction) Error() string {
	return "unknown two-factor action " + string(a)
}
