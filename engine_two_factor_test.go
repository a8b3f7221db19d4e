package goSessionAuth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/goSessionAuth/mail"
	"github.com/MrEthical07/goSessionAuth/store"
)

func TestToggleTwoFactorEnableScenario(t *testing.T) {
	env := newTestEnv(t)
	u := env.verifiedUser(t, "a@x.com")
	ctx := desktopCtx()

	action, err := env.engine.ToggleTwoFactor(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, store.TwoFactorActionEnable, action)

	tok, err := env.store.TwoFactorTokens().Find(context.Background(), u.ID, store.TwoFactorToggle)
	require.NoError(t, err)
	assert.Equal(t, store.TwoFactorActionEnable, tok.Action)
	assert.False(t, env.user(t, u.ID).IsTwoFactorEnabled)

	code := env.mailer.code(t, mail.TemplateEnableTwoFactor)
	_, err = env.engine.VerifyTwoFactor(ctx, u.ID, wrongCode(code))
	require.ErrorIs(t, err, ErrCodeMismatch)
	assert.False(t, env.user(t, u.ID).IsTwoFactorEnabled)

	enabled, err := env.engine.VerifyTwoFactor(ctx, u.ID, code)
	require.NoError(t, err)
	assert.True(t, enabled)
	assert.True(t, env.user(t, u.ID).IsTwoFactorEnabled)

	status := env.mailer.last(t, mail.TemplateTwoFactorStatus)
	assert.Equal(t, "enabled", status.Data["Action"])
	assert.NotEmpty(t, status.Data["Device"])
}

func TestToggleTwoFactorDisable(t *testing.T) {
	env := newTestEnv(t)
	u := env.verifiedUser(t, "a@x.com")
	u.IsTwoFactorEnabled = true
	require.NoError(t, env.store.Users().Update(context.Background(), u))
	ctx := desktopCtx()

	action, err := env.engine.ToggleTwoFactor(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, store.TwoFactorActionDisable, action)

	// The stored action wins even if the state changes in between.
	u.IsTwoFactorEnabled = false
	require.NoError(t, env.store.Users().Update(context.Background(), u))

	enabled, err := env.engine.VerifyTwoFactor(ctx, u.ID, env.mailer.code(t, mail.TemplateDisableTwoFactor))
	require.NoError(t, err)
	assert.False(t, enabled)
	assert.Equal(t, "disabled", env.mailer.last(t, mail.TemplateTwoFactorStatus).Data["Action"])

	_, err = env.store.TwoFactorTokens().Find(context.Background(), u.ID, store.TwoFactorToggle)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestToggleTwoFactorCodeIsSingleUse(t *testing.T) {
	env := newTestEnv(t)
	u := env.verifiedUser(t, "a@x.com")

	_, err := env.engine.ToggleTwoFactor(desktopCtx(), u.ID)
	require.NoError(t, err)
	code := env.mailer.code(t, mail.TemplateEnableTwoFactor)

	_, err = env.engine.VerifyTwoFactor(desktopCtx(), u.ID, code)
	require.NoError(t, err)
	_, err = env.engine.VerifyTwoFactor(desktopCtx(), u.ID, code)
	require.ErrorIs(t, err, ErrCodeNotFound)
}

func TestToggleTwoFactorReissueReplacesCode(t *testing.T) {
	env := newTestEnv(t)
	u := env.verifiedUser(t, "a@x.com")

	_, err := env.engine.ToggleTwoFactor(desktopCtx(), u.ID)
	require.NoError(t, err)
	first := env.mailer.code(t, mail.TemplateEnableTwoFactor)
	_, err = env.engine.ToggleTwoFactor(desktopCtx(), u.ID)
	require.NoError(t, err)
	second := env.mailer.code(t, mail.TemplateEnableTwoFactor)

	if first != second {
		_, err = env.engine.VerifyTwoFactor(desktopCtx(), u.ID, first)
		require.ErrorIs(t, err, ErrCodeMismatch)
	}
	_, err = env.engine.VerifyTwoFactor(desktopCtx(), u.ID, second)
	require.NoError(t, err)
}

func TestVerifyTwoFactorStatusEmailFailure(t *testing.T) {
	env := newTestEnv(t)
	u := env.verifiedUser(t, "a@x.com")
	ctx := desktopCtx()

	_, err := env.engine.ToggleTwoFactor(ctx, u.ID)
	require.NoError(t, err)
	code := env.mailer.code(t, mail.TemplateEnableTwoFactor)

	env.mailer.setFail(errors.New("smtp down"))
	_, err = env.engine.VerifyTwoFactor(ctx, u.ID, code)
	require.ErrorIs(t, err, ErrEmailDeliveryFailed)
}
