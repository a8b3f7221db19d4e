package goSessionAuth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/goSessionAuth/mail"
)

const newTestPassword = "Changed2@"

func TestChangePasswordWithoutTwoFactor(t *testing.T) {
	env := newTestEnv(t)
	u := env.verifiedUser(t, "a@x.com")

	res, err := env.engine.ChangePassword(context.Background(), u.ID, testPassword, newTestPassword)
	require.NoError(t, err)
	assert.False(t, res.TwoFactorRequired)
	assert.Equal(t, 1, env.mailer.count(mail.TemplateChangePasswordComplete))

	_, err = env.engine.Login(desktopCtx(), LoginInput{Email: "a@x.com", Password: testPassword})
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.engine.Login(desktopCtx(), LoginInput{Email: "a@x.com", Password: newTestPassword})
	require.NoError(t, err)
}

func TestChangePasswordRejections(t *testing.T) {
	env := newTestEnv(t)
	u := env.verifiedUser(t, "a@x.com")
	ctx := context.Background()

	_, err := env.engine.ChangePassword(ctx, u.ID, "Wrong1!pass", newTestPassword)
	require.ErrorIs(t, err, ErrCurrentPasswordIncorrect)

	_, err = env.engine.ChangePassword(ctx, u.ID, testPassword, testPassword)
	require.ErrorIs(t, err, ErrPasswordReuse)
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = env.engine.ChangePassword(ctx, u.ID, testPassword, "weakpass")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "newPassword", verr.Fields[0].Path)

	assert.Equal(t, 0, env.mailer.count(mail.TemplateChangePasswordComplete))
}

func TestChangePasswordWithTwoFactor(t *testing.T) {
	env := newTestEnv(t)
	u := env.verifiedUser(t, "a@x.com")
	u.IsTwoFactorEnabled = true
	require.NoError(t, env.store.Users().Update(context.Background(), u))
	ctx := context.Background()

	res, err := env.engine.ChangePassword(ctx, u.ID, testPassword, newTestPassword)
	require.NoError(t, err)
	assert.True(t, res.TwoFactorRequired)
	code := env.mailer.code(t, mail.TemplatePasswordTwoFactor)

	// Nothing changes until the code is confirmed.
	_, err = env.engine.Login(desktopCtx(), LoginInput{Email: "a@x.com", Password: testPassword})
	require.NoError(t, err)

	err = env.engine.VerifyChangePassword(ctx, u.ID, code, testPassword)
	require.ErrorIs(t, err, ErrPasswordReuse)

	require.NoError(t, env.engine.VerifyChangePassword(ctx, u.ID, code, newTestPassword))
	assert.Equal(t, 1, env.mailer.count(mail.TemplateChangePasswordComplete))

	err = env.engine.VerifyChangePassword(ctx, u.ID, code, "Another3#")
	require.ErrorIs(t, err, ErrCodeNotFound)

	ok, err := env.engine.hasher.Verify(newTestPassword, *env.user(t, u.ID).PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestChangePasswordNotificationFailure(t *testing.T) {
	env := newTestEnv(t)
	u := env.verifiedUser(t, "a@x.com")
	env.mailer.setFail(errors.New("smtp down"))

	_, err := env.engine.ChangePassword(context.Background(), u.ID, testPassword, newTestPassword)
	require.ErrorIs(t, err, ErrEmailDeliveryFailed)
	assert.Equal(t, KindEmailDeliveryFailed, KindOf(err))
	assert.Equal(t, uint64(1), env.engine.MetricsSnapshot().Counters[MetricEmailDeliveryFailure])
}

func TestVerifyChangePasswordNotificationFailure(t *testing.T) {
	env := newTestEnv(t)
	u := env.verifiedUser(t, "a@x.com")
	u.IsTwoFactorEnabled = true
	require.NoError(t, env.store.Users().Update(context.Background(), u))
	ctx := context.Background()

	_, err := env.engine.ChangePassword(ctx, u.ID, testPassword, newTestPassword)
	require.NoError(t, err)
	code := env.mailer.code(t, mail.TemplatePasswordTwoFactor)

	env.mailer.setFail(errors.New("smtp down"))
	err = env.engine.VerifyChangePassword(ctx, u.ID, code, newTestPassword)
	require.ErrorIs(t, err, ErrEmailDeliveryFailed)
}
