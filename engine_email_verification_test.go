package goSessionAuth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/goSessionAuth/mail"
)

func TestRegisterVerifyLoginScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := desktopCtx()

	res, err := env.engine.Register(ctx, RegisterInput{Email: "a@x.com", Password: "Secret1!"})
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", res.Email)
	assert.Equal(t, env.clock.Now(), res.CreatedAt)

	_, err = env.engine.Login(ctx, LoginInput{Email: "a@x.com", Password: "Secret1!"})
	require.ErrorIs(t, err, ErrEmailNotVerified)

	msg := env.mailer.last(t, mail.TemplateVerifyEmail)
	assert.Equal(t, "a@x.com", msg.To)
	assert.Contains(t, msg.Data["Link"], "http://localhost:3000/auth/verify-email/"+res.ID+"/")

	userID, token := env.mailer.linkToken(t, mail.TemplateVerifyEmail)
	require.NoError(t, env.engine.VerifyEmail(ctx, userID, token))
	assert.Equal(t, 1, env.mailer.count(mail.TemplateVerificationComplete))

	login, err := env.engine.Login(ctx, LoginInput{Email: "a@x.com", Password: "Secret1!"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeLogin, login.Outcome)
	require.NotNil(t, login.Auth)
	assert.NotEmpty(t, login.Auth.Tokens.AccessToken)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.engine.Register(desktopCtx(), RegisterInput{Email: "a@x.com", Password: testPassword})
	require.NoError(t, err)

	_, err = env.engine.Register(desktopCtx(), RegisterInput{Email: " A@X.com", Password: testPassword})
	require.ErrorIs(t, err, ErrUserExists)
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestRegisterValidatesInput(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.engine.Register(desktopCtx(), RegisterInput{Email: "nope", Password: "short"})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Fields, 2)
	assert.Equal(t, "email", verr.Fields[0].Path)
	assert.Equal(t, "password", verr.Fields[1].Path)
}

func TestRegisterDeliveryFailure(t *testing.T) {
	env := newTestEnv(t)
	env.mailer.setFail(errors.New("smtp down"))

	_, err := env.engine.Register(desktopCtx(), RegisterInput{Email: "a@x.com", Password: testPassword})
	require.ErrorIs(t, err, ErrEmailDeliveryFailed)

	env.mailer.setFail(nil)
	require.NoError(t, env.engine.ResendVerification(desktopCtx(), "a@x.com"))
	assert.Equal(t, 1, env.mailer.count(mail.TemplateVerifyEmail))
}

func TestVerifyEmailNotificationFailure(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.engine.Register(desktopCtx(), RegisterInput{Email: "a@x.com", Password: testPassword})
	require.NoError(t, err)
	_, token := env.mailer.linkToken(t, mail.TemplateVerifyEmail)

	env.mailer.setFail(errors.New("smtp down"))
	err = env.engine.VerifyEmail(context.Background(), res.ID, token)
	require.ErrorIs(t, err, ErrEmailDeliveryFailed)
}

func TestVerifyEmailTokenIsSingleUse(t *testing.T) {
	env := newTestEnv(t)
	u := env.verifiedUser(t, "a@x.com")
	assert.True(t, u.IsVerified)

	userID, token := env.mailer.linkToken(t, mail.TemplateVerifyEmail)
	err := env.engine.VerifyEmail(context.Background(), userID, token)
	require.ErrorIs(t, err, ErrInvalidVerificationToken)
}

func TestVerifyEmailExpired(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.engine.Register(desktopCtx(), RegisterInput{Email: "a@x.com", Password: testPassword})
	require.NoError(t, err)
	_, token := env.mailer.linkToken(t, mail.TemplateVerifyEmail)

	env.clock.Advance(time.Hour)
	err = env.engine.VerifyEmail(context.Background(), res.ID, token)
	require.ErrorIs(t, err, ErrVerificationExpired)
	assert.False(t, env.user(t, res.ID).IsVerified)
}

func TestVerifyEmailRejectsWrongToken(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.engine.Register(desktopCtx(), RegisterInput{Email: "a@x.com", Password: testPassword})
	require.NoError(t, err)

	err = env.engine.VerifyEmail(context.Background(), res.ID, "deadbeef")
	require.ErrorIs(t, err, ErrInvalidVerificationToken)
	err = env.engine.VerifyEmail(context.Background(), "someone-else", "deadbeef")
	require.ErrorIs(t, err, ErrInvalidVerificationToken)
}

func TestResendVerificationReplacesToken(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.engine.Register(desktopCtx(), RegisterInput{Email: "a@x.com", Password: testPassword})
	require.NoError(t, err)
	_, oldToken := env.mailer.linkToken(t, mail.TemplateVerifyEmail)

	require.NoError(t, env.engine.ResendVerification(desktopCtx(), "a@x.com"))
	_, newToken := env.mailer.linkToken(t, mail.TemplateVerifyEmail)
	require.NotEqual(t, oldToken, newToken)

	require.ErrorIs(t, env.engine.VerifyEmail(context.Background(), res.ID, oldToken), ErrInvalidVerificationToken)
	require.NoError(t, env.engine.VerifyEmail(context.Background(), res.ID, newToken))

	require.ErrorIs(t, env.engine.ResendVerification(desktopCtx(), "a@x.com"), ErrAlreadyVerified)
	require.ErrorIs(t, env.engine.ResendVerification(desktopCtx(), "nobody@x.com"), ErrUserNotFound)
}
