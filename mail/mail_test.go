package mail

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRenderAllTemplates(t *testing.T) {
	r, err := NewRenderer("Acme")
	require.NoError(t, err)

	data := map[string]any{
		"Link":             "https://app.example.com/auth/verify-email/u1/tok",
		"Code":             "123456",
		"ExpiresInMinutes": 10,
		"Action":           "enabled",
		"Time":             "2025-01-01T00:00:00Z",
		"Device":           "Chrome on Windows",
	}

	for _, tmpl := range []Template{
		TemplateVerifyEmail, TemplateVerificationComplete, TemplateTwoFactorLogin,
		TemplateEnableTwoFactor, TemplateDisableTwoFactor, TemplatePasswordTwoFactor,
		TemplateTwoFactorStatus, TemplateResetPassword, TemplateChangePasswordComplete,
	} {
		t.Run(string(tmpl), func(t *testing.T) {
			subject, body, err := r.Render(Message{To: "a@x.com", Template: tmpl, Data: data})
			require.NoError(t, err)
			assert.NotEmpty(t, subject)
			assert.NotEqual(t, string(tmpl), subject)
			assert.Contains(t, body, "<html>")
		})
	}

	_, body, err := r.Render(Message{Template: TemplateTwoFactorLogin, Data: data})
	require.NoError(t, err)
	assert.Contains(t, body, "123456")
	assert.Contains(t, body, "Acme")
}

func TestRenderUnknownTemplate(t *testing.T) {
	r, err := NewRenderer("Acme")
	require.NoError(t, err)

	_, _, err = r.Render(Message{Template: "nope"})
	assert.ErrorIs(t, err, ErrUnknownTemplate)
}

func TestLogSender(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r, err := NewRenderer("Acme")
	require.NoError(t, err)

	s := NewLogSender(zap.New(core), r)
	require.NoError(t, s.Send(context.Background(), Message{
		To:       "a@x.com",
		Template: TemplateResetPassword,
		Data:     map[string]any{"Link": "https://x"},
	}))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "a@x.com", entries[0].ContextMap()["to"])
	assert.Equal(t, "reset-password", entries[0].ContextMap()["template"])
}

func TestNewSMTPSenderValidates(t *testing.T) {
	r, err := NewRenderer("Acme")
	require.NoError(t, err)

	_, err = NewSMTPSender(SMTPConfig{}, r)
	assert.Error(t, err)

	s, err := NewSMTPSender(SMTPConfig{Host: "localhost", From: "no-reply@example.com"}, r)
	require.NoError(t, err)
	assert.NotNil(t, s)
}
