// Package mail renders and delivers the transactional emails of the auth
// flows: verification links, two-factor codes and security notifications.
package mail

import (
	"context"
	"errors"
)

// Template names an email template.
type Template string

const (
	TemplateVerifyEmail            Template = "verify-email"
	TemplateVerificationComplete   Template = "verification-complete"
	TemplateTwoFactorLogin         Template = "two-factor-login"
	TemplateEnableTwoFactor        Template = "enable-two-factor"
	TemplateDisableTwoFactor       Template = "disable-two-factor"
	TemplatePasswordTwoFactor      Template = "password-two-factor"
	TemplateTwoFactorStatus        Template = "two-factor-status"
	TemplateResetPassword          Template = "reset-password"
	TemplateChangePasswordComplete Template = "change-password-complete"
)

var subjects = map[Template]string{
	TemplateVerifyEmail:            "Verify your email",
	TemplateVerificationComplete:   "Email verified",
	TemplateTwoFactorLogin:         "Your login code",
	TemplateEnableTwoFactor:        "Enable two-factor authentication",
	TemplateDisableTwoFactor:       "Disable two-factor authentication",
	TemplatePasswordTwoFactor:      "Confirm your password change",
	TemplateTwoFactorStatus:        "Two-factor authentication updated",
	TemplateResetPassword:          "Reset your password",
	TemplateChangePasswordComplete: "Your password was changed",
}

// Subject returns the subject line for t.
func (t Template) Subject() string {
	if s, ok := subjects[t]; ok {
		return s
	}
	return string(t)
}

// ErrUnknownTemplate is returned when rendering a template that does not exist.
var ErrUnknownTemplate = errors.New("mail: unknown template")

// Message is one templated email.
type Message struct {
	To       string
	Template Template
	Data     map[string]any
}

// Sender delivers messages. Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg Message) error

func (f SenderFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }
