// Package twofactor issues and checks the short numeric codes that gate
// login, password change and two-factor toggling.
//
// Each (user, purpose) pair moves through NONE -> PENDING -> CONSUMED or
// EXPIRED. Initiating a code replaces any pending one for the same purpose,
// and a verified code is deleted so it cannot be used twice. A code that
// collects MaxAttempts wrong guesses is deleted as well.
package twofactor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/goSessionAuth/internal"
	"github.com/MrEthical07/goSessionAuth/mail"
	"github.com/MrEthical07/goSessionAuth/store"
)

var (
	ErrCodeNotFound = errors.New("two-factor code not found")
	ErrCodeMismatch = errors.New("two-factor code mismatch")
	ErrCodeExpired  = errors.New("two-factor code expired")
	// ErrDelivery wraps failures of the email sender.
	ErrDelivery = errors.New("two-factor code delivery failed")
)

// Config tunes code generation.
type Config struct {
	Digits      int
	TTL         time.Duration
	MaxAttempts int
	Now         func() time.Time
}

// Recipient is the user a code is issued to.
type Recipient struct {
	UserID string
	Email  string
}

// Gate implements the two-factor state machine on top of a token
// repository and an email sender.
type Gate struct {
	tokens store.TwoFactorTokenRepository
	sender mail.Sender
	cfg    Config
}

// New returns a Gate. Zero config values select 6 digits, 10 minutes and
// 5 attempts.
func New(tokens store.TwoFactorTokenRepository, sender mail.Sender, cfg Config) *Gate {
	if cfg.Digits == 0 {
		cfg.Digits = 6
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Gate{tokens: tokens, sender: sender, cfg: cfg}
}

// Initiate stores a fresh code for (r.UserID, typ), overwriting any pending
// one, and emails it. The returned token carries the code and must not be
// exposed to the client.
func (g *Gate) Initiate(ctx context.Context, r Recipient, typ store.TwoFactorType, action store.TwoFactorAction) (*store.TwoFactorToken, error) {
	tmpl, err := templateFor(typ, action)
	if err != nil {
		return nil, err
	}

	now := g.cfg.Now()
	code, err := internal.NewTwoFactorCode(g.cfg.Digits, now, g.cfg.TTL)
	if err != nil {
		return nil, err
	}

	tok := &store.TwoFactorToken{
		ID:        uuid.NewString(),
		UserID:    r.UserID,
		Type:      typ,
		Code:      code.Code,
		Action:    action,
		ExpiresAt: code.ExpiresAt,
		CreatedAt: now,
	}
	if err := g.tokens.Upsert(ctx, tok); err != nil {
		return nil, fmt.Errorf("store two-factor code: %w", err)
	}

	err = g.sender.Send(ctx, mail.Message{
		To:       r.Email,
		Template: tmpl,
		Data: map[string]any{
			"Code":             code.Code,
			"ExpiresInMinutes": int(g.cfg.TTL / time.Minute),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDelivery, err)
	}

	return tok, nil
}

// Verify consumes the pending code for (userID, typ) and returns the action
// recorded at initiation. Checks run in order: presence, code, expiry.
func (g *Gate) Verify(ctx context.Context, userID string, typ store.TwoFactorType, code string) (store.TwoFactorAction, error) {
	tok, err := g.tokens.Find(ctx, userID, typ)
	if errors.Is(err, store.ErrNotFound) {
		return store.TwoFactorActionNone, ErrCodeNotFound
	}
	if err != nil {
		return store.TwoFactorActionNone, err
	}

	if tok.Attempts >= g.cfg.MaxAttempts {
		_ = g.tokens.Delete(ctx, tok.ID)
		return store.TwoFactorActionNone, ErrCodeNotFound
	}

	if !internal.CodeMatches(code, tok.Code) {
		return store.TwoFactorActionNone, g.recordMismatch(ctx, tok)
	}

	if !g.cfg.Now().Before(tok.ExpiresAt) {
		_ = g.tokens.Delete(ctx, tok.ID)
		return store.TwoFactorActionNone, ErrCodeExpired
	}

	// Delete doubles as the consume step: of two concurrent verifications
	// only one sees the row disappear.
	if err := g.tokens.Delete(ctx, tok.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.TwoFactorActionNone, ErrCodeNotFound
		}
		return store.TwoFactorActionNone, err
	}

	return tok.Action, nil
}

// recordMismatch counts a wrong guess and burns the code once the budget is
// spent.
func (g *Gate) recordMismatch(ctx context.Context, tok *store.TwoFactorToken) error {
	attempts, err := g.tokens.IncrementAttempts(ctx, tok.ID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrCodeNotFound
	}
	if err != nil {
		return err
	}
	if attempts >= g.cfg.MaxAttempts {
		if err := g.tokens.Delete(ctx, tok.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
	}
	return ErrCodeMismatch
}

// Discard removes any pending code for (userID, typ).
func (g *Gate) Discard(ctx context.Context, userID string, typ store.TwoFactorType) error {
	return g.tokens.DeleteByUser(ctx, userID, typ)
}

func templateFor(typ store.TwoFactorType, action store.TwoFactorAction) (mail.Template, error) {
	switch typ {
	case store.TwoFactorLogin:
		return mail.TemplateTwoFactorLogin, nil
	case store.TwoFactorPasswordChange:
		return mail.TemplatePasswordTwoFactor, nil
	case store.TwoFactorToggle:
		switch action {
		case store.TwoFactorActionEnable:
			return mail.TemplateEnableTwoFactor, nil
		case store.TwoFactorActionDisable:
			return mail.TemplateDisableTwoFactor, nil
		}
		return "", fmt.Errorf("two-factor toggle requires an action, got %q", action)
	default:
		return "", fmt.Errorf("unknown two-factor type %q", typ)
	}
}
