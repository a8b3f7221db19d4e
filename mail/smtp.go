package mail

import (
	"context"
	"fmt"

	gomail "github.com/wneessen/go-mail"
)

// SMTPConfig holds SMTP relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// StartTLS requires STARTTLS; when false the connection is attempted
	// opportunistically.
	StartTLS bool
}

// SMTPSender delivers messages through an SMTP relay.
type SMTPSender struct {
	cfg      SMTPConfig
	renderer *Renderer
	client   *gomail.Client
}

// NewSMTPSender validates cfg and prepares a client. No connection is made
// until the first Send.
func NewSMTPSender(cfg SMTPConfig, renderer *Renderer) (*SMTPSender, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, fmt.Errorf("mail: smtp host and from address are required")
	}
	if renderer == nil {
		return nil, fmt.Errorf("mail: nil renderer")
	}

	if cfg.Port == 0 {
		cfg.Port = 587
	}

	opts := []gomail.Option{gomail.WithPort(cfg.Port)}
	if cfg.StartTLS {
		opts = append(opts, gomail.WithTLSPortPolicy(gomail.TLSMandatory))
	} else {
		opts = append(opts, gomail.WithTLSPortPolicy(gomail.TLSOpportunistic))
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("mail: smtp client: %w", err)
	}

	return &SMTPSender{cfg: cfg, renderer: renderer, client: client}, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	subject, body, err := s.renderer.Render(msg)
	if err != nil {
		return err
	}

	m := gomail.NewMsg()
	if err := m.From(s.cfg.From); err != nil {
		return fmt.Errorf("mail: from: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("mail: to: %w", err)
	}
	m.Subject(subject)
	m.SetBodyString(gomail.TypeTextHTML, body)

	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("mail: send %s: %w", msg.Template, err)
	}
	return nil
}
