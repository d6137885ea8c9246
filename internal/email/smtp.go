// Package email delivers transactional mail for visit notifications.
package email

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"

	"propertyhub_backend/platform/config"
	"propertyhub_backend/platform/logger"
)

// Sender delivers a single email. Implementations must be safe for
// concurrent use.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPSender sends mail through an SMTP relay using go-mail.
type SMTPSender struct {
	cfg config.EmailConfig
	log *logger.Logger
}

// NewSMTPSender creates an SMTP-backed sender.
func NewSMTPSender(cfg config.EmailConfig, log *logger.Logger) *SMTPSender {
	return &SMTPSender{cfg: cfg, log: log}
}

// Send delivers a plain-text email.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	msg := mail.NewMsg()
	if err := msg.FromFormat(s.cfg.GetEmailFromName(), s.cfg.GetEmailFromAddress()); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	client, err := mail.NewClient(s.cfg.GetSMTPHost(),
		mail.WithPort(s.cfg.GetSMTPPort()),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.cfg.GetSMTPUsername()),
		mail.WithPassword(s.cfg.GetSMTPPassword()),
	)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}
	defer client.Close()

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// NoopSender drops all mail. Used when SMTP is not configured so the
// notification pipeline still works in development.
type NoopSender struct {
	log *logger.Logger
}

// NewNoopSender creates a sender that only logs.
func NewNoopSender(log *logger.Logger) *NoopSender {
	return &NoopSender{log: log}
}

// Send logs the email instead of delivering it.
func (s *NoopSender) Send(_ context.Context, to, subject, _ string) error {
	s.log.Info("email_skipped", "to", to, "subject", subject)
	return nil
}
