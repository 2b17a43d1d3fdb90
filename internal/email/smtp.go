package email

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"

	"github.com/locaro/venue-api/internal/config"
)

type smtpSender struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPSender is the fallback transport for deployments without a
// delivery-provider API key.
func NewSMTPSender(cfg config.SMTPConfig, from string) Sender {
	return &smtpSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   from,
	}
}

func (s *smtpSender) Transport() string {
	return "smtp"
}

func (s *smtpSender) Send(ctx context.Context, msg *Message) (string, error) {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	if msg.HTML != "" {
		m.SetBody("text/html", msg.HTML)
		if msg.Text != "" {
			m.AddAlternative("text/plain", msg.Text)
		}
	} else {
		m.SetBody("text/plain", msg.Text)
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		return "", fmt.Errorf("failed to send via smtp: %w", err)
	}

	// SMTP has no provider id; a synthetic one keeps the ledger unique.
	return "smtp-" + uuid.New().String(), nil
}
