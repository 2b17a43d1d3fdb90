package email

import (
	"context"

	"github.com/locaro/venue-api/internal/config"
	"github.com/locaro/venue-api/internal/model"
)

// Message is one outbound email. Rendering happens upstream; the sender
// only transports.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
	Type    model.EmailType
}

// Sender delivers one message and returns the provider's message id, which
// later correlates webhook callbacks to tracking rows.
type Sender interface {
	Send(ctx context.Context, msg *Message) (string, error)
	Transport() string
}

// NewSender picks the HTTP delivery provider when an API key is configured,
// otherwise the SMTP fallback. SMTP sends get a synthetic message id and
// never receive webhook callbacks.
func NewSender(cfg config.EmailConfig) Sender {
	if cfg.Provider.APIKey != "" {
		return NewProviderSender(cfg.Provider, cfg.From)
	}
	return NewSMTPSender(cfg.SMTP, cfg.From)
}
