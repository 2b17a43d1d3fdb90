package model

// EmailType classifies an outbound message in the system-wide ledger.
type EmailType string

const (
	EmailTypeBroadcast     EmailType = "broadcast_request"
	EmailTypeContact       EmailType = "contact_confirmation"
	EmailTypeOperatorAlert EmailType = "operator_alert"
)

// EmailLog is the system-wide outbound-message ledger, one row per message
// the system sends, campaign fan-out or not. It exists independently of
// BroadcastLog rows; a webhook event may match either or both by provider
// message id.
type EmailLog struct {
	Base
	EmailType         EmailType   `json:"email_type" db:"email_type"`
	Recipient         string      `json:"recipient" db:"recipient"`
	Status            EmailStatus `json:"status" db:"status"`
	Error             *string     `json:"error,omitempty" db:"error"`
	ProviderMessageID *string     `json:"provider_message_id,omitempty" db:"provider_message_id"`
}
