package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type BroadcastStatus string

const (
	// BroadcastStatusPending means recipient rows are still outstanding.
	BroadcastStatusPending BroadcastStatus = "pending"
)

// EmailStatus is the per-recipient delivery state. opened and clicked are
// recorded as first-seen timestamps plus counters and never move the status
// away from the current delivery state.
type EmailStatus string

const (
	EmailStatusPending    EmailStatus = "pending"
	EmailStatusSent       EmailStatus = "sent"
	EmailStatusDelivered  EmailStatus = "delivered"
	EmailStatusBounced    EmailStatus = "bounced"
	EmailStatusComplained EmailStatus = "complained"
	EmailStatusDelayed    EmailStatus = "delayed"
	EmailStatusFailed     EmailStatus = "failed"

	// Ledger-only statuses: the recipient row keeps its delivery status
	// while the coarse email_logs row records the latest activity.
	EmailStatusOpened  EmailStatus = "opened"
	EmailStatusClicked EmailStatus = "clicked"
)

// BroadcastCriteria is the immutable snapshot of one inbound venue request.
type BroadcastCriteria struct {
	GuestCount   *int    `json:"guest_count,omitempty"`
	Location     *string `json:"location,omitempty"`
	Description  string  `json:"description"`
	Requirements string  `json:"requirements"`
	ContactName  string  `json:"contact_name"`
	ContactEmail string  `json:"contact_email"`
	ContactPhone string  `json:"contact_phone"`
}

// Broadcast is one fan-out unit: a criteria snapshot plus the denormalized
// list of targeted venues and aggregate counters.
type Broadcast struct {
	Base
	Title        string          `json:"title" db:"title"`
	GuestCount   *int            `json:"guest_count,omitempty" db:"guest_count"`
	Location     *string         `json:"location,omitempty" db:"location"`
	Description  string          `json:"description" db:"description"`
	Requirements string          `json:"requirements" db:"requirements"`
	ContactName  string          `json:"contact_name" db:"contact_name"`
	ContactEmail string          `json:"contact_email" db:"contact_email"`
	ContactPhone string          `json:"contact_phone" db:"contact_phone"`
	VenueIDs     pq.StringArray  `json:"venue_ids" db:"venue_ids"`
	Status       BroadcastStatus `json:"status" db:"status"`
	SentCount    int             `json:"sent_count" db:"sent_count"`
}

// Criteria reconstructs the snapshot stored on the broadcast row, used by
// backfill to re-run the candidate matcher.
func (b *Broadcast) Criteria() BroadcastCriteria {
	return BroadcastCriteria{
		GuestCount:   b.GuestCount,
		Location:     b.Location,
		Description:  b.Description,
		Requirements: b.Requirements,
		ContactName:  b.ContactName,
		ContactEmail: b.ContactEmail,
		ContactPhone: b.ContactPhone,
	}
}

// BroadcastLog is one per-venue tracking row. (broadcast_id, venue_id) is
// unique; provider_message_id is globally unique, set exactly once at send
// time, and is the idempotency key for webhook reconciliation.
type BroadcastLog struct {
	Base
	BroadcastID       uuid.UUID   `json:"broadcast_id" db:"broadcast_id"`
	VenueID           uuid.UUID   `json:"venue_id" db:"venue_id"`
	EmailStatus       EmailStatus `json:"email_status" db:"email_status"`
	SentAt            *time.Time  `json:"sent_at,omitempty" db:"sent_at"`
	DeliveredAt       *time.Time  `json:"delivered_at,omitempty" db:"delivered_at"`
	OpenedAt          *time.Time  `json:"opened_at,omitempty" db:"opened_at"`
	ClickedAt         *time.Time  `json:"clicked_at,omitempty" db:"clicked_at"`
	BouncedAt         *time.Time  `json:"bounced_at,omitempty" db:"bounced_at"`
	ComplainedAt      *time.Time  `json:"complained_at,omitempty" db:"complained_at"`
	OpenCount         int         `json:"open_count" db:"open_count"`
	ClickCount        int         `json:"click_count" db:"click_count"`
	BounceType        *string     `json:"bounce_type,omitempty" db:"bounce_type"`
	ProviderMessageID *string     `json:"provider_message_id,omitempty" db:"provider_message_id"`
	Error             *string     `json:"error,omitempty" db:"error"`
}

// BroadcastDelta reports one backfill repair.
type BroadcastDelta struct {
	BroadcastID uuid.UUID   `json:"broadcast_id"`
	Title       string      `json:"title"`
	Added       int         `json:"added"`
	VenueIDs    []uuid.UUID `json:"venue_ids,omitempty"`
}
