package delivery

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/locaro/venue-api/pkg/errors"
)

// Kind is the provider event kind. Unknown kinds are acknowledged without
// mutation.
type Kind string

const (
	KindSent       Kind = "sent"
	KindDelivered  Kind = "delivered"
	KindDelayed    Kind = "delivery_delayed"
	KindBounced    Kind = "bounced"
	KindComplained Kind = "complained"
	KindOpened     Kind = "opened"
	KindClicked    Kind = "clicked"
	KindUnknown    Kind = ""
)

// Event is one provider callback, decoded once at the boundary. Each kind
// mutates exactly the fields its transition allows; nothing else is carried.
type Event struct {
	Kind       Kind
	RawType    string
	MessageID  string
	OccurredAt time.Time
	BounceType string
}

type payload struct {
	Type      string `json:"type"`
	CreatedAt string `json:"created_at"`
	Data      struct {
		EmailID    string `json:"email_id"`
		BounceType string `json:"bounce_type"`
	} `json:"data"`
}

// ParseEvent decodes a webhook body. A missing provider message id is a
// malformed payload: without it nothing can be correlated.
func ParseEvent(body []byte) (*Event, error) {
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, apperrors.BadRequest("unparseable webhook payload", err)
	}
	if p.Data.EmailID == "" {
		return nil, apperrors.BadRequest("webhook payload missing email_id", fmt.Errorf("type %q", p.Type))
	}

	occurred := time.Now()
	if p.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339, p.CreatedAt); err == nil {
			occurred = t
		}
	}

	return &Event{
		Kind:       parseKind(p.Type),
		RawType:    p.Type,
		MessageID:  p.Data.EmailID,
		OccurredAt: occurred,
		BounceType: p.Data.BounceType,
	}, nil
}

// parseKind accepts both bare kinds and the provider's "email." prefix.
func parseKind(raw string) Kind {
	switch Kind(strings.TrimPrefix(raw, "email.")) {
	case KindSent:
		return KindSent
	case KindDelivered:
		return KindDelivered
	case KindDelayed:
		return KindDelayed
	case KindBounced:
		return KindBounced
	case KindComplained:
		return KindComplained
	case KindOpened:
		return KindOpened
	case KindClicked:
		return KindClicked
	default:
		return KindUnknown
	}
}
