package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/locaro/venue-api/internal/model"
)

type VenueRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Venue, error)
	// ListFiltered returns every active venue matching the filter. The same
	// predicate backs both the page window and the total count, so has_more
	// is exact.
	ListFiltered(ctx context.Context, filter *model.VenueFilter) ([]*model.Venue, error)
}

type BroadcastRepository interface {
	// CreateWithLogs inserts the broadcast and all its recipient rows as one
	// transaction; duplicate (broadcast_id, venue_id) pairs are skipped.
	CreateWithLogs(ctx context.Context, b *model.Broadcast, logs []*model.BroadcastLog) error
	Get(ctx context.Context, id uuid.UUID) (*model.Broadcast, error)
	List(ctx context.Context) ([]*model.Broadcast, error)
	AppendVenueIDs(ctx context.Context, id uuid.UUID, venueIDs []uuid.UUID) error
	IncrementSentCount(ctx context.Context, id uuid.UUID) error

	ListLogs(ctx context.Context, broadcastID uuid.UUID) ([]*model.BroadcastLog, error)
	// InsertLogs adds recipient rows, skipping existing (broadcast_id,
	// venue_id) pairs, and reports the venue ids actually inserted. A pair
	// created concurrently between the caller's read and this insert is
	// skipped, not reported.
	InsertLogs(ctx context.Context, logs []*model.BroadcastLog) ([]uuid.UUID, error)
	// MarkLogSent assigns the provider message id and moves pending→sent.
	// The id is set exactly once; a second call is a no-op.
	MarkLogSent(ctx context.Context, logID uuid.UUID, messageID string, at time.Time) error
	MarkLogFailed(ctx context.Context, logID uuid.UUID, errMsg string) error
}

// DeliveryStore is the webhook reconciler's view of broadcast_logs, keyed by
// provider message id. Every method returns the number of rows matched so
// the caller can tell an applied update from an unmatched event. Counter
// increments and set-if-null timestamps happen in SQL, never read-modify-
// write, so concurrent callbacks for the same id stay correct.
type DeliveryStore interface {
	MarkSent(ctx context.Context, messageID string, at time.Time) (int64, error)
	MarkDelivered(ctx context.Context, messageID string, at time.Time) (int64, error)
	RecordOpen(ctx context.Context, messageID string, at time.Time) (int64, error)
	RecordClick(ctx context.Context, messageID string, at time.Time) (int64, error)
	MarkBounced(ctx context.Context, messageID string, at time.Time, bounceType, reason string) (int64, error)
	MarkComplained(ctx context.Context, messageID string, at time.Time, reason string) (int64, error)
	MarkDelayed(ctx context.Context, messageID string, at time.Time, reason string) (int64, error)
}

type EmailLogRepository interface {
	Create(ctx context.Context, log *model.EmailLog) error
	GetByMessageID(ctx context.Context, messageID string) (*model.EmailLog, error)
	// UpdateStatusByMessageID applies the coarse ledger update and reports
	// how many rows matched.
	UpdateStatusByMessageID(ctx context.Context, messageID string, status model.EmailStatus, errMsg *string) (int64, error)
}
