package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/locaro/venue-api/internal/model"
	"github.com/locaro/venue-api/internal/repository"
)

const broadcastColumns = `
	id, title, guest_count, location, description, requirements,
	contact_name, contact_email, contact_phone, venue_ids,
	status, sent_count, created_at, updated_at
`

const broadcastLogColumns = `
	id, broadcast_id, venue_id, email_status,
	sent_at, delivered_at, opened_at, clicked_at, bounced_at, complained_at,
	open_count, click_count, bounce_type, provider_message_id, error,
	created_at, updated_at
`

type broadcastRepository struct {
	BaseRepository
}

// NewBroadcastRepository returns the broadcast store. The same struct also
// implements repository.DeliveryStore for webhook reconciliation.
func NewBroadcastRepository(base BaseRepository) repository.BroadcastRepository {
	return &broadcastRepository{base}
}

// NewDeliveryStore exposes the reconciler's view of broadcast_logs.
func NewDeliveryStore(base BaseRepository) repository.DeliveryStore {
	return &broadcastRepository{base}
}

func (r *broadcastRepository) CreateWithLogs(ctx context.Context, b *model.Broadcast, logs []*model.BroadcastLog) error {
	now := time.Now()
	b.ID = uuid.New()
	b.CreatedAt = now
	b.UpdatedAt = now

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO broadcasts (` + broadcastColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`
		_, err := tx.ExecContext(ctx, query,
			b.ID,
			b.Title,
			b.GuestCount,
			b.Location,
			b.Description,
			b.Requirements,
			b.ContactName,
			b.ContactEmail,
			b.ContactPhone,
			b.VenueIDs,
			b.Status,
			b.SentCount,
			b.CreatedAt,
			b.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create broadcast: %w", err)
		}

		for _, l := range logs {
			l.ID = uuid.New()
			l.BroadcastID = b.ID
			l.CreatedAt = now
			l.UpdatedAt = now
			if err := insertLog(ctx, tx, l); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertLog(ctx context.Context, e sqlx.ExecerContext, l *model.BroadcastLog) error {
	query := `
		INSERT INTO broadcast_logs (id, broadcast_id, venue_id, email_status, open_count, click_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, 0, $5, $6)
		ON CONFLICT (broadcast_id, venue_id) DO NOTHING
	`
	if _, err := e.ExecContext(ctx, query, l.ID, l.BroadcastID, l.VenueID, l.EmailStatus, l.CreatedAt, l.UpdatedAt); err != nil {
		return fmt.Errorf("failed to create broadcast log: %w", err)
	}
	return nil
}

func (r *broadcastRepository) Get(ctx context.Context, id uuid.UUID) (*model.Broadcast, error) {
	query := `SELECT ` + broadcastColumns + ` FROM broadcasts WHERE id = $1`

	var b model.Broadcast
	if err := r.db.GetContext(ctx, &b, query, id); err != nil {
		return nil, fmt.Errorf("failed to get broadcast: %w", err)
	}
	return &b, nil
}

func (r *broadcastRepository) List(ctx context.Context) ([]*model.Broadcast, error) {
	query := `SELECT ` + broadcastColumns + ` FROM broadcasts ORDER BY created_at DESC`

	var broadcasts []*model.Broadcast
	if err := r.db.SelectContext(ctx, &broadcasts, query); err != nil {
		return nil, fmt.Errorf("failed to list broadcasts: %w", err)
	}
	return broadcasts, nil
}

func (r *broadcastRepository) AppendVenueIDs(ctx context.Context, id uuid.UUID, venueIDs []uuid.UUID) error {
	ids := make(pq.StringArray, len(venueIDs))
	for i, v := range venueIDs {
		ids[i] = v.String()
	}

	query := `
		UPDATE broadcasts
		SET venue_ids = venue_ids || $2, updated_at = NOW()
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id, ids); err != nil {
		return fmt.Errorf("failed to append venue ids: %w", err)
	}
	return nil
}

func (r *broadcastRepository) IncrementSentCount(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE broadcasts
		SET sent_count = sent_count + 1, updated_at = NOW()
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to increment sent count: %w", err)
	}
	return nil
}

func (r *broadcastRepository) ListLogs(ctx context.Context, broadcastID uuid.UUID) ([]*model.BroadcastLog, error) {
	query := `SELECT ` + broadcastLogColumns + ` FROM broadcast_logs WHERE broadcast_id = $1 ORDER BY created_at`

	var logs []*model.BroadcastLog
	if err := r.db.SelectContext(ctx, &logs, query, broadcastID); err != nil {
		return nil, fmt.Errorf("failed to list broadcast logs: %w", err)
	}
	return logs, nil
}

func (r *broadcastRepository) InsertLogs(ctx context.Context, logs []*model.BroadcastLog) ([]uuid.UUID, error) {
	var inserted []uuid.UUID
	now := time.Now()

	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO broadcast_logs (id, broadcast_id, venue_id, email_status, open_count, click_count, created_at, updated_at)
			VALUES ($1, $2, $3, $4, 0, 0, $5, $6)
			ON CONFLICT (broadcast_id, venue_id) DO NOTHING
		`
		for _, l := range logs {
			l.ID = uuid.New()
			l.CreatedAt = now
			l.UpdatedAt = now
			res, err := tx.ExecContext(ctx, query, l.ID, l.BroadcastID, l.VenueID, l.EmailStatus, l.CreatedAt, l.UpdatedAt)
			if err != nil {
				return fmt.Errorf("failed to insert broadcast log: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get rows affected: %w", err)
			}
			if n > 0 {
				inserted = append(inserted, l.VenueID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

func (r *broadcastRepository) MarkLogSent(ctx context.Context, logID uuid.UUID, messageID string, at time.Time) error {
	query := `
		UPDATE broadcast_logs
		SET provider_message_id = $2, email_status = $3, sent_at = $4, updated_at = $4
		WHERE id = $1 AND provider_message_id IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, logID, messageID, model.EmailStatusSent, at)
	if err != nil {
		return fmt.Errorf("failed to mark log sent: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("broadcast log %s already has a provider message id", logID)
	}
	return nil
}

func (r *broadcastRepository) MarkLogFailed(ctx context.Context, logID uuid.UUID, errMsg string) error {
	query := `
		UPDATE broadcast_logs
		SET email_status = $2, error = $3, updated_at = NOW()
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, logID, model.EmailStatusFailed, errMsg); err != nil {
		return fmt.Errorf("failed to mark log failed: %w", err)
	}
	return nil
}

// DeliveryStore implementation. Each statement is a single atomic UPDATE
// keyed by provider_message_id; set-if-null timestamps use COALESCE and
// counters increment in SQL so concurrent webhook deliveries can't lose
// updates.

func (r *broadcastRepository) MarkSent(ctx context.Context, messageID string, at time.Time) (int64, error) {
	query := `
		UPDATE broadcast_logs
		SET email_status = CASE WHEN email_status = 'pending' THEN 'sent' ELSE email_status END,
		    sent_at = COALESCE(sent_at, $2),
		    updated_at = $2
		WHERE provider_message_id = $1
	`
	return r.exec(ctx, query, messageID, at)
}

func (r *broadcastRepository) MarkDelivered(ctx context.Context, messageID string, at time.Time) (int64, error) {
	query := `
		UPDATE broadcast_logs
		SET email_status = 'delivered', delivered_at = COALESCE(delivered_at, $2), updated_at = $2
		WHERE provider_message_id = $1
	`
	return r.exec(ctx, query, messageID, at)
}

func (r *broadcastRepository) RecordOpen(ctx context.Context, messageID string, at time.Time) (int64, error) {
	query := `
		UPDATE broadcast_logs
		SET opened_at = COALESCE(opened_at, $2), open_count = open_count + 1, updated_at = $2
		WHERE provider_message_id = $1
	`
	return r.exec(ctx, query, messageID, at)
}

func (r *broadcastRepository) RecordClick(ctx context.Context, messageID string, at time.Time) (int64, error) {
	query := `
		UPDATE broadcast_logs
		SET clicked_at = COALESCE(clicked_at, $2), click_count = click_count + 1, updated_at = $2
		WHERE provider_message_id = $1
	`
	return r.exec(ctx, query, messageID, at)
}

func (r *broadcastRepository) MarkBounced(ctx context.Context, messageID string, at time.Time, bounceType, reason string) (int64, error) {
	query := `
		UPDATE broadcast_logs
		SET email_status = 'bounced', bounced_at = COALESCE(bounced_at, $2),
		    bounce_type = $3, error = $4, updated_at = $2
		WHERE provider_message_id = $1
	`
	return r.exec(ctx, query, messageID, at, bounceType, reason)
}

func (r *broadcastRepository) MarkComplained(ctx context.Context, messageID string, at time.Time, reason string) (int64, error) {
	query := `
		UPDATE broadcast_logs
		SET email_status = 'complained', complained_at = COALESCE(complained_at, $2),
		    error = $3, updated_at = $2
		WHERE provider_message_id = $1
	`
	return r.exec(ctx, query, messageID, at, reason)
}

func (r *broadcastRepository) MarkDelayed(ctx context.Context, messageID string, at time.Time, reason string) (int64, error) {
	query := `
		UPDATE broadcast_logs
		SET email_status = 'delayed', error = $3, updated_at = $2
		WHERE provider_message_id = $1
	`
	return r.exec(ctx, query, messageID, at, reason)
}

func (r *broadcastRepository) exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to update broadcast log: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}
