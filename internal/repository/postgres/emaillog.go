package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/locaro/venue-api/internal/model"
	"github.com/locaro/venue-api/internal/repository"
)

type emailLogRepository struct {
	BaseRepository
}

func NewEmailLogRepository(base BaseRepository) repository.EmailLogRepository {
	return &emailLogRepository{base}
}

func (r *emailLogRepository) Create(ctx context.Context, log *model.EmailLog) error {
	query := `
		INSERT INTO email_logs (
			id, email_type, recipient, status, error, provider_message_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	now := time.Now()
	log.ID = uuid.New()
	log.CreatedAt = now
	log.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		log.ID,
		log.EmailType,
		log.Recipient,
		log.Status,
		log.Error,
		log.ProviderMessageID,
		log.CreatedAt,
		log.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create email log: %w", err)
	}
	return nil
}

func (r *emailLogRepository) GetByMessageID(ctx context.Context, messageID string) (*model.EmailLog, error) {
	query := `
		SELECT id, email_type, recipient, status, error, provider_message_id, created_at, updated_at
		FROM email_logs
		WHERE provider_message_id = $1
	`
	var log model.EmailLog
	if err := r.db.GetContext(ctx, &log, query, messageID); err != nil {
		return nil, fmt.Errorf("failed to get email log: %w", err)
	}
	return &log, nil
}

func (r *emailLogRepository) UpdateStatusByMessageID(ctx context.Context, messageID string, status model.EmailStatus, errMsg *string) (int64, error) {
	query := `
		UPDATE email_logs
		SET status = $2, error = COALESCE($3, error), updated_at = NOW()
		WHERE provider_message_id = $1
	`
	result, err := r.db.ExecContext(ctx, query, messageID, status, errMsg)
	if err != nil {
		return 0, fmt.Errorf("failed to update email log: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}
