package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locaro/venue-api/internal/model"
)

func TestEmailLogCreate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEmailLogRepository(NewBaseRepository(db))

	mock.ExpectExec("INSERT INTO email_logs").
		WillReturnResult(sqlmock.NewResult(0, 1))

	log := &model.EmailLog{
		EmailType: model.EmailTypeBroadcast,
		Recipient: "venue@example.com",
		Status:    model.EmailStatusSent,
	}
	require.NoError(t, repo.Create(context.Background(), log))
	assert.NotEmpty(t, log.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmailLogCreateDuplicateMessageIDRejected(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEmailLogRepository(NewBaseRepository(db))

	// provider_message_id carries a partial unique index; a second ledger
	// row with the same id must fail, not silently coexist.
	mock.ExpectExec("INSERT INTO email_logs").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "idx_email_logs_provider_message_id"})

	msgID := "msg-1"
	log := &model.EmailLog{
		EmailType:         model.EmailTypeBroadcast,
		Recipient:         "venue@example.com",
		Status:            model.EmailStatusSent,
		ProviderMessageID: &msgID,
	}
	err := repo.Create(context.Background(), log)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create email log")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmailLogUpdateStatusReportsMatches(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEmailLogRepository(NewBaseRepository(db))

	reason := "bounced: hard"
	mock.ExpectExec(`UPDATE email_logs`).
		WithArgs("msg-1", model.EmailStatusBounced, &reason).
		WillReturnResult(sqlmock.NewResult(0, 1))

	matched, err := repo.UpdateStatusByMessageID(context.Background(), "msg-1", model.EmailStatusBounced, &reason)
	require.NoError(t, err)
	assert.Equal(t, int64(1), matched)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmailLogUpdateStatusUnmatched(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEmailLogRepository(NewBaseRepository(db))

	mock.ExpectExec(`UPDATE email_logs`).
		WithArgs("unknown", model.EmailStatusDelivered, nil).
		WillReturnResult(sqlmock.NewResult(0, 0))

	matched, err := repo.UpdateStatusByMessageID(context.Background(), "unknown", model.EmailStatusDelivered, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), matched)
	assert.NoError(t, mock.ExpectationsWereMet())
}
