package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locaro/venue-api/internal/model"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestCreateWithLogsSingleTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBroadcastRepository(NewBaseRepository(db))

	venueA, venueB := uuid.New(), uuid.New()
	b := &model.Broadcast{Title: "60-119 guests · Mitte", Status: model.BroadcastStatusPending}
	logs := []*model.BroadcastLog{
		{VenueID: venueA, EmailStatus: model.EmailStatusPending},
		{VenueID: venueB, EmailStatus: model.EmailStatusPending},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO broadcasts").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO broadcast_logs").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO broadcast_logs").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.CreateWithLogs(context.Background(), b, logs))
	assert.NotEqual(t, uuid.Nil, b.ID)
	for _, l := range logs {
		assert.Equal(t, b.ID, l.BroadcastID)
		assert.NotEqual(t, uuid.Nil, l.ID)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithLogsRollsBackOnLogFailure(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBroadcastRepository(NewBaseRepository(db))

	b := &model.Broadcast{Title: "Venue request"}
	logs := []*model.BroadcastLog{{VenueID: uuid.New()}}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO broadcasts").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO broadcast_logs").
		WillReturnError(fmt.Errorf("constraint violation"))
	mock.ExpectRollback()

	err := repo.CreateWithLogs(context.Background(), b, logs)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkLogSentAssignsMessageIDOnce(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBroadcastRepository(NewBaseRepository(db))

	logID := uuid.New()
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec("UPDATE broadcast_logs").
		WithArgs(logID, "msg-1", model.EmailStatusSent, at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkLogSent(context.Background(), logID, "msg-1", at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkLogSentRefusesSecondAssignment(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBroadcastRepository(NewBaseRepository(db))

	logID := uuid.New()
	at := time.Now()

	// The row exists but already carries a provider message id, so the
	// guarded UPDATE matches nothing.
	mock.ExpectExec("UPDATE broadcast_logs").
		WithArgs(logID, "msg-2", model.EmailStatusSent, at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkLogSent(context.Background(), logID, "msg-2", at)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already has a provider message id")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertLogsReportsOnlyNewRows(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBroadcastRepository(NewBaseRepository(db))

	broadcastID := uuid.New()
	logs := []*model.BroadcastLog{
		{BroadcastID: broadcastID, VenueID: uuid.New(), EmailStatus: model.EmailStatusPending},
		{BroadcastID: broadcastID, VenueID: uuid.New(), EmailStatus: model.EmailStatusPending},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO broadcast_logs").
		WillReturnResult(sqlmock.NewResult(0, 1))
	// Second pair already exists; ON CONFLICT DO NOTHING affects zero rows
	// and its venue id must not be reported as inserted.
	mock.ExpectExec("INSERT INTO broadcast_logs").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	inserted, err := repo.InsertLogs(context.Background(), logs)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{logs[0].VenueID}, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementSentCount(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBroadcastRepository(NewBaseRepository(db))

	id := uuid.New()
	mock.ExpectExec(`sent_count = sent_count \+ 1`).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.IncrementSentCount(context.Background(), id))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliveryStoreRecordOpenIncrementsInSQL(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewDeliveryStore(NewBaseRepository(db))

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec(`opened_at = COALESCE\(opened_at, \$2\), open_count = open_count \+ 1`).
		WithArgs("msg-1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	matched, err := store.RecordOpen(context.Background(), "msg-1", at)
	require.NoError(t, err)
	assert.Equal(t, int64(1), matched)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliveryStoreMarkSentKeepsLaterStatus(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewDeliveryStore(NewBaseRepository(db))

	at := time.Now()
	// The conditional status write lives in SQL; a late sent event must not
	// demote a delivered row.
	mock.ExpectExec(`CASE WHEN email_status = 'pending' THEN 'sent' ELSE email_status END`).
		WithArgs("msg-1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	matched, err := store.MarkSent(context.Background(), "msg-1", at)
	require.NoError(t, err)
	assert.Equal(t, int64(1), matched)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliveryStoreUnmatchedMessageID(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewDeliveryStore(NewBaseRepository(db))

	at := time.Now()
	mock.ExpectExec("UPDATE broadcast_logs").
		WithArgs("unknown", at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	matched, err := store.MarkDelivered(context.Background(), "unknown", at)
	require.NoError(t, err)
	assert.Equal(t, int64(0), matched)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliveryStoreMarkBounced(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewDeliveryStore(NewBaseRepository(db))

	at := time.Now()
	mock.ExpectExec(`email_status = 'bounced'`).
		WithArgs("msg-1", at, "hard", "bounced: hard").
		WillReturnResult(sqlmock.NewResult(0, 1))

	matched, err := store.MarkBounced(context.Background(), "msg-1", at, "hard", "bounced: hard")
	require.NoError(t, err)
	assert.Equal(t, int64(1), matched)
	assert.NoError(t, mock.ExpectationsWereMet())
}
