package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apim/internal/permission/models"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgres(db), mock
}

func requestRows(id, userID, resourceID, status string, requestedAt time.Time, responderID any, respondedAt any) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"request_id", "user_id", "resource_id", "status", "reason", "requested_at", "responder_id", "responded_at",
	}).AddRow(id, userID, resourceID, status, "reason", requestedAt, responderID, respondedAt)
}

func TestPostgresApproveCommitsStatusAndGrantTogether(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE permission_requests`).
		WithArgs("req-1", "APPROVED", "admin", now, "PENDING").
		WillReturnRows(requestRows("req-1", "alice", "api-1", "APPROVED", now.Add(-time.Hour), "admin", now))
	mock.ExpectExec(`INSERT INTO permission_grants`).
		WithArgs("api-1", "alice", "admin", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	approved, err := store.ApproveRequest(context.Background(), "req-1", "admin", now)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, approved.Status)
	assert.Equal(t, "admin", approved.ResponderID)
	require.NotNil(t, approved.RespondedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresApproveNonPendingRollsBack(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE permission_requests`).
		WithArgs("req-1", "APPROVED", "admin", now, "PENDING").
		WillReturnRows(sqlmock.NewRows([]string{
			"request_id", "user_id", "resource_id", "status", "reason", "requested_at", "responder_id", "responded_at",
		}))
	mock.ExpectRollback()

	_, err := store.ApproveRequest(context.Background(), "req-1", "admin", now)
	require.ErrorIs(t, err, ErrNotPending)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateRequestRejectsExistingGrant(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("api-1", "alice").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	err := store.CreateRequest(context.Background(), models.Request{
		ID: "req-1", UserID: "alice", ResourceID: "api-1",
		Status: models.StatusPending, Reason: "reason", RequestedAt: now,
	})
	require.ErrorIs(t, err, ErrAlreadyGranted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateRequestInserts(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("api-1", "alice").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`INSERT INTO permission_requests`).
		WithArgs("req-1", "alice", "api-1", "PENDING", "reason", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.CreateRequest(context.Background(), models.Request{
		ID: "req-1", UserID: "alice", ResourceID: "api-1",
		Status: models.StatusPending, Reason: "reason", RequestedAt: now,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRejectRequest(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`UPDATE permission_requests`).
		WithArgs("req-1", "REJECTED", "admin", now, "PENDING").
		WillReturnRows(requestRows("req-1", "alice", "api-1", "REJECTED", now.Add(-time.Hour), "admin", now))

	rejected, err := store.RejectRequest(context.Background(), "req-1", "admin", now)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, rejected.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
