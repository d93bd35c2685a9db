package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apim/internal/session/models"
	"apim/pkg/platform/sentinel"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgres(db), mock
}

func TestPostgresReplaceUpserts(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectExec(`INSERT INTO sessions`).
		WithArgs("alice", "r1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Replace(context.Background(), models.Session{
		UserID:       "alice",
		RefreshValue: "r1",
		IssuedAt:     now,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRotate(t *testing.T) {
	now := time.Now()

	t.Run("matching value rotates", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(`UPDATE sessions SET refresh_value`).
			WithArgs("alice", "r1", "r2", now).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, store.Rotate(context.Background(), "alice", "r1", "r2", now))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("mismatch with existing row is superseded", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(`UPDATE sessions SET refresh_value`).
			WithArgs("alice", "stale", "r2", now).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs("alice").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		err := store.Rotate(context.Background(), "alice", "stale", "r2", now)
		require.ErrorIs(t, err, ErrSuperseded)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row is not found", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(`UPDATE sessions SET refresh_value`).
			WithArgs("ghost", "r1", "r2", now).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		err := store.Rotate(context.Background(), "ghost", "r1", "r2", now)
		require.ErrorIs(t, err, sentinel.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresFindNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT user_id, refresh_value, issued_at FROM sessions`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "refresh_value", "issued_at"}))

	_, err := store.Find(context.Background(), "ghost")
	require.ErrorIs(t, err, sentinel.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDeleteNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`DELETE FROM sessions`).
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.ErrorIs(t, store.Delete(context.Background(), "ghost"), sentinel.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
