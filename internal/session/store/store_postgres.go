package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"apim/internal/session/models"
	"apim/pkg/platform/sentinel"
)

// PostgresStore persists sessions in PostgreSQL, one row per user.
//
// Schema:
//
//	CREATE TABLE sessions (
//	    user_id       TEXT PRIMARY KEY,
//	    refresh_value TEXT NOT NULL,
//	    issued_at     TIMESTAMPTZ NOT NULL
//	);
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed session store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Replace(ctx context.Context, session models.Session) error {
	query := `
		INSERT INTO sessions (user_id, refresh_value, issued_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			refresh_value = EXCLUDED.refresh_value,
			issued_at = EXCLUDED.issued_at
	`
	if _, err := s.db.ExecContext(ctx, query, session.UserID, session.RefreshValue, session.IssuedAt); err != nil {
		return fmt.Errorf("replace session: %w", err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, userID string) (models.Session, error) {
	var session models.Session
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, refresh_value, issued_at FROM sessions WHERE user_id = $1`,
		userID,
	).Scan(&session.UserID, &session.RefreshValue, &session.IssuedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Session{}, fmt.Errorf("session for %s: %w", userID, sentinel.ErrNotFound)
		}
		return models.Session{}, fmt.Errorf("find session: %w", err)
	}
	return session, nil
}

// Rotate is a single guarded UPDATE: the WHERE clause is the
// compare-and-swap, so two concurrent refreshes can never both succeed.
func (s *PostgresStore) Rotate(ctx context.Context, userID, presented, next string, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET refresh_value = $3, issued_at = $4 WHERE user_id = $1 AND refresh_value = $2`,
		userID, presented, next, now,
	)
	if err != nil {
		return fmt.Errorf("rotate session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rotate session: %w", err)
	}
	if affected == 1 {
		return nil
	}

	// Zero rows: distinguish "no session at all" from "value rotated
	// elsewhere" so the caller can report the right failure.
	var exists bool
	err = s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM sessions WHERE user_id = $1)`, userID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("rotate session: %w", err)
	}
	if !exists {
		return fmt.Errorf("session for %s: %w", userID, sentinel.ErrNotFound)
	}
	return ErrSuperseded
}

func (s *PostgresStore) Delete(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("session for %s: %w", userID, sentinel.ErrNotFound)
	}
	return nil
}
