package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"apim/internal/identity/models"
	"apim/pkg/platform/sentinel"
)

// PostgresStore persists accounts in PostgreSQL.
//
// Schema:
//
//	CREATE TABLE users (
//	    user_id          TEXT PRIMARY KEY,
//	    password_hash    TEXT NOT NULL,
//	    display_name     TEXT NOT NULL,
//	    permission_class TEXT NOT NULL,
//	    active           BOOLEAN NOT NULL DEFAULT TRUE,
//	    created_by       TEXT NOT NULL,
//	    created_at       TIMESTAMPTZ NOT NULL,
//	    updated_by       TEXT NOT NULL,
//	    updated_at       TIMESTAMPTZ NOT NULL
//	);
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed user store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const uniqueViolation = "23505"

func (s *PostgresStore) Save(ctx context.Context, user models.User) error {
	query := `
		INSERT INTO users (user_id, password_hash, display_name, permission_class, active, created_by, created_at, updated_by, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		user.ID, user.PasswordHash, user.DisplayName, string(user.PermissionClass),
		user.Active, user.CreatedBy, user.CreatedAt, user.UpdatedBy, user.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("user %s: %w", user.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (models.User, error) {
	query := `
		SELECT user_id, password_hash, display_name, permission_class, active, created_by, created_at, updated_by, updated_at
		FROM users
		WHERE user_id = $1
	`
	var user models.User
	var class string
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID, &user.PasswordHash, &user.DisplayName, &class,
		&user.Active, &user.CreatedBy, &user.CreatedAt, &user.UpdatedBy, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, fmt.Errorf("user %s: %w", id, sentinel.ErrNotFound)
		}
		return models.User{}, fmt.Errorf("find user: %w", err)
	}
	user.PermissionClass = models.PermissionClass(class)
	return user, nil
}

func (s *PostgresStore) SetActive(ctx context.Context, id string, active bool, actorID string, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET active = $2, updated_by = $3, updated_at = $4 WHERE user_id = $1`,
		id, active, actorID, now,
	)
	if err != nil {
		return fmt.Errorf("set user active: %w", err)
	}
	return requireRow(res, id)
}

func (s *PostgresStore) SetPasswordHash(ctx context.Context, id, passwordHash, actorID string, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2, updated_by = $3, updated_at = $4 WHERE user_id = $1`,
		id, passwordHash, actorID, now,
	)
	if err != nil {
		return fmt.Errorf("set password hash: %w", err)
	}
	return requireRow(res, id)
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE user_id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return requireRow(res, id)
}

func requireRow(res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("user %s: %w", id, sentinel.ErrNotFound)
	}
	return nil
}
