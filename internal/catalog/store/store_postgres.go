package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"apim/internal/catalog/models"
	"apim/pkg/platform/sentinel"
)

// PostgresStore persists catalog resources in PostgreSQL.
//
// Schema:
//
//	CREATE TABLE catalog_resources (
//	    resource_id TEXT PRIMARY KEY,
//	    name        TEXT NOT NULL,
//	    method      TEXT NOT NULL,
//	    path        TEXT NOT NULL,
//	    description TEXT NOT NULL DEFAULT '',
//	    enabled     BOOLEAN NOT NULL DEFAULT TRUE,
//	    created_at  TIMESTAMPTZ NOT NULL
//	);
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const uniqueViolation = "23505"

const resourceColumns = `resource_id, name, method, path, description, enabled, created_at`

func (s *PostgresStore) Save(ctx context.Context, resource models.Resource) error {
	query := `
		INSERT INTO catalog_resources (` + resourceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		resource.ID, resource.Name, resource.Method, resource.Path,
		resource.Description, resource.Enabled, resource.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("resource %s: %w", resource.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("save resource: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, resourceID string) (models.Resource, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+resourceColumns+` FROM catalog_resources WHERE resource_id = $1`,
		resourceID,
	)
	resource, err := scanResource(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Resource{}, fmt.Errorf("resource %s: %w", resourceID, sentinel.ErrNotFound)
		}
		return models.Resource{}, fmt.Errorf("find resource: %w", err)
	}
	return resource, nil
}

func (s *PostgresStore) Exists(ctx context.Context, resourceID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM catalog_resources WHERE resource_id = $1)`,
		resourceID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check resource: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]models.Resource, error) {
	return s.list(ctx, `SELECT `+resourceColumns+` FROM catalog_resources ORDER BY resource_id`)
}

func (s *PostgresStore) ListByMethod(ctx context.Context, method string) ([]models.Resource, error) {
	return s.list(ctx,
		`SELECT `+resourceColumns+` FROM catalog_resources WHERE UPPER(method) = UPPER($1) ORDER BY resource_id`,
		method,
	)
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]models.Resource, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	defer rows.Close()

	var resources []models.Resource
	for rows.Next() {
		resource, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		resources = append(resources, resource)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	return resources, nil
}

func (s *PostgresStore) Delete(ctx context.Context, resourceID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM catalog_resources WHERE resource_id = $1`, resourceID)
	if err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("resource %s: %w", resourceID, sentinel.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResource(row rowScanner) (models.Resource, error) {
	var resource models.Resource
	err := row.Scan(
		&resource.ID, &resource.Name, &resource.Method, &resource.Path,
		&resource.Description, &resource.Enabled, &resource.CreatedAt,
	)
	return resource, err
}
