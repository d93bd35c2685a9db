package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"apim/internal/permission/models"
	"apim/pkg/platform/sentinel"
)

// PostgresStore persists grants and requests in PostgreSQL. Composite
// operations run one transaction per logical operation; the partial
// unique index on PENDING rows backs the duplicate-submission race that
// the in-transaction check cannot fully close.
//
// Schema:
//
//	CREATE TABLE permission_grants (
//	    resource_id TEXT NOT NULL,
//	    user_id     TEXT NOT NULL,
//	    granted_by  TEXT NOT NULL,
//	    granted_at  TIMESTAMPTZ NOT NULL,
//	    PRIMARY KEY (resource_id, user_id)
//	);
//
//	CREATE TABLE permission_requests (
//	    request_id   TEXT PRIMARY KEY,
//	    user_id      TEXT NOT NULL,
//	    resource_id  TEXT NOT NULL,
//	    status       TEXT NOT NULL,
//	    reason       TEXT NOT NULL,
//	    requested_at TIMESTAMPTZ NOT NULL,
//	    responder_id TEXT,
//	    responded_at TIMESTAMPTZ
//	);
//	CREATE UNIQUE INDEX permission_requests_pending_pair
//	    ON permission_requests (user_id, resource_id)
//	    WHERE status = 'PENDING';
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed permission store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const uniqueViolation = "23505"

func (s *PostgresStore) HasGrant(ctx context.Context, userID, resourceID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM permission_grants WHERE resource_id = $1 AND user_id = $2)`,
		resourceID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check grant: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) UpsertGrant(ctx context.Context, grant models.Grant) error {
	query := `
		INSERT INTO permission_grants (resource_id, user_id, granted_by, granted_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (resource_id, user_id) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, query, grant.ResourceID, grant.UserID, grant.GrantedBy, grant.GrantedAt); err != nil {
		return fmt.Errorf("upsert grant: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListGrants(ctx context.Context, userID string) ([]models.Grant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT resource_id, user_id, granted_by, granted_at FROM permission_grants WHERE user_id = $1 ORDER BY resource_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	defer rows.Close()

	var grants []models.Grant
	for rows.Next() {
		var grant models.Grant
		if err := rows.Scan(&grant.ResourceID, &grant.UserID, &grant.GrantedBy, &grant.GrantedAt); err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		grants = append(grants, grant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	return grants, nil
}

func (s *PostgresStore) ReplaceGrants(ctx context.Context, userID string, resourceIDs []string, actorID string, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace grants: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM permission_grants WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear grants: %w", err)
	}

	for _, resourceID := range resourceIDs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO permission_grants (resource_id, user_id, granted_by, granted_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (resource_id, user_id) DO NOTHING
		`, resourceID, userID, actorID, now)
		if err != nil {
			return fmt.Errorf("insert grant: %w", err)
		}

		// Resolve the latest PENDING request for the pair so the direct
		// edit and the workflow agree on the outcome.
		_, err = tx.ExecContext(ctx, `
			UPDATE permission_requests
			SET status = $4, responder_id = $3, responded_at = $5
			WHERE request_id = (
				SELECT request_id FROM permission_requests
				WHERE user_id = $1 AND resource_id = $2 AND status = $6
				ORDER BY requested_at DESC
				LIMIT 1
			)
		`, userID, resourceID, actorID, string(models.StatusApproved), now, string(models.StatusPending))
		if err != nil {
			return fmt.Errorf("auto-approve pending request: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace grants: %w", err)
	}
	return nil
}

func (s *PostgresStore) RemoveGrantsForUser(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM permission_grants WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("remove grants for user: %w", err)
	}
	return nil
}

func (s *PostgresStore) RemoveGrantsForResource(ctx context.Context, resourceID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM permission_grants WHERE resource_id = $1`, resourceID); err != nil {
		return fmt.Errorf("remove grants for resource: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateRequest(ctx context.Context, request models.Request) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create request: %w", err)
	}
	defer tx.Rollback()

	var granted bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM permission_grants WHERE resource_id = $1 AND user_id = $2)`,
		request.ResourceID, request.UserID,
	).Scan(&granted)
	if err != nil {
		return fmt.Errorf("check existing grant: %w", err)
	}
	if granted {
		return ErrAlreadyGranted
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO permission_requests (request_id, user_id, resource_id, status, reason, requested_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, request.ID, request.UserID, request.ResourceID, string(request.Status), request.Reason, request.RequestedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			// The partial unique index on PENDING pairs caught a
			// concurrent duplicate submission.
			return ErrAlreadyPending
		}
		return fmt.Errorf("insert request: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create request: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindRequest(ctx context.Context, requestID string) (models.Request, error) {
	request, err := scanRequest(s.db.QueryRowContext(ctx, `
		SELECT request_id, user_id, resource_id, status, reason, requested_at, responder_id, responded_at
		FROM permission_requests
		WHERE request_id = $1
	`, requestID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Request{}, fmt.Errorf("request %s: %w", requestID, sentinel.ErrNotFound)
		}
		return models.Request{}, fmt.Errorf("find request: %w", err)
	}
	return request, nil
}

// ApproveRequest's guarded UPDATE is the compare-and-swap on the status
// column: of two concurrent approvals, exactly one sees the PENDING row.
func (s *PostgresStore) ApproveRequest(ctx context.Context, requestID, responderID string, now time.Time) (models.Request, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Request{}, fmt.Errorf("begin approve: %w", err)
	}
	defer tx.Rollback()

	request, err := scanRequest(tx.QueryRowContext(ctx, `
		UPDATE permission_requests
		SET status = $2, responder_id = $3, responded_at = $4
		WHERE request_id = $1 AND status = $5
		RETURNING request_id, user_id, resource_id, status, reason, requested_at, responder_id, responded_at
	`, requestID, string(models.StatusApproved), responderID, now, string(models.StatusPending)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Request{}, ErrNotPending
		}
		return models.Request{}, fmt.Errorf("approve request: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO permission_grants (resource_id, user_id, granted_by, granted_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (resource_id, user_id) DO NOTHING
	`, request.ResourceID, request.UserID, responderID, now)
	if err != nil {
		return models.Request{}, fmt.Errorf("write grant for approval: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.Request{}, fmt.Errorf("commit approve: %w", err)
	}
	return request, nil
}

func (s *PostgresStore) RejectRequest(ctx context.Context, requestID, responderID string, now time.Time) (models.Request, error) {
	request, err := scanRequest(s.db.QueryRowContext(ctx, `
		UPDATE permission_requests
		SET status = $2, responder_id = $3, responded_at = $4
		WHERE request_id = $1 AND status = $5
		RETURNING request_id, user_id, resource_id, status, reason, requested_at, responder_id, responded_at
	`, requestID, string(models.StatusRejected), responderID, now, string(models.StatusPending)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Request{}, ErrNotPending
		}
		return models.Request{}, fmt.Errorf("reject request: %w", err)
	}
	return request, nil
}

func (s *PostgresStore) ListRequests(ctx context.Context, filter models.ListFilter) ([]models.Request, error) {
	query := strings.Builder{}
	query.WriteString(`
		SELECT request_id, user_id, resource_id, status, reason, requested_at, responder_id, responded_at
		FROM permission_requests
		WHERE 1=1
	`)
	var args []any

	if filter.UserID != "" {
		args = append(args, "%"+filter.UserID+"%")
		fmt.Fprintf(&query, " AND user_id LIKE $%d", len(args))
	}
	if len(filter.ResourceIDs) > 0 {
		args = append(args, pq.Array(filter.ResourceIDs))
		fmt.Fprintf(&query, " AND resource_id = ANY($%d)", len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		fmt.Fprintf(&query, " AND status = $%d", len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		fmt.Fprintf(&query, " AND requested_at >= $%d", len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		fmt.Fprintf(&query, " AND requested_at <= $%d", len(args))
	}
	query.WriteString(" ORDER BY requested_at DESC")

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	var requests []models.Request
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		requests = append(requests, request)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return requests, nil
}

func (s *PostgresStore) PendingCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM permission_requests WHERE status = $1`,
		string(models.StatusPending),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("pending count: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (models.Request, error) {
	var request models.Request
	var status string
	var responderID sql.NullString
	var respondedAt sql.NullTime
	err := row.Scan(
		&request.ID, &request.UserID, &request.ResourceID, &status,
		&request.Reason, &request.RequestedAt, &responderID, &respondedAt,
	)
	if err != nil {
		return models.Request{}, err
	}
	request.Status = models.Status(status)
	if responderID.Valid {
		request.ResponderID = responderID.String
	}
	if respondedAt.Valid {
		request.RespondedAt = &respondedAt.Time
	}
	return request, nil
}
