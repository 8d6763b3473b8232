package repositories

import (
	"context"
	"fmt"

	"github.com/colefleming/vouch/internal/database"
	"github.com/colefleming/vouch/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditLogRepository is an append-only sink; no update or delete is exposed.
type AuditLogRepository struct {
	pool *pgxpool.Pool
}

func NewAuditLogRepository(db *database.DB) *AuditLogRepository {
	return &AuditLogRepository{pool: db.Pool}
}

func scanAuditLogRow(row rowScanner) (*models.AuditLogEntry, error) {
	var entry models.AuditLogEntry

	err := row.Scan(
		&entry.ID, &entry.RequestID, &entry.Action, &entry.ActorID,
		&entry.ActorType, &entry.Details, &entry.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &entry, nil
}

func scanAuditLogRows(rows pgx.Rows) ([]*models.AuditLogEntry, error) {
	defer rows.Close()

	entries := make([]*models.AuditLogEntry, 0)

	for rows.Next() {
		entry, err := scanAuditLogRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log rows: %w", err)
	}

	return entries, nil
}

func (r *AuditLogRepository) Create(ctx context.Context, entry *models.AuditLogEntry) (*models.AuditLogEntry, error) {
	query := `
		INSERT INTO audit_log (request_id, action, actor_id, actor_type, details)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, request_id, action, actor_id, actor_type, details, created_at
	`

	created, err := scanAuditLogRow(r.pool.QueryRow(
		ctx, query,
		entry.RequestID, entry.Action, entry.ActorID, entry.ActorType, entry.Details,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create audit log entry: %w", err)
	}

	return created, nil
}

// ListByRequest returns the audit trail for one request, oldest first.
func (r *AuditLogRepository) ListByRequest(ctx context.Context, requestID uuid.UUID, limit, offset int) ([]*models.AuditLogEntry, error) {
	query := `
		SELECT id, request_id, action, actor_id, actor_type, details, created_at
		FROM audit_log
		WHERE request_id = $1
		ORDER BY created_at
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, requestID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}

	return scanAuditLogRows(rows)
}

// ListByActor returns entries written by one actor, newest first.
func (r *AuditLogRepository) ListByActor(ctx context.Context, actorID uuid.UUID, limit, offset int) ([]*models.AuditLogEntry, error) {
	query := `
		SELECT id, request_id, action, actor_id, actor_type, details, created_at
		FROM audit_log
		WHERE actor_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, actorID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}

	return scanAuditLogRows(rows)
}
