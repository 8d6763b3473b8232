package repositories

import (
	"context"
	"fmt"

	"github.com/colefleming/vouch/internal/database"
	"github.com/colefleming/vouch/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SecurityEventRepository is an append-only sink for security events.
type SecurityEventRepository struct {
	pool *pgxpool.Pool
}

func NewSecurityEventRepository(db *database.DB) *SecurityEventRepository {
	return &SecurityEventRepository{pool: db.Pool}
}

func (r *SecurityEventRepository) Create(ctx context.Context, event *models.SecurityEvent) (*models.SecurityEvent, error) {
	query := `
		INSERT INTO security_events (event_type, user_id, ip_address, user_agent, details)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, event_type, user_id, ip_address, user_agent, details, created_at
	`

	var created models.SecurityEvent
	err := r.pool.QueryRow(
		ctx, query,
		event.EventType, event.UserID, event.IPAddress, event.UserAgent, event.Details,
	).Scan(
		&created.ID, &created.EventType, &created.UserID, &created.IPAddress,
		&created.UserAgent, &created.Details, &created.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create security event: %w", err)
	}

	return &created, nil
}

// ListByUser returns events for one user, newest first.
func (r *SecurityEventRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.SecurityEvent, error) {
	query := `
		SELECT id, event_type, user_id, ip_address, user_agent, details, created_at
		FROM security_events
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query security events: %w", err)
	}
	defer rows.Close()

	events := make([]*models.SecurityEvent, 0)
	for rows.Next() {
		var e models.SecurityEvent
		err := rows.Scan(&e.ID, &e.EventType, &e.UserID, &e.IPAddress, &e.UserAgent, &e.Details, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan security event: %w", err)
		}
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating security event rows: %w", err)
	}

	return events, nil
}
