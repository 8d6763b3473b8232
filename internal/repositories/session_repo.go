package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/colefleming/vouch/internal/database"
	"github.com/colefleming/vouch/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{pool: db.Pool}
}

func scanSessionRow(row rowScanner) (*models.Session, error) {
	var s models.Session

	err := row.Scan(
		&s.ID, &s.UserID, &s.Level, &s.RequestID,
		&s.UserAgent, &s.IPAddress, &s.CreatedAt, &s.ExpiresAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &s, nil
}

func (r *SessionRepository) Create(ctx context.Context, session *models.Session) (*models.Session, error) {
	query := `
		INSERT INTO sessions (user_id, auth_level, request_id, user_agent, ip_address, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, user_id, auth_level, request_id, user_agent, ip_address, created_at, expires_at
	`

	created, err := scanSessionRow(r.pool.QueryRow(
		ctx, query,
		session.UserID, session.Level, session.RequestID,
		session.UserAgent, session.IPAddress, session.ExpiresAt,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return created, nil
}

func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	query := `
		SELECT id, user_id, auth_level, request_id, user_agent, ip_address, created_at, expires_at
		FROM sessions
		WHERE id = $1
	`

	return scanSessionRow(r.pool.QueryRow(ctx, query, id))
}

// Upgrade flips a half session to full. Returns false when the session was
// already full (or absent); the level never moves the other way.
func (r *SessionRepository) Upgrade(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE sessions
		SET auth_level = $1
		WHERE id = $2 AND auth_level = $3
	`

	tag, err := r.pool.Exec(ctx, query, models.AuthLevelFull, id, models.AuthLevelHalf)
	if err != nil {
		return false, database.MapPostgresError(err)
	}

	return tag.RowsAffected() > 0, nil
}

// UpgradeByRequestID flips the half session tied to a request to full.
// Returns false when no half session remains for the request.
func (r *SessionRepository) UpgradeByRequestID(ctx context.Context, requestID uuid.UUID) (bool, error) {
	query := `
		UPDATE sessions
		SET auth_level = $1
		WHERE request_id = $2 AND auth_level = $3
	`

	tag, err := r.pool.Exec(ctx, query, models.AuthLevelFull, requestID, models.AuthLevelHalf)
	if err != nil {
		return false, database.MapPostgresError(err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *SessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return database.MapPostgresError(err)
}

// DeleteByRequestID removes the half session tied to a resolved request.
func (r *SessionRepository) DeleteByRequestID(ctx context.Context, requestID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE request_id = $1`, requestID)
	return database.MapPostgresError(err)
}

// CountFullByUser counts the user's live full sessions. Used by the
// self-approval rule as proof the user already controls a trusted device.
func (r *SessionRepository) CountFullByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM sessions
		WHERE user_id = $1 AND auth_level = $2 AND expires_at > $3
	`

	var count int
	err := r.pool.QueryRow(ctx, query, userID, models.AuthLevelFull, time.Now()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count full sessions: %w", err)
	}

	return count, nil
}

// CountByUser counts all live sessions for a user.
func (r *SessionRepository) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM sessions
		WHERE user_id = $1 AND expires_at > $2
	`

	var count int
	err := r.pool.QueryRow(ctx, query, userID, time.Now()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}

	return count, nil
}

// DeleteExpired removes sessions past their expiry. Expiry is enforced
// lazily on resolve; this only keeps the table small.
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < $1`, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	return tag.RowsAffected(), nil
}
