package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/colefleming/vouch/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AuthAttemptRepository records authentication-request creations for rate
// limiting.
type AuthAttemptRepository struct {
	db *database.DB
}

func NewAuthAttemptRepository(db *database.DB) *AuthAttemptRepository {
	return &AuthAttemptRepository{db: db}
}

// RecordIfUnderLimit counts attempts since the window start for the user
// key and the IP key, and records a new attempt only when both are under
// limit. Returns true when the attempt was recorded.
//
// The count-then-insert runs in one transaction holding advisory xact
// locks on both keys, so two near-simultaneous logins from the same user
// or IP are serialized and cannot both observe "under limit".
func (r *AuthAttemptRepository) RecordIfUnderLimit(ctx context.Context, userID uuid.UUID, ip string, since time.Time, limit int) (bool, error) {
	var allowed bool

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`SELECT pg_advisory_xact_lock(hashtext($1)), pg_advisory_xact_lock(hashtext($2))`,
			"auth_attempt:user:"+userID.String(), "auth_attempt:ip:"+ip,
		)
		if err != nil {
			return database.MapPostgresError(err)
		}

		var userCount, ipCount int
		err = tx.QueryRow(ctx, `
			SELECT
				(SELECT COUNT(*) FROM auth_attempts WHERE user_id = $1 AND created_at > $3),
				(SELECT COUNT(*) FROM auth_attempts WHERE ip_address = $2 AND created_at > $3)
		`, userID, ip, since).Scan(&userCount, &ipCount)
		if err != nil {
			return database.MapPostgresError(err)
		}

		if userCount >= limit || ipCount >= limit {
			allowed = false
			return nil
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO auth_attempts (user_id, ip_address) VALUES ($1, $2)`,
			userID, ip,
		)
		if err != nil {
			return database.MapPostgresError(err)
		}

		allowed = true
		return nil
	})
	if err != nil {
		return false, err
	}

	return allowed, nil
}

// DeleteOlderThan removes attempts before the cutoff. Attempts outside the
// rolling window never count, so this is purely housekeeping.
func (r *AuthAttemptRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM auth_attempts WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old auth attempts: %w", err)
	}

	return tag.RowsAffected(), nil
}
