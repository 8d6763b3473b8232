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

type InviteRepository struct {
	pool *pgxpool.Pool
}

func NewInviteRepository(db *database.DB) *InviteRepository {
	return &InviteRepository{pool: db.Pool}
}

func scanInviteRow(row rowScanner) (*models.Invite, error) {
	var inv models.Invite

	err := row.Scan(
		&inv.ID, &inv.CodeHash, &inv.CreatedBy, &inv.ClaimedBy,
		&inv.CreatedAt, &inv.ExpiresAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &inv, nil
}

func (r *InviteRepository) Create(ctx context.Context, invite *models.Invite) (*models.Invite, error) {
	query := `
		INSERT INTO invites (code_hash, created_by, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, code_hash, created_by, claimed_by, created_at, expires_at
	`

	created, err := scanInviteRow(r.pool.QueryRow(ctx, query, invite.CodeHash, invite.CreatedBy, invite.ExpiresAt))
	if err != nil {
		return nil, fmt.Errorf("failed to create invite: %w", err)
	}

	return created, nil
}

// ListClaimable returns unclaimed, unexpired invites. The claimant's code
// is matched against each hash; invite volume is low enough that a scan is
// fine.
func (r *InviteRepository) ListClaimable(ctx context.Context) ([]*models.Invite, error) {
	query := `
		SELECT id, code_hash, created_by, claimed_by, created_at, expires_at
		FROM invites
		WHERE claimed_by IS NULL AND expires_at > $1
		ORDER BY created_at
	`

	rows, err := r.pool.Query(ctx, query, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to query invites: %w", err)
	}
	defer rows.Close()

	invites := make([]*models.Invite, 0)
	for rows.Next() {
		inv, err := scanInviteRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invite: %w", err)
		}
		invites = append(invites, inv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invite rows: %w", err)
	}

	return invites, nil
}

// Claim marks an invite as claimed by a user. Returns false when the
// invite was already claimed, so two concurrent claims cannot both win.
func (r *InviteRepository) Claim(ctx context.Context, inviteID, userID uuid.UUID) (bool, error) {
	query := `
		UPDATE invites
		SET claimed_by = $1
		WHERE id = $2 AND claimed_by IS NULL AND expires_at > $3
	`

	tag, err := r.pool.Exec(ctx, query, userID, inviteID, time.Now())
	if err != nil {
		return false, database.MapPostgresError(err)
	}

	return tag.RowsAffected() > 0, nil
}
