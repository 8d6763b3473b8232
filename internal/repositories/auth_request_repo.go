package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/colefleming/vouch/internal/database"
	"github.com/colefleming/vouch/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AuthRequestRepository handles authentication requests and their votes.
// It holds the DB wrapper rather than the bare pool because vote casting
// and transitions run inside transactions.
type AuthRequestRepository struct {
	db *database.DB
}

func NewAuthRequestRepository(db *database.DB) *AuthRequestRepository {
	return &AuthRequestRepository{db: db}
}

const authRequestColumns = `id, user_id, device_fingerprint, user_agent, ip_address,
	status, verification_code, resolved_by, resolved_at, created_at, expires_at`

func scanAuthRequestRow(row rowScanner) (*models.AuthRequest, error) {
	var req models.AuthRequest

	err := row.Scan(
		&req.ID, &req.UserID, &req.DeviceFingerprint, &req.UserAgent, &req.IPAddress,
		&req.Status, &req.VerificationCode, &req.ResolvedBy, &req.ResolvedAt,
		&req.CreatedAt, &req.ExpiresAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &req, nil
}

func scanAuthRequestRows(rows pgx.Rows) ([]*models.AuthRequest, error) {
	defer rows.Close()

	requests := make([]*models.AuthRequest, 0)

	for rows.Next() {
		req, err := scanAuthRequestRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan auth request: %w", err)
		}
		requests = append(requests, req)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating auth request rows: %w", err)
	}

	return requests, nil
}

func (r *AuthRequestRepository) Create(ctx context.Context, req *models.AuthRequest) (*models.AuthRequest, error) {
	query := `
		INSERT INTO auth_requests (user_id, device_fingerprint, user_agent, ip_address, status, verification_code, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + authRequestColumns

	created, err := scanAuthRequestRow(r.db.Pool.QueryRow(
		ctx, query,
		req.UserID, req.DeviceFingerprint, req.UserAgent, req.IPAddress,
		models.RequestStatusPending, req.VerificationCode, req.ExpiresAt,
	))
	if err != nil {
		return nil, err
	}

	return created, nil
}

func (r *AuthRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AuthRequest, error) {
	query := `SELECT ` + authRequestColumns + ` FROM auth_requests WHERE id = $1`

	return scanAuthRequestRow(r.db.Pool.QueryRow(ctx, query, id))
}

// GetPendingByUserDevice returns the pending request for a (user, device)
// pair, or models.ErrNotFound. The partial unique index guarantees at most
// one such row.
func (r *AuthRequestRepository) GetPendingByUserDevice(ctx context.Context, userID uuid.UUID, fingerprint string) (*models.AuthRequest, error) {
	query := `
		SELECT ` + authRequestColumns + `
		FROM auth_requests
		WHERE user_id = $1 AND device_fingerprint = $2 AND status = $3
	`

	return scanAuthRequestRow(r.db.Pool.QueryRow(ctx, query, userID, fingerprint, models.RequestStatusPending))
}

// ListPending returns pending, unexpired requests, oldest first.
func (r *AuthRequestRepository) ListPending(ctx context.Context) ([]*models.AuthRequest, error) {
	query := `
		SELECT ` + authRequestColumns + `
		FROM auth_requests
		WHERE status = $1 AND expires_at > $2
		ORDER BY created_at
	`

	rows, err := r.db.Pool.Query(ctx, query, models.RequestStatusPending, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to query pending requests: %w", err)
	}

	return scanAuthRequestRows(rows)
}

// Resolve transitions a pending request to the given terminal status.
// Returns false when the request was no longer pending, which callers
// surface as models.ErrRequestAlreadyResolved.
func (r *AuthRequestRepository) Resolve(ctx context.Context, id uuid.UUID, status models.RequestStatus, resolvedBy *uuid.UUID) (bool, error) {
	query := `
		UPDATE auth_requests
		SET status = $1, resolved_by = $2, resolved_at = $3
		WHERE id = $4 AND status = $5
	`

	tag, err := r.db.Pool.Exec(ctx, query, status, resolvedBy, time.Now(), id, models.RequestStatusPending)
	if err != nil {
		return false, database.MapPostgresError(err)
	}

	return tag.RowsAffected() > 0, nil
}

// VoteResult reports what a single vote did.
type VoteResult struct {
	Inserted  bool // a new approval row was written (false on duplicate vote)
	Approvals int  // distinct approver count after this call
	Approved  bool // this vote crossed the threshold and resolved the request
}

// CastVote inserts a peer vote and, when the distinct-approver count
// reaches threshold, transitions the request to approved — all in one
// transaction with the request row locked, so two concurrent votes can
// never both observe "pending, under threshold" and both trigger the
// transition.
//
// A pending request found past its expiry is flipped to expired here
// instead, and the vote fails with models.ErrRequestAlreadyResolved.
func (r *AuthRequestRepository) CastVote(ctx context.Context, requestID, approverID uuid.UUID, threshold int) (*VoteResult, error) {
	var result VoteResult

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		var status models.RequestStatus
		var expiresAt time.Time

		err := tx.QueryRow(ctx,
			`SELECT status, expires_at FROM auth_requests WHERE id = $1 FOR UPDATE`,
			requestID,
		).Scan(&status, &expiresAt)
		if err != nil {
			return database.MapPostgresError(err)
		}

		if status != models.RequestStatusPending {
			return models.ErrRequestAlreadyResolved
		}

		if time.Now().After(expiresAt) {
			_, err = tx.Exec(ctx,
				`UPDATE auth_requests SET status = $1, resolved_at = $2 WHERE id = $3`,
				models.RequestStatusExpired, time.Now(), requestID,
			)
			if err != nil {
				return database.MapPostgresError(err)
			}
			return models.ErrRequestAlreadyResolved
		}

		tag, err := tx.Exec(ctx, `
			INSERT INTO auth_approvals (request_id, approver_id)
			VALUES ($1, $2)
			ON CONFLICT (request_id, approver_id) DO NOTHING
		`, requestID, approverID)
		if err != nil {
			return database.MapPostgresError(err)
		}
		result.Inserted = tag.RowsAffected() > 0

		err = tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM auth_approvals WHERE request_id = $1`,
			requestID,
		).Scan(&result.Approvals)
		if err != nil {
			return database.MapPostgresError(err)
		}

		if result.Approvals >= threshold {
			_, err = tx.Exec(ctx, `
				UPDATE auth_requests
				SET status = $1, resolved_by = $2, resolved_at = $3
				WHERE id = $4
			`, models.RequestStatusApproved, approverID, time.Now(), requestID)
			if err != nil {
				return database.MapPostgresError(err)
			}
			result.Approved = true
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// CountApprovals returns the distinct-approver count for a request.
func (r *AuthRequestRepository) CountApprovals(ctx context.Context, requestID uuid.UUID) (int, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM auth_approvals WHERE request_id = $1`,
		requestID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count approvals: %w", err)
	}

	return count, nil
}

// ListApprovals returns the votes cast on a request, oldest first.
func (r *AuthRequestRepository) ListApprovals(ctx context.Context, requestID uuid.UUID) ([]*models.AuthApproval, error) {
	query := `
		SELECT id, request_id, approver_id, created_at
		FROM auth_approvals
		WHERE request_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.Pool.Query(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to query approvals: %w", err)
	}
	defer rows.Close()

	approvals := make([]*models.AuthApproval, 0)
	for rows.Next() {
		var a models.AuthApproval
		if err := rows.Scan(&a.ID, &a.RequestID, &a.ApproverID, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan approval: %w", err)
		}
		approvals = append(approvals, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating approval rows: %w", err)
	}

	return approvals, nil
}

// ExpireStale flips pending requests past their expiry to expired and
// returns them. The status precondition makes the sweep idempotent and
// safe to run concurrently with lazy expiry.
func (r *AuthRequestRepository) ExpireStale(ctx context.Context) ([]*models.AuthRequest, error) {
	query := `
		UPDATE auth_requests
		SET status = $1, resolved_at = $2
		WHERE status = $3 AND expires_at < $2
		RETURNING ` + authRequestColumns

	rows, err := r.db.Pool.Query(ctx, query, models.RequestStatusExpired, time.Now(), models.RequestStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to expire stale requests: %w", err)
	}

	return scanAuthRequestRows(rows)
}
