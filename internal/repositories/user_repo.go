package repositories

import (
	"context"
	"fmt"

	"github.com/colefleming/vouch/internal/database"
	"github.com/colefleming/vouch/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// rowScanner abstracts pgx.Row and pgx.Rows for shared scan helpers
type rowScanner interface {
	Scan(dest ...any) error
}

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{pool: db.Pool}
}

func scanUserRow(row rowScanner) (*models.User, error) {
	var user models.User

	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.Roles,
		&user.InvitedBy, &user.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &user, nil
}

// Create inserts a new user. Usernames are unique; a duplicate surfaces as
// models.ErrConflict.
func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (username, email, roles, invited_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, username, email, roles, invited_by, created_at
	`

	created, err := scanUserRow(r.pool.QueryRow(
		ctx, query,
		user.Username, user.Email, user.Roles, user.InvitedBy,
	))
	if err != nil {
		return nil, err
	}

	return created, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `
		SELECT id, username, email, roles, invited_by, created_at
		FROM users
		WHERE id = $1
	`

	return scanUserRow(r.pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `
		SELECT id, username, email, roles, invited_by, created_at
		FROM users
		WHERE username = $1
	`

	return scanUserRow(r.pool.QueryRow(ctx, query, username))
}

// HasRole reports whether the user holds the given role.
func (r *UserRepository) HasRole(ctx context.Context, userID uuid.UUID, role string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM users WHERE id = $1 AND $2 = ANY(roles)
		)
	`

	var has bool
	if err := r.pool.QueryRow(ctx, query, userID, role).Scan(&has); err != nil {
		return false, database.MapPostgresError(err)
	}

	return has, nil
}

// Delete removes a user row. Used to roll back an account created for an
// invite claim that another claimant won.
func (r *UserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM users WHERE id = $1`

	if _, err := r.pool.Exec(ctx, query, id); err != nil {
		return database.MapPostgresError(err)
	}

	return nil
}

// ListNotifiable returns users with an email on file, excluding the given
// user. Used to tell potential approvers about a pending device request.
func (r *UserRepository) ListNotifiable(ctx context.Context, exclude uuid.UUID) ([]*models.User, error) {
	query := `
		SELECT id, username, email, roles, invited_by, created_at
		FROM users
		WHERE email IS NOT NULL AND id != $1
		ORDER BY username
	`

	rows, err := r.pool.Query(ctx, query, exclude)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifiable users: %w", err)
	}
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		user, err := scanUserRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}

	return users, nil
}
