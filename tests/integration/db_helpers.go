package integration

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/colefleming/vouch/internal/database"
	"github.com/colefleming/vouch/internal/models"
	"github.com/colefleming/vouch/internal/repositories"
	"github.com/google/uuid"
)

// TestDB manages PostgreSQL testcontainer and database operations
type TestDB struct {
	Container  testcontainers.Container
	ConnString string
	Pool       *pgxpool.Pool
	DB         *database.DB
}

// SetupTestDatabase creates a PostgreSQL testcontainer, runs migrations, returns TestDB
func SetupTestDatabase(ctx context.Context) (*TestDB, error) {
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("vouch"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(ctx, pool); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	dbWrapper := &database.DB{
		Pool: pool,
	}

	return &TestDB{
		Container:  container,
		ConnString: connStr,
		Pool:       pool,
		DB:         dbWrapper,
	}, nil
}

// runMigrations executes all goose migrations
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir, err := filepath.Abs("../../migrations")
	if err != nil {
		return fmt.Errorf("failed to get migrations path: %w", err)
	}

	// Suppress goose logs
	goose.SetLogger(log.New(nil, "", 0))

	// Goose needs a stdlib DB connection; use the stdlib adapter from pgx
	sqlDB := stdlib.OpenDB(*pool.Config().ConnConfig)
	defer sqlDB.Close()

	if err := goose.UpContext(ctx, sqlDB, migrationsDir); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}

// Teardown stops the container and closes the connection pool
func (db *TestDB) Teardown(ctx context.Context) error {
	if db.Pool != nil {
		db.Pool.Close()
	}
	if db.Container != nil {
		return db.Container.Terminate(ctx)
	}
	return nil
}

// CleanupTables truncates all tables for test isolation
func (db *TestDB) CleanupTables(ctx context.Context) error {
	tables := []string{
		"invites",
		"security_events",
		"audit_log",
		"auth_attempts",
		"auth_approvals",
		"sessions",
		"auth_requests",
		"users",
	}

	for _, table := range tables {
		if _, err := db.Pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return nil
}

// InitializeRepositories creates all repository instances from database wrapper
func InitializeRepositories(db *database.DB) (
	*repositories.UserRepository,
	*repositories.SessionRepository,
	*repositories.AuthRequestRepository,
	*repositories.AuthAttemptRepository,
	*repositories.AuditLogRepository,
	*repositories.SecurityEventRepository,
	*repositories.InviteRepository,
) {
	return repositories.NewUserRepository(db),
		repositories.NewSessionRepository(db),
		repositories.NewAuthRequestRepository(db),
		repositories.NewAuthAttemptRepository(db),
		repositories.NewAuditLogRepository(db),
		repositories.NewSecurityEventRepository(db),
		repositories.NewInviteRepository(db)
}

// SeedUser inserts a test user
func SeedUser(ctx context.Context, pool *pgxpool.Pool, username string, roles []string) (*models.User, error) {
	if roles == nil {
		roles = []string{}
	}

	query := `
		INSERT INTO users (username, roles)
		VALUES ($1, $2)
		RETURNING id, username, email, roles, invited_by, created_at
	`

	var user models.User
	err := pool.QueryRow(ctx, query, username, roles).Scan(
		&user.ID, &user.Username, &user.Email, &user.Roles,
		&user.InvitedBy, &user.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	return &user, nil
}

// SeedFullSession inserts a live full session for a user, marking one of
// their devices trusted
func SeedFullSession(ctx context.Context, pool *pgxpool.Pool, userID uuid.UUID) (*models.Session, error) {
	query := `
		INSERT INTO sessions (user_id, auth_level, user_agent, ip_address, expires_at)
		VALUES ($1, 'full', 'seed-agent', '192.0.2.1', NOW() + INTERVAL '30 days')
		RETURNING id, user_id, auth_level, request_id, user_agent, ip_address, created_at, expires_at
	`

	var s models.Session
	err := pool.QueryRow(ctx, query, userID).Scan(
		&s.ID, &s.UserID, &s.Level, &s.RequestID,
		&s.UserAgent, &s.IPAddress, &s.CreatedAt, &s.ExpiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert session: %w", err)
	}

	return &s, nil
}

// SeedExpiredRequest inserts a pending request already past its expiry
func SeedExpiredRequest(ctx context.Context, pool *pgxpool.Pool, userID uuid.UUID, fingerprint string) (uuid.UUID, error) {
	query := `
		INSERT INTO auth_requests (user_id, device_fingerprint, user_agent, ip_address, verification_code, created_at, expires_at)
		VALUES ($1, $2, 'seed-agent', '192.0.2.1', '000000', NOW() - INTERVAL '8 days', NOW() - INTERVAL '1 day')
		RETURNING id
	`

	var id uuid.UUID
	if err := pool.QueryRow(ctx, query, userID, fingerprint).Scan(&id); err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert expired request: %w", err)
	}

	return id, nil
}
