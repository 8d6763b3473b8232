package services_test

import (
	"log/slog"
	"os"
	"time"

	"github.com/colefleming/vouch/internal/auth"
	"github.com/colefleming/vouch/internal/config"
	"github.com/colefleming/vouch/internal/models"
	"github.com/colefleming/vouch/internal/services"
	"github.com/google/uuid"
)

const testJWTSecret = "test-secret-32-characters-long-for-testing"

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testPolicy() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:        testJWTSecret,
		ApprovalRequired: true,
		TrustFirstDevice: false,
		AttemptsPerHour:  3,
		PeerThreshold:    2,
		VerificationMode: config.VerificationModeStandard,
		RequestTTL:       7 * 24 * time.Hour,
		SessionTTL:       30 * 24 * time.Hour,
		InviteTTL:        14 * 24 * time.Hour,
	}
}

// fixture wires real services over mock repositories, mirroring the
// dependency graph in cmd/api.
type fixture struct {
	users    *services.MockIdentityStore
	requests *services.MockAuthRequestRepository
	sessions *services.MockSessionRepository
	attempts *services.MockAuthAttemptRepository
	audit    *services.MockAuditLogRepository
	security *services.MockSecurityEventRepository
	invites  *services.MockInviteRepository
	notifier *services.MockNotifier

	auditService    *services.AuditService
	sessionService  *services.SessionService
	rateLimit       *services.RateLimitService
	loginService    *services.LoginService
	approvalService *services.ApprovalService
	inviteService   *services.InviteService
}

func newFixture(pol config.AuthConfig) *fixture {
	f := &fixture{
		users:    &services.MockIdentityStore{},
		requests: &services.MockAuthRequestRepository{},
		sessions: &services.MockSessionRepository{},
		attempts: &services.MockAuthAttemptRepository{},
		audit:    &services.MockAuditLogRepository{},
		security: &services.MockSecurityEventRepository{},
		invites:  &services.MockInviteRepository{},
		notifier: &services.MockNotifier{},
	}

	logger := testLogger()
	tm := auth.NewTokenManager(pol.JWTSecret, pol.SessionTTL)
	policy := services.NewStaticPolicy(pol)

	f.auditService = services.NewAuditService(f.audit, f.security, logger)
	f.sessionService = services.NewSessionService(f.sessions, f.users, tm, f.auditService, logger, pol.SessionTTL)
	f.rateLimit = services.NewRateLimitService(f.attempts, f.auditService, policy, logger)
	f.loginService = services.NewLoginService(f.users, f.requests, f.sessionService, f.rateLimit, f.auditService, f.notifier, policy, logger)
	f.approvalService = services.NewApprovalService(f.requests, f.users, f.sessionService, f.auditService, policy, logger)
	f.inviteService = services.NewInviteService(f.invites, f.users, f.sessionService, f.auditService, policy, logger)

	return f
}

func testUser(username string) *models.User {
	return &models.User{
		ID:        uuid.New(),
		Username:  username,
		Roles:     []string{},
		CreatedAt: time.Now(),
	}
}

func pendingRequest(userID uuid.UUID) *models.AuthRequest {
	code := "123456"
	return &models.AuthRequest{
		ID:                uuid.New(),
		UserID:            userID,
		DeviceFingerprint: services.DeviceFingerprint("test-agent/1.0"),
		UserAgent:         "test-agent/1.0",
		IPAddress:         "192.0.2.10",
		Status:            models.RequestStatusPending,
		VerificationCode:  &code,
		CreatedAt:         time.Now(),
		ExpiresAt:         time.Now().Add(7 * 24 * time.Hour),
	}
}

// auditActions returns the actions recorded so far, in order.
func (f *fixture) auditActions() []string {
	actions := make([]string, 0, len(f.audit.Entries))
	for _, e := range f.audit.Entries {
		actions = append(actions, e.Action)
	}
	return actions
}
