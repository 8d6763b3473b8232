package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/colefleming/vouch/internal/models"
	"github.com/colefleming/vouch/internal/repositories"
	"github.com/google/uuid"
)

// IdentityStore defines the interface the auth core needs from the user
// subsystem.
type IdentityStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	HasRole(ctx context.Context, userID uuid.UUID, role string) (bool, error)
	ListNotifiable(ctx context.Context, exclude uuid.UUID) ([]*models.User, error)
}

// AuthRequestRepository defines the interface for request persistence
type AuthRequestRepository interface {
	Create(ctx context.Context, req *models.AuthRequest) (*models.AuthRequest, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.AuthRequest, error)
	GetPendingByUserDevice(ctx context.Context, userID uuid.UUID, fingerprint string) (*models.AuthRequest, error)
	ListPending(ctx context.Context) ([]*models.AuthRequest, error)
	Resolve(ctx context.Context, id uuid.UUID, status models.RequestStatus, resolvedBy *uuid.UUID) (bool, error)
	CastVote(ctx context.Context, requestID, approverID uuid.UUID, threshold int) (*repositories.VoteResult, error)
	CountApprovals(ctx context.Context, requestID uuid.UUID) (int, error)
	ListApprovals(ctx context.Context, requestID uuid.UUID) ([]*models.AuthApproval, error)
	ExpireStale(ctx context.Context) ([]*models.AuthRequest, error)
}

// Notifier tells potential approvers that a device request is waiting.
// Delivery is best-effort; implementations live in internal/notify.
type Notifier interface {
	NotifyPendingRequest(ctx context.Context, req *models.AuthRequest, requester *models.User, recipients []*models.User) error
}

// LoginResult is the outcome of a start-login call.
type LoginResult struct {
	Token   string
	Session *models.Session
	Request *models.AuthRequest

	// Pending is true when the login produced (or found) a request
	// awaiting approval and the session is half-authenticated.
	Pending bool

	// Duplicate is true when an earlier pending request for the same
	// (user, device) pair was returned instead of a new one.
	Duplicate bool

	// VerificationCode is shown to the requesting device when pending.
	VerificationCode string
}

// LoginService owns authentication-request creation: the gate between a
// username arriving from an unrecognized device and a pending request in
// the approval engine.
type LoginService struct {
	users    IdentityStore
	requests AuthRequestRepository
	sessions *SessionService
	limiter  *RateLimitService
	audit    *AuditService
	notifier Notifier
	policy   PolicyProvider
	logger   *slog.Logger
}

// NewLoginService creates a new LoginService
func NewLoginService(users IdentityStore, requests AuthRequestRepository, sessions *SessionService, limiter *RateLimitService, audit *AuditService, notifier Notifier, policy PolicyProvider, logger *slog.Logger) *LoginService {
	return &LoginService{
		users:    users,
		requests: requests,
		sessions: sessions,
		limiter:  limiter,
		audit:    audit,
		notifier: notifier,
		policy:   policy,
		logger:   logger,
	}
}

// DeviceFingerprint derives a stable identifier for a device from its
// user-agent string.
func DeviceFingerprint(userAgent string) string {
	hash := sha256.Sum256([]byte(userAgent))
	return fmt.Sprintf("%x", hash)[:32]
}

// generateVerificationCode returns a random 6-digit code.
func generateVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("failed to generate verification code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// StartLogin turns a login attempt into either a full session (approval
// disabled or first-ever device) or a pending authentication request with
// a half session. Unknown usernames fail with ErrUnknownUser; this
// community favors a clear not-found message over anti-enumeration, since
// registration is invite-only and usernames are not secret.
func (s *LoginService) StartLogin(ctx context.Context, username, userAgent, ip string) (*LoginResult, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("login failed: unknown username")
			return nil, models.ErrUnknownUser
		}
		s.logger.Error("failed to look up user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	pol := s.policy.Policy()

	if !pol.ApprovalRequired {
		return s.issueFullSession(ctx, user, userAgent, ip, "device approval disabled by policy")
	}

	if pol.TrustFirstDevice {
		hasAny, err := s.sessions.HasAnySession(ctx, user.ID)
		if err != nil {
			s.logger.Error("failed to count sessions", slog.Any("user_id", user.ID), slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		if !hasAny {
			return s.issueFullSession(ctx, user, userAgent, ip, "first device for user")
		}
	}

	if err := s.limiter.CheckAndRecord(ctx, user.ID, ip, userAgent); err != nil {
		return nil, err
	}

	fingerprint := DeviceFingerprint(userAgent)

	existing, err := s.requests.GetPendingByUserDevice(ctx, user.ID, fingerprint)
	if err == nil {
		if existing.Expired(time.Now()) {
			s.expireRequest(ctx, existing)
		} else {
			// Idempotent start: the same device asking again gets the
			// request it already has, not a second one.
			s.logger.Info("duplicate login attempt for pending request",
				slog.Any("request_id", existing.ID),
				slog.Any("user_id", user.ID),
			)
			return &LoginResult{
				Request:          existing,
				Pending:          true,
				Duplicate:        true,
				VerificationCode: codeOrEmpty(existing.VerificationCode),
			}, nil
		}
	} else if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check for pending request", slog.Any("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	code, err := generateVerificationCode()
	if err != nil {
		s.logger.Error("failed to generate verification code", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	req := &models.AuthRequest{
		UserID:            user.ID,
		DeviceFingerprint: fingerprint,
		UserAgent:         userAgent,
		IPAddress:         ip,
		VerificationCode:  &code,
		ExpiresAt:         time.Now().Add(pol.RequestTTL),
	}

	created, err := s.requests.Create(ctx, req)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			// Lost a race with another attempt from the same device
			if existing, getErr := s.requests.GetPendingByUserDevice(ctx, user.ID, fingerprint); getErr == nil {
				return &LoginResult{
					Request:          existing,
					Pending:          true,
					Duplicate:        true,
					VerificationCode: codeOrEmpty(existing.VerificationCode),
				}, nil
			}
		}
		s.logger.Error("failed to create auth request", slog.Any("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	token, session, err := s.sessions.Create(ctx, user.ID, userAgent, ip, models.AuthLevelHalf, &created.ID)
	if err != nil {
		return nil, err
	}

	s.audit.RecordAudit(ctx, &created.ID, models.AuditActionRequestCreated, nil, models.ActorSystem,
		fmt.Sprintf("login from unrecognized device for %s", user.Username))

	s.notifyApprovers(ctx, created, user)

	return &LoginResult{
		Token:            token,
		Session:          session,
		Request:          created,
		Pending:          true,
		VerificationCode: code,
	}, nil
}

func (s *LoginService) issueFullSession(ctx context.Context, user *models.User, userAgent, ip, reason string) (*LoginResult, error) {
	token, session, err := s.sessions.Create(ctx, user.ID, userAgent, ip, models.AuthLevelFull, nil)
	if err != nil {
		return nil, err
	}

	s.logger.Info("full session issued without approval",
		slog.Any("user_id", user.ID),
		slog.String("reason", reason),
	)

	return &LoginResult{Token: token, Session: session}, nil
}

// notifyApprovers is best-effort; a delivery failure never fails the login.
func (s *LoginService) notifyApprovers(ctx context.Context, req *models.AuthRequest, requester *models.User) {
	if s.notifier == nil {
		return
	}

	recipients, err := s.users.ListNotifiable(ctx, requester.ID)
	if err != nil {
		s.logger.Warn("failed to list approvers for notification", slog.Any("error", err))
		return
	}
	if len(recipients) == 0 {
		return
	}

	if err := s.notifier.NotifyPendingRequest(ctx, req, requester, recipients); err != nil {
		s.logger.Warn("failed to notify approvers", slog.Any("request_id", req.ID), slog.Any("error", err))
	}
}

// ExpireStale flips pending requests past their expiry and invalidates
// their half sessions. Idempotent and safe to run concurrently with lazy
// expiry; the status precondition in the repository guards the transition.
func (s *LoginService) ExpireStale(ctx context.Context) (int, error) {
	expired, err := s.requests.ExpireStale(ctx)
	if err != nil {
		return 0, err
	}

	for _, req := range expired {
		_ = s.sessions.InvalidateForRequest(ctx, req.ID)
		s.audit.RecordAudit(ctx, &req.ID, models.AuditActionRequestExpired, nil, models.ActorSystem,
			"request passed its expiry window")
	}

	return len(expired), nil
}

// expireRequest lazily expires a single request found stale on read.
func (s *LoginService) expireRequest(ctx context.Context, req *models.AuthRequest) {
	resolved, err := s.requests.Resolve(ctx, req.ID, models.RequestStatusExpired, nil)
	if err != nil {
		s.logger.Error("failed to expire stale request", slog.Any("request_id", req.ID), slog.Any("error", err))
		return
	}
	if !resolved {
		// Another reader or the sweeper got there first
		return
	}

	_ = s.sessions.InvalidateForRequest(ctx, req.ID)
	s.audit.RecordAudit(ctx, &req.ID, models.AuditActionRequestExpired, nil, models.ActorSystem,
		"request passed its expiry window")
}

func codeOrEmpty(code *string) string {
	if code == nil {
		return ""
	}
	return *code
}
