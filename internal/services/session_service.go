package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/colefleming/vouch/internal/auth"
	"github.com/colefleming/vouch/internal/models"
	"github.com/google/uuid"
)

// SessionRepository defines the interface for session persistence
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) (*models.Session, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	Upgrade(ctx context.Context, id uuid.UUID) (bool, error)
	UpgradeByRequestID(ctx context.Context, requestID uuid.UUID) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByRequestID(ctx context.Context, requestID uuid.UUID) error
	CountFullByUser(ctx context.Context, userID uuid.UUID) (int, error)
	CountByUser(ctx context.Context, userID uuid.UUID) (int, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

// UserGetter fetches users by id
type UserGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// SessionService issues, resolves, and upgrades session tokens. A token is
// a signed envelope around a session id; the trust level lives on the row,
// which is what lets an approval upgrade a device without reissuing the
// token it already holds.
type SessionService struct {
	sessions SessionRepository
	users    UserGetter
	tm       *auth.TokenManager
	audit    *AuditService
	logger   *slog.Logger
	ttl      time.Duration
}

// NewSessionService creates a new SessionService
func NewSessionService(sessions SessionRepository, users UserGetter, tm *auth.TokenManager, audit *AuditService, logger *slog.Logger, ttl time.Duration) *SessionService {
	return &SessionService{
		sessions: sessions,
		users:    users,
		tm:       tm,
		audit:    audit,
		logger:   logger,
		ttl:      ttl,
	}
}

// Create persists a new session and returns its bearer token.
func (s *SessionService) Create(ctx context.Context, userID uuid.UUID, userAgent, ip string, level models.AuthLevel, requestID *uuid.UUID) (string, *models.Session, error) {
	session := &models.Session{
		UserID:    userID,
		Level:     level,
		RequestID: requestID,
		UserAgent: userAgent,
		IPAddress: ip,
		ExpiresAt: time.Now().Add(s.ttl),
	}

	created, err := s.sessions.Create(ctx, session)
	if err != nil {
		s.logger.Error("failed to create session", slog.Any("user_id", userID), slog.Any("error", err))
		return "", nil, models.ErrInternalServer
	}

	token, err := s.tm.GenerateSessionToken(created.ID, userID)
	if err != nil {
		s.logger.Error("failed to sign session token", slog.Any("session_id", created.ID), slog.Any("error", err))
		return "", nil, models.ErrInternalServer
	}

	s.logger.Info("session created",
		slog.Any("session_id", created.ID),
		slog.Any("user_id", userID),
		slog.String("auth_level", string(level)),
	)

	return token, created, nil
}

// Resolve validates a bearer token and returns its user and session.
// Absent, malformed, and expired tokens all fail with ErrInvalidSession;
// expiry is enforced here, lazily, regardless of any background sweep.
func (s *SessionService) Resolve(ctx context.Context, token, ip, userAgent string) (*models.User, *models.Session, error) {
	sessionID, err := s.tm.ValidateSessionToken(token)
	if err != nil {
		return nil, nil, models.ErrInvalidSession
	}

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil, models.ErrInvalidSession
		}
		s.logger.Error("failed to load session", slog.Any("session_id", sessionID), slog.Any("error", err))
		return nil, nil, models.ErrInternalServer
	}

	if session.Expired(time.Now()) {
		if err := s.sessions.Delete(ctx, session.ID); err != nil {
			s.logger.Warn("failed to delete expired session", slog.Any("session_id", session.ID), slog.Any("error", err))
		}
		return nil, nil, models.ErrInvalidSession
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil, models.ErrInvalidSession
		}
		s.logger.Error("failed to load session user", slog.Any("user_id", session.UserID), slog.Any("error", err))
		return nil, nil, models.ErrInternalServer
	}

	if ip != "" && ip != session.IPAddress {
		s.audit.RecordSecurityEvent(ctx, models.SecurityEventIPChange, &session.UserID, ip, userAgent,
			fmt.Sprintf("session %s created from %s", session.ID, session.IPAddress))
	}
	if userAgent != "" && userAgent != session.UserAgent {
		s.audit.RecordSecurityEvent(ctx, models.SecurityEventDeviceChange, &session.UserID, ip, userAgent,
			fmt.Sprintf("session %s created by %q", session.ID, session.UserAgent))
	}

	return user, session, nil
}

// RequireFull resolves a token and additionally rejects half sessions.
func (s *SessionService) RequireFull(ctx context.Context, token, ip, userAgent string) (*models.User, *models.Session, error) {
	user, session, err := s.Resolve(ctx, token, ip, userAgent)
	if err != nil {
		return nil, nil, err
	}

	if session.Level != models.AuthLevelFull {
		return nil, nil, models.ErrInsufficientAuthLevel
	}

	return user, session, nil
}

// Upgrade flips a session half -> full in place. Upgrading an already-full
// session is a logged no-op so the approval engine's side effects stay
// idempotent under races.
func (s *SessionService) Upgrade(ctx context.Context, sessionID uuid.UUID) error {
	upgraded, err := s.sessions.Upgrade(ctx, sessionID)
	if err != nil {
		s.logger.Error("failed to upgrade session", slog.Any("session_id", sessionID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if !upgraded {
		s.logger.Info("session upgrade was a no-op", slog.Any("session_id", sessionID))
		return nil
	}

	s.logger.Info("session upgraded to full", slog.Any("session_id", sessionID))
	return nil
}

// UpgradeForRequest upgrades the half session tied to an approved request.
func (s *SessionService) UpgradeForRequest(ctx context.Context, requestID uuid.UUID) error {
	upgraded, err := s.sessions.UpgradeByRequestID(ctx, requestID)
	if err != nil {
		s.logger.Error("failed to upgrade session for request", slog.Any("request_id", requestID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if !upgraded {
		s.logger.Info("session upgrade for request was a no-op", slog.Any("request_id", requestID))
	}

	return nil
}

// Invalidate destroys a session (logout).
func (s *SessionService) Invalidate(ctx context.Context, sessionID uuid.UUID) error {
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		s.logger.Error("failed to delete session", slog.Any("session_id", sessionID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("session invalidated", slog.Any("session_id", sessionID))
	return nil
}

// InvalidateForRequest destroys the half session tied to a rejected or
// expired request, so the next resolve treats it as absent.
func (s *SessionService) InvalidateForRequest(ctx context.Context, requestID uuid.UUID) error {
	if err := s.sessions.DeleteByRequestID(ctx, requestID); err != nil {
		s.logger.Error("failed to delete session for request", slog.Any("request_id", requestID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	return nil
}

// HasTrustedDevice reports whether the user holds at least one live full
// session, the precondition for the self-approval rule.
func (s *SessionService) HasTrustedDevice(ctx context.Context, userID uuid.UUID) (bool, error) {
	count, err := s.sessions.CountFullByUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// HasAnySession reports whether the user has any live session at all.
// A user with none is on their first-ever login.
func (s *SessionService) HasAnySession(ctx context.Context, userID uuid.UUID) (bool, error) {
	count, err := s.sessions.CountByUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
