package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	pkgauth "github.com/colefleming/vouch/pkg/auth"

	"github.com/colefleming/vouch/internal/models"
	"github.com/google/uuid"
)

// InviteRepository defines the interface for invite persistence
type InviteRepository interface {
	Create(ctx context.Context, invite *models.Invite) (*models.Invite, error)
	ListClaimable(ctx context.Context) ([]*models.Invite, error)
	Claim(ctx context.Context, inviteID, userID uuid.UUID) (bool, error)
}

// UserCreator inserts new users into the identity store, and removes one
// again when the registration it belonged to falls through.
type UserCreator interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// InviteService handles invite-only registration: admins mint single-use
// codes and new members redeem them for an account plus their first full
// session.
type InviteService struct {
	invites  InviteRepository
	users    UserCreator
	sessions *SessionService
	audit    *AuditService
	policy   PolicyProvider
	logger   *slog.Logger
}

// NewInviteService creates a new InviteService
func NewInviteService(invites InviteRepository, users UserCreator, sessions *SessionService, audit *AuditService, policy PolicyProvider, logger *slog.Logger) *InviteService {
	return &InviteService{
		invites:  invites,
		users:    users,
		sessions: sessions,
		audit:    audit,
		policy:   policy,
		logger:   logger,
	}
}

// CreateInvite mints an invite on behalf of an admin. The plaintext code is
// returned exactly once; only its hash is persisted.
func (s *InviteService) CreateInvite(ctx context.Context, adminID uuid.UUID) (string, *models.Invite, error) {
	code, err := pkgauth.GenerateInviteCode()
	if err != nil {
		s.logger.Error("failed to generate invite code", slog.Any("error", err))
		return "", nil, models.ErrInternalServer
	}

	hash, err := pkgauth.HashInviteCode(code)
	if err != nil {
		s.logger.Error("failed to hash invite code", slog.Any("error", err))
		return "", nil, models.ErrInternalServer
	}

	invite := &models.Invite{
		CodeHash:  hash,
		CreatedBy: adminID,
		ExpiresAt: time.Now().Add(s.policy.Policy().InviteTTL),
	}

	created, err := s.invites.Create(ctx, invite)
	if err != nil {
		s.logger.Error("failed to create invite", slog.Any("error", err))
		return "", nil, models.ErrInternalServer
	}

	s.logger.Info("invite created",
		slog.Any("invite_id", created.ID),
		slog.Any("created_by", adminID),
	)

	return code, created, nil
}

// RegistrationResult is the outcome of a successful invite claim.
type RegistrationResult struct {
	User    *models.User
	Token   string
	Session *models.Session
}

// ClaimInvite redeems an invite code for a new account. The claiming device
// gets a full session immediately; it is the first device the new member
// owns, so there is nothing to approve it from.
func (s *InviteService) ClaimInvite(ctx context.Context, code, username string, email *string, userAgent, ip string) (*RegistrationResult, error) {
	invite, err := s.matchInvite(ctx, code)
	if err != nil {
		return nil, err
	}

	user, err := s.users.Create(ctx, &models.User{
		Username:  username,
		Email:     email,
		Roles:     []string{},
		InvitedBy: &invite.CreatedBy,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	claimed, err := s.invites.Claim(ctx, invite.ID, user.ID)
	if err != nil {
		s.logger.Error("failed to claim invite", slog.Any("invite_id", invite.ID), slog.Any("error", err))
		s.rollbackUser(ctx, user.ID)
		return nil, models.ErrInternalServer
	}
	if !claimed {
		// Lost a race with another claimant between match and claim
		s.logger.Warn("invite claimed concurrently", slog.Any("invite_id", invite.ID))
		s.rollbackUser(ctx, user.ID)
		return nil, models.ErrInviteInvalid
	}

	token, session, err := s.sessions.Create(ctx, user.ID, userAgent, ip, models.AuthLevelFull, nil)
	if err != nil {
		return nil, err
	}

	s.audit.RecordAudit(ctx, nil, models.AuditActionUserRegistered, &user.ID, models.ActorSystem,
		"account created via invite")

	s.logger.Info("invite claimed",
		slog.Any("invite_id", invite.ID),
		slog.Any("user_id", user.ID),
	)

	return &RegistrationResult{User: user, Token: token, Session: session}, nil
}

// rollbackUser removes an account created for a claim that did not go
// through. Without this the orphan user could later log in as an existing
// member, sidestepping invite-only registration.
func (s *InviteService) rollbackUser(ctx context.Context, userID uuid.UUID) {
	if err := s.users.Delete(ctx, userID); err != nil {
		s.logger.Error("failed to remove user after failed claim",
			slog.Any("user_id", userID),
			slog.Any("error", err),
		)
	}
}

// matchInvite finds the claimable invite whose hash matches the code.
func (s *InviteService) matchInvite(ctx context.Context, code string) (*models.Invite, error) {
	candidates, err := s.invites.ListClaimable(ctx)
	if err != nil {
		s.logger.Error("failed to list claimable invites", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	now := time.Now()
	for _, inv := range candidates {
		if !inv.Claimable(now) {
			continue
		}
		if pkgauth.CompareInviteCode(inv.CodeHash, code) == nil {
			return inv, nil
		}
	}

	return nil, models.ErrInviteInvalid
}
