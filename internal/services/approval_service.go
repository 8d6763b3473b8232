package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/colefleming/vouch/internal/models"
	"github.com/google/uuid"
)

// ApprovalService is the approval engine: it applies the admin, self, and
// peer rules to votes against pending requests and owns every transition
// out of the pending state.
//
// Transition atomicity lives in the repository (the vote-insert /
// threshold-check / status-update sequence runs under a row lock, and
// direct transitions are guarded by a status precondition), so the side
// effects here — session upgrade or invalidation, audit entries — only
// have to be idempotent, never exclusive.
type ApprovalService struct {
	requests AuthRequestRepository
	users    IdentityStore
	sessions *SessionService
	audit    *AuditService
	policy   PolicyProvider
	logger   *slog.Logger
}

// NewApprovalService creates a new ApprovalService
func NewApprovalService(requests AuthRequestRepository, users IdentityStore, sessions *SessionService, audit *AuditService, policy PolicyProvider, logger *slog.Logger) *ApprovalService {
	return &ApprovalService{
		requests: requests,
		users:    users,
		sessions: sessions,
		audit:    audit,
		policy:   policy,
		logger:   logger,
	}
}

// Approve casts approverID's vote on a request. Admin and self approvals
// resolve the request immediately; a peer vote resolves it when the
// distinct-approver count reaches the configured threshold. A repeated
// vote from the same peer is a no-op success. Calls against a resolved
// request fail with ErrRequestAlreadyResolved.
func (s *ApprovalService) Approve(ctx context.Context, requestID, approverID uuid.UUID, code string) (*models.AuthRequest, error) {
	req, err := s.loadLive(ctx, requestID)
	if err != nil {
		return nil, err
	}

	pol := s.policy.Policy()

	if pol.EnhancedVerification() {
		if !codeMatches(req.VerificationCode, code) {
			s.logger.Warn("approval with wrong verification code",
				slog.Any("request_id", requestID),
				slog.Any("approver_id", approverID),
			)
			return nil, models.ErrInvalidVerificationCode
		}
	}

	isAdmin, err := s.users.HasRole(ctx, approverID, models.RoleAdmin)
	if err != nil {
		s.logger.Error("failed to check admin role", slog.Any("approver_id", approverID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if isAdmin {
		return s.resolveApproved(ctx, req, approverID, models.ActorAdmin)
	}

	if approverID == req.UserID {
		// Self approval: valid only when the user already controls a
		// trusted device.
		trusted, err := s.sessions.HasTrustedDevice(ctx, approverID)
		if err != nil {
			s.logger.Error("failed to check for trusted device", slog.Any("user_id", approverID), slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		if !trusted {
			return nil, models.ErrForbidden
		}
		return s.resolveApproved(ctx, req, approverID, models.ActorSelf)
	}

	return s.castPeerVote(ctx, req, approverID, pol.PeerThreshold)
}

// Reject transitions a pending request to rejected. Admin only; any
// accumulated peer votes are discarded and the half session is
// invalidated immediately.
func (s *ApprovalService) Reject(ctx context.Context, requestID, adminID uuid.UUID) (*models.AuthRequest, error) {
	isAdmin, err := s.users.HasRole(ctx, adminID, models.RoleAdmin)
	if err != nil {
		s.logger.Error("failed to check admin role", slog.Any("admin_id", adminID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if !isAdmin {
		return nil, models.ErrForbidden
	}

	req, err := s.loadLive(ctx, requestID)
	if err != nil {
		return nil, err
	}

	resolved, err := s.requests.Resolve(ctx, req.ID, models.RequestStatusRejected, &adminID)
	if err != nil {
		s.logger.Error("failed to reject request", slog.Any("request_id", req.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if !resolved {
		return nil, models.ErrRequestAlreadyResolved
	}

	details := "request rejected by admin"
	if votes, err := s.requests.ListApprovals(ctx, req.ID); err == nil && len(votes) > 0 {
		details = fmt.Sprintf("request rejected by admin, discarding %d peer vote(s)", len(votes))
	}

	_ = s.sessions.InvalidateForRequest(ctx, req.ID)
	s.audit.RecordAudit(ctx, &req.ID, models.AuditActionRequestRejected, &adminID, models.ActorAdmin,
		details)

	s.logger.Info("request rejected",
		slog.Any("request_id", req.ID),
		slog.Any("admin_id", adminID),
	)

	return s.requests.GetByID(ctx, req.ID)
}

// RequestStatusInfo is what the waiting device sees when it polls.
type RequestStatusInfo struct {
	Status models.RequestStatus

	// Approvals is the distinct peer votes cast so far; zero once the
	// request leaves pending.
	Approvals int
}

// GetStatus is the poll endpoint for the requesting device. Lazy expiry
// applies here as everywhere a pending request is read.
func (s *ApprovalService) GetStatus(ctx context.Context, requestID uuid.UUID) (*RequestStatusInfo, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if req.Expired(time.Now()) {
		s.expireRequest(ctx, req)
		return &RequestStatusInfo{Status: models.RequestStatusExpired}, nil
	}

	info := &RequestStatusInfo{Status: req.Status}
	if req.Status == models.RequestStatusPending {
		count, err := s.requests.CountApprovals(ctx, requestID)
		if err != nil {
			s.logger.Warn("failed to count approvals", slog.Any("request_id", requestID), slog.Any("error", err))
		} else {
			info.Approvals = count
		}
	}

	return info, nil
}

// ListPendingForApprover returns the pending requests the approver may
// vote on. Every fully-authenticated member is an eligible peer, and a
// user's own request is listed for self-approval, so this is the whole
// pending set minus anything stale. In standard mode the verification
// code travels with each entry so approvers can check it against the
// requesting device; in enhanced mode it is masked, since approvers
// must obtain it out-of-band.
func (s *ApprovalService) ListPendingForApprover(ctx context.Context, approverID uuid.UUID) ([]*models.AuthRequest, error) {
	pending, err := s.requests.ListPending(ctx)
	if err != nil {
		return nil, err
	}

	pol := s.policy.Policy()
	enhanced := pol.EnhancedVerification()

	live := make([]*models.AuthRequest, 0, len(pending))
	now := time.Now()
	for _, req := range pending {
		if req.Expired(now) {
			s.expireRequest(ctx, req)
			continue
		}
		if enhanced {
			masked := *req
			masked.VerificationCode = nil
			req = &masked
		}
		live = append(live, req)
	}

	return live, nil
}

// loadLive fetches a request and applies lazy expiry. Terminal requests
// (including ones expired just now) fail with ErrRequestAlreadyResolved.
func (s *ApprovalService) loadLive(ctx context.Context, requestID uuid.UUID) (*models.AuthRequest, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to load request", slog.Any("request_id", requestID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if req.Status.Terminal() {
		return nil, models.ErrRequestAlreadyResolved
	}

	if req.Expired(time.Now()) {
		s.expireRequest(ctx, req)
		return nil, models.ErrRequestAlreadyResolved
	}

	return req, nil
}

// resolveApproved performs an immediate (admin or self) approval.
func (s *ApprovalService) resolveApproved(ctx context.Context, req *models.AuthRequest, approverID uuid.UUID, actor models.ActorType) (*models.AuthRequest, error) {
	resolved, err := s.requests.Resolve(ctx, req.ID, models.RequestStatusApproved, &approverID)
	if err != nil {
		s.logger.Error("failed to approve request", slog.Any("request_id", req.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if !resolved {
		return nil, models.ErrRequestAlreadyResolved
	}

	s.applyApproval(ctx, req.ID, approverID, actor)

	return s.requests.GetByID(ctx, req.ID)
}

// castPeerVote records a peer vote and applies side effects when the vote
// crossed the threshold.
func (s *ApprovalService) castPeerVote(ctx context.Context, req *models.AuthRequest, approverID uuid.UUID, threshold int) (*models.AuthRequest, error) {
	result, err := s.requests.CastVote(ctx, req.ID, approverID, threshold)
	if err != nil {
		if errors.Is(err, models.ErrRequestAlreadyResolved) {
			return nil, models.ErrRequestAlreadyResolved
		}
		s.logger.Error("failed to cast vote", slog.Any("request_id", req.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if result.Inserted {
		s.audit.RecordAudit(ctx, &req.ID, models.AuditActionVoteCast, &approverID, models.ActorPeer,
			fmt.Sprintf("vote %d of %d", result.Approvals, threshold))
	} else {
		// Duplicate vote: idempotent no-op so a double-tapped UI never
		// surfaces an error.
		s.logger.Info("duplicate vote ignored",
			slog.Any("request_id", req.ID),
			slog.Any("approver_id", approverID),
		)
	}

	if result.Approved {
		s.applyApproval(ctx, req.ID, approverID, models.ActorPeer)
	}

	return s.requests.GetByID(ctx, req.ID)
}

// applyApproval runs the side effects of an approval. Both are idempotent:
// upgrading an already-full session is a no-op, and a duplicate audit
// entry cannot occur because only one caller wins the guarded transition.
func (s *ApprovalService) applyApproval(ctx context.Context, requestID, approverID uuid.UUID, actor models.ActorType) {
	_ = s.sessions.UpgradeForRequest(ctx, requestID)

	s.audit.RecordAudit(ctx, &requestID, models.AuditActionRequestApproved, &approverID, actor,
		fmt.Sprintf("approved via %s rule", actor))

	s.logger.Info("request approved",
		slog.Any("request_id", requestID),
		slog.Any("approver_id", approverID),
		slog.String("actor_type", string(actor)),
	)
}

// expireRequest lazily expires a request found stale on read.
func (s *ApprovalService) expireRequest(ctx context.Context, req *models.AuthRequest) {
	resolved, err := s.requests.Resolve(ctx, req.ID, models.RequestStatusExpired, nil)
	if err != nil {
		s.logger.Error("failed to expire stale request", slog.Any("request_id", req.ID), slog.Any("error", err))
		return
	}
	if !resolved {
		return
	}

	_ = s.sessions.InvalidateForRequest(ctx, req.ID)
	s.audit.RecordAudit(ctx, &req.ID, models.AuditActionRequestExpired, nil, models.ActorSystem,
		"request passed its expiry window")
}

// codeMatches compares a submitted verification code in constant time.
func codeMatches(actual *string, submitted string) bool {
	if actual == nil || submitted == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*actual), []byte(submitted)) == 1
}
