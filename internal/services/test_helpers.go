package services

import (
	"context"
	"time"

	"github.com/colefleming/vouch/internal/models"
	"github.com/colefleming/vouch/internal/repositories"
	"github.com/google/uuid"
)

// MockIdentityStore implements IdentityStore and UserCreator for testing
type MockIdentityStore struct {
	GetByIDFunc        func(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByUsernameFunc  func(ctx context.Context, username string) (*models.User, error)
	HasRoleFunc        func(ctx context.Context, userID uuid.UUID, role string) (bool, error)
	ListNotifiableFunc func(ctx context.Context, exclude uuid.UUID) ([]*models.User, error)
	CreateFunc         func(ctx context.Context, user *models.User) (*models.User, error)
	DeleteFunc         func(ctx context.Context, id uuid.UUID) error
}

func (m *MockIdentityStore) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockIdentityStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.GetByUsernameFunc != nil {
		return m.GetByUsernameFunc(ctx, username)
	}
	return nil, models.ErrNotFound
}

func (m *MockIdentityStore) HasRole(ctx context.Context, userID uuid.UUID, role string) (bool, error) {
	if m.HasRoleFunc != nil {
		return m.HasRoleFunc(ctx, userID, role)
	}
	return false, nil
}

func (m *MockIdentityStore) ListNotifiable(ctx context.Context, exclude uuid.UUID) ([]*models.User, error) {
	if m.ListNotifiableFunc != nil {
		return m.ListNotifiableFunc(ctx, exclude)
	}
	return []*models.User{}, nil
}

func (m *MockIdentityStore) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	created := *user
	created.ID = uuid.New()
	created.CreatedAt = time.Now()
	return &created, nil
}

func (m *MockIdentityStore) Delete(ctx context.Context, id uuid.UUID) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

// MockAuthRequestRepository implements AuthRequestRepository for testing
type MockAuthRequestRepository struct {
	CreateFunc                 func(ctx context.Context, req *models.AuthRequest) (*models.AuthRequest, error)
	GetByIDFunc                func(ctx context.Context, id uuid.UUID) (*models.AuthRequest, error)
	GetPendingByUserDeviceFunc func(ctx context.Context, userID uuid.UUID, fingerprint string) (*models.AuthRequest, error)
	ListPendingFunc            func(ctx context.Context) ([]*models.AuthRequest, error)
	ResolveFunc                func(ctx context.Context, id uuid.UUID, status models.RequestStatus, resolvedBy *uuid.UUID) (bool, error)
	CastVoteFunc               func(ctx context.Context, requestID, approverID uuid.UUID, threshold int) (*repositories.VoteResult, error)
	CountApprovalsFunc         func(ctx context.Context, requestID uuid.UUID) (int, error)
	ListApprovalsFunc          func(ctx context.Context, requestID uuid.UUID) ([]*models.AuthApproval, error)
	ExpireStaleFunc            func(ctx context.Context) ([]*models.AuthRequest, error)
}

func (m *MockAuthRequestRepository) Create(ctx context.Context, req *models.AuthRequest) (*models.AuthRequest, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, req)
	}
	created := *req
	created.ID = uuid.New()
	created.Status = models.RequestStatusPending
	created.CreatedAt = time.Now()
	return &created, nil
}

func (m *MockAuthRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AuthRequest, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockAuthRequestRepository) GetPendingByUserDevice(ctx context.Context, userID uuid.UUID, fingerprint string) (*models.AuthRequest, error) {
	if m.GetPendingByUserDeviceFunc != nil {
		return m.GetPendingByUserDeviceFunc(ctx, userID, fingerprint)
	}
	return nil, models.ErrNotFound
}

func (m *MockAuthRequestRepository) ListPending(ctx context.Context) ([]*models.AuthRequest, error) {
	if m.ListPendingFunc != nil {
		return m.ListPendingFunc(ctx)
	}
	return []*models.AuthRequest{}, nil
}

func (m *MockAuthRequestRepository) Resolve(ctx context.Context, id uuid.UUID, status models.RequestStatus, resolvedBy *uuid.UUID) (bool, error) {
	if m.ResolveFunc != nil {
		return m.ResolveFunc(ctx, id, status, resolvedBy)
	}
	return true, nil
}

func (m *MockAuthRequestRepository) CastVote(ctx context.Context, requestID, approverID uuid.UUID, threshold int) (*repositories.VoteResult, error) {
	if m.CastVoteFunc != nil {
		return m.CastVoteFunc(ctx, requestID, approverID, threshold)
	}
	return &repositories.VoteResult{Inserted: true, Approvals: 1}, nil
}

func (m *MockAuthRequestRepository) CountApprovals(ctx context.Context, requestID uuid.UUID) (int, error) {
	if m.CountApprovalsFunc != nil {
		return m.CountApprovalsFunc(ctx, requestID)
	}
	return 0, nil
}

func (m *MockAuthRequestRepository) ListApprovals(ctx context.Context, requestID uuid.UUID) ([]*models.AuthApproval, error) {
	if m.ListApprovalsFunc != nil {
		return m.ListApprovalsFunc(ctx, requestID)
	}
	return []*models.AuthApproval{}, nil
}

func (m *MockAuthRequestRepository) ExpireStale(ctx context.Context) ([]*models.AuthRequest, error) {
	if m.ExpireStaleFunc != nil {
		return m.ExpireStaleFunc(ctx)
	}
	return []*models.AuthRequest{}, nil
}

// MockSessionRepository implements SessionRepository for testing
type MockSessionRepository struct {
	CreateFunc             func(ctx context.Context, session *models.Session) (*models.Session, error)
	GetByIDFunc            func(ctx context.Context, id uuid.UUID) (*models.Session, error)
	UpgradeFunc            func(ctx context.Context, id uuid.UUID) (bool, error)
	UpgradeByRequestIDFunc func(ctx context.Context, requestID uuid.UUID) (bool, error)
	DeleteFunc             func(ctx context.Context, id uuid.UUID) error
	DeleteByRequestIDFunc  func(ctx context.Context, requestID uuid.UUID) error
	CountFullByUserFunc    func(ctx context.Context, userID uuid.UUID) (int, error)
	CountByUserFunc        func(ctx context.Context, userID uuid.UUID) (int, error)
	DeleteExpiredFunc      func(ctx context.Context) (int64, error)
}

func (m *MockSessionRepository) Create(ctx context.Context, session *models.Session) (*models.Session, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, session)
	}
	created := *session
	created.ID = uuid.New()
	created.CreatedAt = time.Now()
	return &created, nil
}

func (m *MockSessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockSessionRepository) Upgrade(ctx context.Context, id uuid.UUID) (bool, error) {
	if m.UpgradeFunc != nil {
		return m.UpgradeFunc(ctx, id)
	}
	return true, nil
}

func (m *MockSessionRepository) UpgradeByRequestID(ctx context.Context, requestID uuid.UUID) (bool, error) {
	if m.UpgradeByRequestIDFunc != nil {
		return m.UpgradeByRequestIDFunc(ctx, requestID)
	}
	return true, nil
}

func (m *MockSessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockSessionRepository) DeleteByRequestID(ctx context.Context, requestID uuid.UUID) error {
	if m.DeleteByRequestIDFunc != nil {
		return m.DeleteByRequestIDFunc(ctx, requestID)
	}
	return nil
}

func (m *MockSessionRepository) CountFullByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	if m.CountFullByUserFunc != nil {
		return m.CountFullByUserFunc(ctx, userID)
	}
	return 0, nil
}

func (m *MockSessionRepository) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	if m.CountByUserFunc != nil {
		return m.CountByUserFunc(ctx, userID)
	}
	return 0, nil
}

func (m *MockSessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	if m.DeleteExpiredFunc != nil {
		return m.DeleteExpiredFunc(ctx)
	}
	return 0, nil
}

// MockAuthAttemptRepository implements AuthAttemptRepository for testing
type MockAuthAttemptRepository struct {
	RecordIfUnderLimitFunc func(ctx context.Context, userID uuid.UUID, ip string, since time.Time, limit int) (bool, error)
	DeleteOlderThanFunc    func(ctx context.Context, cutoff time.Time) (int64, error)
}

func (m *MockAuthAttemptRepository) RecordIfUnderLimit(ctx context.Context, userID uuid.UUID, ip string, since time.Time, limit int) (bool, error) {
	if m.RecordIfUnderLimitFunc != nil {
		return m.RecordIfUnderLimitFunc(ctx, userID, ip, since, limit)
	}
	return true, nil
}

func (m *MockAuthAttemptRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.DeleteOlderThanFunc != nil {
		return m.DeleteOlderThanFunc(ctx, cutoff)
	}
	return 0, nil
}

// MockAuditLogRepository implements AuditLogRepository for testing
type MockAuditLogRepository struct {
	Entries []*models.AuditLogEntry

	CreateFunc        func(ctx context.Context, entry *models.AuditLogEntry) (*models.AuditLogEntry, error)
	ListByRequestFunc func(ctx context.Context, requestID uuid.UUID, limit, offset int) ([]*models.AuditLogEntry, error)
	ListByActorFunc   func(ctx context.Context, actorID uuid.UUID, limit, offset int) ([]*models.AuditLogEntry, error)
}

func (m *MockAuditLogRepository) Create(ctx context.Context, entry *models.AuditLogEntry) (*models.AuditLogEntry, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, entry)
	}
	created := *entry
	created.ID = uuid.New()
	created.CreatedAt = time.Now()
	m.Entries = append(m.Entries, &created)
	return &created, nil
}

func (m *MockAuditLogRepository) ListByRequest(ctx context.Context, requestID uuid.UUID, limit, offset int) ([]*models.AuditLogEntry, error) {
	if m.ListByRequestFunc != nil {
		return m.ListByRequestFunc(ctx, requestID, limit, offset)
	}
	out := []*models.AuditLogEntry{}
	for _, e := range m.Entries {
		if e.RequestID != nil && *e.RequestID == requestID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MockAuditLogRepository) ListByActor(ctx context.Context, actorID uuid.UUID, limit, offset int) ([]*models.AuditLogEntry, error) {
	if m.ListByActorFunc != nil {
		return m.ListByActorFunc(ctx, actorID, limit, offset)
	}
	out := []*models.AuditLogEntry{}
	for _, e := range m.Entries {
		if e.ActorID != nil && *e.ActorID == actorID {
			out = append(out, e)
		}
	}
	return out, nil
}

// MockSecurityEventRepository implements SecurityEventRepository for testing
type MockSecurityEventRepository struct {
	Events []*models.SecurityEvent

	CreateFunc     func(ctx context.Context, event *models.SecurityEvent) (*models.SecurityEvent, error)
	ListByUserFunc func(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.SecurityEvent, error)
}

func (m *MockSecurityEventRepository) Create(ctx context.Context, event *models.SecurityEvent) (*models.SecurityEvent, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, event)
	}
	created := *event
	created.ID = uuid.New()
	created.CreatedAt = time.Now()
	m.Events = append(m.Events, &created)
	return &created, nil
}

func (m *MockSecurityEventRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.SecurityEvent, error) {
	if m.ListByUserFunc != nil {
		return m.ListByUserFunc(ctx, userID, limit, offset)
	}
	out := []*models.SecurityEvent{}
	for _, e := range m.Events {
		if e.UserID != nil && *e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

// MockInviteRepository implements InviteRepository for testing
type MockInviteRepository struct {
	CreateFunc        func(ctx context.Context, invite *models.Invite) (*models.Invite, error)
	ListClaimableFunc func(ctx context.Context) ([]*models.Invite, error)
	ClaimFunc         func(ctx context.Context, inviteID, userID uuid.UUID) (bool, error)
}

func (m *MockInviteRepository) Create(ctx context.Context, invite *models.Invite) (*models.Invite, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, invite)
	}
	created := *invite
	created.ID = uuid.New()
	created.CreatedAt = time.Now()
	return &created, nil
}

func (m *MockInviteRepository) ListClaimable(ctx context.Context) ([]*models.Invite, error) {
	if m.ListClaimableFunc != nil {
		return m.ListClaimableFunc(ctx)
	}
	return []*models.Invite{}, nil
}

func (m *MockInviteRepository) Claim(ctx context.Context, inviteID, userID uuid.UUID) (bool, error) {
	if m.ClaimFunc != nil {
		return m.ClaimFunc(ctx, inviteID, userID)
	}
	return true, nil
}

// MockNotifier implements Notifier for testing
type MockNotifier struct {
	NotifyPendingRequestFunc func(ctx context.Context, req *models.AuthRequest, requester *models.User, recipients []*models.User) error
	Notified                 []uuid.UUID
}

func (m *MockNotifier) NotifyPendingRequest(ctx context.Context, req *models.AuthRequest, requester *models.User, recipients []*models.User) error {
	m.Notified = append(m.Notified, req.ID)
	if m.NotifyPendingRequestFunc != nil {
		return m.NotifyPendingRequestFunc(ctx, req, requester, recipients)
	}
	return nil
}
