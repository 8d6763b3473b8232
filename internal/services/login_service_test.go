package services_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/colefleming/vouch/internal/models"
	"github.com/colefleming/vouch/internal/services"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartLogin_UnknownUser(t *testing.T) {
	f := newFixture(testPolicy())
	f.users.GetByUsernameFunc = func(ctx context.Context, username string) (*models.User, error) {
		return nil, models.ErrNotFound
	}

	_, err := f.loginService.StartLogin(context.Background(), "ghost", "test-agent/1.0", "192.0.2.10")

	assert.ErrorIs(t, err, models.ErrUnknownUser)
}

func TestStartLogin_ApprovalDisabled(t *testing.T) {
	pol := testPolicy()
	pol.ApprovalRequired = false
	f := newFixture(pol)

	user := testUser("alice")
	f.users.GetByUsernameFunc = func(ctx context.Context, username string) (*models.User, error) {
		return user, nil
	}

	var createdLevel models.AuthLevel
	f.sessions.CreateFunc = func(ctx context.Context, session *models.Session) (*models.Session, error) {
		createdLevel = session.Level
		created := *session
		created.ID = uuid.New()
		return &created, nil
	}

	result, err := f.loginService.StartLogin(context.Background(), "alice", "test-agent/1.0", "192.0.2.10")

	require.NoError(t, err)
	assert.False(t, result.Pending)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, models.AuthLevelFull, createdLevel)
	assert.Nil(t, result.Request)
}

func TestStartLogin_TrustFirstDevice(t *testing.T) {
	pol := testPolicy()
	pol.TrustFirstDevice = true
	f := newFixture(pol)

	user := testUser("alice")
	f.users.GetByUsernameFunc = func(ctx context.Context, username string) (*models.User, error) {
		return user, nil
	}
	f.sessions.CountByUserFunc = func(ctx context.Context, userID uuid.UUID) (int, error) {
		return 0, nil
	}

	result, err := f.loginService.StartLogin(context.Background(), "alice", "test-agent/1.0", "192.0.2.10")

	require.NoError(t, err)
	assert.False(t, result.Pending)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, models.AuthLevelFull, result.Session.Level)
}

func TestStartLogin_TrustFirstDeviceOnlyOnce(t *testing.T) {
	pol := testPolicy()
	pol.TrustFirstDevice = true
	f := newFixture(pol)

	user := testUser("alice")
	f.users.GetByUsernameFunc = func(ctx context.Context, username string) (*models.User, error) {
		return user, nil
	}
	// The user already holds a session, so the second device goes through
	// the approval flow.
	f.sessions.CountByUserFunc = func(ctx context.Context, userID uuid.UUID) (int, error) {
		return 1, nil
	}

	result, err := f.loginService.StartLogin(context.Background(), "alice", "test-agent/2.0", "192.0.2.10")

	require.NoError(t, err)
	assert.True(t, result.Pending)
	assert.Equal(t, models.AuthLevelHalf, result.Session.Level)
}

func TestStartLogin_CreatesPendingRequest(t *testing.T) {
	f := newFixture(testPolicy())

	user := testUser("alice")
	f.users.GetByUsernameFunc = func(ctx context.Context, username string) (*models.User, error) {
		return user, nil
	}
	peer := testUser("bob")
	f.users.ListNotifiableFunc = func(ctx context.Context, exclude uuid.UUID) ([]*models.User, error) {
		assert.Equal(t, user.ID, exclude)
		return []*models.User{peer}, nil
	}

	var captured *models.AuthRequest
	f.requests.CreateFunc = func(ctx context.Context, req *models.AuthRequest) (*models.AuthRequest, error) {
		captured = req
		created := *req
		created.ID = uuid.New()
		created.Status = models.RequestStatusPending
		return &created, nil
	}

	var halfSession *models.Session
	f.sessions.CreateFunc = func(ctx context.Context, session *models.Session) (*models.Session, error) {
		halfSession = session
		created := *session
		created.ID = uuid.New()
		return &created, nil
	}

	before := time.Now()
	result, err := f.loginService.StartLogin(context.Background(), "alice", "test-agent/1.0", "192.0.2.10")

	require.NoError(t, err)
	assert.True(t, result.Pending)
	assert.False(t, result.Duplicate)
	assert.NotEmpty(t, result.Token)

	require.NotNil(t, captured)
	assert.Equal(t, user.ID, captured.UserID)
	assert.Equal(t, services.DeviceFingerprint("test-agent/1.0"), captured.DeviceFingerprint)
	assert.Regexp(t, regexp.MustCompile(`^\d{6}$`), result.VerificationCode)

	// Expiry lands seven days out
	wantExpiry := before.Add(7 * 24 * time.Hour)
	assert.WithinDuration(t, wantExpiry, captured.ExpiresAt, 5*time.Second)

	// The half session is tied to the request
	require.NotNil(t, halfSession)
	assert.Equal(t, models.AuthLevelHalf, halfSession.Level)
	require.NotNil(t, halfSession.RequestID)
	assert.Equal(t, result.Request.ID, *halfSession.RequestID)

	// Approvers were notified and the creation was audited
	assert.Len(t, f.notifier.Notified, 1)
	assert.Contains(t, f.auditActions(), models.AuditActionRequestCreated)
}

func TestStartLogin_DuplicatePendingRequest(t *testing.T) {
	f := newFixture(testPolicy())

	user := testUser("alice")
	existing := pendingRequest(user.ID)

	f.users.GetByUsernameFunc = func(ctx context.Context, username string) (*models.User, error) {
		return user, nil
	}
	f.requests.GetPendingByUserDeviceFunc = func(ctx context.Context, userID uuid.UUID, fingerprint string) (*models.AuthRequest, error) {
		return existing, nil
	}

	createCalled := false
	f.requests.CreateFunc = func(ctx context.Context, req *models.AuthRequest) (*models.AuthRequest, error) {
		createCalled = true
		return nil, errors.New("should not be called")
	}

	result, err := f.loginService.StartLogin(context.Background(), "alice", "test-agent/1.0", "192.0.2.10")

	require.NoError(t, err)
	assert.True(t, result.Pending)
	assert.True(t, result.Duplicate)
	assert.Equal(t, existing.ID, result.Request.ID)
	assert.Equal(t, *existing.VerificationCode, result.VerificationCode)
	assert.False(t, createCalled)
}

func TestStartLogin_StalePendingRequestReplaced(t *testing.T) {
	f := newFixture(testPolicy())

	user := testUser("alice")
	stale := pendingRequest(user.ID)
	stale.ExpiresAt = time.Now().Add(-time.Hour)

	f.users.GetByUsernameFunc = func(ctx context.Context, username string) (*models.User, error) {
		return user, nil
	}
	f.requests.GetPendingByUserDeviceFunc = func(ctx context.Context, userID uuid.UUID, fingerprint string) (*models.AuthRequest, error) {
		return stale, nil
	}

	var expiredTo models.RequestStatus
	f.requests.ResolveFunc = func(ctx context.Context, id uuid.UUID, status models.RequestStatus, resolvedBy *uuid.UUID) (bool, error) {
		assert.Equal(t, stale.ID, id)
		expiredTo = status
		return true, nil
	}

	var invalidatedRequest uuid.UUID
	f.sessions.DeleteByRequestIDFunc = func(ctx context.Context, requestID uuid.UUID) error {
		invalidatedRequest = requestID
		return nil
	}

	result, err := f.loginService.StartLogin(context.Background(), "alice", "test-agent/1.0", "192.0.2.10")

	require.NoError(t, err)
	assert.True(t, result.Pending)
	assert.False(t, result.Duplicate)
	assert.NotEqual(t, stale.ID, result.Request.ID)
	assert.Equal(t, models.RequestStatusExpired, expiredTo)
	assert.Equal(t, stale.ID, invalidatedRequest)
}

func TestStartLogin_RateLimited(t *testing.T) {
	f := newFixture(testPolicy())

	user := testUser("alice")
	f.users.GetByUsernameFunc = func(ctx context.Context, username string) (*models.User, error) {
		return user, nil
	}
	f.attempts.RecordIfUnderLimitFunc = func(ctx context.Context, userID uuid.UUID, ip string, since time.Time, limit int) (bool, error) {
		return false, nil
	}

	_, err := f.loginService.StartLogin(context.Background(), "alice", "test-agent/1.0", "192.0.2.10")

	assert.ErrorIs(t, err, models.ErrRateLimited)
	require.Len(t, f.security.Events, 1)
	assert.Equal(t, models.SecurityEventRateLimited, f.security.Events[0].EventType)
}

func TestStartLogin_NotifierFailureDoesNotFailLogin(t *testing.T) {
	f := newFixture(testPolicy())

	user := testUser("alice")
	f.users.GetByUsernameFunc = func(ctx context.Context, username string) (*models.User, error) {
		return user, nil
	}
	f.users.ListNotifiableFunc = func(ctx context.Context, exclude uuid.UUID) ([]*models.User, error) {
		return []*models.User{testUser("bob")}, nil
	}
	f.notifier.NotifyPendingRequestFunc = func(ctx context.Context, req *models.AuthRequest, requester *models.User, recipients []*models.User) error {
		return errors.New("smtp down")
	}

	result, err := f.loginService.StartLogin(context.Background(), "alice", "test-agent/1.0", "192.0.2.10")

	require.NoError(t, err)
	assert.True(t, result.Pending)
}

func TestExpireStale_InvalidatesSessions(t *testing.T) {
	f := newFixture(testPolicy())

	first := pendingRequest(uuid.New())
	second := pendingRequest(uuid.New())
	f.requests.ExpireStaleFunc = func(ctx context.Context) ([]*models.AuthRequest, error) {
		return []*models.AuthRequest{first, second}, nil
	}

	var invalidated []uuid.UUID
	f.sessions.DeleteByRequestIDFunc = func(ctx context.Context, requestID uuid.UUID) error {
		invalidated = append(invalidated, requestID)
		return nil
	}

	count, err := f.loginService.ExpireStale(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.ElementsMatch(t, []uuid.UUID{first.ID, second.ID}, invalidated)
	assert.Equal(t, []string{models.AuditActionRequestExpired, models.AuditActionRequestExpired}, f.auditActions())
}
