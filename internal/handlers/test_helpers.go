package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/colefleming/vouch/internal/auth"
	"github.com/colefleming/vouch/internal/models"
	"github.com/colefleming/vouch/internal/services"
	pkghttp "github.com/colefleming/vouch/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithIdentity adds a resolved user and session to the request context for
// testing authenticated endpoints
func WithIdentity(req *http.Request, user *models.User, session *models.Session) *http.Request {
	return req.WithContext(auth.ContextWithIdentity(req.Context(), user, session))
}

// TestUser builds a member user for handler tests
func TestUser() *models.User {
	return &models.User{
		ID:        uuid.New(),
		Username:  "casey",
		Roles:     []string{},
		CreatedAt: time.Now(),
	}
}

// TestAdmin builds an admin user for handler tests
func TestAdmin() *models.User {
	return &models.User{
		ID:        uuid.New(),
		Username:  "root",
		Roles:     []string{models.RoleAdmin},
		CreatedAt: time.Now(),
	}
}

// TestSession builds a full session owned by the given user
func TestSession(userID uuid.UUID) *models.Session {
	return &models.Session{
		ID:        uuid.New(),
		UserID:    userID,
		Level:     models.AuthLevelFull,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

// TestPendingRequest builds a pending authentication request
func TestPendingRequest(userID uuid.UUID) *models.AuthRequest {
	code := "123456"
	return &models.AuthRequest{
		ID:                uuid.New(),
		UserID:            userID,
		DeviceFingerprint: "fp-test",
		UserAgent:         "test-agent",
		IPAddress:         "192.0.2.1",
		Status:            models.RequestStatusPending,
		VerificationCode:  &code,
		CreatedAt:         time.Now(),
		ExpiresAt:         time.Now().Add(7 * 24 * time.Hour),
	}
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockLoginService implements LoginServiceInterface for testing
type MockLoginService struct {
	StartLoginFunc func(ctx context.Context, username, userAgent, ip string) (*services.LoginResult, error)
}

func (m *MockLoginService) StartLogin(ctx context.Context, username, userAgent, ip string) (*services.LoginResult, error) {
	if m.StartLoginFunc == nil {
		return nil, models.ErrUnknownUser
	}
	return m.StartLoginFunc(ctx, username, userAgent, ip)
}

// MockRegistrationService implements RegistrationServiceInterface for testing
type MockRegistrationService struct {
	ClaimInviteFunc func(ctx context.Context, code, username string, email *string, userAgent, ip string) (*services.RegistrationResult, error)
}

func (m *MockRegistrationService) ClaimInvite(ctx context.Context, code, username string, email *string, userAgent, ip string) (*services.RegistrationResult, error) {
	if m.ClaimInviteFunc == nil {
		return nil, models.ErrInviteInvalid
	}
	return m.ClaimInviteFunc(ctx, code, username, email, userAgent, ip)
}

// MockSessionInvalidator implements SessionInvalidator for testing
type MockSessionInvalidator struct {
	InvalidateFunc func(ctx context.Context, sessionID uuid.UUID) error
}

func (m *MockSessionInvalidator) Invalidate(ctx context.Context, sessionID uuid.UUID) error {
	if m.InvalidateFunc == nil {
		return nil
	}
	return m.InvalidateFunc(ctx, sessionID)
}

// MockApprovalService implements ApprovalServiceInterface for testing
type MockApprovalService struct {
	ApproveFunc                func(ctx context.Context, requestID, approverID uuid.UUID, code string) (*models.AuthRequest, error)
	RejectFunc                 func(ctx context.Context, requestID, adminID uuid.UUID) (*models.AuthRequest, error)
	GetStatusFunc              func(ctx context.Context, requestID uuid.UUID) (*services.RequestStatusInfo, error)
	ListPendingForApproverFunc func(ctx context.Context, approverID uuid.UUID) ([]*models.AuthRequest, error)
}

func (m *MockApprovalService) Approve(ctx context.Context, requestID, approverID uuid.UUID, code string) (*models.AuthRequest, error) {
	if m.ApproveFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.ApproveFunc(ctx, requestID, approverID, code)
}

func (m *MockApprovalService) Reject(ctx context.Context, requestID, adminID uuid.UUID) (*models.AuthRequest, error) {
	if m.RejectFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.RejectFunc(ctx, requestID, adminID)
}

func (m *MockApprovalService) GetStatus(ctx context.Context, requestID uuid.UUID) (*services.RequestStatusInfo, error) {
	if m.GetStatusFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetStatusFunc(ctx, requestID)
}

func (m *MockApprovalService) ListPendingForApprover(ctx context.Context, approverID uuid.UUID) ([]*models.AuthRequest, error) {
	if m.ListPendingForApproverFunc == nil {
		return []*models.AuthRequest{}, nil
	}
	return m.ListPendingForApproverFunc(ctx, approverID)
}

// MockInviteService implements InviteServiceInterface for testing
type MockInviteService struct {
	CreateInviteFunc func(ctx context.Context, adminID uuid.UUID) (string, *models.Invite, error)
}

func (m *MockInviteService) CreateInvite(ctx context.Context, adminID uuid.UUID) (string, *models.Invite, error) {
	if m.CreateInviteFunc == nil {
		return "", nil, models.ErrInternalServer
	}
	return m.CreateInviteFunc(ctx, adminID)
}

// MockAuditService implements AuditServiceInterface for testing
type MockAuditService struct {
	GetRequestTrailFunc  func(ctx context.Context, requestID uuid.UUID, limit, offset int) ([]*models.AuditLogEntry, error)
	GetActorTrailFunc    func(ctx context.Context, actorID uuid.UUID, limit, offset int) ([]*models.AuditLogEntry, error)
	GetSecurityTrailFunc func(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.SecurityEvent, error)
}

func (m *MockAuditService) GetRequestTrail(ctx context.Context, requestID uuid.UUID, limit, offset int) ([]*models.AuditLogEntry, error) {
	if m.GetRequestTrailFunc == nil {
		return []*models.AuditLogEntry{}, nil
	}
	return m.GetRequestTrailFunc(ctx, requestID, limit, offset)
}

func (m *MockAuditService) GetActorTrail(ctx context.Context, actorID uuid.UUID, limit, offset int) ([]*models.AuditLogEntry, error) {
	if m.GetActorTrailFunc == nil {
		return []*models.AuditLogEntry{}, nil
	}
	return m.GetActorTrailFunc(ctx, actorID, limit, offset)
}

func (m *MockAuditService) GetSecurityTrail(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.SecurityEvent, error) {
	if m.GetSecurityTrailFunc == nil {
		return []*models.SecurityEvent{}, nil
	}
	return m.GetSecurityTrailFunc(ctx, userID, limit, offset)
}

// WithChiRouteContext adds chi URL parameters to request context for testing
// This helper allows tests to set URL parameters that would normally be
// extracted by the Chi router from the URL path.
func WithChiRouteContext(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
