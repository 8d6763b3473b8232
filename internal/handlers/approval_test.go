package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/colefleming/vouch/internal/models"
	"github.com/colefleming/vouch/internal/services"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_Pending(t *testing.T) {
	requestID := uuid.New()

	service := &MockApprovalService{
		GetStatusFunc: func(ctx context.Context, id uuid.UUID) (*services.RequestStatusInfo, error) {
			assert.Equal(t, requestID, id)
			return &services.RequestStatusInfo{Status: models.RequestStatusPending, Approvals: 1}, nil
		},
	}

	handler := NewApprovalHandler(service)

	req := NewTestRequest(t, "GET", "/auth/requests/"+requestID.String(), nil)
	req = WithChiRouteContext(req, map[string]string{"id": requestID.String()})
	w := httptest.NewRecorder()
	handler.Status(w, req)

	var resp StatusResponse
	AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, requestID, resp.ID)
	assert.Equal(t, "pending", resp.Status)
	assert.Equal(t, 1, resp.Approvals)
}

func TestStatus_NotFound(t *testing.T) {
	service := &MockApprovalService{
		GetStatusFunc: func(ctx context.Context, id uuid.UUID) (*services.RequestStatusInfo, error) {
			return nil, models.ErrNotFound
		},
	}

	handler := NewApprovalHandler(service)

	requestID := uuid.New()
	req := NewTestRequest(t, "GET", "/auth/requests/"+requestID.String(), nil)
	req = WithChiRouteContext(req, map[string]string{"id": requestID.String()})
	w := httptest.NewRecorder()
	handler.Status(w, req)

	AssertErrorResponse(t, w, http.StatusNotFound, "not_found")
}

func TestStatus_MalformedID(t *testing.T) {
	handler := NewApprovalHandler(&MockApprovalService{})

	req := NewTestRequest(t, "GET", "/auth/requests/not-a-uuid", nil)
	req = WithChiRouteContext(req, map[string]string{"id": "not-a-uuid"})
	w := httptest.NewRecorder()
	handler.Status(w, req)

	AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
}

func TestListPending(t *testing.T) {
	approver := TestUser()
	pending := []*models.AuthRequest{
		TestPendingRequest(uuid.New()),
		TestPendingRequest(uuid.New()),
	}

	service := &MockApprovalService{
		ListPendingForApproverFunc: func(ctx context.Context, approverID uuid.UUID) ([]*models.AuthRequest, error) {
			assert.Equal(t, approver.ID, approverID)
			return pending, nil
		},
	}

	handler := NewApprovalHandler(service)

	req := NewTestRequest(t, "GET", "/auth/requests/pending", nil)
	req = WithIdentity(req, approver, TestSession(approver.ID))
	w := httptest.NewRecorder()
	handler.ListPending(w, req)

	var resp []*RequestResponse
	AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Len(t, resp, 2)

	// The pending list surfaces whatever code the service left visible
	require.NotNil(t, resp[0].VerificationCode)
	assert.Equal(t, *pending[0].VerificationCode, *resp[0].VerificationCode)
}

func TestListPending_Unauthenticated(t *testing.T) {
	handler := NewApprovalHandler(&MockApprovalService{})

	req := NewTestRequest(t, "GET", "/auth/requests/pending", nil)
	w := httptest.NewRecorder()
	handler.ListPending(w, req)

	AssertErrorResponse(t, w, http.StatusUnauthorized, "unauthorized")
}

func TestApprove_Success(t *testing.T) {
	approver := TestUser()
	request := TestPendingRequest(uuid.New())

	service := &MockApprovalService{
		ApproveFunc: func(ctx context.Context, requestID, approverID uuid.UUID, code string) (*models.AuthRequest, error) {
			assert.Equal(t, request.ID, requestID)
			assert.Equal(t, approver.ID, approverID)

			approved := *request
			approved.Status = models.RequestStatusApproved
			approved.ResolvedBy = &approverID
			now := time.Now()
			approved.ResolvedAt = &now
			return &approved, nil
		},
	}

	handler := NewApprovalHandler(service)

	req := NewTestRequest(t, "POST", "/auth/requests/"+request.ID.String()+"/approve", nil)
	req = WithIdentity(req, approver, TestSession(approver.ID))
	req = WithChiRouteContext(req, map[string]string{"id": request.ID.String()})
	w := httptest.NewRecorder()
	handler.Approve(w, req)

	var resp RequestResponse
	AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, "approved", resp.Status)
	assert.Equal(t, approver.ID, *resp.ResolvedBy)
}

func TestApprove_WithVerificationCode(t *testing.T) {
	approver := TestUser()
	request := TestPendingRequest(uuid.New())

	var gotCode string
	service := &MockApprovalService{
		ApproveFunc: func(ctx context.Context, requestID, approverID uuid.UUID, code string) (*models.AuthRequest, error) {
			gotCode = code
			return request, nil
		},
	}

	handler := NewApprovalHandler(service)

	req := NewTestRequest(t, "POST", "/auth/requests/"+request.ID.String()+"/approve",
		ApproveRequest{VerificationCode: "123456"})
	req = WithIdentity(req, approver, TestSession(approver.ID))
	req = WithChiRouteContext(req, map[string]string{"id": request.ID.String()})
	w := httptest.NewRecorder()
	handler.Approve(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "123456", gotCode)
}

func TestApprove_WrongCode(t *testing.T) {
	approver := TestUser()
	requestID := uuid.New()

	service := &MockApprovalService{
		ApproveFunc: func(ctx context.Context, id, approverID uuid.UUID, code string) (*models.AuthRequest, error) {
			return nil, models.ErrInvalidVerificationCode
		},
	}

	handler := NewApprovalHandler(service)

	req := NewTestRequest(t, "POST", "/auth/requests/"+requestID.String()+"/approve",
		ApproveRequest{VerificationCode: "999999"})
	req = WithIdentity(req, approver, TestSession(approver.ID))
	req = WithChiRouteContext(req, map[string]string{"id": requestID.String()})
	w := httptest.NewRecorder()
	handler.Approve(w, req)

	AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
}

func TestApprove_AlreadyResolved(t *testing.T) {
	approver := TestUser()
	requestID := uuid.New()

	service := &MockApprovalService{
		ApproveFunc: func(ctx context.Context, id, approverID uuid.UUID, code string) (*models.AuthRequest, error) {
			return nil, models.ErrRequestAlreadyResolved
		},
	}

	handler := NewApprovalHandler(service)

	req := NewTestRequest(t, "POST", "/auth/requests/"+requestID.String()+"/approve", nil)
	req = WithIdentity(req, approver, TestSession(approver.ID))
	req = WithChiRouteContext(req, map[string]string{"id": requestID.String()})
	w := httptest.NewRecorder()
	handler.Approve(w, req)

	AssertErrorResponse(t, w, http.StatusConflict, "conflict")
}

func TestApprove_SelfWithoutTrustedDevice(t *testing.T) {
	approver := TestUser()
	requestID := uuid.New()

	service := &MockApprovalService{
		ApproveFunc: func(ctx context.Context, id, approverID uuid.UUID, code string) (*models.AuthRequest, error) {
			return nil, models.ErrForbidden
		},
	}

	handler := NewApprovalHandler(service)

	req := NewTestRequest(t, "POST", "/auth/requests/"+requestID.String()+"/approve", nil)
	req = WithIdentity(req, approver, TestSession(approver.ID))
	req = WithChiRouteContext(req, map[string]string{"id": requestID.String()})
	w := httptest.NewRecorder()
	handler.Approve(w, req)

	AssertErrorResponse(t, w, http.StatusForbidden, "forbidden")
}

func TestReject_Success(t *testing.T) {
	admin := TestAdmin()
	request := TestPendingRequest(uuid.New())

	service := &MockApprovalService{
		RejectFunc: func(ctx context.Context, requestID, adminID uuid.UUID) (*models.AuthRequest, error) {
			assert.Equal(t, admin.ID, adminID)

			rejected := *request
			rejected.Status = models.RequestStatusRejected
			return &rejected, nil
		},
	}

	handler := NewApprovalHandler(service)

	req := NewTestRequest(t, "POST", "/auth/requests/"+request.ID.String()+"/reject", nil)
	req = WithIdentity(req, admin, TestSession(admin.ID))
	req = WithChiRouteContext(req, map[string]string{"id": request.ID.String()})
	w := httptest.NewRecorder()
	handler.Reject(w, req)

	var resp RequestResponse
	AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, "rejected", resp.Status)
}

func TestReject_NonAdmin(t *testing.T) {
	user := TestUser()
	requestID := uuid.New()

	service := &MockApprovalService{
		RejectFunc: func(ctx context.Context, id, adminID uuid.UUID) (*models.AuthRequest, error) {
			return nil, models.ErrForbidden
		},
	}

	handler := NewApprovalHandler(service)

	req := NewTestRequest(t, "POST", "/auth/requests/"+requestID.String()+"/reject", nil)
	req = WithIdentity(req, user, TestSession(user.ID))
	req = WithChiRouteContext(req, map[string]string{"id": requestID.String()})
	w := httptest.NewRecorder()
	handler.Reject(w, req)

	AssertErrorResponse(t, w, http.StatusForbidden, "forbidden")
}
