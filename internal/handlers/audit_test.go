package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/colefleming/vouch/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestTrail(t *testing.T) {
	requestID := uuid.New()
	actorID := uuid.New()

	service := &MockAuditService{
		GetRequestTrailFunc: func(ctx context.Context, id uuid.UUID, limit, offset int) ([]*models.AuditLogEntry, error) {
			assert.Equal(t, requestID, id)
			assert.Equal(t, 10, limit)
			assert.Equal(t, 5, offset)
			return []*models.AuditLogEntry{
				{
					ID:        uuid.New(),
					RequestID: &requestID,
					Action:    models.AuditActionRequestApproved,
					ActorID:   &actorID,
					ActorType: models.ActorAdmin,
					Details:   "approved via admin rule",
					CreatedAt: time.Now(),
				},
			}, nil
		},
	}

	handler := NewAuditHandler(service)

	req := NewTestRequest(t, "GET", "/admin/audit/requests/"+requestID.String()+"?limit=10&offset=5", nil)
	req = WithChiRouteContext(req, map[string]string{"id": requestID.String()})
	w := httptest.NewRecorder()
	handler.RequestTrail(w, req)

	var resp []*AuditEntryResponse
	AssertJSONResponse(t, w, http.StatusOK, &resp)
	require.Len(t, resp, 1)
	assert.Equal(t, models.AuditActionRequestApproved, resp[0].Action)
	assert.Equal(t, "admin", resp[0].ActorType)
}

func TestRequestTrail_InvalidID(t *testing.T) {
	handler := NewAuditHandler(&MockAuditService{})

	req := NewTestRequest(t, "GET", "/admin/audit/requests/not-a-uuid", nil)
	req = WithChiRouteContext(req, map[string]string{"id": "not-a-uuid"})
	w := httptest.NewRecorder()
	handler.RequestTrail(w, req)

	AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
}

func TestSecurityTrail(t *testing.T) {
	userID := uuid.New()

	service := &MockAuditService{
		GetSecurityTrailFunc: func(ctx context.Context, id uuid.UUID, limit, offset int) ([]*models.SecurityEvent, error) {
			assert.Equal(t, userID, id)
			return []*models.SecurityEvent{
				{
					ID:        uuid.New(),
					EventType: models.SecurityEventRateLimited,
					UserID:    &userID,
					IPAddress: "192.0.2.1",
					Details:   "more than 3 authentication requests in the last hour",
					CreatedAt: time.Now(),
				},
			}, nil
		},
	}

	handler := NewAuditHandler(service)

	req := NewTestRequest(t, "GET", "/admin/audit/security/"+userID.String(), nil)
	req = WithChiRouteContext(req, map[string]string{"id": userID.String()})
	w := httptest.NewRecorder()
	handler.SecurityTrail(w, req)

	var resp []*SecurityEventResponse
	AssertJSONResponse(t, w, http.StatusOK, &resp)
	require.Len(t, resp, 1)
	assert.Equal(t, models.SecurityEventRateLimited, resp[0].EventType)
}
