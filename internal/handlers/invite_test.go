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
)

func TestCreateInvite_Success(t *testing.T) {
	admin := TestAdmin()

	service := &MockInviteService{
		CreateInviteFunc: func(ctx context.Context, adminID uuid.UUID) (string, *models.Invite, error) {
			assert.Equal(t, admin.ID, adminID)
			return "VXK7M9PQRTWY2345ABCD", &models.Invite{
				ID:        uuid.New(),
				CreatedBy: adminID,
				ExpiresAt: time.Now().Add(14 * 24 * time.Hour),
			}, nil
		},
	}

	handler := NewInviteHandler(service)

	req := NewTestRequest(t, "POST", "/invites", nil)
	req = WithIdentity(req, admin, TestSession(admin.ID))
	w := httptest.NewRecorder()
	handler.Create(w, req)

	var resp InviteResponse
	AssertJSONResponse(t, w, http.StatusCreated, &resp)
	assert.Equal(t, "VXK7M9PQRTWY2345ABCD", resp.Code)
	assert.NotEqual(t, uuid.Nil, resp.ID)
}

func TestCreateInvite_Unauthenticated(t *testing.T) {
	handler := NewInviteHandler(&MockInviteService{})

	req := NewTestRequest(t, "POST", "/invites", nil)
	w := httptest.NewRecorder()
	handler.Create(w, req)

	AssertErrorResponse(t, w, http.StatusUnauthorized, "unauthorized")
}
