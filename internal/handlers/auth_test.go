package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/colefleming/vouch/internal/models"
	"github.com/colefleming/vouch/internal/services"
	pkghttp "github.com/colefleming/vouch/pkg/http"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func newAuthHandler(login *MockLoginService, invites *MockRegistrationService, sessions *MockSessionInvalidator) *AuthHandler {
	if login == nil {
		login = &MockLoginService{}
	}
	if invites == nil {
		invites = &MockRegistrationService{}
	}
	if sessions == nil {
		sessions = &MockSessionInvalidator{}
	}
	return NewAuthHandler(login, invites, sessions, pkghttp.DefaultIPConfig())
}

func TestLogin_PendingRequest(t *testing.T) {
	user := TestUser()
	request := TestPendingRequest(user.ID)

	login := &MockLoginService{
		StartLoginFunc: func(ctx context.Context, username, userAgent, ip string) (*services.LoginResult, error) {
			assert.Equal(t, "casey", username)
			return &services.LoginResult{
				Token:            "half-token",
				Request:          request,
				Pending:          true,
				VerificationCode: "123456",
			}, nil
		},
	}

	handler := newAuthHandler(login, nil, nil)

	req := NewTestRequest(t, "POST", "/auth/login", LoginRequest{Username: "casey"})
	w := httptest.NewRecorder()
	handler.Login(w, req)

	var resp LoginResponse
	AssertJSONResponse(t, w, http.StatusAccepted, &resp)
	assert.True(t, resp.Pending)
	assert.Equal(t, "half-token", resp.Token)
	assert.Equal(t, "123456", resp.VerificationCode)
	assert.Equal(t, request.ID, resp.Request.ID)
}

func TestLogin_FullSessionWhenApprovalDisabled(t *testing.T) {
	login := &MockLoginService{
		StartLoginFunc: func(ctx context.Context, username, userAgent, ip string) (*services.LoginResult, error) {
			return &services.LoginResult{Token: "full-token"}, nil
		},
	}

	handler := newAuthHandler(login, nil, nil)

	req := NewTestRequest(t, "POST", "/auth/login", LoginRequest{Username: "casey"})
	w := httptest.NewRecorder()
	handler.Login(w, req)

	var resp LoginResponse
	AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.False(t, resp.Pending)
	assert.Equal(t, "full-token", resp.Token)
	assert.Empty(t, resp.VerificationCode)
}

func TestLogin_UnknownUsername(t *testing.T) {
	login := &MockLoginService{
		StartLoginFunc: func(ctx context.Context, username, userAgent, ip string) (*services.LoginResult, error) {
			return nil, models.ErrUnknownUser
		},
	}

	handler := newAuthHandler(login, nil, nil)

	req := NewTestRequest(t, "POST", "/auth/login", LoginRequest{Username: "nobody"})
	w := httptest.NewRecorder()
	handler.Login(w, req)

	AssertErrorResponse(t, w, http.StatusNotFound, "not_found")
}

func TestLogin_RateLimited(t *testing.T) {
	login := &MockLoginService{
		StartLoginFunc: func(ctx context.Context, username, userAgent, ip string) (*services.LoginResult, error) {
			return nil, models.ErrRateLimited
		},
	}

	handler := newAuthHandler(login, nil, nil)

	req := NewTestRequest(t, "POST", "/auth/login", LoginRequest{Username: "casey"})
	w := httptest.NewRecorder()
	handler.Login(w, req)

	AssertErrorResponse(t, w, http.StatusTooManyRequests, "rate_limit_exceeded")
}

func TestLogin_EmptyUsername(t *testing.T) {
	handler := newAuthHandler(nil, nil, nil)

	req := NewTestRequest(t, "POST", "/auth/login", LoginRequest{Username: ""})
	w := httptest.NewRecorder()
	handler.Login(w, req)

	AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
}

func TestRegister_Success(t *testing.T) {
	newUser := TestUser()

	invites := &MockRegistrationService{
		ClaimInviteFunc: func(ctx context.Context, code, username string, email *string, userAgent, ip string) (*services.RegistrationResult, error) {
			assert.Equal(t, "VXK7M9PQRTWY2345ABCD", code)
			assert.Equal(t, "casey", username)
			return &services.RegistrationResult{
				User:  newUser,
				Token: "first-token",
			}, nil
		},
	}

	handler := newAuthHandler(nil, invites, nil)

	req := NewTestRequest(t, "POST", "/auth/register", RegisterRequest{
		InviteCode: "VXK7M9PQRTWY2345ABCD",
		Username:   "casey",
	})
	w := httptest.NewRecorder()
	handler.Register(w, req)

	var resp RegisterResponse
	AssertJSONResponse(t, w, http.StatusCreated, &resp)
	assert.Equal(t, newUser.ID, resp.User.ID)
	assert.Equal(t, "first-token", resp.Token)
}

func TestRegister_InvalidInvite(t *testing.T) {
	invites := &MockRegistrationService{
		ClaimInviteFunc: func(ctx context.Context, code, username string, email *string, userAgent, ip string) (*services.RegistrationResult, error) {
			return nil, models.ErrInviteInvalid
		},
	}

	handler := newAuthHandler(nil, invites, nil)

	req := NewTestRequest(t, "POST", "/auth/register", RegisterRequest{
		InviteCode: "bogus",
		Username:   "casey",
	})
	w := httptest.NewRecorder()
	handler.Register(w, req)

	AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
}

func TestRegister_UsernameTaken(t *testing.T) {
	invites := &MockRegistrationService{
		ClaimInviteFunc: func(ctx context.Context, code, username string, email *string, userAgent, ip string) (*services.RegistrationResult, error) {
			return nil, models.ErrConflict
		},
	}

	handler := newAuthHandler(nil, invites, nil)

	req := NewTestRequest(t, "POST", "/auth/register", RegisterRequest{
		InviteCode: "VXK7M9PQRTWY2345ABCD",
		Username:   "casey",
	})
	w := httptest.NewRecorder()
	handler.Register(w, req)

	AssertErrorResponse(t, w, http.StatusConflict, "conflict")
}

func TestLogout_Success(t *testing.T) {
	user := TestUser()
	session := TestSession(user.ID)

	var invalidated uuid.UUID
	sessions := &MockSessionInvalidator{
		InvalidateFunc: func(ctx context.Context, sessionID uuid.UUID) error {
			invalidated = sessionID
			return nil
		},
	}

	handler := newAuthHandler(nil, nil, sessions)

	req := NewTestRequest(t, "POST", "/auth/logout", nil)
	req = WithIdentity(req, user, session)
	w := httptest.NewRecorder()
	handler.Logout(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, session.ID, invalidated)
}

func TestLogout_NoSession(t *testing.T) {
	handler := newAuthHandler(nil, nil, nil)

	req := NewTestRequest(t, "POST", "/auth/logout", nil)
	w := httptest.NewRecorder()
	handler.Logout(w, req)

	AssertErrorResponse(t, w, http.StatusUnauthorized, "unauthorized")
}
