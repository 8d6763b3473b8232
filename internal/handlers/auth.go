package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/colefleming/vouch/internal/auth"
	"github.com/colefleming/vouch/internal/models"
	"github.com/colefleming/vouch/internal/services"
	pkghttp "github.com/colefleming/vouch/pkg/http"
	"github.com/google/uuid"
)

// LoginServiceInterface defines the interface for login business logic
type LoginServiceInterface interface {
	StartLogin(ctx context.Context, username, userAgent, ip string) (*services.LoginResult, error)
}

// RegistrationServiceInterface defines the interface for invite redemption
type RegistrationServiceInterface interface {
	ClaimInvite(ctx context.Context, code, username string, email *string, userAgent, ip string) (*services.RegistrationResult, error)
}

// SessionInvalidator destroys sessions on logout
type SessionInvalidator interface {
	Invalidate(ctx context.Context, sessionID uuid.UUID) error
}

// AuthHandler handles login, registration, and logout
type AuthHandler struct {
	login    LoginServiceInterface
	invites  RegistrationServiceInterface
	sessions SessionInvalidator
	ipConfig *pkghttp.IPConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(login LoginServiceInterface, invites RegistrationServiceInterface, sessions SessionInvalidator, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		login:    login,
		invites:  invites,
		sessions: sessions,
		ipConfig: ipConfig,
	}
}

// Request DTOs

// LoginRequest represents the request body for login
type LoginRequest struct {
	Username string `json:"username" validate:"required,min=1,max=64"`
}

// RegisterRequest represents the request body for invite redemption
type RegisterRequest struct {
	InviteCode string  `json:"invite_code" validate:"required"`
	Username   string  `json:"username" validate:"required,min=3,max=64,alphanum"`
	Email      *string `json:"email,omitempty" validate:"omitempty,email"`
}

// LoginResponse represents the response body for login
type LoginResponse struct {
	Token   string           `json:"token,omitempty"`
	Pending bool             `json:"pending"`
	Request *RequestResponse `json:"request,omitempty"`

	// VerificationCode is shown once to the requesting device so the user
	// can read it to an approver out of band.
	VerificationCode string `json:"verification_code,omitempty"`
}

// RegisterResponse represents the response body for registration
type RegisterResponse struct {
	User  *UserResponse `json:"user"`
	Token string        `json:"token"`
}

// Login handles the start of an authentication attempt
// @Summary Start login from a device
// @Accept json
// @Param request body LoginRequest true "Login request"
// @Produce json
// @Success 200 {object} LoginResponse
// @Success 202 {object} LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.Username = strings.TrimSpace(req.Username)

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)
	userAgent := r.Header.Get("User-Agent")

	result, err := h.login.StartLogin(r.Context(), req.Username, userAgent, ipAddress)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrUnknownUser):
			// Registration is invite-only and usernames are not secret, so
			// a clear not-found beats an anti-enumeration mumble.
			pkghttp.WriteNotFound(w, "Unknown username")
		case errors.Is(err, models.ErrRateLimited):
			pkghttp.WriteTooManyRequests(w, "Too many authentication requests. Please try again later.")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	resp := LoginResponse{
		Token:            result.Token,
		Pending:          result.Pending,
		VerificationCode: result.VerificationCode,
	}
	if result.Request != nil {
		resp.Request = toRequestResponse(result.Request)
	}

	status := http.StatusOK
	if result.Pending {
		// 202: the device holds a half session until someone approves it
		status = http.StatusAccepted
	}

	pkghttp.WriteJSON(w, status, resp)
}

// Register handles invite redemption
// @Summary Redeem an invite code for a new account
// @Accept json
// @Param request body RegisterRequest true "Register request"
// @Produce json
// @Success 201 {object} RegisterResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Email != nil {
		normalized := strings.ToLower(strings.TrimSpace(*req.Email))
		req.Email = &normalized
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)
	userAgent := r.Header.Get("User-Agent")

	result, err := h.invites.ClaimInvite(r.Context(), req.InviteCode, req.Username, req.Email, userAgent, ipAddress)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInviteInvalid):
			pkghttp.WriteBadRequest(w, "Invalid or expired invite code")
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "Username is already taken")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, RegisterResponse{
		User:  toUserResponse(result.User),
		Token: result.Token,
	})
}

// Logout destroys the calling session
// @Summary Log out the current session
// @Security BearerAuth
// @Produce json
// @Success 204
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session := auth.GetSessionFromContext(r)
	if session == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	if err := h.sessions.Invalidate(r.Context(), session.ID); err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
