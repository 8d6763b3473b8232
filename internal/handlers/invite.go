package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/colefleming/vouch/internal/auth"
	"github.com/colefleming/vouch/internal/models"
	pkghttp "github.com/colefleming/vouch/pkg/http"
	"github.com/google/uuid"
)

// InviteServiceInterface defines the interface for invite management
type InviteServiceInterface interface {
	CreateInvite(ctx context.Context, adminID uuid.UUID) (string, *models.Invite, error)
}

// InviteHandler handles invite creation
type InviteHandler struct {
	service InviteServiceInterface
}

// NewInviteHandler creates a new InviteHandler
func NewInviteHandler(service InviteServiceInterface) *InviteHandler {
	return &InviteHandler{service: service}
}

// InviteResponse represents the response body for invite creation. The code
// appears here and nowhere else; only its hash is stored.
type InviteResponse struct {
	ID        uuid.UUID `json:"id"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Create handles minting a new invite
// @Summary Create an invite code
// @Security BearerAuth
// @Produce json
// @Success 201 {object} InviteResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /invites [post]
func (h *InviteHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	code, invite, err := h.service.CreateInvite(r.Context(), user.ID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, InviteResponse{
		ID:        invite.ID,
		Code:      code,
		ExpiresAt: invite.ExpiresAt,
	})
}
