package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/colefleming/vouch/internal/auth"
	"github.com/colefleming/vouch/internal/models"
	"github.com/colefleming/vouch/internal/services"
	pkghttp "github.com/colefleming/vouch/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ApprovalServiceInterface defines the interface for the approval engine
type ApprovalServiceInterface interface {
	Approve(ctx context.Context, requestID, approverID uuid.UUID, code string) (*models.AuthRequest, error)
	Reject(ctx context.Context, requestID, adminID uuid.UUID) (*models.AuthRequest, error)
	GetStatus(ctx context.Context, requestID uuid.UUID) (*services.RequestStatusInfo, error)
	ListPendingForApprover(ctx context.Context, approverID uuid.UUID) ([]*models.AuthRequest, error)
}

// ApprovalHandler handles voting on and inspecting authentication requests
type ApprovalHandler struct {
	service ApprovalServiceInterface
}

// NewApprovalHandler creates a new ApprovalHandler
func NewApprovalHandler(service ApprovalServiceInterface) *ApprovalHandler {
	return &ApprovalHandler{service: service}
}

// ApproveRequest represents the request body for an approval vote
type ApproveRequest struct {
	// VerificationCode is required when enhanced verification is enabled.
	VerificationCode string `json:"verification_code,omitempty" validate:"omitempty,len=6,numeric"`
}

// StatusResponse represents the response body for a status poll
type StatusResponse struct {
	ID        uuid.UUID `json:"id"`
	Status    string    `json:"status"`
	Approvals int       `json:"approvals"`
}

// Status handles polling a request's state from the waiting device
// @Summary Get the status of an authentication request
// @Produce json
// @Success 200 {object} StatusResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /auth/requests/{id} [get]
func (h *ApprovalHandler) Status(w http.ResponseWriter, r *http.Request) {
	requestID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	info, err := h.service.GetStatus(r.Context(), requestID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Request not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, StatusResponse{
		ID:        requestID,
		Status:    string(info.Status),
		Approvals: info.Approvals,
	})
}

// ListPending handles listing requests awaiting a vote
// @Summary List pending authentication requests
// @Security BearerAuth
// @Produce json
// @Success 200 {array} RequestResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /auth/requests/pending [get]
func (h *ApprovalHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	pending, err := h.service.ListPendingForApprover(r.Context(), user.ID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, toPendingRequestResponses(pending))
}

// Approve handles casting an approval vote
// @Summary Approve an authentication request
// @Security BearerAuth
// @Accept json
// @Param request body ApproveRequest false "Approve request"
// @Produce json
// @Success 200 {object} RequestResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /auth/requests/{id}/approve [post]
func (h *ApprovalHandler) Approve(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	requestID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	// Body is optional; the code only matters in enhanced mode
	var req ApproveRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			pkghttp.WriteBadRequest(w, "Invalid request body")
			return
		}
		if err := ValidateRequest(req); err != nil {
			pkghttp.WriteBadRequest(w, err.Error())
			return
		}
	}

	updated, err := h.service.Approve(r.Context(), requestID, user.ID, req.VerificationCode)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Request not found")
		case errors.Is(err, models.ErrRequestAlreadyResolved):
			pkghttp.WriteConflict(w, "Request has already been resolved")
		case errors.Is(err, models.ErrInvalidVerificationCode):
			pkghttp.WriteBadRequest(w, "Verification code does not match")
		case errors.Is(err, models.ErrForbidden):
			pkghttp.WriteForbidden(w, "Not allowed to approve this request")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, toRequestResponse(updated))
}

// Reject handles an admin rejecting a request
// @Summary Reject an authentication request
// @Security BearerAuth
// @Produce json
// @Success 200 {object} RequestResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /auth/requests/{id}/reject [post]
func (h *ApprovalHandler) Reject(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	requestID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	updated, err := h.service.Reject(r.Context(), requestID, user.ID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Request not found")
		case errors.Is(err, models.ErrRequestAlreadyResolved):
			pkghttp.WriteConflict(w, "Request has already been resolved")
		case errors.Is(err, models.ErrForbidden):
			pkghttp.WriteForbidden(w, "Only admins may reject requests")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, toRequestResponse(updated))
}

// parseIDParam reads the {id} route parameter as a UUID, writing a 400 on
// failure.
func parseIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request id")
		return uuid.Nil, false
	}
	return id, true
}
