package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/colefleming/vouch/internal/models"
	pkghttp "github.com/colefleming/vouch/pkg/http"
	"github.com/google/uuid"
)

// AuditServiceInterface defines the interface for audit trail reads
type AuditServiceInterface interface {
	GetRequestTrail(ctx context.Context, requestID uuid.UUID, limit, offset int) ([]*models.AuditLogEntry, error)
	GetActorTrail(ctx context.Context, actorID uuid.UUID, limit, offset int) ([]*models.AuditLogEntry, error)
	GetSecurityTrail(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.SecurityEvent, error)
}

// AuditHandler exposes the audit trail to admins
type AuditHandler struct {
	service AuditServiceInterface
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(service AuditServiceInterface) *AuditHandler {
	return &AuditHandler{service: service}
}

// RequestTrail handles reading the audit trail for one request
// @Summary Get the audit trail for an authentication request
// @Security BearerAuth
// @Produce json
// @Success 200 {array} AuditEntryResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /admin/audit/requests/{id} [get]
func (h *AuditHandler) RequestTrail(w http.ResponseWriter, r *http.Request) {
	requestID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	limit, offset := parsePagination(r)

	entries, err := h.service.GetRequestTrail(r.Context(), requestID, limit, offset)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, toAuditEntryResponses(entries))
}

// ActorTrail handles reading the audit trail for one actor
// @Summary Get the audit entries written by one actor
// @Security BearerAuth
// @Produce json
// @Success 200 {array} AuditEntryResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /admin/audit/actors/{id} [get]
func (h *AuditHandler) ActorTrail(w http.ResponseWriter, r *http.Request) {
	actorID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	limit, offset := parsePagination(r)

	entries, err := h.service.GetActorTrail(r.Context(), actorID, limit, offset)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, toAuditEntryResponses(entries))
}

// SecurityTrail handles reading the security events recorded for one user
// @Summary Get security events for a user
// @Security BearerAuth
// @Produce json
// @Success 200 {array} SecurityEventResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /admin/audit/security/{id} [get]
func (h *AuditHandler) SecurityTrail(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	limit, offset := parsePagination(r)

	events, err := h.service.GetSecurityTrail(r.Context(), userID, limit, offset)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, toSecurityEventResponses(events))
}

// parsePagination reads limit/offset query params; the service clamps them.
func parsePagination(r *http.Request) (int, int) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	return limit, offset
}
