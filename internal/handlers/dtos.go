package handlers

import (
	"time"

	"github.com/colefleming/vouch/internal/models"
	"github.com/google/uuid"
)

// RequestResponse is the wire form of an authentication request. The
// verification code is only populated on the pending-approval list, where
// policy decides its visibility; every other surface omits it.
type RequestResponse struct {
	ID               uuid.UUID  `json:"id"`
	UserID           uuid.UUID  `json:"user_id"`
	UserAgent        string     `json:"user_agent"`
	Status           string     `json:"status"`
	VerificationCode *string    `json:"verification_code,omitempty"`
	ResolvedBy       *uuid.UUID `json:"resolved_by,omitempty"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	ExpiresAt        time.Time  `json:"expires_at"`
}

func toRequestResponse(req *models.AuthRequest) *RequestResponse {
	return &RequestResponse{
		ID:         req.ID,
		UserID:     req.UserID,
		UserAgent:  req.UserAgent,
		Status:     string(req.Status),
		ResolvedBy: req.ResolvedBy,
		ResolvedAt: req.ResolvedAt,
		CreatedAt:  req.CreatedAt,
		ExpiresAt:  req.ExpiresAt,
	}
}

// toPendingRequestResponses carries the verification code through; the
// approval service has already masked it when policy says approvers may
// not see it.
func toPendingRequestResponses(reqs []*models.AuthRequest) []*RequestResponse {
	out := make([]*RequestResponse, 0, len(reqs))
	for _, req := range reqs {
		resp := toRequestResponse(req)
		resp.VerificationCode = req.VerificationCode
		out = append(out, resp)
	}
	return out
}

// UserResponse is the wire form of a user.
type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     *string   `json:"email,omitempty"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Roles:     user.Roles,
		CreatedAt: user.CreatedAt,
	}
}

// AuditEntryResponse is the wire form of an audit log entry.
type AuditEntryResponse struct {
	ID        uuid.UUID  `json:"id"`
	RequestID *uuid.UUID `json:"request_id,omitempty"`
	Action    string     `json:"action"`
	ActorID   *uuid.UUID `json:"actor_id,omitempty"`
	ActorType string     `json:"actor_type"`
	Details   string     `json:"details"`
	CreatedAt time.Time  `json:"created_at"`
}

// SecurityEventResponse is the wire form of a security event.
type SecurityEventResponse struct {
	ID        uuid.UUID  `json:"id"`
	EventType string     `json:"event_type"`
	UserID    *uuid.UUID `json:"user_id,omitempty"`
	IPAddress string     `json:"ip_address"`
	Details   string     `json:"details"`
	CreatedAt time.Time  `json:"created_at"`
}

func toSecurityEventResponses(events []*models.SecurityEvent) []*SecurityEventResponse {
	out := make([]*SecurityEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, &SecurityEventResponse{
			ID:        e.ID,
			EventType: e.EventType,
			UserID:    e.UserID,
			IPAddress: e.IPAddress,
			Details:   e.Details,
			CreatedAt: e.CreatedAt,
		})
	}
	return out
}

func toAuditEntryResponses(entries []*models.AuditLogEntry) []*AuditEntryResponse {
	out := make([]*AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, &AuditEntryResponse{
			ID:        e.ID,
			RequestID: e.RequestID,
			Action:    e.Action,
			ActorID:   e.ActorID,
			ActorType: string(e.ActorType),
			Details:   e.Details,
			CreatedAt: e.CreatedAt,
		})
	}
	return out
}
