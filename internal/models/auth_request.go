package models

import (
	"time"

	"github.com/google/uuid"
)

// RequestStatus is the state of an authentication request. pending is the
// only non-terminal state; once a request leaves pending it never reverts.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
	RequestStatusExpired  RequestStatus = "expired"
)

// Terminal reports whether the status is one of the terminal states.
func (s RequestStatus) Terminal() bool {
	return s != RequestStatusPending
}

// ActorType identifies which approval rule (or system action) produced a
// transition. Closed set so the engine's precedence logic stays exhaustive.
type ActorType string

const (
	ActorAdmin  ActorType = "admin"
	ActorSelf   ActorType = "self"
	ActorPeer   ActorType = "peer"
	ActorSystem ActorType = "system"
)

// AuthRequest is one login attempt from an unrecognized device, waiting to
// be approved, rejected, or to expire. At most one pending request exists
// per (user, device fingerprint) pair.
type AuthRequest struct {
	ID                uuid.UUID     `db:"id"`
	UserID            uuid.UUID     `db:"user_id"`
	DeviceFingerprint string        `db:"device_fingerprint"`
	UserAgent         string        `db:"user_agent"`
	IPAddress         string        `db:"ip_address"`
	Status            RequestStatus `db:"status"`
	VerificationCode  *string       `db:"verification_code"`
	ResolvedBy        *uuid.UUID    `db:"resolved_by"`
	ResolvedAt        *time.Time    `db:"resolved_at"`
	CreatedAt         time.Time     `db:"created_at"`
	ExpiresAt         time.Time     `db:"expires_at"`
}

// Expired reports whether a still-pending request is past its expiry.
func (r *AuthRequest) Expired(now time.Time) bool {
	return r.Status == RequestStatusPending && now.After(r.ExpiresAt)
}

// AuthApproval is one vote cast by one approver toward one request.
// Unique per (request, approver); never mutated or deleted.
type AuthApproval struct {
	ID         uuid.UUID `db:"id"`
	RequestID  uuid.UUID `db:"request_id"`
	ApproverID uuid.UUID `db:"approver_id"`
	CreatedAt  time.Time `db:"created_at"`
}

// AuthAttempt records one authentication-request creation for rate limiting.
type AuthAttempt struct {
	ID        uuid.UUID `db:"id"`
	UserID    uuid.UUID `db:"user_id"`
	IPAddress string    `db:"ip_address"`
	CreatedAt time.Time `db:"created_at"`
}
