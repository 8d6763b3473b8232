package models

import (
	"time"

	"github.com/google/uuid"
)

// Audit actions
const (
	AuditActionRequestCreated  = "request_created"
	AuditActionRequestApproved = "request_approved"
	AuditActionRequestRejected = "request_rejected"
	AuditActionRequestExpired  = "request_expired"
	AuditActionVoteCast        = "vote_cast"
	AuditActionUserRegistered  = "user_registered"
)

// AuditLogEntry is an immutable record of an action taken against a
// request or session. Append-only; used for forensic reconstruction.
type AuditLogEntry struct {
	ID        uuid.UUID  `db:"id"`
	RequestID *uuid.UUID `db:"request_id"`
	Action    string     `db:"action"`
	ActorID   *uuid.UUID `db:"actor_id"`
	ActorType ActorType  `db:"actor_type"`
	Details   string     `db:"details"`
	CreatedAt time.Time  `db:"created_at"`
}

// Security event types
const (
	SecurityEventRateLimited  = "rate_limited"
	SecurityEventIPChange     = "ip_change"
	SecurityEventDeviceChange = "device_change"
)

// SecurityEvent is an immutable record of a security-relevant condition.
type SecurityEvent struct {
	ID        uuid.UUID  `db:"id"`
	EventType string     `db:"event_type"`
	UserID    *uuid.UUID `db:"user_id"`
	IPAddress string     `db:"ip_address"`
	UserAgent string     `db:"user_agent"`
	Details   string     `db:"details"`
	CreatedAt time.Time  `db:"created_at"`
}
