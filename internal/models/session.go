package models

import (
	"time"

	"github.com/google/uuid"
)

// AuthLevel is the trust level of a session. A session only ever moves
// half -> full, and only through the approval engine.
type AuthLevel string

const (
	AuthLevelHalf AuthLevel = "half"
	AuthLevelFull AuthLevel = "full"
)

// Session is a bearer credential bound to one device. The signed token a
// client holds carries only the session id; the level lives on this row so
// an approval upgrades the session without reissuing the token.
type Session struct {
	ID        uuid.UUID  `db:"id"`
	UserID    uuid.UUID  `db:"user_id"`
	Level     AuthLevel  `db:"auth_level"`
	RequestID *uuid.UUID `db:"request_id"` // set for half sessions awaiting approval
	UserAgent string     `db:"user_agent"`
	IPAddress string     `db:"ip_address"`
	CreatedAt time.Time  `db:"created_at"`
	ExpiresAt time.Time  `db:"expires_at"`
}

// Expired reports whether the session is past its expiry at the given time.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
