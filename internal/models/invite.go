package models

import (
	"time"

	"github.com/google/uuid"
)

// Invite is a single-use registration code. Only the bcrypt hash is
// stored; the plaintext is shown to the inviter once at creation.
type Invite struct {
	ID        uuid.UUID  `db:"id"`
	CodeHash  string     `db:"code_hash"`
	CreatedBy uuid.UUID  `db:"created_by"`
	ClaimedBy *uuid.UUID `db:"claimed_by"`
	CreatedAt time.Time  `db:"created_at"`
	ExpiresAt time.Time  `db:"expires_at"`
}

// Claimable reports whether the invite can still be claimed.
func (i *Invite) Claimable(now time.Time) bool {
	return i.ClaimedBy == nil && now.Before(i.ExpiresAt)
}
