package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Role names
const (
	RoleAdmin = "admin"
)

// User is the identity anchor. Usernames are the primary human identifier
// and are unique across the community. Users are created by claiming an
// invite; once registered they are never hard-deleted (only an account
// whose claim fell through is rolled back).
type User struct {
	ID        uuid.UUID  `db:"id"`
	Username  string     `db:"username"`
	Email     *string    `db:"email"` // optional, used for approval notifications
	Roles     []string   `db:"roles"`
	InvitedBy *uuid.UUID `db:"invited_by"`
	CreatedAt time.Time  `db:"created_at"`
}

// HasRole reports whether the user holds the given role.
func (u *User) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.HasRole(RoleAdmin)
}
