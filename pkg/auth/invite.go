package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

const (
	BcryptCost       = 12
	InviteCodeLength = 20
)

// Invite codes use an unambiguous alphabet (no 0/O, 1/I/l) since they are
// read aloud or typed from another screen.
const inviteAlphabet = "abcdefghjkmnpqrstuvwxyzABCDEFGHJKMNPQRSTUVWXYZ23456789"

// GenerateInviteCode returns a new random invite code.
func GenerateInviteCode() (string, error) {
	code := make([]byte, InviteCodeLength)
	max := big.NewInt(int64(len(inviteAlphabet)))

	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate invite code: %w", err)
		}
		code[i] = inviteAlphabet[n.Int64()]
	}

	return string(code), nil
}

// HashInviteCode returns the bcrypt hash stored in place of the code.
func HashInviteCode(code string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(code), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash invite code: %w", err)
	}
	return string(hash), nil
}

// CompareInviteCode checks a plaintext code against a stored hash.
func CompareInviteCode(hash, code string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(code))
}
