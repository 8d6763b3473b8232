package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Authentication workflow errors
	ErrUnknownUser             = errors.New("username is not registered")
	ErrRateLimited             = errors.New("too many authentication attempts, try again later")
	ErrInvalidSession          = errors.New("session is invalid or expired")
	ErrInsufficientAuthLevel   = errors.New("session is awaiting device approval")
	ErrRequestAlreadyResolved  = errors.New("this request was already decided")
	ErrInvalidVerificationCode = errors.New("verification code does not match")

	// Invite errors
	ErrInviteInvalid = errors.New("invite code is invalid or already claimed")
)
