package users

import "errors"

var (
	ErrSelfDelete   = errors.New("users: admins cannot delete their own account")
	ErrSelfDemote   = errors.New("users: admins cannot remove their own admin role")
	ErrInvalidRole  = errors.New("users: unknown role")
	ErrInvalidToken = errors.New("users: token is invalid or expired")

	ErrAlreadyVerified = errors.New("users: email already verified")
)
