package auth

import "errors"

var (
	ErrEmailTaken         = errors.New("auth: email already registered")
	ErrInvalidCredentials = errors.New("auth: invalid email or password")
	ErrWeakPassword       = errors.New("auth: password too short")
	ErrSessionNotFound    = errors.New("auth: session not found or expired")
	ErrUserNotFound       = errors.New("auth: user not found")
	ErrWrongPassword      = errors.New("auth: current password does not match")
)
