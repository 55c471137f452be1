package auth

import "errors"

var (
	ErrUserNotFound       = errors.New("auth: user not found")
	ErrEmailAlreadyExists = errors.New("auth: email already registered")
	ErrInvalidCredentials = errors.New("auth: invalid password")
	ErrInvalidRole        = errors.New("auth: invalid role")
	ErrTenantRequired     = errors.New("auth: tenant required for role")
	ErrUnknownClassroom   = errors.New("auth: unknown classroom")
	ErrWeakPassword       = errors.New("auth: password too short")
	ErrEmailDelivery      = errors.New("auth: failed to deliver email")

	// ErrUnauthenticated is returned by Middleware when a valid token
	// refers to a user that no longer exists.
	ErrUnauthenticated = errors.New("auth: user not found")
)
