// Package common holds the sentinel errors shared by the auth repository,
// service, and handler layers.
package common

import "errors"

var (
	// ErrUserNotFound is returned when no committee member matches the lookup.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists is returned when an email is already registered.
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrInvalidCredentials is returned on a bad email/password combination.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrSessionNotFound is returned when a refresh token has no live session.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired is returned when a refresh token session has lapsed
	// or was revoked.
	ErrSessionExpired = errors.New("session expired")

	// ErrWeakPassword is returned when a new password fails the policy.
	ErrWeakPassword = errors.New("password does not meet requirements")

	// ErrForbidden is returned when the caller's role does not allow the
	// operation.
	ErrForbidden = errors.New("operation not permitted for role")
)
