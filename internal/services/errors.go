// Package services defines the business logic for chirps, likes, and user
// accounts. This file centralizes common service-level error values so that
// they can be consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import "errors"

// Chirp-related errors.
var (
	// ErrChirpNotFound indicates that the requested chirp does not exist
	// (or has been deleted).
	ErrChirpNotFound = errors.New("chirp not found")

	// ErrEmptyMessage is returned when a create or update request contains
	// a message that is empty after trimming.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrMessageTooLong is returned when a message exceeds the maximum
	// configured length limit (255 characters by default).
	ErrMessageTooLong = errors.New("message too long")

	// ErrNotChirpOwner is returned when a user attempts to modify or delete
	// a chirp they did not author.
	ErrNotChirpOwner = errors.New("not the chirp owner")

	// ErrChirpQuotaExceeded is returned when a user who already owns the
	// maximum number of chirps attempts to create another. The message text
	// is user-facing and fixed.
	ErrChirpQuotaExceeded = errors.New("chirp limit reached")

	// ErrAlreadyLiked is returned when a user attempts to like a chirp they
	// have already liked. The message text is user-facing and fixed.
	ErrAlreadyLiked = errors.New("already liked this chirp")
)

// Account-related errors.
var (
	// ErrUserExists is returned when a registration collides with an
	// existing username or email.
	ErrUserExists = errors.New("username or email already registered")

	// ErrInvalidCredentials is returned when a login attempt names an
	// unknown user or presents the wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
