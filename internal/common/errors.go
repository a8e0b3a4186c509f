package common

import "errors"

// Business logic errors
var (
	// General errors
	ErrNotFound     = errors.New("resource not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")

	// Auth errors
	ErrUnauthenticated = errors.New("authentication required")
	ErrInvalidToken    = errors.New("invalid token")

	// Messenger errors
	ErrChatNotFound        = errors.New("chat not found")
	ErrMessageNotFound     = errors.New("message not found")
	ErrInvitationNotFound  = errors.New("invitation not found")
	ErrCategoryNotFound    = errors.New("category not found")
	ErrNotSender           = errors.New("only the sender may modify this message")
	ErrNotParticipant      = errors.New("user is not a chat participant")
	ErrDuplicateInvitation = errors.New("a pending invitation already exists")
	ErrInvitationClosed    = errors.New("invitation is no longer pending")
	ErrStorageUnavailable  = errors.New("blob storage is not configured")
)

// IsNotFound reports whether err is any of the not-found errors
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrChatNotFound) ||
		errors.Is(err, ErrMessageNotFound) ||
		errors.Is(err, ErrInvitationNotFound) ||
		errors.Is(err, ErrCategoryNotFound)
}

// IsForbidden reports whether err is an authorization failure
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrNotSender) ||
		errors.Is(err, ErrNotParticipant)
}
