package domain

import "time"

// PresenceStatus is a user's presence
type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceAway    PresenceStatus = "away"
	PresenceBusy    PresenceStatus = "busy"
	PresenceOffline PresenceStatus = "offline"
)

// Valid reports whether p is a known presence value
func (p PresenceStatus) Valid() bool {
	switch p {
	case PresenceOnline, PresenceAway, PresenceBusy, PresenceOffline:
		return true
	}
	return false
}

// UserStatus is overwritten on each update at companies/{c}/userStatus/{uid}
type UserStatus struct {
	UserID       string         `json:"user_id"`
	Status       PresenceStatus `json:"status"`
	LastActive   time.Time      `json:"last_active"`
	CustomStatus string         `json:"custom_status,omitempty"`
}

// SetStatusRequest is the input for presence updates
type SetStatusRequest struct {
	Status       PresenceStatus `json:"status" binding:"required"`
	CustomStatus string         `json:"custom_status"`
}
