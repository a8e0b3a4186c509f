package domain

import "time"

// InvitationStatus is the contact invitation lifecycle: pending -> accepted | declined
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
)

// ContactTypeSaved marks a contact saved through an accepted invitation
const ContactTypeSaved = "saved"

// ContactInvitation is stored at contactInvitations/{id}
type ContactInvitation struct {
	ID          string           `json:"id"`
	FromUserID  string           `json:"from_user_id"`
	FromName    string           `json:"from_name,omitempty"`
	ToUserID    string           `json:"to_user_id"`
	Message     string           `json:"message,omitempty"`
	Status      InvitationStatus `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	RespondedAt *time.Time       `json:"responded_at,omitempty"`
}

// Contact is one direction of a saved-contact pair at contacts/{userId}/{id}
type Contact struct {
	ID            string           `json:"id"`
	UserID        string           `json:"user_id"`
	ContactUserID string           `json:"contact_user_id"`
	DisplayName   string           `json:"display_name,omitempty"`
	Type          string           `json:"type"`
	Status        InvitationStatus `json:"status"`
	InvitationID  string           `json:"invitation_id,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

// SendInvitationRequest is the input for sending a contact invitation
type SendInvitationRequest struct {
	ToUserID string `json:"to_user_id" binding:"required"`
	Message  string `json:"message"`
}
