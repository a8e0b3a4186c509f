package domain

import "time"

// Notification types
const (
	NotificationMessage    = "message"
	NotificationMention    = "mention"
	NotificationInvitation = "invitation"
)

// Notification is stored at companies/{c}/notifications/{uid}/{id}
type Notification struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Type       string    `json:"type"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	ChatID     string    `json:"chat_id,omitempty"`
	MessageID  string    `json:"message_id,omitempty"`
	SenderID   string    `json:"sender_id,omitempty"`
	SenderName string    `json:"sender_name,omitempty"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"created_at"`
}

// NotificationSummary is the unread counter pushed to clients
type NotificationSummary struct {
	TotalUnread int `json:"total_unread"`
}
